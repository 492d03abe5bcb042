package filetypes

import (
	"path/filepath"
	"strings"
)

// UTF8 is the encoding name assigned to text types.
const UTF8 = "utf-8"

// Inferrer derives missing type and encoding fields. An empty string means
// "unknown" both as argument and as result; callers supply their own
// fallbacks.
type Inferrer interface {
	InferTypeFromEncoding(enc string) string
	InferEncodingFromType(typ string) string
	InferTypeFromPath(path string) string
	AliasCheck(name string) string
	DefaultExtension(typ string) string
}

// Inference implements Inferrer on top of a Registry.
type Inference struct {
	Registry *Registry
}

// NewInference returns an Inference backed by r.
func NewInference(r *Registry) *Inference {
	return &Inference{Registry: r}
}

// InferTypeFromEncoding returns "binary" for the binary encoding and "plain"
// for any other known encoding.
func (i *Inference) InferTypeFromEncoding(enc string) string {
	switch enc {
	case "":
		return ""
	case Binary:
		return Binary
	default:
		return Plain
	}
}

// InferEncodingFromType returns "utf-8" for registered text types, "binary"
// for other registered types and "" for unregistered ones.
func (i *Inference) InferEncodingFromType(typ string) string {
	text, ok := i.Registry.IsText(typ)
	switch {
	case !ok:
		return ""
	case text:
		return UTF8
	default:
		return Binary
	}
}

// InferTypeFromPath matches the dotted suffixes of the file name against the
// registered extensions, longest suffix first. A leading dot belongs to the
// name, so ".profile" has no extension.
func (i *Inference) InferTypeFromPath(path string) string {
	parts := strings.Split(filepath.Base(path), ".")
	if parts[0] == "" {
		parts = parts[1:]
	}
	for n := 1; n < len(parts); n++ {
		if typ := i.Registry.ExtensionType("." + strings.Join(parts[n:], ".")); typ != "" {
			return typ
		}
	}
	return ""
}

// AliasCheck resolves a type alias to its canonical name.
func (i *Inference) AliasCheck(name string) string {
	return i.Registry.Resolve(name)
}

// DefaultExtension returns the default extension of typ, or "".
func (i *Inference) DefaultExtension(typ string) string {
	return i.Registry.DefaultExtension(typ)
}

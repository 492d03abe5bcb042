package archive

import (
	"fmt"
	"strings"

	"github.com/Tiliavir/psp/internal/filetypes"
)

// payloadMode is the representation a payload takes in the archive. The
// loader derives missing type and encoding fields differently per mode.
type payloadMode int

const (
	// modeText is an inline string without data-encoding.
	modeText payloadMode = iota
	// modeBinary is an inline string decoded through a data-encoding.
	modeBinary
	// modeInput is a file reference.
	modeInput
	// modeMainFile is the main member of a bundle.
	modeMainFile
)

// resolveTypeEncoding fills in the type and encoding the loader derives for
// a payload in the given mode. typ and enc are the explicit fields, "" when
// absent; typ must already be alias-resolved. path is the file the payload
// was found under, if any. The path-derived type wins over the
// encoding-derived one.
func resolveTypeEncoding(inf filetypes.Inferrer, mode payloadMode, path, typ, enc string) (string, string) {
	switch mode {
	case modeText:
		if typ == "" {
			typ = or(inf.InferTypeFromEncoding(filetypes.UTF8), filetypes.Plain)
		}
		return typ, filetypes.UTF8
	case modeBinary:
		if typ == "" {
			typ = or(inf.InferTypeFromEncoding(enc), filetypes.Binary)
		}
		if enc == "" {
			enc = or(inf.InferEncodingFromType(typ), filetypes.Binary)
		}
	case modeInput:
		if typ == "" {
			typ = or(inf.InferTypeFromPath(path), inf.InferTypeFromEncoding(enc), filetypes.Binary)
		}
		if enc == "" {
			enc = or(inf.InferEncodingFromType(typ), filetypes.Binary)
		}
	case modeMainFile:
		if typ == "" {
			typ = or(inf.InferTypeFromPath(path), inf.InferTypeFromEncoding(enc), filetypes.Plain)
		}
		if enc == "" {
			enc = filetypes.UTF8
			if e := inf.InferEncodingFromType(typ); e != "" && e != filetypes.Binary {
				enc = e
			}
		}
	}
	return typ, enc
}

func or(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// usesTypeFormat reports whether type and format are written as one
// "type-format" value, which the loader takes literally.
func usesTypeFormat(typ string, hasFormat bool) bool {
	return hasFormat && !strings.Contains(typ, "-")
}

// typeFields says which of type and encoding must be written.
type typeFields struct {
	Type, Encoding bool
}

// minimalTypeFields returns the smallest set of type/encoding fields from
// which the loader re-derives exactly typ and enc. Candidates are tried in
// order: nothing, encoding only, type only, both.
func minimalTypeFields(inf filetypes.Inferrer, mode payloadMode, path, typ string, hasFormat bool, enc string) (typeFields, error) {
	candidates := []typeFields{{}, {Encoding: true}, {Type: true}, {Type: true, Encoding: true}}
	for _, c := range candidates {
		if mode == modeText && c.Encoding {
			continue
		}
		var wt, we string
		if c.Type {
			wt = typ
			if !usesTypeFormat(typ, hasFormat) {
				wt = inf.AliasCheck(typ)
			}
		}
		if c.Encoding {
			we = enc
		}
		gotType, gotEnc := resolveTypeEncoding(inf, mode, path, wt, we)
		if gotType == typ && gotEnc == enc {
			return c, nil
		}
	}
	return typeFields{}, fmt.Errorf("type %q with encoding %q cannot be represented (is the type name an alias?)", typ, enc)
}

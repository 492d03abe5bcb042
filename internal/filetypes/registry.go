package filetypes

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Built-in type names.
const (
	Plain  = "plain"
	Binary = "binary"
)

// Registry maps type names to their text flag, file extensions and aliases.
// The first extension registered for a type is its default extension.
type Registry struct {
	text    map[string]bool
	exts    map[string][]string
	extType map[string]string
	aliases map[string]string
}

// NewRegistry returns a registry holding the two built-in types.
func NewRegistry() *Registry {
	r := &Registry{
		text:    map[string]bool{},
		exts:    map[string][]string{},
		extType: map[string]string{},
		aliases: map[string]string{},
	}
	_ = r.AddType(Plain, true, []string{".txt"}, nil)
	_ = r.AddType(Binary, false, nil, nil)
	return r
}

// RegisterCommon adds the file types usually found in a journal archive.
func RegisterCommon(r *Registry) error {
	common := []struct {
		name    string
		text    bool
		exts    []string
		aliases []string
	}{
		{"markdown", true, []string{".md", ".markdown"}, []string{"md"}},
		{"html", true, []string{".html", ".htm"}, nil},
		{"json", true, []string{".json"}, nil},
		{"csv", true, []string{".csv"}, nil},
		{"jpeg", false, []string{".jpg", ".jpeg"}, []string{"jpg"}},
		{"png", false, []string{".png"}, nil},
		{"gif", false, []string{".gif"}, nil},
		{"webp", false, []string{".webp"}, nil},
		{"pdf", false, []string{".pdf"}, nil},
		{"mp3", false, []string{".mp3"}, nil},
		{"mp4", false, []string{".mp4"}, nil},
		{"zip", false, []string{".zip"}, nil},
		{"tar", false, []string{".tar"}, nil},
		{"gztar", false, []string{".tar.gz", ".tgz"}, nil},
		{"bztar", false, []string{".tar.bz2", ".tbz2"}, nil},
	}
	for _, t := range common {
		if r.HasType(t.name) {
			continue
		}
		if err := r.AddType(t.name, t.text, t.exts, t.aliases); err != nil {
			return err
		}
	}
	return nil
}

// AddType registers a new type. Extensions must start with "." and must not
// already belong to another type.
func (r *Registry) AddType(name string, text bool, exts, aliases []string) error {
	if name == "" {
		return fmt.Errorf("empty type name")
	}
	if r.HasType(name) {
		return fmt.Errorf("type %q is already registered", name)
	}
	if _, ok := r.aliases[name]; ok {
		return fmt.Errorf("type %q is already registered as an alias", name)
	}
	r.text[name] = text
	for _, ext := range exts {
		if err := r.AddExtension(name, ext); err != nil {
			return err
		}
	}
	for _, alias := range aliases {
		if err := r.AddAlias(alias, name); err != nil {
			return err
		}
	}
	return nil
}

// AddExtension binds ext to the registered type name.
func (r *Registry) AddExtension(name, ext string) error {
	if !r.HasType(name) {
		return fmt.Errorf("unknown type %q", name)
	}
	if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
		return fmt.Errorf("invalid extension %q", ext)
	}
	if owner, ok := r.extType[ext]; ok {
		return fmt.Errorf("extension %q already belongs to type %q", ext, owner)
	}
	r.extType[ext] = name
	r.exts[name] = append(r.exts[name], ext)
	return nil
}

// SetDefaultExtension moves ext to the front of the extensions of name.
func (r *Registry) SetDefaultExtension(name, ext string) error {
	if r.extType[ext] != name {
		return fmt.Errorf("extension %q does not belong to type %q", ext, name)
	}
	exts := r.exts[name]
	i := slices.Index(exts, ext)
	r.exts[name] = append([]string{ext}, slices.Delete(slices.Clone(exts), i, i+1)...)
	return nil
}

// AddAlias makes alias resolve to the registered type name.
func (r *Registry) AddAlias(alias, name string) error {
	if !r.HasType(name) {
		return fmt.Errorf("unknown type %q", name)
	}
	if r.HasType(alias) {
		return fmt.Errorf("alias %q is already a type name", alias)
	}
	if target, ok := r.aliases[alias]; ok {
		return fmt.Errorf("alias %q already refers to %q", alias, target)
	}
	r.aliases[alias] = name
	return nil
}

// RemoveType drops a type together with its extensions and aliases.
func (r *Registry) RemoveType(name string) error {
	if !r.HasType(name) {
		return fmt.Errorf("unknown type %q", name)
	}
	for _, ext := range r.exts[name] {
		delete(r.extType, ext)
	}
	for alias, target := range r.aliases {
		if target == name {
			delete(r.aliases, alias)
		}
	}
	delete(r.exts, name)
	delete(r.text, name)
	return nil
}

// RemoveExtension unbinds ext from its type.
func (r *Registry) RemoveExtension(ext string) error {
	name, ok := r.extType[ext]
	if !ok {
		return fmt.Errorf("unknown extension %q", ext)
	}
	delete(r.extType, ext)
	exts := r.exts[name]
	i := slices.Index(exts, ext)
	r.exts[name] = slices.Delete(exts, i, i+1)
	return nil
}

// RemoveAlias unbinds alias.
func (r *Registry) RemoveAlias(alias string) error {
	if _, ok := r.aliases[alias]; !ok {
		return fmt.Errorf("unknown alias %q", alias)
	}
	delete(r.aliases, alias)
	return nil
}

// HasType reports whether name is a registered type (aliases excluded).
func (r *Registry) HasType(name string) bool {
	_, ok := r.text[name]
	return ok
}

// IsText reports whether the registered type name holds text. The second
// result is false when the type is unknown.
func (r *Registry) IsText(name string) (text, ok bool) {
	text, ok = r.text[name]
	return text, ok
}

// ExtensionType returns the type bound to ext, or "".
func (r *Registry) ExtensionType(ext string) string {
	return r.extType[ext]
}

// DefaultExtension returns the first extension of name, or "".
func (r *Registry) DefaultExtension(name string) string {
	if exts := r.exts[name]; len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// Extensions returns a copy of the extensions registered for name.
func (r *Registry) Extensions(name string) []string {
	return slices.Clone(r.exts[name])
}

// Aliases returns the sorted aliases of name.
func (r *Registry) Aliases(name string) []string {
	var out []string
	for alias, target := range r.aliases {
		if target == name {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}

// Resolve returns the canonical name for alias, or alias itself.
func (r *Registry) Resolve(alias string) string {
	if name, ok := r.aliases[alias]; ok {
		return name
	}
	return alias
}

// Types returns the sorted names of all registered types.
func (r *Registry) Types() []string {
	names := make([]string, 0, len(r.text))
	for name := range r.text {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Suggest returns registered type names and aliases that fuzzily match
// query, best match first.
func (r *Registry) Suggest(query string) []string {
	names := r.Types()
	for alias := range r.aliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	matches := fuzzy.Find(query, names)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Str)
	}
	return out
}

// Clone returns an independent copy of r.
func (r *Registry) Clone() *Registry {
	c := &Registry{
		text:    make(map[string]bool, len(r.text)),
		exts:    make(map[string][]string, len(r.exts)),
		extType: make(map[string]string, len(r.extType)),
		aliases: make(map[string]string, len(r.aliases)),
	}
	for k, v := range r.text {
		c.text[k] = v
	}
	for k, v := range r.exts {
		c.exts[k] = slices.Clone(v)
	}
	for k, v := range r.extType {
		c.extType[k] = v
	}
	for k, v := range r.aliases {
		c.aliases[k] = v
	}
	return c
}

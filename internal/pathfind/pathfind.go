// Package pathfind resolves input paths against lookup-path patterns and
// picks export file names that stay unambiguous under those patterns.
package pathfind

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
)

// MaxNameAttempts bounds the candidates tried by GenerateName.
const MaxNameAttempts = 1000

const globCacheSize = 256

// ErrNameExhausted is returned when no candidate file name is usable.
var ErrNameExhausted = errors.New("failed to generate a file name")

// Finder looks files up in the directories matched by Patterns, each
// relative to BaseDir.
type Finder struct {
	BaseDir  string
	Patterns []string

	globs *lru.Cache[string, glob.Glob]
}

// New returns a Finder. BaseDir is made absolute and every pattern is
// checked for syntax errors.
func New(baseDir string, patterns []string) (*Finder, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolving base directory %s: %w", baseDir, err)
	}
	cache, err := lru.New[string, glob.Glob](globCacheSize)
	if err != nil {
		return nil, err
	}
	f := &Finder{BaseDir: abs, Patterns: patterns, globs: cache}
	for _, p := range patterns {
		for _, c := range SplitPath(p) {
			if _, err := f.compile(c); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

func (f *Finder) compile(pattern string) (glob.Glob, error) {
	if g, ok := f.globs.Get(pattern); ok {
		return g, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid lookup pattern '%s': %w", pattern, err)
	}
	f.globs.Add(pattern, g)
	return g, nil
}

func hasMeta(s string) bool {
	return strings.ContainsAny(s, `*?[{\`)
}

// match reports whether name matches the single-component pattern.
func (f *Finder) match(name, pattern string) bool {
	if !hasMeta(pattern) {
		return name == pattern
	}
	g, err := f.compile(pattern)
	if err != nil {
		return false
	}
	return g.Match(name)
}

// LookupDirs returns the existing directories matched by the patterns,
// deduplicated, in pattern order.
func (f *Finder) LookupDirs() []string {
	var dirs []string
	seen := map[string]bool{}
	for _, p := range f.Patterns {
		for _, d := range f.expand(p) {
			if !seen[d] {
				seen[d] = true
				dirs = append(dirs, d)
			}
		}
	}
	return dirs
}

func (f *Finder) expand(pattern string) []string {
	full := pattern
	if !filepath.IsAbs(full) {
		full = filepath.Join(f.BaseDir, pattern)
	}
	full = filepath.Clean(full)
	root := filepath.VolumeName(full) + string(filepath.Separator)
	rest := strings.TrimPrefix(full[len(filepath.VolumeName(full)):], string(filepath.Separator))

	candidates := []string{root}
	for _, comp := range strings.Split(rest, string(filepath.Separator)) {
		if comp == "" {
			continue
		}
		var next []string
		for _, dir := range candidates {
			if !hasMeta(comp) {
				next = append(next, filepath.Join(dir, comp))
				continue
			}
			entries, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			for _, e := range entries {
				name := e.Name()
				// Wildcards skip hidden names unless asked for explicitly.
				if strings.HasPrefix(name, ".") && !strings.HasPrefix(comp, ".") {
					continue
				}
				if f.match(name, comp) {
					next = append(next, filepath.Join(dir, name))
				}
			}
		}
		candidates = next
	}

	var dirs []string
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && st.IsDir() {
			dirs = append(dirs, c)
		}
	}
	return dirs
}

// Find returns every regular file reachable as dir/fragment for a lookup
// directory dir.
func (f *Finder) Find(fragment string) []string {
	var hits []string
	for _, dir := range f.LookupDirs() {
		p := filepath.Join(dir, fragment)
		if st, err := os.Stat(p); err == nil && st.Mode().IsRegular() {
			hits = append(hits, p)
		}
	}
	return hits
}

// CanFindOther reports whether the name prefix, with any extension, reaches a
// file other than target from some lookup directory.
func (f *Finder) CanFindOther(target, prefix string) bool {
	dir, name := filepath.Split(prefix)
	target = realPath(target)
	for _, lookup := range f.LookupDirs() {
		entries, err := os.ReadDir(filepath.Join(lookup, dir))
		if err != nil {
			continue
		}
		for _, e := range entries {
			n := e.Name()
			if strings.HasPrefix(n, name) && strings.HasPrefix(n[len(name):], ".") &&
				realPath(filepath.Join(lookup, dir, n)) != target {
				return true
			}
		}
	}
	return false
}

// realPath resolves symlinks as far as the path exists.
func realPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		return r
	}
	dir, base := filepath.Split(abs)
	if dir == abs || base == "" {
		return abs
	}
	return filepath.Join(realPath(filepath.Clean(dir)), base)
}

// NotShortest reports the first intermediate directory of base that, joined
// to dir, matches a lookup pattern. A match means a shorter name would have
// reached the same file.
func (f *Finder) NotShortest(base, dir string) (parent, pattern string, ok bool) {
	parts := SplitPath(base)
	for i := 1; i < len(parts); i++ {
		long := filepath.Join(append([]string{dir}, parts[:i]...)...)
		for _, p := range f.Patterns {
			if f.PatternMatch(long, p) {
				return filepath.Join(parts[:i]...), p, true
			}
		}
	}
	return "", "", false
}

// PatternMatch compares a relative path against a pattern component by
// component; both must have the same number of components.
func (f *Finder) PatternMatch(path, pattern string) bool {
	pp, pats := SplitPath(path), SplitPath(pattern)
	if len(pp) != len(pats) {
		return false
	}
	for i := range pp {
		g, err := f.compile(pats[i])
		if err != nil || !g.Match(pp[i]) {
			return false
		}
	}
	return true
}

// GenerateName returns a file name base[_NNN]ext under dir (relative to
// BaseDir) that pathOK accepts and that no other file can shadow under any
// directory prefix.
func (f *Finder) GenerateName(base, ext, dir string, pathOK func(path string) (bool, error)) (string, error) {
	if strings.ContainsRune(ext, filepath.Separator) || strings.ContainsRune(ext, '/') {
		return "", fmt.Errorf("invalid file extension: %q", ext)
	}
	absDir := filepath.Join(f.BaseDir, dir)
	dirParts := SplitPath(dir)
	prefixes := make([]string, 0, len(dirParts)+1)
	for i := len(dirParts); i >= 0; i-- {
		prefixes = append(prefixes, filepath.Join(dirParts[i:]...))
	}

	for n := 0; n < MaxNameAttempts; n++ {
		candidate := base
		if n > 0 {
			candidate = fmt.Sprintf("%s_%03d", base, n)
		}
		filename := candidate + ext
		exportPath := filepath.Join(absDir, filename)
		ok, err := pathOK(exportPath)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		shadowed := false
		for _, prefix := range prefixes {
			if f.CanFindOther(exportPath, filepath.Join(prefix, candidate)) {
				shadowed = true
				break
			}
		}
		if !shadowed {
			return filename, nil
		}
	}
	return "", fmt.Errorf("%w for %q (with directory name %q)", ErrNameExhausted, base+ext, dir)
}

// ShortestInputPath returns the shortest suffix of dir/name that Find
// resolves to exactly that file, or the full relative path.
func (f *Finder) ShortestInputPath(name, dir string) string {
	parts := SplitPath(dir)
	input := filepath.Clean(name)
	target := filepath.Join(f.BaseDir, dir, name)
	targetInfo, err := os.Stat(target)
	for err == nil {
		hits := f.Find(input)
		if len(hits) == 1 {
			if st, serr := os.Stat(hits[0]); serr == nil && os.SameFile(targetInfo, st) {
				return input
			}
		}
		if len(parts) == 0 {
			break
		}
		input = filepath.Join(parts[len(parts)-1], input)
		parts = parts[:len(parts)-1]
	}
	return filepath.Join(dir, name)
}

// CheckRelPath verifies that path is relative and stays inside BaseDir.
func (f *Finder) CheckRelPath(path string) error {
	if filepath.IsAbs(path) {
		return fmt.Errorf("%q is absolute", path)
	}
	rel, err := filepath.Rel(f.BaseDir, filepath.Join(f.BaseDir, path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%q beyond base directory", path)
	}
	return nil
}

// SplitPath splits a relative path into its cleaned components. "." has
// none.
func SplitPath(path string) []string {
	clean := filepath.Clean(path)
	if clean == "." {
		return nil
	}
	return strings.Split(clean, string(filepath.Separator))
}

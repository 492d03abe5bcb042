package pathfind_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/psp/internal/pathfind"
)

func touch(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func alwaysOK(string) (bool, error) { return true, nil }

func TestLookupDirs(t *testing.T) {
	base := t.TempDir()
	for _, d := range []string{"a", "b", "c1", "c2", ".c3", "d/x", "d/y"} {
		require.NoError(t, os.MkdirAll(filepath.Join(base, d), 0o755))
	}
	touch(t, filepath.Join(base, "c4"), "not a directory")

	f, err := pathfind.New(base, []string{"b", "a", "b", "c*", "missing", "d/*", "."})
	require.NoError(t, err)
	want := []string{"b", "a", "c1", "c2", "d/x", "d/y", "."}
	for i := range want {
		want[i] = filepath.Join(base, want[i])
	}
	assert.Equal(t, want, f.LookupDirs())
}

func TestFindAmbiguous(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "a", "1.txt"), "a")
	touch(t, filepath.Join(base, "b", "1.txt"), "b")

	f, err := pathfind.New(base, []string{"a", "b"})
	require.NoError(t, err)
	hits := f.Find("1.txt")
	assert.Equal(t, []string{filepath.Join(base, "a", "1.txt"), filepath.Join(base, "b", "1.txt")}, hits)
	assert.Empty(t, f.Find("2.txt"))
	// Directories are not files.
	assert.Empty(t, f.Find("."))
}

func TestGenerateNameAvoidsShadowing(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "a", "1.txt"), "type a")
	require.NoError(t, os.MkdirAll(filepath.Join(base, "b"), 0o755))

	f, err := pathfind.New(base, []string{"a", "b"})
	require.NoError(t, err)

	// "1" would also reach a/1.txt, so the counter kicks in.
	name, err := f.GenerateName("1", ".txt", "b", alwaysOK)
	require.NoError(t, err)
	assert.Equal(t, "1_001.txt", name)

	// Extensions do not matter when judging collisions.
	name, err = f.GenerateName("1", ".md", "b", alwaysOK)
	require.NoError(t, err)
	assert.Equal(t, "1_001.md", name)

	touch(t, filepath.Join(base, "b", "1_001.txt"), "type b")
	assert.Equal(t, "1_001.txt", f.ShortestInputPath("1_001.txt", "b"))
}

func TestGenerateNameReusesSameFile(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "assets", "x.txt"), "same")
	f, err := pathfind.New(base, []string{"."})
	require.NoError(t, err)

	name, err := f.GenerateName("x", ".txt", "assets", alwaysOK)
	require.NoError(t, err)
	assert.Equal(t, "x.txt", name)

	differs := func(p string) (bool, error) { return filepath.Base(p) != "x.txt", nil }
	name, err = f.GenerateName("x", ".txt", "assets", differs)
	require.NoError(t, err)
	assert.Equal(t, "x_001.txt", name)
}

func TestGenerateNameExhausted(t *testing.T) {
	f, err := pathfind.New(t.TempDir(), []string{"."})
	require.NoError(t, err)
	never := func(string) (bool, error) { return false, nil }
	_, err = f.GenerateName("x", ".txt", "assets", never)
	require.True(t, errors.Is(err, pathfind.ErrNameExhausted))
	assert.Contains(t, err.Error(), `"x.txt"`)

	_, err = f.GenerateName("x", "/.txt", "assets", alwaysOK)
	require.Error(t, err)
}

func TestShortestInputPath(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "x.txt"), "root")
	touch(t, filepath.Join(base, "a", "x.txt"), "nested")
	touch(t, filepath.Join(base, "a", "y.txt"), "unique")

	f, err := pathfind.New(base, []string{".", "a"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("a", "x.txt"), f.ShortestInputPath("x.txt", "a"))
	assert.Equal(t, "y.txt", f.ShortestInputPath("y.txt", "a"))
	assert.Equal(t, "x.txt", f.ShortestInputPath("x.txt", ""))
	assert.Equal(t, filepath.Join("a", "missing.txt"), f.ShortestInputPath("missing.txt", "a"))
}

func TestNotShortest(t *testing.T) {
	f, err := pathfind.New(t.TempDir(), []string{".", "assets/*"})
	require.NoError(t, err)

	parent, pattern, ok := f.NotShortest(filepath.Join("2022", "photo"), "assets")
	require.True(t, ok)
	assert.Equal(t, "2022", parent)
	assert.Equal(t, "assets/*", pattern)

	_, _, ok = f.NotShortest("photo", "assets")
	assert.False(t, ok)
}

func TestPatternMatch(t *testing.T) {
	f, err := pathfind.New(t.TempDir(), nil)
	require.NoError(t, err)
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"assets/2022", "assets/*", true},
		{"assets/2022", "assets/20?2", true},
		{"assets/2022", "assets/[!0-9]*", false},
		{"assets", "assets/*", false},
		{"a/b/c", "a/*/c", true},
		{"./a", "a", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, f.PatternMatch(tt.path, tt.pattern), "PatternMatch(%q, %q)", tt.path, tt.pattern)
	}
}

func TestCheckRelPath(t *testing.T) {
	f, err := pathfind.New(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, f.CheckRelPath("assets/x.txt"))
	require.NoError(t, f.CheckRelPath("assets/../x.txt"))
	assert.ErrorContains(t, f.CheckRelPath("/etc/passwd"), "is absolute")
	assert.ErrorContains(t, f.CheckRelPath("../x.txt"), "beyond base directory")
}

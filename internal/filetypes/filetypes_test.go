package filetypes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/psp/internal/filetypes"
)

func newInference(t *testing.T) *filetypes.Inference {
	t.Helper()
	r := filetypes.NewRegistry()
	require.NoError(t, filetypes.RegisterCommon(r))
	return filetypes.NewInference(r)
}

func TestInferTypeFromEncoding(t *testing.T) {
	inf := newInference(t)
	tests := []struct {
		enc  string
		want string
	}{
		{"", ""},
		{"binary", "binary"},
		{"utf-8", "plain"},
		{"latin-1", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inf.InferTypeFromEncoding(tt.enc), "InferTypeFromEncoding(%q)", tt.enc)
	}
}

func TestInferEncodingFromType(t *testing.T) {
	inf := newInference(t)
	tests := []struct {
		typ  string
		want string
	}{
		{"plain", "utf-8"},
		{"markdown", "utf-8"},
		{"binary", "binary"},
		{"png", "binary"},
		{"unregistered", ""},
		{"jpg", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inf.InferEncodingFromType(tt.typ), "InferEncodingFromType(%q)", tt.typ)
	}
}

func TestInferTypeFromPath(t *testing.T) {
	inf := newInference(t)
	tests := []struct {
		path string
		want string
	}{
		{"notes.txt", "plain"},
		{"a/b/photo.JPG", ""},
		{"a/b/photo.jpg", "jpeg"},
		{"backup.tar.gz", "gztar"},
		{"backup.gz", ""},
		{"dir.txt/backup.tar.bz2", "bztar"},
		{".txt", ""},
		{".hidden.txt", "plain"},
		{"README", ""},
		{"2022-02-22_14-30-00.tar", "tar"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inf.InferTypeFromPath(tt.path), "InferTypeFromPath(%q)", tt.path)
	}
}

func TestAliasCheck(t *testing.T) {
	inf := newInference(t)
	assert.Equal(t, "jpeg", inf.AliasCheck("jpg"))
	assert.Equal(t, "markdown", inf.AliasCheck("md"))
	assert.Equal(t, "png", inf.AliasCheck("png"))
	assert.Equal(t, "whatever", inf.AliasCheck("whatever"))
}

func TestRegistryMutations(t *testing.T) {
	r := filetypes.NewRegistry()
	require.NoError(t, r.AddType("org", true, []string{".org"}, []string{"orgmode"}))
	require.Error(t, r.AddType("org", true, nil, nil))
	require.Error(t, r.AddExtension("plain", ".org"))
	require.Error(t, r.AddExtension("org", "org"))
	require.Error(t, r.AddAlias("plain", "org"))

	require.NoError(t, r.AddExtension("org", ".orgmode"))
	assert.Equal(t, ".org", r.DefaultExtension("org"))
	require.NoError(t, r.SetDefaultExtension("org", ".orgmode"))
	assert.Equal(t, ".orgmode", r.DefaultExtension("org"))
	assert.Equal(t, []string{".orgmode", ".org"}, r.Extensions("org"))

	require.NoError(t, r.RemoveExtension(".orgmode"))
	assert.Equal(t, ".org", r.DefaultExtension("org"))
	assert.Equal(t, []string{"orgmode"}, r.Aliases("org"))

	c := r.Clone()
	require.NoError(t, r.RemoveType("org"))
	assert.False(t, r.HasType("org"))
	assert.Equal(t, "", r.ExtensionType(".org"))
	assert.Equal(t, "orgmode", r.Resolve("orgmode"))

	assert.True(t, c.HasType("org"))
	assert.Equal(t, "org", c.Resolve("orgmode"))
}

func TestSuggest(t *testing.T) {
	r := filetypes.NewRegistry()
	require.NoError(t, filetypes.RegisterCommon(r))
	got := r.Suggest("mrkdn")
	require.NotEmpty(t, got)
	assert.Equal(t, "markdown", got[0])
	assert.Empty(t, r.Suggest("zzzzzz"))
}

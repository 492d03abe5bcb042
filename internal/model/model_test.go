package model_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/psp/internal/model"
)

var panelDate = civil.Date{Year: 2022, Month: 2, Day: 22}

func at(day, hour int) time.Time {
	return time.Date(2022, 2, day, hour, 0, 0, 0, time.UTC)
}

func textEntry(t *testing.T, ts time.Time, text string) *model.Entry {
	t.Helper()
	e, err := model.NewEntry(ts)
	require.NoError(t, err)
	require.NoError(t, e.SetText(text, "", ""))
	return e
}

func TestNewEntryDefaults(t *testing.T) {
	e, err := model.NewEntry(at(22, 10))
	require.NoError(t, err)
	assert.Equal(t, "binary", e.Type())
	assert.Equal(t, "binary", e.Encoding())
	assert.False(t, e.IsText())

	_, err = model.NewEntry(time.Time{})
	require.Error(t, err)
}

func TestAddEntryBeforePanelDate(t *testing.T) {
	p := model.NewPanel(panelDate)
	e := textEntry(t, time.Date(2022, 2, 21, 23, 59, 0, 0, time.UTC), "late")
	err := p.AddEntry(e)
	require.ErrorIs(t, err, model.ErrTimeBeforePanel)
	assert.Contains(t, err.Error(), "earlier than start of day of the parent panel (2022-02-22)")
	assert.Nil(t, e.Panel())

	// Same instant, but local time in +08:00 is already the panel's date.
	plus8 := time.FixedZone("", 8*3600)
	e2 := textEntry(t, time.Date(2022, 2, 22, 7, 59, 0, 0, plus8), "early")
	require.NoError(t, p.AddEntry(e2))
}

func TestInsightWindow(t *testing.T) {
	p := model.NewPanel(panelDate)
	e := textEntry(t, at(23, 12), "too soon")
	require.NoError(t, e.SetInsight(true))
	require.ErrorIs(t, p.AddEntry(e), model.ErrInsightTooEarly)

	ok := textEntry(t, at(24, 0), "fine")
	require.NoError(t, ok.SetInsight(true))
	require.NoError(t, p.AddEntry(ok))

	main := textEntry(t, at(23, 12), "main")
	require.NoError(t, p.AddEntry(main))
	require.ErrorIs(t, main.SetInsight(true), model.ErrInsightTooEarly)
	assert.False(t, main.Insight())

	// Sunday exception: 2022-02-20 is a Sunday.
	sat := model.NewPanel(civil.Date{Year: 2022, Month: 2, Day: 19})
	sunday := textEntry(t, at(20, 21), "weekly review")
	require.NoError(t, sunday.SetInsight(true))
	require.NoError(t, sat.AddEntry(sunday))
}

func TestAddEntryMovesBetweenPanels(t *testing.T) {
	a := model.NewPanel(panelDate)
	b := model.NewPanel(civil.Date{Year: 2022, Month: 2, Day: 23})
	e := textEntry(t, at(23, 9), "x")

	require.NoError(t, a.AddEntry(e))
	require.ErrorIs(t, a.AddEntry(e), model.ErrAlreadyAdded)
	require.NoError(t, b.AddEntry(e))
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 1, b.Len())
	assert.Same(t, b, e.Panel())

	// Moving to a panel the time does not fit keeps the old owner.
	c := model.NewPanel(civil.Date{Year: 2022, Month: 2, Day: 24})
	require.Error(t, c.AddEntry(e))
	assert.Same(t, b, e.Panel())

	require.ErrorIs(t, a.RemoveEntry(e), model.ErrNotInPanel)
	popped, err := b.PopEntry(0)
	require.NoError(t, err)
	assert.Same(t, e, popped)
	assert.Nil(t, e.Panel())
	_, err = b.PopEntry(0)
	require.Error(t, err)
}

func TestSetTimeRevalidates(t *testing.T) {
	p := model.NewPanel(panelDate)
	e := textEntry(t, at(22, 9), "x")
	require.NoError(t, p.AddEntry(e))
	require.Error(t, e.SetTime(at(21, 9)))
	assert.True(t, e.Time().Equal(at(22, 9)))
	require.NoError(t, e.SetTime(at(22, 11)))
}

func TestRawAndSourceAreExclusive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o600))

	e, err := model.NewEntry(at(22, 9))
	require.NoError(t, err)
	e.SetRaw([]byte{9})
	e.SetSource(path)
	raw, err := e.Raw()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw)

	same, err := e.SameContent(path)
	require.NoError(t, err)
	assert.True(t, same)

	e.SetRaw([]byte{1, 2})
	assert.Equal(t, "", e.Source())
	same, err = e.SameContent(path)
	require.NoError(t, err)
	assert.False(t, same)
}

func TestTextEncodings(t *testing.T) {
	e, err := model.NewEntry(at(22, 9))
	require.NoError(t, err)
	require.NoError(t, e.SetText("café", "plain", "ISO-8859-1"))
	raw, err := e.Raw()
	require.NoError(t, err)
	assert.Len(t, raw, 4)
	text, err := e.Text()
	require.NoError(t, err)
	assert.Equal(t, "café", text)

	require.Error(t, e.SetText("x", "plain", "binary"))

	bin, err := model.NewEntry(at(22, 9))
	require.NoError(t, err)
	_, err = bin.Text()
	require.True(t, errors.Is(err, model.ErrNotText))
}

func TestEntryEqual(t *testing.T) {
	a := textEntry(t, at(22, 9), "hello")
	b := textEntry(t, at(22, 9).In(time.FixedZone("", 3600)), "hello")
	assert.True(t, a.Equal(b))

	b.Attrs[model.AttrTitle] = "greeting"
	assert.False(t, a.Equal(b))
	a.Attrs[model.AttrTitle] = "greeting"
	assert.True(t, a.Equal(b))

	created := at(22, 8)
	a.Meta = &model.Metadata{Created: &created}
	b.Meta = &model.Metadata{Created: &created, Modified: &created}
	assert.True(t, a.Equal(b))

	b.SetFormat("")
	assert.False(t, a.Equal(b))

	c := a.Copy()
	assert.True(t, a.Equal(c))
	assert.Nil(t, c.Panel())
	c.Attrs[model.AttrTitle] = "changed"
	assert.Equal(t, "greeting", a.Attrs[model.AttrTitle])
}

func TestMetadataCopyIsDeep(t *testing.T) {
	m := &model.Metadata{Extra: map[string]any{"tags": []any{"a", "b"}}}
	c := m.Copy()
	c.Extra["tags"].([]any)[0] = "z"
	assert.Equal(t, "a", m.Extra["tags"].([]any)[0])
	assert.True(t, (*model.Metadata)(nil).Equal(&model.Metadata{}))
}

func TestMergePanels(t *testing.T) {
	p1 := model.NewPanel(panelDate)
	p1.SetRating(":)")
	late := textEntry(t, at(22, 20), "late")
	require.NoError(t, p1.AddEntry(late))

	p2 := model.NewPanel(panelDate)
	insight := textEntry(t, at(25, 8), "insight")
	require.NoError(t, insight.SetInsight(true))
	require.NoError(t, p2.AddEntry(insight))
	early := textEntry(t, at(22, 6), "early")
	require.NoError(t, p2.AddEntry(early))

	p3 := model.NewPanel(civil.Date{Year: 2022, Month: 2, Day: 21})

	merged, err := model.MergePanels([]*model.Panel{p1, p2, p3})
	require.NoError(t, err)
	require.Len(t, merged, 2)
	assert.Same(t, p3, merged[0])
	assert.Equal(t, []*model.Entry{early, late, insight}, merged[1].Entries())
	r, ok := merged[1].Rating()
	assert.True(t, ok)
	assert.Equal(t, ":)", r)

	c1 := model.NewPanel(panelDate)
	c1.SetRating("a")
	c2 := model.NewPanel(panelDate)
	c2.SetRating("b")
	_, err = model.MergePanels([]*model.Panel{c1, c2})
	require.Error(t, err)
}

func TestBundleText(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("doc/index.md")
	require.NoError(t, err)
	_, err = w.Write([]byte("# Title"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	e, err := model.NewEntry(at(22, 9))
	require.NoError(t, err)
	e.SetType(model.FormatZip)
	e.SetRaw(buf.Bytes())
	e.Bundle = &model.Bundle{MainFile: "doc/index.md", Type: "markdown", Encoding: "utf-8"}

	text, err := e.BundleText()
	require.NoError(t, err)
	assert.Equal(t, "# Title", text)

	e.Bundle.MainFile = "missing.md"
	_, err = e.BundleText()
	require.Error(t, err)
}

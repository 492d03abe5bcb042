package storage_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/Tiliavir/psp/internal/archive"
	"github.com/Tiliavir/psp/internal/model"
	"github.com/Tiliavir/psp/internal/storage"
)

var day = civil.Date{Year: 2026, Month: 2, Day: 27}

func newPanel(t *testing.T, date civil.Date, texts ...string) *model.Panel {
	t.Helper()
	p := model.NewPanel(date)
	for i, text := range texts {
		e, err := model.NewEntry(time.Date(date.Year, date.Month, date.Day, 9+i, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("NewEntry: %v", err)
		}
		if err := e.SetText(text, "", ""); err != nil {
			t.Fatalf("SetText: %v", err)
		}
		if err := p.AddEntry(e); err != nil {
			t.Fatalf("AddEntry: %v", err)
		}
	}
	return p
}

func TestLoadArchiveNotExist(t *testing.T) {
	_, err := storage.LoadArchive(filepath.Join(t.TempDir(), "backup.json"), storage.Options{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadArchive on missing file: err = %v, want os.ErrNotExist", err)
	}
}

func TestSaveArchiveAndLoadArchive(t *testing.T) {
	dir := t.TempDir()
	panel := newPanel(t, day, "first", "second")

	path, err := storage.SaveArchive(dir, "backup.json", []*model.Panel{panel}, storage.Options{}, false)
	if err != nil {
		t.Fatalf("SaveArchive: %v", err)
	}
	if path != filepath.Join(dir, "backup.json") {
		t.Errorf("SaveArchive path = %q", path)
	}

	arch, err := storage.LoadArchive(path, storage.Options{})
	if err != nil {
		t.Fatalf("LoadArchive after save: %v", err)
	}
	if len(arch.Panels) != 1 {
		t.Fatalf("LoadArchive panels = %d, want 1", len(arch.Panels))
	}
	if !arch.Panels[0].Equal(panel) {
		t.Errorf("loaded panel differs from the saved one")
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestSaveArchiveExists(t *testing.T) {
	dir := t.TempDir()
	panels := []*model.Panel{newPanel(t, day, "x")}
	if _, err := storage.SaveArchive(dir, "backup.json", panels, storage.Options{}, false); err != nil {
		t.Fatalf("SaveArchive: %v", err)
	}
	_, err := storage.SaveArchive(dir, "backup.json", panels, storage.Options{}, false)
	if !errors.Is(err, storage.ErrExists) {
		t.Errorf("second SaveArchive: err = %v, want ErrExists", err)
	}
	if _, err := storage.SaveArchive(dir, "backup.json", panels, storage.Options{}, true); err != nil {
		t.Errorf("SaveArchive with overwrite: %v", err)
	}
}

func TestSaveArchiveEncoding(t *testing.T) {
	dir := t.TempDir()
	opts := storage.Options{Encoding: "ISO-8859-1"}
	panel := newPanel(t, day, "café")

	path, err := storage.SaveArchive(dir, "backup.json", []*model.Panel{panel}, opts, false)
	if err != nil {
		t.Fatalf("SaveArchive: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.IndexByte(raw, 0xe9) < 0 {
		t.Errorf("archive is not ISO-8859-1 encoded: %q", raw)
	}

	got, err := storage.LoadPanel(path, day, opts)
	if err != nil {
		t.Fatalf("LoadPanel: %v", err)
	}
	text, _ := got.Entry(0).Text()
	if text != "café" {
		t.Errorf("loaded text = %q, want %q", text, "café")
	}
}

func TestLoadPanelMergesAndMisses(t *testing.T) {
	dir := t.TempDir()
	panels := []*model.Panel{newPanel(t, day, "a"), newPanel(t, day.AddDays(1), "b")}
	// a second panel for the same date
	late := newPanel(t, day)
	e, _ := model.NewEntry(time.Date(2026, 2, 27, 20, 0, 0, 0, time.UTC))
	_ = e.SetText("c", "", "")
	_ = late.AddEntry(e)
	panels = append(panels, late)

	path, err := storage.SaveArchive(dir, "backup.json", panels, storage.Options{}, false)
	if err != nil {
		t.Fatalf("SaveArchive: %v", err)
	}

	opts := storage.Options{Loader: archive.LoaderConfig{Warnings: archive.WarnIgnore}}
	p, err := storage.LoadPanel(path, day, opts)
	if err != nil {
		t.Fatalf("LoadPanel: %v", err)
	}
	if p.Len() != 2 {
		t.Errorf("merged panel entries = %d, want 2", p.Len())
	}

	_, err = storage.LoadPanel(path, day.AddDays(7), opts)
	if !errors.Is(err, storage.ErrPanelNotFound) {
		t.Errorf("LoadPanel on missing date: err = %v, want ErrPanelNotFound", err)
	}
}

func TestSaveArchiveCleansUpOnFailure(t *testing.T) {
	dir := t.TempDir()
	good, _ := model.NewEntry(time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC))
	good.SetRaw([]byte{1, 2, 3})
	bad, _ := model.NewEntry(time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC))
	bad.SetRaw([]byte{4, 5, 6})
	bad.Attrs["unknown"] = "x"
	p := model.NewPanel(day)
	_ = p.AddEntry(good)
	_ = p.AddEntry(bad)

	if _, err := storage.SaveArchive(dir, "backup.json", []*model.Panel{p}, storage.Options{}, false); err == nil {
		t.Fatal("SaveArchive succeeded with an unsupported attribute")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("files left behind after a failed save: %v", entries)
	}
}

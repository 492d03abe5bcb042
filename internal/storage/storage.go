package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"

	"github.com/Tiliavir/psp/internal/archive"
	"github.com/Tiliavir/psp/internal/model"
	"github.com/Tiliavir/psp/internal/textenc"
)

var (
	// ErrExists is returned by SaveArchive when the target exists and
	// overwriting was not requested.
	ErrExists = errors.New("archive already exists")
	// ErrPanelNotFound is returned by LoadPanel when no panel has the date.
	ErrPanelNotFound = errors.New("no panel for date")
)

// Options configures how archive files are read and written.
type Options struct {
	// Encoding is the text encoding of the archive file. Empty means utf-8.
	Encoding string
	Loader   archive.LoaderConfig
	Dumper   archive.DumperConfig
}

// LoadArchive loads the archive at path. Input paths are resolved relative
// to the file's directory unless opts.Loader.BaseDir is set.
func LoadArchive(path string, opts Options) (*archive.Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage error reading %s: %w", path, err)
	}
	text, err := decode(data, opts.Encoding)
	if err != nil {
		return nil, fmt.Errorf("storage error decoding %s: %w", path, err)
	}

	cfg := opts.Loader
	if cfg.BaseDir == "" {
		cfg.BaseDir = filepath.Dir(path)
	}
	l, err := archive.NewLoader(cfg)
	if err != nil {
		return nil, err
	}
	arch, err := l.Load(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return arch, nil
}

// LoadPanel loads the archive at path and returns the panel for date.
// Several panels with that date are merged into one.
func LoadPanel(path string, date civil.Date, opts Options) (*model.Panel, error) {
	arch, err := LoadArchive(path, opts)
	if err != nil {
		return nil, err
	}
	var found []*model.Panel
	for _, p := range arch.Panels {
		if p.Date() == date {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w %s in %s", ErrPanelNotFound, date, path)
	}
	merged, err := model.MergePanels(found)
	if err != nil {
		return nil, fmt.Errorf("merging panels of %s: %w", date, err)
	}
	return merged[0], nil
}

// SaveArchive dumps panels to dir/name and returns the written path.
// Payloads are exported below dir unless opts.Dumper.BaseDir is set. The
// archive is written atomically; on failure exported files are removed.
func SaveArchive(dir, name string, panels []*model.Panel, opts Options, overwrite bool) (string, error) {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil && !overwrite {
		return "", fmt.Errorf("%w: %s", ErrExists, path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage error creating directories: %w", err)
	}

	cfg := opts.Dumper
	if cfg.BaseDir == "" {
		cfg.BaseDir = dir
	}
	d, err := archive.NewDumper(cfg)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := d.Dump(&buf, panels); err != nil {
		return "", err
	}
	data, err := encode(buf.String(), opts.Encoding)
	if err != nil {
		d.Cleanup()
		return "", fmt.Errorf("storage error encoding archive: %w", err)
	}

	// Atomic write: write to temp file then rename.
	tmpPath := filepath.Join(dir, "."+name+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		d.Cleanup()
		return "", fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		d.Cleanup()
		return "", fmt.Errorf("storage error renaming temp file: %w", err)
	}
	return path, nil
}

func decode(data []byte, enc string) (string, error) {
	if enc == "" || textenc.IsUTF8(enc) {
		out, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	return textenc.Decode(data, enc)
}

func encode(text, enc string) ([]byte, error) {
	if enc == "" || textenc.IsUTF8(enc) {
		return []byte(text), nil
	}
	return textenc.Encode(text, enc)
}

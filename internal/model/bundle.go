package model

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/Tiliavir/psp/internal/textenc"
)

// Archive formats a bundle payload may have.
const (
	FormatZip   = "zip"
	FormatTar   = "tar"
	FormatGzTar = "gztar"
	FormatBzTar = "bztar"
)

// SupportedBundle reports whether format can be read as a bundle.
func SupportedBundle(format string) bool {
	switch format {
	case FormatZip, FormatTar, FormatGzTar, FormatBzTar:
		return true
	}
	return false
}

// Bundle describes an entry whose payload is an archive of several files,
// one of which is the main text.
type Bundle struct {
	MainFile string
	Type     string
	Format   string
	HasFmt   bool
	Encoding string
}

func (b *Bundle) Equal(o *Bundle) bool {
	if b == nil || o == nil {
		return b == o
	}
	return *b == *o
}

// BundleText extracts and decodes the main file of a bundle entry.
func (e *Entry) BundleText() (string, error) {
	if e.Bundle == nil {
		return "", errors.New("entry is not a bundle")
	}
	r, err := e.Open()
	if err != nil {
		return "", err
	}
	defer r.Close()
	raw, err := readMember(e.typ, r, e.Bundle.MainFile)
	if err != nil {
		return "", err
	}
	return textenc.Decode(raw, e.Bundle.Encoding)
}

func readMember(format string, r io.Reader, name string) ([]byte, error) {
	name = path.Clean(name)
	switch format {
	case FormatZip:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("reading zip bundle: %w", err)
		}
		f, err := zr.Open(name)
		if err != nil {
			return nil, fmt.Errorf("main file %q: %w", name, err)
		}
		defer f.Close()
		return io.ReadAll(f)
	case FormatTar:
	case FormatGzTar:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("reading gztar bundle: %w", err)
		}
		defer gz.Close()
		r = gz
	case FormatBzTar:
		r = bzip2.NewReader(r)
	default:
		return nil, fmt.Errorf("unsupported bundle format %q", format)
	}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("main file %q not found in bundle", name)
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s bundle: %w", format, err)
		}
		if hdr.FileInfo().Mode().IsRegular() && path.Clean(hdr.Name) == name {
			return io.ReadAll(tr)
		}
	}
}

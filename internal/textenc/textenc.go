// Package textenc resolves text-encoding names and transcodes between them
// and UTF-8.
package textenc

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// Binary is the pseudo-encoding of opaque payloads.
const Binary = "binary"

// Lookup returns the encoding registered under name. IANA names are tried
// first, then WHATWG labels.
func Lookup(name string) (encoding.Encoding, error) {
	if IsUTF8(name) {
		return unicode.UTF8, nil
	}
	if name == "" || name == Binary {
		return nil, fmt.Errorf("%q is not a text encoding", name)
	}
	if enc, err := ianaindex.IANA.Encoding(name); err == nil && enc != nil {
		return enc, nil
	}
	if enc, err := htmlindex.Get(name); err == nil {
		return enc, nil
	}
	return nil, fmt.Errorf("unknown text encoding %q", name)
}

// IsUTF8 reports whether name denotes UTF-8.
func IsUTF8(name string) bool {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "utf-8", "utf8", "u8":
		return true
	}
	return false
}

// Decode converts raw bytes in the named encoding to a string.
func Decode(raw []byte, name string) (string, error) {
	if IsUTF8(name) {
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("payload is not valid %s", name)
		}
		return string(raw), nil
	}
	enc, err := Lookup(name)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", name, err)
	}
	return string(out), nil
}

// Encode converts text to the named encoding.
func Encode(text, name string) ([]byte, error) {
	if IsUTF8(name) {
		return []byte(text), nil
	}
	enc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	out, err := enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", name, err)
	}
	return out, nil
}

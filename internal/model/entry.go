package model

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"time"

	"github.com/Tiliavir/psp/internal/textenc"
	"github.com/Tiliavir/psp/internal/timecalc"
)

// Attribute keys carried by entries.
const (
	AttrTitle         = "title"
	AttrQuestion      = "question"
	AttrCaption       = "caption"
	AttrTranscription = "transcription"
)

// AttrKeys lists the attribute keys in serialisation order.
var AttrKeys = []string{AttrQuestion, AttrTitle, AttrCaption, AttrTranscription}

// Binary is the encoding of opaque payloads.
const Binary = textenc.Binary

var (
	ErrTimeBeforePanel = errors.New("entry time earlier than start of day of the parent panel")
	ErrInsightTooEarly = errors.New("insight entry too close to the date of the parent panel")
	ErrNotText         = errors.New("entry does not hold text")
)

// Entry is one timestamped note. The payload is either held in memory or
// read from a source file; setting one clears the other.
type Entry struct {
	panel *Panel

	time     time.Time
	insight  bool
	typ      string
	format   string
	hasFmt   bool
	encoding string

	raw    []byte
	source string

	// Attrs holds the optional string attributes (see AttrKeys).
	Attrs map[string]string
	// Meta is nil when the entry has no metadata.
	Meta *Metadata
	// Bundle is set when the payload is an archive with a main text file.
	Bundle *Bundle
}

// NewEntry returns a binary entry without payload at t.
func NewEntry(t time.Time) (*Entry, error) {
	if t.IsZero() {
		return nil, errors.New("entry time must be set")
	}
	return &Entry{
		time:     t,
		typ:      Binary,
		encoding: Binary,
		Attrs:    map[string]string{},
	}, nil
}

// InvariantError reports an entry whose time does not fit its panel. It
// unwraps to ErrTimeBeforePanel or ErrInsightTooEarly.
type InvariantError struct {
	Kind error
	Msg  string
}

func (e *InvariantError) Error() string { return e.Msg }

func (e *InvariantError) Unwrap() error { return e.Kind }

func checkTime(p *Panel, t time.Time, insight bool) error {
	if p == nil {
		return nil
	}
	day := timecalc.DateOf(t)
	if day.Before(p.date) {
		return &InvariantError{ErrTimeBeforePanel, fmt.Sprintf(
			"entry time (%s) earlier than start of day of the parent panel (%s)",
			timecalc.FormatDateTime(t, false), p.date)}
	}
	if insight && !timecalc.InsightAllowed(p.date, day) {
		return &InvariantError{ErrInsightTooEarly, fmt.Sprintf(
			"insight entry time (%s) is less than two days after the parent panel (%s)",
			timecalc.FormatDateTime(t, false), p.date)}
	}
	return nil
}

// Panel returns the owning panel, or nil.
func (e *Entry) Panel() *Panel { return e.panel }

func (e *Entry) Time() time.Time { return e.time }

// SetTime changes the timestamp, validating it against the owning panel.
func (e *Entry) SetTime(t time.Time) error {
	if t.IsZero() {
		return errors.New("entry time must be set")
	}
	if err := checkTime(e.panel, t, e.insight); err != nil {
		return err
	}
	e.time = t
	return nil
}

func (e *Entry) Insight() bool { return e.insight }

// SetInsight changes the insight flag, validating it against the owning panel.
func (e *Entry) SetInsight(insight bool) error {
	if err := checkTime(e.panel, e.time, insight); err != nil {
		return err
	}
	e.insight = insight
	return nil
}

func (e *Entry) Type() string { return e.typ }

func (e *Entry) SetType(typ string) { e.typ = typ }

// Format returns the sub-type and whether one is set.
func (e *Entry) Format() (string, bool) { return e.format, e.hasFmt }

func (e *Entry) SetFormat(format string) {
	e.format, e.hasFmt = format, true
}

func (e *Entry) ClearFormat() {
	e.format, e.hasFmt = "", false
}

func (e *Entry) Encoding() string { return e.encoding }

func (e *Entry) SetEncoding(enc string) { e.encoding = enc }

// IsText reports whether the payload is text.
func (e *Entry) IsText() bool { return e.encoding != Binary }

// SetRaw stores the payload in memory.
func (e *Entry) SetRaw(raw []byte) {
	e.raw = bytes.Clone(raw)
	if e.raw == nil {
		e.raw = []byte{}
	}
	e.source = ""
}

// SetSource makes the payload the content of the file at path.
func (e *Entry) SetSource(path string) {
	e.source = path
	e.raw = nil
}

// Source returns the payload file, or "" when the payload is in memory.
func (e *Entry) Source() string { return e.source }

// Raw returns the payload bytes.
func (e *Entry) Raw() ([]byte, error) {
	if e.source != "" {
		return os.ReadFile(e.source)
	}
	return e.raw, nil
}

// Open returns a reader over the payload.
func (e *Entry) Open() (io.ReadCloser, error) {
	if e.source != "" {
		return os.Open(e.source)
	}
	return io.NopCloser(bytes.NewReader(e.raw)), nil
}

// Size returns the payload length in bytes.
func (e *Entry) Size() (int64, error) {
	if e.source != "" {
		st, err := os.Stat(e.source)
		if err != nil {
			return 0, err
		}
		return st.Size(), nil
	}
	return int64(len(e.raw)), nil
}

// SetText stores text as the payload. Empty typ and enc default to "plain"
// and "utf-8".
func (e *Entry) SetText(text, typ, enc string) error {
	if typ == "" {
		typ = "plain"
	}
	if enc == "" {
		enc = "utf-8"
	}
	if enc == Binary {
		return fmt.Errorf("cannot store text with encoding %q", enc)
	}
	raw, err := textenc.Encode(text, enc)
	if err != nil {
		return err
	}
	e.SetRaw(raw)
	e.typ, e.encoding = typ, enc
	return nil
}

// Text decodes the payload using the entry's encoding.
func (e *Entry) Text() (string, error) {
	if !e.IsText() {
		return "", ErrNotText
	}
	raw, err := e.Raw()
	if err != nil {
		return "", err
	}
	return textenc.Decode(raw, e.encoding)
}

// SameContent reports whether the file at path holds exactly the payload.
func (e *Entry) SameContent(path string) (bool, error) {
	if e.source != "" {
		a, errA := os.Stat(e.source)
		b, errB := os.Stat(path)
		if errA == nil && errB == nil && os.SameFile(a, b) {
			return true, nil
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	r, err := e.Open()
	if err != nil {
		return false, err
	}
	defer r.Close()
	return readersEqual(r, f)
}

func readersEqual(a, b io.Reader) (bool, error) {
	ra, rb := bufio.NewReader(a), bufio.NewReader(b)
	for {
		ca, errA := ra.ReadByte()
		cb, errB := rb.ReadByte()
		if errA == io.EOF || errB == io.EOF {
			return errA == errB, nil
		}
		if errA != nil {
			return false, errA
		}
		if errB != nil {
			return false, errB
		}
		if ca != cb {
			return false, nil
		}
	}
}

// Equal compares time instants, flags, type, format, payload and the
// optional attributes. Text payloads compare by decoded text.
func (e *Entry) Equal(o *Entry) bool {
	if e == o {
		return true
	}
	if e == nil || o == nil {
		return false
	}
	if !e.time.Equal(o.time) || e.insight != o.insight || e.typ != o.typ ||
		e.format != o.format || e.hasFmt != o.hasFmt || e.IsText() != o.IsText() {
		return false
	}
	if !attrsEqual(e.Attrs, o.Attrs) || !e.Meta.Equal(o.Meta) || !e.Bundle.Equal(o.Bundle) {
		return false
	}
	if e.IsText() {
		a, errA := e.Text()
		b, errB := o.Text()
		if errA == nil && errB == nil {
			return a == b
		}
	}
	a, errA := e.Raw()
	b, errB := o.Raw()
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

func attrsEqual(a, b map[string]string) bool {
	return maps.Equal(a, b) || (len(a) == 0 && len(b) == 0)
}

// Copy returns a detached deep copy of e.
func (e *Entry) Copy() *Entry {
	c := *e
	c.panel = nil
	c.raw = bytes.Clone(e.raw)
	c.Attrs = maps.Clone(e.Attrs)
	if c.Attrs == nil {
		c.Attrs = map[string]string{}
	}
	c.Meta = e.Meta.Copy()
	if e.Bundle != nil {
		b := *e.Bundle
		c.Bundle = &b
	}
	return &c
}

package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// LoadError is a fatal problem in the archive being loaded.
type LoadError struct {
	Msg string
	Err error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *LoadError) Unwrap() error { return e.Err }

func loadErrorf(format string, args ...any) error {
	return &LoadError{Msg: fmt.Sprintf(format, args...)}
}

// DumpError is a fatal problem while dumping.
type DumpError struct {
	Msg string
	Err error
}

func (e *DumpError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *DumpError) Unwrap() error { return e.Err }

func dumpErrorf(format string, args ...any) error {
	return &DumpError{Msg: fmt.Sprintf(format, args...)}
}

// PositionError locates an error inside the archive. Panel and Entry are
// 1-based; zero means "not applicable".
type PositionError struct {
	Panel int
	Date  string
	Entry int
	Err   error
}

func (e *PositionError) Error() string {
	var b strings.Builder
	if e.Panel > 0 {
		fmt.Fprintf(&b, "panel #%d", e.Panel)
		if e.Date != "" {
			fmt.Fprintf(&b, " (%s)", e.Date)
		}
	}
	if e.Entry > 0 {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "entry #%d", e.Entry)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *PositionError) Unwrap() error { return e.Err }

// WarningKind classifies warnings so callers can filter or escalate them.
type WarningKind string

const (
	WarnUnknownKey    WarningKind = "unknown-key"
	WarnMootKey       WarningKind = "moot-key"
	WarnEncoding      WarningKind = "encoding"
	WarnAmbiguousPath WarningKind = "ambiguous-path"
	WarnPanelOrder    WarningKind = "panel-order"
	WarnDuplicateDate WarningKind = "duplicate-date"
	WarnEntryOrder    WarningKind = "entry-order"
	WarnNotShortest   WarningKind = "not-shortest"
)

// Warning is a non-fatal finding. It implements error so that an escalated
// warning can be returned as is.
type Warning struct {
	Kind WarningKind
	// Op is "load" or "dump".
	Op  string
	Msg string

	// Panel and Entry are 1-based indices, zero when the warning is not
	// about a particular panel or entry.
	Panel int
	Date  string
	Entry int
}

func (w *Warning) Error() string { return w.Msg }

// WarningPolicy decides what happens to a warning.
type WarningPolicy int

const (
	// WarnEmit logs and collects the warning.
	WarnEmit WarningPolicy = iota
	// WarnIgnore drops the warning.
	WarnIgnore
	// WarnError turns the warning into an error.
	WarnError
)

// PolicyFromLevel maps a numeric warning level to a policy: 0 suppresses,
// 1 emits and 2 or more escalates.
func PolicyFromLevel(level int) WarningPolicy {
	switch {
	case level <= 0:
		return WarnIgnore
	case level == 1:
		return WarnEmit
	default:
		return WarnError
	}
}

type warner struct {
	op       string
	policy   WarningPolicy
	perKind  map[WarningKind]WarningPolicy
	logger   *slog.Logger
	onWarn   func(*Warning)
	warnings []*Warning

	panel int
	date  string
	entry int
}

// at sets the position attached to the following warnings.
func (w *warner) at(panel int, date string, entry int) {
	w.panel, w.date, w.entry = panel, date, entry
}

// warn applies the policy and returns the warning when it is escalated.
func (w *warner) warn(kind WarningKind, msg string, attrs ...any) error {
	policy := w.policy
	if p, ok := w.perKind[kind]; ok {
		policy = p
	}
	wr := &Warning{Kind: kind, Op: w.op, Msg: msg, Panel: w.panel, Date: w.date, Entry: w.entry}
	switch policy {
	case WarnIgnore:
		return nil
	case WarnError:
		return wr
	}
	w.warnings = append(w.warnings, wr)
	args := []any{"op", w.op, "kind", string(kind)}
	if w.panel > 0 {
		args = append(args, "panel", w.panel)
	}
	if w.date != "" {
		args = append(args, "date", w.date)
	}
	if w.entry > 0 {
		args = append(args, "entry", w.entry)
	}
	w.logger.Log(context.Background(), slog.LevelWarn, msg, append(args, attrs...)...)
	if w.onWarn != nil {
		w.onWarn(wr)
	}
	return nil
}

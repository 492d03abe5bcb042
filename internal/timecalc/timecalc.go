package timecalc

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// ErrNaive is returned when a timestamp carries no offset and no default
// zone is available.
var ErrNaive = errors.New("time zone is not provided")

var (
	zoneRe   = regexp.MustCompile(`^(?:UTC|GMT)?([+-]\d{2}:\d{2}(?::\d{2}(?:\.\d{1,6})?)?)$`)
	offsetRe = regexp.MustCompile(`^([+-])(\d{2}):(\d{2})(?::(\d{2})(?:\.(\d{1,6}))?)?$`)
	clockRe  = regexp.MustCompile(`^(\d{2})(?::(\d{2})(?::(\d{2})(?:[.,](\d{1,9}))?)?)?(Z|[+-].+)?$`)
)

// ParseZone parses "UTC", "GMT" or a fixed offset such as "+08:00",
// "UTC-03:30" or "+05:45:30".
func ParseZone(s string) (*time.Location, error) {
	if s == "UTC" || s == "GMT" {
		return time.UTC, nil
	}
	m := zoneRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("invalid time zone %q", s)
	}
	return parseOffset(m[1])
}

func parseOffset(s string) (*time.Location, error) {
	if s == "Z" {
		return time.UTC, nil
	}
	m := offsetRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("invalid UTC offset %q", s)
	}
	h, _ := strconv.Atoi(m[2])
	mm, _ := strconv.Atoi(m[3])
	sec := 0
	if m[4] != "" {
		sec, _ = strconv.Atoi(m[4])
	}
	if m[5] != "" && strings.Trim(m[5], "0") != "" {
		return nil, fmt.Errorf("UTC offset %q has sub-second precision", s)
	}
	if mm >= 60 || sec >= 60 {
		return nil, fmt.Errorf("invalid UTC offset %q", s)
	}
	off := h*3600 + mm*60 + sec
	if off >= 24*3600 {
		return nil, fmt.Errorf("UTC offset %q out of range", s)
	}
	if m[1] == "-" {
		off = -off
	}
	return time.FixedZone(FormatOffset(off), off), nil
}

// Offset returns the UTC offset of loc in seconds. Locations are expected
// to be fixed zones, so the reference instant does not matter.
func Offset(loc *time.Location) int {
	_, off := time.Date(2000, 1, 1, 0, 0, 0, 0, loc).Zone()
	return off
}

// FormatZone is the inverse of ParseZone.
func FormatZone(loc *time.Location) string {
	if loc == time.UTC {
		return "UTC"
	}
	return FormatOffset(Offset(loc))
}

// FormatOffset formats an offset in seconds as ±HH:MM[:SS].
func FormatOffset(off int) string {
	sign := '+'
	if off < 0 {
		sign = '-'
		off = -off
	}
	s := fmt.Sprintf("%c%02d:%02d", sign, off/3600, off%3600/60)
	if sec := off % 60; sec != 0 {
		s += fmt.Sprintf(":%02d", sec)
	}
	return s
}

// SameOffset reports whether t has the offset of loc.
func SameOffset(t time.Time, loc *time.Location) bool {
	_, off := t.Zone()
	return off == Offset(loc)
}

// ParseDate parses an ISO YYYY-MM-DD date.
func ParseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q", s)
	}
	return d, nil
}

// Clock is a time of day with an optional zone.
type Clock struct {
	Hour, Minute, Second, Nanosecond int
	// Loc is nil when the string carried no offset.
	Loc *time.Location
}

// ParseClock parses HH[:MM[:SS[.fffffffff]]] with an optional "Z" or ±HH:MM
// suffix.
func ParseClock(s string) (Clock, error) {
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, fmt.Errorf("invalid time %q", s)
	}
	var c Clock
	c.Hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		c.Minute, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		c.Second, _ = strconv.Atoi(m[3])
	}
	if m[4] != "" {
		frac := m[4] + strings.Repeat("0", 9-len(m[4]))
		c.Nanosecond, _ = strconv.Atoi(frac)
	}
	if c.Hour > 23 || c.Minute > 59 || c.Second > 59 {
		return Clock{}, fmt.Errorf("invalid time %q", s)
	}
	if m[5] != "" {
		loc, err := parseOffset(m[5])
		if err != nil {
			return Clock{}, fmt.Errorf("invalid time %q: %w", s, err)
		}
		c.Loc = loc
	}
	return c, nil
}

// Combine places c on date d. The clock's own zone wins over def; ErrNaive
// is returned when neither is set.
func Combine(d civil.Date, c Clock, def *time.Location) (time.Time, error) {
	loc := c.Loc
	if loc == nil {
		loc = def
	}
	if loc == nil {
		return time.Time{}, ErrNaive
	}
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, c.Second, c.Nanosecond, loc), nil
}

// ParseDateTime parses "YYYY-MM-DD[?HH[:MM[:SS[.f]]][offset]]" where ? is
// any single separator character, usually "T" or a space.
func ParseDateTime(s string, def *time.Location) (time.Time, error) {
	if len(s) < 10 {
		return time.Time{}, fmt.Errorf("invalid date-time %q", s)
	}
	d, err := ParseDate(s[:10])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date-time %q", s)
	}
	c := Clock{}
	if len(s) > 10 {
		if len(s) == 11 {
			return time.Time{}, fmt.Errorf("invalid date-time %q", s)
		}
		if c, err = ParseClock(s[11:]); err != nil {
			return time.Time{}, fmt.Errorf("invalid date-time %q", s)
		}
	}
	return Combine(d, c, def)
}

// FormatDateTime renders t as "YYYY-MM-DD HH:MM[:SS[.ffffff]]±HH:MM". Seconds
// are left out when both seconds and the fraction are zero; the offset is
// left out when naive is set.
func FormatDateTime(t time.Time, naive bool) string {
	s := t.Format("2006-01-02 15:04")
	if t.Second() != 0 || t.Nanosecond() != 0 {
		s += t.Format(":05")
		s += fraction(t.Nanosecond())
	}
	if !naive {
		_, off := t.Zone()
		s += FormatOffset(off)
	}
	return s
}

// FormatClock is FormatDateTime without the date.
func FormatClock(t time.Time, naive bool) string {
	return FormatDateTime(t, naive)[11:]
}

// ExportStamp renders the wall time of t for use in a file name, e.g.
// "2022-02-22_14-30-00".
func ExportStamp(t time.Time) string {
	return t.Format("2006-01-02_15-04-05") + fraction(t.Nanosecond())
}

func fraction(ns int) string {
	switch {
	case ns == 0:
		return ""
	case ns%1000 == 0:
		return fmt.Sprintf(".%06d", ns/1000)
	default:
		return fmt.Sprintf(".%09d", ns)
	}
}

// InsightAllowed reports whether an insight written on entry may belong to
// the panel of the given date. Insights need two days of distance, unless
// they were written on a Sunday following the panel's date.
func InsightAllowed(panel, entry civil.Date) bool {
	if !entry.Before(panel.AddDays(2)) {
		return true
	}
	return entry != panel && entry.In(time.UTC).Weekday() == time.Sunday
}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) civil.Date {
	return civil.DateOf(t)
}

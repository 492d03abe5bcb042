package timecalc_test

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/Tiliavir/psp/internal/timecalc"
)

func TestParseZone(t *testing.T) {
	tests := []struct {
		in      string
		offset  int
		wantErr bool
	}{
		{"UTC", 0, false},
		{"GMT", 0, false},
		{"+08:00", 8 * 3600, false},
		{"UTC-03:30", -(3*3600 + 30*60), false},
		{"+05:45:30", 5*3600 + 45*60 + 30, false},
		{"+05:45:30.000", 5*3600 + 45*60 + 30, false},
		{"+05:45:30.5", 0, true},
		{"08:00", 0, true},
		{"+24:00", 0, true},
		{"Europe/Berlin", 0, true},
	}
	for _, tt := range tests {
		loc, err := timecalc.ParseZone(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseZone(%q) succeeded, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseZone(%q): %v", tt.in, err)
			continue
		}
		if got := timecalc.Offset(loc); got != tt.offset {
			t.Errorf("ParseZone(%q) offset = %d, want %d", tt.in, got, tt.offset)
		}
	}
}

func TestFormatZone(t *testing.T) {
	tests := []struct {
		loc  *time.Location
		want string
	}{
		{time.UTC, "UTC"},
		{time.FixedZone("", 0), "+00:00"},
		{time.FixedZone("", 8*3600), "+08:00"},
		{time.FixedZone("", -(9*3600 + 30*60)), "-09:30"},
		{time.FixedZone("", 3600 + 7), "+01:00:07"},
	}
	for _, tt := range tests {
		if got := timecalc.FormatZone(tt.loc); got != tt.want {
			t.Errorf("FormatZone(%v) = %q, want %q", tt.loc, got, tt.want)
		}
	}
}

func TestParseDateTime(t *testing.T) {
	plus8 := time.FixedZone("", 8*3600)
	tests := []struct {
		in   string
		def  *time.Location
		want time.Time
	}{
		{"2022-02-22 14:22+00:00", nil, time.Date(2022, 2, 22, 14, 22, 0, 0, time.UTC)},
		{"2022-02-22T14:22:05.5Z", nil, time.Date(2022, 2, 22, 14, 22, 5, 500000000, time.UTC)},
		{"2022-02-22 14:22", plus8, time.Date(2022, 2, 22, 14, 22, 0, 0, plus8)},
		{"2022-02-22 14:22-01:00", plus8, time.Date(2022, 2, 22, 15, 22, 0, 0, time.UTC)},
		{"2022-02-22", time.UTC, time.Date(2022, 2, 22, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := timecalc.ParseDateTime(tt.in, tt.def)
		if err != nil {
			t.Errorf("ParseDateTime(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseDateTime(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseDateTimeNaive(t *testing.T) {
	_, err := timecalc.ParseDateTime("2022-02-22 14:22", nil)
	if !errors.Is(err, timecalc.ErrNaive) {
		t.Errorf("ParseDateTime naive error = %v, want ErrNaive", err)
	}
}

func TestParseClockInvalid(t *testing.T) {
	for _, in := range []string{"", "1:00", "25:00", "12:60", "12:00:00+8", "noon"} {
		if _, err := timecalc.ParseClock(in); err == nil {
			t.Errorf("ParseClock(%q) succeeded, want error", in)
		}
	}
}

func TestFormatDateTime(t *testing.T) {
	plus8 := time.FixedZone("", 8*3600)
	tests := []struct {
		t     time.Time
		naive bool
		want  string
	}{
		{time.Date(2022, 2, 22, 14, 22, 0, 0, time.UTC), false, "2022-02-22 14:22+00:00"},
		{time.Date(2022, 2, 22, 14, 22, 7, 0, plus8), false, "2022-02-22 14:22:07+08:00"},
		{time.Date(2022, 2, 22, 14, 22, 0, 1000, plus8), false, "2022-02-22 14:22:00.000001+08:00"},
		{time.Date(2022, 2, 22, 14, 22, 0, 0, plus8), true, "2022-02-22 14:22"},
	}
	for _, tt := range tests {
		if got := timecalc.FormatDateTime(tt.t, tt.naive); got != tt.want {
			t.Errorf("FormatDateTime(%v, %v) = %q, want %q", tt.t, tt.naive, got, tt.want)
		}
	}
	if got := timecalc.FormatClock(time.Date(2022, 2, 22, 9, 5, 0, 0, plus8), false); got != "09:05+08:00" {
		t.Errorf("FormatClock = %q, want %q", got, "09:05+08:00")
	}
}

func TestExportStamp(t *testing.T) {
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Date(2022, 2, 22, 14, 30, 0, 0, time.UTC), "2022-02-22_14-30-00"},
		{time.Date(2022, 2, 22, 14, 30, 1, 250000000, time.UTC), "2022-02-22_14-30-01.250000"},
	}
	for _, tt := range tests {
		if got := timecalc.ExportStamp(tt.t); got != tt.want {
			t.Errorf("ExportStamp(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestInsightAllowed(t *testing.T) {
	// 2022-02-20 is a Sunday.
	tests := []struct {
		panel, entry civil.Date
		want         bool
	}{
		{civil.Date{Year: 2022, Month: 2, Day: 22}, civil.Date{Year: 2022, Month: 2, Day: 22}, false},
		{civil.Date{Year: 2022, Month: 2, Day: 22}, civil.Date{Year: 2022, Month: 2, Day: 23}, false},
		{civil.Date{Year: 2022, Month: 2, Day: 22}, civil.Date{Year: 2022, Month: 2, Day: 24}, true},
		{civil.Date{Year: 2022, Month: 2, Day: 19}, civil.Date{Year: 2022, Month: 2, Day: 20}, true},
		{civil.Date{Year: 2022, Month: 2, Day: 20}, civil.Date{Year: 2022, Month: 2, Day: 20}, false},
	}
	for _, tt := range tests {
		if got := timecalc.InsightAllowed(tt.panel, tt.entry); got != tt.want {
			t.Errorf("InsightAllowed(%v, %v) = %v, want %v", tt.panel, tt.entry, got, tt.want)
		}
	}
}

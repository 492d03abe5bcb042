package model

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"cloud.google.com/go/civil"
)

var (
	ErrAlreadyAdded = errors.New("entry was already added to this panel")
	ErrNotInPanel   = errors.New("entry does not belong to this panel")
)

// Panel holds the entries of one calendar day.
type Panel struct {
	date      civil.Date
	rating    string
	hasRating bool
	entries   []*Entry
}

// NewPanel returns an empty panel for date.
func NewPanel(date civil.Date) *Panel {
	return &Panel{date: date}
}

func (p *Panel) Date() civil.Date { return p.date }

// Rating returns the rating and whether one is set.
func (p *Panel) Rating() (string, bool) { return p.rating, p.hasRating }

func (p *Panel) SetRating(r string) { p.rating, p.hasRating = r, true }

func (p *Panel) ClearRating() { p.rating, p.hasRating = "", false }

// Entries returns the entries in order. The slice is a copy.
func (p *Panel) Entries() []*Entry { return slices.Clone(p.entries) }

func (p *Panel) Entry(i int) *Entry { return p.entries[i] }

func (p *Panel) Len() int { return len(p.entries) }

// AddEntry appends e, detaching it from its previous panel. The entry's
// time is validated against this panel first.
func (p *Panel) AddEntry(e *Entry) error {
	if e.panel == p {
		return ErrAlreadyAdded
	}
	if err := checkTime(p, e.time, e.insight); err != nil {
		return err
	}
	if e.panel != nil {
		_ = e.panel.RemoveEntry(e)
	}
	p.entries = append(p.entries, e)
	e.panel = p
	return nil
}

// RemoveEntry detaches e from p.
func (p *Panel) RemoveEntry(e *Entry) error {
	i := slices.Index(p.entries, e)
	if i < 0 {
		return ErrNotInPanel
	}
	p.entries = slices.Delete(p.entries, i, i+1)
	e.panel = nil
	return nil
}

// PopEntry detaches and returns the entry at index i.
func (p *Panel) PopEntry(i int) (*Entry, error) {
	if i < 0 || i >= len(p.entries) {
		return nil, fmt.Errorf("entry index %d out of range [0, %d)", i, len(p.entries))
	}
	e := p.entries[i]
	p.entries = slices.Delete(p.entries, i, i+1)
	e.panel = nil
	return e, nil
}

// SortEntries orders the entries stably. A nil less puts main entries
// before insights, each group by time.
func (p *Panel) SortEntries(less func(a, b *Entry) bool) {
	if less == nil {
		less = MainFirst
	}
	sort.SliceStable(p.entries, func(i, j int) bool {
		return less(p.entries[i], p.entries[j])
	})
}

// MainFirst orders main entries before insights, then by time.
func MainFirst(a, b *Entry) bool {
	if a.insight != b.insight {
		return !a.insight
	}
	return a.time.Before(b.time)
}

// Equal compares date, rating and the entries pairwise.
func (p *Panel) Equal(o *Panel) bool {
	if p.date != o.date || p.rating != o.rating || p.hasRating != o.hasRating ||
		len(p.entries) != len(o.entries) {
		return false
	}
	for i := range p.entries {
		if !p.entries[i].Equal(o.entries[i]) {
			return false
		}
	}
	return true
}

// Copy returns a deep copy of p with copied entries.
func (p *Panel) Copy() *Panel {
	c := &Panel{date: p.date, rating: p.rating, hasRating: p.hasRating}
	for _, e := range p.entries {
		ec := e.Copy()
		ec.panel = c
		c.entries = append(c.entries, ec)
	}
	return c
}

// MergePanels groups panels by date and moves the entries of every group
// into one panel per date, sorted with MainFirst. Panels that are alone on
// their date are returned unchanged. Ratings must agree.
func MergePanels(panels []*Panel) ([]*Panel, error) {
	groups := map[civil.Date][]*Panel{}
	var dates []civil.Date
	for _, p := range panels {
		if _, ok := groups[p.date]; !ok {
			dates = append(dates, p.date)
		}
		groups[p.date] = append(groups[p.date], p)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]*Panel, 0, len(dates))
	for _, d := range dates {
		group := groups[d]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}
		merged := NewPanel(d)
		for _, p := range group {
			if r, ok := p.Rating(); ok {
				if mr, mok := merged.Rating(); mok && mr != r {
					return nil, fmt.Errorf("conflicting ratings for %s: %q and %q", d, mr, r)
				}
				merged.SetRating(r)
			}
			for _, e := range p.Entries() {
				if err := merged.AddEntry(e); err != nil {
					return nil, err
				}
			}
		}
		merged.SortEntries(nil)
		out = append(out, merged)
	}
	return out, nil
}

package model

import (
	"reflect"
	"time"
)

// Metadata carries the bookkeeping timestamps of an entry plus arbitrary
// JSON values under other keys.
type Metadata struct {
	Created *time.Time
	// Modified is nil when it equals Created.
	Modified *time.Time
	Posted   *time.Time
	Extra    map[string]any
}

// ModifiedTime returns Modified, falling back to Created.
func (m *Metadata) ModifiedTime() *time.Time {
	if m.Modified != nil {
		return m.Modified
	}
	return m.Created
}

// IsZero reports whether m holds nothing.
func (m *Metadata) IsZero() bool {
	return m == nil || (m.Created == nil && m.Modified == nil && m.Posted == nil && len(m.Extra) == 0)
}

// Equal compares timestamps by instant and extras structurally. A nil
// Metadata equals an empty one.
func (m *Metadata) Equal(o *Metadata) bool {
	if m.IsZero() || o.IsZero() {
		return m.IsZero() && o.IsZero()
	}
	if !timesEqual(m.Created, o.Created) || !timesEqual(m.ModifiedTime(), o.ModifiedTime()) ||
		!timesEqual(m.Posted, o.Posted) {
		return false
	}
	if len(m.Extra) == 0 && len(o.Extra) == 0 {
		return true
	}
	return reflect.DeepEqual(m.Extra, o.Extra)
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Copy returns a deep copy of m.
func (m *Metadata) Copy() *Metadata {
	if m == nil {
		return nil
	}
	c := &Metadata{
		Created:  copyTime(m.Created),
		Modified: copyTime(m.Modified),
		Posted:   copyTime(m.Posted),
	}
	if m.Extra != nil {
		c.Extra = DeepCopy(m.Extra).(map[string]any)
	}
	return c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// DeepCopy copies a decoded JSON value.
func DeepCopy(v any) any {
	switch v := v.(type) {
	case map[string]any:
		c := make(map[string]any, len(v))
		for k, x := range v {
			c[k] = DeepCopy(x)
		}
		return c
	case []any:
		c := make([]any, len(v))
		for i, x := range v {
			c[i] = DeepCopy(x)
		}
		return c
	default:
		return v
	}
}

// Package clock provides the virtual clock: the real calendar shifted by an
// administrative number of days. Every date-sensitive operation reads through it.
package clock

import (
	"context"
	"time"
)

// State is the persisted offset of the virtual clock.
type State struct {
	DeltaDays int `json:"delta_days" db:"delta_days"`
}

// Now returns real shifted by the delta.
func (s State) Now(real time.Time) time.Time {
	return real.AddDate(0, 0, s.DeltaDays)
}

// Today returns the calendar date of Now(real) in loc.
func (s State) Today(real time.Time, loc *time.Location) time.Time {
	return DateOf(s.Now(real), loc)
}

// DateOf returns the calendar date of t as seen in loc, as midnight UTC.
// All dates handled by the core use this representation so they compare with ==.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date normalizes an already calendar-level value (e.g. parsed from YYYY-MM-DD).
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Source is what date-sensitive services depend on.
type Source interface {
	// Now returns the clock-adjusted current instant.
	Now(ctx context.Context) (time.Time, error)
	// Today returns the clock-adjusted current calendar date.
	Today(ctx context.Context) (time.Time, error)
}

// Fixed is a Source frozen at a given instant.
type Fixed struct {
	At  time.Time
	Loc *time.Location
}

func (f Fixed) Now(context.Context) (time.Time, error) { return f.At, nil }

func (f Fixed) Today(context.Context) (time.Time, error) {
	loc := f.Loc
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(f.At, loc), nil
}

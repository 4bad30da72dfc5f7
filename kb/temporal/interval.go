// Package temporal implements per-relation truth timelines: sorted,
// non-overlapping half-open intervals, each carrying a truth value, with
// point lookup and gapless range partitions.
//
// Intervals are [Start, End). A zero Start means unbounded past, a zero
// End means unbounded future. Two intervals that merely touch at a
// boundary, like [0,5) and [5,10), do not overlap.
package temporal

import (
	"fmt"
	"time"

	"github.com/teranos/doxa/errors"
)

// Interval is a half-open time span [Start, End). The zero value spans
// all of time.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Span builds a bounded interval.
func Span(start, end time.Time) Interval {
	return Interval{Start: start, End: end}
}

// From builds an open-ended interval starting at start.
func From(start time.Time) Interval {
	return Interval{Start: start}
}

// Until builds an interval unbounded in the past, ending before end.
func Until(end time.Time) Interval {
	return Interval{End: end}
}

// Always is the interval spanning all of time.
var Always = Interval{}

// UnboundedStart reports whether the interval extends infinitely backward.
func (iv Interval) UnboundedStart() bool {
	return iv.Start.IsZero()
}

// UnboundedEnd reports whether the interval extends infinitely forward.
func (iv Interval) UnboundedEnd() bool {
	return iv.End.IsZero()
}

// Validate rejects intervals whose bounded endpoints are inverted or equal:
// a half-open interval needs Start < End to contain anything.
func (iv Interval) Validate() error {
	if !iv.UnboundedStart() && !iv.UnboundedEnd() && !iv.Start.Before(iv.End) {
		return errors.Wrapf(errors.ErrInvalidInterval,
			"[%s, %s)", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t falls inside the half-open span.
func (iv Interval) Contains(t time.Time) bool {
	if !iv.UnboundedStart() && t.Before(iv.Start) {
		return false
	}
	if !iv.UnboundedEnd() && !t.Before(iv.End) {
		return false
	}
	return true
}

// Overlaps reports whether the two spans share any instant. Touching
// boundaries do not overlap: [a,b) and [b,c) are disjoint.
func (iv Interval) Overlaps(o Interval) bool {
	start := laterStart(iv.Start, o.Start)
	end := earlierEnd(iv.End, o.End)
	return startBeforeEnd(start, end)
}

// Intersect returns the shared span and whether it is non-empty.
func (iv Interval) Intersect(o Interval) (Interval, bool) {
	start := laterStart(iv.Start, o.Start)
	end := earlierEnd(iv.End, o.End)
	if !startBeforeEnd(start, end) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// String renders the interval with -inf/+inf for unbounded endpoints.
func (iv Interval) String() string {
	start := "-inf"
	if !iv.UnboundedStart() {
		start = iv.Start.Format(time.RFC3339)
	}
	end := "+inf"
	if !iv.UnboundedEnd() {
		end = iv.End.Format(time.RFC3339)
	}
	return fmt.Sprintf("[%s, %s)", start, end)
}

// laterStart picks the later of two start bounds, zero meaning -inf.
func laterStart(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if a.Before(b) {
		return b
	}
	return a
}

// earlierEnd picks the earlier of two end bounds, zero meaning +inf.
func earlierEnd(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if a.Before(b) {
		return a
	}
	return b
}

// startBeforeEnd reports start < end where start is a start bound
// (zero = -inf) and end is an end bound (zero = +inf).
func startBeforeEnd(start, end time.Time) bool {
	if start.IsZero() || end.IsZero() {
		return true
	}
	return start.Before(end)
}

// startBefore orders two start bounds, zero meaning -inf.
func startBefore(a, b time.Time) bool {
	if a.IsZero() {
		return !b.IsZero()
	}
	if b.IsZero() {
		return false
	}
	return a.Before(b)
}

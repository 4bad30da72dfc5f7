package temporal

import (
	"sort"
	"time"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/truth"
)

// Assertion is one stored interval with its truth value and provenance.
type Assertion struct {
	Interval Interval    `json:"interval"`
	Value    truth.Value `json:"value"`
	Origin   Origin      `json:"origin"`
}

// Segment is one piece of a partition: a span labeled with the truth
// value holding over it. Gap segments carry the relation default and
// OriginDefault.
type Segment struct {
	Interval Interval    `json:"interval"`
	Value    truth.Value `json:"value"`
	Origin   Origin      `json:"origin"`
}

// OverlapPolicy decides what Assert does when a new interval collides
// with stored ones.
type OverlapPolicy uint8

const (
	// OverlapReject refuses the new assertion, naming the collision.
	OverlapReject OverlapPolicy = iota
	// OverlapReplace carves the colliding spans out of existing
	// assertions so the new one wins over exactly its own span.
	// Never a silent merge: the stored timeline stays non-overlapping.
	OverlapReplace
)

// Store holds the truth timeline of a single relation: assertions sorted
// by start, pairwise non-overlapping. The zero value is not usable; build
// with NewStore. Not safe for concurrent use; callers serialize access.
type Store struct {
	policy     OverlapPolicy
	assertions []Assertion
}

// NewStore builds an empty timeline with the given overlap policy.
func NewStore(policy OverlapPolicy) *Store {
	return &Store{policy: policy}
}

// Policy returns the store's overlap policy.
func (s *Store) Policy() OverlapPolicy {
	return s.policy
}

// Len returns the number of stored assertions.
func (s *Store) Len() int {
	return len(s.assertions)
}

// Assertions returns a copy of the stored assertions in start order.
func (s *Store) Assertions() []Assertion {
	out := make([]Assertion, len(s.assertions))
	copy(out, s.assertions)
	return out
}

// Assert stores a truth value over an interval. Under OverlapReject a
// collision fails with ErrOverlappingInterval naming the existing span
// and nothing changes. Under OverlapReplace the colliding spans are
// carved away first. Defaults are never stored here; only explicit
// assertions occupy the timeline.
func (s *Store) Assert(iv Interval, v truth.Value, origin Origin) error {
	if err := iv.Validate(); err != nil {
		return err
	}
	if origin == OriginDefault {
		return errors.NewStructural("default values are not stored as intervals")
	}

	if s.policy == OverlapReject {
		for i := range s.assertions {
			if s.assertions[i].Interval.Overlaps(iv) {
				return errors.Wrapf(errors.ErrOverlappingInterval,
					"%s overlaps existing %s", iv, s.assertions[i].Interval)
			}
		}
	} else {
		s.carve(iv, nil)
	}

	s.insert(Assertion{Interval: iv, Value: v, Origin: origin})
	return nil
}

// At returns the truth value holding at instant t, with its origin.
// ok is false when no stored interval covers t; the caller falls back to
// the relation default.
func (s *Store) At(t time.Time) (truth.Value, Origin, bool) {
	// Binary search for the last assertion starting at or before t.
	idx := sort.Search(len(s.assertions), func(i int) bool {
		start := s.assertions[i].Interval.Start
		return !start.IsZero() && start.After(t)
	})
	if idx == 0 {
		return truth.Unknown, OriginDefault, false
	}
	a := s.assertions[idx-1]
	if a.Interval.Contains(t) {
		return a.Value, a.Origin, true
	}
	return truth.Unknown, OriginDefault, false
}

// Over partitions the query interval into a gapless ordered sequence of
// segments: stored assertions clipped to the range, with def filling
// every uncovered span. The segments cover exactly the query interval
// with no overlaps and no holes.
func (s *Store) Over(query Interval, def truth.Value) ([]Segment, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	var out []Segment
	cursor := query.Start
	atStart := true // cursor still at the (possibly unbounded) query start

	for i := range s.assertions {
		a := s.assertions[i]
		clipped, ok := a.Interval.Intersect(query)
		if !ok {
			continue
		}

		// Gap before this assertion.
		if gapBefore(cursor, atStart, clipped.Start) {
			out = append(out, Segment{
				Interval: Interval{Start: cursor, End: clipped.Start},
				Value:    def,
				Origin:   OriginDefault,
			})
		}

		out = append(out, Segment{Interval: clipped, Value: a.Value, Origin: a.Origin})

		if clipped.UnboundedEnd() {
			return out, nil
		}
		cursor = clipped.End
		atStart = false
	}

	// Trailing gap. With no segments emitted the cursor still sits on the
	// query start and the gap is the whole query; otherwise the cursor is a
	// bounded instant and a gap remains iff it falls short of the query end.
	if atStart || query.UnboundedEnd() || cursor.Before(query.End) {
		out = append(out, Segment{
			Interval: Interval{Start: cursor, End: query.End},
			Value:    def,
			Origin:   OriginDefault,
		})
	}

	return out, nil
}

// CarveInferred removes inferred spans overlapping iv, truncating or
// splitting partially covered assertions. Asserted spans are untouched.
// Used by the rule engine when a higher-confidence derivation replaces an
// earlier one.
func (s *Store) CarveInferred(iv Interval) {
	inferred := func(a Assertion) bool { return a.Origin == OriginInferred }
	s.carve(iv, inferred)
}

// carve removes the parts of stored assertions that overlap iv. When
// match is non-nil, only assertions it accepts are carved.
func (s *Store) carve(iv Interval, match func(Assertion) bool) {
	var next []Assertion
	for _, a := range s.assertions {
		if match != nil && !match(a) {
			next = append(next, a)
			continue
		}
		overlap, ok := a.Interval.Intersect(iv)
		if !ok {
			next = append(next, a)
			continue
		}
		// Left remnant: [a.Start, overlap.Start)
		if startBefore(a.Interval.Start, overlap.Start) {
			next = append(next, Assertion{
				Interval: Interval{Start: a.Interval.Start, End: overlap.Start},
				Value:    a.Value,
				Origin:   a.Origin,
			})
		}
		// Right remnant: [overlap.End, a.End)
		if !overlap.UnboundedEnd() && (a.Interval.UnboundedEnd() || overlap.End.Before(a.Interval.End)) {
			next = append(next, Assertion{
				Interval: Interval{Start: overlap.End, End: a.Interval.End},
				Value:    a.Value,
				Origin:   a.Origin,
			})
		}
	}
	sort.SliceStable(next, func(i, j int) bool {
		return startBefore(next[i].Interval.Start, next[j].Interval.Start)
	})
	s.assertions = next
}

// insert places the assertion keeping start order.
func (s *Store) insert(a Assertion) {
	idx := sort.Search(len(s.assertions), func(i int) bool {
		return startBefore(a.Interval.Start, s.assertions[i].Interval.Start)
	})
	s.assertions = append(s.assertions, Assertion{})
	copy(s.assertions[idx+1:], s.assertions[idx:])
	s.assertions[idx] = a
}

// gapBefore reports whether there is uncovered span between the cursor
// and the next segment start.
func gapBefore(cursor time.Time, atStart bool, nextStart time.Time) bool {
	if nextStart.IsZero() {
		// Next segment starts at -inf; nothing can precede it.
		return false
	}
	if cursor.IsZero() {
		// Cursor at -inf only counts as a gap while still at the query
		// start; after the first segment a zero cursor cannot occur.
		return atStart
	}
	return cursor.Before(nextStart)
}

package contexts

import (
	"time"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/ontology"
	"github.com/teranos/doxa/kb/temporal"
	"github.com/teranos/doxa/kb/truth"
)

// Evaluator computes truth values of context trees against the arena.
type Evaluator struct {
	ont *ontology.Ontology
	reg *Registry
}

// NewEvaluator binds an evaluator to an arena and a registry.
func NewEvaluator(ont *ontology.Ontology, reg *Registry) *Evaluator {
	return &Evaluator{ont: ont, reg: reg}
}

// At evaluates the tree at instant t. Leaves read the relation timeline,
// falling back to the relation default; a leaf naming an unknown
// relation is an error. Every child of a connective is evaluated, never
// short-circuited, so superposition weights always combine.
func (e *Evaluator) At(n Node, t time.Time) (truth.Value, error) {
	return e.at(n, t, false)
}

// at carries the lenient flag: inside a quantifier body the variable
// ranges over every entity, so instantiated leaves naming relations that
// were never created read as Unknown instead of failing.
func (e *Evaluator) at(n Node, t time.Time, lenient bool) (truth.Value, error) {
	switch v := n.(type) {
	case Leaf:
		if err := checkGround(v); err != nil {
			return truth.Unknown, err
		}
		instant := t
		if !v.At.IsZero() {
			instant = v.At
		}
		val, _, err := e.ont.TruthAt(v.Subject, v.Type, v.Object, instant)
		if err != nil {
			if lenient && errors.IsUnknownRelation(err) {
				return truth.Unknown, nil
			}
			return truth.Unknown, err
		}
		return val, nil
	case Ref:
		body, err := e.reg.Resolve(v.Name)
		if err != nil {
			return truth.Unknown, err
		}
		return e.at(body, t, lenient)
	case Op:
		vals := make([]truth.Value, len(v.Kids))
		for i, kid := range v.Kids {
			val, err := e.at(kid, t, lenient)
			if err != nil {
				return truth.Unknown, err
			}
			vals[i] = val
		}
		return v.Connective.Apply(vals...)
	case Quantified:
		return e.quantifiedAt(v, t)
	default:
		return truth.Unknown, errors.Newf("unknown context node type %T", n)
	}
}

func (e *Evaluator) quantifiedAt(q Quantified, t time.Time) (truth.Value, error) {
	folded, empty := quantifierIdentity(q.Quant)
	for _, ent := range e.ont.Entities() {
		body := substitute(q.Body, q.Variable, string(ent.ID))
		val, err := e.at(body, t, true)
		if err != nil {
			return truth.Unknown, err
		}
		if empty {
			folded, empty = val, false
			continue
		}
		folded = foldQuantifier(q.Quant, folded, val)
	}
	return folded, nil
}

// quantifierIdentity returns the value of a quantifier over the empty
// domain: vacuous truth for ForAll, falsity for Exists.
func quantifierIdentity(q Quantifier) (truth.Value, bool) {
	if q == Exists {
		return truth.False, true
	}
	return truth.True, true
}

func foldQuantifier(q Quantifier, acc, val truth.Value) truth.Value {
	if q == Exists {
		return truth.Or(acc, val)
	}
	return truth.And(acc, val)
}

// Over evaluates the tree across a query interval, returning a gapless
// partition. Children are partitioned independently, aligned on the
// merged boundary set, combined segment by segment with the point
// algebra, and adjacent segments with equal value and origin coalesced.
func (e *Evaluator) Over(n Node, query temporal.Interval) ([]temporal.Segment, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	segs, err := e.over(n, query, false)
	if err != nil {
		return nil, err
	}
	return coalesce(segs), nil
}

func (e *Evaluator) over(n Node, query temporal.Interval, lenient bool) ([]temporal.Segment, error) {
	switch v := n.(type) {
	case Leaf:
		if err := checkGround(v); err != nil {
			return nil, err
		}
		if !v.At.IsZero() {
			// Pinned leaves are constant across the query.
			val, origin, err := e.ont.TruthAt(v.Subject, v.Type, v.Object, v.At)
			if err != nil {
				if lenient && errors.IsUnknownRelation(err) {
					return unknownSpan(query), nil
				}
				return nil, err
			}
			return []temporal.Segment{{Interval: query, Value: val, Origin: origin}}, nil
		}
		segs, err := e.ont.TruthOver(v.Subject, v.Type, v.Object, query)
		if err != nil {
			if lenient && errors.IsUnknownRelation(err) {
				return unknownSpan(query), nil
			}
			return nil, err
		}
		return segs, nil
	case Ref:
		body, err := e.reg.Resolve(v.Name)
		if err != nil {
			return nil, err
		}
		return e.over(body, query, lenient)
	case Op:
		parts := make([][]temporal.Segment, len(v.Kids))
		for i, kid := range v.Kids {
			segs, err := e.over(kid, query, lenient)
			if err != nil {
				return nil, err
			}
			parts[i] = segs
		}
		return alignApply(v.Connective, parts, query)
	case Quantified:
		return e.quantifiedOver(v, query)
	default:
		return nil, errors.Newf("unknown context node type %T", n)
	}
}

func (e *Evaluator) quantifiedOver(q Quantified, query temporal.Interval) ([]temporal.Segment, error) {
	entities := e.ont.Entities()
	if len(entities) == 0 {
		val, _ := quantifierIdentity(q.Quant)
		return []temporal.Segment{{Interval: query, Value: val, Origin: temporal.OriginInferred}}, nil
	}

	conn := truth.ConnAnd
	if q.Quant == Exists {
		conn = truth.ConnOr
	}
	kids := make([]Node, len(entities))
	for i, ent := range entities {
		kids[i] = substitute(q.Body, q.Variable, string(ent.ID))
	}
	if len(kids) == 1 {
		return e.over(kids[0], query, true)
	}

	parts := make([][]temporal.Segment, len(kids))
	for i, kid := range kids {
		segs, err := e.over(kid, query, true)
		if err != nil {
			return nil, err
		}
		parts[i] = segs
	}
	return alignApply(conn, parts, query)
}

func unknownSpan(query temporal.Interval) []temporal.Segment {
	return []temporal.Segment{{Interval: query, Value: truth.Unknown, Origin: temporal.OriginDefault}}
}

// alignApply sweeps the children's partitions left to right. Every
// partition covers exactly the query, so at each step the current
// segment of every child covers the cursor; the next boundary is the
// earliest of their ends.
func alignApply(conn truth.Connective, parts [][]temporal.Segment, query temporal.Interval) ([]temporal.Segment, error) {
	idx := make([]int, len(parts))
	vals := make([]truth.Value, len(parts))
	cursor := query.Start

	var out []temporal.Segment
	for {
		end := time.Time{}
		for i, segs := range parts {
			if idx[i] >= len(segs) {
				return nil, errors.AssertionFailedf("partition %d exhausted before query end", i)
			}
			cur := segs[idx[i]]
			vals[i] = cur.Value
			end = earlierEndBound(end, cur.Interval.End)
		}

		combined, err := conn.Apply(vals...)
		if err != nil {
			return nil, err
		}
		out = append(out, temporal.Segment{
			Interval: temporal.Interval{Start: cursor, End: end},
			Value:    combined,
			Origin:   temporal.OriginInferred,
		})

		for i, segs := range parts {
			if endReached(segs[idx[i]].Interval.End, end) {
				idx[i]++
			}
		}
		if end.IsZero() || !query.UnboundedEnd() && end.Equal(query.End) {
			return out, nil
		}
		cursor = end
	}
}

// earlierEndBound picks the earlier of two end bounds, zero meaning +inf.
func earlierEndBound(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if b.Before(a) {
		return b
	}
	return a
}

func endReached(segEnd, boundary time.Time) bool {
	if segEnd.IsZero() {
		return boundary.IsZero()
	}
	return !boundary.IsZero() && segEnd.Equal(boundary)
}

// coalesce merges adjacent segments carrying the same value and origin.
func coalesce(segs []temporal.Segment) []temporal.Segment {
	if len(segs) < 2 {
		return segs
	}
	out := segs[:1]
	for _, s := range segs[1:] {
		last := &out[len(out)-1]
		if last.Value.Equal(s.Value) && last.Origin == s.Origin {
			last.Interval.End = s.Interval.End
			continue
		}
		out = append(out, s)
	}
	return out
}

// checkGround rejects leaves still carrying unbound variables.
func checkGround(l Leaf) error {
	if IsVariable(l.Subject) {
		return errors.NewStructural("unbound variable %s in %s", l.Subject, l)
	}
	if IsVariable(l.Object) {
		return errors.NewStructural("unbound variable %s in %s", l.Object, l)
	}
	return nil
}

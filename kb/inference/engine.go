package inference

import (
	"time"

	"go.uber.org/zap"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/ontology"
	"github.com/teranos/doxa/kb/temporal"
	"github.com/teranos/doxa/kb/truth"
	"github.com/teranos/doxa/logger"
)

const (
	// DefaultMaxRounds bounds fixpoint iterations per run.
	DefaultMaxRounds = 100
	// DefaultMaxDerivations bounds facts derived per run.
	DefaultMaxDerivations = 10000
)

// DerivedFact records one fact the engine asserted.
type DerivedFact struct {
	Rule     string               `json:"rule"`
	Relation ontology.RelationKey `json:"relation"`
	Interval temporal.Interval    `json:"interval"`
	Value    truth.Value          `json:"value"`
}

// Contradiction records a derivation that collided with an asserted
// definite value and was abandoned.
type Contradiction struct {
	Rule     string               `json:"rule"`
	Relation ontology.RelationKey `json:"relation"`
	Interval temporal.Interval    `json:"interval"`
	Derived  truth.Value          `json:"derived"`
	Existing truth.Value          `json:"existing"`
}

// Report summarizes one engine run. Facts derived before a budget ran
// out stay in the arena; Exhausted marks the run as cut short.
type Report struct {
	Rounds         int
	Derived        []DerivedFact
	Contradictions []Contradiction
	Exhausted      bool
	Elapsed        time.Duration
}

// Engine runs an ordered rule set to fixpoint against an arena.
type Engine struct {
	rules          []Rule
	maxRounds      int
	maxDerivations int
	hierarchy      bool
	log            *zap.SugaredLogger
}

// EngineOption configures an engine.
type EngineOption func(*Engine)

// WithMaxRounds overrides the fixpoint round budget.
func WithMaxRounds(n int) EngineOption {
	return func(e *Engine) { e.maxRounds = n }
}

// WithMaxDerivations overrides the derivation budget.
func WithMaxDerivations(n int) EngineOption {
	return func(e *Engine) { e.maxDerivations = n }
}

// WithHierarchy materializes IS-A parent edges as HAS_PARENT relations
// before each run, so Inherit rules can match them.
func WithHierarchy() EngineOption {
	return func(e *Engine) { e.hierarchy = true }
}

// WithEngineLogger overrides the engine's logger.
func WithEngineLogger(l *zap.SugaredLogger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// NewEngine validates the rules and builds an engine. Rule order is
// firing order.
func NewEngine(rules []Rule, opts ...EngineOption) (*Engine, error) {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	e := &Engine{
		rules:          rules,
		maxRounds:      DefaultMaxRounds,
		maxDerivations: DefaultMaxDerivations,
		log:            logger.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Rules returns the engine's rule set in firing order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// AddRule validates and appends a rule. Ground conditionals compiled
// from IF statements extend the set this way.
func (e *Engine) AddRule(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	e.rules = append(e.rules, r)
	return nil
}

// Run iterates the rule set to fixpoint. The report carries everything
// derived; the error is non-nil for structural misuse (a conclusion
// naming an unknown entity) or, wrapping ErrNonTermination, when a
// budget ran out. Budget errors leave all facts derived so far in
// place.
func (e *Engine) Run(ont *ontology.Ontology) (Report, error) {
	start := time.Now()
	st := &runState{seen: make(map[contradictionKey]bool)}

	if e.hierarchy {
		if err := e.syncHierarchy(ont); err != nil {
			return st.report, err
		}
	}

	for {
		if st.report.Rounds >= e.maxRounds {
			st.report.Exhausted = true
			st.report.Elapsed = time.Since(start)
			return st.report, errors.Wrapf(errors.ErrNonTermination,
				"no fixpoint after %d rounds", st.report.Rounds)
		}
		st.report.Rounds++

		derivedBefore := len(st.report.Derived)
		for _, rule := range e.rules {
			matches, err := e.collectMatches(ont, rule)
			if err != nil {
				st.report.Elapsed = time.Since(start)
				return st.report, err
			}
			for _, m := range matches {
				if err := e.applyMatch(ont, rule, m, st); err != nil {
					st.report.Elapsed = time.Since(start)
					return st.report, err
				}
				if len(st.report.Derived) > e.maxDerivations {
					st.report.Exhausted = true
					st.report.Elapsed = time.Since(start)
					return st.report, errors.Wrapf(errors.ErrNonTermination,
						"derivation budget %d exhausted in round %d", e.maxDerivations, st.report.Rounds)
				}
			}
		}

		if len(st.report.Derived) == derivedBefore {
			break
		}
	}

	st.report.Elapsed = time.Since(start)
	e.log.Infow("Inference complete",
		logger.FieldRounds, st.report.Rounds,
		logger.FieldDerived, len(st.report.Derived),
		logger.FieldCount, len(st.report.Contradictions),
		logger.FieldDurationMS, st.report.Elapsed.Milliseconds())
	return st.report, nil
}

// runState accumulates one run's report. The seen set keeps a
// contradiction that re-matches every round from flooding the report.
type runState struct {
	report Report
	seen   map[contradictionKey]bool
}

type contradictionKey struct {
	rule     string
	relation ontology.RelationKey
	interval temporal.Interval
}

// syncHierarchy materializes parent edges as HAS_PARENT relations so
// rules can match the IS-A hierarchy. Existing relations are kept.
func (e *Engine) syncHierarchy(ont *ontology.Ontology) error {
	for _, ent := range ont.Entities() {
		for _, parent := range ent.Parents {
			_, err := ont.EnsureRelation(string(ent.ID), HierarchyRelation, string(parent),
				truth.True, temporal.OriginInferred)
			if err != nil {
				return errors.Wrapf(err, "materializing hierarchy edge %s -> %s", ent.ID, parent)
			}
		}
	}
	return nil
}

// binding maps variable names to the literals they matched.
type binding map[string]string

func (b binding) extend(name, value string) binding {
	next := make(binding, len(b)+1)
	for k, v := range b {
		next[k] = v
	}
	next[name] = value
	return next
}

// ruleMatch is one complete precondition match: a full binding plus,
// for aligned rules, the shared window all matched segments intersect.
type ruleMatch struct {
	binding binding
	window  temporal.Interval
}

// collectMatches finds every complete match of the rule's preconditions
// against the current arena. Relations are scanned in creation order and
// segments chronologically, so match order is deterministic. The arena
// is not mutated while collecting.
func (e *Engine) collectMatches(ont *ontology.Ontology, rule Rule) ([]ruleMatch, error) {
	rels := ont.Relations()
	lines := make(map[ontology.RelationKey][]temporal.Segment, len(rels))
	for _, rel := range rels {
		segs, err := rel.Timeline().Over(temporal.Always, rel.Default)
		if err != nil {
			return nil, errors.Wrapf(err, "partitioning %s", rel.Key)
		}
		lines[rel.Key] = segs
	}

	var out []ruleMatch
	var walk func(i int, b binding, window temporal.Interval)
	walk = func(i int, b binding, window temporal.Interval) {
		if i == len(rule.When) {
			out = append(out, ruleMatch{binding: b, window: window})
			return
		}
		p := rule.When[i]
		for _, rel := range rels {
			b2, ok := unifyKey(p, rel.Key, b)
			if !ok {
				continue
			}
			if rule.Align {
				for _, seg := range lines[rel.Key] {
					if !segmentMatches(p, seg.Value) {
						continue
					}
					w, ok := window.Intersect(seg.Interval)
					if !ok {
						continue
					}
					walk(i+1, b2, w)
				}
			} else {
				if anySegmentMatches(p, lines[rel.Key]) {
					walk(i+1, b2, window)
				}
			}
		}
	}
	walk(0, binding{}, temporal.Always)
	return out, nil
}

// unifyKey matches a pattern's terms against a relation key under the
// current binding, extending it for fresh variables.
func unifyKey(p Pattern, key ontology.RelationKey, b binding) (binding, bool) {
	b, ok := unifyTerm(p.Subject, string(key.Subject), b)
	if !ok {
		return nil, false
	}
	b, ok = unifyTerm(p.Type, string(key.Type), b)
	if !ok {
		return nil, false
	}
	return unifyTerm(p.Object, string(key.Object), b)
}

func unifyTerm(t Term, got string, b binding) (binding, bool) {
	if !t.Variable {
		return b, t.Text == got
	}
	if bound, ok := b[t.Text]; ok {
		return b, bound == got
	}
	return b.extend(t.Text, got), true
}

// segmentMatches reports whether a segment's value satisfies the
// pattern's wanted state.
func segmentMatches(p Pattern, v truth.Value) bool {
	if v.State != p.Truth {
		return false
	}
	if p.Truth == truth.StateSuperposition && v.Weight < p.MinWeight {
		return false
	}
	return true
}

func anySegmentMatches(p Pattern, segs []temporal.Segment) bool {
	for _, s := range segs {
		if segmentMatches(p, s.Value) {
			return true
		}
	}
	return false
}

func resolveTerm(t Term, b binding) (string, error) {
	if !t.Variable {
		return t.Text, nil
	}
	v, ok := b[t.Text]
	if !ok {
		return "", errors.AssertionFailedf("conclusion variable $%s unbound after validation", t.Text)
	}
	return v, nil
}

// applyMatch asserts the rule's conclusion for one match. Without Align
// the conclusion becomes the relation's default; with Align it is
// asserted over the match window, replacing only lower-confidence
// inferred or default spans. A definite conflict with an asserted value
// records a Contradiction and abandons this one derivation.
func (e *Engine) applyMatch(ont *ontology.Ontology, rule Rule, m ruleMatch, st *runState) error {
	subj, err := resolveTerm(rule.Then.Subject, m.binding)
	if err != nil {
		return err
	}
	typ, err := resolveTerm(rule.Then.Type, m.binding)
	if err != nil {
		return err
	}
	obj, err := resolveTerm(rule.Then.Object, m.binding)
	if err != nil {
		return err
	}
	v := rule.Then.Value

	rel, err := ont.EnsureRelation(subj, typ, obj, truth.Unknown, temporal.OriginInferred)
	if err != nil {
		return errors.Wrapf(err, "rule %s: conclusion", rule.Name)
	}

	if !rule.Align {
		if rel.Default.Equal(v) {
			return nil
		}
		if err := ont.SetDefault(subj, typ, obj, v); err != nil {
			return errors.Wrapf(err, "rule %s: conclusion", rule.Name)
		}
		e.logDerived(rule, rel.Key, temporal.Always, v)
		st.report.Derived = append(st.report.Derived, DerivedFact{
			Rule: rule.Name, Relation: rel.Key, Interval: temporal.Always, Value: v,
		})
		return nil
	}

	segs, err := rel.Timeline().Over(m.window, rel.Default)
	if err != nil {
		return errors.Wrapf(err, "rule %s: partitioning conclusion window", rule.Name)
	}

	// Classify first so the write set is known before touching the
	// timeline: a contradiction abandons the whole derivation.
	var writable []temporal.Interval
	for _, seg := range segs {
		if seg.Value.State == v.State && v.Confidence() <= seg.Value.Confidence() {
			continue
		}
		switch seg.Origin {
		case temporal.OriginAsserted:
			if seg.Value.IsDefinite() && v.IsDefinite() && seg.Value.State != v.State {
				e.recordContradiction(st, rule, rel.Key, seg, v)
				return nil
			}
			// Asserted values are never overwritten by inference.
		case temporal.OriginInferred:
			if v.Confidence() > seg.Value.Confidence() {
				writable = append(writable, seg.Interval)
			}
		case temporal.OriginDefault:
			writable = append(writable, seg.Interval)
		}
	}

	for _, span := range writable {
		rel.Timeline().CarveInferred(span)
		if err := ont.AssertTruth(subj, typ, obj, span, v, temporal.OriginInferred); err != nil {
			return errors.Wrapf(err, "rule %s: asserting conclusion", rule.Name)
		}
		e.logDerived(rule, rel.Key, span, v)
		st.report.Derived = append(st.report.Derived, DerivedFact{
			Rule: rule.Name, Relation: rel.Key, Interval: span, Value: v,
		})
	}
	return nil
}

func (e *Engine) recordContradiction(st *runState, rule Rule, key ontology.RelationKey, seg temporal.Segment, derived truth.Value) {
	ck := contradictionKey{rule: rule.Name, relation: key, interval: seg.Interval}
	if st.seen[ck] {
		return
	}
	st.seen[ck] = true

	e.log.Warnw("Contradiction",
		logger.FieldRule, rule.Name,
		logger.FieldRelation, key.String(),
		logger.FieldInterval, seg.Interval.String(),
		logger.FieldTruth, derived.String())
	st.report.Contradictions = append(st.report.Contradictions, Contradiction{
		Rule:     rule.Name,
		Relation: key,
		Interval: seg.Interval,
		Derived:  derived,
		Existing: seg.Value,
	})
}

func (e *Engine) logDerived(rule Rule, key ontology.RelationKey, iv temporal.Interval, v truth.Value) {
	e.log.Debugw("Derived fact",
		logger.FieldRule, rule.Name,
		logger.FieldRelation, key.String(),
		logger.FieldTruth, v.String(),
		logger.FieldInterval, iv.String())
}

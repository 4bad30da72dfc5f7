package kb

import (
	"strings"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/inference"
	"github.com/teranos/doxa/kb/parser"
	"github.com/teranos/doxa/kb/temporal"
	"github.com/teranos/doxa/kb/truth"
)

// Result is what one executed statement produced. Exactly one group of
// fields is populated, matching the op kind: assertions carry Asserted
// and Window, point queries carry Value and Origin, range queries carry
// Segments, definitions carry Context or Rule.
type Result struct {
	Asserted []parser.Fact     `json:"asserted,omitempty"`
	Window   temporal.Interval `json:"window"`

	Value *truth.Value `json:"value,omitempty"`

	Segments []temporal.Segment `json:"segments,omitempty"`

	Context string `json:"context,omitempty"`
	Rule    string `json:"rule,omitempty"`
}

// Execute runs one compiled statement. Assertions auto-create entities
// and relations they name, matching the surface syntax's declare-by-use
// semantics; programmatic callers wanting strict existence checks use
// the typed session methods instead.
//
// A FORALL assignment expands eagerly: every entity is substituted for
// each bound variable and the ground facts assert one by one. Facts
// asserted before a failure stay, like facts derived before an inference
// budget cut.
func (s *Session) Execute(op parser.Op) (*Result, error) {
	switch o := op.(type) {
	case parser.AssertOp:
		return s.executeAssert(o)
	case parser.QueryOp:
		if o.Over != nil {
			segs, err := s.EvalOver(o.Node, *o.Over)
			if err != nil {
				return nil, err
			}
			return &Result{Segments: segs, Window: *o.Over}, nil
		}
		at := s.clock()
		if o.At != nil {
			at = *o.At
		}
		v, err := s.Eval(o.Node, at)
		if err != nil {
			return nil, err
		}
		return &Result{Value: &v}, nil
	case parser.ContextOp:
		if err := s.DefineContext(o.Name, o.Node); err != nil {
			return nil, err
		}
		return &Result{Context: o.Name}, nil
	case parser.RuleOp:
		if err := s.AddRule(o.Rule); err != nil {
			return nil, err
		}
		return &Result{Rule: o.Rule.Name}, nil
	default:
		return nil, errors.AssertionFailedf("unhandled op type %T", op)
	}
}

func (s *Session) executeAssert(op parser.AssertOp) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	facts, parents, err := s.expandBindings(op)
	if err != nil {
		return nil, err
	}

	for _, p := range parents {
		if err := s.ensureEntityLocked(p.Child); err != nil {
			return nil, err
		}
		if err := s.ensureEntityLocked(p.Parent); err != nil {
			return nil, err
		}
		if err := s.ont.AddParent(p.Child, p.Parent); err != nil {
			return nil, err
		}
	}

	for _, f := range facts {
		if err := s.assertFactLocked(f, op.Window); err != nil {
			return nil, errors.Wrapf(err, "asserting %s", f)
		}
	}
	return &Result{Asserted: facts, Window: op.Window}, nil
}

// expandBindings substitutes every entity for each quantifier variable,
// producing the ground cartesian expansion. Without variables the op's
// facts pass through unchanged.
func (s *Session) expandBindings(op parser.AssertOp) ([]parser.Fact, []parser.ParentEdge, error) {
	if len(op.Vars) == 0 {
		return op.Facts, op.Parents, nil
	}

	domain := s.ont.Entities()
	if len(domain) == 0 {
		return nil, nil, nil
	}

	bindings := []map[string]string{{}}
	for _, v := range op.Vars {
		next := make([]map[string]string, 0, len(bindings)*len(domain))
		for _, b := range bindings {
			for _, e := range domain {
				nb := make(map[string]string, len(b)+1)
				for k, val := range b {
					nb[k] = val
				}
				nb[v] = string(e.ID)
				next = append(next, nb)
			}
		}
		bindings = next
	}

	var facts []parser.Fact
	var parents []parser.ParentEdge
	for _, b := range bindings {
		for _, f := range op.Facts {
			facts = append(facts, parser.Fact{
				Subject: substitute(f.Subject, b),
				Type:    f.Type,
				Object:  substitute(f.Object, b),
				Value:   f.Value,
			})
		}
		for _, p := range op.Parents {
			parents = append(parents, parser.ParentEdge{
				Child:  substitute(p.Child, b),
				Parent: substitute(p.Parent, b),
			})
		}
	}
	return facts, parents, nil
}

func substitute(s string, binding map[string]string) string {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	if v, ok := binding[strings.ToUpper(s[1:])]; ok {
		return v
	}
	return s
}

// assertFactLocked applies one ground fact. A windowless assignment sets
// the relation default; a windowed one asserts onto the timeline.
// Callers hold the write lock.
func (s *Session) assertFactLocked(f parser.Fact, window temporal.Interval) error {
	if err := s.ensureEntityLocked(f.Subject); err != nil {
		return err
	}
	if err := s.ensureEntityLocked(f.Object); err != nil {
		return err
	}

	windowless := window.UnboundedStart() && window.UnboundedEnd()
	if windowless {
		if s.ont.HasRelation(f.Subject, f.Type, f.Object) {
			return s.ont.SetDefault(f.Subject, f.Type, f.Object, f.Value)
		}
		_, err := s.ont.CreateRelation(f.Subject, f.Type, f.Object, f.Value)
		return err
	}

	if _, err := s.ont.EnsureRelation(f.Subject, f.Type, f.Object, truth.Unknown, temporal.OriginAsserted); err != nil {
		return err
	}
	return s.ont.AssertTruth(f.Subject, f.Type, f.Object, window, f.Value, temporal.OriginAsserted)
}

func (s *Session) ensureEntityLocked(id string) error {
	if strings.HasPrefix(id, "$") {
		return errors.NewStructural("unbound variable %s", id)
	}
	if s.ont.HasEntity(id) {
		return nil
	}
	_, err := s.ont.CreateEntity(id, nil)
	return err
}

// LoadRuleFile reads a TOML rule file and appends its rules.
func (s *Session) LoadRuleFile(path string) ([]inference.Rule, error) {
	rules, err := inference.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := s.AddRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// LoadRuleDir loads every .toml rule file in a directory.
func (s *Session) LoadRuleDir(dir string) ([]inference.Rule, error) {
	rules, err := inference.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	if err := s.AddRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

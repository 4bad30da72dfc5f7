// Package inference implements the rule engine: rules are data, and a
// run repeatedly matches their preconditions against the arena and
// asserts derived facts back until a fixpoint or a budget is reached.
package inference

import (
	"fmt"
	"strings"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/ontology"
	"github.com/teranos/doxa/kb/truth"
)

// Term is one slot of a pattern or conclusion: either a literal
// (normalized upper-case) or a variable.
type Term struct {
	Text     string `json:"text"`
	Variable bool   `json:"variable,omitempty"`
}

// Lit builds a literal term.
func Lit(s string) Term {
	return Term{Text: strings.ToUpper(strings.TrimSpace(s))}
}

// Var builds a variable term. The leading $ is optional.
func Var(name string) Term {
	name = strings.ToUpper(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "$")
	return Term{Text: name, Variable: true}
}

// ParseTerm reads a term from its surface form: `$X` is a variable,
// anything else a literal.
func ParseTerm(s string) Term {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "$") {
		return Var(s)
	}
	return Lit(s)
}

func (t Term) String() string {
	if t.Variable {
		return "$" + t.Text
	}
	return t.Text
}

// Pattern is one precondition: a relation shape plus the truth state its
// segments must carry. For SUPERPOSITION, MinWeight sets the least
// acceptable weight. Matching runs over the relation's full-line
// partition, so defaults participate without being stored.
type Pattern struct {
	Subject   Term        `json:"subject"`
	Type      Term        `json:"type"`
	Object    Term        `json:"object"`
	Truth     truth.State `json:"truth"`
	MinWeight float64     `json:"min_weight,omitempty"`
}

func (p Pattern) String() string {
	s := fmt.Sprintf("%s(%s, %s)=%s", p.Type, p.Subject, p.Object, p.Truth)
	if p.Truth == truth.StateSuperposition && p.MinWeight > 0 {
		s += fmt.Sprintf("(>=%.2f)", p.MinWeight)
	}
	return s
}

// Conclusion is the fact a rule derives once its preconditions match.
type Conclusion struct {
	Subject Term        `json:"subject"`
	Type    Term        `json:"type"`
	Object  Term        `json:"object"`
	Value   truth.Value `json:"value"`
}

func (c Conclusion) String() string {
	return fmt.Sprintf("%s(%s, %s)=%s", c.Type, c.Subject, c.Object, c.Value)
}

// Rule derives Then wherever every When pattern matches under one
// variable binding. With Align (the default for loaded rules) all
// matched windows must share a non-empty intersection and the derived
// fact is asserted over it; without Align the derived fact becomes the
// conclusion relation's default value.
type Rule struct {
	Name  string     `json:"name"`
	When  []Pattern  `json:"when"`
	Then  Conclusion `json:"then"`
	Align bool       `json:"align"`
}

// Validate rejects rules the engine cannot run: empty names, no
// preconditions, conclusion variables bound by no pattern, or weights
// outside [0,1].
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.NewStructural("rule needs a name")
	}
	if len(r.When) == 0 {
		return errors.NewStructural("rule %s: needs at least one precondition", r.Name)
	}

	bound := map[string]bool{}
	for i, p := range r.When {
		if err := validatePatternTruth(p); err != nil {
			return errors.Wrapf(err, "rule %s: precondition %d", r.Name, i+1)
		}
		for _, t := range []Term{p.Subject, p.Type, p.Object} {
			if t.Variable {
				bound[t.Text] = true
			} else if t.Text == "" {
				return errors.NewStructural("rule %s: precondition %d has an empty literal", r.Name, i+1)
			}
		}
	}

	for _, t := range []Term{r.Then.Subject, r.Then.Type, r.Then.Object} {
		if t.Variable && !bound[t.Text] {
			return errors.NewStructural("rule %s: conclusion variable $%s is bound by no precondition", r.Name, t.Text)
		}
		if !t.Variable && t.Text == "" {
			return errors.NewStructural("rule %s: conclusion has an empty literal", r.Name)
		}
	}
	if _, err := truth.ParseWeight(concWeight(r.Then.Value)); err != nil {
		return errors.Wrapf(err, "rule %s: conclusion weight", r.Name)
	}
	return nil
}

func validatePatternTruth(p Pattern) error {
	if p.MinWeight < 0 || p.MinWeight > 1 {
		return errors.Wrapf(errors.ErrInvalidWeight, "min_weight %v", p.MinWeight)
	}
	if p.MinWeight > 0 && p.Truth != truth.StateSuperposition {
		return errors.NewStructural("min_weight only applies to SUPERPOSITION patterns")
	}
	return nil
}

func concWeight(v truth.Value) float64 {
	if v.State == truth.StateSuperposition {
		return v.Weight
	}
	return 0
}

// HierarchyRelation is the relation type the engine materializes for
// IS-A parent edges when running with hierarchy expansion.
const HierarchyRelation = "HAS_PARENT"

// Transitive builds the rule X~Y, Y~Z => X~Z for a relation type.
func Transitive(relType string, v truth.Value) Rule {
	typ := ontology.NormalizeRelationType(relType)
	return Rule{
		Name: "transitive-" + strings.ToLower(string(typ)),
		When: []Pattern{
			{Subject: Var("X"), Type: Lit(string(typ)), Object: Var("Y"), Truth: truth.StateTrue},
			{Subject: Var("Y"), Type: Lit(string(typ)), Object: Var("Z"), Truth: truth.StateTrue},
		},
		Then:  Conclusion{Subject: Var("X"), Type: Lit(string(typ)), Object: Var("Z"), Value: v},
		Align: true,
	}
}

// Symmetric builds the rule X~Y => Y~X for a relation type.
func Symmetric(relType string, v truth.Value) Rule {
	typ := ontology.NormalizeRelationType(relType)
	return Rule{
		Name: "symmetric-" + strings.ToLower(string(typ)),
		When: []Pattern{
			{Subject: Var("X"), Type: Lit(string(typ)), Object: Var("Y"), Truth: truth.StateTrue},
		},
		Then:  Conclusion{Subject: Var("Y"), Type: Lit(string(typ)), Object: Var("X"), Value: v},
		Align: true,
	}
}

// Inherit builds the IS-A propagation rule for a relation type: a
// relation holding for a parent holds for its children. It matches the
// HAS_PARENT relations the engine materializes from the hierarchy.
func Inherit(relType string) Rule {
	typ := ontology.NormalizeRelationType(relType)
	return Rule{
		Name: "inherit-" + strings.ToLower(string(typ)),
		When: []Pattern{
			{Subject: Var("C"), Type: Lit(HierarchyRelation), Object: Var("P"), Truth: truth.StateTrue},
			{Subject: Var("P"), Type: Lit(string(typ)), Object: Var("O"), Truth: truth.StateTrue},
		},
		Then:  Conclusion{Subject: Var("C"), Type: Lit(string(typ)), Object: Var("O"), Value: truth.True},
		Align: true,
	}
}

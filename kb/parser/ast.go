package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/teranos/doxa/kb/contexts"
	"github.com/teranos/doxa/kb/temporal"
	"github.com/teranos/doxa/kb/truth"
)

// Statement is one parsed top-level statement.
type Statement interface {
	fmt.Stringer
	stmt()
}

// Expr is a proposition expression inside a statement.
type Expr interface {
	fmt.Stringer
	expr()
}

// Arg is one predicate argument: an entity name or a $variable.
type Arg struct {
	Text     string
	Variable bool
}

func (a Arg) String() string {
	if a.Variable {
		return "$" + a.Text
	}
	return a.Text
}

// Pred is a binary predicate: TYPE(SUBJECT, OBJECT).
type Pred struct {
	Name    string
	Subject Arg
	Object  Arg
}

// Ident is a bare name. It only appears as an operand of IS; anywhere
// else the compiler rejects it.
type Ident struct {
	Name string
}

// IsA is the `CHILD IS PARENT` sugar: an IS predicate that also records
// the parent edge.
type IsA struct {
	Child  string
	Parent string
}

// Not negates an expression.
type Not struct {
	X Expr
}

// Bin applies a binary connective.
type Bin struct {
	Op truth.Connective
	L  Expr
	R  Expr
}

// CtxRef references a named context: [NAME].
type CtxRef struct {
	Name string
}

func (Pred) expr()   {}
func (Ident) expr()  {}
func (IsA) expr()    {}
func (Not) expr()    {}
func (Bin) expr()    {}
func (CtxRef) expr() {}

func (p Pred) String() string {
	return fmt.Sprintf("%s(%s, %s)", p.Name, p.Subject, p.Object)
}

func (i Ident) String() string {
	return i.Name
}

func (i IsA) String() string {
	return fmt.Sprintf("%s IS %s", i.Child, i.Parent)
}

func (n Not) String() string {
	return "NOT " + n.X.String()
}

func (b Bin) String() string {
	return fmt.Sprintf("(%s %s %s)", b.L, b.Op, b.R)
}

func (c CtxRef) String() string {
	return "[" + c.Name + "]"
}

// Assign asserts that an expression holds with the given value, over a
// window when one was written.
type Assign struct {
	Target    Expr
	Value     truth.Value
	Window    temporal.Interval
	HasWindow bool
}

// Query asks for an expression's value: at an instant (At, defaulting to
// now) or across a window (Over).
type Query struct {
	Target Expr
	At     *time.Time
	Over   *temporal.Interval
}

// ContextDef names an expression for later reference.
type ContextDef struct {
	Name string
	Body Expr
}

// Conditional is a ground rule: IF antecedent THEN consequent = value.
type Conditional struct {
	Antecedent Expr
	Consequent Pred
	Value      truth.Value
}

// Quantified wraps a statement under FORALL/EXISTS variables.
type Quantified struct {
	Quant contexts.Quantifier
	Vars  []string
	Body  Statement
}

func (Assign) stmt()      {}
func (Query) stmt()       {}
func (ContextDef) stmt()  {}
func (Conditional) stmt() {}
func (Quantified) stmt()  {}

func (a Assign) String() string {
	s := fmt.Sprintf("%s = %s", a.Target, a.Value)
	if a.HasWindow {
		s += " over " + a.Window.String()
	}
	return s
}

func (q Query) String() string {
	s := q.Target.String() + " ?"
	switch {
	case q.Over != nil:
		s += " over " + q.Over.String()
	case q.At != nil:
		s += " @ " + q.At.Format(time.RFC3339)
	}
	return s
}

func (c ContextDef) String() string {
	return fmt.Sprintf("CONTEXT %s: %s", c.Name, c.Body)
}

func (c Conditional) String() string {
	return fmt.Sprintf("IF %s THEN %s = %s", c.Antecedent, c.Consequent, c.Value)
}

func (q Quantified) String() string {
	vars := make([]string, len(q.Vars))
	for i, v := range q.Vars {
		vars[i] = "$" + v
	}
	return fmt.Sprintf("%s(%s): %s", q.Quant, strings.Join(vars, ", "), q.Body)
}

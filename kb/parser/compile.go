package parser

import (
	"fmt"
	"time"

	"github.com/teranos/doxa/kb/contexts"
	"github.com/teranos/doxa/kb/inference"
	"github.com/teranos/doxa/kb/temporal"
	"github.com/teranos/doxa/kb/truth"
)

// Op is one executable operation compiled from a statement. The parser
// never touches the knowledge base itself; a session runs the op.
type Op interface {
	op()
}

// Fact is one concrete truth assertion. Subject and Object hold `$X`
// placeholders when the enclosing AssertOp carries variables.
type Fact struct {
	Subject string
	Type    string
	Object  string
	Value   truth.Value
}

func (f Fact) String() string {
	return fmt.Sprintf("%s(%s, %s) = %s", f.Type, f.Subject, f.Object, f.Value)
}

// ParentEdge records an IS-A edge from the `CHILD IS PARENT` sugar.
type ParentEdge struct {
	Child  string
	Parent string
}

// AssertOp asserts facts over a window. With Vars set (a FORALL
// assignment) the session substitutes every entity for each variable
// and asserts the resulting ground facts.
type AssertOp struct {
	Vars    []string
	Facts   []Fact
	Parents []ParentEdge
	Window  temporal.Interval
}

// QueryOp evaluates a context tree: at an instant (At, nil meaning now)
// or across a window.
type QueryOp struct {
	Node contexts.Node
	At   *time.Time
	Over *temporal.Interval
}

// ContextOp defines a named context.
type ContextOp struct {
	Name string
	Node contexts.Node
}

// RuleOp registers an inference rule compiled from a conditional.
type RuleOp struct {
	Rule inference.Rule
}

func (AssertOp) op()  {}
func (QueryOp) op()   {}
func (ContextOp) op() {}
func (RuleOp) op()    {}

// Compile lowers a parsed statement to its operation. Errors are always
// *ParseError with kind semantic.
func Compile(stmt Statement) (Op, error) {
	return compile(stmt, nil)
}

// compile threads the quantifier variables bound so far.
func compile(stmt Statement, bound []string) (Op, error) {
	switch s := stmt.(type) {
	case Assign:
		return compileAssign(s, bound)
	case Query:
		return compileQuery(s, bound)
	case ContextDef:
		return compileContext(s)
	case Conditional:
		return compileConditional(s, bound)
	case Quantified:
		return compileQuantified(s, bound)
	}
	return nil, NewParseError(ErrorKindSemantic, fmt.Sprintf("cannot compile %T", stmt))
}

func compileAssign(s Assign, bound []string) (Op, error) {
	facts, parents, err := flatten(s.Target, s.Value)
	if err != nil {
		return nil, err
	}
	op := AssertOp{Vars: bound, Facts: facts, Parents: parents, Window: s.Window}
	if !s.HasWindow {
		op.Window = temporal.Always
	}
	if err := checkVarUse(factVars(facts, parents), bound); err != nil {
		return nil, err
	}
	return op, nil
}

func compileQuery(s Query, bound []string) (Op, error) {
	node, err := lower(s.Target)
	if err != nil {
		return nil, err
	}
	if err := checkVarUse(nodeVars(node), bound); err != nil {
		return nil, err
	}
	return QueryOp{Node: node, At: s.At, Over: s.Over}, nil
}

func compileContext(s ContextDef) (Op, error) {
	node, err := lower(s.Body)
	if err != nil {
		return nil, err
	}
	if vars := nodeVars(node); len(vars) > 0 {
		return nil, NewParseError(ErrorKindSemantic,
			fmt.Sprintf("context %s leaves $%s unbound", s.Name, vars[0])).
			WithSuggestion("contexts must be closed; bind variables with FORALL/EXISTS in the query instead")
	}
	return ContextOp{Name: s.Name, Node: node}, nil
}

func compileConditional(s Conditional, bound []string) (Op, error) {
	when, err := conditionPatterns(s.Antecedent)
	if err != nil {
		return nil, err
	}
	rule := inference.Rule{
		Name: fmt.Sprintf("if %s then %s", s.Antecedent, s.Consequent),
		When: when,
		Then: inference.Conclusion{
			Subject: argTerm(s.Consequent.Subject),
			Type:    inference.Lit(s.Consequent.Name),
			Object:  argTerm(s.Consequent.Object),
			Value:   s.Value,
		},
		Align: true,
	}
	if err := rule.Validate(); err != nil {
		return nil, NewParseError(ErrorKindSemantic, err.Error()).WithUnderlying(err)
	}
	return RuleOp{Rule: rule}, nil
}

func compileQuantified(s Quantified, bound []string) (Op, error) {
	allBound := append(append([]string(nil), bound...), s.Vars...)

	switch body := s.Body.(type) {
	case Query:
		node, err := lower(body.Target)
		if err != nil {
			return nil, err
		}
		if err := checkVarUse(nodeVars(node), allBound); err != nil {
			return nil, err
		}
		// Innermost variable binds closest to the body.
		wrap := func(vars []string, q contexts.Quantifier, n contexts.Node) contexts.Node {
			for i := len(vars) - 1; i >= 0; i-- {
				n = contexts.Quantified{Quant: q, Variable: vars[i], Body: n}
			}
			return n
		}
		return QueryOp{Node: wrap(s.Vars, s.Quant, node), At: body.At, Over: body.Over}, nil

	case Assign:
		if s.Quant == contexts.Exists {
			return nil, NewParseError(ErrorKindSemantic, "EXISTS cannot assert; no witness is named").
				WithSuggestion("assert the fact for a concrete entity instead")
		}
		return compile(body, allBound)

	case Conditional:
		// Rules are implicitly universal over their variables.
		if s.Quant == contexts.Exists {
			return nil, NewParseError(ErrorKindSemantic, "EXISTS cannot wrap a conditional").
				WithSuggestion("conditionals already range over all matches")
		}
		return compile(body, allBound)

	case ContextDef:
		return nil, NewParseError(ErrorKindSemantic, "a context definition cannot be quantified").
			WithSuggestion("bind variables in the query that uses the context instead")

	case Quantified:
		inner, err := compile(body, allBound)
		if err != nil {
			return nil, err
		}
		q, ok := inner.(QueryOp)
		if !ok {
			// The nested statement compiled to an assertion or rule;
			// those admit only universal wrapping.
			if s.Quant == contexts.Exists {
				return nil, NewParseError(ErrorKindSemantic, "EXISTS cannot wrap an assertion or conditional").
					WithSuggestion("EXISTS quantifies queries only")
			}
			return inner, nil
		}
		wrap := q.Node
		for i := len(s.Vars) - 1; i >= 0; i-- {
			wrap = contexts.Quantified{Quant: s.Quant, Variable: s.Vars[i], Body: wrap}
		}
		q.Node = wrap
		return q, nil
	}

	return nil, NewParseError(ErrorKindSemantic,
		fmt.Sprintf("%s cannot wrap this statement", s.Quant))
}

// lower converts an expression to a context tree.
func lower(e Expr) (contexts.Node, error) {
	switch x := e.(type) {
	case Pred:
		return contexts.Leaf{Subject: x.Subject.String(), Type: x.Name, Object: x.Object.String()}, nil
	case IsA:
		return contexts.Leaf{Subject: x.Child, Type: "IS", Object: x.Parent}, nil
	case Not:
		kid, err := lower(x.X)
		if err != nil {
			return nil, err
		}
		return contexts.Op{Connective: truth.ConnNot, Kids: []contexts.Node{kid}}, nil
	case Bin:
		l, err := lower(x.L)
		if err != nil {
			return nil, err
		}
		r, err := lower(x.R)
		if err != nil {
			return nil, err
		}
		return contexts.Op{Connective: x.Op, Kids: []contexts.Node{l, r}}, nil
	case CtxRef:
		return contexts.Ref{Name: x.Name}, nil
	case Ident:
		return nil, NewParseError(ErrorKindSemantic,
			fmt.Sprintf("%s on its own is not a proposition", x.Name)).
			WithSuggestion("propositions are predicates: TYPE(SUBJECT, OBJECT)")
	}
	return nil, NewParseError(ErrorKindSemantic, fmt.Sprintf("cannot lower %T", e))
}

// decomposeHint names the only compound shapes an assignment determines.
const decomposeHint = "decomposable assertions: AND = TRUE, OR = FALSE, NAND = FALSE, NOR = TRUE, or NOT of one of these"

// flatten reduces an assignment target to leaf facts, pushing NOT
// through by value inversion and splitting determined conjunctions.
func flatten(e Expr, v truth.Value) ([]Fact, []ParentEdge, error) {
	switch x := e.(type) {
	case Pred:
		return []Fact{{
			Subject: x.Subject.String(),
			Type:    x.Name,
			Object:  x.Object.String(),
			Value:   v,
		}}, nil, nil

	case IsA:
		fact := Fact{Subject: x.Child, Type: "IS", Object: x.Parent, Value: v}
		if v.State != truth.StateTrue {
			// Only an affirmed IS records a hierarchy edge.
			return []Fact{fact}, nil, nil
		}
		return []Fact{fact}, []ParentEdge{{Child: x.Child, Parent: x.Parent}}, nil

	case Not:
		return flatten(x.X, truth.Not(v))

	case Bin:
		var each truth.Value
		switch {
		case x.Op == truth.ConnAnd && v.State == truth.StateTrue:
			each = truth.True
		case x.Op == truth.ConnOr && v.State == truth.StateFalse:
			each = truth.False
		case x.Op == truth.ConnNand && v.State == truth.StateFalse:
			each = truth.True
		case x.Op == truth.ConnNor && v.State == truth.StateTrue:
			each = truth.False
		default:
			return nil, nil, NewParseError(ErrorKindSemantic,
				fmt.Sprintf("%s = %s does not determine its parts", x, v)).
				WithSuggestion(decomposeHint)
		}
		lf, lp, err := flatten(x.L, each)
		if err != nil {
			return nil, nil, err
		}
		rf, rp, err := flatten(x.R, each)
		if err != nil {
			return nil, nil, err
		}
		return append(lf, rf...), append(lp, rp...), nil

	case CtxRef:
		return nil, nil, NewParseError(ErrorKindSemantic,
			fmt.Sprintf("[%s] cannot be asserted", x.Name)).
			WithSuggestion("assert the underlying predicates directly")

	case Ident:
		return nil, nil, NewParseError(ErrorKindSemantic,
			fmt.Sprintf("%s on its own is not assertable", x.Name)).
			WithSuggestion("assert a predicate: TYPE(SUBJECT, OBJECT) = TRUE")
	}
	return nil, nil, NewParseError(ErrorKindSemantic, fmt.Sprintf("cannot assert %T", e))
}

// conditionPatterns reduces a conditional antecedent to preconditions:
// a conjunction of predicates, each optionally negated.
func conditionPatterns(e Expr) ([]inference.Pattern, error) {
	switch x := e.(type) {
	case Pred:
		return []inference.Pattern{predPattern(x, truth.StateTrue)}, nil
	case IsA:
		return []inference.Pattern{{
			Subject: isTerm(x.Child),
			Type:    inference.Lit("IS"),
			Object:  isTerm(x.Parent),
			Truth:   truth.StateTrue,
		}}, nil
	case Not:
		inner, ok := x.X.(Pred)
		if !ok {
			return nil, NewParseError(ErrorKindSemantic,
				"a condition may negate single predicates only")
		}
		return []inference.Pattern{predPattern(inner, truth.StateFalse)}, nil
	case Bin:
		if x.Op != truth.ConnAnd {
			return nil, NewParseError(ErrorKindSemantic,
				fmt.Sprintf("a condition is a conjunction of predicates, not %s", x.Op)).
				WithSuggestion("join conditions with AND")
		}
		l, err := conditionPatterns(x.L)
		if err != nil {
			return nil, err
		}
		r, err := conditionPatterns(x.R)
		if err != nil {
			return nil, err
		}
		return append(l, r...), nil
	}
	return nil, NewParseError(ErrorKindSemantic,
		fmt.Sprintf("%s cannot appear in a condition", e)).
		WithSuggestion("conditions are predicates joined with AND, each optionally under NOT")
}

func predPattern(p Pred, state truth.State) inference.Pattern {
	return inference.Pattern{
		Subject: argTerm(p.Subject),
		Type:    inference.Lit(p.Name),
		Object:  argTerm(p.Object),
		Truth:   state,
	}
}

func argTerm(a Arg) inference.Term {
	if a.Variable {
		return inference.Var(a.Text)
	}
	return inference.Lit(a.Text)
}

// isTerm converts an IS operand, either an entity name or a `$X`
// placeholder, to a term.
func isTerm(s string) inference.Term {
	if contexts.IsVariable(s) {
		return inference.Var(s)
	}
	return inference.Lit(s)
}

// nodeVars collects unbound variable names appearing in a tree, outermost
// first, skipping those a nested quantifier binds.
func nodeVars(n contexts.Node) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(n contexts.Node, bound map[string]bool)
	walk = func(n contexts.Node, bound map[string]bool) {
		switch v := n.(type) {
		case contexts.Leaf:
			for _, s := range []string{v.Subject, v.Object} {
				if contexts.IsVariable(s) {
					name := s[1:]
					if !bound[name] && !seen[name] {
						seen[name] = true
						out = append(out, name)
					}
				}
			}
		case contexts.Op:
			for _, k := range v.Kids {
				walk(k, bound)
			}
		case contexts.Quantified:
			inner := map[string]bool{v.Variable: true}
			for k := range bound {
				inner[k] = true
			}
			walk(v.Body, inner)
		}
	}
	walk(n, map[string]bool{})
	return out
}

// factVars collects variable names used by facts and parent edges.
func factVars(facts []Fact, parents []ParentEdge) []string {
	var out []string
	seen := map[string]bool{}
	record := func(s string) {
		if contexts.IsVariable(s) && !seen[s[1:]] {
			seen[s[1:]] = true
			out = append(out, s[1:])
		}
	}
	for _, f := range facts {
		record(f.Subject)
		record(f.Object)
	}
	for _, p := range parents {
		record(p.Child)
		record(p.Parent)
	}
	return out
}

// checkVarUse rejects variables no quantifier binds.
func checkVarUse(used, bound []string) error {
	boundSet := map[string]bool{}
	for _, b := range bound {
		boundSet[b] = true
	}
	for _, u := range used {
		if !boundSet[u] {
			return NewParseError(ErrorKindSemantic,
				fmt.Sprintf("variable $%s is not bound by a quantifier", u)).
				WithSuggestion(fmt.Sprintf("wrap the statement: FORALL($%s): ...", u))
		}
	}
	return nil
}

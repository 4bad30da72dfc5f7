// Package contexts implements named logical conditions over relations:
// expression trees of relation leaves, references to other named
// contexts, connectives, and quantifiers, evaluated against the
// ontology at an instant or over a range.
package contexts

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/truth"
)

// Node is one vertex of a context expression tree.
type Node interface {
	fmt.Stringer
	node()
}

// Leaf names a relation. Subject and Object may be `$VAR` variables
// when the leaf sits under a Quantified binding that variable. A
// non-zero At pins the leaf to that instant regardless of the
// evaluation time.
type Leaf struct {
	Subject string
	Type    string
	Object  string
	At      time.Time
}

func (Leaf) node() {}

func (l Leaf) String() string {
	s := fmt.Sprintf("%s(%s, %s)", l.Type, l.Subject, l.Object)
	if !l.At.IsZero() {
		s += " @ " + l.At.Format(time.RFC3339)
	}
	return s
}

// Ref points at a named context in the registry.
type Ref struct {
	Name string
}

func (Ref) node() {}

func (r Ref) String() string { return "[" + r.Name + "]" }

// Op combines ordered children with a connective. Not takes exactly one
// child; binary connectives take at least two and fold left.
type Op struct {
	Connective truth.Connective
	Kids       []Node
}

func (Op) node() {}

func (o Op) String() string {
	if o.Connective == truth.ConnNot && len(o.Kids) == 1 {
		return "NOT " + o.Kids[0].String()
	}
	parts := make([]string, len(o.Kids))
	for i, k := range o.Kids {
		parts[i] = k.String()
	}
	return "(" + strings.Join(parts, " "+o.Connective.String()+" ") + ")"
}

// Quantifier selects the fold a Quantified node applies.
type Quantifier uint8

const (
	ForAll Quantifier = iota
	Exists
)

func (q Quantifier) String() string {
	if q == Exists {
		return "EXISTS"
	}
	return "FORALL"
}

// ParseQuantifier converts a quantifier keyword.
func ParseQuantifier(s string) (Quantifier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FORALL":
		return ForAll, nil
	case "EXISTS":
		return Exists, nil
	default:
		return ForAll, errors.Newf("unknown quantifier %q", s)
	}
}

// Quantified binds a variable over the entity domain and folds the
// instantiated bodies: And for ForAll, Or for Exists.
type Quantified struct {
	Quant    Quantifier
	Variable string
	Body     Node
}

func (Quantified) node() {}

func (q Quantified) String() string {
	return fmt.Sprintf("%s $%s: %s", q.Quant, q.Variable, q.Body.String())
}

// wireNode is the JSON shape of a node: a kind tag plus the union of
// per-kind fields.
type wireNode struct {
	Kind       string     `json:"kind"`
	Subject    string     `json:"subject,omitempty"`
	Type       string     `json:"type,omitempty"`
	Object     string     `json:"object,omitempty"`
	At         *time.Time `json:"at,omitempty"`
	Name       string     `json:"name,omitempty"`
	Connective string     `json:"connective,omitempty"`
	Kids       []wireNode `json:"kids,omitempty"`
	Quantifier string     `json:"quantifier,omitempty"`
	Variable   string     `json:"variable,omitempty"`
	Body       *wireNode  `json:"body,omitempty"`
}

func toWire(n Node) (wireNode, error) {
	switch v := n.(type) {
	case Leaf:
		w := wireNode{Kind: "leaf", Subject: v.Subject, Type: v.Type, Object: v.Object}
		if !v.At.IsZero() {
			at := v.At
			w.At = &at
		}
		return w, nil
	case Ref:
		return wireNode{Kind: "ref", Name: v.Name}, nil
	case Op:
		w := wireNode{Kind: "op", Connective: v.Connective.String()}
		for _, kid := range v.Kids {
			kw, err := toWire(kid)
			if err != nil {
				return wireNode{}, err
			}
			w.Kids = append(w.Kids, kw)
		}
		return w, nil
	case Quantified:
		body, err := toWire(v.Body)
		if err != nil {
			return wireNode{}, err
		}
		return wireNode{Kind: "quantified", Quantifier: v.Quant.String(), Variable: v.Variable, Body: &body}, nil
	default:
		return wireNode{}, errors.Newf("unknown context node type %T", n)
	}
}

func fromWire(w wireNode) (Node, error) {
	switch w.Kind {
	case "leaf":
		l := Leaf{Subject: w.Subject, Type: w.Type, Object: w.Object}
		if w.At != nil {
			l.At = *w.At
		}
		return l, nil
	case "ref":
		return Ref{Name: w.Name}, nil
	case "op":
		conn, err := truth.ParseConnective(w.Connective)
		if err != nil {
			return nil, err
		}
		op := Op{Connective: conn}
		for _, kw := range w.Kids {
			kid, err := fromWire(kw)
			if err != nil {
				return nil, err
			}
			op.Kids = append(op.Kids, kid)
		}
		return op, nil
	case "quantified":
		if w.Body == nil {
			return nil, errors.Newf("quantified node without body")
		}
		quant, err := ParseQuantifier(w.Quantifier)
		if err != nil {
			return nil, err
		}
		body, err := fromWire(*w.Body)
		if err != nil {
			return nil, err
		}
		return Quantified{Quant: quant, Variable: w.Variable, Body: body}, nil
	default:
		return nil, errors.Newf("unknown context node kind %q", w.Kind)
	}
}

// MarshalNode encodes a node tree as tagged JSON.
func MarshalNode(n Node) ([]byte, error) {
	w, err := toWire(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalNode decodes a node tree from tagged JSON.
func UnmarshalNode(data []byte) (Node, error) {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.Wrap(err, "decoding context node")
	}
	return fromWire(w)
}

// IsVariable reports whether the name is a `$VAR` placeholder.
func IsVariable(name string) bool {
	return strings.HasPrefix(name, "$")
}

// substitute replaces occurrences of the variable in leaf subjects and
// objects with the entity id. An inner Quantified re-binding the same
// variable shadows the outer binding.
func substitute(n Node, variable, entity string) Node {
	placeholder := "$" + variable
	switch v := n.(type) {
	case Leaf:
		if strings.EqualFold(v.Subject, placeholder) {
			v.Subject = entity
		}
		if strings.EqualFold(v.Object, placeholder) {
			v.Object = entity
		}
		return v
	case Ref:
		return v
	case Op:
		kids := make([]Node, len(v.Kids))
		for i, kid := range v.Kids {
			kids[i] = substitute(kid, variable, entity)
		}
		return Op{Connective: v.Connective, Kids: kids}
	case Quantified:
		if strings.EqualFold(v.Variable, variable) {
			return v
		}
		return Quantified{Quant: v.Quant, Variable: v.Variable, Body: substitute(v.Body, variable, entity)}
	default:
		return n
	}
}

// Package truth implements the four-state truth algebra underlying the
// knowledge base: TRUE, FALSE, UNKNOWN, and SUPERPOSITION with a weight
// in [0, 1] giving the degree of collapse toward TRUE.
//
// The definite states follow Kleene three-valued logic. Superposition
// weights combine arithmetically: AND multiplies, OR takes the inclusive
// complement 1-(1-w1)(1-w2), NOT takes 1-w. A superposition combined with
// a definite value collapses by treating TRUE as weight 1 and FALSE as
// weight 0; it is never coerced to UNKNOWN. De Morgan's laws hold over
// weights within floating-point tolerance.
//
// Connectives never short-circuit: both operands are always inspected so
// weights propagate through every expression.
package truth

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/teranos/doxa/errors"
)

// State is one of the four truth states.
type State uint8

const (
	StateFalse State = iota
	StateTrue
	StateUnknown
	StateSuperposition
)

// String returns the canonical upper-case name of the state.
func (s State) String() string {
	switch s {
	case StateFalse:
		return "FALSE"
	case StateTrue:
		return "TRUE"
	case StateUnknown:
		return "UNKNOWN"
	case StateSuperposition:
		return "SUPERPOSITION"
	default:
		return fmt.Sprintf("STATE(%d)", uint8(s))
	}
}

// ParseState converts a state name (any case) into a State.
func ParseState(s string) (State, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FALSE":
		return StateFalse, nil
	case "TRUE":
		return StateTrue, nil
	case "UNKNOWN":
		return StateUnknown, nil
	case "SUPERPOSITION", "MAYBE":
		return StateSuperposition, nil
	default:
		return StateUnknown, errors.Newf("unknown truth state %q", s)
	}
}

// MarshalJSON encodes the state as its canonical name.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(s.String())), nil
}

// UnmarshalJSON decodes a state from its name.
func (s *State) UnmarshalJSON(data []byte) error {
	name, err := strconv.Unquote(string(data))
	if err != nil {
		return errors.Wrap(err, "truth state must be a string")
	}
	parsed, err := ParseState(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// WeightEpsilon is the tolerance for comparing superposition weights.
// Weight arithmetic accumulates float error, so equality checks and the
// De Morgan identities are only exact to within this bound.
const WeightEpsilon = 1e-9

// Value is a truth value: a state plus, for superposition only, a weight.
// Modality is assertion metadata and does not participate in the algebra.
type Value struct {
	State    State    `json:"state"`
	Weight   float64  `json:"weight,omitempty"`
	Modality Modality `json:"modality,omitempty"`
}

// The three definite values. Compare against these with Equal, not ==,
// when weights may be involved.
var (
	True    = Value{State: StateTrue}
	False   = Value{State: StateFalse}
	Unknown = Value{State: StateUnknown}
)

// Superposed returns a superposition with the given weight toward TRUE.
// The weight is clamped into [0, 1]; a fully collapsed weight (0 or 1,
// within WeightEpsilon) normalizes to the definite value so the algebra
// never carries a superposition that is secretly definite. Boundary
// validation of user-supplied weights happens before this constructor;
// see ParseWeight.
func Superposed(w float64) Value {
	if math.IsNaN(w) {
		return Unknown
	}
	if w <= WeightEpsilon {
		return False
	}
	if w >= 1-WeightEpsilon {
		return True
	}
	return Value{State: StateSuperposition, Weight: w}
}

// ParseWeight validates a user-supplied superposition weight.
func ParseWeight(w float64) (float64, error) {
	if math.IsNaN(w) || w < 0 || w > 1 {
		return 0, errors.Wrapf(errors.ErrInvalidWeight, "weight %v not in [0, 1]", w)
	}
	return w, nil
}

// IsDefinite reports whether the value is TRUE or FALSE.
func (v Value) IsDefinite() bool {
	return v.State == StateTrue || v.State == StateFalse
}

// Equal compares values: same state, and for superposition, weights within
// WeightEpsilon. Modality is metadata and is ignored.
func (v Value) Equal(o Value) bool {
	if v.State != o.State {
		return false
	}
	if v.State == StateSuperposition {
		return math.Abs(v.Weight-o.Weight) <= WeightEpsilon
	}
	return true
}

// Confidence maps a value onto [0, 1] for derivation ordering:
// definite values are fully confident, UNKNOWN carries none, and a
// superposition is as confident as its weight.
func (v Value) Confidence() float64 {
	switch v.State {
	case StateTrue, StateFalse:
		return 1
	case StateSuperposition:
		return v.Weight
	default:
		return 0
	}
}

// String renders the value for display: TRUE, FALSE, UNKNOWN, or
// SUPERPOSITION(0.80).
func (v Value) String() string {
	if v.State == StateSuperposition {
		return fmt.Sprintf("SUPERPOSITION(%.2f)", v.Weight)
	}
	return v.State.String()
}

// WithModality returns a copy of the value tagged with the given modality.
func (v Value) WithModality(m Modality) Value {
	v.Modality = m
	return v
}

// weight projects a value onto [0, 1] for combining with a superposition.
// Only call when the value is definite or a superposition.
func (v Value) weight() float64 {
	switch v.State {
	case StateTrue:
		return 1
	case StateFalse:
		return 0
	default:
		return v.Weight
	}
}

// Not negates a value: TRUE and FALSE swap, UNKNOWN stays, a superposition
// weight becomes its complement.
func Not(v Value) Value {
	switch v.State {
	case StateTrue:
		return False
	case StateFalse:
		return True
	case StateSuperposition:
		return Superposed(1 - v.Weight)
	default:
		return Unknown
	}
}

// And conjoins two values. FALSE absorbs, TRUE is the identity, UNKNOWN
// absorbs everything it cannot collapse, and superposition weights multiply.
func And(a, b Value) Value {
	// FALSE absorbs regardless of the other operand, including S(w): w*0 = 0.
	if a.State == StateFalse || b.State == StateFalse {
		return False
	}
	// No FALSE present: UNKNOWN absorbs (no weight to combine with).
	if a.State == StateUnknown || b.State == StateUnknown {
		return Unknown
	}
	if a.State == StateSuperposition || b.State == StateSuperposition {
		return Superposed(a.weight() * b.weight())
	}
	// Both definite TRUE.
	return True
}

// Or disjoins two values. TRUE absorbs, FALSE is the identity, and
// superposition weights combine as 1-(1-w1)(1-w2).
func Or(a, b Value) Value {
	if a.State == StateTrue || b.State == StateTrue {
		return True
	}
	if a.State == StateUnknown || b.State == StateUnknown {
		return Unknown
	}
	if a.State == StateSuperposition || b.State == StateSuperposition {
		return Superposed(1 - (1-a.weight())*(1-b.weight()))
	}
	return False
}

// Implies is material implication: NOT(a) OR b.
func Implies(a, b Value) Value {
	return Or(Not(a), b)
}

// Xor is exclusive or, derived from the primitive connectives so that
// weights propagate: (a AND NOT b) OR (NOT a AND b).
func Xor(a, b Value) Value {
	return Or(And(a, Not(b)), And(Not(a), b))
}

// Nand is NOT(a AND b).
func Nand(a, b Value) Value {
	return Not(And(a, b))
}

// Nor is NOT(a OR b).
func Nor(a, b Value) Value {
	return Not(Or(a, b))
}

// Xnor is NOT(a XOR b); for definite values this is logical equivalence.
func Xnor(a, b Value) Value {
	return Not(Xor(a, b))
}

// ParseValue parses a textual truth value: TRUE, FALSE, UNKNOWN, or
// MAYBE(0.8) / SUPERPOSITION(0.8). Case-insensitive.
func ParseValue(s string) (Value, error) {
	text := strings.TrimSpace(s)

	if open := strings.IndexByte(text, '('); open >= 0 {
		if !strings.HasSuffix(text, ")") {
			return Unknown, errors.Newf("malformed truth value %q", s)
		}
		state, err := ParseState(text[:open])
		if err != nil {
			return Unknown, err
		}
		if state != StateSuperposition {
			return Unknown, errors.Newf("state %s takes no weight", state)
		}
		raw := strings.TrimSpace(text[open+1 : len(text)-1])
		w, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Unknown, errors.Wrapf(errors.ErrInvalidWeight, "weight %q", raw)
		}
		if _, err := ParseWeight(w); err != nil {
			return Unknown, err
		}
		return Superposed(w), nil
	}

	state, err := ParseState(text)
	if err != nil {
		return Unknown, err
	}
	if state == StateSuperposition {
		return Unknown, errors.Wrap(errors.ErrInvalidWeight, "superposition requires a weight, e.g. MAYBE(0.5)")
	}
	return Value{State: state}, nil
}

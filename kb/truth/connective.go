package truth

import (
	"strconv"
	"strings"

	"github.com/teranos/doxa/errors"
)

// Connective identifies a logical operator over truth values.
type Connective uint8

const (
	ConnNot Connective = iota
	ConnAnd
	ConnOr
	ConnXor
	ConnNand
	ConnNor
	ConnXnor
	ConnImplies
)

func (c Connective) String() string {
	switch c {
	case ConnNot:
		return "NOT"
	case ConnAnd:
		return "AND"
	case ConnOr:
		return "OR"
	case ConnXor:
		return "XOR"
	case ConnNand:
		return "NAND"
	case ConnNor:
		return "NOR"
	case ConnXnor:
		return "XNOR"
	case ConnImplies:
		return "IMPLIES"
	default:
		return "CONN(" + strconv.Itoa(int(c)) + ")"
	}
}

// ParseConnective converts an operator name (any case) into a Connective.
func ParseConnective(s string) (Connective, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NOT":
		return ConnNot, nil
	case "AND":
		return ConnAnd, nil
	case "OR":
		return ConnOr, nil
	case "XOR":
		return ConnXor, nil
	case "NAND":
		return ConnNand, nil
	case "NOR":
		return ConnNor, nil
	case "XNOR":
		return ConnXnor, nil
	case "IMPLIES":
		return ConnImplies, nil
	default:
		return ConnNot, errors.Newf("unknown connective %q", s)
	}
}

// Unary reports whether the connective takes exactly one operand.
func (c Connective) Unary() bool {
	return c == ConnNot
}

// Apply combines operands with the connective. NOT takes exactly one
// operand; binary connectives take two or more and fold left to right, so
// AND(a, b, c) means AND(AND(a, b), c). Operand count mismatches are
// structural errors. Every operand is evaluated; nothing short-circuits.
func (c Connective) Apply(vals ...Value) (Value, error) {
	if c.Unary() {
		if len(vals) != 1 {
			return Unknown, errors.NewStructural("%s takes exactly 1 operand, got %d", c, len(vals))
		}
		return Not(vals[0]), nil
	}

	if len(vals) < 2 {
		return Unknown, errors.NewStructural("%s takes at least 2 operands, got %d", c, len(vals))
	}

	var combine func(a, b Value) Value
	switch c {
	case ConnAnd:
		combine = And
	case ConnOr:
		combine = Or
	case ConnXor:
		combine = Xor
	case ConnNand:
		combine = Nand
	case ConnNor:
		combine = Nor
	case ConnXnor:
		combine = Xnor
	case ConnImplies:
		combine = Implies
	default:
		return Unknown, errors.NewStructural("unknown connective %d", uint8(c))
	}

	out := vals[0]
	for _, v := range vals[1:] {
		out = combine(out, v)
	}
	return out, nil
}

// MarshalJSON encodes the connective as its name.
func (c Connective) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(c.String())), nil
}

// UnmarshalJSON decodes a connective from its name.
func (c *Connective) UnmarshalJSON(data []byte) error {
	name, err := strconv.Unquote(string(data))
	if err != nil {
		return errors.Wrap(err, "connective must be a string")
	}
	parsed, err := ParseConnective(name)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

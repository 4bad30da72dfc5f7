package temporal

import (
	"strconv"
	"strings"

	"github.com/teranos/doxa/errors"
)

// Origin records where a truth value came from. Asserted values were
// stated directly, inferred values were derived by the rule engine, and
// default values are the fallback a relation reports outside any stored
// interval. Only asserted and inferred values are ever stored; Default
// appears in partition segments covering gaps.
type Origin uint8

const (
	OriginAsserted Origin = iota
	OriginInferred
	OriginDefault
)

func (o Origin) String() string {
	switch o {
	case OriginAsserted:
		return "asserted"
	case OriginInferred:
		return "inferred"
	case OriginDefault:
		return "default"
	default:
		return "asserted"
	}
}

// ParseOrigin converts an origin name into an Origin.
func ParseOrigin(s string) (Origin, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asserted":
		return OriginAsserted, nil
	case "inferred":
		return OriginInferred, nil
	case "default":
		return OriginDefault, nil
	default:
		return OriginAsserted, errors.Newf("unknown origin %q", s)
	}
}

// MarshalJSON encodes the origin as its name.
func (o Origin) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(o.String())), nil
}

// UnmarshalJSON decodes an origin from its name.
func (o *Origin) UnmarshalJSON(data []byte) error {
	name, err := strconv.Unquote(string(data))
	if err != nil {
		return errors.Wrap(err, "origin must be a string")
	}
	parsed, err := ParseOrigin(name)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

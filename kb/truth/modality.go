package truth

import (
	"strconv"
	"strings"

	"github.com/teranos/doxa/errors"
)

// Modality classifies what kind of truth an assertion expresses. It is
// carried as metadata on assertions and snapshots; the algebra itself
// ignores it, and combined values always come out ALETHIC.
type Modality uint8

const (
	// Alethic is plain factual truth, the default.
	Alethic Modality = iota
	// Deontic marks obligation or permission ("dogs must be leashed").
	Deontic
	// Epistemic marks knowledge or belief ("as far as we know").
	Epistemic
	// Probabilistic marks statistical tendency rather than a single fact.
	Probabilistic
)

func (m Modality) String() string {
	switch m {
	case Alethic:
		return "ALETHIC"
	case Deontic:
		return "DEONTIC"
	case Epistemic:
		return "EPISTEMIC"
	case Probabilistic:
		return "PROBABILISTIC"
	default:
		return "ALETHIC"
	}
}

// ParseModality converts a modality name (any case) into a Modality.
func ParseModality(s string) (Modality, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ALETHIC":
		return Alethic, nil
	case "DEONTIC":
		return Deontic, nil
	case "EPISTEMIC":
		return Epistemic, nil
	case "PROBABILISTIC":
		return Probabilistic, nil
	default:
		return Alethic, errors.Newf("unknown modality %q", s)
	}
}

// MarshalJSON encodes the modality as its name. The zero value (ALETHIC)
// still encodes explicitly when marshaled directly; Value uses omitempty
// so default-modality values stay compact.
func (m Modality) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

// UnmarshalJSON decodes a modality from its name.
func (m *Modality) UnmarshalJSON(data []byte) error {
	name, err := strconv.Unquote(string(data))
	if err != nil {
		return errors.Wrap(err, "modality must be a string")
	}
	parsed, err := ParseModality(name)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

package ontology

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/temporal"
	"github.com/teranos/doxa/kb/truth"
)

// RelationType is the normalized (upper-case) name of a relation kind,
// like LOVES or LOCATED_IN.
type RelationType string

// NormalizeRelationType trims and upper-cases a raw relation type.
func NormalizeRelationType(raw string) RelationType {
	return RelationType(strings.ToUpper(strings.TrimSpace(raw)))
}

func (t RelationType) String() string { return string(t) }

// RelationKey identifies a relation by its endpoints and type. Keys
// reference entities by ID only; removing an entity invalidates every
// key naming it.
type RelationKey struct {
	Subject EntityID     `json:"subject"`
	Type    RelationType `json:"type"`
	Object  EntityID     `json:"object"`
}

func (k RelationKey) String() string {
	return fmt.Sprintf("%s(%s, %s)", k.Type, k.Subject, k.Object)
}

// Relation is one typed edge between two entities, carrying its own
// truth timeline. Default is the value reported outside any stored
// interval. Origin distinguishes relations stated by the user from
// relations the rule engine derived.
type Relation struct {
	ID        string          `json:"id"`
	Key       RelationKey     `json:"key"`
	Default   truth.Value     `json:"default"`
	Origin    temporal.Origin `json:"origin"`
	Seq       uint64          `json:"seq"`
	CreatedAt time.Time       `json:"created_at"`

	timeline *temporal.Store
}

// Timeline exposes the relation's truth timeline.
func (r *Relation) Timeline() *temporal.Store {
	return r.timeline
}

func newRelationID() string {
	u := uuid.New()
	return base58.Encode(u[:])
}

func validateRelationType(t RelationType) error {
	if t == "" {
		return errors.NewStructural("relation type must not be empty")
	}
	return nil
}

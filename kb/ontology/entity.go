package ontology

import (
	"strings"
	"time"

	"github.com/teranos/doxa/errors"
)

// EntityID is the normalized (upper-case) identifier of an entity.
type EntityID string

// NormalizeEntityID trims and upper-cases a raw identifier.
func NormalizeEntityID(raw string) EntityID {
	return EntityID(strings.ToUpper(strings.TrimSpace(raw)))
}

func (id EntityID) String() string { return string(id) }

// Entity is one named thing in the knowledge base. Parents records the
// IS-A hierarchy by ID; Note is a free-form description. Seq is the
// arena-wide creation sequence number used for deterministic iteration.
type Entity struct {
	ID        EntityID          `json:"id"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	Parents   []EntityID        `json:"parents,omitempty"`
	Note      string            `json:"note,omitempty"`
	Seq       uint64            `json:"seq"`
	CreatedAt time.Time         `json:"created_at"`
}

// HasParent reports whether parent is a direct parent of the entity.
func (e *Entity) HasParent(parent EntityID) bool {
	for _, p := range e.Parents {
		if p == parent {
			return true
		}
	}
	return false
}

func validateEntityID(id EntityID) error {
	if id == "" {
		return errors.NewStructural("entity id must not be empty")
	}
	if strings.HasPrefix(string(id), "$") {
		return errors.NewStructural("entity id %q: leading $ is reserved for variables", id)
	}
	return nil
}

package ontology

import (
	"github.com/teranos/doxa/kb/temporal"
	"github.com/teranos/doxa/kb/truth"
)

// EventKind labels one kind of arena mutation.
type EventKind uint8

const (
	EventEntityCreated EventKind = iota
	EventEntityRemoved
	EventRelationCreated
	EventRelationRemoved
	EventTruthAsserted
	EventDefaultChanged
	EventParentAdded
)

func (k EventKind) String() string {
	switch k {
	case EventEntityCreated:
		return "entity_created"
	case EventEntityRemoved:
		return "entity_removed"
	case EventRelationCreated:
		return "relation_created"
	case EventRelationRemoved:
		return "relation_removed"
	case EventTruthAsserted:
		return "truth_asserted"
	case EventDefaultChanged:
		return "default_changed"
	case EventParentAdded:
		return "parent_added"
	default:
		return "unknown"
	}
}

// Event describes one mutation of the arena. Fields beyond Kind are
// populated as far as they apply: entity events carry Entity, relation
// and truth events carry Relation, truth events additionally carry the
// interval and value.
type Event struct {
	Kind       EventKind
	Entity     EntityID
	Parent     EntityID
	Relation   RelationKey
	RelationID string
	Interval   temporal.Interval
	Value      truth.Value
	Origin     temporal.Origin
}

// Sink receives arena mutation events. Implementations must not call
// back into the arena from Notify; they run synchronously on the
// mutating goroutine.
type Sink interface {
	Notify(Event)
}

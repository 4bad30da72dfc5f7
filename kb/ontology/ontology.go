// Package ontology implements the entity/relation arena at the core of
// the knowledge base. Entities and relations live in maps keyed by ID;
// relations reference their endpoints by EntityID only, never by
// pointer, so removal is a map operation plus a cascade.
//
// The arena is not safe for concurrent use. Hosts (kb.Session) serialize
// access; the arena itself stays single-threaded and lock-free.
package ontology

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/temporal"
	"github.com/teranos/doxa/kb/truth"
	"github.com/teranos/doxa/logger"
)

// Ontology is the arena holding all entities and relations.
type Ontology struct {
	entities  map[EntityID]*Entity
	relations map[RelationKey]*Relation

	policy temporal.OverlapPolicy
	sink   Sink
	log    *zap.SugaredLogger
	clock  func() time.Time
	seq    uint64
}

// Option configures the arena.
type Option func(*Ontology)

// WithOverlapPolicy sets the overlap policy used by every relation
// timeline the arena creates.
func WithOverlapPolicy(p temporal.OverlapPolicy) Option {
	return func(o *Ontology) { o.policy = p }
}

// WithSink registers a mutation event sink.
func WithSink(s Sink) Option {
	return func(o *Ontology) { o.sink = s }
}

// WithLogger overrides the arena's logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *Ontology) { o.log = l }
}

// WithClock injects the time source for CreatedAt stamps. Tests pin this
// to a fixed instant.
func WithClock(clock func() time.Time) Option {
	return func(o *Ontology) { o.clock = clock }
}

// New builds an empty arena. Defaults: OverlapReject, no sink, the
// global logger, wall-clock time.
func New(opts ...Option) *Ontology {
	o := &Ontology{
		entities:  make(map[EntityID]*Entity),
		relations: make(map[RelationKey]*Relation),
		policy:    temporal.OverlapReject,
		log:       logger.Logger,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Policy returns the overlap policy applied to relation timelines.
func (o *Ontology) Policy() temporal.OverlapPolicy {
	return o.policy
}

func (o *Ontology) nextSeq() uint64 {
	o.seq++
	return o.seq
}

func (o *Ontology) emit(ev Event) {
	if o.sink != nil {
		o.sink.Notify(ev)
	}
}

// CreateEntity registers a new entity under the normalized id. Attrs are
// copied. Creating an id that already exists fails with a DuplicateEntity
// error.
func (o *Ontology) CreateEntity(rawID string, attrs map[string]string) (*Entity, error) {
	id := NormalizeEntityID(rawID)
	if err := validateEntityID(id); err != nil {
		return nil, err
	}
	if _, exists := o.entities[id]; exists {
		return nil, errors.Wrapf(errors.ErrDuplicateEntity, "entity %s", id)
	}

	e := &Entity{
		ID:        id,
		Seq:       o.nextSeq(),
		CreatedAt: o.clock(),
	}
	if len(attrs) > 0 {
		e.Attrs = make(map[string]string, len(attrs))
		for k, v := range attrs {
			e.Attrs[k] = v
		}
	}
	o.entities[id] = e

	o.log.Debugw("Entity created", logger.FieldEntity, string(id))
	o.emit(Event{Kind: EventEntityCreated, Entity: id})
	return e, nil
}

// Entity looks up an entity by id.
func (o *Ontology) Entity(rawID string) (*Entity, error) {
	id := NormalizeEntityID(rawID)
	e, ok := o.entities[id]
	if !ok {
		return nil, errors.WrapUnknownEntity(string(id))
	}
	return e, nil
}

// HasEntity reports whether the id names a known entity.
func (o *Ontology) HasEntity(rawID string) bool {
	_, ok := o.entities[NormalizeEntityID(rawID)]
	return ok
}

// RemoveEntity deletes an entity and cascades: every relation naming it
// as subject or object is removed, and it is stripped from all Parents
// lists. Fails with UnknownEntity when absent.
func (o *Ontology) RemoveEntity(rawID string) error {
	id := NormalizeEntityID(rawID)
	if _, ok := o.entities[id]; !ok {
		return errors.WrapUnknownEntity(string(id))
	}

	for _, rel := range o.Relations() {
		if rel.Key.Subject == id || rel.Key.Object == id {
			delete(o.relations, rel.Key)
			o.emit(Event{Kind: EventRelationRemoved, Relation: rel.Key, RelationID: rel.ID})
		}
	}
	for _, e := range o.entities {
		e.Parents = removeParent(e.Parents, id)
	}
	delete(o.entities, id)

	o.log.Debugw("Entity removed", logger.FieldEntity, string(id))
	o.emit(Event{Kind: EventEntityRemoved, Entity: id})
	return nil
}

func removeParent(parents []EntityID, id EntityID) []EntityID {
	out := parents[:0]
	for _, p := range parents {
		if p != id {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Entities returns all entities in creation order.
func (o *Ontology) Entities() []*Entity {
	out := make([]*Entity, 0, len(o.entities))
	for _, e := range o.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// SetNote attaches a free-form description to an entity.
func (o *Ontology) SetNote(rawID, note string) error {
	e, err := o.Entity(rawID)
	if err != nil {
		return err
	}
	e.Note = note
	return nil
}

// SetAttr sets one attribute on an entity.
func (o *Ontology) SetAttr(rawID, key, value string) error {
	e, err := o.Entity(rawID)
	if err != nil {
		return err
	}
	if e.Attrs == nil {
		e.Attrs = make(map[string]string)
	}
	e.Attrs[key] = value
	return nil
}

// AddParent records child IS-A parent. Both entities must exist; an
// entity cannot be its own parent, directly or through the existing
// hierarchy. Re-adding a parent is a no-op.
func (o *Ontology) AddParent(rawChild, rawParent string) error {
	child, err := o.Entity(rawChild)
	if err != nil {
		return err
	}
	parent, err := o.Entity(rawParent)
	if err != nil {
		return err
	}
	if child.ID == parent.ID {
		return errors.NewStructural("entity %s cannot be its own parent", child.ID)
	}
	if child.HasParent(parent.ID) {
		return nil
	}
	// Reject edges that would close a hierarchy cycle.
	ancestors, err := o.Ancestors(string(parent.ID))
	if err != nil {
		return err
	}
	for _, a := range ancestors {
		if a == child.ID {
			return errors.NewStructural("parent edge %s -> %s would create a hierarchy cycle", child.ID, parent.ID)
		}
	}

	child.Parents = append(child.Parents, parent.ID)
	o.emit(Event{Kind: EventParentAdded, Entity: child.ID, Parent: parent.ID})
	return nil
}

// Ancestors walks the IS-A hierarchy transitively, breadth-first, in
// recorded parent order. The entity itself is not included.
func (o *Ontology) Ancestors(rawID string) ([]EntityID, error) {
	e, err := o.Entity(rawID)
	if err != nil {
		return nil, err
	}

	var out []EntityID
	seen := map[EntityID]bool{e.ID: true}
	queue := append([]EntityID(nil), e.Parents...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		if parent, ok := o.entities[id]; ok {
			queue = append(queue, parent.Parents...)
		}
	}
	return out, nil
}

// IsA reports whether ancestor appears in the entity's transitive
// hierarchy. An entity is not its own ancestor.
func (o *Ontology) IsA(rawChild, rawAncestor string) (bool, error) {
	ancestor := NormalizeEntityID(rawAncestor)
	ancestors, err := o.Ancestors(rawChild)
	if err != nil {
		return false, err
	}
	for _, a := range ancestors {
		if a == ancestor {
			return true, nil
		}
	}
	return false, nil
}

// CreateRelation registers a typed edge between two existing entities
// with the given default truth value. Both endpoints must exist; a
// relation with the same (subject, type, object) must not.
func (o *Ontology) CreateRelation(rawSubj, rawType, rawObj string, def truth.Value) (*Relation, error) {
	return o.createRelation(rawSubj, rawType, rawObj, def, temporal.OriginAsserted)
}

// EnsureRelation returns the relation for the key, creating it with the
// given default and origin when absent. The rule engine uses this to
// materialize derived relations.
func (o *Ontology) EnsureRelation(rawSubj, rawType, rawObj string, def truth.Value, origin temporal.Origin) (*Relation, error) {
	key, err := o.resolveKey(rawSubj, rawType, rawObj)
	if err != nil {
		return nil, err
	}
	if rel, ok := o.relations[key]; ok {
		return rel, nil
	}
	return o.createRelation(rawSubj, rawType, rawObj, def, origin)
}

func (o *Ontology) createRelation(rawSubj, rawType, rawObj string, def truth.Value, origin temporal.Origin) (*Relation, error) {
	key, err := o.resolveKey(rawSubj, rawType, rawObj)
	if err != nil {
		return nil, err
	}
	if _, exists := o.relations[key]; exists {
		return nil, errors.Wrapf(errors.ErrDuplicateRelation, "relation %s", key)
	}

	rel := &Relation{
		ID:        newRelationID(),
		Key:       key,
		Default:   def,
		Origin:    origin,
		Seq:       o.nextSeq(),
		CreatedAt: o.clock(),
		timeline:  temporal.NewStore(o.policy),
	}
	o.relations[key] = rel

	o.log.Debugw("Relation created", logger.FieldRelation, key.String(), logger.FieldTruth, def.String())
	o.emit(Event{Kind: EventRelationCreated, Relation: key, RelationID: rel.ID, Value: def, Origin: origin})
	return rel, nil
}

// resolveKey normalizes the raw triple and checks both endpoints exist.
func (o *Ontology) resolveKey(rawSubj, rawType, rawObj string) (RelationKey, error) {
	key := RelationKey{
		Subject: NormalizeEntityID(rawSubj),
		Type:    NormalizeRelationType(rawType),
		Object:  NormalizeEntityID(rawObj),
	}
	if err := validateRelationType(key.Type); err != nil {
		return RelationKey{}, err
	}
	if _, ok := o.entities[key.Subject]; !ok {
		return RelationKey{}, errors.WrapUnknownEntity(string(key.Subject))
	}
	if _, ok := o.entities[key.Object]; !ok {
		return RelationKey{}, errors.WrapUnknownEntity(string(key.Object))
	}
	return key, nil
}

// Relation looks up a relation by its triple.
func (o *Ontology) Relation(rawSubj, rawType, rawObj string) (*Relation, error) {
	key := RelationKey{
		Subject: NormalizeEntityID(rawSubj),
		Type:    NormalizeRelationType(rawType),
		Object:  NormalizeEntityID(rawObj),
	}
	rel, ok := o.relations[key]
	if !ok {
		return nil, errors.WrapUnknownRelation(string(key.Subject), string(key.Type), string(key.Object))
	}
	return rel, nil
}

// HasRelation reports whether the triple names a known relation.
func (o *Ontology) HasRelation(rawSubj, rawType, rawObj string) bool {
	key := RelationKey{
		Subject: NormalizeEntityID(rawSubj),
		Type:    NormalizeRelationType(rawType),
		Object:  NormalizeEntityID(rawObj),
	}
	_, ok := o.relations[key]
	return ok
}

// RemoveRelation deletes a relation and its timeline.
func (o *Ontology) RemoveRelation(rawSubj, rawType, rawObj string) error {
	rel, err := o.Relation(rawSubj, rawType, rawObj)
	if err != nil {
		return err
	}
	delete(o.relations, rel.Key)

	o.log.Debugw("Relation removed", logger.FieldRelation, rel.Key.String())
	o.emit(Event{Kind: EventRelationRemoved, Relation: rel.Key, RelationID: rel.ID})
	return nil
}

// Relations returns all relations in creation order.
func (o *Ontology) Relations() []*Relation {
	out := make([]*Relation, 0, len(o.relations))
	for _, rel := range o.relations {
		out = append(out, rel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// AssertTruth stores a truth value over an interval on the relation's
// timeline, subject to the arena's overlap policy.
func (o *Ontology) AssertTruth(rawSubj, rawType, rawObj string, iv temporal.Interval, v truth.Value, origin temporal.Origin) error {
	rel, err := o.Relation(rawSubj, rawType, rawObj)
	if err != nil {
		return err
	}
	if err := rel.timeline.Assert(iv, v, origin); err != nil {
		return errors.Wrapf(err, "relation %s", rel.Key)
	}

	o.log.Debugw("Truth asserted",
		logger.FieldRelation, rel.Key.String(),
		logger.FieldTruth, v.String(),
		logger.FieldInterval, iv.String())
	o.emit(Event{Kind: EventTruthAsserted, Relation: rel.Key, RelationID: rel.ID, Interval: iv, Value: v, Origin: origin})
	return nil
}

// SetDefault changes the value a relation reports outside any stored
// interval. The default is never materialized on the timeline.
func (o *Ontology) SetDefault(rawSubj, rawType, rawObj string, v truth.Value) error {
	rel, err := o.Relation(rawSubj, rawType, rawObj)
	if err != nil {
		return err
	}
	rel.Default = v

	o.emit(Event{Kind: EventDefaultChanged, Relation: rel.Key, RelationID: rel.ID, Value: v})
	return nil
}

// TruthAt reports the relation's truth value at instant t, falling back
// to the relation default (OriginDefault) outside stored intervals.
func (o *Ontology) TruthAt(rawSubj, rawType, rawObj string, t time.Time) (truth.Value, temporal.Origin, error) {
	rel, err := o.Relation(rawSubj, rawType, rawObj)
	if err != nil {
		return truth.Unknown, temporal.OriginDefault, err
	}
	if v, origin, ok := rel.timeline.At(t); ok {
		return v, origin, nil
	}
	return rel.Default, temporal.OriginDefault, nil
}

// TruthOver partitions the query interval into a gapless sequence of
// segments, with the relation default filling uncovered spans.
func (o *Ontology) TruthOver(rawSubj, rawType, rawObj string, query temporal.Interval) ([]temporal.Segment, error) {
	rel, err := o.Relation(rawSubj, rawType, rawObj)
	if err != nil {
		return nil, err
	}
	return rel.timeline.Over(query, rel.Default)
}

// Stats reports arena sizes: entity count, relation count, and the total
// number of stored timeline assertions.
func (o *Ontology) Stats() (entities, relations, assertions int) {
	entities = len(o.entities)
	relations = len(o.relations)
	for _, rel := range o.relations {
		assertions += rel.timeline.Len()
	}
	return entities, relations, assertions
}

// RestoreEntity reinstates an entity from a snapshot or durable store,
// keeping its original Seq and CreatedAt. No events are emitted; loads
// must not trigger watchers.
func (o *Ontology) RestoreEntity(e Entity) error {
	if err := validateEntityID(e.ID); err != nil {
		return err
	}
	if _, exists := o.entities[e.ID]; exists {
		return errors.Wrapf(errors.ErrDuplicateEntity, "entity %s", e.ID)
	}
	restored := e
	o.entities[e.ID] = &restored
	if e.Seq > o.seq {
		o.seq = e.Seq
	}
	return nil
}

// RestoreRelation reinstates a relation and its timeline from a snapshot
// or durable store. Assertions must be pairwise non-overlapping, as the
// store guarantees for anything it persisted. No events are emitted.
func (o *Ontology) RestoreRelation(rel Relation, assertions []temporal.Assertion) error {
	if err := validateRelationType(rel.Key.Type); err != nil {
		return err
	}
	if _, ok := o.entities[rel.Key.Subject]; !ok {
		return errors.WrapUnknownEntity(string(rel.Key.Subject))
	}
	if _, ok := o.entities[rel.Key.Object]; !ok {
		return errors.WrapUnknownEntity(string(rel.Key.Object))
	}
	if _, exists := o.relations[rel.Key]; exists {
		return errors.Wrapf(errors.ErrDuplicateRelation, "relation %s", rel.Key)
	}

	restored := rel
	restored.timeline = temporal.NewStore(o.policy)
	for _, a := range assertions {
		if err := restored.timeline.Assert(a.Interval, a.Value, a.Origin); err != nil {
			return errors.Wrapf(err, "restoring relation %s", rel.Key)
		}
	}
	if restored.ID == "" {
		restored.ID = newRelationID()
	}
	o.relations[rel.Key] = &restored
	if rel.Seq > o.seq {
		o.seq = rel.Seq
	}
	return nil
}

package ontology

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/temporal"
	"github.com/teranos/doxa/kb/truth"
)

type recordSink struct {
	events []Event
}

func (r *recordSink) Notify(ev Event) { r.events = append(r.events, ev) }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateEntityNormalizesID(t *testing.T) {
	o := New()
	e, err := o.CreateEntity("socrates", nil)
	require.NoError(t, err)
	assert.Equal(t, EntityID("SOCRATES"), e.ID)

	got, err := o.Entity("Socrates")
	require.NoError(t, err, "lookup is case-insensitive via normalization")
	assert.Same(t, e, got)
}

func TestCreateEntityDuplicate(t *testing.T) {
	o := New()
	_, err := o.CreateEntity("SOCRATES", nil)
	require.NoError(t, err)

	_, err = o.CreateEntity("socrates", nil)
	require.Error(t, err)
	assert.True(t, errors.IsDuplicateEntity(err))
	assert.Contains(t, err.Error(), "SOCRATES")
}

func TestCreateEntityRejectsBadIDs(t *testing.T) {
	o := New()

	_, err := o.CreateEntity("   ", nil)
	require.Error(t, err)
	assert.True(t, errors.IsStructural(err))

	_, err = o.CreateEntity("$X", nil)
	require.Error(t, err, "variable names are not entity ids")
	assert.True(t, errors.IsStructural(err))
}

func TestCreateEntityCopiesAttrs(t *testing.T) {
	o := New()
	attrs := map[string]string{"word_type": "NOUN"}
	e, err := o.CreateEntity("LIGHT", attrs)
	require.NoError(t, err)

	attrs["word_type"] = "VERB"
	assert.Equal(t, "NOUN", e.Attrs["word_type"], "arena owns its attribute map")
}

func TestEntityUnknown(t *testing.T) {
	o := New()
	_, err := o.Entity("PLATO")
	require.Error(t, err)
	assert.True(t, errors.IsUnknownEntity(err))
	assert.Contains(t, err.Error(), "PLATO")
}

func TestEntitiesCreationOrder(t *testing.T) {
	o := New()
	for _, id := range []string{"ZENO", "ARISTOTLE", "PLATO"} {
		_, err := o.CreateEntity(id, nil)
		require.NoError(t, err)
	}

	got := o.Entities()
	require.Len(t, got, 3)
	assert.Equal(t, EntityID("ZENO"), got[0].ID)
	assert.Equal(t, EntityID("ARISTOTLE"), got[1].ID)
	assert.Equal(t, EntityID("PLATO"), got[2].ID)
}

func TestRemoveEntityCascadesToRelations(t *testing.T) {
	o := New()
	mustEntity(t, o, "SOCRATES")
	mustEntity(t, o, "PLATO")
	mustEntity(t, o, "ATHENS")
	_, err := o.CreateRelation("SOCRATES", "TEACHES", "PLATO", truth.True)
	require.NoError(t, err)
	_, err = o.CreateRelation("PLATO", "LIVES_IN", "ATHENS", truth.True)
	require.NoError(t, err)

	require.NoError(t, o.RemoveEntity("PLATO"))

	assert.False(t, o.HasEntity("PLATO"))
	assert.False(t, o.HasRelation("SOCRATES", "TEACHES", "PLATO"), "relation with removed object is gone")
	assert.False(t, o.HasRelation("PLATO", "LIVES_IN", "ATHENS"), "relation with removed subject is gone")
	assert.True(t, o.HasEntity("SOCRATES"), "other endpoint survives")
	assert.True(t, o.HasEntity("ATHENS"))
}

func TestRemoveEntityStripsParents(t *testing.T) {
	o := New()
	mustEntity(t, o, "HUMAN")
	mustEntity(t, o, "SOCRATES")
	require.NoError(t, o.AddParent("SOCRATES", "HUMAN"))

	require.NoError(t, o.RemoveEntity("HUMAN"))

	e, err := o.Entity("SOCRATES")
	require.NoError(t, err)
	assert.Empty(t, e.Parents, "removed entity no longer appears as a parent")
}

func TestRemoveEntityUnknown(t *testing.T) {
	o := New()
	err := o.RemoveEntity("NOBODY")
	require.Error(t, err)
	assert.True(t, errors.IsUnknownEntity(err))
}

func TestCreateRelationUnknownEndpoints(t *testing.T) {
	o := New()
	mustEntity(t, o, "SOCRATES")

	_, err := o.CreateRelation("SOCRATES", "TEACHES", "PLATO", truth.Unknown)
	require.Error(t, err)
	assert.True(t, errors.IsUnknownEntity(err))
	assert.Contains(t, err.Error(), "PLATO")

	_, err = o.CreateRelation("DIOGENES", "TEACHES", "SOCRATES", truth.Unknown)
	require.Error(t, err)
	assert.True(t, errors.IsUnknownEntity(err))
	assert.Contains(t, err.Error(), "DIOGENES")
}

func TestCreateRelationDuplicate(t *testing.T) {
	o := New()
	mustEntity(t, o, "SOCRATES")
	mustEntity(t, o, "PLATO")
	_, err := o.CreateRelation("SOCRATES", "TEACHES", "PLATO", truth.True)
	require.NoError(t, err)

	_, err = o.CreateRelation("socrates", "teaches", "plato", truth.False)
	require.Error(t, err, "normalized triple collides")
	assert.True(t, errors.IsDuplicateRelation(err))
	assert.Contains(t, err.Error(), "TEACHES(SOCRATES, PLATO)")
}

func TestRelationIDsAreUnique(t *testing.T) {
	o := New()
	mustEntity(t, o, "A")
	mustEntity(t, o, "B")
	r1, err := o.CreateRelation("A", "KNOWS", "B", truth.Unknown)
	require.NoError(t, err)
	r2, err := o.CreateRelation("B", "KNOWS", "A", truth.Unknown)
	require.NoError(t, err)

	assert.NotEmpty(t, r1.ID)
	assert.NotEmpty(t, r2.ID)
	assert.NotEqual(t, r1.ID, r2.ID)
}

func TestEnsureRelationReturnsExisting(t *testing.T) {
	o := New()
	mustEntity(t, o, "SOCRATES")
	mustEntity(t, o, "PLATO")
	created, err := o.CreateRelation("SOCRATES", "TEACHES", "PLATO", truth.True)
	require.NoError(t, err)

	got, err := o.EnsureRelation("SOCRATES", "TEACHES", "PLATO", truth.Unknown, temporal.OriginInferred)
	require.NoError(t, err)
	assert.Same(t, created, got, "existing relation wins; no new one is created")
	assert.Equal(t, temporal.OriginAsserted, got.Origin)

	derived, err := o.EnsureRelation("PLATO", "TEACHES", "SOCRATES", truth.Unknown, temporal.OriginInferred)
	require.NoError(t, err)
	assert.Equal(t, temporal.OriginInferred, derived.Origin)
}

func TestRelationsCreationOrder(t *testing.T) {
	o := New()
	mustEntity(t, o, "A")
	mustEntity(t, o, "B")
	mustEntity(t, o, "C")
	_, err := o.CreateRelation("B", "KNOWS", "C", truth.Unknown)
	require.NoError(t, err)
	_, err = o.CreateRelation("A", "KNOWS", "B", truth.Unknown)
	require.NoError(t, err)

	got := o.Relations()
	require.Len(t, got, 2)
	assert.Equal(t, EntityID("B"), got[0].Key.Subject)
	assert.Equal(t, EntityID("A"), got[1].Key.Subject)
}

func TestAssertTruthAndTruthAt(t *testing.T) {
	o := New()
	mustEntity(t, o, "SOCRATES")
	mustEntity(t, o, "ATHENS")
	_, err := o.CreateRelation("SOCRATES", "LIVES_IN", "ATHENS", truth.Unknown)
	require.NoError(t, err)

	span := temporal.Span(date(-430, time.January, 1), date(-399, time.January, 1))
	require.NoError(t, o.AssertTruth("SOCRATES", "LIVES_IN", "ATHENS", span, truth.True, temporal.OriginAsserted))

	v, origin, err := o.TruthAt("SOCRATES", "LIVES_IN", "ATHENS", date(-410, time.June, 1))
	require.NoError(t, err)
	assert.Equal(t, truth.True, v)
	assert.Equal(t, temporal.OriginAsserted, origin)

	v, origin, err = o.TruthAt("SOCRATES", "LIVES_IN", "ATHENS", date(-300, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, truth.Unknown, v, "outside stored spans the default answers")
	assert.Equal(t, temporal.OriginDefault, origin)
}

func TestTruthAtUnknownRelation(t *testing.T) {
	o := New()
	mustEntity(t, o, "A")
	mustEntity(t, o, "B")
	_, _, err := o.TruthAt("A", "KNOWS", "B", time.Now())
	require.Error(t, err)
	assert.True(t, errors.IsUnknownRelation(err))
	assert.Contains(t, err.Error(), "KNOWS(A, B)")
}

func TestSetDefaultChangesFallback(t *testing.T) {
	o := New()
	mustEntity(t, o, "SKY")
	mustEntity(t, o, "BLUE")
	_, err := o.CreateRelation("SKY", "IS_COLORED", "BLUE", truth.Unknown)
	require.NoError(t, err)

	require.NoError(t, o.SetDefault("SKY", "IS_COLORED", "BLUE", truth.Superposed(0.9)))

	v, origin, err := o.TruthAt("SKY", "IS_COLORED", "BLUE", time.Now())
	require.NoError(t, err)
	assert.Equal(t, truth.Superposed(0.9), v)
	assert.Equal(t, temporal.OriginDefault, origin)
}

func TestTruthOverUsesRelationDefault(t *testing.T) {
	o := New()
	mustEntity(t, o, "GATE")
	mustEntity(t, o, "OPEN")
	_, err := o.CreateRelation("GATE", "IS", "OPEN", truth.False)
	require.NoError(t, err)

	span := temporal.Span(date(2024, time.March, 1), date(2024, time.April, 1))
	require.NoError(t, o.AssertTruth("GATE", "IS", "OPEN", span, truth.True, temporal.OriginAsserted))

	segs, err := o.TruthOver("GATE", "IS", "OPEN", temporal.Span(date(2024, time.January, 1), date(2024, time.June, 1)))
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, truth.False, segs[0].Value, "gap carries the relation default")
	assert.Equal(t, temporal.OriginDefault, segs[0].Origin)
	assert.Equal(t, truth.True, segs[1].Value)
	assert.Equal(t, truth.False, segs[2].Value)
}

func TestAssertTruthOverlapPolicy(t *testing.T) {
	span1 := temporal.Span(date(2024, time.January, 1), date(2024, time.June, 1))
	span2 := temporal.Span(date(2024, time.March, 1), date(2024, time.September, 1))

	reject := New()
	mustEntity(t, reject, "A")
	mustEntity(t, reject, "B")
	_, err := reject.CreateRelation("A", "KNOWS", "B", truth.Unknown)
	require.NoError(t, err)
	require.NoError(t, reject.AssertTruth("A", "KNOWS", "B", span1, truth.True, temporal.OriginAsserted))
	err = reject.AssertTruth("A", "KNOWS", "B", span2, truth.False, temporal.OriginAsserted)
	require.Error(t, err)
	assert.True(t, errors.IsOverlappingInterval(err))
	assert.Contains(t, err.Error(), "KNOWS(A, B)", "error names the relation")

	replace := New(WithOverlapPolicy(temporal.OverlapReplace))
	mustEntity(t, replace, "A")
	mustEntity(t, replace, "B")
	_, err = replace.CreateRelation("A", "KNOWS", "B", truth.Unknown)
	require.NoError(t, err)
	require.NoError(t, replace.AssertTruth("A", "KNOWS", "B", span1, truth.True, temporal.OriginAsserted))
	require.NoError(t, replace.AssertTruth("A", "KNOWS", "B", span2, truth.False, temporal.OriginAsserted))

	v, _, err := replace.TruthAt("A", "KNOWS", "B", date(2024, time.April, 1))
	require.NoError(t, err)
	assert.Equal(t, truth.False, v, "later assertion wins over its span")
}

func TestAddParentAndAncestors(t *testing.T) {
	o := New()
	mustEntity(t, o, "SOCRATES")
	mustEntity(t, o, "HUMAN")
	mustEntity(t, o, "MORTAL")
	require.NoError(t, o.AddParent("SOCRATES", "HUMAN"))
	require.NoError(t, o.AddParent("HUMAN", "MORTAL"))

	ancestors, err := o.Ancestors("SOCRATES")
	require.NoError(t, err)
	assert.Equal(t, []EntityID{"HUMAN", "MORTAL"}, ancestors)

	isA, err := o.IsA("SOCRATES", "MORTAL")
	require.NoError(t, err)
	assert.True(t, isA, "IS-A is transitive")

	isA, err = o.IsA("SOCRATES", "SOCRATES")
	require.NoError(t, err)
	assert.False(t, isA, "an entity is not its own ancestor")

	isA, err = o.IsA("MORTAL", "SOCRATES")
	require.NoError(t, err)
	assert.False(t, isA)
}

func TestAddParentRejectsCycles(t *testing.T) {
	o := New()
	mustEntity(t, o, "A")
	mustEntity(t, o, "B")
	mustEntity(t, o, "C")
	require.NoError(t, o.AddParent("A", "B"))
	require.NoError(t, o.AddParent("B", "C"))

	err := o.AddParent("C", "A")
	require.Error(t, err, "closing the loop C -> A -> B -> C")
	assert.True(t, errors.IsStructural(err))

	err = o.AddParent("A", "A")
	require.Error(t, err)
	assert.True(t, errors.IsStructural(err))
}

func TestAddParentIdempotent(t *testing.T) {
	o := New()
	mustEntity(t, o, "SOCRATES")
	mustEntity(t, o, "HUMAN")
	require.NoError(t, o.AddParent("SOCRATES", "HUMAN"))
	require.NoError(t, o.AddParent("SOCRATES", "HUMAN"))

	e, err := o.Entity("SOCRATES")
	require.NoError(t, err)
	assert.Equal(t, []EntityID{"HUMAN"}, e.Parents)
}

func TestSetNoteAndSetAttr(t *testing.T) {
	o := New()
	mustEntity(t, o, "LIGHT")

	require.NoError(t, o.SetNote("light", "electromagnetic radiation"))
	require.NoError(t, o.SetAttr("light", "word_type", "NOUN"))

	e, err := o.Entity("LIGHT")
	require.NoError(t, err)
	assert.Equal(t, "electromagnetic radiation", e.Note)
	assert.Equal(t, "NOUN", e.Attrs["word_type"])
}

func TestWithClockPinsCreatedAt(t *testing.T) {
	pinned := date(2025, time.June, 1)
	o := New(WithClock(func() time.Time { return pinned }))

	e, err := o.CreateEntity("SOCRATES", nil)
	require.NoError(t, err)
	assert.Equal(t, pinned, e.CreatedAt)
}

func TestSinkReceivesMutations(t *testing.T) {
	sink := &recordSink{}
	o := New(WithSink(sink))
	mustEntity(t, o, "A")
	mustEntity(t, o, "B")
	_, err := o.CreateRelation("A", "KNOWS", "B", truth.Unknown)
	require.NoError(t, err)
	span := temporal.Span(date(2024, time.January, 1), date(2024, time.June, 1))
	require.NoError(t, o.AssertTruth("A", "KNOWS", "B", span, truth.True, temporal.OriginAsserted))

	require.Len(t, sink.events, 4)
	assert.Equal(t, EventEntityCreated, sink.events[0].Kind)
	assert.Equal(t, EventEntityCreated, sink.events[1].Kind)
	assert.Equal(t, EventRelationCreated, sink.events[2].Kind)
	assert.Equal(t, EventTruthAsserted, sink.events[3].Kind)
	assert.Equal(t, span, sink.events[3].Interval)
	assert.Equal(t, truth.True, sink.events[3].Value)
}

func TestSinkSeesCascadeBeforeEntityRemoval(t *testing.T) {
	sink := &recordSink{}
	o := New(WithSink(sink))
	mustEntity(t, o, "A")
	mustEntity(t, o, "B")
	_, err := o.CreateRelation("A", "KNOWS", "B", truth.Unknown)
	require.NoError(t, err)
	sink.events = nil

	require.NoError(t, o.RemoveEntity("B"))

	require.Len(t, sink.events, 2)
	assert.Equal(t, EventRelationRemoved, sink.events[0].Kind)
	assert.Equal(t, EventEntityRemoved, sink.events[1].Kind)
}

func TestRestoreEntityKeepsSequence(t *testing.T) {
	o := New()
	err := o.RestoreEntity(Entity{ID: "SOCRATES", Seq: 7, CreatedAt: date(2024, time.January, 1)})
	require.NoError(t, err)

	e, err := o.CreateEntity("PLATO", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), e.Seq, "sequence resumes past restored entries")

	got, err := o.Entity("SOCRATES")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.Seq)
	assert.Equal(t, date(2024, time.January, 1), got.CreatedAt)
}

func TestRestoreRelationRebuildsTimeline(t *testing.T) {
	sink := &recordSink{}
	o := New(WithSink(sink))
	require.NoError(t, o.RestoreEntity(Entity{ID: "A", Seq: 1}))
	require.NoError(t, o.RestoreEntity(Entity{ID: "B", Seq: 2}))

	span := temporal.Span(date(2024, time.January, 1), date(2024, time.June, 1))
	rel := Relation{
		ID:      "r-restored",
		Key:     RelationKey{Subject: "A", Type: "KNOWS", Object: "B"},
		Default: truth.False,
		Origin:  temporal.OriginAsserted,
		Seq:     3,
	}
	asserts := []temporal.Assertion{{Interval: span, Value: truth.True, Origin: temporal.OriginAsserted}}
	require.NoError(t, o.RestoreRelation(rel, asserts))

	v, origin, err := o.TruthAt("A", "KNOWS", "B", date(2024, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, truth.True, v)
	assert.Equal(t, temporal.OriginAsserted, origin)

	v, _, err = o.TruthAt("A", "KNOWS", "B", date(2025, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, truth.False, v, "restored default answers outside spans")

	assert.Empty(t, sink.events, "loads do not fire mutation events")
}

func TestStats(t *testing.T) {
	o := New()
	mustEntity(t, o, "A")
	mustEntity(t, o, "B")
	_, err := o.CreateRelation("A", "KNOWS", "B", truth.Unknown)
	require.NoError(t, err)
	span := temporal.Span(date(2024, time.January, 1), date(2024, time.June, 1))
	require.NoError(t, o.AssertTruth("A", "KNOWS", "B", span, truth.True, temporal.OriginAsserted))

	entities, relations, assertions := o.Stats()
	assert.Equal(t, 2, entities)
	assert.Equal(t, 1, relations)
	assert.Equal(t, 1, assertions)
}

func mustEntity(t *testing.T, o *Ontology, id string) *Entity {
	t.Helper()
	e, err := o.CreateEntity(id, nil)
	require.NoError(t, err)
	return e
}

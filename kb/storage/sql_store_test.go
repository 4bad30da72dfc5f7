package storage

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/doxa/errors"
	doxatest "github.com/teranos/doxa/internal/testing"
	"github.com/teranos/doxa/kb/contexts"
	"github.com/teranos/doxa/kb/inference"
	"github.com/teranos/doxa/kb/ontology"
	"github.com/teranos/doxa/kb/temporal"
	"github.com/teranos/doxa/kb/truth"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// populated builds an arena with a hierarchy, two relations, and a
// mixed timeline, then writes it all through the store.
func populated(t *testing.T, store *SQLStore) *ontology.Ontology {
	t.Helper()
	ont := ontology.New(ontology.WithClock(func() time.Time { return date(2024, 5, 1) }))

	for _, id := range []string{"SOCRATES", "PLATO", "HUMAN"} {
		_, err := ont.CreateEntity(id, nil)
		require.NoError(t, err)
	}
	require.NoError(t, ont.SetAttr("SOCRATES", "city", "ATHENS"))
	require.NoError(t, ont.AddParent("SOCRATES", "HUMAN"))
	require.NoError(t, ont.AddParent("PLATO", "HUMAN"))

	_, err := ont.CreateRelation("SOCRATES", "TEACHES", "PLATO", truth.Unknown)
	require.NoError(t, err)
	require.NoError(t, ont.AssertTruth("SOCRATES", "TEACHES", "PLATO",
		temporal.Span(date(2024, 1, 1), date(2024, 3, 1)), truth.True, temporal.OriginAsserted))
	require.NoError(t, ont.AssertTruth("SOCRATES", "TEACHES", "PLATO",
		temporal.From(date(2024, 3, 1)), truth.Superposed(0.6), temporal.OriginInferred))

	_, err = ont.CreateRelation("PLATO", "ADMIRES", "SOCRATES", truth.True)
	require.NoError(t, err)

	for _, e := range ont.Entities() {
		require.NoError(t, store.SaveEntity(e))
	}
	for _, rel := range ont.Relations() {
		require.NoError(t, store.SaveRelation(rel))
		require.NoError(t, store.ReplaceAssertions(rel.ID, rel.Timeline().Assertions()))
	}
	return ont
}

func TestSaveLoadOntology(t *testing.T) {
	store := NewSQLStore(doxatest.CreateTestDB(t), nil)
	ont := populated(t, store)

	loaded, err := store.LoadOntology()
	require.NoError(t, err)

	entities := loaded.Entities()
	require.Len(t, entities, 3)
	assert.Equal(t, ontology.EntityID("SOCRATES"), entities[0].ID)
	assert.Equal(t, "ATHENS", entities[0].Attrs["city"])
	assert.Equal(t, []ontology.EntityID{"HUMAN"}, entities[0].Parents)
	assert.Equal(t, date(2024, 5, 1), entities[0].CreatedAt)

	want, err := ont.Relation("SOCRATES", "TEACHES", "PLATO")
	require.NoError(t, err)
	got, err := loaded.Relation("SOCRATES", "TEACHES", "PLATO")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Timeline().Assertions(), got.Timeline().Assertions())

	v, origin, err := loaded.TruthAt("SOCRATES", "TEACHES", "PLATO", date(2024, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, truth.Superposed(0.6), v)
	assert.Equal(t, temporal.OriginInferred, origin)
}

func TestSaveEntityUpserts(t *testing.T) {
	store := NewSQLStore(doxatest.CreateTestDB(t), nil)
	ont := ontology.New()

	e, err := ont.CreateEntity("ALICE", nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveEntity(e))

	require.NoError(t, ont.SetAttr("ALICE", "role", "ANALYST"))
	require.NoError(t, ont.SetNote("ALICE", "updated"))
	require.NoError(t, store.SaveEntity(e))

	loaded, err := store.LoadOntology()
	require.NoError(t, err)
	got, err := loaded.Entity("ALICE")
	require.NoError(t, err)
	assert.Equal(t, "ANALYST", got.Attrs["role"])
	assert.Equal(t, "updated", got.Note)
	assert.Equal(t, e.Seq, got.Seq, "seq is immutable across upserts")
}

func TestDeleteEntityCascades(t *testing.T) {
	store := NewSQLStore(doxatest.CreateTestDB(t), nil)
	populated(t, store)

	require.NoError(t, store.DeleteEntity("SOCRATES"))

	loaded, err := store.LoadOntology()
	require.NoError(t, err)
	entities, relations, assertions := loaded.Stats()
	assert.Equal(t, 2, entities)
	assert.Zero(t, relations, "both relations touch SOCRATES")
	assert.Zero(t, assertions)
}

func TestReplaceAssertionsRewrites(t *testing.T) {
	store := NewSQLStore(doxatest.CreateTestDB(t), nil)
	ont := populated(t, store)

	rel, err := ont.Relation("SOCRATES", "TEACHES", "PLATO")
	require.NoError(t, err)

	// Simulate a carve: replace the stored list with a single span.
	replacement := []temporal.Assertion{{
		Interval: temporal.Span(date(2024, 1, 1), date(2024, 2, 1)),
		Value:    truth.False,
		Origin:   temporal.OriginAsserted,
	}}
	require.NoError(t, store.ReplaceAssertions(rel.ID, replacement))

	loaded, err := store.LoadOntology()
	require.NoError(t, err)
	got, err := loaded.Relation("SOCRATES", "TEACHES", "PLATO")
	require.NoError(t, err)
	assert.Equal(t, replacement, got.Timeline().Assertions())
}

func TestSaveLoadContexts(t *testing.T) {
	store := NewSQLStore(doxatest.CreateTestDB(t), nil)

	mood := contexts.Op{
		Connective: truth.ConnAnd,
		Kids: []contexts.Node{
			contexts.Leaf{Subject: "ALICE", Type: "LIKES", Object: "BOB"},
			contexts.Ref{Name: "TRUSTING"},
		},
	}
	require.NoError(t, store.SaveContext("MOOD", mood, 0))
	require.NoError(t, store.SaveContext("TRUSTING",
		contexts.Leaf{Subject: "BOB", Type: "TRUSTS", Object: "ALICE"}, 1))

	reg, err := store.LoadContexts()
	require.NoError(t, err)
	assert.Equal(t, []string{"MOOD", "TRUSTING"}, reg.Names())

	node, err := reg.Resolve("MOOD")
	require.NoError(t, err)
	assert.Equal(t, mood, node)
}

func TestSaveLoadRules(t *testing.T) {
	store := NewSQLStore(doxatest.CreateTestDB(t), nil)

	sym := inference.Symmetric("KNOWS", truth.True)
	trans := inference.Transitive("LOCATED_IN", truth.True)
	require.NoError(t, store.SaveRule(sym))
	require.NoError(t, store.SaveRule(trans))

	rules, err := store.LoadRules()
	require.NoError(t, err)
	require.Len(t, rules, 2)
	// Name order: symmetric-knows < transitive-located_in.
	assert.Equal(t, sym, rules[0])
	assert.Equal(t, trans, rules[1])

	require.NoError(t, store.DeleteRule(sym.Name))
	rules, err = store.LoadRules()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, trans.Name, rules[0].Name)
}

func TestLoadRejectsCorruptRule(t *testing.T) {
	db := doxatest.CreateTestDB(t)
	store := NewSQLStore(db, nil)

	_, err := db.Exec(`INSERT INTO rules (name, doc, created_at) VALUES ('bad', '{"name":""}', '2024-01-01T00:00:00Z')`)
	require.NoError(t, err)

	_, err = store.LoadRules()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `stored rule ""`)
}

func TestClear(t *testing.T) {
	store := NewSQLStore(doxatest.CreateTestDB(t), nil)
	populated(t, store)
	require.NoError(t, store.SaveContext("C",
		contexts.Leaf{Subject: "SOCRATES", Type: "TEACHES", Object: "PLATO"}, 0))
	require.NoError(t, store.SaveRule(inference.Symmetric("KNOWS", truth.True)))

	require.NoError(t, store.Clear())

	st, err := store.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.Entities)
	assert.Zero(t, st.Relations)
	assert.Zero(t, st.Assertions)
	assert.Zero(t, st.Contexts)
	assert.Zero(t, st.Rules)
}

func TestStats(t *testing.T) {
	store := NewSQLStore(doxatest.CreateTestDB(t), nil)
	populated(t, store)

	st, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, st.Entities)
	assert.Equal(t, 2, st.Relations)
	assert.Equal(t, 2, st.Assertions)
	assert.Positive(t, st.SizeBytes)
}

// --- Sqlmock tests ---
// Exercise the error paths a live SQLite handle will not produce.

func TestSaveEntityExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO entities").
		WillReturnError(errors.New("disk I/O error"))

	store := NewSQLStore(db, nil)
	e := &ontology.Entity{ID: "ALICE", Seq: 1, CreatedAt: date(2024, 1, 1)}
	err = store.SaveEntity(e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save entity ALICE")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceAssertionsRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM assertions").
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO assertions").
		WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	store := NewSQLStore(db, nil)
	err = store.ReplaceAssertions("r1", []temporal.Assertion{{
		Interval: temporal.Always,
		Value:    truth.True,
		Origin:   temporal.OriginAsserted,
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert assertion")
	require.NoError(t, mock.ExpectationsWereMet())
}

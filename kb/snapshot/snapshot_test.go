package snapshot

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/contexts"
	"github.com/teranos/doxa/kb/inference"
	"github.com/teranos/doxa/kb/ontology"
	"github.com/teranos/doxa/kb/temporal"
	"github.com/teranos/doxa/kb/truth"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// worldState builds a small populated state: a hierarchy, a windowed
// relation, a default, a context, and one rule.
func worldState(t *testing.T) State {
	t.Helper()
	ont := ontology.New(ontology.WithClock(func() time.Time { return date(2024, 3, 1) }))

	for _, id := range []string{"ALICE", "BOB", "PERSON"} {
		_, err := ont.CreateEntity(id, nil)
		require.NoError(t, err)
	}
	require.NoError(t, ont.SetAttr("ALICE", "role", "ANALYST"))
	require.NoError(t, ont.SetNote("ALICE", "first subject"))
	require.NoError(t, ont.AddParent("ALICE", "PERSON"))
	require.NoError(t, ont.AddParent("BOB", "PERSON"))

	_, err := ont.CreateRelation("ALICE", "KNOWS", "BOB", truth.Unknown)
	require.NoError(t, err)
	require.NoError(t, ont.AssertTruth("ALICE", "KNOWS", "BOB",
		temporal.Span(date(2024, 1, 1), date(2024, 2, 1)), truth.True, temporal.OriginAsserted))
	require.NoError(t, ont.AssertTruth("ALICE", "KNOWS", "BOB",
		temporal.From(date(2024, 2, 1)), truth.Superposed(0.5), temporal.OriginInferred))

	_, err = ont.CreateRelation("BOB", "TRUSTS", "ALICE", truth.Superposed(0.25))
	require.NoError(t, err)

	reg := contexts.NewRegistry()
	require.NoError(t, reg.Define("ACQUAINTED", contexts.Op{
		Connective: truth.ConnAnd,
		Kids: []contexts.Node{
			contexts.Leaf{Subject: "ALICE", Type: "KNOWS", Object: "BOB"},
			contexts.Leaf{Subject: "BOB", Type: "TRUSTS", Object: "ALICE"},
		},
	}))

	rules := []inference.Rule{inference.Symmetric("KNOWS", truth.True)}
	return State{Ontology: ont, Contexts: reg, Rules: rules}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st := worldState(t)

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, st))

	loaded, err := Load(&buf)
	require.NoError(t, err)

	entities := loaded.Ontology.Entities()
	require.Len(t, entities, 3)
	assert.Equal(t, ontology.EntityID("ALICE"), entities[0].ID)
	assert.Equal(t, "ANALYST", entities[0].Attrs["role"])
	assert.Equal(t, "first subject", entities[0].Note)
	assert.Equal(t, []ontology.EntityID{"PERSON"}, entities[0].Parents)
	assert.Equal(t, date(2024, 3, 1), entities[0].CreatedAt)

	rel, err := loaded.Ontology.Relation("ALICE", "KNOWS", "BOB")
	require.NoError(t, err)
	assert.Equal(t, truth.Unknown, rel.Default)

	original, err := st.Ontology.Relation("ALICE", "KNOWS", "BOB")
	require.NoError(t, err)
	assert.Equal(t, original.ID, rel.ID, "relation ids survive the round trip")
	assert.Equal(t, original.Timeline().Assertions(), rel.Timeline().Assertions())

	v, origin, err := loaded.Ontology.TruthAt("ALICE", "KNOWS", "BOB", date(2024, 1, 15))
	require.NoError(t, err)
	assert.Equal(t, truth.True, v)
	assert.Equal(t, temporal.OriginAsserted, origin)

	v, origin, err = loaded.Ontology.TruthAt("ALICE", "KNOWS", "BOB", date(2024, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, truth.Superposed(0.5), v, "superposition weight is bit-exact")
	assert.Equal(t, temporal.OriginInferred, origin)

	node, err := loaded.Contexts.Resolve("ACQUAINTED")
	require.NoError(t, err)
	want, err := st.Contexts.Resolve("ACQUAINTED")
	require.NoError(t, err)
	assert.Equal(t, want, node)

	assert.Equal(t, st.Rules, loaded.Rules)
}

func TestSaveIsDeterministic(t *testing.T) {
	prev := timeNow
	timeNow = func() time.Time { return date(2024, 3, 2) }
	t.Cleanup(func() { timeNow = prev })

	st := worldState(t)

	var first, second bytes.Buffer
	require.NoError(t, Save(&first, st))
	require.NoError(t, Save(&second, st))
	assert.Equal(t, first.String(), second.String())
}

func TestLoadedSequenceContinues(t *testing.T) {
	st := worldState(t)
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, st))

	loaded, err := Load(&buf)
	require.NoError(t, err)

	e, err := loaded.Ontology.CreateEntity("CAROL", nil)
	require.NoError(t, err)
	for _, existing := range loaded.Ontology.Entities()[:3] {
		assert.Greater(t, e.Seq, existing.Seq)
	}
}

func TestLoadAppliesOntologyOptions(t *testing.T) {
	st := worldState(t)
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, st))

	loaded, err := Load(&buf, ontology.WithOverlapPolicy(temporal.OverlapReplace))
	require.NoError(t, err)
	assert.Equal(t, temporal.OverlapReplace, loaded.Ontology.Policy())
}

func TestLoadRejectsForeignFormats(t *testing.T) {
	tests := []struct {
		name   string
		format string
	}{
		{"wrong product", "ledger/1.0.0"},
		{"newer major", "doxa/2.0.0"},
		{"newer minor", "doxa/1.1.0"},
		{"older major", "doxa/0.9.0"},
		{"unreadable version", "doxa/latest"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `{"format": "` + tt.format + `", "entities": []}`
			_, err := Load(bytes.NewReader([]byte(doc)))
			require.Error(t, err)
			assert.True(t, errors.IsSnapshotVersion(err), "got: %v", err)
		})
	}
}

func TestLoadAcceptsCurrentFormat(t *testing.T) {
	doc := `{"format": "doxa/` + FormatVersion + `"}`
	st, err := Load(bytes.NewReader([]byte(doc)))
	require.NoError(t, err)
	assert.Empty(t, st.Ontology.Entities())
	assert.Zero(t, st.Contexts.Len())
}

func TestLoadRejectsRelationWithUnknownEntity(t *testing.T) {
	doc := `{
		"format": "doxa/1.0.0",
		"entities": [{"id": "ALICE", "seq": 1, "created_at": "2024-01-01T00:00:00Z"}],
		"relations": [{
			"id": "r1",
			"key": {"subject": "ALICE", "type": "KNOWS", "object": "GHOST"},
			"default": {"state": "UNKNOWN"},
			"origin": "asserted",
			"seq": 2,
			"created_at": "2024-01-01T00:00:00Z"
		}]
	}`
	_, err := Load(bytes.NewReader([]byte(doc)))
	require.Error(t, err)
	assert.True(t, errors.IsUnknownEntity(err))
	assert.Contains(t, err.Error(), "GHOST")
}

func TestLoadRejectsDuplicateEntities(t *testing.T) {
	doc := `{
		"format": "doxa/1.0.0",
		"entities": [
			{"id": "ALICE", "seq": 1, "created_at": "2024-01-01T00:00:00Z"},
			{"id": "ALICE", "seq": 2, "created_at": "2024-01-01T00:00:00Z"}
		]
	}`
	_, err := Load(bytes.NewReader([]byte(doc)))
	require.Error(t, err)
	assert.True(t, errors.IsDuplicateEntity(err))
}

func TestLoadRejectsInvalidRule(t *testing.T) {
	doc := `{
		"format": "doxa/1.0.0",
		"rules": [{"name": "", "when": [], "then": {}}]
	}`
	_, err := Load(bytes.NewReader([]byte(doc)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot rule")
}

func TestLoadRejectsGarbage(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte("not json")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding snapshot")
}

func TestSaveFileLoadFile(t *testing.T) {
	st := worldState(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "world.json")

	require.NoError(t, SaveFile(path, st))

	// The temporary file is renamed away, leaving only the snapshot.
	names, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Equal(t, "world.json", names[0].Name())

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	entities, relations, assertions := loaded.Ontology.Stats()
	assert.Equal(t, 3, entities)
	assert.Equal(t, 2, relations)
	assert.Equal(t, 2, assertions)
}

func TestSaveFileReplacesExisting(t *testing.T) {
	st := worldState(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "world.json")
	require.NoError(t, os.WriteFile(path, []byte("old contents"), 0o644))

	require.NoError(t, SaveFile(path, st))

	_, err := LoadFile(path)
	require.NoError(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.json")
}

// Package storage persists the knowledge base to SQLite: entities,
// relations, timelines, contexts, and rules as JSON-column rows. The
// session writes through after each committed mutation, so one-shot CLI
// invocations share state through the database file.
package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/contexts"
	"github.com/teranos/doxa/kb/inference"
	"github.com/teranos/doxa/kb/ontology"
	"github.com/teranos/doxa/kb/temporal"
)

// Query constants
const (
	EntityUpsertQuery = `
		INSERT INTO entities (id, attrs, parents, note, seq, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			attrs = excluded.attrs,
			parents = excluded.parents,
			note = excluded.note`

	EntityDeleteQuery = `DELETE FROM entities WHERE id = ?`

	RelationUpsertQuery = `
		INSERT INTO relations (id, subject, type, object, default_truth, origin, seq, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			default_truth = excluded.default_truth`

	RelationDeleteQuery = `DELETE FROM relations WHERE id = ?`

	AssertionDeleteByRelationQuery = `DELETE FROM assertions WHERE relation_id = ?`

	AssertionInsertQuery = `
		INSERT INTO assertions (relation_id, start_at, end_at, truth, origin)
		VALUES (?, ?, ?, ?, ?)`

	ContextUpsertQuery = `
		INSERT INTO contexts (name, node, seq, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET node = excluded.node`

	ContextDeleteQuery = `DELETE FROM contexts WHERE name = ?`

	RuleUpsertQuery = `
		INSERT INTO rules (name, doc, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET doc = excluded.doc`

	RuleDeleteQuery = `DELETE FROM rules WHERE name = ?`
)

// SQLStore persists knowledge base state to a SQLite database.
type SQLStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewSQLStore wraps an open database. A nil logger keeps writes silent.
func NewSQLStore(db *sql.DB, logger *zap.SugaredLogger) *SQLStore {
	return &SQLStore{db: db, logger: logger}
}

// DB exposes the underlying connection for stores layered on top.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// EntityFields holds the JSON-encoded columns of an entity row.
type EntityFields struct {
	AttrsJSON   string
	ParentsJSON string
}

// MarshalEntityFields encodes an entity's map and list columns.
func MarshalEntityFields(e *ontology.Entity) (*EntityFields, error) {
	if e == nil {
		return nil, errors.NewStructural("entity is nil")
	}
	attrs := e.Attrs
	if attrs == nil {
		attrs = map[string]string{}
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal attrs")
	}
	parents := e.Parents
	if parents == nil {
		parents = []ontology.EntityID{}
	}
	parentsJSON, err := json.Marshal(parents)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal parents")
	}
	return &EntityFields{
		AttrsJSON:   string(attrsJSON),
		ParentsJSON: string(parentsJSON),
	}, nil
}

// SaveEntity inserts or refreshes an entity row. Seq and created_at
// keep their original values on update.
func (s *SQLStore) SaveEntity(e *ontology.Entity) error {
	fields, err := MarshalEntityFields(e)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(EntityUpsertQuery,
		string(e.ID),
		fields.AttrsJSON,
		fields.ParentsJSON,
		e.Note,
		e.Seq,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save entity %s", e.ID)
	}
	return nil
}

// DeleteEntity removes an entity row. Foreign keys cascade the delete
// through its relations and their assertions.
func (s *SQLStore) DeleteEntity(id ontology.EntityID) error {
	if _, err := s.db.Exec(EntityDeleteQuery, string(id)); err != nil {
		return errors.Wrapf(err, "failed to delete entity %s", id)
	}
	return nil
}

// SaveRelation inserts or refreshes a relation row. Only the default
// truth may change on update; identity columns are immutable.
func (s *SQLStore) SaveRelation(rel *ontology.Relation) error {
	if rel == nil {
		return errors.NewStructural("relation is nil")
	}
	defaultJSON, err := json.Marshal(rel.Default)
	if err != nil {
		return errors.Wrap(err, "failed to marshal default truth")
	}
	_, err = s.db.Exec(RelationUpsertQuery,
		rel.ID,
		string(rel.Key.Subject),
		string(rel.Key.Type),
		string(rel.Key.Object),
		string(defaultJSON),
		rel.Origin.String(),
		rel.Seq,
		rel.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save relation %s", rel.Key)
	}
	return nil
}

// DeleteRelation removes a relation row and, via cascade, its
// assertions.
func (s *SQLStore) DeleteRelation(id string) error {
	if _, err := s.db.Exec(RelationDeleteQuery, id); err != nil {
		return errors.Wrapf(err, "failed to delete relation %s", id)
	}
	return nil
}

// ReplaceAssertions rewrites a relation's stored timeline in one
// transaction. Assert may carve existing spans under OverlapReplace,
// so mirroring the whole list is the only faithful write.
func (s *SQLStore) ReplaceAssertions(relationID string, list []temporal.Assertion) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin assertion rewrite")
	}
	if _, err := tx.Exec(AssertionDeleteByRelationQuery, relationID); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "failed to clear assertions for %s", relationID)
	}
	for _, a := range list {
		truthJSON, err := json.Marshal(a.Value)
		if err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to marshal truth value")
		}
		_, err = tx.Exec(AssertionInsertQuery,
			relationID,
			nullableTime(a.Interval.Start),
			nullableTime(a.Interval.End),
			string(truthJSON),
			a.Origin.String(),
		)
		if err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "failed to insert assertion for %s", relationID)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "failed to commit assertions for %s", relationID)
	}
	return nil
}

// SaveContext inserts or refreshes a named context. Seq preserves
// definition order for deterministic reload.
func (s *SQLStore) SaveContext(name string, node contexts.Node, seq int) error {
	raw, err := contexts.MarshalNode(node)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal context %s", name)
	}
	_, err = s.db.Exec(ContextUpsertQuery,
		name,
		string(raw),
		seq,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save context %s", name)
	}
	return nil
}

// DeleteContext removes a named context.
func (s *SQLStore) DeleteContext(name string) error {
	if _, err := s.db.Exec(ContextDeleteQuery, name); err != nil {
		return errors.Wrapf(err, "failed to delete context %s", name)
	}
	return nil
}

// SaveRule inserts or refreshes a rule document.
func (s *SQLStore) SaveRule(r inference.Rule) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal rule %s", r.Name)
	}
	_, err = s.db.Exec(RuleUpsertQuery,
		r.Name,
		string(doc),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save rule %s", r.Name)
	}
	return nil
}

// DeleteRule removes a rule by name.
func (s *SQLStore) DeleteRule(name string) error {
	if _, err := s.db.Exec(RuleDeleteQuery, name); err != nil {
		return errors.Wrapf(err, "failed to delete rule %s", name)
	}
	return nil
}

// Clear wipes all knowledge base tables, used when a snapshot load
// replaces durable state. Watchers survive; they are configuration,
// not knowledge.
func (s *SQLStore) Clear() error {
	for _, table := range []string{"entities", "contexts", "rules"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return errors.Wrapf(err, "failed to clear %s", table)
		}
	}
	return nil
}

// nullableTime renders a bound for storage, NULL when unbounded.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/contexts"
	"github.com/teranos/doxa/kb/inference"
	"github.com/teranos/doxa/kb/ontology"
	"github.com/teranos/doxa/kb/temporal"
)

const (
	entitySelectQuery = `
		SELECT id, attrs, parents, note, seq, created_at
		FROM entities ORDER BY seq`

	relationSelectQuery = `
		SELECT id, subject, type, object, default_truth, origin, seq, created_at
		FROM relations ORDER BY seq`

	assertionSelectQuery = `
		SELECT start_at, end_at, truth, origin
		FROM assertions WHERE relation_id = ? ORDER BY rowid`

	contextSelectQuery = `SELECT name, node FROM contexts ORDER BY seq`

	ruleSelectQuery = `SELECT doc FROM rules ORDER BY name`
)

// LoadOntology rehydrates the arena from the database through the same
// restore path snapshots use: entities first, then relations with
// their timelines, all in seq order.
func (s *SQLStore) LoadOntology(opts ...ontology.Option) (*ontology.Ontology, error) {
	ont := ontology.New(opts...)

	rows, err := s.db.Query(entitySelectQuery)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query entities")
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		if err := ont.RestoreEntity(e); err != nil {
			return nil, errors.Wrapf(err, "stored entity %s", e.ID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read entities")
	}

	relRows, err := s.db.Query(relationSelectQuery)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query relations")
	}
	defer relRows.Close()
	for relRows.Next() {
		rel, err := scanRelation(relRows)
		if err != nil {
			return nil, err
		}
		asserts, err := s.loadAssertions(rel.ID)
		if err != nil {
			return nil, err
		}
		if err := ont.RestoreRelation(rel, asserts); err != nil {
			return nil, errors.Wrapf(err, "stored relation %s", rel.Key)
		}
	}
	if err := relRows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read relations")
	}

	return ont, nil
}

// LoadContexts rehydrates the named context registry in definition
// order, so forward references resolve exactly as they did when saved.
func (s *SQLStore) LoadContexts() (*contexts.Registry, error) {
	reg := contexts.NewRegistry()

	rows, err := s.db.Query(contextSelectQuery)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query contexts")
	}
	defer rows.Close()
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, errors.Wrap(err, "failed to scan context")
		}
		node, err := contexts.UnmarshalNode([]byte(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "stored context %s", name)
		}
		if err := reg.Define(name, node); err != nil {
			return nil, errors.Wrapf(err, "stored context %s", name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read contexts")
	}
	return reg, nil
}

// LoadRules rehydrates the rule set, validating each document.
func (s *SQLStore) LoadRules() ([]inference.Rule, error) {
	rows, err := s.db.Query(ruleSelectQuery)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query rules")
	}
	defer rows.Close()

	var rules []inference.Rule
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, errors.Wrap(err, "failed to scan rule")
		}
		var r inference.Rule
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			return nil, errors.Wrap(err, "failed to decode rule")
		}
		if err := r.Validate(); err != nil {
			return nil, errors.Wrapf(err, "stored rule %q", r.Name)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read rules")
	}
	return rules, nil
}

func (s *SQLStore) loadAssertions(relationID string) ([]temporal.Assertion, error) {
	rows, err := s.db.Query(assertionSelectQuery, relationID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query assertions for %s", relationID)
	}
	defer rows.Close()

	var out []temporal.Assertion
	for rows.Next() {
		var startAt, endAt sql.NullString
		var truthJSON, origin string
		if err := rows.Scan(&startAt, &endAt, &truthJSON, &origin); err != nil {
			return nil, errors.Wrap(err, "failed to scan assertion")
		}
		a := temporal.Assertion{}
		if a.Interval.Start, err = parseBound(startAt); err != nil {
			return nil, err
		}
		if a.Interval.End, err = parseBound(endAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(truthJSON), &a.Value); err != nil {
			return nil, errors.Wrap(err, "failed to decode truth value")
		}
		if a.Origin, err = temporal.ParseOrigin(origin); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanEntity(rows *sql.Rows) (ontology.Entity, error) {
	var e ontology.Entity
	var id, attrsJSON, parentsJSON, createdAt string
	if err := rows.Scan(&id, &attrsJSON, &parentsJSON, &e.Note, &e.Seq, &createdAt); err != nil {
		return e, errors.Wrap(err, "failed to scan entity")
	}
	e.ID = ontology.EntityID(id)
	if err := json.Unmarshal([]byte(attrsJSON), &e.Attrs); err != nil {
		return e, errors.Wrapf(err, "stored entity %s attrs", id)
	}
	if err := json.Unmarshal([]byte(parentsJSON), &e.Parents); err != nil {
		return e, errors.Wrapf(err, "stored entity %s parents", id)
	}
	var err error
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return e, errors.Wrapf(err, "stored entity %s created_at", id)
	}
	return e, nil
}

func scanRelation(rows *sql.Rows) (ontology.Relation, error) {
	var rel ontology.Relation
	var subject, typ, object, defaultJSON, origin, createdAt string
	if err := rows.Scan(&rel.ID, &subject, &typ, &object, &defaultJSON, &origin, &rel.Seq, &createdAt); err != nil {
		return rel, errors.Wrap(err, "failed to scan relation")
	}
	rel.Key = ontology.RelationKey{
		Subject: ontology.EntityID(subject),
		Type:    ontology.RelationType(typ),
		Object:  ontology.EntityID(object),
	}
	if err := json.Unmarshal([]byte(defaultJSON), &rel.Default); err != nil {
		return rel, errors.Wrapf(err, "stored relation %s default", rel.ID)
	}
	var err error
	if rel.Origin, err = temporal.ParseOrigin(origin); err != nil {
		return rel, errors.Wrapf(err, "stored relation %s", rel.ID)
	}
	if rel.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return rel, errors.Wrapf(err, "stored relation %s created_at", rel.ID)
	}
	return rel, nil
}

func parseBound(v sql.NullString) (time.Time, error) {
	if !v.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "failed to parse interval bound")
	}
	return t, nil
}

// Package snapshot saves and loads the whole knowledge base as a single
// JSON document: entities, relations with their timelines, named
// contexts, and inference rules.
//
// Loading is validate-then-commit: a document is decoded and restored
// into fresh structures, and only a fully restored State reaches the
// caller. A half-bad file mutates nothing.
package snapshot

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/contexts"
	"github.com/teranos/doxa/kb/inference"
	"github.com/teranos/doxa/kb/ontology"
	"github.com/teranos/doxa/kb/temporal"
)

// FormatVersion is the snapshot format this build writes. Readers accept
// the same major version at this minor or below.
const FormatVersion = "1.0.0"

const formatPrefix = "doxa/"

// timeNow is swapped out in tests to pin the saved_at stamp.
var timeNow = time.Now

// State is everything a snapshot covers.
type State struct {
	Ontology *ontology.Ontology
	Contexts *contexts.Registry
	Rules    []inference.Rule
}

// document is the wire form of a snapshot.
type document struct {
	Format    string            `json:"format"`
	SavedAt   time.Time         `json:"saved_at"`
	Entities  []ontology.Entity `json:"entities"`
	Relations []relationRecord  `json:"relations"`
	Contexts  []contextRecord   `json:"contexts,omitempty"`
	Rules     []inference.Rule  `json:"rules,omitempty"`
}

// relationRecord pairs a relation with its stored timeline.
type relationRecord struct {
	ontology.Relation
	Assertions []temporal.Assertion `json:"assertions,omitempty"`
}

// contextRecord holds one named context as its tagged-JSON tree.
type contextRecord struct {
	Name string          `json:"name"`
	Node json.RawMessage `json:"node"`
}

// Save writes the state as an indented JSON document. Entities,
// relations, and contexts appear in creation order, so saving the same
// state twice yields the same bytes apart from saved_at.
func Save(w io.Writer, st State) error {
	if st.Ontology == nil {
		return errors.NewStructural("snapshot state needs an ontology")
	}

	doc := document{
		Format:  formatPrefix + FormatVersion,
		SavedAt: timeNow().UTC(),
		Rules:   st.Rules,
	}

	for _, e := range st.Ontology.Entities() {
		doc.Entities = append(doc.Entities, *e)
	}
	for _, rel := range st.Ontology.Relations() {
		doc.Relations = append(doc.Relations, relationRecord{
			Relation:   *rel,
			Assertions: rel.Timeline().Assertions(),
		})
	}
	if st.Contexts != nil {
		for _, name := range st.Contexts.Names() {
			node, err := st.Contexts.Resolve(name)
			if err != nil {
				return err
			}
			raw, err := contexts.MarshalNode(node)
			if err != nil {
				return errors.Wrapf(err, "encoding context %s", name)
			}
			doc.Contexts = append(doc.Contexts, contextRecord{Name: name, Node: raw})
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}
	return nil
}

// Load reads a snapshot document and restores it into fresh structures.
// The ontology options (overlap policy, sink, logger) configure the
// arena the snapshot is restored into.
func Load(r io.Reader, opts ...ontology.Option) (*State, error) {
	var doc document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decoding snapshot")
	}
	if err := checkFormat(doc.Format); err != nil {
		return nil, err
	}

	ont := ontology.New(opts...)
	for _, e := range doc.Entities {
		if err := ont.RestoreEntity(e); err != nil {
			return nil, errors.Wrapf(err, "snapshot entity %s", e.ID)
		}
	}
	for _, rec := range doc.Relations {
		if err := ont.RestoreRelation(rec.Relation, rec.Assertions); err != nil {
			return nil, errors.Wrapf(err, "snapshot relation %s", rec.Key)
		}
	}

	reg := contexts.NewRegistry()
	for _, rec := range doc.Contexts {
		node, err := contexts.UnmarshalNode(rec.Node)
		if err != nil {
			return nil, errors.Wrapf(err, "snapshot context %s", rec.Name)
		}
		if err := reg.Define(rec.Name, node); err != nil {
			return nil, errors.Wrapf(err, "snapshot context %s", rec.Name)
		}
	}

	for _, rule := range doc.Rules {
		if err := rule.Validate(); err != nil {
			return nil, errors.Wrapf(err, "snapshot rule %q", rule.Name)
		}
	}

	return &State{Ontology: ont, Contexts: reg, Rules: doc.Rules}, nil
}

// checkFormat gates the document version: same major as this build,
// minor at or below it. A newer writer may have stored fields this
// reader would silently drop.
func checkFormat(format string) error {
	version, ok := strings.CutPrefix(format, formatPrefix)
	if !ok {
		return errors.Wrapf(errors.ErrSnapshotVersion, "format %q is not a doxa snapshot", format)
	}

	got, err := semver.NewVersion(version)
	if err != nil {
		return errors.Wrapf(errors.ErrSnapshotVersion, "format %q: unreadable version", format)
	}
	current := semver.MustParse(FormatVersion)
	if got.Major() != current.Major() || got.GreaterThan(current) {
		return errors.Wrapf(errors.ErrSnapshotVersion,
			"snapshot format %s, this build reads %s%s", format, formatPrefix, FormatVersion)
	}
	return nil
}

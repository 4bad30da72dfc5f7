package graph

import (
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/ontology"
)

// Filter narrows a build to relations matching its fields. Empty
// fields match anything. Terms collects bare tokens, each of which
// must match at least one endpoint or the type as a substring.
type Filter struct {
	Subject string
	Type    string
	Object  string
	Terms   []string

	raw string
}

// ParseFilter reads a query string of subject:X type:LIKES object:Y
// tokens. Quoting follows shell rules so subject:"NEW YORK" stays one
// token. Bare tokens become free-text terms.
func ParseFilter(query string) (Filter, error) {
	f := Filter{raw: strings.TrimSpace(query)}
	if f.raw == "" {
		return f, nil
	}

	tokens, err := shellquote.Split(f.raw)
	if err != nil {
		return Filter{}, errors.Wrapf(err, "filter %q", query)
	}

	for _, tok := range tokens {
		key, val, found := strings.Cut(tok, ":")
		if !found {
			f.Terms = append(f.Terms, strings.ToUpper(tok))
			continue
		}
		val = strings.ToUpper(strings.TrimSpace(val))
		switch strings.ToLower(key) {
		case "subject", "subj", "s":
			f.Subject = val
		case "type", "t", "relation", "rel":
			f.Type = val
		case "object", "obj", "o":
			f.Object = val
		default:
			return Filter{}, errors.NewStructural("unknown filter key %q (want subject:, type:, or object:)", key)
		}
	}
	return f, nil
}

// Empty reports whether the filter passes everything through.
func (f Filter) Empty() bool {
	return f.Subject == "" && f.Type == "" && f.Object == "" && len(f.Terms) == 0
}

// MatchesRelation applies the filter to a relation key.
func (f Filter) MatchesRelation(k ontology.RelationKey) bool {
	if f.Subject != "" && string(k.Subject) != f.Subject {
		return false
	}
	if f.Type != "" && string(k.Type) != f.Type {
		return false
	}
	if f.Object != "" && string(k.Object) != f.Object {
		return false
	}
	for _, term := range f.Terms {
		if !strings.Contains(string(k.Subject), term) &&
			!strings.Contains(string(k.Type), term) &&
			!strings.Contains(string(k.Object), term) {
			return false
		}
	}
	return true
}

// MatchesEntity applies the filter to an isolated entity: the subject
// field or any free-text term may claim it.
func (f Filter) MatchesEntity(id ontology.EntityID) bool {
	if f.Empty() {
		return true
	}
	if f.Subject != "" && string(id) == f.Subject {
		return true
	}
	for _, term := range f.Terms {
		if strings.Contains(string(id), term) {
			return true
		}
	}
	return false
}

func (f Filter) config() map[string]string {
	if f.raw == "" {
		return nil
	}
	return map[string]string{"query": f.raw}
}

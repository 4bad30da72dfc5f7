package graph

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/doxa/kb/ontology"
	"github.com/teranos/doxa/kb/temporal"
	"github.com/teranos/doxa/kb/truth"
	"github.com/teranos/doxa/logger"
)

// View is the slice of a session the builder reads. *kb.Session
// satisfies this.
type View interface {
	Entities() []*ontology.Entity
	Relations() []*ontology.Relation
	QueryAt(subj, typ, obj string, t time.Time) (truth.Value, temporal.Origin, error)
}

// minLinkWeight keeps denied and unknown relations visible; a zero
// weight collapses the link in the force layout.
const minLinkWeight = 0.15

// Builder turns a session view into graphs.
type Builder struct {
	view View
	log  *zap.SugaredLogger
}

// NewBuilder binds a builder to a view.
func NewBuilder(view View, log *zap.SugaredLogger) *Builder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Builder{view: view, log: log}
}

// Build projects the whole knowledge base as of now.
func (b *Builder) Build(now time.Time) *Graph {
	return b.BuildFiltered(now, Filter{})
}

// BuildFiltered projects the knowledge base through a filter. Nodes
// survive when they touch a surviving link or, for isolated entities,
// when they match the filter themselves.
func (b *Builder) BuildFiltered(now time.Time, f Filter) *Graph {
	entities := b.view.Entities()
	relations := b.view.Relations()

	roots, groups := b.rootGroups(entities)

	g := &Graph{
		Nodes: []Node{},
		Links: []Link{},
		Meta: Meta{
			GeneratedAt: now,
			Config:      f.config(),
		},
	}

	linked := make(map[string]bool)
	for _, rel := range relations {
		if !f.MatchesRelation(rel.Key) {
			continue
		}

		v, origin, err := b.view.QueryAt(
			string(rel.Key.Subject), string(rel.Key.Type), string(rel.Key.Object), now)
		if err != nil {
			// The relation list and the query race only across builds;
			// within one build a miss means entity removal mid-read.
			b.log.Debugw("Relation vanished during build",
				logger.FieldRelation, rel.Key.String(),
				logger.FieldError, err)
			continue
		}

		dashed := rel.Origin == temporal.OriginInferred || origin == temporal.OriginInferred
		if dashed {
			g.Meta.Stats.Inferred++
		}

		g.Links = append(g.Links, Link{
			Source: string(rel.Key.Subject),
			Target: string(rel.Key.Object),
			Type:   string(rel.Key.Type),
			Label:  string(rel.Key.Type),
			Weight: confidence(v),
			Value:  v.String(),
			Dashed: dashed,
		})
		linked[string(rel.Key.Subject)] = true
		linked[string(rel.Key.Object)] = true
	}

	for _, e := range entities {
		id := string(e.ID)
		if !linked[id] && !f.MatchesEntity(e.ID) {
			continue
		}
		root := roots[e.ID]
		node := Node{
			ID:    id,
			Label: id,
			Kind:  kindLabel(root),
			Group: groups[root],
			Attrs: e.Attrs,
		}
		for _, p := range e.Parents {
			node.Parents = append(node.Parents, string(p))
		}
		g.Nodes = append(g.Nodes, node)
	}

	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	sort.Slice(g.Links, func(i, j int) bool {
		a, b := g.Links[i], g.Links[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Target < b.Target
	})

	g.Meta.Stats.TotalNodes = len(g.Nodes)
	g.Meta.Stats.TotalEdges = len(g.Links)

	b.log.Debugw("Graph built",
		"nodes", g.Meta.Stats.TotalNodes,
		"links", g.Meta.Stats.TotalEdges,
		"inferred", g.Meta.Stats.Inferred)

	return g
}

// rootGroups resolves every entity to its root ancestor and numbers
// the distinct roots. Group numbers are assigned in sorted root order
// starting at 1 so colors are stable across builds; parentless
// entities stay at group 0.
func (b *Builder) rootGroups(entities []*ontology.Entity) (map[ontology.EntityID]ontology.EntityID, map[ontology.EntityID]int) {
	byID := make(map[ontology.EntityID]*ontology.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	roots := make(map[ontology.EntityID]ontology.EntityID, len(entities))
	rootSet := make(map[ontology.EntityID]bool)
	for _, e := range entities {
		root := rootOf(e, byID)
		roots[e.ID] = root
		if root != "" {
			rootSet[root] = true
		}
	}

	sorted := make([]ontology.EntityID, 0, len(rootSet))
	for r := range rootSet {
		sorted = append(sorted, r)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	groups := make(map[ontology.EntityID]int, len(sorted)+1)
	for i, r := range sorted {
		groups[r] = i + 1
	}
	return roots, groups
}

// rootOf climbs the first-parent chain. The arena rejects hierarchy
// cycles, but entities restored from elsewhere get a visited guard
// anyway. An entity with no parents has no root.
func rootOf(e *ontology.Entity, byID map[ontology.EntityID]*ontology.Entity) ontology.EntityID {
	if len(e.Parents) == 0 {
		return ""
	}
	visited := map[ontology.EntityID]bool{e.ID: true}
	cur := e
	for len(cur.Parents) > 0 {
		next, ok := byID[cur.Parents[0]]
		if !ok {
			return cur.Parents[0]
		}
		if visited[next.ID] {
			return next.ID
		}
		visited[next.ID] = true
		cur = next
	}
	return cur.ID
}

func kindLabel(root ontology.EntityID) string {
	if root == "" {
		return "untyped"
	}
	return strings.ToLower(string(root))
}

// confidence maps a truth value onto a link weight. True is full
// strength, a superposition carries its weight, Unknown sits in the
// middle, False stays at the visibility floor.
func confidence(v truth.Value) float64 {
	switch v.State {
	case truth.StateTrue:
		return 1.0
	case truth.StateFalse:
		return minLinkWeight
	case truth.StateSuperposition:
		if v.Weight < minLinkWeight {
			return minLinkWeight
		}
		return v.Weight
	default:
		return 0.5
	}
}

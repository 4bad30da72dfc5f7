// Package graph projects the knowledge base into a D3-style node/link
// structure for visualization. Entities become nodes grouped by their
// root ancestor; relations become links weighted by the truth value in
// force at build time.
package graph

import (
	"time"
)

// Graph is the complete structure handed to the frontend.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
	Meta  Meta   `json:"meta"`
}

// Node represents one entity.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	// Kind is the entity's root ancestor in the IS-A hierarchy, or
	// "untyped" for entities without parents.
	Kind string `json:"kind"`
	// Group numbers nodes by kind for coloring. Untyped nodes are 0.
	Group   int               `json:"group,omitempty"`
	Parents []string          `json:"parents,omitempty"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// Link represents one relation between two entities.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
	Label  string `json:"label"`
	// Weight is the confidence of the relation's value at build time
	// (D3 reads "value"): definite True is 1, a superposition its
	// weight, Unknown sits in the middle.
	Weight float64 `json:"value"`
	Value  string  `json:"truth"`
	// Dashed marks links the rule engine derived.
	Dashed bool `json:"dashed,omitempty"`
}

// Meta carries build metadata.
type Meta struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Stats       Stats             `json:"stats"`
	Config      map[string]string `json:"config,omitempty"`
}

// Stats summarizes the graph.
type Stats struct {
	TotalNodes int `json:"total_nodes"`
	TotalEdges int `json:"total_edges"`
	Inferred   int `json:"inferred_edges"`
}

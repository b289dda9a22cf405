// Package graph holds the node/edge value types produced by the
// relationship inference pipeline. GraphData is an immutable snapshot: a
// new introspection pass replaces it wholesale.
package graph

import "schemap/internal/catalog"

// NodeKind distinguishes graph vertices.
type NodeKind string

const (
	NodeTable NodeKind = "table"
	NodeView  NodeKind = "view"
)

// EdgeKind tags an edge's origin, in decreasing confidence order.
type EdgeKind string

const (
	// EdgeDeclaredFK is a foreign key declared in the schema.
	EdgeDeclaredFK EdgeKind = "declared-fk"

	// EdgeViewJoin was extracted from a JOIN ... ON clause of a view
	// definition.
	EdgeViewJoin EdgeKind = "view-join"

	// EdgeViewFunction was extracted from a function-call argument in a
	// view's SELECT clause.
	EdgeViewFunction EdgeKind = "view-function"
)

// Confidence distinguishes edges whose column pair is certain from edges
// produced by a naming or first-column fallback heuristic.
type Confidence string

const (
	ConfidenceExact     Confidence = "exact"
	ConfidenceHeuristic Confidence = "heuristic"
)

// Node is one table or view vertex. ID is the normalized
// "namespace.name" (or bare name) and is unique within a GraphData.
type Node struct {
	ID        string           `json:"id"`
	Label     string           `json:"label"`
	Kind      NodeKind         `json:"kind"`
	Namespace string           `json:"namespace,omitempty"`
	Columns   []catalog.Column `json:"columns"`
}

// Edge is one relationship between two nodes. ID is content-derived and
// deterministic; two edges differing only by column pair (composite
// foreign keys) are distinct edges with distinct ids.
type Edge struct {
	ID         string     `json:"id"`
	From       string     `json:"from"`
	To         string     `json:"to"`
	FromColumn string     `json:"from_column"`
	ToColumn   string     `json:"to_column"`
	Kind       EdgeKind   `json:"kind"`
	Confidence Confidence `json:"confidence"`
}

// GraphData is the node and edge set for one schema snapshot. Every edge's
// From/To refers to an id present in Nodes.
type GraphData struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node returns the node with the given id, or nil when absent.
func (g *GraphData) Node(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// Package infer derives a relationship graph from an introspected schema.
//
// Build runs three edge sources in strict precedence order: declared
// foreign keys, JOIN clauses of view definitions, and function-call
// arguments in view SELECT lists. It is a pure function of its input:
// deterministic ids, no I/O, no shared state between invocations.
package infer

import (
	"fmt"
	"strings"

	"schemap/internal/catalog"
	"schemap/internal/graph"
	"schemap/internal/logger"
)

// Build produces the graph for one SchemaInfo. Two concurrent calls share
// no state; all working sets live in a builder owned by this invocation.
// Everything downstream of a valid SchemaInfo degrades gracefully: dangling
// foreign keys and unparseable view definitions are logged and skipped,
// never fatal.
func Build(schema *catalog.SchemaInfo, log *logger.Logger) *graph.GraphData {
	if log == nil {
		log = logger.Global()
	}

	b := &builder{
		schema:  schema,
		log:     log,
		nodeIDs: make(map[string]bool),
		pairs:   make(map[string]bool),
	}

	b.materializeNodes()
	b.declaredEdges()
	for i := range schema.Views {
		b.analyzeView(&schema.Views[i])
	}

	return &graph.GraphData{Nodes: b.nodes, Edges: b.edges}
}

// builder holds the working set for a single Build call.
type builder struct {
	schema *catalog.SchemaInfo
	log    *logger.Logger

	nodes   []graph.Node
	edges   []graph.Edge
	nodeIDs map[string]bool

	// pairs dedups view-derived edges by (view, table, viewColumn,
	// tableColumn). JOIN-derived entries are written first, so the
	// function-argument step can detect and skip identical pairs.
	pairs map[string]bool
}

// --- Step 1: node materialization ---

func (b *builder) materializeNodes() {
	for i := range b.schema.Tables {
		t := &b.schema.Tables[i]
		b.addNode(graph.Node{
			ID:        t.ID(),
			Label:     t.Name,
			Kind:      graph.NodeTable,
			Namespace: t.Schema,
			Columns:   t.Columns,
		})
	}
	for i := range b.schema.Views {
		v := &b.schema.Views[i]
		b.addNode(graph.Node{
			ID:        v.ID(),
			Label:     v.Name,
			Kind:      graph.NodeView,
			Namespace: v.Schema,
			Columns:   v.Columns,
		})
	}
}

func (b *builder) addNode(n graph.Node) {
	if b.nodeIDs[n.ID] {
		return
	}
	b.nodeIDs[n.ID] = true
	b.nodes = append(b.nodes, n)
}

// resolveNode normalizes a table/view reference to a known node id,
// trying: exact match, suffix match ignoring namespace, bare-name match.
// Matching is deterministic: nodes are scanned in materialization order.
func (b *builder) resolveNode(ref string) (string, bool) {
	if b.nodeIDs[ref] {
		return ref, true
	}
	suffix := "." + ref
	for i := range b.nodes {
		if strings.HasSuffix(b.nodes[i].ID, suffix) {
			return b.nodes[i].ID, true
		}
	}
	bare := bareName(ref)
	for i := range b.nodes {
		if b.nodes[i].Label == bare {
			return b.nodes[i].ID, true
		}
	}
	return "", false
}

// --- Step 2: declared-FK edges ---

func (b *builder) declaredEdges() {
	for _, fk := range b.schema.ForeignKeys {
		from, ok := b.resolveNode(fk.FromTable)
		if !ok {
			b.log.WarnWith("foreign key dropped: source table not in schema", nil, map[string]any{
				"constraint": fk.Name,
				"table":      fk.FromTable,
			})
			continue
		}
		to, ok := b.resolveNode(fk.ToTable)
		if !ok {
			b.log.WarnWith("foreign key dropped: referenced table not in schema", nil, map[string]any{
				"constraint": fk.Name,
				"table":      fk.ToTable,
			})
			continue
		}

		confidence := graph.ConfidenceExact
		if fk.Inferred {
			confidence = graph.ConfidenceHeuristic
		}

		// The id is derived from the constraint name plus the column pair,
		// so a composite key yields one edge per pair, never one merged edge.
		b.edges = append(b.edges, graph.Edge{
			ID:         fmt.Sprintf("fk:%s:%s->%s", fk.Name, fk.FromColumn, fk.ToColumn),
			From:       from,
			To:         to,
			FromColumn: fk.FromColumn,
			ToColumn:   fk.ToColumn,
			Kind:       graph.EdgeDeclaredFK,
			Confidence: confidence,
		})
	}
}

// --- Steps 3 & 4: per-view analysis ---

// analyzeView runs the JOIN and function-argument extractions for one view.
// Any panic is recovered here so a single malformed definition cannot abort
// the edges already computed for other views.
func (b *builder) analyzeView(v *catalog.View) {
	defer func() {
		if r := recover(); r != nil {
			b.log.ErrorWith("view analysis aborted", fmt.Errorf("%v", r), map[string]any{
				"view": v.Name,
			})
		}
	}()

	if strings.TrimSpace(v.Definition) == "" {
		return
	}

	aliases := buildAliasMap(v.Definition, b.resolveNode)
	mapping := buildSelectMapping(v.Definition, aliases)

	b.joinEdges(v, aliases, mapping)
	b.functionEdges(v, aliases)
}

func (b *builder) pairKey(viewID, tableID, viewCol, tableCol string) string {
	return viewID + "|" + tableID + "|" + viewCol + "|" + tableCol
}

// addViewEdge emits a view→table edge unless the identical column pair was
// already produced; reports whether the edge was added.
func (b *builder) addViewEdge(kind graph.EdgeKind, confidence graph.Confidence, viewID, tableID, viewCol, tableCol string) bool {
	key := b.pairKey(viewID, tableID, viewCol, tableCol)
	if b.pairs[key] {
		return false
	}
	b.pairs[key] = true

	prefix := "vj"
	if kind == graph.EdgeViewFunction {
		prefix = "vf"
	}
	b.edges = append(b.edges, graph.Edge{
		ID:         fmt.Sprintf("%s:%s->%s:%s->%s", prefix, viewID, tableID, viewCol, tableCol),
		From:       viewID,
		To:         tableID,
		FromColumn: viewCol,
		ToColumn:   tableCol,
		Kind:       kind,
		Confidence: confidence,
	})
	return true
}

// viewColumn returns the view's result column with the given name.
func viewColumn(v *catalog.View, name string) bool {
	for i := range v.Columns {
		if strings.EqualFold(v.Columns[i].Name, name) {
			return true
		}
	}
	return false
}

package infer

import (
	"sort"
	"strings"

	"schemap/internal/catalog"
	"schemap/internal/graph"
)

// joinEdges extracts view→table edges from the JOIN ... ON clauses of one
// view definition. This is the highest-confidence inference source after
// declared foreign keys.
//
// For every equality in every ON condition, exactly one side must belong
// to a known base table (the target). The other side determines the view
// column:
//   - a qualifier resolving to the view itself, naming one of its result
//     columns, links that column directly;
//   - any other base-table side is mapped through the SELECT-list column
//     mapping to find which view result column carries its value.
func (b *builder) joinEdges(v *catalog.View, aliases map[string]string, mapping map[string]sourceRef) {
	viewID := v.ID()

	joins := extractJoins(v.Definition)
	if len(joins) == 0 {
		b.log.Debugf("view %s: no JOIN clauses recognized", v.Name)
		return
	}

	for _, join := range joins {
		for _, eq := range splitEqualities(join.condition) {
			for side := 0; side < 2; side++ {
				target, other := eq[side], eq[1-side]

				tableID, ok := b.sideTable(target, aliases)
				if !ok || tableID == viewID {
					continue
				}

				// Other side resolving to a base table too means this side
				// is not the usable single-table equality end for a direct
				// link; it is handled through the column mapping below.
				if otherID, ok := b.sideTable(other, aliases); ok && otherID != viewID {
					if from, ok := mappedViewColumn(v, mapping, otherID, other.column); ok {
						b.addViewEdge(graph.EdgeViewJoin, graph.ConfidenceExact, viewID, tableID, from, target.column)
					}
					continue
				}

				// Other side names the view itself (or one of its aliases).
				if b.sideIsView(other, v, aliases) && viewColumn(v, other.column) {
					b.addViewEdge(graph.EdgeViewJoin, graph.ConfidenceExact, viewID, tableID, other.column, target.column)
				}
			}
		}
	}
}

// sideTable resolves one equality side to a base-table node id via the
// alias map, falling back to direct name resolution.
func (b *builder) sideTable(ref columnRef, aliases map[string]string) (string, bool) {
	if ref.qualifier == "" {
		return "", false
	}
	if id, ok := aliases[strings.ToLower(ref.qualifier)]; ok {
		return id, true
	}
	return b.resolveNode(ref.qualifier)
}

// sideIsView reports whether an equality side's qualifier denotes the view
// whose definition is being analyzed. A view's own name acts as an
// implicit alias for itself.
func (b *builder) sideIsView(ref columnRef, v *catalog.View, aliases map[string]string) bool {
	if ref.qualifier == "" {
		return false
	}
	q := strings.ToLower(ref.qualifier)
	if id, ok := aliases[q]; ok && id == v.ID() {
		return true
	}
	return q == strings.ToLower(v.Name) || q == strings.ToLower(v.ID())
}

// mappedViewColumn finds the view result column whose SELECT-list source is
// exactly (tableID, column). Scanning the view's declared columns keeps the
// lookup order deterministic.
func mappedViewColumn(v *catalog.View, mapping map[string]sourceRef, tableID, column string) (string, bool) {
	want := sourceRef{table: tableID, column: column}
	for i := range v.Columns {
		if mapping[v.Columns[i].Name] == want {
			return v.Columns[i].Name, true
		}
	}
	// The view may expose the column under a SELECT alias not present in
	// the catalog column list (partial metadata); fall back to the mapping
	// itself in name order.
	var names []string
	for name := range mapping {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if mapping[name] == want {
			return name, true
		}
	}
	return "", false
}

package infer

import (
	"regexp"
	"strings"

	"schemap/internal/catalog"
	"schemap/internal/graph"
)

// qualifiedRefRe recognizes "qualifier.column" or "schema.table.column"
// references inside a function argument list. Bare identifiers are ignored:
// without a qualifier there is nothing to resolve a table from.
var qualifiedRefRe = regexp.MustCompile(identPat + `(?:\.` + identPat + `){1,2}`)

// callRe recognizes the head of a call-like pattern "[schema.]name(".
var callRe = regexp.MustCompile(`(?i)\b(?:` + identPat + `\.)?(` + identPat + `)\s*\(`)

// functionEdges extracts view→table edges from call-like patterns in the
// view's SELECT clause. Lowest precedence and strictly additive: a column
// pair already produced by the JOIN step is skipped.
func (b *builder) functionEdges(v *catalog.View, aliases map[string]string) {
	clause, ok := selectClause(v.Definition)
	if !ok {
		return
	}

	viewID := v.ID()

	for _, call := range extractCalls(clause) {
		for _, ref := range argumentRefs(call.args) {
			tableID, ok := b.sideTable(ref, aliases)
			if !ok || tableID == viewID {
				continue
			}
			target := b.nodeByID(tableID)
			if target == nil || target.Kind != graph.NodeTable || !nodeHasColumn(target, ref.column) {
				continue
			}

			viewCol, confidence := functionSourceColumn(v, ref.column)
			if viewCol == "" {
				continue
			}
			b.addViewEdge(graph.EdgeViewFunction, confidence, viewID, tableID, viewCol, ref.column)
		}
	}
}

// call is one extracted "[schema.]name(args)" occurrence.
type call struct {
	name string
	args string
}

// extractCalls finds call-like patterns in clause, pairing each head with
// the text up to its matching close parenthesis. Keywords followed by a
// parenthesis (IN, EXISTS, …) are not calls.
func extractCalls(clause string) []call {
	var calls []call
	for _, loc := range callRe.FindAllStringSubmatchIndex(clause, -1) {
		name := clause[loc[2]:loc[3]]
		if isKeyword(name) {
			continue
		}
		open := loc[1] - 1 // the '(' matched at the end of the head
		end := matchingParen(clause, open)
		if end < 0 {
			continue
		}
		calls = append(calls, call{name: name, args: clause[open+1 : end]})
	}
	return calls
}

// matchingParen returns the index of the parenthesis closing the one at
// open, or -1 when unbalanced.
func matchingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// argumentRefs extracts the qualified column references inside an argument
// list. References that are themselves nested call heads are skipped.
func argumentRefs(args string) []columnRef {
	var refs []columnRef
	for _, loc := range qualifiedRefRe.FindAllStringIndex(args, -1) {
		rest := strings.TrimLeft(args[loc[1]:], " \t\r\n")
		if strings.HasPrefix(rest, "(") {
			continue
		}
		refs = append(refs, parseColumnRef(args[loc[0]:loc[1]]))
	}
	return refs
}

// functionSourceColumn picks the view result column to use as the edge
// source for a referenced table column: a result column with a matching or
// overlapping name, else the view's first declared result column, a
// deliberately loose fallback, tagged heuristic so consumers can tell it
// apart from name-derived choices.
func functionSourceColumn(v *catalog.View, tableCol string) (string, graph.Confidence) {
	for i := range v.Columns {
		if strings.EqualFold(v.Columns[i].Name, tableCol) {
			return v.Columns[i].Name, graph.ConfidenceExact
		}
	}
	want := strings.ToLower(tableCol)
	for i := range v.Columns {
		name := strings.ToLower(v.Columns[i].Name)
		if strings.Contains(name, want) || strings.Contains(want, name) {
			return v.Columns[i].Name, graph.ConfidenceExact
		}
	}
	if len(v.Columns) > 0 {
		return v.Columns[0].Name, graph.ConfidenceHeuristic
	}
	return "", graph.ConfidenceHeuristic
}

// nodeByID returns the materialized node with the given id.
func (b *builder) nodeByID(id string) *graph.Node {
	for i := range b.nodes {
		if b.nodes[i].ID == id {
			return &b.nodes[i]
		}
	}
	return nil
}

// nodeHasColumn reports whether the node carries a column with the given
// name, case-insensitively.
func nodeHasColumn(n *graph.Node, name string) bool {
	for i := range n.Columns {
		if strings.EqualFold(n.Columns[i].Name, name) {
			return true
		}
	}
	return false
}

package infer

import (
	"regexp"
	"strings"
)

// Best-effort textual extraction from view definitions. These are narrow
// pattern contracts, not a SQL grammar: false negatives (missed
// relationships) are acceptable, false positives are the risk to guard
// against. Each regexp documents the exact shape it recognizes.

const (
	identPat = `[A-Za-z_][A-Za-z0-9_$]*`

	// tableRefPat matches "name" or "schema.name".
	tableRefPat = identPat + `(?:\.` + identPat + `)?`

	// columnRefPat matches "column", "qualifier.column" or
	// "schema.table.column".
	columnRefPat = identPat + `(?:\.` + identPat + `){0,2}`
)

var (
	// fromJoinRe recognizes "FROM <table> [AS] [alias]" and
	// "JOIN <table> [AS] [alias]".
	fromJoinRe = regexp.MustCompile(`(?is)\b(?:FROM|JOIN)\s+(` + tableRefPat + `)(?:\s+(?:AS\s+)?(` + identPat + `))?`)

	// joinHeadRe recognizes the head "JOIN <table> [AS alias] ON". The
	// condition that follows is sliced out manually in extractJoins: a
	// terminator group in the pattern itself would consume the JOIN keyword
	// of the next clause and hide it from FindAll.
	joinHeadRe = regexp.MustCompile(`(?is)\bJOIN\s+(` + tableRefPat + `)(?:\s+(?:AS\s+)?(` + identPat + `))?\s+ON\b`)

	// clauseBoundaryRe marks where a JOIN condition ends.
	clauseBoundaryRe = regexp.MustCompile(`(?i)\b(?:INNER|LEFT|RIGHT|FULL|CROSS|OUTER|JOIN|WHERE|GROUP|ORDER|HAVING|LIMIT|UNION)\b`)

	// conditionSplitRe splits a compound ON condition into its individual
	// comparisons.
	conditionSplitRe = regexp.MustCompile(`(?i)\s+(?:AND|OR)\s+`)

	// equalityRe recognizes "[qualifier.]column = [qualifier.]column".
	equalityRe = regexp.MustCompile(`(?i)(` + columnRefPat + `)\s*=\s*(` + columnRefPat + `)`)

	// selectItemRe recognizes one SELECT-list item of the shape
	// "[schema.]qualifier.column [AS] [alias]".
	selectItemRe = regexp.MustCompile(`(?is)^(` + identPat + `(?:\.` + identPat + `){1,2})(?:\s+(?:AS\s+)?(` + identPat + `))?$`)
)

// sqlKeywords are words the alias captures must never be mistaken for.
var sqlKeywords = map[string]bool{
	"ON": true, "WHERE": true, "JOIN": true, "INNER": true, "LEFT": true,
	"RIGHT": true, "FULL": true, "CROSS": true, "OUTER": true, "GROUP": true,
	"ORDER": true, "HAVING": true, "LIMIT": true, "UNION": true, "SELECT": true,
	"AND": true, "OR": true, "NOT": true, "AS": true, "SET": true, "USING": true,
	"CASE": true, "WHEN": true, "THEN": true, "ELSE": true, "END": true,
	"IN": true, "EXISTS": true, "BETWEEN": true, "LIKE": true, "IS": true,
	"NULL": true, "DISTINCT": true,
}

func isKeyword(word string) bool {
	return sqlKeywords[strings.ToUpper(word)]
}

// columnRef is a parsed "[qualifier.]column" reference.
type columnRef struct {
	qualifier string // "" for a bare column; "schema.table" collapses to the table part
	column    string
}

// parseColumnRef splits a dotted reference. Three-part references
// ("schema.table.column") keep only the table part as qualifier: alias
// lookups and node normalization both work on the unqualified name.
func parseColumnRef(s string) columnRef {
	parts := strings.Split(s, ".")
	switch len(parts) {
	case 1:
		return columnRef{column: parts[0]}
	case 2:
		return columnRef{qualifier: parts[0], column: parts[1]}
	default:
		return columnRef{qualifier: parts[len(parts)-2], column: parts[len(parts)-1]}
	}
}

// bareName strips an optional namespace from a table reference.
func bareName(ref string) string {
	if i := strings.LastIndexByte(ref, '.'); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// joinClause is one extracted "JOIN table [alias] ON condition".
type joinClause struct {
	table     string // raw table reference as written
	alias     string // "" when none
	condition string
}

// extractJoins returns all JOIN ... ON clauses in definition order. The
// condition runs from the matched ON to the next clause keyword or end of
// text.
func extractJoins(def string) []joinClause {
	var joins []joinClause
	for _, idx := range joinHeadRe.FindAllStringSubmatchIndex(def, -1) {
		table := def[idx[2]:idx[3]]
		alias := ""
		if idx[4] >= 0 {
			alias = def[idx[4]:idx[5]]
		}
		if isKeyword(alias) {
			alias = ""
		}

		rest := def[idx[1]:]
		if b := clauseBoundaryRe.FindStringIndex(rest); b != nil {
			rest = rest[:b[0]]
		}
		condition := strings.TrimSpace(rest)
		if condition == "" {
			continue
		}
		joins = append(joins, joinClause{table: table, alias: alias, condition: condition})
	}
	return joins
}

// splitEqualities breaks a compound AND/OR condition into the equality
// comparisons it contains. Non-equality comparisons are dropped.
func splitEqualities(condition string) [][2]columnRef {
	var eqs [][2]columnRef
	for _, part := range conditionSplitRe.Split(condition, -1) {
		part = strings.Trim(strings.TrimSpace(part), "()")
		m := equalityRe.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		eqs = append(eqs, [2]columnRef{parseColumnRef(m[1]), parseColumnRef(m[2])})
	}
	return eqs
}

// buildAliasMap maps every alias (and table name) appearing in FROM/JOIN
// clauses to its resolved node id. Keys are lowercase. resolve is the node
// id normalization function; unresolvable references are skipped.
func buildAliasMap(def string, resolve func(string) (string, bool)) map[string]string {
	aliases := make(map[string]string)
	for _, m := range fromJoinRe.FindAllStringSubmatch(def, -1) {
		ref := m[1]
		nodeID, ok := resolve(ref)
		if !ok {
			continue
		}
		if alias := m[2]; alias != "" && !isKeyword(alias) {
			aliases[strings.ToLower(alias)] = nodeID
		}
		aliases[strings.ToLower(bareName(ref))] = nodeID
		aliases[strings.ToLower(ref)] = nodeID
	}
	return aliases
}

// selectClause returns the text between the leading SELECT and the first
// FROM at parenthesis depth zero. ok is false when the shape is not
// recognized (no SELECT, or no top-level FROM).
func selectClause(def string) (string, bool) {
	upper := strings.ToUpper(def)
	start := strings.Index(upper, "SELECT")
	if start < 0 {
		return "", false
	}
	start += len("SELECT")

	depth := 0
	for i := start; i < len(def); i++ {
		switch def[i] {
		case '(':
			depth++
		case ')':
			depth--
		case 'F', 'f':
			if depth == 0 && i+4 <= len(def) &&
				strings.EqualFold(def[i:i+4], "FROM") &&
				boundaryBefore(def, i) && boundaryAfter(def, i+4) {
				return def[start:i], true
			}
		}
	}
	return "", false
}

// splitTopLevel splits s on commas at parenthesis depth zero.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		begin int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[begin:i])
				begin = i + 1
			}
		}
	}
	parts = append(parts, s[begin:])
	return parts
}

// buildSelectMapping resolves each selected "[qualifier.]column [AS name]"
// item against the alias map, producing output-column → source mapping:
// which base-table column a given view result column actually came from.
// Expressions and unqualified items are skipped.
func buildSelectMapping(def string, aliases map[string]string) map[string]sourceRef {
	clause, ok := selectClause(def)
	if !ok {
		return nil
	}

	mapping := make(map[string]sourceRef)
	for _, item := range splitTopLevel(clause) {
		m := selectItemRe.FindStringSubmatch(strings.TrimSpace(item))
		if m == nil {
			continue
		}
		ref := parseColumnRef(m[1])
		if ref.qualifier == "" {
			continue
		}
		nodeID, ok := aliases[strings.ToLower(ref.qualifier)]
		if !ok {
			continue
		}

		out := m[2]
		if out == "" || isKeyword(out) {
			out = ref.column
		}
		mapping[out] = sourceRef{table: nodeID, column: ref.column}
	}
	return mapping
}

// sourceRef identifies the base-table column a view output column reads.
type sourceRef struct {
	table  string // node id
	column string
}

func boundaryBefore(s string, i int) bool {
	return i == 0 || !isWordByte(s[i-1])
}

func boundaryAfter(s string, i int) bool {
	return i >= len(s) || !isWordByte(s[i])
}

func isWordByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

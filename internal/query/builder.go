// Package query executes read-only data queries against an introspected
// connection. Requests are declarative (table, columns, filters); the SQL is
// generated with parameterized values and every identifier is checked
// against the introspected schema before anything reaches the database.
// Raw SQL is accepted only after read-only validation.
package query

import (
	"fmt"
	"strings"

	"schemap/internal/database"
	"schemap/internal/errs"
)

// validOps is the allowlist of comparison operators for filters. Any
// operator not in this list is rejected: the operator position cannot be
// parameterized, so it must never carry caller-supplied text.
var validOps = map[string]bool{
	"=":     true,
	"!=":    true,
	"<>":    true,
	"<":     true,
	">":     true,
	"<=":    true,
	">=":    true,
	"LIKE":  true,
	"ILIKE": true,
}

// Filter is one WHERE condition. Multiple filters combine with AND.
type Filter struct {
	Column string `json:"column"`
	Op     string `json:"op"`
	Value  any    `json:"value"`
}

// Order is one ORDER BY term.
type Order struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc"`
}

// Request is a declarative read-only query. Setting SQL bypasses the
// builder: the statement runs as written after read-only validation, and
// the remaining fields are ignored.
type Request struct {
	SQL     string   `json:"sql,omitempty"`
	Table   string   `json:"table"`
	Columns []string `json:"columns"` // empty selects all columns
	Filters []Filter `json:"filters"`
	OrderBy []Order  `json:"order_by"`
	Limit   int      `json:"limit"` // 0 means the executor's default cap
	Offset  int      `json:"offset"`
}

// Build produces the SQL string and argument slice for req in the given
// placeholder dialect. Values are never interpolated into the SQL text.
func Build(req *Request, d database.Dialect) (string, []any, error) {
	cols := "*"
	if len(req.Columns) > 0 {
		quoted := make([]string, len(req.Columns))
		for i, c := range req.Columns {
			quoted[i] = quoteIdent(c)
		}
		cols = strings.Join(quoted, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(quoteIdent(req.Table))

	var args []any
	argIdx := 1

	if len(req.Filters) > 0 {
		parts := make([]string, 0, len(req.Filters))
		for _, f := range req.Filters {
			op := strings.ToUpper(f.Op)
			if !validOps[op] {
				return "", nil, errs.New(errs.ErrKindInvalidInput,
					fmt.Sprintf("unsupported filter operator: %q", f.Op))
			}
			parts = append(parts, fmt.Sprintf("%s %s %s", quoteIdent(f.Column), op, placeholder(d, argIdx)))
			args = append(args, f.Value)
			argIdx++
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(parts, " AND "))
	}

	if len(req.OrderBy) > 0 {
		parts := make([]string, len(req.OrderBy))
		for i, o := range req.OrderBy {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts[i] = fmt.Sprintf("%s %s", quoteIdent(o.Column), dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	sb.WriteString(fmt.Sprintf(" LIMIT %s", placeholder(d, argIdx)))
	args = append(args, req.Limit)
	argIdx++

	if req.Offset > 0 {
		sb.WriteString(fmt.Sprintf(" OFFSET %s", placeholder(d, argIdx)))
		args = append(args, req.Offset)
	}

	return sb.String(), args, nil
}

// placeholder returns the parameter placeholder for the dialect.
// Postgres: $1, $2, ...   MySQL: ? (index is ignored)
func placeholder(d database.Dialect, idx int) string {
	if d == database.DialectMySQL {
		return "?"
	}
	return fmt.Sprintf("$%d", idx)
}

// quoteIdent wraps a SQL identifier in double-quotes (ANSI standard).
// Both supported engines accept this quoting style.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

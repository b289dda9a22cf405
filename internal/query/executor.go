package query

import (
	"context"

	"schemap/internal/catalog"
	"schemap/internal/database"
	"schemap/internal/errs"
	"schemap/internal/logger"
)

// DefaultMaxRows caps result sets when a request does not set its own limit.
const DefaultMaxRows = 500

// Executor runs validated read-only queries on one connection.
type Executor struct {
	db      database.DB
	log     *logger.Logger
	maxRows int
}

// NewExecutor creates an Executor. maxRows <= 0 selects DefaultMaxRows.
func NewExecutor(db database.DB, maxRows int, log *logger.Logger) *Executor {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Executor{db: db, log: log, maxRows: maxRows}
}

// Run validates req against the introspected schema, executes it and
// returns the rows as column-name keyed maps. Raw-SQL requests skip the
// schema check and go through read-only validation instead.
func (e *Executor) Run(ctx context.Context, schema *catalog.SchemaInfo, req *Request) ([]map[string]any, error) {
	if req.SQL != "" {
		return e.RunSQL(ctx, req.SQL)
	}

	if err := validate(schema, req); err != nil {
		return nil, err
	}

	if req.Limit <= 0 || req.Limit > e.maxRows {
		req.Limit = e.maxRows
	}

	sql, args, err := Build(req, e.db.Dialect())
	if err != nil {
		return nil, err
	}

	rows, err := e.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results, err := scanRows(rows, e.maxRows)
	if err != nil {
		return nil, err
	}

	e.log.InfoWith("query executed", map[string]any{
		"table": req.Table,
		"rows":  len(results),
	})
	return results, nil
}

// RunSQL executes a raw statement after EnsureReadOnly. The statement runs
// as written; the row cap is enforced by truncating the scan.
func (e *Executor) RunSQL(ctx context.Context, sql string) ([]map[string]any, error) {
	if err := EnsureReadOnly(sql); err != nil {
		return nil, err
	}

	rows, err := e.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results, err := scanRows(rows, e.maxRows)
	if err != nil {
		return nil, err
	}

	e.log.InfoWith("raw query executed", map[string]any{"rows": len(results)})
	return results, nil
}

// validate rejects requests naming tables or columns absent from the
// introspected schema. Views are queryable like tables.
func validate(schema *catalog.SchemaInfo, req *Request) error {
	if req.Table == "" {
		return errs.New(errs.ErrKindInvalidInput, "query request is missing a table")
	}

	known := tableColumns(schema, req.Table)
	if known == nil {
		return errs.New(errs.ErrKindNotFound, "unknown table or view: "+req.Table)
	}

	for _, c := range req.Columns {
		if !known[c] {
			return errs.New(errs.ErrKindInvalidInput, "unknown column: "+c)
		}
	}
	for _, f := range req.Filters {
		if !known[f.Column] {
			return errs.New(errs.ErrKindInvalidInput, "unknown filter column: "+f.Column)
		}
	}
	for _, o := range req.OrderBy {
		if !known[o.Column] {
			return errs.New(errs.ErrKindInvalidInput, "unknown order column: "+o.Column)
		}
	}
	return nil
}

// tableColumns returns the column-name set of the named table or view, or
// nil when the schema has no such object.
func tableColumns(schema *catalog.SchemaInfo, name string) map[string]bool {
	var cols []catalog.Column
	if t := schema.Table(name); t != nil {
		cols = t.Columns
	} else if v := schema.View(name); v != nil {
		cols = v.Columns
	} else {
		return nil
	}

	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c.Name] = true
	}
	return set
}

// scanRows converts a result set into column-name keyed maps, reading at
// most max rows. []byte values are copied to strings so they survive the
// driver's buffer reuse.
func scanRows(rows database.Rows, max int) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read result columns", err)
	}

	var results []map[string]any
	for len(results) < max && rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan row", err)
		}

		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = values[i]
			}
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

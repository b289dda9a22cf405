package catalog

import (
	"context"

	"schemap/internal/database"
	"schemap/internal/errs"
	"schemap/internal/logger"
)

// MySQL reads the MySQL system catalog (information_schema) for the
// connection's current database. It implements Reader.
//
// MySQL has no namespace below the database, so Table.Schema is left empty
// and node ids in the resulting graph are bare names.
type MySQL struct {
	db  database.DB
	log *logger.Logger
}

// NewMySQL returns a catalog reader for the connection's current database.
func NewMySQL(db database.DB, log *logger.Logger) *MySQL {
	return &MySQL{db: db, log: log}
}

// Verify checks connectivity and that information_schema is queryable.
func (m *MySQL) Verify(ctx context.Context) error {
	if err := m.db.Ping(ctx); err != nil {
		return errs.Wrap(errs.ErrKindCatalogAccess, "database unreachable", err)
	}

	const q = `SELECT 1 FROM information_schema.tables LIMIT 1`
	var one int
	if err := m.db.QueryRow(ctx, q).Scan(&one); err != nil && !errs.IsNotFound(err) {
		return errs.Wrap(errs.ErrKindCatalogAccess, "system catalog not queryable (check privileges)", err)
	}
	return nil
}

// Tables returns all base tables in the current database. Per-table
// metadata failures are logged and the table is emitted with empty detail
// lists.
func (m *MySQL) Tables(ctx context.Context) ([]Table, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_type   = 'BASE TABLE'
		ORDER BY table_name`

	names, err := m.fetchStringList(ctx, q, "failed to list tables")
	if err != nil {
		return nil, err
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		t := Table{Name: name}

		cols, pks, err := m.fetchColumns(ctx, name)
		if err != nil {
			m.log.WarnWith("partial metadata: table columns unavailable", err, map[string]any{
				"table": name,
			})
			tables = append(tables, t)
			continue
		}
		t.Columns = cols
		t.PrimaryKey = pks

		if idxs, err := m.fetchIndexes(ctx, name); err != nil {
			m.log.WarnWith("partial metadata: indexes unavailable", err, map[string]any{
				"table": name,
			})
		} else {
			t.Indexes = idxs
		}

		tables = append(tables, t)
	}
	return tables, nil
}

// fetchColumns returns a table's columns and, as a convenience, its primary
// key column list: information_schema.columns carries the key flag inline.
func (m *MySQL) fetchColumns(ctx context.Context, table string) ([]Column, []string, error) {
	const q = `
		SELECT column_name,
		       data_type,
		       is_nullable = 'YES',
		       column_default,
		       column_key,
		       column_comment
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		  AND table_name   = ?
		ORDER BY ordinal_position`

	rows, err := m.db.Query(ctx, q, table)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var (
		cols []Column
		pks  []string
	)
	for rows.Next() {
		var c Column
		var key string
		if err := rows.Scan(&c.Name, &c.DataType, &c.Nullable, &c.Default, &key, &c.Comment); err != nil {
			return nil, nil, err
		}
		c.IsPrimaryKey = key == "PRI"
		if c.IsPrimaryKey {
			pks = append(pks, c.Name)
		}
		cols = append(cols, c)
	}
	return cols, pks, rows.Err()
}

func (m *MySQL) fetchIndexes(ctx context.Context, table string) ([]Index, error) {
	const q = `
		SELECT index_name,
		       column_name,
		       non_unique = 0
		FROM information_schema.statistics
		WHERE table_schema = DATABASE()
		  AND table_name   = ?
		  AND index_name  != 'PRIMARY'
		ORDER BY index_name, seq_in_index`

	rows, err := m.db.Query(ctx, q, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectIndexes(rows)
}

// Views returns all views with definitions and result columns.
func (m *MySQL) Views(ctx context.Context) ([]View, error) {
	const q = `
		SELECT table_name,
		       COALESCE(view_definition, '')
		FROM information_schema.views
		WHERE table_schema = DATABASE()
		ORDER BY table_name`

	rows, err := m.db.Query(ctx, q)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to list views", err)
	}
	defer rows.Close()

	var views []View
	for rows.Next() {
		var v View
		if err := rows.Scan(&v.Name, &v.Definition); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan view", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "error iterating views", err)
	}

	for i := range views {
		cols, _, err := m.fetchColumns(ctx, views[i].Name)
		if err != nil {
			m.log.WarnWith("partial metadata: view columns unavailable", err, map[string]any{
				"view": views[i].Name,
			})
			continue
		}
		// View result columns are never key columns.
		for j := range cols {
			cols[j].IsPrimaryKey = false
		}
		views[i].Columns = cols
	}
	return views, nil
}

// Triggers returns all table triggers in the current database.
func (m *MySQL) Triggers(ctx context.Context) ([]Trigger, error) {
	const q = `
		SELECT trigger_name,
		       event_object_table,
		       event_manipulation,
		       action_timing
		FROM information_schema.triggers
		WHERE trigger_schema = DATABASE()
		ORDER BY trigger_name`

	rows, err := m.db.Query(ctx, q)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to list triggers", err)
	}
	defer rows.Close()

	var trs []Trigger
	for rows.Next() {
		var t Trigger
		if err := rows.Scan(&t.Name, &t.Table, &t.Event, &t.Timing); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan trigger", err)
		}
		trs = append(trs, t)
	}
	return trs, rows.Err()
}

// ForeignKeys returns declared constraints, one record per column pair.
// KEY_COLUMN_USAGE already stores composite keys one row per column, so no
// extra flattening is needed.
func (m *MySQL) ForeignKeys(ctx context.Context) ([]ForeignKey, error) {
	const q = `
		SELECT constraint_name,
		       table_name,
		       column_name,
		       referenced_table_name,
		       referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema           = DATABASE()
		  AND referenced_table_name IS NOT NULL
		ORDER BY constraint_name, ordinal_position`

	rows, err := m.db.Query(ctx, q)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to list foreign keys", err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Name, &fk.FromTable, &fk.FromColumn, &fk.ToTable, &fk.ToColumn); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan foreign key", err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// fetchStringList is a helper for queries that return a single text column.
func (m *MySQL) fetchStringList(ctx context.Context, q, errMsg string, args ...any) ([]string, error) {
	rows, err := m.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, errMsg, err)
	}
	defer rows.Close()

	var list []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, errMsg, err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

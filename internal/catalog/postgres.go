package catalog

import (
	"context"
	"fmt"

	"schemap/internal/database"
	"schemap/internal/errs"
	"schemap/internal/logger"
)

// Postgres reads the PostgreSQL system catalog (information_schema plus
// pg_catalog) for one namespace. It implements Reader.
type Postgres struct {
	db     database.DB
	schema string
	log    *logger.Logger
}

// NewPostgres returns a catalog reader bound to the given namespace
// (usually "public").
func NewPostgres(db database.DB, schema string, log *logger.Logger) *Postgres {
	if schema == "" {
		schema = "public"
	}
	return &Postgres{db: db, schema: schema, log: log}
}

// Verify checks connectivity and that the catalog views are queryable.
func (p *Postgres) Verify(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		return errs.Wrap(errs.ErrKindCatalogAccess, "database unreachable", err)
	}

	const q = `SELECT 1 FROM information_schema.tables LIMIT 1`
	var one int
	if err := p.db.QueryRow(ctx, q).Scan(&one); err != nil && !errs.IsNotFound(err) {
		return errs.Wrap(errs.ErrKindCatalogAccess, "system catalog not queryable (check privileges)", err)
	}
	return nil
}

// Tables returns all base tables in the namespace. Per-table metadata
// failures are logged and the table is emitted with empty detail lists.
func (p *Postgres) Tables(ctx context.Context) ([]Table, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type   = 'BASE TABLE'
		ORDER BY table_name`

	names, err := p.fetchStringList(ctx, q, "failed to list tables", p.schema)
	if err != nil {
		return nil, err
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		t := Table{Name: name, Schema: p.schema}

		cols, err := p.fetchColumns(ctx, name)
		if err != nil {
			p.log.WarnWith("partial metadata: table columns unavailable", err, map[string]any{
				"table": name,
			})
			tables = append(tables, t)
			continue
		}
		t.Columns = cols

		if pks, err := p.fetchPrimaryKey(ctx, name); err != nil {
			p.log.WarnWith("partial metadata: primary key unavailable", err, map[string]any{
				"table": name,
			})
		} else {
			t.PrimaryKey = pks
			markPrimaryKeys(t.Columns, pks)
		}

		if idxs, err := p.fetchIndexes(ctx, name); err != nil {
			p.log.WarnWith("partial metadata: indexes unavailable", err, map[string]any{
				"table": name,
			})
		} else {
			t.Indexes = idxs
		}

		tables = append(tables, t)
	}
	return tables, nil
}

func (p *Postgres) fetchColumns(ctx context.Context, table string) ([]Column, error) {
	const q = `
		SELECT c.column_name,
		       c.data_type,
		       c.is_nullable = 'YES',
		       c.column_default,
		       COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass,
		                                c.ordinal_position), '')
		FROM information_schema.columns c
		WHERE c.table_schema = $1
		  AND c.table_name   = $2
		ORDER BY c.ordinal_position`

	rows, err := p.db.Query(ctx, q, p.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DataType, &c.Nullable, &c.Default, &c.Comment); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (p *Postgres) fetchPrimaryKey(ctx context.Context, table string) ([]string, error) {
	const q = `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema    = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema    = $1
		  AND tc.table_name      = $2
		ORDER BY kcu.ordinal_position`

	return p.fetchStringList(ctx, q, "failed to fetch primary key", p.schema, table)
}

func (p *Postgres) fetchIndexes(ctx context.Context, table string) ([]Index, error) {
	const q = `
		SELECT i.relname,
		       a.attname,
		       ix.indisunique
		FROM pg_index ix
		JOIN pg_class i  ON i.oid = ix.indexrelid
		JOIN pg_class t  ON t.oid = ix.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE n.nspname = $1
		  AND t.relname = $2
		  AND NOT ix.indisprimary
		ORDER BY i.relname, k.ord`

	rows, err := p.db.Query(ctx, q, p.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectIndexes(rows)
}

// Views returns all views with definitions and result columns. A view
// whose columns cannot be fetched is emitted with an empty column list.
func (p *Postgres) Views(ctx context.Context) ([]View, error) {
	const q = `
		SELECT table_name,
		       COALESCE(view_definition, '')
		FROM information_schema.views
		WHERE table_schema = $1
		ORDER BY table_name`

	rows, err := p.db.Query(ctx, q, p.schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to list views", err)
	}
	defer rows.Close()

	var views []View
	for rows.Next() {
		v := View{Schema: p.schema}
		if err := rows.Scan(&v.Name, &v.Definition); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan view", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "error iterating views", err)
	}

	for i := range views {
		cols, err := p.fetchColumns(ctx, views[i].Name)
		if err != nil {
			p.log.WarnWith("partial metadata: view columns unavailable", err, map[string]any{
				"view": views[i].Name,
			})
			continue
		}
		views[i].Columns = cols
	}
	return views, nil
}

// Triggers returns all table triggers in the namespace.
func (p *Postgres) Triggers(ctx context.Context) ([]Trigger, error) {
	const q = `
		SELECT trigger_name,
		       event_object_table,
		       event_manipulation,
		       action_timing
		FROM information_schema.triggers
		WHERE trigger_schema = $1
		ORDER BY trigger_name`

	rows, err := p.db.Query(ctx, q, p.schema)
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

// ForeignKeys returns declared constraints flattened to one record per
// column pair. pg_constraint's conkey/confkey arrays are unnested with
// matching ordinality so composite keys pair the right columns.
func (p *Postgres) ForeignKeys(ctx context.Context) ([]ForeignKey, error) {
	const q = `
		SELECT c.conname,
		       src.relname,
		       sa.attname,
		       dst.relname,
		       da.attname
		FROM pg_constraint c
		JOIN pg_class src ON src.oid = c.conrelid
		JOIN pg_class dst ON dst.oid = c.confrelid
		JOIN pg_namespace n ON n.oid = src.relnamespace
		JOIN unnest(c.conkey)  WITH ORDINALITY AS sk(attnum, ord) ON true
		JOIN unnest(c.confkey) WITH ORDINALITY AS dk(attnum, ord) ON sk.ord = dk.ord
		JOIN pg_attribute sa ON sa.attrelid = c.conrelid  AND sa.attnum = sk.attnum
		JOIN pg_attribute da ON da.attrelid = c.confrelid AND da.attnum = dk.attnum
		WHERE c.contype = 'f'
		  AND n.nspname = $1
		ORDER BY c.conname, sk.ord`

	rows, err := p.db.Query(ctx, q, p.schema)
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
func (p *Postgres) fetchStringList(ctx context.Context, q, errMsg string, args ...any) ([]string, error) {
	rows, err := p.db.Query(ctx, q, args...)
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

// --- shared helpers ---

// collectIndexes folds (index, column, unique) rows, ordered by index name
// then key position, into Index records with ordered column lists.
func collectIndexes(rows database.Rows) ([]Index, error) {
	var (
		idxs []Index
		cur  *Index
	)
	for rows.Next() {
		var name, column string
		var unique bool
		if err := rows.Scan(&name, &column, &unique); err != nil {
			return nil, fmt.Errorf("scan index row: %w", err)
		}
		if cur == nil || cur.Name != name {
			idxs = append(idxs, Index{Name: name, Unique: unique})
			cur = &idxs[len(idxs)-1]
		}
		cur.Columns = append(cur.Columns, column)
	}
	return idxs, rows.Err()
}

// markPrimaryKeys flags the primary key columns in cols.
func markPrimaryKeys(cols []Column, pks []string) {
	for _, pk := range pks {
		for i := range cols {
			if cols[i].Name == pk {
				cols[i].IsPrimaryKey = true
			}
		}
	}
}

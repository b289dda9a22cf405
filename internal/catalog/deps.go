package catalog

import (
	"context"
	"strings"

	"schemap/internal/database"
	"schemap/internal/logger"
)

// PgDeepDependencies queries pg_depend for object-to-object references that
// are recorded in the rewrite rules of views and expression defaults but
// never declared as foreign keys. It implements DeepDependencyExtractor.
//
// The dependency catalog yields only object pairs, no column linkage, so a
// plausible column pair is inferred by inferDependencyColumns. Best-effort:
// any catalog failure logs a warning and yields nothing, so the extractor
// can never block the primary introspection pass.
type PgDeepDependencies struct {
	db     database.DB
	schema string
	log    *logger.Logger
}

// NewPgDeepDependencies returns the extractor bound to the given namespace.
func NewPgDeepDependencies(db database.DB, schema string, log *logger.Logger) *PgDeepDependencies {
	if schema == "" {
		schema = "public"
	}
	return &PgDeepDependencies{db: db, schema: schema, log: log}
}

// DeepDependencies returns inferred ForeignKey records for referencing →
// referenced object pairs. Dependencies already covered by a declared FK in
// info, and dependencies for which no column pair can be determined, are
// dropped.
func (p *PgDeepDependencies) DeepDependencies(ctx context.Context, info *SchemaInfo) []ForeignKey {
	pairs, err := p.fetchObjectPairs(ctx)
	if err != nil {
		p.log.WarnWith("deep dependency catalog unavailable, skipping", err, map[string]any{
			"schema": p.schema,
		})
		return nil
	}

	declared := make(map[string]bool, len(info.ForeignKeys))
	for _, fk := range info.ForeignKeys {
		declared[fk.FromTable+"->"+fk.ToTable] = true
	}

	var fks []ForeignKey
	for _, pair := range pairs {
		if declared[pair.from+"->"+pair.to] {
			continue
		}

		fromCols := objectColumns(info, pair.from)
		toTable := info.Table(pair.to)
		if toTable == nil {
			continue
		}

		fromCol, toCol, ok := inferDependencyColumns(pair.from, fromCols, toTable)
		if !ok {
			p.log.WarnWith("deep dependency dropped: no column pair determinable", nil, map[string]any{
				"from": pair.from,
				"to":   pair.to,
			})
			continue
		}

		fks = append(fks, ForeignKey{
			Name:       "dep_" + pair.from + "_" + pair.to,
			FromTable:  pair.from,
			FromColumn: fromCol,
			ToTable:    pair.to,
			ToColumn:   toCol,
			Inferred:   true,
		})
	}
	return fks
}

type objectPair struct {
	from string // referencing object (view or table)
	to   string // referenced base table
}

// fetchObjectPairs walks pg_depend through pg_rewrite to find the relations
// an object's expressions reference.
func (p *PgDeepDependencies) fetchObjectPairs(ctx context.Context) ([]objectPair, error) {
	const q = `
		SELECT DISTINCT dep.relname,
		                ref.relname
		FROM pg_depend d
		JOIN pg_rewrite rw ON rw.oid = d.objid
		JOIN pg_class dep  ON dep.oid = rw.ev_class
		JOIN pg_class ref  ON ref.oid = d.refobjid
		JOIN pg_namespace n ON n.oid = dep.relnamespace
		WHERE d.classid    = 'pg_rewrite'::regclass
		  AND d.refclassid = 'pg_class'::regclass
		  AND ref.relkind  = 'r'
		  AND dep.relname <> ref.relname
		  AND n.nspname    = $1
		ORDER BY dep.relname, ref.relname`

	rows, err := p.db.Query(ctx, q, p.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []objectPair
	for rows.Next() {
		var pr objectPair
		if err := rows.Scan(&pr.from, &pr.to); err != nil {
			return nil, err
		}
		pairs = append(pairs, pr)
	}
	return pairs, rows.Err()
}

// objectColumns returns the column list of the named table or view in info.
func objectColumns(info *SchemaInfo, name string) []Column {
	if t := info.Table(name); t != nil {
		return t.Columns
	}
	if v := info.View(name); v != nil {
		return v.Columns
	}
	return nil
}

// inferDependencyColumns picks a plausible column pair for an object-level
// dependency, trying in order:
//
//  1. a referencing column whose name shares a prefix with the referenced
//     table's name (naming-convention match for foreign-key-like columns),
//     paired with the referenced table's first primary key column;
//  2. a referenced column whose name shares a prefix with the referencing
//     object's name, paired with the referencing side's first column;
//  3. the first column of each side.
//
// ok is false when either side has no columns at all.
func inferDependencyColumns(fromName string, fromCols []Column, to *Table) (fromCol, toCol string, ok bool) {
	if len(fromCols) == 0 || len(to.Columns) == 0 {
		return "", "", false
	}

	target := firstKeyColumn(to)

	for _, c := range fromCols {
		if sharesPrefix(c.Name, to.Name) {
			return c.Name, target, true
		}
	}

	for _, c := range to.Columns {
		if sharesPrefix(c.Name, fromName) {
			return fromCols[0].Name, c.Name, true
		}
	}

	return fromCols[0].Name, to.Columns[0].Name, true
}

// firstKeyColumn returns the referenced table's first primary key column,
// falling back to its first column.
func firstKeyColumn(t *Table) string {
	if len(t.PrimaryKey) > 0 {
		return t.PrimaryKey[0]
	}
	return t.Columns[0].Name
}

// sharesPrefix reports whether column and table names share a leading
// fragment in either direction, case-insensitively. The table name is also
// tried with a trailing "s" stripped, so "customer_id" matches "customers".
func sharesPrefix(column, table string) bool {
	col := strings.ToLower(column)
	tbl := strings.ToLower(table)
	singular := strings.TrimSuffix(tbl, "s")

	return strings.HasPrefix(col, tbl) ||
		strings.HasPrefix(col, singular) ||
		strings.HasPrefix(tbl, col) ||
		strings.HasPrefix(singular, col)
}

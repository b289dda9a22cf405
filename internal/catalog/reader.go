package catalog

import "context"

// Reader is the capability set a catalog adapter implements against its
// engine's system catalog. Exactly two variants exist: Postgres and MySQL.
//
// Verify must be called before the fetch methods; it distinguishes an
// unreachable or unreadable catalog (fatal to the pass) from per-object
// failures, which the fetch methods recover from locally by emitting the
// object with empty detail fields.
type Reader interface {
	// Verify checks the target database is reachable and its catalog
	// views are queryable. On failure it returns an ErrKindCatalogAccess
	// error carrying the underlying cause.
	Verify(ctx context.Context) error

	// Tables returns all base tables with columns, primary keys and
	// indexes. A table whose metadata cannot be fetched is still emitted
	// with empty detail lists.
	Tables(ctx context.Context) ([]Table, error)

	// Views returns all views with their raw definition text and result
	// columns.
	Views(ctx context.Context) ([]View, error)

	// Triggers returns all table triggers.
	Triggers(ctx context.Context) ([]Trigger, error)

	// ForeignKeys returns declared foreign keys flattened to one record
	// per column pair.
	ForeignKeys(ctx context.Context) ([]ForeignKey, error)
}

// DeepDependencyExtractor surfaces object-to-object references recorded in
// an engine's expression-dependency catalog but not declared as foreign
// keys. Strictly additive and best-effort: implementations never return an
// error; on any catalog failure they log and return an empty list.
type DeepDependencyExtractor interface {
	// DeepDependencies returns inferred ForeignKey records (Inferred=true).
	// info supplies the already-fetched tables and views used to infer a
	// plausible column pair; dependencies whose columns cannot be
	// determined are dropped.
	DeepDependencies(ctx context.Context, info *SchemaInfo) []ForeignKey
}

// NoDeepDependencies is the extractor for engines without an
// expression-dependency catalog (MySQL).
type NoDeepDependencies struct{}

func (NoDeepDependencies) DeepDependencies(context.Context, *SchemaInfo) []ForeignKey {
	return nil
}

package catalog

import (
	"context"

	"golang.org/x/sync/errgroup"

	"schemap/internal/logger"
)

// Assembler merges the output of a catalog Reader and a deep dependency
// extractor into one SchemaInfo. It performs no deduplication: edge-level
// comparison belongs to the inference pipeline.
type Assembler struct {
	reader Reader
	deep   DeepDependencyExtractor
	log    *logger.Logger
}

// NewAssembler wires a reader and extractor together. deep may be
// NoDeepDependencies{} for engines without an expression-dependency catalog.
func NewAssembler(reader Reader, deep DeepDependencyExtractor, log *logger.Logger) *Assembler {
	if deep == nil {
		deep = NoDeepDependencies{}
	}
	return &Assembler{reader: reader, deep: deep, log: log}
}

// Assemble runs one full introspection pass.
//
// The catalog sub-fetches are I/O-bound and independent, so tables, views,
// triggers and foreign keys are awaited concurrently. Failing to fetch the
// base table set aborts the pass; the secondary fetches (views, triggers,
// foreign keys) are tolerated with a warning so that restricted catalog
// privileges still yield a usable partial schema.
func (a *Assembler) Assemble(ctx context.Context) (*SchemaInfo, error) {
	if err := a.reader.Verify(ctx); err != nil {
		return nil, err
	}

	var (
		tables   []Table
		views    []View
		triggers []Trigger
		fks      []ForeignKey
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		tables, err = a.reader.Tables(gctx)
		return err
	})
	// A failed secondary fetch contributes nothing, even if the reader
	// returned partial results alongside the error.
	g.Go(func() error {
		if vs, err := a.reader.Views(gctx); err != nil {
			a.log.WarnWith("views unavailable, continuing without", err, nil)
		} else {
			views = vs
		}
		return nil
	})
	g.Go(func() error {
		if trs, err := a.reader.Triggers(gctx); err != nil {
			a.log.WarnWith("triggers unavailable, continuing without", err, nil)
		} else {
			triggers = trs
		}
		return nil
	})
	g.Go(func() error {
		if keys, err := a.reader.ForeignKeys(gctx); err != nil {
			a.log.WarnWith("declared foreign keys unavailable, continuing without", err, nil)
		} else {
			fks = keys
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	info := &SchemaInfo{
		Tables:      tables,
		Views:       views,
		Triggers:    triggers,
		ForeignKeys: fks,
	}

	// Deep dependencies are strictly additive and never fatal.
	info.ForeignKeys = append(info.ForeignKeys, a.deep.DeepDependencies(ctx, info)...)

	markForeignKeyColumns(info)

	a.log.InfoWith("introspection pass complete", map[string]any{
		"tables":       len(info.Tables),
		"views":        len(info.Views),
		"triggers":     len(info.Triggers),
		"foreign_keys": len(info.ForeignKeys),
	})
	return info, nil
}

// markForeignKeyColumns flags source columns of declared foreign keys on
// their owning tables. Inferred dependencies do not set the flag: their
// column choice is heuristic.
func markForeignKeyColumns(info *SchemaInfo) {
	for _, fk := range info.ForeignKeys {
		if fk.Inferred {
			continue
		}
		t := info.Table(fk.FromTable)
		if t == nil {
			continue
		}
		if c := t.Column(fk.FromColumn); c != nil {
			c.IsForeignKey = true
		}
	}
}

package catalog

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemap/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "error", Output: io.Discard})
}

// stubReader returns canned catalog data, with per-fetch error injection.
type stubReader struct {
	tables   []Table
	views    []View
	triggers []Trigger
	fks      []ForeignKey

	verifyErr   error
	tablesErr   error
	viewsErr    error
	triggersErr error
	fksErr      error
}

func (s *stubReader) Verify(context.Context) error { return s.verifyErr }

func (s *stubReader) Tables(context.Context) ([]Table, error) {
	return s.tables, s.tablesErr
}

func (s *stubReader) Views(context.Context) ([]View, error) {
	return s.views, s.viewsErr
}

func (s *stubReader) Triggers(context.Context) ([]Trigger, error) {
	return s.triggers, s.triggersErr
}

func (s *stubReader) ForeignKeys(context.Context) ([]ForeignKey, error) {
	return s.fks, s.fksErr
}

// stubExtractor records the schema it was handed and returns fixed records.
type stubExtractor struct {
	fks    []ForeignKey
	called bool
}

func (s *stubExtractor) DeepDependencies(_ context.Context, info *SchemaInfo) []ForeignKey {
	s.called = true
	return s.fks
}

func fixtureReader() *stubReader {
	return &stubReader{
		tables: []Table{
			{
				Name:   "orders",
				Schema: "public",
				Columns: []Column{
					{Name: "id", DataType: "integer", IsPrimaryKey: true},
					{Name: "customer_id", DataType: "integer"},
				},
				PrimaryKey: []string{"id"},
			},
			{
				Name:   "customers",
				Schema: "public",
				Columns: []Column{
					{Name: "id", DataType: "integer", IsPrimaryKey: true},
					{Name: "name", DataType: "text"},
				},
				PrimaryKey: []string{"id"},
			},
		},
		views: []View{
			{Name: "v_orders", Schema: "public", Definition: "SELECT id FROM orders"},
		},
		triggers: []Trigger{
			{Name: "orders_audit", Table: "orders", Event: "INSERT", Timing: "AFTER"},
		},
		fks: []ForeignKey{
			{
				Name:       "orders_customer_fk",
				FromTable:  "public.orders",
				FromColumn: "customer_id",
				ToTable:    "public.customers",
				ToColumn:   "id",
			},
		},
	}
}

func TestAssemble_MergesAllSources(t *testing.T) {
	reader := fixtureReader()
	deep := &stubExtractor{fks: []ForeignKey{
		{
			Name:       "dep_v_orders_customers",
			FromTable:  "public.v_orders",
			FromColumn: "id",
			ToTable:    "public.customers",
			ToColumn:   "id",
			Inferred:   true,
		},
	}}

	a := NewAssembler(reader, deep, testLogger())
	info, err := a.Assemble(context.Background())
	require.NoError(t, err)

	assert.Len(t, info.Tables, 2)
	assert.Len(t, info.Views, 1)
	assert.Len(t, info.Triggers, 1)
	require.Len(t, info.ForeignKeys, 2)
	assert.True(t, deep.called)

	// Declared records come first, deep dependencies are appended.
	assert.False(t, info.ForeignKeys[0].Inferred)
	assert.True(t, info.ForeignKeys[1].Inferred)
}

func TestAssemble_VerifyFailureAborts(t *testing.T) {
	reader := fixtureReader()
	reader.verifyErr = errors.New("permission denied for information_schema")

	a := NewAssembler(reader, nil, testLogger())
	info, err := a.Assemble(context.Background())
	require.Error(t, err)
	assert.Nil(t, info)
}

func TestAssemble_TableFailureIsFatal(t *testing.T) {
	reader := fixtureReader()
	reader.tablesErr = errors.New("relation cache gone")

	a := NewAssembler(reader, nil, testLogger())
	_, err := a.Assemble(context.Background())
	assert.Error(t, err)
}

func TestAssemble_SecondaryFailuresAreTolerated(t *testing.T) {
	reader := fixtureReader()
	reader.viewsErr = errors.New("no view privilege")
	reader.triggersErr = errors.New("no trigger privilege")
	reader.fksErr = errors.New("no constraint privilege")

	a := NewAssembler(reader, nil, testLogger())
	info, err := a.Assemble(context.Background())
	require.NoError(t, err)

	assert.Len(t, info.Tables, 2)
	assert.Empty(t, info.Views)
	assert.Empty(t, info.Triggers)
	assert.Empty(t, info.ForeignKeys)
}

func TestAssemble_NilExtractorDefaultsToNone(t *testing.T) {
	a := NewAssembler(fixtureReader(), nil, testLogger())
	info, err := a.Assemble(context.Background())
	require.NoError(t, err)
	assert.Len(t, info.ForeignKeys, 1)
}

func TestMarkForeignKeyColumns(t *testing.T) {
	reader := fixtureReader()
	deep := &stubExtractor{fks: []ForeignKey{
		{
			Name:       "dep_orders_customers",
			FromTable:  "public.orders",
			FromColumn: "id",
			ToTable:    "public.customers",
			ToColumn:   "id",
			Inferred:   true,
		},
	}}

	a := NewAssembler(reader, deep, testLogger())
	info, err := a.Assemble(context.Background())
	require.NoError(t, err)

	orders := info.Table("public.orders")
	require.NotNil(t, orders)
	assert.True(t, orders.Column("customer_id").IsForeignKey,
		"declared source column is flagged")
	assert.False(t, orders.Column("id").IsForeignKey,
		"inferred dependencies never set the flag")
}

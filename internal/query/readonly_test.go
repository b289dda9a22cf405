package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemap/internal/errs"
)

func TestEnsureReadOnly_Accepts(t *testing.T) {
	tests := []string{
		"SELECT * FROM orders",
		"select id from orders where status = 'open'",
		"WITH recent AS (SELECT id FROM orders) SELECT * FROM recent",
		"SELECT * FROM orders;",
		"-- latest orders\nSELECT * FROM orders",
	}
	for _, sql := range tests {
		assert.NoError(t, EnsureReadOnly(sql), sql)
	}
}

func TestEnsureReadOnly_Rejects(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"empty", "   "},
		{"comment only", "-- nothing here"},
		{"insert", "INSERT INTO orders VALUES (1)"},
		{"update prefix", "UPDATE orders SET status = 'x'"},
		{"chained statement", "SELECT 1; DROP TABLE orders"},
		{"embedded drop", "SELECT * FROM orders WHERE id = 1 UNION SELECT 1 FROM x CROSS JOIN y; DROP TABLE z"},
		{"keyword in body", "SELECT * FROM orders WHERE note = x AND 1=1 OR (DELETE FROM t)"},
		{"hidden in comment trick", "SELECT /* x */ 1 INTO outfile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := EnsureReadOnly(tt.sql)
			require.Error(t, err)
			assert.True(t, errs.IsInvalidInput(err))
		})
	}
}

func TestEnsureReadOnly_ColumnNamesAreNotKeywords(t *testing.T) {
	assert.NoError(t, EnsureReadOnly("SELECT created_at, updated_by FROM orders"))
}

func TestRunSQL_CapsRows(t *testing.T) {
	db := &fakeDB{
		cols: []string{"id"},
		rows: [][]any{{1}, {2}, {3}, {4}},
	}
	e := NewExecutor(db, 2, testLogger())

	results, err := e.RunSQL(context.Background(), "SELECT id FROM orders")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRunSQL_RejectsMutation(t *testing.T) {
	e := NewExecutor(&fakeDB{}, 0, testLogger())
	_, err := e.RunSQL(context.Background(), "DROP TABLE orders")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestRun_RawSQLSkipsSchemaValidation(t *testing.T) {
	db := &fakeDB{cols: []string{"n"}, rows: [][]any{{int64(1)}}}
	e := NewExecutor(db, 0, testLogger())

	// "information_schema.tables" is not in the introspected schema, which
	// the raw path does not consult.
	results, err := e.Run(context.Background(), execSchema(),
		&Request{SQL: "SELECT count(*) AS n FROM information_schema.tables"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

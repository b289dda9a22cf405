package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemap/internal/database"
	"schemap/internal/errs"
)

func TestBuild_Postgres(t *testing.T) {
	req := &Request{
		Table:   "orders",
		Columns: []string{"id", "total"},
		Filters: []Filter{
			{Column: "status", Op: "=", Value: "open"},
			{Column: "total", Op: ">", Value: 100},
		},
		OrderBy: []Order{{Column: "created_at", Desc: true}},
		Limit:   20,
		Offset:  40,
	}

	sql, args, err := Build(req, database.DialectPostgres)
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "id", "total" FROM "orders" WHERE "status" = $1 AND "total" > $2 ORDER BY "created_at" DESC LIMIT $3 OFFSET $4`,
		sql)
	assert.Equal(t, []any{"open", 100, 20, 40}, args)
}

func TestBuild_MySQLPlaceholders(t *testing.T) {
	req := &Request{
		Table:   "orders",
		Filters: []Filter{{Column: "status", Op: "=", Value: "open"}},
		Limit:   10,
	}

	sql, args, err := Build(req, database.DialectMySQL)
	require.NoError(t, err)

	assert.Equal(t, `SELECT * FROM "orders" WHERE "status" = ? LIMIT ?`, sql)
	assert.Len(t, args, 2)
}

func TestBuild_RejectsUnknownOperator(t *testing.T) {
	req := &Request{
		Table:   "orders",
		Filters: []Filter{{Column: "id", Op: "; DROP TABLE", Value: 1}},
	}

	_, _, err := Build(req, database.DialectPostgres)
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestBuild_OperatorCaseInsensitive(t *testing.T) {
	req := &Request{
		Table:   "orders",
		Filters: []Filter{{Column: "name", Op: "like", Value: "a%"}},
		Limit:   5,
	}

	sql, _, err := Build(req, database.DialectPostgres)
	require.NoError(t, err)
	assert.Contains(t, sql, `"name" LIKE $1`)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"orders"`, quoteIdent("orders"))
	assert.Equal(t, `"evil""name"`, quoteIdent(`evil"name`))
}

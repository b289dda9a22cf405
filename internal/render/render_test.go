package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemap/internal/catalog"
	"schemap/internal/database"
	"schemap/internal/graph"
)

func renderSchema() *catalog.SchemaInfo {
	def := "now()"
	return &catalog.SchemaInfo{
		Tables: []catalog.Table{
			{
				Name:   "orders",
				Schema: "public",
				Columns: []catalog.Column{
					{Name: "id", DataType: "integer", IsPrimaryKey: true},
					{Name: "customer_id", DataType: "integer", IsForeignKey: true},
					{Name: "created_at", DataType: "timestamp with time zone", Nullable: true, Default: &def},
				},
				PrimaryKey: []string{"id"},
			},
			{
				Name:   "customers",
				Schema: "public",
				Columns: []catalog.Column{
					{Name: "id", DataType: "integer", IsPrimaryKey: true},
				},
				PrimaryKey: []string{"id"},
			},
		},
		ForeignKeys: []catalog.ForeignKey{
			{
				Name:       "orders_customer_fk",
				FromTable:  "orders",
				FromColumn: "customer_id",
				ToTable:    "customers",
				ToColumn:   "id",
			},
			{
				Name:       "dep_orders_customers",
				FromTable:  "orders",
				FromColumn: "id",
				ToTable:    "customers",
				ToColumn:   "id",
				Inferred:   true,
			},
		},
	}
}

func TestDDL_Postgres(t *testing.T) {
	out := DDL(renderSchema(), database.DialectPostgres)

	assert.Contains(t, out, `CREATE TABLE "public"."orders" (`)
	assert.Contains(t, out, `"id" integer NOT NULL,`)
	assert.Contains(t, out, `"created_at" timestamp with time zone DEFAULT now(),`)
	assert.Contains(t, out, `PRIMARY KEY ("id")`)
	assert.Contains(t, out, `ALTER TABLE "orders" ADD CONSTRAINT "orders_customer_fk" FOREIGN KEY ("customer_id") REFERENCES "customers" ("id");`)
}

func TestDDL_TablesInStableOrder(t *testing.T) {
	out := DDL(renderSchema(), database.DialectPostgres)
	customers := strings.Index(out, `"customers"`)
	orders := strings.Index(out, `CREATE TABLE "public"."orders"`)
	require.GreaterOrEqual(t, customers, 0)
	require.GreaterOrEqual(t, orders, 0)
	assert.Less(t, customers, orders, "tables sort by qualified name")
}

func TestDDL_EmitsViews(t *testing.T) {
	schema := renderSchema()
	schema.Views = []catalog.View{
		{Name: "v_open", Schema: "public", Definition: "SELECT id FROM orders WHERE status = 'open'"},
	}

	out := DDL(schema, database.DialectPostgres)
	assert.Contains(t, out, "CREATE VIEW \"public\".\"v_open\" AS\nSELECT id FROM orders WHERE status = 'open';")
}

func TestDDL_SkipsInferredDependencies(t *testing.T) {
	out := DDL(renderSchema(), database.DialectPostgres)
	assert.NotContains(t, out, "dep_orders_customers")
}

func TestDDL_MySQLQuoting(t *testing.T) {
	out := DDL(renderSchema(), database.DialectMySQL)
	assert.Contains(t, out, "CREATE TABLE `public`.`orders` (")
	assert.NotContains(t, out, `"orders"`)
}

func TestDDL_Deterministic(t *testing.T) {
	assert.Equal(t,
		DDL(renderSchema(), database.DialectPostgres),
		DDL(renderSchema(), database.DialectPostgres))
}

func TestMermaid(t *testing.T) {
	g := &graph.GraphData{
		Nodes: []graph.Node{
			{
				ID:   "public.orders",
				Kind: graph.NodeTable,
				Columns: []catalog.Column{
					{Name: "id", DataType: "integer", IsPrimaryKey: true},
					{Name: "customer_id", DataType: "integer", IsForeignKey: true},
				},
			},
			{
				ID:      "public.v_summary",
				Kind:    graph.NodeView,
				Columns: []catalog.Column{{Name: "total", DataType: "numeric"}},
			},
		},
		Edges: []graph.Edge{
			{
				ID:         "fk:orders_customer_fk:customer_id->id",
				From:       "public.orders",
				To:         "public.customers",
				FromColumn: "customer_id",
				ToColumn:   "id",
				Kind:       graph.EdgeDeclaredFK,
				Confidence: graph.ConfidenceExact,
			},
			{
				ID:         "vj:public.v_summary->public.orders:order_id->id",
				From:       "public.v_summary",
				To:         "public.orders",
				FromColumn: "order_id",
				ToColumn:   "id",
				Kind:       graph.EdgeViewJoin,
				Confidence: graph.ConfidenceExact,
			},
		},
	}

	out := Mermaid(g)

	assert.True(t, strings.HasPrefix(out, "erDiagram\n"))
	assert.Contains(t, out, "public_orders {")
	assert.Contains(t, out, "integer id PK")
	assert.Contains(t, out, "integer customer_id FK")
	assert.Contains(t, out, `public_customers ||--o{ public_orders : "customer_id -> id"`)
	assert.Contains(t, out, `public_orders ||..o{ public_v_summary : "order_id -> id"`,
		"view-derived edges are dotted")
	assert.NotContains(t, out, "public.orders", "dots are not valid in entity names")
}

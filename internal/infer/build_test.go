package infer

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemap/internal/catalog"
	"schemap/internal/graph"
	"schemap/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "error", Format: "json", Output: io.Discard})
}

func cols(names ...string) []catalog.Column {
	out := make([]catalog.Column, len(names))
	for i, n := range names {
		out[i] = catalog.Column{Name: n, DataType: "integer"}
	}
	return out
}

// ordersSchema is the reference fixture: orders(id PK, customer_id FK),
// customers(id PK, name), and a summary view joining the two.
func ordersSchema() *catalog.SchemaInfo {
	return &catalog.SchemaInfo{
		Tables: []catalog.Table{
			{
				Name:       "orders",
				Columns:    cols("id", "customer_id"),
				PrimaryKey: []string{"id"},
			},
			{
				Name:       "customers",
				Columns:    cols("id", "name"),
				PrimaryKey: []string{"id"},
			},
		},
		Views: []catalog.View{
			{
				Name:       "v_orders_summary",
				Definition: `SELECT o.id, o.customer_id FROM orders o JOIN customers c ON o.customer_id = c.id`,
				Columns:    cols("id", "customer_id"),
			},
		},
		ForeignKeys: []catalog.ForeignKey{
			{Name: "orders_customer_id_fkey", FromTable: "orders", FromColumn: "customer_id", ToTable: "customers", ToColumn: "id"},
		},
	}
}

func TestBuild_OrdersScenario(t *testing.T) {
	g := Build(ordersSchema(), testLogger())

	require.Len(t, g.Nodes, 3)
	assert.NotNil(t, g.Node("orders"))
	assert.NotNil(t, g.Node("customers"))

	view := g.Node("v_orders_summary")
	require.NotNil(t, view)
	assert.Equal(t, graph.NodeView, view.Kind)

	require.Len(t, g.Edges, 2)

	fk := g.Edges[0]
	assert.Equal(t, graph.EdgeDeclaredFK, fk.Kind)
	assert.Equal(t, "orders", fk.From)
	assert.Equal(t, "customers", fk.To)
	assert.Equal(t, "customer_id", fk.FromColumn)
	assert.Equal(t, "id", fk.ToColumn)
	assert.Equal(t, graph.ConfidenceExact, fk.Confidence)

	vj := g.Edges[1]
	assert.Equal(t, graph.EdgeViewJoin, vj.Kind)
	assert.Equal(t, "v_orders_summary", vj.From)
	assert.Equal(t, "customers", vj.To)
	assert.Equal(t, "customer_id", vj.FromColumn)
	assert.Equal(t, "id", vj.ToColumn)
}

func TestBuild_CompositeFKFansOut(t *testing.T) {
	schema := &catalog.SchemaInfo{
		Tables: []catalog.Table{
			{Name: "order_items", Columns: cols("order_id", "line_no", "qty")},
			{Name: "shipments", Columns: cols("order_id", "line_no", "status")},
		},
		ForeignKeys: []catalog.ForeignKey{
			{Name: "fk_items_shipments", FromTable: "order_items", FromColumn: "order_id", ToTable: "shipments", ToColumn: "order_id"},
			{Name: "fk_items_shipments", FromTable: "order_items", FromColumn: "line_no", ToTable: "shipments", ToColumn: "line_no"},
		},
	}

	g := Build(schema, testLogger())

	require.Len(t, g.Edges, 2, "a 2-column constraint must produce exactly 2 edges")
	assert.NotEqual(t, g.Edges[0].ID, g.Edges[1].ID)
	for _, e := range g.Edges {
		assert.Contains(t, e.ID, "fk_items_shipments")
	}
}

func TestBuild_EdgesReferenceKnownNodes(t *testing.T) {
	schemas := []*catalog.SchemaInfo{
		ordersSchema(),
		functionSchema(),
		{
			Tables: []catalog.Table{{Name: "a", Columns: cols("id")}},
			ForeignKeys: []catalog.ForeignKey{
				{Name: "fk_dangling", FromTable: "a", FromColumn: "id", ToTable: "ghost", ToColumn: "id"},
			},
		},
	}

	for _, schema := range schemas {
		g := Build(schema, testLogger())
		ids := make(map[string]bool, len(g.Nodes))
		for _, n := range g.Nodes {
			ids[n.ID] = true
		}
		for _, e := range g.Edges {
			assert.True(t, ids[e.From], "edge %s: unknown source %s", e.ID, e.From)
			assert.True(t, ids[e.To], "edge %s: unknown target %s", e.ID, e.To)
		}
	}
}

func TestBuild_DanglingForeignKeySkipped(t *testing.T) {
	schema := &catalog.SchemaInfo{
		Tables: []catalog.Table{{Name: "orders", Columns: cols("id", "customer_id")}},
		ForeignKeys: []catalog.ForeignKey{
			{Name: "fk_ghost", FromTable: "orders", FromColumn: "customer_id", ToTable: "customers", ToColumn: "id"},
		},
	}

	var g *graph.GraphData
	require.NotPanics(t, func() { g = Build(schema, testLogger()) })
	assert.Empty(t, g.Edges)
	assert.Len(t, g.Nodes, 1)
}

func TestBuild_JoinTakesPrecedenceOverFunction(t *testing.T) {
	schema := &catalog.SchemaInfo{
		Tables: []catalog.Table{
			{Name: "s", Columns: cols("t_id", "amount")},
			{Name: "t", Columns: cols("id", "label")},
		},
		Views: []catalog.View{
			{
				Name:       "v_sum",
				Definition: `SELECT s.t_id AS t_id, fn(t.id) AS label FROM s JOIN t ON t.id = v_sum.t_id`,
				Columns:    cols("t_id", "label"),
			},
		},
	}

	g := Build(schema, testLogger())

	require.Len(t, g.Edges, 1, "function inference must skip the pair the JOIN already produced")
	e := g.Edges[0]
	assert.Equal(t, graph.EdgeViewJoin, e.Kind)
	assert.Equal(t, "v_sum", e.From)
	assert.Equal(t, "t", e.To)
	assert.Equal(t, "t_id", e.FromColumn)
	assert.Equal(t, "id", e.ToColumn)
}

// functionSchema exercises the function-argument source: a view calling
// dbo.fnLookup(dbo.Product.code) with no JOIN to Product at all.
func functionSchema() *catalog.SchemaInfo {
	return &catalog.SchemaInfo{
		Tables: []catalog.Table{
			{Name: "Orders", Schema: "dbo", Columns: cols("id", "product_no")},
			{Name: "Product", Schema: "dbo", Columns: cols("code", "descr")},
		},
		Views: []catalog.View{
			{
				Name:       "v_order_lookup",
				Schema:     "dbo",
				Definition: `SELECT o.id, dbo.fnLookup(dbo.Product.code) AS descr FROM dbo.Orders o`,
				Columns:    cols("id", "descr"),
			},
		},
	}
}

func TestBuild_FunctionArgumentEdge(t *testing.T) {
	g := Build(functionSchema(), testLogger())

	require.Len(t, g.Edges, 1)
	e := g.Edges[0]
	assert.Equal(t, graph.EdgeViewFunction, e.Kind)
	assert.Equal(t, "dbo.v_order_lookup", e.From)
	assert.Equal(t, "dbo.Product", e.To)
	assert.Equal(t, "code", e.ToColumn)
	// No result column matches "code", so the first one is used.
	assert.Equal(t, "id", e.FromColumn)
	assert.Equal(t, graph.ConfidenceHeuristic, e.Confidence)
}

func TestBuild_FunctionEdgeNameMatchIsExact(t *testing.T) {
	schema := functionSchema()
	schema.Views[0].Columns = cols("id", "code")

	g := Build(schema, testLogger())

	require.Len(t, g.Edges, 1)
	assert.Equal(t, "code", g.Edges[0].FromColumn)
	assert.Equal(t, graph.ConfidenceExact, g.Edges[0].Confidence)
}

func TestBuild_Idempotent(t *testing.T) {
	schema := ordersSchema()

	first := Build(schema, testLogger())
	second := Build(schema, testLogger())

	assert.Equal(t, first.Nodes, second.Nodes)
	assert.Equal(t, first.Edges, second.Edges)
}

func TestBuild_InferredDependencyIsHeuristic(t *testing.T) {
	schema := ordersSchema()
	schema.ForeignKeys = append(schema.ForeignKeys, catalog.ForeignKey{
		Name:       "dep_v_orders_summary_customers",
		FromTable:  "v_orders_summary",
		FromColumn: "customer_id",
		ToTable:    "customers",
		ToColumn:   "id",
		Inferred:   true,
	})

	g := Build(schema, testLogger())

	var found bool
	for _, e := range g.Edges {
		if e.ID == "fk:dep_v_orders_summary_customers:customer_id->id" {
			found = true
			assert.Equal(t, graph.ConfidenceHeuristic, e.Confidence)
		}
	}
	assert.True(t, found)
}

func TestBuild_MalformedViewIsIsolated(t *testing.T) {
	schema := ordersSchema()
	schema.Views = append([]catalog.View{
		{Name: "v_broken", Definition: "((((NOT EVEN SQL", Columns: nil},
	}, schema.Views...)

	var g *graph.GraphData
	require.NotPanics(t, func() { g = Build(schema, testLogger()) })

	// The broken view contributes nothing; the good view still yields its edge.
	require.Len(t, g.Edges, 2)
	assert.Equal(t, graph.EdgeViewJoin, g.Edges[1].Kind)
}

func TestBuild_NamespaceSuffixResolution(t *testing.T) {
	schema := &catalog.SchemaInfo{
		Tables: []catalog.Table{
			{Name: "orders", Schema: "sales", Columns: cols("id", "customer_id")},
			{Name: "customers", Schema: "sales", Columns: cols("id")},
		},
		ForeignKeys: []catalog.ForeignKey{
			// Constraint endpoints carry bare names; nodes are namespaced.
			{Name: "fk_oc", FromTable: "orders", FromColumn: "customer_id", ToTable: "customers", ToColumn: "id"},
		},
	}

	g := Build(schema, testLogger())

	require.Len(t, g.Edges, 1)
	assert.Equal(t, "sales.orders", g.Edges[0].From)
	assert.Equal(t, "sales.customers", g.Edges[0].To)
}

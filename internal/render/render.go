// Package render turns an introspected schema and its relationship graph
// into exportable text formats: SQL DDL and Mermaid ER diagrams. Output is
// deterministic for a given input so exports diff cleanly.
package render

import (
	"fmt"
	"sort"
	"strings"

	"schemap/internal/catalog"
	"schemap/internal/database"
	"schemap/internal/graph"
)

// DDL renders CREATE TABLE and CREATE VIEW statements for everything in
// schema, in stable name order. Declared foreign keys are emitted as ALTER
// TABLE statements at the end so the object order never matters; inferred
// dependencies are not real constraints and are skipped.
func DDL(schema *catalog.SchemaInfo, d database.Dialect) string {
	var sb strings.Builder
	quoteIdent := quoter(d)
	qualIdent := func(schema, name string) string {
		if schema != "" {
			return quoteIdent(schema) + "." + quoteIdent(name)
		}
		return quoteIdent(name)
	}

	tables := make([]catalog.Table, len(schema.Tables))
	copy(tables, schema.Tables)
	sort.Slice(tables, func(i, j int) bool { return tables[i].ID() < tables[j].ID() })

	for ti := range tables {
		t := &tables[ti]
		if ti > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("CREATE TABLE ")
		sb.WriteString(qualIdent(t.Schema, t.Name))
		sb.WriteString(" (\n")

		for i, c := range t.Columns {
			sb.WriteString("    ")
			sb.WriteString(quoteIdent(c.Name))
			sb.WriteString(" ")
			sb.WriteString(c.DataType)
			if !c.Nullable {
				sb.WriteString(" NOT NULL")
			}
			if c.Default != nil {
				sb.WriteString(" DEFAULT ")
				sb.WriteString(*c.Default)
			}
			if i < len(t.Columns)-1 || len(t.PrimaryKey) > 0 {
				sb.WriteString(",")
			}
			sb.WriteString("\n")
		}

		if len(t.PrimaryKey) > 0 {
			quoted := make([]string, len(t.PrimaryKey))
			for i, c := range t.PrimaryKey {
				quoted[i] = quoteIdent(c)
			}
			fmt.Fprintf(&sb, "    PRIMARY KEY (%s)\n", strings.Join(quoted, ", "))
		}
		sb.WriteString(");\n")
	}

	views := make([]catalog.View, len(schema.Views))
	copy(views, schema.Views)
	sort.Slice(views, func(i, j int) bool { return views[i].ID() < views[j].ID() })

	for _, v := range views {
		if v.Definition == "" {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString("CREATE VIEW ")
		sb.WriteString(qualIdent(v.Schema, v.Name))
		sb.WriteString(" AS\n")
		sb.WriteString(v.Definition)
		if !strings.HasSuffix(strings.TrimSpace(v.Definition), ";") {
			sb.WriteString(";")
		}
		sb.WriteString("\n")
	}

	fks := declaredKeys(schema)
	if len(fks) > 0 {
		sb.WriteString("\n")
	}
	for _, fk := range fks {
		fmt.Fprintf(&sb, "ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s);\n",
			quoteIdent(fk.FromTable), quoteIdent(fk.Name),
			quoteIdent(fk.FromColumn),
			quoteIdent(fk.ToTable), quoteIdent(fk.ToColumn))
	}

	return sb.String()
}

// declaredKeys returns the non-inferred foreign keys in stable order.
func declaredKeys(schema *catalog.SchemaInfo) []catalog.ForeignKey {
	var fks []catalog.ForeignKey
	for _, fk := range schema.ForeignKeys {
		if !fk.Inferred {
			fks = append(fks, fk)
		}
	}
	sort.Slice(fks, func(i, j int) bool {
		if fks[i].Name != fks[j].Name {
			return fks[i].Name < fks[j].Name
		}
		return fks[i].FromColumn < fks[j].FromColumn
	})
	return fks
}

// Mermaid renders the relationship graph as a Mermaid erDiagram. Declared
// foreign keys draw solid lines; view-derived relationships draw dotted
// lines. Edge labels carry the column pair.
func Mermaid(g *graph.GraphData) string {
	var sb strings.Builder
	sb.WriteString("erDiagram\n")

	nodes := make([]graph.Node, len(g.Nodes))
	copy(nodes, g.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	for _, n := range nodes {
		fmt.Fprintf(&sb, "    %s {\n", mermaidName(n.ID))
		for _, c := range n.Columns {
			marks := ""
			if c.IsPrimaryKey {
				marks = " PK"
			} else if c.IsForeignKey {
				marks = " FK"
			}
			fmt.Fprintf(&sb, "        %s %s%s\n", mermaidType(c.DataType), c.Name, marks)
		}
		sb.WriteString("    }\n")
	}

	sb.WriteString("\n")
	for _, e := range g.Edges {
		line := "||--o{"
		if e.Kind != graph.EdgeDeclaredFK {
			line = "||..o{"
		}
		fmt.Fprintf(&sb, "    %s %s %s : \"%s -> %s\"\n",
			mermaidName(e.To), line, mermaidName(e.From),
			e.FromColumn, e.ToColumn)
	}

	return sb.String()
}

// quoter returns the identifier quoting function for the dialect:
// backticks for MySQL, double quotes otherwise.
func quoter(d database.Dialect) func(string) string {
	if d == database.DialectMySQL {
		return func(name string) string {
			return "`" + strings.ReplaceAll(name, "`", "``") + "`"
		}
	}
	return func(name string) string {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// mermaidName makes a node id safe for Mermaid, which rejects dots in
// entity names.
func mermaidName(id string) string {
	return strings.ReplaceAll(id, ".", "_")
}

// mermaidType strips spaces from SQL type names; Mermaid attribute types
// must be single tokens.
func mermaidType(dataType string) string {
	if dataType == "" {
		return "unknown"
	}
	return strings.ReplaceAll(dataType, " ", "_")
}

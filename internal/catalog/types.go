// Package catalog normalizes two incompatible engine catalogs (PostgreSQL
// and MySQL) into one engine-agnostic schema model, and assembles the raw
// records into the SchemaInfo consumed by the inference pipeline.
package catalog

// Column describes a single column of a table or view.
// Immutable once extracted.
type Column struct {
	Name         string  `json:"name"`
	DataType     string  `json:"data_type"`
	Nullable     bool    `json:"nullable"`
	IsPrimaryKey bool    `json:"is_primary_key"`
	IsForeignKey bool    `json:"is_foreign_key"`
	Default      *string `json:"default,omitempty"`
	Comment      string  `json:"comment,omitempty"`
}

// Index describes a table index with its ordered column list.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// Table describes a base table. Identity is (Schema, Name).
type Table struct {
	Name       string   `json:"name"`
	Schema     string   `json:"schema,omitempty"`
	Columns    []Column `json:"columns"`
	PrimaryKey []string `json:"primary_key"`
	Indexes    []Index  `json:"indexes"`
}

// ID returns the table's qualified identity, "schema.name" when namespaced.
func (t *Table) ID() string {
	if t.Schema != "" {
		return t.Schema + "." + t.Name
	}
	return t.Name
}

// Column returns the named column, or nil when absent.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// ForeignKey is one column pair of a declared or inferred relationship.
// A declared constraint spanning N columns is represented as N records
// sharing the same Name, each independently identifiable by its column pair.
type ForeignKey struct {
	Name       string `json:"name"`
	FromTable  string `json:"from_table"`
	FromColumn string `json:"from_column"`
	ToTable    string `json:"to_table"`
	ToColumn   string `json:"to_column"`

	// Inferred marks records produced by the deep dependency extractor,
	// whose column pairs are heuristic rather than declared.
	Inferred bool `json:"inferred,omitempty"`
}

// View describes a view: its raw SQL definition plus result columns.
// Result columns are never primary or foreign keys.
type View struct {
	Name       string   `json:"name"`
	Schema     string   `json:"schema,omitempty"`
	Definition string   `json:"definition"`
	Columns    []Column `json:"columns"`
}

// ID returns the view's qualified identity, "schema.name" when namespaced.
func (v *View) ID() string {
	if v.Schema != "" {
		return v.Schema + "." + v.Name
	}
	return v.Name
}

// Trigger describes a table trigger. Carried for display only; the
// inference pipeline ignores triggers.
type Trigger struct {
	Name   string `json:"name"`
	Table  string `json:"table"`
	Event  string `json:"event"`  // INSERT, UPDATE, DELETE
	Timing string `json:"timing"` // BEFORE, AFTER, INSTEAD OF
}

// SchemaInfo is the aggregate produced by one introspection pass and the
// sole input to the inference pipeline. ForeignKeys holds the flattened
// per-column-pair list (declared constraints plus deep dependencies).
//
// Every ForeignKey endpoint should resolve to a table in the same
// SchemaInfo, but consumers must tolerate dangling references: catalog
// permissions can produce partial data.
type SchemaInfo struct {
	Tables      []Table      `json:"tables"`
	Views       []View       `json:"views"`
	Triggers    []Trigger    `json:"triggers"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

// Table returns the table with the given bare or qualified name, or nil
// when absent.
func (s *SchemaInfo) Table(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name || s.Tables[i].ID() == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// View returns the view with the given bare or qualified name, or nil
// when absent.
func (s *SchemaInfo) View(name string) *View {
	for i := range s.Views {
		if s.Views[i].Name == name || s.Views[i].ID() == name {
			return &s.Views[i]
		}
	}
	return nil
}

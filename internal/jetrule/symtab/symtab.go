// Package symtab assigns the monotonic integer keys that every resource
// (declared, lookup-table-derived, or variable-occurrence) carries in the
// final IR, and tracks which file originated each declaration (spec.md
// section 4.4). Keys are always equal to the resource's index in the table,
// which is what lets invariant 1 in spec.md section 8 hold for free.
package symtab

import "github.com/USImagingNetwork/jetstore/internal/jetrule/jrerr"

// Resource is one row of the compilation's flat resource array. The
// IsBinded/VarPos/IsAntecedent/Vertex fields are only meaningful for
// Type=="var" rows, one of which is emitted per variable occurrence
// (spec.md section 4.6).
type Resource struct {
	ID         string
	Type       string
	Value      string
	Key        int
	SourceFile string

	IsBinded     bool
	VarPos       int
	IsAntecedent bool
	Vertex       int
}

// LookupTable is a `lookup_table` declaration, its key/columns resolved to
// the Resource rows symtab created for each column.
type LookupTable struct {
	Name       string
	Table      string
	Key        []string
	Columns    []string
	Resources  []string // resource ids, one per column, same order as Columns
	SourceFile string
}

// Table is the symbol table accumulated across every file of a compilation.
type Table struct {
	Resources    []*Resource
	LookupTables []*LookupTable
	Directives   map[string]string

	byID map[string]*Resource
}

// New returns an empty Table.
func New() *Table {
	return &Table{Directives: map[string]string{}, byID: map[string]*Resource{}}
}

// Lookup returns the declared resource or lookup-table resource with the
// given id, if any.
func (t *Table) Lookup(id string) (*Resource, bool) {
	r, ok := t.byID[id]
	return r, ok
}

func (t *Table) append(id, typ, value, file string) *Resource {
	r := &Resource{ID: id, Type: typ, Value: value, Key: len(t.Resources), SourceFile: file}
	t.Resources = append(t.Resources, r)
	return r
}

// Declare adds an explicitly-declared resource (typed literal, resource, or
// volatile_resource form). It is an error to declare the same id twice.
func (t *Table) Declare(id, typ, value, file string, errs *jrerr.List) *Resource {
	if existing, ok := t.byID[id]; ok {
		errs.Push(jrerr.SyntaxError{
			File: file, Line: 0, Col: 0,
			Message: "resource '" + id + "' already declared in file '" + existing.SourceFile + "'",
		})
		return existing
	}
	r := t.append(id, typ, value, file)
	t.byID[id] = r
	return r
}

// DeclareLookupTable assigns resource rows for the table itself and for
// each of its columns, then records the LookupTable entry. Column resource
// ids must be unique per-table; duplicates are reported as errors and
// skipped.
func (t *Table) DeclareLookupTable(name, table string, key, columns, resources []string, file string, errs *jrerr.List) *LookupTable {
	t.Declare(name, "resource", name, file, errs)

	seen := map[string]bool{}
	for i, col := range columns {
		if seen[col] {
			errs.Push(jrerr.SyntaxError{
				File: file, Line: 0, Col: 0,
				Message: "lookup_table '" + name + "': duplicate column '" + col + "'",
			})
			continue
		}
		seen[col] = true
		t.Declare(col, "resource", resources[i], file, errs)
	}

	lt := &LookupTable{Name: name, Table: table, Key: key, Columns: columns, Resources: resources, SourceFile: file}
	t.LookupTables = append(t.LookupTables, lt)
	return lt
}

// AddVar appends a type:"var" resource row for a single variable occurrence
// and returns it; variable ids are never entered into the by-id index since
// the same source variable legitimately produces many rows. isBinded is
// false only for the first occurrence of a variable within its rule;
// varPos is the triple slot of that first occurrence; vertex is the
// antecedent ordinal the occurrence appears in (for a consequent, the
// rule's terminal antecedent vertex).
func (t *Table) AddVar(id, file string, isBinded bool, varPos int, isAntecedent bool, vertex int) *Resource {
	r := t.append(id, "var", id, file)
	r.IsBinded, r.VarPos, r.IsAntecedent, r.Vertex = isBinded, varPos, isAntecedent, vertex
	return r
}

// AddKeyword appends a resource row for a literal value (boolean, string,
// or number) used directly in a triple or filter position. Each occurrence
// gets its own row, the same as a variable occurrence, since keywords carry
// no prior declaration to dedupe against.
func (t *Table) AddKeyword(value string, inline bool, file string) *Resource {
	return t.append(value, "keyword", value, file)
}

// AddVolatile auto-declares a compiler-extracted volatile resource the
// first time bare name is seen, and returns the existing entry on every
// subsequent use so all occurrences share one key (spec.md section 4.6).
func (t *Table) AddVolatile(bareName, qualifiedValue, file string) *Resource {
	if existing, ok := t.byID[bareName]; ok {
		return existing
	}
	r := t.append(bareName, "volatile_resource", qualifiedValue, file)
	t.byID[bareName] = r
	return r
}

// Package ir assembles the two serializable artifacts a compilation
// produces: the rule IR (jetRules) and the Rete IR (jetReteNodes),
// per spec.md section 4.8.
package ir

import (
	"github.com/USImagingNetwork/jetstore/internal/jetrule/ast"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/normalize"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/rete"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/symtab"
)

// Resource is the JSON view of a symtab.Resource.
type Resource struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Value          string `json:"value"`
	Key            int    `json:"key"`
	SourceFileName string `json:"source_file_name"`
	IsBinded       bool   `json:"is_binded,omitempty"`
	VarPos         int    `json:"var_pos,omitempty"`
	IsAntecedent   bool   `json:"is_antecedent,omitempty"`
	Vertex         int    `json:"vertex,omitempty"`
}

func resourceView(r *symtab.Resource) Resource {
	v := Resource{
		ID: r.ID, Type: r.Type, Value: r.Value, Key: r.Key, SourceFileName: r.SourceFile,
	}
	if r.Type == "var" {
		v.IsBinded, v.VarPos, v.IsAntecedent, v.Vertex = r.IsBinded, r.VarPos, r.IsAntecedent, r.Vertex
	}
	return v
}

// LookupTable is the JSON view of a symtab.LookupTable.
type LookupTable struct {
	Name           string   `json:"name"`
	Table          string   `json:"table"`
	Key            []string `json:"key"`
	Columns        []string `json:"columns"`
	Resources      []string `json:"resources"`
	SourceFileName string   `json:"source_file_name"`
}

func lookupTableView(lt *symtab.LookupTable) LookupTable {
	return LookupTable{
		Name: lt.Name, Table: lt.Table, Key: lt.Key, Columns: lt.Columns,
		Resources: lt.Resources, SourceFileName: lt.SourceFile,
	}
}

// Elem is the JSON view of a single normalized triple/filter-leaf position.
type Elem struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Value string `json:"value,omitempty"`
	Key   int    `json:"key"`
}

func elemView(e normalize.NormalizedElem) Elem {
	switch e.Kind {
	case ast.ElemVar:
		return Elem{Type: "var", ID: "?" + e.Text, Key: e.Key}
	case ast.ElemIdent:
		return Elem{Type: "identifier", Value: e.Text, Key: e.Key}
	default: // ast.ElemKeyword
		return Elem{Type: "keyword", Value: e.Text, Key: e.Key}
	}
}

// Triple is the JSON view of a normalize.NormalizedTriple.
type Triple struct {
	Subject   Elem `json:"subject"`
	Predicate Elem `json:"predicate"`
	Object    Elem `json:"object"`
}

func tripleView(tr normalize.NormalizedTriple) Triple {
	return Triple{Subject: elemView(tr.Subject), Predicate: elemView(tr.Predicate), Object: elemView(tr.Object)}
}

// Antecedent is the JSON view of a normalize.Antecedent.
type Antecedent struct {
	Type            string           `json:"type"`
	IsNot           bool             `json:"isNot,omitempty"`
	Triple          Triple           `json:"triple"`
	Filter          *rete.FilterView `json:"filter,omitempty"`
	NormalizedLabel string           `json:"normalizedLabel"`
	Label           string           `json:"label"`
	Vertex          int              `json:"vertex"`
}

func antecedentView(a normalize.Antecedent) Antecedent {
	return Antecedent{
		Type: "antecedent", IsNot: a.IsNot, Triple: tripleView(a.Triple),
		Filter:          rete.BuildFilterView(a.Filter),
		NormalizedLabel: a.NormalizedLabel, Label: a.Label, Vertex: a.Vertex,
	}
}

// Consequent is the JSON view of a normalize.Consequent.
type Consequent struct {
	Type            string `json:"type"`
	Triple          Triple `json:"triple"`
	NormalizedLabel string `json:"normalizedLabel"`
	Label           string `json:"label"`
	Vertex          int    `json:"vertex"`
}

func consequentView(c normalize.Consequent) Consequent {
	return Consequent{
		Type: "consequent", Triple: tripleView(c.Triple),
		NormalizedLabel: c.NormalizedLabel, Label: c.Label, Vertex: c.Vertex,
	}
}

// Rule is the JSON view of a normalize.Rule.
type Rule struct {
	Name            string            `json:"name"`
	Properties      map[string]string `json:"properties"`
	PropertyOrder   []string          `json:"-"`
	Optimization    bool              `json:"optimization"`
	Salience        int               `json:"salience"`
	Antecedents     []Antecedent      `json:"antecedents"`
	Consequents     []Consequent      `json:"consequents"`
	AuthoredLabel   string            `json:"authoredLabel"`
	NormalizedLabel string            `json:"normalizedLabel"`
	Label           string            `json:"label"`
	SourceFileName  string            `json:"source_file_name"`
}

func ruleView(r *normalize.Rule) Rule {
	v := Rule{
		Name: r.Name, Properties: r.Properties, PropertyOrder: r.PropertyOrder,
		Optimization: r.Optimization, Salience: r.Salience,
		AuthoredLabel: r.AuthoredLabel, NormalizedLabel: r.NormalizedLabel, Label: r.Label,
		SourceFileName: r.SourceFile,
	}
	for _, a := range r.Antecedents {
		v.Antecedents = append(v.Antecedents, antecedentView(a))
	}
	for _, c := range r.Consequents {
		v.Consequents = append(v.Consequents, consequentView(c))
	}
	return v
}

// RuleIR is the top-level `jetRules` view: resources, lookup tables, rules,
// and the import map, independent of the Rete network.
type RuleIR struct {
	Resources    []Resource             `json:"resources"`
	LookupTables []LookupTable          `json:"lookup_tables"`
	JetRules     []Rule                 `json:"jet_rules"`
	Imports      map[string][]string    `json:"imports"`
}

// ReteIR is the top-level `jetReteNodes` view: the Rete network plus the
// resources/lookup tables it indexes into and the file provenance of the
// compilation that produced it.
type ReteIR struct {
	MainRuleFileName    string            `json:"main_rule_file_name"`
	SupportRuleFileNames []string         `json:"support_rule_file_names"`
	Resources           []Resource        `json:"resources"`
	LookupTables        []LookupTable     `json:"lookup_tables"`
	ReteNodes           []*rete.Node      `json:"rete_nodes"`
}

// BuildRuleIR assembles the jetRules view.
func BuildRuleIR(tab *symtab.Table, rules []*normalize.Rule, imports map[string][]string) RuleIR {
	out := RuleIR{Imports: imports}
	for _, r := range tab.Resources {
		out.Resources = append(out.Resources, resourceView(r))
	}
	for _, lt := range tab.LookupTables {
		out.LookupTables = append(out.LookupTables, lookupTableView(lt))
	}
	for _, r := range rules {
		out.JetRules = append(out.JetRules, ruleView(r))
	}
	return out
}

// BuildReteIR assembles the jetReteNodes view. mainFile is the root file of
// the compilation; supportFiles are every other file it transitively
// imported, in traversal order.
func BuildReteIR(mainFile string, supportFiles []string, tab *symtab.Table, nodes []*rete.Node) ReteIR {
	out := ReteIR{MainRuleFileName: mainFile, SupportRuleFileNames: supportFiles, ReteNodes: nodes}
	for _, r := range tab.Resources {
		out.Resources = append(out.Resources, resourceView(r))
	}
	for _, lt := range tab.LookupTables {
		out.LookupTables = append(out.LookupTables, lookupTableView(lt))
	}
	return out
}

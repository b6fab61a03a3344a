package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/USImagingNetwork/jetstore/internal/jetrule/ast"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/jrerr"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/normalize"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/rete"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/symtab"
)

func TestBuildRuleIR_CarriesResourcesLookupTablesRulesAndImports(t *testing.T) {
	tab := symtab.New()
	errs := &jrerr.List{}
	tab.Declare("acme:p", "resource", "acme:p", "a.jr", errs)
	tab.Declare("acme:v", "resource", "acme:v", "a.jr", errs)
	tab.DeclareLookupTable("acme:lt", "t1", []string{"k"}, []string{"c1"}, []string{"acme:c1"}, "a.jr", errs)
	subjectRes := tab.AddVar("?x1", "a.jr", false, 0, true, 1)
	require.Equal(t, 0, errs.Len())

	rules := []*normalize.Rule{
		{
			Name: "R1", Properties: map[string]string{"salience": "10"},
			PropertyOrder: []string{"salience"}, Salience: 10,
			Antecedents: []normalize.Antecedent{
				{
					Vertex: 1, NormalizedLabel: "(?x1 acme:p acme:v)", Label: "(?clm01 acme:p acme:v)",
					Triple: normalize.NormalizedTriple{
						Subject:   normalize.NormalizedElem{Kind: ast.ElemVar, Text: "x1", Key: subjectRes.Key},
						Predicate: normalize.NormalizedElem{Kind: ast.ElemIdent, Text: "acme:p", Key: 0},
						Object:    normalize.NormalizedElem{Kind: ast.ElemIdent, Text: "acme:v", Key: 1},
					},
				},
			},
			Consequents: []normalize.Consequent{
				{
					Vertex: 1, NormalizedLabel: "(?x1 acme:p acme:v)", Label: "(?clm01 acme:p acme:v)",
					Triple: normalize.NormalizedTriple{
						Subject:   normalize.NormalizedElem{Kind: ast.ElemVar, Text: "x1", Key: subjectRes.Key},
						Predicate: normalize.NormalizedElem{Kind: ast.ElemIdent, Text: "acme:p", Key: 0},
						Object:    normalize.NormalizedElem{Kind: ast.ElemIdent, Text: "acme:v", Key: 1},
					},
				},
			},
			AuthoredLabel: "R1-authored", NormalizedLabel: "R1-normalized", Label: "R1-label",
			SourceFile: "a.jr",
		},
	}
	imports := map[string][]string{"a.jr": {"b.jr"}}

	out := BuildRuleIR(tab, rules, imports)

	require.Len(t, out.Resources, 5) // acme:p, acme:v, lookup table name, column, var occurrence
	assert.Equal(t, "acme:p", out.Resources[0].ID)
	assert.Equal(t, 0, out.Resources[0].Key)

	require.Len(t, out.LookupTables, 1)
	assert.Equal(t, "acme:lt", out.LookupTables[0].Name)
	assert.Equal(t, []string{"c1"}, out.LookupTables[0].Columns)

	require.Len(t, out.JetRules, 1)
	rule := out.JetRules[0]
	assert.Equal(t, "R1", rule.Name)
	assert.Equal(t, 10, rule.Salience)
	assert.Equal(t, "R1-normalized", rule.NormalizedLabel)

	require.Len(t, rule.Antecedents, 1)
	ant := rule.Antecedents[0]
	assert.Equal(t, "antecedent", ant.Type)
	assert.Equal(t, "(?x1 acme:p acme:v)", ant.NormalizedLabel)
	assert.Equal(t, "?x1", ant.Triple.Subject.ID)
	assert.Equal(t, "identifier", ant.Triple.Predicate.Type)
	assert.Equal(t, "acme:p", ant.Triple.Predicate.Value)

	require.Len(t, rule.Consequents, 1)
	cons := rule.Consequents[0]
	assert.Equal(t, "consequent", cons.Type)
	assert.Equal(t, "?x1", cons.Triple.Subject.ID)

	assert.Equal(t, imports, out.Imports)
}

func TestResourceView_OnlyPopulatesVarFieldsForVarType(t *testing.T) {
	tab := symtab.New()
	errs := &jrerr.List{}
	tab.Declare("acme:v", "resource", "acme:v", "a.jr", errs)
	varRes := tab.AddVar("?x1", "a.jr", false, 2, true, 3)

	declaredView := resourceView(tab.Resources[0])
	assert.False(t, declaredView.IsBinded)
	assert.Equal(t, 0, declaredView.Vertex)

	varView := resourceView(varRes)
	assert.Equal(t, "?x1", varView.ID, "var resource ids carry the '?' prefix, matching the rest of the IR")
	assert.Equal(t, 2, varView.VarPos)
	assert.True(t, varView.IsAntecedent)
	assert.Equal(t, 3, varView.Vertex)
}

func TestAntecedentView_FilterIsRenderedFromTheNormalizedFilterTree(t *testing.T) {
	a := normalize.Antecedent{
		Vertex: 1, NormalizedLabel: "(?x1 acme:p acme:v).[?x1]",
		Triple: normalize.NormalizedTriple{
			Subject:   normalize.NormalizedElem{Kind: ast.ElemVar, Text: "x1", Key: 5},
			Predicate: normalize.NormalizedElem{Kind: ast.ElemIdent, Text: "acme:p", Key: 0},
			Object:    normalize.NormalizedElem{Kind: ast.ElemIdent, Text: "acme:v", Key: 1},
		},
		Filter: &normalize.NormalizedFilter{
			Kind: ast.FilterLeaf,
			Leaf: normalize.NormalizedElem{Kind: ast.ElemVar, Text: "x1", Key: 5},
		},
	}

	v := antecedentView(a)

	require.NotNil(t, v.Filter)
	assert.Equal(t, "leaf", v.Filter.Kind)
	require.NotNil(t, v.Filter.Key)
	assert.Equal(t, 5, *v.Filter.Key)
}

func TestBuildReteIR_CarriesProvenanceAndNodes(t *testing.T) {
	tab := symtab.New()
	errs := &jrerr.List{}
	tab.Declare("acme:v", "resource", "acme:v", "a.jr", errs)
	require.Equal(t, 0, errs.Len())

	nodes := []*rete.Node{{Vertex: 1, Rules: []string{"R1"}}}

	out := BuildReteIR("root.jr", []string{"child.jr"}, tab, nodes)

	assert.Equal(t, "root.jr", out.MainRuleFileName)
	assert.Equal(t, []string{"child.jr"}, out.SupportRuleFileNames)
	require.Len(t, out.Resources, 1)
	assert.Equal(t, nodes, out.ReteNodes)
}

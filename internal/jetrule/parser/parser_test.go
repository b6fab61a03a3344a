package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/USImagingNetwork/jetstore/internal/jetrule/ast"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/jrerr"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/lexer"
)

func parse(t *testing.T, src string) (*ast.File, *jrerr.List) {
	t.Helper()
	errs := &jrerr.List{}
	toks := lexer.Lex("a.jr", src, errs)
	f := Parse("a.jr", toks, errs)
	return f, errs
}

func TestParse_ResourceDeclaration(t *testing.T) {
	f, errs := parse(t, `resource acme:v = "hello";`)

	require.Equal(t, 0, errs.Len())
	require.Len(t, f.Decls, 1)
	assert.Equal(t, ast.DeclResource, f.Decls[0].Kind)
	assert.Equal(t, "acme:v", f.Decls[0].Resource.ID)
	assert.Equal(t, "resource", f.Decls[0].Resource.Type)
	assert.Equal(t, "hello", f.Decls[0].Resource.Value)
}

func TestParse_TypedResourceDeclaration(t *testing.T) {
	f, errs := parse(t, `int acme:n = 5;`)

	require.Equal(t, 0, errs.Len())
	require.Len(t, f.Decls, 1)
	assert.Equal(t, "int", f.Decls[0].Resource.Type)
	assert.Equal(t, "5", f.Decls[0].Resource.Value)
}

func TestParse_ImportDeclaration(t *testing.T) {
	f, errs := parse(t, `import "other.jr";`)

	require.Equal(t, 0, errs.Len())
	require.Len(t, f.Imports(), 1)
	assert.Equal(t, "other.jr", f.Imports()[0].Name)
}

func TestParse_DirectiveDeclaration(t *testing.T) {
	f, errs := parse(t, `@JetCompilerDirective extract_resources_from_rules = "true";`)

	require.Equal(t, 0, errs.Len())
	require.Len(t, f.Decls, 1)
	assert.Equal(t, ast.DeclDirective, f.Decls[0].Kind)
	assert.Equal(t, "extract_resources_from_rules", f.Decls[0].Directive.Key)
	assert.Equal(t, "true", f.Decls[0].Directive.Value)
}

func TestParse_LookupTableDeclaration(t *testing.T) {
	f, errs := parse(t, `lookup_table acme:lt = {table_name = "t1", key = [k1], columns = [c1, c2]};`)

	require.Equal(t, 0, errs.Len())
	require.Len(t, f.Decls, 1)
	lt := f.Decls[0].LookupTable
	assert.Equal(t, "acme:lt", lt.Name)
	assert.Equal(t, "t1", lt.Table)
	assert.Equal(t, []string{"k1"}, lt.Key)
	assert.Equal(t, []string{"c1", "c2"}, lt.Columns)
}

func TestParse_RuleWithPropertiesAntecedentsAndConsequents(t *testing.T) {
	f, errs := parse(t, `[Rule1, salience=10, optimization=true]: (?x acme:p acme:v) -> (?x acme:q acme:v);`)

	require.Equal(t, 0, errs.Len())
	require.Len(t, f.Decls, 1)
	r := f.Decls[0].Rule
	assert.Equal(t, "Rule1", r.Name)
	assert.Equal(t, []string{"salience", "optimization"}, r.PropertyOrder)
	assert.Equal(t, "10", r.Properties["salience"])
	require.Len(t, r.Antecedents, 1)
	assert.Equal(t, "(?x acme:p acme:v)", r.Antecedents[0].Label)
	require.Len(t, r.Consequents, 1)
	assert.Equal(t, "(?x acme:q acme:v)", r.Consequents[0].Label)
}

func TestParse_NotAntecedentIsFlagged(t *testing.T) {
	f, errs := parse(t, `[R1]: not(?x acme:p acme:v) -> (?x acme:q acme:v);`)

	require.Equal(t, 0, errs.Len())
	r := f.Decls[0].Rule
	assert.True(t, r.Antecedents[0].IsNot)
	assert.Equal(t, "not(?x acme:p acme:v)", r.Antecedents[0].Label)
}

func TestParse_MultipleAntecedentsAndConsequentsChainWithDot(t *testing.T) {
	f, errs := parse(t, `[R1]: (?x acme:p acme:v).(?y acme:p acme:v) -> (?x acme:q acme:v).(?y acme:q acme:v);`)

	require.Equal(t, 0, errs.Len())
	r := f.Decls[0].Rule
	assert.Len(t, r.Antecedents, 2)
	assert.Len(t, r.Consequents, 2)
}

func TestParse_FilterPrecedenceClimbingGroupsAndBeforeOr(t *testing.T) {
	// "a or b and c" must parse as "a or (b and c)" since 'and' binds tighter
	// than 'or' (filterBp: Or=1, And=2).
	f, errs := parse(t, `[R1]: (?x acme:p acme:v).[a or b and c] -> (?x acme:q acme:v);`)

	require.Equal(t, 0, errs.Len())
	filter := f.Decls[0].Rule.Antecedents[0].Filter
	require.NotNil(t, filter)
	require.Equal(t, ast.FilterBinary, filter.Kind)
	assert.Equal(t, ast.OpOr, filter.Op)
	assert.Equal(t, ast.FilterLeaf, filter.Lhs.Kind)
	assert.Equal(t, "a", filter.Lhs.Leaf.Text)
	require.Equal(t, ast.FilterBinary, filter.Rhs.Kind)
	assert.Equal(t, ast.OpAnd, filter.Rhs.Op)
}

func TestParse_FilterParenthesesOverridePrecedence(t *testing.T) {
	// "(a or b) and c" forces the 'or' to bind first despite its lower
	// default precedence.
	f, errs := parse(t, `[R1]: (?x acme:p acme:v).[(a or b) and c] -> (?x acme:q acme:v);`)

	require.Equal(t, 0, errs.Len())
	filter := f.Decls[0].Rule.Antecedents[0].Filter
	require.Equal(t, ast.FilterBinary, filter.Kind)
	assert.Equal(t, ast.OpAnd, filter.Op)
	require.Equal(t, ast.FilterBinary, filter.Lhs.Kind)
	assert.Equal(t, ast.OpOr, filter.Lhs.Op)
}

func TestParse_MismatchedInputIsReportedAndParsingResyncsToNextDecl(t *testing.T) {
	f, errs := parse(t, `resource acme:v = ;
resource acme:w = "ok";`)

	// The failed resource decl stops right before its own trailing ';',
	// which the outer loop then reports a second time (extraneous input)
	// since a bare ';' can't start any declaration; only then does it
	// resync onto the next 'resource' keyword.
	require.Equal(t, 2, errs.Len())
	assert.Contains(t, errs.Strings()[0], "expecting literal")

	require.Len(t, f.Decls, 1)
	assert.Equal(t, "acme:w", f.Decls[0].Resource.ID)
}

func TestParse_MultipleSyntaxErrorsAreAllReportedFromOneFile(t *testing.T) {
	f, errs := parse(t, `resource acme:v = ;
resource acme:w = ;
resource acme:z = "ok";`)

	require.Equal(t, 4, errs.Len())
	require.Len(t, f.Decls, 1)
	assert.Equal(t, "acme:z", f.Decls[0].Resource.ID)
}

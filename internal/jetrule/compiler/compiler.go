// Package compiler drives the full pipeline over a source or file set and
// assembles the resulting Context: InputProvider -> Lexer/Parser -> Import
// Driver -> Symbol Table -> Semantic Validator -> Normalizer -> Rete
// Builder -> Context (spec.md section 2). The two entry points are
// CompileJetRule (single in-memory blob) and CompileJetRuleFile
// (multi-file via an importer.Provider), matching spec.md section 6.
package compiler

import (
	"log"

	"github.com/google/uuid"

	"github.com/USImagingNetwork/jetstore/internal/jetrule/ast"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/directive"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/importer"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/ir"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/normalize"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/rete"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/symtab"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/validate"
)

// inlineFileName is the synthetic root file name CompileJetRule attributes
// diagnostics to, since a single in-memory blob has no file of its own.
const inlineFileName = "main.jr"

// Context is the accumulated result of one compilation. Its lifetime spans
// a single Compile call; it is never reused across calls (spec.md section 5).
type Context struct {
	// RunID identifies this compilation in logs and diagnostics; it has no
	// bearing on the emitted IR and is never compared across runs.
	RunID        string
	Resources    []ir.Resource
	LookupTables []ir.LookupTable
	JetRules     []ir.Rule
	ReteNodes    []*rete.Node
	Imports      map[string][]string
	Errors       []string
	ERROR        bool

	ruleIR ir.RuleIR
	reteIR ir.ReteIR
}

// RuleIR returns the jetRules view: resources, lookup tables, rules, and
// the import map.
func (c *Context) RuleIR() ir.RuleIR {
	return c.ruleIR
}

// ReteIR returns the jetReteNodes view: the Rete network plus the
// resources/lookup tables it indexes into.
func (c *Context) ReteIR() ir.ReteIR {
	return c.reteIR
}

// CompileJetRule compiles a single in-memory source blob with no imports.
func CompileJetRule(text string) *Context {
	return compile(inlineFileName, importer.MapProvider{inlineFileName: text}, nil, nil)
}

// CompileJetRuleFile compiles name and everything it transitively imports,
// resolving import names to source text through provider.
func CompileJetRuleFile(name string, provider importer.Provider) *Context {
	return compile(name, provider, nil, nil)
}

// CompileJetRuleFileWithLogger is CompileJetRuleFile with a diagnostic
// logger attached to each pipeline phase transition; logger may be nil.
func CompileJetRuleFileWithLogger(name string, provider importer.Provider, logger *log.Logger) *Context {
	return compile(name, provider, logger, nil)
}

// CompileJetRuleFileWithOptions is CompileJetRuleFile with directiveOverrides
// forced into scope ahead of whatever the source declares, for batch callers
// (cmd/jetrulec) driven by a run config rather than source edits.
func CompileJetRuleFileWithOptions(name string, provider importer.Provider, logger *log.Logger, directiveOverrides map[string]string) *Context {
	return compile(name, provider, logger, directiveOverrides)
}

func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}

func compile(root string, provider importer.Provider, logger *log.Logger, directiveOverrides map[string]string) *Context {
	runID := uuid.NewString()
	logf(logger, "[%s] importing from root %q", runID, root)
	imp := importer.Run(root, provider)

	tab := symtab.New()
	var rawRules []*ast.Rule
	var directives []ast.Directive

	for _, file := range imp.Order {
		f := imp.Files[file]
		if f == nil {
			continue
		}
		for _, d := range f.Decls {
			switch d.Kind {
			case ast.DeclResource:
				tab.Declare(d.Resource.ID, d.Resource.Type, d.Resource.Value, d.Resource.File, imp.Errs)
			case ast.DeclLookupTable:
				tab.DeclareLookupTable(
					d.LookupTable.Name, d.LookupTable.Table, d.LookupTable.Key,
					d.LookupTable.Columns, d.LookupTable.Resources, d.LookupTable.File, imp.Errs,
				)
			case ast.DeclDirective:
				directives = append(directives, *d.Directive)
			case ast.DeclRule:
				rawRules = append(rawRules, d.Rule)
			case ast.DeclImport:
				// already recorded in imp.Imports; nothing further to do.
			}
		}
	}

	dirs := directive.Collect(directives)
	if len(directiveOverrides) > 0 {
		dirs = dirs.WithOverrides(directiveOverrides)
	}
	logf(logger, "[%s] validating %d rules", runID, len(rawRules))

	var normalized []*normalize.Rule
	var valid []*normalize.Rule
	for _, r := range rawRules {
		ok := validate.Rule(r, tab, imp.Errs)
		nr := normalize.Normalize(r, tab, dirs)
		normalized = append(normalized, nr)
		if ok {
			valid = append(valid, nr)
		}
	}

	logf(logger, "[%s] building rete network from %d valid rules", runID, len(valid))
	nodes := rete.Build(valid, tab)

	var supportFiles []string
	if len(imp.Order) > 0 {
		supportFiles = append(supportFiles, imp.Order[1:]...)
	}

	ruleIR := ir.BuildRuleIR(tab, normalized, imp.Imports)
	reteIR := ir.BuildReteIR(imp.Root, supportFiles, tab, nodes)

	ctx := &Context{
		RunID:     runID,
		Resources: ruleIR.Resources, LookupTables: ruleIR.LookupTables,
		JetRules: ruleIR.JetRules, ReteNodes: nodes,
		Imports: imp.Imports,
		Errors:  imp.Errs.Strings(),
		ERROR:   imp.Errs.Len() > 0,
		ruleIR:  ruleIR, reteIR: reteIR,
	}

	logf(logger, "[%s] compile of %q complete: ERROR=%v, %d resources, %d rete nodes", runID, root, ctx.ERROR, len(ctx.Resources), len(ctx.ReteNodes))
	return ctx
}

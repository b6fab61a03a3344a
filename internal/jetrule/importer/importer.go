// Package importer resolves JetRule's `import "name";` directives into a
// single combined module: it walks the import graph depth-first, parsing
// each file at most once, and owns the compilation's error list so that
// ordering stays deterministic (spec.md sections 4.1, 4.3, 9).
package importer

import (
	"github.com/USImagingNetwork/jetstore/internal/jetrule/ast"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/jrerr"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/lexer"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/parser"
)

// Provider resolves an import name to its source text. It is the only way
// the compiler observes source text; it never touches the filesystem
// directly (spec.md section 4.1).
type Provider interface {
	Fetch(name string) (text string, ok bool)
}

// MapProvider is a Provider backed by an in-memory name->text map, the
// simplest possible Provider and the one compileJetRuleFile's tests use.
type MapProvider map[string]string

func (m MapProvider) Fetch(name string) (string, bool) {
	t, ok := m[name]
	return t, ok
}

// Result is the combined output of walking the import graph from a root
// file: every parsed file, the import adjacency recorded in source order,
// and the accumulated errors in deterministic (child-before-parent) order.
type Result struct {
	Root    string
	Files   map[string]*ast.File
	Order   []string // files in depth-first visitation order, root first
	Imports map[string][]string
	Errs    *jrerr.List
}

// Run walks the import graph starting at root, using provider to resolve
// import names to source text.
func Run(root string, provider Provider) *Result {
	d := &driver{
		provider: provider,
		visited:  map[string]bool{},
		files:    map[string]*ast.File{},
		imports:  map[string][]string{},
		errs:     &jrerr.List{},
	}
	d.visited[root] = true
	d.process(root, 0, 0, "")
	return &Result{
		Root: root, Files: d.files, Order: d.order,
		Imports: d.imports, Errs: d.errs,
	}
}

type driver struct {
	provider Provider
	visited  map[string]bool
	files    map[string]*ast.File
	order    []string
	imports  map[string][]string
	errs     *jrerr.List
}

// process parses file and recursively resolves its imports before
// recording file's own parse errors, so a child file's diagnostics always
// precede the diagnostics of whatever file imported it. importerLine/Col and
// importerFile identify the `import "file";` statement that led here, used
// only to report a missing file.
func (d *driver) process(file string, importerLine, importerCol int, importerFile string) {
	text, ok := d.provider.Fetch(file)
	if !ok {
		if importerFile == "" {
			d.errs.Push(jrerr.SyntaxError{File: file, Line: 0, Col: 0, Message: "file not found"})
		} else {
			d.errs.Push(jrerr.SyntaxError{
				File: importerFile, Line: importerLine, Col: importerCol,
				Message: "cannot resolve import '" + file + "'",
			})
		}
		return
	}

	local := &jrerr.List{}
	toks := lexer.Lex(file, text, local)
	astFile := parser.Parse(file, toks, local)

	d.order = append(d.order, file)
	d.files[file] = astFile

	var children []string
	for _, im := range astFile.Imports() {
		children = append(children, im.Name)
	}
	d.imports[file] = children

	for _, im := range astFile.Imports() {
		if d.visited[im.Name] {
			continue
		}
		d.visited[im.Name] = true
		d.process(im.Name, im.Line, im.Col, file)
	}

	d.errs.Extend(local)
}

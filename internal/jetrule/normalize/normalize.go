// Package normalize renames rule-local variables canonically, folds
// adjacent filters, extracts compiler-directive resources out of rule
// bodies, and computes the canonical labels the Rete builder keys its
// shared-prefix comparisons on (spec.md section 4.6).
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/USImagingNetwork/jetstore/internal/jetrule/ast"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/directive"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/symtab"
)

// NormalizedElem is a single occurrence of a variable, identifier, or
// keyword inside a normalized triple or filter, carrying the resource key
// assigned to that specific occurrence.
type NormalizedElem struct {
	Kind ast.ElemKind
	Text string // canonical var name without '?', or the ident/keyword text
	Key  int
}

// NormalizedTriple is a Triple whose elements have been resolved to keys.
type NormalizedTriple struct {
	Subject, Predicate, Object NormalizedElem
}

// NormalizedFilter mirrors ast.Filter but over NormalizedElem leaves.
type NormalizedFilter struct {
	Kind ast.FilterKind
	Leaf NormalizedElem
	Op   ast.BinOp
	Lhs  *NormalizedFilter
	Rhs  *NormalizedFilter
}

// Antecedent is a normalized antecedent, vertex is 1-based within the rule.
type Antecedent struct {
	IsNot           bool
	Triple          NormalizedTriple
	Filter          *NormalizedFilter
	Label           string
	NormalizedLabel string
	Vertex          int
}

// Consequent is a normalized consequent; Vertex equals the rule's terminal
// antecedent vertex.
type Consequent struct {
	Triple          NormalizedTriple
	Label           string
	NormalizedLabel string
	Vertex          int
}

// Rule is the fully-normalized form of an ast.Rule.
type Rule struct {
	Name          string
	Properties    map[string]string
	PropertyOrder []string
	Optimization  bool
	Salience      int
	Antecedents   []Antecedent
	Consequents   []Consequent
	AuthoredLabel string
	NormalizedLabel string
	Label         string
	SourceFile    string
}

var extractionPattern = regexp.MustCompile(`^_[0-9]+:(.+)$`)

// Normalize converts a single raw rule into its canonical form, allocating
// variable- and keyword-occurrence resource rows in tab as it goes, and
// auto-declaring directive-extracted volatile resources when dirs enables
// that behavior.
func Normalize(r *ast.Rule, tab *symtab.Table, dirs directive.Set) *Rule {
	out := &Rule{
		Name: r.Name, Properties: r.Properties, PropertyOrder: r.PropertyOrder,
		Optimization: optimizeOf(r), Salience: salienceOf(r), SourceFile: r.File,
	}

	// Filter folding operates on the raw (pre-rename) variable text, since
	// it compares source variable identity, then renaming is applied
	// uniformly across the (possibly folded) tree afterward.
	foldAdjacentFilters(r, out.Optimization)

	n := &renamer{firstSeen: map[string]int{}, firstPos: map[int]int{}}

	vertex := 0
	for _, ant := range r.Antecedents {
		vertex++
		na := Antecedent{IsNot: ant.IsNot, Vertex: vertex}
		na.Triple = n.triple(ant.Triple, tab, dirs, r.File, vertex, true)
		if ant.Filter != nil {
			na.Filter = n.filter(ant.Filter, tab, dirs, r.File, vertex, true)
		}
		na.Label = ant.Label
		na.NormalizedLabel = renderAntecedent(na)
		out.Antecedents = append(out.Antecedents, na)
	}

	for _, con := range r.Consequents {
		nc := Consequent{Vertex: vertex}
		nc.Triple = n.triple(con.Triple, tab, dirs, r.File, vertex, false)
		nc.Label = con.Label
		nc.NormalizedLabel = "(" + elemStr(nc.Triple.Subject) + " " + elemStr(nc.Triple.Predicate) + " " + elemStr(nc.Triple.Object) + ")"
		out.Consequents = append(out.Consequents, nc)
	}

	out.AuthoredLabel = authoredLabel(r)
	out.Label = out.AuthoredLabel
	out.NormalizedLabel = wholeRuleLabel(r.Name, out)

	return out
}

func optimizeOf(r *ast.Rule) bool {
	if v, ok := r.Properties["o"]; ok {
		return v == "true"
	}
	if v, ok := r.Properties["optimize"]; ok {
		return v == "true"
	}
	return true
}

func salienceOf(r *ast.Rule) int {
	for _, key := range []string{"s", "salience"} {
		if v, ok := r.Properties[key]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return 100
}

// foldAdjacentFilters implements the single documented fold shape from
// spec.md section 4.6 / scenario S3: when a later antecedent's filter is of
// the form `<v> or <rhs>` and <v> is the variable governing vertex 1's own
// filter, the fold moves <rhs> up into vertex 1 as
// `(vertex1Filter or <rhs>) and <v>`, clearing the later antecedent's
// filter. optimization=false disables folding for the rule.
func foldAdjacentFilters(r *ast.Rule, optimization bool) {
	if !optimization || len(r.Antecedents) == 0 {
		return
	}
	first := &r.Antecedents[0]
	if first.Filter == nil || first.Triple.Subject.Kind != ast.ElemVar {
		return
	}
	governingVar := first.Triple.Subject.Text

	for i := 1; i < len(r.Antecedents); i++ {
		f := r.Antecedents[i].Filter
		if f == nil || f.Kind != ast.FilterBinary || f.Op != ast.OpOr {
			continue
		}
		if f.Lhs.Kind != ast.FilterLeaf || f.Lhs.Leaf.Kind != ast.ElemVar || f.Lhs.Leaf.Text != governingVar {
			continue
		}
		folded := &ast.Filter{
			Kind: ast.FilterBinary, Op: ast.OpAnd,
			Lhs: &ast.Filter{Kind: ast.FilterBinary, Op: ast.OpOr, Lhs: first.Filter, Rhs: f.Rhs},
			Rhs: &ast.Filter{Kind: ast.FilterLeaf, Leaf: ast.Elem{Kind: ast.ElemVar, Text: governingVar}},
		}
		first.Filter = folded
		r.Antecedents[i].Filter = nil
	}
}

type renamer struct {
	firstSeen map[string]int // source var name -> canonical number
	firstPos  map[int]int    // canonical number -> first-bound triple slot
	nextNum   int
}

// canonicalNum returns the canonical number for srcName (assigning the next
// one on first sight), whether this is its first occurrence, and the slot
// its binding occurrence appeared at.
func (n *renamer) canonicalNum(srcName string, pos ast.Pos) (num int, isFirst bool, boundPos int) {
	if existing, ok := n.firstSeen[srcName]; ok {
		return existing, false, n.firstPos[existing]
	}
	n.nextNum++
	n.firstSeen[srcName] = n.nextNum
	n.firstPos[n.nextNum] = int(pos)
	return n.nextNum, true, int(pos)
}

func (n *renamer) triple(tr ast.Triple, tab *symtab.Table, dirs directive.Set, file string, vertex int, isAntecedent bool) NormalizedTriple {
	return NormalizedTriple{
		Subject:   n.elem(tr.Subject, ast.PosSubject, tab, dirs, file, vertex, isAntecedent),
		Predicate: n.elem(tr.Predicate, ast.PosPredicate, tab, dirs, file, vertex, isAntecedent),
		Object:    n.elem(tr.Object, ast.PosObject, tab, dirs, file, vertex, isAntecedent),
	}
}

func (n *renamer) elem(e ast.Elem, pos ast.Pos, tab *symtab.Table, dirs directive.Set, file string, vertex int, isAntecedent bool) NormalizedElem {
	switch e.Kind {
	case ast.ElemVar:
		num, isFirst, boundPos := n.canonicalNum(e.Text, pos)
		canon := fmt.Sprintf("x%d", num)
		// The resource row's id carries the '?' prefix, matching every other
		// var-id surface (labels, beta_relation_vars, beta_var_nodes); canon
		// stays bare since it's what firstSeen/firstPos key internally.
		res := tab.AddVar("?"+canon, file, !isFirst, boundPos, isAntecedent, vertex)
		return NormalizedElem{Kind: ast.ElemVar, Text: canon, Key: res.Key}
	case ast.ElemIdent:
		text := e.Text
		key := -1
		if dirs.ExtractResourcesFromRules() {
			if m := extractionPattern.FindStringSubmatch(e.Text); m != nil {
				bare := m[1]
				if _, found := tab.Lookup(bare); !found {
					res := tab.AddVolatile(bare, e.Text, file)
					text, key = bare, res.Key
					return NormalizedElem{Kind: ast.ElemIdent, Text: text, Key: key}
				}
				res, _ := tab.Lookup(bare)
				if res != nil {
					return NormalizedElem{Kind: ast.ElemIdent, Text: bare, Key: res.Key}
				}
			}
		}
		if res, found := tab.Lookup(text); found {
			key = res.Key
		}
		return NormalizedElem{Kind: ast.ElemIdent, Text: text, Key: key}
	default: // ast.ElemKeyword
		res := tab.AddKeyword(e.Text, true, file)
		return NormalizedElem{Kind: ast.ElemKeyword, Text: e.Text, Key: res.Key}
	}
}

func (n *renamer) filter(f *ast.Filter, tab *symtab.Table, dirs directive.Set, file string, vertex int, isAntecedent bool) *NormalizedFilter {
	if f == nil {
		return nil
	}
	if f.Kind == ast.FilterLeaf {
		return &NormalizedFilter{Kind: ast.FilterLeaf, Leaf: n.elem(f.Leaf, ast.PosObject, tab, dirs, file, vertex, isAntecedent)}
	}
	return &NormalizedFilter{
		Kind: ast.FilterBinary, Op: f.Op,
		Lhs: n.filter(f.Lhs, tab, dirs, file, vertex, isAntecedent),
		Rhs: n.filter(f.Rhs, tab, dirs, file, vertex, isAntecedent),
	}
}

func elemStr(e NormalizedElem) string {
	if e.Kind == ast.ElemVar {
		return "?" + e.Text
	}
	return e.Text
}

func renderFilter(f *NormalizedFilter) string {
	if f == nil {
		return ""
	}
	if f.Kind == ast.FilterLeaf {
		return elemStr(f.Leaf)
	}
	lhs := renderFilter(f.Lhs)
	if f.Lhs.Kind == ast.FilterBinary {
		lhs = "(" + lhs + ")"
	}
	rhs := renderFilter(f.Rhs)
	if f.Rhs.Kind == ast.FilterBinary {
		rhs = "(" + rhs + ")"
	}
	return lhs + " " + string(f.Op) + " " + rhs
}

func renderAntecedent(a Antecedent) string {
	s := "(" + elemStr(a.Triple.Subject) + " " + elemStr(a.Triple.Predicate) + " " + elemStr(a.Triple.Object) + ")"
	if a.IsNot {
		s = "not" + s
	}
	if a.Filter != nil {
		s += ".[" + renderFilter(a.Filter) + "]"
	}
	return s
}

func wholeRuleLabel(name string, r *Rule) string {
	var ants []string
	for _, a := range r.Antecedents {
		ants = append(ants, a.NormalizedLabel)
	}
	var cons []string
	for _, c := range r.Consequents {
		cons = append(cons, c.NormalizedLabel)
	}
	return "[" + name + "]:" + strings.Join(ants, ".") + " -> " + strings.Join(cons, ".") + ";"
}

func authoredLabel(r *ast.Rule) string {
	var ants []string
	for _, a := range r.Antecedents {
		s := a.Label
		if a.Filter != nil {
			s += ".[" + renderASTFilter(a.Filter) + "]"
		}
		ants = append(ants, s)
	}
	var cons []string
	for _, c := range r.Consequents {
		cons = append(cons, c.Label)
	}
	return "[" + r.Name + "]:" + strings.Join(ants, ".") + " -> " + strings.Join(cons, ".") + ";"
}

func renderASTFilter(f *ast.Filter) string {
	if f == nil {
		return ""
	}
	if f.Kind == ast.FilterLeaf {
		if f.Leaf.Kind == ast.ElemVar {
			return "?" + f.Leaf.Text
		}
		return f.Leaf.Text
	}
	lhs := renderASTFilter(f.Lhs)
	if f.Lhs.Kind == ast.FilterBinary {
		lhs = "(" + lhs + ")"
	}
	rhs := renderASTFilter(f.Rhs)
	if f.Rhs.Kind == ast.FilterBinary {
		rhs = "(" + rhs + ")"
	}
	return lhs + " " + string(f.Op) + " " + rhs
}

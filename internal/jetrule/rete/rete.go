// Package rete builds the shared antecedent DAG across a compilation's
// normalized rules: prefix compression, global vertex numbering,
// beta-relation variable propagation, and consequent attachment
// (spec.md section 4.7).
package rete

import (
	"sort"
	"strconv"
	"strings"

	"github.com/USImagingNetwork/jetstore/internal/jetrule/ast"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/normalize"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/symtab"
	"github.com/USImagingNetwork/jetstore/internal/util"
)

// VarDescriptor is one entry of a Node's BetaVarNodes list.
type VarDescriptor struct {
	Type           string `json:"type"`
	ID             string `json:"id"`
	IsBinded       bool   `json:"is_binded"`
	VarPos         int    `json:"var_pos"`
	Vertex         int    `json:"vertex"`
	Key            *int   `json:"key,omitempty"`
	SourceFileName string `json:"source_file_name,omitempty"`
}

// FilterView is the JSON-serializable form of a normalized filter tree: a
// leaf carries the resource key its element resolved to, a binary node
// carries its operator and operand subtrees.
type FilterView struct {
	Kind string      `json:"kind"`
	Key  *int        `json:"key,omitempty"`
	Op   string      `json:"op,omitempty"`
	Lhs  *FilterView `json:"lhs,omitempty"`
	Rhs  *FilterView `json:"rhs,omitempty"`
}

// BuildFilterView is the exported form of filterView, for callers outside
// this package (ir.go's rule-IR antecedent view) that need the same
// leaf/binary rendering of a normalized filter tree.
func BuildFilterView(f *normalize.NormalizedFilter) *FilterView {
	return filterView(f)
}

func filterView(f *normalize.NormalizedFilter) *FilterView {
	if f == nil {
		return nil
	}
	if f.Kind == ast.FilterLeaf {
		key := f.Leaf.Key
		return &FilterView{Kind: "leaf", Key: &key}
	}
	return &FilterView{Kind: "binary", Op: string(f.Op), Lhs: filterView(f.Lhs), Rhs: filterView(f.Rhs)}
}

// Node is one entry of the Rete IR's rete_nodes array. Only the fields
// relevant to Type are populated; see spec.md section 3's three Rete Node
// shapes (head_node, antecedent, consequent).
type Node struct {
	Type             string          `json:"type"`
	Vertex           int             `json:"vertex"`
	ParentVertex     int             `json:"parent_vertex"`
	IsNot            bool            `json:"isNot,omitempty"`
	NormalizedLabel  string          `json:"normalizedLabel,omitempty"`
	Filter           *FilterView     `json:"filter,omitempty"`
	SubjectKey       int             `json:"subject_key,omitempty"`
	PredicateKey     int             `json:"predicate_key,omitempty"`
	ObjectKey        int             `json:"object_key,omitempty"`
	BetaRelationVars []string        `json:"beta_relation_vars,omitempty"`
	PrunedVar        []string        `json:"pruned_var,omitempty"`
	BetaVarNodes     []VarDescriptor `json:"beta_var_nodes,omitempty"`
	ChildrenVertexes []int           `json:"children_vertexes"`
	Rules            []string        `json:"rules,omitempty"`
	Salience         []int           `json:"salience,omitempty"`
	ConsequentSeq        int    `json:"consequent_seq,omitempty"`
	ConsequentForRule    string `json:"consequent_for_rule,omitempty"`
	ConsequentSalience   int    `json:"consequent_salience,omitempty"`

	// newlyBound records, per vertex, the canonical variable names first
	// bound by this antecedent's own triple; used only while building, not
	// serialized.
	newlyBound []string
}

type antKey struct {
	parent          int
	normalizedLabel string
}

type chain struct {
	rule     *normalize.Rule
	vertexes []int
}

// Build constructs the Rete network from rules (already normalized, in
// source order) and the symbol table those rules allocated occurrence rows
// into. Invalid rules must be excluded by the caller before calling Build,
// per spec.md section 7.
func Build(rules []*normalize.Rule, tab *symtab.Table) []*Node {
	head := &Node{Type: "head_node", Vertex: 0, ParentVertex: 0, ChildrenVertexes: []int{}}
	nodeByVertex := map[int]*Node{0: head}
	nodes := []*Node{head}
	nextVertex := 1
	merged := map[antKey]int{}
	childrenOf := map[int][]int{}
	childSeen := map[int]util.KeySet[int]{}

	var chains []chain

	for _, r := range rules {
		parent := 0
		var vs []int
		for _, ant := range r.Antecedents {
			var vertex int
			key := antKey{parent: parent, normalizedLabel: ant.NormalizedLabel}
			existing, ok := merged[key]
			if ok && !ant.IsNot {
				vertex = existing
			} else {
				vertex = nextVertex
				nextVertex++
				node := newAntecedentNode(ant, vertex, parent, tab)
				nodes = append(nodes, node)
				nodeByVertex[vertex] = node
				if !ant.IsNot {
					merged[key] = vertex
				}
			}
			if childSeen[parent] == nil {
				childSeen[parent] = util.NewKeySet[int]()
			}
			if !childSeen[parent].Has(vertex) {
				childSeen[parent].Add(vertex)
				childrenOf[parent] = append(childrenOf[parent], vertex)
			}
			vs = append(vs, vertex)
			parent = vertex
		}
		chains = append(chains, chain{rule: r, vertexes: vs})
	}

	for parent, kids := range childrenOf {
		nodeByVertex[parent].ChildrenVertexes = kids
	}
	for _, n := range nodes {
		if n.ChildrenVertexes == nil {
			n.ChildrenVertexes = []int{}
		}
	}

	attachBetaVars(chains, nodeByVertex)
	attachRulesAndSalience(chains, nodeByVertex)

	for _, c := range chains {
		if len(c.vertexes) == 0 {
			continue
		}
		terminal := c.vertexes[len(c.vertexes)-1]
		for seq, con := range c.rule.Consequents {
			nodes = append(nodes, &Node{
				Type: "consequent", Vertex: terminal,
				NormalizedLabel:      con.NormalizedLabel,
				SubjectKey:           con.Triple.Subject.Key,
				PredicateKey:         con.Triple.Predicate.Key,
				ObjectKey:            con.Triple.Object.Key,
				ConsequentSeq:        seq,
				ConsequentForRule:    c.rule.Name,
				ConsequentSalience:   c.rule.Salience,
				ChildrenVertexes:     []int{},
			})
		}
	}

	return nodes
}

func newAntecedentNode(ant normalize.Antecedent, vertex, parent int, tab *symtab.Table) *Node {
	return &Node{
		Type: "antecedent", Vertex: vertex, ParentVertex: parent,
		IsNot: ant.IsNot, NormalizedLabel: ant.NormalizedLabel,
		Filter:           filterView(ant.Filter),
		SubjectKey:       ant.Triple.Subject.Key,
		PredicateKey:     ant.Triple.Predicate.Key,
		ObjectKey:        ant.Triple.Object.Key,
		ChildrenVertexes: []int{},
		newlyBound:       newlyBoundVars(ant, tab),
	}
}

// newlyBoundVars returns the canonical variable names whose first
// occurrence anywhere in the rule is this antecedent's own triple, in
// triple-slot order.
func newlyBoundVars(ant normalize.Antecedent, tab *symtab.Table) []string {
	var out []string
	seen := map[string]bool{}
	for _, e := range []normalize.NormalizedElem{ant.Triple.Subject, ant.Triple.Predicate, ant.Triple.Object} {
		if e.Key < 0 || e.Key >= len(tab.Resources) {
			continue
		}
		res := tab.Resources[e.Key]
		if res.Type != "var" || seen[e.Text] {
			continue
		}
		seen[e.Text] = true
		if !res.IsBinded {
			out = append(out, e.Text)
		}
	}
	return out
}

// referencedVars returns every canonical variable name mentioned anywhere
// in node's own triple or filter, in first-appearance order.
func referencedVars(ant *normalize.Antecedent) []string {
	var out []string
	seen := map[string]bool{}
	add := func(e normalize.NormalizedElem) {
		if e.Kind != ast.ElemVar || seen[e.Text] {
			return
		}
		seen[e.Text] = true
		out = append(out, e.Text)
	}
	add(ant.Triple.Subject)
	add(ant.Triple.Predicate)
	add(ant.Triple.Object)
	addFilterVars(ant.Filter, add)
	return out
}

func addFilterVars(f *normalize.NormalizedFilter, add func(normalize.NormalizedElem)) {
	if f == nil {
		return
	}
	if f.Kind == ast.FilterLeaf {
		add(f.Leaf)
		return
	}
	addFilterVars(f.Lhs, add)
	addFilterVars(f.Rhs, add)
}

func consequentVars(r *normalize.Rule) []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range r.Consequents {
		for _, e := range []normalize.NormalizedElem{c.Triple.Subject, c.Triple.Predicate, c.Triple.Object} {
			if e.Kind != ast.ElemVar || seen[e.Text] {
				continue
			}
			seen[e.Text] = true
			out = append(out, e.Text)
		}
	}
	return out
}

// attachBetaVars runs the reverse pass described in spec.md section 4.7:
// for each rule chain, the set of variables needed at-or-below a vertex is
// accumulated from the terminal antecedent (seeded with the consequents'
// variables) back up to the head; beta_relation_vars is the intersection
// of that set with the variables bound at-or-above the vertex, pruned_var
// is the remainder of the bound set. A vertex shared by several rules'
// chains accumulates the union of every chain's contribution, since after
// a shared prefix different rules may need different downstream variables.
func attachBetaVars(chains []chain, nodeByVertex map[int]*Node) {
	for _, c := range chains {
		k := len(c.vertexes)
		if k == 0 {
			continue
		}
		ants := c.rule.Antecedents

		usedAtOrBelow := make([]map[string]bool, k)
		running := setOf(consequentVars(c.rule))
		for i := k - 1; i >= 0; i-- {
			running = unionSet(running, setOf(referencedVars(&ants[i])))
			usedAtOrBelow[i] = copySet(running)
		}

		boundSoFar := map[string]bool{}
		for i := 0; i < k; i++ {
			node := nodeByVertex[c.vertexes[i]]
			for _, v := range node.newlyBound {
				boundSoFar[v] = true
			}
			beta := intersectSet(boundSoFar, usedAtOrBelow[i])
			pruned := diffSet(boundSoFar, usedAtOrBelow[i])

			node.BetaRelationVars = mergeSorted(node.BetaRelationVars, sortedVars(beta))
			node.PrunedVar = mergeSorted(node.PrunedVar, sortedVars(pruned))
			for _, d := range buildVarNodes(node, &ants[i], beta) {
				dup := false
				for _, e := range node.BetaVarNodes {
					if e.ID == d.ID {
						dup = true
						break
					}
				}
				if !dup {
					node.BetaVarNodes = append(node.BetaVarNodes, d)
				}
			}
		}
	}
}

func buildVarNodes(node *Node, ant *normalize.Antecedent, beta map[string]bool) []VarDescriptor {
	var out []VarDescriptor
	seen := map[string]bool{}
	newlyHere := setOf(node.newlyBound)
	add := func(e normalize.NormalizedElem) {
		if e.Kind != ast.ElemVar || seen[e.Text] || !beta[e.Text] {
			return
		}
		seen[e.Text] = true
		if newlyHere[e.Text] {
			key := e.Key
			out = append(out, VarDescriptor{Type: "var", ID: "?" + e.Text, IsBinded: false, VarPos: posOf(ant.Triple, e.Text), Vertex: node.Vertex, Key: &key})
		} else {
			out = append(out, VarDescriptor{Type: "var", ID: "?" + e.Text, IsBinded: true, VarPos: posOf(ant.Triple, e.Text), Vertex: node.Vertex})
		}
	}
	add(ant.Triple.Subject)
	add(ant.Triple.Predicate)
	add(ant.Triple.Object)
	addFilterVars(ant.Filter, add)
	return out
}

func posOf(tr normalize.NormalizedTriple, text string) int {
	switch text {
	case tr.Subject.Text:
		if tr.Subject.Kind == ast.ElemVar {
			return 0
		}
	case tr.Predicate.Text:
		if tr.Predicate.Kind == ast.ElemVar {
			return 1
		}
	case tr.Object.Text:
		if tr.Object.Kind == ast.ElemVar {
			return 2
		}
	}
	return 0
}

func attachRulesAndSalience(chains []chain, nodeByVertex map[int]*Node) {
	for _, c := range chains {
		if len(c.vertexes) == 0 {
			continue
		}
		terminal := nodeByVertex[c.vertexes[len(c.vertexes)-1]]
		terminal.Rules = append(terminal.Rules, c.rule.Name)
		terminal.Salience = append(terminal.Salience, c.rule.Salience)
	}
}

func setOf(vs []string) map[string]bool {
	out := map[string]bool{}
	for _, v := range vs {
		out[v] = true
	}
	return out
}

func copySet(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

func unionSet(a, b map[string]bool) map[string]bool {
	out := copySet(a)
	for k := range b {
		out[k] = true
	}
	return out
}

func intersectSet(a, b map[string]bool) map[string]bool {
	out := map[string]bool{}
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

func diffSet(a, b map[string]bool) map[string]bool {
	out := map[string]bool{}
	for k := range a {
		if !b[k] {
			out[k] = true
		}
	}
	return out
}

// sortedVars orders canonical variable names ("x1", "x2", ...) by their
// numeric suffix, which is also their first-occurrence order.
func sortedVars(s map[string]bool) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		return varNum(out[i]) < varNum(out[j])
	})
	for i, v := range out {
		out[i] = "?" + v
	}
	return out
}

func varNum(s string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(s, "x"))
	return n
}

func mergeSorted(existing, fresh []string) []string {
	if len(existing) == 0 {
		return fresh
	}
	seen := setOf(existing)
	out := append([]string{}, existing...)
	for _, v := range fresh {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return varNum(strings.TrimPrefix(out[i], "?")) < varNum(strings.TrimPrefix(out[j], "?"))
	})
	return out
}

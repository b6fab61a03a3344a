// Package validate checks every parsed rule's identifiers against the
// symbol table and rejects structurally malformed rules, per spec.md
// section 4.5. A rule that fails validation is reported but not aborted;
// the caller is told the rule is invalid so later phases can exclude it
// from the Rete build while still compiling every other rule (spec.md
// section 7).
package validate

import (
	"github.com/USImagingNetwork/jetstore/internal/jetrule/ast"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/jrerr"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/symtab"
)

// Rule checks a single rule and reports whether it is valid. Diagnostics are
// pushed to errs regardless of the outcome.
func Rule(r *ast.Rule, tab *symtab.Table, errs *jrerr.List) bool {
	valid := true

	if len(r.Antecedents) == 0 || len(r.Consequents) == 0 {
		errs.Push(jrerr.SemanticError{
			RuleName: r.Name,
			Message:  "a rule must have at least one antecedent and one consequent.",
		})
		valid = false
	}

	for _, ant := range r.Antecedents {
		if !checkTriple(r.Name, ant.Triple, ant.Label, tab, errs) {
			valid = false
		}
		if ant.Filter != nil && !checkFilter(r.Name, ant.Filter, ant.Label, tab, errs) {
			valid = false
		}
	}
	for _, con := range r.Consequents {
		if !checkTriple(r.Name, con.Triple, con.Label, tab, errs) {
			valid = false
		}
	}

	return valid
}

func checkTriple(ruleName string, tr ast.Triple, label string, tab *symtab.Table, errs *jrerr.List) bool {
	ok := true
	for _, elem := range []ast.Elem{tr.Subject, tr.Predicate, tr.Object} {
		if elem.Kind != ast.ElemIdent {
			continue
		}
		if _, found := tab.Lookup(elem.Text); !found {
			errs.Push(jrerr.UndefinedIdentifier(ruleName, elem.Text, label))
			ok = false
		}
	}
	return ok
}

func checkFilter(ruleName string, f *ast.Filter, label string, tab *symtab.Table, errs *jrerr.List) bool {
	if f == nil {
		return true
	}
	if f.Kind == ast.FilterLeaf {
		if f.Leaf.Kind != ast.ElemIdent {
			return true
		}
		if _, found := tab.Lookup(f.Leaf.Text); !found {
			errs.Push(jrerr.UndefinedIdentifier(ruleName, f.Leaf.Text, label))
			return false
		}
		return true
	}
	lok := checkFilter(ruleName, f.Lhs, label, tab, errs)
	rok := checkFilter(ruleName, f.Rhs, label, tab, errs)
	return lok && rok
}

// Package jrerr contains the diagnostics produced by the jetrule compiler:
// syntax errors from the lexer/parser and semantic errors from the
// validator. Both satisfy error and render to the exact message families
// required by spec.md sections 4.2 and 4.5.
package jrerr

import (
	"fmt"
	"strings"
)

// SyntaxError is a lexical or syntactic diagnostic with file/line/column
// provenance, mirroring tunascript's SyntaxError but carrying a source file
// name since jetrule compilations span multiple files.
type SyntaxError struct {
	File    string
	Line    int
	Col     int
	Message string
}

func (se SyntaxError) Error() string {
	return fmt.Sprintf("Error in file '%s' line %d:%d %s", se.File, se.Line, se.Col, se.Message)
}

// SemanticError is a validator diagnostic that references a rule by name
// rather than a source position; spec.md section 4.5's message family omits
// file/line entirely.
type SemanticError struct {
	RuleName string
	Message  string
}

func (se SemanticError) Error() string {
	return fmt.Sprintf("Error rule %s: %s", se.RuleName, se.Message)
}

// NoViableAlternative builds the "no viable alternative at input '<tok>'"
// diagnostic emitted when no production matches the current token at all.
func NoViableAlternative(file string, line, col int, tok string) SyntaxError {
	return SyntaxError{
		File:    file,
		Line:    line,
		Col:     col,
		Message: fmt.Sprintf("no viable alternative at input '%s'", tok),
	}
}

// Mismatched builds the "mismatched input '<tok>' expecting <set>"
// diagnostic. expecting must already be in grammar-declaration order; a
// single-element slice renders as a bare token name rather than a brace set.
func Mismatched(file string, line, col int, tok string, expecting []string) SyntaxError {
	return SyntaxError{
		File:    file,
		Line:    line,
		Col:     col,
		Message: fmt.Sprintf("mismatched input '%s' expecting %s", tok, expectingSet(expecting)),
	}
}

// Extraneous builds the "extraneous input '<tok>' expecting {...}"
// diagnostic emitted when the parser recognizes the input as valid further
// on but must skip a token to resync.
func Extraneous(file string, line, col int, tok string, expecting []string) SyntaxError {
	return SyntaxError{
		File:    file,
		Line:    line,
		Col:     col,
		Message: fmt.Sprintf("extraneous input '%s' expecting %s", tok, expectingSet(expecting)),
	}
}

func expectingSet(expecting []string) string {
	if len(expecting) == 1 {
		return expecting[0]
	}
	return "{" + strings.Join(expecting, ", ") + "}"
}

// UndefinedIdentifier builds the section 4.5 diagnostic for an identifier
// (in any triple slot or filter leaf) that does not resolve to any declared
// resource or lookup table.
func UndefinedIdentifier(ruleName, id, tripleLabel string) SemanticError {
	return SemanticError{
		RuleName: ruleName,
		Message: fmt.Sprintf(
			"Identifier '%s' is not defined in this context '%s', it must be defined.",
			id, tripleLabel,
		),
	}
}

// List is a push-only error sink threaded through every compilation phase so
// that ordering is deterministic and under the driver's control: child-file
// errors are appended before the errors of whatever later parent-file
// content triggered the import.
type List struct {
	errs []error
}

// Push appends err to the list. A nil err is a no-op so call sites can push
// the result of a fallible helper unconditionally.
func (l *List) Push(err error) {
	if err == nil {
		return
	}
	l.errs = append(l.errs, err)
}

// Extend appends every error from other, preserving order.
func (l *List) Extend(other *List) {
	if other == nil {
		return
	}
	l.errs = append(l.errs, other.errs...)
}

// Len reports how many errors have been collected.
func (l *List) Len() int { return len(l.errs) }

// Strings renders every collected error via its Error() method, in
// collection order.
func (l *List) Strings() []string {
	out := make([]string, len(l.errs))
	for i, e := range l.errs {
		out[i] = e.Error()
	}
	return out
}

// Errors returns the raw collected errors, in collection order.
func (l *List) Errors() []error {
	return l.errs
}

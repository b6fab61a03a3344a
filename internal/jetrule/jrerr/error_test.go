package jrerr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMismatched_SingleExpectationHasNoBraces(t *testing.T) {
	err := Mismatched("a.jr", 3, 7, "foo", []string{"identifier"})
	assert.Equal(t, "Error in file 'a.jr' line 3:7 mismatched input 'foo' expecting identifier", err.Error())
}

func TestMismatched_MultipleExpectationsRenderAsBraceSet(t *testing.T) {
	err := Mismatched("a.jr", 3, 7, "foo", []string{"identifier", "'('"})
	assert.Equal(t, "Error in file 'a.jr' line 3:7 mismatched input 'foo' expecting {identifier, '('}", err.Error())
}

func TestUndefinedIdentifier_MessageFormat(t *testing.T) {
	err := UndefinedIdentifier("Rule1", "acme:foo", "(?x acme:foo ?y)")
	assert.Equal(t, "Error rule Rule1: Identifier 'acme:foo' is not defined in this context '(?x acme:foo ?y)', it must be defined.", err.Error())
}

func TestList_PushNilIsNoOp(t *testing.T) {
	l := &List{}
	l.Push(nil)
	assert.Equal(t, 0, l.Len())
}

func TestList_ExtendPreservesOrder(t *testing.T) {
	a := &List{}
	a.Push(UndefinedIdentifier("R1", "x", "l1"))
	b := &List{}
	b.Push(UndefinedIdentifier("R2", "y", "l2"))

	a.Extend(b)

	assert.Equal(t, 2, a.Len())
	assert.Contains(t, a.Strings()[0], "R1")
	assert.Contains(t, a.Strings()[1], "R2")
}

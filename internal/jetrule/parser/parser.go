// Package parser builds a raw ast.File from a token stream by recursive
// descent, in the style of tunascript's hand-written parser.go: no
// generated tables, a cursor over a token slice, and panic-free error
// recovery that resynchronizes at the next declaration-starting token so a
// single file can yield multiple diagnostics (spec.md section 4.2).
package parser

import (
	"github.com/USImagingNetwork/jetstore/internal/jetrule/ast"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/jrerr"
	"github.com/USImagingNetwork/jetstore/internal/jetrule/token"
)

// Parse consumes toks (as produced by lexer.Lex for file) and returns the
// raw ast.File. Syntax errors are pushed to errs; parsing continues past
// each one.
func Parse(file string, toks []token.Token, errs *jrerr.List) *ast.File {
	p := &parser{file: file, toks: toks, errs: errs}
	out := &ast.File{Name: file}

	for !p.at(token.EOF) {
		startPos := p.pos
		d, ok := p.parseDecl()
		if ok {
			out.Decls = append(out.Decls, d)
		}
		if p.pos == startPos {
			// parseDecl made no progress (a production failed before
			// consuming anything); force a resync step so the loop
			// terminates.
			p.resyncToDeclStart()
		}
	}

	return out
}

type parser struct {
	file string
	toks []token.Token
	pos  int
	errs *jrerr.List
}

func (p *parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF sentinel
	}
	return p.toks[p.pos]
}

func (p *parser) at(c token.Class) bool { return p.cur().Class.Equal(c) }

func (p *parser) advance() token.Token {
	t := p.cur()
	if !t.Class.Equal(token.EOF) {
		p.pos++
	}
	return t
}

// expect consumes the current token if it matches want, else records a
// mismatched-input diagnostic naming expectHuman as the sole expectation and
// returns ok=false without consuming.
func (p *parser) expect(want token.Class, expectHuman string) (token.Token, bool) {
	t := p.cur()
	if t.Class.Equal(want) {
		return p.advance(), true
	}
	p.errs.Push(jrerr.Mismatched(p.file, t.Line, t.Col, t.Human(), []string{expectHuman}))
	return token.Token{}, false
}

func declStartHuman() []string {
	out := make([]string, len(token.DeclStartSet))
	for i, c := range token.DeclStartSet {
		out[i] = c.Human
	}
	return out
}

func (p *parser) resyncToDeclStart() {
	for !p.at(token.EOF) {
		cur := p.cur()
		for _, c := range token.DeclStartSet {
			if cur.Class.Equal(c) {
				return
			}
		}
		p.advance()
	}
}

func (p *parser) parseDecl() (ast.Decl, bool) {
	t := p.cur()
	switch t.Class {
	case token.EOF:
		return ast.Decl{}, false
	case token.LBracket:
		r, ok := p.parseRule()
		return ast.Decl{Kind: ast.DeclRule, Rule: r}, ok
	case token.KwDirective:
		d, ok := p.parseDirective()
		return ast.Decl{Kind: ast.DeclDirective, Directive: d}, ok
	case token.KwImport:
		im, ok := p.parseImport()
		return ast.Decl{Kind: ast.DeclImport, Import: im}, ok
	case token.KwResource:
		r, ok := p.parseResource("resource")
		return ast.Decl{Kind: ast.DeclResource, Resource: r}, ok
	case token.KwVolatile:
		r, ok := p.parseResource("volatile_resource")
		return ast.Decl{Kind: ast.DeclResource, Resource: r}, ok
	case token.KwLookup:
		lt, ok := p.parseLookupTable()
		return ast.Decl{Kind: ast.DeclLookupTable, LookupTable: lt}, ok
	case token.KwInt, token.KwUint, token.KwLong, token.KwUlong,
		token.KwDouble, token.KwText, token.KwDate, token.KwDatetime:
		r, ok := p.parseResource(t.Lexeme)
		return ast.Decl{Kind: ast.DeclResource, Resource: r}, ok
	default:
		p.errs.Push(jrerr.Extraneous(p.file, t.Line, t.Col, t.Human(), declStartHuman()))
		p.advance()
		return ast.Decl{}, false
	}
}

func (p *parser) parseDirective() (*ast.Directive, bool) {
	kwTok := p.advance() // consume @JetCompilerDirective
	keyTok, ok := p.expect(token.Ident, "identifier")
	if !ok {
		return nil, false
	}
	if _, ok := p.expect(token.Eq, "'='"); !ok {
		return nil, false
	}
	valTok, ok := p.expect(token.StringLit, "string literal")
	if !ok {
		return nil, false
	}
	if _, ok := p.expect(token.Semi, "';'"); !ok {
		return nil, false
	}
	return &ast.Directive{
		Key: keyTok.Lexeme, Value: valTok.Lexeme,
		File: p.file, Line: kwTok.Line, Col: kwTok.Col,
	}, true
}

func (p *parser) parseImport() (*ast.Import, bool) {
	kwTok := p.advance() // consume 'import'
	nameTok, ok := p.expect(token.StringLit, "string literal")
	if !ok {
		return nil, false
	}
	if _, ok := p.expect(token.Semi, "';'"); !ok {
		return nil, false
	}
	return &ast.Import{Name: nameTok.Lexeme, File: p.file, Line: kwTok.Line, Col: kwTok.Col}, true
}

func (p *parser) parseResource(typeName string) (*ast.ResourceDecl, bool) {
	kwTok := p.advance() // consume type keyword
	idTok, ok := p.expect(token.Ident, "identifier")
	if !ok {
		return nil, false
	}
	if _, ok := p.expect(token.Eq, "'='"); !ok {
		return nil, false
	}
	valTok := p.cur()
	switch valTok.Class {
	case token.StringLit, token.IntLit, token.DoubleLit, token.True, token.False:
		p.advance()
	default:
		p.errs.Push(jrerr.Mismatched(p.file, valTok.Line, valTok.Col, valTok.Human(), []string{"literal"}))
		return nil, false
	}
	if _, ok := p.expect(token.Semi, "';'"); !ok {
		return nil, false
	}
	return &ast.ResourceDecl{
		ID: idTok.Lexeme, Type: typeName, Value: valTok.Lexeme,
		File: p.file, Line: kwTok.Line, Col: kwTok.Col,
	}, true
}

func (p *parser) parseLookupTable() (*ast.LookupTableDecl, bool) {
	kwTok := p.advance() // consume 'lookup_table'
	nameTok, ok := p.expect(token.Ident, "identifier")
	if !ok {
		return nil, false
	}
	if _, ok := p.expect(token.Eq, "'='"); !ok {
		return nil, false
	}
	if _, ok := p.expect(token.LBrace, "'{'"); !ok {
		return nil, false
	}

	lt := &ast.LookupTableDecl{Name: nameTok.Lexeme, File: p.file, Line: kwTok.Line, Col: kwTok.Col}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		keyTok, ok := p.expect(token.Ident, "identifier")
		if !ok {
			return nil, false
		}
		if _, ok := p.expect(token.Eq, "'='"); !ok {
			return nil, false
		}
		switch keyTok.Lexeme {
		case "table_name":
			v, ok := p.expect(token.StringLit, "string literal")
			if !ok {
				return nil, false
			}
			lt.Table = v.Lexeme
		case "key":
			items, ok := p.parseBracketedIdentList()
			if !ok {
				return nil, false
			}
			lt.Key = items
		case "columns":
			items, ok := p.parseBracketedIdentList()
			if !ok {
				return nil, false
			}
			lt.Columns = items
		default:
			// unrecognized lookup_table attribute: consume a single value
			// token so the loop can resynchronize on the next comma.
			p.advance()
		}
		if p.at(token.Comma) {
			p.advance()
		} else {
			break
		}
	}
	if _, ok := p.expect(token.RBrace, "'}'"); !ok {
		return nil, false
	}
	if _, ok := p.expect(token.Semi, "';'"); !ok {
		return nil, false
	}
	lt.Resources = make([]string, len(lt.Columns))
	copy(lt.Resources, lt.Columns)
	return lt, true
}

func (p *parser) parseBracketedIdentList() ([]string, bool) {
	if _, ok := p.expect(token.LBracket, "'['"); !ok {
		return nil, false
	}
	var out []string
	for !p.at(token.RBracket) && !p.at(token.EOF) {
		t, ok := p.expect(token.Ident, "identifier")
		if !ok {
			return nil, false
		}
		out = append(out, t.Lexeme)
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, ok := p.expect(token.RBracket, "']'"); !ok {
		return nil, false
	}
	return out, true
}

func (p *parser) parseRule() (*ast.Rule, bool) {
	lbTok := p.advance() // consume '['
	nameTok, ok := p.expect(token.Ident, "identifier")
	if !ok {
		return nil, false
	}
	r := &ast.Rule{
		Name: nameTok.Lexeme, Properties: map[string]string{},
		File: p.file, Line: lbTok.Line, Col: lbTok.Col,
	}
	for p.at(token.Comma) {
		p.advance()
		keyTok, ok := p.expect(token.Ident, "identifier")
		if !ok {
			return nil, false
		}
		if _, ok := p.expect(token.Eq, "'='"); !ok {
			return nil, false
		}
		valTok := p.cur()
		switch valTok.Class {
		case token.StringLit, token.IntLit, token.DoubleLit, token.True, token.False, token.Ident:
			p.advance()
		default:
			p.errs.Push(jrerr.Mismatched(p.file, valTok.Line, valTok.Col, valTok.Human(), []string{"literal"}))
			return nil, false
		}
		r.PropertyOrder = append(r.PropertyOrder, keyTok.Lexeme)
		r.Properties[keyTok.Lexeme] = valTok.Lexeme
	}
	if _, ok := p.expect(token.RBracket, "']'"); !ok {
		return nil, false
	}
	if _, ok := p.expect(token.Colon, "':'"); !ok {
		return nil, false
	}

	ants, ok := p.parseAntecedentList()
	if !ok {
		return nil, false
	}
	r.Antecedents = ants

	if _, ok := p.expect(token.Arrow, "'->'"); !ok {
		return nil, false
	}

	cons, ok := p.parseConsequentList()
	if !ok {
		return nil, false
	}
	r.Consequents = cons

	if _, ok := p.expect(token.Semi, "';'"); !ok {
		return nil, false
	}

	return r, true
}

func (p *parser) parseAntecedentList() ([]ast.Antecedent, bool) {
	var out []ast.Antecedent
	for {
		ant, ok := p.parseAntecedent()
		if !ok {
			return nil, false
		}
		out = append(out, ant)
		if p.at(token.Dot) {
			p.advance()
			continue
		}
		break
	}
	return out, true
}

func (p *parser) parseAntecedent() (ast.Antecedent, bool) {
	var ant ast.Antecedent
	if p.at(token.Not) {
		p.advance()
		ant.IsNot = true
	}
	startTok := p.cur()
	if _, ok := p.expect(token.LParen, "'('"); !ok {
		return ant, false
	}
	tr, ok := p.parseTriple()
	if !ok {
		return ant, false
	}
	ant.Triple = tr
	if _, ok := p.expect(token.RParen, "')'"); !ok {
		return ant, false
	}
	ant.Label = renderTripleLabel(tr, ant.IsNot)

	if p.at(token.Dot) && p.peekAt(1).Class.Equal(token.LBracket) {
		p.advance() // '.'
		p.advance() // '['
		f, ok := p.parseFilter(0)
		if !ok {
			return ant, false
		}
		ant.Filter = f
		if _, ok := p.expect(token.RBracket, "']'"); !ok {
			return ant, false
		}
	}
	_ = startTok
	return ant, true
}

func (p *parser) parseConsequentList() ([]ast.Consequent, bool) {
	var out []ast.Consequent
	for {
		if _, ok := p.expect(token.LParen, "'('"); !ok {
			return nil, false
		}
		tr, ok := p.parseTriple()
		if !ok {
			return nil, false
		}
		if _, ok := p.expect(token.RParen, "')'"); !ok {
			return nil, false
		}
		out = append(out, ast.Consequent{Triple: tr, Label: renderTripleLabel(tr, false)})
		if p.at(token.Dot) {
			p.advance()
			continue
		}
		break
	}
	return out, true
}

func (p *parser) parseTriple() (ast.Triple, bool) {
	s, ok := p.parseElem()
	if !ok {
		return ast.Triple{}, false
	}
	pr, ok := p.parseElem()
	if !ok {
		return ast.Triple{}, false
	}
	o, ok := p.parseElem()
	if !ok {
		return ast.Triple{}, false
	}
	return ast.Triple{Subject: s, Predicate: pr, Object: o}, true
}

func (p *parser) parseElem() (ast.Elem, bool) {
	t := p.cur()
	switch t.Class {
	case token.Var:
		p.advance()
		return ast.Elem{Kind: ast.ElemVar, Text: t.Lexeme[1:], Line: t.Line, Col: t.Col}, true
	case token.Ident:
		p.advance()
		return ast.Elem{Kind: ast.ElemIdent, Text: t.Lexeme, Line: t.Line, Col: t.Col}, true
	case token.True, token.False, token.StringLit, token.IntLit, token.DoubleLit:
		p.advance()
		return ast.Elem{Kind: ast.ElemKeyword, Text: t.Lexeme, Line: t.Line, Col: t.Col}, true
	default:
		p.errs.Push(jrerr.Mismatched(p.file, t.Line, t.Col, t.Human(), []string{"variable, identifier, or literal"}))
		return ast.Elem{}, false
	}
}

func (p *parser) peekAt(off int) token.Token {
	idx := p.pos + off
	if idx >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[idx]
}

// binding powers for filter-expression precedence climbing, lowest first.
var filterBp = map[token.Class]int{
	token.Or:    1,
	token.And:   2,
	token.Lt:    3,
	token.Le:    3,
	token.Gt:    3,
	token.Ge:    3,
	token.Eq:    3,
	token.Ne:    3,
	token.Plus:  4,
	token.Minus: 4,
	token.Star:  5,
	token.Slash: 5,
}

var opText = map[token.Class]ast.BinOp{
	token.Or: ast.OpOr, token.And: ast.OpAnd,
	token.Lt: ast.OpLt, token.Le: ast.OpLe, token.Gt: ast.OpGt, token.Ge: ast.OpGe,
	token.Eq: ast.OpEq, token.Ne: ast.OpNe,
	token.Plus: ast.OpAdd, token.Minus: ast.OpSub, token.Star: ast.OpMul, token.Slash: ast.OpDiv,
}

// parseFilter parses a filter expression using precedence climbing, mirroring
// the nud/led shape of tunascript's parseExpression but specialized to the
// small fixed operator set spec.md section 3 defines for Filter Expression.
func (p *parser) parseFilter(minBp int) (*ast.Filter, bool) {
	left, ok := p.parseFilterAtom()
	if !ok {
		return nil, false
	}
	for {
		bp, isOp := filterBp[p.cur().Class]
		if !isOp || bp < minBp {
			break
		}
		opTok := p.advance()
		right, ok := p.parseFilter(bp + 1)
		if !ok {
			return nil, false
		}
		left = &ast.Filter{Kind: ast.FilterBinary, Op: opText[opTok.Class], Lhs: left, Rhs: right}
	}
	return left, true
}

func (p *parser) parseFilterAtom() (*ast.Filter, bool) {
	if p.at(token.LParen) {
		p.advance()
		inner, ok := p.parseFilter(0)
		if !ok {
			return nil, false
		}
		if _, ok := p.expect(token.RParen, "')'"); !ok {
			return nil, false
		}
		return inner, true
	}
	e, ok := p.parseElem()
	if !ok {
		return nil, false
	}
	return &ast.Filter{Kind: ast.FilterLeaf, Leaf: e}, true
}

func renderTripleLabel(tr ast.Triple, isNot bool) string {
	s := "(" + elemText(tr.Subject) + " " + elemText(tr.Predicate) + " " + elemText(tr.Object) + ")"
	if isNot {
		s = "not" + s
	}
	return s
}

func elemText(e ast.Elem) string {
	if e.Kind == ast.ElemVar {
		return "?" + e.Text
	}
	return e.Text
}

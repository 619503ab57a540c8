package xmldom

import (
	"fmt"
	"strconv"
	"strings"
)

// exprNode is the expression-tree node interface: every syntactic
// construct of the grammar below compiles to one of these. Evaluate
// methods live in xpath_eval.go, next to the dynamic context they close
// over; this file only builds the tree.
type exprNode interface {
	eval(ctx *dynamicContext) (xSequence, error)
}

// --- Binders and boolean connectives ---

type forBinding struct {
	varName string
	source  exprNode
}

type forExprNode struct {
	bindings []forBinding
	body     exprNode
}

type letBinding struct {
	varName string
	source  exprNode
}

type letExprNode struct {
	bindings []letBinding
	body     exprNode
}

type ifExprNode struct {
	cond, thenE, elseE exprNode
}

type quantifiedExprNode struct {
	every    bool
	bindings []forBinding
	cond     exprNode
}

type orExprNode struct{ lhs, rhs exprNode }
type andExprNode struct{ lhs, rhs exprNode }

// --- Comparisons ---

type compareOp uint8

const (
	cmpGeneralEq compareOp = iota
	cmpGeneralNe
	cmpGeneralLt
	cmpGeneralLe
	cmpGeneralGt
	cmpGeneralGe
	cmpValueEq
	cmpValueNe
	cmpValueLt
	cmpValueLe
	cmpValueGt
	cmpValueGe
	cmpNodeIs
	cmpNodeBefore
	cmpNodeAfter
)

type compareExprNode struct {
	op       compareOp
	lhs, rhs exprNode
}

type rangeExprNode struct{ lhs, rhs exprNode }

// --- Arithmetic ---

type arithOp uint8

const (
	arithAdd arithOp = iota
	arithSub
	arithMul
	arithDiv
	arithIDiv
	arithMod
)

type arithExprNode struct {
	op       arithOp
	lhs, rhs exprNode
}

type unaryExprNode struct {
	negative bool
	operand  exprNode
}

// --- Set operators ---

type combineOp uint8

const (
	combineUnion combineOp = iota
	combineIntersect
	combineExcept
)

type combineExprNode struct {
	op       combineOp
	lhs, rhs exprNode
}

// --- Paths, steps, and node tests ---

type axisKind uint8

const (
	axisChild axisKind = iota
	axisDescendant
	axisDescendantOrSelf
	axisParent
	axisAncestor
	axisAncestorOrSelf
	axisFollowing
	axisFollowingSibling
	axisPreceding
	axisPrecedingSibling
	axisAttribute
	axisSelf
)

type nodeTest interface {
	matches(n Node) bool
}

type nameTest struct {
	prefix    string
	local     string
	anyPrefix bool
	anyLocal  bool
}

type kindTest struct {
	want     NodeType
	matchAny bool
}

type elementKindTest struct{ name string }

type piTest struct {
	hasTarget bool
	target    string
}

func (t nameTest) matches(n Node) bool {
	switch n.NodeType() {
	case ELEMENT_NODE, ATTRIBUTE_NODE:
	default:
		return false
	}
	if !t.anyLocal && string(n.LocalName()) != t.local && string(n.NodeName()) != t.local {
		return false
	}
	if t.prefix != "" && !t.anyPrefix {
		return string(n.NodeName()) == t.prefix+":"+t.local
	}
	return true
}

func (t kindTest) matches(n Node) bool {
	if t.matchAny {
		return true
	}
	return n.NodeType() == t.want
}

func (t elementKindTest) matches(n Node) bool {
	if n.NodeType() != ELEMENT_NODE {
		return false
	}
	return string(n.LocalName()) == t.name || string(n.NodeName()) == t.name
}

func (t piTest) matches(n Node) bool {
	if n.NodeType() != PROCESSING_INSTRUCTION_NODE {
		return false
	}
	if !t.hasTarget {
		return true
	}
	pi, ok := n.(ProcessingInstruction)
	return ok && string(pi.Target()) == t.target
}

type axisStepNode struct {
	axis       axisKind
	test       nodeTest
	predicates []exprNode
}

type filterStepNode struct {
	primary    exprNode
	predicates []exprNode
}

type pathExprNode struct {
	absolute bool
	steps    []exprNode
}

// --- Primary expressions ---

type literalExprNode struct{ item xItem }
type varRefExprNode struct{ name string }
type contextItemExprNode struct{}
type seqExprNode struct{ parts []exprNode }

type functionCallExprNode struct {
	name string
	args []exprNode
}

type namedFuncRefExprNode struct {
	name  string
	arity int
}

// ===========================================================================
// Parser
// ===========================================================================

// xpathParser consumes the lexer's token channel through a small
// pushback buffer, the same precedence-climbing recursive-descent shape
// the DOM collaborator's earlier XPath parser used, re-leveled to the
// full XPath 2.0 grammar.
type xpathParser struct {
	lex *xpathLexer
	buf []token
}

func parseXPath(source string) (exprNode, error) {
	p := &xpathParser{lex: newXPathLexer(source)}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	t := p.next()
	if t.kind == tokError {
		return nil, &LexError{Offset: t.offset, Msg: t.value}
	}
	if t.kind != tokEOF {
		return nil, &SyntaxError{Offset: t.offset, Msg: "unexpected trailing input " + tokenDesc(t)}
	}
	return expr, nil
}

func (p *xpathParser) next() token {
	if n := len(p.buf); n > 0 {
		t := p.buf[n-1]
		p.buf = p.buf[:n-1]
		return t
	}
	return <-p.lex.tokens
}

func (p *xpathParser) unget(t token) { p.buf = append(p.buf, t) }

func (p *xpathParser) peek() token {
	t := p.next()
	p.unget(t)
	return t
}

func (p *xpathParser) peek2() (token, token) {
	t1 := p.next()
	t2 := p.next()
	p.unget(t2)
	p.unget(t1)
	return t1, t2
}

func (p *xpathParser) peekKind(k tokenKind) bool { return p.peek().kind == k }

func (p *xpathParser) peekKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokName && t.value == kw
}

func (p *xpathParser) acceptKeyword(kw string) bool {
	if p.peekKeyword(kw) {
		p.next()
		return true
	}
	return false
}

func (p *xpathParser) expect(kind tokenKind, desc string) (token, error) {
	t := p.next()
	if t.kind == tokError {
		return t, &LexError{Offset: t.offset, Msg: t.value}
	}
	if t.kind != kind {
		return t, &SyntaxError{Offset: t.offset, Msg: "expected " + desc + ", got " + tokenDesc(t)}
	}
	return t, nil
}

func tokenDesc(t token) string {
	if t.kind == tokEOF {
		return "end of expression"
	}
	if t.kind == tokError {
		return "a malformed token (" + t.value + ")"
	}
	return fmt.Sprintf("%q", t.value)
}

func varName(raw string) string { return strings.TrimPrefix(raw, "$") }

var axisNames = map[string]axisKind{
	"child":              axisChild,
	"descendant":         axisDescendant,
	"descendant-or-self": axisDescendantOrSelf,
	"parent":             axisParent,
	"ancestor":           axisAncestor,
	"ancestor-or-self":   axisAncestorOrSelf,
	"following":          axisFollowing,
	"following-sibling":  axisFollowingSibling,
	"preceding":          axisPreceding,
	"preceding-sibling":  axisPrecedingSibling,
	"attribute":          axisAttribute,
	"self":               axisSelf,
}

func isAxisName(name string) bool { _, ok := axisNames[name]; return ok }

var kindTestNames = map[string]bool{
	"node": true, "text": true, "comment": true,
	"processing-instruction": true, "element": true, "document-node": true,
}

func isKindTestName(name string) bool { return kindTestNames[name] }

// ---- Grammar, lowest to highest precedence ----

func (p *xpathParser) parseExpr() (exprNode, error) {
	first, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	if !p.peekKind(tokComma) {
		return first, nil
	}
	parts := []exprNode{first}
	for p.peekKind(tokComma) {
		p.next()
		e, err := p.parseExprSingle()
		if err != nil {
			return nil, err
		}
		parts = append(parts, e)
	}
	return seqExprNode{parts: parts}, nil
}

func (p *xpathParser) parseExprSingle() (exprNode, error) {
	switch {
	case p.peekKeyword("for"):
		return p.parseForExpr()
	case p.peekKeyword("let"):
		return p.parseLetExpr()
	case p.peekKeyword("if"):
		return p.parseIfExpr()
	case p.peekKeyword("some"):
		return p.parseQuantifiedExpr(false)
	case p.peekKeyword("every"):
		return p.parseQuantifiedExpr(true)
	default:
		return p.parseOrExpr()
	}
}

func (p *xpathParser) parseForExpr() (exprNode, error) {
	p.next()
	var bindings []forBinding
	for {
		v, err := p.expect(tokVar, "a variable after 'for'")
		if err != nil {
			return nil, err
		}
		if !p.acceptKeyword("in") {
			return nil, &SyntaxError{Offset: p.peek().offset, Msg: "expected 'in' in for clause"}
		}
		src, err := p.parseExprSingle()
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, forBinding{varName: varName(v.value), source: src})
		if p.peekKind(tokComma) {
			p.next()
			continue
		}
		break
	}
	if !p.acceptKeyword("return") {
		return nil, &SyntaxError{Offset: p.peek().offset, Msg: "expected 'return' in for expression"}
	}
	body, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	return forExprNode{bindings: bindings, body: body}, nil
}

func (p *xpathParser) parseLetExpr() (exprNode, error) {
	p.next()
	var bindings []letBinding
	for {
		v, err := p.expect(tokVar, "a variable after 'let'")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokAssign, "':=' in let clause"); err != nil {
			return nil, err
		}
		src, err := p.parseExprSingle()
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, letBinding{varName: varName(v.value), source: src})
		if p.peekKind(tokComma) {
			p.next()
			continue
		}
		break
	}
	if !p.acceptKeyword("return") {
		return nil, &SyntaxError{Offset: p.peek().offset, Msg: "expected 'return' in let expression"}
	}
	body, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	return letExprNode{bindings: bindings, body: body}, nil
}

func (p *xpathParser) parseIfExpr() (exprNode, error) {
	p.next()
	if _, err := p.expect(tokLParen, "'(' after 'if'"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, "')' closing the if condition"); err != nil {
		return nil, err
	}
	if !p.acceptKeyword("then") {
		return nil, &SyntaxError{Offset: p.peek().offset, Msg: "expected 'then'"}
	}
	thenE, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	if !p.acceptKeyword("else") {
		return nil, &SyntaxError{Offset: p.peek().offset, Msg: "expected 'else'"}
	}
	elseE, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	return ifExprNode{cond: cond, thenE: thenE, elseE: elseE}, nil
}

func (p *xpathParser) parseQuantifiedExpr(every bool) (exprNode, error) {
	p.next()
	var bindings []forBinding
	for {
		v, err := p.expect(tokVar, "a variable")
		if err != nil {
			return nil, err
		}
		if !p.acceptKeyword("in") {
			return nil, &SyntaxError{Offset: p.peek().offset, Msg: "expected 'in'"}
		}
		src, err := p.parseExprSingle()
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, forBinding{varName: varName(v.value), source: src})
		if p.peekKind(tokComma) {
			p.next()
			continue
		}
		break
	}
	if !p.acceptKeyword("satisfies") {
		return nil, &SyntaxError{Offset: p.peek().offset, Msg: "expected 'satisfies'"}
	}
	cond, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	return quantifiedExprNode{every: every, bindings: bindings, cond: cond}, nil
}

func (p *xpathParser) parseOrExpr() (exprNode, error) {
	lhs, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("or") {
		rhs, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		lhs = orExprNode{lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *xpathParser) parseAndExpr() (exprNode, error) {
	lhs, err := p.parseComparisonExpr()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("and") {
		rhs, err := p.parseComparisonExpr()
		if err != nil {
			return nil, err
		}
		lhs = andExprNode{lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

var generalCompTokens = map[tokenKind]compareOp{
	tokEq: cmpGeneralEq, tokNe: cmpGeneralNe,
	tokLt: cmpGeneralLt, tokLe: cmpGeneralLe,
	tokGt: cmpGeneralGt, tokGe: cmpGeneralGe,
}

var valueCompKeywords = map[string]compareOp{
	"eq": cmpValueEq, "ne": cmpValueNe,
	"lt": cmpValueLt, "le": cmpValueLe,
	"gt": cmpValueGt, "ge": cmpValueGe,
}

// parseComparisonExpr implements XPath 2.0's non-associative comparison
// level: at most one comparison per ExprSingle, general/value/node
// comparisons all live here side by side.
func (p *xpathParser) parseComparisonExpr() (exprNode, error) {
	lhs, err := p.parseRangeExpr()
	if err != nil {
		return nil, err
	}
	switch {
	case p.peekKind(tokLtLt):
		p.next()
		rhs, err := p.parseRangeExpr()
		if err != nil {
			return nil, err
		}
		return compareExprNode{op: cmpNodeBefore, lhs: lhs, rhs: rhs}, nil
	case p.peekKind(tokGtGt):
		p.next()
		rhs, err := p.parseRangeExpr()
		if err != nil {
			return nil, err
		}
		return compareExprNode{op: cmpNodeAfter, lhs: lhs, rhs: rhs}, nil
	case p.acceptKeyword("is"):
		rhs, err := p.parseRangeExpr()
		if err != nil {
			return nil, err
		}
		return compareExprNode{op: cmpNodeIs, lhs: lhs, rhs: rhs}, nil
	}
	t := p.peek()
	if op, ok := generalCompTokens[t.kind]; ok {
		p.next()
		rhs, err := p.parseRangeExpr()
		if err != nil {
			return nil, err
		}
		return compareExprNode{op: op, lhs: lhs, rhs: rhs}, nil
	}
	if t.kind == tokName {
		if op, ok := valueCompKeywords[t.value]; ok {
			p.next()
			rhs, err := p.parseRangeExpr()
			if err != nil {
				return nil, err
			}
			return compareExprNode{op: op, lhs: lhs, rhs: rhs}, nil
		}
	}
	return lhs, nil
}

func (p *xpathParser) parseRangeExpr() (exprNode, error) {
	lhs, err := p.parseAdditiveExpr()
	if err != nil {
		return nil, err
	}
	if p.acceptKeyword("to") {
		rhs, err := p.parseAdditiveExpr()
		if err != nil {
			return nil, err
		}
		return rangeExprNode{lhs: lhs, rhs: rhs}, nil
	}
	return lhs, nil
}

func (p *xpathParser) parseAdditiveExpr() (exprNode, error) {
	lhs, err := p.parseMultiplicativeExpr()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.peekKind(tokPlus):
			p.next()
			rhs, err := p.parseMultiplicativeExpr()
			if err != nil {
				return nil, err
			}
			lhs = arithExprNode{op: arithAdd, lhs: lhs, rhs: rhs}
		case p.peekKind(tokMinus):
			p.next()
			rhs, err := p.parseMultiplicativeExpr()
			if err != nil {
				return nil, err
			}
			lhs = arithExprNode{op: arithSub, lhs: lhs, rhs: rhs}
		default:
			return lhs, nil
		}
	}
}

func (p *xpathParser) parseMultiplicativeExpr() (exprNode, error) {
	lhs, err := p.parseUnionExpr()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.peekKind(tokStar):
			p.next()
			rhs, err := p.parseUnionExpr()
			if err != nil {
				return nil, err
			}
			lhs = arithExprNode{op: arithMul, lhs: lhs, rhs: rhs}
		case p.acceptKeyword("div"):
			rhs, err := p.parseUnionExpr()
			if err != nil {
				return nil, err
			}
			lhs = arithExprNode{op: arithDiv, lhs: lhs, rhs: rhs}
		case p.acceptKeyword("idiv"):
			rhs, err := p.parseUnionExpr()
			if err != nil {
				return nil, err
			}
			lhs = arithExprNode{op: arithIDiv, lhs: lhs, rhs: rhs}
		case p.acceptKeyword("mod"):
			rhs, err := p.parseUnionExpr()
			if err != nil {
				return nil, err
			}
			lhs = arithExprNode{op: arithMod, lhs: lhs, rhs: rhs}
		default:
			return lhs, nil
		}
	}
}

func (p *xpathParser) parseUnionExpr() (exprNode, error) {
	lhs, err := p.parseIntersectExceptExpr()
	if err != nil {
		return nil, err
	}
	for p.peekKind(tokPipe) || p.peekKeyword("union") {
		p.next()
		rhs, err := p.parseIntersectExceptExpr()
		if err != nil {
			return nil, err
		}
		lhs = combineExprNode{op: combineUnion, lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *xpathParser) parseIntersectExceptExpr() (exprNode, error) {
	lhs, err := p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.acceptKeyword("intersect"):
			rhs, err := p.parseUnaryExpr()
			if err != nil {
				return nil, err
			}
			lhs = combineExprNode{op: combineIntersect, lhs: lhs, rhs: rhs}
		case p.acceptKeyword("except"):
			rhs, err := p.parseUnaryExpr()
			if err != nil {
				return nil, err
			}
			lhs = combineExprNode{op: combineExcept, lhs: lhs, rhs: rhs}
		default:
			return lhs, nil
		}
	}
}

func (p *xpathParser) parseUnaryExpr() (exprNode, error) {
	neg := false
	sawSign := false
	for p.peekKind(tokMinus) || p.peekKind(tokPlus) {
		sawSign = true
		if p.peekKind(tokMinus) {
			neg = !neg
		}
		p.next()
	}
	operand, err := p.parsePathExpr()
	if err != nil {
		return nil, err
	}
	if sawSign {
		return unaryExprNode{negative: neg, operand: operand}, nil
	}
	return operand, nil
}

// atStepStart reports whether the current token could begin a StepExpr;
// used to tell a bare "/" (selecting the document root) apart from "/"
// that introduces a RelativePathExpr.
func (p *xpathParser) atStepStart() bool {
	t := p.peek()
	switch t.kind {
	case tokEOF, tokRParen, tokRBracket, tokComma:
		return false
	case tokName:
		switch t.value {
		case "to", "eq", "ne", "lt", "le", "gt", "ge", "and", "or",
			"div", "idiv", "mod", "union", "intersect", "except",
			"is", "then", "else", "return", "satisfies":
			return false
		}
	}
	return true
}

func (p *xpathParser) parsePathExpr() (exprNode, error) {
	var steps []exprNode
	absolute := false
	switch {
	case p.peekKind(tokSlashSlash):
		p.next()
		absolute = true
		steps = append(steps, axisStepNode{axis: axisDescendantOrSelf, test: kindTest{matchAny: true}})
	case p.peekKind(tokSlash):
		p.next()
		absolute = true
		if !p.atStepStart() {
			return pathExprNode{absolute: true}, nil
		}
	}
	first, err := p.parseStepExpr()
	if err != nil {
		return nil, err
	}
	steps = append(steps, first)
	for {
		switch {
		case p.peekKind(tokSlashSlash):
			p.next()
			steps = append(steps, axisStepNode{axis: axisDescendantOrSelf, test: kindTest{matchAny: true}})
			s, err := p.parseStepExpr()
			if err != nil {
				return nil, err
			}
			steps = append(steps, s)
		case p.peekKind(tokSlash):
			p.next()
			s, err := p.parseStepExpr()
			if err != nil {
				return nil, err
			}
			steps = append(steps, s)
		default:
			if !absolute && len(steps) == 1 {
				return steps[0], nil
			}
			return pathExprNode{absolute: absolute, steps: steps}, nil
		}
	}
}

func (p *xpathParser) parsePredicates() ([]exprNode, error) {
	var preds []exprNode
	for p.peekKind(tokLBracket) {
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRBracket, "']'"); err != nil {
			return nil, err
		}
		preds = append(preds, e)
	}
	return preds, nil
}

func (p *xpathParser) parseAxisPredicates(axis axisKind, test nodeTest) (exprNode, error) {
	preds, err := p.parsePredicates()
	if err != nil {
		return nil, err
	}
	return axisStepNode{axis: axis, test: test, predicates: preds}, nil
}

func (p *xpathParser) parsePredicateTail(primary exprNode) (exprNode, error) {
	preds, err := p.parsePredicates()
	if err != nil {
		return nil, err
	}
	if len(preds) == 0 {
		return primary, nil
	}
	return filterStepNode{primary: primary, predicates: preds}, nil
}

func (p *xpathParser) parseStepExpr() (exprNode, error) {
	switch {
	case p.peekKind(tokDotDot):
		p.next()
		return p.parseAxisPredicates(axisParent, kindTest{matchAny: true})
	case p.peekKind(tokDot):
		p.next()
		return p.parsePredicateTail(contextItemExprNode{})
	case p.peekKind(tokAt):
		p.next()
		test, err := p.parseNodeTest()
		if err != nil {
			return nil, err
		}
		return p.parseAxisPredicates(axisAttribute, test)
	case p.peekKind(tokStar):
		t1, t2 := p.peek2()
		_ = t1
		if t2.kind == tokColon {
			return p.parseStepFromNodeTest()
		}
		p.next()
		return p.parseAxisPredicates(axisChild, nameTest{anyPrefix: true, anyLocal: true})
	case p.peekKind(tokName):
		t1, t2 := p.peek2()
		if t2.kind == tokColonColon && isAxisName(t1.value) {
			p.next()
			p.next()
			axis := axisNames[t1.value]
			test, err := p.parseNodeTest()
			if err != nil {
				return nil, err
			}
			return p.parseAxisPredicates(axis, test)
		}
		if isKindTestName(t1.value) && t2.kind == tokLParen {
			return p.parseStepFromNodeTest()
		}
		if t2.kind != tokLParen && t2.kind != tokHash {
			return p.parseStepFromNodeTest()
		}
	}
	primary, err := p.parsePrimaryExpr()
	if err != nil {
		return nil, err
	}
	return p.parsePredicateTail(primary)
}

func (p *xpathParser) parseStepFromNodeTest() (exprNode, error) {
	test, err := p.parseNodeTest()
	if err != nil {
		return nil, err
	}
	return p.parseAxisPredicates(axisChild, test)
}

func (p *xpathParser) parseNodeTest() (nodeTest, error) {
	if p.peekKind(tokStar) {
		p.next()
		if p.peekKind(tokColon) {
			p.next()
			localT, err := p.expect(tokName, "a local name after '*:'")
			if err != nil {
				return nil, err
			}
			return nameTest{anyPrefix: true, local: localT.value}, nil
		}
		return nameTest{anyPrefix: true, anyLocal: true}, nil
	}
	t, err := p.expect(tokName, "a name test or kind test")
	if err != nil {
		return nil, err
	}
	if p.peekKind(tokLParen) {
		p.next()
		switch t.value {
		case "node":
			if _, err := p.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
			return kindTest{matchAny: true}, nil
		case "text":
			if _, err := p.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
			return kindTest{want: TEXT_NODE}, nil
		case "comment":
			if _, err := p.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
			return kindTest{want: COMMENT_NODE}, nil
		case "document-node":
			if _, err := p.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
			return kindTest{want: DOCUMENT_NODE}, nil
		case "element":
			name := ""
			if !p.peekKind(tokRParen) {
				if p.peekKind(tokStar) {
					p.next()
				} else {
					nt, err := p.expect(tokName, "an element name")
					if err != nil {
						return nil, err
					}
					name = nt.value
				}
			}
			if _, err := p.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
			if name == "" {
				return kindTest{want: ELEMENT_NODE}, nil
			}
			return elementKindTest{name: name}, nil
		case "processing-instruction":
			pt := piTest{}
			if !p.peekKind(tokRParen) {
				arg := p.next()
				if arg.kind == tokString || arg.kind == tokName {
					pt.hasTarget = true
					pt.target = arg.value
				}
			}
			if _, err := p.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
			return pt, nil
		default:
			return nil, &SyntaxError{Offset: t.offset, Msg: "unknown kind test \"" + t.value + "\""}
		}
	}
	return parseNameTestValue(t.value), nil
}

func parseNameTestValue(raw string) nodeTest {
	if idx := strings.IndexByte(raw, ':'); idx >= 0 {
		prefix := raw[:idx]
		local := raw[idx+1:]
		if local == "*" {
			return nameTest{prefix: prefix, anyLocal: true}
		}
		return nameTest{prefix: prefix, local: local}
	}
	return nameTest{local: raw}
}

func (p *xpathParser) parsePrimaryExpr() (exprNode, error) {
	t := p.peek()
	switch t.kind {
	case tokInteger:
		p.next()
		n, err := strconv.ParseInt(t.value, 10, 64)
		if err != nil {
			return nil, &LexError{Offset: t.offset, Msg: "invalid integer literal \"" + t.value + "\""}
		}
		return literalExprNode{item: xInt(n)}, nil
	case tokDecimal:
		p.next()
		f, err := strconv.ParseFloat(t.value, 64)
		if err != nil {
			return nil, &LexError{Offset: t.offset, Msg: "invalid decimal literal \"" + t.value + "\""}
		}
		return literalExprNode{item: xDec(f)}, nil
	case tokDouble:
		p.next()
		f, err := strconv.ParseFloat(t.value, 64)
		if err != nil {
			return nil, &LexError{Offset: t.offset, Msg: "invalid double literal \"" + t.value + "\""}
		}
		return literalExprNode{item: xDbl(f)}, nil
	case tokString:
		p.next()
		return literalExprNode{item: xStr(t.value)}, nil
	case tokVar:
		p.next()
		return varRefExprNode{name: varName(t.value)}, nil
	case tokDot:
		p.next()
		return contextItemExprNode{}, nil
	case tokLParen:
		p.next()
		if p.peekKind(tokRParen) {
			p.next()
			return seqExprNode{}, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case tokName:
		p.next()
		if p.peekKind(tokHash) {
			p.next()
			arityTok, err := p.expect(tokInteger, "an arity after '#'")
			if err != nil {
				return nil, err
			}
			arity, _ := strconv.Atoi(arityTok.value)
			if _, ok := functionCatalog[t.value]; !ok {
				return nil, &StaticError{Offset: t.offset, Msg: "unknown function \"" + t.value + "\""}
			}
			return namedFuncRefExprNode{name: t.value, arity: arity}, nil
		}
		if p.peekKind(tokLParen) {
			return p.parseFunctionCallArgs(t)
		}
		return nil, &SyntaxError{Offset: t.offset, Msg: "unexpected name \"" + t.value + "\" in expression position"}
	default:
		if t.kind == tokError {
			return nil, &LexError{Offset: t.offset, Msg: t.value}
		}
		return nil, &SyntaxError{Offset: t.offset, Msg: "unexpected token " + tokenDesc(t)}
	}
}

func (p *xpathParser) parseFunctionCallArgs(nameTok token) (exprNode, error) {
	p.next()
	var args []exprNode
	if !p.peekKind(tokRParen) {
		for {
			a, err := p.parseExprSingle()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.peekKind(tokComma) {
				p.next()
				continue
			}
			break
		}
	}
	if _, err := p.expect(tokRParen, "')' closing the argument list"); err != nil {
		return nil, err
	}
	entry, ok := functionCatalog[nameTok.value]
	if !ok {
		return nil, &StaticError{Offset: nameTok.offset, Msg: "call to unknown function \"" + nameTok.value + "\""}
	}
	if len(args) < entry.minArgs || (entry.maxArgs >= 0 && len(args) > entry.maxArgs) {
		return nil, &StaticError{
			Offset: nameTok.offset,
			Msg:    fmt.Sprintf("%s() expects %d to %d arguments, got %d", nameTok.value, entry.minArgs, entry.maxArgs, len(args)),
		}
	}
	return functionCallExprNode{name: nameTok.value, args: args}, nil
}

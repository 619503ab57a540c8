package xmldom

import (
	"math"
	"strconv"
	"strings"
)

// xItemKind tags the seven item forms an XPath 2.0 expression can
// produce: three numeric kinds forming the promotion lattice
// integer < decimal < double (10.4.1 Item/Sequence layer), plus
// boolean, string, node, and function-reference.
type xItemKind uint8

const (
	xiInteger xItemKind = iota
	xiDecimal
	xiDouble
	xiBoolean
	xiString
	xiNode
	xiFunction
)

// xFuncRef is a named-function-reference item (name#arity literal),
// used only by the for-each/filter higher-order functions.
type xFuncRef struct {
	name  string
	arity int
}

// xItem is a tagged union holding exactly one of the kinds above.
type xItem struct {
	kind xItemKind
	i    int64
	f    float64
	b    bool
	s    string
	n    Node
	fn   xFuncRef
}

func xInt(n int64) xItem              { return xItem{kind: xiInteger, i: n} }
func xDec(f float64) xItem            { return xItem{kind: xiDecimal, f: f} }
func xDbl(f float64) xItem            { return xItem{kind: xiDouble, f: f} }
func xBool(b bool) xItem               { return xItem{kind: xiBoolean, b: b} }
func xStr(s string) xItem              { return xItem{kind: xiString, s: s} }
func xNodeItem(n Node) xItem           { return xItem{kind: xiNode, n: n} }
func xFunc(name string, arity int) xItem {
	return xItem{kind: xiFunction, fn: xFuncRef{name: name, arity: arity}}
}

// StringValue exposes an item's string value (fn:string's per-item
// conversion rules) to callers outside this package holding a Sequence
// returned by Expression.Evaluate — xItem itself is unexported, but its
// exported methods are still callable on values received through the
// public API.
func (it xItem) StringValue() (string, error) { return it.stringValue() }

// IsNode reports whether the item holds a node.
func (it xItem) IsNode() bool { return it.kind == xiNode }

// Node returns the item's node value, or nil if the item does not hold
// a node.
func (it xItem) Node() Node {
	if it.kind != xiNode {
		return nil
	}
	return it.n
}

func (it xItem) isNumeric() bool {
	return it.kind == xiInteger || it.kind == xiDecimal || it.kind == xiDouble
}

// numericValue returns the item's value as a float64. Callers must check
// isNumeric first; it returns NaN for non-numeric items.
func (it xItem) numericValue() float64 {
	switch it.kind {
	case xiInteger:
		return float64(it.i)
	case xiDecimal, xiDouble:
		return it.f
	default:
		return math.NaN()
	}
}

// stringValue implements fn:string's per-item conversion rules (booleans
// as "true"/"false", numbers via numberToLexical, nodes via their string
// value — the concatenation of descendant text for an element or document
// node, the value of an attribute, the content of any other node).
func (it xItem) stringValue() (string, error) {
	switch it.kind {
	case xiString:
		return it.s, nil
	case xiBoolean:
		return booleanToString(it.b), nil
	case xiInteger:
		return strconv.FormatInt(it.i, 10), nil
	case xiDecimal, xiDouble:
		return numberToLexical(it.f), nil
	case xiNode:
		switch it.n.NodeType() {
		case ELEMENT_NODE, DOCUMENT_NODE, DOCUMENT_FRAGMENT_NODE:
			var b strings.Builder
			for _, d := range descendantNodes(it.n) {
				if k := d.NodeType(); k == TEXT_NODE || k == CDATA_SECTION_NODE {
					b.WriteString(string(d.NodeValue()))
				}
			}
			return b.String(), nil
		}
		return string(it.n.NodeValue()), nil
	default:
		return "", &TypeError{Op: "string value", Msg: "function items have no string value"}
	}
}

// numberToLexical renders a double/decimal the way XPath 2.0's
// casting-to-string rules require: NaN/Infinity verbatim, integral
// values without a trailing ".0", everything else with minimal digits.
func numberToLexical(n float64) string {
	if math.IsNaN(n) {
		return "NaN"
	}
	if math.IsInf(n, 1) {
		return "INF"
	}
	if math.IsInf(n, -1) {
		return "-INF"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// xSequence is a flat, ordered list of items. Construction never nests:
// sequences of sequences do not exist in the data model.
type xSequence []xItem

func seqOf(items ...xItem) xSequence { return xSequence(items) }

func singleton(it xItem) xSequence { return xSequence{it} }

func emptySeq() xSequence { return xSequence(nil) }

func concatSeq(parts ...xSequence) xSequence {
	var out xSequence
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// nodesOf extracts the node list from a sequence, failing with a
// TypeError if any item is not a node — the precondition of path steps,
// axes, and the node/set operators.
func nodesOf(seq xSequence) ([]Node, error) {
	nodes := make([]Node, 0, len(seq))
	for _, it := range seq {
		if it.kind != xiNode {
			return nil, &TypeError{Op: "node sequence", Msg: "expected a sequence of nodes"}
		}
		nodes = append(nodes, it.n)
	}
	return nodes, nil
}

// singletonItem enforces the common "at most one item" precondition
// (operands of arithmetic/comparison operators, unary operators, and
// several functions): an empty sequence yields ok=false, and a sequence
// of more than one item is a DynamicError.
func singletonItem(seq xSequence, op string) (xItem, bool, error) {
	switch len(seq) {
	case 0:
		return xItem{}, false, nil
	case 1:
		return seq[0], true, nil
	default:
		return xItem{}, false, &DynamicError{Op: op, Msg: "expected at most one item, got a sequence"}
	}
}

// atomize implements the Item/Sequence layer's atomization step: every
// node item is replaced by the string holding its string value (no
// schema-aware typed value exists in this engine — decimal-as-double
// conflation extends here too, nodes atomize straight to string), and
// every atomic item passes through unchanged.
func atomize(seq xSequence) (xSequence, error) {
	out := make(xSequence, 0, len(seq))
	for _, it := range seq {
		atomized, err := atomizeItem(it)
		if err != nil {
			return nil, err
		}
		out = append(out, atomized)
	}
	return out, nil
}

func atomizeItem(it xItem) (xItem, error) {
	if it.kind == xiFunction {
		return xItem{}, &TypeError{Op: "atomize", Msg: "a function item has no typed value"}
	}
	if it.kind == xiNode {
		s, _ := it.stringValue()
		return xStr(s), nil
	}
	return it, nil
}

// effectiveBooleanValue implements the EBV rules of the Item/Sequence
// layer: empty sequence is false; a sequence whose first item is a node
// is true regardless of what follows; a singleton boolean/string/numeric
// converts per its own type; anything else (e.g. two atomic items) has
// no effective boolean value.
func effectiveBooleanValue(seq xSequence) (bool, error) {
	if len(seq) == 0 {
		return false, nil
	}
	if seq[0].kind == xiNode {
		return true, nil
	}
	if len(seq) > 1 {
		return false, &TypeError{Op: "effective boolean value", Msg: "a sequence of more than one item not starting with a node has no effective boolean value"}
	}
	it := seq[0]
	switch it.kind {
	case xiBoolean:
		return it.b, nil
	case xiString:
		return it.s != "", nil
	case xiInteger:
		return it.i != 0, nil
	case xiDecimal, xiDouble:
		return it.f != 0 && !math.IsNaN(it.f), nil
	default:
		return false, &TypeError{Op: "effective boolean value", Msg: "item has no effective boolean value"}
	}
}

// castItem implements the small subset of 17 Casting that this engine
// supports: conversions among the atomic kinds it models. Casting a node
// first atomizes it.
func castItem(it xItem, target xItemKind) (xItem, error) {
	if it.kind == xiNode {
		atomized, err := atomizeItem(it)
		if err != nil {
			return xItem{}, err
		}
		it = atomized
	}
	switch target {
	case xiString:
		s, err := it.stringValue()
		if err != nil {
			return xItem{}, err
		}
		return xStr(s), nil
	case xiBoolean:
		b, err := effectiveBooleanValue(singleton(it))
		if err != nil {
			return xItem{}, err
		}
		return xBool(b), nil
	case xiInteger, xiDecimal, xiDouble:
		var num float64
		switch it.kind {
		case xiInteger, xiDecimal, xiDouble:
			num = it.numericValue()
		case xiString:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(it.s), 64)
			if err != nil {
				return xItem{}, &TypeError{Op: "cast", Msg: "\"" + it.s + "\" is not castable to a numeric type"}
			}
			num = parsed
		case xiBoolean:
			if it.b {
				num = 1
			}
		default:
			return xItem{}, &TypeError{Op: "cast", Msg: "value is not castable to a numeric type"}
		}
		switch target {
		case xiInteger:
			return xInt(int64(num)), nil
		case xiDecimal:
			return xDec(num), nil
		default:
			return xDbl(num), nil
		}
	default:
		return xItem{}, &CannotOccur{Msg: "castItem: unhandled target kind"}
	}
}

// promoteNumericKind implements the numeric type promotion lattice:
// integer < decimal < double. Combining two numeric items always
// produces the higher-ranked kind.
func promoteNumericKind(a, b xItemKind) xItemKind {
	rank := func(k xItemKind) int {
		switch k {
		case xiInteger:
			return 0
		case xiDecimal:
			return 1
		default:
			return 2
		}
	}
	if rank(a) >= rank(b) {
		return a
	}
	return b
}

func numericFromKind(kind xItemKind, v float64) xItem {
	switch kind {
	case xiInteger:
		return xInt(int64(v))
	case xiDecimal:
		return xDec(v)
	default:
		return xDbl(v)
	}
}

// opNumericAdd, opNumericSubtract, and opNumericMultiply keep the
// promoted kind's exact integer arithmetic where both operands are
// integers, falling back to floating point once either side promotes.
func opNumericAdd(a, b xItem) (xItem, error) {
	if !a.isNumeric() || !b.isNumeric() {
		return xItem{}, &TypeError{Op: "+", Msg: "operands of + must be numeric"}
	}
	kind := promoteNumericKind(a.kind, b.kind)
	if kind == xiInteger {
		return xInt(a.i + b.i), nil
	}
	return numericFromKind(kind, a.numericValue()+b.numericValue()), nil
}

func opNumericSubtract(a, b xItem) (xItem, error) {
	if !a.isNumeric() || !b.isNumeric() {
		return xItem{}, &TypeError{Op: "-", Msg: "operands of - must be numeric"}
	}
	kind := promoteNumericKind(a.kind, b.kind)
	if kind == xiInteger {
		return xInt(a.i - b.i), nil
	}
	return numericFromKind(kind, a.numericValue()-b.numericValue()), nil
}

func opNumericMultiply(a, b xItem) (xItem, error) {
	if !a.isNumeric() || !b.isNumeric() {
		return xItem{}, &TypeError{Op: "*", Msg: "operands of * must be numeric"}
	}
	kind := promoteNumericKind(a.kind, b.kind)
	if kind == xiInteger {
		return xInt(a.i * b.i), nil
	}
	return numericFromKind(kind, a.numericValue()*b.numericValue()), nil
}

// opNumericDivide always promotes at least to decimal: the result of
// dividing two integers is a decimal, never an integer.
func opNumericDivide(a, b xItem) (xItem, error) {
	if !a.isNumeric() || !b.isNumeric() {
		return xItem{}, &TypeError{Op: "div", Msg: "operands of div must be numeric"}
	}
	kind := promoteNumericKind(a.kind, b.kind)
	if kind == xiInteger {
		kind = xiDecimal
	}
	bv := b.numericValue()
	if bv == 0 && kind != xiDouble {
		return xItem{}, &DynamicError{Op: "div", Msg: "division by zero"}
	}
	return numericFromKind(kind, a.numericValue()/bv), nil
}

// opNumericIntegerDivide truncates the quotient toward zero and always
// yields an integer; a zero divisor, an infinite dividend, or a NaN
// operand is a DynamicError rather than an Inf/NaN result. A finite
// dividend over an infinite divisor gives 0.
func opNumericIntegerDivide(a, b xItem) (xItem, error) {
	if !a.isNumeric() || !b.isNumeric() {
		return xItem{}, &TypeError{Op: "idiv", Msg: "operands of idiv must be numeric"}
	}
	av, bv := a.numericValue(), b.numericValue()
	if math.IsNaN(av) || math.IsNaN(bv) || math.IsInf(av, 0) {
		return xItem{}, &DynamicError{Op: "idiv", Msg: "dividend is infinite or an operand is NaN"}
	}
	if bv == 0 {
		return xItem{}, &DynamicError{Op: "idiv", Msg: "division by zero"}
	}
	return xInt(int64(av / bv)), nil
}

func opNumericMod(a, b xItem) (xItem, error) {
	if !a.isNumeric() || !b.isNumeric() {
		return xItem{}, &TypeError{Op: "mod", Msg: "operands of mod must be numeric"}
	}
	kind := promoteNumericKind(a.kind, b.kind)
	av, bv := a.numericValue(), b.numericValue()
	if bv == 0 && kind != xiDouble {
		return xItem{}, &DynamicError{Op: "mod", Msg: "division by zero"}
	}
	return numericFromKind(kind, math.Mod(av, bv)), nil
}

func opNumericUnaryMinus(a xItem) (xItem, error) {
	if !a.isNumeric() {
		return xItem{}, &TypeError{Op: "unary -", Msg: "operand must be numeric"}
	}
	switch a.kind {
	case xiInteger:
		return xInt(-a.i), nil
	default:
		return numericFromKind(a.kind, -a.numericValue()), nil
	}
}

func opNumericUnaryPlus(a xItem) (xItem, error) {
	if !a.isNumeric() {
		return xItem{}, &TypeError{Op: "unary +", Msg: "operand must be numeric"}
	}
	return a, nil
}

// ceilX, floorX, and roundX carry the signed-zero discipline: a result
// that lands on zero keeps the sign of the input, and round ties break
// toward positive infinity via floor(x+0.5).
func ceilX(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	r := math.Ceil(x)
	if r == 0 && (x < 0 || math.Signbit(x)) {
		return math.Copysign(0, -1)
	}
	return r
}

func floorX(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	r := math.Floor(x)
	if r == 0 && (x < 0 || math.Signbit(x)) {
		return math.Copysign(0, -1)
	}
	return r
}

func roundX(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	r := math.Floor(x + 0.5)
	if r == 0 && (x < 0 || math.Signbit(x)) {
		return math.Copysign(0, -1)
	}
	return r
}

func booleanToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

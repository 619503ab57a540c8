package xmldom

import (
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
)

// dynamicContext is the XPath 2.0 dynamic context: the current context
// item/position/size, plus a chain of variable scopes pushed by for/let
// bindings and by each step's per-node re-binding of the context item.
// Each binder creates a new dynamicContext rather than mutating its
// parent, so a context captured by a closure stays valid after the loop
// that created it moves on.
type dynamicContext struct {
	contextItem xItem
	hasContext  bool
	contextPos  int
	contextSize int
	vars        map[string]xSequence
	parent      *dynamicContext
}

// varResolutionCache memoizes variable lookups by (scope, name). Deeply
// nested for/let re-entrancy re-walks the same parent chain on every
// loop iteration to resolve outer-scope variables; this cache turns
// repeat lookups within one scope into an O(1) hit. Entries key on the
// dynamicContext pointer, so they age out on their own as scopes are
// replaced by new ones each iteration.
var varResolutionCache *lru.Cache[varCacheKey, xSequence]

type varCacheKey struct {
	ctx  *dynamicContext
	name string
}

func init() {
	c, err := lru.New[varCacheKey, xSequence](4096)
	if err != nil {
		panic(err)
	}
	varResolutionCache = c
}

func (ctx *dynamicContext) lookupVar(name string) (xSequence, bool) {
	key := varCacheKey{ctx: ctx, name: name}
	if v, ok := varResolutionCache.Get(key); ok {
		return v, true
	}
	for c := ctx; c != nil; c = c.parent {
		if c.vars != nil {
			if v, ok := c.vars[name]; ok {
				varResolutionCache.Add(key, v)
				return v, true
			}
		}
	}
	return nil, false
}

func (ctx *dynamicContext) withVar(name string, val xSequence) *dynamicContext {
	return &dynamicContext{
		contextItem: ctx.contextItem,
		hasContext:  ctx.hasContext,
		contextPos:  ctx.contextPos,
		contextSize: ctx.contextSize,
		vars:        map[string]xSequence{name: val},
		parent:      ctx,
	}
}

func (ctx *dynamicContext) withContext(it xItem, pos, size int) *dynamicContext {
	return &dynamicContext{
		contextItem: it,
		hasContext:  true,
		contextPos:  pos,
		contextSize: size,
		parent:      ctx,
	}
}

// newRootContext builds the dynamic context EachMatch/FirstMatch start
// evaluation from: a single context item, position 1 of size 1, no
// variables bound yet.
func newRootContext(item xItem) *dynamicContext {
	return &dynamicContext{contextItem: item, hasContext: true, contextPos: 1, contextSize: 1}
}

// ===========================================================================
// Binders, boolean connectives
// ===========================================================================

func (e seqExprNode) eval(ctx *dynamicContext) (xSequence, error) {
	var out xSequence
	for _, p := range e.parts {
		r, err := p.eval(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, r...)
	}
	return out, nil
}

func evalForBindings(ctx *dynamicContext, bindings []forBinding, body exprNode) (xSequence, error) {
	if len(bindings) == 0 {
		return body.eval(ctx)
	}
	b := bindings[0]
	srcSeq, err := b.source.eval(ctx)
	if err != nil {
		return nil, err
	}
	var out xSequence
	for _, it := range srcSeq {
		child := ctx.withVar(b.varName, singleton(it))
		r, err := evalForBindings(child, bindings[1:], body)
		if err != nil {
			return nil, err
		}
		out = append(out, r...)
	}
	return out, nil
}

func (e forExprNode) eval(ctx *dynamicContext) (xSequence, error) {
	return evalForBindings(ctx, e.bindings, e.body)
}

func (e letExprNode) eval(ctx *dynamicContext) (xSequence, error) {
	cur := ctx
	for _, b := range e.bindings {
		v, err := b.source.eval(cur)
		if err != nil {
			return nil, err
		}
		cur = cur.withVar(b.varName, v)
	}
	return e.body.eval(cur)
}

func (e ifExprNode) eval(ctx *dynamicContext) (xSequence, error) {
	condSeq, err := e.cond.eval(ctx)
	if err != nil {
		return nil, err
	}
	b, err := effectiveBooleanValue(condSeq)
	if err != nil {
		return nil, err
	}
	if b {
		return e.thenE.eval(ctx)
	}
	return e.elseE.eval(ctx)
}

func evalQuantified(ctx *dynamicContext, bindings []forBinding, cond exprNode, every bool) (bool, error) {
	if len(bindings) == 0 {
		condSeq, err := cond.eval(ctx)
		if err != nil {
			return false, err
		}
		return effectiveBooleanValue(condSeq)
	}
	b := bindings[0]
	srcSeq, err := b.source.eval(ctx)
	if err != nil {
		return false, err
	}
	for _, it := range srcSeq {
		child := ctx.withVar(b.varName, singleton(it))
		r, err := evalQuantified(child, bindings[1:], cond, every)
		if err != nil {
			return false, err
		}
		if every && !r {
			return false, nil
		}
		if !every && r {
			return true, nil
		}
	}
	return every, nil
}

func (e quantifiedExprNode) eval(ctx *dynamicContext) (xSequence, error) {
	result, err := evalQuantified(ctx, e.bindings, e.cond, e.every)
	if err != nil {
		return nil, err
	}
	return singleton(xBool(result)), nil
}

func (e orExprNode) eval(ctx *dynamicContext) (xSequence, error) {
	l, err := e.lhs.eval(ctx)
	if err != nil {
		return nil, err
	}
	lb, err := effectiveBooleanValue(l)
	if err != nil {
		return nil, err
	}
	if lb {
		return singleton(xBool(true)), nil
	}
	r, err := e.rhs.eval(ctx)
	if err != nil {
		return nil, err
	}
	rb, err := effectiveBooleanValue(r)
	if err != nil {
		return nil, err
	}
	return singleton(xBool(rb)), nil
}

func (e andExprNode) eval(ctx *dynamicContext) (xSequence, error) {
	l, err := e.lhs.eval(ctx)
	if err != nil {
		return nil, err
	}
	lb, err := effectiveBooleanValue(l)
	if err != nil {
		return nil, err
	}
	if !lb {
		return singleton(xBool(false)), nil
	}
	r, err := e.rhs.eval(ctx)
	if err != nil {
		return nil, err
	}
	rb, err := effectiveBooleanValue(r)
	if err != nil {
		return nil, err
	}
	return singleton(xBool(rb)), nil
}

// ===========================================================================
// Comparisons
// ===========================================================================

func nodeOrderLess(a, b Node) bool {
	if a == b {
		return false
	}
	return compareDocumentOrderPaths(documentOrderPath(a), documentOrderPath(b)) < 0
}

func evalNodeComparison(op compareOp, lseq, rseq xSequence) (xSequence, error) {
	lIt, lok, err := singletonItem(lseq, "node comparison")
	if err != nil {
		return nil, err
	}
	rIt, rok, err := singletonItem(rseq, "node comparison")
	if err != nil {
		return nil, err
	}
	if !lok || !rok {
		return emptySeq(), nil
	}
	if lIt.kind != xiNode || rIt.kind != xiNode {
		return nil, &TypeError{Op: "node comparison", Msg: "operands must be nodes"}
	}
	switch op {
	case cmpNodeIs:
		return singleton(xBool(lIt.n == rIt.n)), nil
	case cmpNodeBefore:
		return singleton(xBool(nodeOrderLess(lIt.n, rIt.n))), nil
	default:
		return singleton(xBool(nodeOrderLess(rIt.n, lIt.n))), nil
	}
}

func compareAtomicItems(a, b xItem) (int, error) {
	if a.isNumeric() && b.isNumeric() {
		av, bv := a.numericValue(), b.numericValue()
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if a.kind == xiBoolean || b.kind == xiBoolean {
		ab, err := effectiveBooleanValue(singleton(a))
		if err != nil {
			return 0, err
		}
		bb, err := effectiveBooleanValue(singleton(b))
		if err != nil {
			return 0, err
		}
		switch {
		case !ab && bb:
			return -1, nil
		case ab && !bb:
			return 1, nil
		default:
			return 0, nil
		}
	}
	as, err := a.stringValue()
	if err != nil {
		return 0, err
	}
	bs, err := b.stringValue()
	if err != nil {
		return 0, err
	}
	switch {
	case as < bs:
		return -1, nil
	case as > bs:
		return 1, nil
	default:
		return 0, nil
	}
}

func compareOpHolds(op compareOp, cmp int) bool {
	switch op {
	case cmpValueEq, cmpGeneralEq:
		return cmp == 0
	case cmpValueNe, cmpGeneralNe:
		return cmp != 0
	case cmpValueLt, cmpGeneralLt:
		return cmp < 0
	case cmpValueLe, cmpGeneralLe:
		return cmp <= 0
	case cmpValueGt, cmpGeneralGt:
		return cmp > 0
	case cmpValueGe, cmpGeneralGe:
		return cmp >= 0
	default:
		return false
	}
}

func evalValueComparison(op compareOp, lseq, rseq xSequence) (xSequence, error) {
	lIt, lok, err := singletonItem(lseq, "value comparison")
	if err != nil {
		return nil, err
	}
	rIt, rok, err := singletonItem(rseq, "value comparison")
	if err != nil {
		return nil, err
	}
	if !lok || !rok {
		return emptySeq(), nil
	}
	la, err := atomizeItem(lIt)
	if err != nil {
		return nil, err
	}
	ra, err := atomizeItem(rIt)
	if err != nil {
		return nil, err
	}
	cmp, err := compareAtomicItems(la, ra)
	if err != nil {
		return nil, err
	}
	return singleton(xBool(compareOpHolds(op, cmp))), nil
}

// evalGeneralComparison implements the existentially-quantified
// semantics of general comparisons: true if any pair drawn from the two
// atomized operand sequences satisfies the comparison.
func evalGeneralComparison(op compareOp, lseq, rseq xSequence) (xSequence, error) {
	la, err := atomize(lseq)
	if err != nil {
		return nil, err
	}
	ra, err := atomize(rseq)
	if err != nil {
		return nil, err
	}
	for _, a := range la {
		for _, b := range ra {
			cmp, err := compareAtomicItems(a, b)
			if err != nil {
				return nil, err
			}
			if compareOpHolds(op, cmp) {
				return singleton(xBool(true)), nil
			}
		}
	}
	return singleton(xBool(false)), nil
}

func (e compareExprNode) eval(ctx *dynamicContext) (xSequence, error) {
	lseq, err := e.lhs.eval(ctx)
	if err != nil {
		return nil, err
	}
	rseq, err := e.rhs.eval(ctx)
	if err != nil {
		return nil, err
	}
	switch e.op {
	case cmpNodeIs, cmpNodeBefore, cmpNodeAfter:
		return evalNodeComparison(e.op, lseq, rseq)
	case cmpValueEq, cmpValueNe, cmpValueLt, cmpValueLe, cmpValueGt, cmpValueGe:
		return evalValueComparison(e.op, lseq, rseq)
	default:
		return evalGeneralComparison(e.op, lseq, rseq)
	}
}

func (e rangeExprNode) eval(ctx *dynamicContext) (xSequence, error) {
	lseq, err := e.lhs.eval(ctx)
	if err != nil {
		return nil, err
	}
	rseq, err := e.rhs.eval(ctx)
	if err != nil {
		return nil, err
	}
	lIt, lok, err := singletonItem(lseq, "to")
	if err != nil {
		return nil, err
	}
	rIt, rok, err := singletonItem(rseq, "to")
	if err != nil {
		return nil, err
	}
	if !lok || !rok {
		return emptySeq(), nil
	}
	if !lIt.isNumeric() || !rIt.isNumeric() {
		return nil, &TypeError{Op: "to", Msg: "range operands must be numeric"}
	}
	start := int64(lIt.numericValue())
	end := int64(rIt.numericValue())
	if start > end {
		return emptySeq(), nil
	}
	out := make(xSequence, 0, end-start+1)
	for v := start; v <= end; v++ {
		out = append(out, xInt(v))
	}
	return out, nil
}

// ===========================================================================
// Arithmetic
// ===========================================================================

func (e arithExprNode) eval(ctx *dynamicContext) (xSequence, error) {
	lseq, err := e.lhs.eval(ctx)
	if err != nil {
		return nil, err
	}
	rseq, err := e.rhs.eval(ctx)
	if err != nil {
		return nil, err
	}
	lIt, lok, err := singletonItem(lseq, "arithmetic")
	if err != nil {
		return nil, err
	}
	rIt, rok, err := singletonItem(rseq, "arithmetic")
	if err != nil {
		return nil, err
	}
	if !lok || !rok {
		return emptySeq(), nil
	}
	la, err := atomizeItem(lIt)
	if err != nil {
		return nil, err
	}
	ra, err := atomizeItem(rIt)
	if err != nil {
		return nil, err
	}
	var result xItem
	switch e.op {
	case arithAdd:
		result, err = opNumericAdd(la, ra)
	case arithSub:
		result, err = opNumericSubtract(la, ra)
	case arithMul:
		result, err = opNumericMultiply(la, ra)
	case arithDiv:
		result, err = opNumericDivide(la, ra)
	case arithIDiv:
		result, err = opNumericIntegerDivide(la, ra)
	default:
		result, err = opNumericMod(la, ra)
	}
	if err != nil {
		return nil, err
	}
	return singleton(result), nil
}

func (e unaryExprNode) eval(ctx *dynamicContext) (xSequence, error) {
	seq, err := e.operand.eval(ctx)
	if err != nil {
		return nil, err
	}
	it, ok, err := singletonItem(seq, "unary")
	if err != nil {
		return nil, err
	}
	if !ok {
		return emptySeq(), nil
	}
	atomized, err := atomizeItem(it)
	if err != nil {
		return nil, err
	}
	var r xItem
	if e.negative {
		r, err = opNumericUnaryMinus(atomized)
	} else {
		r, err = opNumericUnaryPlus(atomized)
	}
	if err != nil {
		return nil, err
	}
	return singleton(r), nil
}

// ===========================================================================
// Set operators, document order
// ===========================================================================

func sortNodesByDocumentOrder(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodeOrderLess(nodes[i], nodes[j]) })
}

func nodeSeqFromNodes(nodes []Node) xSequence {
	out := make(xSequence, len(nodes))
	for i, n := range nodes {
		out[i] = xNodeItem(n)
	}
	return out
}

func allNodes(seq xSequence) bool {
	for _, it := range seq {
		if it.kind != xiNode {
			return false
		}
	}
	return true
}

func dedupAndSortNodeSeq(seq xSequence) xSequence {
	nodes, _ := nodesOf(seq)
	seen := make(map[Node]bool, len(nodes))
	uniq := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if !seen[n] {
			seen[n] = true
			uniq = append(uniq, n)
		}
	}
	sortNodesByDocumentOrder(uniq)
	return nodeSeqFromNodes(uniq)
}

// combineExprNode.eval always re-sorts union/intersect/except results
// into document order: the original implementation this engine is
// grounded on skips that sort for intersect/except, which this engine
// treats as a bug rather than behavior worth preserving.
func (e combineExprNode) eval(ctx *dynamicContext) (xSequence, error) {
	lseq, err := e.lhs.eval(ctx)
	if err != nil {
		return nil, err
	}
	rseq, err := e.rhs.eval(ctx)
	if err != nil {
		return nil, err
	}
	lnodes, err := nodesOf(lseq)
	if err != nil {
		return nil, err
	}
	rnodes, err := nodesOf(rseq)
	if err != nil {
		return nil, err
	}
	var out []Node
	switch e.op {
	case combineUnion:
		seen := make(map[Node]bool)
		for _, n := range lnodes {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
		for _, n := range rnodes {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	case combineIntersect:
		rset := make(map[Node]bool, len(rnodes))
		for _, n := range rnodes {
			rset[n] = true
		}
		seen := make(map[Node]bool)
		for _, n := range lnodes {
			if rset[n] && !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	default: // combineExcept
		rset := make(map[Node]bool, len(rnodes))
		for _, n := range rnodes {
			rset[n] = true
		}
		seen := make(map[Node]bool)
		for _, n := range lnodes {
			if !rset[n] && !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sortNodesByDocumentOrder(out)
	return nodeSeqFromNodes(out), nil
}

// ===========================================================================
// Paths, steps, axes
// ===========================================================================

func contextRoot(ctx *dynamicContext) (Node, error) {
	if !ctx.hasContext || ctx.contextItem.kind != xiNode {
		return nil, &DynamicError{Op: "path expression", Msg: "no context node to anchor an absolute path"}
	}
	n := ctx.contextItem.n
	for n.ParentNode() != nil {
		n = n.ParentNode()
	}
	return n, nil
}

func (e pathExprNode) eval(ctx *dynamicContext) (xSequence, error) {
	var current xSequence
	if e.absolute {
		root, err := contextRoot(ctx)
		if err != nil {
			return nil, err
		}
		current = singleton(xNodeItem(root))
	} else {
		if !ctx.hasContext {
			return nil, &DynamicError{Op: "path expression", Msg: "no context item"}
		}
		current = singleton(ctx.contextItem)
	}
	if len(e.steps) == 0 {
		return current, nil
	}
	for i, step := range e.steps {
		nodes, err := nodesOf(current)
		if err != nil {
			return nil, &TypeError{Op: "path expression", Msg: "a step's context must be a sequence of nodes"}
		}
		size := len(nodes)
		var next xSequence
		for pos, n := range nodes {
			childCtx := ctx.withContext(xNodeItem(n), pos+1, size)
			r, err := step.eval(childCtx)
			if err != nil {
				return nil, err
			}
			next = append(next, r...)
		}
		if i < len(e.steps)-1 {
			if _, err := nodesOf(next); err != nil {
				return nil, &TypeError{Op: "path expression", Msg: "intermediate path steps must produce nodes"}
			}
			current = dedupAndSortNodeSeq(next)
		} else {
			current = next
		}
	}
	if allNodes(current) {
		return dedupAndSortNodeSeq(current), nil
	}
	return current, nil
}

// subtreePreorder appends n and its descendants in document order.
func subtreePreorder(n Node, out *[]Node) {
	*out = append(*out, n)
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		subtreePreorder(c, out)
	}
}

// reverseSubtree appends n and its descendants in reverse document
// order: children are visited last-to-first, and n itself is appended
// after all of them, so the whole subtree comes out back-to-front.
func reverseSubtree(n Node, out *[]Node) {
	var children []Node
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		children = append(children, c)
	}
	for i := len(children) - 1; i >= 0; i-- {
		reverseSubtree(children[i], out)
	}
	*out = append(*out, n)
}

func descendantNodes(n Node) []Node {
	var out []Node
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		subtreePreorder(c, &out)
	}
	return out
}

// axisNodes implements every axis but namespace (an explicitly
// out-of-scope axis): forward axes are returned in document order,
// reverse axes (parent, ancestor, ancestor-or-self, preceding,
// preceding-sibling) in reverse document order, so that position()
// numbering inside a predicate lines up with each axis's own direction.
func axisNodes(axis axisKind, n Node) ([]Node, error) {
	switch axis {
	case axisSelf:
		return []Node{n}, nil
	case axisChild:
		var out []Node
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			out = append(out, c)
		}
		return out, nil
	case axisDescendant:
		return descendantNodes(n), nil
	case axisDescendantOrSelf:
		out := []Node{n}
		out = append(out, descendantNodes(n)...)
		return out, nil
	case axisParent:
		p := effectiveParent(n)
		if p == nil {
			return nil, nil
		}
		return []Node{p}, nil
	case axisAncestor:
		var out []Node
		for p := effectiveParent(n); p != nil; p = p.ParentNode() {
			out = append(out, p)
		}
		return out, nil
	case axisAncestorOrSelf:
		out := []Node{n}
		for p := effectiveParent(n); p != nil; p = p.ParentNode() {
			out = append(out, p)
		}
		return out, nil
	case axisFollowingSibling:
		var out []Node
		for s := n.NextSibling(); s != nil; s = s.NextSibling() {
			out = append(out, s)
		}
		return out, nil
	case axisPrecedingSibling:
		var out []Node
		for s := n.PreviousSibling(); s != nil; s = s.PreviousSibling() {
			out = append(out, s)
		}
		return out, nil
	case axisFollowing:
		var out []Node
		for cur := n; cur != nil; cur = effectiveParent(cur) {
			for s := cur.NextSibling(); s != nil; s = s.NextSibling() {
				subtreePreorder(s, &out)
			}
		}
		return out, nil
	case axisPreceding:
		var out []Node
		for cur := n; cur != nil; cur = effectiveParent(cur) {
			for s := cur.PreviousSibling(); s != nil; s = s.PreviousSibling() {
				reverseSubtree(s, &out)
			}
		}
		return out, nil
	case axisAttribute:
		attrs := n.Attributes()
		if attrs == nil {
			return nil, nil
		}
		var out []Node
		for i := uint(0); i < attrs.Length(); i++ {
			out = append(out, attrs.Item(i))
		}
		return out, nil
	default:
		return nil, &CannotOccur{Msg: "axisNodes: unhandled axis"}
	}
}

func (e axisStepNode) eval(ctx *dynamicContext) (xSequence, error) {
	if !ctx.hasContext || ctx.contextItem.kind != xiNode {
		return nil, &DynamicError{Op: "axis step", Msg: "no context node"}
	}
	nodes, err := axisNodes(e.axis, ctx.contextItem.n)
	if err != nil {
		return nil, err
	}
	var matched []Node
	for _, n := range nodes {
		if e.test.matches(n) {
			matched = append(matched, n)
		}
	}
	return applyPredicates(ctx, nodeSeqFromNodes(matched), e.predicates)
}

func (e filterStepNode) eval(ctx *dynamicContext) (xSequence, error) {
	seq, err := e.primary.eval(ctx)
	if err != nil {
		return nil, err
	}
	return applyPredicates(ctx, seq, e.predicates)
}

func predicateKeeps(result xSequence, pos int) (bool, error) {
	if len(result) == 1 && result[0].isNumeric() {
		return float64(pos) == result[0].numericValue(), nil
	}
	return effectiveBooleanValue(result)
}

func applyPredicates(ctx *dynamicContext, seq xSequence, preds []exprNode) (xSequence, error) {
	current := seq
	for _, pred := range preds {
		size := len(current)
		var next xSequence
		for i, it := range current {
			childCtx := ctx.withContext(it, i+1, size)
			r, err := pred.eval(childCtx)
			if err != nil {
				return nil, err
			}
			keep, err := predicateKeeps(r, i+1)
			if err != nil {
				return nil, err
			}
			if keep {
				next = append(next, it)
			}
		}
		current = next
	}
	return current, nil
}

// ===========================================================================
// Primary expressions
// ===========================================================================

func (e literalExprNode) eval(ctx *dynamicContext) (xSequence, error) {
	return singleton(e.item), nil
}

func (e varRefExprNode) eval(ctx *dynamicContext) (xSequence, error) {
	v, ok := ctx.lookupVar(e.name)
	if !ok {
		return nil, &StaticError{Msg: "undeclared variable \"$" + e.name + "\""}
	}
	return v, nil
}

func (e contextItemExprNode) eval(ctx *dynamicContext) (xSequence, error) {
	if !ctx.hasContext {
		return nil, &DynamicError{Op: "context item", Msg: "no context item"}
	}
	return singleton(ctx.contextItem), nil
}

func (e functionCallExprNode) eval(ctx *dynamicContext) (xSequence, error) {
	entry, ok := functionCatalog[e.name]
	if !ok {
		return nil, &StaticError{Msg: "unknown function \"" + e.name + "\""}
	}
	args := make([]xSequence, len(e.args))
	for i, a := range e.args {
		v, err := a.eval(ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return entry.call(ctx, args)
}

func (e namedFuncRefExprNode) eval(ctx *dynamicContext) (xSequence, error) {
	return singleton(xFunc(e.name, e.arity)), nil
}

package xmldom

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// functionEntry describes one builtin's arity range and implementation,
// the same map-of-struct shape the DOM collaborator's earlier XPath
// engine used for its function table.
type functionEntry struct {
	minArgs int
	maxArgs int // -1 means unbounded
	call    func(ctx *dynamicContext, args []xSequence) (xSequence, error)
}

// functionCatalog holds every builtin the parser and evaluator can call.
// It is consulted twice: statically, to validate arity at parse time,
// and dynamically, to run the call.
var functionCatalog map[string]*functionEntry

func init() {
	functionCatalog = map[string]*functionEntry{
		"string":                 {0, 1, fnString},
		"data":                   {0, 1, fnData},
		"abs":                    {1, 1, fn1Numeric("abs", numAbs)},
		"ceiling":                {1, 1, fn1Numeric("ceiling", numCeiling)},
		"floor":                  {1, 1, fn1Numeric("floor", numFloor)},
		"round":                  {1, 1, fn1Numeric("round", numRound)},
		"number":                 {0, 1, fnNumber},
		"codepoints-to-string":   {1, 1, fnCodepointsToString},
		"string-to-codepoints":   {1, 1, fnStringToCodepoints},
		"compare":                {2, 2, fnCompare},
		"concat":                 {2, -1, fnConcat},
		"string-join":            {2, 2, fnStringJoin},
		"substring":              {2, 3, fnSubstring},
		"string-length":          {0, 1, fnStringLength},
		"normalize-space":        {0, 1, fnNormalizeSpace},
		"upper-case":             {1, 1, fnUpperCase},
		"lower-case":             {1, 1, fnLowerCase},
		"translate":              {3, 3, fnTranslate},
		"contains":               {2, 2, fnContains},
		"starts-with":            {2, 2, fnStartsWith},
		"ends-with":              {2, 2, fnEndsWith},
		"substring-before":       {2, 2, fnSubstringBefore},
		"substring-after":        {2, 2, fnSubstringAfter},
		"true":                   {0, 0, fnTrue},
		"false":                  {0, 0, fnFalse},
		"boolean":                {1, 1, fnBoolean},
		"not":                    {1, 1, fnNot},
		"name":                   {0, 1, fnName},
		"local-name":             {0, 1, fnLocalName},
		"namespace-uri":          {0, 1, fnNamespaceURI},
		"lang":                   {1, 2, fnLang},
		"root":                   {0, 1, fnRoot},
		"empty":                  {1, 1, fnEmpty},
		"exists":                 {1, 1, fnExists},
		"insert-before":          {3, 3, fnInsertBefore},
		"remove":                 {2, 2, fnRemove},
		"reverse":                {1, 1, fnReverse},
		"subsequence":            {2, 3, fnSubsequence},
		"index-of":               {2, 2, fnIndexOf},
		"zero-or-one":            {1, 1, fnZeroOrOne},
		"one-or-more":            {1, 1, fnOneOrMore},
		"exactly-one":            {1, 1, fnExactlyOne},
		"count":                  {1, 1, fnCount},
		"avg":                    {1, 1, fnAvg},
		"max":                    {1, 1, fnMax},
		"min":                    {1, 1, fnMin},
		"sum":                    {1, 2, fnSum},
		"position":               {0, 0, fnPosition},
		"last":                   {0, 0, fnLast},
		"for-each":               {2, 2, fnForEach},
		"filter":                 {2, 2, fnFilter},
	}
}

// contextOrArgString resolves fn:string-length/normalize-space's
// "default to the context item" argument convention.
func contextOrArgString(ctx *dynamicContext, args []xSequence, op string) (string, error) {
	if len(args) == 0 {
		if !ctx.hasContext {
			return "", &DynamicError{Op: op, Msg: "no context item"}
		}
		return ctx.contextItem.stringValue()
	}
	it, ok, err := singletonItem(args[0], op)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return it.stringValue()
}

func contextOrArgNode(ctx *dynamicContext, args []xSequence, op string) (Node, bool, error) {
	var seq xSequence
	if len(args) == 0 {
		if !ctx.hasContext {
			return nil, false, &DynamicError{Op: op, Msg: "no context item"}
		}
		seq = singleton(ctx.contextItem)
	} else {
		seq = args[0]
	}
	it, ok, err := singletonItem(seq, op)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	if it.kind != xiNode {
		return nil, false, &TypeError{Op: op, Msg: op + "() requires a node argument"}
	}
	return it.n, true, nil
}

func twoStrings(args []xSequence, op string) (string, string, error) {
	aIt, aok, err := singletonItem(args[0], op)
	if err != nil {
		return "", "", err
	}
	bIt, bok, err := singletonItem(args[1], op)
	if err != nil {
		return "", "", err
	}
	var a, b string
	if aok {
		if a, err = aIt.stringValue(); err != nil {
			return "", "", err
		}
	}
	if bok {
		if b, err = bIt.stringValue(); err != nil {
			return "", "", err
		}
	}
	return a, b, nil
}

func fnString(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	var seq xSequence
	if len(args) == 0 {
		if !ctx.hasContext {
			return nil, &DynamicError{Op: "string", Msg: "no context item"}
		}
		seq = singleton(ctx.contextItem)
	} else {
		seq = args[0]
	}
	it, ok, err := singletonItem(seq, "string")
	if err != nil {
		return nil, err
	}
	if !ok {
		return singleton(xStr("")), nil
	}
	s, err := it.stringValue()
	if err != nil {
		return nil, err
	}
	return singleton(xStr(s)), nil
}

func fnData(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	var seq xSequence
	if len(args) == 0 {
		if !ctx.hasContext {
			return nil, &DynamicError{Op: "data", Msg: "no context item"}
		}
		seq = singleton(ctx.contextItem)
	} else {
		seq = args[0]
	}
	return atomize(seq)
}

func fn1Numeric(op string, f func(xItem) (xItem, error)) func(*dynamicContext, []xSequence) (xSequence, error) {
	return func(ctx *dynamicContext, args []xSequence) (xSequence, error) {
		it, ok, err := singletonItem(args[0], op)
		if err != nil {
			return nil, err
		}
		if !ok {
			return emptySeq(), nil
		}
		if !it.isNumeric() {
			return nil, &TypeError{Op: op, Msg: op + "() requires a numeric argument"}
		}
		r, err := f(it)
		if err != nil {
			return nil, err
		}
		return singleton(r), nil
	}
}

func numAbs(it xItem) (xItem, error) {
	v := math.Abs(it.numericValue())
	if it.kind == xiInteger {
		return xInt(int64(v)), nil
	}
	return numericFromKind(it.kind, v), nil
}

func numCeiling(it xItem) (xItem, error) {
	if it.kind == xiInteger {
		return it, nil
	}
	return numericFromKind(it.kind, ceilX(it.numericValue())), nil
}

func numFloor(it xItem) (xItem, error) {
	if it.kind == xiInteger {
		return it, nil
	}
	return numericFromKind(it.kind, floorX(it.numericValue())), nil
}

func numRound(it xItem) (xItem, error) {
	if it.kind == xiInteger {
		return it, nil
	}
	return numericFromKind(it.kind, roundX(it.numericValue())), nil
}

func fnNumber(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	var seq xSequence
	if len(args) == 0 {
		if !ctx.hasContext {
			return nil, &DynamicError{Op: "number", Msg: "no context item"}
		}
		seq = singleton(ctx.contextItem)
	} else {
		seq = args[0]
	}
	it, ok, err := singletonItem(seq, "number")
	if err != nil {
		return nil, err
	}
	if !ok {
		return singleton(xDbl(math.NaN())), nil
	}
	atomized, err := atomizeItem(it)
	if err != nil {
		return nil, err
	}
	if atomized.isNumeric() {
		return singleton(xDbl(atomized.numericValue())), nil
	}
	s, err := atomized.stringValue()
	if err != nil {
		return singleton(xDbl(math.NaN())), nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return singleton(xDbl(math.NaN())), nil
	}
	return singleton(xDbl(f)), nil
}

func fnCodepointsToString(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	var b strings.Builder
	for _, it := range args[0] {
		if it.kind != xiInteger {
			return nil, &TypeError{Op: "codepoints-to-string", Msg: "expects a sequence of integers"}
		}
		r := rune(it.i)
		if !IsValidXMLChar(r) {
			return nil, &DynamicError{Op: "codepoints-to-string", Msg: fmt.Sprintf("0x%x is not a legal XML character", it.i)}
		}
		b.WriteRune(r)
	}
	return singleton(xStr(b.String())), nil
}

func fnStringToCodepoints(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	it, ok, err := singletonItem(args[0], "string-to-codepoints")
	if err != nil {
		return nil, err
	}
	if !ok {
		return emptySeq(), nil
	}
	s, err := it.stringValue()
	if err != nil {
		return nil, err
	}
	var out xSequence
	for _, r := range s {
		out = append(out, xInt(int64(r)))
	}
	return out, nil
}

func fnCompare(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	a, aok, err := singletonItem(args[0], "compare")
	if err != nil {
		return nil, err
	}
	b, bok, err := singletonItem(args[1], "compare")
	if err != nil {
		return nil, err
	}
	if !aok || !bok {
		return emptySeq(), nil
	}
	sa, err := a.stringValue()
	if err != nil {
		return nil, err
	}
	sb, err := b.stringValue()
	if err != nil {
		return nil, err
	}
	switch {
	case sa < sb:
		return singleton(xInt(-1)), nil
	case sa > sb:
		return singleton(xInt(1)), nil
	default:
		return singleton(xInt(0)), nil
	}
}

// fnConcat treats an empty-sequence argument as a zero-length string,
// per the function's definition.
func fnConcat(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	var b strings.Builder
	for _, seq := range args {
		it, ok, err := singletonItem(seq, "concat")
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		s, err := it.stringValue()
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
	}
	return singleton(xStr(b.String())), nil
}

func fnStringJoin(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	sepIt, ok, err := singletonItem(args[1], "string-join")
	if err != nil {
		return nil, err
	}
	sep := ""
	if ok {
		if sep, err = sepIt.stringValue(); err != nil {
			return nil, err
		}
	}
	parts := make([]string, 0, len(args[0]))
	for _, it := range args[0] {
		atomized, err := atomizeItem(it)
		if err != nil {
			return nil, err
		}
		s, err := atomized.stringValue()
		if err != nil {
			return nil, err
		}
		parts = append(parts, s)
	}
	return singleton(xStr(strings.Join(parts, sep))), nil
}

// fnSubstring follows the original implementation's clipping algorithm:
// a NaN boundary collapses the result to "", the start boundary rounds
// per roundX before clipping, and an infinite length runs to the end of
// the string.
func fnSubstring(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	sIt, ok, err := singletonItem(args[0], "substring")
	if err != nil {
		return nil, err
	}
	if !ok {
		return singleton(xStr("")), nil
	}
	s, err := sIt.stringValue()
	if err != nil {
		return nil, err
	}
	runes := []rune(s)

	startIt, _, err := singletonItem(args[1], "substring")
	if err != nil {
		return nil, err
	}
	if !startIt.isNumeric() {
		return nil, &TypeError{Op: "substring", Msg: "start must be numeric"}
	}
	start := startIt.numericValue()

	haveLength := len(args) == 3
	var length float64
	if haveLength {
		lenIt, _, err := singletonItem(args[2], "substring")
		if err != nil {
			return nil, err
		}
		if !lenIt.isNumeric() {
			return nil, &TypeError{Op: "substring", Msg: "length must be numeric"}
		}
		length = lenIt.numericValue()
	}

	if math.IsNaN(start) || (haveLength && math.IsNaN(length)) {
		return singleton(xStr("")), nil
	}

	rs := roundX(start)
	var endExclusive float64
	switch {
	case !haveLength:
		endExclusive = math.Inf(1)
	case math.IsInf(length, 1):
		endExclusive = math.Inf(1)
	default:
		endExclusive = rs + roundX(length)
	}

	first := int(math.Max(rs, 1))
	var last int
	if math.IsInf(endExclusive, 1) {
		last = len(runes) + 1
	} else {
		last = int(math.Min(endExclusive, float64(len(runes)+1)))
	}
	if first > len(runes) || last <= first {
		return singleton(xStr("")), nil
	}
	return singleton(xStr(string(runes[first-1 : last-1]))), nil
}

func fnStringLength(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	s, err := contextOrArgString(ctx, args, "string-length")
	if err != nil {
		return nil, err
	}
	return singleton(xInt(int64(len([]rune(s))))), nil
}

func fnNormalizeSpace(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	s, err := contextOrArgString(ctx, args, "normalize-space")
	if err != nil {
		return nil, err
	}
	return singleton(xStr(strings.Join(strings.Fields(s), " "))), nil
}

func fnUpperCase(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	it, ok, err := singletonItem(args[0], "upper-case")
	if err != nil {
		return nil, err
	}
	if !ok {
		return singleton(xStr("")), nil
	}
	s, err := it.stringValue()
	if err != nil {
		return nil, err
	}
	return singleton(xStr(strings.ToUpper(s))), nil
}

func fnLowerCase(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	it, ok, err := singletonItem(args[0], "lower-case")
	if err != nil {
		return nil, err
	}
	if !ok {
		return singleton(xStr("")), nil
	}
	s, err := it.stringValue()
	if err != nil {
		return nil, err
	}
	return singleton(xStr(strings.ToLower(s))), nil
}

func fnTranslate(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	sIt, sok, err := singletonItem(args[0], "translate")
	if err != nil {
		return nil, err
	}
	mIt, _, err := singletonItem(args[1], "translate")
	if err != nil {
		return nil, err
	}
	tIt, _, err := singletonItem(args[2], "translate")
	if err != nil {
		return nil, err
	}
	if !sok {
		return singleton(xStr("")), nil
	}
	s, err := sIt.stringValue()
	if err != nil {
		return nil, err
	}
	mapStr, err := mIt.stringValue()
	if err != nil {
		return nil, err
	}
	transStr, err := tIt.stringValue()
	if err != nil {
		return nil, err
	}
	mapRunes := []rune(mapStr)
	transRunes := []rune(transStr)
	var b strings.Builder
	for _, r := range s {
		idx := -1
		for i, m := range mapRunes {
			if m == r {
				idx = i
				break
			}
		}
		if idx == -1 {
			b.WriteRune(r)
			continue
		}
		if idx < len(transRunes) {
			b.WriteRune(transRunes[idx])
		}
	}
	return singleton(xStr(b.String())), nil
}

func fnContains(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	a, b, err := twoStrings(args, "contains")
	if err != nil {
		return nil, err
	}
	return singleton(xBool(strings.Contains(a, b))), nil
}

func fnStartsWith(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	a, b, err := twoStrings(args, "starts-with")
	if err != nil {
		return nil, err
	}
	return singleton(xBool(strings.HasPrefix(a, b))), nil
}

func fnEndsWith(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	a, b, err := twoStrings(args, "ends-with")
	if err != nil {
		return nil, err
	}
	return singleton(xBool(strings.HasSuffix(a, b))), nil
}

func fnSubstringBefore(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	a, b, err := twoStrings(args, "substring-before")
	if err != nil {
		return nil, err
	}
	if b == "" {
		return singleton(xStr("")), nil
	}
	idx := strings.Index(a, b)
	if idx < 0 {
		return singleton(xStr("")), nil
	}
	return singleton(xStr(a[:idx])), nil
}

func fnSubstringAfter(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	a, b, err := twoStrings(args, "substring-after")
	if err != nil {
		return nil, err
	}
	if b == "" {
		return singleton(xStr(a)), nil
	}
	idx := strings.Index(a, b)
	if idx < 0 {
		return singleton(xStr("")), nil
	}
	return singleton(xStr(a[idx+len(b):])), nil
}

func fnTrue(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	return singleton(xBool(true)), nil
}

func fnFalse(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	return singleton(xBool(false)), nil
}

func fnBoolean(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	b, err := effectiveBooleanValue(args[0])
	if err != nil {
		return nil, err
	}
	return singleton(xBool(b)), nil
}

func fnNot(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	b, err := effectiveBooleanValue(args[0])
	if err != nil {
		return nil, err
	}
	return singleton(xBool(!b)), nil
}

func fnName(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	n, ok, err := contextOrArgNode(ctx, args, "name")
	if err != nil {
		return nil, err
	}
	if !ok {
		return singleton(xStr("")), nil
	}
	return singleton(xStr(string(n.NodeName()))), nil
}

func fnLocalName(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	n, ok, err := contextOrArgNode(ctx, args, "local-name")
	if err != nil {
		return nil, err
	}
	if !ok {
		return singleton(xStr("")), nil
	}
	return singleton(xStr(string(n.LocalName()))), nil
}

func fnNamespaceURI(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	n, ok, err := contextOrArgNode(ctx, args, "namespace-uri")
	if err != nil {
		return nil, err
	}
	if !ok {
		return singleton(xStr("")), nil
	}
	return singleton(xStr(string(n.NamespaceURI()))), nil
}

// fnLang implements fn:lang by walking up the ancestor chain looking for
// the nearest xml:lang attribute, per the XML specification's language
// identification rules.
func fnLang(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	testIt, ok, err := singletonItem(args[0], "lang")
	if err != nil {
		return nil, err
	}
	test := ""
	if ok {
		if test, err = testIt.stringValue(); err != nil {
			return nil, err
		}
	}
	var n Node
	if len(args) == 2 {
		nIt, nok, err := singletonItem(args[1], "lang")
		if err != nil {
			return nil, err
		}
		if !nok || nIt.kind != xiNode {
			return nil, &TypeError{Op: "lang", Msg: "second argument must be a node"}
		}
		n = nIt.n
	} else {
		if !ctx.hasContext || ctx.contextItem.kind != xiNode {
			return nil, &DynamicError{Op: "lang", Msg: "no context node"}
		}
		n = ctx.contextItem.n
	}
	langVal := ""
	for cur := n; cur != nil; cur = cur.ParentNode() {
		el, ok := cur.(Element)
		if !ok {
			continue
		}
		if v := el.GetAttribute("xml:lang"); v != "" {
			langVal = string(v)
			break
		}
	}
	test = strings.ToLower(test)
	langVal = strings.ToLower(langVal)
	matches := langVal == test || strings.HasPrefix(langVal, test+"-")
	return singleton(xBool(matches)), nil
}

func fnRoot(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	n, ok, err := contextOrArgNode(ctx, args, "root")
	if err != nil {
		return nil, err
	}
	if !ok {
		return emptySeq(), nil
	}
	cur := n
	for cur.ParentNode() != nil {
		cur = cur.ParentNode()
	}
	return singleton(xNodeItem(cur)), nil
}

func fnEmpty(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	return singleton(xBool(len(args[0]) == 0)), nil
}

func fnExists(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	return singleton(xBool(len(args[0]) > 0)), nil
}

func fnInsertBefore(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	target := args[0]
	posIt, ok, err := singletonItem(args[1], "insert-before")
	if err != nil {
		return nil, err
	}
	if !ok || !posIt.isNumeric() {
		return nil, &TypeError{Op: "insert-before", Msg: "position must be a numeric singleton"}
	}
	pos := int(posIt.numericValue())
	if pos < 1 {
		pos = 1
	}
	if pos > len(target)+1 {
		pos = len(target) + 1
	}
	inserts := args[2]
	out := make(xSequence, 0, len(target)+len(inserts))
	out = append(out, target[:pos-1]...)
	out = append(out, inserts...)
	out = append(out, target[pos-1:]...)
	return out, nil
}

func fnRemove(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	seq := args[0]
	posIt, ok, err := singletonItem(args[1], "remove")
	if err != nil {
		return nil, err
	}
	if !ok || !posIt.isNumeric() {
		return nil, &TypeError{Op: "remove", Msg: "position must be a numeric singleton"}
	}
	pos := int(posIt.numericValue())
	if pos < 1 || pos > len(seq) {
		return append(xSequence{}, seq...), nil
	}
	out := make(xSequence, 0, len(seq)-1)
	out = append(out, seq[:pos-1]...)
	out = append(out, seq[pos:]...)
	return out, nil
}

func fnReverse(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	seq := args[0]
	out := make(xSequence, len(seq))
	for i, it := range seq {
		out[len(seq)-1-i] = it
	}
	return out, nil
}

func fnSubsequence(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	seq := args[0]
	startIt, _, err := singletonItem(args[1], "subsequence")
	if err != nil {
		return nil, err
	}
	if !startIt.isNumeric() {
		return nil, &TypeError{Op: "subsequence", Msg: "start must be numeric"}
	}
	start := roundX(startIt.numericValue())
	end := math.Inf(1)
	if len(args) == 3 {
		lenIt, _, err := singletonItem(args[2], "subsequence")
		if err != nil {
			return nil, err
		}
		if !lenIt.isNumeric() {
			return nil, &TypeError{Op: "subsequence", Msg: "length must be numeric"}
		}
		end = start + roundX(lenIt.numericValue())
	}
	first := int(math.Max(start, 1))
	var last int
	if math.IsInf(end, 1) {
		last = len(seq) + 1
	} else {
		last = int(math.Min(end, float64(len(seq)+1)))
	}
	if first > len(seq) || last <= first {
		return emptySeq(), nil
	}
	return append(xSequence{}, seq[first-1:last-1]...), nil
}

func atomicValuesEqual(a, b xItem) (bool, error) {
	aa, err := atomizeItem(a)
	if err != nil {
		return false, err
	}
	bb, err := atomizeItem(b)
	if err != nil {
		return false, err
	}
	if aa.isNumeric() && bb.isNumeric() {
		return aa.numericValue() == bb.numericValue(), nil
	}
	if aa.kind == xiBoolean && bb.kind == xiBoolean {
		return aa.b == bb.b, nil
	}
	as, err := aa.stringValue()
	if err != nil {
		return false, err
	}
	bs, err := bb.stringValue()
	if err != nil {
		return false, err
	}
	return as == bs, nil
}

func fnIndexOf(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	searchIt, ok, err := singletonItem(args[1], "index-of")
	if err != nil {
		return nil, err
	}
	if !ok {
		return emptySeq(), nil
	}
	var out xSequence
	for i, it := range args[0] {
		eq, err := atomicValuesEqual(it, searchIt)
		if err != nil {
			return nil, err
		}
		if eq {
			out = append(out, xInt(int64(i+1)))
		}
	}
	return out, nil
}

func fnZeroOrOne(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	if len(args[0]) > 1 {
		return nil, &DynamicError{Op: "zero-or-one", Msg: "sequence has more than one item"}
	}
	return args[0], nil
}

func fnOneOrMore(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	if len(args[0]) < 1 {
		return nil, &DynamicError{Op: "one-or-more", Msg: "sequence is empty"}
	}
	return args[0], nil
}

func fnExactlyOne(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	if len(args[0]) != 1 {
		return nil, &DynamicError{Op: "exactly-one", Msg: "sequence does not have exactly one item"}
	}
	return args[0], nil
}

func fnCount(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	return singleton(xInt(int64(len(args[0])))), nil
}

func fnAvg(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	atomized, err := atomize(args[0])
	if err != nil {
		return nil, err
	}
	if len(atomized) == 0 {
		return emptySeq(), nil
	}
	sum := 0.0
	kind := xiInteger
	for _, it := range atomized {
		if !it.isNumeric() {
			return nil, &TypeError{Op: "avg", Msg: "avg() requires numeric items"}
		}
		sum += it.numericValue()
		kind = promoteNumericKind(kind, it.kind)
	}
	if kind == xiInteger {
		kind = xiDecimal
	}
	return singleton(numericFromKind(kind, sum/float64(len(atomized)))), nil
}

func fnExtreme(seq xSequence, op string, better func(a, b float64) bool) (xSequence, error) {
	atomized, err := atomize(seq)
	if err != nil {
		return nil, err
	}
	if len(atomized) == 0 {
		return emptySeq(), nil
	}
	best := atomized[0]
	if !best.isNumeric() {
		return nil, &TypeError{Op: op, Msg: op + "() requires numeric items"}
	}
	kind := best.kind
	for _, it := range atomized[1:] {
		if !it.isNumeric() {
			return nil, &TypeError{Op: op, Msg: op + "() requires numeric items"}
		}
		kind = promoteNumericKind(kind, it.kind)
		if better(it.numericValue(), best.numericValue()) {
			best = it
		}
	}
	return singleton(numericFromKind(kind, best.numericValue())), nil
}

func fnMax(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	return fnExtreme(args[0], "max", func(a, b float64) bool { return a > b })
}

func fnMin(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	return fnExtreme(args[0], "min", func(a, b float64) bool { return a < b })
}

func fnSum(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	atomized, err := atomize(args[0])
	if err != nil {
		return nil, err
	}
	if len(atomized) == 0 {
		if len(args) == 2 {
			return append(xSequence{}, args[1]...), nil
		}
		return singleton(xInt(0)), nil
	}
	sum := 0.0
	kind := xiInteger
	for _, it := range atomized {
		if !it.isNumeric() {
			return nil, &TypeError{Op: "sum", Msg: "sum() requires numeric items"}
		}
		sum += it.numericValue()
		kind = promoteNumericKind(kind, it.kind)
	}
	return singleton(numericFromKind(kind, sum)), nil
}

func fnPosition(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	if !ctx.hasContext {
		return nil, &DynamicError{Op: "position", Msg: "position() has no context"}
	}
	return singleton(xInt(int64(ctx.contextPos))), nil
}

func fnLast(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	if !ctx.hasContext {
		return nil, &DynamicError{Op: "last", Msg: "last() has no context"}
	}
	return singleton(xInt(int64(ctx.contextSize))), nil
}

func callFunctionItem(ctx *dynamicContext, fnIt xItem, args []xSequence) (xSequence, error) {
	entry, ok := functionCatalog[fnIt.fn.name]
	if !ok {
		return nil, &DynamicError{Op: "function call", Msg: "unknown function \"" + fnIt.fn.name + "\""}
	}
	if fnIt.fn.arity != len(args) {
		return nil, &DynamicError{Op: "function call", Msg: "arity mismatch calling \"" + fnIt.fn.name + "\""}
	}
	return entry.call(ctx, args)
}

func fnForEach(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	fnIt, ok, err := singletonItem(args[1], "for-each")
	if err != nil {
		return nil, err
	}
	if !ok || fnIt.kind != xiFunction {
		return nil, &TypeError{Op: "for-each", Msg: "second argument must be a function item"}
	}
	var out xSequence
	for _, it := range args[0] {
		r, err := callFunctionItem(ctx, fnIt, []xSequence{singleton(it)})
		if err != nil {
			return nil, err
		}
		out = append(out, r...)
	}
	return out, nil
}

func fnFilter(ctx *dynamicContext, args []xSequence) (xSequence, error) {
	fnIt, ok, err := singletonItem(args[1], "filter")
	if err != nil {
		return nil, err
	}
	if !ok || fnIt.kind != xiFunction {
		return nil, &TypeError{Op: "filter", Msg: "second argument must be a function item"}
	}
	var out xSequence
	for _, it := range args[0] {
		r, err := callFunctionItem(ctx, fnIt, []xSequence{singleton(it)})
		if err != nil {
			return nil, err
		}
		keep, err := effectiveBooleanValue(r)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, it)
		}
	}
	return out, nil
}

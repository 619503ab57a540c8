package xmldom

import (
	"strings"
	"testing"
)

// parseTestXML decodes xmlSrc into a Document, failing the test on any
// parse error. Shared by every xpath_*_test.go file in this package.
func parseTestXML(t *testing.T, xmlSrc string) Document {
	t.Helper()
	doc, err := NewDecoder(strings.NewReader(xmlSrc)).Decode()
	if err != nil {
		t.Fatalf("failed to parse test XML: %v", err)
	}
	return doc
}

func evalXPath(t *testing.T, ctxNode Node, expr string) xSequence {
	t.Helper()
	ast, err := parseXPath(expr)
	if err != nil {
		t.Fatalf("parseXPath(%q): %v", expr, err)
	}
	seq, err := ast.eval(newRootContext(xNodeItem(ctxNode)))
	if err != nil {
		t.Fatalf("eval(%q): %v", expr, err)
	}
	return seq
}

func evalXPathErr(t *testing.T, ctxNode Node, expr string) error {
	t.Helper()
	ast, err := parseXPath(expr)
	if err != nil {
		return err
	}
	_, err = ast.eval(newRootContext(xNodeItem(ctxNode)))
	return err
}

const catalogXML = `<?xml version="1.0"?>
<catalog>
	<book id="1" available="true"><title>Go Programming</title><author>John Doe</author><price>29.99</price></book>
	<book id="2" available="false"><title>XML Processing</title><author>Jane Smith</author><price>39.99</price></book>
	<book id="3" available="true"><title>Learning XPath</title><author>Jane Smith</author><price>19.99</price></book>
	<magazine id="4"><title>Tech Today</title><editor>Bob Wilson</editor></magazine>
</catalog>`

func TestAxisChildAndDescendant(t *testing.T) {
	doc := parseTestXML(t, catalogXML)
	root := doc.DocumentElement()

	books := evalXPath(t, root, "book")
	if len(books) != 3 {
		t.Fatalf("child::book count = %d, want 3", len(books))
	}

	titles := evalXPath(t, root, "descendant::title")
	if len(titles) != 4 {
		t.Fatalf("descendant::title count = %d, want 4", len(titles))
	}
}

func TestAxisAttribute(t *testing.T) {
	doc := parseTestXML(t, catalogXML)
	root := doc.DocumentElement()
	ids := evalXPath(t, root, "book/@id")
	if len(ids) != 3 {
		t.Fatalf("book/@id count = %d, want 3", len(ids))
	}
}

func TestAxisParent(t *testing.T) {
	doc := parseTestXML(t, catalogXML)
	root := doc.DocumentElement()
	title := evalXPath(t, root, "book[1]/title")
	if len(title) != 1 {
		t.Fatalf("expected exactly one title, got %d", len(title))
	}
	parents := evalXPath(t, title[0].n, "parent::book")
	if len(parents) != 1 {
		t.Fatalf("parent::book from a title should find exactly one book, got %d", len(parents))
	}
}

func TestPredicatePositionalAndBoolean(t *testing.T) {
	doc := parseTestXML(t, catalogXML)
	root := doc.DocumentElement()

	first := evalXPath(t, root, "book[1]/title")
	if s, _ := first[0].stringValue(); len(first) != 1 || s != "Go Programming" {
		t.Fatalf("book[1]/title = %#v, want \"Go Programming\"", first)
	}

	last := evalXPath(t, root, "book[last()]/title")
	if s, _ := last[0].stringValue(); len(last) != 1 || s != "Learning XPath" {
		t.Fatalf("book[last()]/title = %#v, want \"Learning XPath\"", last)
	}

	available := evalXPath(t, root, `book[@available = "true"]`)
	if len(available) != 2 {
		t.Fatalf("book[@available='true'] count = %d, want 2", len(available))
	}
}

func TestPathResultIsDocumentOrderedAndDeduped(t *testing.T) {
	doc := parseTestXML(t, catalogXML)
	root := doc.DocumentElement()

	// "//book/author | //book/title" interleaves authors and titles from
	// two separate paths; the result must hold each node once, in
	// document order.
	seq := evalXPath(t, root, "//book/author | //book/title")
	nodes, err := nodesOf(seq)
	if err != nil {
		t.Fatalf("expected a node sequence: %v", err)
	}
	if len(nodes) != 6 {
		t.Fatalf("union of authors and titles should have 6 nodes, got %d", len(nodes))
	}
	for i := 1; i < len(nodes); i++ {
		if !nodeOrderLess(nodes[i-1], nodes[i]) {
			t.Fatalf("result not in strict document order at index %d", i)
		}
	}
}

func TestSetOperatorLaws(t *testing.T) {
	doc := parseTestXML(t, catalogXML)
	root := doc.DocumentElement()

	a := evalXPath(t, root, "//book[@available='true']")
	b := evalXPath(t, root, "//book")

	// A except A = ()
	exceptSelf := evalXPath(t, root, "//book[@available='true'] except //book[@available='true']")
	if len(exceptSelf) != 0 {
		t.Fatalf("A except A should be empty, got %d items", len(exceptSelf))
	}

	// A intersect A = doc-order-dedup(A)
	intersectSelf := evalXPath(t, root, "//book[@available='true'] intersect //book[@available='true']")
	if len(intersectSelf) != len(a) {
		t.Fatalf("A intersect A should have %d items, got %d", len(a), len(intersectSelf))
	}

	// A union B = B union A
	ab := evalXPath(t, root, "//book[@available='true'] union //book")
	ba := evalXPath(t, root, "//book union //book[@available='true']")
	if len(ab) != len(ba) || len(ab) != len(b) {
		t.Fatalf("union should be commutative and equal the superset: len(ab)=%d len(ba)=%d len(b)=%d", len(ab), len(ba), len(b))
	}
}

func TestArithmeticAndRange(t *testing.T) {
	doc := parseTestXML(t, catalogXML)
	root := doc.DocumentElement()

	sum := evalXPath(t, root, "sum(1 to 10)")
	if len(sum) != 1 || sum[0].numericValue() != 55 {
		t.Fatalf("sum(1 to 10) = %v, want 55", sum)
	}

	empty := evalXPath(t, root, "5 to 1")
	if len(empty) != 0 {
		t.Fatalf("5 to 1 should be an empty sequence, got %v", empty)
	}
}

func TestForLetIfQuantifiedEvaluate(t *testing.T) {
	doc := parseTestXML(t, catalogXML)
	root := doc.DocumentElement()

	forResult := evalXPath(t, root, "for $x in (1, 2, 3) return $x * 2")
	want := []int64{2, 4, 6}
	if len(forResult) != len(want) {
		t.Fatalf("for-expr result length = %d, want %d", len(forResult), len(want))
	}
	for i, w := range want {
		if forResult[i].i != w {
			t.Fatalf("for-expr[%d] = %d, want %d", i, forResult[i].i, w)
		}
	}

	letResult := evalXPath(t, root, "let $x := 10 return $x + 1")
	if len(letResult) != 1 || letResult[0].i != 11 {
		t.Fatalf("let-expr result = %v, want 11", letResult)
	}

	ifResult := evalXPath(t, root, "if (1 = 1) then \"yes\" else \"no\"")
	if len(ifResult) != 1 || ifResult[0].s != "yes" {
		t.Fatalf("if-expr result = %v, want \"yes\"", ifResult)
	}

	some := evalXPath(t, root, "some $x in (1, 2, 3) satisfies $x = 2")
	if len(some) != 1 || !some[0].b {
		t.Fatalf("some-expr result = %v, want true", some)
	}

	every := evalXPath(t, root, "every $x in (1, 2, 3) satisfies $x > 0")
	if len(every) != 1 || !every[0].b {
		t.Fatalf("every-expr result = %v, want true", every)
	}
}

func TestGeneralVsValueComparison(t *testing.T) {
	doc := parseTestXML(t, catalogXML)
	root := doc.DocumentElement()

	// General comparison: true if any pair matches.
	general := evalXPath(t, root, "//book/@id = (2, 99)")
	if len(general) != 1 || !general[0].b {
		t.Fatalf("general comparison should find book id 2, got %v", general)
	}

	// Value comparison requires a singleton on both sides.
	err := evalXPathErr(t, root, "//book/@id eq 2")
	if err == nil {
		t.Fatalf("'eq' against a multi-item sequence should be a DynamicError")
	}
}

func TestNodeComparisonIsBeforeAfter(t *testing.T) {
	doc := parseTestXML(t, catalogXML)
	root := doc.DocumentElement()

	isResult := evalXPath(t, root, "book[1] is book[1]")
	if len(isResult) != 1 || !isResult[0].b {
		t.Fatalf("book[1] is book[1] should be true, got %v", isResult)
	}

	before := evalXPath(t, root, "book[1] << book[2]")
	if len(before) != 1 || !before[0].b {
		t.Fatalf("book[1] << book[2] should be true, got %v", before)
	}
}

func TestDynamicErrorNoContextItem(t *testing.T) {
	// The context item expression "." with no context item is a dynamic
	// error; evaluate it directly with a context that has no item.
	ast, err := parseXPath(".")
	if err != nil {
		t.Fatalf("parseXPath: %v", err)
	}
	ctx := &dynamicContext{}
	if _, err := ast.eval(ctx); err == nil {
		t.Fatalf("evaluating '.' with no context item should fail")
	}
}

func TestDeterminismAcrossRepeatedEvaluation(t *testing.T) {
	doc := parseTestXML(t, catalogXML)
	root := doc.DocumentElement()
	a := evalXPath(t, root, "//book/title")
	b := evalXPath(t, root, "//book/title")
	if len(a) != len(b) {
		t.Fatalf("repeated evaluation produced different lengths: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].n != b[i].n {
			t.Fatalf("repeated evaluation diverged at index %d", i)
		}
	}
}

package xmldom

import "testing"

func mustParse(t *testing.T, src string) exprNode {
	t.Helper()
	ast, err := parseXPath(src)
	if err != nil {
		t.Fatalf("parseXPath(%q) failed: %v", src, err)
	}
	return ast
}

func TestParserPrecedence(t *testing.T) {
	// "1 + 2 * 3" must bind as 1 + (2 * 3): an arithExprNode whose rhs is
	// itself a multiplicative arithExprNode.
	ast := mustParse(t, "1 + 2 * 3")
	add, ok := ast.(arithExprNode)
	if !ok || add.op != arithAdd {
		t.Fatalf("top level is not '+': %#v", ast)
	}
	if _, ok := add.lhs.(literalExprNode); !ok {
		t.Fatalf("lhs of + should be a literal, got %#v", add.lhs)
	}
	mul, ok := add.rhs.(arithExprNode)
	if !ok || mul.op != arithMul {
		t.Fatalf("rhs of + should be '*', got %#v", add.rhs)
	}
}

func TestParserComparisonNonAssociative(t *testing.T) {
	if _, err := parseXPath("1 = 2 = 3"); err == nil {
		t.Fatalf("chained comparisons should be a syntax error")
	}
}

func TestParserUnionLowerThanIntersect(t *testing.T) {
	// "a union b intersect c" must bind as "a union (b intersect c)":
	// intersect/except binds tighter than union.
	ast := mustParse(t, "a union b intersect c")
	top, ok := ast.(combineExprNode)
	if !ok || top.op != combineUnion {
		t.Fatalf("top level should be union, got %#v", ast)
	}
	if _, ok := top.rhs.(combineExprNode); !ok {
		t.Fatalf("rhs of union should be an intersect/except node, got %#v", top.rhs)
	}
}

func TestParserPathVsArithmeticAmbiguity(t *testing.T) {
	// "a - b" must be subtraction, not a step named "a" followed by a
	// step named "-b" (XPath reserves '-' as binary here since 'a' is
	// not itself a path-introducing token).
	ast := mustParse(t, "a - b")
	if sub, ok := ast.(arithExprNode); !ok || sub.op != arithSub {
		t.Fatalf("expected subtraction, got %#v", ast)
	}
}

func TestParserAbsoluteVsRelativePath(t *testing.T) {
	abs := mustParse(t, "/a/b")
	p, ok := abs.(pathExprNode)
	if !ok || !p.absolute || len(p.steps) != 2 {
		t.Fatalf("expected absolute 2-step path, got %#v", abs)
	}

	rel := mustParse(t, "a/b")
	p2, ok := rel.(pathExprNode)
	if !ok || p2.absolute || len(p2.steps) != 2 {
		t.Fatalf("expected relative 2-step path, got %#v", rel)
	}

	root := mustParse(t, "/")
	p3, ok := root.(pathExprNode)
	if !ok || !p3.absolute || len(p3.steps) != 0 {
		t.Fatalf("expected bare '/' to be an absolute empty-step path, got %#v", root)
	}
}

func TestParserDescendantOrSelfAbbreviation(t *testing.T) {
	ast := mustParse(t, "//a")
	p, ok := ast.(pathExprNode)
	if !ok || !p.absolute || len(p.steps) != 2 {
		t.Fatalf("expected '//a' to desugar into two absolute steps, got %#v", ast)
	}
	first, ok := p.steps[0].(axisStepNode)
	if !ok || first.axis != axisDescendantOrSelf {
		t.Fatalf("first step of '//a' should be descendant-or-self::node(), got %#v", p.steps[0])
	}
}

func TestParserKindTestVsFunctionCall(t *testing.T) {
	ast := mustParse(t, "node()")
	step, ok := ast.(axisStepNode)
	if !ok {
		t.Fatalf("node() should parse as an axis step with a kind test, got %#v", ast)
	}
	if _, ok := step.test.(kindTest); !ok {
		t.Fatalf("node() test should be a kindTest, got %#v", step.test)
	}

	ast2 := mustParse(t, "true()")
	if _, ok := ast2.(functionCallExprNode); !ok {
		t.Fatalf("true() should parse as a function call, got %#v", ast2)
	}
}

func TestParserKeywordUsableAsElementName(t *testing.T) {
	// Reserved words like "div" and "except" are only keywords at their
	// exact grammar position; elsewhere they are ordinary NCNames.
	ast := mustParse(t, "div/except")
	p, ok := ast.(pathExprNode)
	if !ok || len(p.steps) != 2 {
		t.Fatalf("expected a 2-step relative path, got %#v", ast)
	}
}

func TestParserUnknownFunctionIsStaticError(t *testing.T) {
	_, err := parseXPath("no-such-function(1)")
	if _, ok := err.(*StaticError); !ok {
		t.Fatalf("expected *StaticError for an unknown function, got %v (%T)", err, err)
	}
}

func TestParserBadArityIsStaticError(t *testing.T) {
	_, err := parseXPath("true(1)")
	if _, ok := err.(*StaticError); !ok {
		t.Fatalf("expected *StaticError for a bad-arity call, got %v (%T)", err, err)
	}
}

func TestParserNamedFunctionReference(t *testing.T) {
	ast := mustParse(t, "abs#1")
	ref, ok := ast.(namedFuncRefExprNode)
	if !ok || ref.name != "abs" || ref.arity != 1 {
		t.Fatalf("expected a named function reference abs#1, got %#v", ast)
	}
}

func TestParserForLetIfQuantified(t *testing.T) {
	cases := []string{
		"for $x in (1, 2) return $x",
		"let $x := 1 return $x",
		"if (true()) then 1 else 2",
		"some $x in (1, 2) satisfies $x = 1",
		"every $x in (1, 2) satisfies $x = 1",
	}
	for _, src := range cases {
		if _, err := parseXPath(src); err != nil {
			t.Errorf("parseXPath(%q) failed: %v", src, err)
		}
	}
}

func TestParserTrailingGarbageIsSyntaxError(t *testing.T) {
	if _, err := parseXPath("1 1"); err == nil {
		t.Fatalf("expected a syntax error for trailing input")
	}
}

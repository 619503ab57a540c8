package xmldom

import "testing"

func collectTokens(t *testing.T, src string) []token {
	t.Helper()
	lex := newXPathLexer(src)
	var toks []token
	for tok := range lex.tokens {
		toks = append(toks, tok)
		if tok.kind == tokEOF || tok.kind == tokError {
			break
		}
	}
	return toks
}

func TestLexerBasicTokens(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want []tokenKind
	}{
		{"slash", "/a/b", []tokenKind{tokSlash, tokName, tokSlash, tokName, tokEOF}},
		{"descendant", "//a", []tokenKind{tokSlashSlash, tokName, tokEOF}},
		{"axis", "child::a", []tokenKind{tokName, tokColonColon, tokName, tokEOF}},
		{"predicate", "a[1]", []tokenKind{tokName, tokLBracket, tokInteger, tokRBracket, tokEOF}},
		{"variable", "$foo", []tokenKind{tokVar, tokEOF}},
		{"qualified variable", "$ns:foo", []tokenKind{tokVar, tokEOF}},
		{"comparison operators", "1 eq 2", []tokenKind{tokInteger, tokName, tokInteger, tokEOF}},
		{"node comparisons", "a << b", []tokenKind{tokName, tokLtLt, tokName, tokEOF}},
		{"let binding", "let $x := 1 return $x", []tokenKind{tokName, tokVar, tokAssign, tokInteger, tokName, tokVar, tokEOF}},
		{"wildcard prefix", "*:local", []tokenKind{tokStar, tokColon, tokName, tokEOF}},
		{"wildcard local", "local:*", []tokenKind{tokName, tokEOF}},
		{"named function ref", "abs#1", []tokenKind{tokName, tokHash, tokInteger, tokEOF}},
		{"decimal", "3.14", []tokenKind{tokDecimal, tokEOF}},
		{"double", "1.5e10", []tokenKind{tokDouble, tokEOF}},
		{"integer not double without exponent digits", "1e", []tokenKind{tokInteger, tokName, tokEOF}},
		{"string literal", `"hi"`, []tokenKind{tokString, tokEOF}},
		{"comment skipped", "(: a comment :) 1", []tokenKind{tokInteger, tokEOF}},
		{"nested comment skipped", "(: outer (: inner :) still outer :) 1", []tokenKind{tokInteger, tokEOF}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			toks := collectTokens(t, tc.src)
			if len(toks) != len(tc.want) {
				t.Fatalf("%s: got %d tokens %v, want %d", tc.src, len(toks), toks, len(tc.want))
			}
			for i, k := range tc.want {
				if toks[i].kind != k {
					t.Fatalf("%s: token %d kind = %d, want %d (value %q)", tc.src, i, toks[i].kind, k, toks[i].value)
				}
			}
		})
	}
}

func TestLexerErrors(t *testing.T) {
	cases := []string{
		`"unterminated`,
		"1 ! 2",
		"(: unterminated comment",
	}
	for _, src := range cases {
		toks := collectTokens(t, src)
		last := toks[len(toks)-1]
		if last.kind != tokError {
			t.Fatalf("%q: expected a trailing error token, got %v", src, toks)
		}
	}
}

func TestLexerStringEscaping(t *testing.T) {
	toks := collectTokens(t, `"a""b"`)
	if len(toks) != 2 || toks[0].kind != tokString || toks[0].value != `a"b` {
		t.Fatalf("doubled-quote escape: got %v", toks)
	}
}

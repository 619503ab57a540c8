package xmldom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const functionTestXML = `<root>
	<item n="3">banana</item>
	<item n="1">apple</item>
	<item n="2">cherry</item>
	<empty></empty>
</root>`

func TestStringFunctions(t *testing.T) {
	doc := parseTestXML(t, functionTestXML)
	root := doc.DocumentElement()

	cases := []struct {
		name string
		expr string
		want string
	}{
		{"concat", `concat("foo", "bar", "baz")`, "foobarbaz"},
		{"string-join", `string-join(("a", "b", "c"), "-")`, "a-b-c"},
		{"substring 2-arg", `substring("motorcar", 6)`, "car"},
		{"substring 3-arg", `substring("motorcar", 1, 5)`, "motor"},
		{"substring with fractional clipping", `substring("12345", 1.5, 2.6)`, "234"},
		{"upper-case", `upper-case("abc")`, "ABC"},
		{"lower-case", `lower-case("ABC")`, "abc"},
		{"translate", `translate("bar","abc","ABC")`, "BAr"},
		{"substring-before", `substring-before("tattoo", "attoo")`, "t"},
		{"substring-after", `substring-after("tattoo", "tat")`, "too"},
		{"normalize-space", `normalize-space("  a   b  c ")`, "a b c"},
		{"codepoints-to-string", `codepoints-to-string((65, 66, 67))`, "ABC"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seq := evalXPath(t, root, tc.expr)
			require.Len(t, seq, 1)
			got, err := seq[0].stringValue()
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCodepointsToStringRejectsIllegalXMLChar(t *testing.T) {
	doc := parseTestXML(t, functionTestXML)
	root := doc.DocumentElement()

	err := evalXPathErr(t, root, `codepoints-to-string((65, 0, 66))`)
	require.Error(t, err)

	var dynErr *DynamicError
	require.ErrorAs(t, err, &dynErr)
}

func TestStringPredicateFunctions(t *testing.T) {
	doc := parseTestXML(t, functionTestXML)
	root := doc.DocumentElement()

	cases := []struct {
		name string
		expr string
		want bool
	}{
		{"contains true", `contains("motorcar", "tor")`, true},
		{"contains false", `contains("motorcar", "zzz")`, false},
		{"starts-with true", `starts-with("motorcar", "moto")`, true},
		{"starts-with false", `starts-with("motorcar", "car")`, false},
		{"ends-with true", `ends-with("motorcar", "car")`, true},
		{"ends-with false", `ends-with("motorcar", "moto")`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seq := evalXPath(t, root, tc.expr)
			require.Len(t, seq, 1)
			require.Equal(t, tc.want, seq[0].b)
		})
	}
}

func TestNumericFunctions(t *testing.T) {
	doc := parseTestXML(t, functionTestXML)
	root := doc.DocumentElement()

	cases := []struct {
		name string
		expr string
		want float64
	}{
		{"abs negative", "abs(-5)", 5},
		{"ceiling", "ceiling(3.2)", 4},
		{"floor", "floor(3.8)", 3},
		{"round half up", "round(2.5)", 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seq := evalXPath(t, root, tc.expr)
			require.Len(t, seq, 1)
			require.Equal(t, tc.want, seq[0].numericValue())
		})
	}
}

func TestAggregateFunctions(t *testing.T) {
	doc := parseTestXML(t, functionTestXML)
	root := doc.DocumentElement()

	count := evalXPath(t, root, "count(item)")
	require.Len(t, count, 1)
	require.Equal(t, int64(3), count[0].i)

	sum := evalXPath(t, root, "sum(item/@n)")
	require.Len(t, sum, 1)
	require.Equal(t, float64(6), sum[0].numericValue())

	avg := evalXPath(t, root, "avg(item/@n)")
	require.Len(t, avg, 1)
	require.Equal(t, float64(2), avg[0].numericValue())

	max := evalXPath(t, root, "max(item/@n)")
	require.Len(t, max, 1)
	require.Equal(t, float64(3), max[0].numericValue())

	min := evalXPath(t, root, "min(item/@n)")
	require.Len(t, min, 1)
	require.Equal(t, float64(1), min[0].numericValue())

	sumEmpty := evalXPath(t, root, "sum(empty/item, 0)")
	require.Len(t, sumEmpty, 1)
	require.Equal(t, int64(0), sumEmpty[0].i)
}

func TestSequenceFunctions(t *testing.T) {
	doc := parseTestXML(t, functionTestXML)
	root := doc.DocumentElement()

	require.Len(t, evalXPath(t, root, "empty(empty/item)"), 1)
	require.True(t, evalXPath(t, root, "empty(empty/item)")[0].b)
	require.True(t, evalXPath(t, root, "exists(item)")[0].b)

	reversed := evalXPath(t, root, "reverse((1, 2, 3))")
	require.Len(t, reversed, 3)
	require.Equal(t, int64(3), reversed[0].i)
	require.Equal(t, int64(1), reversed[2].i)

	sub := evalXPath(t, root, "subsequence((1, 2, 3, 4, 5), 2, 3)")
	require.Len(t, sub, 3)
	require.Equal(t, []int64{2, 3, 4}, []int64{sub[0].i, sub[1].i, sub[2].i})

	idx := evalXPath(t, root, `index-of((10, 20, 30, 20), 20)`)
	require.Len(t, idx, 2)
	require.Equal(t, int64(2), idx[0].i)
	require.Equal(t, int64(4), idx[1].i)

	removed := evalXPath(t, root, "remove((1, 2, 3), 2)")
	require.Len(t, removed, 2)
	require.Equal(t, int64(1), removed[0].i)
	require.Equal(t, int64(3), removed[1].i)

	inserted := evalXPath(t, root, `insert-before((1, 2, 3), 2, "x")`)
	require.Len(t, inserted, 4)
	s, err := inserted[1].stringValue()
	require.NoError(t, err)
	require.Equal(t, "x", s)
}

func TestBooleanFunctions(t *testing.T) {
	doc := parseTestXML(t, functionTestXML)
	root := doc.DocumentElement()

	require.True(t, evalXPath(t, root, "true()")[0].b)
	require.False(t, evalXPath(t, root, "false()")[0].b)
	require.False(t, evalXPath(t, root, "not(true())")[0].b)
	require.True(t, evalXPath(t, root, "boolean(1)")[0].b)
	require.False(t, evalXPath(t, root, "boolean(0)")[0].b)
}

func TestNodeNameFunctions(t *testing.T) {
	doc := parseTestXML(t, functionTestXML)
	root := doc.DocumentElement()

	name := evalXPath(t, root, "name(item[1])")
	s, err := name[0].stringValue()
	require.NoError(t, err)
	require.Equal(t, "item", s)

	local := evalXPath(t, root, "local-name(item[1])")
	s, err = local[0].stringValue()
	require.NoError(t, err)
	require.Equal(t, "item", s)
}

func TestForEachAndFilterHigherOrderFunctions(t *testing.T) {
	doc := parseTestXML(t, functionTestXML)
	root := doc.DocumentElement()

	// for-each/filter take a named function reference (abs#1 syntax);
	// this engine has no inline function-literal grammar.
	negated := evalXPath(t, root, "for-each((1, -2, 3), abs#1)")
	require.Len(t, negated, 3)
	require.Equal(t, int64(1), negated[0].i)
	require.Equal(t, int64(2), negated[1].i)
	require.Equal(t, int64(3), negated[2].i)

	notEmpty := evalXPath(t, root, "filter((1, 2), not#1)")
	require.Len(t, notEmpty, 0)
}

func TestCountOnEmptySequenceIsZero(t *testing.T) {
	doc := parseTestXML(t, functionTestXML)
	root := doc.DocumentElement()
	got := evalXPath(t, root, "count(empty/item)")
	require.Len(t, got, 1)
	require.Equal(t, int64(0), got[0].i)
}

func TestExactlyOneRejectsNonSingleton(t *testing.T) {
	doc := parseTestXML(t, functionTestXML)
	root := doc.DocumentElement()
	if err := evalXPathErr(t, root, "exactly-one((1, 2))"); err == nil {
		t.Fatalf("exactly-one() on a 2-item sequence should fail")
	}
	if err := evalXPathErr(t, root, "exactly-one(())"); err == nil {
		t.Fatalf("exactly-one() on an empty sequence should fail")
	}
}

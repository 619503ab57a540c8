package xmldom

import (
	"math"
	"testing"
)

func TestNumericPromotionLattice(t *testing.T) {
	cases := []struct {
		name string
		a, b xItem
		want xItemKind
	}{
		{"integer+integer stays integer", xInt(1), xInt(2), xiInteger},
		{"integer+decimal promotes to decimal", xInt(1), xDec(2.5), xiDecimal},
		{"decimal+double promotes to double", xDec(1.5), xDbl(2.5), xiDouble},
		{"integer+double promotes to double", xInt(1), xDbl(2.5), xiDouble},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := opNumericAdd(tc.a, tc.b)
			if err != nil {
				t.Fatalf("opNumericAdd: %v", err)
			}
			if r.kind != tc.want {
				t.Fatalf("got kind %d, want %d", r.kind, tc.want)
			}
		})
	}
}

func TestIntegerDivideTruncatesTowardZero(t *testing.T) {
	r, err := opNumericIntegerDivide(xInt(-7), xInt(2))
	if err != nil {
		t.Fatalf("idiv: %v", err)
	}
	if r.kind != xiInteger || r.i != -3 {
		t.Fatalf("-7 idiv 2 = %v, want -3", r)
	}
}

func TestDivisionByZero(t *testing.T) {
	if _, err := opNumericDivide(xInt(1), xInt(0)); err == nil {
		t.Fatalf("1 div 0 (non-double) should be a DynamicError")
	}
	r, err := opNumericDivide(xDbl(1), xDbl(0))
	if err != nil {
		t.Fatalf("double division by zero should not error: %v", err)
	}
	if !math.IsInf(r.numericValue(), 1) {
		t.Fatalf("1.0e0 div 0.0e0 should be +Inf, got %v", r.numericValue())
	}
}

func TestSignedZeroRounding(t *testing.T) {
	cases := []struct {
		name string
		f    func(float64) float64
		in   float64
	}{
		{"ceil(-0.5)", ceilX, -0.5},
		{"floor(-0.0)", floorX, math.Copysign(0, -1)},
		{"round(-0.4)", roundX, -0.4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.f(tc.in)
			if got != 0 {
				t.Fatalf("expected a zero result, got %v", got)
			}
			if !math.Signbit(got) {
				t.Fatalf("expected a negative-signed zero for %s, got positive zero", tc.name)
			}
		})
	}
}

func TestRoundTiesTowardPositiveInfinity(t *testing.T) {
	if got := roundX(0.5); got != 1 {
		t.Fatalf("round(0.5) = %v, want 1", got)
	}
	if got := roundX(-0.5); got != 0 || math.Signbit(got) == false {
		t.Fatalf("round(-0.5) = %v, want negative-signed 0", got)
	}
	if got := roundX(2.5); got != 3 {
		t.Fatalf("round(2.5) = %v, want 3", got)
	}
}

func TestEffectiveBooleanValue(t *testing.T) {
	cases := []struct {
		name string
		seq  xSequence
		want bool
	}{
		{"empty sequence is false", emptySeq(), false},
		{"non-empty string is true", singleton(xStr("x")), true},
		{"empty string is false", singleton(xStr("")), false},
		{"zero integer is false", singleton(xInt(0)), false},
		{"nonzero integer is true", singleton(xInt(1)), true},
		{"NaN double is false", singleton(xDbl(math.NaN())), false},
		{"false boolean is false", singleton(xBool(false)), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := effectiveBooleanValue(tc.seq)
			if err != nil {
				t.Fatalf("effectiveBooleanValue: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEffectiveBooleanValueMultiItemNonNodeError(t *testing.T) {
	if _, err := effectiveBooleanValue(xSequence{xInt(1), xInt(2)}); err == nil {
		t.Fatalf("a multi-item non-node sequence should have no effective boolean value")
	}
}

func TestAtomizeNode(t *testing.T) {
	doc := parseTestXML(t, `<root>hello</root>`)
	seq, err := atomize(singleton(xNodeItem(doc.DocumentElement())))
	if err != nil {
		t.Fatalf("atomize: %v", err)
	}
	if len(seq) != 1 || seq[0].kind != xiString || seq[0].s != "hello" {
		t.Fatalf("atomize(root) = %#v, want string \"hello\"", seq)
	}
}

func TestCastItem(t *testing.T) {
	r, err := castItem(xStr("42"), xiInteger)
	if err != nil || r.kind != xiInteger || r.i != 42 {
		t.Fatalf("cast \"42\" as integer failed: %v, %#v", err, r)
	}
	if _, err := castItem(xStr("not a number"), xiInteger); err == nil {
		t.Fatalf("casting a non-numeric string to integer should fail")
	}
}

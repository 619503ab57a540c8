package xmldom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsValidXMLChar(t *testing.T) {
	cases := []struct {
		name string
		r    rune
		want bool
	}{
		{"tab", 0x9, true},
		{"newline", 0xA, true},
		{"carriage return", 0xD, true},
		{"null", 0x0, false},
		{"vertical tab (control, disallowed)", 0xB, false},
		{"space", 0x20, true},
		{"surrogate range start", 0xD800, false},
		{"surrogate range end", 0xDFFF, false},
		{"bmp max", 0xFFFD, true},
		{"non-character FFFE", 0xFFFE, false},
		{"astral min", 0x10000, true},
		{"astral max", 0x10FFFF, true},
		{"past astral max", 0x110000, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, IsValidXMLChar(tc.r))
		})
	}
}

func TestCodepointsToStringUsesIsValidXMLChar(t *testing.T) {
	doc := parseTestXML(t, `<root/>`)
	root := doc.DocumentElement()

	seq := evalXPath(t, root, `codepoints-to-string((72, 105))`)
	require.Len(t, seq, 1)
	s, err := seq[0].stringValue()
	require.NoError(t, err)
	require.Equal(t, "Hi", s)

	err2 := evalXPathErr(t, root, `codepoints-to-string((55296))`)
	require.Error(t, err2)
}

func TestEscapeUnescapeRoundTrip(t *testing.T) {
	const s = "a < b & \"c\" > 'd'"
	require.Equal(t, s, UnescapeString(EscapeString(s)))
}

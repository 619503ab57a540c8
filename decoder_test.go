package xmldom

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeProducesDocumentUsableByXPath(t *testing.T) {
	doc := parseTestXML(t, `<root><child id="1">text</child></root>`)
	root := doc.DocumentElement()
	require.Equal(t, "root", string(root.NodeName()))

	seq := evalXPath(t, root, `child/@id`)
	require.Len(t, seq, 1)
}

func TestParsingErrorWithoutSourceHasNoPosition(t *testing.T) {
	_, err := NewDecoder(strings.NewReader(`<root><xmlns:a>bad</xmlns:a></root>`)).Decode()
	require.Error(t, err)

	var perr *ParsingError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 0, perr.Line)
	require.Contains(t, perr.Error(), "XML parsing error:")
}

func TestParsingErrorFromBytesReaderHasLineColumn(t *testing.T) {
	src := []byte("<root>\n  <xmlns:a>bad</xmlns:a>\n</root>")
	_, err := NewDecoder(bytes.NewReader(src)).Decode()
	require.Error(t, err)

	var perr *ParsingError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 2, perr.Line)
	require.Greater(t, perr.Column, 0)
	require.Contains(t, perr.Error(), "line 2, column")
}

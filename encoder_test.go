package xmldom

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeSequenceMixesNodesAndAtomics(t *testing.T) {
	doc := parseTestXML(t, `<root><item>one</item><item>two</item></root>`)
	root := doc.DocumentElement()

	seq := evalXPath(t, root, `(item, count(item))`)
	require.Len(t, seq, 3)

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).EncodeSequence(seq))

	out := buf.String()
	require.Contains(t, out, "<item>one</item>")
	require.Contains(t, out, "<item>two</item>")
	require.Contains(t, out, "2")
}

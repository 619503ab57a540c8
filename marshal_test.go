package xmldom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const marshalSequenceTestXML = `<catalog>
	<book id="1"><title>Go in Practice</title></book>
	<book id="2"><title>Effective Go</title></book>
</catalog>`

func TestMarshalSequenceNodes(t *testing.T) {
	doc := parseTestXML(t, marshalSequenceTestXML)
	root := doc.DocumentElement()

	seq := evalXPath(t, root, `//title`)
	require.Len(t, seq, 2)

	out, err := MarshalSequence(seq)
	require.NoError(t, err)
	require.Contains(t, string(out), "<title>Go in Practice</title>")
	require.Contains(t, string(out), "<title>Effective Go</title>")
}

func TestMarshalSequenceAtomicValues(t *testing.T) {
	doc := parseTestXML(t, marshalSequenceTestXML)
	root := doc.DocumentElement()

	seq := evalXPath(t, root, `for $a in //book/@id return string($a)`)
	require.Len(t, seq, 2)

	out, err := MarshalSequence(seq)
	require.NoError(t, err)
	require.Equal(t, "1\n2\n", string(out))
}

package gitobject

import (
	"bytes"
	"testing"

	"github.com/nanogit-labs/protocore/gitpack"
	"github.com/stretchr/testify/require"
)

func treeEntryBytes(mode, name string, sha1 [20]byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(mode)
	buf.WriteByte(' ')
	buf.WriteString(name)
	buf.WriteByte(0)
	buf.Write(sha1[:])
	return buf.Bytes()
}

// TestParseTreeMultipleEntries reproduces a tree with a regular file, an
// executable file, and a subdirectory entry, confirming mode/name/sha1 all
// survive the round-trip in declaration order.
func TestParseTreeMultipleEntries(t *testing.T) {
	var blobSha1, exeSha1, subtreeSha1 [20]byte
	for i := range blobSha1 {
		blobSha1[i] = byte(i)
		exeSha1[i] = byte(i + 1)
		subtreeSha1[i] = byte(i + 2)
	}

	var data []byte
	data = append(data, treeEntryBytes("100644", "README.md", blobSha1)...)
	data = append(data, treeEntryBytes("100755", "run.sh", exeSha1)...)
	data = append(data, treeEntryBytes("40000", "src", subtreeSha1)...)

	tree, err := ParseTree(data)
	require.NoError(t, err)
	require.Len(t, tree.Entries, 3)

	require.Equal(t, "100644", tree.Entries[0].Mode)
	require.Equal(t, []byte("README.md"), tree.Entries[0].Name)
	require.Equal(t, blobSha1, tree.Entries[0].Sha1)

	require.Equal(t, "100755", tree.Entries[1].Mode)
	require.Equal(t, "run.sh", string(tree.Entries[1].Name))

	require.Equal(t, "40000", tree.Entries[2].Mode)
	require.Equal(t, "src", string(tree.Entries[2].Name))
	require.Equal(t, subtreeSha1, tree.Entries[2].Sha1)
}

func TestParseTreeEmptyBodyYieldsNoEntries(t *testing.T) {
	tree, err := ParseTree(nil)
	require.NoError(t, err)
	require.Empty(t, tree.Entries)
}

func TestParseTreeTruncatedSha1IsBroken(t *testing.T) {
	data := append([]byte("100644 a.txt\x00"), []byte{1, 2, 3}...) // only 3 of 20 sha1 bytes
	_, err := ParseTree(data)
	require.Error(t, err)
}

func TestParseTreeMissingNameTerminatorIsBroken(t *testing.T) {
	data := []byte("100644 a.txt-no-nul")
	_, err := ParseTree(data)
	require.Error(t, err)
}

func TestParseTreeMissingModeSeparatorIsBroken(t *testing.T) {
	data := []byte("100644notaspace")
	_, err := ParseTree(data)
	require.Error(t, err)
}

func TestDecodeDispatchesTree(t *testing.T) {
	var sha1 [20]byte
	data := treeEntryBytes("100644", "a.txt", sha1)

	decoded, err := Decode(&gitpack.ResolvedObject{Type: gitpack.TypeTree, Data: data})
	require.NoError(t, err)
	tree, ok := decoded.(*Tree)
	require.True(t, ok)
	require.Len(t, tree.Entries, 1)
}

package gitobject

import (
	"bytes"
)

// TreeEntry is one record of a Tree: a mode, a name, and the sha1 of the
// entry's blob/tree/commit (for submodules).
type TreeEntry struct {
	Mode string
	Name []byte
	Sha1 [20]byte
}

// Tree is a Git tree object: an ordered sequence of entries in packing
// order (not necessarily sorted by name in the decoded form, though Git
// writes them sorted).
type Tree struct {
	Entries []TreeEntry
}

// ParseTree decodes a tree object body: repeated
// "<mode> <name>\0<20-byte sha1>" records until EOF.
func ParseTree(data []byte) (*Tree, error) {
	t := &Tree{}
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp < 0 {
			return nil, brokenf("", "tree entry missing mode separator")
		}
		mode := string(data[:sp])
		data = data[sp+1:]

		nul := bytes.IndexByte(data, 0)
		if nul < 0 {
			return nil, brokenf("", "tree entry missing name terminator")
		}
		name := data[:nul]
		data = data[nul+1:]

		if len(data) < 20 {
			return nil, brokenf("", "tree entry sha1 truncated")
		}
		var sha1 [20]byte
		copy(sha1[:], data[:20])
		data = data[20:]

		t.Entries = append(t.Entries, TreeEntry{Mode: mode, Name: append([]byte(nil), name...), Sha1: sha1})
	}
	return t, nil
}

package gitobject

import (
	"bytes"
	"encoding/hex"
	"strings"
)

// Commit is a decoded Git commit object. Parents holds zero (an initial
// commit), one, or many (a merge commit) parent sha1s.
type Commit struct {
	Tree      string
	Parents   []string
	Author    Identity
	Committer Identity
	Message   string
}

// ParseCommit decodes a commit object body: header lines up to the first
// blank line, then the free-form message. The tree header is mandatory and
// must come first; parent headers are optional and may repeat; exactly one
// author and one committer header follow.
func ParseCommit(data []byte) (*Commit, error) {
	headerBlock, message, err := splitHeaderAndMessage(data)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(headerBlock, "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "tree ") {
		return nil, brokenf("", "commit missing mandatory tree header")
	}

	c := &Commit{Message: message}
	c.Tree = strings.TrimPrefix(lines[0], "tree ")
	if len(c.Tree) != 40 || !isHexString(c.Tree) {
		return nil, brokenf("", "commit tree sha1 malformed: %q", c.Tree)
	}

	haveAuthor, haveCommitter := false, false
	for _, line := range lines[1:] {
		switch {
		case strings.HasPrefix(line, "parent "):
			parent := strings.TrimPrefix(line, "parent ")
			if len(parent) != 40 || !isHexString(parent) {
				return nil, brokenf("", "commit parent sha1 malformed: %q", parent)
			}
			c.Parents = append(c.Parents, parent)
		case strings.HasPrefix(line, "author "):
			if haveAuthor {
				return nil, brokenf("", "commit has more than one author header")
			}
			id, err := parseIdentity(strings.TrimPrefix(line, "author "))
			if err != nil {
				return nil, brokenf("", "commit author: %s", err)
			}
			c.Author = id
			haveAuthor = true
		case strings.HasPrefix(line, "committer "):
			if haveCommitter {
				return nil, brokenf("", "commit has more than one committer header")
			}
			id, err := parseIdentity(strings.TrimPrefix(line, "committer "))
			if err != nil {
				return nil, brokenf("", "commit committer: %s", err)
			}
			c.Committer = id
			haveCommitter = true
		}
	}

	if !haveAuthor || !haveCommitter {
		return nil, brokenf("", "commit missing author or committer header")
	}
	return c, nil
}

// splitHeaderAndMessage splits an object body on the first blank line into
// the header block (without trailing newline) and the message that follows.
func splitHeaderAndMessage(data []byte) (header, message string, err error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return "", "", brokenf("", "object body missing header/message separator")
	}
	return string(data[:idx]), string(data[idx+2:]), nil
}

func isHexString(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}

package gitobject

import "strings"

// Tag is a decoded annotated Git tag object.
type Tag struct {
	Object  string
	Type    string
	Tag     string
	Tagger  Identity
	Message string
}

// ParseTag decodes a tag object body: the fixed header order object/type/
// tag/tagger, a blank line, then the message.
func ParseTag(data []byte) (*Tag, error) {
	headerBlock, message, err := splitHeaderAndMessage(data)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(headerBlock, "\n")
	if len(lines) != 4 {
		return nil, brokenf("", "tag header must have exactly 4 lines, got %d", len(lines))
	}

	t := &Tag{Message: message}

	if !strings.HasPrefix(lines[0], "object ") {
		return nil, brokenf("", "tag first header must be 'object', got %q", lines[0])
	}
	t.Object = strings.TrimPrefix(lines[0], "object ")
	if len(t.Object) != 40 || !isHexString(t.Object) {
		return nil, brokenf("", "tag object sha1 malformed: %q", t.Object)
	}

	if !strings.HasPrefix(lines[1], "type ") {
		return nil, brokenf("", "tag second header must be 'type', got %q", lines[1])
	}
	t.Type = strings.TrimPrefix(lines[1], "type ")

	if !strings.HasPrefix(lines[2], "tag ") {
		return nil, brokenf("", "tag third header must be 'tag', got %q", lines[2])
	}
	t.Tag = strings.TrimPrefix(lines[2], "tag ")

	if !strings.HasPrefix(lines[3], "tagger ") {
		return nil, brokenf("", "tag fourth header must be 'tagger', got %q", lines[3])
	}
	id, err := parseIdentity(strings.TrimPrefix(lines[3], "tagger "))
	if err != nil {
		return nil, brokenf("", "tag tagger: %s", err)
	}
	t.Tagger = id

	return t, nil
}

package protocol

import (
	"fmt"
	"strings"
)

// RefName is a validated Git reference name split into its category
// ("heads", "tags", ...) and the remainder after it.
type RefName struct {
	// FullName is the complete refname, "refs/" prefix included ("HEAD"
	// for the HEAD pseudo-ref).
	FullName string
	// Category is the first path segment after "refs/".
	Category string
	// Location is everything after the category, e.g. "main" or
	// "feature/login".
	Location string
}

// HEAD is the one refname that is valid without a "refs/" prefix.
var HEAD = RefName{FullName: "HEAD", Category: "HEAD", Location: "HEAD"}

// refComponentForbidden reports whether r may not appear anywhere in a
// refname component: control bytes, DEL, and the characters git reserves
// for revision syntax and globbing.
func refComponentForbidden(r rune) bool {
	if r < 0x20 || r == 0x7f {
		return true
	}
	switch r {
	case ' ', '~', '^', ':', '?', '*', '[', '\\':
		return true
	}
	return false
}

// ParseRefName validates in against git-check-ref-format and splits it
// into category and location. "HEAD" is accepted as-is; everything else
// must start with "refs/" and contain at least one more slash (so a bare
// "refs/foo" is rejected, but "refs/heads/foo" is not).
func ParseRefName(in string) (RefName, error) {
	if in == "HEAD" {
		return HEAD, nil
	}

	rn := RefName{FullName: in}

	rest, ok := strings.CutPrefix(in, "refs/")
	if !ok {
		return rn, fmt.Errorf("refname %q lacks the refs/ prefix", in)
	}

	sep := strings.IndexByte(rest, '/')
	if sep < 0 {
		return rn, fmt.Errorf("refname %q has no category (want refs/<category>/<name>)", in)
	}

	switch {
	case strings.Contains(rest, ".."):
		return rn, fmt.Errorf("refname %q contains consecutive dots", in)
	case strings.Contains(rest, "@{"):
		return rn, fmt.Errorf("refname %q contains the sequence @{", in)
	case strings.HasSuffix(rest, "."):
		return rn, fmt.Errorf("refname %q ends with a dot", in)
	}

	for _, component := range strings.Split(rest, "/") {
		switch {
		case component == "":
			return rn, fmt.Errorf("refname %q has an empty component", in)
		case component == "@":
			return rn, fmt.Errorf("refname %q has a bare @ component", in)
		case strings.HasPrefix(component, "."):
			return rn, fmt.Errorf("refname %q has a component starting with a dot", in)
		case strings.HasSuffix(component, ".lock"):
			return rn, fmt.Errorf("refname %q has a component ending in .lock", in)
		case strings.ContainsFunc(component, refComponentForbidden):
			return rn, fmt.Errorf("refname %q contains a forbidden character", in)
		}
	}

	rn.Category = rest[:sep]
	rn.Location = rest[sep+1:]
	return rn, nil
}

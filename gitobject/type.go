// Package gitobject decodes the basic Git object forms (tree, commit, tag,
// blob) from the raw bytes produced by gitpack's pack/loose readers.
package gitobject

import (
	"fmt"

	"github.com/nanogit-labs/protocore/gitpack"
)

// brokenf builds the error for any structural decode failure: a
// *gitpack.ObjectBrokenError, which matches gitpack.ErrObjectBroken under
// errors.Is and is what every parser in this package returns.
func brokenf(sha1, format string, args ...any) error {
	return gitpack.NewObjectBrokenError(sha1, fmt.Sprintf(format, args...), nil)
}

// Identity is a commit or tag signature: a name, email, and timestamp.
type Identity struct {
	Name   string
	Email  string
	// Seconds is the raw Unix timestamp as written by the author/committer,
	// not yet adjusted for TZOffset. Use UTCSeconds for the UTC-relative
	// value.
	Seconds  int64
	TZOffset int // signed seconds east of UTC, as declared (e.g. -25200 for -0700)
}

// Decode dispatches a resolved object to the matching parser based on its
// type, returning one of *Commit, *Tree, *Tag, or *Blob.
func Decode(obj *gitpack.ResolvedObject) (any, error) {
	switch obj.Type {
	case gitpack.TypeCommit:
		return ParseCommit(obj.Data)
	case gitpack.TypeTree:
		return ParseTree(obj.Data)
	case gitpack.TypeTag:
		return ParseTag(obj.Data)
	case gitpack.TypeBlob:
		return ParseBlob(obj.Data), nil
	default:
		return nil, brokenf("", "cannot decode non-basic object type %s", obj.Type)
	}
}

package gitpack

import (
	"crypto"
	"fmt"

	"github.com/nanogit-labs/protocore/protocol/hash"
	"github.com/nanogit-labs/protocore/protocol/object"
)

// wireType maps this package's pack-level ObjectType onto protocol/object's
// Type, which knows the "commit"/"tree"/"blob"/"tag" header names used
// when recomputing a Git object's sha1.
func (t ObjectType) wireType() object.Type {
	switch t {
	case TypeCommit:
		return object.TypeCommit
	case TypeTree:
		return object.TypeTree
	case TypeBlob:
		return object.TypeBlob
	case TypeTag:
		return object.TypeTag
	case TypeOfsDelta:
		return object.TypeOfsDelta
	case TypeRefDelta:
		return object.TypeRefDelta
	default:
		return object.TypeInvalid
	}
}

// VerifyHash recomputes the sha1 of a resolved object's "<type> <size>\0"
// header plus content and compares it against the sha1 under which it was
// looked up. It returns an *ObjectBrokenError on mismatch and is how
// ObjectStore.Get cross-checks delta-resolved content when
// WithVerifyHashes is enabled: a chain of thousands of copy/insert
// instructions is exactly the kind of place a single off-by-one would
// otherwise go unnoticed.
func VerifyHash(sha1 string, obj *ResolvedObject) error {
	want, err := hash.FromHex(sha1)
	if err != nil {
		return NewObjectBrokenError(sha1, fmt.Sprintf("sha1 is not valid hex: %v", err), err)
	}

	got, err := hash.Object(crypto.SHA1, obj.Type.wireType(), obj.Data)
	if err != nil {
		return NewObjectBrokenError(sha1, fmt.Sprintf("computing hash: %v", err), err)
	}

	if !got.Is(want) {
		return NewObjectBrokenError(sha1, fmt.Sprintf("hash mismatch: computed %s", got.String()), nil)
	}
	return nil
}

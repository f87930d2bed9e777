package hash

import (
	"crypto"
	"errors"
	"fmt"
	"hash"

	// Register the algorithms Git uses with the crypto package. Git
	// still defaults to sha1.
	//nolint:gosec
	_ "crypto/sha1"
	_ "crypto/sha256"

	"github.com/nanogit-labs/protocore/protocol/object"
)

// ErrUnlinkedAlgorithm is returned for a crypto.Hash whose implementation
// is not linked into the binary.
var ErrUnlinkedAlgorithm = errors.New("hash algorithm not linked into the binary")

// ErrUnhashableType is returned when the object type has no header name:
// deltas and invalid codes are never hashed, only the object they resolve
// to is.
var ErrUnhashableType = errors.New("object type cannot be hashed")

// Hasher streams an object's content into its id. The header is written
// at construction, so callers only write content bytes.
type Hasher struct {
	hash.Hash
}

// NewHasher starts hashing an object of the given type and declared
// content size. The size goes into the header, so it must match the
// number of content bytes subsequently written or the id will be wrong.
func NewHasher(algo crypto.Hash, t object.Type, size int64) (Hasher, error) {
	if !algo.Available() {
		return Hasher{}, ErrUnlinkedAlgorithm
	}
	name, ok := t.HeaderName()
	if !ok {
		return Hasher{}, fmt.Errorf("%w: %s", ErrUnhashableType, t)
	}

	h := Hasher{Hash: algo.New()}
	if _, err := fmt.Fprintf(h, "%s %d\x00", name, size); err != nil {
		return Hasher{}, err
	}
	return h, nil
}

// Object computes the id of a fully materialized object in one call.
func Object(algo crypto.Hash, t object.Type, data []byte) (Hash, error) {
	h, err := NewHasher(algo, t, int64(len(data)))
	if err != nil {
		return Zero, err
	}
	if _, err := h.Write(data); err != nil {
		return Zero, err
	}
	return h.Sum(nil), nil
}

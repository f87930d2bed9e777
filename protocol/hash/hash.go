// Package hash computes Git object ids: the digest of
// "<type> <size>\0<content>" under the repository's hash algorithm
// (sha1 today, sha256 for repositories that have transitioned).
package hash

import (
	"bytes"
	"encoding/hex"
)

// Hash is a raw (binary, not hex) object id.
type Hash []byte

// Zero is the empty hash, returned alongside errors.
var Zero Hash

// FromHex decodes a hex object id. An empty string decodes to Zero.
func FromHex(s string) (Hash, error) {
	if s == "" {
		return Zero, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Zero, err
	}
	return Hash(b), nil
}

// MustFromHex is FromHex for compile-time-constant ids; it panics on
// malformed input and belongs in tests.
func MustFromHex(s string) Hash {
	h, err := FromHex(s)
	if err != nil {
		panic(err)
	}
	return h
}

func (h Hash) String() string {
	return hex.EncodeToString(h)
}

// Is reports whether two hashes carry the same bytes.
func (h Hash) Is(other Hash) bool {
	return bytes.Equal(h, other)
}

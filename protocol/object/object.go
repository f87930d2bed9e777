// Package object defines the Git object type codes shared by packfile
// entries, loose-object headers, and object hashing. The numeric values
// are fixed by the pack format, where the type occupies three bits of the
// first header byte.
package object

import "fmt"

// Type is a Git object type code.
type Type uint8

const (
	TypeInvalid  Type = 0
	TypeCommit   Type = 1
	TypeTree     Type = 2
	TypeBlob     Type = 3
	TypeTag      Type = 4
	TypeReserved Type = 5 // never valid in a well-formed pack
	TypeOfsDelta Type = 6
	TypeRefDelta Type = 7
)

var typeNames = map[Type]string{
	TypeCommit:   "commit",
	TypeTree:     "tree",
	TypeBlob:     "blob",
	TypeTag:      "tag",
	TypeOfsDelta: "ofs-delta",
	TypeRefDelta: "ref-delta",
	TypeReserved: "reserved",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("invalid(%d)", uint8(t))
}

// Basic reports whether t is one of the four content-bearing types, as
// opposed to a delta or an invalid code.
func (t Type) Basic() bool {
	return t >= TypeCommit && t <= TypeTag
}

// HeaderName returns the name written into "<type> <size>\0" object
// headers. Only basic types have one; anything else returns ok=false.
func (t Type) HeaderName() (string, bool) {
	if !t.Basic() {
		return "", false
	}
	return typeNames[t], true
}

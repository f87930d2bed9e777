package gitpack

import (
	"fmt"
	"io"
)

// ObjectType identifies the kind of a Git object, whether stored directly or
// as a delta against a base.
type ObjectType uint8

const (
	// TypeCommit is a commit object.
	TypeCommit ObjectType = 1
	// TypeTree is a tree object.
	TypeTree ObjectType = 2
	// TypeBlob is a blob object.
	TypeBlob ObjectType = 3
	// TypeTag is an annotated tag object.
	TypeTag ObjectType = 4
	// typeReserved (5) is invalid and never produced by a well-formed pack.
	typeReserved ObjectType = 5
	// TypeOfsDelta is a delta against a base identified by a backward pack offset.
	TypeOfsDelta ObjectType = 6
	// TypeRefDelta is a delta against a base identified by sha1.
	TypeRefDelta ObjectType = 7
)

func (t ObjectType) String() string {
	switch t {
	case TypeCommit:
		return "commit"
	case TypeTree:
		return "tree"
	case TypeBlob:
		return "blob"
	case TypeTag:
		return "tag"
	case TypeOfsDelta:
		return "ofs-delta"
	case TypeRefDelta:
		return "ref-delta"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// IsDelta reports whether the type represents a delta against a base object.
func (t ObjectType) IsDelta() bool {
	return t == TypeOfsDelta || t == TypeRefDelta
}

func (t ObjectType) valid() bool {
	switch t {
	case TypeCommit, TypeTree, TypeBlob, TypeTag, TypeOfsDelta, TypeRefDelta:
		return true
	default:
		return false
	}
}

// readObjectHeader decodes the variable-length (type, size) header found at
// the start of every packed or loose-in-pack object: the first byte carries
// a 3-bit type and the low 4 bits of the size, with the high bit of each
// byte signalling a continuation that contributes the next 7 bits of size.
func readObjectHeader(r io.ByteReader) (ObjectType, int64, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, 0, fmt.Errorf("read object header: %w", err)
	}

	typ := ObjectType((first >> 4) & 0x07)
	size := int64(first & 0x0f)
	shift := uint(4)

	for first&0x80 != 0 {
		b, err := r.ReadByte()
		if err != nil {
			return typ, 0, fmt.Errorf("read object header: %w", err)
		}
		size |= int64(b&0x7f) << shift
		shift += 7
		first = b
	}

	if !typ.valid() {
		return typ, size, fmt.Errorf("read object header: invalid type %d", uint8(typ))
	}
	return typ, size, nil
}

// readOfsDeltaOffset decodes the backward pack-offset encoding used by
// OFS_DELTA entries: each continuation byte contributes 7 bits, and every
// byte after the first adds 2^(7*i) to account for the encoding's lack of a
// leading-zero representation.
func readOfsDeltaOffset(r io.ByteReader) (int64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("read ofs-delta offset: %w", err)
	}

	offset := int64(b & 0x7f)
	for b&0x80 != 0 {
		b, err = r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("read ofs-delta offset: %w", err)
		}
		offset = ((offset + 1) << 7) | int64(b&0x7f)
	}
	return offset, nil
}

// readDeltaSize decodes the little-endian, 7-bit-continuation size field
// found at the start of a delta instruction stream (used twice: source size
// then result size).
func readDeltaSize(r io.ByteReader) (int64, error) {
	var size int64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("read delta size: %w", err)
		}
		size |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	return size, nil
}

package gitpack

import (
	"bufio"
	"bytes"
	"fmt"
)

// deltaInstructions holds a fully decoded delta instruction stream: the
// declared source and result sizes (for validation) plus the ordered copy
// and insert operations.
type deltaInstructions struct {
	sourceSize int64
	resultSize int64
	ops        []deltaOp
}

// deltaOp is either a copy from the base object (size > 0, literal == nil)
// or an insert of literal bytes (literal != nil).
type deltaOp struct {
	offset  int64
	size    int64
	literal []byte
}

// parseDeltaInstructions decodes a decompressed delta instruction stream
// (the body that follows the OFS_DELTA reverse offset or the REF_DELTA
// base sha1) into a sequence of copy/insert operations.
func parseDeltaInstructions(data []byte) (*deltaInstructions, error) {
	r := bufio.NewReader(bytes.NewReader(data))

	sourceSize, err := readDeltaSize(r)
	if err != nil {
		return nil, fmt.Errorf("delta source size: %w", err)
	}
	resultSize, err := readDeltaSize(r)
	if err != nil {
		return nil, fmt.Errorf("delta result size: %w", err)
	}

	d := &deltaInstructions{sourceSize: sourceSize, resultSize: resultSize}

	for {
		opcode, err := r.ReadByte()
		if err != nil {
			break
		}

		if opcode == 0 {
			return nil, fmt.Errorf("delta instruction: reserved opcode 0")
		}

		if opcode&0x80 == 0 {
			n := int(opcode & 0x7f)
			buf := make([]byte, n)
			if _, err := readFull(r, buf); err != nil {
				return nil, fmt.Errorf("delta insert: %w", err)
			}
			d.ops = append(d.ops, deltaOp{literal: buf})
			continue
		}

		var offset, size int64
		for i, mask := range []byte{0x01, 0x02, 0x04, 0x08} {
			if opcode&mask != 0 {
				b, err := r.ReadByte()
				if err != nil {
					return nil, fmt.Errorf("delta copy offset byte %d: %w", i, err)
				}
				offset |= int64(b) << (8 * i)
			}
		}
		for i, mask := range []byte{0x10, 0x20, 0x40} {
			if opcode&mask != 0 {
				b, err := r.ReadByte()
				if err != nil {
					return nil, fmt.Errorf("delta copy size byte %d: %w", i, err)
				}
				size |= int64(b) << (8 * i)
			}
		}
		if size == 0 {
			size = 0x10000
		}
		d.ops = append(d.ops, deltaOp{offset: offset, size: size})
	}

	return d, nil
}

// applyDelta reconstructs an object by replaying delta instructions against
// a fully materialized base buffer.
func applyDelta(base []byte, d *deltaInstructions) ([]byte, error) {
	if int64(len(base)) != d.sourceSize {
		return nil, fmt.Errorf("delta base size mismatch: have %d, want %d", len(base), d.sourceSize)
	}

	result := make([]byte, 0, d.resultSize)
	for _, op := range d.ops {
		if op.literal != nil {
			result = append(result, op.literal...)
			continue
		}
		if op.offset < 0 || op.size < 0 || op.offset+op.size > int64(len(base)) {
			return nil, fmt.Errorf("delta copy out of bounds: offset=%d size=%d base=%d", op.offset, op.size, len(base))
		}
		result = append(result, base[op.offset:op.offset+op.size]...)
	}

	if int64(len(result)) != d.resultSize {
		return nil, fmt.Errorf("delta result size mismatch: have %d, want %d", len(result), d.resultSize)
	}
	return result, nil
}

func readFull(r interface{ ReadByte() (byte, error) }, buf []byte) (int, error) {
	for i := range buf {
		b, err := r.ReadByte()
		if err != nil {
			return i, err
		}
		buf[i] = b
	}
	return len(buf), nil
}

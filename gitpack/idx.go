package gitpack

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
)

var idxMagic = [4]byte{0xff, 0x74, 0x4f, 0x63}

// PackIndex is the parsed form of a .idx (version 2) file: a bidirectional
// map between a pack's sha1 entries and their offsets into the paired
// .pack file.
type PackIndex struct {
	path         string
	offsetBySha  map[string]int64
	sha1ByOffset map[int64]string
}

// readPackIndex parses a version-2 .idx file in full.
func readPackIndex(path string) (*PackIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read idx %s: %w", path, err)
	}

	if len(data) < 8+256*4+20+20 {
		return nil, NewPackBrokenError(path, 0, "idx file too short", nil)
	}
	if [4]byte(data[0:4]) != idxMagic {
		return nil, NewPackBrokenError(path, 0, "idx magic mismatch", nil)
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != 2 {
		return nil, NewPackBrokenError(path, 0, fmt.Sprintf("unsupported idx version %d", version), nil)
	}

	fanout := data[8 : 8+256*4]
	nobjs := int(binary.BigEndian.Uint32(fanout[255*4 : 255*4+4]))
	if len(data) < 8+256*4+nobjs*(20+4+4)+20+20 {
		return nil, NewPackBrokenError(path, 0, "idx file too short for its object count", nil)
	}

	pos := 8 + 256*4
	shaTable := data[pos : pos+nobjs*20]
	pos += nobjs * 20
	pos += nobjs * 4 // crc32 table, unused (read-only consumer, not validating pack integrity beyond delta size checks)
	offsetTable := data[pos : pos+nobjs*4]
	pos += nobjs * 4

	var largeTable []byte
	remaining := len(data) - pos - 20 - 20
	if remaining > 0 {
		largeTable = data[pos : pos+remaining]
	}

	idx := &PackIndex{
		path:         path,
		offsetBySha:  make(map[string]int64, nobjs),
		sha1ByOffset: make(map[int64]string, nobjs),
	}

	for i := 0; i < nobjs; i++ {
		sha1 := hex.EncodeToString(shaTable[i*20 : i*20+20])
		rawOffset := binary.BigEndian.Uint32(offsetTable[i*4 : i*4+4])

		var offset int64
		if rawOffset&0x80000000 != 0 {
			largeIdx := int(rawOffset &^ 0x80000000)
			if (largeIdx+1)*8 > len(largeTable) {
				return nil, NewPackBrokenError(path, 0, "idx large-offset table truncated", nil)
			}
			offset = int64(binary.BigEndian.Uint64(largeTable[largeIdx*8 : largeIdx*8+8]))
		} else {
			offset = int64(rawOffset)
		}

		idx.offsetBySha[sha1] = offset
		idx.sha1ByOffset[offset] = sha1
	}

	return idx, nil
}

// Offset returns the pack offset for a sha1, if present in this index.
func (idx *PackIndex) Offset(sha1 string) (int64, bool) {
	off, ok := idx.offsetBySha[sha1]
	return off, ok
}

// Sha1 returns the sha1 stored at a pack offset, if present in this index.
func (idx *PackIndex) Sha1(offset int64) (string, bool) {
	sha1, ok := idx.sha1ByOffset[offset]
	return sha1, ok
}

// Len returns the number of objects indexed.
func (idx *PackIndex) Len() int {
	return len(idx.offsetBySha)
}

package gitpack

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zlib"
)

// DefaultLazyThreshold is the uncompressed object size above which a
// PackReader re-inflates from disk on every access instead of keeping the
// materialized bytes cached in memory.
const DefaultLazyThreshold = 1 << 20 // 1 MiB

// PackedObject is a single object read out of a pack, decoded only as far
// as its type/size header and (for deltas) base reference. Delta bodies are
// left as raw instruction bytes for the DeltaResolver to apply.
type PackedObject struct {
	Offset int64
	Type   ObjectType
	Size   int64 // declared uncompressed size

	// Data holds the inflated bytes: the object content for basic types, or
	// the delta instruction stream (source size, result size, ops) for
	// OfsDelta/RefDelta.
	Data []byte

	// BaseOffset is set for OfsDelta: the pack offset of the base object.
	BaseOffset int64
	// BaseSha1 is set for RefDelta: the hex sha1 of the base object.
	BaseSha1 string
}

// PackReader reads objects out of one paired .pack/.idx file.
type PackReader struct {
	PackPath string
	IdxPath  string
	ModTime  time.Time

	idx *PackIndex

	mu            sync.Mutex
	lazyThreshold int64
	cache         map[int64]*PackedObject
}

// OpenPackReader opens a .pack file and its paired .idx (same path with the
// .idx extension) and parses the index fully. The pack file itself is only
// opened per-read; OpenPackReader never holds a long-lived file handle.
func OpenPackReader(packPath string, lazyThreshold int64) (*PackReader, error) {
	if lazyThreshold <= 0 {
		lazyThreshold = DefaultLazyThreshold
	}
	idxPath := strings.TrimSuffix(packPath, ".pack") + ".idx"

	idx, err := readPackIndex(idxPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(packPath)
	if err != nil {
		return nil, fmt.Errorf("stat pack %s: %w", packPath, err)
	}

	f, err := os.Open(packPath)
	if err != nil {
		return nil, fmt.Errorf("open pack %s: %w", packPath, err)
	}
	declared, err := readPackHeader(f)
	f.Close()
	if err != nil {
		return nil, NewPackBrokenError(packPath, 0, "pack header invalid", err)
	}
	if int(declared) != idx.Len() {
		return nil, NewPackBrokenError(packPath, 0, fmt.Sprintf("pack declares %d objects but idx carries %d", declared, idx.Len()), nil)
	}

	return &PackReader{
		PackPath:      packPath,
		IdxPath:       idxPath,
		ModTime:       info.ModTime(),
		idx:           idx,
		lazyThreshold: lazyThreshold,
		cache:         make(map[int64]*PackedObject),
	}, nil
}

// ScanPackDir pairs every .pack file under dir with its .idx sibling and
// returns readers sorted by mtime ascending, so later merges (ObjectStore)
// give precedence to the newest pack.
func ScanPackDir(dir string, lazyThreshold int64) ([]*PackReader, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan pack dir %s: %w", dir, err)
	}

	var readers []*PackReader
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pack") {
			continue
		}
		packPath := filepath.Join(dir, e.Name())
		idxPath := strings.TrimSuffix(packPath, ".pack") + ".idx"
		if _, err := os.Stat(idxPath); err != nil {
			continue // unpaired pack, skip
		}
		r, err := OpenPackReader(packPath, lazyThreshold)
		if err != nil {
			return nil, err
		}
		readers = append(readers, r)
	}

	sort.Slice(readers, func(i, j int) bool {
		return readers[i].ModTime.Before(readers[j].ModTime)
	})
	return readers, nil
}

// Offset returns the pack offset for a sha1, if present in this pack.
func (r *PackReader) Offset(sha1 string) (int64, bool) {
	return r.idx.Offset(sha1)
}

// Sha1At returns the sha1 stored at a pack offset, if present in this pack.
func (r *PackReader) Sha1At(offset int64) (string, bool) {
	return r.idx.Sha1(offset)
}

// Has reports whether the given sha1 is indexed by this pack.
func (r *PackReader) Has(sha1 string) bool {
	_, ok := r.idx.Offset(sha1)
	return ok
}

// ReadAt reads and inflates the object at the given pack offset. Objects at
// or below the lazy threshold are memoized; larger ones are re-read from
// disk on every call to bound memory use.
func (r *PackReader) ReadAt(offset int64) (*PackedObject, error) {
	r.mu.Lock()
	if cached, ok := r.cache[offset]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	obj, err := r.readAtUncached(offset)
	if err != nil {
		return nil, err
	}

	if obj.Size <= r.lazyThreshold {
		r.mu.Lock()
		// A second concurrent inflate of the same offset is tolerated:
		// whichever finishes last overwrites the cache entry with an
		// equivalent value.
		r.cache[offset] = obj
		r.mu.Unlock()
	}
	return obj, nil
}

func (r *PackReader) readAtUncached(offset int64) (*PackedObject, error) {
	f, err := os.Open(r.PackPath)
	if err != nil {
		return nil, fmt.Errorf("open pack %s: %w", r.PackPath, err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, NewPackBrokenError(r.PackPath, offset, "seek failed", err)
	}

	br := bufio.NewReader(f)
	typ, size, err := readObjectHeader(br)
	if err != nil {
		return nil, NewPackBrokenError(r.PackPath, offset, "object header decode failed", err)
	}

	obj := &PackedObject{Offset: offset, Type: typ, Size: size}

	switch typ {
	case TypeOfsDelta:
		rel, err := readOfsDeltaOffset(br)
		if err != nil {
			return nil, NewPackBrokenError(r.PackPath, offset, "ofs-delta offset decode failed", err)
		}
		base := offset - rel
		if base <= 0 {
			return nil, NewPackBrokenError(r.PackPath, offset, fmt.Sprintf("ofs-delta base offset underflow: %d - %d", offset, rel), nil)
		}
		obj.BaseOffset = base
	case TypeRefDelta:
		var sha [20]byte
		if _, err := io.ReadFull(br, sha[:]); err != nil {
			return nil, NewPackBrokenError(r.PackPath, offset, "ref-delta base sha1 truncated", err)
		}
		obj.BaseSha1 = hex.EncodeToString(sha[:])
	}

	zr, err := zlib.NewReader(br)
	if err != nil {
		return nil, NewPackBrokenError(r.PackPath, offset, "zlib header invalid", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, NewPackBrokenError(r.PackPath, offset, "zlib inflate failed", err)
	}
	obj.Data = data
	return obj, nil
}

// readPackHeader reads only the pack file's leading 12-byte header and returns the
// declared object count, validating the PACK signature and version.
func readPackHeader(r io.Reader) (uint32, error) {
	var buf [12]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("read pack header: %w", err)
	}
	if string(buf[0:4]) != "PACK" {
		return 0, fmt.Errorf("read pack header: bad signature %q", buf[0:4])
	}
	version := binary.BigEndian.Uint32(buf[4:8])
	if version != 2 && version != 3 {
		return 0, fmt.Errorf("read pack header: unsupported version %d", version)
	}
	return binary.BigEndian.Uint32(buf[8:12]), nil
}

package gitpack

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// LooseReader enumerates loose objects under .git/objects/XX/Y...Y and
// inflates them on demand. Entries are discovered lazily: only the sha1 and
// path are remembered until Read is asked for the content.
type LooseReader struct {
	objectsDir string

	mu    sync.Mutex
	paths map[string]string // sha1 -> absolute path, populated by Scan
}

// OpenLooseReader prepares a LooseReader rooted at a .git/objects directory
// (the parent of the two-hex-digit fan-out subdirectories). Call Scan to
// populate the sha1 -> path index.
func OpenLooseReader(objectsDir string) *LooseReader {
	return &LooseReader{objectsDir: objectsDir, paths: make(map[string]string)}
}

// Scan walks the fan-out directories and records every 38-hex-digit loose
// object file found. It is safe to call again to pick up newly written
// objects (though this module is read-only and never writes any).
func (l *LooseReader) Scan() error {
	entries, err := os.ReadDir(l.objectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("scan loose objects %s: %w", l.objectsDir, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, dir := range entries {
		if !dir.IsDir() || len(dir.Name()) != 2 || !isHex(dir.Name()) {
			continue
		}
		sub := filepath.Join(l.objectsDir, dir.Name())
		files, err := os.ReadDir(sub)
		if err != nil {
			return fmt.Errorf("scan loose objects %s: %w", sub, err)
		}
		for _, f := range files {
			if f.IsDir() || len(f.Name()) != 38 || !isHex(f.Name()) {
				continue
			}
			l.paths[dir.Name()+f.Name()] = filepath.Join(sub, f.Name())
		}
	}
	return nil
}

func isHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// Has reports whether a sha1 is a known loose object.
func (l *LooseReader) Has(sha1 string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.paths[sha1]
	return ok
}

// ModTime returns the os.FileInfo of the loose object file (its ModTime
// method gives the on-disk modification time), or false when the sha1 is
// not a known loose object or the file cannot be stat'ed.
func (l *LooseReader) ModTime(sha1 string) (os.FileInfo, bool) {
	l.mu.Lock()
	path, ok := l.paths[sha1]
	l.mu.Unlock()
	if !ok {
		return nil, false
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	return info, true
}

// Read inflates the loose object and parses its "<type> <size>\0" header,
// returning the decoded type and the body bytes following the header.
func (l *LooseReader) Read(sha1 string) (ObjectType, []byte, error) {
	l.mu.Lock()
	path, ok := l.paths[sha1]
	l.mu.Unlock()
	if !ok {
		return 0, nil, NewObjectBrokenError(sha1, "loose object not found", nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, nil, NewObjectBrokenError(sha1, "open loose object failed", err)
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return 0, nil, NewObjectBrokenError(sha1, "zlib header invalid", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return 0, nil, NewObjectBrokenError(sha1, "zlib inflate failed", err)
	}

	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return 0, nil, NewObjectBrokenError(sha1, "loose object header missing NUL terminator", nil)
	}
	header := string(raw[:nul])
	sp := bytes.IndexByte([]byte(header), ' ')
	if sp < 0 {
		return 0, nil, NewObjectBrokenError(sha1, "loose object header missing space", nil)
	}
	typeName, sizeStr := header[:sp], header[sp+1:]

	typ, err := looseTypeFromName(typeName)
	if err != nil {
		return 0, nil, NewObjectBrokenError(sha1, err.Error(), nil)
	}

	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return 0, nil, NewObjectBrokenError(sha1, "loose object header size not numeric", err)
	}

	body := raw[nul+1:]
	if int64(len(body)) != size {
		return 0, nil, NewObjectBrokenError(sha1, fmt.Sprintf("loose object size mismatch: have %d, want %d", len(body), size), nil)
	}

	return typ, body, nil
}

func looseTypeFromName(name string) (ObjectType, error) {
	switch name {
	case "commit":
		return TypeCommit, nil
	case "tree":
		return TypeTree, nil
	case "blob":
		return TypeBlob, nil
	case "tag":
		return TypeTag, nil
	default:
		return 0, fmt.Errorf("loose object header unknown type %q", name)
	}
}

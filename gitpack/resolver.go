package gitpack

import "fmt"

// ResolvedObject is a fully materialized Git object: a basic type (commit,
// tree, blob, or tag) with its complete content, the result of walking any
// delta chain needed to produce it.
type ResolvedObject struct {
	Type ObjectType
	Data []byte
}

// chainStep is one link queued while walking a delta chain: either a
// pack-relative link (ofs-delta, stays within the same pack) or a sha1 link
// (ref-delta, resolved fresh against the whole store).
type chainStep struct {
	sha1   string
	pack   *PackReader
	offset int64
	delta  *PackedObject
}

// resolve walks the delta chain rooted at sha1 iteratively (never
// recursively — chains in real repositories can run past the depth a Go
// goroutine stack would comfortably recurse) until it reaches a basic
// object, then replays the queued deltas in reverse (base-first) order.
func (s *ObjectStore) resolve(sha1 string) (*ResolvedObject, error) {
	if cached, ok := s.getCached(sha1); ok {
		return cached, nil
	}

	var chain []chainStep
	visited := map[string]bool{}
	curSha1 := sha1

	var base *ResolvedObject

	for {
		if curSha1 != "" {
			if cached, ok := s.getCached(curSha1); ok {
				base = cached
				break
			}
			if visited[curSha1] {
				return nil, NewPackBrokenError("", 0, fmt.Sprintf("circular delta chain at %s", curSha1), nil)
			}
			visited[curSha1] = true
		}

		if len(chain) > 100000 {
			return nil, NewPackBrokenError("", 0, "delta chain exceeds sanity limit", nil)
		}

		pack, offset, loose, found := s.locate(curSha1)
		if !found {
			return nil, NewObjectBrokenError(curSha1, "object not found in store", nil)
		}

		if loose {
			typ, data, err := s.loose.Read(curSha1)
			if err != nil {
				return nil, err
			}
			base = &ResolvedObject{Type: typ, Data: data}
			break
		}

		obj, err := pack.ReadAt(offset)
		if err != nil {
			return nil, err
		}

		if !obj.Type.IsDelta() {
			base = &ResolvedObject{Type: obj.Type, Data: obj.Data}
			break
		}

		chain = append(chain, chainStep{sha1: curSha1, pack: pack, offset: offset, delta: obj})

		switch obj.Type {
		case TypeOfsDelta:
			baseSha1, ok := pack.Sha1At(obj.BaseOffset)
			if !ok {
				return nil, NewPackBrokenError(pack.PackPath, obj.BaseOffset, "ofs-delta base offset not indexed", nil)
			}
			curSha1 = baseSha1
		case TypeRefDelta:
			curSha1 = obj.BaseSha1
		}
	}

	// Replay base-first: the chain was pushed walking tip-to-base, so
	// chain[len-1] is the delta nearest the base and applies first.
	for i := len(chain) - 1; i >= 0; i-- {
		step := chain[i]
		instr, err := parseDeltaInstructions(step.delta.Data)
		if err != nil {
			return nil, NewObjectBrokenError(step.sha1, "delta instruction stream invalid", err)
		}
		data, err := applyDelta(base.Data, instr)
		if err != nil {
			return nil, NewObjectBrokenError(step.sha1, "delta apply failed", err)
		}
		// A delta never changes the object's type: the result inherits the
		// type of the ultimate base of the chain.
		resolved := &ResolvedObject{Type: base.Type, Data: data}
		s.putCached(step.sha1, resolved)
		base = resolved
	}

	if sha1 != "" {
		s.putCached(sha1, base)
	}
	return base, nil
}

// Package hashtree implements a rooted hash tree mirroring the entity
// parent relation: a synthetic super-root whose children are every
// entity with an empty parent id, and every other node parented by the
// node whose entity id matches the entity's parent id. Each node's hash
// folds its own entity hash together with its sorted children's hashes,
// so the super-root's hash is a single digest over the whole forest.
package hashtree

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/foliavcs/folia/entity"
)

var hashPrefix = cid.Prefix{
	Version:  1,
	Codec:    cid.Raw,
	MhType:   multihash.SHA2_256,
	MhLength: -1,
}

// Hash is a content address over a canonical byte form, wrapped as a CID
// so it can travel alongside other content-addressed data without losing
// its codec/hash-function provenance.
type Hash struct {
	cid cid.Cid
}

// ErrDepthExceeded mirrors entity.ErrDepthExceeded for hash-tree-local
// canonicalization failures.
var ErrDepthExceeded = errors.New("hashtree: value exceeds max depth")

// Sum hashes raw bytes into a Hash.
func Sum(data []byte) (Hash, error) {
	c, err := hashPrefix.Sum(data)
	if err != nil {
		return Hash{}, fmt.Errorf("hashtree: sum: %w", err)
	}
	return Hash{cid: c}, nil
}

// wrapDigest wraps an already-computed SHA-256 digest as a Hash, without
// hashing it again. Used by combine, which needs the composite digest
// itself to be exactly SHA-256(dataHash || childHashes...).
func wrapDigest(digest []byte) (Hash, error) {
	mh, err := multihash.Encode(digest, multihash.SHA2_256)
	if err != nil {
		return Hash{}, fmt.Errorf("hashtree: wrap digest: %w", err)
	}
	return Hash{cid: cid.NewCidV1(cid.Raw, mh)}, nil
}

// IsZero reports whether h has never been assigned.
func (h Hash) IsZero() bool {
	return !h.cid.Defined()
}

// String returns the CID string form.
func (h Hash) String() string {
	if h.IsZero() {
		return ""
	}
	return h.cid.String()
}

// Bytes returns the raw digest bytes (without multihash/CID framing),
// used as an input to composite hashing.
func (h Hash) Bytes() []byte {
	if h.IsZero() {
		return nil
	}
	dmh, err := multihash.Decode(h.cid.Hash())
	if err != nil {
		return h.cid.Bytes()
	}
	return dmh.Digest
}

// Equal compares two Hashes.
func (h Hash) Equal(other Hash) bool {
	return h.cid.Equals(other.cid)
}

// MarshalJSON renders the zero Hash as null and any other as its CID string,
// so Hash travels safely inside commits persisted to JSON-backed adapters.
func (h Hash) MarshalJSON() ([]byte, error) {
	if h.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(h.cid.String())
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil {
		*h = Hash{}
		return nil
	}
	c, err := cid.Decode(*s)
	if err != nil {
		return fmt.Errorf("hashtree: unmarshal hash: %w", err)
	}
	h.cid = c
	return nil
}

// CanonicalJSON renders value as UTF-8 JSON with map keys sorted at every
// level, recursively to depth entity.MaxDepth, erroring beyond. Arrays
// preserve their original order.
func CanonicalJSON(value entity.Value, depth int) ([]byte, error) {
	if depth > entity.MaxDepth {
		return nil, fmt.Errorf("%w: depth %d", ErrDepthExceeded, depth)
	}
	switch t := value.(type) {
	case map[string]entity.Value:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			vb, err := CanonicalJSON(t[k], depth+1)
			if err != nil {
				return nil, err
			}
			buf = append(buf, vb...)
		}
		buf = append(buf, '}')
		return buf, nil
	case []entity.Value:
		buf := []byte{'['}
		for i, v := range t {
			if i > 0 {
				buf = append(buf, ',')
			}
			vb, err := CanonicalJSON(v, depth+1)
			if err != nil {
				return nil, err
			}
			buf = append(buf, vb...)
		}
		buf = append(buf, ']')
		return buf, nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// HashEntity computes the entity data hash for e: SHA-256 of its
// canonical serialized form.
func HashEntity(e *entity.Entity) (Hash, error) {
	data, err := CanonicalJSON(e.ToMap(), 0)
	if err != nil {
		return Hash{}, err
	}
	return Sum(data)
}

// combine folds a node's own data hash together with its already-sorted
// children's hashes into one composite digest.
func combine(dataHash Hash, childHashes [][]byte) (Hash, error) {
	h := sha256.New()
	h.Write(dataHash.Bytes())
	for _, c := range childHashes {
		h.Write(c)
	}
	return wrapDigest(h.Sum(nil))
}

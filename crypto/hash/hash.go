// Package hash holds the hashing primitives every commitment and tree in the
// node is built from. H is SHA-256 and all digests are 32 raw bytes; hex is
// only a transport encoding and is always decoded before hashing.
package hash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vocdoni/votecommit/util"
)

// Size is the digest length in bytes.
const Size = sha256.Size

// ErrMalformedDigest is returned when a hex string does not decode to exactly
// Size bytes.
var ErrMalformedDigest = errors.New("malformed digest")

// Digest is a SHA-256 output.
type Digest [Size]byte

// EmptyRoot is the root of a tree without leaves, H("").
var EmptyRoot = Sum(nil)

// Sum returns H(data).
func Sum(data []byte) Digest {
	return sha256.Sum256(data)
}

// SumString returns H(s) over the UTF-8 bytes of s.
func SumString(s string) Digest {
	return sha256.Sum256([]byte(s))
}

// LeafHash returns the leaf digest of a ballot tag. The tag is hashed as text,
// so the hex string itself is the preimage.
func LeafHash(ballotTag string) Digest {
	return SumString(ballotTag)
}

// NodeHash returns H(left || right) over the raw digest bytes. The operation
// is order sensitive.
func NodeHash(left, right Digest) Digest {
	var buf [2 * Size]byte
	copy(buf[:Size], left[:])
	copy(buf[Size:], right[:])
	return sha256.Sum256(buf[:])
}

// DigestFromHex decodes a hex digest, with or without 0x prefix.
func DigestFromHex(s string) (Digest, error) {
	var d Digest
	s = util.TrimHex(s)
	if len(s) != 2*Size {
		return d, fmt.Errorf("%w: expected %d hex chars, got %d", ErrMalformedDigest, 2*Size, len(s))
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return Digest{}, fmt.Errorf("%w: %v", ErrMalformedDigest, err)
	}
	return d, nil
}

// MustDigestFromHex is DigestFromHex for constants and tests. It panics on
// invalid input.
func MustDigestFromHex(s string) Digest {
	d, err := DigestFromHex(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Hex returns the lowercase hex encoding without prefix.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) String() string {
	return d.Hex()
}

// Bytes returns a copy of the digest bytes.
func (d Digest) Bytes() []byte {
	return bytes.Clone(d[:])
}

// Equal reports whether both digests are byte-for-byte identical.
func (d Digest) Equal(other Digest) bool {
	return d == other
}

// IsZero reports whether d is the zero value (never a valid SHA-256 output in
// practice, used as "unset").
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// MarshalJSON encodes the digest as a hex string.
func (d Digest) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Hex())
}

// UnmarshalJSON decodes a hex string, 0x prefix optional.
func (d *Digest) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDigest, err)
	}
	v, err := DigestFromHex(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalText allows digests as map keys and CBOR text fields.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.Hex()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (d *Digest) UnmarshalText(text []byte) error {
	v, err := DigestFromHex(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

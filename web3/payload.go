package web3

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vocdoni/votecommit/crypto/hash"
)

// Anchored payloads travel as calldata of a transaction the node sends to its
// own address:
//
//	magic(4) | version(1) | kind(1) | first(32) | second(32) | electionID
//
// For votes first and second are the voter and ballot tags; for closures the
// Merkle root and the results digest.

var payloadMagic = []byte("VCMT")

const payloadVersion = 1

// PayloadKind tells what an anchored payload commits to.
type PayloadKind uint8

const (
	KindVote PayloadKind = iota + 1
	KindClosure
)

func (k PayloadKind) String() string {
	switch k {
	case KindVote:
		return "vote"
	case KindClosure:
		return "closure"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ErrInvalidPayload is returned when calldata is not an anchored payload.
var ErrInvalidPayload = errors.New("invalid anchor payload")

const payloadHeaderSize = 4 + 1 + 1 + 2*hash.Size

// Payload is a decoded anchored record.
type Payload struct {
	Kind       PayloadKind
	ElectionID string
	First      hash.Digest
	Second     hash.Digest
}

// Encode returns the calldata form of p.
func (p *Payload) Encode() []byte {
	buf := make([]byte, 0, payloadHeaderSize+len(p.ElectionID))
	buf = append(buf, payloadMagic...)
	buf = append(buf, payloadVersion, byte(p.Kind))
	buf = append(buf, p.First[:]...)
	buf = append(buf, p.Second[:]...)
	return append(buf, p.ElectionID...)
}

// DecodePayload parses calldata produced by Encode.
func DecodePayload(data []byte) (*Payload, error) {
	if len(data) <= payloadHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidPayload, len(data))
	}
	if !bytes.Equal(data[:4], payloadMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidPayload)
	}
	if data[4] != payloadVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidPayload, data[4])
	}
	p := &Payload{Kind: PayloadKind(data[5])}
	if p.Kind != KindVote && p.Kind != KindClosure {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidPayload, data[5])
	}
	copy(p.First[:], data[6:6+hash.Size])
	copy(p.Second[:], data[6+hash.Size:payloadHeaderSize])
	p.ElectionID = string(data[payloadHeaderSize:])
	return p, nil
}

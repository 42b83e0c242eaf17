package merkle

import (
	"fmt"

	"github.com/vocdoni/votecommit/crypto/hash"
	"github.com/vocdoni/votecommit/types"
)

// Side tells on which side of the running hash a proof sibling goes.
type Side uint8

const (
	// SideLeft means the sibling is hashed first: H(sibling || current).
	SideLeft Side = iota + 1
	// SideRight means the sibling is hashed second: H(current || sibling).
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// ParseSide parses "left" or "right".
func ParseSide(s string) (Side, error) {
	switch s {
	case "left":
		return SideLeft, nil
	case "right":
		return SideRight, nil
	default:
		return 0, fmt.Errorf("%w: unknown side %q", types.ErrMalformedProof, s)
	}
}

func (s Side) MarshalText() ([]byte, error) {
	if s != SideLeft && s != SideRight {
		return nil, fmt.Errorf("%w: unknown side %d", types.ErrMalformedProof, uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(text []byte) error {
	v, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ProofStep is one level of an inclusion proof.
type ProofStep struct {
	Sibling hash.Digest `json:"sibling"`
	Side    Side        `json:"side"`
}

// Proof is the path from a leaf to the root. Levels where the node was
// promoted without a sibling contribute no step.
type Proof struct {
	LeafIndex int         `json:"leafIndex"`
	Steps     []ProofStep `json:"steps"`
}

// HexProof is a proof as received from an untrusted client, before any field
// is decoded.
type HexProof struct {
	LeafIndex int            `json:"leafIndex"`
	Steps     []HexProofStep `json:"steps"`
}

// HexProofStep is the undecoded form of ProofStep.
type HexProofStep struct {
	Sibling string `json:"sibling"`
	Side    string `json:"side"`
}

// Hex returns the wire form of p.
func (p *Proof) Hex() *HexProof {
	hp := &HexProof{LeafIndex: p.LeafIndex, Steps: make([]HexProofStep, len(p.Steps))}
	for i, s := range p.Steps {
		hp.Steps[i] = HexProofStep{Sibling: s.Sibling.Hex(), Side: s.Side.String()}
	}
	return hp
}

// Decode validates every field of hp. Any error wraps types.ErrMalformedProof.
func (hp *HexProof) Decode() (*Proof, error) {
	if hp == nil {
		return nil, fmt.Errorf("%w: nil proof", types.ErrMalformedProof)
	}
	if hp.LeafIndex < 0 {
		return nil, fmt.Errorf("%w: negative leaf index", types.ErrMalformedProof)
	}
	p := &Proof{LeafIndex: hp.LeafIndex, Steps: make([]ProofStep, len(hp.Steps))}
	for i, s := range hp.Steps {
		sib, err := hash.DigestFromHex(s.Sibling)
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %v", types.ErrMalformedProof, i, err)
		}
		side, err := ParseSide(s.Side)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		p.Steps[i] = ProofStep{Sibling: sib, Side: side}
	}
	return p, nil
}

// Prove returns the inclusion proof of tag in t, or types.ErrNotFound if the
// tag is not a leaf.
func Prove(t *Tree, tag string) (*Proof, error) {
	idx, ok := t.LeafIndex(tag)
	if !ok {
		return nil, fmt.Errorf("%w: ballot tag not in tree", types.ErrNotFound)
	}
	p := &Proof{LeafIndex: idx}
	for _, level := range t.levels[:len(t.levels)-1] {
		switch {
		case idx%2 == 1:
			p.Steps = append(p.Steps, ProofStep{Sibling: level[idx-1], Side: SideLeft})
		case idx+1 < len(level):
			p.Steps = append(p.Steps, ProofStep{Sibling: level[idx+1], Side: SideRight})
		}
		idx /= 2
	}
	return p, nil
}

// Verify recomputes the root from tag and proof and compares it with root.
// A nil proof or an unknown side yields false.
func Verify(tag string, proof *Proof, root hash.Digest) bool {
	if proof == nil {
		return false
	}
	cur := hash.LeafHash(tag)
	for _, s := range proof.Steps {
		switch s.Side {
		case SideLeft:
			cur = hash.NodeHash(s.Sibling, cur)
		case SideRight:
			cur = hash.NodeHash(cur, s.Sibling)
		default:
			return false
		}
	}
	return cur == root
}

// VerifyHex is Verify for untrusted input. Malformed hex, wrong digest lengths
// or unknown sides return false with an error wrapping types.ErrMalformedProof.
func VerifyHex(tag string, proof *HexProof, rootHex string) (bool, error) {
	root, err := hash.DigestFromHex(rootHex)
	if err != nil {
		return false, fmt.Errorf("%w: root: %v", types.ErrMalformedProof, err)
	}
	p, err := proof.Decode()
	if err != nil {
		return false, err
	}
	return Verify(tag, p, root), nil
}

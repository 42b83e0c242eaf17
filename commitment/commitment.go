// Package commitment derives the two unlinkable tags produced by every vote:
// the voter tag, which marks participation without revealing the choice, and
// the ballot tag, which identifies the ballot without revealing the voter.
package commitment

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/vocdoni/votecommit/crypto/hash"
	"github.com/vocdoni/votecommit/types"
	"github.com/vocdoni/votecommit/util"
)

// NonceSize is the number of random bytes mixed into every ballot tag.
const NonceSize = 16

// Commitment is the pair of tags generated for one vote.
type Commitment struct {
	VoterTag  string `json:"voterTag"`
	BallotTag string `json:"ballotTag"`
}

// ballotPreimage is hashed in canonical JSON form, keys sorted.
type ballotPreimage struct {
	CandidateID int    `json:"candidateId"`
	ElectionID  string `json:"electionId"`
	Nonce       string `json:"nonce"`
}

// NewNonce returns NonceSize bytes from crypto/rand, hex encoded.
func NewNonce() (string, error) {
	b := make([]byte, NonceSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// VoterTag returns hex(H(userID "-" electionID "-" salt)). Without the salt the
// tag cannot be recomputed from public identifiers.
func VoterTag(userID, electionID string, salt Salt) (string, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(electionID) == "" {
		return "", fmt.Errorf("%w: user and election ids are required", types.ErrInvalidInput)
	}
	if salt.IsEmpty() {
		return "", fmt.Errorf("%w: empty secret salt", types.ErrInvalidInput)
	}
	return hash.SumString(userID + "-" + electionID + "-" + salt.reveal()).Hex(), nil
}

// BallotTag returns hex(H(canonicalJSON({candidateId, electionId, nonce}))).
func BallotTag(electionID string, candidateID int, nonce string) (string, error) {
	if strings.TrimSpace(electionID) == "" {
		return "", fmt.Errorf("%w: election id is required", types.ErrInvalidInput)
	}
	if candidateID <= 0 {
		return "", fmt.Errorf("%w: candidate id must be positive", types.ErrInvalidInput)
	}
	if nonce == "" {
		return "", fmt.Errorf("%w: empty nonce", types.ErrInvalidInput)
	}
	d, err := hash.SumJSON(ballotPreimage{
		CandidateID: candidateID,
		ElectionID:  electionID,
		Nonce:       nonce,
	})
	if err != nil {
		return "", err
	}
	return d.Hex(), nil
}

// Generate returns the voter and ballot tags of a vote with a fresh nonce.
func Generate(userID, electionID string, candidateID int, salt Salt) (*Commitment, error) {
	nonce, err := NewNonce()
	if err != nil {
		return nil, err
	}
	return GenerateWithNonce(userID, electionID, candidateID, salt, nonce)
}

// GenerateWithNonce is Generate with a caller supplied nonce. Reusing a nonce
// reproduces the ballot tag, so production code calls Generate.
func GenerateWithNonce(userID, electionID string, candidateID int, salt Salt, nonce string) (*Commitment, error) {
	voterTag, err := VoterTag(userID, electionID, salt)
	if err != nil {
		return nil, err
	}
	ballotTag, err := BallotTag(electionID, candidateID, nonce)
	if err != nil {
		return nil, err
	}
	return &Commitment{VoterTag: voterTag, BallotTag: ballotTag}, nil
}

// ValidTag reports whether s looks like a tag: 64 lowercase hex characters.
func ValidTag(s string) bool {
	return util.IsLowerHex(s, hash.Size)
}

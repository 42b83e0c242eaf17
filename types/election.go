// Package types holds the records shared by storage, the core services and
// the API.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vocdoni/votecommit/crypto/hash"
)

// ElectionIDPrefix is prepended to the uuid of every election id.
const ElectionIDPrefix = "ELEC-"

const (
	MaxTitleLength = 255
	// MaxElectionIDLength also bounds storage keys built from the id.
	MaxElectionIDLength = 128
)

// NewElectionID returns a fresh ELEC-<uuid> identifier.
func NewElectionID() string {
	return ElectionIDPrefix + uuid.NewString()
}

// ValidElectionID reports whether id can be used as an election id. Ids are
// opaque, but must be non-empty, bounded and free of the key separator.
func ValidElectionID(id string) bool {
	return id != "" && len(id) <= MaxElectionIDLength && !strings.ContainsAny(id, "/\x00")
}

// Candidate is one option of an election. Ids are assigned 1..n at creation.
type Candidate struct {
	ID          int    `json:"id" cbor:"0,keyasint"`
	Name        string `json:"name" cbor:"1,keyasint"`
	Description string `json:"description" cbor:"2,keyasint"`
}

// Election is a timed vote. MerkleRoot and ResultsDigest are set exactly once,
// when the election is closed.
type Election struct {
	ID            string       `json:"id" cbor:"0,keyasint"`
	Title         string       `json:"title" cbor:"1,keyasint"`
	Description   string       `json:"description" cbor:"2,keyasint"`
	Candidates    []Candidate  `json:"candidates" cbor:"3,keyasint"`
	StartTime     time.Time    `json:"startTime" cbor:"4,keyasint"`
	EndTime       time.Time    `json:"endTime" cbor:"5,keyasint"`
	IsActive      bool         `json:"isActive" cbor:"6,keyasint"`
	MerkleRoot    *hash.Digest `json:"merkleRoot,omitempty" cbor:"7,keyasint,omitempty"`
	ResultsDigest *hash.Digest `json:"resultsDigest,omitempty" cbor:"8,keyasint,omitempty"`
	ContentHash   hash.Digest  `json:"contentHash" cbor:"9,keyasint"`
	CreatedAt     time.Time    `json:"createdAt" cbor:"10,keyasint"`
	ClosedAt      *time.Time   `json:"closedAt,omitempty" cbor:"11,keyasint,omitempty"`
}

// HasCandidate reports whether id is one of the election's candidates.
func (e *Election) HasCandidate(id int) bool {
	for _, c := range e.Candidates {
		if c.ID == id {
			return true
		}
	}
	return false
}

// AcceptsVotes reports whether a vote cast at t falls in the voting window of
// an active election.
func (e *Election) AcceptsVotes(t time.Time) bool {
	return e.IsActive && !t.Before(e.StartTime) && t.Before(e.EndTime)
}

// ElectionParams is the user supplied part of an election.
type ElectionParams struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	StartTime   time.Time         `json:"startTime"`
	EndTime     time.Time         `json:"endTime"`
	Candidates  []CandidateParams `json:"candidates"`
}

// CandidateParams describes a candidate before it gets an id.
type CandidateParams struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Validate checks the creation rules of an election.
func (p *ElectionParams) Validate() error {
	switch {
	case strings.TrimSpace(p.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case len(p.Title) > MaxTitleLength:
		return fmt.Errorf("%w: title longer than %d characters", ErrInvalidInput, MaxTitleLength)
	case strings.TrimSpace(p.Description) == "":
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	case p.StartTime.IsZero() || p.EndTime.IsZero():
		return fmt.Errorf("%w: start and end times are required", ErrInvalidInput)
	case !p.StartTime.Before(p.EndTime):
		return fmt.Errorf("%w: start time must be before end time", ErrInvalidInput)
	case len(p.Candidates) == 0:
		return fmt.Errorf("%w: at least one candidate is required", ErrInvalidInput)
	}
	for i, c := range p.Candidates {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Description) == "" {
			return fmt.Errorf("%w: candidate %d needs a name and a description", ErrInvalidInput, i+1)
		}
	}
	return nil
}

// NewElection validates p and builds an active election with a fresh id,
// candidate ids 1..n and the content hash of its creation data.
func NewElection(p *ElectionParams, now time.Time) (*Election, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	e := &Election{
		ID:          NewElectionID(),
		Title:       p.Title,
		Description: p.Description,
		StartTime:   p.StartTime.UTC(),
		EndTime:     p.EndTime.UTC(),
		IsActive:    true,
		CreatedAt:   now.UTC(),
	}
	for i, c := range p.Candidates {
		e.Candidates = append(e.Candidates, Candidate{ID: i + 1, Name: c.Name, Description: c.Description})
	}
	content, err := hash.SumJSON(struct {
		ID          string      `json:"id"`
		Title       string      `json:"title"`
		Description string      `json:"description"`
		StartTime   time.Time   `json:"startTime"`
		EndTime     time.Time   `json:"endTime"`
		Candidates  []Candidate `json:"candidates"`
	}{e.ID, e.Title, e.Description, e.StartTime, e.EndTime, e.Candidates})
	if err != nil {
		return nil, err
	}
	e.ContentHash = content
	return e, nil
}

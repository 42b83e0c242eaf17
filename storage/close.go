package storage

import (
	"fmt"
	"time"

	"github.com/vocdoni/votecommit/crypto/hash"
	"github.com/vocdoni/votecommit/log"
	"github.com/vocdoni/votecommit/types"
)

// Closing is what a CloseFunc returns: the digests committed for the
// election.
type Closing struct {
	Root          hash.Digest
	ResultsDigest hash.Digest
}

// CloseFunc computes, and usually anchors, the closing digests of an active
// election from its ordered ballots. It runs while every vote on the election
// is blocked; returning an error leaves the election untouched.
type CloseFunc func(e *types.Election, ballots []*types.Ballot) (*Closing, error)

// CloseElection closes an active election. Under the election's exclusive lock
// it loads the ordered ballots, runs fn and persists the returned digests
// together with IsActive=false and ClosedAt in one transaction. A second
// close fails with types.ErrAlreadyClosed.
func (s *Storage) CloseElection(electionID string, closedAt time.Time, fn CloseFunc) (*types.Election, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil close function", types.ErrInvalidInput)
	}
	l := s.electionLock(electionID)
	l.Lock()
	defer l.Unlock()

	e, err := s.Election(electionID)
	if err != nil {
		return nil, err
	}
	if !e.IsActive {
		return nil, fmt.Errorf("%w: %s", types.ErrAlreadyClosed, electionID)
	}
	ballots, err := s.readBallots(s.db, electionID)
	if err != nil {
		return nil, fmt.Errorf("read ballots: %w", err)
	}

	closing, err := fn(e, ballotPointers(ballots))
	if err != nil {
		return nil, err
	}

	root, digest := closing.Root, closing.ResultsDigest
	at := closedAt.UTC()
	e.MerkleRoot = &root
	e.ResultsDigest = &digest
	e.IsActive = false
	e.ClosedAt = &at

	tx := s.db.WriteTx()
	defer tx.Discard()
	if err := setArtifact(tx, electionPrefix, []byte(electionID), e); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit election close: %w", err)
	}
	s.cache.Add(electionID, ballots)
	log.Infow("election closed",
		"electionId", electionID,
		"ballots", len(ballots),
		"root", root.Hex(),
		"resultsDigest", digest.Hex())
	return e, nil
}

package storage

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vocdoni/votecommit/commitment"
	"github.com/vocdoni/votecommit/db"
	"github.com/vocdoni/votecommit/types"
)

// AppendBallot stores an anonymous ballot. It returns types.ErrDuplicateTag if
// the tag already exists in the election, types.ErrNotFound if the election
// does not exist and types.ErrAlreadyClosed once the election is closed.
func (s *Storage) AppendBallot(electionID string, candidateID int, ballotTag string) error {
	if !commitment.ValidTag(ballotTag) {
		return fmt.Errorf("%w: malformed ballot tag", types.ErrInvalidInput)
	}
	l := s.electionLock(electionID)
	l.RLock()
	defer l.RUnlock()

	key := scopedKey(electionID, ballotTag)
	unlock := s.lockKeys(fullKey(ballotPrefix, key))
	defer unlock()

	e, err := s.Election(electionID)
	if err != nil {
		return err
	}
	if !e.IsActive {
		return fmt.Errorf("%w: %s", types.ErrAlreadyClosed, electionID)
	}
	if !e.HasCandidate(candidateID) {
		return fmt.Errorf("%w: unknown candidate %d", types.ErrInvalidInput, candidateID)
	}

	tx := s.db.WriteTx()
	defer tx.Discard()
	if err := putBallot(tx, &types.Ballot{
		ElectionID:  electionID,
		CandidateID: candidateID,
		BallotTag:   ballotTag,
		CreatedAt:   types.BallotTime(time.Now()),
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// putBallot checks tag uniqueness and sets the ballot in tx.
func putBallot(tx db.WriteTx, b *types.Ballot) error {
	key := scopedKey(b.ElectionID, b.BallotTag)
	found, err := exists(tx, ballotPrefix, key)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: %s", types.ErrDuplicateTag, b.BallotTag)
	}
	return setArtifact(tx, ballotPrefix, key, b)
}

// ListOrderedBallots returns every ballot of an election sorted ascending by
// tag, comparing the tags byte by byte. The order is the leaf order of the
// election's Merkle tree.
func (s *Storage) ListOrderedBallots(electionID string) ([]*types.Ballot, error) {
	l := s.electionLock(electionID)
	l.RLock()
	defer l.RUnlock()

	if cached, ok := s.cache.Get(electionID); ok {
		return ballotPointers(cached), nil
	}
	e, err := s.Election(electionID)
	if err != nil {
		return nil, err
	}
	ballots, err := s.readBallots(s.db, electionID)
	if err != nil {
		return nil, err
	}
	if !e.IsActive {
		s.cache.Add(electionID, ballots)
	}
	return ballotPointers(ballots), nil
}

// readBallots returns the ballots of an election in key order, which is tag
// order. The sort is repeated so the result does not depend on the backend.
func (s *Storage) readBallots(rd db.Reader, electionID string) ([]types.Ballot, error) {
	var (
		ballots   []types.Ballot
		decodeErr error
	)
	scope := fullKey(ballotPrefix, electionScope(electionID))
	if err := rd.Iterate(scope, func(_, v []byte) bool {
		var b types.Ballot
		if err := DecodeArtifact(v, &b); err != nil {
			decodeErr = fmt.Errorf("could not decode ballot: %w", err)
			return false
		}
		ballots = append(ballots, b)
		return true
	}); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	sortBallots(ballots)
	return ballots, nil
}

func sortBallots(ballots []types.Ballot) {
	slices.SortStableFunc(ballots, func(a, b types.Ballot) int {
		return strings.Compare(a.BallotTag, b.BallotTag)
	})
}

func ballotPointers(ballots []types.Ballot) []*types.Ballot {
	out := make([]*types.Ballot, len(ballots))
	for i := range ballots {
		b := ballots[i]
		out[i] = &b
	}
	return out
}

// BallotTags returns the tags of ballots in the same order.
func BallotTags(ballots []*types.Ballot) []string {
	tags := make([]string, len(ballots))
	for i, b := range ballots {
		tags[i] = b.BallotTag
	}
	return tags
}

// CountBallots returns the number of ballots stored for an election.
func (s *Storage) CountBallots(electionID string) (int, error) {
	n := 0
	scope := fullKey(ballotPrefix, electionScope(electionID))
	if err := s.db.Iterate(scope, func(_, _ []byte) bool {
		n++
		return true
	}); err != nil {
		return 0, err
	}
	return n, nil
}

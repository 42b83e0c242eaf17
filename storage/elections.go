package storage

import (
	"errors"
	"fmt"
	"slices"

	"github.com/vocdoni/votecommit/db/prefixeddb"
	"github.com/vocdoni/votecommit/log"
	"github.com/vocdoni/votecommit/types"
)

// NewElection stores a new election. It fails if an election with the same
// id already exists.
func (s *Storage) NewElection(e *types.Election) error {
	if e == nil {
		return fmt.Errorf("%w: nil election", types.ErrInvalidInput)
	}
	if !types.ValidElectionID(e.ID) {
		return fmt.Errorf("%w: invalid election id %q", types.ErrInvalidInput, e.ID)
	}
	l := s.electionLock(e.ID)
	l.Lock()
	defer l.Unlock()

	found, err := exists(s.db, electionPrefix, []byte(e.ID))
	if err != nil {
		return fmt.Errorf("failed to check election existence: %w", err)
	}
	if found {
		return fmt.Errorf("%w: election %s already exists", types.ErrInvalidInput, e.ID)
	}

	tx := s.db.WriteTx()
	defer tx.Discard()
	if err := setArtifact(tx, electionPrefix, []byte(e.ID), e); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit election: %w", err)
	}
	log.Debugw("election stored", "electionId", e.ID, "candidates", len(e.Candidates))
	return nil
}

// Election returns the election with the given id, or types.ErrNotFound.
func (s *Storage) Election(electionID string) (*types.Election, error) {
	e := &types.Election{}
	if err := getArtifact(s.db, electionPrefix, []byte(electionID), e); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("%w: election %s", types.ErrNotFound, electionID)
		}
		return nil, err
	}
	return e, nil
}

// ListElections returns every stored election, the most recent start time
// first.
func (s *Storage) ListElections() ([]*types.Election, error) {
	var (
		elections []*types.Election
		decodeErr error
	)
	if err := s.db.Iterate(electionPrefix, func(_, v []byte) bool {
		e := &types.Election{}
		if err := DecodeArtifact(v, e); err != nil {
			decodeErr = fmt.Errorf("could not decode election: %w", err)
			return false
		}
		elections = append(elections, e)
		return true
	}); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	slices.SortStableFunc(elections, func(a, b *types.Election) int {
		return b.StartTime.Compare(a.StartTime)
	})
	return elections, nil
}

// DeleteElection removes an election together with all its participation
// records and ballots.
func (s *Storage) DeleteElection(electionID string) error {
	l := s.electionLock(electionID)
	l.Lock()
	defer l.Unlock()

	found, err := exists(s.db, electionPrefix, []byte(electionID))
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: election %s", types.ErrNotFound, electionID)
	}

	tx := s.db.WriteTx()
	defer tx.Discard()
	scope := electionScope(electionID)
	records, err := deleteScope(tx, participationPrefix, scope)
	if err != nil {
		return fmt.Errorf("delete participation records: %w", err)
	}
	ballots, err := deleteScope(tx, ballotPrefix, scope)
	if err != nil {
		return fmt.Errorf("delete ballots: %w", err)
	}
	if err := prefixeddb.NewPrefixedWriteTx(tx, electionPrefix).Delete([]byte(electionID)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit election delete: %w", err)
	}
	s.cache.Remove(electionID)
	log.Infow("election deleted", "electionId", electionID, "records", records, "ballots", ballots)
	return nil
}

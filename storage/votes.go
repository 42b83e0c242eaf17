package storage

import (
	"fmt"

	"github.com/vocdoni/votecommit/commitment"
	"github.com/vocdoni/votecommit/log"
	"github.com/vocdoni/votecommit/types"
)

// AnchorFunc is called inside a storage critical section, after every
// uniqueness check passed and before anything is committed. An error aborts
// the operation with nothing written. If the commit itself fails after anchor
// succeeded, the ledger keeps a commitment without a local ballot; the voter
// can vote again and the orphan never enters the tree.
type AnchorFunc func() error

// CastVote atomically records that rec.UserID participated in the election
// and stores the anonymous ballot. Both records are written in one
// transaction, after anchor returned successfully.
//
// It returns types.ErrDuplicateVote if the user already participated,
// types.ErrDuplicateTag if the ballot tag exists, types.ErrNotFound for an
// unknown election and types.ErrElectionNotActive once the election is
// closed.
func (s *Storage) CastVote(rec *types.ParticipationRecord, ballot *types.Ballot, anchor AnchorFunc) error {
	if rec == nil || ballot == nil {
		return fmt.Errorf("%w: nil record or ballot", types.ErrInvalidInput)
	}
	if rec.ElectionID != ballot.ElectionID {
		return fmt.Errorf("%w: record and ballot belong to different elections", types.ErrInvalidInput)
	}
	if rec.UserID == "" {
		return fmt.Errorf("%w: empty user id", types.ErrInvalidInput)
	}
	if !commitment.ValidTag(rec.VoterTag) || !commitment.ValidTag(ballot.BallotTag) {
		return fmt.Errorf("%w: malformed tag", types.ErrInvalidInput)
	}
	electionID := rec.ElectionID

	l := s.electionLock(electionID)
	l.RLock()
	defer l.RUnlock()

	recKey := scopedKey(electionID, rec.UserID)
	ballotKey := scopedKey(electionID, ballot.BallotTag)
	unlock := s.lockKeys(fullKey(participationPrefix, recKey), fullKey(ballotPrefix, ballotKey))
	defer unlock()

	e, err := s.Election(electionID)
	if err != nil {
		return err
	}
	if !e.IsActive {
		return fmt.Errorf("%w: %s is closed", types.ErrElectionNotActive, electionID)
	}
	if !e.HasCandidate(ballot.CandidateID) {
		return fmt.Errorf("%w: unknown candidate %d", types.ErrInvalidInput, ballot.CandidateID)
	}

	tx := s.db.WriteTx()
	defer tx.Discard()

	voted, err := exists(tx, participationPrefix, recKey)
	if err != nil {
		return fmt.Errorf("check participation: %w", err)
	}
	if voted {
		return fmt.Errorf("%w: %s", types.ErrDuplicateVote, electionID)
	}
	if err := putBallot(tx, ballot); err != nil {
		return err
	}
	if err := setArtifact(tx, participationPrefix, recKey, rec); err != nil {
		return err
	}

	if anchor != nil {
		if err := anchor(); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		if anchor != nil {
			log.Warnw("vote commitment anchored but not stored", "electionId", electionID, "error", err.Error())
		}
		return fmt.Errorf("commit vote: %w", err)
	}
	log.Debugw("vote stored", "electionId", electionID)
	return nil
}

// HasVoted reports whether the user has a participation record in the
// election.
func (s *Storage) HasVoted(electionID, userID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("%w: empty user id", types.ErrInvalidInput)
	}
	return exists(s.db, participationPrefix, scopedKey(electionID, userID))
}

// Participation returns the participation record of a user, or
// types.ErrNotFound.
func (s *Storage) Participation(electionID, userID string) (*types.ParticipationRecord, error) {
	rec := &types.ParticipationRecord{}
	if err := getArtifact(s.db, participationPrefix, scopedKey(electionID, userID), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// CountParticipants returns the number of participation records of an
// election. It always equals the number of ballots.
func (s *Storage) CountParticipants(electionID string) (int, error) {
	n := 0
	if err := s.db.Iterate(fullKey(participationPrefix, electionScope(electionID)), func(_, _ []byte) bool {
		n++
		return true
	}); err != nil {
		return 0, err
	}
	return n, nil
}

// Package voting casts anonymous votes: it derives the commitment tags of a
// vote, anchors them on the ledger and stores the participation record and
// the ballot as two unrelated records.
package voting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vocdoni/votecommit/commitment"
	"github.com/vocdoni/votecommit/ledger"
	"github.com/vocdoni/votecommit/log"
	"github.com/vocdoni/votecommit/storage"
	"github.com/vocdoni/votecommit/types"
)

// Caster casts votes. It is safe for concurrent use; uniqueness is enforced
// by the storage.
type Caster struct {
	stg     *storage.Storage
	secrets commitment.SecretStore
	ledger  ledger.Ledger
	now     func() time.Time
}

// VoterStatus tells a voter whether they can still vote in an election.
type VoterStatus struct {
	CanVote  bool `json:"canVote"`
	HasVoted bool `json:"hasVoted"`
}

// New returns a Caster. A nil ledger disables anchoring of vote commitments.
func New(stg *storage.Storage, secrets commitment.SecretStore, l ledger.Ledger) *Caster {
	return &Caster{
		stg:     stg,
		secrets: secrets,
		ledger:  l,
		now:     time.Now,
	}
}

// Cast records the vote of userID for candidateID and returns the tags of the
// vote. The ballot tag is the voter's private receipt: it is needed later to
// request an inclusion proof.
//
// Nothing is written unless the ledger accepted the commitment. A second
// vote of the same user fails with types.ErrDuplicateVote.
func (c *Caster) Cast(ctx context.Context, userID, electionID string, candidateID int) (*commitment.Commitment, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", types.ErrInvalidInput)
	}
	if candidateID <= 0 {
		return nil, fmt.Errorf("%w: candidate id must be positive", types.ErrInvalidInput)
	}
	e, err := c.stg.Election(electionID)
	if err != nil {
		return nil, err
	}
	now := c.now()
	if !e.AcceptsVotes(now) {
		return nil, fmt.Errorf("%w: %s", types.ErrElectionNotActive, electionID)
	}
	if !e.HasCandidate(candidateID) {
		return nil, fmt.Errorf("%w: unknown candidate %d", types.ErrInvalidInput, candidateID)
	}

	salt, err := c.secrets.Salt()
	if err != nil {
		return nil, fmt.Errorf("load secret salt: %w", err)
	}
	cm, err := commitment.Generate(userID, electionID, candidateID, salt)
	if err != nil {
		return nil, err
	}

	rec := &types.ParticipationRecord{
		ElectionID: electionID,
		UserID:     userID,
		VoterTag:   cm.VoterTag,
	}
	ballot := &types.Ballot{
		ElectionID:  electionID,
		CandidateID: candidateID,
		BallotTag:   cm.BallotTag,
		CreatedAt:   types.BallotTime(time.Now()),
	}
	if err := c.stg.CastVote(rec, ballot, c.anchor(ctx, cm, electionID)); err != nil {
		return nil, err
	}
	log.Debugw("vote cast", "electionId", electionID)
	return cm, nil
}

func (c *Caster) anchor(ctx context.Context, cm *commitment.Commitment, electionID string) storage.AnchorFunc {
	if c.ledger == nil {
		return nil
	}
	return func() error {
		err := c.ledger.SubmitVoteCommitment(ctx, electionID, cm.VoterTag, cm.BallotTag)
		if err == nil {
			return nil
		}
		if errors.Is(err, types.ErrLedger) || errors.Is(err, types.ErrAlreadyClosed) {
			return err
		}
		return fmt.Errorf("%w: %v", types.ErrLedger, err)
	}
}

// Status reports whether userID has voted in the election and whether they
// can vote now.
func (c *Caster) Status(electionID, userID string) (*VoterStatus, error) {
	e, err := c.stg.Election(electionID)
	if err != nil {
		return nil, err
	}
	voted, err := c.stg.HasVoted(electionID, userID)
	if err != nil {
		return nil, err
	}
	return &VoterStatus{
		CanVote:  !voted && e.AcceptsVotes(c.now()),
		HasVoted: voted,
	}, nil
}

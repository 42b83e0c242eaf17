// Package finalizer closes elections: it builds the Merkle tree of the
// ordered ballots, tallies them, anchors the root and the results digest on
// the ledger and persists both.
package finalizer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/vocdoni/votecommit/crypto/hash"
	"github.com/vocdoni/votecommit/ledger"
	"github.com/vocdoni/votecommit/log"
	"github.com/vocdoni/votecommit/merkle"
	"github.com/vocdoni/votecommit/storage"
	"github.com/vocdoni/votecommit/types"
)

// Finalizer is responsible for closing elections.
type Finalizer struct {
	stg    *storage.Storage
	ledger ledger.Ledger
	now    func() time.Time
}

// New creates a new Finalizer instance.
func New(stg *storage.Storage, l ledger.Ledger) *Finalizer {
	return &Finalizer{stg: stg, ledger: l, now: time.Now}
}

// Close closes an active election and returns its receipt. The whole
// operation runs under the election's exclusive storage lock, so no vote can
// land between the ballot read and the commit. If the ledger rejects the
// closure nothing is persisted and the election stays active.
//
// A closure the ledger already holds, left by a close whose local commit
// failed, is accepted when its root equals the recomputed one.
func (f *Finalizer) Close(ctx context.Context, electionID string) (*types.ClosureReceipt, error) {
	start := time.Now()
	var receipt *types.ClosureReceipt
	e, err := f.stg.CloseElection(electionID, f.now(), func(e *types.Election, ballots []*types.Ballot) (*storage.Closing, error) {
		r, err := Compute(e, ballots)
		if err != nil {
			return nil, err
		}
		if f.ledger != nil {
			if err := f.anchorClosure(ctx, r); err != nil {
				return nil, fmt.Errorf("anchor closure of %s: %w", e.ID, err)
			}
		}
		receipt = r
		return &storage.Closing{Root: r.Root, ResultsDigest: r.ResultsDigest}, nil
	})
	if err != nil {
		return nil, err
	}
	receipt.ClosedAt = *e.ClosedAt
	log.Infow("election finalized",
		"electionId", electionID,
		"ballots", receipt.BallotCount,
		"took", log.Since(start))
	return receipt, nil
}

// anchorClosure submits the closure of r. If the ledger reports the election
// as already closed, the committed root must match r.Root.
func (f *Finalizer) anchorClosure(ctx context.Context, r *types.ClosureReceipt) error {
	err := f.ledger.SubmitClosure(ctx, r.ElectionID, r.Root, r.ResultsDigest)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrAlreadyClosed):
		committed, qerr := f.ledger.QueryCommittedRoot(ctx, r.ElectionID)
		if qerr != nil {
			if !errors.Is(qerr, types.ErrLedger) {
				qerr = fmt.Errorf("%w: %v", types.ErrLedger, qerr)
			}
			return fmt.Errorf("query committed root: %w", qerr)
		}
		if committed == nil || !committed.Equal(r.Root) {
			return fmt.Errorf("ledger holds a different closure (root %s), recomputed %s", committed, r.Root.Hex())
		}
		log.Warnw("closure already anchored, persisting local state", "electionId", r.ElectionID, "root", r.Root.Hex())
		return nil
	case errors.Is(err, types.ErrLedger):
		return err
	default:
		return fmt.Errorf("%w: %v", types.ErrLedger, err)
	}
}

// Receipt rebuilds the receipt of a closed election from the stored ballots.
// An election that is still open returns types.ErrInvalidInput.
func (f *Finalizer) Receipt(electionID string) (*types.ClosureReceipt, error) {
	e, err := f.stg.Election(electionID)
	if err != nil {
		return nil, err
	}
	if e.IsActive || e.MerkleRoot == nil || e.ResultsDigest == nil {
		return nil, fmt.Errorf("%w: election %s is not closed", types.ErrInvalidInput, electionID)
	}
	ballots, err := f.stg.ListOrderedBallots(electionID)
	if err != nil {
		return nil, err
	}
	r, err := Compute(e, ballots)
	if err != nil {
		return nil, err
	}
	// the stored digests are the committed ones
	r.Root = *e.MerkleRoot
	r.ResultsDigest = *e.ResultsDigest
	if e.ClosedAt != nil {
		r.ClosedAt = *e.ClosedAt
	}
	return r, nil
}

// Compute returns the root, tally and results digest of ordered ballots. It
// is pure; ballots must already be in canonical order.
func Compute(e *types.Election, ballots []*types.Ballot) (*types.ClosureReceipt, error) {
	tally, err := Tally(e, ballots)
	if err != nil {
		return nil, err
	}
	digest, err := ResultsDigest(tally)
	if err != nil {
		return nil, err
	}
	tree := merkle.Build(storage.BallotTags(ballots))
	return &types.ClosureReceipt{
		ElectionID:    e.ID,
		Root:          tree.Root(),
		ResultsDigest: digest,
		Tally:         tally,
		BallotCount:   len(ballots),
	}, nil
}

// Tally counts the ballots of every candidate of the election, including
// candidates without votes, sorted by candidate id.
func Tally(e *types.Election, ballots []*types.Ballot) ([]types.TallyEntry, error) {
	counts := make(map[int]int, len(e.Candidates))
	for _, c := range e.Candidates {
		counts[c.ID] = 0
	}
	for _, b := range ballots {
		if _, ok := counts[b.CandidateID]; !ok {
			return nil, fmt.Errorf("%w: ballot %s is for unknown candidate %d",
				types.ErrInvalidInput, b.BallotTag, b.CandidateID)
		}
		counts[b.CandidateID]++
	}
	tally := make([]types.TallyEntry, 0, len(counts))
	for id, votes := range counts {
		tally = append(tally, types.TallyEntry{CandidateID: id, Votes: votes})
	}
	slices.SortFunc(tally, func(a, b types.TallyEntry) int {
		return cmp.Compare(a.CandidateID, b.CandidateID)
	})
	return tally, nil
}

// ResultsDigest is the hash of the canonical JSON of the tally.
func ResultsDigest(tally []types.TallyEntry) (hash.Digest, error) {
	if tally == nil {
		tally = []types.TallyEntry{}
	}
	return hash.SumJSON(tally)
}

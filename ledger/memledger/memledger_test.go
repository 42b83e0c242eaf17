package memledger

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/votecommit/crypto/hash"
	"github.com/vocdoni/votecommit/types"
)

func TestLedger(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	l := New()

	c.Assert(l.SubmitVoteCommitment(ctx, "e1", "v1", "b1"), qt.IsNil)
	c.Assert(l.Votes("e1"), qt.DeepEquals, []VoteCommitment{{VoterTag: "v1", BallotTag: "b1"}})

	root, err := l.QueryCommittedRoot(ctx, "e1")
	c.Assert(err, qt.IsNil)
	c.Assert(root, qt.IsNil)

	r, d := hash.SumString("r"), hash.SumString("d")
	c.Assert(l.SubmitClosure(ctx, "e1", r, d), qt.IsNil)
	root, err = l.QueryCommittedRoot(ctx, "e1")
	c.Assert(err, qt.IsNil)
	c.Assert(*root, qt.Equals, r)

	c.Assert(l.SubmitClosure(ctx, "e1", r, d), qt.ErrorIs, types.ErrAlreadyClosed)
	c.Assert(l.SubmitVoteCommitment(ctx, "e1", "v2", "b2"), qt.ErrorIs, types.ErrAlreadyClosed)
}

func TestFailureInjection(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	l := New()

	l.FailNext(2)
	for range 2 {
		err := l.SubmitVoteCommitment(ctx, "e1", "v", "b")
		c.Assert(err, qt.ErrorIs, types.ErrLedger)
		c.Assert(types.IsRetryable(err), qt.IsTrue)
	}
	c.Assert(l.SubmitVoteCommitment(ctx, "e1", "v", "b"), qt.IsNil)

	l.SetFailing(true)
	_, err := l.QueryCommittedRoot(ctx, "e1")
	c.Assert(err, qt.ErrorIs, types.ErrLedger)
	c.Assert(l.SubmitClosure(ctx, "e1", hash.EmptyRoot, hash.EmptyRoot), qt.ErrorIs, types.ErrLedger)
	l.SetFailing(false)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	c.Assert(l.SubmitVoteCommitment(cctx, "e1", "v", "b"), qt.ErrorIs, types.ErrLedger)
	c.Assert(l.Votes("e1"), qt.HasLen, 1)
}

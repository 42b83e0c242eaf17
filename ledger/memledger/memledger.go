// Package memledger is an in-process ledger.Ledger, used by tests and by
// nodes that do not anchor on an external chain.
package memledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/vocdoni/votecommit/crypto/hash"
	"github.com/vocdoni/votecommit/ledger"
	"github.com/vocdoni/votecommit/log"
	"github.com/vocdoni/votecommit/types"
)

// VoteCommitment is one anchored vote.
type VoteCommitment struct {
	VoterTag  string
	BallotTag string
}

// Closure is an anchored election closure.
type Closure struct {
	Root          hash.Digest
	ResultsDigest hash.Digest
}

// Ledger keeps every anchored record in memory. Failures can be injected to
// exercise the retry paths of its callers.
type Ledger struct {
	mu       sync.Mutex
	votes    map[string][]VoteCommitment
	closures map[string]Closure

	failNext int
	failing  bool
}

var _ ledger.Ledger = (*Ledger)(nil)

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		votes:    make(map[string][]VoteCommitment),
		closures: make(map[string]Closure),
	}
}

// FailNext makes the next n submissions fail with types.ErrLedger.
func (l *Ledger) FailNext(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = n
}

// SetFailing makes every call fail with types.ErrLedger until reset.
func (l *Ledger) SetFailing(failing bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failing = failing
}

// check must be called with mu held.
func (l *Ledger) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrLedger, err)
	}
	if l.failing {
		return fmt.Errorf("%w: ledger offline", types.ErrLedger)
	}
	if l.failNext > 0 {
		l.failNext--
		return fmt.Errorf("%w: injected failure", types.ErrLedger)
	}
	return nil
}

func (l *Ledger) SubmitVoteCommitment(ctx context.Context, electionID, voterTag, ballotTag string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.check(ctx); err != nil {
		return err
	}
	if _, closed := l.closures[electionID]; closed {
		return fmt.Errorf("%w: %s", types.ErrAlreadyClosed, electionID)
	}
	l.votes[electionID] = append(l.votes[electionID], VoteCommitment{VoterTag: voterTag, BallotTag: ballotTag})
	log.Debugw("vote commitment anchored in memory", "electionId", electionID)
	return nil
}

func (l *Ledger) SubmitClosure(ctx context.Context, electionID string, root, resultsDigest hash.Digest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.check(ctx); err != nil {
		return err
	}
	if _, closed := l.closures[electionID]; closed {
		return fmt.Errorf("%w: %s", types.ErrAlreadyClosed, electionID)
	}
	l.closures[electionID] = Closure{Root: root, ResultsDigest: resultsDigest}
	log.Debugw("closure anchored in memory", "electionId", electionID, "root", root.Hex())
	return nil
}

func (l *Ledger) QueryCommittedRoot(ctx context.Context, electionID string) (*hash.Digest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrLedger, err)
	}
	if l.failing {
		return nil, fmt.Errorf("%w: ledger offline", types.ErrLedger)
	}
	c, ok := l.closures[electionID]
	if !ok {
		return nil, nil
	}
	root := c.Root
	return &root, nil
}

// Votes returns a copy of the vote commitments anchored for an election.
func (l *Ledger) Votes(electionID string) []VoteCommitment {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]VoteCommitment(nil), l.votes[electionID]...)
}

// Closure returns the anchored closure of an election.
func (l *Ledger) Closure(electionID string) (Closure, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.closures[electionID]
	return c, ok
}

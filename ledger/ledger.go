// Package ledger defines the contract between the node and the append-only
// ledger where vote commitments and election closures are anchored.
package ledger

import (
	"context"

	"github.com/vocdoni/votecommit/crypto/hash"
)

// Ledger anchors commitments. Transport or availability failures are
// returned wrapping types.ErrLedger so that callers can retry them.
type Ledger interface {
	// SubmitVoteCommitment anchors the tags of one vote.
	SubmitVoteCommitment(ctx context.Context, electionID, voterTag, ballotTag string) error
	// SubmitClosure anchors the Merkle root and results digest of a closed
	// election.
	SubmitClosure(ctx context.Context, electionID string, root, resultsDigest hash.Digest) error
	// QueryCommittedRoot returns the anchored root of an election, or nil if
	// none was committed.
	QueryCommittedRoot(ctx context.Context, electionID string) (*hash.Digest, error)
}

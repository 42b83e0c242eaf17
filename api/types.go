package api

import (
	"time"

	"github.com/vocdoni/votecommit/crypto/hash"
	"github.com/vocdoni/votecommit/merkle"
	"github.com/vocdoni/votecommit/types"
)

// ElectionsResponse is the list of elections, newest start time first.
type ElectionsResponse struct {
	Elections []*types.Election `json:"elections"`
}

// VoteRequest is the body of the vote endpoint. The user id is trusted: the
// caller is authenticated upstream.
type VoteRequest struct {
	UserID      string `json:"userId"`
	CandidateID int    `json:"candidateId"`
}

// VoteResponse carries the tags of a cast vote. The ballot tag is the voter's
// private receipt, required to request an inclusion proof later.
type VoteResponse struct {
	BallotTag string `json:"ballotTag"`
	VoterTag  string `json:"voterTag"`
}

// CandidateResult is the tally entry of one candidate, with its name.
type CandidateResult struct {
	CandidateID int    `json:"candidateId"`
	Name        string `json:"name"`
	Votes       int    `json:"votes"`
}

// ResultsResponse is the published tally of a closed election.
type ResultsResponse struct {
	ElectionID    string            `json:"electionId"`
	Title         string            `json:"title"`
	Root          hash.Digest       `json:"root"`
	ResultsDigest hash.Digest       `json:"resultsDigest"`
	BallotCount   int               `json:"ballotCount"`
	ClosedAt      time.Time         `json:"closedAt"`
	Results       []CandidateResult `json:"results"`
}

// ProofResponse is the inclusion proof of a ballot tag against the root of
// its election.
type ProofResponse struct {
	ElectionID string           `json:"electionId"`
	BallotTag  string           `json:"ballotTag"`
	Root       hash.Digest      `json:"root"`
	Proof      *merkle.HexProof `json:"proof"`
}

// VerifyProofRequest is an untrusted proof submitted for verification.
type VerifyProofRequest struct {
	BallotTag string           `json:"ballotTag"`
	Root      string           `json:"root"`
	Proof     *merkle.HexProof `json:"proof"`
}

// VerifyProofResponse is the outcome of a proof verification.
type VerifyProofResponse struct {
	Valid bool `json:"valid"`
}

// AuditResponse compares the stored digests of a closed election with the
// ones recomputed from its ballots and with the root anchored on the ledger.
// LedgerRoot is nil if the ledger holds no closure for the election.
type AuditResponse struct {
	ElectionID              string       `json:"electionId"`
	BallotCount             int          `json:"ballotCount"`
	StoredRoot              hash.Digest  `json:"storedRoot"`
	RecomputedRoot          hash.Digest  `json:"recomputedRoot"`
	LedgerRoot              *hash.Digest `json:"ledgerRoot"`
	RootsMatch              bool         `json:"rootsMatch"`
	LedgerMatch             bool         `json:"ledgerMatch"`
	StoredResultsDigest     hash.Digest  `json:"storedResultsDigest"`
	RecomputedResultsDigest hash.Digest  `json:"recomputedResultsDigest"`
	ResultsMatch            bool         `json:"resultsMatch"`
}

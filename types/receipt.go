package types

import (
	"time"

	"github.com/vocdoni/votecommit/crypto/hash"
)

// TallyEntry is the vote count of one candidate. The JSON form of a tally is
// the preimage of the results digest, so its field names are fixed.
type TallyEntry struct {
	CandidateID int `json:"candidateId"`
	Votes       int `json:"votes"`
}

// ClosureReceipt is returned by a successful close.
type ClosureReceipt struct {
	ElectionID    string       `json:"electionId"`
	Root          hash.Digest  `json:"root"`
	ResultsDigest hash.Digest  `json:"resultsDigest"`
	Tally         []TallyEntry `json:"tally"`
	BallotCount   int          `json:"ballotCount"`
	ClosedAt      time.Time    `json:"closedAt"`
}

package types

import "time"

// BallotTimeResolution is the precision of Ballot.CreatedAt. Ballots cast in
// the same window cannot be told apart by time.
const BallotTimeResolution = time.Hour

// BallotTime returns t truncated to BallotTimeResolution, in UTC.
func BallotTime(t time.Time) time.Time {
	return t.UTC().Truncate(BallotTimeResolution)
}

// Ballot is an anonymous vote. It carries no reference to the voter; the only
// link to the vote cast is the ballot tag the voter kept.
type Ballot struct {
	ElectionID  string    `json:"electionId" cbor:"0,keyasint"`
	CandidateID int       `json:"candidateId" cbor:"1,keyasint"`
	BallotTag   string    `json:"ballotTag" cbor:"2,keyasint"`
	CreatedAt   time.Time `json:"createdAt" cbor:"3,keyasint"`
}

// ParticipationRecord proves a voter took part in an election, without any
// reference to the ballot. At most one exists per (ElectionID, UserID). It
// has no timestamp, since one shared with the ballot would pair them.
type ParticipationRecord struct {
	ElectionID string `json:"electionId" cbor:"0,keyasint"`
	UserID     string `json:"userId" cbor:"1,keyasint"`
	VoterTag   string `json:"voterTag" cbor:"2,keyasint"`
}

package api

import (
	"net/http"
)

// newVote casts the vote of an authenticated user and returns the tags of
// the vote.
// POST /elections/{electionId}/votes
func (a *API) newVote(w http.ResponseWriter, r *http.Request) {
	e := a.electionParam(w, r)
	if e == nil {
		return
	}
	req := &VoteRequest{}
	if err := decodeBody(w, r, req); err != nil {
		errorFrom(err).Write(w)
		return
	}
	cm, err := a.caster.Cast(r.Context(), req.UserID, e.ID, req.CandidateID)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	httpWriteJSON(w, &VoteResponse{BallotTag: cm.BallotTag, VoterTag: cm.VoterTag})
}

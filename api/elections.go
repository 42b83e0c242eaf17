package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/votecommit/log"
	"github.com/vocdoni/votecommit/types"
)

// newElection creates an election from the creation data in the body.
// Candidate ids are assigned in the given order, starting at 1.
// POST /elections
func (a *API) newElection(w http.ResponseWriter, r *http.Request) {
	p := &types.ElectionParams{}
	if err := decodeBody(w, r, p); err != nil {
		errorFrom(err).Write(w)
		return
	}
	e, err := types.NewElection(p, a.now())
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	if err := a.storage.NewElection(e); err != nil {
		errorFrom(err).Write(w)
		return
	}
	log.Infow("election created", "electionId", e.ID, "candidates", len(e.Candidates), "endTime", e.EndTime)
	httpWriteJSON(w, e)
}

// listElections returns every election, newest start time first.
// GET /elections
func (a *API) listElections(w http.ResponseWriter, r *http.Request) {
	elections, err := a.storage.ListElections()
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	if elections == nil {
		elections = []*types.Election{}
	}
	httpWriteJSON(w, &ElectionsResponse{Elections: elections})
}

// GET /elections/{electionId}
func (a *API) election(w http.ResponseWriter, r *http.Request) {
	e := a.electionParam(w, r)
	if e == nil {
		return
	}
	httpWriteJSON(w, e)
}

// deleteElection removes an election with its participation records and
// ballots.
// DELETE /elections/{electionId}
func (a *API) deleteElection(w http.ResponseWriter, r *http.Request) {
	e := a.electionParam(w, r)
	if e == nil {
		return
	}
	if err := a.storage.DeleteElection(e.ID); err != nil {
		errorFrom(err).Write(w)
		return
	}
	a.trees.Remove(e.ID)
	httpWriteOK(w)
}

// voterStatus tells whether a user has voted and can vote in an election.
// GET /elections/{electionId}/voters/{userId}
func (a *API) voterStatus(w http.ResponseWriter, r *http.Request) {
	e := a.electionParam(w, r)
	if e == nil {
		return
	}
	userID := chi.URLParam(r, UserURLParam)
	if userID == "" {
		ErrMalformedParam.With("missing user id").Write(w)
		return
	}
	st, err := a.caster.Status(e.ID, userID)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	httpWriteJSON(w, st)
}

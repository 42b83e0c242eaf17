package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/votecommit/crypto/hash"
	"github.com/vocdoni/votecommit/finalizer"
	"github.com/vocdoni/votecommit/internal/testutil"
	"github.com/vocdoni/votecommit/ledger/memledger"
	"github.com/vocdoni/votecommit/merkle"
	"github.com/vocdoni/votecommit/types"
	"github.com/vocdoni/votecommit/voting"
)

type testAPI struct {
	*API
	ledger *memledger.Ledger
	srv    *httptest.Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	stg := testutil.NewStorage(t)
	l := memledger.New()
	a, err := NewHandler(&APIConfig{
		Storage:   stg,
		Caster:    voting.New(stg, testutil.Secrets(), l),
		Finalizer: finalizer.New(stg, l),
		Ledger:    l,
	})
	qt.Assert(t, err, qt.IsNil)
	srv := httptest.NewServer(a.Router())
	t.Cleanup(srv.Close)
	return &testAPI{API: a, ledger: l, srv: srv}
}

// request sends a JSON request and decodes the JSON response into out,
// returning the HTTP status.
func (ta *testAPI) request(t *testing.T, method, path string, body, out any) int {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		qt.Assert(t, err, qt.IsNil)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ta.srv.URL+path, rd)
	qt.Assert(t, err, qt.IsNil)
	req.Header.Set("Content-Type", "application/json")
	resp, err := ta.srv.Client().Do(req)
	qt.Assert(t, err, qt.IsNil)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		qt.Assert(t, json.NewDecoder(resp.Body).Decode(out), qt.IsNil)
	}
	return resp.StatusCode
}

type apiError struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (ta *testAPI) createElection(t *testing.T) *types.Election {
	t.Helper()
	e := &types.Election{}
	status := ta.request(t, http.MethodPost, ElectionsEndpoint, testutil.ElectionParams(), e)
	qt.Assert(t, status, qt.Equals, http.StatusOK)
	return e
}

func electionPath(endpoint, id string) string {
	return EndpointWithParam(endpoint, ElectionURLParam, id)
}

func TestPing(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(t)
	c.Assert(ta.request(t, http.MethodGet, PingEndpoint, nil, nil), qt.Equals, http.StatusOK)
}

func TestElectionEndpoints(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(t)

	e := ta.createElection(t)
	c.Assert(e.ID, qt.Matches, types.ElectionIDPrefix+".*")
	c.Assert(e.IsActive, qt.IsTrue)
	c.Assert(e.Candidates, qt.HasLen, 3)
	c.Assert(e.Candidates[2].ID, qt.Equals, 3)

	got := &types.Election{}
	c.Assert(ta.request(t, http.MethodGet, electionPath(ElectionEndpoint, e.ID), nil, got), qt.Equals, http.StatusOK)
	c.Assert(got.ContentHash, qt.Equals, e.ContentHash)

	list := &ElectionsResponse{}
	c.Assert(ta.request(t, http.MethodGet, ElectionsEndpoint, nil, list), qt.Equals, http.StatusOK)
	c.Assert(list.Elections, qt.HasLen, 1)

	apiErr := &apiError{}
	c.Assert(ta.request(t, http.MethodGet, electionPath(ElectionEndpoint, "ELEC-missing"), nil, apiErr),
		qt.Equals, http.StatusNotFound)
	c.Assert(apiErr.Code, qt.Equals, ErrElectionNotFound.Code)

	bad := testutil.ElectionParams()
	bad.Title = ""
	c.Assert(ta.request(t, http.MethodPost, ElectionsEndpoint, bad, apiErr), qt.Equals, http.StatusBadRequest)
	c.Assert(apiErr.Code, qt.Equals, ErrInvalidInput.Code)

	bad = testutil.ElectionParams()
	bad.EndTime = bad.StartTime
	c.Assert(ta.request(t, http.MethodPost, ElectionsEndpoint, bad, apiErr), qt.Equals, http.StatusBadRequest)

	c.Assert(ta.request(t, http.MethodPost, ElectionsEndpoint, map[string]any{"unknown": 1}, apiErr),
		qt.Equals, http.StatusBadRequest)
	c.Assert(apiErr.Code, qt.Equals, ErrMalformedBody.Code)

	c.Assert(ta.request(t, http.MethodDelete, electionPath(ElectionEndpoint, e.ID), nil, nil), qt.Equals, http.StatusOK)
	c.Assert(ta.request(t, http.MethodGet, electionPath(ElectionEndpoint, e.ID), nil, apiErr), qt.Equals, http.StatusNotFound)
}

func TestVoteFlow(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(t)
	e := ta.createElection(t)

	voterPath := EndpointWithParam(electionPath(VoterEndpoint, e.ID), UserURLParam, "user-0")
	st := &voting.VoterStatus{}
	c.Assert(ta.request(t, http.MethodGet, voterPath, nil, st), qt.Equals, http.StatusOK)
	c.Assert(st.CanVote, qt.IsTrue)

	var tags []string
	for i := range 5 {
		vr := &VoteResponse{}
		status := ta.request(t, http.MethodPost, electionPath(VotesEndpoint, e.ID),
			&VoteRequest{UserID: fmt.Sprintf("user-%d", i), CandidateID: i%3 + 1}, vr)
		c.Assert(status, qt.Equals, http.StatusOK)
		c.Assert(vr.BallotTag, qt.HasLen, 2*hash.Size)
		tags = append(tags, vr.BallotTag)
	}

	c.Assert(ta.request(t, http.MethodGet, voterPath, nil, st), qt.Equals, http.StatusOK)
	c.Assert(st, qt.DeepEquals, &voting.VoterStatus{HasVoted: true})

	apiErr := &apiError{}
	status := ta.request(t, http.MethodPost, electionPath(VotesEndpoint, e.ID),
		&VoteRequest{UserID: "user-0", CandidateID: 1}, apiErr)
	c.Assert(status, qt.Equals, http.StatusConflict)
	c.Assert(apiErr.Code, qt.Equals, ErrAlreadyVoted.Code)

	status = ta.request(t, http.MethodPost, electionPath(VotesEndpoint, e.ID),
		&VoteRequest{UserID: "user-x", CandidateID: 9}, apiErr)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(apiErr.Code, qt.Equals, ErrInvalidInput.Code)

	// results, proofs and audits need a closed election
	c.Assert(ta.request(t, http.MethodGet, electionPath(ResultsEndpoint, e.ID), nil, apiErr), qt.Equals, http.StatusBadRequest)
	c.Assert(apiErr.Code, qt.Equals, ErrElectionNotClosed.Code)

	receipt := &types.ClosureReceipt{}
	c.Assert(ta.request(t, http.MethodPost, electionPath(CloseEndpoint, e.ID), nil, receipt), qt.Equals, http.StatusOK)
	c.Assert(receipt.BallotCount, qt.Equals, 5)
	c.Assert(receipt.Root, qt.Equals, merkle.BuildSorted(tags).Root())

	c.Assert(ta.request(t, http.MethodPost, electionPath(CloseEndpoint, e.ID), nil, apiErr), qt.Equals, http.StatusConflict)
	c.Assert(apiErr.Code, qt.Equals, ErrElectionClosed.Code)

	status = ta.request(t, http.MethodPost, electionPath(VotesEndpoint, e.ID),
		&VoteRequest{UserID: "user-late", CandidateID: 1}, apiErr)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(apiErr.Code, qt.Equals, ErrElectionNotAcceptingVotes.Code)

	res := &ResultsResponse{}
	c.Assert(ta.request(t, http.MethodGet, electionPath(ResultsEndpoint, e.ID), nil, res), qt.Equals, http.StatusOK)
	c.Assert(res.Results, qt.DeepEquals, []CandidateResult{
		{CandidateID: 1, Name: "Alice", Votes: 2},
		{CandidateID: 2, Name: "Bob", Votes: 2},
		{CandidateID: 3, Name: "Carol", Votes: 1},
	})
	c.Assert(res.ResultsDigest, qt.Equals, receipt.ResultsDigest)

	for _, tag := range tags {
		pr := &ProofResponse{}
		path := EndpointWithParam(electionPath(ProofEndpoint, e.ID), BallotTagURLParam, tag)
		c.Assert(ta.request(t, http.MethodGet, path, nil, pr), qt.Equals, http.StatusOK)
		c.Assert(pr.Root, qt.Equals, receipt.Root)

		vr := &VerifyProofResponse{}
		c.Assert(ta.request(t, http.MethodPost, VerifyProofEndpoint,
			&VerifyProofRequest{BallotTag: tag, Root: pr.Root.Hex(), Proof: pr.Proof}, vr), qt.Equals, http.StatusOK)
		c.Assert(vr.Valid, qt.IsTrue)

		// the proof of one ballot does not prove another
		vr = &VerifyProofResponse{}
		c.Assert(ta.request(t, http.MethodPost, VerifyProofEndpoint,
			&VerifyProofRequest{BallotTag: hash.SumString(tag).Hex(), Root: pr.Root.Hex(), Proof: pr.Proof}, vr),
			qt.Equals, http.StatusOK)
		c.Assert(vr.Valid, qt.IsFalse)
	}

	missing := EndpointWithParam(electionPath(ProofEndpoint, e.ID), BallotTagURLParam, hash.SumString("nope").Hex())
	c.Assert(ta.request(t, http.MethodGet, missing, nil, apiErr), qt.Equals, http.StatusNotFound)
	c.Assert(apiErr.Code, qt.Equals, ErrBallotNotFound.Code)
	malformed := EndpointWithParam(electionPath(ProofEndpoint, e.ID), BallotTagURLParam, "xyz")
	c.Assert(ta.request(t, http.MethodGet, malformed, nil, apiErr), qt.Equals, http.StatusBadRequest)

	audit := &AuditResponse{}
	c.Assert(ta.request(t, http.MethodGet, electionPath(AuditEndpoint, e.ID), nil, audit), qt.Equals, http.StatusOK)
	c.Assert(audit.RootsMatch, qt.IsTrue)
	c.Assert(audit.ResultsMatch, qt.IsTrue)
	c.Assert(audit.LedgerMatch, qt.IsTrue)
	c.Assert(*audit.LedgerRoot, qt.Equals, receipt.Root)
	c.Assert(audit.BallotCount, qt.Equals, 5)
}

func TestVerifyProofMalformed(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(t)

	apiErr := &apiError{}
	req := &VerifyProofRequest{
		BallotTag: "a1",
		Root:      hash.EmptyRoot.Hex(),
		Proof: &merkle.HexProof{Steps: []merkle.HexProofStep{
			{Sibling: hash.EmptyRoot.Hex(), Side: "up"},
		}},
	}
	c.Assert(ta.request(t, http.MethodPost, VerifyProofEndpoint, req, apiErr), qt.Equals, http.StatusBadRequest)
	c.Assert(apiErr.Code, qt.Equals, ErrMalformedProof.Code)

	req.Proof.Steps[0] = merkle.HexProofStep{Sibling: "abcd", Side: "left"}
	c.Assert(ta.request(t, http.MethodPost, VerifyProofEndpoint, req, apiErr), qt.Equals, http.StatusBadRequest)
	c.Assert(apiErr.Code, qt.Equals, ErrMalformedProof.Code)

	req.Proof = nil
	req.Root = "zz"
	c.Assert(ta.request(t, http.MethodPost, VerifyProofEndpoint, req, apiErr), qt.Equals, http.StatusBadRequest)
	c.Assert(apiErr.Code, qt.Equals, ErrMalformedProof.Code)
}

func TestLedgerUnavailable(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(t)
	e := ta.createElection(t)

	ta.ledger.SetFailing(true)
	apiErr := &apiError{}
	status := ta.request(t, http.MethodPost, electionPath(VotesEndpoint, e.ID),
		&VoteRequest{UserID: "user-1", CandidateID: 1}, apiErr)
	c.Assert(status, qt.Equals, http.StatusServiceUnavailable)
	c.Assert(apiErr.Code, qt.Equals, ErrLedgerUnavailable.Code)
	c.Assert(ta.request(t, http.MethodPost, electionPath(CloseEndpoint, e.ID), nil, apiErr),
		qt.Equals, http.StatusServiceUnavailable)

	ta.ledger.SetFailing(false)
	got := &types.Election{}
	c.Assert(ta.request(t, http.MethodGet, electionPath(ElectionEndpoint, e.ID), nil, got), qt.Equals, http.StatusOK)
	c.Assert(got.IsActive, qt.IsTrue)
}

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/votecommit/commitment"
	"github.com/vocdoni/votecommit/finalizer"
	"github.com/vocdoni/votecommit/log"
	"github.com/vocdoni/votecommit/merkle"
	"github.com/vocdoni/votecommit/storage"
	"github.com/vocdoni/votecommit/types"
)

// closeElection closes an election and returns its closure receipt.
// POST /elections/{electionId}/close
func (a *API) closeElection(w http.ResponseWriter, r *http.Request) {
	e := a.electionParam(w, r)
	if e == nil {
		return
	}
	receipt, err := a.finalizer.Close(r.Context(), e.ID)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	httpWriteJSON(w, receipt)
}

// results returns the tally of a closed election with the candidate names.
// GET /elections/{electionId}/results
func (a *API) results(w http.ResponseWriter, r *http.Request) {
	e := a.closedElectionParam(w, r)
	if e == nil {
		return
	}
	receipt, err := a.finalizer.Receipt(e.ID)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	names := make(map[int]string, len(e.Candidates))
	for _, c := range e.Candidates {
		names[c.ID] = c.Name
	}
	res := &ResultsResponse{
		ElectionID:    e.ID,
		Title:         e.Title,
		Root:          receipt.Root,
		ResultsDigest: receipt.ResultsDigest,
		BallotCount:   receipt.BallotCount,
		ClosedAt:      receipt.ClosedAt,
		Results:       make([]CandidateResult, 0, len(receipt.Tally)),
	}
	for _, t := range receipt.Tally {
		res.Results = append(res.Results, CandidateResult{
			CandidateID: t.CandidateID,
			Name:        names[t.CandidateID],
			Votes:       t.Votes,
		})
	}
	httpWriteJSON(w, res)
}

// proof returns the inclusion proof of a ballot tag in a closed election.
// GET /elections/{electionId}/proofs/{ballotTag}
func (a *API) proof(w http.ResponseWriter, r *http.Request) {
	e := a.closedElectionParam(w, r)
	if e == nil {
		return
	}
	tag := chi.URLParam(r, BallotTagURLParam)
	if !commitment.ValidTag(tag) {
		ErrMalformedParam.Withf("invalid ballot tag %q", tag).Write(w)
		return
	}
	tree, err := a.tree(e)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	p, err := merkle.Prove(tree, tag)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			ErrBallotNotFound.With(tag).Write(w)
			return
		}
		errorFrom(err).Write(w)
		return
	}
	httpWriteJSON(w, &ProofResponse{
		ElectionID: e.ID,
		BallotTag:  tag,
		Root:       tree.Root(),
		Proof:      p.Hex(),
	})
}

// tree returns the Merkle tree of a closed election, from the cache when
// possible. A tree whose root differs from the stored root is never served.
func (a *API) tree(e *types.Election) (*merkle.Tree, error) {
	if t, ok := a.trees.Get(e.ID); ok {
		return t, nil
	}
	ballots, err := a.storage.ListOrderedBallots(e.ID)
	if err != nil {
		return nil, err
	}
	t := merkle.Build(storage.BallotTags(ballots))
	if t.Root() != *e.MerkleRoot {
		log.Warnw("recomputed root does not match the stored root",
			"electionId", e.ID, "stored", e.MerkleRoot.Hex(), "recomputed", t.Root().Hex())
		return nil, ErrInconsistentRoot.With(e.ID)
	}
	a.trees.Add(e.ID, t)
	return t, nil
}

// verifyProof checks an untrusted inclusion proof. It needs no state: any
// party holding the published root can run the same check.
// POST /proofs/verify
func (a *API) verifyProof(w http.ResponseWriter, r *http.Request) {
	req := &VerifyProofRequest{}
	if err := decodeBody(w, r, req); err != nil {
		errorFrom(err).Write(w)
		return
	}
	if req.BallotTag == "" {
		ErrInvalidInput.With("missing ballot tag").Write(w)
		return
	}
	valid, err := merkle.VerifyHex(req.BallotTag, req.Proof, req.Root)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	httpWriteJSON(w, &VerifyProofResponse{Valid: valid})
}

// audit recomputes the root and the results digest of a closed election from
// its stored ballots and compares them with the stored and anchored values.
// GET /elections/{electionId}/audit
func (a *API) audit(w http.ResponseWriter, r *http.Request) {
	e := a.closedElectionParam(w, r)
	if e == nil {
		return
	}
	ballots, err := a.storage.ListOrderedBallots(e.ID)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	recomputed, err := finalizer.Compute(e, ballots)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	res := &AuditResponse{
		ElectionID:              e.ID,
		BallotCount:             len(ballots),
		StoredRoot:              *e.MerkleRoot,
		RecomputedRoot:          recomputed.Root,
		RootsMatch:              *e.MerkleRoot == recomputed.Root,
		StoredResultsDigest:     *e.ResultsDigest,
		RecomputedResultsDigest: recomputed.ResultsDigest,
		ResultsMatch:            *e.ResultsDigest == recomputed.ResultsDigest,
	}
	if a.ledger != nil {
		root, err := a.ledger.QueryCommittedRoot(r.Context(), e.ID)
		if err != nil {
			errorFrom(err).Write(w)
			return
		}
		res.LedgerRoot = root
		res.LedgerMatch = root != nil && *root == *e.MerkleRoot
	}
	if !res.RootsMatch || !res.ResultsMatch || (a.ledger != nil && !res.LedgerMatch) {
		log.Warnw("audit mismatch", "electionId", e.ID,
			"rootsMatch", res.RootsMatch, "resultsMatch", res.ResultsMatch, "ledgerMatch", res.LedgerMatch)
	}
	httpWriteJSON(w, res)
}

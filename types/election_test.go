package types

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func validParams() *ElectionParams {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	return &ElectionParams{
		Title:       "Board",
		Description: "Yearly board election",
		StartTime:   start,
		EndTime:     start.Add(24 * time.Hour),
		Candidates: []CandidateParams{
			{Name: "Alice", Description: "a"},
			{Name: "Bob", Description: "b"},
		},
	}
}

func TestNewElection(t *testing.T) {
	c := qt.New(t)
	now := time.Now()
	e, err := NewElection(validParams(), now)
	c.Assert(err, qt.IsNil)
	c.Assert(strings.HasPrefix(e.ID, ElectionIDPrefix), qt.IsTrue)
	c.Assert(ValidElectionID(e.ID), qt.IsTrue)
	c.Assert(e.IsActive, qt.IsTrue)
	c.Assert(e.MerkleRoot, qt.IsNil)
	c.Assert(e.ContentHash.IsZero(), qt.IsFalse)
	c.Assert(e.Candidates, qt.DeepEquals, []Candidate{
		{ID: 1, Name: "Alice", Description: "a"},
		{ID: 2, Name: "Bob", Description: "b"},
	})
	c.Assert(e.HasCandidate(2), qt.IsTrue)
	c.Assert(e.HasCandidate(3), qt.IsFalse)

	other, err := NewElection(validParams(), now)
	c.Assert(err, qt.IsNil)
	c.Assert(other.ID, qt.Not(qt.Equals), e.ID)
	c.Assert(other.ContentHash, qt.Not(qt.Equals), e.ContentHash)
}

func TestElectionParamsValidate(t *testing.T) {
	c := qt.New(t)
	for i, mutate := range []func(p *ElectionParams){
		func(p *ElectionParams) { p.Title = " " },
		func(p *ElectionParams) { p.Title = strings.Repeat("x", MaxTitleLength+1) },
		func(p *ElectionParams) { p.Description = "" },
		func(p *ElectionParams) { p.EndTime = p.StartTime },
		func(p *ElectionParams) { p.StartTime = time.Time{} },
		func(p *ElectionParams) { p.Candidates = nil },
		func(p *ElectionParams) { p.Candidates[1].Description = "" },
	} {
		p := validParams()
		mutate(p)
		c.Assert(p.Validate(), qt.ErrorIs, ErrInvalidInput, qt.Commentf("case %d", i))
	}
	c.Assert(validParams().Validate(), qt.IsNil)
}

func TestAcceptsVotes(t *testing.T) {
	c := qt.New(t)
	e, err := NewElection(validParams(), time.Now())
	c.Assert(err, qt.IsNil)
	c.Assert(e.AcceptsVotes(e.StartTime.Add(-time.Second)), qt.IsFalse)
	c.Assert(e.AcceptsVotes(e.StartTime), qt.IsTrue)
	c.Assert(e.AcceptsVotes(e.EndTime), qt.IsFalse)
	e.IsActive = false
	c.Assert(e.AcceptsVotes(e.StartTime.Add(time.Hour)), qt.IsFalse)
}

func TestValidElectionID(t *testing.T) {
	c := qt.New(t)
	c.Assert(ValidElectionID(""), qt.IsFalse)
	c.Assert(ValidElectionID("a/b"), qt.IsFalse)
	c.Assert(ValidElectionID(strings.Repeat("a", MaxElectionIDLength+1)), qt.IsFalse)
	c.Assert(ValidElectionID("e1"), qt.IsTrue)
}

func TestIsRetryable(t *testing.T) {
	c := qt.New(t)
	c.Assert(IsRetryable(fmt.Errorf("submit: %w", ErrLedger)), qt.IsTrue)
	c.Assert(IsRetryable(ErrDuplicateVote), qt.IsFalse)
	c.Assert(IsRetryable(errors.New("other")), qt.IsFalse)
	c.Assert(IsRetryable(nil), qt.IsFalse)
}

func TestBallotTime(t *testing.T) {
	c := qt.New(t)
	at := time.Date(2026, 3, 4, 10, 59, 59, 999, time.FixedZone("CET", 3600))
	c.Assert(BallotTime(at), qt.Equals, time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC))
	c.Assert(BallotTime(at.Add(-time.Minute)), qt.Equals, BallotTime(at))
}

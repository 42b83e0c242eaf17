// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/votecommit/commitment"
	"github.com/vocdoni/votecommit/db"
	"github.com/vocdoni/votecommit/db/metadb"
	"github.com/vocdoni/votecommit/storage"
	"github.com/vocdoni/votecommit/types"
)

// Salt is the secret salt used by tests.
const Salt = "test-salt-do-not-use"

// Secrets returns a SecretStore holding Salt.
func Secrets() commitment.SecretStore {
	return commitment.NewStaticSecret(Salt)
}

// NewStorage returns a storage over a temporary pebble database.
func NewStorage(tb testing.TB) *storage.Storage {
	tb.Helper()
	return storage.New(metadb.NewTest(tb))
}

// ErrDiskFull is returned by the commits a CommitFailer fails.
var ErrDiskFull = errors.New("disk full")

// CommitFailer is a database whose next commits can be made to fail.
type CommitFailer struct {
	db.Database
	fail atomic.Int32
}

// NewCommitFailer wraps a temporary pebble database.
func NewCommitFailer(tb testing.TB) *CommitFailer {
	tb.Helper()
	return &CommitFailer{Database: metadb.NewTest(tb)}
}

// FailNext makes the next n commits return ErrDiskFull without writing.
func (d *CommitFailer) FailNext(n int) {
	d.fail.Store(int32(n))
}

func (d *CommitFailer) WriteTx() db.WriteTx {
	return &failingTx{WriteTx: d.Database.WriteTx(), parent: d}
}

type failingTx struct {
	db.WriteTx
	parent *CommitFailer
}

func (tx *failingTx) Commit() error {
	for {
		n := tx.parent.fail.Load()
		if n <= 0 {
			return tx.WriteTx.Commit()
		}
		if tx.parent.fail.CompareAndSwap(n, n-1) {
			return ErrDiskFull
		}
	}
}

// ElectionParams returns the creation data of an election open from an hour
// ago until an hour from now, with the given candidate names.
func ElectionParams(names ...string) *types.ElectionParams {
	if len(names) == 0 {
		names = []string{"Alice", "Bob", "Carol"}
	}
	start := time.Now().Add(-time.Hour)
	p := &types.ElectionParams{
		Title:       "Test election",
		Description: "An election created by a test",
		StartTime:   start,
		EndTime:     start.Add(2 * time.Hour),
	}
	for _, n := range names {
		p.Candidates = append(p.Candidates, types.CandidateParams{Name: n, Description: n + " for president"})
	}
	return p
}

// NewElection stores and returns an open election with the given candidate
// names (three by default).
func NewElection(tb testing.TB, stg *storage.Storage, names ...string) *types.Election {
	tb.Helper()
	e, err := types.NewElection(ElectionParams(names...), time.Now())
	qt.Assert(tb, err, qt.IsNil)
	qt.Assert(tb, stg.NewElection(e), qt.IsNil)
	return e
}

package pebbledb

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/votecommit/db"
	"github.com/vocdoni/votecommit/db/internal/dbtest"
	"github.com/vocdoni/votecommit/db/prefixeddb"
)

func newTestDB(t *testing.T) *PebbleDB {
	database, err := New(db.Options{Path: t.TempDir()})
	qt.Assert(t, err, qt.IsNil)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestWriteTx(t *testing.T) {
	dbtest.TestWriteTx(t, newTestDB(t))
}

func TestIterate(t *testing.T) {
	dbtest.TestIterate(t, newTestDB(t))
}

func TestPrefixed(t *testing.T) {
	database := newTestDB(t)
	dbtest.TestPrefixed(t, database, prefixeddb.NewPrefixedDatabase(database, []byte("one/")))
}

func TestReopen(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()

	database, err := New(db.Options{Path: dir})
	c.Assert(err, qt.IsNil)
	tx := database.WriteTx()
	c.Assert(tx.Set([]byte("k"), []byte("v")), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)
	c.Assert(database.Close(), qt.IsNil)

	database, err = New(db.Options{Path: dir})
	c.Assert(err, qt.IsNil)
	defer func() { _ = database.Close() }()
	v, err := database.Get([]byte("k"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "v")
}

func TestUpperBound(t *testing.T) {
	c := qt.New(t)
	c.Assert(upperBound([]byte("b/")), qt.DeepEquals, []byte("b0"))
	c.Assert(upperBound([]byte{0x01, 0xff}), qt.DeepEquals, []byte{0x02})
	c.Assert(upperBound([]byte{0xff, 0xff}), qt.IsNil)
	c.Assert(upperBound(nil), qt.IsNil)
}

func TestEmptyPath(t *testing.T) {
	_, err := New(db.Options{})
	qt.Assert(t, err, qt.IsNotNil)
}

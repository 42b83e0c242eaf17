// Package dbtest holds behaviour tests shared by every db.Database backend.
package dbtest

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/votecommit/db"
)

// TestWriteTx checks read-your-writes, commit visibility and discard.
func TestWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	tx := database.WriteTx()
	_, err := tx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(tx.Set([]byte("a"), []byte("1")), qt.IsNil)
	v, err := tx.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "1")

	// not visible before commit
	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(tx.Commit(), qt.IsNil)
	v, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "1")

	// committed transactions cannot be reused
	c.Assert(tx.Set([]byte("b"), []byte("2")), qt.ErrorIs, db.ErrTxClosed)

	tx = database.WriteTx()
	c.Assert(tx.Set([]byte("b"), []byte("2")), qt.IsNil)
	tx.Discard()
	_, err = database.Get([]byte("b"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	tx = database.WriteTx()
	c.Assert(tx.Delete([]byte("a")), qt.IsNil)
	_, err = tx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	c.Assert(tx.Commit(), qt.IsNil)
	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
}

// TestIterate checks prefix filtering, ordering, prefix stripping and early
// stop.
func TestIterate(t *testing.T, database db.Database) {
	c := qt.New(t)

	tx := database.WriteTx()
	for _, k := range []string{"p/c", "p/a", "p/b", "q/a", "p"} {
		c.Assert(tx.Set([]byte(k), []byte("v"+k)), qt.IsNil)
	}
	c.Assert(tx.Commit(), qt.IsNil)

	var keys []string
	c.Assert(database.Iterate([]byte("p/"), func(k, v []byte) bool {
		keys = append(keys, string(k))
		c.Assert(string(v), qt.Equals, "vp/"+string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"a", "b", "c"})

	keys = nil
	c.Assert(database.Iterate([]byte("p/"), func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return len(keys) < 2
	}), qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"a", "b"})

	// a transaction sees its own pending writes and deletes
	tx = database.WriteTx()
	c.Assert(tx.Set([]byte("p/ab"), []byte("vp/ab")), qt.IsNil)
	c.Assert(tx.Delete([]byte("p/c")), qt.IsNil)
	keys = nil
	c.Assert(tx.Iterate([]byte("p/"), func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"a", "ab", "b"})
	tx.Discard()
}

// TestPrefixed checks that a prefixed view writes under its prefix and only
// sees its own keys.
func TestPrefixed(t *testing.T, database db.Database, prefixed db.Database) {
	c := qt.New(t)

	tx := prefixed.WriteTx()
	c.Assert(tx.Set([]byte("k"), []byte("inner")), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)

	tx = database.WriteTx()
	c.Assert(tx.Set([]byte("k"), []byte("outer")), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)

	v, err := prefixed.Get([]byte("k"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "inner")
	v, err = database.Get([]byte("k"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "outer")

	var keys []string
	c.Assert(prefixed.Iterate(nil, func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"k"})
}

// TestConcurrentWriteTx checks optimistic conflict detection. Only backends
// that detect conflicts run it.
func TestConcurrentWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	tx1 := database.WriteTx()
	tx2 := database.WriteTx()
	_, err := tx1.Get([]byte("x"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	_, err = tx2.Get([]byte("x"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	c.Assert(tx1.Set([]byte("x"), []byte("1")), qt.IsNil)
	c.Assert(tx2.Set([]byte("x"), []byte("2")), qt.IsNil)

	c.Assert(tx1.Commit(), qt.IsNil)
	c.Assert(tx2.Commit(), qt.ErrorIs, db.ErrConflict)
	tx2.Discard()

	v, err := database.Get([]byte("x"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "1")
}

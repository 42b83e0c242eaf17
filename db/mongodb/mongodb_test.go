package mongodb

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/votecommit/db"
	"github.com/vocdoni/votecommit/db/internal/dbtest"
	"github.com/vocdoni/votecommit/db/prefixeddb"
)

func newTestDB(t *testing.T) *MongoDB {
	if os.Getenv(URLEnv) == "" {
		t.Skipf("%s not set", URLEnv)
	}
	name := make([]byte, 8)
	_, _ = rand.Read(name)
	database, err := New(db.Options{Path: "test" + hex.EncodeToString(name)})
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

func TestNewWithoutURL(t *testing.T) {
	t.Setenv(URLEnv, "")
	_, err := New(db.Options{Path: "x"})
	qt.Assert(t, err, qt.IsNotNil)
}

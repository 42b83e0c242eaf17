// Package metadb opens a db.Database by backend name.
package metadb

import (
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/votecommit/db"
	"github.com/vocdoni/votecommit/db/inmemory"
	"github.com/vocdoni/votecommit/db/mongodb"
	"github.com/vocdoni/votecommit/db/pebbledb"
)

// New opens a database of the given type (db.TypePebble, db.TypeInMem or
// db.TypeMongo). dir is the data directory for pebble and the database name
// for mongodb.
func New(typ, dir string) (db.Database, error) {
	opts := db.Options{Path: dir}
	switch typ {
	case db.TypePebble:
		return pebbledb.New(opts)
	case db.TypeInMem:
		return inmemory.New(opts)
	case db.TypeMongo:
		return mongodb.New(opts)
	default:
		return nil, fmt.Errorf("invalid db type %q, available types: %q %q %q",
			typ, db.TypePebble, db.TypeInMem, db.TypeMongo)
	}
}

// NewTest returns a pebble database in a temporary directory, closed when the
// test ends.
func NewTest(tb testing.TB) db.Database {
	database, err := New(db.TypePebble, tb.TempDir())
	qt.Assert(tb, err, qt.IsNil)
	tb.Cleanup(func() { _ = database.Close() })
	return database
}

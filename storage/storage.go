/*
Package storage persists elections, participation records and ballots on a
db.Database and enforces their uniqueness constraints.

# Storage Organization

- e/  : electionID → Election (metadata, state, committed root and results digest)
- vp/ : electionID + "/" + userID → ParticipationRecord (who voted, never what)
- b/  : electionID + "/" + ballotTag → Ballot (what was voted, never who)

Participation records and ballots live under unrelated keys and are written
in the same transaction, so nothing stored links a voter to a ballot. Ballot
keys end with the tag, which makes the key order of an election the
canonical ballot order.

# Locking

Elections map by id hash onto a fixed set of read-write locks. Votes hold
the election's lock shared and serialize on a striped lock keyed by the
participation key and the ballot tag; closing and deleting an election hold
it exclusively. No operation holds two election locks. Backends such as pebble do not
detect transaction conflicts, so these locks are what make the uniqueness
checks hold.
*/
package storage

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vocdoni/votecommit/db"
	"github.com/vocdoni/votecommit/db/prefixeddb"
	"github.com/vocdoni/votecommit/log"
	"github.com/vocdoni/votecommit/types"
)

var (
	electionPrefix      = []byte("e/")
	participationPrefix = []byte("vp/")
	ballotPrefix        = []byte("b/")
)

const (
	lockStripes = 256
	// cacheSize bounds the number of closed elections whose ordered ballots
	// are kept in memory.
	cacheSize = 256
)

// Storage is the handle shared by every component. It is safe for concurrent
// use.
type Storage struct {
	db db.Database

	electionLocks [lockStripes]sync.RWMutex
	stripes       [lockStripes]sync.Mutex

	// ordered ballots of closed elections, which never change
	cache *lru.Cache[string, []types.Ballot]
}

// New creates a Storage over database.
func New(database db.Database) *Storage {
	cache, err := lru.New[string, []types.Ballot](cacheSize)
	if err != nil {
		log.Fatalf("failed to create LRU cache: %v", err)
	}
	return &Storage{
		db:    database,
		cache: cache,
	}
}

// Close closes the underlying database.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Errorw(err, "failed to close storage")
	}
}

// electionLock returns the lock stripe of an election.
func (s *Storage) electionLock(electionID string) *sync.RWMutex {
	return &s.electionLocks[xxhash.Sum64String(electionID)%lockStripes]
}

// lockKeys locks the stripes of all keys in ascending stripe order and
// returns the unlock function.
func (s *Storage) lockKeys(keys ...[]byte) func() {
	idx := make([]int, 0, len(keys))
	for _, k := range keys {
		idx = append(idx, int(xxhash.Sum64(k)%lockStripes))
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)
	for _, i := range idx {
		s.stripes[i].Lock()
	}
	return func() {
		for i := len(idx) - 1; i >= 0; i-- {
			s.stripes[idx[i]].Unlock()
		}
	}
}

// scopedKey returns electionID + "/" + sub.
func scopedKey(electionID, sub string) []byte {
	k := make([]byte, 0, len(electionID)+1+len(sub))
	k = append(k, electionID...)
	k = append(k, '/')
	return append(k, sub...)
}

// fullKey returns prefix + key without aliasing prefix.
func fullKey(prefix, key []byte) []byte {
	return append(slices.Clip(prefix), key...)
}

// electionScope is the key prefix of every record of an election inside a
// namespace.
func electionScope(electionID string) []byte {
	return scopedKey(electionID, "")
}

// getArtifact reads and decodes the artifact under prefix+key. It returns
// types.ErrNotFound if the key does not exist.
func getArtifact(rd db.Reader, prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedReader(rd, prefix).Get(key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return types.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s%s: %w", prefix, key, err)
	}
	if err := DecodeArtifact(data, out); err != nil {
		return fmt.Errorf("could not decode artifact: %w", err)
	}
	return nil
}

// exists reports whether prefix+key is set.
func exists(rd db.Reader, prefix, key []byte) (bool, error) {
	_, err := prefixeddb.NewPrefixedReader(rd, prefix).Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, db.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

// setArtifact encodes artifact and sets it under prefix+key in tx.
func setArtifact(tx db.WriteTx, prefix, key []byte, artifact any) error {
	data, err := EncodeArtifact(artifact)
	if err != nil {
		return err
	}
	return prefixeddb.NewPrefixedWriteTx(tx, prefix).Set(key, data)
}

// deleteScope deletes every key under prefix+scope in tx and returns how many
// were removed.
func deleteScope(tx db.WriteTx, prefix, scope []byte) (int, error) {
	wtx := prefixeddb.NewPrefixedWriteTx(tx, prefix)
	var keys [][]byte
	if err := wtx.Iterate(scope, func(k, _ []byte) bool {
		keys = append(keys, append(slices.Clone(scope), k...))
		return true
	}); err != nil {
		return 0, err
	}
	for _, k := range keys {
		if err := wtx.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

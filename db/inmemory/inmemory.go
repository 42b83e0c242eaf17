// Package inmemory is an ephemeral db.Database with optimistic conflict
// detection, used by tests and by nodes started with db.type=inmem.
package inmemory

import (
	"bytes"
	"slices"
	"sync"

	"github.com/vocdoni/votecommit/db"
)

type entry struct {
	value   []byte
	version uint64
	deleted bool
}

// InMemoryDB implements db.Database over a map. Every committed write bumps a
// global version; a WriteTx fails with db.ErrConflict if any key it read or
// wrote changed after the transaction started.
type InMemoryDB struct {
	mu          sync.RWMutex
	data        map[string]entry
	nextVersion uint64
}

var _ db.Database = (*InMemoryDB)(nil)

// New returns a new in-memory database. Options are ignored.
func New(_ db.Options) (*InMemoryDB, error) {
	return &InMemoryDB{
		data: make(map[string]entry),
	}, nil
}

func (d *InMemoryDB) Close() error {
	return nil
}

func (d *InMemoryDB) Compact() error {
	return nil
}

func (d *InMemoryDB) WriteTx() db.WriteTx {
	d.mu.RLock()
	baseVer := d.nextVersion
	d.mu.RUnlock()
	return &WriteTx{
		db:      d,
		writes:  make(map[string]*[]byte),
		reads:   make(map[string]uint64),
		baseVer: baseVer,
	}
}

func (d *InMemoryDB) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ent, ok := d.data[string(key)]
	if !ok || ent.deleted {
		return nil, db.ErrKeyNotFound
	}
	return bytes.Clone(ent.value), nil
}

func (d *InMemoryDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	d.mu.RLock()
	entries := make(map[string][]byte)
	for k, ent := range d.data {
		if ent.deleted || !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		entries[k] = bytes.Clone(ent.value)
	}
	d.mu.RUnlock()
	return iterateEntries(entries, len(prefix), callback)
}

func (d *InMemoryDB) version(key string) uint64 {
	return d.data[key].version
}

func (d *InMemoryDB) apply(key string, value *[]byte) {
	d.nextVersion++
	ent := entry{version: d.nextVersion, deleted: value == nil}
	if value != nil {
		ent.value = bytes.Clone(*value)
	}
	d.data[key] = ent
}

// WriteTx is a buffered transaction over InMemoryDB. A nil pending value
// marks a delete.
type WriteTx struct {
	db      *InMemoryDB
	writes  map[string]*[]byte
	reads   map[string]uint64
	baseVer uint64
	closed  bool
}

var _ db.WriteTx = (*WriteTx)(nil)

func (tx *WriteTx) track(key string) {
	if _, ok := tx.reads[key]; ok {
		return
	}
	tx.db.mu.RLock()
	tx.reads[key] = tx.db.version(key)
	tx.db.mu.RUnlock()
}

func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	if tx.closed {
		return nil, db.ErrTxClosed
	}
	k := string(key)
	if pending, ok := tx.writes[k]; ok {
		if pending == nil {
			return nil, db.ErrKeyNotFound
		}
		return bytes.Clone(*pending), nil
	}

	tx.db.mu.RLock()
	ent, ok := tx.db.data[k]
	tx.db.mu.RUnlock()
	if _, seen := tx.reads[k]; !seen {
		tx.reads[k] = ent.version
	}
	if !ok || ent.deleted {
		return nil, db.ErrKeyNotFound
	}
	return bytes.Clone(ent.value), nil
}

func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	if tx.closed {
		return db.ErrTxClosed
	}
	tx.db.mu.RLock()
	entries := make(map[string][]byte)
	for k, ent := range tx.db.data {
		if ent.deleted || !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		entries[k] = bytes.Clone(ent.value)
		if _, seen := tx.reads[k]; !seen {
			tx.reads[k] = ent.version
		}
	}
	tx.db.mu.RUnlock()

	for k, v := range tx.writes {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if v == nil {
			delete(entries, k)
			continue
		}
		entries[k] = bytes.Clone(*v)
	}
	return iterateEntries(entries, len(prefix), callback)
}

func (tx *WriteTx) Set(key, value []byte) error {
	if tx.closed {
		return db.ErrTxClosed
	}
	k := string(key)
	tx.track(k)
	v := bytes.Clone(value)
	tx.writes[k] = &v
	return nil
}

func (tx *WriteTx) Delete(key []byte) error {
	if tx.closed {
		return db.ErrTxClosed
	}
	k := string(key)
	tx.track(k)
	tx.writes[k] = nil
	return nil
}

func (tx *WriteTx) Commit() error {
	if tx.closed {
		return db.ErrTxClosed
	}
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	for k, readVer := range tx.reads {
		if readVer > tx.baseVer || tx.db.version(k) != readVer {
			return db.ErrConflict
		}
	}
	for k, v := range tx.writes {
		tx.db.apply(k, v)
	}
	tx.closed = true
	return nil
}

func (tx *WriteTx) Discard() {
	tx.writes = map[string]*[]byte{}
	tx.reads = map[string]uint64{}
	tx.closed = true
}

func iterateEntries(entries map[string][]byte, prefixLen int, callback func(key, value []byte) bool) error {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !callback([]byte(k[prefixLen:]), entries[k]) {
			break
		}
	}
	return nil
}

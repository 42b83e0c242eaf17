// Package db defines the key-value interface every storage backend of the
// node implements.
package db

import "errors"

const (
	TypePebble = "pebble"
	TypeInMem  = "inmem"
	TypeMongo  = "mongodb"
)

var (
	// ErrKeyNotFound is returned by Get when the key does not exist.
	ErrKeyNotFound = errors.New("key not found")
	// ErrConflict is returned by Commit when another transaction modified a
	// key this one read. Not every backend detects conflicts.
	ErrConflict = errors.New("transaction conflict")
	// ErrTxClosed is returned when a committed or discarded transaction is used.
	ErrTxClosed = errors.New("transaction already committed or discarded")
)

// Options configures a backend.
type Options struct {
	// Path is a directory for file based backends and the database name for
	// network ones.
	Path string
}

// Reader is the read side shared by databases and transactions.
type Reader interface {
	// Get returns a copy of the value stored under key, or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)
	// Iterate calls callback for every key starting with prefix, in ascending
	// byte order, until callback returns false. The key passed to callback
	// has the prefix removed. Neither slice may be retained after callback
	// returns.
	Iterate(prefix []byte, callback func(key, value []byte) bool) error
}

// WriteTx accumulates writes that become visible atomically on Commit. Reads
// through a WriteTx observe its own pending writes.
type WriteTx interface {
	Reader
	Set(key, value []byte) error
	Delete(key []byte) error
	Commit() error
	// Discard drops the pending writes. It is safe to call after Commit.
	Discard()
}

// Database is a key-value store.
type Database interface {
	Reader
	WriteTx() WriteTx
	Close() error
	Compact() error
}

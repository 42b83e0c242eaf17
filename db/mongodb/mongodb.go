// Package mongodb is a db.Database backend on a MongoDB replica set. Keys are
// stored hex encoded as document ids so that the id order matches the byte
// order of the keys; writes are committed in a multi-document transaction.
package mongodb

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/vocdoni/votecommit/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// URLEnv names the environment variable holding the connection string.
	URLEnv = "MONGODB_URL"

	collectionName = "kv"
	opTimeout      = 30 * time.Second
)

type document struct {
	ID    string `bson:"_id"`
	Value []byte `bson:"value"`
}

// MongoDB stores every key as one document of a single collection.
type MongoDB struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ db.Database = (*MongoDB)(nil)

// New connects to $MONGODB_URL and uses opts.Path as the database name.
func New(opts db.Options) (*MongoDB, error) {
	url := os.Getenv(URLEnv)
	if url == "" {
		return nil, fmt.Errorf("mongodb: %s is not set", URLEnv)
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("mongodb: empty database name")
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb: ping: %w", err)
	}
	return &MongoDB{
		client: client,
		coll:   client.Database(opts.Path).Collection(collectionName),
	}, nil
}

func encodeKey(key []byte) string {
	return hex.EncodeToString(key)
}

func (d *MongoDB) Get(key []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	var doc document
	err := d.coll.FindOne(ctx, bson.M{"_id": encodeKey(key)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb: get: %w", err)
	}
	return doc.Value, nil
}

func (d *MongoDB) scan(prefix []byte, fn func(key, value []byte) bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	filter := bson.M{}
	if len(prefix) > 0 {
		filter["_id"] = bson.M{"$regex": "^" + encodeKey(prefix)}
	}
	cur, err := d.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return fmt.Errorf("mongodb: find: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return fmt.Errorf("mongodb: decode: %w", err)
		}
		key, err := hex.DecodeString(doc.ID)
		if err != nil {
			return fmt.Errorf("mongodb: bad key %q: %w", doc.ID, err)
		}
		if !fn(key, doc.Value) {
			return nil
		}
	}
	return cur.Err()
}

func (d *MongoDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return d.scan(prefix, func(key, value []byte) bool {
		return callback(key[len(prefix):], value)
	})
}

func (d *MongoDB) WriteTx() db.WriteTx {
	return &WriteTx{db: d, writes: make(map[string]*[]byte)}
}

func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return d.client.Disconnect(ctx)
}

func (d *MongoDB) Compact() error {
	return nil
}

// WriteTx buffers writes in memory. A nil pending value marks a delete.
type WriteTx struct {
	db     *MongoDB
	writes map[string]*[]byte
	closed bool
}

var _ db.WriteTx = (*WriteTx)(nil)

func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	if tx.closed {
		return nil, db.ErrTxClosed
	}
	if v, ok := tx.writes[string(key)]; ok {
		if v == nil {
			return nil, db.ErrKeyNotFound
		}
		return bytes.Clone(*v), nil
	}
	return tx.db.Get(key)
}

func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	if tx.closed {
		return db.ErrTxClosed
	}
	entries := make(map[string][]byte)
	if err := tx.db.scan(prefix, func(key, value []byte) bool {
		entries[string(key)] = value
		return true
	}); err != nil {
		return err
	}
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
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !callback([]byte(k[len(prefix):]), entries[k]) {
			break
		}
	}
	return nil
}

func (tx *WriteTx) Set(key, value []byte) error {
	if tx.closed {
		return db.ErrTxClosed
	}
	v := bytes.Clone(value)
	tx.writes[string(key)] = &v
	return nil
}

func (tx *WriteTx) Delete(key []byte) error {
	if tx.closed {
		return db.ErrTxClosed
	}
	tx.writes[string(key)] = nil
	return nil
}

func (tx *WriteTx) Commit() error {
	if tx.closed {
		return db.ErrTxClosed
	}
	tx.closed = true
	if len(tx.writes) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(tx.writes))
	for k, v := range tx.writes {
		id := encodeKey([]byte(k))
		if v == nil {
			models = append(models, mongo.NewDeleteOneModel().SetFilter(bson.M{"_id": id}))
			continue
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": id}).
			SetReplacement(document{ID: id, Value: *v}).
			SetUpsert(true))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	sess, err := tx.db.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongodb: session: %w", err)
	}
	defer sess.EndSession(ctx)
	if _, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return tx.db.coll.BulkWrite(sc, models)
	}); err != nil {
		return fmt.Errorf("mongodb: commit: %w", err)
	}
	return nil
}

func (tx *WriteTx) Discard() {
	tx.writes = map[string]*[]byte{}
	tx.closed = true
}

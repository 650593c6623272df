// Package docstore is a document database on badger implementing
// remote.Backend. It backs the development remote server and tests.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/moodtune/moodtune-sync/internal/remote"
)

const keyPrefix = "doc:"

// Store keeps each document as one JSON value keyed by collection and id.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ remote.Backend = (*Store)(nil)

// Open opens or creates a store at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	return open(opts, logger)
}

// OpenInMemory creates a store that lives only as long as the process.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func docKey(collection, id string) []byte {
	return []byte(keyPrefix + collection + "/" + id)
}

func decodeFields(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func readFields(txn *badger.Txn, key []byte) (map[string]any, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	err = item.Value(func(val []byte) error {
		var decodeErr error
		fields, decodeErr = decodeFields(val)
		return decodeErr
	})
	return fields, err
}

// Get returns the document or a remote error of KindNotFound.
func (s *Store) Get(ctx context.Context, collection, id string) (*remote.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, remote.Transient("get", err)
	}
	var fields map[string]any
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		fields, err = readFields(txn, docKey(collection, id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, remote.NotFound(collection, id)
	}
	if err != nil {
		return nil, remote.Transient("get", err)
	}
	return &remote.Document{ID: id, Fields: fields}, nil
}

// Set writes one document.
func (s *Store) Set(ctx context.Context, collection, id string, fields map[string]any, opts remote.SetOptions) error {
	return s.BatchCommit(ctx, []remote.SetOp{{Collection: collection, ID: id, Fields: fields, Merge: opts.Merge}})
}

// BatchCommit applies every op in one badger transaction.
func (s *Store) BatchCommit(ctx context.Context, ops []remote.SetOp) error {
	if err := ctx.Err(); err != nil {
		return remote.Transient("batch", err)
	}
	for _, op := range ops {
		if op.Collection == "" || op.ID == "" || strings.Contains(op.Collection+op.ID, "/") {
			return remote.Permanent("batch", fmt.Errorf("invalid document path %q/%q", op.Collection, op.ID))
		}
	}

	now := s.now()
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			key := docKey(op.Collection, op.ID)

			var existing map[string]any
			if op.Merge {
				var err error
				existing, err = readFields(txn, key)
				if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
			}

			merged := remote.MergeFields(existing, remote.ResolveSentinels(op.Fields, now), remote.SetOptions{Merge: op.Merge})
			data, err := json.Marshal(merged)
			if err != nil {
				return remote.Permanent("batch", err)
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		s.logger.Debug("documents written", slog.Int("count", len(ops)))
		return nil
	}

	var re *remote.Error
	switch {
	case errors.As(err, &re):
		return err
	case errors.Is(err, badger.ErrTxnTooBig):
		return remote.Permanent("batch", err)
	default:
		return remote.Transient("batch", err)
	}
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(docKey(collection, id))
	})
}

// List returns every document of collection ordered by id.
func (s *Store) List(ctx context.Context, collection string) ([]*remote.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := []byte(keyPrefix + collection + "/")

	var docs []*remote.Document
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := string(bytes.TrimPrefix(item.Key(), prefix))
			err := item.Value(func(val []byte) error {
				fields, err := decodeFields(val)
				if err != nil {
					return err
				}
				docs = append(docs, &remote.Document{ID: id, Fields: fields})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return docs, err
}

// Count returns the number of documents in collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	docs, err := s.List(ctx, collection)
	return len(docs), err
}

package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// multiSep terminates the value part of a non-unique index key so that a
// prefix scan for "a" never matches "ab".
const multiSep = "\x00"

// Entity provides generic CRUD over one key prefix, with secondary indexes.
//
//	<prefix><id>                          -> JSON value
//	<prefix>idx:<name>:<value>            -> id   (unique index)
//	<prefix>idx:<name>:<value>\x00<id>    -> id   (multi index)
type Entity[T any] struct {
	store  *BadgerStore
	prefix string
	unique []Index[T]
	multi  []Index[T]
}

// Index defines a secondary index on an entity.
type Index[T any] struct {
	name            string
	keyGen          func(*T) []string
	lookupTransform func(string) string
}

// NewEntity creates a new Entity instance for type T.
func NewEntity[T any](s *BadgerStore, prefix string) *Entity[T] {
	return &Entity[T]{store: s, prefix: prefix}
}

// WithIndex adds a unique secondary index.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.unique = append(e.unique, Index[T]{name: name, keyGen: keyGen})
	return e
}

// WithIndexTransform adds a unique index whose lookups are transformed first,
// e.g. to make them case-insensitive.
func (e *Entity[T]) WithIndexTransform(name string, keyGen func(*T) []string, lookupTransform func(string) string) *Entity[T] {
	e.unique = append(e.unique, Index[T]{name: name, keyGen: keyGen, lookupTransform: lookupTransform})
	return e
}

// WithMultiIndex adds a non-unique index listed with ListByIndex.
func (e *Entity[T]) WithMultiIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.multi = append(e.multi, Index[T]{name: name, keyGen: keyGen})
	return e
}

func (e *Entity[T]) key(id string) []byte {
	return []byte(e.prefix + id)
}

func (e *Entity[T]) indexKey(name, value string) []byte {
	return []byte(e.prefix + "idx:" + name + ":" + value)
}

func (e *Entity[T]) multiKey(name, value, id string) []byte {
	return []byte(e.prefix + "idx:" + name + ":" + value + multiSep + id)
}

func (e *Entity[T]) isIndexKey(key []byte) bool {
	return strings.HasPrefix(string(key[len(e.prefix):]), "idx:")
}

// Create stores a new entity. Returns ErrAlreadyExists on id or unique index conflict.
func (e *Entity[T]) Create(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.store.db.Update(func(txn *badger.Txn) error {
		return e.createTxn(txn, id, entity)
	})
}

// Get retrieves an entity by ID. Returns ErrNotFound if it does not exist.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *T
	err := e.store.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = e.getTxn(txn, id)
		return err
	})
	return out, err
}

// GetByIndex retrieves an entity through a unique index.
func (e *Entity[T]) GetByIndex(ctx context.Context, indexName, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, idx := range e.unique {
		if idx.name == indexName && idx.lookupTransform != nil {
			value = idx.lookupTransform(value)
			break
		}
	}

	var out *T
	err := e.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(e.indexKey(indexName, value))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		out, err = e.getTxn(txn, string(id))
		return err
	})
	return out, err
}

// Upsert creates or replaces an entity, keeping indexes in step.
func (e *Entity[T]) Upsert(ctx context.Context, id string, entity *T) (created bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err = e.store.db.Update(func(txn *badger.Txn) error {
		var err error
		created, err = e.upsertTxn(txn, id, entity)
		return err
	})
	return created, err
}

// Delete removes an entity and its index keys. Returns ErrNotFound if absent.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.store.db.Update(func(txn *badger.Txn) error {
		return e.deleteTxn(txn, id)
	})
}

// List iterates over every entity under the prefix.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return e.ListPrefix(ctx, "")
}

// ListPrefix iterates over entities whose id starts with sub, in key order.
func (e *Entity[T]) ListPrefix(ctx context.Context, sub string) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		_ = e.store.db.View(func(txn *badger.Txn) error {
			prefix := e.key(sub)
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return err
				}
				if e.isIndexKey(it.Item().Key()) {
					continue
				}

				var entity T
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				})
				if err != nil {
					yield(nil, fmt.Errorf("failed to unmarshal entity: %w", err))
					return err
				}
				if !yield(&entity, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

// ListByIndex returns every entity filed under value in a multi index.
func (e *Entity[T]) ListByIndex(ctx context.Context, indexName, value string) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*T
	err := e.store.db.View(func(txn *badger.Txn) error {
		prefix := []byte(string(e.indexKey(indexName, value)) + multiSep)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := string(it.Item().Key()[len(prefix):])
			entity, err := e.getTxn(txn, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, entity)
		}
		return nil
	})
	return out, err
}

// Count returns the number of entities under the prefix.
func (e *Entity[T]) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	err := e.store.db.View(func(txn *badger.Txn) error {
		prefix := []byte(e.prefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if !e.isIndexKey(it.Item().Key()) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (e *Entity[T]) getTxn(txn *badger.Txn, id string) (*T, error) {
	item, err := txn.Get(e.key(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	var entity T
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entity)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return &entity, nil
}

func (e *Entity[T]) createTxn(txn *badger.Txn, id string, entity *T) error {
	_, err := txn.Get(e.key(id))
	if err == nil {
		return ErrAlreadyExists
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("failed to check existing key: %w", err)
	}
	return e.writeTxn(txn, id, entity, nil)
}

func (e *Entity[T]) upsertTxn(txn *badger.Txn, id string, entity *T) (bool, error) {
	old, err := e.getTxn(txn, id)
	if errors.Is(err, ErrNotFound) {
		return true, e.writeTxn(txn, id, entity, nil)
	}
	if err != nil {
		return false, err
	}
	return false, e.writeTxn(txn, id, entity, old)
}

func (e *Entity[T]) deleteTxn(txn *badger.Txn, id string) error {
	old, err := e.getTxn(txn, id)
	if err != nil {
		return err
	}
	if err := e.clearIndexes(txn, id, old); err != nil {
		return err
	}
	if err := txn.Delete(e.key(id)); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// writeTxn sets the value and moves index keys from old (if any) to entity.
func (e *Entity[T]) writeTxn(txn *badger.Txn, id string, entity, old *T) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	if old != nil {
		if err := e.clearIndexes(txn, id, old); err != nil {
			return err
		}
	}

	for _, idx := range e.unique {
		for _, v := range idx.keyGen(entity) {
			_, err := txn.Get(e.indexKey(idx.name, v))
			if err == nil {
				return fmt.Errorf("index %s conflict on key %s: %w", idx.name, v, ErrAlreadyExists)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("failed to check index key: %w", err)
			}
		}
	}

	if err := txn.Set(e.key(id), data); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	for _, idx := range e.unique {
		for _, v := range idx.keyGen(entity) {
			if err := txn.Set(e.indexKey(idx.name, v), []byte(id)); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
	}
	for _, idx := range e.multi {
		for _, v := range idx.keyGen(entity) {
			if err := txn.Set(e.multiKey(idx.name, v, id), []byte(id)); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
	}
	return nil
}

func (e *Entity[T]) clearIndexes(txn *badger.Txn, id string, old *T) error {
	for _, idx := range e.unique {
		for _, v := range idx.keyGen(old) {
			if err := txn.Delete(e.indexKey(idx.name, v)); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}
	for _, idx := range e.multi {
		for _, v := range idx.keyGen(old) {
			if err := txn.Delete(e.multiKey(idx.name, v, id)); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}
	return nil
}

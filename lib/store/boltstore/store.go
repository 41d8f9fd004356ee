// Package boltstore implements store.IStore on a local bbolt database file.
// It is meant for development setups that run without a Redis server.
package boltstore

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/statsinit/lib/common"
	"github.com/ValentinKolb/statsinit/lib/store"
	bolt "go.etcd.io/bbolt"
	"sync/atomic"
	"time"
)

// openTimeout bounds how long Open waits for the file lock held by another process
const openTimeout = 5 * time.Second

var errBucketNotFound = errors.New("bucket not found")

type storeImpl struct {
	db     *bolt.DB
	bucket []byte
	closed atomic.Bool
}

// Connector returns a store.Connector that opens the bolt file described by conf
func Connector(conf common.BoltConf) store.Connector {
	return func(ctx context.Context) (store.IStore, error) {
		return Open(ctx, conf.Path, conf.Bucket)
	}
}

// Open opens (or creates) the database file at path and makes sure the bucket exists
func Open(ctx context.Context, path, bucket string) (store.IStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.WrapError(store.RetCConnection, "cannot open bolt file "+path, err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, store.WrapError(store.RetCConnection, "cannot open bolt file "+path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, bucketErr := tx.CreateBucketIfNotExists([]byte(bucket)); bucketErr != nil {
			return fmt.Errorf("failed to create bucket %q: %w", bucket, bucketErr)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, store.WrapError(store.RetCConnection, "cannot prepare bolt file "+path, err)
	}

	return &storeImpl{
		db:     db,
		bucket: []byte(bucket),
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(ctx context.Context, key string, value []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return errBucketNotFound
		}
		return b.Put([]byte(key), value)
	})
	if err != nil {
		return store.WrapError(store.RetCInternalError, "unable to write "+key, err)
	}
	return nil
}

func (s *storeImpl) SetIfUnset(ctx context.Context, key string, value []byte) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}
	written := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return errBucketNotFound
		}
		if b.Get([]byte(key)) != nil {
			return nil
		}
		written = true
		return b.Put([]byte(key), value)
	})
	if err != nil {
		return false, store.WrapError(store.RetCInternalError, "unable to write "+key, err)
	}
	return written, nil
}

func (s *storeImpl) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.check(ctx); err != nil {
		return nil, false, err
	}
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return errBucketNotFound
		}
		// the slice is only valid inside the transaction
		if v := b.Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, store.WrapError(store.RetCInternalError, "unable to read "+key, err)
	}
	return value, value != nil, nil
}

func (s *storeImpl) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *storeImpl) check(ctx context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return store.WrapError(store.RetCInternalError, "bolt store", err)
	}
	return nil
}

package memstore

import (
	"context"
	"github.com/ValentinKolb/statsinit/lib/store"
	"github.com/puzpuzpuz/xsync/v3"
	"sync/atomic"
)

// Data is the shared backing map of memory stores.
// Handles created from the same Data see the same keys, which lets a
// Connector hand out fresh handles over one logical store.
type Data struct {
	m *xsync.MapOf[string, []byte]
}

// NewData creates an empty backing map
func NewData() *Data {
	return &Data{m: xsync.NewMapOf[string, []byte]()}
}

// Len returns the number of keys in the map
func (d *Data) Len() int {
	return d.m.Size()
}

// Store is a handle on a Data map.
type Store struct {
	data   *Data
	closed atomic.Bool
}

// NewStore creates a new handle on data
func NewStore(data *Data) *Store {
	return &Store{data: data}
}

// Connector returns a store.Connector that opens a new handle on data on every call
func Connector(data *Data) store.Connector {
	return func(ctx context.Context) (store.IStore, error) {
		if err := ctx.Err(); err != nil {
			return nil, store.WrapError(store.RetCConnection, "memory store", err)
		}
		return NewStore(data), nil
	}
}

// Closed reports whether Close was called on this handle
func (s *Store) Closed() bool {
	return s.closed.Load()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.data.m.Store(key, clone(value))
	return nil
}

func (s *Store) SetIfUnset(ctx context.Context, key string, value []byte) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}
	_, loaded := s.data.m.LoadOrStore(key, clone(value))
	return !loaded, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.check(ctx); err != nil {
		return nil, false, err
	}
	val, ok := s.data.m.Load(key)
	if !ok {
		return nil, false, nil
	}
	return clone(val), true, nil
}

func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (s *Store) check(ctx context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return store.WrapError(store.RetCInternalError, "memory store", err)
	}
	return nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

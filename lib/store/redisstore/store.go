// Package redisstore implements store.IStore on top of a Redis server using go-redis.
package redisstore

import (
	"context"
	"errors"
	"github.com/ValentinKolb/statsinit/lib/common"
	"github.com/ValentinKolb/statsinit/lib/store"
	"github.com/redis/go-redis/v9"
	"sync/atomic"
)

type storeImpl struct {
	client *redis.Client
	addr   string
	closed atomic.Bool
}

// Connector returns a store.Connector for the redis server described by conf.
// Each call creates its own client and verifies the connection with a PING.
func Connector(conf common.RedisConf) store.Connector {
	return func(ctx context.Context) (store.IStore, error) {
		return Connect(ctx, conf.Addr())
	}
}

// Connect opens a client for the redis server at addr and pings it.
// No retries are performed, if the server cannot be reached the client is
// closed again and a store error with the code RetCConnection is returned.
func Connect(ctx context.Context, addr string) (store.IStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:       addr,
		MaxRetries: -1,
		PoolSize:   1,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, store.WrapError(store.RetCConnection, "cannot connect to redis at "+addr, err)
	}

	return &storeImpl{
		client: client,
		addr:   addr,
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(ctx context.Context, key string, value []byte) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return wrap("SET "+key, s.client.Set(ctx, key, value, 0).Err())
}

func (s *storeImpl) SetIfUnset(ctx context.Context, key string, value []byte) (bool, error) {
	if s.closed.Load() {
		return false, store.ErrClosed
	}
	written, err := s.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, wrap("SETNX "+key, err)
	}
	return written, nil
}

func (s *storeImpl) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, store.ErrClosed
	}
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap("GET "+key, err)
	}
	return val, true, nil
}

func (s *storeImpl) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.client.Close()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// wrap converts a go-redis error to a store error
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.ErrClosed):
		return store.ErrClosed
	default:
		return store.WrapError(store.RetCInternalError, op+" failed", err)
	}
}

// Package dkvstore implements store.IStore on a dKV server using the dKV RPC client.
//
// The dKV client API is synchronous and has no notion of a context. The
// context passed to each method is checked before the request is sent, the
// request itself is bounded by the client timeout.
package dkvstore

import (
	"context"
	"fmt"
	remote "github.com/ValentinKolb/dKV/lib/store"
	"github.com/ValentinKolb/dKV/rpc/client"
	rpccommon "github.com/ValentinKolb/dKV/rpc/common"
	"github.com/ValentinKolb/dKV/rpc/serializer"
	"github.com/ValentinKolb/dKV/rpc/transport"
	"github.com/ValentinKolb/dKV/rpc/transport/http"
	"github.com/ValentinKolb/dKV/rpc/transport/tcp"
	"github.com/ValentinKolb/dKV/rpc/transport/unix"
	"github.com/ValentinKolb/statsinit/lib/common"
	"github.com/ValentinKolb/statsinit/lib/store"
	"sync/atomic"
)

// reachableKey is read (never written) once after connecting so that an
// unreachable server is reported by the Connector and not by the first write.
// The store layer knows nothing about counters, so it uses its own key.
const reachableKey = "statsinit:reachable"

const (
	// defaultTimeoutSecond is used when the run itself has no deadline
	defaultTimeoutSecond = 10
	// socketBufferSize is the read and write buffer size of the tcp and unix transports
	socketBufferSize = 512 * 1024
)

type storeImpl struct {
	rpc       remote.IStore
	transport transport.IRPCClientTransport
	closed    atomic.Bool
}

// Connector returns a store.Connector for the dKV shard described by conf.
// A timeoutSecond of 0 falls back to the default client timeout.
func Connector(conf common.DKVConf, timeoutSecond int) store.Connector {
	return func(ctx context.Context) (store.IStore, error) {
		return Connect(ctx, conf, timeoutSecond)
	}
}

// Connect opens the configured transport and checks that the shard answers
func Connect(ctx context.Context, conf common.DKVConf, timeoutSecond int) (store.IStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.WrapError(store.RetCConnection, "cannot connect to dKV", err)
	}

	s, err := NewSerializer(conf.Serializer)
	if err != nil {
		return nil, store.WrapError(store.RetCInvalidOperation, "invalid dKV configuration", err)
	}
	t, err := NewTransport(conf.Transport)
	if err != nil {
		return nil, store.WrapError(store.RetCInvalidOperation, "invalid dKV configuration", err)
	}

	if timeoutSecond <= 0 {
		timeoutSecond = defaultTimeoutSecond
	}
	// the transports send nothing at all with a retry count of 0
	retries := conf.RetryCount
	if retries < 1 {
		retries = 1
	}

	rpc, err := client.NewRPCStore(conf.ShardID, rpccommon.ClientConfig{
		TimeoutSecond: timeoutSecond,
		Transport: rpccommon.ClientTransportConfig{
			RetryCount:             retries,
			Endpoints:              conf.Endpoints,
			ConnectionsPerEndpoint: 1,
			SocketConf: rpccommon.SocketConf{
				WriteBufferSize: socketBufferSize,
				ReadBufferSize:  socketBufferSize,
			},
			TCPConf: rpccommon.TCPConf{
				TCPNoDelay: true,
			},
		},
	}, t, s)
	if err != nil {
		_ = t.Close()
		return nil, store.WrapError(store.RetCConnection, fmt.Sprintf("cannot connect to dKV at %v", conf.Endpoints), err)
	}

	if _, err := rpc.Has(reachableKey); err != nil {
		_ = t.Close()
		return nil, store.WrapError(store.RetCConnection, fmt.Sprintf("dKV shard %d at %v is not reachable", conf.ShardID, conf.Endpoints), err)
	}

	return &storeImpl{
		rpc:       rpc,
		transport: t,
	}, nil
}

// NewSerializer creates the dKV serializer with the given name (json, gob, binary)
func NewSerializer(name string) (serializer.IRPCSerializer, error) {
	switch name {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", name)
	}
}

// NewTransport creates the dKV client transport with the given name (http, tcp, unix)
func NewTransport(name string) (transport.IRPCClientTransport, error) {
	switch name {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", name)
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(ctx context.Context, key string, value []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := s.rpc.Set(key, value); err != nil {
		return store.WrapError(store.RetCInternalError, "set "+key, err)
	}
	return nil
}

// SetIfUnset is not atomic: dKV does not report whether SetEIfUnset wrote,
// so the result is derived from a preceding Has.
func (s *storeImpl) SetIfUnset(ctx context.Context, key string, value []byte) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}
	found, err := s.rpc.Has(key)
	if err != nil {
		return false, store.WrapError(store.RetCInternalError, "has "+key, err)
	}
	if found {
		return false, nil
	}
	if err := s.rpc.SetEIfUnset(key, value, 0, 0); err != nil {
		return false, store.WrapError(store.RetCInternalError, "setEIfUnset "+key, err)
	}
	return true, nil
}

func (s *storeImpl) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.check(ctx); err != nil {
		return nil, false, err
	}
	val, ok, err := s.rpc.Get(key)
	if err != nil {
		return nil, false, store.WrapError(store.RetCInternalError, "get "+key, err)
	}
	return val, ok, nil
}

func (s *storeImpl) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.transport.Close()
}

func (s *storeImpl) check(ctx context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return store.WrapError(store.RetCInternalError, "dKV store", err)
	}
	return nil
}

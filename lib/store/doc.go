// Package store provides the interface statsinit uses to talk to a key-value
// store, together with unified error handling for all backends.
//
// Key Components:
//
//   - IStore Interface: a scoped handle on one connection. Writes return once
//     the store acknowledged them, and every handle must be closed by its
//     owner. After Close all methods fail with ErrClosed.
//
//   - Connector: a function type that attempts to connect and returns either
//     a usable handle or a typed connection error. This replaces any global
//     client singleton: whoever calls the Connector owns the handle.
//
//   - Error System: a structured error type with a RetCode and an optional
//     wrapped cause. IsConnectionError and IsClosedError classify errors
//     without string matching.
//
// Implementations:
//
//   - redisstore: Redis via go-redis (the default backend).
//   - dkvstore: a dKV server via the dKV RPC client.
//   - boltstore: a local bbolt file.
//   - memstore: a process-local map, used for dry runs and tests.
package store

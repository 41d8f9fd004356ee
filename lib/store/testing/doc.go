// Package testing provides a standardised test suite for backends that
// satisfy the store.IStore interface.
//
// Every backend package runs the suite against its own Connector:
//
//	storetesting.RunStoreTests(t, "Redis", redisstore.Connector(conf))
//
// All handles returned by the connector must operate on the same underlying
// store, the suite uses distinct keys per test.
package testing

package testing

import (
	"bytes"
	"context"
	"testing"

	"github.com/ValentinKolb/statsinit/lib/store"
)

// RunStoreTests runs the conformance test suite for an IStore implementation.
func RunStoreTests(t *testing.T, name string, connect store.Connector) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, mustConnect(t, connect))
		})

		t.Run("GetMissing", func(t *testing.T) {
			testGetMissing(t, mustConnect(t, connect))
		})

		t.Run("SetIfUnset", func(t *testing.T) {
			testSetIfUnset(t, mustConnect(t, connect))
		})

		t.Run("Close", func(t *testing.T) {
			testClose(t, mustConnect(t, connect))
		})

		t.Run("Persistence", func(t *testing.T) {
			testPersistence(t, connect)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func mustConnect(t *testing.T, connect store.Connector) store.IStore {
	t.Helper()
	s, err := connect(context.Background())
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if s == nil {
		t.Fatal("connect returned a nil store")
	}
	return s
}

func expectValue(t *testing.T, s store.IStore, key string, want []byte) {
	t.Helper()
	got, found, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", key, err)
	}
	if !found {
		t.Fatalf("Get(%s): key not found", key)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Get(%s) = %q, want %q", key, got, want)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	key := "test:set-get"
	if err := s.Set(ctx, key, []byte("42")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	expectValue(t, s, key, []byte("42"))

	// overwrite
	if err := s.Set(ctx, key, []byte("0")); err != nil {
		t.Fatalf("Set (overwrite) failed: %v", err)
	}
	expectValue(t, s, key, []byte("0"))
}

func testGetMissing(t *testing.T, s store.IStore) {
	defer s.Close()

	val, found, err := s.Get(context.Background(), "test:does-not-exist")
	if err != nil {
		t.Fatalf("Get of a missing key must not fail: %v", err)
	}
	if found {
		t.Errorf("missing key reported as found with value %q", val)
	}
}

func testSetIfUnset(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	key := "test:set-if-unset"
	written, err := s.SetIfUnset(ctx, key, []byte("42"))
	if err != nil {
		t.Fatalf("SetIfUnset failed: %v", err)
	}
	if !written {
		t.Errorf("SetIfUnset on a new key must write")
	}

	written, err = s.SetIfUnset(ctx, key, []byte("0"))
	if err != nil {
		t.Fatalf("second SetIfUnset failed: %v", err)
	}
	if written {
		t.Errorf("SetIfUnset on an existing key must not write")
	}
	expectValue(t, s, key, []byte("42"))
}

func testClose(t *testing.T, s store.IStore) {
	ctx := context.Background()

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close must be a no-op, got %v", err)
	}

	if err := s.Set(ctx, "test:closed", []byte("1")); !store.IsClosedError(err) {
		t.Errorf("Set after Close: expected closed error, got %v", err)
	}
	if _, err := s.SetIfUnset(ctx, "test:closed", []byte("1")); !store.IsClosedError(err) {
		t.Errorf("SetIfUnset after Close: expected closed error, got %v", err)
	}
	if _, _, err := s.Get(ctx, "test:closed"); !store.IsClosedError(err) {
		t.Errorf("Get after Close: expected closed error, got %v", err)
	}
}

func testPersistence(t *testing.T, connect store.Connector) {
	key := "test:persistence"

	first := mustConnect(t, connect)
	if err := first.Set(context.Background(), key, []byte("7")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second := mustConnect(t, connect)
	defer second.Close()
	expectValue(t, second, key, []byte("7"))
}

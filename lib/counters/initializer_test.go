package counters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ValentinKolb/statsinit/lib/common"
	"github.com/ValentinKolb/statsinit/lib/store"
	"github.com/ValentinKolb/statsinit/lib/store/memstore"
	"github.com/ValentinKolb/statsinit/lib/store/redisstore"
	"github.com/VictoriaMetrics/metrics"
	"github.com/alicebob/miniredis/v2"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test helpers
// --------------------------------------------------------------------------

// recordingLogger keeps every formatted message together with its level
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) SetLevel(logger.LogLevel) {}
func (l *recordingLogger) Debugf(format string, args ...interface{}) {
	l.add("DEBUG", format, args...)
}
func (l *recordingLogger) Infof(format string, args ...interface{}) { l.add("INFO", format, args...) }
func (l *recordingLogger) Warningf(format string, args ...interface{}) {
	l.add("WARN", format, args...)
}
func (l *recordingLogger) Errorf(format string, args ...interface{}) {
	l.add("ERROR", format, args...)
}
func (l *recordingLogger) Panicf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

func (l *recordingLogger) add(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(format, args...))
}

func (l *recordingLogger) contains(level, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.HasPrefix(line, level+" ") && strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// trackingConnector hands out memory store handles and remembers them
type trackingConnector struct {
	data    *memstore.Data
	handles []*memstore.Store
}

func newTrackingConnector() *trackingConnector {
	return &trackingConnector{data: memstore.NewData()}
}

func (c *trackingConnector) connect(context.Context) (store.IStore, error) {
	s := memstore.NewStore(c.data)
	c.handles = append(c.handles, s)
	return s, nil
}

// failingStore fails every write of the key failKey
type failingStore struct {
	store.IStore
	failKey string
	closed  bool
}

func (s *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if key == s.failKey {
		return store.NewError(store.RetCInternalError, "disk full")
	}
	return s.IStore.Set(ctx, key, value)
}

func (s *failingStore) Close() error {
	s.closed = true
	return s.IStore.Close()
}

func readAll(t *testing.T, connect store.Connector) map[string]int64 {
	t.Helper()
	s, err := connect(context.Background())
	require.NoError(t, err)
	defer s.Close()

	values, err := Read(context.Background(), s, DefaultCounters())
	require.NoError(t, err)
	return values
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestRun_FreshStore verifies that all three counters exist with value 0 after a run
func TestRun_FreshStore(t *testing.T) {
	t.Parallel()

	conn := newTrackingConnector()
	log := &recordingLogger{}
	in := NewInitializer(conn.connect, log)

	res, err := in.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{KeyTotalUsers, KeyActiveUsers, KeyTotalIncome}, res.Written)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, map[string]int64{
		KeyTotalUsers:  0,
		KeyActiveUsers: 0,
		KeyTotalIncome: 0,
	}, readAll(t, memstore.Connector(conn.data)))

	assert.True(t, log.contains("INFO", "connected to store"))
	assert.True(t, log.contains("INFO", "counters initialized successfully"))
	assert.EqualValues(t, 3, in.metrics.writes.Get())
	assert.EqualValues(t, 1, in.metrics.connectOK.Get())
}

// TestRun_OverwritesExistingValues verifies that a run resets counters that already hold a value
func TestRun_OverwritesExistingValues(t *testing.T) {
	t.Parallel()

	conn := newTrackingConnector()
	seed := memstore.NewStore(conn.data)
	require.NoError(t, seed.Set(context.Background(), KeyTotalUsers, EncodeValue(42)))

	_, err := NewInitializer(conn.connect, &recordingLogger{}).Run(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 0, readAll(t, memstore.Connector(conn.data))[KeyTotalUsers])
}

// TestRun_IfAbsentKeepsExistingValues verifies the conditional mode
func TestRun_IfAbsentKeepsExistingValues(t *testing.T) {
	t.Parallel()

	conn := newTrackingConnector()
	seed := memstore.NewStore(conn.data)
	require.NoError(t, seed.Set(context.Background(), KeyTotalUsers, EncodeValue(42)))

	log := &recordingLogger{}
	in := NewInitializer(conn.connect, log)
	in.IfAbsent = true

	res, err := in.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{KeyActiveUsers, KeyTotalIncome}, res.Written)
	assert.Equal(t, []string{KeyTotalUsers}, res.Skipped)
	values := readAll(t, memstore.Connector(conn.data))
	assert.EqualValues(t, 42, values[KeyTotalUsers])
	assert.EqualValues(t, 0, values[KeyActiveUsers])
	assert.True(t, log.contains("INFO", KeyTotalUsers+" already exists"))
	assert.EqualValues(t, 1, in.metrics.skipped.Get())
}

// TestRun_ClosesHandleAfterSuccess verifies that the handle is unusable after a run
func TestRun_ClosesHandleAfterSuccess(t *testing.T) {
	t.Parallel()

	conn := newTrackingConnector()
	_, err := NewInitializer(conn.connect, &recordingLogger{}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, conn.handles, 1)
	h := conn.handles[0]
	assert.True(t, h.Closed())

	err = h.Set(context.Background(), KeyTotalUsers, EncodeValue(1))
	assert.True(t, store.IsClosedError(err), "expected closed error, got %v", err)
}

// TestRun_TwiceKeepsKeysAtZero verifies that repeated runs reset instead of accumulating
func TestRun_TwiceKeepsKeysAtZero(t *testing.T) {
	t.Parallel()

	conn := newTrackingConnector()
	in := NewInitializer(conn.connect, &recordingLogger{})

	for run := 0; run < 2; run++ {
		_, err := in.Run(context.Background())
		require.NoError(t, err, "run %d", run)

		values := readAll(t, memstore.Connector(conn.data))
		assert.Len(t, values, 3, "run %d", run)
		for key, v := range values {
			assert.EqualValues(t, 0, v, "run %d key %s", run, key)
		}
	}
	assert.Equal(t, 3, conn.data.Len())
	assert.EqualValues(t, 6, in.metrics.writes.Get())
}

// TestRun_ConnectError verifies that a connection error is logged and returned without panicking
func TestRun_ConnectError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	log := &recordingLogger{}
	in := NewInitializer(func(context.Context) (store.IStore, error) {
		return nil, cause
	}, log)
	in.Target = "redis at localhost:1"

	var err error
	require.NotPanics(t, func() {
		_, err = in.Run(context.Background())
	})

	require.Error(t, err)
	assert.True(t, store.IsConnectionError(err))
	assert.ErrorIs(t, err, cause)
	assert.True(t, log.contains("ERROR", "connection refused"))
	assert.False(t, log.contains("INFO", "counters initialized successfully"))
	assert.EqualValues(t, 1, in.metrics.connectErrors.Get())
}

// TestRun_NilConnector verifies the error for an initializer without connector
func TestRun_NilConnector(t *testing.T) {
	t.Parallel()

	in := NewInitializer(nil, &recordingLogger{})
	_, err := in.Run(context.Background())
	assert.True(t, store.HasCode(err, store.RetCInvalidOperation))
}

// TestRun_WriteErrorClosesHandle verifies that a failing write stops the run and still closes the handle
func TestRun_WriteErrorClosesHandle(t *testing.T) {
	t.Parallel()

	data := memstore.NewData()
	fs := &failingStore{IStore: memstore.NewStore(data), failKey: KeyActiveUsers}
	log := &recordingLogger{}
	in := NewInitializer(func(context.Context) (store.IStore, error) { return fs, nil }, log)

	res, err := in.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize "+KeyActiveUsers)
	assert.Equal(t, []string{KeyTotalUsers}, res.Written)
	assert.True(t, fs.closed)
	assert.True(t, log.contains("ERROR", "disk full"))
	assert.EqualValues(t, 1, in.metrics.writeErrors.Get())

	// the last counter was never sent
	_, found, err := memstore.NewStore(data).Get(context.Background(), KeyTotalIncome)
	require.NoError(t, err)
	assert.False(t, found)
}

// TestRun_StructLiteral verifies that an Initializer built without NewInitializer is usable
func TestRun_StructLiteral(t *testing.T) {
	t.Parallel()

	data := memstore.NewData()
	in := &Initializer{
		Connect:  memstore.Connector(data),
		Counters: DefaultCounters(),
	}

	var res Result
	var err error
	require.NotPanics(t, func() {
		res, err = in.Run(context.Background())
	})
	require.NoError(t, err)
	assert.Len(t, res.Written, 3)
	assert.Equal(t, 3, data.Len())
	require.NotNil(t, in.Logger)
	require.NotNil(t, in.Metrics)

	var buf bytes.Buffer
	in.WriteMetrics(&buf)
	assert.Contains(t, buf.String(), "statsinit_writes_total 3")
}

// TestRun_NilLogger verifies that NewInitializer accepts a nil logger
func TestRun_NilLogger(t *testing.T) {
	t.Parallel()

	in := NewInitializer(memstore.Connector(memstore.NewData()), nil)
	require.NotPanics(t, func() {
		_, err := in.Run(context.Background())
		require.NoError(t, err)
	})
}

// TestRun_SharedMetricsSet verifies that the run metrics are registered in a caller provided set
func TestRun_SharedMetricsSet(t *testing.T) {
	t.Parallel()

	set := metrics.NewSet()
	in := NewInitializer(memstore.Connector(memstore.NewData()), &recordingLogger{})
	in.Metrics = set

	_, err := in.Run(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	set.WritePrometheus(&buf)
	assert.Contains(t, buf.String(), "statsinit_writes_total 3")
}

// TestRun_WriteMetrics verifies the Prometheus output
func TestRun_WriteMetrics(t *testing.T) {
	t.Parallel()

	conn := newTrackingConnector()
	in := NewInitializer(conn.connect, &recordingLogger{})
	_, err := in.Run(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	in.WriteMetrics(&buf)
	assert.Contains(t, buf.String(), "statsinit_writes_total 3")
	assert.Contains(t, buf.String(), `statsinit_connect_total{result="ok"} 1`)
}

// --------------------------------------------------------------------------
// Redis end-to-end
// --------------------------------------------------------------------------

// TestRun_Redis runs the initializer against an in-process redis server
func TestRun_Redis(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	require.NoError(t, srv.Set(KeyTotalUsers, "42"))

	in := NewInitializer(redisstore.Connector(redisConf(t, srv.Addr())), &recordingLogger{})
	_, err := in.Run(context.Background())
	require.NoError(t, err)

	for _, key := range []string{KeyTotalUsers, KeyActiveUsers, KeyTotalIncome} {
		v, err := srv.Get(key)
		require.NoError(t, err, key)
		assert.Equal(t, "0", v, key)
	}

	// counters must stay usable with INCR
	n, err := srv.Incr(KeyTotalUsers, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestRun_RedisUnreachable verifies that no key is written when the server cannot be reached
func TestRun_RedisUnreachable(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	log := &recordingLogger{}
	in := NewInitializer(redisstore.Connector(redisConf(t, addr)), log)
	_, err := in.Run(context.Background())

	require.Error(t, err)
	assert.True(t, store.IsConnectionError(err))
	assert.True(t, log.contains("ERROR", addr))
	assert.False(t, log.contains("INFO", "connected to"))
}

// TestRun_ConnectErrorWritesNothing verifies that a refused connection leaves the store untouched
func TestRun_ConnectErrorWritesNothing(t *testing.T) {
	t.Parallel()

	data := memstore.NewData()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewInitializer(memstore.Connector(data), &recordingLogger{}).Run(ctx)
	require.Error(t, err)
	assert.True(t, store.IsConnectionError(err))
	assert.Equal(t, 0, data.Len())
}

func redisConf(t *testing.T, addr string) common.RedisConf {
	t.Helper()
	host, port, ok := strings.Cut(addr, ":")
	require.True(t, ok)
	var p int
	_, err := fmt.Sscanf(port, "%d", &p)
	require.NoError(t, err)
	return common.RedisConf{Host: host, Port: p}
}

package counters

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/statsinit/lib/common"
	"github.com/ValentinKolb/statsinit/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"time"
)

// Initializer writes a fixed set of counters to a key-value store.
// NewInitializer fills in the defaults, a struct literal works as well:
// a nil Logger falls back to the statsinit logger, a nil Metrics to a fresh set.
type Initializer struct {
	// Connect opens the store handle used for a single run
	Connect store.Connector
	// Counters are written in order
	Counters []Counter
	// IfAbsent keeps existing counters instead of resetting them
	IfAbsent bool
	// Target describes the store in log messages (e.g. "redis at localhost:6379")
	Target string
	// Logger receives the progress and error messages of every run
	Logger logger.ILogger
	// Metrics holds the run metrics, see WriteMetrics
	Metrics *metrics.Set

	metrics *runMetrics
}

// Result describes what a successful run did
type Result struct {
	Written []string // keys that were written
	Skipped []string // keys that already existed (only with IfAbsent)
}

// NewInitializer creates an initializer for the default counters
func NewInitializer(connect store.Connector, log logger.ILogger) *Initializer {
	return &Initializer{
		Connect:  connect,
		Counters: DefaultCounters(),
		Target:   "store",
		Logger:   log,
		Metrics:  metrics.NewSet(),
	}
}

// Run connects to the store, writes all counters and closes the connection.
//
// If the connection cannot be established, the error is logged and returned
// and no write is attempted. Every write is acknowledged before the next one
// is sent, the first failing write ends the run. The store handle is closed on
// every path once it was opened.
func (i *Initializer) Run(ctx context.Context) (res Result, err error) {
	i.setDefaults()

	start := time.Now()
	defer i.metrics.runDuration.UpdateDuration(start)

	s, err := i.connect(ctx)
	if err != nil {
		i.metrics.connectErrors.Inc()
		i.Logger.Errorf("store error: %v", err)
		return res, err
	}
	i.metrics.connectOK.Inc()
	i.Logger.Infof("connected to %s", i.Target)

	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			i.Logger.Errorf("store error: close: %v", closeErr)
			if err == nil {
				err = fmt.Errorf("close store: %w", closeErr)
			}
		}
	}()

	for _, c := range i.Counters {
		written, writeErr := i.write(ctx, s, c)
		if writeErr != nil {
			i.metrics.writeErrors.Inc()
			i.Logger.Errorf("store error: initialize %s: %v", c.Key, writeErr)
			return res, fmt.Errorf("initialize %s: %w", c.Key, writeErr)
		}
		if written {
			i.metrics.writes.Inc()
			res.Written = append(res.Written, c.Key)
			i.Logger.Debugf("set %s=%d", c.Key, c.Initial)
		} else {
			i.metrics.skipped.Inc()
			res.Skipped = append(res.Skipped, c.Key)
			i.Logger.Infof("%s already exists, keeping its value", c.Key)
		}
	}

	i.Logger.Infof("counters initialized successfully")
	return res, nil
}

// WriteMetrics writes the metrics of all runs in Prometheus text format to w
func (i *Initializer) WriteMetrics(w io.Writer) {
	i.setDefaults()
	i.Metrics.WritePrometheus(w)
}

// setDefaults replaces unset optional fields.
// The run metrics are bound to Metrics on first use and rebound if Metrics is replaced.
func (i *Initializer) setDefaults() {
	if i.Logger == nil {
		i.Logger = logger.GetLogger(common.LoggerInit)
	}
	if i.Target == "" {
		i.Target = "store"
	}
	if i.Metrics == nil {
		i.Metrics = metrics.NewSet()
	}
	if i.metrics == nil || i.metrics.set != i.Metrics {
		i.metrics = newRunMetrics(i.Metrics)
	}
}

// connect calls the connector and makes sure a failure is a typed connection error
func (i *Initializer) connect(ctx context.Context) (store.IStore, error) {
	if i.Connect == nil {
		return nil, store.NewError(store.RetCInvalidOperation, "no connector configured")
	}
	s, err := i.Connect(ctx)
	if err != nil {
		var storeErr *store.Error
		if errors.As(err, &storeErr) {
			return nil, err
		}
		return nil, store.WrapError(store.RetCConnection, "cannot connect to "+i.Target, err)
	}
	if s == nil {
		return nil, store.NewError(store.RetCConnection, "connector returned no store handle")
	}
	return s, nil
}

func (i *Initializer) write(ctx context.Context, s store.IStore, c Counter) (bool, error) {
	if i.IfAbsent {
		return s.SetIfUnset(ctx, c.Key, c.Encode())
	}
	return true, s.Set(ctx, c.Key, c.Encode())
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

type runMetrics struct {
	set           *metrics.Set
	connectOK     *metrics.Counter
	connectErrors *metrics.Counter
	writes        *metrics.Counter
	writeErrors   *metrics.Counter
	skipped       *metrics.Counter
	runDuration   *metrics.Histogram
}

func newRunMetrics(set *metrics.Set) *runMetrics {
	return &runMetrics{
		set:           set,
		connectOK:     set.GetOrCreateCounter(`statsinit_connect_total{result="ok"}`),
		connectErrors: set.GetOrCreateCounter(`statsinit_connect_total{result="error"}`),
		writes:        set.GetOrCreateCounter(`statsinit_writes_total`),
		writeErrors:   set.GetOrCreateCounter(`statsinit_write_errors_total`),
		skipped:       set.GetOrCreateCounter(`statsinit_skipped_total`),
		runDuration:   set.GetOrCreateHistogram(`statsinit_run_duration_seconds`),
	}
}

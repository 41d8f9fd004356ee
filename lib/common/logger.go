package common

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Names of the loggers used by statsinit
const (
	LoggerInit  = "statsinit"
	LoggerStore = "store"
	LoggerCLI   = "cli"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// statsLogger implements the ILogger interface with custom formatting
type statsLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *statsLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *statsLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *statsLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *statsLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *statsLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *statsLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

// log formats and writes a log message
func (l *statsLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-10s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// NewLogger creates a logger with the given name that writes to w.
// The level defaults to INFO.
func NewLogger(name string, w io.Writer) logger.ILogger {
	return &statsLogger{
		name:   name,
		level:  logger.INFO,
		logger: log.New(w, "", log.Ldate|log.Ltime),
	}
}

// output is shared by all loggers created by CreateLogger
var output = &switchWriter{w: os.Stdout}

// switchWriter is an io.Writer whose target can be replaced at runtime
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// SetLogOutput redirects all loggers created by CreateLogger to w.
// A nil writer restores stdout.
func SetLogOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	output.mu.Lock()
	output.w = w
	output.mu.Unlock()
}

// CreateLogger implements dragonboats logger.Factory, output goes to stdout
// unless redirected with SetLogOutput
func CreateLogger(pkgName string) logger.ILogger {
	return NewLogger(pkgName, output)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// factoryOnce guards logger.SetLoggerFactory, which panics when called twice
var factoryOnce sync.Once

// InitLoggers installs the custom logger factory and sets the level of all
// loggers used by statsinit and the dKV client. It may be called more than
// once; only the level changes on later calls.
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	factoryOnce.Do(func() { logger.SetLoggerFactory(CreateLogger) })

	for _, name := range []string{LoggerInit, LoggerStore, LoggerCLI, "rpc", "transport/rpc"} {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}

package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Backends
// --------------------------------------------------------------------------

// Backend names the key-value store the counters are written to.
type Backend string

const (
	BackendRedis  Backend = "redis"
	BackendDKV    Backend = "dkv"
	BackendBolt   Backend = "bolt"
	BackendMemory Backend = "memory"
)

// Backends lists all supported backends in the order they are shown in help texts.
var Backends = []Backend{BackendRedis, BackendDKV, BackendBolt, BackendMemory}

// ParseBackend converts a string to a Backend
func ParseBackend(s string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Backends {
		if b == known {
			return b, nil
		}
	}
	return "", fmt.Errorf("invalid backend %q, must be one of %s", s, joinBackends())
}

func joinBackends() string {
	names := make([]string, len(Backends))
	for i, b := range Backends {
		names[i] = string(b)
	}
	return strings.Join(names, ", ")
}

// --------------------------------------------------------------------------
// Configuration structs
// --------------------------------------------------------------------------

// RedisConf holds the connection parameters of the redis backend
type RedisConf struct {
	Host string
	Port int
}

// Addr returns the host:port address of the redis server
func (c RedisConf) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DKVConf holds the connection parameters of the dKV backend
type DKVConf struct {
	Endpoints  []string
	Transport  string // http, tcp or unix
	Serializer string // json, gob or binary
	ShardID    uint64
	RetryCount int
}

// BoltConf holds the parameters of the bolt file backend
type BoltConf struct {
	Path   string
	Bucket string
}

// Config is the complete configuration of a statsinit run
type Config struct {
	Backend       Backend
	TimeoutSecond int // 0 disables the deadline
	LogLevel      string
	IfAbsent      bool

	Redis RedisConf
	DKV   DKVConf
	Bolt  BoltConf
}

// DefaultConfig returns the configuration used when nothing else is set
func DefaultConfig() Config {
	return Config{
		Backend:       BackendRedis,
		TimeoutSecond: 10,
		LogLevel:      "info",
		Redis: RedisConf{
			Host: "localhost",
			Port: 6379,
		},
		DKV: DKVConf{
			Endpoints:  []string{"http://localhost:8080"},
			Transport:  "http",
			Serializer: "json",
			ShardID:    100,
			RetryCount: 3,
		},
		Bolt: BoltConf{
			Path:   "stats.db",
			Bucket: "stats",
		},
	}
}

// Validate checks the parts of the configuration that are used by the selected backend
func (c *Config) Validate() error {
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return err
	}
	if c.TimeoutSecond < 0 {
		return fmt.Errorf("timeout must not be negative, got %d", c.TimeoutSecond)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	switch c.Backend {
	case BackendRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("redis host must not be empty")
		}
		if c.Redis.Port < 1 || c.Redis.Port > 65535 {
			return fmt.Errorf("redis port must be between 1 and 65535, got %d", c.Redis.Port)
		}
	case BackendDKV:
		if len(c.DKV.Endpoints) == 0 {
			return fmt.Errorf("at least one dKV endpoint is required")
		}
		for _, e := range c.DKV.Endpoints {
			if strings.TrimSpace(e) == "" {
				return fmt.Errorf("dKV endpoints must not be empty")
			}
		}
	case BackendBolt:
		if c.Bolt.Path == "" {
			return fmt.Errorf("bolt path must not be empty")
		}
		if c.Bolt.Bucket == "" {
			return fmt.Errorf("bolt bucket must not be empty")
		}
	}
	return nil
}

// Target returns a short description of where the counters are written to
func (c *Config) Target() string {
	switch c.Backend {
	case BackendRedis:
		return "redis at " + c.Redis.Addr()
	case BackendDKV:
		return fmt.Sprintf("dKV shard %d at %s", c.DKV.ShardID, strings.Join(c.DKV.Endpoints, ","))
	case BackendBolt:
		return fmt.Sprintf("bolt file %s (bucket %s)", c.Bolt.Path, c.Bolt.Bucket)
	default:
		return string(c.Backend)
	}
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-14s: %s\n", name, value))
	}

	addSection("Run Configuration")
	addField("Backend", string(c.Backend))
	if c.TimeoutSecond == 0 {
		addField("Timeout", "none")
	} else {
		addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	}
	addField("Log Level", c.LogLevel)
	addField("If Absent", strconv.FormatBool(c.IfAbsent))

	switch c.Backend {
	case BackendRedis:
		addSection("Redis")
		addField("Address", c.Redis.Addr())
	case BackendDKV:
		addSection("dKV")
		addField("Transport", c.DKV.Transport)
		addField("Serializer", c.DKV.Serializer)
		addField("Shard", strconv.FormatUint(c.DKV.ShardID, 10))
		addField("Retry Count", strconv.Itoa(c.DKV.RetryCount))
		for i, endpoint := range c.DKV.Endpoints {
			addField("Endpoint "+strconv.Itoa(i), endpoint)
		}
	case BackendBolt:
		addSection("Bolt")
		addField("Path", c.Bolt.Path)
		addField("Bucket", c.Bolt.Bucket)
	}

	return sb.String()
}

package util

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/statsinit/lib/common"
	"github.com/ValentinKolb/statsinit/lib/store"
	"github.com/ValentinKolb/statsinit/lib/store/boltstore"
	"github.com/ValentinKolb/statsinit/lib/store/dkvstore"
	"github.com/ValentinKolb/statsinit/lib/store/memstore"
	"github.com/ValentinKolb/statsinit/lib/store/redisstore"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
	"time"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables read by statsinit
	EnvPrefix = "statsinit"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Flags
// --------------------------------------------------------------------------

// SetupStoreFlags adds the flags that select and configure the store backend to a command
func SetupStoreFlags(cmd *cobra.Command) {
	d := common.DefaultConfig()

	key := "backend"
	cmd.PersistentFlags().String(key, string(d.Backend), WrapString("The key-value store to write to (redis, dkv, bolt, memory). The memory backend only lives for the duration of the command"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, d.TimeoutSecond, WrapString("Deadline for the whole run in seconds, 0 disables the deadline"))

	key = "log-level"
	cmd.PersistentFlags().String(key, d.LogLevel, WrapString("The level at which logs will be output (debug, info, warn, error)"))

	key = "config"
	cmd.PersistentFlags().String(key, "", WrapString("Path of a YAML config file. If unset, config.yaml in the working directory is used when present"))

	key = "redis-host"
	cmd.PersistentFlags().String(key, d.Redis.Host, WrapString("(redis) Host of the redis server, config file key redis.host"))

	key = "redis-port"
	cmd.PersistentFlags().Int(key, d.Redis.Port, WrapString("(redis) Port of the redis server, config file key redis.port"))

	key = "dkv-endpoints"
	cmd.PersistentFlags().String(key, strings.Join(d.DKV.Endpoints, ","), WrapString("(dkv) The address of the dKV server. Multiple endpoints can be specified as a comma-separated list"))

	key = "dkv-transport"
	cmd.PersistentFlags().String(key, d.DKV.Transport, WrapString("(dkv) Transport to use (http, tcp, unix)"))

	key = "dkv-serializer"
	cmd.PersistentFlags().String(key, d.DKV.Serializer, WrapString("(dkv) Serializer to use (json, gob, binary)"))

	key = "dkv-shard"
	cmd.PersistentFlags().Int(key, int(d.DKV.ShardID), WrapString("(dkv) ID of the shard to write to"))

	key = "dkv-retries"
	cmd.PersistentFlags().Int(key, d.DKV.RetryCount, WrapString("(dkv) How many times to retry a request"))

	key = "bolt-path"
	cmd.PersistentFlags().String(key, d.Bolt.Path, WrapString("(bolt) Path of the database file"))

	key = "bolt-bucket"
	cmd.PersistentFlags().String(key, d.Bolt.Bucket, WrapString("(bolt) Bucket the counters are stored in"))
}

// nestedKeys maps flags to the nested keys used in the config file
var nestedKeys = map[string]string{
	"redis-host": "redis.host",
	"redis-port": "redis.port",
}

// BindCommandFlags binds a command's flags to viper.
// Flags with a nested config file key are additionally bound under that key.
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	for flag, key := range nestedKeys {
		if f := cmd.Flag(flag); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Config
// --------------------------------------------------------------------------

// InitConfig loads env files and sets up viper to read environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// LoadConfigFile reads the YAML config file at path into viper.
// If path is empty, config.yaml in the working directory is read if it exists.
func LoadConfigFile(path string) error {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("cannot read config file: %w", err)
	}
	return nil
}

// SetDefaults registers the default configuration with viper.
// This is only needed when the flags are not bound, e.g. in tests.
func SetDefaults() {
	d := common.DefaultConfig()
	viper.SetDefault("backend", string(d.Backend))
	viper.SetDefault("timeout", d.TimeoutSecond)
	viper.SetDefault("log-level", d.LogLevel)
	viper.SetDefault("redis.host", d.Redis.Host)
	viper.SetDefault("redis.port", d.Redis.Port)
	viper.SetDefault("dkv-endpoints", strings.Join(d.DKV.Endpoints, ","))
	viper.SetDefault("dkv-transport", d.DKV.Transport)
	viper.SetDefault("dkv-serializer", d.DKV.Serializer)
	viper.SetDefault("dkv-shard", int(d.DKV.ShardID))
	viper.SetDefault("dkv-retries", d.DKV.RetryCount)
	viper.SetDefault("bolt-path", d.Bolt.Path)
	viper.SetDefault("bolt-bucket", d.Bolt.Bucket)
}

// GetConfig reads the run configuration from viper and validates it
func GetConfig() (common.Config, error) {
	backend, err := common.ParseBackend(viper.GetString("backend"))
	if err != nil {
		return common.Config{}, err
	}

	var endpoints []string
	for _, e := range strings.Split(viper.GetString("dkv-endpoints"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}

	conf := common.Config{
		Backend:       backend,
		TimeoutSecond: viper.GetInt("timeout"),
		LogLevel:      viper.GetString("log-level"),
		IfAbsent:      viper.GetBool("if-absent"),
		Redis: common.RedisConf{
			Host: viper.GetString("redis.host"),
			Port: viper.GetInt("redis.port"),
		},
		DKV: common.DKVConf{
			Endpoints:  endpoints,
			Transport:  viper.GetString("dkv-transport"),
			Serializer: viper.GetString("dkv-serializer"),
			ShardID:    uint64(viper.GetInt("dkv-shard")),
			RetryCount: viper.GetInt("dkv-retries"),
		},
		Bolt: common.BoltConf{
			Path:   viper.GetString("bolt-path"),
			Bucket: viper.GetString("bolt-bucket"),
		},
	}

	if err := conf.Validate(); err != nil {
		return common.Config{}, err
	}
	return conf, nil
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// GetConnector creates the store connector for the configured backend
func GetConnector(conf common.Config) (store.Connector, error) {
	switch conf.Backend {
	case common.BackendRedis:
		return redisstore.Connector(conf.Redis), nil
	case common.BackendDKV:
		return dkvstore.Connector(conf.DKV, conf.TimeoutSecond), nil
	case common.BackendBolt:
		return boltstore.Connector(conf.Bolt), nil
	case common.BackendMemory:
		return memstore.Connector(memstore.NewData()), nil
	default:
		return nil, fmt.Errorf("invalid backend %s", conf.Backend)
	}
}

// RunContext derives the context of a run from parent, applying the configured deadline
func RunContext(parent context.Context, conf common.Config) (context.Context, context.CancelFunc) {
	if conf.TimeoutSecond <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, time.Duration(conf.TimeoutSecond)*time.Second)
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// loggedError marks an error that was already written to the log
type loggedError struct {
	error
}

func (e loggedError) Unwrap() error {
	return e.error
}

// Logged marks err as already logged so that Execute does not print it again
func Logged(err error) error {
	if err == nil {
		return nil
	}
	return loggedError{err}
}

// IsLogged reports whether err was marked with Logged
func IsLogged(err error) bool {
	var l loggedError
	return errors.As(err, &l)
}

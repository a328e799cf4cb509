// Package config loads the pergola command configuration from flags, environment
// (PERGOLA_ prefix) and an optional config file.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// StoreType selects the conversation store backend.
type StoreType string

const (
	StoreMemory StoreType = "memory"
	StoreFile   StoreType = "file"
	StoreRedis  StoreType = "redis"
	StoreSQLite StoreType = "sqlite"
)

// EnvPrefix prefixes every environment variable, e.g. PERGOLA_REDIS_ADDR.
const EnvPrefix = "PERGOLA"

var (
	ErrUnknownStore         = errors.New("unknown store type")
	ErrInvalidContinuations = errors.New("max-continuations must be positive")
	ErrInvalidEncryptionKey = errors.New("encryption-key must be 64 hex characters (32 bytes)")
	ErrInvalidTTL           = errors.New("ttl must not be negative")
)

// Config is the resolved configuration of the pergola command.
type Config struct {
	Addr  string
	Flows string

	Store     StoreType
	StorePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	TTL              time.Duration
	MaxContinuations int
	EncryptionKey    string

	LogLevel  string
	LogFormat string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Addr:             ":8080",
		Flows:            "flows",
		Store:            StoreMemory,
		StorePath:        ".pergola/conversations",
		RedisAddr:        "localhost:6379",
		RedisPrefix:      "pergola:",
		MaxContinuations: 5,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// RegisterFlags adds the configuration flags to cmd as persistent flags.
func RegisterFlags(cmd *cobra.Command) {
	d := Default()
	f := cmd.PersistentFlags()
	f.String("config", "", "Path to a config file (yaml, json or toml)")
	f.String("addr", d.Addr, "Address the servers listen on")
	f.String("flows", d.Flows, "Directory containing flow documents")
	f.String("store", string(d.Store), "Conversation store: memory, file, redis or sqlite")
	f.String("store-path", d.StorePath, "Directory (file) or database path (sqlite)")
	f.String("redis-addr", d.RedisAddr, "Redis host:port")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database number")
	f.String("redis-prefix", d.RedisPrefix, "Prefix of every redis key")
	f.Duration("ttl", 0, "Expiry of idle conversations (0 keeps them forever)")
	f.Int("max-continuations", d.MaxContinuations, "Resumable keys kept per conversation (1 = latest only)")
	f.String("encryption-key", "", "Hex AES-256 key encrypting stored continuations")
	f.String("log-level", d.LogLevel, "Log level: debug, info, warn or error")
	f.String("log-format", d.LogFormat, "Log format: text or json")
}

// Load resolves the configuration of cmd. Flags win over environment, which wins over
// the config file.
func Load(v *viper.Viper, cmd *cobra.Command) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return Config{}, err
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Config{
		Addr:             v.GetString("addr"),
		Flows:            v.GetString("flows"),
		Store:            StoreType(strings.ToLower(v.GetString("store"))),
		StorePath:        v.GetString("store-path"),
		RedisAddr:        v.GetString("redis-addr"),
		RedisPassword:    v.GetString("redis-password"),
		RedisDB:          v.GetInt("redis-db"),
		RedisPrefix:      v.GetString("redis-prefix"),
		TTL:              v.GetDuration("ttl"),
		MaxContinuations: v.GetInt("max-continuations"),
		EncryptionKey:    v.GetString("encryption-key"),
		LogLevel:         v.GetString("log-level"),
		LogFormat:        v.GetString("log-format"),
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid value.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreFile, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("%w: '%s'", ErrUnknownStore, c.Store)
	}
	if c.MaxContinuations < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidContinuations, c.MaxContinuations)
	}
	if c.TTL < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTTL, c.TTL)
	}
	if _, err := c.EncryptionKeyBytes(); err != nil {
		return err
	}
	return nil
}

// EncryptionKeyBytes decodes the encryption key. Nil means encryption is off.
func (c Config) EncryptionKeyBytes() ([]byte, error) {
	if c.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidEncryptionKey
	}
	return key, nil
}

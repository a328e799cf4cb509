package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/pergola/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	config.RegisterFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return config.Load(viper.New(), cmd)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_FlagsAndEnvironment(t *testing.T) {
	t.Setenv("PERGOLA_REDIS_ADDR", "redis:6380")
	t.Setenv("PERGOLA_MAX_CONTINUATIONS", "3")
	t.Setenv("PERGOLA_STORE", "file")

	cfg, err := load(t, "--store", "redis", "--ttl", "30m")
	require.NoError(t, err)
	assert.Equal(t, config.StoreRedis, cfg.Store, "flags win over environment")
	assert.Equal(t, "redis:6380", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.MaxContinuations)
	assert.Equal(t, 30*time.Minute, cfg.TTL)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pergola.yaml")
	content := strings.Join([]string{
		"store: sqlite",
		"store-path: /tmp/pergola.db",
		"log-level: debug",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := load(t, "--config", path)
	require.NoError(t, err)
	assert.Equal(t, config.StoreSQLite, cfg.Store)
	assert.Equal(t, "/tmp/pergola.db", cfg.StorePath)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := load(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	validKey := strings.Repeat("ab", 32)

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{"unknown store", func(c *config.Config) { c.Store = "mongo" }, config.ErrUnknownStore},
		{"zero continuations", func(c *config.Config) { c.MaxContinuations = 0 }, config.ErrInvalidContinuations},
		{"negative ttl", func(c *config.Config) { c.TTL = -time.Second }, config.ErrInvalidTTL},
		{"short key", func(c *config.Config) { c.EncryptionKey = "abcd" }, config.ErrInvalidEncryptionKey},
		{"non hex key", func(c *config.Config) { c.EncryptionKey = strings.Repeat("zz", 32) }, config.ErrInvalidEncryptionKey},
		{"valid key", func(c *config.Config) { c.EncryptionKey = validKey }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEncryptionKeyBytes(t *testing.T) {
	key, err := config.Default().EncryptionKeyBytes()
	require.NoError(t, err)
	assert.Nil(t, key)

	cfg := config.Default()
	cfg.EncryptionKey = strings.Repeat("01", 32)
	key, err = cfg.EncryptionKeyBytes()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpertseller/alertkit/pkg/config"
)

type defaultsConfig struct {
	Addr    string        `env:"TEST_CFG_ADDR" envDefault:":8080"`
	Timeout time.Duration `env:"TEST_CFG_TIMEOUT" envDefault:"15s"`
	Enabled bool          `env:"TEST_CFG_ENABLED" envDefault:"true"`
}

type overrideConfig struct {
	Addr string `env:"TEST_CFG_OVERRIDE_ADDR" envDefault:":8080"`
}

type prefixedConfig struct {
	Token string `env:"TOKEN"`
}

type requiredConfig struct {
	Value string `env:"TEST_CFG_REQUIRED,required"`
}

type cachedConfig struct {
	Value string `env:"TEST_CFG_CACHED" envDefault:"first"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg defaultsConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.True(t, cfg.Enabled)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TEST_CFG_OVERRIDE_ADDR", ":9090")

	var cfg overrideConfig
	require.NoError(t, config.Load(&cfg, config.WithoutCache()))
	assert.Equal(t, ":9090", cfg.Addr)
}

func TestLoad_Prefix(t *testing.T) {
	t.Setenv("SLACK_TOKEN", "s-1")
	t.Setenv("TELEGRAM_TOKEN", "t-1")

	var slack, telegram prefixedConfig
	require.NoError(t, config.Load(&slack, config.WithPrefix("SLACK_")))
	require.NoError(t, config.Load(&telegram, config.WithPrefix("TELEGRAM_")))

	assert.Equal(t, "s-1", slack.Token)
	assert.Equal(t, "t-1", telegram.Token)
}

func TestLoad_Required(t *testing.T) {
	var cfg requiredConfig
	err := config.Load(&cfg, config.WithoutCache())
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)

	assert.Panics(t, func() { config.MustLoad(&requiredConfig{}, config.WithoutCache()) })
}

func TestLoad_Cached(t *testing.T) {
	var first cachedConfig
	require.NoError(t, config.Load(&first))

	t.Setenv("TEST_CFG_CACHED", "second")
	var second cachedConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, "first", second.Value)
}

func TestLoad_NilPointer(t *testing.T) {
	var cfg *defaultsConfig
	assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	type fileConfig struct {
		Name  string   `yaml:"name"`
		Items []string `yaml:"items"`
	}

	dir := t.TempDir()

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(dir, "ok.yaml")
		require.NoError(t, os.WriteFile(path, []byte("name: demo\nitems: [a, b]\n"), 0o600))

		var cfg fileConfig
		require.NoError(t, config.LoadFile(path, &cfg))
		assert.Equal(t, "demo", cfg.Name)
		assert.Equal(t, []string{"a", "b"}, cfg.Items)
	})

	t.Run("unknown field", func(t *testing.T) {
		path := filepath.Join(dir, "typo.yaml")
		require.NoError(t, os.WriteFile(path, []byte("nmae: demo\n"), 0o600))

		var cfg fileConfig
		assert.ErrorIs(t, config.LoadFile(path, &cfg), config.ErrParsingFile)
	})

	t.Run("missing file", func(t *testing.T) {
		var cfg fileConfig
		assert.ErrorIs(t, config.LoadFile(filepath.Join(dir, "nope.yaml"), &cfg), config.ErrReadingFile)
	})
}

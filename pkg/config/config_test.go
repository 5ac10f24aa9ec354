package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags() *pflag.FlagSet {
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.String("config", "", "")
	f.String("workspace", ".", "")
	f.Int("port", 8080, "")
	f.Bool("serve", false, "")
	return f
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(newFlags())
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Workspace)
	assert.Equal(t, []string{"//..."}, cfg.Targets)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, ".syncgraph", cfg.Store.Dir)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Quiet)
	assert.Equal(t, 5*time.Second, cfg.Watch.MaxWait)
	assert.Equal(t, 200, cfg.Query.BatchSize)
	assert.Equal(t, 4, cfg.Query.Parallelism)
	assert.True(t, cfg.Query.KeepGoing)
	assert.Equal(t, "bazel", cfg.Bazel.Binary)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.Verbosity)
}

func TestLoadPriority(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
targets = ["//app/...", "-//app/legacy/..."]
port = 7000

[store]
backend = "sqlite"

[watch]
quiet = "250ms"
max_wait = "2s"

[query]
batch_size = 50
`), 0o644))

	t.Setenv("SYNCGRAPH_PORT", "7100")
	t.Setenv("SYNCGRAPH_QUERY_PARALLELISM", "8")

	f := newFlags()
	require.NoError(t, f.Parse([]string{"--config", path, "--serve"}))

	cfg, err := Load(f)
	require.NoError(t, err)

	assert.Equal(t, []string{"//app/...", "-//app/legacy/..."}, cfg.Targets)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Quiet)
	assert.Equal(t, 2*time.Second, cfg.Watch.MaxWait)
	assert.Equal(t, 50, cfg.Query.BatchSize)
	assert.Equal(t, 8, cfg.Query.Parallelism, "env overrides defaults")
	assert.Equal(t, 7100, cfg.Port, "env overrides file")
	assert.True(t, cfg.Serve, "flags override everything")
}

func TestLoadMissingExplicitConfig(t *testing.T) {
	f := newFlags()
	require.NoError(t, f.Parse([]string{"--config", filepath.Join(t.TempDir(), "missing.toml")}))

	_, err := Load(f)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Targets: nil,
		Store:   StoreConfig{Backend: "redis"},
		Watch:   WatchConfig{Quiet: time.Second, MaxWait: time.Millisecond},
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, key := range []string{"targets", "store.backend", "query.batch_size", "query.parallelism", "watch"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "port", envKey("SYNCGRAPH_PORT"))
	assert.Equal(t, "query.batch_size", envKey("SYNCGRAPH_QUERY_BATCH_SIZE"))
	assert.Equal(t, "log.max_size_mb", envKey("SYNCGRAPH_LOG_MAX_SIZE_MB"))
	assert.Equal(t, "workspace", envKey("SYNCGRAPH_WORKSPACE"))
}

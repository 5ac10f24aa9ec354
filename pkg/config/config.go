package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultFile is read from the working directory unless --config points elsewhere
const DefaultFile = "syncgraph.toml"

const envPrefix = "SYNCGRAPH_"

// Config holds all configuration for the application
type Config struct {
	Workspace string      `koanf:"workspace"`
	Targets   []string    `koanf:"targets"`
	Store     StoreConfig `koanf:"store"`
	Watch     WatchConfig `koanf:"watch"`
	Query     QueryConfig `koanf:"query"`
	Bazel     BazelConfig `koanf:"bazel"`
	Serve     bool        `koanf:"serve"`
	Port      int         `koanf:"port"`
	Verbosity string      `koanf:"verbosity"`
	Log       LogConfig   `koanf:"log"`
}

type StoreConfig struct {
	Backend string `koanf:"backend"` // "file" or "sqlite"
	Dir     string `koanf:"dir"`     // relative paths resolve against the workspace
}

type WatchConfig struct {
	Quiet   time.Duration `koanf:"quiet"`
	MaxWait time.Duration `koanf:"max_wait"`
}

type QueryConfig struct {
	BatchSize   int  `koanf:"batch_size"`
	Parallelism int  `koanf:"parallelism"`
	KeepGoing   bool `koanf:"keep_going"`
}

type BazelConfig struct {
	Binary string `koanf:"binary"`
}

type LogConfig struct {
	JSON       bool   `koanf:"json"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

// sections are the nested key groups; env vars address them as SYNCGRAPH_<SECTION>_<KEY>
var sections = map[string]bool{"store": true, "watch": true, "query": true, "bazel": true, "log": true}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]any{
		"workspace":         ".",
		"targets":           []string{"//..."},
		"store.backend":     "file",
		"store.dir":         ".syncgraph",
		"watch.quiet":       500 * time.Millisecond,
		"watch.max_wait":    5 * time.Second,
		"query.batch_size":  200,
		"query.parallelism": 4,
		"query.keep_going":  true,
		"bazel.binary":      "bazel",
		"serve":             false,
		"port":              8080,
		"verbosity":         "info",
		"log.json":          false,
		"log.file":          "",
		"log.max_size_mb":   10,
		"log.max_backups":   3,
		"log.max_age_days":  28,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - syncgraph.toml
	path, explicit := configPath(f)
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		// A missing default file is fine; an explicit one must exist
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// 3. Environment Variables
	// Prefix: SYNCGRAPH_ (e.g., SYNCGRAPH_PORT=9090, SYNCGRAPH_QUERY_BATCH_SIZE=50)
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations no sync pass could run with
func (c *Config) Validate() error {
	var errs []error
	if len(c.Targets) == 0 {
		errs = append(errs, errors.New("targets: at least one target pattern is required"))
	}
	switch c.Store.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend))
	}
	if c.Query.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("query.batch_size: must be positive, got %d", c.Query.BatchSize))
	}
	if c.Query.Parallelism <= 0 {
		errs = append(errs, fmt.Errorf("query.parallelism: must be positive, got %d", c.Query.Parallelism))
	}
	if c.Watch.Quiet <= 0 || c.Watch.MaxWait < c.Watch.Quiet {
		errs = append(errs, fmt.Errorf("watch: need 0 < quiet <= max_wait, got %s and %s", c.Watch.Quiet, c.Watch.MaxWait))
	}
	return errors.Join(errs...)
}

func configPath(f *pflag.FlagSet) (string, bool) {
	if f != nil {
		if flag := f.Lookup("config"); flag != nil && flag.Value.String() != "" {
			return flag.Value.String(), true
		}
	}
	return DefaultFile, false
}

// envKey maps SYNCGRAPH_QUERY_BATCH_SIZE to query.batch_size
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if head, rest, ok := strings.Cut(key, "_"); ok && sections[head] {
		return head + "." + rest
	}
	return key
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]any
}

func makeMapProvider(m map[string]any) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]any, error) {
	return unflatten(p.m), nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

// unflatten turns dotted keys into nested maps, the shape koanf providers return
func unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for key, value := range flat {
		parts := strings.Split(key, ".")
		m := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := m[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				m[p] = next
			}
			m = next
		}
		m[parts[len(parts)-1]] = value
	}
	return out
}

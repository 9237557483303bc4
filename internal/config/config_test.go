package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
logging:
  development: true
store:
  driver: postgres
  postgres_dsn: postgres://localhost/yearreview
  postgres_max_conns: 8
  auto_migrate: false
dispatcher:
  workers: 2
  queue_depth: 16
  enqueue_timeout_seconds: 3
github:
  timeout_seconds: 20
  requests_per_second: 1.5
  star_repo: octo/stars
archive:
  driver: gcs
  gcs_bucket: profiles-bucket
pubsub:
  project_id: proj
  topic_name: profiles-done
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Store.Driver != DriverPostgres || cfg.Store.PostgresMaxConns != 8 || cfg.Store.AutoMigrate {
		t.Fatalf("expected store overrides to apply: %+v", cfg.Store)
	}
	if cfg.Dispatcher.Workers != 2 || cfg.Dispatcher.QueueDepth != 16 {
		t.Fatalf("expected dispatcher overrides to apply: %+v", cfg.Dispatcher)
	}
	if got := cfg.EnqueueTimeout(); got != 3*time.Second {
		t.Fatalf("expected enqueue timeout 3s, got %v", got)
	}
	if got := cfg.GitHubTimeout(); got != 20*time.Second {
		t.Fatalf("expected github timeout 20s, got %v", got)
	}
	if cfg.GitHub.RequestsPerSecond != 1.5 || cfg.GitHub.StarRepo != "octo/stars" {
		t.Fatalf("expected github overrides to apply: %+v", cfg.GitHub)
	}
	// Defaults survive partial sections.
	if cfg.GitHub.APIBaseURL != "https://api.github.com" || cfg.Archive.Prefix != "profiles" {
		t.Fatalf("expected defaults to be kept: %+v %+v", cfg.GitHub, cfg.Archive)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Store.Driver != DriverSQLite || cfg.Archive.Driver != ArchiveNone {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.GitHub.TimeoutSeconds != 10 || cfg.Dispatcher.EnqueueTimeoutSeconds != 5 {
		t.Fatalf("unexpected timeout defaults: %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("YEARREVIEW_STORE_DRIVER", "memory")
	t.Setenv("YEARREVIEW_DISPATCHER_WORKERS", "3")
	t.Setenv("PORT", "7070")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Driver != DriverMemory || cfg.Dispatcher.Workers != 3 || cfg.Server.Port != 7070 {
		t.Fatalf("expected env overrides to apply: %+v", cfg)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	base := func() Config {
		return Config{
			Server:     ServerConfig{Port: 8080},
			Store:      StoreConfig{Driver: DriverMemory},
			Dispatcher: DispatcherConfig{Workers: 1, QueueDepth: 1, EnqueueTimeoutSeconds: 1},
			GitHub: GitHubConfig{
				APIBaseURL:     "https://api.github.com",
				GraphQLURL:     "https://api.github.com/graphql",
				TimeoutSeconds: 10,
			},
			Archive: ArchiveConfig{Driver: ArchiveNone},
		}
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"auth key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }, "store.driver"},
		{"sqlite path", func(c *Config) { c.Store.Driver = DriverSQLite }, "store.sqlite_path"},
		{"postgres dsn", func(c *Config) { c.Store.Driver = DriverPostgres }, "store.postgres_dsn"},
		{"redis addr", func(c *Config) { c.Store.Driver = DriverRedis }, "store.redis_addr"},
		{"workers", func(c *Config) { c.Dispatcher.Workers = 0 }, "dispatcher.workers"},
		{"queue depth", func(c *Config) { c.Dispatcher.QueueDepth = 0 }, "dispatcher.queue_depth"},
		{"star repo", func(c *Config) { c.GitHub.StarRepo = "no-slash" }, "github.star_repo"},
		{"local archive", func(c *Config) { c.Archive.Driver = ArchiveLocal }, "archive.local_dir"},
		{"gcs archive", func(c *Config) { c.Archive.Driver = ArchiveGCS }, "archive.gcs_bucket"},
	}
	for _, tc := range tests {
		cfg := base()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error mentioning %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Executor      struct {
		TaskTimeout time.Duration `mapstructure:"task_timeout"`
		MaxBatch    int           `mapstructure:"max_batch"`
	} `mapstructure:"executor"`
	Policy struct {
		File string `mapstructure:"file"`
	} `mapstructure:"policy"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected debug log level, got %q", cfg.Logging.Level)
		}
	})

	t.Run("production keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected info log level, got %q", cfg.Logging.Level)
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr string
	}{
		{"valid", ServiceConfig{Name: "svc", Environment: "staging"}, ""},
		{"missing name", ServiceConfig{Environment: "production"}, "config.name is required"},
		{"invalid environment", ServiceConfig{Name: "svc", Environment: "qa"}, "config.environment must be one of"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Logging.ApplyDefaults()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", `
name: reconflow
environment: staging
executor:
  task_timeout: 3s
  max_batch: 4
policy:
  file: ./policies/routing_policies.yaml
`)

	var cfg testConfig
	if err := LoadConfig("reconflow", &cfg, WithConfigFile(path), WithEnvFile(filepath.Join(dir, "none.env"))); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "reconflow" || cfg.Environment != "staging" {
		t.Errorf("unexpected service config %+v", cfg.ServiceConfig)
	}
	if cfg.Executor.TaskTimeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %v", cfg.Executor.TaskTimeout)
	}
	if cfg.Policy.File != "./policies/routing_policies.yaml" {
		t.Errorf("unexpected policy file %q", cfg.Policy.File)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", "name: reconflow\nexecutor:\n  max_batch: 2\n")
	t.Setenv("RECONFLOW_EXECUTOR_MAX_BATCH", "8")
	t.Setenv("EXECUTOR_MAX_BATCH", "99")

	var cfg testConfig
	if err := LoadConfig("reconflow", &cfg, WithConfigFile(path), WithEnvFile(filepath.Join(dir, "none.env"))); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Executor.MaxBatch != 8 {
		t.Errorf("expected prefixed env to win with 8, got %d", cfg.Executor.MaxBatch)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", "name: reconflow\n")

	var cfg testConfig
	err := LoadConfig("reconflow", &cfg,
		WithConfigFile(path),
		WithEnvFile(filepath.Join(dir, "none.env")),
		WithDefaults(map[string]any{"executor.task_timeout": "30s"}),
	)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Executor.TaskTimeout != 30*time.Second {
		t.Errorf("expected default 30s, got %v", cfg.Executor.TaskTimeout)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	var cfg testConfig
	if err := LoadConfig("reconflow", &cfg, WithConfigFile("/nonexistent/config.yml")); err == nil {
		t.Fatal("expected error for an explicit config file that does not exist")
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool   { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }

func TestResolverSearchOrder(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/reconflow/config.yml": true,
		"./config.yml":               true,
		"./.env":                     true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("reconflow", LoaderConfig{})
	if files.ConfigFile != "./cmd/reconflow/config.yml" {
		t.Errorf("expected cmd config to win, got %q", files.ConfigFile)
	}
	if files.EnvFile != "./.env" {
		t.Errorf("expected ./.env, got %q", files.EnvFile)
	}
}

func TestGenerateEnvKeyVariants(t *testing.T) {
	got := generateEnvKeyVariants("EXECUTOR_TASK_TIMEOUT")
	for _, want := range []string{"executor_task_timeout", "executor.task.timeout", "executor.task_timeout", "executor_task.timeout"} {
		if !slices.Contains(got, want) {
			t.Errorf("expected variant %q in %v", want, got)
		}
	}
	if single := generateEnvKeyVariants("DEBUG"); len(single) != 1 || single[0] != "debug" {
		t.Errorf("unexpected single-part variants %v", single)
	}
}

type envFS struct {
	t      *testing.T
	files  map[string]bool
	env    map[string]string
	loaded []string
}

func (e *envFS) Exists(path string) bool { return e.files[path] }

func (e *envFS) LoadEnv(path string) error {
	e.loaded = append(e.loaded, path)
	for k, v := range e.env {
		e.t.Setenv(k, v)
	}
	return nil
}

func TestLoadConfigWithFileSystem(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", "name: reconflow\nexecutor:\n  max_batch: 2\n")
	fs := &envFS{
		t:     t,
		files: map[string]bool{path: true, "./.env": true},
		env:   map[string]string{"RECONFLOW_EXECUTOR_MAX_BATCH": "6"},
	}

	var cfg testConfig
	if err := LoadConfig("reconflow", &cfg, WithFileSystem(fs), WithConfigFile(path)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !slices.Equal(fs.loaded, []string{"./.env"}) {
		t.Errorf("expected the resolved ./.env to be loaded, got %v", fs.loaded)
	}
	if cfg.Executor.MaxBatch != 6 {
		t.Errorf("expected env file value 6, got %d", cfg.Executor.MaxBatch)
	}
}

func TestLoadConfigWithFileSystem_MissingConfig(t *testing.T) {
	fs := &envFS{t: t, files: map[string]bool{}}
	var cfg testConfig
	if err := LoadConfig("reconflow", &cfg, WithFileSystem(fs), WithConfigFile("config.yml")); err == nil {
		t.Fatal("expected error when the filesystem reports the config file missing")
	}
}

func TestLoadConfigWithEnvPrefix(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", "name: reconflow\nexecutor:\n  max_batch: 2\n")
	t.Setenv("RECONFLOW_EXECUTOR_MAX_BATCH", "8")
	t.Setenv("RF_EXECUTOR_MAX_BATCH", "5")

	var cfg testConfig
	err := LoadConfig("reconflow", &cfg,
		WithConfigFile(path),
		WithEnvFile(filepath.Join(dir, "none.env")),
		WithEnvPrefix("RF_"),
	)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Executor.MaxBatch != 5 {
		t.Errorf("expected RF_ prefixed value 5, got %d", cfg.Executor.MaxBatch)
	}
}

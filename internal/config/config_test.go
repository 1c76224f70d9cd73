package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("default driver = %q, want memory", cfg.Store.Driver)
	}
	if cfg.Workflow.TaskGracePeriod != 7*24*time.Hour {
		t.Errorf("default grace period = %v, want 168h", cfg.Workflow.TaskGracePeriod)
	}
	if cfg.Workflow.AllocationMaxAttempts != 100 {
		t.Errorf("default allocation attempts = %d, want 100", cfg.Workflow.AllocationMaxAttempts)
	}
}

func TestLoad_overridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
store:
  driver: postgres
  dsn_env: MY_DSN
workflow:
  task_grace_period: 48h
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Store.Driver != "postgres" || cfg.Store.DSNEnv != "MY_DSN" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Workflow.TaskGracePeriod != 48*time.Hour {
		t.Errorf("grace period = %v, want 48h", cfg.Workflow.TaskGracePeriod)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("untouched default log level = %q", cfg.Observability.LogLevel)
	}
}

func TestLoad_envOverrides(t *testing.T) {
	t.Setenv("CASEFLOW_SERVER_PORT", "7070")
	t.Setenv("CASEFLOW_OBSERVABILITY_LOG_LEVEL", "debug")

	path := writeConfig(t, "server:\n  port: 9090\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("env should beat file: port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Observability.LogLevel)
	}
}

func TestValidate_rejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad driver", func(c *Config) { c.Store.Driver = "sqlite" }, "store.driver"},
		{"postgres without dsn", func(c *Config) {
			c.Store.Driver = "postgres"
			c.Store.DSNEnv = ""
		}, "store.dsn_env"},
		{"zero grace period", func(c *Config) { c.Workflow.TaskGracePeriod = 0 }, "task_grace_period"},
		{"zero attempts", func(c *Config) { c.Workflow.AllocationMaxAttempts = 0 }, "allocation_max_attempts"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("got %v, want error mentioning %q", err, tc.want)
			}
		})
	}
}

package cliconfig

import "testing"

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("CABBAGE_LISTEN", "0.0.0.0:7000")
	t.Setenv("CABBAGE_TARGET", "10.0.0.1:6379")
	t.Setenv("CABBAGE_LOG_LEVEL", "debug")
	t.Setenv("CABBAGE_WATCH_CONFIG", "true")

	cfg := DefaultConfig()
	ApplyEnvConfig(&cfg, map[string]bool{})

	if cfg.Listen != "0.0.0.0:7000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Target != "10.0.0.1:6379" {
		t.Errorf("Target = %q", cfg.Target)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if !cfg.WatchConfig {
		t.Error("WatchConfig not applied")
	}
}

func TestApplyEnvConfigRespectsFlags(t *testing.T) {
	t.Setenv("CABBAGE_LISTEN", "0.0.0.0:7000")

	cfg := DefaultConfig()
	ApplyEnvConfig(&cfg, map[string]bool{"client": true})

	if cfg.Listen != DefaultConfig().Listen {
		t.Errorf("Listen = %q, want the flag value preserved", cfg.Listen)
	}
}

func TestApplyEnvConfigEmptyEnv(t *testing.T) {
	t.Setenv("CABBAGE_LISTEN", "")
	t.Setenv("CABBAGE_TARGET", "")

	cfg := DefaultConfig()
	ApplyEnvConfig(&cfg, map[string]bool{})

	if cfg != DefaultConfig() {
		t.Errorf("config = %+v, want untouched defaults", cfg)
	}
}

package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (CABBAGE_*). It respects flags that have been explicitly set (changed
// map).
func ApplyEnvConfig(cfg *Config, changed map[string]bool) {
	s := newConfigSetter(changed)

	s.setString("client", os.Getenv("CABBAGE_LISTEN"), &cfg.Listen)
	s.setString("target", os.Getenv("CABBAGE_TARGET"), &cfg.Target)
	s.setString("log-level", os.Getenv("CABBAGE_LOG_LEVEL"), &cfg.LogLevel)
	s.setBoolFromString("watch-config", os.Getenv("CABBAGE_WATCH_CONFIG"), &cfg.WatchConfig)
}

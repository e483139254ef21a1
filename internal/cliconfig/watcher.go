package cliconfig

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounceDelay is how long to wait after a file change before re-reading
// the config, so editors that write in several steps trigger one reload.
const debounceDelay = 100 * time.Millisecond

// WatchLogLevel watches the config file at path and applies log_level
// changes to the global zerolog level until ctx ends.
//
// The watch is placed on the file's directory rather than the file itself:
// most editors replace the file on save, which would silently drop a watch
// on the old inode.
func WatchLogLevel(ctx context.Context, path string, logger zerolog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	logger.Info().Str("path", path).Msg("watching config for log level changes")
	go watchLoop(ctx, watcher, path, logger)
	return nil
}

func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, logger zerolog.Logger) {
	defer watcher.Close()

	debounce := time.NewTimer(debounceDelay)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	base := filepath.Base(path)
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(debounceDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Error().Err(err).Msg("config watcher error")

		case <-debounce.C:
			applyLogLevel(path, logger)
		}
	}
}

// applyLogLevel re-reads the config file and applies its log_level, if any,
// to the global zerolog level. Read or parse failures are logged, not
// fatal; the previous level stays in effect.
func applyLogLevel(path string, logger zerolog.Logger) {
	fc, err := LoadFileConfig(path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("failed to reload config")
		return
	}
	if fc.LogLevel == "" {
		return
	}

	level, err := zerolog.ParseLevel(fc.LogLevel)
	if err != nil {
		logger.Error().Err(err).Str("level", fc.LogLevel).Msg("invalid log level in config")
		return
	}

	if zerolog.GlobalLevel() != level {
		zerolog.SetGlobalLevel(level)
		logger.Info().Str("level", level.String()).Msg("log level updated")
	}
}

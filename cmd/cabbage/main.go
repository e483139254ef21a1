package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/akesling/cabbage"
	"github.com/akesling/cabbage/internal/cliconfig"
)

const longHelp = `cabbage is a transparent proxy for RESP2, the Redis wire protocol.

It accepts client connections, dials the target server once per connection,
and forwards frames in both directions while logging every request and
response with per-connection identifiers. Command semantics are never
interpreted or rewritten.`

var exampleUsage = `  cabbage proxy --client 127.0.0.1:5000 --target 127.0.0.1:6379
  cabbage proxy --config $HOME/.cabbage/config.toml --log-level debug
  cabbage haiku --all`

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func newProxyCmd() *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log := cliconfig.Logger()

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Run the proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first (default $HOME/.cabbage/config.toml),
			// then env vars, then flag overrides.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cliconfig.ApplyFileConfig(&cfg, fc, changed)
			}

			cliconfig.ApplyEnvConfig(&cfg, changed)

			if err := cfg.Validate(); err != nil {
				return err
			}

			zerolog.SetGlobalLevel(cfg.Level())
			log.Info().Interface("config", cfg).Msg("configuration")

			ctx, stop := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.WatchConfig {
				if cfgFile == "" || !cliconfig.FileExists(cfgFile) {
					log.Warn().Msg("config watching enabled but no config file present")
				} else if err := cliconfig.WatchLogLevel(ctx, cfgFile, log); err != nil {
					return fmt.Errorf("watch config: %w", err)
				}
			}

			err := cabbage.Run(ctx, cfg, log)
			if errors.Is(err, context.Canceled) {
				log.Info().Msg("received signal, stopping...")
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.cabbage/config.toml)")
	cmd.Flags().StringVar(&cfg.Listen, "client", cfg.Listen, "address to accept client connections on")
	cmd.Flags().StringVar(&cfg.Target, "target", cfg.Target, "address of the backing server")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (trace, debug, info, warn, error)")
	cmd.Flags().BoolVar(&cfg.WatchConfig, "watch-config", cfg.WatchConfig, "hot-reload log level from the config file")

	return cmd
}

func newHaikuCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "haiku",
		Short: "Print a random haiku",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cabbage.PrintHaiku(os.Stdout, all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "print all haikus")

	return cmd
}

func main() {
	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "cabbage",
		Short:   "A transparent proxy for the Redis wire protocol",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
	}
	root.AddCommand(newProxyCmd())
	root.AddCommand(newHaikuCmd())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("cabbage")
		os.Exit(1)
	}
}

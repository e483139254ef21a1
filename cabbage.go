// Package cabbage provides a transparent proxy for the RESP2 wire protocol.
//
// The proxy sits between a client and a single backing key-value server,
// decoding protocol frames, forwarding them, and returning results, while
// letting cross-cutting behavior (logging today, policy middleware tomorrow)
// compose around the forwarding path without modifying it.
//
// Example usage:
//
//	cfg := cabbage.DefaultConfig()
//	cfg.Listen = "127.0.0.1:5000"
//	cfg.Target = "127.0.0.1:6379"
//	if err := cabbage.Run(context.Background(), cfg, logger); err != nil {
//	    log.Fatal(err)
//	}
package cabbage

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/akesling/cabbage/internal/cliconfig"
	"github.com/akesling/cabbage/internal/proxy"
)

// Config holds the configuration for the proxy.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// DefaultConfig returns a Config with default values: listening on
// 127.0.0.1:5000 and targeting a local server on 127.0.0.1:6379.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Run binds the listen address and proxies client connections to the target
// until ctx is canceled. Each accepted client gets its own freshly dialed
// backend connection wrapped in the logging middleware.
func Run(ctx context.Context, cfg Config, logger zerolog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
	}
	defer ln.Close()

	logger.Info().
		Str("listen", cfg.Listen).
		Str("target", cfg.Target).
		Msg("proxy listening")

	return proxy.NewServer(logger).Serve(ctx, ln, newPipelineFactory(cfg.Target, logger))
}

// newPipelineFactory returns a Factory that dials target once per accepted
// client and assembles the per-connection pipeline: a backend connection
// manager wrapped in the logging middleware, both tagged with a fresh
// connection ID.
func newPipelineFactory(target string, logger zerolog.Logger) proxy.Factory {
	return func(ctx context.Context, clientAddr net.Addr) (proxy.Service, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", target)
		if err != nil {
			return nil, fmt.Errorf("connect to target %s: %w", target, err)
		}

		connID := uuid.NewString()
		logger.Info().
			Str("conn", connID).
			Str("client", clientAddr.String()).
			Str("target", target).
			Msg("connected with target")

		backend := proxy.NewBackend(conn, logger)
		return proxy.NewLogMiddleware(connID, logger)(backend), nil
	}
}

package cabbage

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/akesling/cabbage/internal/proxy"
)

// startProxyFor serves the proxy pipeline in front of target on an
// ephemeral port and returns the proxy address.
func startProxyFor(t *testing.T, target string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	logger := zerolog.Nop()
	go func() {
		defer close(done)
		proxy.NewServer(logger).Serve(ctx, ln, newPipelineFactory(target, logger))
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return after cancellation")
		}
	})
	return ln.Addr().String()
}

func TestProxyAgainstRealServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := startProxyFor(t, mr.Addr())

	client := redis.NewClient(&redis.Options{Addr: addr, Protocol: 2})
	defer client.Close()

	ctx := context.Background()

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		t.Fatalf("PING through proxy: %v", err)
	}
	if pong != "PONG" {
		t.Errorf("PING = %q, want PONG", pong)
	}

	if err := client.Set(ctx, "greeting", "hello", 0).Err(); err != nil {
		t.Fatalf("SET through proxy: %v", err)
	}
	got, err := client.Get(ctx, "greeting").Result()
	if err != nil {
		t.Fatalf("GET through proxy: %v", err)
	}
	if got != "hello" {
		t.Errorf("GET = %q, want hello", got)
	}

	// The write really landed on the target server.
	mr.CheckGet(t, "greeting", "hello")
}

func TestProxyTargetUnreachable(t *testing.T) {
	// Dead target: the factory fails per connection, the proxy stays up,
	// and the client sees its connection dropped rather than a hang.
	addr := startProxyFor(t, "127.0.0.1:1")

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial proxy: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Fatal("expected the proxy to close the connection")
	}
}

func TestRunInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Target = "not-an-address"
	if err := Run(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("Run accepted an invalid config")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Listen = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, cfg, zerolog.Nop())
	}()

	// Give Run a moment to bind, then cancel.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

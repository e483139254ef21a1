package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/akesling/cabbage/pkg/resp"
)

// syncBuffer is a goroutine-safe log sink; zerolog writes from multiple
// goroutines during these tests.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// stubService is a scripted inner stage for decorator tests.
type stubService struct {
	readyErr  error
	submitErr error
	submitted []resp.Frame
	stream    *Stream
	closed    bool
}

func (s *stubService) Ready() error { return s.readyErr }

func (s *stubService) Submit(_ context.Context, frame resp.Frame) (*Stream, error) {
	s.submitted = append(s.submitted, frame)
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return s.stream, nil
}

func (s *stubService) Close() error {
	s.closed = true
	return nil
}

func responseStream(frames ...resp.Frame) *Stream {
	stream, del := newStream(len(frames) + 1)
	for _, f := range frames {
		del.ch <- f
	}
	close(del.ch)
	return stream
}

func newStubWithResponses(frames ...resp.Frame) *stubService {
	return &stubService{stream: responseStream(frames...)}
}

func TestLogServiceTransparent(t *testing.T) {
	responses := []resp.Frame{
		resp.NewSimpleString("first"),
		resp.NewBulkString("second"),
		resp.NewInteger(3),
	}
	stub := newStubWithResponses(responses...)

	var buf syncBuffer
	svc := NewLogMiddleware("conn-1", zerolog.New(&buf))(stub)

	req := resp.NewCommand("LRANGE", "list", "0", "-1")
	stream, err := svc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// The wrapped stage received the frame untouched.
	if len(stub.submitted) != 1 || !stub.submitted[0].Equal(req) {
		t.Fatalf("inner stage saw %v, want %v", stub.submitted, req)
	}

	// Logging is lazy: nothing inbound is logged before the stream is
	// drained.
	if strings.Contains(buf.String(), "target -> client") {
		t.Fatal("inbound log emitted before any frame was delivered")
	}

	for i, want := range responses {
		got, err := stream.Next(context.Background())
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if !got.Equal(want) {
			t.Errorf("frame %d = %v, want %v (decorator must not mutate or reorder)", i, got, want)
		}
	}
	if _, err := stream.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestLogServiceCounters(t *testing.T) {
	var buf syncBuffer
	logger := zerolog.New(&buf)

	stub := newStubWithResponses(resp.NewSimpleString("PONG"))
	svc := NewLogMiddleware("conn-1", logger)(stub)

	ctx := context.Background()
	stream, err := svc.Submit(ctx, resp.NewCommand("PING"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := stream.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}

	stub.stream = responseStream(resp.NewSimpleString("PONG"))
	stream, err = svc.Submit(ctx, resp.NewCommand("PING"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := stream.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"req":1`, `"req":2`, `"resp":1`, `"resp":2`, `"conn":"conn-1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestLogServiceDocsPlaceholder(t *testing.T) {
	const payload = "COMMAND-DOCUMENTATION-PAYLOAD-THAT-MUST-NOT-BE-LOGGED"

	stub := newStubWithResponses(resp.NewBulkString(payload))

	var buf syncBuffer
	svc := NewLogMiddleware("conn-1", zerolog.New(&buf))(stub)

	ctx := context.Background()
	stream, err := svc.Submit(ctx, resp.NewCommand("COMMAND", "DOCS"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got, err := stream.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	// The frame itself passes through complete.
	if !got.Equal(resp.NewBulkString(payload)) {
		t.Errorf("frame = %v, want the full payload", got)
	}

	out := buf.String()
	if strings.Contains(out, payload) {
		t.Error("documentation payload leaked into log output")
	}
	if !strings.Contains(out, `"frame":"docs"`) {
		t.Errorf("log output missing docs placeholder:\n%s", out)
	}
	// The response counter still advances for suppressed payloads.
	if !strings.Contains(out, `"resp":1`) {
		t.Errorf("log output missing response counter:\n%s", out)
	}
}

func TestLogServiceDelegatesReadyAndErrors(t *testing.T) {
	wantErr := errors.New("stage exploded")
	stub := &stubService{readyErr: wantErr, submitErr: wantErr}

	svc := NewLogMiddleware("conn-1", zerolog.Nop())(stub)

	if err := svc.Ready(); !errors.Is(err, wantErr) {
		t.Errorf("Ready err = %v, want inner error", err)
	}
	if _, err := svc.Submit(context.Background(), resp.NewCommand("PING")); !errors.Is(err, wantErr) {
		t.Errorf("Submit err = %v, want inner error", err)
	}
}

func TestLogServiceCloseForwards(t *testing.T) {
	stub := &stubService{}
	svc := NewLogMiddleware("conn-1", zerolog.Nop())(stub)

	c, ok := svc.(io.Closer)
	if !ok {
		t.Fatal("decorated service does not implement io.Closer")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !stub.closed {
		t.Error("Close was not forwarded to the inner stage")
	}
}

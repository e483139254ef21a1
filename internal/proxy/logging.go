package proxy

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/akesling/cabbage/pkg/resp"
)

// docRequest is the introspection request whose response payload is large
// enough to flood logs, so it is rendered as a placeholder instead.
var docRequest = resp.NewCommand("COMMAND", "DOCS")

// docPlaceholder replaces the response payload of docRequest in log output.
const docPlaceholder = "docs"

// LogService is a [Middleware]-built Service that instruments another stage:
// every outbound frame is logged with a per-connection request number and a
// fresh command ID, and every inbound frame is logged lazily as the stream
// delivers it, with the same identifiers.
//
// The request counter is plain because Submit is single-goroutine per
// connection; the response counter is atomic because streams are drained by
// the forwarder goroutine.
type LogService struct {
	inner  Service
	connID string
	logger zerolog.Logger

	requestCount  uint64
	responseCount atomic.Uint64
}

// NewLogMiddleware returns a Middleware that wraps a stage in a [LogService]
// tagged with the given connection ID.
func NewLogMiddleware(connID string, logger zerolog.Logger) Middleware {
	return func(inner Service) Service {
		return &LogService{
			inner:  inner,
			connID: connID,
			logger: logger,
		}
	}
}

// Ready delegates to the inner stage unchanged.
func (s *LogService) Ready() error {
	return s.inner.Ready()
}

// Submit logs the outbound frame, delegates, and wraps the returned stream
// so each response frame is logged at the moment it is delivered. Frames
// pass through unmodified and in order.
func (s *LogService) Submit(ctx context.Context, frame resp.Frame) (*Stream, error) {
	s.requestCount++
	reqNum := s.requestCount
	cmdID := uuid.NewString()
	isDoc := frame.Equal(docRequest)

	s.logger.Info().
		Str("conn", s.connID).
		Uint64("req", reqNum).
		Str("cmd", cmdID).
		Stringer("frame", frame).
		Msg("client -> target")

	stream, err := s.inner.Submit(ctx, frame)
	if err != nil {
		return nil, err
	}

	return stream.Inspect(func(f resp.Frame) {
		respNum := s.responseCount.Add(1)
		ev := s.logger.Info().
			Str("conn", s.connID).
			Uint64("resp", respNum).
			Str("cmd", cmdID)
		if isDoc {
			ev = ev.Str("frame", docPlaceholder)
		} else {
			ev = ev.Stringer("frame", f)
		}
		ev.Msg("target -> client")
	}), nil
}

// Close forwards to the inner stage when it holds resources.
func (s *LogService) Close() error {
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

package proxy

import (
	"context"

	"github.com/akesling/cabbage/pkg/resp"
)

// Service is the processing-stage contract: one request frame in, one lazy
// stream of response frames out.
//
// Ready reports whether the stage can currently accept a frame; callers must
// check it before Submit. A non-nil error means the stage cannot perform the
// work, and for some implementations (notably [Backend] after its worker has
// terminated) the condition is permanent.
//
// Submit hands one frame to the stage and returns the Stream that its
// responses will arrive on. Submit must be called from a single goroutine per
// Service instance; stages correlate responses by submission order, not by
// identifier.
//
// A Service that also implements io.Closer is closed by [Server] when its
// client connection ends.
type Service interface {
	Ready() error
	Submit(ctx context.Context, frame resp.Frame) (*Stream, error)
}

// Middleware wraps a Service with additional behavior, producing a new
// Service of the same contract. Middleware must propagate the inner stage's
// readiness and errors, and must not alter frame values or ordering.
type Middleware func(Service) Service

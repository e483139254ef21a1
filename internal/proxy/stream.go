package proxy

import (
	"context"
	"io"
	"sync"

	"github.com/akesling/cabbage/pkg/resp"
)

// Stream is the lazy, ordered sequence of response frames associated with
// one submitted request. Frames are produced asynchronously by the stage
// that created the stream and consumed with Next.
//
// A stream ends (Next returns io.EOF) when the producing stage stops
// associating frames with its request: for [Backend] that is when the next
// request is accepted or the target connection closes.
type Stream struct {
	frames  <-chan resp.Frame
	inspect func(resp.Frame)

	// done signals abandonment to the producer. Shared, with closeOnce,
	// across streams derived via Inspect.
	done      chan struct{}
	closeOnce *sync.Once
}

// delivery is the producer's half of a Stream: the channel it feeds and the
// abandonment signal it watches while feeding.
type delivery struct {
	ch   chan resp.Frame
	done chan struct{}
}

// newStream returns a consumer Stream and the producer delivery backing it,
// with the given frame buffer capacity.
func newStream(capacity int) (*Stream, *delivery) {
	ch := make(chan resp.Frame, capacity)
	done := make(chan struct{})
	s := &Stream{
		frames:    ch,
		done:      done,
		closeOnce: &sync.Once{},
	}
	return s, &delivery{ch: ch, done: done}
}

// Next blocks until the next frame is available and returns it. It returns
// io.EOF once the stream has ended, or the context error if ctx is done
// first. If an inspect hook is attached it runs exactly once per frame, at
// the moment the frame is delivered.
func (s *Stream) Next(ctx context.Context) (resp.Frame, error) {
	select {
	case frame, ok := <-s.frames:
		if !ok {
			return resp.Frame{}, io.EOF
		}
		if s.inspect != nil {
			s.inspect(frame)
		}
		return frame, nil
	case <-ctx.Done():
		return resp.Frame{}, ctx.Err()
	}
}

// Close abandons the stream. The producer observes the abandonment on its
// next delivery attempt and stops associating further frames with this
// request. Close is idempotent and safe to call concurrently with Next.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Inspect returns a derived stream sharing this stream's frames and
// lifecycle, with fn composed onto the delivery path. The hook must not
// block; it runs inline in the consumer's Next call.
func (s *Stream) Inspect(fn func(resp.Frame)) *Stream {
	prev := s.inspect
	combined := fn
	if prev != nil {
		combined = func(f resp.Frame) {
			prev(f)
			fn(f)
		}
	}
	return &Stream{
		frames:    s.frames,
		inspect:   combined,
		done:      s.done,
		closeOnce: s.closeOnce,
	}
}

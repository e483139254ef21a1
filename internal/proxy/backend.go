package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/akesling/cabbage/pkg/resp"
)

const (
	// maxPendingRequests bounds the inbound request queue of a Backend.
	maxPendingRequests = 100

	// maxStreamFrames bounds the per-request response buffer.
	maxStreamFrames = 100
)

// request pairs a submitted frame with the delivery channel its responses
// go to.
type request struct {
	frame resp.Frame
	del   *delivery
}

// Backend owns one physical connection to the target server and exposes it
// as a [Service]. Constructing a Backend spawns a worker goroutine that owns
// both socket halves; the handle only touches the worker through channels
// and the liveness flag.
//
// Responses are correlated with requests by order, not by identifier: the
// worker delivers every incoming frame to the most recently accepted
// request's stream. Callers must therefore keep at most one request
// outstanding per Backend; submitting a new frame before the previous
// stream is drained redirects any late frames to the new stream.
type Backend struct {
	requests chan request

	// quit is closed by Close and tells the worker to exit. The request
	// channel itself is never closed; Submit holds a send case on it, and a
	// send on a closed channel panics.
	quit chan struct{}

	// done is closed when the worker exits, failing pending and future
	// Submit calls fast.
	done chan struct{}

	// running is the liveness flag: set true before the worker starts so
	// Ready cannot flap during startup, false on worker exit.
	running atomic.Bool

	logger    zerolog.Logger
	closeOnce sync.Once
}

// NewBackend wraps an already-connected target transport and immediately
// starts the worker goroutine.
func NewBackend(conn net.Conn, logger zerolog.Logger) *Backend {
	b := &Backend{
		requests: make(chan request, maxPendingRequests),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger,
	}
	b.running.Store(true)
	go b.run(conn)
	return b
}

// Ready reports whether the worker is still alive. Once it returns
// [ErrBackendDown] it will never recover for this handle.
func (b *Backend) Ready() error {
	if !b.running.Load() {
		return ErrBackendDown
	}
	return nil
}

// Submit enqueues frame for the worker and returns the stream its responses
// will arrive on. Submit blocks while the request queue is full and fails
// with [ErrBackendDown] if the worker has exited.
func (b *Backend) Submit(ctx context.Context, frame resp.Frame) (*Stream, error) {
	// After the worker exits the request queue may still have free buffer
	// slots, which would make the send case ready alongside the done case.
	// Checking done first keeps Submit failing deterministically.
	select {
	case <-b.done:
		return nil, ErrBackendDown
	default:
	}

	stream, del := newStream(maxStreamFrames)
	select {
	case b.requests <- request{frame: frame, del: del}:
		return stream, nil
	case <-b.done:
		return nil, ErrBackendDown
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the handle: the worker exits on its next loop iteration.
// Close is safe to call more than once and concurrently with Submit.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() { close(b.quit) })
	return nil
}

type readResult struct {
	frame resp.Frame
	err   error
}

// run is the worker. It is the sole owner of the target socket and of the
// current delivery channel; nothing here is shared except the liveness flag
// and the quit and done channels.
func (b *Backend) run(conn net.Conn) {
	w := resp.NewWriter(conn)

	// The socket read is blocking I/O, so a pump goroutine turns it into
	// channel events the select loop below can wait on alongside requests.
	reads := make(chan readResult)
	go func() {
		r := resp.NewReader(conn)
		for {
			frame, err := r.ReadFrame()
			select {
			case reads <- readResult{frame: frame, err: err}:
			case <-b.done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var current *delivery

loop:
	for {
		select {
		case <-b.quit:
			b.logger.Info().Msg("backend handle closed, shutting down worker")
			break loop

		case req := <-b.requests:
			// The new request supersedes the previous delivery target;
			// closing the old channel ends its stream.
			if current != nil {
				close(current.ch)
			}
			current = req.del
			if err := w.WriteFrame(req.frame); err != nil {
				b.logger.Error().Err(err).Msg("failed to send request to target")
				break loop
			}

		case res := <-reads:
			if res.err != nil {
				if errors.Is(res.err, io.EOF) {
					b.logger.Info().Msg("target connection closed")
				} else {
					b.logger.Error().Err(res.err).Msg("error reading response from target")
				}
				break loop
			}
			if current == nil {
				b.logger.Error().
					Stringer("frame", res.frame).
					Msg("response received without a known request to associate")
				continue
			}
			select {
			case current.ch <- res.frame:
			case <-current.done:
				// Receiver abandoned the stream; stop delivering to it.
				close(current.ch)
				current = nil
			}
		}
	}

	// done closes before the liveness flag flips so that a caller seeing
	// Ready fail is guaranteed a fast ErrBackendDown from Submit.
	close(b.done)
	b.running.Store(false)
	if current != nil {
		close(current.ch)
	}
	conn.Close()
}

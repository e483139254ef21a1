package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/akesling/cabbage/pkg/resp"
)

// maxPendingStreams bounds the forwarder's queue of response streams that
// have been created but not yet drained to the client. A full queue stalls
// the client read loop, bounding in-flight memory per connection.
const maxPendingStreams = 100

// Factory builds the per-connection pipeline for a newly accepted client.
// This is where the target is dialed and middleware is assembled; a failure
// abandons that one client without touching the listener.
type Factory func(ctx context.Context, clientAddr net.Addr) (Service, error)

// Server accepts client connections and runs the duplex forwarding loop for
// each of them.
type Server struct {
	logger zerolog.Logger
}

// NewServer returns a Server logging through the given logger.
func NewServer(logger zerolog.Logger) *Server {
	return &Server{logger: logger}
}

// Serve accepts connections from ln until ctx is canceled, building one
// pipeline per client via factory and handling each client in its own
// goroutine. Errors from a single connection or from factory never stop the
// accept loop.
func (s *Server) Serve(ctx context.Context, ln net.Listener, factory Factory) error {
	// Unblock Accept when the context ends.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Error().Err(err).Msg("failed to accept connection")
			continue
		}

		client := conn.RemoteAddr().String()
		s.logger.Info().Str("client", client).Msg("new connection")

		pipeline, err := factory(ctx, conn.RemoteAddr())
		if err != nil {
			s.logger.Error().Err(err).Str("client", client).Msg("failed to build pipeline")
			conn.Close()
			continue
		}

		go s.handleConnection(ctx, conn, pipeline)
	}
}

// handleConnection runs the per-client duplex loop: the calling goroutine
// reads request frames and submits them to the pipeline; a forwarder
// goroutine flattens the resulting stream of response streams back onto the
// client socket in submission order.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn, pipeline Service) {
	defer conn.Close()

	// Unblock the read loop when the context ends, mirroring how Serve
	// unblocks Accept. Without this a quiet client would hold the
	// connection open past shutdown.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	client := conn.RemoteAddr().String()
	reader := resp.NewReader(conn)
	writer := resp.NewWriter(conn)

	streams := make(chan *Stream, maxPendingStreams)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.forward(ctx, writer, streams, client)
	}()

	for {
		frame, err := reader.ReadFrame()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.logger.Info().Str("client", client).Msg("client connection closed")
			case ctx.Err() != nil:
				s.logger.Info().Str("client", client).Msg("closing client connection on shutdown")
			default:
				s.logger.Error().Err(err).Str("client", client).Msg("error reading from client")
			}
			break
		}

		if err := pipeline.Ready(); err != nil {
			// Not-ready is terminal for the pipeline instance, so it is
			// terminal for the connection too.
			s.logger.Error().Err(err).Str("client", client).Msg("pipeline not ready, closing connection")
			break
		}

		stream, err := pipeline.Submit(ctx, frame)
		if err != nil {
			s.logger.Error().Err(err).Str("client", client).Msg("failed to submit request")
			continue
		}

		enqueued := false
		select {
		case streams <- stream:
			enqueued = true
		case <-ctx.Done():
		}
		if !enqueued {
			stream.Close()
			break
		}
	}

	// Close the pipeline before waiting on the forwarder: the final
	// response stream only ends once the backend worker exits.
	if c, ok := pipeline.(io.Closer); ok {
		c.Close()
	}
	close(streams)
	wg.Wait()
	s.logger.Info().Str("client", client).Msg("connection closed")
}

// forward owns the client write half. It drains each response stream fully,
// in the order the streams were enqueued, before taking the next one. This
// makes client-visible ordering equal request submission order even though
// each response may itself be a multi-frame stream produced asynchronously.
func (s *Server) forward(ctx context.Context, writer *resp.Writer, streams <-chan *Stream, client string) {
	for stream := range streams {
		for {
			frame, err := stream.Next(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				s.logger.Error().Err(err).Str("client", client).Msg("abandoning response stream mid-drain")
				stream.Close()
				s.discard(streams)
				return
			}
			if err := writer.WriteFrame(frame); err != nil {
				s.logger.Error().Err(err).Str("client", client).Msg("failed to send response to client")
				stream.Close()
				s.discard(streams)
				return
			}
		}
	}
}

// discard abandons any remaining enqueued streams without writing, so their
// producers do not stall after the client write half has failed.
func (s *Server) discard(streams <-chan *Stream) {
	for stream := range streams {
		stream.Close()
	}
}

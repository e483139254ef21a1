// Package proxy implements the connection-multiplexing core of cabbage.
//
// The package is organized around one capability contract, [Service]: a
// processing stage that accepts a request frame and asynchronously yields a
// [Stream] of response frames. [Backend] implements Service over a single
// physical connection to the target server. [Middleware] composes additional
// behavior around any Service; [NewLogMiddleware] is the one middleware
// shipped here. [Server] accepts client connections and runs the
// per-connection duplex loop that ties the pieces together.
//
// Each mutable piece of state is owned by exactly one goroutine: the backend
// worker owns the target socket and the current delivery channel, the
// per-connection forwarder owns the client write half, and the read loop owns
// the client read half. Coordination happens over bounded channels, never
// locks.
package proxy

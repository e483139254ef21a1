// Package resp implements the RESP2 wire protocol used by Redis-compatible
// servers.
//
// The package converts between byte streams and [Frame] values:
//
//   - [Reader] decodes frames from an io.Reader
//   - [Writer] encodes frames onto an io.Writer
//   - [Frame] is one decoded protocol message
//
// Only RESP2 is supported: simple strings, errors, integers, bulk strings
// (including null) and arrays (including null and nested). Inline commands
// are accepted on the read side and decoded as arrays of bulk strings.
//
// Frames are plain values. Once constructed they should be treated as
// immutable; components that need to keep a frame around copy it rather than
// mutating it in place.
package resp

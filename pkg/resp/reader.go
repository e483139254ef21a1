package resp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrProtocol is returned (wrapped) for any malformed input: bad type
// prefixes, broken line terminators, or out-of-range lengths.
var ErrProtocol = errors.New("resp: protocol error")

// maxBulkLength caps single bulk string payloads, matching the server-side
// proto-max-bulk-len default of 512MB.
const maxBulkLength = 512 << 20

// maxArrayDepth caps array nesting. RESP2 replies nest at most a few levels
// deep; the cap keeps a stream of repeated array headers from growing the
// decode stack without bound.
const maxArrayDepth = 32

// Reader decodes RESP2 frames from a byte stream.
//
// Reader buffers internally; do not read from the underlying stream while a
// Reader is attached to it. Reader is not safe for concurrent use.
type Reader struct {
	br *bufio.Reader
}

// NewReader returns a Reader decoding from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadFrame decodes and returns the next frame. It returns io.EOF when the
// stream ends cleanly on a frame boundary and io.ErrUnexpectedEOF when it
// ends mid-frame.
func (r *Reader) ReadFrame() (Frame, error) {
	prefix, err := r.br.ReadByte()
	if err != nil {
		return Frame{}, err
	}

	switch Kind(prefix) {
	case SimpleString, Error, Integer, BulkString, Array:
		return r.readTyped(Kind(prefix), 0)
	default:
		// No known prefix: treat the line as an inline command.
		if err := r.br.UnreadByte(); err != nil {
			return Frame{}, err
		}
		return r.readInline()
	}
}

func (r *Reader) readTyped(kind Kind, depth int) (Frame, error) {
	line, err := r.readLine()
	if err != nil {
		return Frame{}, err
	}

	switch kind {
	case SimpleString:
		return Frame{Kind: SimpleString, Str: line}, nil
	case Error:
		return Frame{Kind: Error, Str: line}, nil
	case Integer:
		n, err := strconv.ParseInt(string(line), 10, 64)
		if err != nil {
			return Frame{}, fmt.Errorf("%w: bad integer %q", ErrProtocol, line)
		}
		return Frame{Kind: Integer, Int: n}, nil
	case BulkString:
		return r.readBulk(line)
	case Array:
		return r.readArray(line, depth)
	}
	return Frame{}, fmt.Errorf("%w: unknown type prefix %q", ErrProtocol, byte(kind))
}

func (r *Reader) readBulk(header []byte) (Frame, error) {
	n, err := strconv.ParseInt(string(header), 10, 64)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: bad bulk length %q", ErrProtocol, header)
	}
	if n == -1 {
		return NullBulkString(), nil
	}
	if n < 0 || n > maxBulkLength {
		return Frame{}, fmt.Errorf("%w: bulk length %d out of range", ErrProtocol, n)
	}

	payload := make([]byte, n+2)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		return Frame{}, unexpectedEOF(err)
	}
	if !bytes.HasSuffix(payload, []byte("\r\n")) {
		return Frame{}, fmt.Errorf("%w: bulk string missing CRLF terminator", ErrProtocol)
	}
	return Frame{Kind: BulkString, Str: payload[:n]}, nil
}

func (r *Reader) readArray(header []byte, depth int) (Frame, error) {
	if depth >= maxArrayDepth {
		return Frame{}, fmt.Errorf("%w: array nesting exceeds %d levels", ErrProtocol, maxArrayDepth)
	}
	n, err := strconv.ParseInt(string(header), 10, 64)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: bad array length %q", ErrProtocol, header)
	}
	if n == -1 {
		return NullArray(), nil
	}
	if n < 0 {
		return Frame{}, fmt.Errorf("%w: array length %d out of range", ErrProtocol, n)
	}

	items := make([]Frame, 0, n)
	for i := int64(0); i < n; i++ {
		prefix, err := r.br.ReadByte()
		if err != nil {
			return Frame{}, unexpectedEOF(err)
		}
		switch Kind(prefix) {
		case SimpleString, Error, Integer, BulkString, Array:
			item, err := r.readTyped(Kind(prefix), depth+1)
			if err != nil {
				return Frame{}, err
			}
			items = append(items, item)
		default:
			return Frame{}, fmt.Errorf("%w: unknown type prefix %q in array", ErrProtocol, prefix)
		}
	}
	return NewArray(items...), nil
}

// readInline decodes an inline command (a bare space-separated line) as an
// array of bulk strings, the same shape a standard client request takes.
func (r *Reader) readInline() (Frame, error) {
	line, err := r.readLine()
	if err != nil {
		return Frame{}, err
	}
	fields := bytes.Fields(line)
	if len(fields) == 0 {
		return Frame{}, fmt.Errorf("%w: empty inline command", ErrProtocol)
	}
	items := make([]Frame, len(fields))
	for i, f := range fields {
		items[i] = NewBulkBytes(f)
	}
	return NewArray(items...), nil
}

// readLine reads up to and including CRLF and returns the line without the
// terminator. A bare LF is rejected.
func (r *Reader) readLine() ([]byte, error) {
	line, err := r.br.ReadBytes('\n')
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, fmt.Errorf("%w: line missing CRLF terminator", ErrProtocol)
	}
	return line[:len(line)-2], nil
}

// unexpectedEOF converts a clean EOF seen mid-frame into io.ErrUnexpectedEOF
// so callers can distinguish truncation from an orderly stream end.
func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

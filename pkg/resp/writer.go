package resp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Writer encodes RESP2 frames onto a byte stream.
//
// WriteFrame flushes after each frame so that a proxied message reaches the
// wire as soon as it is written. Writer is not safe for concurrent use.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter returns a Writer encoding onto w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// WriteFrame encodes f and flushes the underlying buffer.
func (w *Writer) WriteFrame(f Frame) error {
	if err := w.encode(f); err != nil {
		return err
	}
	return w.bw.Flush()
}

func (w *Writer) encode(f Frame) error {
	if f.Null {
		switch f.Kind {
		case BulkString:
			_, err := w.bw.WriteString("$-1\r\n")
			return err
		case Array:
			_, err := w.bw.WriteString("*-1\r\n")
			return err
		default:
			return fmt.Errorf("%w: %s frame cannot be null", ErrProtocol, f.Kind)
		}
	}

	switch f.Kind {
	case SimpleString, Error:
		w.bw.WriteByte(byte(f.Kind))
		w.bw.Write(f.Str)
		_, err := w.bw.WriteString("\r\n")
		return err
	case Integer:
		w.bw.WriteByte(':')
		w.bw.WriteString(strconv.FormatInt(f.Int, 10))
		_, err := w.bw.WriteString("\r\n")
		return err
	case BulkString:
		w.bw.WriteByte('$')
		w.bw.WriteString(strconv.Itoa(len(f.Str)))
		w.bw.WriteString("\r\n")
		w.bw.Write(f.Str)
		_, err := w.bw.WriteString("\r\n")
		return err
	case Array:
		w.bw.WriteByte('*')
		w.bw.WriteString(strconv.Itoa(len(f.Array)))
		if _, err := w.bw.WriteString("\r\n"); err != nil {
			return err
		}
		for _, item := range f.Array {
			if err := w.encode(item); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: cannot encode frame of kind %s", ErrProtocol, f.Kind)
	}
}

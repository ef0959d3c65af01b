package transfer

import (
	"errors"
	"io"
)

// Pump reads r in ChunkSize pieces and emits one Data event per piece
// until r reports io.EOF. Only the final piece may be shorter than
// ChunkSize. Read failures are tagged with op; a callback failure is
// returned unchanged.
func Pump(r io.Reader, op string, cb Callback) error {
	buf := make([]byte, ChunkSize)
	for {
		n, err := fill(r, buf)
		if n > 0 {
			if cbErr := cb(Data{Bytes: buf[:n]}); cbErr != nil {
				return cbErr
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return nil
		default:
			return &IOError{Op: op, Err: err}
		}
	}
}

// fill reads into buf until it is full or r fails. Unlike io.ReadFull
// it passes the reader's own error through untouched, so a truncated
// body reporting io.ErrUnexpectedEOF is not mistaken for a clean end.
func fill(r io.Reader, buf []byte) (int, error) {
	var n int
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

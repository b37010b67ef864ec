package comm

import (
	"bytes"
	"io"
	"time"
)

// lineBuffer holds bytes read past the end of the previous line
type lineBuffer struct {
	pending []byte
}

func (b *lineBuffer) reset() {
	b.pending = b.pending[:0]
}

// cut pops one complete line, or max bytes, off the front of the buffer
func (b *lineBuffer) cut(max int) ([]byte, bool) {
	end := -1
	if idx := bytes.Index(b.pending, RxTerminator); idx >= 0 {
		end = idx + len(RxTerminator)
	}
	if max > 0 && len(b.pending) >= max && (end < 0 || end > max) {
		end = max
	}
	if end < 0 {
		return nil, false
	}
	return b.take(end), true
}

func (b *lineBuffer) take(n int) []byte {
	line := make([]byte, n)
	copy(line, b.pending[:n])
	b.pending = append(b.pending[:0], b.pending[n:]...)
	return line
}

// readLine reads from r until a line is complete or timeout elapses.
// io.EOF and zero-length reads mean "nothing yet" on serial ports with a
// read timeout, so they only end the call once the deadline has passed.
func (b *lineBuffer) readLine(r io.Reader, max int, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	chunk := make([]byte, 64)
	for {
		if line, ok := b.cut(max); ok {
			return line, nil
		}
		if !time.Now().Before(deadline) {
			return b.take(len(b.pending)), nil
		}
		n, err := r.Read(chunk)
		if n > 0 {
			b.pending = append(b.pending, chunk[:n]...)
			continue
		}
		if err != nil && err != io.EOF {
			return b.take(len(b.pending)), err
		}
		// some readers return immediately with nothing; do not spin
		time.Sleep(time.Millisecond)
	}
}

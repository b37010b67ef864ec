// Package comm provides the transport used to talk to serial motion hardware.
//
// A Channel is a duplex byte stream with a line-oriented read.  The one concrete
// type, Port, wraps any io.ReadWriteCloser produced by a CreationFunc, so the
// same line framing and timeout rules apply whether the bytes travel over a
// tarm/serial port, a go.bug.st/serial port, or a TCP terminal server.
//
// Most usages of this package boil down to:
//  1. build a CreationFunc with SerialConnMaker, BugstConnMaker or TCPConnMaker
//  2. wrap it in a Port with NewPort, giving the read timeout
//  3. Open, then Write commands and ReadLine replies
//  4. Close when done; Close is safe to call more than once
//
// For example:
//
//	p := comm.NewPort("/dev/ttyUSB0", time.Second, comm.SerialConnMaker(comm.SerialConf("/dev/ttyUSB0")))
//	if err := p.Open(); err != nil {
//		return err
//	}
//	defer p.Close()
//	p.Write([]byte("TP\r"))
//	line, err := p.ReadLine(0)
package comm

import (
	"errors"
	"io"
	"net"
	"time"
)

var (
	// RxTerminator terminates every reply line
	RxTerminator = []byte("\r\n")

	// ErrNotConnected is generated when Write or ReadLine is called on a Port
	// that is not open
	ErrNotConnected = errors.New("conn is nil, not connected to remote")
)

// Opener can open ("establish a connection" but in io language)
type Opener interface {
	Open() error
}

// LineReader reads one terminated line.
//
// ReadLine returns once RxTerminator is seen, max bytes are buffered (max <= 0
// means no limit) or the read timeout elapses.  A timeout is not an error: the
// returned line is then partial or empty.  The terminator, when present, is
// included in the returned line.
type LineReader interface {
	ReadLine(max int) ([]byte, error)
}

// Channel can Open, Write, ReadLine and Close
type Channel interface {
	Opener
	io.Writer
	LineReader
	io.Closer
}

// CreationFunc is a function which returns a new "connection" to something
// a closure should be used to encapsulate the variables and functions needed
type CreationFunc func() (io.ReadWriteCloser, error)

// pollInterval bounds each individual Read so the overall line timeout is
// honored to within one interval
const pollInterval = 100 * time.Millisecond

// Port is a Channel over a byte stream made by a CreationFunc.
// It is not concurrent safe; one owner drives it at a time.
type Port struct {
	// Name is used in error messages, usually the device path or address
	Name string

	// Timeout bounds a single ReadLine
	Timeout time.Duration

	maker CreationFunc
	conn  io.ReadWriteCloser
	buf   lineBuffer
}

// NewPort returns a closed Port
func NewPort(name string, timeout time.Duration, maker CreationFunc) *Port {
	return &Port{Name: name, Timeout: timeout, maker: maker}
}

// IsOpen returns true if the port holds a live connection
func (p *Port) IsOpen() bool {
	return p.conn != nil
}

// Open the connection.  Opening an open Port does nothing.
func (p *Port) Open() error {
	if p.conn != nil {
		return nil
	}
	conn, err := retryOpen(p.Name, p.maker)
	if err != nil {
		return err
	}
	p.conn = conn
	p.buf.reset()
	return nil
}

// Close the connection.  Closing a closed or never-opened Port returns nil.
func (p *Port) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	p.buf.reset()
	return err
}

// Write sends b as-is; no terminator is appended
func (p *Port) Write(b []byte) (int, error) {
	if p.conn == nil {
		return 0, ErrNotConnected
	}
	n, err := p.conn.Write(b)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	return n, err
}

// ReadLine implements LineReader
func (p *Port) ReadLine(max int) ([]byte, error) {
	if p.conn == nil {
		return nil, ErrNotConnected
	}
	return p.buf.readLine(deadlineReader{p.conn}, max, p.Timeout)
}

// deadlineReader arms a short read deadline on connections that support one
// (net.Conn) so a silent peer cannot block a Read forever, and reports a
// deadline expiry as "no data yet"
type deadlineReader struct {
	r io.Reader
}

func (d deadlineReader) Read(b []byte) (int, error) {
	if c, ok := d.r.(interface{ SetReadDeadline(time.Time) error }); ok {
		c.SetReadDeadline(time.Now().Add(pollInterval))
	}
	n, err := d.r.Read(b)
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		err = nil
	}
	return n, err
}

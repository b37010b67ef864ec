package comm

import (
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
	bugst "go.bug.st/serial"
)

// SerialConf makes a new serial.Config with 19200 baud, 8N1.  The per-Read
// timeout is kept short; Port.Timeout bounds the whole line.
func SerialConf(addr string) *serial.Config {
	return &serial.Config{
		Name:        addr,
		Baud:        19200,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: pollInterval}
}

// BugstMode makes a go.bug.st/serial mode equivalent to SerialConf
func BugstMode(baud int) *bugst.Mode {
	return &bugst.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit}
}

// SerialConnMaker returns a CreationFunc that opens a tarm/serial port
func SerialConnMaker(conf *serial.Config) CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		return serial.OpenPort(conf)
	}
}

// BugstConnMaker returns a CreationFunc that opens a go.bug.st/serial port.
// Anything the controller sent before the port was opened is discarded.
func BugstConnMaker(name string, mode *bugst.Mode) CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		port, err := bugst.Open(name, mode)
		if err != nil {
			return nil, err
		}
		if err = port.SetReadTimeout(pollInterval); err != nil {
			port.Close()
			return nil, err
		}
		if err = port.ResetInputBuffer(); err != nil {
			port.Close()
			return nil, err
		}
		return port, nil
	}
}

// TCPConnMaker returns a CreationFunc that dials addr, e.g. a serial port
// exposed by a terminal server at 192.168.100.123:2006
func TCPConnMaker(addr string, timeout time.Duration) CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		return net.DialTimeout("tcp", addr, timeout)
	}
}

// retryOpen calls maker with an exponential backoff; USB-serial adapters
// often refuse the first open right after enumeration.  Errors that cannot
// heal by waiting (missing device, refused connection) end the retry at once.
func retryOpen(name string, maker CreationFunc) (io.ReadWriteCloser, error) {
	var conn io.ReadWriteCloser
	op := func() error {
		c, err := maker()
		if err != nil {
			if os.IsNotExist(err) || strings.Contains(strings.ToLower(err.Error()), "refused") {
				return backoff.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err != nil {
		return nil, fmt.Errorf("comm: open %s: %w", name, err)
	}
	return conn, nil
}

package comm_test

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nasa-jpl/m235/comm"
)

// chunkConn replays its chunks one Read at a time, then reports io.EOF like a
// serial port whose read timeout elapsed
type chunkConn struct {
	mu     sync.Mutex
	chunks [][]byte
	wrote  []byte
	closed int
}

func (c *chunkConn) Read(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(b, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if len(c.chunks[0]) == 0 {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func (c *chunkConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wrote = append(c.wrote, b...)
	return len(b), nil
}

func (c *chunkConn) Close() error {
	c.closed++
	return nil
}

func openPort(t *testing.T, conn *chunkConn, timeout time.Duration) *comm.Port {
	t.Helper()
	p := comm.NewPort("test", timeout, func() (io.ReadWriteCloser, error) { return conn, nil })
	if err := p.Open(); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestReadLineJoinsSplitChunks(t *testing.T) {
	conn := &chunkConn{chunks: [][]byte{[]byte("TP:"), []byte("102"), []byte("40\r"), []byte("\n")}}
	p := openPort(t, conn, time.Second)
	line, err := p.ReadLine(0)
	if err != nil {
		t.Fatal(err)
	}
	if string(line) != "TP:10240\r\n" {
		t.Errorf("expected %q got %q", "TP:10240\r\n", line)
	}
}

func TestReadLineKeepsBytesPastTerminator(t *testing.T) {
	conn := &chunkConn{chunks: [][]byte{[]byte("GP:160\r\nGI:10\r\n")}}
	p := openPort(t, conn, time.Second)
	first, _ := p.ReadLine(0)
	second, _ := p.ReadLine(0)
	if string(first) != "GP:160\r\n" || string(second) != "GI:10\r\n" {
		t.Errorf("expected two lines, got %q and %q", first, second)
	}
}

func TestReadLineTimeoutReturnsEmpty(t *testing.T) {
	conn := &chunkConn{}
	timeout := 50 * time.Millisecond
	p := openPort(t, conn, timeout)
	start := time.Now()
	line, err := p.ReadLine(0)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("expected a timeout to not be an error, got %v", err)
	}
	if len(line) != 0 {
		t.Errorf("expected empty line, got %q", line)
	}
	if elapsed < timeout || elapsed > 10*timeout {
		t.Errorf("expected ReadLine to return shortly after %v, took %v", timeout, elapsed)
	}
}

func TestReadLineTimeoutReturnsPartial(t *testing.T) {
	conn := &chunkConn{chunks: [][]byte{[]byte("TE:12")}}
	p := openPort(t, conn, 20*time.Millisecond)
	line, err := p.ReadLine(0)
	if err != nil {
		t.Fatal(err)
	}
	if string(line) != "TE:12" {
		t.Errorf("expected partial line %q got %q", "TE:12", line)
	}
}

func TestReadLineHonorsMax(t *testing.T) {
	conn := &chunkConn{chunks: [][]byte{[]byte("0123456789\r\n")}}
	p := openPort(t, conn, time.Second)
	line, _ := p.ReadLine(4)
	if string(line) != "0123" {
		t.Errorf("expected %q got %q", "0123", line)
	}
	rest, _ := p.ReadLine(0)
	if string(rest) != "456789\r\n" {
		t.Errorf("expected remainder %q got %q", "456789\r\n", rest)
	}
}

func TestWriteAndReadBeforeOpen(t *testing.T) {
	p := comm.NewPort("never", time.Second, nil)
	if _, err := p.Write([]byte("MN\r")); !errors.Is(err, comm.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected from Write, got %v", err)
	}
	if _, err := p.ReadLine(0); !errors.Is(err, comm.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected from ReadLine, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	never := comm.NewPort("never", time.Second, nil)
	if err := never.Close(); err != nil {
		t.Errorf("closing a never-opened port should be nil, got %v", err)
	}
	conn := &chunkConn{}
	p := openPort(t, conn, time.Second)
	p.Close()
	p.Close()
	if conn.closed != 1 {
		t.Errorf("expected underlying conn to be closed once, got %d", conn.closed)
	}
	if p.IsOpen() {
		t.Error("expected port to report closed")
	}
}

func TestWritePassesBytesThrough(t *testing.T) {
	conn := &chunkConn{}
	p := openPort(t, conn, time.Second)
	frame := []byte{1, 48, 13}
	n, err := p.Write(frame)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 bytes written, got %d, %v", n, err)
	}
	if string(conn.wrote) != string(frame) {
		t.Errorf("expected %v got %v", frame, conn.wrote)
	}
}

func TestOpenMissingDeviceFailsFast(t *testing.T) {
	conf := comm.SerialConf("/dev/this-port-does-not-exist")
	p := comm.NewPort(conf.Name, time.Second, comm.SerialConnMaker(conf))
	start := time.Now()
	err := p.Open()
	if err == nil {
		p.Close()
		t.Fatal("expected an error opening a missing device")
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("expected a missing device to not be retried, took %v", time.Since(start))
	}
}

func TestTCPPortRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		cmd, err := bufio.NewReader(conn).ReadString('\r')
		if err != nil {
			return
		}
		conn.Write([]byte(cmd[:2] + ":2048\r\n"))
		// hold the connection open so the client sees silence, not EOF
		time.Sleep(200 * time.Millisecond)
	}()
	addr := ln.Addr().String()
	p := comm.NewPort(addr, time.Second, comm.TCPConnMaker(addr, time.Second))
	if err := p.Open(); err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if _, err := p.Write([]byte("TP\r")); err != nil {
		t.Fatal(err)
	}
	line, err := p.ReadLine(0)
	if err != nil {
		t.Fatal(err)
	}
	if string(line) != "TP:2048\r\n" {
		t.Errorf("expected %q got %q", "TP:2048\r\n", line)
	}
}

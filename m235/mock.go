package m235

import (
	"bytes"
	"strconv"
	"strings"
	"sync"

	"github.com/nasa-jpl/m235/comm"
)

// mockOriginPolls is how many velocity polls a mock origin search stays in motion
const mockOriginPolls = 3

// MockChannel is a comm.Channel that behaves like a controller.  Moves
// complete instantly, every query is answered with its mnemonic and a colon
// as the echo prefix, and reads never wait: an unanswered ReadLine returns
// an empty line at once.
type MockChannel struct {
	mu sync.Mutex

	// Received holds every command written, without terminators
	Received []string

	open    bool
	replies [][]byte
	pending []byte

	motorOn     bool
	brakes      bool
	limitSwitch bool
	pos         int
	target      int
	pGain       int
	iGain       int
	dGain       int
	iLimit      int
	maxFollow   int
	velocity    int
	accel       int
	seeking     int
}

var _ comm.Channel = (*MockChannel)(nil)

// NewMockChannel returns a closed MockChannel with the motor off at position 0
func NewMockChannel() *MockChannel {
	return &MockChannel{
		velocity: 20000,
		accel:    MinAcceleration}
}

// Open implements comm.Opener
func (m *MockChannel) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

// Close implements io.Closer
func (m *MockChannel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	m.replies = nil
	m.pending = nil
	return nil
}

// Write accepts one or more CR-terminated commands
func (m *MockChannel) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return 0, comm.ErrNotConnected
	}
	m.pending = append(m.pending, b...)
	for {
		idx := bytes.IndexByte(m.pending, TxTerminator)
		if idx < 0 {
			break
		}
		cmd := string(m.pending[:idx])
		m.pending = m.pending[idx+1:]
		m.Received = append(m.Received, cmd)
		m.handle(cmd)
	}
	return len(b), nil
}

// ReadLine implements comm.LineReader
func (m *MockChannel) ReadLine(max int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return nil, comm.ErrNotConnected
	}
	if len(m.replies) == 0 {
		return []byte{}, nil
	}
	line := m.replies[0]
	m.replies = m.replies[1:]
	if max > 0 && len(line) > max {
		line = line[:max]
	}
	return line, nil
}

// Position returns the simulated position, in counts
func (m *MockChannel) Position() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

// MotorOn returns true if the simulated motor is on
func (m *MockChannel) MotorOn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.motorOn
}

// Brakes returns true if the simulated brake is engaged
func (m *MockChannel) Brakes() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.brakes
}

func (m *MockChannel) reply(mnemonic string, v int) {
	m.replies = append(m.replies, []byte(mnemonic+":"+strconv.Itoa(v)+"\r\n"))
}

func (m *MockChannel) moveTo(target int) {
	if !m.motorOn || m.brakes {
		return
	}
	m.target = target
	m.pos = target
}

// handle must be called with the lock held
func (m *MockChannel) handle(cmd string) {
	if cmd == string(connectFrame[:2]) {
		m.replies = append(m.replies, []byte("00:M-235.5DD\r\n"))
		return
	}
	if len(cmd) < 2 {
		return
	}
	mnemonic, arg := cmd[:2], cmd[2:]
	n, _ := strconv.Atoi(arg)
	switch mnemonic {
	case cmdMotorOn:
		m.motorOn = true
	case cmdMotorOff:
		m.motorOn = false
	case cmdReset:
		m.motorOn = false
		m.seeking = 0
	case cmdPGain:
		m.pGain = n
	case cmdIGain:
		m.iGain = n
	case cmdDGain:
		m.dGain = n
	case cmdILimit:
		m.iLimit = n
	case cmdMaxFollowErr:
		m.maxFollow = n
	case cmdDefineHome:
		m.pos, m.target = 0, 0
	case cmdVelocity:
		m.velocity = n
	case cmdAcceleration:
		m.accel = n
	case cmdLimitOn:
		m.limitSwitch = true
	case cmdLimitOff:
		m.limitSwitch = false
	case cmdBrakeOn:
		m.brakes = true
	case cmdBrakeOff:
		m.brakes = false
	case cmdAbort:
		m.target = m.pos
		m.seeking = 0
	case cmdGetPGain:
		m.reply(mnemonic, m.pGain)
	case cmdGetIGain:
		m.reply(mnemonic, m.iGain)
	case cmdGetDGain:
		m.reply(mnemonic, m.dGain)
	case cmdGetILimit:
		m.reply(mnemonic, m.iLimit)
	case cmdTellError:
		m.reply(mnemonic, m.target-m.pos)
	case cmdTellPos:
		m.reply(mnemonic, m.pos)
	case cmdTellProgVel:
		m.reply(mnemonic, m.velocity)
	case cmdTellL:
		m.reply(mnemonic, m.accel)
	case cmdTellVel:
		v := 0
		if m.seeking > 0 {
			m.seeking--
			v = m.velocity
		}
		m.reply(mnemonic, v)
	case cmdMoveAbs:
		m.moveTo(n)
	case cmdMoveRel:
		m.moveTo(m.pos + n)
	case cmdGoHome:
		m.moveTo(0)
	case cmdFindEdge:
		if m.motorOn && !m.brakes {
			m.seeking = mockOriginPolls
			m.pos, m.target = 0, 0
		}
	case cmdWaitStop:
		// WS<ms>,TE
		if strings.HasSuffix(arg, ","+cmdTellError) {
			m.reply(cmdTellError, m.target-m.pos)
		}
	}
}

// Package m235 drives a PI M-235 linear actuator through its DC motor
// controller's ASCII command set.
//
// Commands are two-letter mnemonics with an optional decimal argument, ended
// by a carriage return, e.g. "SV40960\r".  Queries are answered with one line
// ended by "\r\n" whose first three characters echo the query; the rest is a
// decimal integer.  Nothing about the device is cached here: every getter
// goes to the controller.
//
// An Actuator is not safe for concurrent use.  It owns its channel from New
// until Close.
package m235

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nasa-jpl/m235/comm"
	"github.com/nasa-jpl/m235/util"
)

const (
	// CountsPerMM is the encoder resolution of the M-235.5DD
	CountsPerMM = 2048.

	// MaxVelocity is the largest velocity the controller accepts, counts per second
	MaxVelocity = 61440

	// MinAcceleration is the smallest acceleration the controller accepts
	MinAcceleration = 200

	// MaxAcceleration is the largest acceleration the controller accepts
	MaxAcceleration = 2000000

	// DefaultTimeout is the read timeout used by NewSerial
	DefaultTimeout = 1 * time.Second
)

// connectFrame addresses controller 0: SOH, '0', CR
var connectFrame = []byte{1, 48, 13}

// Pacing holds the pauses the controller needs between commands
type Pacing struct {
	// Command is slept after every configuration write
	Command time.Duration

	// Settle is slept around the stop-wait handshake and after stops and brakes
	Settle time.Duration

	// Poll is slept between velocity polls while finding the origin
	Poll time.Duration
}

// DefaultPacing matches the controller's documented minimum spacing
var DefaultPacing = Pacing{
	Command: 5 * time.Millisecond,
	Settle:  100 * time.Millisecond,
	Poll:    50 * time.Millisecond}

// Actuator is the protocol engine for one controller
type Actuator struct {
	// Pacing may be adjusted any time between calls
	Pacing Pacing

	ch    comm.Channel
	log   *zap.Logger
	sleep func(time.Duration)
}

// New opens ch and returns an Actuator that owns it.  If ch cannot be
// opened it is closed again and the error returned.  A nil logger discards
// diagnostics.
func New(ch comm.Channel, logger *zap.Logger) (*Actuator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ch.Open(); err != nil {
		ch.Close()
		return nil, err
	}
	return &Actuator{
		Pacing: DefaultPacing,
		ch:     ch,
		log:    logger,
		sleep:  time.Sleep}, nil
}

// NewSerial opens the serial port at addr with SerialConf and DefaultTimeout
func NewSerial(addr string, logger *zap.Logger) (*Actuator, error) {
	maker := comm.SerialConnMaker(comm.SerialConf(addr))
	return New(comm.NewPort(addr, DefaultTimeout, maker), logger)
}

// NewBugst opens the serial port at addr with the go.bug.st/serial driver
func NewBugst(addr string, logger *zap.Logger) (*Actuator, error) {
	maker := comm.BugstConnMaker(addr, comm.BugstMode(19200))
	return New(comm.NewPort(addr, DefaultTimeout, maker), logger)
}

// Close releases the channel.  It is safe to call more than once.
func (a *Actuator) Close() error {
	return a.ch.Close()
}

func (a *Actuator) pace(d time.Duration) {
	if d > 0 {
		a.sleep(d)
	}
}

// fail reports err on the diagnostic log and returns it
func (a *Actuator) fail(op, cmd string, err error) error {
	a.log.Warn("command failed",
		zap.String("op", op),
		zap.String("cmd", cmd),
		zap.Stringer("kind", KindOf(err)),
		zap.Error(err))
	return err
}

func (a *Actuator) writeRaw(op, label string, b []byte) error {
	a.log.Debug("tx", zap.String("op", op), zap.String("cmd", label))
	n, err := a.ch.Write(b)
	if err == nil && n <= 0 {
		err = fmt.Errorf("%d bytes written", n)
	}
	if err != nil {
		return a.fail(op, label, &WriteFailure{Op: op, Cmd: label, Err: err})
	}
	return nil
}

func (a *Actuator) send(op string, c Command) error {
	return a.writeRaw(op, c.String(), c.Bytes())
}

// configure sends a command that has no reply and observes the command pacing
func (a *Actuator) configure(op string, c Command) error {
	if err := a.send(op, c); err != nil {
		return err
	}
	a.pace(a.Pacing.Command)
	return nil
}

// configureInt validates n as non-negative then configures mnemonic+n
func (a *Actuator) configureInt(op, mnemonic string, n int) error {
	c, err := nonNegative(op, mnemonic, n)
	if err != nil {
		return a.fail(op, mnemonic, err)
	}
	return a.configure(op, c)
}

// readInt reads one reply to c, at most max bytes, and decodes it
func (a *Actuator) readInt(op string, c Command, max int) (int, error) {
	line, err := a.ch.ReadLine(max)
	if err != nil {
		return 0, a.fail(op, c.String(), &NoResponse{Op: op, Cmd: c.String(), Err: err})
	}
	a.log.Debug("rx", zap.String("op", op), zap.ByteString("line", bytes.TrimSpace(line)))
	v, err := ParseReply(line)
	if err == ErrEmptyReply {
		return 0, a.fail(op, c.String(), &NoResponse{Op: op, Cmd: c.String()})
	}
	if err != nil {
		return 0, a.fail(op, c.String(), &ProtocolViolation{Op: op, Cmd: c.String(), Line: string(bytes.TrimSpace(line)), Err: err})
	}
	return v, nil
}

// query sends c and decodes the single-line integer reply
func (a *Actuator) query(op string, c Command) (int, error) {
	if err := a.send(op, c); err != nil {
		return 0, err
	}
	return a.readInt(op, c, 0)
}

// Connect addresses the controller and checks that it answers
func (a *Actuator) Connect() error {
	const op = "connect"
	label := fmt.Sprintf("%v", connectFrame)
	if err := a.writeRaw(op, label, connectFrame); err != nil {
		return err
	}
	defer a.pace(a.Pacing.Command)
	line, err := a.ch.ReadLine(0)
	if err != nil || len(bytes.TrimSpace(line)) == 0 {
		return a.fail(op, label, &NoResponse{Op: op, Cmd: label, Err: err})
	}
	a.log.Info("controller connected", zap.ByteString("reply", bytes.TrimSpace(line)))
	return nil
}

// On turns the motor on
func (a *Actuator) On() error {
	return a.SetMotor(true)
}

// Off turns the motor off
func (a *Actuator) Off() error {
	return a.SetMotor(false)
}

// SetMotor turns the motor on or off
func (a *Actuator) SetMotor(on bool) error {
	if err := a.configure("motor", either(on, cmdMotorOn, cmdMotorOff)); err != nil {
		return err
	}
	a.log.Info("motor switched", zap.Bool("on", on))
	return nil
}

// Reset resets the controller
func (a *Actuator) Reset() error {
	if err := a.configure("reset", bare(cmdReset)); err != nil {
		return err
	}
	a.log.Info("controller reset")
	return nil
}

// SetPGain sets the proportional gain of the servo loop
func (a *Actuator) SetPGain(gain int) error {
	return a.configureInt("set P gain", cmdPGain, gain)
}

// SetIGain sets the integral gain of the servo loop
func (a *Actuator) SetIGain(gain int) error {
	return a.configureInt("set I gain", cmdIGain, gain)
}

// SetDGain sets the derivative gain of the servo loop
func (a *Actuator) SetDGain(gain int) error {
	return a.configureInt("set D gain", cmdDGain, gain)
}

// SetIntegrationLimit sets the integrator windup limit
func (a *Actuator) SetIntegrationLimit(limit int) error {
	return a.configureInt("set integration limit", cmdILimit, limit)
}

// SetMaxFollowingError sets the following error at which the controller
// shuts the motor off
func (a *Actuator) SetMaxFollowingError(counts int) error {
	return a.configureInt("set max following error", cmdMaxFollowErr, counts)
}

// SetHome defines the current position as home (zero)
func (a *Actuator) SetHome() error {
	if err := a.configure("set home", bare(cmdDefineHome)); err != nil {
		return err
	}
	a.log.Info("home defined at current position")
	return nil
}

// SetVelocity sets the programmed velocity in counts per second.
// Values outside [0, MaxVelocity] are saturated, not rejected.
func (a *Actuator) SetVelocity(v int) error {
	return a.configure("set velocity", VelocityCommand(v))
}

// SetAcceleration sets the programmed acceleration.
// Values outside [MinAcceleration, MaxAcceleration] are saturated, not rejected.
func (a *Actuator) SetAcceleration(acc int) error {
	return a.configure("set acceleration", AccelerationCommand(acc))
}

// SetLimitSwitch enables or disables the limit switches
func (a *Actuator) SetLimitSwitch(enabled bool) error {
	return a.configure("set limit switch", either(enabled, cmdLimitOn, cmdLimitOff))
}

// PGain returns the proportional gain
func (a *Actuator) PGain() (int, error) {
	return a.query("get P gain", bare(cmdGetPGain))
}

// IGain returns the integral gain
func (a *Actuator) IGain() (int, error) {
	return a.query("get I gain", bare(cmdGetIGain))
}

// DGain returns the derivative gain
func (a *Actuator) DGain() (int, error) {
	return a.query("get D gain", bare(cmdGetDGain))
}

// IntegrationLimit returns the integrator windup limit
func (a *Actuator) IntegrationLimit() (int, error) {
	return a.query("get integration limit", bare(cmdGetILimit))
}

// CurrentError returns the present position error, in counts
func (a *Actuator) CurrentError() (int, error) {
	return a.query("get current error", bare(cmdTellError))
}

// Pos returns the present position, in counts
func (a *Actuator) Pos() (int, error) {
	return a.query("get current pos", bare(cmdTellPos))
}

// PosMM returns the present position, in millimeters
func (a *Actuator) PosMM() (float64, error) {
	pos, err := a.Pos()
	if err != nil {
		return 0, err
	}
	return CountsToMM(pos), nil
}

// CurrentVelocity returns the velocity measured over window, in counts per second
func (a *Actuator) CurrentVelocity(window time.Duration) (int, error) {
	return a.query("get current vel", withInt(cmdTellVel, util.DurationToMillis(window)))
}

// ProgrammedVelocity returns the velocity set with SetVelocity
func (a *Actuator) ProgrammedVelocity() (int, error) {
	return a.query("get programmed vel", bare(cmdTellProgVel))
}

// ProgrammedAcceleration returns the acceleration set with SetAcceleration
func (a *Actuator) ProgrammedAcceleration() (int, error) {
	return a.query("get programmed acc", bare(cmdTellL))
}

// the three getters below send the same query as ProgrammedAcceleration.
// The controller manual must be consulted before they are given their own.

// FollowingError returns the following error
func (a *Actuator) FollowingError() (int, error) {
	return a.query("get following error", bare(cmdTellL))
}

// TargetPos returns the target position of the current move
func (a *Actuator) TargetPos() (int, error) {
	return a.query("get target pos", bare(cmdTellL))
}

// DynamicTarget returns the instantaneous trajectory target
func (a *Actuator) DynamicTarget() (int, error) {
	return a.query("get dynamic target", bare(cmdTellL))
}

// Raw sends cmd followed by the terminator.  No reply is read, so the
// returned string is always empty; it exists to satisfy ascii.RawCommunicator.
// cmd must be a single command: CR and LF are rejected.
func (a *Actuator) Raw(cmd string) (string, error) {
	const op = "custom command"
	if strings.ContainsAny(cmd, "\r\n") {
		return "", a.fail(op, cmd, &ValidationError{Op: op, Value: strconv.Quote(cmd), Reason: "must not contain CR or LF"})
	}
	return "", a.send(op, Command{Mnemonic: cmd})
}

package m235

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nasa-jpl/m235/util"
)

const (
	// moveWait is the stop-wait budget after a blocking move
	moveWait = 10 * time.Millisecond

	// homeWait is the stop-wait budget after going home
	homeWait = 50 * time.Millisecond

	// originWindow is the velocity measurement window while finding the origin
	originWindow = 500 * time.Millisecond

	// originZeroPolls is how many zero velocity readings in a row mean the
	// origin search has finished
	originZeroPolls = 5

	// waitReplyMax bounds the stop-wait reply, in bytes
	waitReplyMax = 100
)

// MoveAbs moves to target counts.  If blocking, MoveAbs returns once the
// controller reports the motion stopped, along with the following error it
// reported; otherwise the following error is zero.
func (a *Actuator) MoveAbs(target int, blocking bool) (int, error) {
	return a.move("move absolute", withInt(cmdMoveAbs, target), blocking)
}

// MoveRel moves by delta counts; see MoveAbs for blocking
func (a *Actuator) MoveRel(delta int, blocking bool) (int, error) {
	return a.move("move relative", withInt(cmdMoveRel, delta), blocking)
}

// MoveAbsMM is MoveAbs in millimeters
func (a *Actuator) MoveAbsMM(mm float64, blocking bool) (int, error) {
	const op = "move absolute"
	n, err := checkedCounts(op, mm)
	if err != nil {
		return 0, a.fail(op, cmdMoveAbs, err)
	}
	return a.MoveAbs(n, blocking)
}

// MoveRelMM is MoveRel in millimeters
func (a *Actuator) MoveRelMM(mm float64, blocking bool) (int, error) {
	const op = "move relative"
	n, err := checkedCounts(op, mm)
	if err != nil {
		return 0, a.fail(op, cmdMoveRel, err)
	}
	return a.MoveRel(n, blocking)
}

func (a *Actuator) move(op string, c Command, blocking bool) (int, error) {
	if err := a.send(op, c); err != nil {
		return 0, err
	}
	if !blocking {
		return 0, nil
	}
	return a.settleAndWait(moveWait)
}

// settleAndWait brackets the stop-wait handshake with settle pauses
func (a *Actuator) settleAndWait(budget time.Duration) (int, error) {
	a.pace(a.Pacing.Settle)
	ferr, err := a.WaitAfterStop(budget)
	a.pace(a.Pacing.Settle)
	return ferr, err
}

// WaitAfterStop asks the controller to wait for the motion to stop, then
// pause wait, then report the position error, which is returned
func (a *Actuator) WaitAfterStop(wait time.Duration) (int, error) {
	const op = "wait after stop"
	c := Command{Mnemonic: cmdWaitStop, Arg: util.MillisString(wait) + "," + cmdTellError}
	if err := a.send(op, c); err != nil {
		return 0, err
	}
	return a.readInt(op, c, waitReplyMax)
}

// Home moves to the home position and blocks until the controller reports
// the motion stopped, returning the reported following error
func (a *Actuator) Home() (int, error) {
	if err := a.send("go home", bare(cmdGoHome)); err != nil {
		return 0, err
	}
	ferr, err := a.settleAndWait(homeWait)
	if err != nil {
		return 0, err
	}
	a.log.Info("homed", zap.Int("followingError", ferr))
	return ferr, nil
}

// FindOrigin starts an origin search and blocks until the measured velocity
// reads zero five polls in a row.
//
// The search has no deadline of its own: a device that never stops, or never
// answers, keeps FindOrigin polling until ctx is done.  Pass a context with a
// timeout to bound it.  A poll that gets no reply counts as "not stopped";
// any other failure ends the search.
func (a *Actuator) FindOrigin(ctx context.Context) error {
	const op = "find origin"
	if err := a.send(op, Command{Mnemonic: cmdFindEdge, Arg: "1"}); err != nil {
		return err
	}
	a.log.Info("finding origin")
	zeros := 0
	polls := 0
	for zeros < originZeroPolls {
		if err := ctx.Err(); err != nil {
			return a.fail(op, cmdTellVel, fmt.Errorf("m235: %s: abandoned after %d polls: %w", op, polls, err))
		}
		v, err := a.CurrentVelocity(originWindow)
		polls++
		switch {
		case err == nil && v == 0:
			zeros++
		case err == nil, KindOf(err) == KindNoResponse:
			zeros = 0
		default:
			return err
		}
		a.pace(a.Pacing.Poll)
	}
	a.log.Info("found origin", zap.Int("polls", polls))
	a.pace(a.Pacing.Settle)
	return nil
}

// HardStop aborts motion immediately.  It does not confirm the stop.
func (a *Actuator) HardStop() error {
	return a.sendAndSettle("hard stop", bare(cmdAbort))
}

// SoftStop decelerates to a stop.  It does not confirm the stop.
func (a *Actuator) SoftStop() error {
	return a.sendAndSettle("soft stop", Command{Mnemonic: cmdAbort, Arg: "1"})
}

// SetBrakes engages (true) or releases (false) the brake
func (a *Actuator) SetBrakes(on bool) error {
	return a.sendAndSettle("brakes", either(on, cmdBrakeOn, cmdBrakeOff))
}

// BrakesOn engages the brake
func (a *Actuator) BrakesOn() error {
	return a.SetBrakes(true)
}

// BrakesOff releases the brake
func (a *Actuator) BrakesOff() error {
	return a.SetBrakes(false)
}

func (a *Actuator) sendAndSettle(op string, c Command) error {
	if err := a.send(op, c); err != nil {
		return err
	}
	a.pace(a.Pacing.Settle)
	return nil
}

// StartupParams are applied in order by Initialize
type StartupParams struct {
	PGain            int  `koanf:"pgain" yaml:"pgain"`
	IGain            int  `koanf:"igain" yaml:"igain"`
	DGain            int  `koanf:"dgain" yaml:"dgain"`
	IntegrationLimit int  `koanf:"ilimit" yaml:"ilimit"`
	Velocity         int  `koanf:"velocity" yaml:"velocity"`
	Acceleration     int  `koanf:"acceleration" yaml:"acceleration"`
	Home             bool `koanf:"home" yaml:"home"`
}

// Initialize connects, turns the motor on, loads the servo gains and
// trajectory, and optionally homes.  It stops at the first failure.
func (a *Actuator) Initialize(p StartupParams) error {
	steps := []func() error{
		a.Connect,
		a.On,
		func() error { return a.SetPGain(p.PGain) },
		func() error { return a.SetIGain(p.IGain) },
		func() error { return a.SetDGain(p.DGain) },
		func() error { return a.SetIntegrationLimit(p.IntegrationLimit) },
		func() error { return a.SetVelocity(p.Velocity) },
		func() error { return a.SetAcceleration(p.Acceleration) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	if p.Home {
		_, err := a.Home()
		return err
	}
	return nil
}

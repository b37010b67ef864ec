package m235

import (
	"strconv"

	"github.com/nasa-jpl/m235/util"
)

// TxTerminator ends every command
const TxTerminator = '\r'

// two-letter mnemonics of the controller firmware
const (
	cmdMotorOn      = "MN"
	cmdMotorOff     = "MF"
	cmdReset        = "RT"
	cmdPGain        = "DP"
	cmdIGain        = "DI"
	cmdDGain        = "DD"
	cmdILimit       = "DL"
	cmdDefineHome   = "DH"
	cmdVelocity     = "SV"
	cmdAcceleration = "SA"
	cmdLimitOn      = "LN"
	cmdLimitOff     = "LF"
	cmdMaxFollowErr = "SM"
	cmdGetPGain     = "GP"
	cmdGetIGain     = "GI"
	cmdGetDGain     = "GD"
	cmdGetILimit    = "GL"
	cmdTellError    = "TE"
	cmdTellPos      = "TP"
	cmdTellVel      = "TV"
	cmdTellProgVel  = "TY"
	cmdTellL        = "TL" // answers programmed acceleration; also used for following error and targets
	cmdMoveAbs      = "MA"
	cmdMoveRel      = "MR"
	cmdGoHome       = "GH"
	cmdFindEdge     = "FE"
	cmdWaitStop     = "WS"
	cmdAbort        = "AB"
	cmdBrakeOn      = "BN"
	cmdBrakeOff     = "BF"
)

// Command is a mnemonic and an optional argument, e.g. {"SV", "40960"}
type Command struct {
	Mnemonic string
	Arg      string
}

// String returns the command as sent, without the terminator
func (c Command) String() string {
	return c.Mnemonic + c.Arg
}

// Bytes returns the command as sent on the wire, terminated
func (c Command) Bytes() []byte {
	return append([]byte(c.String()), TxTerminator)
}

func bare(mnemonic string) Command {
	return Command{Mnemonic: mnemonic}
}

func withInt(mnemonic string, n int) Command {
	return Command{Mnemonic: mnemonic, Arg: strconv.Itoa(n)}
}

func either(b bool, on, off string) Command {
	if b {
		return bare(on)
	}
	return bare(off)
}

// VelocityCommand encodes a set-velocity command, saturating v to [0, MaxVelocity]
func VelocityCommand(v int) Command {
	return withInt(cmdVelocity, util.ClampInt(v, 0, MaxVelocity))
}

// AccelerationCommand encodes a set-acceleration command, saturating a to
// [MinAcceleration, MaxAcceleration]
func AccelerationCommand(a int) Command {
	return withInt(cmdAcceleration, util.ClampInt(a, MinAcceleration, MaxAcceleration))
}

// nonNegative encodes mnemonic+n, or returns a ValidationError if n < 0
func nonNegative(op, mnemonic string, n int) (Command, error) {
	if n < 0 {
		return Command{}, &ValidationError{Op: op, Value: n, Reason: "must not be negative"}
	}
	return withInt(mnemonic, n), nil
}

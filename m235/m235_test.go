package m235

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nasa-jpl/m235/comm"
)

// scripted is a comm.Channel that records writes and replays canned lines
type scripted struct {
	opened   bool
	closed   int
	openErr  error
	readErr  error
	writeN   int // if nonzero, Write reports this many bytes
	writeErr error
	writes   []string
	replies  []string
	repeat   string // if set, replayed once replies run out
	maxes    []int
}

func (s *scripted) Open() error {
	if s.openErr != nil {
		return s.openErr
	}
	s.opened = true
	return nil
}

func (s *scripted) Close() error {
	s.closed++
	return nil
}

func (s *scripted) Write(b []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.writes = append(s.writes, string(b))
	if s.writeN != 0 {
		return s.writeN, nil
	}
	return len(b), nil
}

func (s *scripted) ReadLine(max int) ([]byte, error) {
	s.maxes = append(s.maxes, max)
	if s.readErr != nil {
		return nil, s.readErr
	}
	if len(s.replies) == 0 {
		return []byte(s.repeat), nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return []byte(r), nil
}

var _ comm.Channel = (*scripted)(nil)

func newTestActuator(t *testing.T, replies ...string) (*Actuator, *scripted, *[]time.Duration) {
	t.Helper()
	ch := &scripted{replies: replies}
	a, err := New(ch, nil)
	if err != nil {
		t.Fatal(err)
	}
	slept := []time.Duration{}
	a.sleep = func(d time.Duration) { slept = append(slept, d) }
	return a, ch, &slept
}

func expectWrites(t *testing.T, ch *scripted, want ...string) {
	t.Helper()
	if len(ch.writes) != len(want) {
		t.Fatalf("expected writes %q got %q", want, ch.writes)
	}
	for i := range want {
		if ch.writes[i] != want[i] {
			t.Errorf("write %d: expected %q got %q", i, want[i], ch.writes[i])
		}
	}
}

func TestNewOpensChannel(t *testing.T) {
	_, ch, _ := newTestActuator(t)
	if !ch.opened {
		t.Error("expected New to open the channel")
	}
}

func TestNewClosesOnOpenFailure(t *testing.T) {
	ch := &scripted{openErr: errors.New("no such port")}
	a, err := New(ch, nil)
	if err == nil || a != nil {
		t.Fatalf("expected open failure, got %v, %v", a, err)
	}
	if ch.closed != 1 {
		t.Errorf("expected channel closed once, got %d", ch.closed)
	}
}

func TestVelocityClamp(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{70000, "SV61440\r"},
		{61440, "SV61440\r"},
		{40960, "SV40960\r"},
		{0, "SV0\r"},
		{-5, "SV0\r"},
	}
	for _, c := range cases {
		a, ch, _ := newTestActuator(t)
		if err := a.SetVelocity(c.in); err != nil {
			t.Fatal(err)
		}
		expectWrites(t, ch, c.want)
	}
}

func TestAccelerationClamp(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{50, "SA200\r"},
		{200, "SA200\r"},
		{10000, "SA10000\r"},
		{3000000, "SA2000000\r"},
	}
	for _, c := range cases {
		a, ch, _ := newTestActuator(t)
		if err := a.SetAcceleration(c.in); err != nil {
			t.Fatal(err)
		}
		expectWrites(t, ch, c.want)
	}
}

func TestNegativeSettersRejectedWithoutIO(t *testing.T) {
	a, ch, slept := newTestActuator(t)
	setters := map[string]func(int) error{
		"P":         a.SetPGain,
		"I":         a.SetIGain,
		"D":         a.SetDGain,
		"ilimit":    a.SetIntegrationLimit,
		"followErr": a.SetMaxFollowingError,
	}
	for name, set := range setters {
		err := set(-1)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: expected ValidationError got %v", name, err)
			continue
		}
		if verr.Value != -1 {
			t.Errorf("%s: expected value -1 got %v", name, verr.Value)
		}
	}
	if len(ch.writes) != 0 {
		t.Errorf("expected no writes got %q", ch.writes)
	}
	if len(*slept) != 0 {
		t.Errorf("expected no pacing got %v", *slept)
	}
}

func TestSettersEncodeAndPace(t *testing.T) {
	a, ch, slept := newTestActuator(t)
	steps := []func() error{
		func() error { return a.SetPGain(120) },
		func() error { return a.SetIGain(0) },
		func() error { return a.SetDGain(700) },
		func() error { return a.SetIntegrationLimit(2000) },
		func() error { return a.SetMaxFollowingError(4096) },
		a.SetHome,
		func() error { return a.SetLimitSwitch(true) },
		func() error { return a.SetLimitSwitch(false) },
		a.On,
		a.Off,
		a.Reset,
	}
	for _, s := range steps {
		if err := s(); err != nil {
			t.Fatal(err)
		}
	}
	expectWrites(t, ch, "DP120\r", "DI0\r", "DD700\r", "DL2000\r", "SM4096\r",
		"DH\r", "LN\r", "LF\r", "MN\r", "MF\r", "RT\r")
	if len(*slept) != len(steps) {
		t.Fatalf("expected %d pauses got %d", len(steps), len(*slept))
	}
	for _, d := range *slept {
		if d != DefaultPacing.Command {
			t.Errorf("expected command pacing %v got %v", DefaultPacing.Command, d)
		}
	}
}

func TestGettersParseAfterPrefix(t *testing.T) {
	getters := map[string]struct {
		get func(*Actuator) (int, error)
		cmd string
	}{
		"PGain":                  {(*Actuator).PGain, "GP\r"},
		"IGain":                  {(*Actuator).IGain, "GI\r"},
		"DGain":                  {(*Actuator).DGain, "GD\r"},
		"IntegrationLimit":       {(*Actuator).IntegrationLimit, "GL\r"},
		"CurrentError":           {(*Actuator).CurrentError, "TE\r"},
		"Pos":                    {(*Actuator).Pos, "TP\r"},
		"ProgrammedVelocity":     {(*Actuator).ProgrammedVelocity, "TY\r"},
		"ProgrammedAcceleration": {(*Actuator).ProgrammedAcceleration, "TL\r"},
		"FollowingError":         {(*Actuator).FollowingError, "TL\r"},
		"TargetPos":              {(*Actuator).TargetPos, "TL\r"},
		"DynamicTarget":          {(*Actuator).DynamicTarget, "TL\r"},
	}
	for name, g := range getters {
		a, ch, slept := newTestActuator(t, "xyz123\r\n")
		v, err := g.get(a)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if v != 123 {
			t.Errorf("%s: expected 123 got %d", name, v)
		}
		expectWrites(t, ch, g.cmd)
		if len(*slept) != 0 {
			t.Errorf("%s: expected getters unpaced, got %v", name, *slept)
		}
	}
}

func TestCurrentVelocityWindow(t *testing.T) {
	a, ch, _ := newTestActuator(t, "TV:-250\r\n")
	v, err := a.CurrentVelocity(500 * time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if v != -250 {
		t.Errorf("expected -250 got %d", v)
	}
	expectWrites(t, ch, "TV500\r")
}

func TestPosMM(t *testing.T) {
	a, _, _ := newTestActuator(t, "TP:10240\r\n")
	mm, err := a.PosMM()
	if err != nil {
		t.Fatal(err)
	}
	if mm != 5.0 {
		t.Errorf("expected 5.0 got %f", mm)
	}
}

func TestEmptyReplyIsNoResponse(t *testing.T) {
	a, _, _ := newTestActuator(t)
	_, err := a.Pos()
	if KindOf(err) != KindNoResponse {
		t.Errorf("expected no response got %v (%v)", KindOf(err), err)
	}
}

func TestReadErrorIsNoResponse(t *testing.T) {
	a, ch, _ := newTestActuator(t)
	ch.readErr = comm.ErrNotConnected
	_, err := a.Pos()
	if KindOf(err) != KindNoResponse {
		t.Errorf("expected no response got %v", err)
	}
	if !errors.Is(err, comm.ErrNotConnected) {
		t.Errorf("expected wrapped ErrNotConnected, got %v", err)
	}
}

func TestGarbageIsProtocolViolation(t *testing.T) {
	for _, line := range []string{"TP:abc\r\n", "TP\r\n", "TP:12x\r\n"} {
		a, _, _ := newTestActuator(t, line)
		_, err := a.Pos()
		var perr *ProtocolViolation
		if !errors.As(err, &perr) {
			t.Errorf("%q: expected ProtocolViolation got %v", line, err)
		}
	}
}

func TestWriteFailure(t *testing.T) {
	a, ch, slept := newTestActuator(t)
	ch.writeErr = errors.New("port unplugged")
	err := a.SetPGain(10)
	if KindOf(err) != KindWrite {
		t.Errorf("expected write failure got %v", err)
	}
	if len(*slept) != 0 {
		t.Errorf("expected no pacing after a failed write, got %v", *slept)
	}
}

func TestZeroByteWriteIsFailure(t *testing.T) {
	a, ch, _ := newTestActuator(t)
	ch.writeN = -1
	if err := a.On(); KindOf(err) != KindWrite {
		t.Errorf("expected write failure got %v", err)
	}
}

func TestConnect(t *testing.T) {
	a, ch, slept := newTestActuator(t, "00:M-235.5DD\r\n")
	if err := a.Connect(); err != nil {
		t.Fatal(err)
	}
	expectWrites(t, ch, string([]byte{1, '0', '\r'}))
	if len(*slept) != 1 || (*slept)[0] != DefaultPacing.Command {
		t.Errorf("expected one command pause got %v", *slept)
	}
}

func TestConnectSilent(t *testing.T) {
	a, _, _ := newTestActuator(t)
	if err := a.Connect(); KindOf(err) != KindNoResponse {
		t.Errorf("expected no response got %v", err)
	}
}

func TestRawSendsOnly(t *testing.T) {
	a, ch, _ := newTestActuator(t, "should stay unread\r\n")
	s, err := a.Raw("VE")
	if err != nil {
		t.Fatal(err)
	}
	if s != "" {
		t.Errorf("expected empty reply got %q", s)
	}
	expectWrites(t, ch, "VE\r")
	if len(ch.maxes) != 0 {
		t.Error("expected Raw not to read")
	}
}

func TestRawRejectsLineBreaks(t *testing.T) {
	for _, cmd := range []string{"MN\rMA100", "TP\n", "\r"} {
		a, ch, _ := newTestActuator(t)
		_, err := a.Raw(cmd)
		if KindOf(err) != KindValidation {
			t.Errorf("%q: expected validation error got %v", cmd, err)
		}
		if len(ch.writes) != 0 {
			t.Errorf("%q: expected no writes got %q", cmd, ch.writes)
		}
	}
}

func TestFailureLogFields(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	ch := &scripted{}
	a, err := New(ch, zap.New(core))
	if err != nil {
		t.Fatal(err)
	}
	a.sleep = func(time.Duration) {}
	a.Pos()
	a.SetIGain(-4)
	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 warnings got %d", len(entries))
	}
	want := []map[string]interface{}{
		{"op": "get current pos", "cmd": "TP", "kind": "no response"},
		{"op": "set I gain", "cmd": "DI", "kind": "validation"},
	}
	for i, e := range entries {
		fields := e.ContextMap()
		for k, v := range want[i] {
			if fields[k] != v {
				t.Errorf("entry %d: expected %s=%v got %v", i, k, v, fields[k])
			}
		}
		if _, ok := fields["error"]; !ok {
			t.Errorf("entry %d: expected an error field", i)
		}
	}
}

func TestCloseIdempotent(t *testing.T) {
	a, ch, _ := newTestActuator(t)
	a.Close()
	a.Close()
	if ch.closed != 2 {
		t.Errorf("expected both closes forwarded, got %d", ch.closed)
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind ErrorKind
	}{
		{nil, KindNone},
		{&ValidationError{Op: "x", Value: -1}, KindValidation},
		{&WriteFailure{Op: "x"}, KindWrite},
		{&NoResponse{Op: "x"}, KindNoResponse},
		{&ProtocolViolation{Op: "x", Err: ErrShortReply}, KindProtocol},
		{errors.New("other"), KindOther},
	}
	for _, c := range cases {
		if got := KindOf(c.err); got != c.kind {
			t.Errorf("KindOf(%v): expected %v got %v", c.err, c.kind, got)
		}
	}
}

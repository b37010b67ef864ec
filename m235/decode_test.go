package m235

import (
	"math"
	"testing"
)

func TestParseReply(t *testing.T) {
	cases := []struct {
		line string
		want int
	}{
		{"xyz123\r\n", 123},
		{"TP:4096\r\n", 4096},
		{"TE:-17\r\n", -17},
		{"  GP 250\r\n", 250},
		{"ABC0", 0},
		{"µAB123\r\n", 123},
		{"→→→-7\r\n", -7},
	}
	for _, c := range cases {
		got, err := ParseReply([]byte(c.line))
		if err != nil {
			t.Errorf("%q: %v", c.line, err)
			continue
		}
		if got != c.want {
			t.Errorf("%q: expected %d got %d", c.line, c.want, got)
		}
	}
}

func TestParseReplyRepeatable(t *testing.T) {
	line := []byte("TY:40960\r\n")
	first, err1 := ParseReply(line)
	second, err2 := ParseReply(line)
	if first != second || err1 != err2 {
		t.Errorf("expected the same result twice, got (%d, %v) then (%d, %v)", first, err1, second, err2)
	}
	if string(line) != "TY:40960\r\n" {
		t.Error("expected line to be left untouched")
	}
}

func TestParseReplyErrors(t *testing.T) {
	if _, err := ParseReply([]byte("\r\n")); err != ErrEmptyReply {
		t.Errorf("expected ErrEmptyReply got %v", err)
	}
	if _, err := ParseReply(nil); err != ErrEmptyReply {
		t.Errorf("expected ErrEmptyReply got %v", err)
	}
	if _, err := ParseReply([]byte("TP:\r\n")); err != ErrShortReply {
		t.Errorf("expected ErrShortReply got %v", err)
	}
	if _, err := ParseReply([]byte("µ:\r\n")); err != ErrShortReply {
		t.Errorf("expected ErrShortReply for a multibyte prefix alone, got %v", err)
	}
	if _, err := ParseReply([]byte("TP:1.5\r\n")); err == nil {
		t.Error("expected a fractional payload to fail")
	}
}

func TestCountsToMM(t *testing.T) {
	if mm := CountsToMM(10240); mm != 5 {
		t.Errorf("expected 5 got %f", mm)
	}
	if mm := CountsToMM(-1024); mm != -0.5 {
		t.Errorf("expected -0.5 got %f", mm)
	}
}

func TestMMToCounts(t *testing.T) {
	cases := []struct {
		mm   float64
		want int
	}{
		{1, 2048},
		{-1, -2048},
		{0.00025, 1},
		{-0.00025, -1},
		{0.0002, 0},
	}
	for _, c := range cases {
		if got := MMToCounts(c.mm); got != c.want {
			t.Errorf("MMToCounts(%g): expected %d got %d", c.mm, c.want, got)
		}
	}
}

func TestCommandBytes(t *testing.T) {
	c := Command{Mnemonic: "MA", Arg: "-20"}
	if s := c.String(); s != "MA-20" {
		t.Errorf("expected MA-20 got %q", s)
	}
	b := c.Bytes()
	if b[len(b)-1] != TxTerminator {
		t.Errorf("expected CR terminator got %q", b)
	}
	if s := VelocityCommand(1 << 20).String(); s != "SV61440" {
		t.Errorf("expected SV61440 got %q", s)
	}
	if s := AccelerationCommand(-1).String(); s != "SA200" {
		t.Errorf("expected SA200 got %q", s)
	}
}

func TestCheckedCounts(t *testing.T) {
	if n, err := checkedCounts("move", 2.5); err != nil || n != 5120 {
		t.Errorf("expected 5120, nil got %d, %v", n, err)
	}
	limit := float64(MaxCounts) / CountsPerMM
	if _, err := checkedCounts("move", -limit); err != nil {
		t.Errorf("expected the range limit itself to pass, got %v", err)
	}
	for _, mm := range []float64{1e300, -1e300, limit + 1, math.Inf(1), math.Inf(-1), math.NaN()} {
		_, err := checkedCounts("move", mm)
		if KindOf(err) != KindValidation {
			t.Errorf("%g: expected validation error got %v", mm, err)
		}
	}
}

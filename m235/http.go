package m235

import (
	"context"
	"errors"
	"go/types"
	"net/http"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/nasa-jpl/m235/generichttp"
	"github.com/nasa-jpl/m235/generichttp/ascii"
	"github.com/nasa-jpl/m235/generichttp/motion"
)

// DefaultOriginTimeout bounds an origin search started over HTTP
const DefaultOriginTimeout = 2 * time.Minute

// HTTPStatus maps an Actuator error to an HTTP status code
func HTTPStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNoResponse:
		return http.StatusGatewayTimeout
	case KindProtocol, KindWrite:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HTTPWrapper exposes an Actuator over HTTP.  Positions are in mm and
// velocities in mm/s; gains, limits and acceleration are raw controller units.
// Requests are served one at a time.
type HTTPWrapper struct {
	// Startup is applied by POST /initialize
	Startup StartupParams

	// OriginTimeout bounds POST /origin
	OriginTimeout time.Duration

	act *Actuator
	mu  sync.Mutex
	rt  generichttp.RouteTable
}

// NewHTTPWrapper returns a new wrapper with the route table populated
func NewHTTPWrapper(a *Actuator) *HTTPWrapper {
	h := &HTTPWrapper{act: a, OriginTimeout: DefaultOriginTimeout}
	rt := generichttp.RouteTable{
		{Method: http.MethodGet, Path: "/counts"}:               generichttp.GetInt(h.guardInt(a.Pos)),
		{Method: http.MethodPost, Path: "/origin"}:              h.HTTPFindOrigin,
		{Method: http.MethodPost, Path: "/connect"}:             generichttp.Do(h.guard(a.Connect)),
		{Method: http.MethodPost, Path: "/reset"}:               generichttp.Do(h.guard(a.Reset)),
		{Method: http.MethodPost, Path: "/set-home"}:            generichttp.Do(h.guard(a.SetHome)),
		{Method: http.MethodPost, Path: "/soft-stop"}:           generichttp.Do(h.guard(a.SoftStop)),
		{Method: http.MethodPost, Path: "/brakes"}:              generichttp.SetBool(h.guardBool(a.SetBrakes)),
		{Method: http.MethodPost, Path: "/limit-switch"}:        generichttp.SetBool(h.guardBool(a.SetLimitSwitch)),
		{Method: http.MethodGet, Path: "/acceleration"}:         generichttp.GetInt(h.guardInt(a.ProgrammedAcceleration)),
		{Method: http.MethodPost, Path: "/acceleration"}:        generichttp.SetInt(h.guardSetInt(a.SetAcceleration)),
		{Method: http.MethodGet, Path: "/gain/p"}:               generichttp.GetInt(h.guardInt(a.PGain)),
		{Method: http.MethodPost, Path: "/gain/p"}:              generichttp.SetInt(h.guardSetInt(a.SetPGain)),
		{Method: http.MethodGet, Path: "/gain/i"}:               generichttp.GetInt(h.guardInt(a.IGain)),
		{Method: http.MethodPost, Path: "/gain/i"}:              generichttp.SetInt(h.guardSetInt(a.SetIGain)),
		{Method: http.MethodGet, Path: "/gain/d"}:               generichttp.GetInt(h.guardInt(a.DGain)),
		{Method: http.MethodPost, Path: "/gain/d"}:              generichttp.SetInt(h.guardSetInt(a.SetDGain)),
		{Method: http.MethodGet, Path: "/integration-limit"}:    generichttp.GetInt(h.guardInt(a.IntegrationLimit)),
		{Method: http.MethodPost, Path: "/integration-limit"}:   generichttp.SetInt(h.guardSetInt(a.SetIntegrationLimit)),
		{Method: http.MethodPost, Path: "/max-following-error"}: generichttp.SetInt(h.guardSetInt(a.SetMaxFollowingError)),
		{Method: http.MethodGet, Path: "/error"}:                generichttp.GetInt(h.guardInt(a.CurrentError)),
		{Method: http.MethodGet, Path: "/following-error"}:      generichttp.GetInt(h.guardInt(a.FollowingError)),
		{Method: http.MethodGet, Path: "/target"}:               generichttp.GetInt(h.guardInt(a.TargetPos)),
		{Method: http.MethodGet, Path: "/dynamic-target"}:       generichttp.GetInt(h.guardInt(a.DynamicTarget)),
	}
	motion.HTTPMove(h, rt)
	motion.HTTPEnable(h, rt)
	motion.HTTPSpeed(h, rt)
	motion.HTTPStop(h, rt)
	motion.HTTPInitialize(h, rt)
	ascii.InjectRawComm(rt, h)
	h.rt = rt
	return h
}

// RT satisfies generichttp.HTTPer
func (h *HTTPWrapper) RT() generichttp.RouteTable {
	return h.rt
}

func (h *HTTPWrapper) guard(fn func() error) func() error {
	return func() error {
		h.mu.Lock()
		defer h.mu.Unlock()
		return fn()
	}
}

func (h *HTTPWrapper) guardBool(fn func(bool) error) func(bool) error {
	return func(b bool) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		return fn(b)
	}
}

func (h *HTTPWrapper) guardInt(fn func() (int, error)) func() (int, error) {
	return func() (int, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		return fn()
	}
}

func (h *HTTPWrapper) guardSetInt(fn func(int) error) func(int) error {
	return func(i int) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		return fn(i)
	}
}

// GetPos returns the position in mm
func (h *HTTPWrapper) GetPos() (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.act.PosMM()
}

// MoveAbs moves to mm and waits for the motion to stop
func (h *HTTPWrapper) MoveAbs(mm float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.act.MoveAbsMM(mm, true)
	return err
}

// MoveRel moves by mm and waits for the motion to stop
func (h *HTTPWrapper) MoveRel(mm float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.act.MoveRelMM(mm, true)
	return err
}

// Home goes home and waits for the motion to stop
func (h *HTTPWrapper) Home() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.act.Home()
	return err
}

// Enable turns the motor on
func (h *HTTPWrapper) Enable() error {
	return h.guard(h.act.On)()
}

// Disable turns the motor off
func (h *HTTPWrapper) Disable() error {
	return h.guard(h.act.Off)()
}

// SetVelocity sets the programmed velocity in mm/s
func (h *HTTPWrapper) SetVelocity(mmps float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, err := checkedCounts("set velocity", mmps)
	if err != nil {
		return h.act.fail("set velocity", cmdVelocity, err)
	}
	return h.act.SetVelocity(v)
}

// GetVelocity returns the programmed velocity in mm/s
func (h *HTTPWrapper) GetVelocity() (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, err := h.act.ProgrammedVelocity()
	return CountsToMM(v), err
}

// Stop aborts motion immediately
func (h *HTTPWrapper) Stop() error {
	return h.guard(h.act.HardStop)()
}

// Initialize applies Startup
func (h *HTTPWrapper) Initialize() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.act.Initialize(h.Startup)
}

// Raw sends a command without reading a reply
func (h *HTTPWrapper) Raw(cmd string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.act.Raw(cmd)
}

// HTTPFindOrigin runs an origin search bounded by OriginTimeout and by the
// client staying connected.  If the search fails the axis is hard stopped.
func (h *HTTPWrapper) HTTPFindOrigin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.OriginTimeout)
	defer cancel()
	h.mu.Lock()
	err := h.act.FindOrigin(ctx)
	if err != nil {
		err = multierr.Append(err, h.act.HardStop())
	}
	h.mu.Unlock()
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	hp := generichttp.HumanPayload{T: types.Bool, Bool: true}
	hp.EncodeAndRespond(w, r)
}

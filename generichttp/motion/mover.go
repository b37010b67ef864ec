// Package motion provides an HTTP interface to single-axis motion controllers
package motion

import (
	"encoding/json"
	"go/types"
	"net/http"
	"strconv"

	"github.com/nasa-jpl/m235/generichttp"
)

// Mover describes an interface with position-related methods for an axis
type Mover interface {
	// GetPos gets the current position
	GetPos() (float64, error)

	// MoveAbs moves to an absolute position
	MoveAbs(float64) error

	// MoveRel moves a relative amount
	MoveRel(float64) error

	// Home homes the axis
	Home() error
}

// HTTPMove adds routes for the mover to the route table
func HTTPMove(iface Mover, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/home"}] = Home(iface)
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/pos"}] = GetPos(iface)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/pos"}] = SetPos(iface)
}

// GetPos returns an HTTP handler func from a mover that gets the position
func GetPos(m Mover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pos, err := m.GetPos()
		if err != nil {
			generichttp.Error(w, err)
			return
		}
		hp := generichttp.HumanPayload{T: types.Float64, Float: pos}
		hp.EncodeAndRespond(w, r)
	}
}

func popRelative(r *http.Request) (bool, error) {
	relative := r.URL.Query().Get("relative")
	if relative == "" {
		relative = "false"
	}
	return strconv.ParseBool(relative)
}

// SetPos returns an HTTP handler func from a mover that triggers an absolute or
// relative move based on the relative query parameter
func SetPos(m Mover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := popRelative(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f := generichttp.FloatT{}
		err = json.NewDecoder(r.Body).Decode(&f)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if b {
			err = m.MoveRel(f.F64)
		} else {
			err = m.MoveAbs(f.F64)
		}
		if err != nil {
			generichttp.Error(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// Home returns an HTTP handler func from a mover that homes the axis
func Home(m Mover) http.HandlerFunc {
	return generichttp.Do(m.Home)
}

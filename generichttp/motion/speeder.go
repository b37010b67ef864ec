package motion

import (
	"net/http"

	"github.com/nasa-jpl/m235/generichttp"
)

// Speeder describes an interface with velocity-related methods for an axis
type Speeder interface {
	// SetVelocity sets the velocity setpoint
	SetVelocity(float64) error

	// GetVelocity gets the velocity setpoint
	GetVelocity() (float64, error)
}

// HTTPSpeed adds routes for the speeder to the route table
func HTTPSpeed(iface Speeder, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/velocity"}] = generichttp.SetFloat(iface.SetVelocity)
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/velocity"}] = generichttp.GetFloat(iface.GetVelocity)
}

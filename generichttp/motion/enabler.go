package motion

import (
	"net/http"

	"github.com/nasa-jpl/m235/generichttp"
)

// Enabler describes an interface with enable/disable methods for an axis
type Enabler interface {
	// Enable enables the axis
	Enable() error

	// Disable disables the axis
	Disable() error
}

// HTTPEnable adds routes for the enabler to the route table
func HTTPEnable(iface Enabler, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/enabled"}] = SetEnabled(iface)
}

// SetEnabled returns an HTTP handler func from an enabler that enables or
// disables the axis according to {"bool": value}
func SetEnabled(e Enabler) http.HandlerFunc {
	return generichttp.SetBool(func(b bool) error {
		if b {
			return e.Enable()
		}
		return e.Disable()
	})
}

package motion

import (
	"net/http"

	"github.com/nasa-jpl/m235/generichttp"
)

// Stopper describes an interface with stop-related methods for an axis
type Stopper interface {
	// Stop aborts motion of the axis
	Stop() error
}

// HTTPStop adds routes for the stopper to the route table
func HTTPStop(iface Stopper, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/stop"}] = generichttp.Do(iface.Stop)
}

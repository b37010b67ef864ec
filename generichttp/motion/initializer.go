package motion

import (
	"net/http"

	"github.com/nasa-jpl/m235/generichttp"
)

// Initializer is a type which may initialize an axis
type Initializer interface {
	// Initialize the axis, engaging the control electronics
	Initialize() error
}

// HTTPInitialize adds routes for initialization to the route table
func HTTPInitialize(i Initializer, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/initialize"}] = generichttp.Do(i.Initialize)
}

package motion

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/nasa-jpl/m235/generichttp"
	"github.com/nasa-jpl/m235/util"
)

var (
	errClamped = errors.New("requested position violates software limits, aborted")
)

// LimitMiddleware imposes software limits on motion requested over HTTP
type LimitMiddleware struct {
	// Limits contains the server imposed limits on the controller.
	// If nil, every move is allowed.
	Limits *util.Limiter

	// Mov is a reference to the mover, used to query the position
	Mov Mover
}

// Check verifies if a motion would violate the limit, and if it does,
// responds with StatusBadRequest.  Otherwise control flows to the next handler.
func (l *LimitMiddleware) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Limits == nil || !strings.HasSuffix(r.URL.Path, "/pos") || r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		relative, err := popRelative(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// downstream handlers need the body too
		bodyContent, _ := io.ReadAll(r.Body)
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(bodyContent))
		f := generichttp.FloatT{}
		err = json.Unmarshal(bodyContent, &f)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cmd := f.F64
		if relative {
			currPos, err := l.Mov.GetPos()
			if err != nil {
				generichttp.Error(w, err)
				return
			}
			cmd += currPos
		}
		if !l.Limits.Check(cmd) {
			http.Error(w, errClamped.Error(), http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Inject places a GET /limits route on the table of the HTTPer
func (l *LimitMiddleware) Inject(h generichttp.HTTPer) {
	h.RT()[generichttp.MethodPath{Method: http.MethodGet, Path: "/limits"}] = Limits(l)
}

// Limits returns an HTTP handler func that returns the limits, or null
func Limits(l *LimitMiddleware) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(l.Limits)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

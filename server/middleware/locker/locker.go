// Package locker provides an HTTP middleware which allows an HTTPHandler to be locked, returning 423 (locked)
package locker

import (
	"go/types"
	"net/http"
	"strings"
	"sync"

	"github.com/nasa-jpl/m235/generichttp"
)

// ManipulableLock can be locked, unlocked, and queried, and guards handlers
type ManipulableLock interface {
	Lock()
	Unlock()
	Locked() bool
	Check(http.Handler) http.Handler
}

// Inject adds a lock route to an HTTPer which is used to manipulate the locker
func Inject(other generichttp.HTTPer, l ManipulableLock) {
	rt := other.RT()
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/lock"}] = HTTPGet(l)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/lock"}] = HTTPSet(l)
}

// Locker is a type which behaves like a sync.Mutex without the blocking,
// and holds a list of routes not to protect
type Locker struct {
	mu       sync.RWMutex
	isLocked bool

	// DoNotProtect is a list of path suffixes not to apply the lock to
	DoNotProtect []string
}

// New returns a new Locker with DoNotProtect prepopulated with the lock
// route and the stop route, so a locked axis can still be stopped
func New() *Locker {
	return &Locker{DoNotProtect: []string{"/lock", "/stop", "/endpoints"}}
}

// Lock the locker
func (l *Locker) Lock() {
	l.mu.Lock()
	l.isLocked = true
	l.mu.Unlock()
}

// Unlock the locker
func (l *Locker) Unlock() {
	l.mu.Lock()
	l.isLocked = false
	l.mu.Unlock()
}

// Locked returns true if the locker is locked
func (l *Locker) Locked() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.isLocked
}

// Check is an HTTP middleware that returns http.StatusLocked if Locked() is
// true and the path is protected, otherwise passes down the line
func (l *Locker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Locked() {
			protected := true
			url := r.URL.Path
			for _, str := range l.DoNotProtect {
				if strings.HasSuffix(url, str) {
					protected = false
				}
			}
			if protected {
				w.WriteHeader(http.StatusLocked)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// HTTPSet returns a handler that calls Lock or Unlock based on json:bool on the request body
func HTTPSet(l ManipulableLock) http.HandlerFunc {
	return generichttp.SetBool(func(b bool) error {
		if b {
			l.Lock()
		} else {
			l.Unlock()
		}
		return nil
	})
}

// HTTPGet returns a handler that reports Locked() over HTTP
func HTTPGet(l ManipulableLock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hp := generichttp.HumanPayload{T: types.Bool, Bool: l.Locked()}
		hp.EncodeAndRespond(w, r)
	}
}

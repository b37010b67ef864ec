package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/theckman/yacspin"
	"go.uber.org/zap"

	"github.com/nasa-jpl/m235/comm"
	"github.com/nasa-jpl/m235/generichttp"
	"github.com/nasa-jpl/m235/generichttp/motion"
	"github.com/nasa-jpl/m235/m235"
	"github.com/nasa-jpl/m235/server/middleware/locker"
)

// channel builds the transport named by c.Driver
func channel(c Config) (comm.Channel, error) {
	switch strings.ToLower(c.Driver) {
	case "tarm", "serial", "":
		return comm.NewPort(c.Port, c.Timeout, comm.SerialConnMaker(comm.SerialConf(c.Port))), nil
	case "bugst":
		return comm.NewPort(c.Port, c.Timeout, comm.BugstConnMaker(c.Port, comm.BugstMode(c.Baud))), nil
	case "tcp":
		return comm.NewPort(c.Port, c.Timeout, comm.TCPConnMaker(c.Port, c.Timeout)), nil
	case "mock":
		return m235.NewMockChannel(), nil
	default:
		return nil, fmt.Errorf("driver %q not understood", c.Driver)
	}
}

// openActuator opens the configured device and applies the configured pacing
func openActuator(c Config, logger *zap.Logger) (*m235.Actuator, error) {
	ch, err := channel(c)
	if err != nil {
		return nil, err
	}
	a, err := m235.New(ch, logger.With(zap.String("port", c.Port), zap.String("driver", c.Driver)))
	if err != nil {
		return nil, err
	}
	a.Pacing = m235.Pacing{
		Command: c.Pacing.Command,
		Settle:  c.Pacing.Settle,
		Poll:    c.Pacing.Poll}
	return a, nil
}

// requestLogger logs each request once it has been served
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("id", middleware.GetReqID(r.Context())))
		})
	}
}

// buildMux mounts the actuator's routes under c.Endpoint, guarded by a lock
// and the configured software limits
func buildMux(c Config, a *m235.Actuator, logger *zap.Logger) chi.Router {
	generichttp.ErrorStatus = m235.HTTPStatus

	root := chi.NewRouter()
	root.Use(middleware.RequestID, requestLogger(logger), middleware.Recoverer)

	httper := m235.NewHTTPWrapper(a)
	httper.Startup = c.Startup
	httper.OriginTimeout = c.OriginTimeout

	lim := &motion.LimitMiddleware{Limits: c.Limits.Limiter(), Mov: httper}
	lim.Inject(httper)
	lock := locker.New()
	locker.Inject(httper, lock)

	hndlS := generichttp.SubMuxSanitize(c.Endpoint)
	r := chi.NewRouter()
	r.Use(lock.Check, lim.Check)
	httper.RT().Bind(r)
	root.Mount(hndlS, r)
	return root
}

// spin runs fn behind a terminal spinner labelled msg
func spin(msg string, fn func() error) error {
	s, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " " + msg,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"}})
	if err != nil {
		// no spinner, e.g. an unsupported terminal
		return fn()
	}
	s.Start()
	err = fn()
	if err != nil {
		s.StopFailMessage(err.Error())
		s.StopFail()
		return err
	}
	s.Stop()
	return nil
}

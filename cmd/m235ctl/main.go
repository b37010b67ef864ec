package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	yml "gopkg.in/yaml.v2"

	"github.com/nasa-jpl/m235/m235"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "m235ctl.yml"

	// EnvPrefix marks environment variables that override the config file,
	// e.g. M235_PORT or M235_LOG_LEVEL
	EnvPrefix = "M235_"

	k = koanf.New(".")
)

func setupconfig() error {
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return fmt.Errorf("error loading defaults: %w", err)
	}
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) && !strings.Contains(err.Error(), "no such") {
			return fmt.Errorf("error loading config: %w", err)
		}
	}
	return k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", -1)
	}), nil)
}

func loadconf() (Config, error) {
	c := Config{}
	err := k.Unmarshal("", &c)
	return c, err
}

func root() {
	str := `m235ctl drives a PI M-235 linear actuator over its serial command set,
either directly from the command line or as an HTTP server.

Usage:
	m235ctl <command> [arguments]

Commands:
	help
	conf
	version
	run
	init
	home
	origin
	move <counts> [rel]
	pos
	gains
	stop
	raw <text>`
	fmt.Println(str)
}

func help() {
	str := `m235ctl reads m235ctl.yml from the working directory if it exists, then
environment variables prefixed with M235_, e.g. M235_PORT=/dev/ttyS4 or
M235_STARTUP_PGAIN=120.  "m235ctl conf" prints the effective configuration.

Drivers ("driver" key):
- tarm   serial port via github.com/tarm/serial, 19200 8N1
- bugst  serial port via go.bug.st/serial at "baud"
- tcp    a terminal server, "port" is host:port
- mock   an in-memory controller, for trying things out

Commands:
- run     serve HTTP on "listen" under "endpoint"; GET <endpoint>/endpoints lists routes
- init    connect, motor on, load the startup gains and trajectory, optionally home
- home    go home and wait for the motion to stop
- origin  search for the origin, bounded by "origintimeout" and Ctrl-C
- move    move to (or by, with rel) a number of counts and wait for the motion to stop
- pos     print the position in counts and mm
- gains   print the servo gains and integration limit
- stop    abort motion
- raw     send text as a command; no reply is read`
	fmt.Println(str)
}

func printconf() error {
	c, err := loadconf()
	if err != nil {
		return err
	}
	return yml.NewEncoder(os.Stdout).Encode(c)
}

func pversion() {
	fmt.Printf("m235ctl version %v\n", Version)
}

// withActuator opens the configured device, calls fn, and releases everything
func withActuator(fn func(Config, *m235.Actuator, *zap.Logger) error) (err error) {
	c, err := loadconf()
	if err != nil {
		return err
	}
	logger, flush, err := newLogger(c.Log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, flush()) }()

	a, err := openActuator(c, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, a.Close()) }()
	return fn(c, a, logger)
}

func run(c Config, a *m235.Actuator, logger *zap.Logger) error {
	if err := a.Connect(); err != nil {
		logger.Warn("controller did not answer, serving anyway", zap.Error(err))
	}
	srv := &http.Server{Addr: c.Listen, Handler: buildMux(c, a, logger)}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	errs := make(chan error, 1)
	go func() {
		logger.Info("now listening for requests", zap.String("addr", c.Listen),
			zap.String("endpoint", c.Endpoint))
		errs <- srv.ListenAndServe()
	}()
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func initialize(c Config, a *m235.Actuator, _ *zap.Logger) error {
	return spin("initializing", func() error { return a.Initialize(c.Startup) })
}

func home(_ Config, a *m235.Actuator, _ *zap.Logger) error {
	var ferr int
	err := spin("homing", func() (err error) {
		ferr, err = a.Home()
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("following error %d\n", ferr)
	return nil
}

func origin(c Config, a *m235.Actuator, _ *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, c.OriginTimeout)
	defer cancel()
	err := spin("finding origin", func() error { return a.FindOrigin(ctx) })
	if err != nil {
		// leave the axis still
		return multierr.Append(err, a.HardStop())
	}
	return nil
}

func move(args []string) func(Config, *m235.Actuator, *zap.Logger) error {
	return func(_ Config, a *m235.Actuator, _ *zap.Logger) error {
		if len(args) == 0 {
			return errors.New("move needs a number of counts")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("move: %w", err)
		}
		rel := len(args) > 1 && strings.HasPrefix(strings.ToLower(args[1]), "rel")
		var ferr int
		err = spin("moving", func() (err error) {
			if rel {
				ferr, err = a.MoveRel(n, true)
			} else {
				ferr, err = a.MoveAbs(n, true)
			}
			return err
		})
		if err != nil {
			return err
		}
		fmt.Printf("following error %d\n", ferr)
		return nil
	}
}

func pos(_ Config, a *m235.Actuator, _ *zap.Logger) error {
	p, err := a.Pos()
	if err != nil {
		return err
	}
	fmt.Printf("%d counts\t%.4f mm\n", p, m235.CountsToMM(p))
	return nil
}

func gains(_ Config, a *m235.Actuator, _ *zap.Logger) error {
	getters := []struct {
		name string
		get  func() (int, error)
	}{
		{"P", a.PGain},
		{"I", a.IGain},
		{"D", a.DGain},
		{"integration limit", a.IntegrationLimit},
	}
	var errs error
	for _, g := range getters {
		v, err := g.get()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		fmt.Printf("%s\t%d\n", g.name, v)
	}
	return errs
}

func hardstop(_ Config, a *m235.Actuator, _ *zap.Logger) error {
	return a.HardStop()
}

func raw(args []string) func(Config, *m235.Actuator, *zap.Logger) error {
	return func(_ Config, a *m235.Actuator, _ *zap.Logger) error {
		if len(args) == 0 {
			return errors.New("raw needs a command")
		}
		_, err := a.Raw(strings.Join(args, " "))
		return err
	}
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	if err := setupconfig(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cmd := strings.ToLower(args[1])
	rest := args[2:]
	var err error
	switch cmd {
	case "help":
		help()
	case "conf":
		err = printconf()
	case "version":
		pversion()
	case "run":
		err = withActuator(run)
	case "init":
		err = withActuator(initialize)
	case "home":
		err = withActuator(home)
	case "origin":
		err = withActuator(origin)
	case "move":
		err = withActuator(move(rest))
	case "pos":
		err = withActuator(pos)
	case "gains":
		err = withActuator(gains)
	case "stop":
		err = withActuator(hardstop)
	case "raw":
		err = withActuator(raw(rest))
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

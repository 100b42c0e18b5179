// Package app wires the mudstream client together: configuration, the
// event bus, the stream decoder with its markup interpreter, the Lua
// variable store, the telnet session and the terminal view. It owns the
// single goroutine that feeds the decoder.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/mudstream/internal/config"
	"github.com/dshills/mudstream/internal/config/watcher"
	"github.com/dshills/mudstream/internal/event"
	"github.com/dshills/mudstream/internal/event/events"
	"github.com/dshills/mudstream/internal/logging"
	"github.com/dshills/mudstream/internal/mxp"
	"github.com/dshills/mudstream/internal/render"
	"github.com/dshills/mudstream/internal/script"
	"github.com/dshills/mudstream/internal/session"
	"github.com/dshills/mudstream/internal/stream"
)

// Options configures the application. Non-zero fields override the
// configuration file.
type Options struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string

	// Host and Port select the server to connect to at startup.
	Host string
	Port int

	// LogFile and LogLevel override the logging section.
	LogFile  string
	LogLevel string

	// NoMXP refuses MXP negotiation.
	NoMXP bool

	// Screen replaces the terminal, typically with a simulation screen.
	Screen tcell.Screen

	// LogOutput replaces the log file.
	LogOutput io.Writer
}

// Application is the central coordinator for all mudstream components.
type Application struct {
	opts Options

	log     *logging.Logger
	logFile io.Closer
	cfg     *config.Config
	cfgPath string

	bus      *event.Bus
	commands *event.CommandBus
	subs     []string

	vars    *script.Store
	buffer  *render.Buffer
	decoder *stream.Decoder
	mxp     *mxp.Interpreter

	screen tcell.Screen
	view   *render.View

	watcher *watcher.Watcher
	session *session.Session

	// serverEcho is set while the server echoes input; local echo is off.
	serverEcho bool

	// flash is a transient status message, cleared by the next key press.
	flash string

	metrics *Metrics

	running  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
}

// New creates an Application with all components initialized.
func New(opts Options) (*Application, error) {
	app := &Application{
		opts:    opts,
		done:    make(chan struct{}),
		metrics: NewMetrics(),
	}
	if err := newBootstrapper(app).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// Run initializes the screen, connects when a host is configured and runs
// the event loop until ctx is cancelled, Shutdown is called or the user
// quits. A user quit returns ErrQuit.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if err := app.screen.Init(); err != nil {
		return &InitError{Component: "screen", Err: err}
	}
	defer app.screen.Fini()
	if app.cfg.Display.Mouse {
		app.screen.EnableMouse()
	}

	if app.cfg.Connection.Host != "" {
		if err := app.Connect(ctx); err != nil {
			app.notice("%v", err)
		}
	} else {
		app.notice("not connected; use /connect host port")
	}

	return app.eventLoop(ctx)
}

// Connect dials the configured server, replacing any live session.
func (app *Application) Connect(ctx context.Context) error {
	if app.session != nil {
		app.disconnect()
	}

	addr := app.cfg.Addr()
	app.notice("connecting to %s", addr)
	s, err := session.Dial(ctx, addr, session.Options{
		DialTimeout:  time.Duration(app.cfg.Connection.DialTimeout),
		MXP:          app.cfg.MXP.Enabled,
		TerminalType: app.cfg.MXP.ClientName,
		Logger:       app.log,
	})
	if err != nil {
		return NewComponentError("session", "connect", err)
	}
	if err := s.Start(ctx); err != nil {
		_ = s.Close()
		return NewComponentError("session", "start", err)
	}

	app.session = s
	if w, h := app.screen.Size(); w > 0 {
		s.SetWindowSize(w, h)
	}
	app.publish(event.NewEvent(events.TopicSessionConnected,
		events.SessionConnected{ID: s.ID(), Addr: s.Addr()}, "app"))
	return nil
}

// disconnect closes the live session and resets the decoding state.
func (app *Application) disconnect() {
	s := app.session
	if s == nil {
		return
	}
	app.session = nil
	_ = s.Close()
	app.endSession(s)
}

// endSession resets per-connection state after s ended.
func (app *Application) endSession(s *session.Session) {
	app.decoder.Reset()
	app.decoder.SetMarkup(false)
	app.mxp.Reset()
	app.serverEcho = false
	app.publish(event.NewEvent(events.TopicSessionClosed,
		events.SessionClosed{ID: s.ID(), Err: s.Err()}, "app"))
	app.notice("disconnected from %s", s.Addr())
}

// Shutdown asks the event loop to stop. It is safe to call more than once
// and from any goroutine.
func (app *Application) Shutdown() {
	app.stopOnce.Do(func() { close(app.done) })
}

// Close releases all resources. Call it after Run has returned.
func (app *Application) Close() error {
	app.Shutdown()
	app.disconnect()

	var errs []error
	for _, id := range app.subs {
		_ = app.bus.Unsubscribe(id)
	}
	app.subs = nil
	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil && !errors.Is(err, watcher.ErrWatcherClosed) {
			errs = append(errs, NewComponentError("watcher", "close", err))
		}
	}
	if err := app.vars.Close(); err != nil && !errors.Is(err, script.ErrStoreClosed) {
		errs = append(errs, NewComponentError("script", "close", err))
	}

	s := app.metrics.Snapshot()
	app.log.Info("closing after %s: %d chunks, %.1f KB in, %d commands out",
		s.Uptime.Round(time.Second), s.ChunkCount, s.KBIn(), s.CommandCount)
	if app.logFile != nil {
		if err := app.logFile.Close(); err != nil {
			errs = append(errs, NewComponentError("logging", "close", err))
		}
		app.logFile = nil
	}
	return errors.Join(errs...)
}

// notice writes a client message to the output, outside the server's
// colors.
func (app *Application) notice(format string, args ...any) {
	app.decoder.AppendPreformatted("[" + fmt.Sprintf(format, args...) + "]\n")
}

func (app *Application) publish(ev any) {
	if err := app.bus.Publish(context.Background(), ev); err != nil {
		app.log.Warn("publish: %v", err)
	}
}

// IsRunning returns true if the event loop is running.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Config returns the active configuration.
func (app *Application) Config() *config.Config {
	return app.cfg
}

// Buffer returns the output buffer.
func (app *Application) Buffer() *render.Buffer {
	return app.buffer
}

// Variables returns the variable store.
func (app *Application) Variables() *script.Store {
	return app.vars
}

// Interpreter returns the markup interpreter.
func (app *Application) Interpreter() *mxp.Interpreter {
	return app.mxp
}

// EventBus returns the event bus.
func (app *Application) EventBus() *event.Bus {
	return app.bus
}

// Metrics returns the application's metrics.
func (app *Application) Metrics() *Metrics {
	return app.metrics
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/mudstream/internal/config"
	"github.com/dshills/mudstream/internal/config/watcher"
	"github.com/dshills/mudstream/internal/event"
	"github.com/dshills/mudstream/internal/event/events"
	"github.com/dshills/mudstream/internal/session"
	"github.com/dshills/mudstream/internal/telnet"
)

// scrollStep is the number of rows moved per mouse wheel notch.
const scrollStep = 3

// eventLoop is the main application loop. It is the only goroutine that
// touches the decoder, interpreter and view.
func (app *Application) eventLoop(ctx context.Context) error {
	screenEvents := app.startInputPolling()

	var configEvents <-chan watcher.Event
	if app.watcher != nil {
		configEvents = app.watcher.Events()
	}

	app.draw()
	for {
		var messages <-chan session.Message
		if app.session != nil {
			messages = app.session.Messages()
		}

		select {
		case <-ctx.Done():
			return nil

		case <-app.done:
			return nil

		case ev, ok := <-screenEvents:
			if !ok {
				return nil
			}
			if err := app.handleScreenEvent(ev); err != nil {
				if errors.Is(err, ErrQuit) {
					return ErrQuit
				}
				app.notice("%v", err)
			}

		case msg, ok := <-messages:
			if !ok {
				s := app.session
				app.session = nil
				_ = s.Close()
				app.endSession(s)
				break
			}
			app.handleMessage(msg)

		case ev, ok := <-configEvents:
			if !ok {
				configEvents = nil
				break
			}
			app.handleConfigEvent(ev)
		}

		app.draw()
	}
}

// startInputPolling starts a goroutine that polls the screen for events.
//
// PollEvent is blocking; Fini on the screen unblocks it with nil, which
// ends the goroutine.
func (app *Application) startInputPolling() <-chan tcell.Event {
	events := make(chan tcell.Event, 100)

	go func() {
		defer close(events)
		for {
			ev := app.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-app.done:
				return
			}
		}
	}()

	return events
}

// handleScreenEvent processes a terminal event.
// Returns ErrQuit if the application should exit.
func (app *Application) handleScreenEvent(ev tcell.Event) error {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		app.screen.Sync()
		if app.session != nil {
			w, h := ev.Size()
			app.session.SetWindowSize(w, h)
		}

	case *tcell.EventKey:
		app.flash = ""
		if ev.Key() == tcell.KeyCtrlC {
			return ErrQuit
		}
		if line, ok := app.view.HandleKey(ev); ok {
			return app.submit(line)
		}

	case *tcell.EventMouse:
		switch {
		case ev.Buttons()&tcell.WheelUp != 0:
			app.view.Scroll(scrollStep)
		case ev.Buttons()&tcell.WheelDown != 0:
			app.view.Scroll(-scrollStep)
		default:
			app.view.HandleMouse(ev)
		}
	}
	return nil
}

// submit handles an entered input line: client commands start with '/',
// everything else goes to the server.
func (app *Application) submit(line string) error {
	if strings.HasPrefix(line, "/") {
		return app.runCommand(line)
	}
	if app.session == nil {
		return ErrNotConnected
	}
	app.commands.EmitCommand(line, false)
	return nil
}

// handleMessage feeds a server chunk to the decoder or applies a telnet
// signal.
func (app *Application) handleMessage(msg session.Message) {
	if msg.IsSignal() {
		app.handleSignal(msg.Signal)
		return
	}

	timer := StartTimer()
	app.decoder.Feed(msg.Data, true)
	app.metrics.RecordFeed(len(msg.Data), timer.Elapsed())
}

func (app *Application) handleSignal(sig telnet.Signal) {
	app.log.Debug("signal %s", sig)
	switch sig {
	case telnet.SignalMarkupOn:
		app.decoder.SetMarkup(app.cfg.MXP.Enabled)
	case telnet.SignalMarkupOff:
		app.decoder.SetMarkup(false)
		app.mxp.Reset()
	case telnet.SignalEchoOn:
		app.serverEcho = true
	case telnet.SignalEchoOff:
		app.serverEcho = false
	}
}

// handleConfigEvent reloads the configuration after the file changed and
// applies the settings that can change live.
func (app *Application) handleConfigEvent(ev watcher.Event) {
	if ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
		app.log.Info("config file %s: %s, keeping current settings", ev.Op, ev.Path)
		return
	}

	cfg, err := config.Load(app.cfgPath)
	if err != nil {
		app.log.Warn("config reload failed: %v", err)
		app.flash = "config error: " + err.Error()
		return
	}
	// Command-line overrides stay in force.
	if app.opts.NoMXP {
		cfg.MXP.Enabled = false
	}
	cfg.Connection = app.cfg.Connection
	app.applyConfig(cfg)
	app.publish(event.NewEvent(events.TopicConfigReloaded, events.ConfigReloaded{Path: ev.Path}, "app"))
}

// applyConfig installs cfg and updates every live component.
func (app *Application) applyConfig(cfg *config.Config) {
	fg, bg, err := cfg.Colors()
	if err != nil {
		app.log.Warn("ignoring reloaded config: %v", err)
		return
	}

	app.buffer.SetDefaultColors(fg.ID(), bg.ID())
	app.decoder.Colors().SetDefaults(fg, bg)
	app.decoder.SetUTF8(cfg.Display.UTF8)
	app.mxp.SetImages(cfg.MXP.Images)
	app.mxp.SetClientName(cfg.MXP.ClientName)
	if !cfg.MXP.Enabled {
		app.decoder.SetMarkup(false)
	}
	if cfg.Display.Mouse {
		app.screen.EnableMouse()
	} else {
		app.screen.DisableMouse()
	}
	if app.opts.LogLevel == "" {
		app.log.SetLevel(cfg.LogLevel())
	}

	app.cfg = cfg
	app.flash = "config reloaded"
	app.log.Info("config reloaded")
}

// draw renders the view with a fresh status line.
func (app *Application) draw() {
	timer := StartTimer()
	app.view.SetStatus(app.statusLine())
	app.view.Draw()
	app.metrics.RecordFrame(timer.Elapsed())
}

func (app *Application) statusLine() string {
	parts := make([]string, 0, 5)
	if app.session != nil {
		parts = append(parts, app.session.Addr())
	} else {
		parts = append(parts, "offline")
	}
	if app.decoder.Markup() {
		parts = append(parts, "MXP")
	}
	s := app.metrics.Snapshot()
	parts = append(parts, fmt.Sprintf("%.1f KB", s.KBIn()))
	if n := len(app.vars.Names()); n > 0 {
		parts = append(parts, fmt.Sprintf("%d vars", n))
	}
	if app.flash != "" {
		parts = append(parts, app.flash)
	}
	return " " + strings.Join(parts, " | ")
}

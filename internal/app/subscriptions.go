package app

import (
	"context"

	"github.com/dshills/mudstream/internal/event"
	"github.com/dshills/mudstream/internal/event/events"
)

// subscribe registers the application's bus handlers.
func (app *Application) subscribe() error {
	handlers := []func() (string, error){
		func() (string, error) {
			return event.Subscribe(app.bus, events.TopicCommandEmit, app.onCommand)
		},
		func() (string, error) {
			return event.Subscribe(app.bus, events.TopicInputSet, app.onInputSet)
		},
		func() (string, error) {
			return event.Subscribe(app.bus, events.TopicMXPVariable, app.onVariable)
		},
		func() (string, error) {
			return event.Subscribe(app.bus, events.TopicSessionConnected, app.onConnected)
		},
		func() (string, error) {
			return event.Subscribe(app.bus, events.TopicSessionClosed, app.onClosed)
		},
	}

	for _, h := range handlers {
		id, err := h()
		if err != nil {
			return err
		}
		app.subs = append(app.subs, id)
	}
	return nil
}

// onCommand echoes a command locally, unless it is silent or the server
// echoes, and sends it to the server.
func (app *Application) onCommand(_ context.Context, p events.CommandEmit) error {
	if !p.Silent && !app.serverEcho {
		app.decoder.WriteText(p.Text + "\n")
	}
	if app.session == nil {
		return ErrNotConnected
	}
	if err := app.session.Send(p.Text); err != nil {
		return NewComponentError("session", "send", err)
	}
	app.metrics.RecordCommand(len(p.Text) + 2)
	return nil
}

func (app *Application) onInputSet(_ context.Context, p events.InputSet) error {
	app.view.SetInput(p.Text)
	return nil
}

func (app *Application) onVariable(_ context.Context, p events.MXPVariable) error {
	if p.Deleted {
		app.log.Debug("variable %s deleted", p.Name)
		return nil
	}
	app.log.Debug("variable %s = %q", p.Name, p.Value)
	return nil
}

func (app *Application) onConnected(_ context.Context, p events.SessionConnected) error {
	app.log.Info("session %s connected to %s", p.ID, p.Addr)
	app.flash = "connected"
	return nil
}

func (app *Application) onClosed(_ context.Context, p events.SessionClosed) error {
	if p.Err != nil {
		app.log.Warn("session %s closed: %v", p.ID, p.Err)
		return nil
	}
	app.log.Info("session %s closed", p.ID)
	return nil
}

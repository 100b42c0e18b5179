package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// clientCommand is a '/'-prefixed command handled by the client itself.
type clientCommand struct {
	usage string
	run   func(app *Application, args string) error
}

var clientCommands map[string]clientCommand

func init() {
	clientCommands = map[string]clientCommand{
		"quit": {"/quit", func(*Application, string) error { return ErrQuit }},

		"connect": {"/connect [host [port]]", (*Application).cmdConnect},

		"disconnect": {"/disconnect", func(app *Application, _ string) error {
			if app.session == nil {
				return ErrNotConnected
			}
			app.disconnect()
			return nil
		}},

		"lua": {"/lua code", func(app *Application, code string) error {
			return app.vars.DoString(code)
		}},

		"vars": {"/vars", (*Application).cmdVars},

		"elements": {"/elements", func(app *Application, _ string) error {
			names := app.mxp.Elements()
			if len(names) == 0 {
				app.notice("no elements declared")
				return nil
			}
			app.notice("elements: %s", strings.Join(names, " "))
			return nil
		}},

		"help": {"/help", (*Application).cmdHelp},
	}
}

// runCommand dispatches a client command line.
func (app *Application) runCommand(line string) error {
	name, args, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	cmd, ok := clientCommands[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("%w: /%s", ErrUnknownCommand, name)
	}
	app.log.Debug("client command %s", name)
	return cmd.run(app, strings.TrimSpace(args))
}

func (app *Application) cmdConnect(args string) error {
	fields := strings.Fields(args)
	if len(fields) > 0 {
		app.cfg.Connection.Host = fields[0]
	}
	if len(fields) > 1 {
		port, err := strconv.Atoi(fields[1])
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid port %q", fields[1])
		}
		app.cfg.Connection.Port = port
	}
	if app.cfg.Connection.Host == "" {
		return fmt.Errorf("usage: %s", clientCommands["connect"].usage)
	}
	return app.Connect(context.Background())
}

func (app *Application) cmdVars(string) error {
	names := app.vars.Names()
	if len(names) == 0 {
		app.notice("no variables")
		return nil
	}
	for _, n := range names {
		v, _ := app.vars.Get(n)
		app.notice("%s = %s", n, v)
	}
	return nil
}

func (app *Application) cmdHelp(string) error {
	usages := make([]string, 0, len(clientCommands))
	for _, c := range clientCommands {
		usages = append(usages, c.usage)
	}
	sort.Strings(usages)
	app.notice("commands: %s", strings.Join(usages, ", "))
	return nil
}

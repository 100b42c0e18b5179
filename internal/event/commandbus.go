package event

import (
	"context"

	"github.com/dshills/mudstream/internal/event/events"
)

// CommandBus publishes command and input-line requests on a Bus.
type CommandBus struct {
	bus    *Bus
	source string
}

// NewCommandBus creates a command bus publishing as source.
func NewCommandBus(bus *Bus, source string) *CommandBus {
	return &CommandBus{bus: bus, source: source}
}

// EmitCommand publishes a command.emit event.
func (c *CommandBus) EmitCommand(text string, silent bool) {
	ev := NewEvent(events.TopicCommandEmit, events.CommandEmit{Text: text, Silent: silent}, c.source)
	if err := c.bus.Publish(context.Background(), ev); err != nil {
		c.bus.log.Warn("emit command %q: %v", text, err)
	}
}

// SetInput publishes an input.set event.
func (c *CommandBus) SetInput(text string) {
	ev := NewEvent(events.TopicInputSet, events.InputSet{Text: text}, c.source)
	if err := c.bus.Publish(context.Background(), ev); err != nil {
		c.bus.log.Warn("set input %q: %v", text, err)
	}
}

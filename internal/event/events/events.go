// Package events defines the topics and payload types published on the
// event bus.
package events

import "github.com/dshills/mudstream/internal/event/topic"

// Command and input topics.
const (
	// TopicCommandEmit is published when a command should be sent to the peer.
	TopicCommandEmit topic.Topic = "command.emit"

	// TopicInputSet is published when text should be placed in the input line.
	TopicInputSet topic.Topic = "input.set"
)

// Markup topics.
const (
	// TopicMXPTag is published for every recognized markup tag.
	TopicMXPTag topic.Topic = "mxp.tag"

	// TopicMXPVariable is published when an entity or bound variable changes.
	TopicMXPVariable topic.Topic = "mxp.variable"
)

// Session and config topics.
const (
	// TopicConfigReloaded is published after the config file changed on disk.
	TopicConfigReloaded topic.Topic = "config.reloaded"

	// TopicSessionConnected is published once the connection is established.
	TopicSessionConnected topic.Topic = "session.connected"

	// TopicSessionClosed is published when the connection ends.
	TopicSessionClosed topic.Topic = "session.closed"
)

// CommandEmit is the payload for TopicCommandEmit.
type CommandEmit struct {
	// Text is the command line, without terminator.
	Text string

	// Silent suppresses the local echo.
	Silent bool
}

// InputSet is the payload for TopicInputSet.
type InputSet struct {
	Text string
}

// MXPTag is the payload for TopicMXPTag.
type MXPTag struct {
	// Kind is the tag kind, e.g. "send", "a", "b", "version" or an element name.
	Kind string

	// Value is the raw tag text.
	Value string
}

// MXPVariable is the payload for TopicMXPVariable.
type MXPVariable struct {
	Name  string
	Value string

	// Deleted is set when the variable was removed.
	Deleted bool
}

// ConfigReloaded is the payload for TopicConfigReloaded.
type ConfigReloaded struct {
	// Path is the file that changed.
	Path string
}

// SessionConnected is the payload for TopicSessionConnected.
type SessionConnected struct {
	ID   string
	Addr string
}

// SessionClosed is the payload for TopicSessionClosed.
type SessionClosed struct {
	ID string

	// Err is the read error that ended the session, nil on a clean close.
	Err error
}

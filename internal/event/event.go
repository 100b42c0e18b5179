package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/dshills/mudstream/internal/event/topic"
)

// Event is a published message with a typed payload.
type Event[T any] struct {
	// Topic is the hierarchical event type (e.g. "mxp.tag").
	Topic topic.Topic

	// Payload contains the event-specific data.
	Payload T

	// ID uniquely identifies this event instance.
	ID string

	// Time is when the event was created.
	Time time.Time

	// Source names the component that published the event.
	Source string
}

// NewEvent creates an event with a fresh id.
func NewEvent[T any](t topic.Topic, payload T, source string) Event[T] {
	return Event[T]{
		Topic:   t,
		Payload: payload,
		ID:      uuid.NewString(),
		Time:    time.Now(),
		Source:  source,
	}
}

// EventTopic implements TopicProvider.
func (e Event[T]) EventTopic() topic.Topic {
	return e.Topic
}

// TopicProvider is implemented by anything publishable on a Bus.
type TopicProvider interface {
	EventTopic() topic.Topic
}

package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/mudstream/internal/event/topic"
	"github.com/dshills/mudstream/internal/logging"
)

// HandlerFunc handles one event. ev is the value passed to Publish,
// normally an Event[T].
type HandlerFunc func(ctx context.Context, ev any) error

type subscription struct {
	id      string
	pattern topic.Topic
	handler HandlerFunc
}

// Bus delivers events synchronously, in subscription order, on the
// publisher's goroutine. It is safe for concurrent use.
type Bus struct {
	mu   sync.RWMutex
	subs []*subscription
	log  *logging.Logger
}

// NewBus creates an empty bus.
func NewBus(log *logging.Logger) *Bus {
	if log == nil {
		log = logging.Null
	}
	return &Bus{log: log.WithComponent("event")}
}

// Subscribe registers fn for every topic matching pattern and returns the
// subscription id.
func (b *Bus) Subscribe(pattern topic.Topic, fn HandlerFunc) (string, error) {
	if fn == nil {
		return "", ErrNilHandler
	}
	if err := pattern.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTopic, err)
	}

	sub := &subscription{id: uuid.NewString(), pattern: pattern, handler: fn}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub.id, nil
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return nil
		}
	}
	return ErrSubscriptionNotFound
}

// Count returns the number of subscriptions.
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers ev to every matching subscriber before returning.
// Handler errors are joined into the result; a panicking handler is
// recovered, logged and reported as ErrHandlerPanic.
func (b *Bus) Publish(ctx context.Context, ev any) error {
	tp, ok := ev.(TopicProvider)
	if !ok || tp.EventTopic() == "" {
		return ErrInvalidEvent
	}
	t := tp.EventTopic()

	b.mu.RLock()
	var targets []*subscription
	for _, s := range b.subs {
		if s.pattern.Matches(t) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	var errs []error
	for _, s := range targets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := b.deliver(ctx, s, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) deliver(ctx context.Context, s *subscription, ev any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("handler for %s panicked: %v", s.pattern, r)
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return s.handler(ctx, ev)
}

// Subscribe registers a handler that receives only the payload of events
// of type Event[T]; other values on matching topics are skipped.
func Subscribe[T any](b *Bus, pattern topic.Topic, fn func(ctx context.Context, payload T) error) (string, error) {
	if fn == nil {
		return "", ErrNilHandler
	}
	return b.Subscribe(pattern, func(ctx context.Context, ev any) error {
		e, ok := ev.(Event[T])
		if !ok {
			return nil
		}
		return fn(ctx, e.Payload)
	})
}

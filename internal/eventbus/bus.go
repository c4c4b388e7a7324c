// Package eventbus is a synchronous, in-process publish/subscribe mechanism
// keyed by the Go type of the event.
//
// Publish delivers an event to every handler subscribed for its type, in
// subscription order, on the publisher's goroutine. A handler that returns an
// error or panics is logged and counted, and delivery continues with the next
// handler; the publisher never sees the failure.
//
// The handler list is snapshotted under the lock and handlers run without it,
// so a handler may publish or subscribe without deadlocking the bus.
package eventbus

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/dmitrijs2005/userledger/internal/logging"
	"github.com/google/uuid"
)

// Categorized events name their own category; others are named after their Go type.
type Categorized interface {
	Category() string
}

// Recorder observes bus activity. metrics.Metrics implements it.
type Recorder interface {
	EventPublished(category string)
	HandlerFailed(category string)
}

type nopRecorder struct{}

func (nopRecorder) EventPublished(string) {}
func (nopRecorder) HandlerFailed(string)  {}

type handler struct {
	id uint64
	fn func(ctx context.Context, event any) error
}

// Bus is safe for concurrent Subscribe, Unsubscribe and Publish.
type Bus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]handler
	nextID   uint64

	logger   logging.Logger
	recorder Recorder
}

// Option configures a Bus.
type Option func(*Bus)

// WithRecorder reports publishes and handler failures to r.
func WithRecorder(r Recorder) Option {
	return func(b *Bus) {
		if r != nil {
			b.recorder = r
		}
	}
}

func New(logger logging.Logger, opts ...Option) *Bus {
	b := &Bus{
		handlers: make(map[reflect.Type][]handler),
		logger:   logger,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscription identifies one registered handler.
type Subscription struct {
	bus  *Bus
	key  reflect.Type
	id   uint64
	once sync.Once
}

// Unsubscribe removes the handler. Deliveries already in flight still reach it.
// Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s.key, s.id)
	})
}

// Subscribe registers h for events of type T.
func Subscribe[T any](b *Bus, h func(ctx context.Context, event T) error) *Subscription {
	key := reflect.TypeFor[T]()
	fn := func(ctx context.Context, event any) error {
		return h(ctx, event.(T))
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[key] = append(b.handlers[key], handler{id: id, fn: fn})
	b.mu.Unlock()

	return &Subscription{bus: b, key: key, id: id}
}

// Publish delivers event to the handlers currently subscribed for T.
func Publish[T any](ctx context.Context, b *Bus, event T) {
	key := reflect.TypeFor[T]()

	b.mu.RLock()
	snapshot := make([]handler, len(b.handlers[key]))
	copy(snapshot, b.handlers[key])
	b.mu.RUnlock()

	category := CategoryOf(event)
	b.recorder.EventPublished(category)

	if len(snapshot) == 0 {
		return
	}

	deliveryID := uuid.NewString()
	for _, h := range snapshot {
		b.invoke(ctx, category, deliveryID, h, event)
	}
}

// CategoryOf returns the category name used in logs and metrics.
func CategoryOf(event any) string {
	if c, ok := event.(Categorized); ok {
		return c.Category()
	}
	return reflect.TypeOf(event).String()
}

func (b *Bus) invoke(ctx context.Context, category, deliveryID string, h handler, event any) {
	defer func() {
		if p := recover(); p != nil {
			b.fail(ctx, category, deliveryID, h.id, fmt.Errorf("handler panic: %v", p))
		}
	}()

	if err := h.fn(ctx, event); err != nil {
		b.fail(ctx, category, deliveryID, h.id, err)
	}
}

func (b *Bus) fail(ctx context.Context, category, deliveryID string, handlerID uint64, err error) {
	b.recorder.HandlerFailed(category)
	b.logger.Error(ctx, "event handler failed",
		"category", category,
		"delivery_id", deliveryID,
		"handler_id", handlerID,
		"error", err.Error(),
	)
}

func (b *Bus) remove(key reflect.Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.handlers[key]
	kept := make([]handler, 0, len(current))
	for _, h := range current {
		if h.id != id {
			kept = append(kept, h)
		}
	}

	if len(kept) == 0 {
		delete(b.handlers, key)
		return
	}
	b.handlers[key] = kept
}

package event

import (
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
)

// anyType is the subscription key for handlers that see every event.
const anyType = "*"

// Handler receives one published event.
type Handler func(Event)

type subscription struct {
	id      string
	handler Handler
}

// PanicHandler receives a recovered handler panic and its stack.
type PanicHandler func(eventType string, recovered any, stack []byte)

// Bus fans controller and mailbox events out to observers in the same
// process. Publish runs every handler on the caller's goroutine before it
// returns.
type Bus struct {
	mu      sync.RWMutex
	byType  map[string][]subscription
	lastID  atomic.Uint64
	onPanic PanicHandler
}

// NewBus returns an empty Bus. Handler panics go to slog.Default until
// SetPanicHandler routes them somewhere else.
func NewBus() *Bus {
	return &Bus{
		byType: make(map[string][]subscription),
		onPanic: func(eventType string, r any, stack []byte) {
			slog.Error("event handler panicked",
				"event_type", eventType, "panic", r, "stack", string(stack))
		},
	}
}

// SetPanicHandler routes recovered handler panics to h. nil is ignored.
func (b *Bus) SetPanicHandler(h PanicHandler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.onPanic = h
	b.mu.Unlock()
}

// Subscribe attaches handler to one event type, such as
// TypeExperimentCreated. The returned ID is the Unsubscribe key.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	id := "sub-" + strconv.FormatUint(b.lastID.Add(1), 10)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.byType[eventType] = append(b.byType[eventType], subscription{id: id, handler: handler})
	return id
}

// SubscribeAll attaches handler to every event type. The metrics recorder
// uses this.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(anyType, handler)
}

// Unsubscribe detaches the subscription with id and reports whether it
// existed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.byType {
		for i := range subs {
			if subs[i].id != id {
				continue
			}
			b.byType[eventType] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// Publish delivers e to the handlers for its type, then to SubscribeAll
// handlers, each group in subscription order. A panicking handler is
// reported and skipped.
func (b *Bus) Publish(e Event) {
	eventType := e.EventType()
	for _, sub := range b.handlersFor(eventType) {
		b.deliver(sub.handler, eventType, e)
	}
}

// handlersFor snapshots the handlers for eventType so delivery runs without
// the lock and handlers may subscribe or unsubscribe.
func (b *Bus) handlersFor(eventType string) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	typed, all := b.byType[eventType], b.byType[anyType]
	out := make([]subscription, 0, len(typed)+len(all))
	out = append(out, typed...)
	return append(out, all...)
}

func (b *Bus) deliver(handler Handler, eventType string, e Event) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		b.mu.RLock()
		report := b.onPanic
		b.mu.RUnlock()
		report(eventType, r, debug.Stack())
	}()
	handler(e)
}

// Clear drops every subscription.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byType = make(map[string][]subscription)
}

// SubscriptionCount reports how many subscriptions are attached.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, subs := range b.byType {
		n += len(subs)
	}
	return n
}

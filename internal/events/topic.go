// Package events provides the typed fan-out used between the push channel,
// the notification poller and their consumers.
package events

import (
	"fmt"
	"log/slog"
	"sync"
)

// Subscription removes the handler it was returned for. Calling it more than
// once is a no-op.
type Subscription func()

type entry[T any] struct {
	id uint64
	fn func(T)
}

// Topic is an ordered list of handlers for one event category.
type Topic[T any] struct {
	name   string
	logger *slog.Logger
	// onFault is called with the recovered value when a handler panics
	onFault func(name string, recovered any)

	mu       sync.Mutex
	nextID   uint64
	handlers []entry[T]
}

// NewTopic creates a topic. A nil logger falls back to slog.Default().
func NewTopic[T any](name string, logger *slog.Logger) *Topic[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Topic[T]{name: name, logger: logger}
}

// Subscribe appends fn to the handler list.
func (t *Topic[T]) Subscribe(fn func(T)) Subscription {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.handlers = append(t.handlers, entry[T]{id: id, fn: fn})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.remove(id) })
	}
}

func (t *Topic[T]) remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, h := range t.handlers {
		if h.id == id {
			t.handlers = append(t.handlers[:i:i], t.handlers[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscribed handlers.
func (t *Topic[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handlers)
}

// Publish delivers v to every handler subscribed at call time, in
// registration order. A panicking handler does not stop the others.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	handlers := append([]entry[T](nil), t.handlers...)
	t.mu.Unlock()

	for _, h := range handlers {
		t.call(h, v)
	}
}

func (t *Topic[T]) call(h entry[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Event handler panicked", "category", t.name, "handlerID", h.id, "panic", fmt.Sprint(r))
			if t.onFault != nil {
				t.onFault(t.name, r)
			}
		}
	}()
	h.fn(v)
}

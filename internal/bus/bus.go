// Package bus is a category-keyed publish/subscribe registry decoupling the
// connection layer from UI and business consumers. Categories are message
// types plus the fixed connection lifecycle names; the set is open.
package bus

import (
	"log"
	"sync"
)

// Handler receives every payload published under a subscribed category.
type Handler func(payload any)

// Subscription is the deregistration handle returned by Subscribe.
type Subscription struct {
	bus      *Bus
	category string
	id       uint64
}

// Unsubscribe removes the handler. Calling it more than once, or for a
// handler already removed, is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.remove(s.category, s.id)
}

type entry struct {
	id uint64
	fn Handler
}

// Bus delivers published payloads to subscribers in registration order.
// The zero value is not usable; use New.
type Bus struct {
	mu      sync.Mutex
	nextID  uint64
	entries map[string][]entry
}

func New() *Bus {
	return &Bus{entries: make(map[string][]entry)}
}

// Subscribe registers fn under category and returns its handle. Multiple
// handlers per category are delivered in the order they registered.
func (b *Bus) Subscribe(category string, fn Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.entries[category] = append(b.entries[category], entry{id: id, fn: fn})
	return &Subscription{bus: b, category: category, id: id}
}

func (b *Bus) remove(category string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.entries[category]
	for i, e := range list {
		if e.id == id {
			b.entries[category] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish invokes every handler currently registered for category,
// synchronously on the calling goroutine. The handler list is snapshotted
// up front, so handlers that subscribe or unsubscribe mid-delivery do not
// affect this publish. A panicking handler is logged and does not prevent
// delivery to the rest.
func (b *Bus) Publish(category string, payload any) {
	b.mu.Lock()
	list := b.entries[category]
	snapshot := make([]entry, len(list))
	copy(snapshot, list)
	b.mu.Unlock()

	for _, e := range snapshot {
		invoke(category, e.fn, payload)
	}
}

func invoke(category string, fn Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("bus: handler for %q panicked: %v", category, r)
		}
	}()
	fn(payload)
}

// SubscriberCount reports how many handlers are registered for category.
func (b *Bus) SubscriberCount(category string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries[category])
}

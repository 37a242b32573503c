package hostapi

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Wildcard subscribes to every event type.
const Wildcard = "*"

type subscription struct {
	eventType string
	handler   Handler
}

// Bus is an in-memory synchronous event bus. Handlers run on the
// publishing goroutine with no bus lock held; a panicking handler is
// logged and does not stop delivery.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]subscription
	// order keeps delivery in subscription order.
	order []string
	log   *logrus.Logger
	now   func() time.Time
}

// NewBus creates an empty bus.
func NewBus(log *logrus.Logger) *Bus {
	if log == nil {
		log = logrus.New()
	}
	return &Bus{
		subs: make(map[string]subscription),
		log:  log,
		now:  time.Now,
	}
}

// Subscribe registers h for eventType, or for all events with Wildcard.
func (b *Bus) Subscribe(eventType string, h Handler) string {
	id := uuid.NewString()
	b.mu.Lock()
	b.subs[id] = subscription{eventType: eventType, handler: h}
	b.order = append(b.order, id)
	b.mu.Unlock()
	return id
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[id]; !ok {
		return false
	}
	delete(b.subs, id)
	for i, sid := range b.order {
		if sid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true
}

// Publish delivers an event to matching subscribers.
func (b *Bus) Publish(eventType string, data map[string]string) {
	b.PublishEvent(Event{Type: eventType, Data: data})
}

// PublishEvent delivers ev, stamping Time when unset.
func (b *Bus) PublishEvent(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = b.now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		s := b.subs[id]
		if s.eventType == ev.Type || s.eventType == Wildcard {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, ev)
	}
}

func (b *Bus) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(logrus.Fields{"event": ev.Type, "panic": r}).Error("event handler panicked")
		}
	}()
	h(ev)
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

package runtime

import (
	"github.com/google/uuid"
)

// EventType names a well-known runtime event.
type EventType string

// Event types published by the runtime.
const (
	EventWTPUp         EventType = "wtp_up"
	EventWTPDown       EventType = "wtp_down"
	EventVBSUp         EventType = "vbs_up"
	EventVBSDown       EventType = "vbs_down"
	EventCPPUp         EventType = "cpp_up"
	EventCPPDown       EventType = "cpp_down"
	EventLVAPJoin      EventType = "lvap_join"
	EventLVAPLeave     EventType = "lvap_leave"
	EventLVAPHandover  EventType = "lvap_handover"
	EventUEJoin        EventType = "ue_join"
	EventUELeave       EventType = "ue_leave"
	EventTenantRemoved EventType = "tenant_removed"
)

// Event is one notification. Tenant is uuid.Nil for device events, which are
// delivered to every subscriber regardless of its tenant filter. Subject points
// at the registry entry the event is about; Attrs carries a flat description
// suitable for export.
type Event struct {
	Type    EventType
	Tenant  uuid.UUID
	Subject any
	Attrs   map[string]string
}

// Handler receives events on the event loop.
type Handler func(Event)

// Sink receives every published event after the subscribers have run.
type Sink interface {
	Export(Event)
}

type subscription struct {
	id      uint64
	tenant  uuid.UUID
	handler Handler
	removed bool
}

// Bus is a synchronous fan-out of events to subscribers, in subscription order.
type Bus struct {
	subs   map[EventType][]*subscription
	nextID uint64
	sinks  []Sink
	count  func(EventType)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]*subscription)}
}

// Subscribe registers h for events of type t. A non-nil tenant restricts
// delivery to that tenant's events plus global ones. The returned function
// cancels the subscription; it is safe to call from inside a handler.
func (b *Bus) Subscribe(t EventType, tenant uuid.UUID, h Handler) func() {
	b.nextID++
	sub := &subscription{id: b.nextID, tenant: tenant, handler: h}
	b.subs[t] = append(b.subs[t], sub)
	return func() { b.unsubscribe(t, sub) }
}

func (b *Bus) unsubscribe(t EventType, sub *subscription) {
	if sub.removed {
		return
	}
	sub.removed = true
	subs := b.subs[t]
	kept := make([]*subscription, 0, len(subs))
	for _, s := range subs {
		if s != sub {
			kept = append(kept, s)
		}
	}
	b.subs[t] = kept
}

// AddSink registers an exporter.
func (b *Bus) AddSink(s Sink) {
	b.sinks = append(b.sinks, s)
}

// RemoveSink detaches an exporter added with AddSink.
func (b *Bus) RemoveSink(s Sink) {
	kept := b.sinks[:0]
	for _, x := range b.sinks {
		if x != s {
			kept = append(kept, x)
		}
	}
	b.sinks = kept
}

// Publish delivers e to every matching subscriber. Subscriptions added while
// the event is being delivered do not see it.
func (b *Bus) Publish(e Event) {
	if b.count != nil {
		b.count(e.Type)
	}
	subs := append([]*subscription(nil), b.subs[e.Type]...)
	for _, s := range subs {
		if s.removed {
			continue
		}
		if s.tenant != uuid.Nil && e.Tenant != uuid.Nil && s.tenant != e.Tenant {
			continue
		}
		s.handler(e)
	}
	for _, sink := range b.sinks {
		sink.Export(e)
	}
}

// Subscribers returns the number of live subscriptions for t.
func (b *Bus) Subscribers(t EventType) int {
	return len(b.subs[t])
}

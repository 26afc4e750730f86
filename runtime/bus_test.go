package runtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type sinkFunc func(Event)

func (f sinkFunc) Export(e Event) { f(e) }

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	b := NewBus()
	var got []string
	b.Subscribe(EventWTPUp, uuid.Nil, func(Event) { got = append(got, "first") })
	b.Subscribe(EventWTPUp, uuid.Nil, func(Event) { got = append(got, "second") })
	b.Subscribe(EventWTPDown, uuid.Nil, func(Event) { got = append(got, "other") })
	b.AddSink(sinkFunc(func(Event) { got = append(got, "sink") }))

	b.Publish(Event{Type: EventWTPUp})
	assert.Equal(t, []string{"first", "second", "sink"}, got)
}

func TestBusTenantFilter(t *testing.T) {
	b := NewBus()
	mine, theirs := uuid.New(), uuid.New()
	var got []uuid.UUID
	b.Subscribe(EventLVAPJoin, mine, func(e Event) { got = append(got, e.Tenant) })

	b.Publish(Event{Type: EventLVAPJoin, Tenant: theirs})
	b.Publish(Event{Type: EventLVAPJoin, Tenant: mine})
	b.Publish(Event{Type: EventLVAPJoin})
	assert.Equal(t, []uuid.UUID{mine, uuid.Nil}, got)
}

func TestBusUnsubscribeFromHandler(t *testing.T) {
	b := NewBus()
	calls := map[string]int{}
	var cancel func()
	cancel = b.Subscribe(EventUEJoin, uuid.Nil, func(Event) {
		calls["once"]++
		cancel()
	})
	cancelLater := b.Subscribe(EventUEJoin, uuid.Nil, func(Event) { calls["always"]++ })

	b.Publish(Event{Type: EventUEJoin})
	b.Publish(Event{Type: EventUEJoin})
	assert.Equal(t, 1, calls["once"])
	assert.Equal(t, 2, calls["always"])
	assert.Equal(t, 1, b.Subscribers(EventUEJoin))

	cancelLater()
	cancelLater()
	assert.Zero(t, b.Subscribers(EventUEJoin))
}

func TestBusSkipsSubscriberRemovedMidDelivery(t *testing.T) {
	b := NewBus()
	var second func()
	ran := false
	b.Subscribe(EventVBSDown, uuid.Nil, func(Event) { second() })
	second = b.Subscribe(EventVBSDown, uuid.Nil, func(Event) { ran = true })

	b.Publish(Event{Type: EventVBSDown})
	assert.False(t, ran)
}

func TestBusCountsEvents(t *testing.T) {
	b := NewBus()
	counted := map[EventType]int{}
	b.count = func(t EventType) { counted[t]++ }

	b.Publish(Event{Type: EventCPPUp})
	b.Publish(Event{Type: EventCPPUp})
	assert.Equal(t, 2, counted[EventCPPUp])
}

type countingSink struct{ n int }

func (s *countingSink) Export(Event) { s.n++ }

func TestBusRemoveSink(t *testing.T) {
	b := NewBus()
	a, c := &countingSink{}, &countingSink{}
	b.AddSink(a)
	b.AddSink(c)
	b.Publish(Event{Type: EventWTPUp})
	b.RemoveSink(a)
	b.Publish(Event{Type: EventWTPUp})
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 2, c.n)
}

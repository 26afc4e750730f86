package eventexport

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
	"github.com/5g-empower/empower-runtime-sub001/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixed = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newExporter(t *testing.T, pub Publisher, opts ...Option) *Exporter {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixed })}, opts...)
	e, err := New(pub, "empower.events", opts...)
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	return e
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, "empower.events")
	assert.True(t, errors.IsInvalid(err))
	_, err = New(testutil.NewPublisher(), "")
	assert.True(t, errors.IsInvalid(err))
}

func TestBusEventsArePublished(t *testing.T) {
	pub := testutil.NewPublisher()
	e := newExporter(t, pub)

	bus := runtime.NewBus()
	bus.AddSink(e)
	tenant := uuid.New()
	bus.Publish(runtime.Event{Type: runtime.EventWTPUp, Attrs: map[string]string{"addr": "00:0d:b9:00:00:01"}})
	bus.Publish(runtime.Event{Type: runtime.EventLVAPJoin, Tenant: tenant, Attrs: map[string]string{"sta": "60:57:18:b1:a4:b8"}})
	require.NoError(t, e.Stop(time.Second))

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "empower.events.wtp_up", msgs[0].Subject)
	assert.Equal(t, "empower.events.lvap_join", msgs[1].Subject)

	var first, second Message
	require.NoError(t, json.Unmarshal(msgs[0].Data, &first))
	require.NoError(t, json.Unmarshal(msgs[1].Data, &second))
	assert.Nil(t, first.Tenant)
	assert.Equal(t, "00:0d:b9:00:00:01", first.Attrs["addr"])
	assert.True(t, fixed.Equal(first.Timestamp))
	require.NotNil(t, second.Tenant)
	assert.Equal(t, tenant, *second.Tenant)
}

func TestPublishFailuresAreCounted(t *testing.T) {
	pub := &testutil.Publisher{Err: stderrors.New("not connected")}
	e := newExporter(t, pub)
	e.Export(runtime.Event{Type: runtime.EventUEJoin})
	require.NoError(t, e.Stop(time.Second))

	stats := e.Stats()
	assert.Equal(t, int64(1), stats.Processed)
	assert.Equal(t, int64(1), stats.Failed)
}

type blockingPublisher struct {
	release chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (b *blockingPublisher) Publish(context.Context, string, []byte) error {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return nil
}

func TestFullQueueDropsWithoutBlocking(t *testing.T) {
	pub := &blockingPublisher{release: make(chan struct{}), entered: make(chan struct{})}
	e := newExporter(t, pub, WithQueueSize(1))

	e.Export(runtime.Event{Type: runtime.EventUEJoin})
	<-pub.entered
	e.Export(runtime.Event{Type: runtime.EventUEJoin})
	e.Export(runtime.Event{Type: runtime.EventUEJoin})
	assert.Equal(t, int64(1), e.Stats().Dropped)

	close(pub.release)
	require.NoError(t, e.Stop(time.Second))
}

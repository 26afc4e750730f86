package cache

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5g-empower/empower-runtime-sub001/metric"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestNewRejectsBadBounds(t *testing.T) {
	_, err := New[int](0, time.Second)
	assert.Error(t, err)
	_, err = New[int](1, 0)
	assert.Error(t, err)
}

func TestSetGet(t *testing.T) {
	c, err := New[string](4, time.Minute)
	require.NoError(t, err)

	isNew, err := c.Set("a", "1")
	require.NoError(t, err)
	assert.True(t, isNew)
	isNew, err = c.Set("a", "2")
	require.NoError(t, err)
	assert.False(t, isNew)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
	_, ok = c.Get("b")
	assert.False(t, ok)

	_, err = c.Set("", "x")
	assert.Error(t, err)

	s := c.Stats()
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, 1, s.Size)
	assert.InDelta(t, 0.5, s.HitRatio(), 1e-9)
}

func TestExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	var evicted []string
	c, err := New[int](4, time.Minute,
		WithClock[int](clock.now),
		WithEvictionCallback[int](func(k string, _ int) { evicted = append(evicted, k) }))
	require.NoError(t, err)

	_, _ = c.Set("a", 1)
	clock.advance(59 * time.Second)
	_, ok := c.Get("a")
	assert.True(t, ok)

	clock.advance(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"a"}, evicted)
	assert.Equal(t, 0, c.Len())
}

func TestLeastRecentlyUsedEviction(t *testing.T) {
	c, err := New[int](2, time.Minute)
	require.NoError(t, err)

	_, _ = c.Set("a", 1)
	_, _ = c.Set("b", 2)
	_, _ = c.Get("a")
	_, _ = c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestDeleteFunc(t *testing.T) {
	c, err := New[string](8, time.Minute)
	require.NoError(t, err)
	_, _ = c.Set("k1", "alice")
	_, _ = c.Set("k2", "bob")
	_, _ = c.Set("k3", "alice")

	n := c.DeleteFunc(func(_ string, v string) bool { return v == "alice" })
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Delete("k2"))
	assert.False(t, c.Delete("k2"))

	_, _ = c.Set("k4", "carol")
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	c, err := New[int](1, time.Minute, WithMetrics[int](registry, "test"))
	require.NoError(t, err)

	_, _ = c.Set("a", 1)
	_, _ = c.Get("a")
	_, _ = c.Get("b")
	_, _ = c.Set("b", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.lookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.lookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.evictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.size))

	_, err = New[int](1, time.Minute, WithMetrics[int](registry, "test"))
	assert.Error(t, err)
}

package health

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		status    Status
		healthy   bool
		degraded  bool
		unhealthy bool
	}{
		{NewHealthy("api", "ok"), true, false, false},
		{NewDegraded("nats", "reconnecting"), false, true, false},
		{NewUnhealthy("storage", "locked"), false, false, true},
		{Status{}, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.status.Status, func(t *testing.T) {
			assert.Equal(t, tt.healthy, tt.status.IsHealthy())
			assert.Equal(t, tt.healthy, tt.status.Healthy)
			assert.Equal(t, tt.degraded, tt.status.IsDegraded())
			assert.Equal(t, tt.unhealthy, tt.status.IsUnhealthy())
		})
	}
}

func TestAggregateTakesWorstLevel(t *testing.T) {
	assert.True(t, Aggregate("empower", nil).IsHealthy())

	subs := []Status{NewHealthy("lvapp", ""), NewDegraded("nats", "")}
	agg := Aggregate("empower", subs)
	assert.True(t, agg.IsDegraded())
	require.Len(t, agg.SubStatuses, 2)

	subs = append(subs, NewUnhealthy("vbsp", ""))
	assert.True(t, Aggregate("empower", subs).IsUnhealthy())

	agg.SubStatuses[0].Message = "changed"
	assert.Empty(t, subs[0].Message, "input slice is copied")
}

func TestWithSubStatusDoesNotShareSlice(t *testing.T) {
	base := NewHealthy("empower", "").WithSubStatus(NewHealthy("a", ""))
	one := base.WithSubStatus(NewHealthy("b", ""))
	two := base.WithSubStatus(NewHealthy("c", ""))
	assert.Equal(t, "b", one.SubStatuses[1].Component)
	assert.Equal(t, "c", two.SubStatuses[1].Component)
	assert.Len(t, base.SubStatuses, 1)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"dial tcp 10.0.0.1:4222: refused", "dial tcp [IP][PORT]: refused"},
		{"open /var/lib/empower.db: locked", "open [PATH]: locked"},
		{"connect nats://user:pw@broker failed", "connect [URL] failed"},
		{"password=hunter2 rejected", "[REDACTED] rejected"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), tt.in)
	}
}

func TestFromError(t *testing.T) {
	assert.True(t, FromError("storage", nil, "open").IsHealthy())
	s := FromError("storage", errors.New("open /tmp/x.db failed"), "open")
	assert.True(t, s.IsUnhealthy())
	assert.Equal(t, "open [PATH] failed", s.Message)
}

func TestMonitorCheck(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("api", "listening")
	m.UpdateDegraded("nats", "reconnecting")
	m.Register("lvapp", func(context.Context) Status { return NewHealthy("", "3 sessions") })
	m.Register("nats", func(context.Context) Status { return NewHealthy("", "connected") })

	assert.Equal(t, []string{"api", "lvapp", "nats"}, m.Names())

	s := m.Check(context.Background(), "empower")
	assert.True(t, s.IsHealthy(), "probe overrides pushed status")
	require.Len(t, s.SubStatuses, 3)
	assert.Equal(t, "lvapp", s.SubStatuses[1].Component)

	m.Remove("nats")
	m.UpdateUnhealthy("api", "bind failed")
	assert.True(t, m.Check(context.Background(), "empower").IsUnhealthy())
	got, ok := m.Get("api")
	require.True(t, ok)
	assert.Equal(t, "bind failed", got.Message)
}

func TestMonitorConcurrentAccess(t *testing.T) {
	m := NewMonitor()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.UpdateHealthy("svc", "ok")
		}()
		go func() {
			defer wg.Done()
			_ = m.Check(context.Background(), "empower")
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"svc"}, m.Names())
}

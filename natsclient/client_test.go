package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/metric"
	"github.com/5g-empower/empower-runtime-sub001/pkg/retry"
)

// unreachable refuses connections immediately.
const unreachable = "nats://127.0.0.1:1"

func fastRetry(attempts int) retry.Config {
	return retry.Config{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
	assert.Equal(t, time.Second, c.Backoff())

	_, err = NewClient("")
	assert.True(t, errors.IsInvalid(err))
	_, err = NewClient("nats://localhost:4222", WithCircuitBreakerThreshold(0))
	assert.True(t, errors.IsInvalid(err))
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	c, err := NewClient(unreachable, WithCircuitBreakerThreshold(3))
	require.NoError(t, err)

	c.recordFailure()
	c.recordFailure()
	assert.NotEqual(t, StatusCircuitOpen, c.Status())

	c.recordFailure()
	assert.Equal(t, StatusCircuitOpen, c.Status())
	assert.Equal(t, int32(3), c.Failures())
	assert.Equal(t, 2*time.Second, c.Backoff())

	c.halfOpen()
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestBackoffIsCapped(t *testing.T) {
	c, err := NewClient(unreachable, WithCircuitBreakerThreshold(1), WithMaxBackoff(3*time.Second))
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		c.recordFailure()
	}
	assert.Equal(t, 3*time.Second, c.Backoff())

	c.resetCircuit()
	assert.Zero(t, c.Failures())
	assert.Equal(t, time.Second, c.Backoff())
}

func TestConnectRetriesThenFails(t *testing.T) {
	c, err := NewClient(unreachable,
		WithRetry(fastRetry(2)),
		WithTimeout(200*time.Millisecond),
		WithCircuitBreakerThreshold(10))
	require.NoError(t, err)

	err = c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, int32(2), c.Failures())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.GetStatus().LastFailureTime.IsZero())
}

func TestConnectFailsFastWhenCircuitOpen(t *testing.T) {
	c, err := NewClient(unreachable,
		WithRetry(fastRetry(5)),
		WithTimeout(200*time.Millisecond),
		WithCircuitBreakerThreshold(1))
	require.NoError(t, err)

	err = c.Connect(context.Background())
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(1), c.Failures())

	err = c.Connect(context.Background())
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(1), c.Failures())
}

func TestPublishRequiresConnection(t *testing.T) {
	c, err := NewClient(unreachable)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Publish(context.Background(), "empower.events.test", []byte("{}")), ErrNotConnected)
	_, err = c.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestCloseIsIdempotent(t *testing.T) {
	c, err := NewClient(unreachable, WithToken("secret"))
	require.NoError(t, err)

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, StatusClosed, c.Status())
	assert.Empty(t, c.token)
	assert.ErrorIs(t, c.Publish(context.Background(), "x", nil), ErrClosed)

	err = c.Connect(context.Background())
	assert.True(t, errors.IsFatal(err))
}

func TestWithMetricsRegistersOnce(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	c, err := NewClient(unreachable, WithMetrics(reg))
	require.NoError(t, err)
	require.NotNil(t, c.metrics)

	_, err = NewClient(unreachable, WithMetrics(reg))
	assert.Error(t, err)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}

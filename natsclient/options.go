package natsclient

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/metric"
	"github.com/5g-empower/empower-runtime-sub001/pkg/retry"
)

// ClientOption is a functional option for configuring the Client
type ClientOption func(*Client) error

// WithLogger sets the parent logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithMaxReconnects sets the maximum number of reconnection attempts (-1 for infinite)
func WithMaxReconnects(maxReconnects int) ClientOption {
	return func(c *Client) error {
		c.maxReconnects = maxReconnects
		return nil
	}
}

// WithReconnectWait sets the wait time between reconnection attempts
func WithReconnectWait(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d < 0 {
			return errors.Invalidf(errors.ErrInvalidConfig, "reconnect wait %v", d)
		}
		c.reconnectWait = d
		return nil
	}
}

// WithPingInterval sets the server ping interval
func WithPingInterval(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.pingInterval = d
		return nil
	}
}

// WithTimeout sets the dial timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.timeout = d
		return nil
	}
}

// WithDrainTimeout bounds how long Close waits for buffered messages
func WithDrainTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.drainTimeout = d
		return nil
	}
}

// WithRetry replaces the connect retry policy
func WithRetry(cfg retry.Config) ClientOption {
	return func(c *Client) error {
		c.retryConfig = cfg
		return nil
	}
}

// WithCircuitBreakerThreshold sets the failures needed to open the circuit
func WithCircuitBreakerThreshold(threshold int32) ClientOption {
	return func(c *Client) error {
		if threshold < 1 {
			return errors.Invalidf(errors.ErrInvalidConfig, "circuit threshold %d", threshold)
		}
		c.circuitThreshold = threshold
		return nil
	}
}

// WithMaxBackoff caps the circuit breaker backoff
func WithMaxBackoff(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return errors.Invalidf(errors.ErrInvalidConfig, "max backoff %v", d)
		}
		c.maxBackoff = d
		return nil
	}
}

// WithCredentials sets user/password authentication
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithToken sets token authentication
func WithToken(token string) ClientOption {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithTLS secures the connection with cfg. A nil cfg is ignored.
func WithTLS(cfg *tls.Config) ClientOption {
	return func(c *Client) error {
		c.tlsConfig = cfg
		return nil
	}
}

// WithName sets the connection name shown by the server
func WithName(name string) ClientOption {
	return func(c *Client) error {
		c.name = name
		return nil
	}
}

// WithHealthChangeCallback sets a callback for health transitions
func WithHealthChangeCallback(fn func(healthy bool)) ClientOption {
	return func(c *Client) error {
		c.onHealthChange = fn
		return nil
	}
}

// WithMetrics registers publish counters and the connection status gauge.
func WithMetrics(registrar metric.MetricsRegistrar) ClientOption {
	return func(c *Client) error {
		if registrar == nil {
			return nil
		}
		m := &clientMetrics{
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "empower",
				Subsystem: "nats",
				Name:      "published_total",
				Help:      "Messages published to NATS by subject",
			}, []string{"subject"}),
			status: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "empower",
				Subsystem: "nats",
				Name:      "connection_status",
				Help:      "NATS connection status (0 disconnected, 2 connected, 4 circuit open)",
			}),
		}
		if err := registrar.RegisterCounterVec("nats", "published_total", m.published); err != nil {
			return err
		}
		if err := registrar.RegisterGauge("nats", "connection_status", m.status); err != nil {
			return err
		}
		c.metrics = m
		return nil
	}
}

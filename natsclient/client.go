package natsclient

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/pkg/retry"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int32

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
	StatusClosed
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Error messages
var (
	ErrNotConnected = stderrors.New("not connected to NATS")
	ErrCircuitOpen  = stderrors.New("circuit breaker is open")
	ErrClosed       = stderrors.New("client is closed")
)

// Status holds runtime status information for the client
type Status struct {
	Status          ConnectionStatus
	FailureCount    int32
	LastFailureTime time.Time
	Reconnects      uint64
	Published       uint64
	RTT             time.Duration
}

// Client manages one NATS connection used for publishing.
type Client struct {
	url    string
	logger *slog.Logger

	status      atomic.Int32
	failures    atomic.Int32
	lastFailure atomic.Value // time.Time
	backoff     atomic.Int64 // time.Duration

	circuitFailures  atomic.Int32
	circuitThreshold int32
	maxBackoff       time.Duration

	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	retryConfig   retry.Config

	username string
	password string
	token    string
	name     string

	tlsConfig *tls.Config

	published  atomic.Uint64
	reconnects atomic.Uint64
	metrics    *clientMetrics

	onHealthChange func(bool)

	mu     sync.RWMutex
	conn   *nats.Conn
	closed atomic.Bool
}

type clientMetrics struct {
	published *prometheus.CounterVec
	status    prometheus.Gauge
}

// NewClient creates a new NATS client. It does not connect.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Client", "NewClient", "url validation")
	}
	c := &Client{
		url:              url,
		logger:           slog.Default(),
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		pingInterval:     30 * time.Second,
		circuitThreshold: 5,
		maxBackoff:       time.Minute,
		timeout:          5 * time.Second,
		drainTimeout:     10 * time.Second,
		retryConfig:      retry.Quick(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}
	c.logger = c.logger.With("component", "nats", "url", url)
	c.setStatus(StatusDisconnected)
	c.backoff.Store(int64(time.Second))
	c.lastFailure.Store(time.Time{})
	return c, nil
}

// URL returns the NATS server URL
func (c *Client) URL() string { return c.url }

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	return ConnectionStatus(c.status.Load())
}

func (c *Client) setStatus(s ConnectionStatus) {
	c.status.Store(int32(s))
	if c.metrics != nil {
		c.metrics.status.Set(float64(s))
	}
}

// IsHealthy returns true if the connection is usable
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Failures returns the failure count since the last successful connect
func (c *Client) Failures() int32 { return c.failures.Load() }

// Backoff returns the current circuit breaker backoff
func (c *Client) Backoff() time.Duration { return time.Duration(c.backoff.Load()) }

// OnHealthChange sets a callback for health transitions. Callbacks run on
// their own goroutine.
func (c *Client) OnHealthChange(fn func(bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onHealthChange = fn
}

func (c *Client) notifyHealth(healthy bool) {
	c.mu.RLock()
	fn := c.onHealthChange
	c.mu.RUnlock()
	if fn != nil {
		go fn(healthy)
	}
}

// recordFailure counts a failed connect and opens the circuit once the
// threshold is crossed. The circuit half-opens again after the backoff.
func (c *Client) recordFailure() {
	total := c.failures.Add(1)
	c.lastFailure.Store(time.Now())
	round := c.circuitFailures.Add(1)
	c.logger.Debug("Connect failure recorded", "failures", total, "round", round)

	if round < c.circuitThreshold {
		return
	}
	c.circuitFailures.Store(0)
	current := c.Backoff()
	next := current * 2
	if next > c.maxBackoff {
		next = c.maxBackoff
	}
	c.backoff.Store(int64(next))

	prev := c.status.Load()
	if prev != int32(StatusCircuitOpen) && c.status.CompareAndSwap(prev, int32(StatusCircuitOpen)) {
		c.logger.Warn("Circuit breaker opened", "failures", round, "backoff", current)
		time.AfterFunc(current, c.halfOpen)
	}
}

func (c *Client) halfOpen() {
	if c.status.CompareAndSwap(int32(StatusCircuitOpen), int32(StatusDisconnected)) {
		c.logger.Debug("Circuit breaker half-open")
	}
}

func (c *Client) resetCircuit() {
	c.failures.Store(0)
	c.circuitFailures.Store(0)
	c.backoff.Store(int64(time.Second))
	c.lastFailure.Store(time.Time{})
}

func (c *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleError),
	}
	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.name != "" {
		opts = append(opts, nats.Name(c.name))
	}
	if c.tlsConfig != nil {
		opts = append(opts, nats.Secure(c.tlsConfig))
	}
	return opts
}

// Connect dials the server, retrying transient failures. An open circuit
// fails fast.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return errors.WrapFatal(ErrClosed, "Client", "Connect", "closed check")
	}
	cfg := c.retryConfig
	cfg.ShouldRetry = func(err error) bool { return !stderrors.Is(err, ErrCircuitOpen) && retry.Retryable(err) }
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.logger.Warn("NATS connect failed, retrying", "attempt", attempt, "delay", delay, "error", err)
	}
	return retry.Do(ctx, cfg, func() error { return c.connectOnce(ctx) })
}

func (c *Client) connectOnce(ctx context.Context) error {
	if c.Status() == StatusCircuitOpen {
		return ErrCircuitOpen
	}
	c.setStatus(StatusConnecting)

	type result struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan result, 1)
	opts := c.connectionOptions()
	go func() {
		conn, err := nats.Connect(c.url, opts...)
		done <- result{conn, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		res.err = ctx.Err()
	}
	if res.err != nil {
		c.recordFailure()
		if c.Status() == StatusCircuitOpen {
			return ErrCircuitOpen
		}
		c.setStatus(StatusDisconnected)
		if ctx.Err() != nil {
			return errors.WrapFatal(res.err, "Client", "Connect", "connection cancelled")
		}
		return errors.WrapTransient(res.err, "Client", "Connect", "establish connection")
	}

	c.mu.Lock()
	c.conn = res.conn
	c.mu.Unlock()
	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.logger.Info("Connected to NATS")
	c.notifyHealth(true)
	return nil
}

// Publish sends data on subject. It never blocks on the network; the
// underlying connection buffers while reconnecting.
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil || conn.IsClosed() {
		return ErrNotConnected
	}
	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "Publish", "publish "+subject)
	}
	c.published.Add(1)
	if c.metrics != nil {
		c.metrics.published.WithLabelValues(subject).Inc()
	}
	return nil
}

// RTT returns the round-trip time to the server
func (c *Client) RTT() (time.Duration, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return 0, ErrNotConnected
	}
	return conn.RTT()
}

// GetStatus returns a snapshot of the client state
func (c *Client) GetStatus() Status {
	s := Status{
		Status:          c.Status(),
		FailureCount:    c.failures.Load(),
		LastFailureTime: c.lastFailure.Load().(time.Time),
		Reconnects:      c.reconnects.Load(),
		Published:       c.published.Load(),
	}
	if rtt, err := c.RTT(); err == nil {
		s.RTT = rtt
	}
	return s
}

// Close drains the connection. Further calls are no-ops.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	c.setStatus(StatusClosed)
	c.password, c.token = "", ""
	if conn == nil {
		return nil
	}

	drained := make(chan error, 1)
	go func() { drained <- conn.Drain() }()
	select {
	case err := <-drained:
		if err != nil {
			conn.Close()
			return errors.WrapTransient(err, "Client", "Close", "drain connection")
		}
		return nil
	case <-ctx.Done():
		conn.Close()
		return errors.WrapTransient(ctx.Err(), "Client", "Close", "drain connection")
	}
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	if c.closed.Load() {
		return
	}
	c.setStatus(StatusReconnecting)
	c.logger.Warn("Disconnected from NATS", "error", err)
	c.notifyHealth(false)
}

func (c *Client) handleReconnect(_ *nats.Conn) {
	c.reconnects.Add(1)
	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.logger.Info("Reconnected to NATS")
	c.notifyHealth(true)
}

func (c *Client) handleClosed(_ *nats.Conn) {
	if c.closed.Load() {
		return
	}
	c.setStatus(StatusDisconnected)
	c.notifyHealth(false)
}

func (c *Client) handleError(_ *nats.Conn, _ *nats.Subscription, err error) {
	c.logger.Error("NATS error", "error", err)
}

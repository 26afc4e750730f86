package southbound

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/metric"
	"github.com/5g-empower/empower-runtime-sub001/pkg/loop"
)

// Close reasons reported in logs and the connection_closes_total metric.
const (
	ReasonPeerClosed   = "peer closed"
	ReasonReadError    = "read error"
	ReasonWriteError   = "write error"
	ReasonDecodeError  = "decode error"
	ReasonHandlerError = "handler error"
	ReasonTimeout      = "hello timeout"
	ReasonQueueFull    = "outbound queue full"
	ReasonShutdown     = "controller shutdown"
	ReasonLoopStopped  = "event loop stopped"
)

// Default session settings.
const (
	DefaultWatchdogInterval = 500 * time.Millisecond
	DefaultFallbackPeriod   = 2 * time.Second
	DefaultQueueSize        = 1024
	DefaultWriteTimeout     = 5 * time.Second
)

// Inbound is a decoded frame waiting to be handled.
type Inbound struct {
	Type string
	Msg  any
}

// Handler binds a Conn to one protocol. Decode runs on the reader goroutine;
// every other method runs on the event loop.
type Handler interface {
	// Decode parses one frame read from the device. Errors close the session.
	Decode(frame []byte) (Inbound, error)
	// Encode builds the frame carrying msg under sequence number seq and
	// names its type.
	Encode(seq uint32, msg any) ([]byte, string, error)
	// Handle applies a decoded frame. Errors close the session.
	Handle(in Inbound) error
	// Liveness reports when the bound device was last heard and its hello
	// period. ok is false until a hello has bound the session.
	Liveness() (lastSeen time.Time, period time.Duration, ok bool)
	// Closed tears the session down. It runs exactly once, after the last
	// Handle.
	Closed()
}

// Executor runs tasks on the event loop.
type Executor interface {
	Submit(ctx context.Context, task loop.Task) error
}

// Options tunes device sessions. Zero values take the defaults.
type Options struct {
	WatchdogInterval time.Duration
	FallbackPeriod   time.Duration
	QueueSize        int
	WriteTimeout     time.Duration
	Logger           *slog.Logger
	Metrics          *metric.CoreMetrics
	Now              func() time.Time
}

func (o Options) withDefaults() Options {
	if o.WatchdogInterval <= 0 {
		o.WatchdogInterval = DefaultWatchdogInterval
	}
	if o.FallbackPeriod <= 0 {
		o.FallbackPeriod = DefaultFallbackPeriod
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Conn is one device session. It implements runtime.Link.
type Conn struct {
	protocol  string
	transport Transport
	handler   Handler
	exec      Executor
	opts      Options
	logger    *slog.Logger
	opened    time.Time

	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	reason    string

	unknown *rate.Limiter
}

// NewConn wraps transport. newHandler receives the Conn so the handler can
// hand it to the runtime as the session link.
func NewConn(protocol string, transport Transport, exec Executor, newHandler func(*Conn) Handler, opts Options) *Conn {
	opts = opts.withDefaults()
	c := &Conn{
		protocol:  protocol,
		transport: transport,
		exec:      exec,
		opts:      opts,
		logger:    opts.Logger.With("component", protocol, "remote", transport.RemoteAddr()),
		opened:    opts.Now(),
		out:       make(chan []byte, opts.QueueSize),
		closed:    make(chan struct{}),
		unknown:   rate.NewLimiter(rate.Every(time.Second), 5),
	}
	c.handler = newHandler(c)
	return c
}

// Logger returns the session logger.
func (c *Conn) Logger() *slog.Logger { return c.logger }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string { return c.transport.RemoteAddr() }

// Done is closed once the session is closed.
func (c *Conn) Done() <-chan struct{} { return c.closed }

// Reason returns why the session closed, or "" while it is open.
func (c *Conn) Reason() string {
	select {
	case <-c.closed:
		return c.reason
	default:
		return ""
	}
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Send encodes msg and queues it for the writer. Frames leave in call order.
// A full queue closes the session.
func (c *Conn) Send(seq uint32, msg any) error {
	if c.isClosed() {
		return errors.WrapTransient(errors.ErrConnectionLost, c.protocol, "Send", c.RemoteAddr())
	}
	frame, name, err := c.handler.Encode(seq, msg)
	if err != nil {
		return err
	}
	select {
	case c.out <- frame:
	default:
		c.Close(ReasonQueueFull)
		return errors.WrapTransient(errors.ErrQueueFull, c.protocol, "Send", c.RemoteAddr())
	}
	c.logger.Debug("Frame queued", "type", name, "seq", seq, "bytes", len(frame))
	if c.opts.Metrics != nil {
		c.opts.Metrics.FramesSent.WithLabelValues(c.protocol, name).Inc()
	}
	return nil
}

// Close ends the session. Only the first reason is kept.
func (c *Conn) Close(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.closed)
		_ = c.transport.Close()
		c.logger.Info("Session closed", "reason", reason)
		if c.opts.Metrics != nil {
			c.opts.Metrics.ConnectionCloses.WithLabelValues(c.protocol, reason).Inc()
		}
	})
}

// Unknown logs a frame type the handler does not know, at most a few times a
// second per session.
func (c *Conn) Unknown(kind string) {
	if c.unknown.Allow() {
		c.logger.Warn("Unknown frame dropped", "type", kind)
	}
}

// Run serves the session until it closes or ctx is cancelled, then submits
// the handler teardown to the loop.
func (c *Conn) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()
	go func() {
		defer wg.Done()
		c.watchdog(ctx)
	}()
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			c.Close(ReasonShutdown)
		case <-c.closed:
		}
	}()

	c.Close(c.readLoop(ctx))
	cancel()
	wg.Wait()

	if err := c.exec.Submit(context.Background(), c.handler.Closed); err != nil {
		c.logger.Warn("Session teardown not run", "error", err)
	}
}

// readLoop returns the close reason.
func (c *Conn) readLoop(ctx context.Context) string {
	for {
		frame, err := c.transport.ReadFrame()
		if err != nil {
			switch {
			case c.isClosed():
				return c.reason
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				return ReasonPeerClosed
			default:
				c.logger.Warn("Read failed", "error", err)
				return ReasonReadError
			}
		}
		in, err := c.handler.Decode(frame)
		if err != nil {
			c.logger.Warn("Invalid frame", "error", err, "bytes", len(frame))
			return ReasonDecodeError
		}
		if c.opts.Metrics != nil {
			c.opts.Metrics.FramesReceived.WithLabelValues(c.protocol, in.Type).Inc()
		}
		if err := c.exec.Submit(ctx, func() { c.handle(in) }); err != nil {
			if c.isClosed() {
				return c.reason
			}
			return ReasonLoopStopped
		}
	}
}

func (c *Conn) handle(in Inbound) {
	if c.isClosed() {
		return
	}
	if err := c.handler.Handle(in); err != nil {
		c.logger.Warn("Frame rejected", "type", in.Type, "error", err)
		c.Close(ReasonHandlerError)
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case frame := <-c.out:
			if err := c.transport.WriteFrame(frame); err != nil {
				if !c.isClosed() {
					c.logger.Warn("Write failed", "error", err)
				}
				c.Close(ReasonWriteError)
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Conn) watchdog(ctx context.Context) {
	ticker := time.NewTicker(c.opts.WatchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.exec.Submit(ctx, c.checkLiveness); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// checkLiveness closes the session when nothing was heard for more than
// three hello periods. Unbound sessions count from when they were opened.
func (c *Conn) checkLiveness() {
	if c.isClosed() {
		return
	}
	last, period, ok := c.handler.Liveness()
	if !ok {
		last = c.opened
	}
	if period <= 0 {
		period = c.opts.FallbackPeriod
	}
	if silent := c.opts.Now().Sub(last); silent > 3*period {
		c.logger.Warn("Device silent, closing session", "silent", silent, "period", period)
		c.Close(ReasonTimeout)
	}
}

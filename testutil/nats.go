package testutil

import (
	"context"
	"sync"
	"testing"
	"time"
)

// Published is one message handed to a Publisher.
type Published struct {
	Subject string
	Data    []byte
}

// Publisher is an in-memory stand-in for the NATS client on the publish
// path. Thread-safe for concurrent use.
type Publisher struct {
	mu   sync.Mutex
	msgs []Published
	// Err, when set, is returned by every Publish and nothing is recorded.
	Err error
}

// NewPublisher creates an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish records data under subject.
func (p *Publisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.msgs = append(p.msgs, Published{Subject: subject, Data: append([]byte(nil), data...)})
	return nil
}

// Messages returns everything published so far in order.
func (p *Publisher) Messages() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published(nil), p.msgs...)
}

// Subject returns the payloads published on subject.
func (p *Publisher) Subject(subject string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out [][]byte
	for _, m := range p.msgs {
		if m.Subject == subject {
			out = append(out, m.Data)
		}
	}
	return out
}

// WaitForCount fails t unless at least n messages arrive within timeout.
func (p *Publisher) WaitForCount(t *testing.T, n int, timeout time.Duration) []Published {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		msgs := p.Messages()
		if len(msgs) >= n {
			return msgs
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %d published messages, want %d", len(msgs), n)
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
}

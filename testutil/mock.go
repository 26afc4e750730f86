package testutil

import (
	"sync"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/pkg/loop"
)

// Sent is one frame handed to a Link.
type Sent struct {
	Seq uint32
	Msg any
}

// Link is an in-memory runtime.Link recording everything sent on it.
// Thread-safe for concurrent use.
type Link struct {
	mu     sync.Mutex
	name   string
	sent   []Sent
	closed string
	// SendErr, when set, is returned by every Send.
	SendErr error
}

// NewLink creates a link reporting name as its remote address.
func NewLink(name string) *Link {
	return &Link{name: name}
}

// Send records msg.
func (l *Link) Send(seq uint32, msg any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.SendErr != nil {
		return l.SendErr
	}
	l.sent = append(l.sent, Sent{Seq: seq, Msg: msg})
	return nil
}

// Close records the close reason.
func (l *Link) Close(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = reason
}

// RemoteAddr implements runtime.Link.
func (l *Link) RemoteAddr() string { return l.name }

// Sent returns a copy of every recorded frame.
func (l *Link) Sent() []Sent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Sent(nil), l.sent...)
}

// Closed returns the close reason, empty while open.
func (l *Link) Closed() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Reset forgets recorded frames.
func (l *Link) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = nil
}

// SentOf returns the recorded messages of type T.
func SentOf[T any](l *Link) []T {
	var out []T
	for _, s := range l.Sent() {
		if m, ok := s.Msg.(T); ok {
			out = append(out, m)
		}
	}
	return out
}

// Scheduler records timer tasks instead of running them; tests fire them
// by hand. It satisfies the module framework's scheduler.
type Scheduler struct {
	mu     sync.Mutex
	tasks  []loop.Task
	delays []time.Duration
}

// AfterFunc records task. The returned timer never fires task.
func (s *Scheduler) AfterFunc(d time.Duration, task loop.Task) *time.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
	s.delays = append(s.delays, d)
	return time.AfterFunc(time.Hour, func() {})
}

// Pending returns how many tasks were scheduled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// LastDelay returns the delay of the most recent task.
func (s *Scheduler) LastDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.delays) == 0 {
		return 0
	}
	return s.delays[len(s.delays)-1]
}

// FireLast runs the most recent task on the calling goroutine.
func (s *Scheduler) FireLast() {
	s.mu.Lock()
	task := s.tasks[len(s.tasks)-1]
	s.mu.Unlock()
	task()
}

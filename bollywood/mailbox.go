// File: bollywood/mailbox.go
package bollywood

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrMailboxClosed is returned when posting to, or blocking on, a closed mailbox.
var ErrMailboxClosed = errors.New("mailbox closed")

// Mailbox is an unbounded, ordered queue of messages. Any number of goroutines
// may post; only the owning actor receives.
type Mailbox struct {
	mu     sync.Mutex
	queue  []Message
	signal chan struct{} // Closed and replaced every time the queue grows
	closed chan struct{}
	once   sync.Once
}

// NewMailbox creates an empty, open mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		signal: make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// Put appends a message. It never blocks.
func (m *Mailbox) Put(msg Message) error {
	select {
	case <-m.closed:
		return ErrMailboxClosed
	default:
	}

	m.mu.Lock()
	m.queue = append(m.queue, msg)
	close(m.signal)
	m.signal = make(chan struct{})
	m.mu.Unlock()
	return nil
}

// Len returns the number of queued messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close rejects further posts and wakes every blocked receiver. Messages
// already queued can still be drained with Poll or Take.
func (m *Mailbox) Close() {
	m.once.Do(func() { close(m.closed) })
}

// Closed returns a channel that is closed once the mailbox is closed.
func (m *Mailbox) Closed() <-chan struct{} { return m.closed }

// next removes the first message accepted by match. When nothing matches it
// returns the channel that will be closed by the next Put.
func (m *Mailbox) next(match func(Message) bool) (Message, bool, <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, msg := range m.queue {
		if match == nil || match(msg) {
			copy(m.queue[i:], m.queue[i+1:])
			m.queue[len(m.queue)-1] = Message{}
			m.queue = m.queue[:len(m.queue)-1]
			return msg, true, nil
		}
	}
	return Message{}, false, m.signal
}

// wait blocks until a message accepted by match is available, the deadline
// channel fires, ctx is cancelled or the mailbox is closed and drained.
func (m *Mailbox) wait(ctx context.Context, match func(Message) bool, deadline <-chan time.Time) (Message, error) {
	for {
		msg, ok, signal := m.next(match)
		if ok {
			return msg, nil
		}
		select {
		case <-signal:
		case <-deadline:
			return Message{}, context.DeadlineExceeded
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-m.closed:
			// Drain whatever was queued before the close.
			if msg, ok, _ := m.next(match); ok {
				return msg, nil
			}
			return Message{}, ErrMailboxClosed
		}
	}
}

// Take blocks until the next message arrives.
func (m *Mailbox) Take(ctx context.Context) (Message, error) {
	return m.wait(ctx, nil, nil)
}

// Poll waits up to d for the next message. A non-positive d only inspects
// what is already queued.
func (m *Mailbox) Poll(ctx context.Context, d time.Duration) (Message, bool) {
	return m.timed(ctx, nil, d)
}

// ReceiveMatching waits up to d for the first message with the given
// performative. Messages of any other performative stay queued in their
// arrival order, ahead of anything posted while the scan was running, so a
// later receive (or a second consumer filtering on a different performative)
// still observes them. Cancellation never loses a message.
func (m *Mailbox) ReceiveMatching(ctx context.Context, performative Performative, d time.Duration) (Message, bool) {
	return m.timed(ctx, func(msg Message) bool { return msg.Performative == performative }, d)
}

func (m *Mailbox) timed(ctx context.Context, match func(Message) bool, d time.Duration) (Message, bool) {
	if d <= 0 {
		msg, ok, _ := m.next(match)
		return msg, ok
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	msg, err := m.wait(ctx, match, timer.C)
	return msg, err == nil
}

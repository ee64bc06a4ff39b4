// File: market/events.go
package market

import (
	"regexp"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventKind is the topic an Event is published under.
type EventKind string

const (
	RoundStarted          EventKind = "round-started"
	ProposalReceived      EventKind = "proposal-received"
	PurchaseCompleted     EventKind = "purchase-completed"
	PurchaseRefused       EventKind = "purchase-refused"
	NegotiationTerminated EventKind = "negotiation-terminated"
	CatalogueChanged      EventKind = "catalogue-changed"
)

// Event is an observable marketplace milestone. Actors publish them; the
// observer surfaces only read them.
type Event struct {
	Kind           EventKind `json:"kind"`
	Actor          string    `json:"actor"`
	Title          string    `json:"title,omitempty"`
	Seller         string    `json:"seller,omitempty"`
	Price          int       `json:"price,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Subscription receives the events matching its pattern until cancelled.
type Subscription struct {
	C       <-chan Event
	ch      chan Event
	pattern *regexp.Regexp
	bus     *Bus
	once    sync.Once
}

// Cancel detaches the subscription and closes C.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.bus.unsubscribe(s)
		close(s.ch)
	})
}

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses the event. A nil *Bus discards everything.
type Bus struct {
	mu          sync.Mutex
	subscribers []*Subscription
	log         *logrus.Entry
}

// NewBus creates an empty bus.
func NewBus(logger *logrus.Logger) *Bus {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Bus{log: logger.WithField("component", "bus")}
}

// Subscribe registers interest in topics matching pattern. An empty pattern
// matches every topic.
func (b *Bus) Subscribe(pattern string, buffer int) (*Subscription, error) {
	var rx *regexp.Regexp
	if pattern != "" {
		var err error
		rx, err = regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
	}
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch, pattern: rx, bus: b}

	b.mu.Lock()
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()
	return sub, nil
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subscribers {
		if s == sub {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Publish stamps ev and hands it to every matching subscriber.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscribers {
		if sub.pattern != nil && !sub.pattern.MatchString(string(ev.Kind)) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.log.Warnf("Subscriber buffer full, dropping %s event", ev.Kind)
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

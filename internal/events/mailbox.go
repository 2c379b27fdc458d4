package events

import (
	"context"
	"errors"
	"sync"
)

// ErrMailboxClosed is returned by Next once the mailbox is closed and drained.
var ErrMailboxClosed = errors.New("mailbox closed")

// Delivery is one message received from the Bus.
type Delivery struct {
	Topic   []byte
	Message []byte
}

// Mailbox is an unbounded FIFO Receiver. Receive never blocks, so a slow
// consumer delays its own deliveries without stalling publishers or dropping
// messages.
type Mailbox struct {
	mu     sync.Mutex
	queue  []Delivery
	notify chan struct{}
	closed bool
}

func NewMailbox() *Mailbox {
	return &Mailbox{notify: make(chan struct{}, 1)}
}

// Receive implements script.Receiver.
func (m *Mailbox) Receive(topic, message []byte) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, Delivery{Topic: topic, Message: message})
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a delivery is available, the mailbox is closed, or ctx
// is done.
func (m *Mailbox) Next(ctx context.Context) (Delivery, error) {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			d := m.queue[0]
			m.queue[0] = Delivery{}
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return d, nil
		}
		closed := m.closed
		m.mu.Unlock()

		if closed {
			return Delivery{}, ErrMailboxClosed
		}

		select {
		case <-ctx.Done():
			return Delivery{}, ctx.Err()
		case <-m.notify:
		}
	}
}

// Len returns the number of queued deliveries.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close stops accepting deliveries. Queued ones can still be drained.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

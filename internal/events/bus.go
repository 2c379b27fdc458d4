package events

import (
	"sync"

	"github.com/google/uuid"

	"github.com/mattjoyce/pumpkin/internal/script"
)

// SubscriptionID identifies one Subscribe call.
type SubscriptionID = uuid.UUID

type subscription struct {
	topic    string
	receiver script.Receiver
}

// Bus routes messages published to a topic to every receiver subscribed to
// it. Publish never blocks: receivers queue deliveries themselves.
type Bus struct {
	mu     sync.RWMutex
	subs   map[SubscriptionID]subscription
	topics map[string]map[SubscriptionID]script.Receiver
}

func NewBus() *Bus {
	return &Bus{
		subs:   make(map[SubscriptionID]subscription),
		topics: make(map[string]map[SubscriptionID]script.Receiver),
	}
}

// Subscribe delivers future messages on topic to r.
func (b *Bus) Subscribe(topic []byte, r script.Receiver) SubscriptionID {
	id := uuid.New()
	key := string(topic)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[id] = subscription{topic: key, receiver: r}
	if b.topics[key] == nil {
		b.topics[key] = make(map[SubscriptionID]script.Receiver)
	}
	b.topics[key][id] = r
	return id
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(id)
}

// UnsubscribeReceiver removes every subscription held by r and returns how
// many there were.
func (b *Bus) UnsubscribeReceiver(r script.Receiver) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for id, sub := range b.subs {
		if sub.receiver == r {
			b.removeLocked(id)
			n++
		}
	}
	return n
}

// Publish hands message to all current subscribers of topic and returns the
// number of deliveries. Publishing under the read lock keeps the order of
// messages from one publisher intact for each receiver.
func (b *Bus) Publish(topic, message []byte) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	receivers := b.topics[string(topic)]
	for _, r := range receivers {
		r.Receive(topic, message)
	}
	return len(receivers)
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) removeLocked(id SubscriptionID) bool {
	sub, ok := b.subs[id]
	if !ok {
		return false
	}
	delete(b.subs, id)
	if m := b.topics[sub.topic]; m != nil {
		delete(m, id)
		if len(m) == 0 {
			delete(b.topics, sub.topic)
		}
	}
	return true
}

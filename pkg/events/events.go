package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jelu/lim-plugin-orr/pkg/metrics"
)

// EventType names the lifecycle transitions the Cluster Manager reports.
// Subscribers filter on these rather than receiving every event, since a
// dashboard watching cluster health has no use for per-zone fetch failures.
type EventType string

const (
	EventClusterStateChanged EventType = "cluster.state_changed"
	EventNodeStateChanged    EventType = "node.state_changed"
	EventZoneFetchFailed     EventType = "zone.fetch_failed"
	EventZoneSetupFailed     EventType = "zone.setup_failed"
	EventHSMSetupFailed      EventType = "hsm.setup_failed"
	EventPolicySetupFailed   EventType = "policy.setup_failed"
)

// Event is one lifecycle transition. Only the ID fields relevant to its
// Type are populated; ClusterStateChanged sets ClusterID alone, for
// instance, leaving NodeID and ZoneID as the zero UUID.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	ClusterID uuid.UUID
	NodeID    uuid.UUID
	ZoneID    uuid.UUID
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events matching a subscription's
// filter.
type Subscriber chan *Event

// subscription pairs a Subscriber's channel with the set of EventTypes it
// wants. A nil filter means every type.
type subscription struct {
	ch     Subscriber
	filter map[EventType]bool
}

func (s *subscription) wants(t EventType) bool {
	return s.filter == nil || s.filter[t]
}

// Broker fans Publish calls out to every matching Subscriber.
type Broker struct {
	subscribers map[Subscriber]*subscription
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]*subscription),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe registers a new Subscriber. With no types given it receives
// every event; otherwise only events whose Type is in the list.
func (b *Broker) Subscribe(types ...EventType) Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	s := &subscription{ch: sub}
	if len(types) > 0 {
		s.filter = make(map[EventType]bool, len(types))
		for _, t := range types {
			s.filter[t] = true
		}
	}
	b.subscribers[sub] = s
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish hands an event to the broker's distribution loop, stamping its
// Timestamp if the caller left it zero.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

// broadcast delivers event to every subscription whose filter accepts its
// Type. A subscriber that isn't draining its channel fast enough loses the
// event rather than backing up the broker; orr_events_dropped_total counts
// how often that happens so a stuck subscriber shows up in metrics instead
// of silently losing its feed.
func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			metrics.EventsDropped.WithLabelValues(string(event.Type)).Inc()
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

package main

import (
	"github.com/google/uuid"

	"github.com/jelu/lim-plugin-orr/pkg/events"
	"github.com/jelu/lim-plugin-orr/pkg/log"
)

// eventLogger tails every event on the broker and writes it through the
// structured logger, giving orrd an audit trail of cluster/node/zone
// lifecycle transitions without a dedicated sink.
type eventLogger struct {
	broker *events.Broker
	sub    events.Subscriber
	doneCh chan struct{}
}

func newEventLogger(broker *events.Broker) *eventLogger {
	return &eventLogger{
		broker: broker,
		sub:    broker.Subscribe(),
		doneCh: make(chan struct{}),
	}
}

func (el *eventLogger) start() {
	go el.run()
}

func (el *eventLogger) stop() {
	el.broker.Unsubscribe(el.sub)
	<-el.doneCh
}

func (el *eventLogger) run() {
	defer close(el.doneCh)

	logger := log.WithComponent("eventlog").Logger()
	for evt := range el.sub {
		entry := logger.Info().Str("event_type", string(evt.Type))
		if evt.ClusterID != uuid.Nil {
			entry = entry.Str("cluster_id", evt.ClusterID.String())
		}
		if evt.NodeID != uuid.Nil {
			entry = entry.Str("node_id", evt.NodeID.String())
		}
		if evt.ZoneID != uuid.Nil {
			entry = entry.Str("zone_id", evt.ZoneID.String())
		}
		entry.Msg(evt.Message)
	}
}

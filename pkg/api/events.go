// Event bridge: forwards every domain event to the WebSocket hub so an
// operator can watch shares, RSVPs, and task outcomes live.
package api

import (
	"context"
	"time"

	"github.com/penny-university/pennybot/pkg/domain"
	"github.com/penny-university/pennybot/pkg/logger"
)

// EventBridge connects the domain event bus to the WebSocket hub.
type EventBridge struct {
	bus domain.EventBus
	hub *WSHub
}

// NewEventBridge creates a bridge over the given bus and hub.
func NewEventBridge(bus domain.EventBus, hub *WSHub) *EventBridge {
	return &EventBridge{bus: bus, hub: hub}
}

// Run subscribes to the bus and forwards until ctx is cancelled. The
// subscription itself cannot be withdrawn; forwarding just stops.
func (eb *EventBridge) Run(ctx context.Context) {
	logger.InfoC("events", "Event bridge started, forwarding domain events to WebSocket")

	eb.bus.SubscribeAll(func(e domain.Event) {
		select {
		case <-ctx.Done():
			return
		default:
		}
		eb.hub.Broadcast(WSEvent{
			Type:      string(e.EventType()),
			Timestamp: e.OccurredAt().UTC().Format(time.RFC3339),
			Data: map[string]interface{}{
				"aggregate_id": e.AggregateID().String(),
				"payload":      e.Payload(),
			},
		})
	})

	<-ctx.Done()
}

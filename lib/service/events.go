package service

import (
	"context"
	"fmt"
	"time"
)

// Event is a booking lifecycle notification. Events are fire and forget:
// the money movement that produced one never depends on its delivery.
type Event struct {
	Type      string    `json:"type"`
	BookingID int64     `json:"booking_id"`
	UserID    int64     `json:"user_id,omitempty"`
	Date      time.Time `json:"date"`
}

// RoutingKey addresses the event on the broker's event exchange.
func (e Event) RoutingKey() string {
	return fmt.Sprintf("booking.event.%s", e.Type)
}

// EmitEvent publishes the event to in-process subscribers and, when a broker
// is configured, hands it to the outgoing queue.
func (svc *RenthubService) EmitEvent(ctx context.Context, event Event) {
	if event.Date.IsZero() {
		event.Date = time.Now()
	}
	svc.Logger.Infof("Event %s [booking_id:%d user_id:%d]", event.Type, event.BookingID, event.UserID)
	if svc.EventPubSub != nil {
		svc.EventPubSub.Publish(event.Type, event)
	}
}

// README: Real-time events, the wire envelope and the sink contract.
package notify

import (
	"context"
	"encoding/json"

	"fooddash/internal/modules/order"
	"fooddash/internal/requestid"
)

const (
	KindTracking = "tracking"
	KindStatus   = "status"
)

// Event is one broadcast. Name is the client-facing channel, for example
// "tracking:<orderId>" or "order:<orderId>:status".
type Event struct {
	Name      string
	Kind      string
	OrderID   string
	Data      any
	RequestID string
}

func TrackingEventName(orderID string) string { return "tracking:" + orderID }

func StatusEventName(orderID string) string { return "order:" + orderID + ":status" }

func NewTrackingEvent(ctx context.Context, info order.TrackingInfo) Event {
	return Event{
		Name:      TrackingEventName(info.OrderRef),
		Kind:      KindTracking,
		OrderID:   info.OrderRef,
		Data:      info,
		RequestID: requestid.From(ctx),
	}
}

func NewStatusEvent(ctx context.Context, ev order.StatusEvent) Event {
	return Event{
		Name:      StatusEventName(ev.OrderID),
		Kind:      KindStatus,
		OrderID:   ev.OrderID,
		Data:      ev,
		RequestID: requestid.From(ctx),
	}
}

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func (e Event) encode() ([]byte, error) {
	return json.Marshal(envelope{Event: e.Name, Data: e.Data})
}

// Sink delivers events to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

// selective is implemented by sinks that only care about some events.
type selective interface {
	Wants(ev Event) bool
}

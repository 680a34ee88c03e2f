// README: Order aggregate, tracking snapshot and status definitions.
package order

import (
	"time"

	"fooddash/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// TrackingStatus is the physical delivery state, separate from Status.
type TrackingStatus string

const (
	TrackingPickedUp  TrackingStatus = "picked_up"
	TrackingInTransit TrackingStatus = "in_transit"
	TrackingArrived   TrackingStatus = "arrived"
)

type LineItem struct {
	FoodItemRef string `json:"foodItem" bson:"food_item_ref"`
	Name        string `json:"name,omitempty" bson:"name,omitempty"`
	Quantity    int    `json:"quantity" bson:"quantity"`
	// UnitPrice is the catalog price captured when the order was created.
	UnitPrice types.Money `json:"price" bson:"unit_price"`
}

// TrackingInfo is embedded in the order and overwritten on every update.
type TrackingInfo struct {
	OrderRef         string         `json:"orderId" bson:"order_ref"`
	CurrentLocation  types.Location `json:"currentLocation" bson:"current_location"`
	EstimatedArrival time.Time      `json:"estimatedArrival" bson:"estimated_arrival"`
	Status           TrackingStatus `json:"status" bson:"status"`
	LastUpdated      time.Time      `json:"lastUpdated" bson:"last_updated"`
}

type Order struct {
	ID              string        `json:"id"`
	UserRef         string        `json:"user"`
	LineItems       []LineItem    `json:"items"`
	TotalAmount     types.Money   `json:"totalAmount"`
	Status          Status        `json:"status"`
	DeliveryAddress string        `json:"deliveryAddress"`
	Tracking        *TrackingInfo `json:"tracking,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// StatusEvent is the payload broadcast when an order changes status.
type StatusEvent struct {
	OrderID   string    `json:"orderId"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// AllowedTransitions represents the order state flow as code. Delivered and
// cancelled are terminal.
var AllowedTransitions = map[Status][]Status{
	StatusPending:   {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusDelivered},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Policy holds the configurable parts of the state machine.
type Policy struct {
	// AllowCancelAfterReady opens the ready -> cancelled edge.
	AllowCancelAfterReady bool
}

func (p Policy) CanTransition(from, to Status) bool {
	if CanTransition(from, to) {
		return true
	}
	return p.AllowCancelAfterReady && from == StatusReady && to == StatusCancelled
}

func totalOf(items []LineItem) types.Money {
	var total types.Money
	for _, it := range items {
		total += it.UnitPrice.Times(it.Quantity)
	}
	return total
}

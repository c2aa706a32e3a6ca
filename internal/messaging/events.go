package messaging

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderPlaced        = "placed"
	OrderStatusChanged = "status_changed"
	OrderAssigned      = "assigned"
	OrderDeleted       = "deleted"
)

// OrderEvent is published to the orders exchange with routing key
// "order.<type>".
type OrderEvent struct {
	Type           string          `json:"type"`
	OrderID        uint            `json:"order_id"`
	UserID         uint            `json:"user_id"`
	DeliveryCrewID *uint           `json:"delivery_crew_id,omitempty"`
	Status         string          `json:"status"`
	Total          decimal.Decimal `json:"total"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

func (e OrderEvent) RoutingKey() string {
	return "order." + e.Type
}

type NopPublisher struct{}

func (NopPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error { return nil }

func (NopPublisher) Close() error { return nil }

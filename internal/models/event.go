package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is published on every order creation and status change.
type OrderEvent struct {
	EventID        string      `json:"event_id"`
	Type           string      `json:"type"`
	OrderID        int64       `json:"order_id"`
	UserID         int64       `json:"user_id"`
	Status         OrderStatus `json:"status"`
	PreviousStatus OrderStatus `json:"previous_status,omitempty"`
	VoucherCode    string      `json:"voucher_code"`
	Simulated      bool        `json:"simulated"`
	Timestamp      time.Time   `json:"timestamp"`
}

func NewOrderEvent(eventType string, o *Order, previous OrderStatus) OrderEvent {
	return OrderEvent{
		EventID:        uuid.NewString(),
		Type:           eventType,
		OrderID:        o.ID,
		UserID:         o.UserID,
		Status:         o.Status,
		PreviousStatus: previous,
		VoucherCode:    o.VoucherCode,
		Simulated:      o.PaymentSimulated,
		Timestamp:      time.Now().UTC(),
	}
}

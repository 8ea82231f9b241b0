package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"wifihub/internal/logger"
	"wifihub/internal/models"
)

// Outcome says what a notification did to its order.
type Outcome string

const (
	OutcomeUpdated      Outcome = "updated"
	OutcomeUnchanged    Outcome = "unchanged"
	OutcomeUnknownOrder Outcome = "unknown_order"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeFailed       Outcome = "failed"
)

type Reconciliation struct {
	OrderID  int64
	Previous models.OrderStatus
	Status   models.OrderStatus
	Outcome  Outcome
}

// Reconciler applies gateway payment notifications to orders.
type Reconciler struct {
	DB              DBLayer
	Gateway         PaymentGateway
	Redis           OrderLock
	Kafka           EventPublisher
	Logger          *logger.Logger
	VerifySignature bool
}

// NewReconciler shares the order service's store, gateway, lock and publisher.
func NewReconciler(s *OrderService) *Reconciler {
	return &Reconciler{
		DB:              s.DB,
		Gateway:         s.Gateway,
		Redis:           s.Redis,
		Kafka:           s.Kafka,
		Logger:          s.Logger,
		VerifySignature: s.Options.VerifySignature,
	}
}

// HandleNotification processes one notification body. Only malformed
// payloads and bad signatures are returned as *WebhookError; every other
// outcome is acknowledged and reported through the Reconciliation.
func (r *Reconciler) HandleNotification(ctx context.Context, body []byte) (*Reconciliation, error) {
	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		r.Logger.Error("WEBHOOK", fmt.Sprintf("Invalid notification payload: %v", err))
		return nil, &WebhookError{
			Category:      CategoryValidation,
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid notification payload",
			InternalError: "failed to decode notification",
			OriginalErr:   err,
		}
	}

	rawID := strings.TrimSpace(n.OrderID.String())
	if rawID == "" || n.TransactionStatus == "" {
		r.Logger.Error("WEBHOOK", "Notification missing order_id or transaction_status")
		return nil, &WebhookError{
			Category:      CategoryValidation,
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Missing required fields",
			InternalError: fmt.Sprintf("notification missing fields: order_id=%q transaction_status=%q", rawID, n.TransactionStatus),
		}
	}

	if r.VerifySignature && r.Gateway.HasServerKey() && !r.Gateway.VerifySignature(n) {
		r.Logger.LogSecurity("WEBHOOK_SIGNATURE", fmt.Sprintf("rejected notification for order %s", rawID))
		return nil, &WebhookError{
			Category:      CategorySignature,
			StatusCode:    http.StatusForbidden,
			PublicError:   "Invalid signature",
			InternalError: fmt.Sprintf("signature mismatch for order %s", rawID),
		}
	}

	r.Logger.LogWebhook(rawID, fmt.Sprintf("transaction_status=%s fraud_status=%s", n.TransactionStatus, n.FraudStatus))

	orderID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || orderID <= 0 {
		r.Logger.Warn("WEBHOOK", fmt.Sprintf("Notification for unknown order %q acknowledged", rawID))
		return &Reconciliation{Outcome: OutcomeUnknownOrder}, nil
	}

	target, ok := models.StatusFromNotification(n.TransactionStatus, n.FraudStatus)
	if !ok {
		r.Logger.Warn("WEBHOOK", fmt.Sprintf("Unmapped status %s/%s for order %d ignored", n.TransactionStatus, n.FraudStatus, orderID))
		return &Reconciliation{OrderID: orderID, Outcome: OutcomeIgnored}, nil
	}

	release, locked := r.Redis.Acquire(ctx, orderID)
	defer release()
	if !locked {
		r.Logger.Warn("WEBHOOK", fmt.Sprintf("Proceeding without lock for order %d", orderID))
	}

	change, err := r.DB.ApplyStatus(ctx, orderID, target)
	if errors.Is(err, sql.ErrNoRows) {
		r.Logger.Warn("WEBHOOK", fmt.Sprintf("Notification for unknown order %d acknowledged", orderID))
		return &Reconciliation{OrderID: orderID, Outcome: OutcomeUnknownOrder}, nil
	}
	if err != nil {
		r.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to apply %s to order %d: %v", target, orderID, err))
		return &Reconciliation{OrderID: orderID, Status: target, Outcome: OutcomeFailed}, nil
	}

	res := &Reconciliation{
		OrderID:  orderID,
		Previous: change.Previous,
		Status:   change.Order.Status,
		Outcome:  OutcomeUnchanged,
	}
	if !change.Changed {
		r.Logger.LogOrder("UNCHANGED", orderID, fmt.Sprintf("%s stays %s (candidate %s)", rawID, change.Previous, target))
		return res, nil
	}

	res.Outcome = OutcomeUpdated
	r.Logger.LogOrder("STATUS", orderID, fmt.Sprintf("%s -> %s", change.Previous, change.Order.Status))
	if change.Order.Status == models.StatusPaid {
		r.Logger.LogOrder("VOUCHER", orderID, "voucher activated")
	}

	event := models.NewOrderEvent(models.EventOrderStatusChanged, change.Order, change.Previous)
	if err := r.Kafka.PublishOrderEvent(ctx, event); err != nil {
		r.Logger.Error("KAFKA", fmt.Sprintf("Publish error (status changed) for order %d: %v", orderID, err))
	}
	return res, nil
}

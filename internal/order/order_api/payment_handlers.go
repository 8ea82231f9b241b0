package order_api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"wifihub/internal/order"
)

// PaymentNotification receives the gateway's asynchronous status callback.
// Anything but a malformed or forged payload is answered 200 so the gateway
// stops retrying.
func (h *Handler) PaymentNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.Logger.Error("WEBHOOK", fmt.Sprintf("PaymentNotification: failed to read payload: %v", err))
		http.Error(w, "Invalid notification payload", http.StatusBadRequest)
		return
	}

	res, err := h.Reconciler.HandleNotification(r.Context(), body)
	if err != nil {
		var webhookErr *order.WebhookError
		if errors.As(err, &webhookErr) {
			h.Logger.Info("WEBHOOK", fmt.Sprintf("PaymentNotification: rejected category=%s status=%d: %v",
				webhookErr.Category, webhookErr.StatusCode, webhookErr))
			http.Error(w, webhookErr.PublicError, webhookErr.StatusCode)
			return
		}
		h.Logger.Error("WEBHOOK", fmt.Sprintf("PaymentNotification: %v", err))
	} else {
		h.Logger.Debug("WEBHOOK", fmt.Sprintf("PaymentNotification: order=%d outcome=%s", res.OrderID, res.Outcome))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

package order_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"wifihub/internal/auth"
	"wifihub/internal/logger"
	"wifihub/internal/models"
	"wifihub/internal/order"
	"wifihub/internal/users"
	"wifihub/internal/utils"
	"wifihub/internal/vouchers/qr"
)

const (
	MsgInvalidJSON    = "Invalid JSON input"
	MsgNoAction       = "No action specified"
	MsgInvalidAction  = "Invalid action"
	MsgPostOnly       = "Only POST method allowed"
	MsgInvalidPayload = "Data tidak valid"

	maxBodyBytes = 1 << 20
)

type PackageLister interface {
	ListActive(ctx context.Context) ([]models.Package, error)
}

// actionFunc handles one decoded action body and returns the success
// message and payload.
type actionFunc func(r *http.Request, body []byte) (string, any, error)

type action struct {
	requireUser bool
	fallback    string
	run         actionFunc
}

type Handler struct {
	OrderService *order.OrderService
	Reconciler   *order.Reconciler
	Users        *users.Service
	Catalog      PackageLister
	QR           *qr.Generator
	Logger       *logger.Logger

	actions map[string]action
}

func NewHandler(orderService *order.OrderService, userService *users.Service, catalog PackageLister, qrGen *qr.Generator, log *logger.Logger) *Handler {
	h := &Handler{
		OrderService: orderService,
		Reconciler:   order.NewReconciler(orderService),
		Users:        userService,
		Catalog:      catalog,
		QR:           qrGen,
		Logger:       log,
	}
	h.actions = map[string]action{
		"login":              {fallback: "Terjadi kesalahan saat login", run: h.login},
		"register":           {fallback: "Terjadi kesalahan saat registrasi", run: h.register},
		"logout":             {requireUser: true, fallback: "Terjadi kesalahan saat logout", run: h.logout},
		"get_packages":       {fallback: "Terjadi kesalahan saat mengambil paket", run: h.getPackages},
		"checkout":           {requireUser: true, fallback: "Terjadi kesalahan saat checkout", run: h.checkout},
		"get_user_vouchers":  {requireUser: true, fallback: "Terjadi kesalahan saat mengambil voucher", run: h.getUserVouchers},
		"update_profile":     {requireUser: true, fallback: "Terjadi kesalahan saat memperbarui profile", run: h.updateProfile},
		"get_payment_config": {fallback: "Terjadi kesalahan saat mengambil konfigurasi pembayaran", run: h.getPaymentConfig},
	}
	return h
}

// Actions lists the registered action names in sorted order.
func (h *Handler) Actions() []string {
	names := make([]string, 0, len(h.actions))
	for name := range h.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServeAction is the POST /api endpoint. The body is a flat JSON object
// whose "action" field selects the handler; the remaining fields are the
// action's input.
func (h *Handler) ServeAction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ServeAction: failed to read body: %v", err))
		h.writeError(w, http.StatusBadRequest, MsgInvalidJSON)
		return
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope) == 0 {
		h.Logger.Warn("API", "ServeAction: invalid JSON input received")
		h.writeError(w, http.StatusBadRequest, MsgInvalidJSON)
		return
	}

	rawAction, ok := envelope["action"]
	if !ok {
		h.writeError(w, http.StatusBadRequest, MsgNoAction)
		return
	}
	var name string
	if err := json.Unmarshal(rawAction, &name); err != nil || strings.TrimSpace(name) == "" {
		h.writeError(w, http.StatusBadRequest, MsgNoAction)
		return
	}

	act, ok := h.actions[name]
	if !ok {
		h.Logger.Warn("API", fmt.Sprintf("ServeAction: invalid action %q", name))
		h.writeError(w, http.StatusBadRequest, MsgInvalidAction)
		return
	}

	if act.requireUser {
		if _, ok := auth.UserID(r.Context()); !ok {
			h.writeError(w, http.StatusUnauthorized, auth.MsgUnauthorized)
			return
		}
	}

	h.Logger.Debug("API", fmt.Sprintf("ServeAction: action=%s", name))
	message, data, err := act.run(r, body)
	status := http.StatusOK
	if err != nil {
		status = utils.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			h.Logger.Error("API", fmt.Sprintf("Action %s failed: %v", name, err))
		} else {
			h.Logger.Warn("API", fmt.Sprintf("Action %s rejected: %v", name, err))
		}
		h.writeError(w, status, utils.PublicMessage(err, act.fallback))
	} else if werr := utils.WriteJSON(w, status, utils.SuccessResponse(message, data)); werr != nil {
		h.Logger.Error("API", fmt.Sprintf("ServeAction: failed to encode response: %v", werr))
	}
	h.Logger.LogAPI(r.Method, r.URL.Path+"#"+name, status, time.Since(start))
}

// MethodNotAllowed answers non-POST calls to the action endpoint.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, http.StatusMethodNotAllowed, MsgPostOnly)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	if err := utils.WriteJSON(w, status, utils.ErrorResponse(message)); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode error response: %v", err))
	}
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return &utils.UserError{Kind: utils.ErrValidation, Message: MsgInvalidJSON, Err: err}
		}
		return &utils.UserError{Kind: utils.ErrValidation, Message: MsgInvalidPayload, Err: err}
	}
	return nil
}

func sessionUser(r *http.Request) int64 {
	id, _ := auth.UserID(r.Context())
	return id
}

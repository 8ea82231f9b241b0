package order_api

import (
	"net/http"

	"wifihub/internal/auth"
	"wifihub/internal/models"
	"wifihub/internal/order"
)

const (
	MsgLoginSuccess    = "Login berhasil"
	MsgRegisterSuccess = "Registrasi berhasil! Silakan login."
	MsgLogoutSuccess   = "Logout berhasil"
	MsgProfileUpdated  = "Profile berhasil diperbarui"
)

func (h *Handler) login(r *http.Request, body []byte) (string, any, error) {
	var req models.LoginRequest
	if err := decode(body, &req); err != nil {
		return "", nil, err
	}
	res, err := h.Users.Login(r.Context(), req)
	if err != nil {
		return "", nil, err
	}
	return MsgLoginSuccess, res, nil
}

func (h *Handler) register(r *http.Request, body []byte) (string, any, error) {
	var req models.RegisterRequest
	if err := decode(body, &req); err != nil {
		return "", nil, err
	}
	user, err := h.Users.Register(r.Context(), req)
	if err != nil {
		return "", nil, err
	}
	return MsgRegisterSuccess, user, nil
}

func (h *Handler) logout(r *http.Request, _ []byte) (string, any, error) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		return MsgLogoutSuccess, nil, nil
	}
	if err := h.Users.Logout(r.Context(), claims); err != nil {
		return "", nil, err
	}
	return MsgLogoutSuccess, nil, nil
}

func (h *Handler) getPackages(r *http.Request, _ []byte) (string, any, error) {
	pkgs, err := h.Catalog.ListActive(r.Context())
	if err != nil {
		return "", nil, err
	}
	return "", pkgs, nil
}

func (h *Handler) checkout(r *http.Request, body []byte) (string, any, error) {
	var req models.CheckoutRequest
	if err := decode(body, &req); err != nil {
		return "", nil, err
	}
	res, err := h.OrderService.Checkout(r.Context(), sessionUser(r), req)
	if err != nil {
		return "", nil, err
	}
	return order.CheckoutMessage(res), res, nil
}

func (h *Handler) getUserVouchers(r *http.Request, body []byte) (string, any, error) {
	var q models.VoucherQuery
	if err := decode(body, &q); err != nil {
		return "", nil, err
	}
	views, err := h.OrderService.GetUserVouchers(r.Context(), sessionUser(r), q)
	if err != nil {
		return "", nil, err
	}
	return "", views, nil
}

func (h *Handler) updateProfile(r *http.Request, body []byte) (string, any, error) {
	var req models.UpdateProfileRequest
	if err := decode(body, &req); err != nil {
		return "", nil, err
	}
	user, err := h.Users.UpdateProfile(r.Context(), sessionUser(r), req)
	if err != nil {
		return "", nil, err
	}
	return MsgProfileUpdated, user, nil
}

func (h *Handler) getPaymentConfig(_ *http.Request, _ []byte) (string, any, error) {
	return "", h.OrderService.PaymentConfig(), nil
}

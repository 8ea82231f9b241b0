package order_api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"wifihub/internal/auth"
	"wifihub/internal/utils"
	"wifihub/internal/vouchers/qr"
)

const MsgVoucherInactive = "Voucher belum aktif, selesaikan pembayaran terlebih dahulu"

// VoucherQR serves the login QR code of a voucher owned by the caller.
// Ownership is checked in the query itself, so a foreign code looks exactly
// like an unknown one.
func (h *Handler) VoucherQR(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, auth.MsgUnauthorized)
		return
	}

	voucher, err := h.OrderService.VoucherForUser(r.Context(), code, userID)
	if err != nil {
		status := utils.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			h.Logger.Error("API", fmt.Sprintf("VoucherQR: lookup failed for %s: %v", code, err))
		}
		h.writeError(w, status, utils.PublicMessage(err, "Terjadi kesalahan saat mengambil voucher"))
		return
	}

	png, err := h.QR.PNG(voucher)
	if errors.Is(err, qr.ErrInactiveVoucher) {
		h.writeError(w, http.StatusConflict, MsgVoucherInactive)
		return
	}
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("VoucherQR: failed to render QR for %s: %v", code, err))
		h.writeError(w, http.StatusInternalServerError, "Gagal membuat QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// Health reports liveness.
func Health(w http.ResponseWriter, _ *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
}

package qr

import (
	"errors"
	"net/url"

	"github.com/skip2/go-qrcode"

	"wifihub/internal/models"
)

const defaultSize = 256

var ErrInactiveVoucher = errors.New("voucher is not active")

// Generator renders hotspot login QR codes for vouchers.
type Generator struct {
	loginURL string
	size     int
}

func NewGenerator(loginURL string, size int) *Generator {
	if size <= 0 {
		size = defaultSize
	}
	return &Generator{loginURL: loginURL, size: size}
}

// Content is the text encoded in the QR code: the hotspot login URL with the
// voucher credentials, or a plain "username:password" pair when no login URL
// is configured.
func (g *Generator) Content(v *models.Voucher) string {
	if g.loginURL == "" {
		return v.Username + ":" + v.Password
	}
	u, err := url.Parse(g.loginURL)
	if err != nil {
		return v.Username + ":" + v.Password
	}
	q := u.Query()
	q.Set("username", v.Username)
	q.Set("password", v.Password)
	u.RawQuery = q.Encode()
	return u.String()
}

// PNG encodes the voucher login as a PNG image. Only active vouchers can be
// redeemed, so inactive ones are refused.
func (g *Generator) PNG(v *models.Voucher) ([]byte, error) {
	if !v.IsActive {
		return nil, ErrInactiveVoucher
	}
	return qrcode.Encode(g.Content(v), qrcode.Medium, g.size)
}

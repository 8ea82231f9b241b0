package models

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID               int64       `bun:"id,pk,autoincrement" json:"order_id"`
	UserID           int64       `bun:"user_id,notnull" json:"user_id"`
	PackageID        int64       `bun:"package_id,notnull" json:"package_id"`
	Status           OrderStatus `bun:"status,notnull" json:"order_status"`
	PaymentMethod    string      `bun:"payment_method,notnull" json:"payment_method"`
	PaymentAccount   string      `bun:"payment_account,nullzero" json:"payment_account,omitempty"`
	PaymentToken     string      `bun:"payment_token,nullzero" json:"-"`
	PaymentSimulated bool        `bun:"payment_simulated,notnull" json:"payment_simulated"`
	Amount           int64       `bun:"amount,notnull" json:"amount"`
	VoucherCode      string      `bun:"voucher_code,notnull,unique" json:"voucher_code"`
	CreatedAt        time.Time   `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time   `bun:"updated_at,notnull" json:"updated_at"`
	ExpiresAt        time.Time   `bun:"expires_at,notnull" json:"expires_at"`
}

// FlexString decodes from either a JSON string or a JSON number.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

type CheckoutRequest struct {
	PackageName    string     `json:"packageName" validate:"required"`
	PackagePrice   FlexString `json:"packagePrice" validate:"required"`
	CustomerName   string     `json:"customerName" validate:"required"`
	CustomerEmail  string     `json:"customerEmail" validate:"required,email"`
	CustomerPhone  string     `json:"customerPhone" validate:"required"`
	PaymentMethod  string     `json:"paymentMethod" validate:"required"`
	PaymentAccount string     `json:"paymentAccount,omitempty"`
}

type CheckoutResult struct {
	OrderID     int64       `json:"order_id"`
	SnapToken   string      `json:"snap_token"`
	OrderStatus OrderStatus `json:"order_status"`
	Simulated   bool        `json:"simulated"`
}

type PaymentConfig struct {
	ClientKey    string `json:"client_key"`
	IsProduction bool   `json:"is_production"`
}

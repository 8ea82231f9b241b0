package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Voucher is the hotspot login issued for exactly one order.
type Voucher struct {
	bun.BaseModel `bun:"table:vouchers,alias:v"`

	ID          int64      `bun:"id,pk,autoincrement" json:"id"`
	OrderID     int64      `bun:"order_id,notnull,unique" json:"order_id"`
	VoucherCode string     `bun:"voucher_code,notnull,unique" json:"voucher_code"`
	Username    string     `bun:"username,notnull,unique" json:"username"`
	Password    string     `bun:"password,notnull" json:"password"`
	ProfileName string     `bun:"profile_name,notnull" json:"profile_name"`
	IsActive    bool       `bun:"is_active,notnull" json:"is_active"`
	IsUsed      bool       `bun:"is_used,notnull" json:"is_used"`
	CreatedAt   time.Time  `bun:"created_at,notnull" json:"created_at"`
	ActivatedAt *time.Time `bun:"activated_at,nullzero" json:"activated_at,omitempty"`
	ExpiresAt   time.Time  `bun:"expires_at,notnull" json:"expires_at"`
}

// VoucherView is one row of a user's voucher list.
type VoucherView struct {
	OrderID        int64       `bun:"order_id" json:"order_id"`
	OrderStatus    OrderStatus `bun:"order_status" json:"order_status"`
	VoucherCode    string      `bun:"voucher_code" json:"voucher_code"`
	Username       string      `bun:"username" json:"username"`
	Password       string      `bun:"password" json:"password"`
	IsActive       bool        `bun:"is_active" json:"is_active"`
	ExpiresAt      time.Time   `bun:"expires_at" json:"expires_at"`
	VoucherCreated time.Time   `bun:"voucher_created" json:"voucher_created"`
	PackageName    string      `bun:"package_name" json:"package_name"`
	Price          int64       `bun:"price" json:"price"`
}

type VoucherQuery struct {
	UserID int64 `json:"user_id,omitempty"`
}

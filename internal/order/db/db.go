package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"wifihub/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- LOOKUPS ----------------

// FindUserByEmail → the registered user owning email
func (d *DB) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("u.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetActivePackageByName → an active package by its display name
func (d *DB) GetActivePackageByName(ctx context.Context, name string) (*models.Package, error) {
	var pkg models.Package
	err := d.Bun.NewSelect().
		Model(&pkg).
		Where("p.name = ?", name).
		Where("p.is_active = ?", true).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ---------------- ORDERS ----------------

// CreateOrderWithVoucher inserts the order and its voucher in one
// transaction. On success both carry their generated ids.
func (d *DB) CreateOrderWithVoucher(ctx context.Context, order *models.Order, voucher *models.Voucher) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		voucher.OrderID = order.ID
		if _, err := tx.NewInsert().Model(voucher).Exec(ctx); err != nil {
			return fmt.Errorf("insert voucher: %w", err)
		}
		return nil
	})
}

// GetOrderByID → fetch one order by its ID
func (d *DB) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("o.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdatePaymentToken stores the gateway token (real or placeholder).
func (d *DB) UpdatePaymentToken(ctx context.Context, orderID int64, token string, simulated bool) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_token = ?", token).
		Set("payment_simulated = ?", simulated).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", orderID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// StatusChange describes the outcome of ApplyStatus.
type StatusChange struct {
	Order    *models.Order
	Previous models.OrderStatus
	Changed  bool
}

// ApplyStatus moves an order to target when the transition is legal. The
// write is a single conditional UPDATE guarded by the legal source states,
// so concurrent deliveries for the same order cannot both succeed. Reaching
// paid also activates the order's voucher; activated_at keeps the first
// activation time.
func (d *DB) ApplyStatus(ctx context.Context, orderID int64, target models.OrderStatus) (*StatusChange, error) {
	sources := models.SourcesOf(target)
	change := &StatusChange{}

	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var current models.Order
		if err := tx.NewSelect().Model(&current).Where("o.id = ?", orderID).Limit(1).Scan(ctx); err != nil {
			return err
		}
		change.Order = &current
		change.Previous = current.Status

		if current.Status == target || !current.Status.CanTransitionTo(target) || len(sources) == 0 {
			return nil
		}

		now := time.Now().UTC()
		res, err := tx.NewUpdate().
			Model((*models.Order)(nil)).
			Set("status = ?", target).
			Set("updated_at = ?", now).
			Where("id = ?", orderID).
			Where("status IN (?)", bun.In(sources)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		if target == models.StatusPaid {
			_, err := tx.NewUpdate().
				Model((*models.Voucher)(nil)).
				Set("is_active = ?", true).
				Set("activated_at = COALESCE(activated_at, ?)", now).
				Where("order_id = ?", orderID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("activate voucher: %w", err)
			}
		}

		current.Status = target
		current.UpdatedAt = now
		change.Changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// ---------------- VOUCHERS ----------------

// GetVoucherByOrderID → the voucher issued for an order
func (d *DB) GetVoucherByOrderID(ctx context.Context, orderID int64) (*models.Voucher, error) {
	var voucher models.Voucher
	err := d.Bun.NewSelect().
		Model(&voucher).
		Where("v.order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

// GetVoucherForUser → voucher by code, only when its order belongs to userID
func (d *DB) GetVoucherForUser(ctx context.Context, code string, userID int64) (*models.Voucher, error) {
	var voucher models.Voucher
	err := d.Bun.NewSelect().
		Model(&voucher).
		Join("JOIN orders AS o ON o.id = v.order_id").
		Where("v.voucher_code = ?", code).
		Where("o.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

// GetVouchersByUser → every voucher of the user with its order status and
// package, newest first
func (d *DB) GetVouchersByUser(ctx context.Context, userID int64) ([]models.VoucherView, error) {
	var views []models.VoucherView
	err := d.Bun.NewSelect().
		TableExpr("orders AS o").
		ColumnExpr("o.id AS order_id").
		ColumnExpr("o.status AS order_status").
		ColumnExpr("v.voucher_code AS voucher_code").
		ColumnExpr("v.username AS username").
		ColumnExpr("v.password AS password").
		ColumnExpr("v.is_active AS is_active").
		ColumnExpr("v.expires_at AS expires_at").
		ColumnExpr("v.created_at AS voucher_created").
		ColumnExpr("p.name AS package_name").
		ColumnExpr("p.price AS price").
		Join("JOIN vouchers AS v ON v.order_id = o.id").
		Join("JOIN packages AS p ON p.id = o.package_id").
		Where("o.user_id = ?", userID).
		OrderExpr("v.created_at DESC").
		OrderExpr("o.id DESC").
		Scan(ctx, &views)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if views == nil {
		views = []models.VoucherView{}
	}
	return views, nil
}

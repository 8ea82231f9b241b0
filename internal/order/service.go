package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"wifihub/internal/logger"
	"wifihub/internal/models"
	"wifihub/internal/order/db"
	"wifihub/internal/payment"
	"wifihub/internal/utils"
)

const (
	MsgCheckoutSuccess  = "Checkout berhasil! Silakan selesaikan pembayaran."
	MsgCheckoutTestMode = "Checkout berhasil! (Test Mode - Silakan hubungi admin untuk status pembayaran sebenarnya)"
	MsgUserNotFound     = "User tidak ditemukan"
	MsgPackageNotFound  = "Paket tidak ditemukan"
	MsgVoucherNotFound  = "Voucher tidak ditemukan"
	MsgAccessDenied     = "Akses ditolak"

	placeholderTokenPrefix = "test-token-"
)

type DBLayer interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetActivePackageByName(ctx context.Context, name string) (*models.Package, error)
	CreateOrderWithVoucher(ctx context.Context, order *models.Order, voucher *models.Voucher) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	UpdatePaymentToken(ctx context.Context, orderID int64, token string, simulated bool) error
	ApplyStatus(ctx context.Context, orderID int64, target models.OrderStatus) (*db.StatusChange, error)
	GetVoucherForUser(ctx context.Context, code string, userID int64) (*models.Voucher, error)
	GetVouchersByUser(ctx context.Context, userID int64) ([]models.VoucherView, error)
}

type PaymentGateway interface {
	CreateTransaction(ctx context.Context, req payment.TransactionRequest) (string, bool)
	VerifySignature(n models.Notification) bool
	HasServerKey() bool
}

type OrderLock interface {
	Acquire(ctx context.Context, orderID int64) (release func(), ok bool)
}

type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

// Options carries the payment and voucher settings the service needs.
type Options struct {
	ProfileName     string
	ClientKey       string
	IsProduction    bool
	VerifySignature bool
}

type OrderService struct {
	DB       DBLayer
	Gateway  PaymentGateway
	Redis    OrderLock
	Kafka    EventPublisher
	Logger   *logger.Logger
	Validate *validator.Validate
	Options  Options

	now func() time.Time
}

func NewOrderService(store DBLayer, gateway PaymentGateway, lock OrderLock, events EventPublisher, log *logger.Logger, opts Options) *OrderService {
	if lock == nil {
		lock = noLock{}
	}
	if events == nil {
		events = noEvents{}
	}
	if opts.ProfileName == "" {
		opts.ProfileName = "default"
	}
	return &OrderService{
		DB:       store,
		Gateway:  gateway,
		Redis:    lock,
		Kafka:    events,
		Logger:   log,
		Validate: utils.NewValidator(),
		Options:  opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type noLock struct{}

func (noLock) Acquire(context.Context, int64) (func(), bool) { return func() {}, true }

type noEvents struct{}

func (noEvents) PublishOrderEvent(context.Context, models.OrderEvent) error { return nil }

// PlaceholderToken is the token stored when the gateway could not be reached.
func PlaceholderToken(orderID int64) string {
	return placeholderTokenPrefix + strconv.FormatInt(orderID, 10)
}

// CheckoutMessage is the user-facing message for a finished checkout.
func CheckoutMessage(res *models.CheckoutResult) string {
	if res != nil && res.Simulated {
		return MsgCheckoutTestMode
	}
	return MsgCheckoutSuccess
}

// ---------------- CHECKOUT ----------------

// Checkout creates a pending order and its inactive voucher in one
// transaction, then asks the gateway for a payment token. When the gateway
// fails the order keeps a placeholder token and is marked simulated.
func (s *OrderService) Checkout(ctx context.Context, sessionUserID int64, req models.CheckoutRequest) (*models.CheckoutResult, error) {
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	req.PackageName = strings.TrimSpace(req.PackageName)

	if err := s.Validate.Struct(req); err != nil {
		return nil, utils.NewUserError(utils.ErrValidation, utils.ValidationMessage(err))
	}

	user, err := s.DB.FindUserByEmail(ctx, req.CustomerEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.NewUserError(utils.ErrNotFound, MsgUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if sessionUserID != 0 && user.ID != sessionUserID {
		s.Logger.LogSecurity("CHECKOUT_MISMATCH", fmt.Sprintf("session user %d tried to check out as user %d", sessionUserID, user.ID))
		return nil, utils.NewUserError(utils.ErrForbidden, MsgAccessDenied)
	}

	pkg, err := s.DB.GetActivePackageByName(ctx, req.PackageName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.NewUserError(utils.ErrNotFound, MsgPackageNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup package: %w", err)
	}
	if req.PackagePrice.String() != strconv.FormatInt(pkg.Price, 10) {
		s.Logger.Warn("ORDER", fmt.Sprintf("Client price %q differs from package %q price %d; charging catalog price",
			req.PackagePrice, pkg.Name, pkg.Price))
	}

	order, voucher, err := s.newOrder(user, pkg, req)
	if err != nil {
		return nil, err
	}
	if err := s.DB.CreateOrderWithVoucher(ctx, order, voucher); err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("Checkout transaction failed for user %d: %v", user.ID, err))
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.Logger.LogOrder("CREATED", order.ID, fmt.Sprintf("package=%s amount=%d voucher=%s", pkg.Name, order.Amount, order.VoucherCode))

	token, ok := s.Gateway.CreateTransaction(ctx, payment.TransactionRequest{
		OrderID:       strconv.FormatInt(order.ID, 10),
		Amount:        order.Amount,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		PackageID:     strconv.FormatInt(pkg.ID, 10),
		PackageName:   pkg.Name,
	})
	if !ok || token == "" {
		token = PlaceholderToken(order.ID)
		order.PaymentSimulated = true
		s.Logger.Warn("PAYMENT", fmt.Sprintf("Using test token for order %d; gateway unavailable", order.ID))
	}
	order.PaymentToken = token

	if err := s.DB.UpdatePaymentToken(ctx, order.ID, token, order.PaymentSimulated); err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("Failed to store payment token for order %d: %v", order.ID, err))
	}

	if err := s.Kafka.PublishOrderEvent(ctx, models.NewOrderEvent(models.EventOrderCreated, order, "")); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Publish error (order created) for order %d: %v", order.ID, err))
	}

	return &models.CheckoutResult{
		OrderID:     order.ID,
		SnapToken:   token,
		OrderStatus: models.StatusPending,
		Simulated:   order.PaymentSimulated,
	}, nil
}

func (s *OrderService) newOrder(user *models.User, pkg *models.Package, req models.CheckoutRequest) (*models.Order, *models.Voucher, error) {
	code, err := utils.GenerateVoucherCode()
	if err != nil {
		return nil, nil, err
	}
	now := s.now().Truncate(time.Second)
	username, err := utils.GenerateVoucherUsername(now)
	if err != nil {
		return nil, nil, err
	}
	password, err := utils.GenerateVoucherPassword()
	if err != nil {
		return nil, nil, err
	}
	expires := utils.ExpiresAfter(now, pkg.ValidityHours)

	order := &models.Order{
		UserID:         user.ID,
		PackageID:      pkg.ID,
		Status:         models.StatusPending,
		PaymentMethod:  req.PaymentMethod,
		PaymentAccount: req.PaymentAccount,
		Amount:         pkg.Price,
		VoucherCode:    code,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      expires,
	}
	voucher := &models.Voucher{
		VoucherCode: code,
		Username:    username,
		Password:    password,
		ProfileName: s.Options.ProfileName,
		CreatedAt:   now,
		ExpiresAt:   expires,
	}
	return order, voucher, nil
}

// ---------------- VOUCHERS ----------------

// GetUserVouchers lists the session user's vouchers. A query naming another
// user is refused.
func (s *OrderService) GetUserVouchers(ctx context.Context, sessionUserID int64, q models.VoucherQuery) ([]models.VoucherView, error) {
	if q.UserID != 0 && q.UserID != sessionUserID {
		s.Logger.LogSecurity("VOUCHER_MISMATCH", fmt.Sprintf("session user %d asked for vouchers of user %d", sessionUserID, q.UserID))
		return nil, utils.NewUserError(utils.ErrForbidden, MsgAccessDenied)
	}
	views, err := s.DB.GetVouchersByUser(ctx, sessionUserID)
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	return views, nil
}

// VoucherForUser returns the voucher with code when it belongs to userID.
func (s *OrderService) VoucherForUser(ctx context.Context, code string, userID int64) (*models.Voucher, error) {
	v, err := s.DB.GetVoucherForUser(ctx, strings.ToUpper(strings.TrimSpace(code)), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.NewUserError(utils.ErrNotFound, MsgVoucherNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup voucher: %w", err)
	}
	return v, nil
}

// PaymentConfig exposes what the browser needs to open Snap. The server key
// never leaves the process.
func (s *OrderService) PaymentConfig() models.PaymentConfig {
	return models.PaymentConfig{
		ClientKey:    s.Options.ClientKey,
		IsProduction: s.Options.IsProduction,
	}
}

package order_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"wifihub/internal/logger"
	"wifihub/internal/models"
	"wifihub/internal/order"
	"wifihub/internal/order/db"
	"wifihub/internal/payment"
	"wifihub/internal/utils"
)

// Mock implementations
type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockDBLayer) GetActivePackageByName(ctx context.Context, name string) (*models.Package, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Package), args.Error(1)
}

func (m *MockDBLayer) CreateOrderWithVoucher(ctx context.Context, o *models.Order, v *models.Voucher) error {
	args := m.Called(ctx, o, v)
	return args.Error(0)
}

func (m *MockDBLayer) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDBLayer) UpdatePaymentToken(ctx context.Context, orderID int64, token string, simulated bool) error {
	args := m.Called(ctx, orderID, token, simulated)
	return args.Error(0)
}

func (m *MockDBLayer) ApplyStatus(ctx context.Context, orderID int64, target models.OrderStatus) (*db.StatusChange, error) {
	args := m.Called(ctx, orderID, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.StatusChange), args.Error(1)
}

func (m *MockDBLayer) GetVoucherForUser(ctx context.Context, code string, userID int64) (*models.Voucher, error) {
	args := m.Called(ctx, code, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Voucher), args.Error(1)
}

func (m *MockDBLayer) GetVouchersByUser(ctx context.Context, userID int64) ([]models.VoucherView, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.VoucherView), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateTransaction(ctx context.Context, req payment.TransactionRequest) (string, bool) {
	args := m.Called(ctx, req)
	return args.String(0), args.Bool(1)
}

func (m *MockGateway) VerifySignature(n models.Notification) bool {
	args := m.Called(n)
	return args.Bool(0)
}

func (m *MockGateway) HasServerKey() bool {
	args := m.Called()
	return args.Bool(0)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, ev models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Events() []models.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.OrderEvent(nil), p.events...)
}

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard)
}

func validCheckout() models.CheckoutRequest {
	return models.CheckoutRequest{
		PackageName:   "Paket Basic",
		PackagePrice:  "5000",
		CustomerName:  "Budi",
		CustomerEmail: "budi@example.com",
		CustomerPhone: "08123456789",
		PaymentMethod: "qris",
	}
}

func newMockService(store *MockDBLayer, gw *MockGateway, pub *recordingPublisher) *order.OrderService {
	return order.NewOrderService(store, gw, nil, pub, testLogger(), order.Options{ProfileName: "default"})
}

func TestCheckoutValidationWritesNothing(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(r *models.CheckoutRequest)
		message string
	}{
		{"missing phone", func(r *models.CheckoutRequest) { r.CustomerPhone = "" }, "Field customerPhone wajib diisi"},
		{"missing package", func(r *models.CheckoutRequest) { r.PackageName = "" }, "Field packageName wajib diisi"},
		{"missing price", func(r *models.CheckoutRequest) { r.PackagePrice = "" }, "Field packagePrice wajib diisi"},
		{"bad email", func(r *models.CheckoutRequest) { r.CustomerEmail = "not-an-email" }, "Format email tidak valid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := new(MockDBLayer)
			gw := new(MockGateway)
			svc := newMockService(store, gw, &recordingPublisher{})

			req := validCheckout()
			tc.mutate(&req)
			res, err := svc.Checkout(context.Background(), 1, req)

			assert.Nil(t, res)
			assert.ErrorIs(t, err, utils.ErrValidation)
			assert.Equal(t, tc.message, utils.PublicMessage(err, ""))
			store.AssertNotCalled(t, "CreateOrderWithVoucher", mock.Anything, mock.Anything, mock.Anything)
			gw.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything)
		})
	}
}

func TestCheckoutUnknownEmail(t *testing.T) {
	store := new(MockDBLayer)
	gw := new(MockGateway)
	svc := newMockService(store, gw, &recordingPublisher{})

	store.On("FindUserByEmail", mock.Anything, "budi@example.com").Return(nil, sql.ErrNoRows)

	_, err := svc.Checkout(context.Background(), 1, validCheckout())
	assert.ErrorIs(t, err, utils.ErrNotFound)
	assert.Equal(t, "User tidak ditemukan", utils.PublicMessage(err, ""))
	store.AssertNotCalled(t, "CreateOrderWithVoucher", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutUnknownPackage(t *testing.T) {
	store := new(MockDBLayer)
	svc := newMockService(store, new(MockGateway), &recordingPublisher{})

	store.On("FindUserByEmail", mock.Anything, "budi@example.com").Return(&models.User{ID: 1}, nil)
	store.On("GetActivePackageByName", mock.Anything, "Paket Basic").Return(nil, sql.ErrNoRows)

	_, err := svc.Checkout(context.Background(), 1, validCheckout())
	assert.ErrorIs(t, err, utils.ErrNotFound)
	assert.Equal(t, "Paket tidak ditemukan", utils.PublicMessage(err, ""))
}

func TestCheckoutRejectsOtherUsersEmail(t *testing.T) {
	store := new(MockDBLayer)
	svc := newMockService(store, new(MockGateway), &recordingPublisher{})

	store.On("FindUserByEmail", mock.Anything, "budi@example.com").Return(&models.User{ID: 2}, nil)

	_, err := svc.Checkout(context.Background(), 1, validCheckout())
	assert.ErrorIs(t, err, utils.ErrForbidden)
	store.AssertNotCalled(t, "GetActivePackageByName", mock.Anything, mock.Anything)
}

func TestCheckoutTransactionFailureIsReturned(t *testing.T) {
	store := new(MockDBLayer)
	gw := new(MockGateway)
	svc := newMockService(store, gw, &recordingPublisher{})

	store.On("FindUserByEmail", mock.Anything, "budi@example.com").Return(&models.User{ID: 1}, nil)
	store.On("GetActivePackageByName", mock.Anything, "Paket Basic").Return(&models.Package{ID: 3, Name: "Paket Basic", Price: 5000, ValidityHours: 24}, nil)
	store.On("CreateOrderWithVoucher", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := svc.Checkout(context.Background(), 1, validCheckout())
	require.Error(t, err)
	assert.Equal(t, "fallback", utils.PublicMessage(err, "fallback"))
	gw.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything)
}

func TestCheckoutUsesGatewayToken(t *testing.T) {
	store := new(MockDBLayer)
	gw := new(MockGateway)
	pub := &recordingPublisher{}
	svc := newMockService(store, gw, pub)

	store.On("FindUserByEmail", mock.Anything, "budi@example.com").Return(&models.User{ID: 1}, nil)
	store.On("GetActivePackageByName", mock.Anything, "Paket Basic").Return(&models.Package{ID: 3, Name: "Paket Basic", Price: 5000, ValidityHours: 24}, nil)
	store.On("CreateOrderWithVoucher", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			o := args.Get(1).(*models.Order)
			v := args.Get(2).(*models.Voucher)
			o.ID = 42
			v.OrderID = 42
			assert.Equal(t, models.StatusPending, o.Status)
			assert.Equal(t, int64(5000), o.Amount)
			assert.Regexp(t, `^WH[0-9A-F]{8}$`, o.VoucherCode)
			assert.Equal(t, o.VoucherCode, v.VoucherCode)
			assert.False(t, v.IsActive)
			assert.Equal(t, "default", v.ProfileName)
		}).
		Return(nil)
	gw.On("CreateTransaction", mock.Anything, mock.MatchedBy(func(r payment.TransactionRequest) bool {
		return r.OrderID == "42" && r.Amount == 5000 && r.PackageID == "3"
	})).Return("snap-abc", true)
	store.On("UpdatePaymentToken", mock.Anything, int64(42), "snap-abc", false).Return(nil)

	res, err := svc.Checkout(context.Background(), 1, validCheckout())
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.OrderID)
	assert.Equal(t, "snap-abc", res.SnapToken)
	assert.Equal(t, models.StatusPending, res.OrderStatus)
	assert.False(t, res.Simulated)
	assert.Equal(t, order.MsgCheckoutSuccess, order.CheckoutMessage(res))

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventOrderCreated, events[0].Type)
	assert.Equal(t, int64(42), events[0].OrderID)
	store.AssertExpectations(t)
	gw.AssertExpectations(t)
}

func TestCheckoutTokenPersistFailureIsNotFatal(t *testing.T) {
	store := new(MockDBLayer)
	gw := new(MockGateway)
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newMockService(store, gw, pub)

	store.On("FindUserByEmail", mock.Anything, "budi@example.com").Return(&models.User{ID: 1}, nil)
	store.On("GetActivePackageByName", mock.Anything, "Paket Basic").Return(&models.Package{ID: 3, Price: 5000, ValidityHours: 24}, nil)
	store.On("CreateOrderWithVoucher", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { args.Get(1).(*models.Order).ID = 7 }).
		Return(nil)
	gw.On("CreateTransaction", mock.Anything, mock.Anything).Return("", false)
	store.On("UpdatePaymentToken", mock.Anything, int64(7), "test-token-7", true).Return(errors.New("connection reset"))

	res, err := svc.Checkout(context.Background(), 1, validCheckout())
	require.NoError(t, err)
	assert.Equal(t, "test-token-7", res.SnapToken)
	assert.True(t, res.Simulated)
	assert.Equal(t, order.MsgCheckoutTestMode, order.CheckoutMessage(res))
}

func TestGetUserVouchersRejectsOtherUser(t *testing.T) {
	store := new(MockDBLayer)
	svc := newMockService(store, new(MockGateway), &recordingPublisher{})

	_, err := svc.GetUserVouchers(context.Background(), 1, models.VoucherQuery{UserID: 2})
	assert.ErrorIs(t, err, utils.ErrForbidden)
	store.AssertNotCalled(t, "GetVouchersByUser", mock.Anything, mock.Anything)

	store.On("GetVouchersByUser", mock.Anything, int64(1)).Return([]models.VoucherView{}, nil)
	views, err := svc.GetUserVouchers(context.Background(), 1, models.VoucherQuery{UserID: 1})
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestVoucherForUserNotFound(t *testing.T) {
	store := new(MockDBLayer)
	svc := newMockService(store, new(MockGateway), &recordingPublisher{})

	store.On("GetVoucherForUser", mock.Anything, "WHABCDEF01", int64(1)).Return(nil, sql.ErrNoRows)

	_, err := svc.VoucherForUser(context.Background(), " whabcdef01 ", 1)
	assert.ErrorIs(t, err, utils.ErrNotFound)
	assert.Equal(t, order.MsgVoucherNotFound, utils.PublicMessage(err, ""))
}

func TestPaymentConfigHidesServerKey(t *testing.T) {
	svc := order.NewOrderService(new(MockDBLayer), new(MockGateway), nil, nil, testLogger(),
		order.Options{ClientKey: "client-123", IsProduction: true})
	cfg := svc.PaymentConfig()
	assert.Equal(t, "client-123", cfg.ClientKey)
	assert.True(t, cfg.IsProduction)
}

package order_api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"wifihub/internal/auth"
	"wifihub/internal/catalog"
	"wifihub/internal/database/dbtest"
	"wifihub/internal/logger"
	"wifihub/internal/middleware"
	"wifihub/internal/models"
	"wifihub/internal/order"
	orderdb "wifihub/internal/order/db"
	"wifihub/internal/order/order_api"
	"wifihub/internal/payment"
	"wifihub/internal/sse"
	"wifihub/internal/users"
	userdb "wifihub/internal/users/db"
	"wifihub/internal/vouchers/qr"
)

type offlineGateway struct{}

func (offlineGateway) CreateTransaction(context.Context, payment.TransactionRequest) (string, bool) {
	return "", false
}
func (offlineGateway) VerifySignature(models.Notification) bool { return false }
func (offlineGateway) HasServerKey() bool                       { return false }

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	srv     *httptest.Server
	emitter *sse.OrderEventEmitter
	handler *order_api.Handler
}

func newTestServer(t *testing.T) *testServer {
	return newLimitedTestServer(t, nil)
}

func newLimitedTestServer(t *testing.T, limiter *middleware.RateLimiter) *testServer {
	t.Helper()
	log := logger.NewWithWriter(io.Discard)
	bunDB := dbtest.New(t)

	now := time.Now().UTC()
	_, err := bunDB.NewInsert().Model(&[]models.Package{
		{Name: "Paket Basic", Price: 5000, DataLimit: "Unlimited", DurationHours: 6, ValidityHours: 24, Speed: "High Speed", IsActive: true, CreatedAt: now},
		{Name: "Paket Pro", Price: 50000, DataLimit: "Unlimited", DurationHours: 144, ValidityHours: 168, Speed: "High Speed", IsActive: true, CreatedAt: now},
		{Name: "Paket Lama", Price: 1000, DataLimit: "1GB", DurationHours: 1, ValidityHours: 1, Speed: "Low", IsActive: false, CreatedAt: now},
	}).Exec(context.Background())
	require.NoError(t, err)

	tokens := auth.NewTokenManager("test-secret", time.Hour, nil)
	userService := users.NewService(&userdb.DB{Bun: bunDB}, tokens, log)
	userService.BcryptCost = bcrypt.MinCost

	emitter := sse.NewOrderEventEmitter()
	orderService := order.NewOrderService(&orderdb.DB{Bun: bunDB}, offlineGateway{}, nil, emitter, log,
		order.Options{ProfileName: "default", ClientKey: "client-key", VerifySignature: true})

	handler := order_api.NewHandler(orderService, userService, catalog.New(bunDB), qr.NewGenerator("http://hotspot.local/login", 128), log)
	router := order_api.NewRouter(order_api.RouterConfig{
		Handler:      handler,
		SSE:          order_api.NewSSEHandler(log, emitter),
		Tokens:       tokens,
		Limiter:      limiter,
		AllowOrigins: []string{"*"},
		Logger:       log,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, emitter: emitter, handler: handler}
}

func (s *testServer) post(t *testing.T, token string, body string) (int, apiResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/api", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (s *testServer) login(t *testing.T) (string, int64) {
	t.Helper()
	code, res := s.post(t, "", `{"action":"register","name":"Budi","email":"budi@example.com","password":"rahasia"}`)
	require.Equal(t, http.StatusOK, code, res.Message)

	code, res = s.post(t, "", `{"action":"login","email":"budi@example.com","password":"rahasia"}`)
	require.Equal(t, http.StatusOK, code, res.Message)
	assert.Equal(t, "Login berhasil", res.Message)

	var result models.AuthResult
	require.NoError(t, json.Unmarshal(res.Data, &result))
	require.NotEmpty(t, result.Token)
	return result.Token, result.User.ID
}

func (s *testServer) checkout(t *testing.T, token string) models.CheckoutResult {
	t.Helper()
	code, res := s.post(t, token, `{"action":"checkout","packageName":"Paket Basic","packagePrice":5000,
		"customerName":"Budi","customerEmail":"budi@example.com","customerPhone":"0812","paymentMethod":"qris"}`)
	require.Equal(t, http.StatusOK, code, res.Message)
	var out models.CheckoutResult
	require.NoError(t, json.Unmarshal(res.Data, &out))
	return out
}

func (s *testServer) notify(t *testing.T, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(s.srv.URL+"/api/payment/notification", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, strings.TrimSpace(string(b))
}

func TestRegisteredActions(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, []string{
		"checkout", "get_packages", "get_payment_config", "get_user_vouchers",
		"login", "logout", "register", "update_profile",
	}, s.handler.Actions())
}

func TestDispatcherErrors(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		body    string
		status  int
		message string
	}{
		{`not json`, http.StatusBadRequest, "Invalid JSON input"},
		{`{}`, http.StatusBadRequest, "Invalid JSON input"},
		{`{"email":"a@b.c"}`, http.StatusBadRequest, "No action specified"},
		{`{"action":""}`, http.StatusBadRequest, "No action specified"},
		{`{"action":"contact"}`, http.StatusBadRequest, "Invalid action"},
		{`{"action":"checkout"}`, http.StatusUnauthorized, auth.MsgUnauthorized},
		{`{"action":"get_user_vouchers"}`, http.StatusUnauthorized, auth.MsgUnauthorized},
	}
	for _, tc := range cases {
		code, res := s.post(t, "", tc.body)
		assert.Equal(t, tc.status, code, tc.body)
		assert.Equal(t, "error", res.Status, tc.body)
		assert.Equal(t, tc.message, res.Message, tc.body)
	}

	resp, err := http.Get(s.srv.URL + "/api")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestBadTokenIsRejected(t *testing.T) {
	s := newTestServer(t)
	code, res := s.post(t, "garbage", `{"action":"get_packages"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, auth.MsgUnauthorized, res.Message)
}

func TestPublicActions(t *testing.T) {
	s := newTestServer(t)

	code, res := s.post(t, "", `{"action":"get_packages"}`)
	require.Equal(t, http.StatusOK, code)
	var pkgs []models.Package
	require.NoError(t, json.Unmarshal(res.Data, &pkgs))
	require.Len(t, pkgs, 2)
	assert.Equal(t, "Paket Basic", pkgs[0].Name)
	assert.Equal(t, "Paket Pro", pkgs[1].Name)

	code, res = s.post(t, "", `{"action":"get_payment_config"}`)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"client_key":"client-key","is_production":false}`, string(res.Data))

	code, res = s.post(t, "", `{"action":"login","email":"nobody@example.com","password":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Email atau password salah", res.Message)

	code, res = s.post(t, "", `{"action":"register","name":"Budi","email":"bad","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Format email tidak valid", res.Message)
}

func TestCheckoutErrors(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login(t)

	code, res := s.post(t, token, `{"action":"checkout","packageName":"Paket Basic"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Field packagePrice wajib diisi", res.Message)

	code, res = s.post(t, token, `{"action":"checkout","packageName":"Paket Basic","packagePrice":"5000",
		"customerName":"Budi","customerEmail":"siapa@example.com","customerPhone":"0812","paymentMethod":"qris"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "User tidak ditemukan", res.Message)

	code, res = s.post(t, token, `{"action":"checkout","packageName":"Paket Lama","packagePrice":"1000",
		"customerName":"Budi","customerEmail":"budi@example.com","customerPhone":"0812","paymentMethod":"qris"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Paket tidak ditemukan", res.Message)
}

func TestCheckoutToPaidVoucherFlow(t *testing.T) {
	s := newTestServer(t)
	token, userID := s.login(t)

	out := s.checkout(t, token)
	assert.Equal(t, fmt.Sprintf("test-token-%d", out.OrderID), out.SnapToken)
	assert.Equal(t, models.StatusPending, out.OrderStatus)

	code, res := s.post(t, token, `{"action":"get_user_vouchers"}`)
	require.Equal(t, http.StatusOK, code)
	var views []models.VoucherView
	require.NoError(t, json.Unmarshal(res.Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, models.StatusPending, views[0].OrderStatus)
	assert.False(t, views[0].IsActive)
	assert.Equal(t, "Paket Basic", views[0].PackageName)

	qrURL := fmt.Sprintf("%s/api/vouchers/%s/qr", s.srv.URL, views[0].VoucherCode)
	qrReq, _ := http.NewRequest(http.MethodGet, qrURL, nil)
	qrReq.Header.Set("Authorization", "Bearer "+token)
	qrResp, err := http.DefaultClient.Do(qrReq)
	require.NoError(t, err)
	qrResp.Body.Close()
	assert.Equal(t, http.StatusConflict, qrResp.StatusCode)

	code, res = s.post(t, token, fmt.Sprintf(`{"action":"get_user_vouchers","user_id":%d}`, userID+1))
	assert.Equal(t, http.StatusForbidden, code)

	// Unsigned notifications are accepted while no server key is configured.
	status, body := s.notify(t, fmt.Sprintf(`{"order_id":"%d","transaction_status":"settlement"}`, out.OrderID))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)

	status, _ = s.notify(t, fmt.Sprintf(`{"order_id":"%d","transaction_status":"settlement"}`, out.OrderID))
	assert.Equal(t, http.StatusOK, status)

	_, res = s.post(t, token, `{"action":"get_user_vouchers"}`)
	require.NoError(t, json.Unmarshal(res.Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, models.StatusPaid, views[0].OrderStatus)
	assert.True(t, views[0].IsActive)

	qrResp, err = http.DefaultClient.Do(qrReq)
	require.NoError(t, err)
	defer qrResp.Body.Close()
	require.Equal(t, http.StatusOK, qrResp.StatusCode)
	assert.Equal(t, "image/png", qrResp.Header.Get("Content-Type"))
	raw, _ := io.ReadAll(qrResp.Body)
	_, err = png.Decode(bytes.NewReader(raw))
	assert.NoError(t, err)
}

func TestWebhookResponses(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.notify(t, `{"order_id":`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.notify(t, `{"transaction_status":"settlement"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := s.notify(t, `{"order_id":"424242","transaction_status":"settlement"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)
}

func TestWebhookIsNotRateLimited(t *testing.T) {
	s := newLimitedTestServer(t, middleware.NewRateLimiter(5, 20))

	codes := map[int]int{}
	for i := 0; i < 30; i++ {
		status, _ := s.notify(t, `{"order_id":"999","transaction_status":"settlement"}`)
		codes[status]++
	}
	assert.Equal(t, map[int]int{http.StatusOK: 30}, codes)

	limited := 0
	for i := 0; i < 30; i++ {
		status, _ := s.post(t, "", `{"action":"get_payment_config"}`)
		if status == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Positive(t, limited, "action endpoint keeps its limiter")
}

func TestVoucherQRForeignCodeIsNotFound(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login(t)

	req, _ := http.NewRequest(http.MethodGet, s.srv.URL+"/api/vouchers/WHDEADBEEF/qr", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	anon, err := http.Get(s.srv.URL + "/api/vouchers/WHDEADBEEF/qr")
	require.NoError(t, err)
	defer anon.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, anon.StatusCode)
}

func TestUpdateProfileAndLogout(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login(t)

	code, res := s.post(t, token, `{"action":"update_profile","name":"Budi","email":"budi@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Tidak ada perubahan yang dilakukan", res.Message)

	code, res = s.post(t, token, `{"action":"update_profile","name":"Budi Santoso","email":"budi@example.com","phone":"0813"}`)
	require.Equal(t, http.StatusOK, code, res.Message)
	assert.Equal(t, "Profile berhasil diperbarui", res.Message)

	code, _ = s.post(t, token, `{"action":"logout"}`)
	assert.Equal(t, http.StatusOK, code)
}

func TestOrderEventsStream(t *testing.T) {
	s := newTestServer(t)
	token, userID := s.login(t)
	out := s.checkout(t, token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.srv.URL+"/api/orders/events", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	require.Eventually(t, func() bool { return s.emitter.ClientCount(userID) == 1 }, time.Second, 10*time.Millisecond)

	status, _ := s.notify(t, fmt.Sprintf(`{"order_id":%d,"transaction_status":"settlement"}`, out.OrderID))
	require.Equal(t, http.StatusOK, status)

	var data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, "status_changed") {
			data = strings.TrimPrefix(strings.TrimSpace(line), "data: ")
		}
	}
	var ev models.OrderEvent
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, out.OrderID, ev.OrderID)
	assert.Equal(t, models.StatusPaid, ev.Status)
	assert.Equal(t, models.StatusPending, ev.PreviousStatus)
}

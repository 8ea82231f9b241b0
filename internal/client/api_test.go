package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wifihub/internal/models"
	"wifihub/internal/utils"
)

// fakeAPI answers actions from a table and records what it received.
type fakeAPI struct {
	t        *testing.T
	received []map[string]any
	auth     []string
	replies  map[string]func() (int, utils.APIResponse)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
	f.received = append(f.received, body)
	f.auth = append(f.auth, r.Header.Get("Authorization"))

	reply, ok := f.replies[body["action"].(string)]
	if !ok {
		_ = utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid action"))
		return
	}
	status, resp := reply()
	_ = utils.WriteJSON(w, status, resp)
}

func newFakeAPI(t *testing.T) (*fakeAPI, *APIClient) {
	f := &fakeAPI{t: t, replies: map[string]func() (int, utils.APIResponse){
		"login": func() (int, utils.APIResponse) {
			return http.StatusOK, utils.SuccessResponse("Login berhasil", models.AuthResult{
				User:  &models.User{ID: 7, Email: "budi@example.com"},
				Token: "jwt-7",
			})
		},
	}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, NewAPIClient(srv.URL+"/", NewSession())
}

func TestLoginStartsSession(t *testing.T) {
	f, c := newFakeAPI(t)

	res, err := c.Login(context.Background(), "budi@example.com", "rahasia")
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.User.ID)
	assert.True(t, c.Session.Active())
	assert.Equal(t, "jwt-7", c.Session.Token())

	require.Len(t, f.received, 1)
	assert.Equal(t, "login", f.received[0]["action"])
	assert.Equal(t, "budi@example.com", f.received[0]["email"])
	assert.Empty(t, f.auth[0])
}

func TestActionsCarryBearerToken(t *testing.T) {
	f, c := newFakeAPI(t)
	f.replies["get_user_vouchers"] = func() (int, utils.APIResponse) {
		return http.StatusOK, utils.SuccessResponse("", []models.VoucherView{{OrderID: 3, OrderStatus: models.StatusPending}})
	}
	_, err := c.Login(context.Background(), "budi@example.com", "rahasia")
	require.NoError(t, err)

	vs, err := c.Vouchers(context.Background())
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, models.StatusPending, vs[0].OrderStatus)
	assert.Equal(t, "Bearer jwt-7", f.auth[1])
}

func TestUnauthorizedInvalidatesSession(t *testing.T) {
	f, c := newFakeAPI(t)
	f.replies["get_user_vouchers"] = func() (int, utils.APIResponse) {
		return http.StatusUnauthorized, utils.ErrorResponse("Unauthorized")
	}
	_, err := c.Login(context.Background(), "budi@example.com", "rahasia")
	require.NoError(t, err)

	_, err = c.Vouchers(context.Background())
	assert.ErrorIs(t, err, ErrSessionEnded)
	assert.False(t, c.Session.Active())
}

func TestUserNotFoundInvalidatesSession(t *testing.T) {
	f, c := newFakeAPI(t)
	f.replies["checkout"] = func() (int, utils.APIResponse) {
		return http.StatusNotFound, utils.ErrorResponse("User tidak ditemukan")
	}
	_, err := c.Login(context.Background(), "budi@example.com", "rahasia")
	require.NoError(t, err)

	_, _, err = c.Checkout(context.Background(), models.CheckoutRequest{PackageName: "Harian"})
	assert.ErrorIs(t, err, ErrSessionEnded)
	assert.False(t, c.Session.Active())
}

func TestOtherErrorsKeepSession(t *testing.T) {
	f, c := newFakeAPI(t)
	f.replies["checkout"] = func() (int, utils.APIResponse) {
		return http.StatusNotFound, utils.ErrorResponse("Paket tidak ditemukan")
	}
	_, err := c.Login(context.Background(), "budi@example.com", "rahasia")
	require.NoError(t, err)

	_, _, err = c.Checkout(context.Background(), models.CheckoutRequest{PackageName: "Bulanan"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Paket tidak ditemukan", apiErr.Message)
	assert.True(t, c.Session.Active())
}

func TestFailedLoginDoesNotStartSession(t *testing.T) {
	f, c := newFakeAPI(t)
	f.replies["login"] = func() (int, utils.APIResponse) {
		return http.StatusUnauthorized, utils.ErrorResponse("Email atau password salah")
	}

	_, err := c.Login(context.Background(), "budi@example.com", "salah")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.False(t, c.Session.Active())
}

func TestLogoutAlwaysEndsSession(t *testing.T) {
	_, c := newFakeAPI(t)
	_, err := c.Login(context.Background(), "budi@example.com", "rahasia")
	require.NoError(t, err)

	assert.Error(t, c.Logout(context.Background()))
	assert.False(t, c.Session.Active())
}

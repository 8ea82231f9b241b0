package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wifihub/internal/models"
	"wifihub/internal/utils"
)

const userNotFoundMarker = "tidak ditemukan"

// ErrSessionEnded is returned when the server no longer accepts the session.
var ErrSessionEnded = errors.New("session ended")

// APIError is a {status:"error"} reply from the action endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIClient talks to the POST /api action endpoint on behalf of a Session.
type APIClient struct {
	BaseURL string
	HTTP    *http.Client
	Session *Session
}

func NewAPIClient(baseURL string, session *Session) *APIClient {
	return &APIClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Session: session,
	}
}

func (c *APIClient) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	var res models.AuthResult
	if err := c.call(ctx, "login", models.LoginRequest{Email: email, Password: password}, &res); err != nil {
		return nil, err
	}
	c.Session.Start(res.User, res.Token)
	return &res, nil
}

func (c *APIClient) Logout(ctx context.Context) error {
	defer c.Session.Invalidate()
	return c.call(ctx, "logout", nil, nil)
}

func (c *APIClient) Packages(ctx context.Context) ([]models.Package, error) {
	var pkgs []models.Package
	if err := c.call(ctx, "get_packages", nil, &pkgs); err != nil {
		return nil, err
	}
	return pkgs, nil
}

func (c *APIClient) Checkout(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResult, string, error) {
	var res models.CheckoutResult
	msg, err := c.callWithMessage(ctx, "checkout", req, &res)
	if err != nil {
		return nil, "", err
	}
	return &res, msg, nil
}

// Vouchers lists the session user's vouchers, newest first.
func (c *APIClient) Vouchers(ctx context.Context) ([]models.VoucherView, error) {
	var views []models.VoucherView
	if err := c.call(ctx, "get_user_vouchers", nil, &views); err != nil {
		return nil, err
	}
	return views, nil
}

func (c *APIClient) call(ctx context.Context, action string, payload, out any) error {
	_, err := c.callWithMessage(ctx, action, payload, out)
	return err
}

func (c *APIClient) callWithMessage(ctx context.Context, action string, payload, out any) (string, error) {
	body, err := actionBody(action, payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.Session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: read response: %w", action, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", action, err)
	}

	if env.Status != utils.StatusSuccess {
		if c.endsSession(resp.StatusCode, env.Message) {
			c.Session.Invalidate()
			return "", fmt.Errorf("%s: %w: %s", action, ErrSessionEnded, env.Message)
		}
		return "", &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", fmt.Errorf("%s: decode data: %w", action, err)
		}
	}
	return env.Message, nil
}

// endsSession reports whether a failure means the logged-in user is gone.
func (c *APIClient) endsSession(status int, message string) bool {
	if !c.Session.Active() {
		return false
	}
	if status == http.StatusUnauthorized {
		return true
	}
	return strings.HasPrefix(message, "User ") && strings.Contains(message, userNotFoundMarker)
}

// actionBody flattens payload into one JSON object next to "action".
func actionBody(action string, payload any) ([]byte, error) {
	fields := map[string]any{}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("payload for %s must be an object: %w", action, err)
		}
	}
	fields["action"] = action
	return json.Marshal(fields)
}

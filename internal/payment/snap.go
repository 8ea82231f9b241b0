package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"wifihub/internal/config"
	"wifihub/internal/logger"
)

const transactionsPath = "/snap/v1/transactions"

// TransactionRequest is what the gateway needs to open a Snap payment page.
type TransactionRequest struct {
	OrderID       string `validate:"required"`
	Amount        int64  `validate:"gt=0"`
	CustomerName  string
	CustomerEmail string `validate:"required,email"`
	CustomerPhone string
	PackageID     string
	PackageName   string
}

type transactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type customerDetails struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

type itemDetail struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

type callbacks struct {
	Finish string `json:"finish"`
}

type snapRequest struct {
	TransactionDetails transactionDetails `json:"transaction_details"`
	CustomerDetails    customerDetails    `json:"customer_details"`
	ItemDetails        []itemDetail       `json:"item_details"`
	Callbacks          *callbacks         `json:"callbacks,omitempty"`
	CreditCard3DSecure bool               `json:"credit_card_3d_secure"`
}

type snapResponse struct {
	Token         string   `json:"token"`
	RedirectURL   string   `json:"redirect_url"`
	ErrorMessages []string `json:"error_messages"`
}

// SnapClient talks to the Midtrans Snap API. It holds no per-request state.
type SnapClient struct {
	serverKey  string
	baseURL    string
	finishURL  string
	httpClient *http.Client
	validate   *validator.Validate
	log        *logger.Logger
}

func NewSnapClient(cfg config.MidtransConfig, log *logger.Logger) *SnapClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SnapClient{
		serverKey:  cfg.ServerKey,
		baseURL:    strings.TrimRight(cfg.BaseURL(), "/"),
		finishURL:  cfg.FinishURL,
		httpClient: &http.Client{Timeout: timeout},
		validate:   validator.New(),
		log:        log,
	}
}

// CreateTransaction requests a Snap token for the order. Every failure is
// logged and reported as ok == false; the caller decides how to degrade.
func (c *SnapClient) CreateTransaction(ctx context.Context, req TransactionRequest) (string, bool) {
	if c.serverKey == "" {
		c.log.Error("PAYMENT", "Midtrans server key not configured")
		return "", false
	}
	if err := c.validate.Struct(req); err != nil {
		c.log.Error("PAYMENT", fmt.Sprintf("Invalid transaction request for order %s: %v", req.OrderID, err))
		return "", false
	}

	body := snapRequest{
		TransactionDetails: transactionDetails{OrderID: req.OrderID, GrossAmount: req.Amount},
		CustomerDetails: customerDetails{
			FirstName: req.CustomerName,
			Email:     req.CustomerEmail,
			Phone:     req.CustomerPhone,
		},
		ItemDetails: []itemDetail{{
			ID:       req.PackageID,
			Price:    req.Amount,
			Quantity: 1,
			Name:     req.PackageName,
		}},
	}
	if c.finishURL != "" {
		body.Callbacks = &callbacks{Finish: c.finishURL}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		c.log.Error("PAYMENT", fmt.Sprintf("Failed to encode Snap request: %v", err))
		return "", false
	}

	url := c.baseURL + transactionsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		c.log.Error("PAYMENT", fmt.Sprintf("Failed to build Snap request: %v", err))
		return "", false
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.serverKey+":")))

	c.log.LogPayment("SNAP", req.OrderID, fmt.Sprintf("POST %s amount=%d", url, req.Amount))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Error("PAYMENT", fmt.Sprintf("Snap request for order %s failed: %v", req.OrderID, err))
		return "", false
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.log.Error("PAYMENT", fmt.Sprintf("Failed to read Snap response for order %s: %v", req.OrderID, err))
		return "", false
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.log.Error("PAYMENT", fmt.Sprintf("Snap API error for order %s: HTTP %d, response: %s", req.OrderID, resp.StatusCode, raw))
		return "", false
	}

	var out snapResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.log.Error("PAYMENT", fmt.Sprintf("Undecodable Snap response for order %s: %v", req.OrderID, err))
		return "", false
	}

	switch {
	case out.Token != "":
		c.log.LogPayment("SNAP", req.OrderID, "transaction created")
		return out.Token, true
	case out.RedirectURL != "":
		c.log.Warn("PAYMENT", fmt.Sprintf("Snap returned redirect_url without token for order %s: %s (errors: %v)", req.OrderID, out.RedirectURL, out.ErrorMessages))
	default:
		c.log.Warn("PAYMENT", fmt.Sprintf("Snap response missing token for order %s: %s", req.OrderID, raw))
	}
	return "", false
}

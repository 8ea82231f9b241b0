package models

// Gateway transaction_status values.
const (
	TransactionCapture    = "capture"
	TransactionSettlement = "settlement"
	TransactionPending    = "pending"
	TransactionDeny       = "deny"
	TransactionExpire     = "expire"
	TransactionCancel     = "cancel"
	TransactionFailure    = "failure"
)

// Gateway fraud_status values.
const (
	FraudAccept    = "accept"
	FraudChallenge = "challenge"
	FraudDeny      = "deny"
)

// Notification is the asynchronous payment status callback body.
type Notification struct {
	OrderID           FlexString `json:"order_id"`
	TransactionStatus string     `json:"transaction_status"`
	FraudStatus       string     `json:"fraud_status,omitempty"`
	StatusCode        FlexString `json:"status_code,omitempty"`
	GrossAmount       FlexString `json:"gross_amount,omitempty"`
	SignatureKey      string     `json:"signature_key,omitempty"`
	TransactionID     string     `json:"transaction_id,omitempty"`
	PaymentType       string     `json:"payment_type,omitempty"`
	TransactionTime   string     `json:"transaction_time,omitempty"`
}

package payment

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"wifihub/internal/models"
)

// Signature computes the notification signature:
// hex(sha512(order_id + status_code + gross_amount + server_key)).
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// HasServerKey reports whether notifications can be verified at all.
func (c *SnapClient) HasServerKey() bool {
	return c.serverKey != ""
}

func (c *SnapClient) VerifySignature(n models.Notification) bool {
	if c.serverKey == "" || n.SignatureKey == "" {
		return false
	}
	want := Signature(n.OrderID.String(), n.StatusCode.String(), n.GrossAmount.String(), c.serverKey)
	got := strings.ToLower(n.SignatureKey)
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

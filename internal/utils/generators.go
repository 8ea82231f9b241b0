package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateVoucherCode returns "WH" followed by 8 upper-case hex characters.
func GenerateVoucherCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("voucher code: %w", err)
	}
	return "WH" + strings.ToUpper(hex.EncodeToString(b)), nil
}

// GenerateVoucherUsername returns user_<unix seconds><4 random digits>.
func GenerateVoucherUsername(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("voucher username: %w", err)
	}
	return fmt.Sprintf("user_%d%04d", now.Unix(), n.Int64()+1000), nil
}

// GenerateVoucherPassword returns 12 random bytes hex encoded.
func GenerateVoucherPassword() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("voucher password: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func GenerateUUID() string {
	return uuid.NewString()
}

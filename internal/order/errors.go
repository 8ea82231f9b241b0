package order

import "fmt"

const (
	CategoryValidation = "validation"
	CategorySignature  = "signature"
	CategoryProcessing = "processing"
)

// WebhookError represents an error that occurred during webhook processing
type WebhookError struct {
	Category      string // validation, signature, processing
	StatusCode    int    // HTTP status code
	PublicError   string // Safe to expose to clients
	InternalError string // Detailed error for logs only
	OriginalErr   error  // Underlying error
}

func (e *WebhookError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("%s: %v", e.InternalError, e.OriginalErr)
	}
	return e.InternalError
}

func (e *WebhookError) Unwrap() error {
	return e.OriginalErr
}

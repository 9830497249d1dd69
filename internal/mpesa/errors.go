// internal/mpesa/errors.go
package mpesa

import (
	"fmt"

	xerrors "tuzo-service/internal/pkg/errors"
)

const (
	opOAuth   = "oauth"
	opSTKPush = "stkpush"
)

// APIError is a rejection returned by Daraja, or a failure to reach it at
// all (Cause set, StatusCode 0).
type APIError struct {
	Op         string `json:"-"`
	StatusCode int    `json:"-"`
	RequestID  string `json:"requestId"`
	Code       string `json:"errorCode"`
	Message    string `json:"errorMessage"`
	Cause      error  `json:"-"`
}

func transportError(op string, err error) *APIError {
	return &APIError{Op: op, Message: "M-PESA request failed: " + err.Error(), Cause: err}
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("mpesa %s error: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("mpesa %s error (status %d, code %s): %s", e.Op, e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return xerrors.ErrProvider }

// ProviderMessage is the text surfaced to API clients.
func (e *APIError) ProviderMessage() string {
	if e.Op == opOAuth {
		return "Failed to get M-PESA access token: " + e.Message
	}
	return "STK push failed: " + e.Message
}

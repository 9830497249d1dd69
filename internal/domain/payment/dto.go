// internal/domain/payment/dto.go
package payment

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	ActionSTKPush  = "stkpush"
	ActionCallback = "callback"
)

// ActionRequest is the body of POST /mpesa. Amount is kept raw so that both
// numbers and numeric strings are accepted.
type ActionRequest struct {
	Action      string          `json:"action"`
	Phone       string          `json:"phone"`
	Amount      json.RawMessage `json:"amount"`
	BusinessID  string          `json:"businessId"`
	Description string          `json:"description"`
	Body        *CallbackBody   `json:"Body,omitempty"`
}

type STKPushRequest struct {
	Phone       string
	Amount      string
	BusinessID  string
	Description string
}

type STKPushResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	TransactionID     string `json:"transactionId"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	MerchantRequestID string `json:"MerchantRequestID,omitempty"`
	CustomerMessage   string `json:"CustomerMessage,omitempty"`
}

// CallbackEnvelope is the Daraja STK callback document.
type CallbackEnvelope struct {
	Body CallbackBody `json:"Body"`
}

type CallbackBody struct {
	STKCallback STKCallback `json:"stkCallback"`
}

type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

type CallbackItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value,omitempty"`
}

// Lookup returns the raw value of a metadata item.
func (cb *STKCallback) Lookup(name string) (interface{}, bool) {
	if cb.CallbackMetadata == nil {
		return nil, false
	}
	for _, item := range cb.CallbackMetadata.Item {
		if item.Name == name && item.Value != nil {
			return item.Value, true
		}
	}
	return nil, false
}

// Amount returns the paid amount from metadata, if present.
func (cb *STKCallback) Amount() (decimal.Decimal, bool) {
	v, ok := cb.Lookup("Amount")
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimalFrom(v)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Receipt returns the M-PESA receipt number, if present.
func (cb *STKCallback) Receipt() string {
	v, ok := cb.Lookup("MpesaReceiptNumber")
	if !ok {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// PhoneNumber returns the payer MSISDN reported by the provider.
func (cb *STKCallback) PhoneNumber() string {
	v, ok := cb.Lookup("PhoneNumber")
	if !ok {
		return ""
	}
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', 0, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

type CallbackResult struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	TransactionID    string `json:"transactionId,omitempty"`
	PointsAwarded    int64  `json:"pointsAwarded,omitempty"`
	RewardIssued     bool   `json:"rewardIssued,omitempty"`
	AlreadyProcessed bool   `json:"alreadyProcessed,omitempty"`
}

// ParseAmount accepts a JSON number or numeric string.
func ParseAmount(raw json.RawMessage) (string, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return "", false
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return "", false
		}
		str = strings.TrimSpace(str)
		return str, str != ""
	}
	return s, true
}

func decimalFrom(v interface{}) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(n))
	default:
		return decimal.NewFromString(fmt.Sprint(v))
	}
}

// internal/mpesa/simulator.go
package mpesa

import (
	"context"
	"strconv"
	"time"

	"tuzo-service/internal/domain/payment"

	"github.com/oklog/ulid/v2"
)

const simulatedAccepted = "Success. Request accepted for processing"

// Simulator stands in for Daraja when no credentials are configured. It
// accepts every push; the payment service schedules the matching callback.
type Simulator struct{}

func NewSimulator() *Simulator {
	return &Simulator{}
}

func (s *Simulator) InitiateSTKPush(_ context.Context, in STKPushRequest) (*STKPushResult, error) {
	return &STKPushResult{
		MerchantRequestID:   "SIM-" + ulid.Make().String(),
		CheckoutRequestID:   "MPESA" + ulid.Make().String(),
		ResponseCode:        "0",
		ResponseDescription: simulatedAccepted,
		CustomerMessage:     simulatedAccepted,
		Simulated:           true,
	}, nil
}

// SimulatedCallback builds the successful callback Daraja would deliver for result.
func SimulatedCallback(result *STKPushResult, amount int64, msisdn string, at time.Time) payment.CallbackEnvelope {
	receipt := "SIM" + ulid.Make().String()

	items := []payment.CallbackItem{
		{Name: "Amount", Value: amount},
		{Name: "MpesaReceiptNumber", Value: receipt},
		{Name: "TransactionDate", Value: transactionDate(at)},
	}
	if n, err := strconv.ParseInt(msisdn, 10, 64); err == nil {
		items = append(items, payment.CallbackItem{Name: "PhoneNumber", Value: n})
	}

	return payment.CallbackEnvelope{
		Body: payment.CallbackBody{
			STKCallback: payment.STKCallback{
				MerchantRequestID: result.MerchantRequestID,
				CheckoutRequestID: result.CheckoutRequestID,
				ResultCode:        0,
				ResultDesc:        "The service request is processed successfully.",
				CallbackMetadata:  &payment.CallbackMetadata{Item: items},
			},
		},
	}
}

func transactionDate(t time.Time) int64 {
	n, _ := strconv.ParseInt(t.In(nairobi()).Format(timestampLayout), 10, 64)
	return n
}

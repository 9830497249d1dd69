// internal/handlers/mpesa/mpesa_handler.go
package mpesa

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"tuzo-service/internal/domain/payment"
	xerrors "tuzo-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	msgInvalidAction = "Invalid action specified"
	msgInvalidBody   = "Invalid JSON body"
	msgInternal      = "Internal server error"
	msgBadToken      = "Invalid callback token"
)

type PaymentProcessor interface {
	InitiateSTKPush(ctx context.Context, in payment.STKPushRequest) (*payment.STKPushResponse, error)
	HandleCallback(ctx context.Context, body payment.CallbackBody) (*payment.CallbackResult, error)
}

// MpesaHandler exposes the payment proxy. Every failure is answered with
// HTTP 400 and {success:false, message, error}, except callbacks that do not
// carry the shared callback token, which get 401.
type MpesaHandler struct {
	payments      PaymentProcessor
	callbackToken string
	logger        *zap.Logger
}

// NewMpesaHandler builds the handler. When callbackToken is set, callbacks
// must present it as the token query value of the registered CallBackURL.
func NewMpesaHandler(payments PaymentProcessor, callbackToken string, logger *zap.Logger) *MpesaHandler {
	return &MpesaHandler{payments: payments, callbackToken: callbackToken, logger: logger}
}

// Dispatch handles POST /mpesa with {action: "stkpush" | "callback", ...}.
func (h *MpesaHandler) Dispatch(c *gin.Context) {
	var req payment.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, xerrors.Invalid(msgInvalidBody))
		return
	}

	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case payment.ActionSTKPush:
		amount, _ := payment.ParseAmount(req.Amount)
		resp, err := h.payments.InitiateSTKPush(c.Request.Context(), payment.STKPushRequest{
			Phone:       req.Phone,
			Amount:      amount,
			BusinessID:  req.BusinessID,
			Description: req.Description,
		})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)

	case payment.ActionCallback:
		if !h.authorizeCallback(c) {
			return
		}
		if req.Body == nil {
			h.fail(c, xerrors.Invalid("Missing callback body"))
			return
		}
		h.callback(c, *req.Body)

	default:
		h.fail(c, xerrors.Invalid(msgInvalidAction))
	}
}

// Callback is the Daraja CallBackURL target; it receives the bare stkCallback envelope.
func (h *MpesaHandler) Callback(c *gin.Context) {
	if !h.authorizeCallback(c) {
		return
	}
	var env payment.CallbackEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		h.fail(c, xerrors.Invalid(msgInvalidBody))
		return
	}
	h.callback(c, env.Body)
}

func (h *MpesaHandler) callback(c *gin.Context, body payment.CallbackBody) {
	result, err := h.payments.HandleCallback(c.Request.Context(), body)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *MpesaHandler) authorizeCallback(c *gin.Context) bool {
	if h.callbackToken == "" {
		return true
	}
	got := c.Query("token")
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.callbackToken)) == 1 {
		return true
	}
	h.logger.Warn("mpesa callback rejected: bad token",
		zap.String("path", c.FullPath()),
		zap.String("client_ip", c.ClientIP()),
		zap.Bool("token_present", got != ""),
	)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"message": msgBadToken,
		"error":   msgBadToken,
	})
	return false
}

func (h *MpesaHandler) fail(c *gin.Context, err error) {
	message := xerrors.PublicMessage(err, msgInternal)
	if message == msgInternal {
		h.logger.Error("mpesa request failed", zap.String("path", c.FullPath()), zap.Error(err))
	} else if !errors.Is(err, xerrors.ErrInvalidInput) {
		h.logger.Warn("mpesa request rejected", zap.String("path", c.FullPath()), zap.Error(err))
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": message,
		"error":   message,
	})
}

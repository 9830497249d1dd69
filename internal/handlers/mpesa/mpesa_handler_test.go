package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tuzo-service/internal/domain/payment"
	xerrors "tuzo-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type stubProcessor struct {
	pushed    []payment.STKPushRequest
	callbacks []payment.CallbackBody
	pushErr   error
}

func (s *stubProcessor) InitiateSTKPush(ctx context.Context, in payment.STKPushRequest) (*payment.STKPushResponse, error) {
	s.pushed = append(s.pushed, in)
	if s.pushErr != nil {
		return nil, s.pushErr
	}
	return &payment.STKPushResponse{Success: true, Message: "STK push initiated successfully", CheckoutRequestID: "ws_CO_1"}, nil
}

func (s *stubProcessor) HandleCallback(ctx context.Context, body payment.CallbackBody) (*payment.CallbackResult, error) {
	s.callbacks = append(s.callbacks, body)
	if body.STKCallback.CheckoutRequestID == "" {
		return nil, xerrors.Invalid("Missing CheckoutRequestID")
	}
	return &payment.CallbackResult{Success: true, Message: "Callback processed"}, nil
}

func newRouter(p *stubProcessor) *gin.Engine {
	return newTokenRouter(p, "")
}

func newTokenRouter(p *stubProcessor, token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewMpesaHandler(p, token, zap.NewNop())
	r := gin.New()
	r.POST("/mpesa", h.Dispatch)
	r.POST("/mpesa/callback", h.Callback)
	return r
}

func do(r http.Handler, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestDispatchSTKPush(t *testing.T) {
	p := &stubProcessor{}
	r := newRouter(p)

	w, out := do(r, "/mpesa", `{"action":"stkpush","phone":"0712345678","amount":"150","businessId":"b1","description":"Lunch"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if out["CheckoutRequestID"] != "ws_CO_1" {
		t.Fatalf("unexpected body %v", out)
	}
	if len(p.pushed) != 1 || p.pushed[0].Amount != "150" || p.pushed[0].BusinessID != "b1" {
		t.Fatalf("unexpected push %+v", p.pushed)
	}

	_, _ = do(r, "/mpesa", `{"action":"stkpush","phone":"0712345678","amount":99.5,"businessId":"b1"}`)
	if p.pushed[1].Amount != "99.5" {
		t.Fatalf("expected numeric amount to pass through, got %q", p.pushed[1].Amount)
	}
}

func TestDispatchErrors(t *testing.T) {
	p := &stubProcessor{pushErr: xerrors.Invalid("Invalid phone number format")}
	r := newRouter(p)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown action", `{"action":"refund"}`, msgInvalidAction},
		{"bad json", `{`, msgInvalidBody},
		{"validation", `{"action":"stkpush","phone":"1","amount":1,"businessId":"b"}`, "Invalid phone number format"},
		{"callback without body", `{"action":"callback"}`, "Missing callback body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out := do(r, "/mpesa", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if out["success"] != false || out["message"] != tt.want || out["error"] != tt.want {
				t.Fatalf("unexpected body %v", out)
			}
		})
	}
}

func TestDispatchHidesInternalErrors(t *testing.T) {
	p := &stubProcessor{pushErr: errors.New("pq: connection refused")}
	r := newRouter(p)

	w, out := do(r, "/mpesa", `{"action":"stkpush","phone":"0712345678","amount":1,"businessId":"b"}`)
	if w.Code != http.StatusBadRequest || out["message"] != msgInternal {
		t.Fatalf("expected generic 400, got %d %v", w.Code, out)
	}
}

func TestCallbackRoutes(t *testing.T) {
	p := &stubProcessor{}
	r := newRouter(p)

	cb := `{"Body":{"stkCallback":{"MerchantRequestID":"m","CheckoutRequestID":"ws_CO_1","ResultCode":0,"ResultDesc":"ok"}}}`

	w, out := do(r, "/mpesa/callback", cb)
	if w.Code != http.StatusOK || out["success"] != true {
		t.Fatalf("unexpected callback response %d %v", w.Code, out)
	}

	w, _ = do(r, "/mpesa", `{"action":"callback",`+strings.TrimPrefix(cb, "{"))
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected action callback response %d", w.Code)
	}
	if len(p.callbacks) != 2 || p.callbacks[1].STKCallback.CheckoutRequestID != "ws_CO_1" {
		t.Fatalf("unexpected callbacks %+v", p.callbacks)
	}

	w, out = do(r, "/mpesa/callback", `{"Body":{"stkCallback":{}}}`)
	if w.Code != http.StatusBadRequest || out["message"] != "Missing CheckoutRequestID" {
		t.Fatalf("unexpected response %d %v", w.Code, out)
	}
}

func TestCallbackRequiresToken(t *testing.T) {
	cb := `{"Body":{"stkCallback":{"MerchantRequestID":"m","CheckoutRequestID":"ws_CO_1","ResultCode":0,"ResultDesc":"ok","CallbackMetadata":{"Item":[{"Name":"Amount","Value":1000000}]}}}}`
	action := `{"action":"callback",` + strings.TrimPrefix(cb, "{")

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
	}{
		{"callback route without token", "/mpesa/callback", cb, http.StatusUnauthorized},
		{"callback route wrong token", "/mpesa/callback?token=guess", cb, http.StatusUnauthorized},
		{"callback route valid token", "/mpesa/callback?token=cb-secret", cb, http.StatusOK},
		{"callback action without token", "/mpesa", action, http.StatusUnauthorized},
		{"callback action wrong token", "/mpesa?token=cb-secre", action, http.StatusUnauthorized},
		{"callback action valid token", "/mpesa?token=cb-secret", action, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubProcessor{}
			r := newTokenRouter(p, "cb-secret")

			w, out := do(r, tt.path, tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			if tt.wantCode == http.StatusUnauthorized {
				if out["success"] != false || out["message"] != msgBadToken {
					t.Fatalf("unexpected body %v", out)
				}
				if len(p.callbacks) != 0 {
					t.Fatalf("callback must not reach the processor, got %+v", p.callbacks)
				}
				return
			}
			if len(p.callbacks) != 1 {
				t.Fatalf("expected callback to be processed once, got %d", len(p.callbacks))
			}
		})
	}
}

func TestSTKPushDoesNotNeedCallbackToken(t *testing.T) {
	p := &stubProcessor{}
	r := newTokenRouter(p, "cb-secret")

	w, _ := do(r, "/mpesa", `{"action":"stkpush","phone":"0712345678","amount":"150","businessId":"b1"}`)
	if w.Code != http.StatusOK || len(p.pushed) != 1 {
		t.Fatalf("expected push to pass without callback token, got %d", w.Code)
	}
}

package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	xerrors "tuzo-service/internal/pkg/errors"

	"go.uber.org/zap"
)

type darajaStub struct {
	oauthCalls int32
	lastPush   stkPushPayload
	pushStatus int
	pushBody   string
}

func (d *darajaStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&d.oauthCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"requestId":"1","errorCode":"400.008.01","errorMessage":"Invalid Authentication passed"}`))
			return
		}
		if r.URL.Query().Get("grant_type") != "client_credentials" {
			t.Errorf("unexpected grant_type %q", r.URL.Query().Get("grant_type"))
		}
		w.Write([]byte(`{"access_token":"tok-123","expires_in":"3599"}`))
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&d.lastPush); err != nil {
			t.Errorf("decode push: %v", err)
		}
		status := d.pushStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		w.Write([]byte(d.pushBody))
	})
	return mux
}

func newTestClient(t *testing.T, stub *darajaStub, key string) *Client {
	t.Helper()
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		BaseURL:        srv.URL,
		ConsumerKey:    key,
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/api/v1/mpesa/callback",
	}, nil, zap.NewNop())
	c.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }
	return c
}

func TestInitiateSTKPushSuccess(t *testing.T) {
	stub := &darajaStub{pushBody: `{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`}
	c := newTestClient(t, stub, "key")

	res, err := c.InitiateSTKPush(context.Background(), STKPushRequest{
		PhoneNumber:      "254712345678",
		Amount:           150,
		AccountReference: "Mama Mboga Groceries",
	})
	if err != nil {
		t.Fatalf("InitiateSTKPush: %v", err)
	}
	if res.CheckoutRequestID != "ws_CO_191220191020363925" {
		t.Fatalf("unexpected checkout id %q", res.CheckoutRequestID)
	}

	p := stub.lastPush
	if p.Timestamp != "20240301123000" {
		t.Fatalf("expected Nairobi timestamp, got %q", p.Timestamp)
	}
	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379passkey20240301123000"))
	if p.Password != wantPassword {
		t.Fatalf("unexpected password %q", p.Password)
	}
	if p.TransactionType != "CustomerBuyGoodsOnline" || p.PartyB != "174379" {
		t.Fatalf("unexpected defaults %+v", p)
	}
	if p.PartyA != "254712345678" || p.PhoneNumber != "254712345678" || p.Amount != 150 {
		t.Fatalf("unexpected payer fields %+v", p)
	}
	if p.AccountReference != "Mama Mboga G" {
		t.Fatalf("expected account reference truncated to 12 chars, got %q", p.AccountReference)
	}
	if p.TransactionDesc != "Payment for services" {
		t.Fatalf("expected default description, got %q", p.TransactionDesc)
	}
}

func TestAccessTokenIsCached(t *testing.T) {
	stub := &darajaStub{pushBody: `{"CheckoutRequestID":"ws_CO_1","ResponseCode":"0"}`}
	c := newTestClient(t, stub, "key")

	for i := 0; i < 3; i++ {
		if _, err := c.InitiateSTKPush(context.Background(), STKPushRequest{PhoneNumber: "254712345678", Amount: 10}); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if n := atomic.LoadInt32(&stub.oauthCalls); n != 1 {
		t.Fatalf("expected one oauth call, got %d", n)
	}
}

func TestInitiateSTKPushProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "error body",
			status:  http.StatusBadRequest,
			body:    `{"requestId":"1","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`,
			wantMsg: "STK push failed: Bad Request - Invalid PhoneNumber",
		},
		{
			name:    "non-zero response code",
			status:  http.StatusOK,
			body:    `{"ResponseCode":"1","ResponseDescription":"Rejected"}`,
			wantMsg: "STK push failed: Rejected",
		},
		{
			name:    "empty body",
			status:  http.StatusInternalServerError,
			body:    ``,
			wantMsg: "STK push failed: Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &darajaStub{pushStatus: tt.status, pushBody: tt.body}
			c := newTestClient(t, stub, "key")

			_, err := c.InitiateSTKPush(context.Background(), STKPushRequest{PhoneNumber: "254712345678", Amount: 10})
			if !errors.Is(err, xerrors.ErrProvider) {
				t.Fatalf("expected provider error, got %v", err)
			}
			if got := xerrors.PublicMessage(err, "fallback"); got != tt.wantMsg {
				t.Fatalf("public message = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestAccessTokenFailure(t *testing.T) {
	stub := &darajaStub{}
	c := newTestClient(t, stub, "wrong")

	_, err := c.AccessToken(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Op != opOAuth || !strings.Contains(apiErr.ProviderMessage(), "Invalid Authentication passed") {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestSimulator(t *testing.T) {
	res, err := NewSimulator().InitiateSTKPush(context.Background(), STKPushRequest{PhoneNumber: "254712345678", Amount: 500})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !strings.HasPrefix(res.CheckoutRequestID, "MPESA") || !res.Simulated {
		t.Fatalf("unexpected simulated result %+v", res)
	}

	env := SimulatedCallback(res, 500, "254712345678", time.Now())
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Body struct {
			STKCallback struct {
				CheckoutRequestID string
				ResultCode        int
			} `json:"stkCallback"`
		}
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Body.STKCallback.CheckoutRequestID != res.CheckoutRequestID || decoded.Body.STKCallback.ResultCode != 0 {
		t.Fatalf("unexpected callback %s", raw)
	}

	cb := env.Body.STKCallback
	if amount, ok := cb.Amount(); !ok || amount.IntPart() != 500 {
		t.Fatalf("unexpected amount %v", amount)
	}
	if cb.PhoneNumber() != "254712345678" {
		t.Fatalf("unexpected phone %q", cb.PhoneNumber())
	}
	if !strings.HasPrefix(cb.Receipt(), "SIM") || len(cb.Receipt()) != 29 {
		t.Fatalf("unexpected receipt %q", cb.Receipt())
	}
}

func TestUnreachableProviderIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	c := NewClient(Config{
		BaseURL:        baseURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		Timeout:        2 * time.Second,
	}, nil, zap.NewNop())

	_, err := c.InitiateSTKPush(context.Background(), STKPushRequest{PhoneNumber: "254712345678", Amount: 10})
	if !errors.Is(err, xerrors.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	msg := xerrors.PublicMessage(err, "Internal server error")
	if !strings.HasPrefix(msg, "Failed to get M-PESA access token: M-PESA request failed: ") {
		t.Fatalf("unexpected public message %q", msg)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Cause == nil || apiErr.StatusCode != 0 {
		t.Fatalf("expected transport APIError, got %#v", err)
	}
}

func TestAccountReferenceKeepsWholeCharacters(t *testing.T) {
	stub := &darajaStub{pushBody: `{"CheckoutRequestID":"ws_CO_2","ResponseCode":"0"}`}
	c := newTestClient(t, stub, "key")

	if _, err := c.InitiateSTKPush(context.Background(), STKPushRequest{
		PhoneNumber:      "254712345678",
		Amount:           10,
		AccountReference: "Café Société Nairobi",
	}); err != nil {
		t.Fatalf("InitiateSTKPush: %v", err)
	}
	if got := stub.lastPush.AccountReference; got != "Café Société" {
		t.Fatalf("unexpected account reference %q", got)
	}
}

func TestCallbackURLCarriesToken(t *testing.T) {
	stub := &darajaStub{pushBody: `{"MerchantRequestID":"m","CheckoutRequestID":"ws_CO_1","ResponseCode":"0","ResponseDescription":"ok","CustomerMessage":"ok"}`}
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		BaseURL:        srv.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/api/v1/mpesa/callback",
		CallbackToken:  "s3cret&x",
	}, nil, zap.NewNop())

	if _, err := c.InitiateSTKPush(context.Background(), STKPushRequest{PhoneNumber: "254712345678", Amount: 10, AccountReference: "Shop"}); err != nil {
		t.Fatalf("InitiateSTKPush: %v", err)
	}
	want := "https://example.com/api/v1/mpesa/callback?token=s3cret%26x"
	if got := stub.lastPush.CallBackURL; got != want {
		t.Fatalf("expected callback url %q, got %q", want, got)
	}
}

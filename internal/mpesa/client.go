// Package mpesa is a client for the Safaricom Daraja STK push API.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tuzo-service/internal/metrics"
	"tuzo-service/internal/pkg/textutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	timestampLayout        = "20060102150405"
	defaultDescription     = "Payment for services"
	maxAccountReference    = 12
	tokenExpirySafety      = 60 * time.Second
	defaultTokenTTL        = 3599 * time.Second
	defaultTransactionType = "CustomerBuyGoodsOnline"
)

type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PartyB         string
	Passkey        string
	CallbackURL    string
	// CallbackToken is appended to CallbackURL as the token query value.
	CallbackToken   string
	TransactionType string
	Timeout         time.Duration
}

// STKPushRequest is a payment prompt sent to the payer's handset.
type STKPushRequest struct {
	// MSISDN without the leading '+', e.g. 254712345678.
	PhoneNumber      string
	Amount           int64
	AccountReference string
	Description      string
}

// STKPushResult is Daraja's acknowledgement of an accepted push.
type STKPushResult struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	Simulated           bool   `json:"-"`
}

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

// Client talks to Daraja. Access tokens are cached until shortly before they expire.
type Client struct {
	cfg        Config
	HTTPClient *http.Client
	tokens     TokenCache
	tracer     trace.Tracer
	logger     *zap.Logger
	now        func() time.Time
	location   *time.Location
}

// NewClient creates a Daraja client. A nil cache keeps tokens in process.
func NewClient(cfg Config, tokens TokenCache, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.TransactionType == "" {
		cfg.TransactionType = defaultTransactionType
	}
	if cfg.PartyB == "" {
		cfg.PartyB = cfg.ShortCode
	}
	if tokens == nil {
		tokens = NewMemoryTokenCache()
	}
	cfg.CallbackURL = callbackWithToken(cfg.CallbackURL, cfg.CallbackToken)
	return &Client{
		cfg:        cfg,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		tracer:     otel.Tracer("tuzo-service/mpesa"),
		logger:     logger,
		now:        time.Now,
		location:   nairobi(),
	}
}

func callbackWithToken(raw, token string) string {
	if raw == "" || token == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func nairobi() *time.Location {
	loc, err := time.LoadLocation("Africa/Nairobi")
	if err != nil {
		return time.FixedZone("EAT", 3*60*60)
	}
	return loc
}

// Timestamp formats t in East Africa Time as Daraja expects.
func (c *Client) Timestamp(t time.Time) string {
	return t.In(c.location).Format(timestampLayout)
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// AccessToken returns a cached OAuth token or fetches a new one.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if token, ok, err := c.tokens.Get(ctx, c.cfg.ConsumerKey); err != nil {
		c.logger.Warn("token cache read failed", zap.Error(err))
	} else if ok {
		return token, nil
	}

	ctx, span := c.tracer.Start(ctx, "mpesa.oauth", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	start := time.Now()
	defer func() { metrics.ProviderLatency.WithLabelValues(opOAuth).Observe(time.Since(start).Seconds()) }()

	url := c.cfg.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create oauth request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
	span.SetAttributes(attribute.String("http.url", url), attribute.String("http.method", http.MethodGet))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", transportError(opOAuth, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(opOAuth, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	var tr tokenResponse
	if resp.StatusCode != http.StatusOK || json.Unmarshal(body, &tr) != nil || tr.AccessToken == "" {
		apiErr := decodeAPIError(opOAuth, resp.StatusCode, body)
		if apiErr.Message == "" {
			apiErr.Message = fallbackMessage(resp.StatusCode)
		}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Message)
		return "", apiErr
	}

	ttl := defaultTokenTTL
	if secs, err := strconv.ParseInt(tr.ExpiresIn.String(), 10, 64); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	if ttl > tokenExpirySafety {
		if err := c.tokens.Set(ctx, c.cfg.ConsumerKey, tr.AccessToken, ttl-tokenExpirySafety); err != nil {
			c.logger.Warn("token cache write failed", zap.Error(err))
		}
	}

	return tr.AccessToken, nil
}

// InitiateSTKPush sends a payment prompt. The result only means Daraja
// accepted the request; the outcome arrives on the callback URL.
func (c *Client) InitiateSTKPush(ctx context.Context, in STKPushRequest) (*STKPushResult, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "mpesa.stkpush", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	start := time.Now()
	defer func() { metrics.ProviderLatency.WithLabelValues(opSTKPush).Observe(time.Since(start).Seconds()) }()

	timestamp := c.Timestamp(c.now())
	desc := in.Description
	if desc == "" {
		desc = defaultDescription
	}
	ref := textutil.Truncate(in.AccountReference, maxAccountReference)

	payload := stkPushPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   c.cfg.TransactionType,
		Amount:            in.Amount,
		PartyA:            in.PhoneNumber,
		PartyB:            c.cfg.PartyB,
		PhoneNumber:       in.PhoneNumber,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  ref,
		TransactionDesc:   desc,
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stk push request: %w", err)
	}

	url := c.cfg.BaseURL + "/mpesa/stkpush/v1/processrequest"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create stk push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	span.SetAttributes(
		attribute.String("http.url", url),
		attribute.String("http.method", http.MethodPost),
		attribute.Int64("mpesa.amount", in.Amount),
	)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, transportError(opSTKPush, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(opSTKPush, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	var result STKPushResult
	if resp.StatusCode != http.StatusOK || json.Unmarshal(body, &result) != nil || result.ResponseCode != "0" {
		apiErr := decodeAPIError(opSTKPush, resp.StatusCode, body)
		if apiErr.Message == "" {
			apiErr.Message = result.ResponseDescription
		}
		if apiErr.Message == "" {
			apiErr.Message = fallbackMessage(resp.StatusCode)
		}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Message)
		c.logger.Warn("stk push rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code),
			zap.String("message", apiErr.Message),
		)
		return nil, apiErr
	}

	span.SetAttributes(attribute.String("mpesa.checkout_request_id", result.CheckoutRequestID))
	return &result, nil
}

// decodeAPIError reads Daraja's {requestId, errorCode, errorMessage} body.
// Message stays empty when the body carries none.
func decodeAPIError(op string, status int, body []byte) *APIError {
	apiErr := &APIError{Op: op, StatusCode: status}
	_ = json.Unmarshal(body, apiErr)
	return apiErr
}

func fallbackMessage(status int) string {
	if status != http.StatusOK {
		if text := http.StatusText(status); text != "" {
			return text
		}
	}
	return "unexpected response"
}

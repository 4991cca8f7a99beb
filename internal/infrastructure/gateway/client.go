package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/example/marketplace/internal/domain/payment"
)

var (
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrProviderUnavailable  = errors.New("payment provider unavailable")
	errUnexpectedStatusCode = errors.New("unexpected provider response")
)

// SignatureHeader carries the provider's webhook signature.
const SignatureHeader = "X-Provider-Signature"

const defaultTimeout = 10 * time.Second

// Client talks to the external payment provider over HTTP. All calls
// carry a bounded timeout; a timeout surfaces as ErrProviderUnavailable
// so the caller can retry instead of hanging the request.
type Client struct {
	baseURL       string
	apiKey        string
	webhookSecret []byte
	successURL    string
	cancelURL     string
	httpClient    *http.Client
	tolerance     time.Duration
	now           func() time.Time
}

type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Timeout       time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		webhookSecret: []byte(cfg.WebhookSecret),
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		httpClient:    &http.Client{Timeout: timeout},
		tolerance:     signatureTolerance,
		now:           time.Now,
	}
}

type sessionRequest struct {
	Mode              string     `json:"mode"`
	ClientReferenceID string     `json:"client_reference_id"`
	SuccessURL        string     `json:"success_url"`
	CancelURL         string     `json:"cancel_url"`
	LineItems         []lineItem `json:"line_items"`
}

type lineItem struct {
	Name        string `json:"name"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Quantity    int    `json:"quantity"`
}

type sessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateSession opens a checkout session for a single line item worth
// amountMinor minor currency units, tagged with correlationID so the
// webhook can be matched back to the order.
func (c *Client) CreateSession(ctx context.Context, amountMinor int64, correlationID string) (payment.Session, error) {
	body, err := json.Marshal(sessionRequest{
		Mode:              "payment",
		ClientReferenceID: correlationID,
		SuccessURL:        c.successURL,
		CancelURL:         c.cancelURL,
		LineItems: []lineItem{{
			Name:        "Order " + correlationID,
			AmountMinor: amountMinor,
			Currency:    "usd",
			Quantity:    1,
		}},
	})
	if err != nil {
		return payment.Session{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return payment.Session{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection failures are retryable; the order
		// stays pending and the caller can open a fresh session.
		return payment.Session{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return payment.Session{}, fmt.Errorf("%w: status %d", errUnexpectedStatusCode, resp.StatusCode)
	}

	var sr sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return payment.Session{}, fmt.Errorf("decode session response: %w", err)
	}
	if sr.ID == "" {
		return payment.Session{}, fmt.Errorf("%w: empty session id", errUnexpectedStatusCode)
	}

	return payment.Session{ID: sr.ID, URL: sr.URL}, nil
}

// webhookEvent is the provider's wire shape for webhook payloads.
type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string `json:"id"`
			ClientReferenceID string `json:"client_reference_id"`
		} `json:"object"`
	} `json:"data"`
}

// VerifyAndParse checks the payload signature and decodes the event.
// Unverifiable payloads are rejected with ErrInvalidSignature and must
// not be processed.
func (c *Client) VerifyAndParse(payload []byte, signature string) (payment.Event, error) {
	if err := verifySignature(payload, signature, c.webhookSecret, c.tolerance, c.now()); err != nil {
		return payment.Event{}, err
	}

	var ev webhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return payment.Event{}, fmt.Errorf("%w: undecodable payload", ErrInvalidSignature)
	}

	return payment.Event{
		Type:          ev.Type,
		SessionID:     ev.Data.Object.ID,
		CorrelationID: ev.Data.Object.ClientReferenceID,
	}, nil
}

var _ payment.Gateway = (*Client)(nil)

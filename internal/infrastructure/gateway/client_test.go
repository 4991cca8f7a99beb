package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/marketplace/internal/domain/payment"
)

func testClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:       baseURL,
		APIKey:        "sk_test_123",
		WebhookSecret: "whsec_test",
		SuccessURL:    "https://shop.example.com/payment/completed",
		CancelURL:     "https://shop.example.com/payment/canceled",
		Timeout:       2 * time.Second,
	})
}

func TestClient_CreateSession(t *testing.T) {
	var gotReq sessionRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sessionResponse{ID: "sess-42", URL: "https://pay.example.com/sess-42"})
	}))
	defer srv.Close()

	sess, err := testClient(srv.URL).CreateSession(context.Background(), 3000, "order-1")

	require.NoError(t, err)
	assert.Equal(t, payment.Session{ID: "sess-42", URL: "https://pay.example.com/sess-42"}, sess)
	assert.Equal(t, "Bearer sk_test_123", gotAuth)

	assert.Equal(t, "payment", gotReq.Mode)
	assert.Equal(t, "order-1", gotReq.ClientReferenceID)
	require.Len(t, gotReq.LineItems, 1)
	assert.Equal(t, int64(3000), gotReq.LineItems[0].AmountMinor)
	assert.Equal(t, 1, gotReq.LineItems[0].Quantity)
}

func TestClient_CreateSession_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := c.CreateSession(context.Background(), 1000, "order-1")

	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestClient_CreateSession_ConnectionRefused(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})

	_, err := c.CreateSession(context.Background(), 1000, "order-1")

	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestClient_CreateSession_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CreateSession(context.Background(), 1000, "order-1")

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrProviderUnavailable, "a definitive provider rejection is not retryable")
}

func webhookPayload(t *testing.T, eventType, sessionID, orderID string) []byte {
	t.Helper()
	var ev webhookEvent
	ev.Type = eventType
	ev.Data.Object.ID = sessionID
	ev.Data.Object.ClientReferenceID = orderID
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return data
}

func TestClient_VerifyAndParse(t *testing.T) {
	c := testClient("")
	payload := webhookPayload(t, payment.EventCheckoutCompleted, "sess-1", "order-1")
	sig := SignPayload(payload, "whsec_test", time.Now())

	ev, err := c.VerifyAndParse(payload, sig)

	require.NoError(t, err)
	assert.Equal(t, payment.EventCheckoutCompleted, ev.Type)
	assert.Equal(t, "sess-1", ev.SessionID)
	assert.Equal(t, "order-1", ev.CorrelationID)
}

func TestClient_VerifyAndParse_TamperedPayload(t *testing.T) {
	c := testClient("")
	payload := webhookPayload(t, payment.EventCheckoutCompleted, "sess-1", "order-1")
	sig := SignPayload(payload, "whsec_test", time.Now())

	tampered := webhookPayload(t, payment.EventCheckoutCompleted, "sess-ATTACKER", "order-1")
	_, err := c.VerifyAndParse(tampered, sig)

	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestClient_VerifyAndParse_WrongSecret(t *testing.T) {
	c := testClient("")
	payload := webhookPayload(t, payment.EventCheckoutCompleted, "sess-1", "order-1")
	sig := SignPayload(payload, "whsec_other", time.Now())

	_, err := c.VerifyAndParse(payload, sig)

	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestClient_VerifyAndParse_StaleTimestamp(t *testing.T) {
	c := testClient("")
	payload := webhookPayload(t, payment.EventCheckoutCompleted, "sess-1", "order-1")
	sig := SignPayload(payload, "whsec_test", time.Now().Add(-time.Hour))

	_, err := c.VerifyAndParse(payload, sig)

	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestClient_VerifyAndParse_MalformedHeader(t *testing.T) {
	c := testClient("")
	payload := webhookPayload(t, payment.EventCheckoutCompleted, "sess-1", "order-1")

	for _, header := range []string{"", "garbage", "t=notanumber,v1=abc", "v1=abc", "t=123"} {
		_, err := c.VerifyAndParse(payload, header)
		assert.ErrorIs(t, err, ErrInvalidSignature, "header %q", header)
	}
}

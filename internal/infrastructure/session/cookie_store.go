package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/example/marketplace/internal/domain/cart"
)

const (
	cartCookie    = "cart"
	sessionCookie = "session_id"
	cookieMaxAge  = 14 * 24 * 60 * 60 // two weeks, matching session expiry
)

// Store keeps the buyer's cart in a signed cookie, so reads cost no
// store round trip. The payload is client-held and attacker-writable;
// the HMAC rejects tampering and the cart codec drops anything that
// still fails type or range checks.
type Store struct {
	secret []byte
}

func NewStore(secret []byte) *Store {
	return &Store{secret: secret}
}

// Load recovers the cart from the request. A missing, unsigned, or
// tampered cookie yields an empty cart rather than an error: the
// buyer simply starts over.
func (s *Store) Load(r *http.Request) *cart.Cart {
	c, err := r.Cookie(cartCookie)
	if err != nil {
		return cart.New()
	}

	payload, ok := s.verify(c.Value)
	if !ok {
		log.Printf("[Session] Rejecting cart cookie with bad signature")
		return cart.New()
	}
	return cart.Decode(payload)
}

// Save writes the cart back to the response. Call it after every
// mutation; an unchanged cart does not need re-saving.
func (s *Store) Save(w http.ResponseWriter, c *cart.Cart) error {
	data, err := c.Encode()
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cartCookie,
		Value:    s.sign(data),
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// SessionID returns the request's session identifier, minting and
// setting one for first-time anonymous buyers. Authenticated requests
// should prefer the JWT subject; this is the fallback key used to
// serialize cart writes per buyer.
func (s *Store) SessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// sign produces "<b64 payload>.<b64 mac>".
func (s *Store) sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (s *Store) verify(value string) ([]byte, bool) {
	encoded, sig, found := strings.Cut(value, ".")
	if !found {
		return nil, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	gotMAC, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return nil, false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	if !hmac.Equal(gotMAC, mac.Sum(nil)) {
		return nil, false
	}
	return payload, true
}

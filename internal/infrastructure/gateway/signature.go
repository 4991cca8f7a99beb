package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// signatureTolerance bounds how old a signed timestamp may be before
// the delivery is treated as a replay.
const signatureTolerance = 5 * time.Minute

// verifySignature checks a "t=<unix>,v1=<hex>" header against the
// payload. The MAC covers "<t>.<payload>" with HMAC-SHA256 over the
// shared webhook secret.
func verifySignature(payload []byte, header string, secret []byte, tolerance time.Duration, now time.Time) error {
	ts, mac, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	signedAt := time.Unix(ts, 0)
	if now.Sub(signedAt) > tolerance || signedAt.Sub(now) > tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	expected := computeSignature(payload, ts, secret)
	if !hmac.Equal([]byte(mac), []byte(expected)) {
		return fmt.Errorf("%w: digest mismatch", ErrInvalidSignature)
	}
	return nil
}

func parseSignatureHeader(header string) (ts int64, mac string, err error) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err = strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
		case "v1":
			mac = value
		}
	}
	if ts == 0 || mac == "" {
		return 0, "", fmt.Errorf("%w: missing signature elements", ErrInvalidSignature)
	}
	return ts, mac, nil
}

func computeSignature(payload []byte, ts int64, secret []byte) string {
	h := hmac.New(sha256.New, secret)
	fmt.Fprintf(h, "%d.", ts)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// SignPayload produces a valid signature header for payload. Used by
// tests and local tooling that simulate provider deliveries.
func SignPayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, computeSignature(payload, ts, []byte(secret)))
}

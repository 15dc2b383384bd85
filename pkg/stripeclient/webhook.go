/**
 * @description
 * Webhook signature verification and event envelope parsing for Stripe
 * webhooks. No event reaches dispatch logic without passing the HMAC check
 * here first.
 *
 * Stripe signs each delivery with a `Stripe-Signature` header of the form
 *   t=<unix timestamp>,v1=<hex hmac-sha256>[,v1=...,v0=...]
 * where the signature covers `<timestamp>.<raw body>`. Verification recomputes
 * the digest with the shared endpoint secret, compares in constant time, and
 * rejects deliveries whose timestamp falls outside the replay tolerance.
 *
 * @dependencies
 * - crypto/hmac, crypto/sha256, encoding/hex: Signature computation.
 * - encoding/json: Envelope decoding.
 */
package stripeclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultWebhookTolerance bounds how stale a signed timestamp may be.
const DefaultWebhookTolerance = 5 * time.Minute

var (
	ErrMissingSignature   = errors.New("missing stripe-signature header")
	ErrMalformedSignature = errors.New("malformed stripe-signature header")
	ErrSignatureMismatch  = errors.New("webhook signature mismatch")
	ErrTimestampTooOld    = errors.New("webhook timestamp outside tolerance")
)

// Event kinds the reconciler dispatches on. The set is closed; anything the
// service does not act on maps to EventUnhandled so new provider event types
// degrade to a logged no-op instead of a surprise.
type EventKind int

const (
	EventUnhandled EventKind = iota
	EventCheckoutSessionCompleted
	EventPayoutPaid
	EventPayoutFailed
	EventPaymentIntentSucceeded
	EventPaymentIntentFailed
)

// Event is the decoded webhook envelope. Data.Raw retains the event-specific
// `data.object` payload for kind-specific decoding.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Raw json.RawMessage `json:"object"`
	} `json:"data"`
}

// Kind classifies the event's string tag into the closed dispatch set.
func (e *Event) Kind() EventKind {
	switch e.Type {
	case "checkout.session.completed":
		return EventCheckoutSessionCompleted
	case "payout.paid":
		return EventPayoutPaid
	case "payout.failed":
		return EventPayoutFailed
	case "payment_intent.succeeded":
		return EventPaymentIntentSucceeded
	case "payment_intent.payment_failed":
		return EventPaymentIntentFailed
	default:
		return EventUnhandled
	}
}

// CheckoutSessionObject is the slice of `data.object` a completed checkout
// session carries that reconciliation needs. Stripe sends `payment_intent`
// either as a bare id string or as an expanded object; both are accepted.
type CheckoutSessionObject struct {
	ID            string          `json:"id"`
	Customer      string          `json:"customer"`
	AmountTotal   int64           `json:"amount_total"`
	PaymentIntent json.RawMessage `json:"payment_intent"`
}

// PaymentIntentID extracts the payment-intent id from either wire form.
func (o *CheckoutSessionObject) PaymentIntentID() string {
	if len(o.PaymentIntent) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(o.PaymentIntent, &id); err == nil {
		return id
	}
	var expanded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(o.PaymentIntent, &expanded); err == nil {
		return expanded.ID
	}
	return ""
}

// PayoutObject is the slice of `data.object` a payout event carries. The
// transfer reference arrives either in metadata or as the source transaction.
type PayoutObject struct {
	ID                string            `json:"id"`
	Status            string            `json:"status"`
	Metadata          map[string]string `json:"metadata"`
	SourceTransaction *string           `json:"source_transaction"`
}

// TransferID resolves the transfer reference for payout-request lookup,
// preferring explicit metadata over the source transaction.
func (o *PayoutObject) TransferID() string {
	if o.Metadata != nil {
		if id := strings.TrimSpace(o.Metadata["transfer_id"]); id != "" {
			return id
		}
	}
	if o.SourceTransaction != nil {
		return strings.TrimSpace(*o.SourceTransaction)
	}
	return ""
}

// ConstructEvent verifies the signature header against the endpoint secret and
// decodes the payload into an Event. It is the only path from raw bytes to a
// dispatchable event.
func ConstructEvent(payload []byte, sigHeader, secret string, tolerance time.Duration) (*Event, error) {
	if err := verifySignature(payload, sigHeader, secret, tolerance, time.Now()); err != nil {
		return nil, err
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}
	if event.Type == "" {
		return nil, errors.New("webhook payload missing event type")
	}
	return &event, nil
}

func verifySignature(payload []byte, sigHeader, secret string, tolerance time.Duration, now time.Time) error {
	header := strings.TrimSpace(sigHeader)
	if header == "" {
		return ErrMissingSignature
	}

	var timestamp int64
	var candidates [][]byte
	for _, item := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "t":
			ts, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return ErrMalformedSignature
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(parts[1])
			if err != nil {
				continue
			}
			candidates = append(candidates, sig)
		}
	}

	if timestamp == 0 || len(candidates) == 0 {
		return ErrMalformedSignature
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(timestamp, 0))
		if age > tolerance || age < -tolerance {
			return ErrTimestampTooOld
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", timestamp, payload)
	expected := mac.Sum(nil)

	for _, candidate := range candidates {
		if hmac.Equal(candidate, expected) {
			return nil
		}
	}
	return ErrSignatureMismatch
}

// SignPayload produces a valid Stripe-Signature header for the given payload
// and timestamp. Exported for use in webhook endpoint tests.
func SignPayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

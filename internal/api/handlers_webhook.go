/**
 * @description
 * This file contains the HTTP handler for processing incoming webhooks from
 * Stripe. It acts as the entry point for all payment and payout notifications.
 *
 * Key features:
 * - Security: no payload reaches dispatch without passing signature
 *   verification against the endpoint secret.
 * - Failure semantics: store failures surface as 500 so Stripe's retry policy
 *   redelivers the event; lookup misses are acknowledged with 200 because
 *   redelivery cannot repair them. The reconciler's credit path is idempotent,
 *   so redelivery is safe.
 *
 * @dependencies
 * - io, net/http, time: Standard Go libraries.
 * - internal/app, pkg/stripeclient: Reconciliation logic and webhook verification.
 */

package api

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cloudblinker/wallet-service/internal/app"
	"github.com/cloudblinker/wallet-service/pkg/stripeclient"
)

// maxWebhookBodyBytes bounds the unauthenticated body read; Stripe event
// payloads are far below this.
const maxWebhookBodyBytes = 1 << 20

// WebhookHandler processes incoming webhooks from Stripe.
type WebhookHandler struct {
	reconciler *app.Reconciler
	secret     string
	tolerance  time.Duration
}

// NewWebhookHandler creates a new handler for the webhook endpoint.
func NewWebhookHandler(reconciler *app.Reconciler, secret string, tolerance time.Duration) *WebhookHandler {
	if tolerance <= 0 {
		tolerance = stripeclient.DefaultWebhookTolerance
	}
	return &WebhookHandler{
		reconciler: reconciler,
		secret:     secret,
		tolerance:  tolerance,
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		log.Printf("level=warn component=webhook outcome=reject reason=body_read err=%v", err)
		http.Error(w, "Cannot read request body", http.StatusBadRequest)
		return
	}

	event, err := stripeclient.ConstructEvent(body, r.Header.Get("stripe-signature"), h.secret, h.tolerance)
	if err != nil {
		if isSignatureError(err) {
			log.Printf("level=warn component=webhook outcome=reject reason=bad_signature err=%v", err)
		} else {
			log.Printf("level=warn component=webhook outcome=reject reason=bad_payload err=%v", err)
		}
		http.Error(w, "Webhook Error: "+err.Error(), http.StatusBadRequest)
		return
	}

	log.Printf("level=info component=webhook event_id=%s type=%s msg=\"event received\"", event.ID, event.Type)

	if err := h.reconciler.HandleEvent(r.Context(), event); err != nil {
		log.Printf("level=error component=webhook event_id=%s type=%s msg=\"event processing failed\" err=%v", event.ID, event.Type, err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"received":true}`))
}

func isSignatureError(err error) bool {
	return errors.Is(err, stripeclient.ErrMissingSignature) ||
		errors.Is(err, stripeclient.ErrMalformedSignature) ||
		errors.Is(err, stripeclient.ErrSignatureMismatch) ||
		errors.Is(err, stripeclient.ErrTimestampTooOld)
}

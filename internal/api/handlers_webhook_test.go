package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudblinker/wallet-service/internal/app"
	"github.com/cloudblinker/wallet-service/internal/domain"
	"github.com/cloudblinker/wallet-service/internal/store"
	"github.com/cloudblinker/wallet-service/pkg/stripeclient"
	"github.com/google/uuid"
)

const webhookTestSecret = "whsec_test_secret"

type webhookRepoStub struct {
	store.Repository

	profile       *domain.Profile
	creditErr     error
	creditedCount int
}

func (s *webhookRepoStub) FindProfileByStripeCustomerID(ctx context.Context, customerID string) (*domain.Profile, error) {
	if s.profile == nil {
		return nil, store.ErrProfileNotFound
	}
	return s.profile, nil
}

func (s *webhookRepoStub) CreditWalletForPayment(ctx context.Context, payment *domain.Payment, entry *domain.LedgerEntry) error {
	if s.creditErr != nil {
		return s.creditErr
	}
	s.creditedCount++
	return nil
}

func newWebhookHandler(repo store.Repository) *WebhookHandler {
	reconciler := app.NewReconciler(repo, nil, nil, "JPY")
	return NewWebhookHandler(reconciler, webhookTestSecret, stripeclient.DefaultWebhookTolerance)
}

func postWebhook(handler *WebhookHandler, payload, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	if signature != "" {
		req.Header.Set("stripe-signature", signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

const checkoutPayload = `{
	"id": "evt_1",
	"type": "checkout.session.completed",
	"data": {
		"object": {
			"id": "cs_1",
			"customer": "cus_1",
			"payment_intent": "pi_1",
			"amount_total": 500000
		}
	}
}`

func TestWebhookHandler_ValidSignatureIsAcknowledged(t *testing.T) {
	repo := &webhookRepoStub{profile: &domain.Profile{UserID: uuid.New(), Role: domain.RoleClient}}
	handler := newWebhookHandler(repo)

	signature := stripeclient.SignPayload([]byte(checkoutPayload), webhookTestSecret, time.Now())
	rec := postWebhook(handler, checkoutPayload, signature)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"received":true}` {
		t.Fatalf("unexpected body: %s", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if repo.creditedCount != 1 {
		t.Fatalf("expected exactly one credit, got %d", repo.creditedCount)
	}
}

func TestWebhookHandler_MissingSignatureRejected(t *testing.T) {
	repo := &webhookRepoStub{profile: &domain.Profile{UserID: uuid.New(), Role: domain.RoleClient}}
	handler := newWebhookHandler(repo)

	rec := postWebhook(handler, checkoutPayload, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "Webhook Error:") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if repo.creditedCount != 0 {
		t.Fatal("expected no mutation for an unsigned payload")
	}
}

func TestWebhookHandler_WrongSecretRejected(t *testing.T) {
	repo := &webhookRepoStub{profile: &domain.Profile{UserID: uuid.New(), Role: domain.RoleClient}}
	handler := newWebhookHandler(repo)

	signature := stripeclient.SignPayload([]byte(checkoutPayload), "whsec_other", time.Now())
	rec := postWebhook(handler, checkoutPayload, signature)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if repo.creditedCount != 0 {
		t.Fatal("expected no mutation for a forged signature")
	}
}

func TestWebhookHandler_TamperedPayloadRejected(t *testing.T) {
	repo := &webhookRepoStub{profile: &domain.Profile{UserID: uuid.New(), Role: domain.RoleClient}}
	handler := newWebhookHandler(repo)

	signature := stripeclient.SignPayload([]byte(checkoutPayload), webhookTestSecret, time.Now())
	tampered := strings.Replace(checkoutPayload, "500000", "900000", 1)
	rec := postWebhook(handler, tampered, signature)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if repo.creditedCount != 0 {
		t.Fatal("expected no mutation for a tampered payload")
	}
}

func TestWebhookHandler_StoreFailureReturns500(t *testing.T) {
	repo := &webhookRepoStub{
		profile:   &domain.Profile{UserID: uuid.New(), Role: domain.RoleClient},
		creditErr: context.DeadlineExceeded,
	}
	handler := newWebhookHandler(repo)

	signature := stripeclient.SignPayload([]byte(checkoutPayload), webhookTestSecret, time.Now())
	rec := postWebhook(handler, checkoutPayload, signature)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so the provider redelivers, got %d", rec.Code)
	}
}

func TestWebhookHandler_OversizedBodyRejected(t *testing.T) {
	repo := &webhookRepoStub{profile: &domain.Profile{UserID: uuid.New(), Role: domain.RoleClient}}
	handler := newWebhookHandler(repo)

	oversized := strings.Repeat("a", maxWebhookBodyBytes+1)
	signature := stripeclient.SignPayload([]byte(oversized), webhookTestSecret, time.Now())
	rec := postWebhook(handler, oversized, signature)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "Cannot read request body") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if repo.creditedCount != 0 {
		t.Fatal("expected no mutation for an oversized payload")
	}
}

func TestWebhookHandler_NonPostRejected(t *testing.T) {
	handler := newWebhookHandler(&webhookRepoStub{})

	req := httptest.NewRequest(http.MethodGet, "/webhooks/stripe", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

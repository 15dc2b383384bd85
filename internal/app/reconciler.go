/**
 * @description
 * This file contains the webhook reconciler: the one piece of the service with
 * a nontrivial correctness contract. It receives verified Stripe events,
 * dispatches on the closed event-kind set, and performs idempotent wallet and
 * payout-request mutations against the store.
 *
 * Correctness notes:
 * - The checkout credit is delegated to the repository's single-transaction
 *   CreditWalletForPayment, keyed by payment-intent id. Redelivery of the same
 *   event, including concurrent redelivery overlapping the original, credits
 *   at most once.
 * - Lookup misses and missing event data are acknowledged no-ops: they are
 *   logged and the delivery is accepted, because redelivery cannot repair a
 *   payload that references unknown entities. Only store failures propagate,
 *   so the provider's retry policy redelivers exactly the events that might
 *   still succeed.
 *
 * @dependencies
 * - context, encoding/json, errors, fmt, log, time: Standard Go libraries.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq, pkg/stripeclient: For event publishing and webhook types.
 */

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cloudblinker/wallet-service/internal/domain"
	"github.com/cloudblinker/wallet-service/internal/store"
	"github.com/cloudblinker/wallet-service/pkg/rabbitmq"
	"github.com/cloudblinker/wallet-service/pkg/stripeclient"
	"github.com/google/uuid"
)

// EventDeduper suppresses replays of recently processed deliveries. It is a
// fast-path optimization only; the database idempotency gate stays authoritative.
// A claim made for a delivery that then fails must be released with Forget, or
// the provider's redelivery would be suppressed and the event lost.
type EventDeduper interface {
	AlreadySeen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Reconciler applies verified provider events to the wallet ledger and payout requests.
type Reconciler struct {
	repo     store.Repository
	producer rabbitmq.Publisher
	deduper  EventDeduper
	currency string
}

// NewReconciler creates a reconciler. producer and deduper may be nil.
func NewReconciler(repo store.Repository, producer rabbitmq.Publisher, deduper EventDeduper, currency string) *Reconciler {
	return &Reconciler{
		repo:     repo,
		producer: producer,
		deduper:  deduper,
		currency: currency,
	}
}

// HandleEvent dispatches one verified event. A non-nil return means the store
// could not be updated and the delivery should be retried by the provider.
func (r *Reconciler) HandleEvent(ctx context.Context, event *stripeclient.Event) error {
	claimed := false
	if r.deduper != nil && event.ID != "" {
		seen, err := r.deduper.AlreadySeen(ctx, event.ID)
		if err != nil {
			// Fail open: the credit path has its own idempotency gate.
			log.Printf("level=warn component=reconciler msg=\"replay cache unavailable\" event_id=%s err=%v", event.ID, err)
		} else if seen {
			log.Printf("level=info component=reconciler outcome=duplicate_suppressed event_id=%s type=%s", event.ID, event.Type)
			return nil
		} else {
			claimed = true
		}
	}

	err := r.dispatch(ctx, event)
	if err != nil && claimed {
		// The provider will redeliver this event; the claim must not outlive
		// the failure or the retry would be suppressed as a duplicate.
		if forgetErr := r.deduper.Forget(ctx, event.ID); forgetErr != nil {
			log.Printf("level=warn component=reconciler msg=\"replay cache release failed\" event_id=%s err=%v", event.ID, forgetErr)
		}
	}
	return err
}

func (r *Reconciler) dispatch(ctx context.Context, event *stripeclient.Event) error {
	switch event.Kind() {
	case stripeclient.EventCheckoutSessionCompleted:
		return r.handleCheckoutCompleted(ctx, event)
	case stripeclient.EventPayoutPaid:
		return r.handlePayout(ctx, event, domain.PayoutStatusPaid)
	case stripeclient.EventPayoutFailed:
		return r.handlePayout(ctx, event, domain.PayoutStatusFailed)
	case stripeclient.EventPaymentIntentSucceeded, stripeclient.EventPaymentIntentFailed:
		log.Printf("level=info component=reconciler outcome=observed event_id=%s type=%s", event.ID, event.Type)
		return nil
	default:
		log.Printf("level=info component=reconciler outcome=unhandled event_id=%s type=%s", event.ID, event.Type)
		return nil
	}
}

func (r *Reconciler) handleCheckoutCompleted(ctx context.Context, event *stripeclient.Event) error {
	var session stripeclient.CheckoutSessionObject
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		log.Printf("level=warn component=reconciler op=checkout outcome=skip reason=malformed_object event_id=%s err=%v", event.ID, err)
		return nil
	}

	paymentIntentID := session.PaymentIntentID()
	if paymentIntentID == "" || session.Customer == "" || session.AmountTotal <= 0 {
		log.Printf("level=warn component=reconciler op=checkout outcome=skip reason=missing_data event_id=%s payment_intent=%q customer=%q amount=%d",
			event.ID, paymentIntentID, session.Customer, session.AmountTotal)
		return nil
	}

	profile, err := r.repo.FindProfileByStripeCustomerID(ctx, session.Customer)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			log.Printf("level=warn component=reconciler op=checkout outcome=skip reason=no_profile customer=%s event_id=%s", session.Customer, event.ID)
			return nil
		}
		return fmt.Errorf("profile lookup for customer %s: %w", session.Customer, err)
	}

	note := "Stripe Checkout top-up"
	payment := &domain.Payment{
		ID:              uuid.New(),
		UserID:          profile.UserID,
		Amount:          session.AmountTotal,
		Currency:        r.currency,
		PaymentIntentID: paymentIntentID,
	}
	entry := &domain.LedgerEntry{
		ID:         uuid.New(),
		UserID:     profile.UserID,
		Type:       domain.LedgerCredit,
		Bucket:     domain.BucketAvailable,
		Amount:     session.AmountTotal,
		Currency:   r.currency,
		SourceType: "checkout",
		SourceID:   paymentIntentID,
		Note:       &note,
	}

	if err := r.repo.CreditWalletForPayment(ctx, payment, entry); err != nil {
		if errors.Is(err, store.ErrPaymentAlreadyRecorded) {
			log.Printf("level=info component=reconciler op=checkout outcome=already_credited payment_intent=%s user_id=%s", paymentIntentID, profile.UserID)
			return nil
		}
		return fmt.Errorf("credit wallet for payment %s: %w", paymentIntentID, err)
	}

	log.Printf("level=info component=reconciler op=checkout outcome=credited user_id=%s amount=%d payment_intent=%s", profile.UserID, session.AmountTotal, paymentIntentID)

	if r.producer != nil {
		credited := domain.WalletCreditedEvent{
			UserID:          profile.UserID,
			Amount:          session.AmountTotal,
			Currency:        r.currency,
			PaymentIntentID: paymentIntentID,
			Timestamp:       time.Now().UTC(),
		}
		if err := r.producer.Publish(ctx, rabbitmq.WalletEventsExchange, rabbitmq.RoutingKeyWalletCredit, credited); err != nil {
			// The credit is committed; a lost integration event is not a reason to redeliver.
			log.Printf("level=warn component=reconciler op=checkout msg=\"event publish failed\" payment_intent=%s err=%v", paymentIntentID, err)
		}
	}
	return nil
}

func (r *Reconciler) handlePayout(ctx context.Context, event *stripeclient.Event, status string) error {
	var payout stripeclient.PayoutObject
	if err := json.Unmarshal(event.Data.Raw, &payout); err != nil {
		log.Printf("level=warn component=reconciler op=payout outcome=skip reason=malformed_object event_id=%s err=%v", event.ID, err)
		return nil
	}

	transferID := payout.TransferID()
	if payout.ID == "" && transferID == "" {
		log.Printf("level=warn component=reconciler op=payout outcome=skip reason=missing_identifiers event_id=%s", event.ID)
		return nil
	}

	var request *domain.PayoutRequest
	var err error
	if transferID != "" {
		request, err = r.repo.FindPayoutRequestByTransferID(ctx, transferID)
	} else {
		request, err = r.repo.FindPayoutRequestByPayoutID(ctx, payout.ID)
	}
	if err != nil {
		if errors.Is(err, store.ErrPayoutRequestNotFound) {
			log.Printf("level=warn component=reconciler op=payout outcome=skip reason=no_request payout_id=%q transfer_id=%q", payout.ID, transferID)
			return nil
		}
		return fmt.Errorf("payout request lookup (payout=%q transfer=%q): %w", payout.ID, transferID, err)
	}

	alreadySettled := request.Status == domain.PayoutStatusPaid || request.Status == domain.PayoutStatusFailed

	if err := r.repo.SettlePayoutRequest(ctx, request.ID, status, payout.ID); err != nil {
		return fmt.Errorf("settle payout request %s: %w", request.ID, err)
	}

	log.Printf("level=info component=reconciler op=payout outcome=settled request_id=%s status=%s payout_id=%s", request.ID, status, payout.ID)

	// A redelivered event for an already-terminal request re-runs the settle
	// (idempotent) but must not republish downstream.
	if r.producer != nil && !alreadySettled {
		settled := domain.PayoutSettledEvent{
			PayoutRequestID: request.ID,
			UserID:          request.UserID,
			Status:          status,
			PayoutID:        payout.ID,
			Timestamp:       time.Now().UTC(),
		}
		if err := r.producer.Publish(ctx, rabbitmq.WalletEventsExchange, rabbitmq.RoutingKeyPayoutSettled, settled); err != nil {
			log.Printf("level=warn component=reconciler op=payout msg=\"event publish failed\" request_id=%s err=%v", request.ID, err)
		}
	}
	return nil
}

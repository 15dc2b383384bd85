/**
 * @description
 * This file defines the core domain models for the wallet-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` to represent the value in the smallest currency
 *   unit (JPY has no minor unit, so 1 == ¥1), which avoids floating-point
 *   inaccuracies with financial data.
 * - `payments` and `ledger_entries` are append-only; rows are never updated or
 *   deleted once written.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Roles a profile can carry. Clients fund tasks, blinkers fulfil them.
const (
	RoleClient  = "client"
	RoleBlinker = "blinker"
	RoleAdmin   = "admin"
)

// Wallet bucket names. `available` is spendable, `on_hold` is reserved by
// task-settlement logic outside this service.
const (
	BucketAvailable = "available"
	BucketOnHold    = "on_hold"
)

// Ledger entry types.
const (
	LedgerCredit = "credit"
	LedgerDebit  = "debit"
)

// Payout request statuses. Transitions are driven solely by inbound payout
// events; `pending` is the state set by the payout-request flow elsewhere.
const (
	PayoutStatusPending = "pending"
	PayoutStatusPaid    = "payout_paid"
	PayoutStatusFailed  = "failed"
)

// Profile is the identity record for a marketplace user. At most one profile
// exists per user id; `stripe_customer_id` is assigned lazily on first payment
// and is unique when present.
type Profile struct {
	UserID           uuid.UUID `json:"user_id"`
	Role             string    `json:"role"`
	StripeCustomerID *string   `json:"stripe_customer_id,omitempty"`
	Email            *string   `json:"email,omitempty"`
	DisplayName      *string   `json:"display_name,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Wallet is the per-user balance record. Both buckets are non-negative.
type Wallet struct {
	UserID    uuid.UUID `json:"user_id"`
	Available int64     `json:"available"`
	OnHold    int64     `json:"on_hold"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Payment is the append-only record of one completed checkout, keyed by the
// Stripe payment-intent id.
type Payment struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	PaymentIntentID string    `json:"payment_intent_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// LedgerEntry is the immutable audit record of a balance-affecting event.
// Multiple entries may reference the same source id across source types.
type LedgerEntry struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Type       string    `json:"type"`   // credit | debit
	Bucket     string    `json:"bucket"` // available | on_hold
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	SourceType string    `json:"source_type"`
	SourceID   string    `json:"source_id"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// PayoutRequest tracks a blinker's withdrawal through the provider-side
// transfer/payout lifecycle.
type PayoutRequest struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Amount     int64     `json:"amount"`
	Status     string    `json:"status"`
	TransferID *string   `json:"transfer_id,omitempty"`
	PayoutID   *string   `json:"payout_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Task is a unit of marketplace work posted by a client and fulfilled by a
// blinker. The wallet-service only reads tasks for the role dashboards;
// settlement lives elsewhere.
type Task struct {
	ID        uuid.UUID  `json:"id"`
	ClientID  uuid.UUID  `json:"client_id"`
	BlinkerID *uuid.UUID `json:"blinker_id,omitempty"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	Reward    int64      `json:"reward"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TaskListOptions filters the task listing by role ownership.
type TaskListOptions struct {
	ClientID  *uuid.UUID
	BlinkerID *uuid.UUID
	Limit     int
	Offset    int
}

// CreateCheckoutSessionRequest is the DTO for the checkout-session endpoint.
type CreateCheckoutSessionRequest struct {
	Amount     int64  `json:"amount"` // minor units
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

// CreateCheckoutSessionResponse carries the hosted checkout redirect URL.
type CreateCheckoutSessionResponse struct {
	URL string `json:"url"`
}

// WalletCreditedEvent is published after a checkout credit lands, so
// downstream consumers (notifications, analytics) can react without polling.
type WalletCreditedEvent struct {
	UserID          uuid.UUID `json:"user_id"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	PaymentIntentID string    `json:"payment_intent_id"`
	Timestamp       time.Time `json:"timestamp"`
}

// PayoutSettledEvent is published after a payout request reaches a terminal
// status from a provider payout event.
type PayoutSettledEvent struct {
	PayoutRequestID uuid.UUID `json:"payout_request_id"`
	UserID          uuid.UUID `json:"user_id"`
	Status          string    `json:"status"`
	PayoutID        string    `json:"payout_id"`
	Timestamp       time.Time `json:"timestamp"`
}

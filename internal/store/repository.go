/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the wallet-service. By defining an interface,
 * we decouple the application's business logic from the specific database
 * implementation (PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/cloudblinker/wallet-service/internal/domain"
	"github.com/google/uuid"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Profile methods
	FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	FindProfileByStripeCustomerID(ctx context.Context, customerID string) (*domain.Profile, error)
	// ClaimStripeCustomerID persists a lazily provisioned customer id with
	// compare-and-swap semantics: the write only lands while the column is
	// still NULL. It returns the id now on the profile, which is the
	// caller's id when the claim won and the concurrent winner's otherwise.
	ClaimStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) (string, error)

	// Wallet methods
	FindWalletByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	// CreditWalletForPayment applies a checkout credit exactly once per
	// payment-intent id. The payment insert, the server-side wallet
	// increment, and the ledger insert commit in a single transaction; a
	// duplicate payment-intent id makes the whole call a no-op and returns
	// ErrPaymentAlreadyRecorded.
	CreditWalletForPayment(ctx context.Context, payment *domain.Payment, entry *domain.LedgerEntry) error

	// Payout request methods
	FindPayoutRequestByTransferID(ctx context.Context, transferID string) (*domain.PayoutRequest, error)
	FindPayoutRequestByPayoutID(ctx context.Context, payoutID string) (*domain.PayoutRequest, error)
	SettlePayoutRequest(ctx context.Context, requestID uuid.UUID, status string, payoutID string) error

	// Task methods (dashboard reads)
	ListTasks(ctx context.Context, opts domain.TaskListOptions) ([]domain.Task, error)
}

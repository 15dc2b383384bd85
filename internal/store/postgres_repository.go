/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * related to profiles, wallets, payments, ledger entries, payout requests, and tasks.
 *
 * The checkout credit path is the one with a real correctness contract: the
 * payment insert, the wallet increment, and the ledger insert run in a single
 * transaction, gated by the unique constraint on `payments.payment_intent_id`.
 * Redelivered or concurrently delivered duplicates of the same checkout event
 * therefore credit at most once, with no read-modify-write window.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"

	"github.com/cloudblinker/wallet-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrProfileNotFound        = errors.New("profile not found")
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrPayoutRequestNotFound  = errors.New("payout request not found")
	ErrPaymentAlreadyRecorded = errors.New("payment already recorded")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindProfileByUserID retrieves a profile by its owning user id.
func (r *PostgresRepository) FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	var profile domain.Profile
	query := `
		SELECT user_id, role, stripe_customer_id, email, display_name, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.Role,
		&profile.StripeCustomerID,
		&profile.Email,
		&profile.DisplayName,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// FindProfileByStripeCustomerID resolves the owning user for a Stripe customer id.
func (r *PostgresRepository) FindProfileByStripeCustomerID(ctx context.Context, customerID string) (*domain.Profile, error) {
	var profile domain.Profile
	query := `
		SELECT user_id, role, stripe_customer_id, email, display_name, created_at, updated_at
		FROM profiles
		WHERE stripe_customer_id = $1
	`
	err := r.db.QueryRow(ctx, query, customerID).Scan(
		&profile.UserID,
		&profile.Role,
		&profile.StripeCustomerID,
		&profile.Email,
		&profile.DisplayName,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// ClaimStripeCustomerID writes the customer id only while the column is still
// NULL, so concurrent first-payment requests cannot provision two customers
// for one profile. The id actually on the row after the attempt is returned.
func (r *PostgresRepository) ClaimStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) (string, error) {
	query := `
		UPDATE profiles
		SET stripe_customer_id = $2, updated_at = NOW()
		WHERE user_id = $1 AND stripe_customer_id IS NULL
	`
	result, err := r.db.Exec(ctx, query, userID, customerID)
	if err != nil {
		return "", err
	}
	if result.RowsAffected() > 0 {
		return customerID, nil
	}

	// Lost the race (or the id was already set): adopt the stored value.
	var existing *string
	err = r.db.QueryRow(ctx, `SELECT stripe_customer_id FROM profiles WHERE user_id = $1`, userID).Scan(&existing)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", ErrProfileNotFound
		}
		return "", err
	}
	if existing == nil {
		return "", ErrProfileNotFound
	}
	return *existing, nil
}

// FindWalletByUserID retrieves a user's wallet.
func (r *PostgresRepository) FindWalletByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT user_id, available, on_hold, updated_at FROM wallets WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&wallet.UserID, &wallet.Available, &wallet.OnHold, &wallet.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// CreditWalletForPayment applies a checkout credit atomically and at most once
// per payment-intent id.
func (r *PostgresRepository) CreditWalletForPayment(ctx context.Context, payment *domain.Payment, entry *domain.LedgerEntry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// The unique constraint on payment_intent_id is the idempotency gate for
	// the whole credit, not just the payment row.
	insertPayment := `
		INSERT INTO payments (id, user_id, amount, currency, payment_intent_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (payment_intent_id) DO NOTHING
	`
	result, err := tx.Exec(ctx, insertPayment,
		payment.ID,
		payment.UserID,
		payment.Amount,
		payment.Currency,
		payment.PaymentIntentID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrPaymentAlreadyRecorded
	}

	// Server-side increment; signup creates the wallet row, but a missing row
	// is healed here rather than dropping the credit.
	upsertWallet := `
		INSERT INTO wallets (user_id, available, on_hold)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE
		SET available = wallets.available + EXCLUDED.available, updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, upsertWallet, payment.UserID, payment.Amount); err != nil {
		return err
	}

	insertEntry := `
		INSERT INTO ledger_entries (id, user_id, type, bucket, amount, currency, source_type, source_id, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source_type, source_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, insertEntry,
		entry.ID,
		entry.UserID,
		entry.Type,
		entry.Bucket,
		entry.Amount,
		entry.Currency,
		entry.SourceType,
		entry.SourceID,
		entry.Note,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// FindPayoutRequestByTransferID looks up a payout request by its provider transfer id.
func (r *PostgresRepository) FindPayoutRequestByTransferID(ctx context.Context, transferID string) (*domain.PayoutRequest, error) {
	return r.findPayoutRequest(ctx, `transfer_id = $1`, transferID)
}

// FindPayoutRequestByPayoutID looks up a payout request by its provider payout id.
func (r *PostgresRepository) FindPayoutRequestByPayoutID(ctx context.Context, payoutID string) (*domain.PayoutRequest, error) {
	return r.findPayoutRequest(ctx, `payout_id = $1`, payoutID)
}

func (r *PostgresRepository) findPayoutRequest(ctx context.Context, predicate string, arg string) (*domain.PayoutRequest, error) {
	var request domain.PayoutRequest
	query := `
		SELECT id, user_id, amount, status, transfer_id, payout_id, created_at, updated_at
		FROM payout_requests
		WHERE ` + predicate
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&request.ID,
		&request.UserID,
		&request.Amount,
		&request.Status,
		&request.TransferID,
		&request.PayoutID,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPayoutRequestNotFound
		}
		return nil, err
	}
	return &request, nil
}

// SettlePayoutRequest records the terminal status and payout id for a request.
func (r *PostgresRepository) SettlePayoutRequest(ctx context.Context, requestID uuid.UUID, status string, payoutID string) error {
	query := `
		UPDATE payout_requests
		SET status = $2, payout_id = COALESCE(NULLIF($3, ''), payout_id), updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, requestID, status, payoutID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrPayoutRequestNotFound
	}
	return nil
}

// ListTasks retrieves tasks filtered by role ownership for the dashboards.
func (r *PostgresRepository) ListTasks(ctx context.Context, opts domain.TaskListOptions) ([]domain.Task, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, client_id, blinker_id, title, status, reward, created_at, updated_at
		FROM tasks
		WHERE ($1::uuid IS NULL OR client_id = $1)
		  AND ($2::uuid IS NULL OR blinker_id = $2)
		ORDER BY updated_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, opts.ClientID, opts.BlinkerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		var task domain.Task
		err := rows.Scan(
			&task.ID,
			&task.ClientID,
			&task.BlinkerID,
			&task.Title,
			&task.Status,
			&task.Reward,
			&task.CreatedAt,
			&task.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

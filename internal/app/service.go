/**
 * @description
 * This file contains the core business logic for the wallet-service API surface:
 * creating hosted checkout sessions for wallet top-ups and serving the
 * dashboard reads (wallet balances, tasks, profile).
 *
 * Key features:
 * - Validates the caller's role before allowing a top-up (clients and admins only).
 * - Lazily provisions a Stripe customer on first payment and persists the id
 *   with compare-and-swap semantics so concurrent first payments cannot
 *   create two provider customers for one profile.
 *
 * @dependencies
 * - context, errors, fmt, log: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/stripeclient: For external provider communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloudblinker/wallet-service/internal/domain"
	"github.com/cloudblinker/wallet-service/internal/store"
	"github.com/cloudblinker/wallet-service/pkg/stripeclient"
	"github.com/google/uuid"
)

var (
	ErrInvalidTopUpAmount = errors.New("top-up amount must be a positive integer")
	ErrRoleNotAllowed     = errors.New("only clients can top up a wallet")
)

// StripeAPI is the subset of the Stripe client the service depends on.
type StripeAPI interface {
	CreateCustomer(ctx context.Context, params stripeclient.CreateCustomerParams) (*stripeclient.Customer, error)
	CreateCheckoutSession(ctx context.Context, params stripeclient.CreateCheckoutSessionParams) (*stripeclient.CheckoutSession, error)
}

// Service provides the business logic behind the wallet-service API endpoints.
type Service struct {
	repo   store.Repository
	stripe StripeAPI

	currency          string
	productName       string
	defaultSuccessURL string
	defaultCancelURL  string
}

// NewService creates a new wallet service instance.
func NewService(repo store.Repository, stripe StripeAPI, currency, productName, defaultSuccessURL, defaultCancelURL string) *Service {
	return &Service{
		repo:              repo,
		stripe:            stripe,
		currency:          currency,
		productName:       productName,
		defaultSuccessURL: defaultSuccessURL,
		defaultCancelURL:  defaultCancelURL,
	}
}

// GetProfile returns the caller's profile.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	return s.repo.FindProfileByUserID(ctx, userID)
}

// GetWallet returns the caller's wallet. A user without a wallet row yet is
// reported as a zero balance rather than an error.
func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.repo.FindWalletByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return &domain.Wallet{UserID: userID}, nil
		}
		return nil, err
	}
	return wallet, nil
}

// ListTasksForUser returns the tasks the caller's dashboard shows: tasks they
// posted for clients, tasks assigned to them for blinkers, everything for admins.
func (s *Service) ListTasksForUser(ctx context.Context, profile *domain.Profile, limit, offset int) ([]domain.Task, error) {
	opts := domain.TaskListOptions{Limit: limit, Offset: offset}
	switch profile.Role {
	case domain.RoleClient:
		id := profile.UserID
		opts.ClientID = &id
	case domain.RoleBlinker:
		id := profile.UserID
		opts.BlinkerID = &id
	}
	return s.repo.ListTasks(ctx, opts)
}

// CreateCheckoutSession validates the caller and amount, ensures a Stripe
// customer exists for the profile, and creates a hosted checkout session.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, req domain.CreateCheckoutSessionRequest) (*domain.CreateCheckoutSessionResponse, error) {
	profile, err := s.repo.FindProfileByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if profile.Role != domain.RoleClient && profile.Role != domain.RoleAdmin {
		return nil, ErrRoleNotAllowed
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidTopUpAmount
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = s.defaultSuccessURL
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = s.defaultCancelURL
	}

	customerID, err := s.ensureStripeCustomer(ctx, profile)
	if err != nil {
		return nil, err
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, stripeclient.CreateCheckoutSessionParams{
		CustomerID:  customerID,
		Amount:      req.Amount,
		Currency:    s.currency,
		ProductName: s.productName,
		SuccessURL:  successURL,
		CancelURL:   cancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	log.Printf("level=info component=app op=create_checkout_session user_id=%s customer_id=%s amount=%d", userID, customerID, req.Amount)
	return &domain.CreateCheckoutSessionResponse{URL: session.URL}, nil
}

// ensureStripeCustomer returns the profile's Stripe customer id, provisioning
// one on first use. The claim is a conditional write; when a concurrent
// request wins the race, the freshly created customer is abandoned and the
// stored id is adopted.
func (s *Service) ensureStripeCustomer(ctx context.Context, profile *domain.Profile) (string, error) {
	if profile.StripeCustomerID != nil && *profile.StripeCustomerID != "" {
		return *profile.StripeCustomerID, nil
	}

	params := stripeclient.CreateCustomerParams{UserID: profile.UserID.String()}
	if profile.Email != nil {
		params.Email = *profile.Email
	}
	if profile.DisplayName != nil {
		params.Name = *profile.DisplayName
	}

	customer, err := s.stripe.CreateCustomer(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe customer: %w", err)
	}

	claimed, err := s.repo.ClaimStripeCustomerID(ctx, profile.UserID, customer.ID)
	if err != nil {
		return "", fmt.Errorf("failed to persist stripe customer id: %w", err)
	}
	if claimed != customer.ID {
		log.Printf("level=warn component=app op=ensure_stripe_customer msg=\"lost provisioning race; adopting stored customer\" user_id=%s created=%s stored=%s", profile.UserID, customer.ID, claimed)
	}
	return claimed, nil
}

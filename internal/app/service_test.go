package app

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudblinker/wallet-service/internal/domain"
	"github.com/cloudblinker/wallet-service/internal/store"
	"github.com/cloudblinker/wallet-service/pkg/stripeclient"
	"github.com/google/uuid"
)

type serviceRepoStub struct {
	store.Repository

	profile *domain.Profile
	wallet  *domain.Wallet

	claimedCustomerID string
	claimCalls        int
	claimReturns      string

	listOpts domain.TaskListOptions
}

func (s *serviceRepoStub) FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	if s.profile == nil {
		return nil, store.ErrProfileNotFound
	}
	return s.profile, nil
}

func (s *serviceRepoStub) FindWalletByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	if s.wallet == nil {
		return nil, store.ErrWalletNotFound
	}
	return s.wallet, nil
}

func (s *serviceRepoStub) ClaimStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) (string, error) {
	s.claimCalls++
	s.claimedCustomerID = customerID
	if s.claimReturns != "" {
		return s.claimReturns, nil
	}
	return customerID, nil
}

func (s *serviceRepoStub) ListTasks(ctx context.Context, opts domain.TaskListOptions) ([]domain.Task, error) {
	s.listOpts = opts
	return []domain.Task{}, nil
}

type stripeStub struct {
	createdCustomers int
	sessionParams    stripeclient.CreateCheckoutSessionParams
	sessionErr       error
}

func (s *stripeStub) CreateCustomer(ctx context.Context, params stripeclient.CreateCustomerParams) (*stripeclient.Customer, error) {
	s.createdCustomers++
	return &stripeclient.Customer{ID: "cus_new", Email: params.Email, Name: params.Name}, nil
}

func (s *stripeStub) CreateCheckoutSession(ctx context.Context, params stripeclient.CreateCheckoutSessionParams) (*stripeclient.CheckoutSession, error) {
	if s.sessionErr != nil {
		return nil, s.sessionErr
	}
	s.sessionParams = params
	return &stripeclient.CheckoutSession{ID: "cs_new", URL: "https://checkout.stripe.com/c/pay/cs_new"}, nil
}

func newTestService(repo store.Repository, stripe StripeAPI) *Service {
	return NewService(repo, stripe, "JPY", "Wallet top-up",
		"https://example.com/success.html", "https://example.com/cancel.html")
}

func clientProfile(customerID *string) *domain.Profile {
	return &domain.Profile{
		UserID:           uuid.New(),
		Role:             domain.RoleClient,
		StripeCustomerID: customerID,
	}
}

func TestCreateCheckoutSession_BlinkerRoleRejected(t *testing.T) {
	repo := &serviceRepoStub{profile: &domain.Profile{UserID: uuid.New(), Role: domain.RoleBlinker}}
	stripe := &stripeStub{}
	service := newTestService(repo, stripe)

	_, err := service.CreateCheckoutSession(context.Background(), repo.profile.UserID, domain.CreateCheckoutSessionRequest{Amount: 1000})
	if !errors.Is(err, ErrRoleNotAllowed) {
		t.Fatalf("expected ErrRoleNotAllowed, got %v", err)
	}
	if stripe.createdCustomers != 0 {
		t.Fatal("expected no provider call for a rejected role")
	}
}

func TestCreateCheckoutSession_NonPositiveAmountRejected(t *testing.T) {
	repo := &serviceRepoStub{profile: clientProfile(nil)}
	service := newTestService(repo, &stripeStub{})

	for _, amount := range []int64{0, -1} {
		_, err := service.CreateCheckoutSession(context.Background(), repo.profile.UserID, domain.CreateCheckoutSessionRequest{Amount: amount})
		if !errors.Is(err, ErrInvalidTopUpAmount) {
			t.Fatalf("amount %d: expected ErrInvalidTopUpAmount, got %v", amount, err)
		}
	}
}

func TestCreateCheckoutSession_ExistingCustomerReused(t *testing.T) {
	existing := "cus_existing"
	repo := &serviceRepoStub{profile: clientProfile(&existing)}
	stripe := &stripeStub{}
	service := newTestService(repo, stripe)

	resp, err := service.CreateCheckoutSession(context.Background(), repo.profile.UserID, domain.CreateCheckoutSessionRequest{Amount: 5000})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if resp.URL == "" {
		t.Fatal("expected a checkout url")
	}
	if stripe.createdCustomers != 0 {
		t.Fatal("expected no customer creation when one is already stored")
	}
	if repo.claimCalls != 0 {
		t.Fatal("expected no claim when a customer id is already stored")
	}
	if stripe.sessionParams.CustomerID != existing {
		t.Fatalf("expected session for %s, got %s", existing, stripe.sessionParams.CustomerID)
	}
}

func TestCreateCheckoutSession_LazyCustomerProvisioning(t *testing.T) {
	repo := &serviceRepoStub{profile: clientProfile(nil)}
	stripe := &stripeStub{}
	service := newTestService(repo, stripe)

	_, err := service.CreateCheckoutSession(context.Background(), repo.profile.UserID, domain.CreateCheckoutSessionRequest{Amount: 5000})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if stripe.createdCustomers != 1 {
		t.Fatalf("expected one customer creation, got %d", stripe.createdCustomers)
	}
	if repo.claimedCustomerID != "cus_new" {
		t.Fatalf("expected claim of cus_new, got %q", repo.claimedCustomerID)
	}
	if stripe.sessionParams.CustomerID != "cus_new" {
		t.Fatalf("expected session for cus_new, got %s", stripe.sessionParams.CustomerID)
	}
}

func TestCreateCheckoutSession_LostProvisioningRaceAdoptsStoredID(t *testing.T) {
	repo := &serviceRepoStub{profile: clientProfile(nil), claimReturns: "cus_winner"}
	stripe := &stripeStub{}
	service := newTestService(repo, stripe)

	_, err := service.CreateCheckoutSession(context.Background(), repo.profile.UserID, domain.CreateCheckoutSessionRequest{Amount: 5000})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if stripe.sessionParams.CustomerID != "cus_winner" {
		t.Fatalf("expected the stored id to win the race, got %s", stripe.sessionParams.CustomerID)
	}
}

func TestCreateCheckoutSession_DefaultRedirectURLs(t *testing.T) {
	existing := "cus_existing"
	repo := &serviceRepoStub{profile: clientProfile(&existing)}
	stripe := &stripeStub{}
	service := newTestService(repo, stripe)

	_, err := service.CreateCheckoutSession(context.Background(), repo.profile.UserID, domain.CreateCheckoutSessionRequest{Amount: 5000})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if stripe.sessionParams.SuccessURL != "https://example.com/success.html" {
		t.Fatalf("expected default success url, got %s", stripe.sessionParams.SuccessURL)
	}
	if stripe.sessionParams.CancelURL != "https://example.com/cancel.html" {
		t.Fatalf("expected default cancel url, got %s", stripe.sessionParams.CancelURL)
	}

	_, err = service.CreateCheckoutSession(context.Background(), repo.profile.UserID, domain.CreateCheckoutSessionRequest{
		Amount:     5000,
		SuccessURL: "https://example.com/custom-success",
		CancelURL:  "https://example.com/custom-cancel",
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if stripe.sessionParams.SuccessURL != "https://example.com/custom-success" {
		t.Fatalf("expected caller success url to win, got %s", stripe.sessionParams.SuccessURL)
	}
}

func TestGetWallet_MissingRowReportsZeroBalance(t *testing.T) {
	repo := &serviceRepoStub{}
	service := newTestService(repo, &stripeStub{})

	userID := uuid.New()
	wallet, err := service.GetWallet(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected zero-balance wallet, got %v", err)
	}
	if wallet.UserID != userID || wallet.Available != 0 || wallet.OnHold != 0 {
		t.Fatalf("unexpected wallet: %+v", wallet)
	}
}

func TestListTasksForUser_ScopesByRole(t *testing.T) {
	repo := &serviceRepoStub{}
	service := newTestService(repo, &stripeStub{})

	client := &domain.Profile{UserID: uuid.New(), Role: domain.RoleClient}
	if _, err := service.ListTasksForUser(context.Background(), client, 10, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.listOpts.ClientID == nil || *repo.listOpts.ClientID != client.UserID {
		t.Fatal("expected client scope")
	}
	if repo.listOpts.BlinkerID != nil {
		t.Fatal("expected no blinker scope for a client")
	}

	blinker := &domain.Profile{UserID: uuid.New(), Role: domain.RoleBlinker}
	if _, err := service.ListTasksForUser(context.Background(), blinker, 10, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.listOpts.BlinkerID == nil || *repo.listOpts.BlinkerID != blinker.UserID {
		t.Fatal("expected blinker scope")
	}

	admin := &domain.Profile{UserID: uuid.New(), Role: domain.RoleAdmin}
	if _, err := service.ListTasksForUser(context.Background(), admin, 10, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.listOpts.ClientID != nil || repo.listOpts.BlinkerID != nil {
		t.Fatal("expected unscoped listing for an admin")
	}
}

/**
 * @description
 * This package provides a client for the parts of the Stripe API the
 * wallet-service needs: creating customers and hosted checkout sessions.
 * Stripe's API is form-encoded rather than JSON, so requests are built with
 * url.Values and sent with the secret key as a bearer credential.
 *
 * @dependencies
 * - context, net/http, net/url, strings, time: Standard Go libraries.
 * - encoding/json: For decoding Stripe responses.
 */
package stripeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.stripe.com"

// Client is a minimal Stripe API client.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewClient creates a new Stripe API client authenticated with the secret key.
func NewClient(secretKey string) *Client {
	return &Client{
		BaseURL:   defaultBaseURL,
		SecretKey: secretKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Customer is the subset of Stripe's customer object we read back.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// CheckoutSession is the subset of Stripe's checkout session object we read back.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCustomerParams carries the fields sent when provisioning a customer.
type CreateCustomerParams struct {
	Email  string
	Name   string
	UserID string // stored as metadata for reverse lookup
}

// CreateCheckoutSessionParams carries the fields for a hosted checkout session.
type CreateCheckoutSessionParams struct {
	CustomerID  string
	Amount      int64 // minor units
	Currency    string
	ProductName string
	SuccessURL  string
	CancelURL   string
}

// APIError represents an error object returned by the Stripe API.
type APIError struct {
	StatusCode int
	Payload    struct {
		Error struct {
			Type    string `json:"type"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
}

func (e *APIError) Error() string {
	if e.Payload.Error.Message != "" {
		return fmt.Sprintf("stripe api error (status %d): %s", e.StatusCode, e.Payload.Error.Message)
	}
	return fmt.Sprintf("stripe api error (status %d)", e.StatusCode)
}

// CreateCustomer provisions a new Stripe customer.
func (c *Client) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	form := url.Values{}
	if params.Email != "" {
		form.Set("email", params.Email)
	}
	if params.Name != "" {
		form.Set("name", params.Name)
	}
	if params.UserID != "" {
		form.Set("metadata[user_id]", params.UserID)
	}

	var customer Customer
	if err := c.postForm(ctx, "/v1/customers", form, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CreateCheckoutSession creates a hosted checkout session in payment mode with
// a single ad-hoc line item, mirroring the top-up flow the dashboards use.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("customer", params.CustomerID)
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(params.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", params.ProductName)

	var session CheckoutSession
	if err := c.postForm(ctx, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// postForm executes a form-encoded POST against the Stripe API and decodes the
// JSON response into out.
func (c *Client) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create stripe request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute stripe request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read stripe response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(bodyBytes, &apiErr.Payload); err != nil {
			log.Printf("level=warn component=stripe_client path=%s status=%d msg=\"non-2xx response (unparsable error body)\"", path, resp.StatusCode)
			return fmt.Errorf("failed to decode stripe error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=stripe_client path=%s status=%d code=%q msg=%q", path, resp.StatusCode, apiErr.Payload.Error.Code, apiErr.Payload.Error.Message)
		return apiErr
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode stripe response: %w", err)
	}
	return nil
}

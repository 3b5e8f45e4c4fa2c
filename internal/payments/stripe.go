// Package payments wraps Stripe Connect (vendor payouts) and payment intents
// for accepted proposals.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/eventmarket/api/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

var (
	ErrNotConfigured  = errors.New("stripe is not configured")
	ErrInvalidAmount  = errors.New("payment amount must be positive")
	ErrInvalidWebhook = errors.New("invalid webhook payload")
)

type accountAPI interface {
	New(params *stripe.AccountParams) (*stripe.Account, error)
}

type accountLinkAPI interface {
	New(params *stripe.AccountLinkParams) (*stripe.AccountLink, error)
}

type loginLinkAPI interface {
	New(params *stripe.LoginLinkParams) (*stripe.LoginLink, error)
}

type paymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// APIs lets tests substitute the Stripe resource clients.
type APIs struct {
	Accounts       accountAPI
	AccountLinks   accountLinkAPI
	LoginLinks     loginLinkAPI
	PaymentIntents paymentIntentAPI
}

type Client struct {
	api           APIs
	webhookSecret string
	currency      string
}

// NewClient returns a Stripe-backed client. With no secret key every call
// returns ErrNotConfigured.
func NewClient(cfg config.StripeConfig) *Client {
	c := &Client{webhookSecret: cfg.WebhookSecret, currency: strings.ToLower(cfg.Currency)}
	if c.currency == "" {
		c.currency = "usd"
	}
	if key := strings.TrimSpace(cfg.SecretKey); key != "" {
		sc := client.New(key, nil)
		c.api = APIs{
			Accounts:       sc.Accounts,
			AccountLinks:   sc.AccountLinks,
			LoginLinks:     sc.LoginLinks,
			PaymentIntents: sc.PaymentIntents,
		}
	}
	return c
}

func NewClientWithAPIs(api APIs, webhookSecret, currency string) *Client {
	return &Client{api: api, webhookSecret: webhookSecret, currency: currency}
}

// CreateExpressAccount opens a Connect Express account for a vendor and
// returns its id.
func (c *Client) CreateExpressAccount(ctx context.Context, vendorID, email, businessName string) (string, error) {
	if c.api.Accounts == nil {
		return "", ErrNotConfigured
	}

	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
		BusinessProfile: &stripe.AccountBusinessProfileParams{Name: stripe.String(businessName)},
	}
	params.Context = ctx
	params.AddMetadata("vendor_id", vendorID)
	params.SetIdempotencyKey("vendor-account-" + vendorID)

	acct, err := c.api.Accounts.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create account: %w", err)
	}
	return acct.ID, nil
}

// OnboardingLink returns a one-time URL for finishing account onboarding.
func (c *Client) OnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	if c.api.AccountLinks == nil {
		return "", ErrNotConfigured
	}

	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx

	link, err := c.api.AccountLinks.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create account link: %w", err)
	}
	return link.URL, nil
}

// DashboardLink returns a login link to the vendor's Express dashboard.
func (c *Client) DashboardLink(ctx context.Context, accountID string) (string, error) {
	if c.api.LoginLinks == nil {
		return "", ErrNotConfigured
	}

	params := &stripe.LoginLinkParams{Account: stripe.String(accountID)}
	params.Context = ctx

	link, err := c.api.LoginLinks.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create login link: %w", err)
	}
	return link.URL, nil
}

type PaymentIntentRequest struct {
	InvoiceID     string
	InvoiceNumber string
	Amount        decimal.Decimal
	ReceiptEmail  string
}

type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

func (c *Client) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (PaymentIntent, error) {
	if c.api.PaymentIntents == nil {
		return PaymentIntent{}, ErrNotConfigured
	}
	cents := ToCents(req.Amount)
	if cents <= 0 {
		return PaymentIntent{}, ErrInvalidAmount
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(cents),
		Currency: stripe.String(c.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String("Proposal " + req.InvoiceNumber),
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	params.Context = ctx
	params.AddMetadata("invoice_id", req.InvoiceID)
	params.AddMetadata("invoice_number", req.InvoiceNumber)
	params.SetIdempotencyKey(fmt.Sprintf("invoice-%s-%d", req.InvoiceID, cents))

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return PaymentIntent{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return PaymentIntent{ID: pi.ID, ClientSecret: pi.ClientSecret, Amount: cents, Currency: c.currency}, nil
}

// WebhookEvent is the subset of a verified Stripe event the API acts on.
type WebhookEvent struct {
	ID              string
	Type            string
	PaymentIntentID string
	InvoiceID       string
}

const EventPaymentIntentSucceeded = "payment_intent.succeeded"

// ParseWebhook verifies the Stripe-Signature header and extracts the
// payment intent of payment_intent.* events.
func (c *Client) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	if c.webhookSecret == "" {
		return WebhookEvent{}, ErrNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	out := WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if !strings.HasPrefix(out.Type, "payment_intent.") || event.Data == nil {
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	out.PaymentIntentID = pi.ID
	out.InvoiceID = pi.Metadata["invoice_id"]
	return out, nil
}

// ToCents converts a dollar amount to the smallest currency unit.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

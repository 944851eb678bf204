package api

import (
	"context"
	"net/http"
	"time"
)

const cacheKeyPlans = "billing.plans"

// Plan is a subscription tier with its quota ceilings.
type Plan struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	PriceMonthly   float64 `json:"price_monthly"`
	DocumentsLimit int     `json:"documents_limit"`
	PackagesLimit  int     `json:"packages_limit"`
}

// Subscription is the account's current plan state.
type Subscription struct {
	PlanID           string `json:"plan_id"`
	PlanName         string `json:"plan_name"`
	Status           string `json:"status"`
	CurrentPeriodEnd string `json:"current_period_end,omitempty"`
}

// Invoice is one past billing record.
type Invoice struct {
	ID       string  `json:"id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Status   string  `json:"status"`
	IssuedAt string  `json:"issued_at"`
	PDFURL   string  `json:"pdf_url,omitempty"`
}

// ListPlans returns the available subscription tiers. Plans change
// rarely, so they get a longer cache TTL than other reads.
func (c *Client) ListPlans(ctx context.Context) ([]Plan, error) {
	if cached, ok := c.cache.Get(cacheKeyPlans); ok {
		return cached.([]Plan), nil
	}

	var result struct {
		Plans []Plan `json:"plans"`
	}
	if err := c.do(ctx, http.MethodGet, "/billing/plans", nil, &result); err != nil {
		return nil, err
	}
	c.cache.Set(cacheKeyPlans, result.Plans, 5*time.Minute)
	return result.Plans, nil
}

// GetSubscription returns the account's current subscription.
func (c *Client) GetSubscription(ctx context.Context) (*Subscription, error) {
	var sub Subscription
	if err := c.do(ctx, http.MethodGet, "/billing/subscription", nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateCheckout starts a checkout for the given plan and returns the
// hosted payment URL the user must open.
func (c *Client) CreateCheckout(ctx context.Context, planID string) (string, error) {
	var result struct {
		CheckoutURL string `json:"checkout_url"`
	}
	err := c.do(ctx, http.MethodPost, "/billing/checkout",
		map[string]string{"plan_id": planID}, &result)
	if err != nil {
		return "", err
	}
	return result.CheckoutURL, nil
}

// ListInvoices returns past invoices.
func (c *Client) ListInvoices(ctx context.Context) ([]Invoice, error) {
	var result struct {
		Invoices []Invoice `json:"invoices"`
	}
	if err := c.do(ctx, http.MethodGet, "/billing/invoices", nil, &result); err != nil {
		return nil, err
	}
	return result.Invoices, nil
}

package adapter

import (
	"context"
	"time"
)

// Gateway order/capture statuses we act on. Anything else is treated as
// not-terminal-yet: the local record stays pending and a later webhook or
// reconciliation pass resolves it.
const (
	OrderStatusCompleted = "COMPLETED"
)

// OrderRequest describes an order to create at the gateway. Amount is in
// minor currency units; the adapter converts to the gateway's decimal
// representation at the wire boundary.
type OrderRequest struct {
	Amount      int64
	Currency    string
	Description string
	// CustomID is the correlation id attached to the gateway order (invoice
	// id or a tenant-derived fallback) so gateway-side records stay traceable
	// to a tenant without the local database.
	CustomID string
}

type OrderResult struct {
	OrderID     string
	Status      string
	ApprovalURL string // user-facing approval redirect
}

type CaptureResult struct {
	OrderID   string
	CaptureID string
	Status    string
}

// Completed reports whether the capture reached the terminal success status.
func (r *CaptureResult) Completed() bool { return r.Status == OrderStatusCompleted }

// PayerInfo carries optional payer identity fields for subscription sign-up.
type PayerInfo struct {
	GivenName string
	Surname   string
	Email     string
}

type SubscriptionRequest struct {
	PlanID   string
	CustomID string
	// StartTime must be strictly in the future (gateway requirement).
	StartTime time.Time
	Quantity  int
	Payer     *PayerInfo
}

type SubscriptionResult struct {
	SubscriptionID string
	PlanID         string
	Status         string
	ApprovalURL    string
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
}

type BillingPlanRequest struct {
	ProductID     string
	Name          string
	Description   string
	Amount        int64 // minor units per cycle
	Currency      string
	IntervalUnit  string // e.g. "MONTH"
	IntervalCount int
}

type BillingPlanResult struct {
	PlanID string
	Status string
}

// PaymentGateway is the hex port for the external payment provider. Every
// call either returns a structured result or an error; errors are wrapped as
// domain.GatewayError by the caller. The gateway client owns its retries; the
// orchestrator performs none.
type PaymentGateway interface {
	Name() string

	CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error)

	CreateSubscription(ctx context.Context, req SubscriptionRequest) (*SubscriptionResult, error)
	CancelSubscription(ctx context.Context, subscriptionID, reason string) error
	GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionResult, error)

	CreateBillingPlan(ctx context.Context, req BillingPlanRequest) (*BillingPlanResult, error)
}

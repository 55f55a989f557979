package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"callcenter-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)
var _ adapter.WebhookVerifier = (*NoopWebhookVerifier)(nil)

// NoopGateway is a simple in-memory gateway for dev mode and tests. Orders
// complete immediately on capture; subscriptions activate immediately.
type NoopGateway struct {
	mu     sync.Mutex
	seq    int64
	orders map[string]int64  // order id -> amount
	subs   map[string]string // subscription id -> plan id
}

func NewNoopGateway() *NoopGateway {
	return &NoopGateway{
		orders: make(map[string]int64),
		subs:   make(map[string]string),
	}
}

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s-%d", prefix, g.seq)
}

func (g *NoopGateway) CreateOrder(ctx context.Context, req adapter.OrderRequest) (*adapter.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next("noop-order")
	g.orders[id] = req.Amount
	return &adapter.OrderResult{
		OrderID:     id,
		Status:      "CREATED",
		ApprovalURL: "https://example.test/approve/" + id,
	}, nil
}

func (g *NoopGateway) CaptureOrder(ctx context.Context, orderID string) (*adapter.CaptureResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.orders[orderID]; !ok {
		return nil, fmt.Errorf("noop: order %s not found", orderID)
	}
	return &adapter.CaptureResult{
		OrderID:   orderID,
		CaptureID: "cap-" + orderID,
		Status:    adapter.OrderStatusCompleted,
	}, nil
}

func (g *NoopGateway) CreateSubscription(ctx context.Context, req adapter.SubscriptionRequest) (*adapter.SubscriptionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next("noop-sub")
	g.subs[id] = req.PlanID
	start := req.StartTime
	end := start.Add(30 * 24 * time.Hour)
	return &adapter.SubscriptionResult{
		SubscriptionID: id,
		PlanID:         req.PlanID,
		Status:         "ACTIVE",
		ApprovalURL:    "https://example.test/approve/" + id,
		PeriodStart:    &start,
		PeriodEnd:      &end,
	}, nil
}

func (g *NoopGateway) CancelSubscription(ctx context.Context, subscriptionID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.subs[subscriptionID]; !ok {
		return fmt.Errorf("noop: subscription %s not found", subscriptionID)
	}
	delete(g.subs, subscriptionID)
	return nil
}

func (g *NoopGateway) GetSubscription(ctx context.Context, subscriptionID string) (*adapter.SubscriptionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	planID, ok := g.subs[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("noop: subscription %s not found", subscriptionID)
	}
	return &adapter.SubscriptionResult{
		SubscriptionID: subscriptionID,
		PlanID:         planID,
		Status:         "ACTIVE",
	}, nil
}

func (g *NoopGateway) CreateBillingPlan(ctx context.Context, req adapter.BillingPlanRequest) (*adapter.BillingPlanResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &adapter.BillingPlanResult{PlanID: g.next("noop-plan"), Status: "ACTIVE"}, nil
}

// NoopWebhookVerifier accepts everything; dev mode only.
type NoopWebhookVerifier struct{}

func (NoopWebhookVerifier) Verify(ctx context.Context, headers map[string]string, body []byte) (bool, error) {
	return true, nil
}

// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"callcenter-billing/internal/domain"
	"callcenter-billing/internal/domain/model"
	"callcenter-billing/internal/domain/ports/adapter"
	"callcenter-billing/internal/domain/ports/repository"
	"callcenter-billing/internal/infra/logging"
	"callcenter-billing/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// DefaultTier is the internal tier assigned when the gateway plan id has no
// explicit mapping. The adopting system supplies the real plan→tier catalog.
const DefaultTier = "standard"

const defaultCancelReason = "canceled by tenant request"

type CreateSubscriptionResult struct {
	ExternalSubscriptionID string
	ApprovalURL            string
	Subscription           *model.TenantSubscription
}

// SubscriptionSnapshot pairs the gateway's answer with the local row, when
// one exists. Local is nil for subscriptions the gateway knows about but we
// never recorded (or that belong to a different deployment).
type SubscriptionSnapshot struct {
	Gateway *adapter.SubscriptionResult
	Local   *model.TenantSubscription
}

type SubscriptionUseCase interface {
	// CreateSubscription creates a gateway subscription and upserts the
	// tenant's single subscription row.
	CreateSubscription(ctx context.Context, planID, tenantID string, payer *adapter.PayerInfo) (*CreateSubscriptionResult, error)
	// CancelSubscription cancels at the gateway, then locally. A missing
	// local row is a consistency gap for reconciliation, not a caller error.
	CancelSubscription(ctx context.Context, externalSubscriptionID, reason string) (bool, error)
	// GetSubscription reads through to the gateway and enriches the answer
	// with the local row; no local mutation.
	GetSubscription(ctx context.Context, externalSubscriptionID string) (*SubscriptionSnapshot, error)
	// CreateBillingPlan provisions a recurring billing plan at the gateway.
	CreateBillingPlan(ctx context.Context, req adapter.BillingPlanRequest) (*adapter.BillingPlanResult, error)
}

type subscriptionUC struct {
	subs    repository.SubscriptionRepository
	gateway adapter.PaymentGateway
	// planTiers maps gateway plan ids to internal tiers; unknown plans fall
	// back to DefaultTier.
	planTiers map[string]string
	log       *zerolog.Logger
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	gateway adapter.PaymentGateway,
	planTiers map[string]string,
	logger *zerolog.Logger,
) *subscriptionUC {
	return &subscriptionUC{subs: subs, gateway: gateway, planTiers: planTiers, log: logger}
}

func (u *subscriptionUC) CreateSubscription(ctx context.Context, planID, tenantID string, payer *adapter.PayerInfo) (*CreateSubscriptionResult, error) {
	if planID == "" || tenantID == "" {
		return nil, domain.ErrInvalidArgument
	}
	defer logging.TraceDuration(u.log, "SubscriptionUC.CreateSubscription")()
	ctx = logging.WithTenantID(ctx, tenantID)
	log := logging.With(ctx, u.log)

	req := adapter.SubscriptionRequest{
		PlanID:   planID,
		CustomID: fmt.Sprintf("tenant:%s:%s", tenantID, ulid.Make().String()),
		// The gateway rejects start times at or before "now".
		StartTime: time.Now().Add(time.Minute),
		Quantity:  1,
		Payer:     payer,
	}

	res, err := u.gateway.CreateSubscription(ctx, req)
	metrics.IncGatewayCall("create_subscription", err)
	if err != nil {
		log.Error().Err(err).Str("plan_id", planID).Msg("gateway create subscription failed")
		return nil, domain.NewGatewayError("create_subscription", err)
	}

	now := time.Now()
	status := mapGatewayStatus(res.Status)

	// Provisional period until a webhook supplies authoritative bounds.
	periodStart, periodEnd := now, now.Add(model.DefaultPeriodDays*24*time.Hour)
	if res.PeriodStart != nil {
		periodStart = *res.PeriodStart
	}
	if res.PeriodEnd != nil {
		periodEnd = *res.PeriodEnd
	}

	sub := &model.TenantSubscription{
		ID:                     uuid.NewString(),
		TenantID:               tenantID,
		ExternalSubscriptionID: res.SubscriptionID,
		PlanID:                 planID,
		Tier:                   u.tierFor(planID),
		Status:                 status,
		CurrentPeriodStart:     periodStart,
		CurrentPeriodEnd:       periodEnd,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	// One row per tenant: keep the existing row's identity when re-subscribing.
	if existing, err := u.subs.FindByTenant(ctx, repository.NoTX, tenantID); err == nil {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if err := u.subs.Upsert(ctx, repository.NoTX, sub); err != nil {
		return nil, err
	}
	metrics.IncSubscriptionTransition(string(status))

	log.Info().
		Str("external_subscription_id", res.SubscriptionID).
		Str("plan_id", planID).
		Str("status", string(status)).
		Msg("subscription upserted")

	return &CreateSubscriptionResult{
		ExternalSubscriptionID: res.SubscriptionID,
		ApprovalURL:            res.ApprovalURL,
		Subscription:           sub,
	}, nil
}

func (u *subscriptionUC) CancelSubscription(ctx context.Context, externalSubscriptionID, reason string) (bool, error) {
	if externalSubscriptionID == "" {
		return false, domain.ErrInvalidArgument
	}
	if reason == "" {
		reason = defaultCancelReason
	}

	err := u.gateway.CancelSubscription(ctx, externalSubscriptionID, reason)
	metrics.IncGatewayCall("cancel_subscription", err)
	if err != nil {
		return false, domain.NewGatewayError("cancel_subscription", err)
	}

	// The gateway is the source of truth; a missing local row still counts
	// as success and is left for reconciliation.
	updated, err := u.subs.CancelByExternalID(ctx, repository.NoTX, externalSubscriptionID, time.Now())
	if err != nil {
		logging.With(ctx, u.log).Error().Err(err).Str("external_subscription_id", externalSubscriptionID).Msg("local cancel failed after gateway cancel")
		return false, err
	}
	if updated {
		metrics.IncSubscriptionTransition(string(model.SubscriptionStatusCanceled))
	} else {
		logging.With(ctx, u.log).Warn().Str("external_subscription_id", externalSubscriptionID).Msg("no local subscription matched gateway cancellation")
	}
	return true, nil
}

func (u *subscriptionUC) GetSubscription(ctx context.Context, externalSubscriptionID string) (*SubscriptionSnapshot, error) {
	if externalSubscriptionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	res, err := u.gateway.GetSubscription(ctx, externalSubscriptionID)
	metrics.IncGatewayCall("get_subscription", err)
	if err != nil {
		return nil, domain.NewGatewayError("get_subscription", err)
	}

	snap := &SubscriptionSnapshot{Gateway: res}
	local, err := u.subs.FindByExternalID(ctx, repository.NoTX, externalSubscriptionID)
	switch {
	case err == nil:
		snap.Local = local
	case errors.Is(err, domain.ErrNotFound):
		// The gateway knows it, we don't; reconciliation territory.
	default:
		// Local trouble must not mask the gateway's answer.
		logging.With(ctx, u.log).Warn().Err(err).Str("external_subscription_id", externalSubscriptionID).Msg("local subscription lookup failed")
	}
	return snap, nil
}

func (u *subscriptionUC) CreateBillingPlan(ctx context.Context, req adapter.BillingPlanRequest) (*adapter.BillingPlanResult, error) {
	if req.Name == "" || req.Amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	res, err := u.gateway.CreateBillingPlan(ctx, req)
	metrics.IncGatewayCall("create_billing_plan", err)
	if err != nil {
		return nil, domain.NewGatewayError("create_billing_plan", err)
	}
	return res, nil
}

func (u *subscriptionUC) tierFor(planID string) string {
	if t, ok := u.planTiers[planID]; ok {
		return t
	}
	return DefaultTier
}

// mapGatewayStatus mirrors the gateway-reported subscription status into the
// local model, defaulting to pending for anything unrecognized or absent.
func mapGatewayStatus(s string) model.SubscriptionStatus {
	switch s {
	case "ACTIVE":
		return model.SubscriptionStatusActive
	case "CANCELLED", "EXPIRED":
		return model.SubscriptionStatusCanceled
	case "SUSPENDED":
		return model.SubscriptionStatusPastDue
	default:
		return model.SubscriptionStatusPending
	}
}

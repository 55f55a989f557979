// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"callcenter-billing/internal/domain"
	"callcenter-billing/internal/domain/model"
	"callcenter-billing/internal/domain/ports/adapter"
	"callcenter-billing/internal/domain/ports/repository"
	"callcenter-billing/internal/infra/logging"
	"callcenter-billing/internal/infra/metrics"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

// WebhookResult is what the transport reports back to the gateway. Success
// false tells the gateway's retry mechanism to redeliver.
type WebhookResult struct {
	Success bool
	Message string
}

type WebhookUseCase interface {
	// HandleWebhook verifies, dedups, and dispatches one gateway event.
	// It never returns an error: every internal failure is folded into the
	// result so nothing propagates past the webhook boundary.
	HandleWebhook(ctx context.Context, body []byte, headers map[string]string) WebhookResult
}

type webhookHandler func(ctx context.Context, evt *model.WebhookEvent) error

type webhookUC struct {
	payments repository.PaymentRepository
	invoices repository.InvoiceRepository
	subs     repository.SubscriptionRepository
	tm       repository.TransactionManager
	verifier adapter.WebhookVerifier
	dedup    adapter.EventDeduper
	handlers map[model.EventKind]webhookHandler
	log      *zerolog.Logger
}

func NewWebhookUseCase(
	payments repository.PaymentRepository,
	invoices repository.InvoiceRepository,
	subs repository.SubscriptionRepository,
	tm repository.TransactionManager,
	verifier adapter.WebhookVerifier,
	dedup adapter.EventDeduper,
	logger *zerolog.Logger,
) *webhookUC {
	u := &webhookUC{
		payments: payments,
		invoices: invoices,
		subs:     subs,
		tm:       tm,
		verifier: verifier,
		dedup:    dedup,
		log:      logger,
	}
	// One handler per recognized event kind; dispatch is a pure lookup.
	u.handlers = map[model.EventKind]webhookHandler{
		model.EventPaymentCaptureCompleted:   u.onCaptureCompleted,
		model.EventPaymentCaptureDenied:      u.onCaptureDenied,
		model.EventSubscriptionActivated:     u.onSubscriptionActivated,
		model.EventSubscriptionCancelled:     u.onSubscriptionCancelled,
		model.EventSubscriptionPaymentFailed: u.onSubscriptionPaymentFailed,
	}
	return u
}

func (u *webhookUC) HandleWebhook(ctx context.Context, body []byte, headers map[string]string) WebhookResult {
	defer logging.TraceDuration(u.log, "WebhookUC.HandleWebhook")()

	// Signature verification is a hard precondition of dispatch.
	verified, err := u.verifier.Verify(ctx, headers, body)
	if err != nil {
		metrics.IncWebhookVerifyFailure()
		u.log.Error().Err(err).Msg("webhook signature verification errored")
		return WebhookResult{Success: false, Message: "signature verification error"}
	}
	if !verified {
		metrics.IncWebhookVerifyFailure()
		u.log.Warn().Msg("rejected webhook with invalid signature")
		return WebhookResult{Success: false, Message: domain.ErrWebhookUnverified.Error()}
	}

	var evt model.WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil || evt.ID == "" {
		u.log.Warn().Err(err).Msg("malformed webhook event")
		return WebhookResult{Success: false, Message: "malformed event"}
	}

	ctx = logging.WithEventID(ctx, evt.ID)
	log := logging.With(ctx, u.log)

	kind := evt.Kind()
	if kind == model.EventUnknown {
		// Forward-compatible: new gateway event types are logged and ignored.
		metrics.IncWebhookEvent(evt.Type, "unknown")
		log.Info().Str("event_type", evt.Type).Msg("ignoring unknown webhook event type")
		return WebhookResult{Success: true, Message: fmt.Sprintf("ignored unknown event type %q", evt.Type)}
	}

	if seen, err := u.dedup.Seen(ctx, evt.ID); err != nil {
		// Dedup is best-effort; handlers are idempotent anyway.
		log.Warn().Err(err).Msg("event dedup check failed, processing anyway")
	} else if seen {
		metrics.IncWebhookEvent(evt.Type, "duplicate")
		return WebhookResult{Success: true, Message: "duplicate event"}
	}

	if err := u.handlers[kind](ctx, &evt); err != nil {
		metrics.IncWebhookEvent(evt.Type, "error")
		log.Error().Err(err).Str("event_type", evt.Type).Msg("webhook handler failed")
		return WebhookResult{Success: false, Message: err.Error()}
	}

	if err := u.dedup.MarkProcessed(ctx, evt.ID); err != nil {
		log.Warn().Err(err).Msg("failed to mark event processed")
	}
	metrics.IncWebhookEvent(evt.Type, "applied")
	return WebhookResult{Success: true, Message: "processed " + evt.Type}
}

// onCaptureCompleted mirrors the synchronous capture path: CAS to succeeded
// plus invoice cascade. Whichever side observes the terminal state first
// performs the transition; the other becomes a no-op.
func (u *webhookUC) onCaptureCompleted(ctx context.Context, evt *model.WebhookEvent) error {
	var res model.CaptureResource
	if err := json.Unmarshal(evt.Resource, &res); err != nil {
		return fmt.Errorf("decode capture resource: %w", err)
	}
	orderID := res.OrderID()
	if orderID == "" {
		return errors.New("capture event without order id")
	}

	log := logging.With(ctx, u.log)
	p, err := u.payments.FindByExternalOrderIDAnyTenant(ctx, repository.NoTX, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The webhook may race ahead of the synchronous path persisting
			// the initial record. Absence is benign here.
			log.Info().Str("external_order_id", orderID).Msg("capture event for unknown payment, skipping")
			return nil
		}
		return err
	}

	settled, err := finalizePaymentSuccess(ctx, u.tm, u.payments, u.invoices, p, timeOf(evt.CreateTime))
	if err != nil {
		return err
	}
	if settled {
		metrics.IncPayment(string(model.PaymentStatusSucceeded))
		metrics.AddPaymentRevenue(p.Currency, p.Amount)
		log.Info().Str("payment_id", p.ID).Str("external_order_id", orderID).Msg("payment settled via webhook")
	}
	return nil
}

func (u *webhookUC) onCaptureDenied(ctx context.Context, evt *model.WebhookEvent) error {
	var res model.CaptureResource
	if err := json.Unmarshal(evt.Resource, &res); err != nil {
		return fmt.Errorf("decode capture resource: %w", err)
	}
	orderID := res.OrderID()
	if orderID == "" {
		return errors.New("capture event without order id")
	}

	log := logging.With(ctx, u.log)
	p, err := u.payments.FindByExternalOrderIDAnyTenant(ctx, repository.NoTX, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Info().Str("external_order_id", orderID).Msg("denial event for unknown payment, skipping")
			return nil
		}
		return err
	}

	failedAt := timeOf(evt.CreateTime)
	updated, err := u.payments.UpdateStatusIfPending(ctx, repository.NoTX, p.ID, model.PaymentStatusFailed, nil, &failedAt)
	if err != nil {
		return err
	}
	if updated {
		metrics.IncPayment(string(model.PaymentStatusFailed))
		log.Info().Str("payment_id", p.ID).Str("external_order_id", orderID).Msg("payment denied via webhook")
	}
	return nil
}

func (u *webhookUC) onSubscriptionActivated(ctx context.Context, evt *model.WebhookEvent) error {
	res, err := decodeSubscriptionResource(evt)
	if err != nil {
		return err
	}
	start, end := res.PeriodBounds(time.Now())
	updated, err := u.subs.ActivateByExternalID(ctx, repository.NoTX, res.ID, start, end)
	if err != nil {
		return err
	}
	if updated {
		metrics.IncSubscriptionTransition(string(model.SubscriptionStatusActive))
	} else {
		logging.With(ctx, u.log).Info().Str("external_subscription_id", res.ID).Msg("activation event matched no local subscription")
	}
	return nil
}

func (u *webhookUC) onSubscriptionCancelled(ctx context.Context, evt *model.WebhookEvent) error {
	res, err := decodeSubscriptionResource(evt)
	if err != nil {
		return err
	}
	updated, err := u.subs.CancelByExternalID(ctx, repository.NoTX, res.ID, timeOf(evt.CreateTime))
	if err != nil {
		return err
	}
	if updated {
		metrics.IncSubscriptionTransition(string(model.SubscriptionStatusCanceled))
	} else {
		logging.With(ctx, u.log).Info().Str("external_subscription_id", res.ID).Msg("cancellation event matched no local subscription")
	}
	return nil
}

func (u *webhookUC) onSubscriptionPaymentFailed(ctx context.Context, evt *model.WebhookEvent) error {
	res, err := decodeSubscriptionResource(evt)
	if err != nil {
		return err
	}
	updated, err := u.subs.MarkPastDueByExternalID(ctx, repository.NoTX, res.ID)
	if err != nil {
		return err
	}
	if updated {
		metrics.IncSubscriptionTransition(string(model.SubscriptionStatusPastDue))
	} else {
		logging.With(ctx, u.log).Info().Str("external_subscription_id", res.ID).Msg("payment-failed event matched no local subscription")
	}
	return nil
}

func decodeSubscriptionResource(evt *model.WebhookEvent) (*model.SubscriptionResource, error) {
	var res model.SubscriptionResource
	if err := json.Unmarshal(evt.Resource, &res); err != nil {
		return nil, fmt.Errorf("decode subscription resource: %w", err)
	}
	if res.ID == "" {
		return nil, errors.New("subscription event without subscription id")
	}
	return &res, nil
}

func timeOf(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
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
var _ PaymentUseCase = (*paymentUC)(nil)

type CreateOrderResult struct {
	ExternalOrderID string
	ApprovalURL     string
	Payment         *model.Payment
}

type CaptureOrderResult struct {
	Capture *adapter.CaptureResult
	Payment *model.Payment
	// Success is true once the payment is succeeded locally. False means the
	// gateway reported a non-final capture status; the payment stays pending
	// for a later webhook or reconciliation pass.
	Success bool
}

type PaymentUseCase interface {
	// CreateOrder creates a gateway order and, on gateway success, a pending
	// Payment row. invoiceID optionally links the payment to an invoice.
	CreateOrder(ctx context.Context, tenantID string, amount int64, currency, description string, invoiceID *string) (*CreateOrderResult, error)
	// CaptureOrder captures the order at the gateway and finalizes the local
	// Payment (and linked Invoice) accordingly.
	CaptureOrder(ctx context.Context, externalOrderID, tenantID string) (*CaptureOrderResult, error)
}

type paymentUC struct {
	payments        repository.PaymentRepository
	invoices        repository.InvoiceRepository
	gateway         adapter.PaymentGateway
	tm              repository.TransactionManager
	locker          adapter.Locker
	defaultCurrency string
	log             *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	invoices repository.InvoiceRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	locker adapter.Locker,
	defaultCurrency string,
	logger *zerolog.Logger,
) *paymentUC {
	if defaultCurrency == "" {
		defaultCurrency = "usd"
	}
	return &paymentUC{
		payments:        payments,
		invoices:        invoices,
		gateway:         gateway,
		tm:              tm,
		locker:          locker,
		defaultCurrency: defaultCurrency,
		log:             logger,
	}
}

func (u *paymentUC) CreateOrder(ctx context.Context, tenantID string, amount int64, currency, description string, invoiceID *string) (*CreateOrderResult, error) {
	if tenantID == "" || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	ctx = logging.WithTenantID(ctx, tenantID)
	log := logging.With(ctx, u.log)

	if currency == "" {
		currency = u.defaultCurrency
	}
	currency = strings.ToLower(currency)

	// A linked invoice must exist, belong to the tenant, and still be open
	// before we create anything at the gateway.
	if invoiceID != nil && *invoiceID != "" {
		inv, err := u.invoices.FindByID(ctx, repository.NoTX, *invoiceID)
		if err != nil {
			return nil, err
		}
		if inv.TenantID != tenantID {
			return nil, domain.ErrNotFound
		}
		if inv.Status != model.InvoiceStatusOpen {
			return nil, domain.ErrInvalidArgument
		}
	}

	// Correlation id lets gateway-side records be traced back to a tenant
	// even without the local database.
	customID := ""
	if invoiceID != nil && *invoiceID != "" {
		customID = *invoiceID
	} else {
		customID = fmt.Sprintf("tenant:%s:%s", tenantID, ulid.Make().String())
	}

	res, err := u.gateway.CreateOrder(ctx, adapter.OrderRequest{
		Amount:      amount,
		Currency:    currency,
		Description: description,
		CustomID:    customID,
	})
	metrics.IncGatewayCall("create_order", err)
	if err != nil {
		log.Error().Err(err).Msg("gateway create order failed")
		return nil, domain.NewGatewayError("create_order", err)
	}

	// A Payment row exists only once the gateway has confirmed an order id.
	now := time.Now()
	p := &model.Payment{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		InvoiceID:       invoiceID,
		Amount:          amount,
		Currency:        currency,
		Method:          u.gateway.Name(),
		ExternalOrderID: res.OrderID,
		Status:          model.PaymentStatusPending,
		Description:     description,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusPending))

	log.Info().
		Str("external_order_id", res.OrderID).
		Int64("amount", amount).
		Str("currency", currency).
		Msg("order created")

	return &CreateOrderResult{
		ExternalOrderID: res.OrderID,
		ApprovalURL:     res.ApprovalURL,
		Payment:         p,
	}, nil
}

func (u *paymentUC) CaptureOrder(ctx context.Context, externalOrderID, tenantID string) (*CaptureOrderResult, error) {
	if externalOrderID == "" || tenantID == "" {
		return nil, domain.ErrInvalidArgument
	}
	defer logging.TraceDuration(u.log, "PaymentUC.CaptureOrder")()
	ctx = logging.WithTenantID(ctx, tenantID)
	log := logging.With(ctx, u.log)

	// Best-effort serialization of concurrent captures for the same order.
	// Correctness does not depend on the lock; the conditional status update
	// below is the real guard.
	if u.locker != nil {
		token, err := u.locker.TryLock(ctx, "capture:"+externalOrderID, 30*time.Second)
		if err != nil {
			return nil, domain.ErrLockBusy
		}
		defer func() { _ = u.locker.Unlock(ctx, "capture:"+externalOrderID, token) }()
	}

	// Tenant-scoped lookup: a tenant cannot capture someone else's order.
	p, err := u.payments.FindByExternalOrderID(ctx, repository.NoTX, externalOrderID, tenantID)
	if err != nil {
		return nil, err
	}

	capRes, capErr := u.gateway.CaptureOrder(ctx, externalOrderID)
	metrics.IncGatewayCall("capture_order", capErr)
	if capErr != nil {
		// The call itself failed: we could not reach the gateway to find out.
		// Distinct from a reachable gateway reporting a non-final status.
		now := time.Now()
		updated, uerr := u.payments.UpdateStatusIfPending(ctx, repository.NoTX, p.ID, model.PaymentStatusFailed, nil, &now)
		if uerr != nil {
			log.Error().Err(uerr).Str("payment_id", p.ID).Msg("mark payment failed after gateway error")
		} else if updated {
			p.Status = model.PaymentStatusFailed
			p.FailedAt = &now
			metrics.IncPayment(string(model.PaymentStatusFailed))
		}
		return nil, domain.NewGatewayError("capture_order", capErr)
	}

	if !capRes.Completed() {
		// Not failed: the gateway may still resolve it. Leave pending.
		log.Info().
			Str("external_order_id", externalOrderID).
			Str("capture_status", capRes.Status).
			Msg("capture not terminal, payment stays pending")
		return &CaptureOrderResult{Capture: capRes, Payment: p, Success: false}, nil
	}

	now := time.Now()
	settled, err := finalizePaymentSuccess(ctx, u.tm, u.payments, u.invoices, p, now)
	if err != nil {
		return nil, err
	}
	if settled {
		p.Status = model.PaymentStatusSucceeded
		p.PaidAt = &now
		metrics.IncPayment(string(model.PaymentStatusSucceeded))
		metrics.AddPaymentRevenue(p.Currency, p.Amount)
		log.Info().
			Str("external_order_id", externalOrderID).
			Str("payment_id", p.ID).
			Msg("payment captured")
		return &CaptureOrderResult{Capture: capRes, Payment: p, Success: true}, nil
	}

	// Another writer finalized the payment between our lookup and the
	// conditional update. Report whatever state it decided on, which may be
	// failed if a denial webhook won the race.
	fresh, err := u.payments.FindByID(ctx, repository.NoTX, p.ID)
	if err != nil {
		return nil, err
	}
	return &CaptureOrderResult{
		Capture: capRes,
		Payment: fresh,
		Success: fresh.Status == model.PaymentStatusSucceeded,
	}, nil
}

// finalizePaymentSuccess transitions a payment to succeeded and cascades the
// linked invoice to paid, atomically. Both the synchronous capture path and
// the webhook reconciler funnel through this: the pending-only guard makes
// whichever side runs second a no-op, so the invoice is credited exactly once.
func finalizePaymentSuccess(
	ctx context.Context,
	tm repository.TransactionManager,
	payments repository.PaymentRepository,
	invoices repository.InvoiceRepository,
	p *model.Payment,
	paidAt time.Time,
) (bool, error) {
	var settled bool
	err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		updated, err := payments.UpdateStatusIfPending(ctx, tx, p.ID, model.PaymentStatusSucceeded, &paidAt, nil)
		if err != nil {
			return err
		}
		settled = updated
		if !updated || p.InvoiceID == nil {
			return nil
		}
		if _, err := invoices.MarkPaid(ctx, tx, *p.InvoiceID, p.Amount); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return settled, nil
}

package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"callcenter-billing/internal/domain"
	"callcenter-billing/internal/domain/model"
	"callcenter-billing/internal/domain/ports/adapter"
	"callcenter-billing/internal/infra/logging"
)

// Request body limit for inbound JSON, including webhook deliveries.
const maxBodyBytes = 1 << 20

type createOrderRequest struct {
	TenantID    string  `json:"tenant_id"`
	Amount      int64   `json:"amount"` // minor currency units
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
	InvoiceID   *string `json:"invoice_id,omitempty"`
}

type orderResponse struct {
	ExternalOrderID string         `json:"external_order_id"`
	ApprovalURL     string         `json:"approval_url,omitempty"`
	Payment         paymentPayload `json:"payment"`
}

type paymentPayload struct {
	ID        string              `json:"id"`
	TenantID  string              `json:"tenant_id"`
	Amount    int64               `json:"amount"`
	Currency  string              `json:"currency"`
	Status    model.PaymentStatus `json:"status"`
	InvoiceID *string             `json:"invoice_id,omitempty"`
}

func toPaymentPayload(p *model.Payment) paymentPayload {
	return paymentPayload{
		ID:        p.ID,
		TenantID:  p.TenantID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Status:    p.Status,
		InvoiceID: p.InvoiceID,
	}
}

func (s *Server) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.payUC.CreateOrder(r.Context(), req.TenantID, req.Amount, req.Currency, req.Description, req.InvoiceID)
	if err != nil {
		s.writeError(w, r, err, "Failed to create order")
		return
	}

	writeJSON(w, http.StatusCreated, orderResponse{
		ExternalOrderID: res.ExternalOrderID,
		ApprovalURL:     res.ApprovalURL,
		Payment:         toPaymentPayload(res.Payment),
	})
}

type captureOrderRequest struct {
	TenantID string `json:"tenant_id"`
}

func (s *Server) captureOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req captureOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.payUC.CaptureOrder(r.Context(), orderID, req.TenantID)
	if err != nil {
		s.writeError(w, r, err, "Failed to capture order")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success       bool           `json:"success"`
		CaptureStatus string         `json:"capture_status"`
		Payment       paymentPayload `json:"payment"`
	}{
		Success:       res.Success,
		CaptureStatus: res.Capture.Status,
		Payment:       toPaymentPayload(res.Payment),
	})
}

type createSubscriptionRequest struct {
	PlanID   string `json:"plan_id"`
	TenantID string `json:"tenant_id"`
	Payer    *struct {
		GivenName string `json:"given_name"`
		Surname   string `json:"surname"`
		Email     string `json:"email"`
	} `json:"payer,omitempty"`
}

func (s *Server) createSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var payer *adapter.PayerInfo
	if req.Payer != nil {
		payer = &adapter.PayerInfo{
			GivenName: req.Payer.GivenName,
			Surname:   req.Payer.Surname,
			Email:     req.Payer.Email,
		}
	}

	res, err := s.subUC.CreateSubscription(r.Context(), req.PlanID, req.TenantID, payer)
	if err != nil {
		s.writeError(w, r, err, "Failed to create subscription")
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		ExternalSubscriptionID string                   `json:"external_subscription_id"`
		ApprovalURL            string                   `json:"approval_url,omitempty"`
		Status                 model.SubscriptionStatus `json:"status"`
		Tier                   string                   `json:"tier"`
	}{
		ExternalSubscriptionID: res.ExternalSubscriptionID,
		ApprovalURL:            res.ApprovalURL,
		Status:                 res.Subscription.Status,
		Tier:                   res.Subscription.Tier,
	})
}

type subscriptionPayload struct {
	ID                 string                   `json:"id"`
	TenantID           string                   `json:"tenant_id"`
	PlanID             string                   `json:"plan_id"`
	Tier               string                   `json:"tier"`
	Status             model.SubscriptionStatus `json:"status"`
	CurrentPeriodStart time.Time                `json:"current_period_start"`
	CurrentPeriodEnd   time.Time                `json:"current_period_end"`
}

type gatewaySubscriptionPayload struct {
	SubscriptionID string `json:"subscription_id"`
	PlanID         string `json:"plan_id,omitempty"`
	Status         string `json:"status"`
	ApprovalURL    string `json:"approval_url,omitempty"`
}

func (s *Server) getSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	subID := chi.URLParam(r, "subscriptionID")

	snap, err := s.subUC.GetSubscription(r.Context(), subID)
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch subscription")
		return
	}

	resp := struct {
		Gateway gatewaySubscriptionPayload `json:"gateway"`
		Local   *subscriptionPayload       `json:"local,omitempty"`
	}{Gateway: gatewaySubscriptionPayload{
		SubscriptionID: snap.Gateway.SubscriptionID,
		PlanID:         snap.Gateway.PlanID,
		Status:         snap.Gateway.Status,
		ApprovalURL:    snap.Gateway.ApprovalURL,
	}}
	if snap.Local != nil {
		resp.Local = &subscriptionPayload{
			ID:                 snap.Local.ID,
			TenantID:           snap.Local.TenantID,
			PlanID:             snap.Local.PlanID,
			Tier:               snap.Local.Tier,
			Status:             snap.Local.Status,
			CurrentPeriodStart: snap.Local.CurrentPeriodStart,
			CurrentPeriodEnd:   snap.Local.CurrentPeriodEnd,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type cancelSubscriptionRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) cancelSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	subID := chi.URLParam(r, "subscriptionID")

	// Body is optional on cancel.
	var req cancelSubscriptionRequest
	_ = json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req)

	ok, err := s.subUC.CancelSubscription(r.Context(), subID, req.Reason)
	if err != nil {
		s.writeError(w, r, err, "Failed to cancel subscription")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: ok})
}

type createPlanRequest struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	IntervalUnit  string `json:"interval_unit"`
	IntervalCount int    `json:"interval_count"`
}

func (s *Server) createBillingPlanHandler(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.subUC.CreateBillingPlan(r.Context(), adapter.BillingPlanRequest{
		ProductID:     req.ProductID,
		Name:          req.Name,
		Description:   req.Description,
		Amount:        req.Amount,
		Currency:      req.Currency,
		IntervalUnit:  req.IntervalUnit,
		IntervalCount: req.IntervalCount,
	})
	if err != nil {
		s.writeError(w, r, err, "Failed to create billing plan")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// webhookHandler adapts the gateway webhook transport to the reconciler.
// A failed result maps to 500 so the gateway's retry mechanism redelivers.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	res := s.hookUC.HandleWebhook(r.Context(), body, headers)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}{Success: res.Success, Message: res.Message})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, msg+": not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrLockBusy):
		http.Error(w, msg+": operation in progress", http.StatusConflict)
	case domain.IsGatewayError(err):
		logging.With(r.Context(), s.log).Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusBadGateway)
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"callcenter-billing/internal/config"
	"callcenter-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.PaymentGateway = (*PayPalGateway)(nil)

// PayPalGateway implements adapter.PaymentGateway using direct HTTP calls to
// the PayPal REST API.
type PayPalGateway struct {
	clientID     string
	clientSecret string
	baseURL      string
	brandName    string
	client       *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalGateway creates a new PayPal gateway client.
func NewPayPalGateway(cfg config.PayPalConfig) *PayPalGateway {
	baseURL := "https://api-m.paypal.com"
	if cfg.Sandbox {
		baseURL = "https://api-m.sandbox.paypal.com"
	}
	return &PayPalGateway{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		baseURL:      baseURL,
		brandName:    cfg.BrandName,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *PayPalGateway) Name() string { return "paypal" }

// SetBaseURL overrides the API base URL; used by tests.
func (g *PayPalGateway) SetBaseURL(u string) { g.baseURL = u }

type payPalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

// approvalURL returns the link whose relation tag marks it as the
// user-facing approval step.
func approvalURL(links []payPalLink) string {
	for _, l := range links {
		if l.Rel == "approve" {
			return l.Href
		}
	}
	return ""
}

// minorToDecimal converts integer minor units to the gateway's decimal
// string representation. This is the only place amounts leave integer form.
func minorToDecimal(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}

type orderResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Links  []payPalLink `json:"links"`
}

// CreateOrder implements adapter.PaymentGateway.CreateOrder.
func (g *PayPalGateway) CreateOrder(ctx context.Context, req adapter.OrderRequest) (*adapter.OrderResult, error) {
	body := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"custom_id":   req.CustomID,
			"description": req.Description,
			"amount": map[string]string{
				"currency_code": strings.ToUpper(req.Currency),
				"value":         minorToDecimal(req.Amount),
			},
		}},
		"application_context": map[string]string{
			"brand_name":  g.brandName,
			"user_action": "PAY_NOW",
		},
	}

	var resp orderResponse
	if err := g.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("paypal order response missing id")
	}
	return &adapter.OrderResult{
		OrderID:     resp.ID,
		Status:      resp.Status,
		ApprovalURL: approvalURL(resp.Links),
	}, nil
}

// CaptureOrder implements adapter.PaymentGateway.CaptureOrder.
func (g *PayPalGateway) CaptureOrder(ctx context.Context, orderID string) (*adapter.CaptureResult, error) {
	var resp struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID string `json:"id"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	if err := g.doJSON(ctx, http.MethodPost, path, struct{}{}, &resp); err != nil {
		return nil, err
	}

	captureID := ""
	if len(resp.PurchaseUnits) > 0 && len(resp.PurchaseUnits[0].Payments.Captures) > 0 {
		captureID = resp.PurchaseUnits[0].Payments.Captures[0].ID
	}
	return &adapter.CaptureResult{
		OrderID:   resp.ID,
		CaptureID: captureID,
		Status:    resp.Status,
	}, nil
}

type subscriptionResponse struct {
	ID          string       `json:"id"`
	PlanID      string       `json:"plan_id"`
	Status      string       `json:"status"`
	StartTime   *time.Time   `json:"start_time"`
	Links       []payPalLink `json:"links"`
	BillingInfo struct {
		LastPayment struct {
			Time *time.Time `json:"time"`
		} `json:"last_payment"`
		NextBillingTime *time.Time `json:"next_billing_time"`
	} `json:"billing_info"`
}

func (r *subscriptionResponse) toResult() *adapter.SubscriptionResult {
	res := &adapter.SubscriptionResult{
		SubscriptionID: r.ID,
		PlanID:         r.PlanID,
		Status:         r.Status,
		ApprovalURL:    approvalURL(r.Links),
	}
	if r.BillingInfo.LastPayment.Time != nil {
		res.PeriodStart = r.BillingInfo.LastPayment.Time
	} else if r.StartTime != nil {
		res.PeriodStart = r.StartTime
	}
	if r.BillingInfo.NextBillingTime != nil {
		res.PeriodEnd = r.BillingInfo.NextBillingTime
	}
	return res
}

// CreateSubscription implements adapter.PaymentGateway.CreateSubscription.
func (g *PayPalGateway) CreateSubscription(ctx context.Context, req adapter.SubscriptionRequest) (*adapter.SubscriptionResult, error) {
	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}
	body := map[string]interface{}{
		"plan_id":    req.PlanID,
		"custom_id":  req.CustomID,
		"quantity":   strconv.Itoa(qty),
		"start_time": req.StartTime.UTC().Format(time.RFC3339),
		"application_context": map[string]string{
			"brand_name":  g.brandName,
			"user_action": "SUBSCRIBE_NOW",
		},
	}
	if p := req.Payer; p != nil {
		subscriber := map[string]interface{}{}
		if p.GivenName != "" || p.Surname != "" {
			subscriber["name"] = map[string]string{
				"given_name": p.GivenName,
				"surname":    p.Surname,
			}
		}
		if p.Email != "" {
			subscriber["email_address"] = p.Email
		}
		body["subscriber"] = subscriber
	}

	var resp subscriptionResponse
	if err := g.doJSON(ctx, http.MethodPost, "/v1/billing/subscriptions", body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("paypal subscription response missing id")
	}
	return resp.toResult(), nil
}

// CancelSubscription implements adapter.PaymentGateway.CancelSubscription.
func (g *PayPalGateway) CancelSubscription(ctx context.Context, subscriptionID, reason string) error {
	path := "/v1/billing/subscriptions/" + url.PathEscape(subscriptionID) + "/cancel"
	return g.doJSON(ctx, http.MethodPost, path, map[string]string{"reason": reason}, nil)
}

// GetSubscription implements adapter.PaymentGateway.GetSubscription.
func (g *PayPalGateway) GetSubscription(ctx context.Context, subscriptionID string) (*adapter.SubscriptionResult, error) {
	var resp subscriptionResponse
	path := "/v1/billing/subscriptions/" + url.PathEscape(subscriptionID)
	if err := g.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.toResult(), nil
}

// CreateBillingPlan implements adapter.PaymentGateway.CreateBillingPlan.
func (g *PayPalGateway) CreateBillingPlan(ctx context.Context, req adapter.BillingPlanRequest) (*adapter.BillingPlanResult, error) {
	intervalCount := req.IntervalCount
	if intervalCount <= 0 {
		intervalCount = 1
	}
	intervalUnit := req.IntervalUnit
	if intervalUnit == "" {
		intervalUnit = "MONTH"
	}
	body := map[string]interface{}{
		"product_id":  req.ProductID,
		"name":        req.Name,
		"description": req.Description,
		"billing_cycles": []map[string]interface{}{{
			"sequence":     1,
			"tenure_type":  "REGULAR",
			"total_cycles": 0,
			"frequency": map[string]interface{}{
				"interval_unit":  intervalUnit,
				"interval_count": intervalCount,
			},
			"pricing_scheme": map[string]interface{}{
				"fixed_price": map[string]string{
					"currency_code": strings.ToUpper(req.Currency),
					"value":         minorToDecimal(req.Amount),
				},
			},
		}},
		"payment_preferences": map[string]interface{}{
			"auto_bill_outstanding": true,
		},
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := g.doJSON(ctx, http.MethodPost, "/v1/billing/plans", body, &resp); err != nil {
		return nil, err
	}
	return &adapter.BillingPlanResult{PlanID: resp.ID, Status: resp.Status}, nil
}

// token returns a cached OAuth access token, refreshing via the
// client-credentials grant when expired.
func (g *PayPalGateway) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.accessToken != "" && time.Now().Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(g.clientID, g.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch access token: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal token error: status %d, body: %s", resp.StatusCode, string(raw))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &tok); err != nil {
		return "", fmt.Errorf("failed to unmarshal token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("paypal token response missing access_token")
	}

	g.accessToken = tok.AccessToken
	// Refresh one minute early to avoid using a token at its expiry edge.
	g.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return g.accessToken, nil
}

// doJSON performs an authenticated JSON request against the PayPal API.
// out may be nil for calls whose response body is irrelevant (e.g. cancel).
func (g *PayPalGateway) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	token, err := g.token(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("paypal error: %s %s status %d, body: %s", method, path, resp.StatusCode, string(raw))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(raw))
	}
	return nil
}

//go:build !integration

package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"callcenter-billing/internal/config"
	"callcenter-billing/internal/domain/ports/adapter"
)

func TestMinorToDecimal(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{2500, "25.00"},
		{999, "9.99"},
		{5, "0.05"},
		{100, "1.00"},
		{1, "0.01"},
		{123456, "1234.56"},
	}
	for _, tc := range cases {
		if got := minorToDecimal(tc.in); got != tc.want {
			t.Errorf("minorToDecimal(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestApprovalURL(t *testing.T) {
	links := []payPalLink{
		{Href: "https://api.test/self", Rel: "self"},
		{Href: "https://www.test/approve", Rel: "approve"},
	}
	if got := approvalURL(links); got != "https://www.test/approve" {
		t.Errorf("approvalURL = %q", got)
	}
	if got := approvalURL(nil); got != "" {
		t.Errorf("approvalURL(nil) = %q, want empty", got)
	}
}

// fakePayPal is a minimal stand-in for the PayPal REST API: it serves the
// OAuth token endpoint plus whatever handlers a test registers.
type fakePayPal struct {
	t          *testing.T
	mux        *http.ServeMux
	srv        *httptest.Server
	tokenCalls int64
}

func newFakePayPal(t *testing.T) *fakePayPal {
	t.Helper()
	f := &fakePayPal{t: t, mux: http.NewServeMux()}
	f.mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-1",
			"expires_in":   3600,
		})
	})
	f.srv = httptest.NewServer(f.mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakePayPal) gateway() *PayPalGateway {
	g := NewPayPalGateway(config.PayPalConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		BrandName:    "CallCenter",
		Sandbox:      true,
	})
	g.SetBaseURL(f.srv.URL)
	return g
}

func (f *fakePayPal) handle(pattern string, h http.HandlerFunc) { f.mux.HandleFunc(pattern, h) }

func TestCreateOrder_Wire(t *testing.T) {
	f := newFakePayPal(t)
	var captured map[string]interface{}
	f.handle("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok-1" {
			t.Errorf("Authorization = %q", auth)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &captured); err != nil {
			t.Fatalf("decode order request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": "ORD-1", "status": "CREATED",
			"links": [
				{"href": "https://api.test/self", "rel": "self"},
				{"href": "https://www.test/checkoutnow?token=ORD-1", "rel": "approve"}
			]
		}`))
	})

	res, err := f.gateway().CreateOrder(context.Background(), adapter.OrderRequest{
		Amount: 2500, Currency: "usd", Description: "pro plan", CustomID: "inv-1",
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if res.OrderID != "ORD-1" {
		t.Errorf("order id = %q", res.OrderID)
	}
	if res.ApprovalURL != "https://www.test/checkoutnow?token=ORD-1" {
		t.Errorf("approval url = %q", res.ApprovalURL)
	}

	units := captured["purchase_units"].([]interface{})
	amount := units[0].(map[string]interface{})["amount"].(map[string]interface{})
	if amount["value"] != "25.00" {
		t.Errorf("wire amount = %v, want 25.00", amount["value"])
	}
	if amount["currency_code"] != "USD" {
		t.Errorf("wire currency = %v, want USD", amount["currency_code"])
	}
	if captured["intent"] != "CAPTURE" {
		t.Errorf("intent = %v", captured["intent"])
	}
}

func TestCaptureOrder_Wire(t *testing.T) {
	f := newFakePayPal(t)
	f.handle("/v2/checkout/orders/ORD-1/capture", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": "ORD-1", "status": "COMPLETED",
			"purchase_units": [{"payments": {"captures": [{"id": "CAP-7"}]}}]
		}`))
	})

	res, err := f.gateway().CaptureOrder(context.Background(), "ORD-1")
	if err != nil {
		t.Fatalf("CaptureOrder failed: %v", err)
	}
	if !res.Completed() {
		t.Error("COMPLETED status must report Completed")
	}
	if res.CaptureID != "CAP-7" {
		t.Errorf("capture id = %q", res.CaptureID)
	}
}

func TestCreateSubscription_Wire(t *testing.T) {
	f := newFakePayPal(t)
	var captured map[string]interface{}
	f.handle("/v1/billing/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &captured); err != nil {
			t.Fatalf("decode subscription request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": "SUB-1", "plan_id": "P-PRO", "status": "APPROVAL_PENDING",
			"links": [{"href": "https://www.test/approve/SUB-1", "rel": "approve"}]
		}`))
	})

	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	res, err := f.gateway().CreateSubscription(context.Background(), adapter.SubscriptionRequest{
		PlanID:    "P-PRO",
		CustomID:  "tenant:t1:01J",
		StartTime: start,
		Quantity:  1,
		Payer:     &adapter.PayerInfo{GivenName: "Ada", Surname: "Lovelace", Email: "ada@example.test"},
	})
	if err != nil {
		t.Fatalf("CreateSubscription failed: %v", err)
	}
	if res.SubscriptionID != "SUB-1" || res.ApprovalURL == "" {
		t.Errorf("result = %+v", res)
	}

	if captured["quantity"] != "1" {
		t.Errorf("quantity = %v, want the string \"1\"", captured["quantity"])
	}
	if captured["start_time"] != "2026-09-01T00:00:00Z" {
		t.Errorf("start_time = %v", captured["start_time"])
	}
	sub := captured["subscriber"].(map[string]interface{})
	if sub["email_address"] != "ada@example.test" {
		t.Errorf("subscriber = %v", sub)
	}
}

func TestCancelSubscription_Wire(t *testing.T) {
	f := newFakePayPal(t)
	var gotReason string
	f.handle("/v1/billing/subscriptions/SUB-1/cancel", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotReason = body["reason"]
		w.WriteHeader(http.StatusNoContent)
	})

	if err := f.gateway().CancelSubscription(context.Background(), "SUB-1", "tenant asked"); err != nil {
		t.Fatalf("CancelSubscription failed: %v", err)
	}
	if gotReason != "tenant asked" {
		t.Errorf("reason = %q", gotReason)
	}
}

func TestGetSubscription_Wire(t *testing.T) {
	f := newFakePayPal(t)
	f.handle("/v1/billing/subscriptions/SUB-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"id": "SUB-1", "plan_id": "P-PRO", "status": "ACTIVE",
			"billing_info": {
				"last_payment": {"time": "2026-08-01T12:00:00Z"},
				"next_billing_time": "2026-09-01T12:00:00Z"
			}
		}`))
	})

	res, err := f.gateway().GetSubscription(context.Background(), "SUB-1")
	if err != nil {
		t.Fatalf("GetSubscription failed: %v", err)
	}
	if res.Status != "ACTIVE" {
		t.Errorf("status = %q", res.Status)
	}
	if res.PeriodStart == nil || !res.PeriodStart.Equal(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("period start = %v", res.PeriodStart)
	}
	if res.PeriodEnd == nil || !res.PeriodEnd.Equal(time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("period end = %v", res.PeriodEnd)
	}
}

func TestCreateBillingPlan_Wire(t *testing.T) {
	f := newFakePayPal(t)
	var captured map[string]interface{}
	f.handle("/v1/billing/plans", func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &captured); err != nil {
			t.Fatalf("decode plan request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": "P-NEW", "status": "ACTIVE"}`))
	})

	res, err := f.gateway().CreateBillingPlan(context.Background(), adapter.BillingPlanRequest{
		ProductID: "PROD-1", Name: "Pro Monthly", Amount: 2500, Currency: "usd",
	})
	if err != nil {
		t.Fatalf("CreateBillingPlan failed: %v", err)
	}
	if res.PlanID != "P-NEW" {
		t.Errorf("plan id = %q", res.PlanID)
	}

	cycles := captured["billing_cycles"].([]interface{})
	cycle := cycles[0].(map[string]interface{})
	price := cycle["pricing_scheme"].(map[string]interface{})["fixed_price"].(map[string]interface{})
	if price["value"] != "25.00" || price["currency_code"] != "USD" {
		t.Errorf("fixed price = %v", price)
	}
	freq := cycle["frequency"].(map[string]interface{})
	if freq["interval_unit"] != "MONTH" {
		t.Errorf("interval unit = %v, want default MONTH", freq["interval_unit"])
	}
}

func TestTokenCaching(t *testing.T) {
	f := newFakePayPal(t)
	f.handle("/v2/checkout/orders/ORD-1/capture", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": "ORD-1", "status": "COMPLETED"}`))
	})

	g := f.gateway()
	for i := 0; i < 3; i++ {
		if _, err := g.CaptureOrder(context.Background(), "ORD-1"); err != nil {
			t.Fatalf("capture %d: %v", i+1, err)
		}
	}
	if n := atomic.LoadInt64(&f.tokenCalls); n != 1 {
		t.Errorf("token endpoint hit %d times, want 1 (cached)", n)
	}
}

func TestGatewayErrorStatus(t *testing.T) {
	f := newFakePayPal(t)
	f.handle("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"name": "UNPROCESSABLE_ENTITY"}`, http.StatusUnprocessableEntity)
	})

	_, err := f.gateway().CreateOrder(context.Background(), adapter.OrderRequest{Amount: 100, Currency: "usd"})
	if err == nil {
		t.Fatal("expected an error for a 422 response")
	}
}

func TestWebhookVerifier(t *testing.T) {
	headers := map[string]string{
		"Paypal-Transmission-Id":   "trans-1",
		"Paypal-Transmission-Time": "2026-08-01T12:00:00Z",
		"Paypal-Transmission-Sig":  "sig",
		"Paypal-Cert-Url":          "https://api.test/cert",
		"Paypal-Auth-Algo":         "SHA256withRSA",
	}
	body := []byte(`{"id": "evt-1", "event_type": "PAYMENT.CAPTURE.COMPLETED"}`)

	t.Run("SUCCESS verdict", func(t *testing.T) {
		f := newFakePayPal(t)
		var captured map[string]interface{}
		f.handle("/v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(raw, &captured); err != nil {
				t.Fatalf("decode verify request: %v", err)
			}
			_, _ = w.Write([]byte(`{"verification_status": "SUCCESS"}`))
		})
		v := NewPayPalWebhookVerifier(f.gateway(), "WH-1")

		ok, err := v.Verify(context.Background(), headers, body)
		if err != nil || !ok {
			t.Fatalf("Verify = (%v, %v), want (true, nil)", ok, err)
		}
		if captured["webhook_id"] != "WH-1" {
			t.Errorf("webhook_id = %v", captured["webhook_id"])
		}
		if captured["transmission_id"] != "trans-1" {
			t.Errorf("transmission_id = %v", captured["transmission_id"])
		}
		if evt, ok := captured["webhook_event"].(map[string]interface{}); !ok || evt["id"] != "evt-1" {
			t.Errorf("webhook_event forwarded wrong: %v", captured["webhook_event"])
		}
	})

	t.Run("FAILURE verdict", func(t *testing.T) {
		f := newFakePayPal(t)
		f.handle("/v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"verification_status": "FAILURE"}`))
		})
		v := NewPayPalWebhookVerifier(f.gateway(), "WH-1")

		ok, err := v.Verify(context.Background(), headers, body)
		if err != nil {
			t.Fatalf("Verify errored: %v", err)
		}
		if ok {
			t.Error("FAILURE verdict must not verify")
		}
	})

	t.Run("missing transmission headers", func(t *testing.T) {
		f := newFakePayPal(t)
		v := NewPayPalWebhookVerifier(f.gateway(), "WH-1")

		ok, err := v.Verify(context.Background(), map[string]string{}, body)
		if err != nil || ok {
			t.Fatalf("Verify = (%v, %v), want (false, nil) without calling the API", ok, err)
		}
	})
}

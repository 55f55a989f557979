package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"callcenter-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.WebhookVerifier = (*PayPalWebhookVerifier)(nil)

// Transmission headers PayPal attaches to every webhook delivery.
const (
	headerTransmissionID   = "Paypal-Transmission-Id"
	headerTransmissionTime = "Paypal-Transmission-Time"
	headerTransmissionSig  = "Paypal-Transmission-Sig"
	headerCertURL          = "Paypal-Cert-Url"
	headerAuthAlgo         = "Paypal-Auth-Algo"
)

// PayPalWebhookVerifier verifies webhook deliveries through PayPal's
// verify-webhook-signature endpoint, which checks the transmission signature
// against the registered webhook id.
type PayPalWebhookVerifier struct {
	gateway   *PayPalGateway
	webhookID string
}

func NewPayPalWebhookVerifier(gateway *PayPalGateway, webhookID string) *PayPalWebhookVerifier {
	return &PayPalWebhookVerifier{gateway: gateway, webhookID: webhookID}
}

// Verify implements adapter.WebhookVerifier.
func (v *PayPalWebhookVerifier) Verify(ctx context.Context, headers map[string]string, body []byte) (bool, error) {
	transmissionID := headers[headerTransmissionID]
	if transmissionID == "" {
		// No transmission headers at all: not a PayPal delivery.
		return false, nil
	}

	reqBody := map[string]interface{}{
		"transmission_id":   transmissionID,
		"transmission_time": headers[headerTransmissionTime],
		"transmission_sig":  headers[headerTransmissionSig],
		"cert_url":          headers[headerCertURL],
		"auth_algo":         headers[headerAuthAlgo],
		"webhook_id":        v.webhookID,
		"webhook_event":     json.RawMessage(body),
	}

	var resp struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := v.gateway.doJSON(ctx, "POST", "/v1/notifications/verify-webhook-signature", reqBody, &resp); err != nil {
		return false, fmt.Errorf("verify webhook signature: %w", err)
	}
	return resp.VerificationStatus == "SUCCESS", nil
}

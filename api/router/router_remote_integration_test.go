package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	config "github.com/aimploy/payments/api/config"
)

// Remote HTTP integration tests against a deployed instance named by
// INTEGRATION_BASE_URL.

func remoteBaseURL(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in -short mode")
	}
	if config.AppConfig == nil {
		cfg, err := config.LoadConfig()
		if err != nil {
			t.Skipf("config not available: %v", err)
		}
		config.AppConfig = cfg
	}
	if config.AppConfig.IntegrationBaseURL == "" {
		t.Skip("INTEGRATION_BASE_URL not set")
	}
	return config.AppConfig.IntegrationBaseURL
}

func TestVerifyPaymentHTTP_Remote_Integration(t *testing.T) {
	base := remoteBaseURL(t)

	payload := map[string]any{
		"razorpay_order_id":   "order_integration",
		"razorpay_payment_id": "pay_integration",
		"razorpay_signature":  "deadbeef",
		"planId":              "plan_pro",
		"userEmail":           "integration@example.com",
	}
	b, _ := json.Marshal(payload)
	resp, err := http.Post(base+"/api/verify-payment", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for a forged signature, got %d", resp.StatusCode)
	}
}

func TestCreateOrderHTTP_Remote_Integration(t *testing.T) {
	base := remoteBaseURL(t)

	b, _ := json.Marshal(map[string]any{"amount": 0})
	resp, err := http.Post(base+"/api/create-order", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid payload, got %d", resp.StatusCode)
	}
}

func TestRazorpayWebhookHTTP_Remote_Integration(t *testing.T) {
	base := remoteBaseURL(t)

	req, _ := http.NewRequest(http.MethodPost, base+"/api/razorpay-webhook", bytes.NewReader([]byte("{}")))
	req.Header.Set("Content-Type", "application/json")
	// Intentionally omit X-Razorpay-Signature to get an error response
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatalf("expected non-200 when missing X-Razorpay-Signature, got %d", resp.StatusCode)
	}
}

package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/ziflex/lecho/v3"
)

func newTestStripeProvider(serverURL string) *StripeProvider {
	return NewStripeProvider(&Config{
		StripeAPIURL:      serverURL,
		StripeSecretKey:   "sk_test_123",
		RequestTimeout:    5,
		RequestsPerSecond: 100,
		RequestBurst:      10,
	}, lecho.New(os.Stdout, lecho.WithLevel(log.ERROR)))
}

func TestStripeCreatePreauthorizationSucceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "50000", r.Form.Get("amount"))
		assert.Equal(t, "eur", r.Form.Get("currency"))
		assert.Equal(t, "manual", r.Form.Get("capture_method"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "pi_123",
			"status":  "requires_capture",
			"amount":  50000,
			"created": 1700000000,
		})
	}))
	defer server.Close()

	provider := newTestStripeProvider(server.URL)
	result, err := provider.CreatePreauthorization(context.Background(), &PreauthorizationRequest{
		UserRef:  "cus_1",
		CardRef:  "pm_1",
		Amount:   50000,
		Currency: "EUR",
	})
	assert.NoError(t, err)
	assert.Equal(t, PreauthStatusSucceeded, result.Status)
	assert.Equal(t, "pi_123", result.Data.ResourceID)
	assert.Equal(t, "payment_intent", result.Data.ResourceType)
	assert.False(t, result.Data.ExpirationDate.IsZero())
}

func TestStripeCreatePreauthorizationPending3DS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "pi_123",
			"status": "requires_action",
			"next_action": map[string]interface{}{
				"redirect_to_url": map[string]interface{}{
					"url": "https://stripe.test/3ds",
				},
			},
		})
	}))
	defer server.Close()

	provider := newTestStripeProvider(server.URL)
	result, err := provider.CreatePreauthorization(context.Background(), &PreauthorizationRequest{
		Amount:     50000,
		Currency:   "EUR",
		SecureMode: true,
		ReturnURL:  "https://renthub.test/return",
	})
	assert.NoError(t, err)
	assert.Equal(t, PreauthStatusPending3DS, result.Status)
	assert.Equal(t, "https://stripe.test/3ds", result.RedirectURL)
}

func TestStripeCreatePreauthorizationDeclined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "pi_123",
			"status": "requires_payment_method",
			"last_payment_error": map[string]interface{}{
				"code":         "card_declined",
				"decline_code": "insufficient_funds",
			},
		})
	}))
	defer server.Close()

	provider := newTestStripeProvider(server.URL)
	result, err := provider.CreatePreauthorization(context.Background(), &PreauthorizationRequest{
		Amount:   50000,
		Currency: "EUR",
	})
	assert.NoError(t, err)
	assert.Equal(t, PreauthStatusFailed, result.Status)
	assert.Equal(t, "insufficient_funds", result.Data.ResultCode)
}

func TestStripeErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"type":    "card_error",
				"code":    "expired_card",
				"message": "Your card has expired.",
			},
		})
	}))
	defer server.Close()

	provider := newTestStripeProvider(server.URL)
	_, err := provider.CreatePreauthorization(context.Background(), &PreauthorizationRequest{
		Amount:   50000,
		Currency: "EUR",
	})
	assert.Error(t, err)
	providerErr, ok := err.(*ProviderError)
	assert.True(t, ok)
	assert.Equal(t, "expired_card", providerErr.Code)
	assert.Equal(t, "Your card has expired.", providerErr.Message)
}

func TestStripeCaptureUsesLatestCharge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment_intents/pi_123/capture", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "50000", r.Form.Get("amount_to_capture"))
		assert.Equal(t, "10000", r.Form.Get("application_fee_amount"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":            "pi_123",
			"status":        "succeeded",
			"latest_charge": "ch_456",
		})
	}))
	defer server.Close()

	provider := newTestStripeProvider(server.URL)
	data, err := provider.CapturePreauthorization(context.Background(), "pi_123", CaptureOptions{
		Amount:         50000,
		ApplicationFee: 10000,
	})
	assert.NoError(t, err)
	assert.Equal(t, "charge", data.ResourceType)
	assert.Equal(t, "ch_456", data.ResourceID)
}

func TestStripeCancelPreauthorizationSwallowsUncancellable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"code":    "payment_intent_unexpected_state",
				"message": "This PaymentIntent cannot be canceled.",
			},
		})
	}))
	defer server.Close()

	provider := newTestStripeProvider(server.URL)
	err := provider.CancelPreauthorization(context.Background(), "pi_123")
	assert.NoError(t, err)
}

func TestStripeRefund(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refunds", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "ch_456", r.Form.Get("charge"))
		assert.Equal(t, "8000", r.Form.Get("amount"))
		assert.Equal(t, "", r.Form.Get("refund_application_fee"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "re_789",
			"object": "refund",
			"status": "succeeded",
		})
	}))
	defer server.Close()

	provider := newTestStripeProvider(server.URL)
	data, err := provider.Refund(context.Background(), "ch_456", RefundOptions{Amount: 8000})
	assert.NoError(t, err)
	assert.Equal(t, "re_789", data.ResourceID)
	assert.Equal(t, "refund", data.ResourceType)
}

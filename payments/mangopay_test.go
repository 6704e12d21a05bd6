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

func newTestMangopayProvider(serverURL string) *MangopayProvider {
	return NewMangopayProvider(&Config{
		MangopayAPIURL:    serverURL,
		MangopayClientID:  "client",
		MangopayAPIKey:    "key",
		RequestTimeout:    5,
		RequestsPerSecond: 100,
		RequestBurst:      10,
	}, lecho.New(os.Stdout, lecho.WithLevel(log.ERROR)))
}

func TestMangopayCreatePreauthorizationSucceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/client/preauthorizations/card/direct", r.URL.Path)
		var in map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "FORCE", in["SecureMode"])
		json.NewEncoder(w).Encode(map[string]interface{}{
			"Id":           "preauth_1",
			"Status":       "SUCCEEDED",
			"CreationDate": 1700000000,
		})
	}))
	defer server.Close()

	provider := newTestMangopayProvider(server.URL)
	result, err := provider.CreatePreauthorization(context.Background(), &PreauthorizationRequest{
		UserRef:    "user_1",
		CardRef:    "card_1",
		Amount:     50000,
		Currency:   "EUR",
		SecureMode: true,
		ReturnURL:  "https://renthub.test/return",
	})
	assert.NoError(t, err)
	assert.Equal(t, PreauthStatusSucceeded, result.Status)
	assert.Equal(t, "preauth_1", result.Data.ResourceID)
}

func TestMangopayCreatePreauthorizationPending3DS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"Id":                    "preauth_1",
			"Status":                "CREATED",
			"SecureModeNeeded":      true,
			"SecureModeRedirectURL": "https://mangopay.test/3ds",
		})
	}))
	defer server.Close()

	provider := newTestMangopayProvider(server.URL)
	result, err := provider.CreatePreauthorization(context.Background(), &PreauthorizationRequest{
		Amount:   50000,
		Currency: "EUR",
	})
	assert.NoError(t, err)
	assert.Equal(t, PreauthStatusPending3DS, result.Status)
	assert.Equal(t, "https://mangopay.test/3ds", result.RedirectURL)
}

func TestMangopayCaptureFailedResult(t *testing.T) {
	// declined operations come back with a 200 and Status FAILED
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"Id":            "payin_1",
			"Status":        "FAILED",
			"ResultCode":    "101105",
			"ResultMessage": "card expired",
		})
	}))
	defer server.Close()

	provider := newTestMangopayProvider(server.URL)
	_, err := provider.CapturePreauthorization(context.Background(), "preauth_1", CaptureOptions{Amount: 50000})
	assert.Error(t, err)
	providerErr, ok := err.(*ProviderError)
	assert.True(t, ok)
	assert.Equal(t, "101105", providerErr.Code)
}

func TestMangopayCancelPreauthorizationSwallowsUncancellable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"Message": "PreAuthorization is not in a valid status",
			"Type":    "param_error",
		})
	}))
	defer server.Close()

	provider := newTestMangopayProvider(server.URL)
	err := provider.CancelPreauthorization(context.Background(), "preauth_1")
	assert.NoError(t, err)
}

func TestMangopayRefundKeepsFeesByDefault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/client/payins/payin_1/refunds", r.URL.Path)
		var in map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_, hasFees := in["Fees"]
		assert.True(t, hasFees)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"Id":     "refund_1",
			"Status": "SUCCEEDED",
		})
	}))
	defer server.Close()

	provider := newTestMangopayProvider(server.URL)
	data, err := provider.Refund(context.Background(), "payin_1", RefundOptions{Amount: 8000})
	assert.NoError(t, err)
	assert.Equal(t, "refund_1", data.ResourceID)
}

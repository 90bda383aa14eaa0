package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paygate/internal/payments/models"
	dErrors "paygate/pkg/domain-errors"
)

func TestRegistryResolve(t *testing.T) {
	stripe, err := NewStripe("sk_test_123")
	require.NoError(t, err)
	registry := NewRegistry(stripe)

	resolved, err := registry.Resolve(models.ProviderStripe)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderStripe, resolved.Name())

	_, err = registry.Resolve(models.ProviderPayPal)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidProvider))
}

func TestNewStripeRequiresKey(t *testing.T) {
	_, err := NewStripe("")
	require.Error(t, err)
}

func TestStripeCreatePayment(t *testing.T) {
	var gotIdempotencyKey, gotAmount, gotCurrency string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payment_intents", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotIdempotencyKey = r.Header.Get("Idempotency-Key")
		gotAmount = r.PostForm.Get("amount")
		gotCurrency = r.PostForm.Get("currency")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "pi_123",
			"status":        "succeeded",
			"client_secret": "pi_123_secret",
		})
	}))
	defer srv.Close()

	adapter, err := NewStripe("sk_test_123", WithStripeBaseURL(srv.URL))
	require.NoError(t, err)

	result, err := adapter.CreatePayment(context.Background(), CreatePaymentInput{
		Amount:         1500,
		Currency:       "usd",
		PaymentMethod:  "pm_card_visa",
		TenantID:       "t1",
		IdempotencyKey: "key-abc",
	})
	require.NoError(t, err)

	assert.Equal(t, "pi_123", result.ProviderTransactionID)
	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Equal(t, "pi_123_secret", result.ClientSecret)
	assert.Equal(t, "key-abc", gotIdempotencyKey)
	assert.Equal(t, "1500", gotAmount)
	assert.Equal(t, "usd", gotCurrency)
}

func TestStripeResourceMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"type":    "invalid_request_error",
				"code":    "resource_missing",
				"message": "No such payment_intent",
			},
		})
	}))
	defer srv.Close()

	adapter, err := NewStripe("sk_test_123", WithStripeBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = adapter.GetPaymentStatus(context.Background(), "pi_missing")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodePaymentNotFound))
}

func TestStripeBusinessRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"type":    "invalid_request_error",
				"code":    "card_declined",
				"message": "Your card was declined.",
			},
		})
	}))
	defer srv.Close()

	adapter, err := NewStripe("sk_test_123", WithStripeBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = adapter.CreatePayment(context.Background(), CreatePaymentInput{
		Amount: 100, Currency: "USD", PaymentMethod: "pm_bad",
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodePaymentFailed))
}

func paypalTestServer(t *testing.T, orderHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "client-id", user)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok_test",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v2/checkout/orders", orderHandler)
	return httptest.NewServer(mux)
}

func TestPayPalAmountFormatting(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		currency string
		want     string
	}{
		{"zero-decimal currency sends whole units", 150, "JPY", "150"},
		{"decimal currency converts to major units", 150, "USD", "1.50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotValue, gotRequestID string
			srv := paypalTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				var body struct {
					PurchaseUnits []struct {
						Amount paypalAmount `json:"amount"`
					} `json:"purchase_units"`
				}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				require.Len(t, body.PurchaseUnits, 1)
				gotValue = body.PurchaseUnits[0].Amount.Value
				gotRequestID = r.Header.Get("PayPal-Request-Id")

				_ = json.NewEncoder(w).Encode(map[string]any{
					"id":     "ORDER-1",
					"status": "CREATED",
				})
			})
			defer srv.Close()

			adapter, err := NewPayPal("client-id", "client-secret", "sandbox", WithPayPalBaseURL(srv.URL))
			require.NoError(t, err)

			result, err := adapter.CreatePayment(context.Background(), CreatePaymentInput{
				Amount:         tt.amount,
				Currency:       tt.currency,
				PaymentMethod:  "paypal",
				TenantID:       "t1",
				IdempotencyKey: "key-jp",
			})
			require.NoError(t, err)

			assert.Equal(t, tt.want, gotValue)
			assert.Equal(t, "key-jp", gotRequestID)
			assert.Equal(t, "ORDER-1", result.ProviderTransactionID)
			assert.Equal(t, models.StatusPending, result.Status)
		})
	}
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatProviderAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		currency string
		want     string
	}{
		{"JPY passes whole units", 150, "JPY", "150"},
		{"USD converts minor to major", 150, "USD", "1.50"},
		{"USD exact dollar", 100, "usd", "1.00"},
		{"USD sub-dollar", 7, "USD", "0.07"},
		{"KRW whole units", 10000, "KRW", "10000"},
		{"EUR large amount", 123456, "EUR", "1234.56"},
		{"VND lowercase input", 500, "vnd", "500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatProviderAmount(tt.amount, tt.currency))
		})
	}
}

func TestParseProviderAmount(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		currency string
		want     int64
	}{
		{"JPY whole units", "150", "JPY", 150},
		{"USD decimal", "1.50", "USD", 150},
		{"USD single fractional digit", "1.5", "USD", 150},
		{"USD no fraction", "12", "USD", 1200},
		{"EUR round trip", "1234.56", "EUR", 123456},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProviderAmount(tt.value, tt.currency)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsZeroDecimalCurrency(t *testing.T) {
	assert.True(t, IsZeroDecimalCurrency("JPY"))
	assert.True(t, IsZeroDecimalCurrency("jpy"))
	assert.True(t, IsZeroDecimalCurrency("XOF"))
	assert.False(t, IsZeroDecimalCurrency("USD"))
	assert.False(t, IsZeroDecimalCurrency("EUR"))
}

func TestCreatePaymentRequestValidate(t *testing.T) {
	valid := CreatePaymentRequest{
		Provider:      "stripe",
		Amount:        1000,
		Currency:      "USD",
		PaymentMethod: "pm_card_visa",
	}
	require.NoError(t, valid.Validate())

	t.Run("rejects non-positive amount", func(t *testing.T) {
		r := valid
		r.Amount = 0
		assert.Error(t, r.Validate())
	})
	t.Run("rejects malformed currency", func(t *testing.T) {
		r := valid
		r.Currency = "US"
		assert.Error(t, r.Validate())
	})
	t.Run("rejects unknown provider", func(t *testing.T) {
		r := valid
		r.Provider = "barter"
		assert.Error(t, r.Validate())
	})
	t.Run("rejects missing payment method", func(t *testing.T) {
		r := valid
		r.PaymentMethod = ""
		assert.Error(t, r.Validate())
	})
}

func TestHasOpenRefund(t *testing.T) {
	rec := PaymentRecord{}
	assert.False(t, rec.HasOpenRefund())

	rec.RefundID = "re_1"
	rec.RefundStatus = string(StatusProcessing)
	assert.True(t, rec.HasOpenRefund())

	rec.RefundStatus = string(StatusFailed)
	assert.False(t, rec.HasOpenRefund())
}

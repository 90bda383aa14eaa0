package models

import (
	"strconv"
	"strings"
)

// zeroDecimalCurrencies are ISO 4217 currencies with no minor unit: amounts
// cross the provider boundary as whole units, never divided by 100.
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {},
	"JPY": {}, "KMF": {}, "KRW": {}, "MGA": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {},
	"VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// NormalizeCurrency upper-cases a currency code for storage and comparison.
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// IsZeroDecimalCurrency reports whether the currency has no minor unit.
func IsZeroDecimalCurrency(currency string) bool {
	_, ok := zeroDecimalCurrencies[NormalizeCurrency(currency)]
	return ok
}

// FormatProviderAmount renders an integer minor-unit amount as the decimal
// string a provider expects: "150" for 150 JPY, "1.50" for 150 USD cents.
func FormatProviderAmount(amount int64, currency string) string {
	if IsZeroDecimalCurrency(currency) {
		return strconv.FormatInt(amount, 10)
	}
	major := amount / 100
	minor := amount % 100
	if minor < 0 {
		minor = -minor
	}
	return strconv.FormatInt(major, 10) + "." + pad2(minor)
}

// ParseProviderAmount converts a provider's decimal amount string back to
// integer minor units.
func ParseProviderAmount(value, currency string) (int64, error) {
	value = strings.TrimSpace(value)
	if IsZeroDecimalCurrency(currency) {
		return strconv.ParseInt(value, 10, 64)
	}

	whole, frac, _ := strings.Cut(value, ".")
	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, err
	}
	// Providers send at most two fractional digits for decimal currencies.
	switch len(frac) {
	case 0:
		frac = "00"
	case 1:
		frac += "0"
	case 2:
	default:
		frac = frac[:2]
	}
	minor, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, err
	}
	if major < 0 || strings.HasPrefix(whole, "-") {
		return major*100 - minor, nil
	}
	return major*100 + minor, nil
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

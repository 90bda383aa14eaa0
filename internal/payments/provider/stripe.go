package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"paygate/internal/payments/models"
	dErrors "paygate/pkg/domain-errors"
)

const (
	stripeAPIBase    = "https://api.stripe.com/v1"
	stripeAPIVersion = "2024-11-20.acacia"
)

// StripeAdapter drives payments through Stripe PaymentIntents. Amounts go to
// Stripe as integer minor units, which matches the internal representation,
// except zero-decimal currencies which Stripe also takes as whole units.
type StripeAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// StripeOption configures the adapter.
type StripeOption func(*StripeAdapter)

// WithStripeBaseURL overrides the API endpoint. Test hook.
func WithStripeBaseURL(u string) StripeOption {
	return func(a *StripeAdapter) { a.baseURL = u }
}

// WithStripeHTTPClient overrides the HTTP client.
func WithStripeHTTPClient(c *http.Client) StripeOption {
	return func(a *StripeAdapter) { a.client = c }
}

// WithStripeLogger sets the structured logger.
func WithStripeLogger(l *slog.Logger) StripeOption {
	return func(a *StripeAdapter) { a.logger = l }
}

// NewStripe constructs a Stripe adapter. The API key is required.
func NewStripe(apiKey string, opts ...StripeOption) (*StripeAdapter, error) {
	if apiKey == "" {
		return nil, dErrors.New(dErrors.CodeInvalidProvider, "stripe API key is not configured")
	}
	a := &StripeAdapter{
		apiKey:  apiKey,
		baseURL: stripeAPIBase,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Name implements Adapter.
func (a *StripeAdapter) Name() models.Provider { return models.ProviderStripe }

type stripePaymentIntent struct {
	ID                 string   `json:"id"`
	Status             string   `json:"status"`
	ClientSecret       string   `json:"client_secret"`
	Amount             int64    `json:"amount"`
	AmountReceived     int64    `json:"amount_received"`
	Livemode           bool     `json:"livemode"`
	PaymentMethodTypes []string `json:"payment_method_types"`
}

type stripeRefund struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason"`
	Livemode bool   `json:"livemode"`
}

type stripeErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
		Param   string `json:"param"`
	} `json:"error"`
}

// CreatePayment creates and auto-confirms a PaymentIntent.
func (a *StripeAdapter) CreatePayment(ctx context.Context, in CreatePaymentInput) (*PaymentResult, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(in.Amount, 10))
	form.Set("currency", strings.ToLower(models.NormalizeCurrency(in.Currency)))
	form.Set("payment_method", in.PaymentMethod)
	form.Set("confirm", "true")
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("automatic_payment_methods[allow_redirects]", "never")
	form.Set("metadata[customer_id]", in.TenantID)
	for k, v := range in.Metadata {
		form.Set("metadata["+k+"]", fmt.Sprint(v))
	}
	if in.Description != "" {
		form.Set("description", in.Description)
	}

	var intent stripePaymentIntent
	if err := a.do(ctx, http.MethodPost, "/payment_intents", form, in.IdempotencyKey, &intent, dErrors.CodePaymentFailed); err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "stripe payment intent created",
		"payment_intent_id", intent.ID,
		"status", intent.Status,
	)

	return &PaymentResult{
		ProviderTransactionID: intent.ID,
		Status:                mapStripePaymentStatus(intent.Status),
		ClientSecret:          intent.ClientSecret,
		ProviderMetadata: map[string]any{
			"stripe_status":        intent.Status,
			"payment_method_types": intent.PaymentMethodTypes,
			"livemode":             intent.Livemode,
		},
	}, nil
}

// RefundPayment refunds a PaymentIntent, partially when in.Amount is set.
func (a *StripeAdapter) RefundPayment(ctx context.Context, in RefundInput) (*RefundResult, error) {
	form := url.Values{}
	form.Set("payment_intent", in.ProviderTransactionID)
	if in.Amount > 0 {
		form.Set("amount", strconv.FormatInt(in.Amount, 10))
	}
	if in.Reason != "" {
		form.Set("reason", mapStripeRefundReason(in.Reason))
		form.Set("metadata[original_reason]", in.Reason)
	}

	var refund stripeRefund
	if err := a.do(ctx, http.MethodPost, "/refunds", form, in.IdempotencyKey, &refund, dErrors.CodeRefundFailed); err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "stripe refund created",
		"refund_id", refund.ID,
		"status", refund.Status,
		"amount", refund.Amount,
	)

	return &RefundResult{
		RefundID: refund.ID,
		Status:   mapStripeRefundStatus(refund.Status),
		Amount:   refund.Amount,
		ProviderMetadata: map[string]any{
			"stripe_status": refund.Status,
			"stripe_reason": refund.Reason,
			"livemode":      refund.Livemode,
		},
	}, nil
}

// GetPaymentStatus fetches the current PaymentIntent state.
func (a *StripeAdapter) GetPaymentStatus(ctx context.Context, providerTransactionID string) (*StatusResult, error) {
	var intent stripePaymentIntent
	path := "/payment_intents/" + url.PathEscape(providerTransactionID)
	if err := a.do(ctx, http.MethodGet, path, nil, "", &intent, dErrors.CodeProviderUnavailable); err != nil {
		return nil, err
	}

	return &StatusResult{
		Status: mapStripePaymentStatus(intent.Status),
		ProviderMetadata: map[string]any{
			"stripe_status":   intent.Status,
			"amount_received": intent.AmountReceived,
			"livemode":        intent.Livemode,
		},
	}, nil
}

// do executes one Stripe API call and decodes the response. 4xx errors carry
// businessCode; "resource_missing" maps to PAYMENT_NOT_FOUND; everything else
// is PROVIDER_ERROR.
func (a *StripeAdapter) do(ctx context.Context, method, path string, form url.Values, idempotencyKey string, out any, businessCode dErrors.Code) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "stripe request build failed")
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Stripe-Version", stripeAPIVersion)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "stripe request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "stripe response read failed")
	}

	if resp.StatusCode >= 400 {
		var apiErr stripeErrorBody
		_ = json.Unmarshal(raw, &apiErr)

		a.logger.ErrorContext(ctx, "stripe API error",
			"status", resp.StatusCode,
			"stripe_type", apiErr.Error.Type,
			"stripe_code", apiErr.Error.Code,
		)

		if apiErr.Error.Code == "resource_missing" {
			return dErrors.NewWithDetails(dErrors.CodePaymentNotFound,
				"stripe resource not found",
				map[string]any{"provider": "stripe", "stripe_code": apiErr.Error.Code})
		}
		if resp.StatusCode < 500 && apiErr.Error.Type == "invalid_request_error" {
			return dErrors.NewWithDetails(businessCode,
				"stripe rejected the request: "+apiErr.Error.Message,
				map[string]any{
					"provider":     "stripe",
					"stripe_code":  apiErr.Error.Code,
					"stripe_param": apiErr.Error.Param,
				})
		}
		return dErrors.NewWithDetails(dErrors.CodeProviderUnavailable,
			"stripe error: "+apiErr.Error.Message,
			map[string]any{"provider": "stripe", "stripe_type": apiErr.Error.Type})
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "stripe response decode failed")
	}
	return nil
}

func mapStripePaymentStatus(s string) models.Status {
	switch s {
	case "requires_payment_method", "requires_confirmation", "requires_action":
		return models.StatusPending
	case "processing", "requires_capture":
		return models.StatusProcessing
	case "canceled":
		return models.StatusFailed
	case "succeeded":
		return models.StatusCompleted
	default:
		return models.StatusPending
	}
}

func mapStripeRefundStatus(s string) models.Status {
	switch s {
	case "succeeded":
		return models.StatusRefunded
	case "pending", "requires_action":
		return models.StatusProcessing
	case "failed", "canceled":
		return models.StatusFailed
	default:
		return models.StatusProcessing
	}
}

// mapStripeRefundReason folds free-form reasons into the three values Stripe
// accepts.
func mapStripeRefundReason(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "duplicate"):
		return "duplicate"
	case strings.Contains(lower, "fraud"):
		return "fraudulent"
	default:
		return "requested_by_customer"
	}
}

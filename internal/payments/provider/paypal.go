package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"paygate/internal/payments/models"
	dErrors "paygate/pkg/domain-errors"
)

const (
	paypalSandboxBase = "https://api-m.sandbox.paypal.com"
	paypalLiveBase    = "https://api-m.paypal.com"
)

// PayPalAdapter drives payments through the PayPal Orders API. Amounts cross
// the wire as decimal strings, so integer minor units are converted at this
// boundary. Idempotency keys travel as the PayPal-Request-Id header.
type PayPalAdapter struct {
	clientID     string
	clientSecret string
	baseURL      string
	client       *http.Client
	logger       *slog.Logger

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// PayPalOption configures the adapter.
type PayPalOption func(*PayPalAdapter)

// WithPayPalBaseURL overrides the API endpoint. Test hook.
func WithPayPalBaseURL(u string) PayPalOption {
	return func(a *PayPalAdapter) { a.baseURL = u }
}

// WithPayPalHTTPClient overrides the HTTP client.
func WithPayPalHTTPClient(c *http.Client) PayPalOption {
	return func(a *PayPalAdapter) { a.client = c }
}

// WithPayPalLogger sets the structured logger.
func WithPayPalLogger(l *slog.Logger) PayPalOption {
	return func(a *PayPalAdapter) { a.logger = l }
}

// NewPayPal constructs a PayPal adapter. Mode selects sandbox or live.
func NewPayPal(clientID, clientSecret, mode string, opts ...PayPalOption) (*PayPalAdapter, error) {
	if clientID == "" || clientSecret == "" {
		return nil, dErrors.New(dErrors.CodeInvalidProvider, "paypal credentials are not configured")
	}
	base := paypalSandboxBase
	if mode == "live" {
		base = paypalLiveBase
	}
	a := &PayPalAdapter{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      base,
		client:       &http.Client{Timeout: 30 * time.Second},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Name implements Adapter.
func (a *PayPalAdapter) Name() models.Provider { return models.ProviderPayPal }

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalOrder struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string       `json:"id"`
				Status string       `json:"status"`
				Amount paypalAmount `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
	Links []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

type paypalRefund struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Amount paypalAmount `json:"amount"`
}

type paypalErrorBody struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id"`
}

// CreatePayment creates a CAPTURE-intent order.
func (a *PayPalAdapter) CreatePayment(ctx context.Context, in CreatePaymentInput) (*PaymentResult, error) {
	currency := models.NormalizeCurrency(in.Currency)

	unit := map[string]any{
		"amount": paypalAmount{
			CurrencyCode: currency,
			Value:        models.FormatProviderAmount(in.Amount, currency),
		},
		"custom_id": in.TenantID,
	}
	if in.Description != "" {
		unit["description"] = in.Description
	}
	orderReq := map[string]any{
		"intent":         "CAPTURE",
		"purchase_units": []any{unit},
	}

	var order paypalOrder
	if err := a.do(ctx, http.MethodPost, "/v2/checkout/orders", orderReq, in.IdempotencyKey, &order, dErrors.CodePaymentFailed); err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "paypal order created",
		"order_id", order.ID,
		"status", order.Status,
	)

	// PayPal's client-side continuation is the approval link rather than a
	// secret token.
	approvalURL := ""
	for _, link := range order.Links {
		if link.Rel == "approve" {
			approvalURL = link.Href
			break
		}
	}

	return &PaymentResult{
		ProviderTransactionID: order.ID,
		Status:                mapPayPalOrderStatus(order.Status),
		ClientSecret:          approvalURL,
		ProviderMetadata: map[string]any{
			"paypal_status":            order.Status,
			"paypal_order_id":          order.ID,
			"payment_method_reference": in.PaymentMethod,
		},
	}, nil
}

// RefundPayment looks up the order's capture and refunds it.
func (a *PayPalAdapter) RefundPayment(ctx context.Context, in RefundInput) (*RefundResult, error) {
	var order paypalOrder
	orderPath := "/v2/checkout/orders/" + url.PathEscape(in.ProviderTransactionID)
	if err := a.do(ctx, http.MethodGet, orderPath, nil, "", &order, dErrors.CodeRefundFailed); err != nil {
		return nil, err
	}

	captureID, captureCurrency := "", models.NormalizeCurrency(in.Currency)
	for _, pu := range order.PurchaseUnits {
		if len(pu.Payments.Captures) > 0 {
			captureID = pu.Payments.Captures[0].ID
			captureCurrency = pu.Payments.Captures[0].Amount.CurrencyCode
			break
		}
	}
	if captureID == "" {
		return nil, dErrors.NewWithDetails(dErrors.CodeRefundFailed,
			"paypal order has no captured payment to refund",
			map[string]any{"provider": "paypal", "order_id": in.ProviderTransactionID})
	}

	refundReq := map[string]any{}
	if in.Amount > 0 {
		refundReq["amount"] = paypalAmount{
			CurrencyCode: captureCurrency,
			Value:        models.FormatProviderAmount(in.Amount, captureCurrency),
		}
	}
	if in.Reason != "" {
		refundReq["note_to_payer"] = in.Reason
	}

	var refund paypalRefund
	refundPath := "/v2/payments/captures/" + url.PathEscape(captureID) + "/refund"
	if err := a.do(ctx, http.MethodPost, refundPath, refundReq, in.IdempotencyKey, &refund, dErrors.CodeRefundFailed); err != nil {
		return nil, err
	}

	refundedAmount := in.Amount
	if refund.Amount.Value != "" {
		if parsed, err := models.ParseProviderAmount(refund.Amount.Value, refund.Amount.CurrencyCode); err == nil {
			refundedAmount = parsed
		}
	}

	a.logger.InfoContext(ctx, "paypal refund created",
		"refund_id", refund.ID,
		"status", refund.Status,
		"amount", refundedAmount,
	)

	return &RefundResult{
		RefundID: refund.ID,
		Status:   mapPayPalRefundStatus(refund.Status),
		Amount:   refundedAmount,
		ProviderMetadata: map[string]any{
			"paypal_status": refund.Status,
			"capture_id":    captureID,
		},
	}, nil
}

// GetPaymentStatus fetches the order, preferring the capture's status when one
// exists.
func (a *PayPalAdapter) GetPaymentStatus(ctx context.Context, providerTransactionID string) (*StatusResult, error) {
	var order paypalOrder
	path := "/v2/checkout/orders/" + url.PathEscape(providerTransactionID)
	if err := a.do(ctx, http.MethodGet, path, nil, "", &order, dErrors.CodeProviderUnavailable); err != nil {
		return nil, err
	}

	status := mapPayPalOrderStatus(order.Status)
	for _, pu := range order.PurchaseUnits {
		if len(pu.Payments.Captures) > 0 {
			status = mapPayPalCaptureStatus(pu.Payments.Captures[0].Status)
			break
		}
	}

	return &StatusResult{
		Status: status,
		ProviderMetadata: map[string]any{
			"paypal_status": order.Status,
			"order_id":      order.ID,
		},
	}, nil
}

// token returns a cached OAuth access token, refreshing via the
// client-credentials grant when expired.
func (a *PayPalAdapter) token(ctx context.Context) (string, error) {
	a.tokenMu.Lock()
	defer a.tokenMu.Unlock()

	if a.accessToken != "" && time.Now().Before(a.tokenExpiry) {
		return a.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "paypal token request build failed")
	}
	req.SetBasicAuth(a.clientID, a.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "paypal authentication failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", dErrors.NewWithDetails(dErrors.CodeProviderUnavailable,
			"paypal authentication rejected",
			map[string]any{"provider": "paypal", "status": resp.StatusCode})
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "paypal token decode failed")
	}

	a.accessToken = tokenResp.AccessToken
	// Refresh one minute early so in-flight calls never race expiry.
	a.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - time.Minute)
	return a.accessToken, nil
}

func (a *PayPalAdapter) do(ctx context.Context, method, path string, payload any, idempotencyKey string, out any, businessCode dErrors.Code) error {
	accessToken, err := a.token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "paypal request encode failed")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "paypal request build failed")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("PayPal-Request-Id", idempotencyKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "paypal request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "paypal response read failed")
	}

	if resp.StatusCode == http.StatusNotFound {
		return dErrors.NewWithDetails(dErrors.CodePaymentNotFound,
			"paypal resource not found",
			map[string]any{"provider": "paypal"})
	}
	if resp.StatusCode >= 400 {
		var apiErr paypalErrorBody
		_ = json.Unmarshal(raw, &apiErr)

		a.logger.ErrorContext(ctx, "paypal API error",
			"status", resp.StatusCode,
			"paypal_name", apiErr.Name,
			"paypal_debug_id", apiErr.DebugID,
		)

		if resp.StatusCode < 500 {
			return dErrors.NewWithDetails(businessCode,
				"paypal rejected the request: "+apiErr.Message,
				map[string]any{"provider": "paypal", "paypal_debug_id": apiErr.DebugID})
		}
		return dErrors.NewWithDetails(dErrors.CodeProviderUnavailable,
			"paypal error: "+apiErr.Message,
			map[string]any{"provider": "paypal", "paypal_debug_id": apiErr.DebugID})
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "paypal response decode failed")
		}
	}
	return nil
}

func mapPayPalOrderStatus(s string) models.Status {
	switch s {
	case "CREATED", "SAVED", "APPROVED", "PAYER_ACTION_REQUIRED":
		return models.StatusPending
	case "VOIDED":
		return models.StatusFailed
	case "COMPLETED":
		return models.StatusCompleted
	default:
		return models.StatusPending
	}
}

func mapPayPalCaptureStatus(s string) models.Status {
	switch s {
	case "COMPLETED", "PARTIALLY_REFUNDED":
		return models.StatusCompleted
	case "DECLINED":
		return models.StatusFailed
	case "PENDING":
		return models.StatusProcessing
	case "REFUNDED":
		return models.StatusRefunded
	default:
		return models.StatusProcessing
	}
}

func mapPayPalRefundStatus(s string) models.Status {
	switch s {
	case "COMPLETED":
		return models.StatusRefunded
	case "PENDING":
		return models.StatusProcessing
	case "CANCELLED", "FAILED":
		return models.StatusFailed
	default:
		return models.StatusProcessing
	}
}

// Package service implements the payment execution pipeline: provider
// resolution, idempotency-keyed replay protection with claim coordination,
// durable record keeping, and the audit trail.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	authmodels "paygate/internal/auth/models"
	"paygate/internal/audit"
	"paygate/internal/payments/idempotency"
	"paygate/internal/payments/models"
	"paygate/internal/payments/provider"
	platformMW "paygate/internal/platform/middleware"
	dErrors "paygate/pkg/domain-errors"
	"paygate/pkg/platform/sentinel"
)

// IdempotencyStore caches serialized responses by idempotency key and
// coordinates concurrent attempts through claim markers.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, response []byte) error
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// PaymentStore persists payment records.
type PaymentStore interface {
	Create(ctx context.Context, rec *models.PaymentRecord) error
	Find(ctx context.Context, id string) (*models.PaymentRecord, error)
	UpdateRefund(ctx context.Context, id, refundID, refundStatus string, refundAmount int64, status models.Status) error
	UpdateStatus(ctx context.Context, id string, status models.Status) error
	List(ctx context.Context, filter models.ListPaymentsFilter) ([]models.PaymentRecord, int, error)
}

// AdapterResolver resolves a provider name to its configured adapter.
type AdapterResolver interface {
	Resolve(p models.Provider) (provider.Adapter, error)
}

// AuditEmitter records operation outcomes, best-effort.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event)
}

// Metrics holds Prometheus collectors for the payment pipeline.
type Metrics struct {
	Operations      *prometheus.CounterVec
	Idempotency     *prometheus.CounterVec
	ProviderLatency *prometheus.HistogramVec
}

// NewMetrics registers and returns payment collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "paygate_payment_operations_total",
			Help: "Payment operations by kind and outcome",
		}, []string{"operation", "outcome"}),
		Idempotency: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "paygate_idempotency_events_total",
			Help: "Idempotency cache and claim events",
		}, []string{"event"}),
		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paygate_provider_latency_seconds",
			Help:    "Provider call latency by provider and operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
	}
}

// Service orchestrates payments across providers. Thread-safe.
type Service struct {
	providers       AdapterResolver
	idempotency     IdempotencyStore
	store           PaymentStore
	auditor         AuditEmitter
	logger          *slog.Logger
	metrics         *Metrics
	providerTimeout time.Duration
	storeTimeout    time.Duration
	pollInterval    time.Duration
	claimWait       time.Duration
	now             func() time.Time
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditor sets the audit emitter.
func WithAuditor(a AuditEmitter) Option {
	return func(s *Service) { s.auditor = a }
}

// WithProviderTimeout bounds individual provider calls.
func WithProviderTimeout(d time.Duration) Option {
	return func(s *Service) { s.providerTimeout = d }
}

// WithStoreTimeout bounds individual shared-store calls.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) { s.storeTimeout = d }
}

// WithPollInterval sets how often a claim loser re-checks the cache. Test
// hook.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) { s.pollInterval = d }
}

// WithClaimWait bounds how long a claim loser waits for the winner's result.
func WithClaimWait(d time.Duration) Option {
	return func(s *Service) { s.claimWait = d }
}

// New creates a payment service.
func New(providers AdapterResolver, idem IdempotencyStore, store PaymentStore, opts ...Option) (*Service, error) {
	if providers == nil {
		return nil, errors.New("provider resolver is required")
	}
	if idem == nil {
		return nil, errors.New("idempotency store is required")
	}
	if store == nil {
		return nil, errors.New("payment store is required")
	}
	s := &Service{
		providers:       providers,
		idempotency:     idem,
		store:           store,
		logger:          slog.Default(),
		providerTimeout: 30 * time.Second,
		storeTimeout:    5 * time.Second,
		pollInterval:    250 * time.Millisecond,
		claimWait:       idempotency.ClaimTTL,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreatePayment creates a payment through the requested provider. A repeated
// idempotency key replays the first successful response without touching the
// provider again.
func (s *Service) CreatePayment(ctx context.Context, authCtx *authmodels.AuthContext, req *models.CreatePaymentRequest, idempotencyKey string) (*models.CreatePaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Tenant-authenticated callers always operate on their own tenant;
	// admin contexts must name the tenant in the request body.
	if authCtx.IsTenant() {
		req.TenantID = authCtx.TenantID
	}

	providerName, _ := models.ParseProvider(req.Provider)
	currency := models.NormalizeCurrency(req.Currency)
	traceID := platformMW.GetTraceID(ctx)

	event := &audit.Event{
		TenantID: req.TenantID,
		Endpoint: "/api/v1/payments",
		Method:   "POST",
		Provider: string(providerName),
		Amount:   req.Amount,
		Currency: currency,
		TraceID:  traceID,
	}

	raw, err := s.executeIdempotent(ctx, idempotencyKey, event,
		audit.ActionPaymentCreated, audit.ActionPaymentFailed,
		func(ctx context.Context) ([]byte, error) {
			return s.attemptCreate(ctx, providerName, currency, req, idempotencyKey, traceID, event)
		})
	if err != nil {
		s.countOperation("create", "failure")
		return nil, err
	}

	var resp models.CreatePaymentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "payment response decode failed")
	}
	s.countOperation("create", "success")
	return &resp, nil
}

func (s *Service) attemptCreate(ctx context.Context, providerName models.Provider, currency string, req *models.CreatePaymentRequest, idempotencyKey, traceID string, event *audit.Event) ([]byte, error) {
	adapter, err := s.providers.Resolve(providerName)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	callStart := s.now()
	result, err := adapter.CreatePayment(callCtx, provider.CreatePaymentInput{
		Amount:         req.Amount,
		Currency:       currency,
		PaymentMethod:  req.PaymentMethod,
		TenantID:       req.TenantID,
		Description:    req.Description,
		Metadata:       req.Metadata,
		IdempotencyKey: idempotencyKey,
	})
	s.observeProvider(providerName, "create", callStart)
	if err != nil {
		return nil, err
	}

	event.ProviderTransactionID = result.ProviderTransactionID

	paymentID := uuid.NewString()
	createdAt := s.now().UTC()

	record := &models.PaymentRecord{
		ID:                    paymentID,
		Provider:              providerName,
		ProviderTransactionID: result.ProviderTransactionID,
		Amount:                req.Amount,
		Currency:              currency,
		Status:                result.Status,
		TenantID:              req.TenantID,
		Metadata:              req.Metadata,
		CreatedAt:             createdAt,
		UpdatedAt:             createdAt,
	}

	// The provider call already succeeded, so persistence failure cannot
	// fail the request: the money has moved. Log and surface the payment.
	storeCtx, storeCancel := context.WithTimeout(ctx, s.storeTimeout)
	defer storeCancel()
	if err := s.store.Create(storeCtx, record); err != nil {
		s.logger.ErrorContext(ctx, "payment record persistence failed after provider success",
			"payment_id", paymentID,
			"provider_transaction_id", result.ProviderTransactionID,
			"error", err,
		)
	}

	resp := models.CreatePaymentResponse{
		ID:                    paymentID,
		ProviderTransactionID: result.ProviderTransactionID,
		Amount:                req.Amount,
		Currency:              currency,
		Status:                result.Status,
		CreatedAt:             createdAt.Format(time.RFC3339Nano),
		TraceID:               traceID,
		Metadata:              req.Metadata,
		ProviderMetadata:      result.ProviderMetadata,
		ClientSecret:          result.ClientSecret,
	}

	s.logger.InfoContext(ctx, "payment created",
		"payment_id", paymentID,
		"provider", providerName,
		"provider_transaction_id", result.ProviderTransactionID,
		"amount", req.Amount,
		"currency", currency,
	)

	return json.Marshal(resp)
}

// RefundPayment refunds a payment through the provider that created it. One
// refund per payment: a second refund is rejected unless the first one
// failed.
func (s *Service) RefundPayment(ctx context.Context, authCtx *authmodels.AuthContext, paymentID string, req *models.RefundPaymentRequest, idempotencyKey string) (*models.RefundPaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	traceID := platformMW.GetTraceID(ctx)

	event := &audit.Event{
		Endpoint: "/api/v1/payments/" + paymentID + "/refund",
		Method:   "POST",
		TraceID:  traceID,
	}

	raw, err := s.executeIdempotent(ctx, idempotencyKey, event,
		audit.ActionRefundCreated, audit.ActionRefundFailed,
		func(ctx context.Context) ([]byte, error) {
			return s.attemptRefund(ctx, authCtx, paymentID, req, idempotencyKey, traceID, event)
		})
	if err != nil {
		s.countOperation("refund", "failure")
		return nil, err
	}

	var resp models.RefundPaymentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "refund response decode failed")
	}
	s.countOperation("refund", "success")
	return &resp, nil
}

func (s *Service) attemptRefund(ctx context.Context, authCtx *authmodels.AuthContext, paymentID string, req *models.RefundPaymentRequest, idempotencyKey, traceID string, event *audit.Event) ([]byte, error) {
	record, err := s.findPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := authorizeTenant(authCtx, record); err != nil {
		return nil, err
	}

	event.TenantID = record.TenantID
	event.Provider = string(record.Provider)
	event.ProviderTransactionID = record.ProviderTransactionID
	event.Currency = record.Currency

	if record.HasOpenRefund() {
		return nil, dErrors.NewWithDetails(dErrors.CodeConflict,
			"payment already has a refund in progress or completed",
			map[string]any{"refund_id": record.RefundID, "refund_status": record.RefundStatus})
	}
	if req.Amount > record.Amount {
		return nil, dErrors.NewWithDetails(dErrors.CodeValidation,
			"refund amount exceeds the original payment",
			map[string]any{"amount": req.Amount, "payment_amount": record.Amount})
	}

	// Refunds go to the provider that created the payment, never the
	// caller's choice.
	adapter, err := s.providers.Resolve(record.Provider)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	callStart := s.now()
	result, err := adapter.RefundPayment(callCtx, provider.RefundInput{
		ProviderTransactionID: record.ProviderTransactionID,
		Amount:                req.Amount,
		Currency:              record.Currency,
		Reason:                req.Reason,
		IdempotencyKey:        idempotencyKey,
	})
	s.observeProvider(record.Provider, "refund", callStart)
	if err != nil {
		return nil, err
	}

	event.RefundID = result.RefundID
	event.Amount = result.Amount

	// refunded only when the provider reports a terminal refund state;
	// anything else stays processing until a status sync settles it.
	newStatus := models.StatusProcessing
	if result.Status.IsTerminalRefund() {
		newStatus = models.StatusRefunded
	}

	storeCtx, storeCancel := context.WithTimeout(ctx, s.storeTimeout)
	defer storeCancel()
	if err := s.store.UpdateRefund(storeCtx, record.ID, result.RefundID, string(result.Status), result.Amount, newStatus); err != nil {
		s.logger.ErrorContext(ctx, "refund record update failed after provider success",
			"payment_id", record.ID,
			"refund_id", result.RefundID,
			"error", err,
		)
	}

	resp := models.RefundPaymentResponse{
		RefundID:              result.RefundID,
		OriginalTransactionID: record.ProviderTransactionID,
		Amount:                result.Amount,
		Status:                result.Status,
		CreatedAt:             s.now().UTC().Format(time.RFC3339Nano),
		TraceID:               traceID,
		ProviderMetadata:      result.ProviderMetadata,
	}

	s.logger.InfoContext(ctx, "payment refunded",
		"payment_id", record.ID,
		"refund_id", result.RefundID,
		"amount", result.Amount,
	)

	return json.Marshal(resp)
}

// CheckPaymentStatus returns the locally known status after a best-effort
// sync with the provider. A failed sync is logged and swallowed.
func (s *Service) CheckPaymentStatus(ctx context.Context, authCtx *authmodels.AuthContext, paymentID string) (*models.PaymentStatusResponse, error) {
	record, err := s.findPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := authorizeTenant(authCtx, record); err != nil {
		return nil, err
	}

	s.syncStatus(ctx, record)

	return &models.PaymentStatusResponse{
		ID:                    record.ID,
		ProviderTransactionID: record.ProviderTransactionID,
		Provider:              record.Provider,
		Status:                record.Status,
		Amount:                record.Amount,
		Currency:              record.Currency,
		CreatedAt:             record.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:             record.UpdatedAt.Format(time.RFC3339Nano),
		TraceID:               platformMW.GetTraceID(ctx),
		RefundID:              record.RefundID,
		RefundStatus:          record.RefundStatus,
		RefundAmount:          record.RefundAmount,
	}, nil
}

func (s *Service) syncStatus(ctx context.Context, record *models.PaymentRecord) {
	adapter, err := s.providers.Resolve(record.Provider)
	if err != nil {
		s.logger.WarnContext(ctx, "status sync skipped, provider unavailable",
			"payment_id", record.ID,
			"provider", record.Provider,
		)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	result, err := adapter.GetPaymentStatus(callCtx, record.ProviderTransactionID)
	if err != nil {
		s.logger.WarnContext(ctx, "payment status sync failed",
			"payment_id", record.ID,
			"error", err,
		)
		return
	}

	if result.Status == record.Status {
		return
	}

	storeCtx, storeCancel := context.WithTimeout(ctx, s.storeTimeout)
	defer storeCancel()
	if err := s.store.UpdateStatus(storeCtx, record.ID, result.Status); err != nil {
		s.logger.WarnContext(ctx, "payment status update failed",
			"payment_id", record.ID,
			"error", err,
		)
		return
	}
	record.Status = result.Status
	record.UpdatedAt = s.now().UTC()
}

// ListPayments returns payment records matching the filter. Tenant contexts
// are pinned to their own records; admin contexts see everything.
func (s *Service) ListPayments(ctx context.Context, authCtx *authmodels.AuthContext, filter models.ListPaymentsFilter) (*models.ListPaymentsResponse, error) {
	if authCtx.IsTenant() {
		filter.TenantID = authCtx.TenantID
	}
	filter.Normalize()

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	records, total, err := s.store.List(storeCtx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "payment listing failed")
	}

	return &models.ListPaymentsResponse{
		Payments: records,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
		TraceID:  platformMW.GetTraceID(ctx),
	}, nil
}

// executeIdempotent wraps a side-effecting attempt with replay protection:
// a cached response returns immediately without invoking the attempt or
// writing audit; a fresh key claims the in-flight marker so concurrent
// requests elect one winner while losers poll for its cached result. Failed
// attempts are never cached, so a retry re-attempts.
func (s *Service) executeIdempotent(ctx context.Context, key string, event *audit.Event, successAction, failureAction audit.Action, attempt func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	start := s.now()

	if key == "" {
		return s.runAttempt(ctx, "", event, successAction, failureAction, start, attempt)
	}

	if cached := s.cachedResponse(ctx, key); cached != nil {
		s.countIdempotency("hit")
		return cached, nil
	}
	s.countIdempotency("miss")

	deadline := start.Add(s.claimWait)
	for {
		won, err := s.claim(ctx, key)
		if err != nil {
			// Claim coordination is an optimization over provider-side
			// deduplication; a broken store must not block payments.
			s.logger.WarnContext(ctx, "idempotency claim failed, proceeding without coordination",
				"error", err,
			)
			return s.runAttempt(ctx, key, event, successAction, failureAction, start, attempt)
		}
		if won {
			s.countIdempotency("claim_won")
			return s.runAttempt(ctx, key, event, successAction, failureAction, start, attempt)
		}

		// Another request holds the claim: poll for its cached result.
		s.countIdempotency("claim_wait")
		if cached := s.waitForResult(ctx, key, deadline); cached != nil {
			s.countIdempotency("hit")
			return cached, nil
		}
		if s.now().After(deadline) {
			// Winner never completed inside the claim window; attempt
			// ourselves rather than failing the request.
			return s.runAttempt(ctx, key, event, successAction, failureAction, start, attempt)
		}
		// Claim released without a cached result: the winner failed, so
		// retry the claim and attempt fresh.
	}
}

func (s *Service) runAttempt(ctx context.Context, key string, event *audit.Event, successAction, failureAction audit.Action, start time.Time, attempt func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	raw, err := attempt(ctx)
	latency := s.now().Sub(start).Milliseconds()

	if err != nil {
		if key != "" {
			s.release(ctx, key)
		}
		s.emitAudit(ctx, event, failureAction, latency, err)
		return nil, err
	}

	if key != "" {
		writeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		if cacheErr := s.idempotency.Set(writeCtx, key, raw); cacheErr != nil {
			s.logger.WarnContext(ctx, "idempotency cache write failed",
				"error", cacheErr,
			)
		}
		cancel()
		s.release(ctx, key)
	}

	s.emitAudit(ctx, event, successAction, latency, nil)
	return raw, nil
}

// cachedResponse reads the idempotency cache, treating store failure as a
// miss so a degraded store yields a fresh attempt rather than an error.
func (s *Service) cachedResponse(ctx context.Context, key string) []byte {
	readCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	cached, err := s.idempotency.Get(readCtx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "idempotency cache read failed, treating as miss",
			"error", err,
		)
		return nil
	}
	return cached
}

func (s *Service) claim(ctx context.Context, key string) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.idempotency.Claim(claimCtx, key)
}

func (s *Service) release(ctx context.Context, key string) {
	releaseCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.idempotency.Release(releaseCtx, key); err != nil {
		s.logger.WarnContext(ctx, "idempotency claim release failed",
			"error", err,
		)
	}
}

// waitForResult polls the cache until the winner's response appears, the
// claim disappears, or the deadline passes. Returns nil when no cached
// result materialized.
func (s *Service) waitForResult(ctx context.Context, key string, deadline time.Time) []byte {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for s.now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if cached := s.cachedResponse(ctx, key); cached != nil {
			return cached
		}

		// A free claim means the winner finished without caching (it
		// failed); hand control back so the caller re-claims.
		won, err := s.claim(ctx, key)
		if err != nil {
			continue
		}
		if won {
			s.release(ctx, key)
			return nil
		}
	}
	return nil
}

func (s *Service) findPayment(ctx context.Context, paymentID string) (*models.PaymentRecord, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	record, err := s.store.Find(storeCtx, paymentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.NewWithDetails(dErrors.CodePaymentNotFound,
			"payment not found: "+paymentID,
			map[string]any{"payment_id": paymentID})
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "payment lookup failed")
	}
	return record, nil
}

// authorizeTenant rejects cross-tenant access. Admin and static contexts see
// every record.
func authorizeTenant(authCtx *authmodels.AuthContext, record *models.PaymentRecord) error {
	if !authCtx.IsTenant() {
		return nil
	}
	if record.TenantID != "" && record.TenantID != authCtx.TenantID {
		return dErrors.New(dErrors.CodeForbidden, "payment belongs to another customer")
	}
	return nil
}

func (s *Service) emitAudit(ctx context.Context, event *audit.Event, action audit.Action, latencyMS int64, err error) {
	if s.auditor == nil {
		return
	}
	evt := *event
	evt.Action = action
	evt.LatencyMS = latencyMS
	if err != nil {
		evt.ErrorMessage = err.Error()
	}
	s.auditor.Emit(ctx, evt)
}

func (s *Service) countOperation(operation, outcome string) {
	if s.metrics != nil {
		s.metrics.Operations.WithLabelValues(operation, outcome).Inc()
	}
}

func (s *Service) countIdempotency(event string) {
	if s.metrics != nil {
		s.metrics.Idempotency.WithLabelValues(event).Inc()
	}
}

func (s *Service) observeProvider(p models.Provider, operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ProviderLatency.WithLabelValues(string(p), operation).Observe(s.now().Sub(start).Seconds())
	}
}

// Package service enforces tier-scoped sliding-window rate limits against the
// shared counter store.
//
// The limiter never fails a request because of its own infrastructure: on any
// store error it fails open, returning a full-quota result and logging the
// degradation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	authmodels "paygate/internal/auth/models"
	"paygate/internal/ratelimit/models"
)

// WindowStore is the sliding-window counter backend. CheckAndConsume must be
// atomic with respect to concurrent callers sharing an identifier.
type WindowStore interface {
	CheckAndConsume(ctx context.Context, identifier string, limit, windowSeconds int) (*models.Info, error)
	Peek(ctx context.Context, identifier string, limit, windowSeconds int) (*models.Info, error)
}

// Metrics holds Prometheus collectors for rate limit decisions.
type Metrics struct {
	Decisions  *prometheus.CounterVec
	FailOpens  prometheus.Counter
	CheckError prometheus.Counter
}

// NewMetrics registers and returns rate limit collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "paygate_ratelimit_decisions_total",
			Help: "Rate limit decisions by outcome",
		}, []string{"outcome"}),
		FailOpens: promauto.NewCounter(prometheus.CounterOpts{
			Name: "paygate_ratelimit_fail_open_total",
			Help: "Checks allowed because the counter store was unavailable",
		}),
		CheckError: promauto.NewCounter(prometheus.CounterOpts{
			Name: "paygate_ratelimit_store_errors_total",
			Help: "Counter store errors during rate limit checks",
		}),
	}
}

// Service enforces per-identifier rate limits. Thread-safe.
type Service struct {
	store         WindowStore
	logger        *slog.Logger
	metrics       *Metrics
	windowSeconds int
	storeTimeout  time.Duration
	now           func() time.Time
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

// WithWindow overrides the window length. Test hook.
func WithWindow(seconds int) Option {
	return func(s *Service) { s.windowSeconds = seconds }
}

// WithStoreTimeout bounds individual counter-store calls.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) { s.storeTimeout = d }
}

// New creates a rate limiting service over the given window store.
func New(store WindowStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("window store is required")
	}
	svc := &Service{
		store:         store,
		logger:        slog.Default(),
		windowSeconds: models.Window,
		storeTimeout:  5 * time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CheckAndConsume checks the identifier's window and consumes one slot if the
// quota allows. Never returns an error: store failures fail open.
func (s *Service) CheckAndConsume(ctx context.Context, identifier string, limit int) *models.Info {
	checkCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	info, err := s.store.CheckAndConsume(checkCtx, identifier, limit, s.windowSeconds)
	if err != nil {
		return s.failOpen(ctx, identifier, limit, err)
	}

	if s.metrics != nil {
		outcome := "allowed"
		if info.IsExceeded {
			outcome = "exceeded"
		}
		s.metrics.Decisions.WithLabelValues(outcome).Inc()
	}
	return info
}

// CheckRequest resolves the identifier and tier quota from the request's auth
// context and consumes a slot. A missing auth context is treated as an
// anonymous caller on the public quota.
func (s *Service) CheckRequest(ctx context.Context, authCtx *authmodels.AuthContext, clientIP string) *models.Info {
	identifier := models.Identifier(authCtx, clientIP)
	limit := models.TierLimit(tierOf(authCtx))
	return s.CheckAndConsume(ctx, identifier, limit)
}

// Current reports the identifier's window state without consuming a slot.
// Informational accessor for response bodies; also fails open.
func (s *Service) Current(ctx context.Context, authCtx *authmodels.AuthContext, clientIP string) *models.Info {
	identifier := models.Identifier(authCtx, clientIP)
	limit := models.TierLimit(tierOf(authCtx))

	peekCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	info, err := s.store.Peek(peekCtx, identifier, limit, s.windowSeconds)
	if err != nil {
		return s.failOpen(ctx, identifier, limit, err)
	}
	return info
}

func tierOf(authCtx *authmodels.AuthContext) authmodels.Tier {
	if authCtx == nil {
		return authmodels.TierPublic
	}
	return authCtx.Tier
}

func (s *Service) failOpen(ctx context.Context, identifier string, limit int, err error) *models.Info {
	s.logger.WarnContext(ctx, "rate limit check failed, failing open",
		"identifier", identifier,
		"error", err,
	)
	if s.metrics != nil {
		s.metrics.CheckError.Inc()
		s.metrics.FailOpens.Inc()
	}
	return &models.Info{
		Limit:      limit,
		Remaining:  limit,
		ResetAt:    s.now().Unix() + int64(s.windowSeconds),
		IsExceeded: false,
	}
}

// Package service implements the request authenticator.
//
// Resolution order, first match wins:
//
//  1. public route allow-list (and any OPTIONS request)
//  2. session token, when no API key is presented
//  3. bootstrap credential, only on its allow-listed routes
//  4. static admin credentials
//  5. API key cache
//  6. credential store, populating the cache on success
//
// Cache failures degrade to credential-store lookups; credential-store
// failures are surfaced as internal errors, never as invalid credentials.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"paygate/internal/auth/metrics"
	"paygate/internal/auth/models"
	dErrors "paygate/pkg/domain-errors"
	"paygate/pkg/platform/sentinel"
)

// CredentialStore resolves presented secrets against durable credential data.
// Error contract: lookups return sentinel.ErrNotFound for absent rows and
// sentinel.ErrUnavailable for infrastructure failures.
type CredentialStore interface {
	FindActiveCredential(ctx context.Context, value string) (*models.Identity, error)
	FindTenantBySubject(ctx context.Context, subject string) (*models.Identity, error)
	FindTenantByEmail(ctx context.Context, email string) (*models.Identity, error)
	BindSubject(ctx context.Context, tenantID, subject string) error
	TouchLastUsed(ctx context.Context, credentialID string) error
}

// IdentityCache caches resolved API-key identities in the shared store.
type IdentityCache interface {
	Get(ctx context.Context, credential string) (*models.Identity, error)
	Set(ctx context.Context, credential string, identity *models.Identity) error
	Delete(ctx context.Context, credential string) error
}

// Config carries the static credential material and route allow-lists.
type Config struct {
	BootstrapKey    string
	StaticKeys      []string
	PublicRoutes    models.RouteSet
	BootstrapRoutes models.RouteSet
}

// Service is the authenticator. Safe for concurrent use.
type Service struct {
	cfg          Config
	creds        CredentialStore
	cache        IdentityCache
	staticKeys   map[string]struct{}
	logger       *slog.Logger
	metrics      *metrics.Metrics
	storeTimeout time.Duration

	// lookups collapses concurrent credential-store reads for the same key so
	// a cold cache does not stampede the store.
	lookups singleflight.Group
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithStoreTimeout bounds individual credential-store and cache calls.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) { s.storeTimeout = d }
}

// New creates an authenticator backed by the given credential store and cache.
// The cache may be nil (every lookup goes to the store).
func New(cfg Config, creds CredentialStore, cache IdentityCache, opts ...Option) (*Service, error) {
	if creds == nil {
		return nil, errors.New("credential store is required")
	}
	if cfg.PublicRoutes == nil {
		cfg.PublicRoutes = models.DefaultPublicRoutes()
	}
	if cfg.BootstrapRoutes == nil {
		cfg.BootstrapRoutes = models.DefaultBootstrapRoutes()
	}

	svc := &Service{
		cfg:          cfg,
		creds:        creds,
		cache:        cache,
		staticKeys:   make(map[string]struct{}, len(cfg.StaticKeys)),
		logger:       slog.Default(),
		storeTimeout: 5 * time.Second,
	}
	for _, k := range cfg.StaticKeys {
		svc.staticKeys[k] = struct{}{}
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// IsPublicRoute reports whether the endpoint bypasses authentication (and,
// by the same allow-list, rate limiting).
func (s *Service) IsPublicRoute(method, path string) bool {
	if models.IsAuthBypassMethod(method) {
		return true
	}
	return s.cfg.PublicRoutes.Contains(method, path)
}

// Authenticate resolves the presented credentials into an AuthContext.
func (s *Service) Authenticate(ctx context.Context, method, path string, presented models.PresentedCredentials) (*models.AuthContext, error) {
	if s.IsPublicRoute(method, path) {
		s.countResolution("public")
		return &models.AuthContext{Tier: models.TierPublic}, nil
	}

	// Session tokens take priority only when no primary API key is presented.
	if presented.APIKey == "" && presented.SessionToken != "" {
		if authCtx := s.resolveSessionToken(ctx, presented.SessionToken); authCtx != nil {
			s.countResolution("session")
			return authCtx, nil
		}
	}

	if presented.APIKey == "" {
		return nil, s.fail(dErrors.CodeMissingCredential, "API key is required. Provide it via X-API-Key header.")
	}

	if s.cfg.BootstrapKey != "" && presented.APIKey == s.cfg.BootstrapKey {
		if !s.cfg.BootstrapRoutes.Contains(method, path) {
			return nil, s.fail(dErrors.CodeBootstrapNotAllowed, "Bootstrap API key can only be used for API key creation.")
		}
		s.countResolution("bootstrap")
		s.logger.DebugContext(ctx, "bootstrap key authentication", "method", method, "path", path)
		return &models.AuthContext{Tier: models.TierAdmin, IsBootstrap: true}, nil
	}

	if _, ok := s.staticKeys[presented.APIKey]; ok {
		s.countResolution("static")
		return &models.AuthContext{Tier: models.TierAdmin, IsStatic: true}, nil
	}

	if identity := s.cachedIdentity(ctx, presented.APIKey); identity != nil {
		s.countResolution("cache")
		return tenantContext(identity), nil
	}

	identity, err := s.lookupCredential(ctx, presented.APIKey)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, s.fail(dErrors.CodeInvalidCredential, "Invalid or inactive API key.")
		}
		// Store unreachable is an outage, not an invalid credential.
		s.countFailure(dErrors.CodeInternal)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "credential store unavailable")
	}

	s.populateCache(ctx, presented.APIKey, identity)
	s.touchLastUsed(identity.CredentialID)

	s.countResolution("store")
	return tenantContext(identity), nil
}

// InvalidateCredential drops the cache entry for a rotated or revoked key.
// This is the authenticator's contract toward credential management: stale
// entries must be deleted, not left to expire.
func (s *Service) InvalidateCredential(ctx context.Context, credential string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, credential); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "invalidate credential cache")
	}
	return nil
}

// resolveSessionToken structurally decodes a bearer session token and resolves
// its subject to a tenant. Signature verification belongs to the identity
// provider in front of the gateway; a token that fails to decode or resolve
// simply yields nil so the chain continues.
func (s *Service) resolveSessionToken(ctx context.Context, token string) *models.AuthContext {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		s.logger.DebugContext(ctx, "session token decode failed", "error", err)
		return nil
	}

	subject, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if subject == "" {
		return nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	identity, err := s.creds.FindTenantBySubject(lookupCtx, subject)
	if err != nil && errors.Is(err, sentinel.ErrNotFound) && email != "" {
		identity, err = s.creds.FindTenantByEmail(lookupCtx, email)
		if err == nil {
			// Best-effort back-fill so the next lookup hits the subject path.
			go func(tenantID string) {
				bindCtx, bindCancel := context.WithTimeout(context.Background(), s.storeTimeout)
				defer bindCancel()
				if bindErr := s.creds.BindSubject(bindCtx, tenantID, subject); bindErr != nil {
					s.logger.Warn("subject back-fill failed", "tenant_id", tenantID, "error", bindErr)
				}
			}(identity.TenantID)
		}
	}
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "session token tenant lookup failed", "error", err)
		}
		return nil
	}

	return &models.AuthContext{TenantID: identity.TenantID, Tier: identity.Tier}
}

// cachedIdentity reads the API-key cache, treating any cache failure as a miss.
func (s *Service) cachedIdentity(ctx context.Context, key string) *models.Identity {
	if s.cache == nil {
		return nil
	}

	cacheCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	identity, err := s.cache.Get(cacheCtx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "apikey cache read failed", "error", err)
		if s.metrics != nil {
			s.metrics.CacheMisses.Inc()
		}
		return nil
	}
	if s.metrics != nil {
		if identity != nil {
			s.metrics.CacheHits.Inc()
		} else {
			s.metrics.CacheMisses.Inc()
		}
	}
	return identity
}

func (s *Service) lookupCredential(ctx context.Context, key string) (*models.Identity, error) {
	start := time.Now()
	v, err, _ := s.lookups.Do(key, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
		return s.creds.FindActiveCredential(lookupCtx, key)
	})
	if s.metrics != nil {
		s.metrics.StoreLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}
	return v.(*models.Identity), nil
}

func (s *Service) populateCache(ctx context.Context, key string, identity *models.Identity) {
	if s.cache == nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.cache.Set(cacheCtx, key, identity); err != nil {
		s.logger.WarnContext(ctx, "apikey cache write failed", "error", err)
	}
}

// touchLastUsed records credential usage asynchronously; failures never
// affect the request.
func (s *Service) touchLastUsed(credentialID string) {
	if credentialID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.storeTimeout)
		defer cancel()
		if err := s.creds.TouchLastUsed(ctx, credentialID); err != nil {
			s.logger.Warn("touch last-used failed", "credential_id", credentialID, "error", err)
		}
	}()
}

func (s *Service) fail(code dErrors.Code, msg string) error {
	s.countFailure(code)
	return dErrors.New(code, msg)
}

func (s *Service) countResolution(path string) {
	if s.metrics != nil {
		s.metrics.Resolutions.WithLabelValues(path).Inc()
	}
}

func (s *Service) countFailure(code dErrors.Code) {
	if s.metrics != nil {
		s.metrics.Failures.WithLabelValues(string(code)).Inc()
	}
}

func tenantContext(identity *models.Identity) *models.AuthContext {
	return &models.AuthContext{
		TenantID:     identity.TenantID,
		Tier:         identity.Tier,
		CredentialID: identity.CredentialID,
	}
}

// Package server provides the HTTP API behind the cleaning business site:
// price estimates, service areas, reviews, contact leads and the admin
// dashboard.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santoscsolutions/site/internal/config"
	"github.com/santoscsolutions/site/internal/db"
	"github.com/santoscsolutions/site/internal/pricing"
	"github.com/santoscsolutions/site/internal/server/middleware"
	"github.com/santoscsolutions/site/internal/server/ratelimit"
	"go.uber.org/zap"
)

// DefaultAllowedOrigins is the CORS allow-list used when none is configured.
var DefaultAllowedOrigins = []string{
	"https://santoscsolutions.com",
	"https://www.santoscsolutions.com",
	"http://localhost:3000",
	"http://localhost:5173",
}

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Store is the persistence the API needs. *db.DB implements it.
type Store interface {
	Ping(ctx context.Context) error
	CreateLead(ctx context.Context, lead *db.Lead) (*db.Lead, error)
	ListLeads(ctx context.Context, filter db.LeadFilter) ([]db.Lead, int, error)
	UpdateLead(ctx context.Context, id uuid.UUID, update db.LeadUpdate) (bool, error)
	DeleteLead(ctx context.Context, id uuid.UUID) (bool, error)
	UpsertReviews(ctx context.Context, reviews []db.ReviewInput, received time.Time) db.UpsertResult
	ListActiveReviews(ctx context.Context, limit int) ([]db.Review, error)
	ReviewRatings(ctx context.Context) (*db.RatingSummary, error)
}

var _ Store = (*db.DB)(nil)

// Options holds server dependencies and settings. Zero values select
// defaults; a nil Store runs the server without a database.
type Options struct {
	Port           int
	AllowedOrigins []string // "*" allows any origin
	WebhookSecret  string
	Store          Store
	PriceTable     *pricing.PriceTable
	ServiceAreas   *pricing.ServiceAreaTable
	JWT            *config.JWTConfig // nil disables the admin routes
	Admin          *config.AdminCredentials
	Passwords      *config.PasswordConfig
	RateLimit      *ratelimit.Config
	Logger         *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	handler    http.Handler

	store         Store
	table         pricing.PriceTable
	estimator     *pricing.Estimator
	areas         pricing.ServiceAreaTable
	origins       map[string]bool
	anyOrigin     bool
	webhookSecret string

	jwtService *JWTService
	admin      *config.AdminCredentials
	passwords  *config.PasswordConfig

	rateLimiter *ratelimit.Limiter
	logger      *zap.Logger
	now         func() time.Time
}

// New creates a new server instance
func New(opts Options) (*Server, error) {
	table := pricing.DefaultTable()
	if opts.PriceTable != nil {
		table = *opts.PriceTable
	}
	estimator, err := pricing.NewEstimator(table)
	if err != nil {
		return nil, fmt.Errorf("invalid price table: %w", err)
	}

	areas := pricing.DefaultServiceAreas()
	if opts.ServiceAreas != nil {
		areas = *opts.ServiceAreas
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if opts.JWT != nil && (opts.Admin == nil || opts.Passwords == nil) {
		return nil, fmt.Errorf("admin credentials and password config are required with JWT")
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}

	s := &Server{
		store:         opts.Store,
		table:         table,
		estimator:     estimator,
		areas:         areas,
		origins:       make(map[string]bool, len(origins)),
		webhookSecret: opts.WebhookSecret,
		admin:         opts.Admin,
		passwords:     opts.Passwords,
		rateLimiter:   ratelimit.NewLimiter(opts.RateLimit),
		logger:        logger,
		now:           time.Now,
	}
	for _, o := range origins {
		if o == "*" {
			s.anyOrigin = true
		}
		s.origins[strings.TrimRight(o, "/")] = true
	}
	if opts.JWT != nil {
		s.jwtService = NewJWTService(opts.JWT)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	// Pricing
	mux.HandleFunc("GET /api/estimate", s.handleEstimateQuery)
	mux.HandleFunc("POST /api/estimate", s.handleEstimateJSON)
	mux.HandleFunc("GET /api/service-area", s.handleServiceArea)
	mux.HandleFunc("GET /api/services", s.handleServices)

	// Reviews
	mux.HandleFunc("GET /api/reviews", s.handleReviews)
	mux.HandleFunc("GET /api/reviews/stats", s.handleReviewStats)
	mux.HandleFunc("POST /api/webhook/reviews-update", s.handleReviewsWebhook)

	// Leads
	mux.HandleFunc("POST /api/contact", s.handleContact)
	mux.HandleFunc("POST /api/admin/login", s.handleAdminLogin)
	mux.Handle("GET /api/leads", s.requireAdmin(s.handleListLeads))
	mux.Handle("PUT /api/leads/{id}", s.requireAdmin(s.handleUpdateLead))
	mux.Handle("DELETE /api/leads/{id}", s.requireAdmin(s.handleDeleteLead))

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Close releases background resources. The store is owned by the caller.
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

// requireAdmin wraps h with bearer-token authentication.
func (s *Server) requireAdmin(h http.HandlerFunc) http.Handler {
	if s.jwtService == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			s.writeError(w, &ErrUnavailable{Dependency: "admin login"})
		})
	}
	return middleware.AuthMiddleware(s.jwtService.AsTokenValidator())(h)
}

// withCORS answers preflight requests and echoes allowed origins.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && (s.anyOrigin || s.origins[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Webhook-Secret")
			w.Header().Set("Access-Control-Max-Age", "600")
		}
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(extractClientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// writeError maps err to a status code. Internal errors are logged and
// reported without detail.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
		s.errorResponse(w, status, "internal server error")
		return
	}
	s.errorResponse(w, status, err.Error())
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return &ErrValidation{Field: "body", Message: "invalid JSON"}
	}
	return nil
}

// extractClientID returns the peer IP used for rate limiting.
func extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// forwardedIP returns the first X-Forwarded-For hop, falling back to the peer.
// It is recorded with leads and never used for access decisions.
func forwardedIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	return extractClientID(r)
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.UTC().Format(time.RFC3339)
	}
	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds())
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	s.logger.Warn("rate limit exceeded",
		zap.String("client", extractClientID(r)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("limit", info.Limit),
	)

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// Package edge serves the site through an offline cache manager and rotates
// to a new cache generation when a deploy publishes a new asset manifest.
package edge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/santoscsolutions/site/internal/offline"
	"go.uber.org/zap"
)

// DefaultInterval is how often the upstream manifest is rechecked.
const DefaultInterval = 5 * time.Minute

// ManagerFactory builds a fresh manager with an empty manifest memo.
type ManagerFactory func() (*offline.Manager, error)

// Server wraps the currently active manager.
type Server struct {
	factory  ManagerFactory
	interval time.Duration
	logger   *zap.Logger

	current atomic.Pointer[offline.Manager]
	// refreshMu serializes generation changes.
	refreshMu sync.Mutex
}

// New creates an edge server. Call Start before serving.
func New(factory ManagerFactory, interval time.Duration, logger *zap.Logger) *Server {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		factory:  factory,
		interval: interval,
		logger:   logger.With(zap.String("component", "edge")),
	}
}

// Start installs and activates the first generation. If the manifest is
// unreachable the manager serves from whatever the store already holds until
// a later Refresh finds one.
func (s *Server) Start(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	m, err := s.factory()
	if err != nil {
		return fmt.Errorf("failed to create cache manager: %w", err)
	}
	if err := s.promote(ctx, m); err != nil {
		return err
	}
	s.current.Store(m)
	return nil
}

// Refresh builds a new manager and swaps it in when its generation differs
// from the current one. While the manifest cannot be fetched the current
// manager keeps serving. It reports whether a swap happened.
func (s *Server) Refresh(ctx context.Context) (bool, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	old := s.current.Load()
	if old == nil {
		return false, errors.New("edge: not started")
	}

	next, err := s.factory()
	if err != nil {
		return false, fmt.Errorf("failed to create cache manager: %w", err)
	}

	if _, err := next.LoadManifest(ctx); err != nil {
		s.logger.Warn("asset manifest unavailable, keeping current generation", zap.Error(err))
		return false, nil
	}

	oldGen := old.ResolveGeneration(ctx)
	newGen := next.ResolveGeneration(ctx)
	if newGen == oldGen {
		s.logger.Debug("generation unchanged", zap.String("generation", oldGen))
		return false, nil
	}

	if err := s.promote(ctx, next); err != nil {
		return false, err
	}
	s.current.Store(next)
	old.Supersede()

	s.logger.Info("generation rotated", zap.String("from", oldGen), zap.String("to", newGen))
	return true, nil
}

func (s *Server) promote(ctx context.Context, m *offline.Manager) error {
	report, err := m.Install(ctx)
	if err != nil {
		return fmt.Errorf("install failed: %w", err)
	}
	for _, f := range report.Failed {
		s.logger.Debug("resource not precached", zap.String("url", f.URL), zap.String("reason", f.Reason))
	}
	if _, err := m.Activate(ctx); err != nil {
		return fmt.Errorf("activate failed: %w", err)
	}
	return nil
}

// Run rechecks the manifest every interval until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil {
				s.logger.Warn("refresh failed", zap.Error(err))
			}
		}
	}
}

// Generation returns the serving generation, or "" before Start.
func (s *Server) Generation(ctx context.Context) string {
	m := s.current.Load()
	if m == nil {
		return ""
	}
	return m.ResolveGeneration(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m := s.current.Load()
	if m == nil {
		http.Error(w, "cache not ready", http.StatusServiceUnavailable)
		return
	}
	m.ServeHTTP(w, r)
}

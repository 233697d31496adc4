package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultPrefix is the cache name prefix when none is configured.
const DefaultPrefix = "santos"

// DefaultConcurrency bounds parallel fetches during install.
const DefaultConcurrency = 6

// ErrUnrecoverable is returned when neither the network nor any cache can
// answer a request.
var ErrUnrecoverable = errors.New("no network response and no cached fallback")

// ErrInstalled is returned by Install once a manager has been activated or
// superseded.
var ErrInstalled = errors.New("offline: manager already activated")

// State is a manager's lifecycle stage.
type State string

const (
	StateInstalling State = "installing"
	StateWaiting    State = "waiting"
	StateActive     State = "active"
	StateSuperseded State = "superseded"
)

// Fetcher performs network requests on the manager's behalf.
type Fetcher interface {
	Fetch(ctx context.Context, req *http.Request) (*Response, error)
}

// Config configures a Manager.
type Config struct {
	// Origin is the site's own origin, e.g. https://santoscsolutions.com.
	Origin string
	// Prefix namespaces cache names so foreign caches are left alone.
	Prefix string
	// ExtraPrecache lists additional URLs (fonts, CDN stylesheets) stored at install.
	ExtraPrecache []string
	// Concurrency bounds install fan-out.
	Concurrency int
}

// FailedResource records a precache URL that could not be stored.
type FailedResource struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// InstallReport summarizes an install.
type InstallReport struct {
	Generation string           `json:"generation"`
	Cache      string           `json:"cache"`
	Cached     int              `json:"cached"`
	Failed     []FailedResource `json:"failed,omitempty"`
}

// Manager owns one cache generation and routes requests through it.
type Manager struct {
	cfg     Config
	origin  *url.URL
	store   Store
	fetcher Fetcher
	logger  *zap.Logger

	stateMu sync.RWMutex
	state   State

	manifestGroup singleflight.Group
	manifestMu    sync.Mutex
	manifestDone  bool
	manifest      *Manifest
	manifestErr   error
}

// NewManager creates a manager in the installing state.
func NewManager(cfg Config, store Store, fetcher Fetcher, logger *zap.Logger) (*Manager, error) {
	origin, err := parseOrigin(cfg.Origin)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("offline: store is required")
	}
	if fetcher == nil {
		return nil, errors.New("offline: fetcher is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		cfg:     cfg,
		origin:  origin,
		store:   store,
		fetcher: fetcher,
		logger:  logger.With(zap.String("component", "offline")),
		state:   StateInstalling,
	}, nil
}

func parseOrigin(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("offline: invalid origin %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("offline: origin %q must be absolute", raw)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}, nil
}

// State returns the current lifecycle stage.
func (m *Manager) State() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.stateMu.Lock()
	m.state = s
	m.stateMu.Unlock()
}

// Origin returns the origin the manager serves.
func (m *Manager) Origin() string {
	return m.origin.Scheme + "://" + m.origin.Host
}

// PrecacheName is the name of the install-time cache for a generation.
func (m *Manager) PrecacheName(generation string) string {
	return m.cfg.Prefix + "-precache-" + generation
}

// RuntimeName is the name of the write-through cache for a generation.
func (m *Manager) RuntimeName(generation string) string {
	return m.cfg.Prefix + "-runtime-" + generation
}

// owns reports whether name follows this manager's naming scheme.
func (m *Manager) owns(name string) bool {
	rest, ok := strings.CutPrefix(name, m.cfg.Prefix+"-")
	if !ok {
		return false
	}
	return strings.HasPrefix(rest, "precache-") || strings.HasPrefix(rest, "runtime-")
}

// Install stores every precache URL in the generation's precache. Individual
// fetch or store failures are collected in the report, never returned.
// Install may be repeated until Activate; after that it fails with
// ErrInstalled.
func (m *Manager) Install(ctx context.Context) (*InstallReport, error) {
	m.stateMu.Lock()
	if m.state == StateActive || m.state == StateSuperseded {
		m.stateMu.Unlock()
		return nil, ErrInstalled
	}
	m.state = StateInstalling
	m.stateMu.Unlock()

	generation := m.ResolveGeneration(ctx)
	name := m.PrecacheName(generation)
	cache, err := m.store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open precache: %w", err)
	}

	urls := m.PrecacheList(ctx)
	report := &InstallReport{Generation: generation, Cache: name}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(m.cfg.Concurrency)
	for _, u := range urls {
		g.Go(func() error {
			err := m.add(ctx, cache, u)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				m.logger.Warn("precache failed", zap.String("url", u), zap.Error(err))
				report.Failed = append(report.Failed, FailedResource{URL: u, Reason: err.Error()})
				return nil
			}
			report.Cached++
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Failed, func(i, j int) bool {
		return report.Failed[i].URL < report.Failed[j].URL
	})

	m.setState(StateWaiting)
	m.logger.Info("installed",
		zap.String("generation", generation),
		zap.Int("cached", report.Cached),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (m *Manager) add(ctx context.Context, cache Cache, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := m.fetcher.Fetch(ctx, req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("unexpected status %d", resp.Status)
	}
	return cache.Put(ctx, RequestKey(http.MethodGet, target), resp)
}

// Activate deletes every cache this manager owns from other generations and
// starts routing requests. It returns the deleted cache names. Without a
// manifest nothing is deleted: a fallback generation cannot tell a site
// without a manifest from an unreachable origin.
func (m *Manager) Activate(ctx context.Context) ([]string, error) {
	generation := m.ResolveGeneration(ctx)
	if _, err := m.LoadManifest(ctx); err != nil {
		m.setState(StateActive)
		m.logger.Warn("activated without manifest, keeping existing caches",
			zap.String("generation", generation), zap.Error(err))
		return nil, nil
	}

	current := map[string]bool{
		m.PrecacheName(generation): true,
		m.RuntimeName(generation):  true,
	}

	names, err := m.store.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list caches: %w", err)
	}

	var deleted []string
	for _, name := range names {
		if !m.owns(name) || current[name] {
			continue
		}
		if _, err := m.store.Delete(ctx, name); err != nil {
			return deleted, fmt.Errorf("failed to delete stale cache %s: %w", name, err)
		}
		deleted = append(deleted, name)
	}

	m.setState(StateActive)
	m.logger.Info("activated", zap.String("generation", generation), zap.Strings("deleted", deleted))
	return deleted, nil
}

// Supersede retires the manager. Later requests pass straight to the network.
func (m *Manager) Supersede() {
	m.setState(StateSuperseded)
}

// Handle answers a request, choosing between network and cache by request
// kind. It fails only with ErrUnrecoverable.
func (m *Manager) Handle(ctx context.Context, r *http.Request) (*Response, error) {
	target := m.targetURL(r)

	if m.State() != StateActive || r.Method != http.MethodGet {
		resp, err := m.network(ctx, r, target)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnrecoverable, err)
		}
		return resp, nil
	}

	switch {
	case !m.sameOrigin(target):
		return m.crossOrigin(ctx, r, target)
	case isNavigation(r):
		return m.navigation(ctx, r, target)
	default:
		return m.static(ctx, r, target)
	}
}

// crossOrigin is network-first with a store-wide fallback and no write.
func (m *Manager) crossOrigin(ctx context.Context, r *http.Request, target string) (*Response, error) {
	resp, netErr := m.network(ctx, r, target)
	if netErr == nil {
		return resp, nil
	}
	if cached, ok := m.match(ctx, RequestKey(http.MethodGet, target)); ok {
		return cached.from(SourceCache), nil
	}
	return nil, fmt.Errorf("%w: %w", ErrUnrecoverable, netErr)
}

// navigation is network-first with write-through, then runtime, then offline.
func (m *Manager) navigation(ctx context.Context, r *http.Request, target string) (*Response, error) {
	key := RequestKey(http.MethodGet, target)

	resp, netErr := m.network(ctx, r, target)
	if netErr == nil {
		if resp.Status == http.StatusOK {
			m.putRuntime(ctx, key, resp)
		}
		return resp, nil
	}

	runtime, err := m.store.Open(ctx, m.RuntimeName(m.ResolveGeneration(ctx)))
	if err == nil {
		if cached, ok, _ := runtime.Get(ctx, key); ok {
			return cached.from(SourceCache), nil
		}
	}
	return m.offline(ctx, netErr)
}

// static is cache-first, then network with a runtime copy, then offline.
func (m *Manager) static(ctx context.Context, r *http.Request, target string) (*Response, error) {
	key := RequestKey(http.MethodGet, target)
	if cached, ok := m.match(ctx, key); ok {
		return cached.from(SourceCache), nil
	}

	resp, netErr := m.network(ctx, r, target)
	if netErr != nil {
		return m.offline(ctx, netErr)
	}
	if resp.Cacheable() {
		m.putRuntime(ctx, key, resp)
	}
	return resp, nil
}

func (m *Manager) offline(ctx context.Context, cause error) (*Response, error) {
	if fallback, ok := m.match(ctx, RequestKey(http.MethodGet, m.resolve(OfflinePath))); ok {
		return fallback.from(SourceOffline), nil
	}
	return nil, fmt.Errorf("%w: %w", ErrUnrecoverable, cause)
}

func (m *Manager) match(ctx context.Context, key string) (*Response, bool) {
	resp, ok, err := m.store.Match(ctx, key)
	if err != nil {
		m.logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return resp, ok
}

func (m *Manager) putRuntime(ctx context.Context, key string, resp *Response) {
	cache, err := m.store.Open(ctx, m.RuntimeName(m.ResolveGeneration(ctx)))
	if err == nil {
		err = cache.Put(ctx, key, resp)
	}
	if err != nil {
		m.logger.Warn("runtime cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (m *Manager) network(ctx context.Context, r *http.Request, target string) (*Response, error) {
	var body io.Reader
	if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}
	out, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, err
	}
	out.Header = r.Header.Clone()
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	// Stored bodies are shared by every client, so let the transport negotiate
	// and decode compression.
	out.Header.Del("Accept-Encoding")

	resp, err := m.fetcher.Fetch(ctx, out)
	if err != nil {
		return nil, err
	}
	resp.Source = SourceNetwork
	return resp, nil
}

// targetURL makes the request URL absolute against the manager's origin.
func (m *Manager) targetURL(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	return m.resolve(r.URL.RequestURI())
}

func (m *Manager) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return m.origin.ResolveReference(u).String()
}

func (m *Manager) sameOrigin(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return u.Scheme == m.origin.Scheme && u.Host == m.origin.Host
}

func isNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// hopHeaders are not copied from stored responses to the client.
var hopHeaders = []string{"Connection", "Content-Length", "Keep-Alive", "Transfer-Encoding", "Upgrade"}

// ServeHTTP makes the manager usable as the edge handler.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := m.Handle(r.Context(), r)
	if err != nil {
		m.logger.Warn("request unrecoverable", zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache-Source", "none")
		w.WriteHeader(http.StatusGatewayTimeout)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "site is offline and this page has not been cached",
		})
		return
	}

	header := w.Header()
	for k, vs := range resp.Header {
		header[k] = append([]string(nil), vs...)
	}
	for _, h := range hopHeaders {
		header.Del(h)
	}
	header.Set("X-Cache-Source", string(resp.Source))

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(resp.Body)
	}
}

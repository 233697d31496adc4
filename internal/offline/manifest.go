package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/santoscsolutions/site/internal/schemas"
	"go.uber.org/zap"
)

// ManifestPath is where the build publishes its asset manifest.
const ManifestPath = "/asset-manifest.json"

// FallbackGeneration names the cache generation when no manifest hash is
// available.
const FallbackGeneration = "static"

// OfflinePath is the document served when nothing better is available.
const OfflinePath = "/offline.html"

// mainBundleKey is the manifest entry whose filename hash names a generation.
const mainBundleKey = "main.js"

var bundleHashPattern = regexp.MustCompile(`main\.([0-9a-fA-F]{8,})\.js$`)

// baselinePaths are precached regardless of the manifest.
var baselinePaths = []string{
	"/",
	OfflinePath,
	"/robots.txt",
	"/sitemap.xml",
	"/favicon.ico",
	"/manifest.json",
}

// Manifest is the build's asset manifest.
type Manifest struct {
	Files       map[string]string `json:"files"`
	Entrypoints []string          `json:"entrypoints,omitempty"`
}

// ParseManifest validates and decodes an asset manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	if err := schemas.ValidateNamed(schemas.AssetManifest, data); err != nil {
		return nil, fmt.Errorf("invalid asset manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode asset manifest: %w", err)
	}
	return &m, nil
}

// Generation derives the short identifier from the main bundle's filename.
func (m *Manifest) Generation() string {
	if m == nil {
		return FallbackGeneration
	}
	match := bundleHashPattern.FindStringSubmatch(m.Files[mainBundleKey])
	if match == nil {
		return FallbackGeneration
	}
	return strings.ToLower(match[1][:8])
}

// Assets lists every entrypoint and non-map file in the manifest.
func (m *Manifest) Assets() []string {
	if m == nil {
		return nil
	}
	assets := make([]string, 0, len(m.Files)+len(m.Entrypoints))
	assets = append(assets, m.Entrypoints...)
	for _, file := range m.Files {
		if strings.HasSuffix(file, ".map") {
			continue
		}
		assets = append(assets, file)
	}
	return assets
}

// LoadManifest fetches the manifest once for the manager's lifetime.
// Concurrent callers share the in-flight request and failures are remembered
// like successes. The fetch itself is detached from ctx, which only bounds
// how long this caller waits.
func (m *Manager) LoadManifest(ctx context.Context) (*Manifest, error) {
	m.manifestMu.Lock()
	if m.manifestDone {
		defer m.manifestMu.Unlock()
		return m.manifest, m.manifestErr
	}
	m.manifestMu.Unlock()

	ch := m.manifestGroup.DoChan("manifest", func() (any, error) {
		manifest, err := m.fetchManifest(context.WithoutCancel(ctx))

		m.manifestMu.Lock()
		m.manifest, m.manifestErr, m.manifestDone = manifest, err, true
		m.manifestMu.Unlock()

		return manifest, err
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for asset manifest: %w", ctx.Err())
	case res := <-ch:
		manifest, _ := res.Val.(*Manifest)
		return manifest, res.Err
	}
}

func (m *Manager) fetchManifest(ctx context.Context) (*Manifest, error) {
	target := m.resolve(ManifestPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build manifest request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := m.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch asset manifest: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("failed to fetch asset manifest: status %d", resp.Status)
	}
	return ParseManifest(resp.Body)
}

// ResolveGeneration returns the current cache generation. A missing or
// invalid manifest yields FallbackGeneration.
func (m *Manager) ResolveGeneration(ctx context.Context) string {
	manifest, err := m.LoadManifest(ctx)
	if err != nil {
		m.logger.Debug("asset manifest unavailable, using fallback generation", zap.Error(err))
		return FallbackGeneration
	}
	return manifest.Generation()
}

// PrecacheList returns the absolute URLs to store at install, sorted.
func (m *Manager) PrecacheList(ctx context.Context) []string {
	set := make(map[string]struct{})
	for _, p := range baselinePaths {
		set[m.resolve(p)] = struct{}{}
	}
	if manifest, err := m.LoadManifest(ctx); err == nil {
		for _, asset := range manifest.Assets() {
			set[m.resolve(asset)] = struct{}{}
		}
	}
	for _, extra := range m.cfg.ExtraPrecache {
		set[m.resolve(extra)] = struct{}{}
	}

	urls := make([]string, 0, len(set))
	for u := range set {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

package offline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testOrigin     = "https://santos.example"
	testFontURL    = "https://fonts.example.net/inter.css"
	testGeneration = "9b3e51d7"
)

const testManifest = `{
	"files": {
		"main.css": "/static/css/main.4f1c2a9e.css",
		"main.js": "/static/js/main.9b3e51d7.js",
		"main.js.map": "/static/js/main.9b3e51d7.js.map",
		"index.html": "/index.html"
	},
	"entrypoints": ["static/css/main.4f1c2a9e.css", "static/js/main.9b3e51d7.js"]
}`

var errNetworkDown = errors.New("network unreachable")

type route struct {
	status int
	body   string
	err    error
}

// fakeNetwork is an in-memory Fetcher. Unknown URLs answer 404.
type fakeNetwork struct {
	mu      sync.Mutex
	routes  map[string]route
	offline bool
	calls   map[string]int
	bodies  map[string]string
}

func newFakeNetwork() *fakeNetwork {
	n := &fakeNetwork{
		routes: make(map[string]route),
		calls:  make(map[string]int),
		bodies: make(map[string]string),
	}
	n.serve("/asset-manifest.json", testManifest)
	for _, p := range []string{
		"/", "/offline.html", "/robots.txt", "/sitemap.xml", "/favicon.ico", "/manifest.json",
		"/index.html", "/static/css/main.4f1c2a9e.css", "/static/js/main.9b3e51d7.js",
	} {
		n.serve(p, "content of "+p)
	}
	n.routes[testFontURL] = route{status: http.StatusOK, body: "@font-face{}"}
	return n
}

func (n *fakeNetwork) serve(path, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes[abs(path)] = route{status: http.StatusOK, body: body}
}

func (n *fakeNetwork) set(target string, r route) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes[target] = r
}

func (n *fakeNetwork) setOffline(offline bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offline = offline
}

func (n *fakeNetwork) callCount(target string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[target]
}

func (n *fakeNetwork) lastBody(target string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.bodies[target]
}

func (n *fakeNetwork) Fetch(ctx context.Context, req *http.Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target := req.URL.String()

	n.mu.Lock()
	n.calls[target]++
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		n.bodies[target] = string(data)
	}
	offline := n.offline
	r, ok := n.routes[target]
	n.mu.Unlock()

	if offline {
		return nil, errNetworkDown
	}
	if !ok {
		r = route{status: http.StatusNotFound, body: "not found"}
	}
	if r.err != nil {
		return nil, r.err
	}

	kind := TypeOpaque
	if strings.HasPrefix(target, testOrigin+"/") {
		kind = TypeBasic
	}
	return &Response{
		URL:    target,
		Status: r.status,
		Header: http.Header{"Content-Type": []string{"text/plain"}},
		Body:   []byte(r.body),
		Type:   kind,
		Source: SourceNetwork,
	}, nil
}

func abs(path string) string {
	return testOrigin + path
}

func newTestManager(t *testing.T, store Store, network Fetcher) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		Origin:        testOrigin,
		ExtraPrecache: []string{testFontURL},
	}, store, network, nil)
	require.NoError(t, err)
	return m
}

// activeManager installs and activates a manager over a fresh memory store.
func activeManager(t *testing.T, network *fakeNetwork) (*Manager, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	m := newTestManager(t, store, network)
	_, err := m.Install(context.Background())
	require.NoError(t, err)
	_, err = m.Activate(context.Background())
	require.NoError(t, err)
	return m, store
}

func navigate(path string) *http.Request {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	return req
}

func get(target string) *http.Request {
	req, _ := http.NewRequest(http.MethodGet, target, nil)
	return req
}

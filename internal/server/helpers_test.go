package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/santoscsolutions/site/internal/config"
	"github.com/santoscsolutions/site/internal/db"
	"github.com/stretchr/testify/require"
)

const (
	testAdminUser     = "owner"
	testAdminPassword = "correct horse battery staple"
	testJWTSecret     = "test-secret-key-for-admin-tokens"
)

var errStoreDown = errors.New("connection refused")

// fakeStore keeps leads and reviews in memory.
type fakeStore struct {
	mu        sync.Mutex
	pingErr   error
	failReads bool
	leads     map[uuid.UUID]db.Lead
	reviews   []db.Review
	upserted  []db.ReviewInput
	summary   *db.RatingSummary
}

func newFakeStore() *fakeStore {
	return &fakeStore{leads: make(map[uuid.UUID]db.Lead)}
}

func (f *fakeStore) Ping(context.Context) error {
	return f.pingErr
}

func (f *fakeStore) CreateLead(_ context.Context, lead *db.Lead) (*db.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errStoreDown
	}
	created := *lead
	created.ID = uuid.New()
	created.Status = db.LeadStatusNew
	created.CreatedAt = time.Now()
	f.leads[created.ID] = created
	return &created, nil
}

func (f *fakeStore) ListLeads(_ context.Context, filter db.LeadFilter) ([]db.Lead, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, 0, errStoreDown
	}
	var out []db.Lead
	for _, l := range f.leads {
		if filter.Status == "" || l.Status == filter.Status {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := len(out)
	if filter.Offset < len(out) {
		out = out[filter.Offset:]
	} else {
		out = nil
	}
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (f *fakeStore) UpdateLead(_ context.Context, id uuid.UUID, update db.LeadUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok {
		return false, nil
	}
	if update.Status != nil {
		l.Status = *update.Status
	}
	if update.Notes != nil {
		l.Notes = update.Notes
	}
	if update.AssignedTo != nil {
		l.AssignedTo = update.AssignedTo
	}
	f.leads[id] = l
	return true, nil
}

func (f *fakeStore) DeleteLead(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.leads[id]
	delete(f.leads, id)
	return ok, nil
}

func (f *fakeStore) UpsertReviews(_ context.Context, reviews []db.ReviewInput, _ time.Time) db.UpsertResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result db.UpsertResult
	seen := make(map[string]bool)
	for _, r := range f.upserted {
		seen[r.AuthorName+r.Text] = true
	}
	for _, r := range reviews {
		if seen[r.AuthorName+r.Text] {
			result.Skipped++
			continue
		}
		seen[r.AuthorName+r.Text] = true
		f.upserted = append(f.upserted, r)
		result.Saved++
	}
	return result
}

func (f *fakeStore) ListActiveReviews(_ context.Context, limit int) ([]db.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errStoreDown
	}
	if len(f.reviews) > limit {
		return f.reviews[:limit], nil
	}
	return f.reviews, nil
}

func (f *fakeStore) ReviewRatings(context.Context) (*db.RatingSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errStoreDown
	}
	if f.summary == nil {
		return &db.RatingSummary{Distribution: map[int]int{}}, nil
	}
	return f.summary, nil
}

// newTestServer builds a server with admin login enabled. Pass a nil store to
// run without a database.
func newTestServer(t *testing.T, store Store, mutate ...func(*Options)) *Server {
	t.Helper()

	passwords := &config.PasswordConfig{BcryptCost: 4}
	hash, err := passwords.HashPassword(testAdminPassword)
	require.NoError(t, err)

	opts := Options{
		Store:     store,
		JWT:       &config.JWTConfig{Secret: testJWTSecret, ExpirationHours: 12, Issuer: config.DefaultIssuer},
		Admin:     &config.AdminCredentials{Username: testAdminUser, PasswordHash: hash},
		Passwords: passwords,
	}
	for _, m := range mutate {
		m(&opts)
	}

	s, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// do sends a request through the full middleware chain.
func do(t *testing.T, s *Server, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// adminToken logs in and returns a bearer header value.
func adminToken(t *testing.T, s *Server) string {
	t.Helper()
	w := do(t, s, http.MethodPost, "/api/admin/login", map[string]string{
		"username": testAdminUser,
		"password": testAdminPassword,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[map[string]any](t, w)
	return "Bearer " + resp["token"].(string)
}

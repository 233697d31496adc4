package server

import (
	"net/http"
	"testing"

	"github.com/santoscsolutions/site/internal/pricing"
	"github.com/santoscsolutions/site/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateQuery_Defaults(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodGet, "/api/estimate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[types.EstimateResponse](t, w)
	assert.Equal(t, 3, resp.Bedrooms)
	assert.Equal(t, 2, resp.Bathrooms)
	assert.Equal(t, "regular", resp.ServiceType)
	assert.Equal(t, "Regular Cleaning", resp.ServiceName)
	assert.Equal(t, 180, resp.Low)
	assert.Equal(t, 220, resp.High)
	assert.Equal(t, "$180 – $220", resp.Range)
	assert.Equal(t, "3 bed / 2 bath Regular Cleaning (~4 hours)", resp.Summary)
	assert.Empty(t, resp.ZipStatus)
}

func TestEstimateQuery_MatchesEstimator(t *testing.T) {
	s := newTestServer(t, nil)
	want := pricing.MustNewEstimator(pricing.DefaultTable()).Estimate(5, 4, pricing.Deep)

	resp := decode[types.EstimateResponse](t,
		do(t, s, http.MethodGet, "/api/estimate?bedrooms=5%2B&bathrooms=4&service=Deep&zip=30075", nil))

	assert.Equal(t, want.Low, resp.Low)
	assert.Equal(t, want.High, resp.High)
	assert.Equal(t, want.Hours, resp.Hours)
	assert.Equal(t, "deep", resp.ServiceType)
	assert.Equal(t, "30075", resp.Zip)
	assert.Equal(t, "included", resp.ZipStatus)
}

func TestEstimateQuery_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"unknown service", "service=post-construction", "unknown service type"},
		{"non-numeric bedrooms", "bedrooms=three", "bedrooms"},
		{"non-numeric bathrooms", "bathrooms=1.5", "bathrooms"},
		{"zip too short", "zip=30", "Zip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodGet, "/api/estimate?"+tt.query, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode[map[string]string](t, w)["error"], tt.want)
		})
	}
}

func TestEstimateQuery_ClampsRoomCounts(t *testing.T) {
	s := newTestServer(t, nil)
	resp := decode[types.EstimateResponse](t, do(t, s, http.MethodGet, "/api/estimate?bedrooms=-2&bathrooms=-1", nil))
	assert.Equal(t, 1, resp.Bedrooms)
	assert.Equal(t, 1, resp.Bathrooms)
	assert.Equal(t, pricing.ServiceMinimum, (resp.Low+resp.High)/2)
}

func TestEstimateJSON(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/api/estimate", map[string]any{"bedrooms": 2, "bathrooms": 1, "service": "move"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[types.EstimateResponse](t, w)
	assert.Equal(t, "move", resp.ServiceType)
	assert.Equal(t, "Move In/Out Cleaning", resp.ServiceName)

	w = do(t, s, http.MethodPost, "/api/estimate", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/estimate", map[string]any{"service": "windows"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServiceArea(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		zip    string
		status string
		served bool
	}{
		{"30075", "included", true},
		{"30303", "excluded", false},
		{"99999", "unknown", false},
		{"", "invalid", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			resp := decode[types.ServiceAreaResponse](t, do(t, s, http.MethodGet, "/api/service-area?zip="+tt.zip, nil))
			assert.Equal(t, tt.zip, resp.Zip)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.served, resp.Served)
		})
	}
}

func TestServices(t *testing.T) {
	s := newTestServer(t, nil)

	resp := decode[struct {
		Services []types.ServiceInfo `json:"services"`
	}](t, do(t, s, http.MethodGet, "/api/services", nil))

	require.Len(t, resp.Services, 3)
	assert.Equal(t, types.ServiceInfo{
		ID:            "regular",
		Name:          "Regular Cleaning",
		StartingPrice: 90,
		BathroomDelta: 20,
		MinimumPrice:  pricing.ServiceMinimum,
	}, resp.Services[0])
	assert.Equal(t, "deep", resp.Services[1].ID)
	assert.Equal(t, 280, resp.Services[1].StartingPrice)
}

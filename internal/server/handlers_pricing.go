package server

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/santoscsolutions/site/internal/pricing"
	"github.com/santoscsolutions/site/internal/types"
	"go.uber.org/zap"
)

// handleHealth reports liveness and database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{
		Status:    "healthy",
		Database:  "disconnected",
		Timestamp: s.now().UTC(),
	}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err == nil {
			resp.Database = "connected"
		} else {
			s.logger.Warn("database ping failed", zap.Error(err))
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleEstimateQuery serves the calculator widget: ?bedrooms=&bathrooms=&service=&zip=
func (s *Server) handleEstimateQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := types.EstimateRequest{
		Service: q.Get("service"),
		Zip:     strings.TrimSpace(q.Get("zip")),
	}

	var err error
	if req.Bedrooms, err = queryCount(q, "bedrooms"); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Bathrooms, err = queryCount(q, "bathrooms"); err != nil {
		s.writeError(w, err)
		return
	}

	s.estimate(w, req)
}

func (s *Server) handleEstimateJSON(w http.ResponseWriter, r *http.Request) {
	var req types.EstimateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.estimate(w, req)
}

func (s *Server) estimate(w http.ResponseWriter, req types.EstimateRequest) {
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		s.writeError(w, validationError(err))
		return
	}

	tier, err := pricing.ParseServiceType(req.Service)
	if err != nil {
		s.writeError(w, err)
		return
	}

	bedrooms, bathrooms := max(req.Bedrooms, 1), max(req.Bathrooms, 1)
	est := s.estimator.Estimate(bedrooms, bathrooms, tier)

	resp := types.EstimateResponse{
		Bedrooms:    bedrooms,
		Bathrooms:   bathrooms,
		ServiceType: est.ServiceType,
		ServiceName: pricing.ServiceName(est.ServiceType),
		Low:         est.Low,
		High:        est.High,
		Hours:       est.Hours,
		Range:       pricing.FormatRange(est),
		Summary:     pricing.Describe(bedrooms, bathrooms, est),
	}
	if req.Zip != "" {
		resp.Zip = req.Zip
		resp.ZipStatus = string(s.areas.ClassifyZip(req.Zip))
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// queryCount parses a room count. Empty means unset; a trailing "+" as in
// "5+" is accepted.
func queryCount(q url.Values, key string) (int, error) {
	raw := strings.TrimSuffix(strings.TrimSpace(q.Get(key)), "+")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ErrValidation{Field: key, Message: "must be a whole number"}
	}
	return n, nil
}

func (s *Server) handleServiceArea(w http.ResponseWriter, r *http.Request) {
	zip := strings.TrimSpace(r.URL.Query().Get("zip"))
	status := s.areas.ClassifyZip(zip)
	s.jsonResponse(w, http.StatusOK, types.ServiceAreaResponse{
		Zip:    zip,
		Status: string(status),
		Served: status == pricing.ZipIncluded,
	})
}

func (s *Server) handleServices(w http.ResponseWriter, _ *http.Request) {
	services := make([]types.ServiceInfo, 0, len(pricing.ServiceTypes()))
	for _, tier := range pricing.ServiceTypes() {
		services = append(services, types.ServiceInfo{
			ID:            string(tier),
			Name:          pricing.ServiceName(string(tier)),
			StartingPrice: s.table.StartingPrice(tier),
			BathroomDelta: s.table.Deltas[tier],
			MinimumPrice:  pricing.ServiceMinimum,
		})
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"services": services})
}

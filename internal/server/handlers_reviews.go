package server

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/santoscsolutions/site/internal/db"
	"github.com/santoscsolutions/site/internal/fetch"
	"github.com/santoscsolutions/site/internal/schemas"
	"github.com/santoscsolutions/site/internal/types"
	"go.uber.org/zap"
)

const reviewsLimit = 50

// Review stats shown while the database has nothing to say.
const (
	fallbackAverage = 4.8
	fallbackTotal   = 47
)

var fallbackDistribution = map[int]int{5: 40, 4: 5, 3: 1, 2: 1, 1: 0}

// handleReviews lists active reviews. It never fails: without a database the
// list is empty.
func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	resp := types.ReviewsResponse{Reviews: []types.ReviewView{}}
	if s.store == nil {
		s.jsonResponse(w, http.StatusOK, resp)
		return
	}

	reviews, err := s.store.ListActiveReviews(r.Context(), reviewsLimit)
	if err != nil {
		s.logger.Warn("failed to list reviews", zap.Error(err))
		s.jsonResponse(w, http.StatusOK, resp)
		return
	}
	for _, review := range reviews {
		resp.Reviews = append(resp.Reviews, reviewView(review))
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// reviewView fills display defaults and strips markup from the text.
func reviewView(r db.Review) types.ReviewView {
	name := strings.TrimSpace(r.AuthorName)
	if name == "" {
		name = "Anonymous"
	}
	rating := r.Rating
	if rating < 1 || rating > 5 {
		rating = 5
	}
	relative := "Recently"
	if r.RelativeTimeDescription != nil && *r.RelativeTimeDescription != "" {
		relative = *r.RelativeTimeDescription
	}
	photo := avatarURL(name)
	if r.ProfilePhotoURL != nil && *r.ProfilePhotoURL != "" {
		photo = *r.ProfilePhotoURL
	}
	return types.ReviewView{
		AuthorName:              name,
		Rating:                  rating,
		Text:                    fetch.PlainText(r.Text),
		RelativeTimeDescription: relative,
		ProfilePhotoURL:         photo,
	}
}

// avatarURL builds a generated initials avatar for reviewers without a photo.
func avatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) +
		"&background=4285F4&color=fff&size=128&font-size=0.6&bold=true"
}

func (s *Server) handleReviewStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.jsonResponse(w, http.StatusOK, s.fallbackStats("fallback"))
		return
	}

	summary, err := s.store.ReviewRatings(r.Context())
	if err != nil {
		s.logger.Warn("failed to summarize reviews", zap.Error(err))
		s.jsonResponse(w, http.StatusOK, s.fallbackStats("error_fallback"))
		return
	}
	if summary.Total == 0 {
		s.jsonResponse(w, http.StatusOK, s.fallbackStats("fallback"))
		return
	}

	s.jsonResponse(w, http.StatusOK, types.ReviewStats{
		AverageRating:      summary.Average(),
		TotalReviews:       summary.Total,
		RatingDistribution: distribution(summary.Distribution),
		LatestReviewTime:   summary.Latest,
		LastUpdated:        s.now().UTC(),
		Source:             "database",
	})
}

func (s *Server) fallbackStats(source string) types.ReviewStats {
	return types.ReviewStats{
		AverageRating:      fallbackAverage,
		TotalReviews:       fallbackTotal,
		RatingDistribution: distribution(fallbackDistribution),
		LastUpdated:        s.now().UTC(),
		Source:             source,
	}
}

// distribution keys counts "1" through "5", filling gaps with zero.
func distribution(counts map[int]int) map[string]int {
	out := make(map[string]int, 5)
	for rating := 1; rating <= 5; rating++ {
		out[strconv.Itoa(rating)] = counts[rating]
	}
	return out
}

// handleReviewsWebhook stores reviews pushed by the reviews sync workflow.
func (s *Server) handleReviewsWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookSecret != "" {
		got := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.webhookSecret)) != 1 {
			s.writeError(w, &ErrUnauthorized{Reason: "bad webhook secret"})
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, &ErrValidation{Field: "body", Message: "unreadable or too large"})
		return
	}
	if err := schemas.ValidateNamed(schemas.ReviewsWebhook, body); err != nil {
		s.writeError(w, validationError(err))
		return
	}

	var payload types.ReviewWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		s.writeError(w, &ErrValidation{Field: "body", Message: "invalid JSON"})
		return
	}

	if s.store == nil {
		s.writeError(w, &ErrUnavailable{Dependency: "database"})
		return
	}

	inputs := make([]db.ReviewInput, 0, len(payload.Reviews))
	for _, rv := range payload.Reviews {
		inputs = append(inputs, db.ReviewInput{
			ReviewID:                rv.ReviewID,
			AuthorName:              rv.AuthorName,
			AuthorURL:               rv.AuthorURL,
			Language:                rv.Language,
			ProfilePhotoURL:         rv.ProfilePhotoURL,
			Rating:                  rv.Rating,
			RelativeTimeDescription: rv.RelativeTimeDescription,
			Text:                    rv.Text,
			ReviewTime:              rv.At(),
		})
	}

	result := s.store.UpsertReviews(r.Context(), inputs, s.now().UTC())
	s.logger.Info("reviews webhook processed",
		zap.String("action", payload.Action),
		zap.Int("received", len(inputs)),
		zap.Int("saved", result.Saved),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
	)

	s.jsonResponse(w, http.StatusOK, types.WebhookResponse{
		Success:          true,
		Message:          fmt.Sprintf("Processed %d reviews", len(inputs)),
		TotalReceived:    len(inputs),
		ReviewsSaved:     result.Saved,
		ReviewsSkipped:   result.Skipped,
		ReviewsErrors:    result.Errors,
		BusinessName:     payload.BusinessName,
		AverageRating:    payload.AverageRating,
		UserRatingsTotal: payload.UserRatingsTotal,
		Timestamp:        s.now().UTC().Format(time.RFC3339),
	})
}

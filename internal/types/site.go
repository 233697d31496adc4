// Package types defines the request and response bodies of the site API.
package types

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Estimate defaults used when a field is left empty.
const (
	DefaultBedrooms  = 3
	DefaultBathrooms = 2
	DefaultService   = "regular"
)

// EstimateRequest asks for a price range. Room counts outside the table are
// accepted and matched to the nearest entry.
type EstimateRequest struct {
	Bedrooms  int    `json:"bedrooms"`
	Bathrooms int    `json:"bathrooms"`
	Service   string `json:"service" validate:"max=32"`
	Zip       string `json:"zip,omitempty" validate:"omitempty,min=3,max=10"`
}

// ApplyDefaults fills unset fields.
func (r *EstimateRequest) ApplyDefaults() {
	if r.Bedrooms == 0 {
		r.Bedrooms = DefaultBedrooms
	}
	if r.Bathrooms == 0 {
		r.Bathrooms = DefaultBathrooms
	}
	if strings.TrimSpace(r.Service) == "" {
		r.Service = DefaultService
	}
}

// Validate validates the EstimateRequest using the validator.
func (r *EstimateRequest) Validate() error {
	return validate.Struct(r)
}

// EstimateResponse is a price range for display.
type EstimateResponse struct {
	Bedrooms    int    `json:"bedrooms"`
	Bathrooms   int    `json:"bathrooms"`
	ServiceType string `json:"service_type"`
	ServiceName string `json:"service_name"`
	Low         int    `json:"low"`
	High        int    `json:"high"`
	Hours       int    `json:"hours"`
	Range       string `json:"range"`
	Summary     string `json:"summary"`
	Zip         string `json:"zip,omitempty"`
	ZipStatus   string `json:"zip_status,omitempty"`
}

// ServiceAreaResponse reports whether a ZIP code is served.
type ServiceAreaResponse struct {
	Zip    string `json:"zip"`
	Status string `json:"status"`
	Served bool   `json:"served"`
}

// ServiceInfo describes one cleaning tier.
type ServiceInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	StartingPrice int    `json:"starting_price"`
	BathroomDelta int    `json:"bathroom_delta"`
	MinimumPrice  int    `json:"minimum_price"`
}

// ContactRequest is a contact form submission.
type ContactRequest struct {
	Name       string `json:"name" validate:"required,min=1,max=200"`
	Phone      string `json:"phone" validate:"required,min=7,max=30"`
	Email      string `json:"email" validate:"required,email,max=254"`
	Message    string `json:"message,omitempty" validate:"max=5000"`
	SMSConsent bool   `json:"sms_consent"`
	Language   string `json:"language,omitempty" validate:"omitempty,oneof=en pt es"`
	Source     string `json:"source,omitempty" validate:"max=50"`
}

// ApplyDefaults fills language and source.
func (r *ContactRequest) ApplyDefaults() {
	if r.Language == "" {
		r.Language = "en"
	}
	if r.Source == "" {
		r.Source = "website"
	}
}

// Validate validates the ContactRequest using the validator.
func (r *ContactRequest) Validate() error {
	return validate.Struct(r)
}

// ContactResponse acknowledges a stored lead.
type ContactResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

// AdminLoginRequest represents the dashboard login request.
type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Validate validates the AdminLoginRequest using the validator.
func (r *AdminLoginRequest) Validate() error {
	return validate.Struct(r)
}

// AdminLoginResponse carries the session token.
type AdminLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LeadUpdateRequest changes a lead. Omitted fields are kept.
type LeadUpdateRequest struct {
	Status     *string `json:"status,omitempty" validate:"omitempty,oneof=new contacted scheduled closed lost"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	AssignedTo *string `json:"assigned_to,omitempty" validate:"omitempty,max=200"`
}

// Validate validates the LeadUpdateRequest using the validator.
func (r *LeadUpdateRequest) Validate() error {
	return validate.Struct(r)
}

// ReviewWebhook is the payload pushed by the reviews feed.
type ReviewWebhook struct {
	Action           string          `json:"action"`
	Timestamp        string          `json:"timestamp,omitempty"`
	BusinessName     string          `json:"business_name,omitempty"`
	TotalReviews     int             `json:"total_reviews,omitempty"`
	AverageRating    float64         `json:"average_rating,omitempty"`
	UserRatingsTotal int             `json:"user_ratings_total,omitempty"`
	Reviews          []WebhookReview `json:"reviews"`
}

// WebhookReview is one review inside a ReviewWebhook.
type WebhookReview struct {
	ReviewID                string `json:"review_id,omitempty"`
	AuthorName              string `json:"author_name"`
	AuthorURL               string `json:"author_url,omitempty"`
	Language                string `json:"language,omitempty"`
	ProfilePhotoURL         string `json:"profile_photo_url,omitempty"`
	Rating                  int    `json:"rating"`
	RelativeTimeDescription string `json:"relative_time_description,omitempty"`
	Text                    string `json:"text,omitempty"`
	Time                    int64  `json:"time,omitempty"`        // unix seconds
	ReviewTime              string `json:"review_time,omitempty"` // RFC 3339
}

// At returns when the review was written, if known.
func (r WebhookReview) At() *time.Time {
	if r.ReviewTime != "" {
		if t, err := time.Parse(time.RFC3339, r.ReviewTime); err == nil {
			t = t.UTC()
			return &t
		}
	}
	if r.Time > 0 {
		t := time.Unix(r.Time, 0).UTC()
		return &t
	}
	return nil
}

// WebhookResponse reports what the webhook stored.
type WebhookResponse struct {
	Success          bool    `json:"success"`
	Message          string  `json:"message"`
	TotalReceived    int     `json:"total_received"`
	ReviewsSaved     int     `json:"reviews_saved"`
	ReviewsSkipped   int     `json:"reviews_skipped"`
	ReviewsErrors    int     `json:"reviews_errors"`
	BusinessName     string  `json:"business_name,omitempty"`
	AverageRating    float64 `json:"average_rating,omitempty"`
	UserRatingsTotal int     `json:"user_ratings_total,omitempty"`
	Timestamp        string  `json:"timestamp,omitempty"`
}

// ReviewView is a review as the site renders it.
type ReviewView struct {
	AuthorName              string `json:"author_name"`
	Rating                  int    `json:"rating"`
	Text                    string `json:"text"`
	RelativeTimeDescription string `json:"relative_time_description"`
	ProfilePhotoURL         string `json:"profile_photo_url"`
}

// ReviewsResponse wraps the review list.
type ReviewsResponse struct {
	Reviews []ReviewView `json:"reviews"`
}

// ReviewStats summarizes ratings for the reviews panel.
type ReviewStats struct {
	AverageRating      float64        `json:"average_rating"`
	TotalReviews       int            `json:"total_reviews"`
	RatingDistribution map[string]int `json:"rating_distribution"`
	LatestReviewTime   *time.Time     `json:"latest_review_time,omitempty"`
	LastUpdated        time.Time      `json:"last_updated"`
	Source             string         `json:"source"`
}

// HealthResponse reports service health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

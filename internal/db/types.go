package db

import (
	"time"

	"github.com/google/uuid"
)

// Lead statuses
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusScheduled = "scheduled"
	LeadStatusClosed    = "closed"
	LeadStatusLost      = "lost"
)

// LeadStatuses lists every accepted status.
var LeadStatuses = []string{
	LeadStatusNew,
	LeadStatusContacted,
	LeadStatusScheduled,
	LeadStatusClosed,
	LeadStatusLost,
}

// ValidLeadStatus reports whether s is a known lead status.
func ValidLeadStatus(s string) bool {
	for _, status := range LeadStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Lead is a contact form submission.
type Lead struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	Email       string     `json:"email"`
	Message     string     `json:"message"`
	SMSConsent  bool       `json:"sms_consent"`
	Language    string     `json:"language"`
	Source      string     `json:"source"`
	Status      string     `json:"status"`
	Notes       *string    `json:"notes,omitempty"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
	UserAgent   string     `json:"user_agent,omitempty"`
	IPAddress   string     `json:"ip_address,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ContactedAt *time.Time `json:"contacted_at,omitempty"`
}

// LeadFilter narrows ListLeads.
type LeadFilter struct {
	Status string
	Limit  int
	Offset int
}

// LeadUpdate holds the fields an admin may change. Nil fields are kept.
type LeadUpdate struct {
	Status     *string
	Notes      *string
	AssignedTo *string
}

// Empty reports whether the update changes nothing.
func (u LeadUpdate) Empty() bool {
	return u.Status == nil && u.Notes == nil && u.AssignedTo == nil
}

// Review is a stored customer review.
type Review struct {
	ID                      int64      `json:"-"`
	ReviewID                string     `json:"review_id"`
	AuthorName              string     `json:"author_name"`
	AuthorURL               *string    `json:"author_url,omitempty"`
	Language                string     `json:"language"`
	ProfilePhotoURL         *string    `json:"profile_photo_url,omitempty"`
	Rating                  int        `json:"rating"`
	RelativeTimeDescription *string    `json:"relative_time_description,omitempty"`
	Text                    string     `json:"text"`
	ReviewTime              *time.Time `json:"review_time,omitempty"`
	IsFeatured              bool       `json:"is_featured"`
	CreatedAt               time.Time  `json:"created_at"`
}

// ReviewInput is a review arriving from the reviews feed.
type ReviewInput struct {
	ReviewID                string
	AuthorName              string
	AuthorURL               string
	Language                string
	ProfilePhotoURL         string
	Rating                  int
	RelativeTimeDescription string
	Text                    string
	ReviewTime              *time.Time
}

// UpsertResult counts the outcome of UpsertReviews.
type UpsertResult struct {
	Saved   int `json:"reviews_saved"`
	Skipped int `json:"reviews_skipped"`
	Errors  int `json:"reviews_errors"`
}

// RatingSummary aggregates active review ratings.
type RatingSummary struct {
	Total        int
	Distribution map[int]int // rating (1-5) to count
	Latest       *time.Time
}

// Average returns the mean rating rounded to one decimal, or 0 when empty.
func (s RatingSummary) Average() float64 {
	if s.Total == 0 {
		return 0
	}
	sum := 0
	for rating, count := range s.Distribution {
		sum += rating * count
	}
	avg := float64(sum) / float64(s.Total)
	return float64(int(avg*10+0.5)) / 10
}

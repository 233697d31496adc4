package db

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxReviewText caps stored review text.
const MaxReviewText = 5000

var nonSlugChars = regexp.MustCompile(`[^a-z0-9_]+`)

// NormalizeText lowercases and collapses whitespace.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ContentHash identifies a review by author, rating and normalized text so
// the same review resent under a different ID is still a duplicate.
func ContentHash(author string, rating int, text string) string {
	key := strings.ToLower(strings.TrimSpace(author)) + "_" + strconv.Itoa(rating) + "_" + NormalizeText(text)
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// DeriveReviewID builds a stable ID for a review the feed sent without one.
// The timestamp is truncated to the minute.
func DeriveReviewID(author string, at time.Time, text string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(author)), "_")
	if slug == "" {
		slug = "anonymous"
	}
	sum := md5.Sum([]byte(NormalizeText(text)))
	return fmt.Sprintf("gp_%s_%d_%s", slug, at.Truncate(time.Minute).Unix(), hex.EncodeToString(sum[:])[:8])
}

// clampRating keeps ratings in 1-5, treating 0 as unset (5).
func clampRating(r int) int {
	switch {
	case r == 0:
		return 5
	case r < 1:
		return 1
	case r > 5:
		return 5
	}
	return r
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// UpsertReviews stores feed reviews, skipping any already stored by ID or
// content. Individual failures are counted, not returned.
func (db *DB) UpsertReviews(ctx context.Context, reviews []ReviewInput, received time.Time) UpsertResult {
	var result UpsertResult
	for _, r := range reviews {
		rating := clampRating(r.Rating)
		at := received
		if r.ReviewTime != nil {
			at = *r.ReviewTime
		}
		reviewID := r.ReviewID
		if reviewID == "" {
			reviewID = DeriveReviewID(r.AuthorName, at, r.Text)
		}
		language := r.Language
		if language == "" {
			language = "en"
		}

		tag, err := db.pool.Exec(ctx,
			`INSERT INTO reviews (review_id, content_hash, author_name, author_url, language, profile_photo_url,
				rating, relative_time_description, text, review_time, is_featured)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT DO NOTHING`,
			reviewID, ContentHash(r.AuthorName, rating, r.Text), truncate(r.AuthorName, 255),
			nullable(r.AuthorURL), truncate(language, 10), nullable(r.ProfilePhotoURL), rating,
			nullable(truncate(r.RelativeTimeDescription, 100)), truncate(r.Text, MaxReviewText),
			r.ReviewTime, rating >= 4,
		)
		switch {
		case err != nil:
			result.Errors++
		case tag.RowsAffected() == 0:
			result.Skipped++
		default:
			result.Saved++
		}
	}
	return result
}

// ListActiveReviews returns up to limit active reviews, newest first.
func (db *DB) ListActiveReviews(ctx context.Context, limit int) ([]Review, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, review_id, author_name, author_url, language, profile_photo_url, rating,
		        relative_time_description, text, review_time, is_featured, created_at
		 FROM reviews WHERE is_active
		 ORDER BY review_time DESC NULLS LAST, created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []Review{}
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.ReviewID, &r.AuthorName, &r.AuthorURL, &r.Language,
			&r.ProfilePhotoURL, &r.Rating, &r.RelativeTimeDescription, &r.Text, &r.ReviewTime,
			&r.IsFeatured, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}
	return reviews, nil
}

// ReviewRatings summarizes active review ratings.
func (db *DB) ReviewRatings(ctx context.Context) (*RatingSummary, error) {
	summary := &RatingSummary{Distribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}

	rows, err := db.pool.Query(ctx,
		`SELECT rating, COUNT(*) FROM reviews WHERE is_active GROUP BY rating`)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize ratings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rating, count int
		if err := rows.Scan(&rating, &count); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		summary.Distribution[rating] = count
		summary.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ratings: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`SELECT MAX(review_time) FROM reviews WHERE is_active`).Scan(&summary.Latest)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest review time: %w", err)
	}
	return summary, nil
}

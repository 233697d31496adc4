package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DefaultLeadLimit and MaxLeadLimit bound ListLeads pages.
const (
	DefaultLeadLimit = 50
	MaxLeadLimit     = 200
)

const leadColumns = `id, name, phone, email, message, sms_consent, language, source, status,
	notes, assigned_to, user_agent, ip_address, created_at, updated_at, contacted_at`

func scanLead(row pgx.Row) (*Lead, error) {
	var l Lead
	err := row.Scan(&l.ID, &l.Name, &l.Phone, &l.Email, &l.Message, &l.SMSConsent, &l.Language,
		&l.Source, &l.Status, &l.Notes, &l.AssignedTo, &l.UserAgent, &l.IPAddress,
		&l.CreatedAt, &l.UpdatedAt, &l.ContactedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLead inserts a lead. ID, status and timestamps are assigned here.
func (db *DB) CreateLead(ctx context.Context, lead *Lead) (*Lead, error) {
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.Status == "" {
		lead.Status = LeadStatusNew
	}

	created, err := scanLead(db.pool.QueryRow(ctx,
		`INSERT INTO leads (id, name, phone, email, message, sms_consent, language, source, status, user_agent, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+leadColumns,
		lead.ID, lead.Name, lead.Phone, lead.Email, lead.Message, lead.SMSConsent,
		lead.Language, lead.Source, lead.Status, lead.UserAgent, lead.IPAddress,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}
	return created, nil
}

// GetLead returns a lead by ID, or nil if it does not exist.
func (db *DB) GetLead(ctx context.Context, id uuid.UUID) (*Lead, error) {
	lead, err := scanLead(db.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

// NormalizeLeadFilter clamps the page size and offset.
func NormalizeLeadFilter(f LeadFilter) LeadFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultLeadLimit
	}
	if f.Limit > MaxLeadLimit {
		f.Limit = MaxLeadLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// ListLeads returns leads newest first plus the total matching the filter.
func (db *DB) ListLeads(ctx context.Context, filter LeadFilter) ([]Lead, int, error) {
	filter = NormalizeLeadFilter(filter)

	var total int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM leads WHERE ($1 = '' OR status = $1)`,
		filter.Status,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count leads: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		filter.Status, filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := []Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, *lead)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate leads: %w", err)
	}
	return leads, total, nil
}

// UpdateLead applies the non-nil fields of update. Moving to contacted stamps
// contacted_at. It reports whether the lead existed.
func (db *DB) UpdateLead(ctx context.Context, id uuid.UUID, update LeadUpdate) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE leads SET
			status = COALESCE($2::text, status),
			notes = COALESCE($3::text, notes),
			assigned_to = COALESCE($4::text, assigned_to),
			contacted_at = CASE WHEN $2::text = 'contacted' THEN NOW() ELSE contacted_at END,
			updated_at = NOW()
		 WHERE id = $1`,
		id, update.Status, update.Notes, update.AssignedTo,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update lead: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteLead removes a lead. It reports whether the lead existed.
func (db *DB) DeleteLead(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete lead: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/santoscsolutions/site/internal/db"
	"github.com/santoscsolutions/site/internal/server/middleware"
	"github.com/santoscsolutions/site/internal/types"
	"go.uber.org/zap"
)

// handleContact stores a contact form submission as a new lead.
func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var req types.ContactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		s.writeError(w, validationError(err))
		return
	}

	if s.store == nil {
		s.writeError(w, &ErrUnavailable{Dependency: "database"})
		return
	}

	lead, err := s.store.CreateLead(r.Context(), &db.Lead{
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		Message:    strings.TrimSpace(req.Message),
		SMSConsent: req.SMSConsent,
		Language:   req.Language,
		Source:     req.Source,
		UserAgent:  r.UserAgent(),
		IPAddress:  forwardedIP(r),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("lead created", zap.String("id", lead.ID.String()), zap.String("source", lead.Source))
	s.jsonResponse(w, http.StatusCreated, types.ContactResponse{
		Success: true,
		Message: "Contact request submitted successfully",
		ID:      lead.ID.String(),
	})
}

// handleAdminLogin exchanges the dashboard password for a token.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if s.jwtService == nil {
		s.writeError(w, &ErrUnavailable{Dependency: "admin login"})
		return
	}

	var req types.AdminLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, validationError(err))
		return
	}

	// The hash is checked even for a wrong username so timing does not reveal it.
	passwordOK := s.passwords.VerifyPassword(req.Password, s.admin.PasswordHash)
	if req.Username != s.admin.Username || !passwordOK {
		s.logger.Warn("admin login failed", zap.String("client", extractClientID(r)))
		s.writeError(w, &ErrInvalidCredentials{})
		return
	}

	token, expiresAt, err := s.jwtService.GenerateToken(req.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.AdminLoginResponse{Token: token, ExpiresAt: expiresAt.UTC()})
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, &ErrUnavailable{Dependency: "database"})
		return
	}

	q := r.URL.Query()
	filter := db.LeadFilter{Status: strings.TrimSpace(q.Get("status"))}
	if filter.Status != "" && !db.ValidLeadStatus(filter.Status) {
		s.writeError(w, &ErrValidation{Field: "status", Message: "unknown status"})
		return
	}
	for key, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, &ErrValidation{Field: key, Message: "must be a non-negative integer"})
			return
		}
		*dst = n
	}
	filter = db.NormalizeLeadFilter(filter)

	leads, total, err := s.store.ListLeads(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if leads == nil {
		leads = []db.Lead{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"leads":  leads,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func (s *Server) handleUpdateLead(w http.ResponseWriter, r *http.Request) {
	id, err := leadID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.store == nil {
		s.writeError(w, &ErrUnavailable{Dependency: "database"})
		return
	}

	var req types.LeadUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, validationError(err))
		return
	}
	update := db.LeadUpdate{Status: req.Status, Notes: req.Notes, AssignedTo: req.AssignedTo}
	if update.Empty() {
		s.writeError(w, &ErrValidation{Field: "body", Message: "no fields to update"})
		return
	}

	found, err := s.store.UpdateLead(r.Context(), id, update)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		s.writeError(w, &ErrNotFound{Resource: "lead", ID: id.String()})
		return
	}

	admin, _ := middleware.GetSubject(r)
	s.logger.Info("lead updated", zap.String("id", id.String()), zap.String("by", admin))
	s.jsonResponse(w, http.StatusOK, map[string]any{"success": true, "id": id.String()})
}

func (s *Server) handleDeleteLead(w http.ResponseWriter, r *http.Request) {
	id, err := leadID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.store == nil {
		s.writeError(w, &ErrUnavailable{Dependency: "database"})
		return
	}

	found, err := s.store.DeleteLead(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		s.writeError(w, &ErrNotFound{Resource: "lead", ID: id.String()})
		return
	}

	admin, _ := middleware.GetSubject(r)
	s.logger.Info("lead deleted", zap.String("id", id.String()), zap.String("by", admin))
	s.jsonResponse(w, http.StatusOK, map[string]any{"success": true, "id": id.String()})
}

func leadID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, &ErrValidation{Field: "id", Message: "must be a UUID"}
	}
	return id, nil
}

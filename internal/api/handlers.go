package api

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jononovo/5ducks-outreach/internal/domain"
	"github.com/jononovo/5ducks-outreach/internal/pkg/httputil"
	"github.com/jononovo/5ducks-outreach/internal/templates"
	"github.com/jononovo/5ducks-outreach/internal/worker"
)

// DripService is the part of the drip engine the API drives.
type DripService interface {
	EnrollInSequence(ctx context.Context, sequenceName, email, name string, metadata map[string]any) bool
	CancelEnrollment(ctx context.Context, sequenceName, email string) (int64, error)
	SendImmediate(ctx context.Context, to string, content *domain.EmailContent, fromName string) bool
	Stats() worker.DripStats
}

// SchedulerService is the part of the campaign scheduler the API drives.
type SchedulerService interface {
	TriggerCheck(ctx context.Context) (int, error)
	IsRunning() bool
}

// Handlers contains the admin HTTP handlers
type Handlers struct {
	drip      DripService
	scheduler SchedulerService
}

// NewHandlers creates a new Handlers instance
func NewHandlers(drip DripService, scheduler SchedulerService) *Handlers {
	return &Handlers{drip: drip, scheduler: scheduler}
}

// EnrollRequest is the body of POST /api/sequences/{name}/enroll.
type EnrollRequest struct {
	Email    string         `json:"email"`
	Name     string         `json:"name,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SendEmailRequest is the body of POST /api/emails/send. Either
// TemplateKey or Subject plus a body must be set.
type SendEmailRequest struct {
	To          string         `json:"to"`
	TemplateKey string         `json:"template_key,omitempty"`
	Vars        map[string]any `json:"vars,omitempty"`
	Subject     string         `json:"subject,omitempty"`
	HTML        string         `json:"html,omitempty"`
	Text        string         `json:"text,omitempty"`
	FromName    string         `json:"from_name,omitempty"`
}

// TriggerScheduler runs one activation check plus auto-send sweep.
//
//	POST /api/scheduler/trigger
func (h *Handlers) TriggerScheduler(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		httputil.Unavailable(w, "scheduler is not configured")
		return
	}
	n, err := h.scheduler.TriggerCheck(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"activated": n})
}

// Enroll schedules every event of a sequence for one recipient.
//
//	POST /api/sequences/{name}/enroll
func (h *Handlers) Enroll(w http.ResponseWriter, r *http.Request) {
	if h.drip == nil {
		httputil.Unavailable(w, "drip engine is not configured")
		return
	}
	var req EnrollRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if !validEmail(req.Email) {
		httputil.BadRequest(w, "a valid email is required")
		return
	}

	name := chi.URLParam(r, "name")
	if !h.drip.EnrollInSequence(r.Context(), name, req.Email, req.Name, req.Metadata) {
		httputil.Error(w, http.StatusUnprocessableEntity, "enrollment failed", "enroll_failed")
		return
	}
	httputil.Created(w, map[string]any{
		"enrolled": true,
		"sequence": name,
		"email":    domain.NormalizeEmail(req.Email),
	})
}

// CancelEnrollment fails every still-scheduled send of the sequence for
// the recipient given by the email query parameter.
//
//	DELETE /api/sequences/{name}/enroll?email=
func (h *Handlers) CancelEnrollment(w http.ResponseWriter, r *http.Request) {
	if h.drip == nil {
		httputil.Unavailable(w, "drip engine is not configured")
		return
	}
	email := r.URL.Query().Get("email")
	if !validEmail(email) {
		httputil.BadRequest(w, "a valid email query parameter is required")
		return
	}

	n, err := h.drip.CancelEnrollment(r.Context(), chi.URLParam(r, "name"), email)
	if err != nil {
		if errors.Is(err, worker.ErrSequenceNotFound) {
			httputil.NotFound(w, "sequence not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"cancelled": n})
}

// SendEmail sends one message right away, outside any sequence.
//
//	POST /api/emails/send
func (h *Handlers) SendEmail(w http.ResponseWriter, r *http.Request) {
	if h.drip == nil {
		httputil.Unavailable(w, "drip engine is not configured")
		return
	}
	var req SendEmailRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if !validEmail(req.To) {
		httputil.BadRequest(w, "a valid recipient is required")
		return
	}

	var content *domain.EmailContent
	switch {
	case req.TemplateKey != "":
		if !templates.Has(req.TemplateKey) {
			httputil.NotFound(w, "unknown template: "+req.TemplateKey)
			return
		}
		content = templates.BuildEmailFromTemplate(req.TemplateKey, templates.Vars(req.Vars))
	case req.Subject != "" && (req.HTML != "" || req.Text != ""):
		content = &domain.EmailContent{Subject: req.Subject, HTML: req.HTML, Text: req.Text}
	default:
		httputil.BadRequest(w, "template_key or subject with html/text is required")
		return
	}

	if !h.drip.SendImmediate(r.Context(), req.To, content, req.FromName) {
		httputil.Error(w, http.StatusBadGateway, "send failed", "send_failed")
		return
	}
	httputil.Accepted(w, map[string]any{"sent": true})
}

// DripStats returns the drip engine counters.
//
//	GET /api/drip/stats
func (h *Handlers) DripStats(w http.ResponseWriter, r *http.Request) {
	if h.drip == nil {
		httputil.Unavailable(w, "drip engine is not configured")
		return
	}
	httputil.OK(w, h.drip.Stats())
}

func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

package api

import (
	"context"
	"errors"
	"html/template"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jononovo/5ducks-outreach/internal/domain"
	"github.com/jononovo/5ducks-outreach/internal/pkg/httputil"
	"github.com/jononovo/5ducks-outreach/internal/service/suppression"
	"github.com/jononovo/5ducks-outreach/internal/tracking"
)

// SuppressionService is the part of the suppression service the API drives.
type SuppressionService interface {
	Unsubscribe(ctx context.Context, token string) (*domain.Suppression, error)
	Suppress(ctx context.Context, email string, reason domain.SuppressionReason, source domain.SuppressionSource) (*domain.Suppression, error)
	Remove(ctx context.Context, email string) error
}

// SuppressionHandlers serves unsubscribe links and the admin suppression
// endpoints.
type SuppressionHandlers struct {
	svc SuppressionService
}

// NewSuppressionHandlers creates suppression handlers.
func NewSuppressionHandlers(svc SuppressionService) *SuppressionHandlers {
	return &SuppressionHandlers{svc: svc}
}

// SuppressRequest is the body of POST /api/suppressions.
type SuppressRequest struct {
	Email  string `json:"email"`
	Reason string `json:"reason,omitempty"`
}

var unsubscribePage = template.Must(template.New("unsubscribe").Parse(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; max-width: 480px; margin: 64px auto; color: #1f2937;">
<h1 style="font-size: 20px;">{{.Title}}</h1>
<p>{{.Message}}</p>
</body></html>`))

// Unsubscribe handles a click on the link in a campaign email.
//
//	GET /unsubscribe/{token}
func (h *SuppressionHandlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	_, err := h.svc.Unsubscribe(r.Context(), chi.URLParam(r, "token"))
	status, title, msg := http.StatusOK, "You have been unsubscribed", "You will not receive further emails from this sender."
	if err != nil {
		status, title, msg = unsubscribeError(err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := unsubscribePage.Execute(w, map[string]string{"Title": title, "Message": msg}); err != nil {
		log.Printf("[API] unsubscribe page: %v", err)
	}
}

// UnsubscribeOneClick handles mail clients posting to the link directly.
//
//	POST /unsubscribe/{token}
func (h *SuppressionHandlers) UnsubscribeOneClick(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.Unsubscribe(r.Context(), chi.URLParam(r, "token")); err != nil {
		status, _, msg := unsubscribeError(err)
		if status == http.StatusInternalServerError {
			httputil.InternalError(w, err)
			return
		}
		httputil.Error(w, status, msg, "unsubscribe_failed")
		return
	}
	httputil.OK(w, map[string]any{"unsubscribed": true})
}

func unsubscribeError(err error) (int, string, string) {
	switch {
	case errors.Is(err, tracking.ErrInvalidToken):
		return http.StatusBadRequest, "Invalid link", "This unsubscribe link is not valid."
	case errors.Is(err, suppression.ErrContactNotFound):
		return http.StatusNotFound, "Already removed", "This address is no longer in our records."
	default:
		log.Printf("[API] unsubscribe failed: %v", err)
		return http.StatusInternalServerError, "Something went wrong", "Please try again later."
	}
}

// Suppress blocks an address from all outreach.
//
//	POST /api/suppressions
func (h *SuppressionHandlers) Suppress(w http.ResponseWriter, r *http.Request) {
	var req SuppressRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if !validEmail(req.Email) {
		httputil.BadRequest(w, "a valid email is required")
		return
	}
	reason := domain.SuppressionReason(req.Reason)
	if reason == "" {
		reason = domain.SuppressionManual
	}

	entry, err := h.svc.Suppress(r.Context(), req.Email, reason, domain.SourceAdmin)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, entry)
}

// Unsuppress lifts a suppression.
//
//	DELETE /api/suppressions?email=
func (h *SuppressionHandlers) Unsuppress(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if !validEmail(email) {
		httputil.BadRequest(w, "a valid email query parameter is required")
		return
	}
	if err := h.svc.Remove(r.Context(), email); err != nil {
		if errors.Is(err, suppression.ErrNotFound) {
			httputil.NotFound(w, "email is not suppressed")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"removed": true})
}

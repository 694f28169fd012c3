package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/schoolhub/lessonshop/internal/storefront"
)

// SessionCookie names the cookie carrying the storefront session id.
const SessionCookie = "lessonshop_session"

// session returns the caller's storefront, starting a new one (and loading
// its catalog) when the cookie is missing or unknown.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *storefront.Session {
	sessionID := ""
	if c, err := r.Cookie(SessionCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			sessionID = id.String()
		}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	s, created := h.sessionStore.GetOrCreate(sessionID, h.newSession)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sessionID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		s.Load(r.Context())
	}
	return s
}

// HandleState returns everything the page renders.
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		h.writeJSON(w, h.session(w, r).View())
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

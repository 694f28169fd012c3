package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/schoolhub/lessonshop/internal/storage"
	"github.com/schoolhub/lessonshop/internal/storefront"
)

// SessionFactory builds a fresh storefront for a new visitor.
type SessionFactory func() *storefront.Session

type Handler struct {
	sessionStore *storage.SessionStore[*storefront.Session]
	newSession   SessionFactory
	staticDir    string
}

func New(newSession SessionFactory, staticDir string) *Handler {
	if staticDir == "" {
		staticDir = "static"
	}
	return &Handler{
		sessionStore: storage.NewSessionStore[*storefront.Session](),
		newSession:   newSession,
		staticDir:    staticDir,
	}
}

// ExpireSessions closes and forgets storefronts idle for longer than ttl.
func (h *Handler) ExpireSessions(ttl time.Duration) int {
	expired := h.sessionStore.Expire(ttl)
	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		slog.Info("Expired idle storefront sessions", "count", len(expired))
	}
	return len(expired)
}

// Close shuts down every open storefront.
func (h *Handler) Close() {
	for id, s := range h.sessionStore.GetAll() {
		s.Close()
		h.sessionStore.Delete(id)
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Error("Unable to write JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Debug(message, "code", code)
	}
	http.Error(w, message, code)
}

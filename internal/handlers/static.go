package handlers

import (
	"net/http"
	"path/filepath"
	"strings"
)

func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" && r.Method != "HEAD" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/static/")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		name = "index.html"
	}

	// Prevent directory traversal attacks
	if strings.Contains(name, "..") {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	switch {
	case strings.HasSuffix(name, ".css"):
		w.Header().Set("Content-Type", "text/css")
	case strings.HasSuffix(name, ".js"):
		w.Header().Set("Content-Type", "application/javascript")
	case strings.HasSuffix(name, ".html"):
		w.Header().Set("Content-Type", "text/html")
	}

	http.ServeFile(w, r, filepath.Join(h.staticDir, filepath.FromSlash(name)))
}

// Routes registers the storefront on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/state", h.HandleState)
	mux.HandleFunc("/api/lessons", h.HandleLessons)
	mux.HandleFunc("/api/search", h.HandleSearch)
	mux.HandleFunc("/api/cart", h.HandleCart)
	mux.HandleFunc("/api/cart/toggle", h.HandleToggleCart)
	mux.HandleFunc("/api/cart/", h.HandleCartItem)
	mux.HandleFunc("/api/checkout", h.HandleCheckout)
	mux.HandleFunc("/", h.HandleStatic)
}

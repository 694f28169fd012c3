package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/schoolhub/lessonshop/internal/models"
	"github.com/schoolhub/lessonshop/internal/ordering"
	"github.com/schoolhub/lessonshop/internal/storage"
)

type searchRequest struct {
	Q string `json:"q"`
}

type cartRequest struct {
	ID models.LessonID `json:"id"`
}

type buyerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// HandleLessons returns the catalog sorted by ?sort= and ?dir=. Either
// parameter, when given, also becomes the session's sort selection.
func (h *Handler) HandleLessons(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s := h.session(w, r)
	q := r.URL.Query()
	if q.Has("sort") || q.Has("dir") {
		key, err := storage.ParseSortKey(q.Get("sort"))
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		dir, err := storage.ParseSortDir(q.Get("dir"))
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.SetSort(key, dir)
	}
	h.writeJSON(w, s.Lessons())
}

// HandleSearch feeds the search box. The request to the API is debounced,
// so the response only reports that a search is pending.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	s := h.session(w, r)
	s.Search(req.Q)
	h.writeJSONStatus(w, http.StatusAccepted, s.View())
}

// HandleCart adds one space of a lesson to the cart.
func (h *Handler) HandleCart(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID.IsZero() {
		h.writeError(w, "Missing lesson id", http.StatusBadRequest)
		return
	}

	s := h.session(w, r)
	if !s.AddToCart(req.ID) {
		h.writeError(w, "Lesson "+req.ID.String()+" is not available", http.StatusConflict)
		return
	}
	h.writeJSON(w, s.View())
}

// HandleCartItem removes a whole line from the cart.
func (h *Handler) HandleCartItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != "DELETE" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// ids are matched by their spelling; "1" still finds numeric lesson 1
	id := models.StrID(strings.TrimPrefix(r.URL.Path, "/api/cart/"))
	if id.IsZero() {
		h.writeError(w, "Missing lesson id", http.StatusBadRequest)
		return
	}

	s := h.session(w, r)
	if !s.RemoveFromCart(id) {
		h.writeError(w, "Lesson "+id.String()+" is not in the cart", http.StatusNotFound)
		return
	}
	h.writeJSON(w, s.View())
}

// HandleToggleCart switches between the lessons page and the cart page.
func (h *Handler) HandleToggleCart(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s := h.session(w, r)
	s.ToggleCart()
	h.writeJSON(w, s.View())
}

// HandleCheckout updates the checkout form (PUT) or submits the order
// (POST).
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "PUT":
		var req buyerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		s := h.session(w, r)
		s.SetBuyer(req.Name, req.Phone)
		h.writeJSON(w, s.View())
	case "POST":
		s := h.session(w, r)
		out := s.Checkout(r.Context())
		h.writeJSONStatus(w, checkoutStatus(out), s.View())
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func checkoutStatus(out ordering.Outcome) int {
	var stepErr *ordering.StepError
	switch {
	case out.Err == nil:
		return http.StatusOK
	case errors.Is(out.Err, ordering.ErrInFlight):
		return http.StatusConflict
	case errors.As(out.Err, &stepErr) && stepErr.Step == ordering.Validating:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

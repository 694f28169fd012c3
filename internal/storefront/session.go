package storefront

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/schoolhub/lessonshop/internal/checkout"
	"github.com/schoolhub/lessonshop/internal/fallback"
	"github.com/schoolhub/lessonshop/internal/models"
	"github.com/schoolhub/lessonshop/internal/ordering"
	"github.com/schoolhub/lessonshop/internal/search"
	"github.com/schoolhub/lessonshop/internal/storage"
)

// Backend is everything a storefront needs from the lessons API.
type Backend interface {
	search.Source
	ordering.API
}

// Options configures a new Session.
type Options struct {
	// SearchWindow is the debounce window for search input.
	SearchWindow time.Duration
	// Lessons is shown until the first fetch succeeds. Defaults to the
	// built-in catalog.
	Lessons []models.Lesson
}

// Session is the state of one buyer's storefront: catalog, cart, search
// box, checkout form and the page flags.
type Session struct {
	api      Backend
	catalog  *storage.CatalogStore
	cart     *storage.CartStore
	search   *search.Controller
	form     *Form
	workflow *ordering.Workflow
	cancel   context.CancelFunc

	mu       sync.Mutex
	showCart bool
	sortKey  storage.SortKey
	sortDir  storage.SortDir
	query    string
}

// NewSession creates a session. Background search requests run under ctx
// until Close is called.
func NewSession(ctx context.Context, api Backend, opts Options) *Session {
	lessons := opts.Lessons
	if lessons == nil {
		lessons = fallback.Lessons()
	}

	ctx, cancel := context.WithCancel(ctx)
	catalog := storage.NewCatalogStore(lessons)
	cart := storage.NewCartStore(catalog)
	form := &Form{}

	return &Session{
		api:      api,
		catalog:  catalog,
		cart:     cart,
		search:   search.NewController(ctx, api, catalog, opts.SearchWindow),
		form:     form,
		workflow: ordering.New(api, catalog, cart, form),
		cancel:   cancel,
		sortKey:  storage.SortBySubject,
		sortDir:  storage.Asc,
	}
}

// Load fetches the catalog from the API. On failure the current lessons
// stay in place and the failure is only recorded in the result.
func (s *Session) Load(ctx context.Context) storage.FetchResult {
	lessons, err := s.api.FetchLessons(ctx)
	result := storage.FetchResult{Lessons: lessons, Err: err}
	if !s.catalog.Apply(result) {
		slog.Warn("Failed to load lessons; showing the built-in catalog", "err", err)
	}
	return result
}

// AddToCart takes one space of a lesson. It reports false when the lesson
// is unknown or sold out.
func (s *Session) AddToCart(id models.LessonID) bool {
	return s.cart.Add(id)
}

// RemoveFromCart drops a whole cart line and gives its spaces back.
func (s *Session) RemoveFromCart(id models.LessonID) bool {
	return s.cart.Remove(id)
}

// ToggleCart switches between the lessons page and the cart page. Going
// back to the lessons hides the result of the last order.
func (s *Session) ToggleCart() bool {
	s.mu.Lock()
	s.showCart = !s.showCart
	shown := s.showCart
	s.mu.Unlock()

	if !shown {
		s.workflow.ClearMessages()
	}
	return shown
}

// SetBuyer updates the checkout form.
func (s *Session) SetBuyer(name, phone string) {
	s.form.Set(name, phone)
}

// SetSort changes the order of the lessons grid.
func (s *Session) SetSort(key storage.SortKey, dir storage.SortDir) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sortKey = key
	s.sortDir = dir
}

// Search records new search box input; the request goes out once typing
// pauses.
func (s *Session) Search(q string) {
	s.mu.Lock()
	s.query = q
	s.mu.Unlock()
	s.search.Input(q)
}

// SearchNow runs a search immediately and waits for it.
func (s *Session) SearchNow(ctx context.Context, q string) storage.FetchResult {
	s.Search(q)
	return s.search.Flush(ctx)
}

// Checkout submits the cart as an order.
func (s *Session) Checkout(ctx context.Context) ordering.Outcome {
	return s.workflow.Submit(ctx)
}

// Workflow exposes the order workflow for callers that want to observe it.
func (s *Session) Workflow() *ordering.Workflow {
	return s.workflow
}

// Cart returns the current cart lines.
func (s *Session) Cart() []models.CartLine {
	return s.cart.Lines()
}

// Lessons returns the catalog in the current sort order.
func (s *Session) Lessons() []models.Lesson {
	s.mu.Lock()
	key, dir := s.sortKey, s.sortDir
	s.mu.Unlock()
	return slices.Collect(s.catalog.Sorted(key, dir))
}

// Close stops pending searches and aborts those in flight.
func (s *Session) Close() {
	s.search.Stop()
	s.cancel()
}

// View is a snapshot of everything the page renders.
type View struct {
	Lessons        []models.Lesson   `json:"lessons"`
	Cart           []models.CartLine `json:"cart"`
	Total          decimal.Decimal   `json:"total"`
	CartSpaces     int               `json:"cartSpaces"`
	ShowCart       bool              `json:"showCart"`
	SortBy         storage.SortKey   `json:"sortBy"`
	SortDir        storage.SortDir   `json:"sortDir"`
	SearchQuery    string            `json:"searchQuery"`
	Searching      bool              `json:"searching"`
	Name           string            `json:"checkoutName"`
	Phone          string            `json:"checkoutPhone"`
	ValidName      bool              `json:"validName"`
	ValidPhone     bool              `json:"validPhone"`
	CanCheckout    bool              `json:"canCheckout"`
	Submitting     bool              `json:"submittingOrder"`
	OrderConfirmed bool              `json:"orderConfirmed"`
	OrderError     string            `json:"orderError"`
}

func (s *Session) View() View {
	s.mu.Lock()
	v := View{
		ShowCart:    s.showCart,
		SortBy:      s.sortKey,
		SortDir:     s.sortDir,
		SearchQuery: s.query,
	}
	s.mu.Unlock()

	v.Lessons = s.Lessons()
	v.Cart = s.cart.Lines()
	v.Total = s.cart.Total()
	v.CartSpaces = s.cart.Spaces()
	v.Searching = s.search.State() == search.Pending

	v.Name, v.Phone = s.form.Details()
	v.ValidName = checkout.IsValidName(v.Name)
	v.ValidPhone = checkout.IsValidPhone(v.Phone)
	v.Submitting = s.workflow.Submitting()
	v.CanCheckout = checkout.CanCheckout(len(v.Cart), v.Name, v.Phone, v.Submitting)
	v.OrderConfirmed = s.workflow.Confirmed()
	v.OrderError = s.workflow.Message()
	return v
}

package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schoolhub/lessonshop/internal/models"
	"github.com/schoolhub/lessonshop/internal/storage"
)

// DefaultWindow is the quiet period after the last keystroke before a
// search request is sent.
const DefaultWindow = 300 * time.Millisecond

// ErrStale marks a response that arrived after a newer one had settled.
var ErrStale = errors.New("stale search response discarded")

// Source is the remote side of the search box.
type Source interface {
	FetchLessons(ctx context.Context) ([]models.Lesson, error)
	Search(ctx context.Context, q string) ([]models.Lesson, error)
}

// State of the debounce timer.
type State int

const (
	Idle State = iota
	Pending
)

func (s State) String() string {
	if s == Pending {
		return "pending"
	}
	return "idle"
}

// Controller debounces search input and replaces the catalog with the
// results. It never touches the cart. Failed searches leave the catalog as
// it was and are only logged.
type Controller struct {
	source  Source
	catalog *storage.CatalogStore
	window  time.Duration
	ctx     context.Context
	enabled atomic.Bool

	mu      sync.Mutex
	state   State
	timer   *time.Timer
	query   string
	issued  uint64
	settled uint64
	last    storage.FetchResult

	// OnSettled, when set, is called after every request completes with the
	// result that was recorded (ErrStale for discarded responses).
	OnSettled func(q string, r storage.FetchResult)
}

// NewController creates a search controller. Requests are issued under ctx;
// cancelling it aborts in-flight requests.
func NewController(ctx context.Context, source Source, catalog *storage.CatalogStore, window time.Duration) *Controller {
	if window <= 0 {
		window = DefaultWindow
	}
	c := &Controller{
		source:  source,
		catalog: catalog,
		window:  window,
		ctx:     ctx,
	}
	c.enabled.Store(true)
	return c
}

// SetEnabled turns backend search on or off. While off, a firing timer
// does nothing.
func (c *Controller) SetEnabled(on bool) {
	c.enabled.Store(on)
}

// Input records a change of the search box. The previously scheduled
// request is cancelled and a new one is scheduled after the quiet window;
// requests already on the wire are not cancelled.
func (c *Controller) Input(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.query = q
	c.state = Pending
	c.timer = time.AfterFunc(c.window, c.fire)
}

// Flush sends the pending query right away and waits for its result.
func (c *Controller) Flush(ctx context.Context) storage.FetchResult {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.state = Idle
	q := c.query
	c.issued++
	seq := c.issued
	c.mu.Unlock()

	return c.run(ctx, q, seq)
}

// Stop cancels the scheduled request, if any.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.state = Idle
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Last returns the result of the most recently settled request.
func (c *Controller) Last() storage.FetchResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Controller) fire() {
	c.mu.Lock()
	c.timer = nil
	c.state = Idle
	q := c.query
	c.issued++
	seq := c.issued
	c.mu.Unlock()

	c.run(c.ctx, q, seq)
}

func (c *Controller) run(ctx context.Context, q string, seq uint64) storage.FetchResult {
	if !c.enabled.Load() {
		return storage.FetchResult{Err: errors.New("backend search disabled")}
	}

	q = strings.TrimSpace(q)
	var (
		lessons []models.Lesson
		err     error
	)
	if q == "" {
		lessons, err = c.source.FetchLessons(ctx)
	} else {
		lessons, err = c.source.Search(ctx, q)
	}
	result := storage.FetchResult{Lessons: lessons, Err: err}

	c.mu.Lock()
	switch {
	case seq < c.settled:
		slog.Debug("Discarding stale search response", "query", q, "seq", seq, "settled", c.settled)
		result = storage.FetchResult{Err: ErrStale}
	default:
		c.settled = seq
		c.last = result
		if result.OK() {
			c.catalog.Apply(result)
		} else {
			slog.Warn("Search failed; keeping current lessons", "query", q, "err", result.Err)
		}
	}
	onSettled := c.OnSettled
	c.mu.Unlock()

	if onSettled != nil {
		onSettled(q, result)
	}
	return result
}

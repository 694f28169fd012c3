package ordering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/schoolhub/lessonshop/internal/checkout"
	"github.com/schoolhub/lessonshop/internal/models"
	"github.com/schoolhub/lessonshop/internal/storage"
)

// ErrInFlight is returned when an order is submitted while another one is
// still running. The second call changes nothing.
var ErrInFlight = errors.New("an order is already being submitted")

// API is the part of the remote collaborator the workflow talks to.
type API interface {
	CreateOrder(ctx context.Context, order models.OrderRequest) (json.RawMessage, error)
	UpdateLesson(ctx context.Context, id models.LessonID, update models.LessonUpdate) error
	FetchLessons(ctx context.Context) ([]models.Lesson, error)
}

// Buyer is the checkout form: the workflow reads it before submitting and
// resets it after a confirmed order.
type Buyer interface {
	Details() (name, phone string)
	Reset()
}

// State of the order workflow.
type State int

const (
	Idle State = iota
	Validating
	Submitting
	Reconciling
	Refreshing
	Failed
)

var stateNames = [...]string{"idle", "validating", "submitting", "reconciling", "refreshing", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StepError is a failure of one workflow step.
type StepError struct {
	Step State
	Err  error
}

func (e *StepError) Error() string {
	return e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Outcome describes how a Submit call ended.
type Outcome struct {
	Confirmed bool
	// Order is the server's response to POST /orders, if it got that far.
	Order json.RawMessage
	// Refresh is the result of the catalog re-fetch that closes every run.
	Refresh storage.FetchResult
	// Err is nil for a confirmed order.
	Err error
}

// Workflow submits the cart as an order and reconciles lesson spaces with
// the server. At most one submission runs at a time.
type Workflow struct {
	api     API
	catalog *storage.CatalogStore
	cart    *storage.CartStore
	buyer   Buyer

	busy atomic.Bool

	mu        sync.Mutex
	state     State
	confirmed bool
	message   string

	// OnTransition, when set, is called on every state change.
	OnTransition func(from, to State)
}

func New(api API, catalog *storage.CatalogStore, cart *storage.CartStore, buyer Buyer) *Workflow {
	return &Workflow{
		api:     api,
		catalog: catalog,
		cart:    cart,
		buyer:   buyer,
	}
}

// Submitting reports whether a submission is in flight.
func (w *Workflow) Submitting() bool {
	return w.busy.Load()
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Confirmed reports whether the last order went through.
func (w *Workflow) Confirmed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.confirmed
}

// Message is the error shown to the buyer, empty when there is none.
func (w *Workflow) Message() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.message
}

// ClearMessages hides the confirmation and error of the previous order.
func (w *Workflow) ClearMessages() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.confirmed = false
	w.message = ""
}

func (w *Workflow) transition(to State) {
	w.mu.Lock()
	from := w.state
	w.state = to
	hook := w.OnTransition
	w.mu.Unlock()

	slog.Debug("Order workflow transition", "from", from, "to", to)
	if hook != nil {
		hook(from, to)
	}
}

func (w *Workflow) setResult(confirmed bool, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.confirmed = confirmed
	w.message = message
}

// setMessage leaves the confirmation of the previous order showing.
func (w *Workflow) setMessage(message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.message = message
}

// Submit runs validate → submit → reconcile → refresh. Validation failures
// return before any request is made. Once the order has been sent the
// catalog is always re-fetched, on success and on failure, and only then is
// a new submission allowed.
//
// The run ignores cancellation of ctx: an order the server accepted must
// have its spaces reconciled even if the caller has gone away. The API
// client's own timeout bounds each request.
func (w *Workflow) Submit(ctx context.Context) Outcome {
	if !w.busy.CompareAndSwap(false, true) {
		slog.Debug("Ignoring order submission while another is in flight")
		return Outcome{Err: ErrInFlight}
	}
	ctx = context.WithoutCancel(ctx)

	w.transition(Validating)
	name, phone := w.buyer.Details()
	lines := w.cart.Lines()
	if err := checkout.Validate(len(lines), name, phone); err != nil {
		w.setMessage(checkout.Message(err))
		w.transition(Idle)
		w.busy.Store(false)
		return Outcome{Err: &StepError{Step: Validating, Err: err}}
	}

	w.setResult(false, "")
	out := w.submitAndReconcile(ctx, orderFor(name, phone, lines), lines)

	if out.Err != nil {
		slog.Error("Order submission failed", "err", out.Err)
		w.setResult(false, messageFor(out.Err))
		w.transition(Failed)
	} else {
		w.cart.Clear()
		w.buyer.Reset()
		w.setResult(true, "")
		slog.Info("Order confirmed", "name", name, "spaces", totalQty(lines))
	}

	out.Refresh = w.refresh(ctx)
	w.transition(Idle)
	w.busy.Store(false)
	return out
}

func (w *Workflow) submitAndReconcile(ctx context.Context, order models.OrderRequest, lines []models.CartLine) Outcome {
	w.transition(Submitting)
	resp, err := w.api.CreateOrder(ctx, order)
	if err != nil {
		return Outcome{Err: &StepError{Step: Submitting, Err: err}}
	}

	w.transition(Reconciling)
	if err := w.reconcile(ctx, lines); err != nil {
		return Outcome{Order: resp, Err: &StepError{Step: Reconciling, Err: err}}
	}
	return Outcome{Confirmed: true, Order: resp}
}

// reconcile pushes the local space count of every lesson in the cart to the
// server. All updates are sent at once; the step fails if any of them does.
func (w *Workflow) reconcile(ctx context.Context, lines []models.CartLine) error {
	var g errgroup.Group
	for _, line := range lines {
		lesson, ok := w.catalog.Find(line.ID)
		if !ok {
			slog.Warn("Lesson left the catalog before reconciliation", "lesson_id", line.ID)
			continue
		}
		update := models.UpdateFor(lesson)
		g.Go(func() error {
			return w.api.UpdateLesson(ctx, line.ID, update)
		})
	}
	return g.Wait()
}

// refresh re-reads the authoritative catalog. Failures are logged and the
// local catalog is kept.
func (w *Workflow) refresh(ctx context.Context) storage.FetchResult {
	w.transition(Refreshing)
	lessons, err := w.api.FetchLessons(ctx)
	result := storage.FetchResult{Lessons: lessons, Err: err}
	if !w.catalog.Apply(result) {
		slog.Error("Failed to re-fetch lessons after order", "err", err)
	}
	return result
}

func orderFor(name, phone string, lines []models.CartLine) models.OrderRequest {
	order := models.OrderRequest{
		Name:      strings.TrimSpace(name),
		Phone:     strings.TrimSpace(phone),
		LessonIDs: make([]models.OrderLine, 0, len(lines)),
	}
	for _, l := range lines {
		// ids that look numeric go out as numbers
		order.LessonIDs = append(order.LessonIDs, models.OrderLine{
			LessonID: models.ParseID(l.ID.String()),
			Qty:      l.Qty,
		})
	}
	order.NumberOfSpace = totalQty(lines)
	return order
}

func totalQty(lines []models.CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Qty
	}
	return n
}

func messageFor(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Error submitting order"
}

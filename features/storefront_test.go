package features

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"github.com/schoolhub/lessonshop/internal/catalog"
	"github.com/schoolhub/lessonshop/internal/models"
	"github.com/schoolhub/lessonshop/internal/ordering"
	"github.com/schoolhub/lessonshop/internal/storefront"
)

// fakeAPI is an in-memory lessons/orders backend.
type fakeAPI struct {
	mu           sync.Mutex
	lessons      []models.Lesson
	rejectOrders string
	failPut      string
	holdOrders   bool
	release      chan struct{}
	orderSeen    chan struct{}
	orders       int
	fetches      int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		release:   make(chan struct{}),
		orderSeen: make(chan struct{}, 1),
	}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == "GET" && r.URL.Path == "/lessons":
		f.mu.Lock()
		f.fetches++
		body, _ := json.Marshal(f.lessons)
		f.mu.Unlock()
		_, _ = w.Write(body)

	case r.Method == "POST" && r.URL.Path == "/orders":
		f.mu.Lock()
		f.orders++
		hold, reject := f.holdOrders, f.rejectOrders
		f.mu.Unlock()

		select {
		case f.orderSeen <- struct{}{}:
		default:
		}
		if hold {
			<-f.release
		}
		if reject != "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": reject})
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"insertedId":"o1"}`))

	case r.Method == "PUT" && strings.HasPrefix(r.URL.Path, "/lessons/"):
		id := strings.TrimPrefix(r.URL.Path, "/lessons/")
		var update models.LessonUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		if id == f.failPut {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		for i := range f.lessons {
			if f.lessons[i].ID.String() == id {
				f.lessons[i].Spaces = update.Spaces
			}
		}
		_, _ = w.Write([]byte(`{"ok":true}`))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type storefrontTestContext struct {
	api           *fakeAPI
	srv           *httptest.Server
	session       *storefront.Session
	outcome       ordering.Outcome
	second        ordering.Outcome
	background    chan ordering.Outcome
	fetchesBefore int
}

func (c *storefrontTestContext) reset() {
	c.close()
	c.api = newFakeAPI()
	c.srv = httptest.NewServer(c.api)
	client := catalog.NewClient(c.srv.URL, 5*time.Second)
	c.session = storefront.NewSession(context.Background(), client, storefront.Options{
		SearchWindow: time.Minute,
		Lessons:      []models.Lesson{},
	})
	c.outcome = ordering.Outcome{}
	c.second = ordering.Outcome{}
	c.background = nil
	c.fetchesBefore = 0
}

func (c *storefrontTestContext) close() {
	if c.api != nil {
		c.api.mu.Lock()
		held := c.api.holdOrders
		c.api.holdOrders = false
		c.api.mu.Unlock()
		if held {
			select {
			case <-c.api.release:
			default:
				close(c.api.release)
			}
		}
	}
	if c.session != nil {
		c.session.Close()
	}
	if c.srv != nil {
		c.srv.Close()
	}
}

func (c *storefrontTestContext) theAPIOffersLesson(id int, subject, location string, price, spaces int) error {
	c.api.mu.Lock()
	defer c.api.mu.Unlock()
	c.api.lessons = append(c.api.lessons, models.Lesson{
		ID:       models.NumID(int64(id)),
		Subject:  subject,
		Location: location,
		Price:    decimal.NewFromInt(int64(price)),
		Spaces:   spaces,
		Icon:     models.DefaultIcon,
	})
	return nil
}

func (c *storefrontTestContext) theStorefrontHasLoadedTheCatalog() error {
	if r := c.session.Load(context.Background()); !r.OK() {
		return fmt.Errorf("failed to load catalog: %w", r.Err)
	}
	return nil
}

func (c *storefrontTestContext) theAPIRejectsOrdersWith(message string) error {
	c.api.mu.Lock()
	defer c.api.mu.Unlock()
	c.api.rejectOrders = message
	return nil
}

func (c *storefrontTestContext) theAPIFailsSpaceUpdatesForLesson(id int) error {
	c.api.mu.Lock()
	defer c.api.mu.Unlock()
	c.api.failPut = fmt.Sprint(id)
	return nil
}

func (c *storefrontTestContext) theAPIHoldsOrdersUntilReleased() error {
	c.api.mu.Lock()
	defer c.api.mu.Unlock()
	c.api.holdOrders = true
	return nil
}

func (c *storefrontTestContext) iAddLessonToTheCartTimes(id, times int) error {
	for range times {
		c.session.AddToCart(models.NumID(int64(id)))
	}
	return nil
}

func (c *storefrontTestContext) iRemoveLessonFromTheCart(id int) error {
	if !c.session.RemoveFromCart(models.NumID(int64(id))) {
		return fmt.Errorf("lesson %d is not in the cart", id)
	}
	return nil
}

func (c *storefrontTestContext) iEnterNameAndPhone(name, phone string) error {
	c.session.SetBuyer(name, phone)
	return nil
}

func (c *storefrontTestContext) markFetches() {
	c.api.mu.Lock()
	c.fetchesBefore = c.api.fetches
	c.api.mu.Unlock()
}

func (c *storefrontTestContext) iCheckOut() error {
	c.markFetches()
	c.outcome = c.session.Checkout(context.Background())
	return nil
}

func (c *storefrontTestContext) iCheckOutInTheBackground() error {
	c.markFetches()
	c.background = make(chan ordering.Outcome, 1)
	go func() {
		c.background <- c.session.Checkout(context.Background())
	}()
	return nil
}

func (c *storefrontTestContext) iCheckOutAgainWhileTheFirstOrderIsSubmitting() error {
	select {
	case <-c.api.orderSeen:
	case <-time.After(5 * time.Second):
		return errors.New("first order never reached the API")
	}
	c.second = c.session.Checkout(context.Background())
	return nil
}

func (c *storefrontTestContext) theAPIReleasesTheOrder() error {
	c.api.mu.Lock()
	c.api.holdOrders = false
	c.api.mu.Unlock()
	close(c.api.release)

	select {
	case c.outcome = <-c.background:
		return nil
	case <-time.After(5 * time.Second):
		return errors.New("order did not finish after release")
	}
}

func (c *storefrontTestContext) theCartHasOneLineForLessonWithQuantity(id, qty int) error {
	lines := c.session.Cart()
	if len(lines) != 1 {
		return fmt.Errorf("expected 1 cart line, got %d", len(lines))
	}
	if !lines[0].ID.Equal(models.NumID(int64(id))) || lines[0].Qty != qty {
		return fmt.Errorf("expected lesson %d x%d, got %s x%d", id, qty, lines[0].ID, lines[0].Qty)
	}
	return nil
}

func (c *storefrontTestContext) theCartIsEmpty() error {
	if lines := c.session.Cart(); len(lines) != 0 {
		return fmt.Errorf("expected empty cart, got %d lines", len(lines))
	}
	return nil
}

func (c *storefrontTestContext) lessonHasSpacesLeft(id, spaces int) error {
	for _, l := range c.session.Lessons() {
		if l.ID.Equal(models.NumID(int64(id))) {
			if l.Spaces != spaces {
				return fmt.Errorf("expected %d spaces, got %d", spaces, l.Spaces)
			}
			return nil
		}
	}
	return fmt.Errorf("lesson %d not in catalog", id)
}

func (c *storefrontTestContext) checkoutIsDisabled() error {
	if c.session.View().CanCheckout {
		return errors.New("expected checkout to be disabled")
	}
	return nil
}

func (c *storefrontTestContext) theNameIsAndThePhoneIs(nameCheck, phoneCheck string) error {
	v := c.session.View()
	if v.ValidName != (nameCheck == "valid") {
		return fmt.Errorf("expected name %q to be %s", v.Name, nameCheck)
	}
	if v.ValidPhone != (phoneCheck == "valid") {
		return fmt.Errorf("expected phone %q to be %s", v.Phone, phoneCheck)
	}
	return nil
}

func (c *storefrontTestContext) theOrderIsConfirmed() error {
	if c.outcome.Err != nil {
		return fmt.Errorf("expected confirmed order, got error: %v", c.outcome.Err)
	}
	if !c.session.View().OrderConfirmed {
		return errors.New("expected the order to be confirmed")
	}
	return nil
}

func (c *storefrontTestContext) theOrderIsNotConfirmed() error {
	if c.session.View().OrderConfirmed || c.outcome.Confirmed {
		return errors.New("expected the order not to be confirmed")
	}
	return nil
}

func (c *storefrontTestContext) theOrderErrorIs(message string) error {
	if got := c.session.View().OrderError; got != message {
		return fmt.Errorf("expected order error %q, got %q", message, got)
	}
	return nil
}

func (c *storefrontTestContext) anOrderErrorIsShown() error {
	if c.session.View().OrderError == "" {
		return errors.New("expected an order error")
	}
	return nil
}

func (c *storefrontTestContext) noOrderIsBeingSubmitted() error {
	if c.session.View().Submitting {
		return errors.New("expected no submission in flight")
	}
	return nil
}

func (c *storefrontTestContext) theCheckoutFormIsEmpty() error {
	v := c.session.View()
	if v.Name != "" || v.Phone != "" {
		return fmt.Errorf("expected empty form, got %q / %q", v.Name, v.Phone)
	}
	return nil
}

func (c *storefrontTestContext) theAPIHasLessonWithSpaces(id, spaces int) error {
	c.api.mu.Lock()
	defer c.api.mu.Unlock()
	for _, l := range c.api.lessons {
		if l.ID.Equal(models.NumID(int64(id))) {
			if l.Spaces != spaces {
				return fmt.Errorf("expected API to hold %d spaces, got %d", spaces, l.Spaces)
			}
			return nil
		}
	}
	return fmt.Errorf("lesson %d not found on the API", id)
}

func (c *storefrontTestContext) theCatalogWasRefreshedAfterTheOrder() error {
	c.api.mu.Lock()
	defer c.api.mu.Unlock()
	if c.api.fetches <= c.fetchesBefore {
		return errors.New("expected the catalog to be fetched after the order")
	}
	return nil
}

func (c *storefrontTestContext) theSecondCheckoutIsIgnored() error {
	if !errors.Is(c.second.Err, ordering.ErrInFlight) {
		return fmt.Errorf("expected ErrInFlight, got %v", c.second.Err)
	}
	return nil
}

func (c *storefrontTestContext) theAPIReceivedOrders(n int) error {
	c.api.mu.Lock()
	defer c.api.mu.Unlock()
	if c.api.orders != n {
		return fmt.Errorf("expected %d orders, got %d", n, c.api.orders)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &storefrontTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})
	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		tc.close()
		return ctx, nil
	})

	// Given
	ctx.Step(`^the API offers lesson (\d+) "([^"]*)" at "([^"]*)" for (\d+) with (\d+) spaces$`, tc.theAPIOffersLesson)
	ctx.Step(`^the storefront has loaded the catalog$`, tc.theStorefrontHasLoadedTheCatalog)
	ctx.Step(`^the API rejects orders with "([^"]*)"$`, tc.theAPIRejectsOrdersWith)
	ctx.Step(`^the API fails space updates for lesson (\d+)$`, tc.theAPIFailsSpaceUpdatesForLesson)
	ctx.Step(`^the API holds orders until released$`, tc.theAPIHoldsOrdersUntilReleased)

	// When
	ctx.Step(`^I add lesson (\d+) to the cart (\d+) times$`, tc.iAddLessonToTheCartTimes)
	ctx.Step(`^I remove lesson (\d+) from the cart$`, tc.iRemoveLessonFromTheCart)
	ctx.Step(`^I enter name "([^"]*)" and phone "([^"]*)"$`, tc.iEnterNameAndPhone)
	ctx.Step(`^I check out$`, tc.iCheckOut)
	ctx.Step(`^I check out in the background$`, tc.iCheckOutInTheBackground)
	ctx.Step(`^I check out again while the first order is submitting$`, tc.iCheckOutAgainWhileTheFirstOrderIsSubmitting)
	ctx.Step(`^the API releases the order$`, tc.theAPIReleasesTheOrder)

	// Then
	ctx.Step(`^the cart has one line for lesson (\d+) with quantity (\d+)$`, tc.theCartHasOneLineForLessonWithQuantity)
	ctx.Step(`^the cart is empty$`, tc.theCartIsEmpty)
	ctx.Step(`^lesson (\d+) has (\d+) spaces left$`, tc.lessonHasSpacesLeft)
	ctx.Step(`^checkout is disabled$`, tc.checkoutIsDisabled)
	ctx.Step(`^the name is (valid|invalid) and the phone is (valid|invalid)$`, tc.theNameIsAndThePhoneIs)
	ctx.Step(`^the order is confirmed$`, tc.theOrderIsConfirmed)
	ctx.Step(`^the order is not confirmed$`, tc.theOrderIsNotConfirmed)
	ctx.Step(`^the order error is "([^"]*)"$`, tc.theOrderErrorIs)
	ctx.Step(`^an order error is shown$`, tc.anOrderErrorIsShown)
	ctx.Step(`^no order is being submitted$`, tc.noOrderIsBeingSubmitted)
	ctx.Step(`^the checkout form is empty$`, tc.theCheckoutFormIsEmpty)
	ctx.Step(`^the API has lesson (\d+) with (\d+) spaces$`, tc.theAPIHasLessonWithSpaces)
	ctx.Step(`^the catalog was refreshed after the order$`, tc.theCatalogWasRefreshedAfterTheOrder)
	ctx.Step(`^the second checkout is ignored$`, tc.theSecondCheckoutIsIgnored)
	ctx.Step(`^the API received (\d+) orders?$`, tc.theAPIReceivedOrders)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"storefront.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

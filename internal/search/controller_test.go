package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/schoolhub/lessonshop/internal/models"
	"github.com/schoolhub/lessonshop/internal/storage"
)

type fakeSource struct {
	mu      sync.Mutex
	calls   []string
	results map[string][]models.Lesson
	errs    map[string]error
	gates   map[string]chan struct{}
	started chan string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		results: map[string][]models.Lesson{},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
		started: make(chan string, 16),
	}
}

func (f *fakeSource) FetchLessons(ctx context.Context) ([]models.Lesson, error) {
	return f.do("")
}

func (f *fakeSource) Search(ctx context.Context, q string) ([]models.Lesson, error) {
	return f.do(q)
}

func (f *fakeSource) do(q string) ([]models.Lesson, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	gate := f.gates[q]
	res, err := f.results[q], f.errs[q]
	f.mu.Unlock()

	f.started <- q
	if gate != nil {
		<-gate
	}
	return res, err
}

func (f *fakeSource) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func lesson(id int64, subject string) models.Lesson {
	return models.Lesson{ID: models.NumID(id), Subject: subject, Spaces: 5, Icon: models.DefaultIcon}
}

func waitSettled(t *testing.T, ch <-chan storage.FetchResult) storage.FetchResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for search to settle")
		return storage.FetchResult{}
	}
}

func TestInputDebouncesKeystrokes(t *testing.T) {
	src := newFakeSource()
	src.results["math"] = []models.Lesson{lesson(1, "Math")}

	catalog := storage.NewCatalogStore([]models.Lesson{lesson(1, "Math"), lesson(2, "Art")})
	c := NewController(context.Background(), src, catalog, 30*time.Millisecond)
	settled := make(chan storage.FetchResult, 4)
	c.OnSettled = func(q string, r storage.FetchResult) { settled <- r }

	c.Input("m")
	c.Input("ma")
	c.Input("mat")
	c.Input("math")
	if c.State() != Pending {
		t.Errorf("Expected state pending, got %s", c.State())
	}

	r := waitSettled(t, settled)
	if !r.OK() {
		t.Fatalf("Expected successful search, got %v", r.Err)
	}

	calls := src.Calls()
	if len(calls) != 1 || calls[0] != "math" {
		t.Errorf("Expected a single request for %q, got %v", "math", calls)
	}
	if catalog.Len() != 1 {
		t.Errorf("Expected catalog to be replaced by 1 result, got %d lessons", catalog.Len())
	}
	if c.State() != Idle {
		t.Errorf("Expected state idle after firing, got %s", c.State())
	}
}

func TestEmptyQueryFetchesFullCatalog(t *testing.T) {
	src := newFakeSource()
	src.results[""] = []models.Lesson{lesson(1, "Math"), lesson(2, "Art"), lesson(3, "Music")}

	catalog := storage.NewCatalogStore([]models.Lesson{lesson(1, "Math")})
	c := NewController(context.Background(), src, catalog, time.Minute)

	c.Input("   ")
	r := c.Flush(context.Background())
	if !r.OK() {
		t.Fatalf("Expected success, got %v", r.Err)
	}
	if calls := src.Calls(); len(calls) != 1 || calls[0] != "" {
		t.Errorf("Expected one full catalog fetch, got %v", calls)
	}
	if catalog.Len() != 3 {
		t.Errorf("Expected 3 lessons, got %d", catalog.Len())
	}
}

func TestFailedSearchKeepsCatalog(t *testing.T) {
	src := newFakeSource()
	src.errs["art"] = errors.New("GET /search returned 500")

	before := []models.Lesson{lesson(1, "Math"), lesson(2, "Art")}
	catalog := storage.NewCatalogStore(before)
	c := NewController(context.Background(), src, catalog, time.Minute)

	c.Input("art")
	r := c.Flush(context.Background())
	if r.OK() {
		t.Fatal("Expected the search to fail")
	}
	if catalog.Len() != len(before) {
		t.Errorf("Expected catalog to be untouched, got %d lessons", catalog.Len())
	}
	if c.Last().Err == nil {
		t.Error("Expected the failure to be recorded as the last result")
	}
}

func TestDisabledSearchDoesNothing(t *testing.T) {
	src := newFakeSource()
	catalog := storage.NewCatalogStore([]models.Lesson{lesson(1, "Math")})
	c := NewController(context.Background(), src, catalog, time.Minute)
	c.SetEnabled(false)

	c.Input("math")
	r := c.Flush(context.Background())
	if r.OK() {
		t.Error("Expected disabled search to report a non-applied result")
	}
	if calls := src.Calls(); len(calls) != 0 {
		t.Errorf("Expected no requests, got %v", calls)
	}
}

// A new keystroke cancels only the scheduled request. An older request that
// is already on the wire still completes; if it completes after a newer one
// its payload is dropped instead of overwriting fresher results.
func TestLateResponseFromSupersededRequest(t *testing.T) {
	src := newFakeSource()
	src.results["a"] = []models.Lesson{lesson(1, "Art")}
	src.results["ab"] = []models.Lesson{lesson(2, "Abacus"), lesson(3, "Abseil")}
	src.gates["a"] = make(chan struct{})

	catalog := storage.NewCatalogStore(nil)
	c := NewController(context.Background(), src, catalog, time.Minute)

	c.Input("a")
	first := make(chan storage.FetchResult, 1)
	go func() { first <- c.Flush(context.Background()) }()
	if q := <-src.started; q != "a" {
		t.Fatalf("Expected request for %q to start, got %q", "a", q)
	}

	c.Input("ab")
	second := c.Flush(context.Background())
	<-src.started
	if !second.OK() {
		t.Fatalf("Expected second search to succeed, got %v", second.Err)
	}

	close(src.gates["a"])
	late := waitSettled(t, first)
	if !errors.Is(late.Err, ErrStale) {
		t.Errorf("Expected late response to be discarded as stale, got %v", late.Err)
	}

	if catalog.Len() != 2 {
		t.Errorf("Expected results of the newer query to remain, got %d lessons", catalog.Len())
	}
	if len(src.Calls()) != 2 {
		t.Errorf("Expected both requests to reach the server, got %v", src.Calls())
	}
}

func TestStopCancelsScheduledRequest(t *testing.T) {
	src := newFakeSource()
	catalog := storage.NewCatalogStore(nil)
	c := NewController(context.Background(), src, catalog, 20*time.Millisecond)

	c.Input("math")
	c.Stop()
	time.Sleep(60 * time.Millisecond)

	if calls := src.Calls(); len(calls) != 0 {
		t.Errorf("Expected no request after Stop, got %v", calls)
	}
}

package storage

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/schoolhub/lessonshop/internal/models"
)

// SortKey selects the lesson field used to order the catalog view.
type SortKey string

const (
	SortBySubject  SortKey = "subject"
	SortByLocation SortKey = "location"
	SortByPrice    SortKey = "price"
	SortBySpaces   SortKey = "spaces"
)

// SortDir is ascending or descending.
type SortDir string

const (
	Asc  SortDir = "asc"
	Desc SortDir = "desc"
)

// ParseSortKey validates a sort key coming from a flag or query string.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortBySubject, SortByLocation, SortByPrice, SortBySpaces:
		return k, nil
	case "":
		return SortBySubject, nil
	default:
		return "", fmt.Errorf("invalid sort key %q (subject, location, price or spaces)", s)
	}
}

// ParseSortDir validates a sort direction.
func ParseSortDir(s string) (SortDir, error) {
	switch d := SortDir(strings.ToLower(strings.TrimSpace(s))); d {
	case Asc, Desc:
		return d, nil
	case "":
		return Asc, nil
	default:
		return "", fmt.Errorf("invalid sort direction %q (asc or desc)", s)
	}
}

// FetchResult is the outcome of a catalog read. Read failures are
// recoverable: they are recorded here and the catalog keeps its contents.
type FetchResult struct {
	Lessons []models.Lesson
	Err     error
}

// OK reports whether the fetch produced a usable catalog.
func (r FetchResult) OK() bool {
	return r.Err == nil
}

// CatalogStore holds the lessons currently on offer and their free spaces.
type CatalogStore struct {
	lessons []models.Lesson
	mu      sync.RWMutex
}

func NewCatalogStore(lessons []models.Lesson) *CatalogStore {
	s := &CatalogStore{}
	s.ReplaceAll(lessons)
	return s
}

// ReplaceAll swaps the whole catalog. It never merges.
func (s *CatalogStore) ReplaceAll(lessons []models.Lesson) {
	cp := slices.Clone(lessons)
	for i := range cp {
		if cp[i].Spaces < 0 {
			cp[i].Spaces = 0
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons = cp
}

// Apply replaces the catalog with a successful fetch and ignores a failed one.
// It reports whether the catalog changed.
func (s *CatalogStore) Apply(r FetchResult) bool {
	if !r.OK() {
		return false
	}
	s.ReplaceAll(r.Lessons)
	return true
}

func (s *CatalogStore) indexOf(id models.LessonID) int {
	return slices.IndexFunc(s.lessons, func(l models.Lesson) bool {
		return l.ID.Equal(id)
	})
}

// Find returns a copy of the lesson with the given id.
func (s *CatalogStore) Find(id models.LessonID) (models.Lesson, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.Lesson{}, false
	}
	return s.lessons[i], true
}

// DecrementSpaces takes one space from the lesson. Unknown ids and full
// lessons are left alone. The returned lesson is the state after the change.
func (s *CatalogStore) DecrementSpaces(id models.LessonID) (models.Lesson, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 || s.lessons[i].Spaces <= 0 {
		return models.Lesson{}, false
	}
	s.lessons[i].Spaces--
	return s.lessons[i], true
}

// IncrementSpaces gives n spaces back to the lesson. Unknown ids are skipped.
func (s *CatalogStore) IncrementSpaces(id models.LessonID, n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 || n <= 0 {
		return false
	}
	s.lessons[i].Spaces += n
	return true
}

// All returns a copy of the catalog in its stored order.
func (s *CatalogStore) All() []models.Lesson {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lessons)
}

func (s *CatalogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lessons)
}

// Sorted yields the catalog ordered by key and dir. Text keys compare
// case-insensitively; the stored order is not touched.
func (s *CatalogStore) Sorted(key SortKey, dir SortDir) iter.Seq[models.Lesson] {
	view := s.All()
	compare := comparator(key)
	slices.SortFunc(view, func(a, b models.Lesson) int {
		if dir == Desc {
			return compare(b, a)
		}
		return compare(a, b)
	})

	return func(yield func(models.Lesson) bool) {
		for _, l := range view {
			if !yield(l) {
				return
			}
		}
	}
}

func comparator(key SortKey) func(a, b models.Lesson) int {
	switch key {
	case SortByLocation:
		return func(a, b models.Lesson) int {
			return strings.Compare(strings.ToLower(a.Location), strings.ToLower(b.Location))
		}
	case SortByPrice:
		return func(a, b models.Lesson) int {
			return a.Price.Cmp(b.Price)
		}
	case SortBySpaces:
		return func(a, b models.Lesson) int {
			return cmp.Compare(a.Spaces, b.Spaces)
		}
	default:
		return func(a, b models.Lesson) int {
			return strings.Compare(strings.ToLower(a.Subject), strings.ToLower(b.Subject))
		}
	}
}

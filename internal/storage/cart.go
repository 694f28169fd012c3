package storage

import (
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/schoolhub/lessonshop/internal/models"
)

// CartStore holds the buyer's selected lessons. Every add and remove moves
// spaces between the cart and the catalog it is bound to, so that for a
// lesson in the cart, catalog spaces + cart quantity stays constant until
// the catalog is refreshed from the server.
type CartStore struct {
	catalog *CatalogStore
	lines   []models.CartLine
	mu      sync.Mutex
}

func NewCartStore(catalog *CatalogStore) *CartStore {
	return &CartStore{catalog: catalog}
}

// Add reserves one space of the lesson. It is rejected when the lesson is
// not in the catalog or has no spaces left.
func (c *CartStore) Add(id models.LessonID) bool {
	if id.IsZero() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	lesson, ok := c.catalog.DecrementSpaces(id)
	if !ok {
		return false
	}

	if i := c.indexOf(id); i >= 0 {
		c.lines[i].Qty++
		return true
	}

	c.lines = append(c.lines, models.CartLine{
		ID:       lesson.ID,
		Subject:  lesson.Subject,
		Location: lesson.Location,
		Price:    lesson.Price,
		Qty:      1,
	})
	return true
}

// Remove drops the whole line and gives its quantity back to the catalog.
func (c *CartStore) Remove(id models.LessonID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.catalog.IncrementSpaces(c.lines[i].ID, c.lines[i].Qty)
	c.lines = slices.Delete(c.lines, i, i+1)
	return true
}

// Clear empties the cart without giving spaces back. Only call it once the
// spaces have been reconciled with the server.
func (c *CartStore) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}

func (c *CartStore) indexOf(id models.LessonID) int {
	return slices.IndexFunc(c.lines, func(l models.CartLine) bool {
		return l.ID.Equal(id)
	})
}

// Lines returns a copy of the cart in insertion order.
func (c *CartStore) Lines() []models.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.lines)
}

// Line returns the cart line for id.
func (c *CartStore) Line(id models.LessonID) (models.CartLine, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(id)
	if i < 0 {
		return models.CartLine{}, false
	}
	return c.lines[i], true
}

func (c *CartStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

func (c *CartStore) IsEmpty() bool {
	return c.Len() == 0
}

// Total is the exact sum of price × quantity.
func (c *CartStore) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Spaces is the number of spaces reserved across all lines.
func (c *CartStore) Spaces() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, l := range c.lines {
		n += l.Qty
	}
	return n
}

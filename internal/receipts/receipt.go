package receipts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/schoolhub/lessonshop/internal/models"
)

const timestampLayout = "2006-01-02_15-04-05"

// Buyer is the buyer section of a receipt
type Buyer struct {
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"`
}

// Line is one booked lesson
type Line struct {
	LessonID string `yaml:"lessonid"`
	Subject  string `yaml:"subject"`
	Location string `yaml:"location"`
	Price    string `yaml:"price"`
	Qty      int    `yaml:"qty"`
	Subtotal string `yaml:"subtotal"`
}

// Receipt is the YAML document written for a confirmed order
type Receipt struct {
	Timestamp string `yaml:"timestamp"`
	Buyer     Buyer  `yaml:"buyer"`
	Lines     []Line `yaml:"lines"`
	Spaces    int    `yaml:"spaces"`
	Total     string `yaml:"total"`
	// Response is the order service's reply, kept as-is when it is not JSON.
	Response any `yaml:"response,omitempty"`
}

// New builds a receipt from the cart as it was submitted.
func New(name, phone string, lines []models.CartLine, response json.RawMessage, at time.Time) Receipt {
	r := Receipt{
		Timestamp: at.Format(timestampLayout),
		Buyer:     Buyer{Name: name, Phone: phone},
		Lines:     make([]Line, 0, len(lines)),
	}

	total := decimal.Zero
	for _, l := range lines {
		sub := l.Subtotal()
		total = total.Add(sub)
		r.Spaces += l.Qty
		r.Lines = append(r.Lines, Line{
			LessonID: l.ID.String(),
			Subject:  l.Subject,
			Location: l.Location,
			Price:    l.Price.StringFixed(2),
			Qty:      l.Qty,
			Subtotal: sub.StringFixed(2),
		})
	}
	r.Total = total.StringFixed(2)

	if len(response) > 0 {
		var decoded any
		if err := json.Unmarshal(response, &decoded); err == nil {
			r.Response = decoded
		} else {
			r.Response = string(response)
		}
	}
	return r
}

// Save writes the receipt to dir/<timestamp>.yaml and returns the path.
// A second receipt in the same second gets a numeric suffix.
func Save(dir string, r Receipt) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create receipts directory: %w", err)
	}

	data, err := yaml.Marshal(&r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	for n := 1; ; n++ {
		name := r.Timestamp + ".yaml"
		if n > 1 {
			name = fmt.Sprintf("%s-%d.yaml", r.Timestamp, n)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create receipt file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write receipt: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to write receipt: %w", err)
		}
		return path, nil
	}
}

// Load reads a receipt back.
func Load(path string) (Receipt, error) {
	var r Receipt
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("failed to read receipt: %w", err)
	}
	if err := yaml.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("failed to parse receipt: %w", err)
	}
	return r, nil
}

package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/schoolhub/lessonshop/internal/models"
)

// ErrNotSequence is returned when a lessons payload is not a JSON array.
var ErrNotSequence = errors.New("response is not a sequence of lessons")

// MapRecords decodes a lessons payload. The body must be an array; anything
// else is rejected as a whole. Elements that are not objects still map to a
// lesson carrying defaults.
func MapRecords(body []byte) ([]models.Lesson, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode lessons: %w", err)
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, ErrNotSequence
	}

	lessons := make([]models.Lesson, 0, len(items))
	for _, item := range items {
		rec, _ := item.(map[string]any)
		lessons = append(lessons, MapRecord(rec))
	}
	return lessons, nil
}

// MapRecord converts one backend document into a Lesson:
//   - a numeric "id" wins, otherwise "_id" is used as an opaque id, then a
//     non-numeric "id"
//   - "subject" falls back to "topic"
//   - price and spaces default to 0 when absent or not numeric
//   - icon defaults to models.DefaultIcon
func MapRecord(rec map[string]any) models.Lesson {
	lesson := models.Lesson{
		ID:       recordID(rec),
		Subject:  firstString(rec, "subject", "topic"),
		Location: firstString(rec, "location"),
		Price:    decimalOf(rec["price"]),
		Spaces:   spacesOf(rec["spaces"]),
		Icon:     firstString(rec, "icon"),
	}
	if lesson.Icon == "" {
		lesson.Icon = models.DefaultIcon
	}
	if lesson.Price.IsNegative() {
		lesson.Price = decimal.Zero
	}
	return lesson
}

func recordID(rec map[string]any) models.LessonID {
	if v, ok := rec["id"]; ok {
		if f, ok := numberOf(v); ok {
			if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
				return models.NumID(int64(f))
			}
			return models.StrID(strconv.FormatFloat(f, 'f', -1, 64))
		}
	}

	switch v := rec["_id"].(type) {
	case string:
		return models.StrID(v)
	case map[string]any:
		// extended JSON: {"$oid": "..."}
		if oid, ok := v["$oid"].(string); ok {
			return models.StrID(oid)
		}
	case json.Number:
		return models.ParseID(v.String())
	case int:
		return models.NumID(int64(v))
	}

	// no usable _id: keep an opaque string id rather than dropping it
	if s, ok := rec["id"].(string); ok {
		return models.StrID(s)
	}
	return models.LessonID{}
}

func firstString(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := rec[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// numberOf mirrors a lenient numeric coercion: numbers, numeric strings and
// booleans count, everything else does not.
func numberOf(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func decimalOf(v any) decimal.Decimal {
	switch n := v.(type) {
	case json.Number:
		if d, err := decimal.NewFromString(n.String()); err == nil {
			return d
		}
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(n)); err == nil {
			return d
		}
	}
	f, ok := numberOf(v)
	if !ok || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func spacesOf(v any) int {
	f, ok := numberOf(v)
	if !ok || f <= 0 || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

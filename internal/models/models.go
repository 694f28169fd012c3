package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// DefaultIcon is the display tag used when a lesson record carries none.
const DefaultIcon = "fa-solid fa-chalkboard"

func init() {
	// the remote API stores prices as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// LessonID identifies a lesson. The remote API hands out numeric ids for
// seeded lessons and opaque string ids (database _id) for the rest; two ids
// are the same lesson when their canonical strings are equal, whatever kind
// they were created as.
type LessonID struct {
	num   int64
	str   string
	isNum bool
	set   bool
}

// NumID returns a numeric lesson id.
func NumID(n int64) LessonID {
	return LessonID{num: n, isNum: true, set: true}
}

// StrID returns an opaque string lesson id. An empty string yields the zero id.
func StrID(s string) LessonID {
	if s == "" {
		return LessonID{}
	}
	return LessonID{str: s, set: true}
}

// ParseID builds an id from user input, preferring the numeric kind. Only
// strings already in canonical integer form become numeric, so "0123" or
// "+5" keep their spelling and still match the lesson they name.
func ParseID(s string) LessonID {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return NumID(n)
	}
	return StrID(s)
}

// IsZero reports whether the id is unset.
func (id LessonID) IsZero() bool { return !id.set }

// IsNumeric reports whether the id was created from a number.
func (id LessonID) IsNumeric() bool { return id.isNum }

// String returns the canonical form used for every comparison.
func (id LessonID) String() string {
	if !id.set {
		return ""
	}
	if id.isNum {
		return strconv.FormatInt(id.num, 10)
	}
	return id.str
}

// Equal compares by canonical string.
func (id LessonID) Equal(other LessonID) bool {
	return id.String() == other.String()
}

// MarshalJSON writes numeric ids as JSON numbers and string ids as strings.
func (id LessonID) MarshalJSON() ([]byte, error) {
	switch {
	case !id.set:
		return []byte("null"), nil
	case id.isNum:
		return []byte(strconv.FormatInt(id.num, 10)), nil
	default:
		return json.Marshal(id.str)
	}
}

// UnmarshalJSON accepts a JSON number, a JSON string or null.
func (id *LessonID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = LessonID{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StrID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("lesson id %s is not an integer: %w", data, err)
	}
	*id = NumID(n)
	return nil
}

// MarshalText lets ids be used as YAML scalars and map keys.
func (id LessonID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses ids from YAML scalars and flags.
func (id *LessonID) UnmarshalText(text []byte) error {
	*id = ParseID(string(text))
	return nil
}

// Lesson is one purchasable item of the catalog.
type Lesson struct {
	ID       LessonID        `json:"id"`
	Subject  string          `json:"subject"`
	Location string          `json:"location"`
	Price    decimal.Decimal `json:"price"`
	Spaces   int             `json:"spaces"`
	Icon     string          `json:"icon"`
}

// CartLine is a lesson selected by the buyer. Subject, location and price are
// copied from the lesson when the line is created and never re-read.
type CartLine struct {
	ID       LessonID        `json:"id"`
	Subject  string          `json:"subject"`
	Location string          `json:"location"`
	Price    decimal.Decimal `json:"price"`
	Qty      int             `json:"qty"`
}

// Subtotal returns price × quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// OrderLine is one entry of OrderRequest.LessonIDs.
type OrderLine struct {
	LessonID LessonID `json:"lessonId"`
	Qty      int      `json:"qty"`
}

// OrderRequest is the body of POST /orders.
type OrderRequest struct {
	Name          string      `json:"name"`
	Phone         string      `json:"phone"`
	LessonIDs     []OrderLine `json:"lessonIDs"`
	NumberOfSpace int         `json:"numberOfSpace"`
}

// LessonUpdate is the body of PUT /lessons/:id.
type LessonUpdate struct {
	Subject  string          `json:"subject"`
	Location string          `json:"location"`
	Price    decimal.Decimal `json:"price"`
	Spaces   int             `json:"spaces"`
	Icon     string          `json:"icon"`
}

// UpdateFor builds the PUT body carrying the lesson's current local spaces.
func UpdateFor(l Lesson) LessonUpdate {
	return LessonUpdate{
		Subject:  l.Subject,
		Location: l.Location,
		Price:    l.Price,
		Spaces:   l.Spaces,
		Icon:     l.Icon,
	}
}

package fallback

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/schoolhub/lessonshop/internal/catalog"
	"github.com/schoolhub/lessonshop/internal/models"
)

// Row is the flat shape used for parquet catalog files.
type Row struct {
	ID       string `parquet:"id"`
	Subject  string `parquet:"subject"`
	Location string `parquet:"location"`
	Price    string `parquet:"price"`
	Spaces   int64  `parquet:"spaces"`
	Icon     string `parquet:"icon"`
}

// Loader reads a catalog file. Records go through the same mapping as API
// responses, so a file may use "topic" or "_id" just like the backend.
type Loader struct {
	path string
}

// NewLoader creates a new catalog file loader
func NewLoader(path string) *Loader {
	return &Loader{
		path: path,
	}
}

// Load loads lessons from a .yaml, .json, .jsonl or .parquet file
func (l *Loader) Load() ([]models.Lesson, error) {
	ext := strings.ToLower(filepath.Ext(l.path))

	switch ext {
	case ".parquet":
		return l.loadParquet()
	case ".jsonl":
		return l.loadJSONL()
	case ".json":
		return l.loadJSON()
	case ".yaml", ".yml":
		return l.loadYAML()
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .yaml, .json, .jsonl, .parquet)", ext)
	}
}

func (l *Loader) loadJSON() ([]models.Lesson, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	lessons, err := catalog.MapRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.path, err)
	}
	return lessons, nil
}

func (l *Loader) loadYAML() ([]models.Lesson, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: %w", l.path, catalog.ErrNotSequence)
	}

	lessons := make([]models.Lesson, 0, len(items))
	for _, item := range items {
		rec, _ := item.(map[string]any)
		lessons = append(lessons, catalog.MapRecord(rec))
	}
	return lessons, nil
}

// loadJSONL loads one record per line, skipping lines that do not parse
func (l *Loader) loadJSONL() ([]models.Lesson, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer file.Close()

	var lessons []models.Lesson
	scanner := bufio.NewScanner(file)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			slog.Warn("Skipping malformed catalog line", "path", l.path, "line", lineNum, "err", err)
			continue
		}
		lessons = append(lessons, catalog.MapRecord(rec))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading catalog file: %w", err)
	}

	slog.Debug("Finished reading JSONL catalog", "lessons", len(lessons), "lines", lineNum)
	return lessons, nil
}

func (l *Loader) loadParquet() ([]models.Lesson, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet catalog opened", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	var lessons []models.Lesson
	rows := make([]Row, 128)
	for {
		n, err := reader.Read(rows)
		for _, row := range rows[:n] {
			lessons = append(lessons, catalog.MapRecord(row.record()))
		}
		if err != nil {
			break
		}
	}

	return lessons, nil
}

func (r Row) record() map[string]any {
	rec := map[string]any{
		"subject":  r.Subject,
		"location": r.Location,
		"price":    r.Price,
		"spaces":   r.Spaces,
		"icon":     r.Icon,
	}
	if r.ID != "" {
		// a non-numeric id falls through to _id
		rec["id"] = r.ID
		rec["_id"] = r.ID
	}
	return rec
}

// RowFor flattens a lesson for parquet output.
func RowFor(l models.Lesson) Row {
	return Row{
		ID:       l.ID.String(),
		Subject:  l.Subject,
		Location: l.Location,
		Price:    l.Price.String(),
		Spaces:   int64(l.Spaces),
		Icon:     l.Icon,
	}
}

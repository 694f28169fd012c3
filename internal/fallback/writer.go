package fallback

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/schoolhub/lessonshop/internal/models"
)

// yamlLesson keeps numeric ids as YAML ints so files round-trip.
type yamlLesson struct {
	ID       any    `yaml:"id,omitempty"`
	Subject  string `yaml:"subject"`
	Location string `yaml:"location"`
	Price    string `yaml:"price"`
	Spaces   int    `yaml:"spaces"`
	Icon     string `yaml:"icon"`
}

// Save writes lessons to path in the format given by its extension. The
// result can be read back with Loader.
func Save(path string, lessons []models.Lesson) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".parquet":
		return saveParquet(path, lessons)
	case ".yaml", ".yml":
		return saveYAML(path, lessons)
	case ".json":
		return saveJSON(path, lessons)
	case ".jsonl":
		return saveJSONL(path, lessons)
	default:
		return fmt.Errorf("unsupported file format: %s (supported: .yaml, .json, .jsonl, .parquet)", ext)
	}
}

func saveParquet(path string, lessons []models.Lesson) error {
	rows := make([]Row, 0, len(lessons))
	for _, l := range lessons {
		rows = append(rows, RowFor(l))
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("failed to write parquet file: %w", err)
	}
	return nil
}

func saveYAML(path string, lessons []models.Lesson) error {
	out := make([]yamlLesson, 0, len(lessons))
	for _, l := range lessons {
		y := yamlLesson{
			Subject:  l.Subject,
			Location: l.Location,
			Price:    l.Price.String(),
			Spaces:   l.Spaces,
			Icon:     l.Icon,
		}
		switch {
		case l.ID.IsZero():
		case l.ID.IsNumeric():
			n, _ := strconv.ParseInt(l.ID.String(), 10, 64)
			y.ID = n
		default:
			y.ID = l.ID.String()
		}
		out = append(out, y)
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}

func saveJSON(path string, lessons []models.Lesson) error {
	data, err := json.MarshalIndent(lessons, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	return nil
}

func saveJSONL(path string, lessons []models.Lesson) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create JSONL file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, l := range lessons {
		if err := enc.Encode(l); err != nil {
			return fmt.Errorf("failed to encode lesson %s: %w", l.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write JSONL file: %w", err)
	}
	return nil
}

package content

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/influencer-lens/backend/pkg/logger"
)

const (
	maxTitleLength       = 500
	maxDescriptionLength = 1000
)

var columnAliases = map[string][]string{
	"id":          {"post_id", "video_id", "id"},
	"influencer":  {"influencer_name", "influencer"},
	"platform":    {"platform"},
	"title":       {"title", "caption"},
	"description": {"description"},
	"duration":    {"duration_seconds", "duration"},
	"transcript":  {"transcript"},
	"ocr_text":    {"ocr_text"},
}

// LoadFile reads content items from a consolidated posts export (.csv) or a
// JSON array of records (.json).
func LoadFile(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(f)
	case ".json":
		return LoadJSON(f)
	default:
		return nil, fmt.Errorf("unsupported input format: %s", filepath.Ext(path))
	}
}

func LoadCSV(r io.Reader) ([]Item, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")))
	}

	var records []map[string]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}
		record := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(row) {
				record[name] = row[i]
			}
		}
		records = append(records, record)
	}

	return fromRecords(records), nil
}

func LoadJSON(r io.Reader) ([]Item, error) {
	// Numeric ids can exceed float64 precision.
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode json input: %w", err)
	}

	records := make([]map[string]string, 0, len(raw))
	for _, obj := range raw {
		record := make(map[string]string, len(obj))
		for k, v := range obj {
			switch val := v.(type) {
			case nil:
			case string:
				record[strings.ToLower(k)] = val
			case json.Number:
				record[strings.ToLower(k)] = val.String()
			default:
				record[strings.ToLower(k)] = fmt.Sprint(val)
			}
		}
		records = append(records, record)
	}

	return fromRecords(records), nil
}

func fromRecords(records []map[string]string) []Item {
	items := make([]Item, 0, len(records))
	skipped := 0

	for _, rec := range records {
		title := strings.TrimSpace(lookup(rec, "title"))
		description := strings.TrimSpace(lookup(rec, "description"))
		if title == "" && description == "" {
			skipped++
			continue
		}

		items = append(items, Item{
			ID:          strings.TrimSpace(lookup(rec, "id")),
			Influencer:  strings.TrimSpace(lookup(rec, "influencer")),
			Platform:    ParsePlatform(lookup(rec, "platform")),
			Title:       Truncate(title, maxTitleLength),
			Description: Truncate(description, maxDescriptionLength),
			Duration:    parseDuration(lookup(rec, "duration")),
			Transcript:  lookup(rec, "transcript"),
			OCRText:     lookup(rec, "ocr_text"),
		})
	}

	logger.Info("Loaded content items",
		zap.Int("items", len(items)),
		zap.Int("skipped_without_text", skipped),
	)

	return items
}

func lookup(rec map[string]string, field string) string {
	for _, alias := range columnAliases[field] {
		if v, ok := rec[alias]; ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseDuration(s string) float64 {
	d, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return d
}

// Window applies offset and limit. A non-positive limit means no limit.
func Window(items []Item, offset, limit int) []Item {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

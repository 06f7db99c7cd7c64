package content

import (
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/influencer-lens/backend/pkg/logger"
)

// MaxIDLength is the provider limit for custom request ids.
const MaxIDLength = 64

// Validate drops items with empty ids, truncates long ids and removes
// duplicates keeping the earliest occurrence. Input order is preserved.
func Validate(items []Item) ([]Item, int) {
	seen := make(map[string]struct{}, len(items))
	valid := make([]Item, 0, len(items))
	removed := 0

	for i, item := range items {
		if item.ID == "" {
			logger.Warn("Skipping item with empty id", zap.Int("index", i))
			removed++
			continue
		}

		if utf8.RuneCountInString(item.ID) > MaxIDLength {
			original := item.ID
			item.ID = Truncate(item.ID, MaxIDLength)
			logger.Warn("Truncated item id",
				zap.String("original", original),
				zap.String("id", item.ID),
			)
		}

		if _, dup := seen[item.ID]; dup {
			logger.Warn("Skipping duplicate item id", zap.String("id", item.ID), zap.Int("index", i))
			removed++
			continue
		}

		seen[item.ID] = struct{}{}
		valid = append(valid, item)
	}

	if removed > 0 {
		logger.Info("Validated content items",
			zap.Int("kept", len(valid)),
			zap.Int("removed", removed),
		)
	}

	return valid, removed
}

// Partition splits items into ordered chunks of at most size items.
func Partition(items []Item, size int) [][]Item {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || len(items) <= size {
		return [][]Item{items}
	}

	chunks := make([][]Item, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// Select returns the items matching ids in ids order. Unknown ids are
// returned separately.
func Select(items []Item, ids []string) ([]Item, []string) {
	lookup := Index(items)
	selected := make([]Item, 0, len(ids))
	var missing []string
	for _, id := range ids {
		item, ok := lookup[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		selected = append(selected, item)
	}
	return selected, missing
}

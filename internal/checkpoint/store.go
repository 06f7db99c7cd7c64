package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/influencer-lens/backend/pkg/logger"
	"github.com/influencer-lens/backend/pkg/utils"
)

// Checkpoint is the on-disk record of a submitted batch and the ids it covers.
type Checkpoint struct {
	BatchID       string    `json:"batch_id"`
	BatchType     string    `json:"batch_type"`
	TotalRequests int       `json:"total_requests"`
	Processing    int       `json:"processing"`
	Succeeded     int       `json:"succeeded"`
	Errored       int       `json:"errored"`
	Canceled      int       `json:"canceled"`
	Expired       int       `json:"expired"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	ResultsURL    string    `json:"results_url"`
	ContentIDs    []string  `json:"content_ids"`
	SavedAt       time.Time `json:"saved_at"`
}

// Store owns a single checkpoint file. The directory acts as the idempotency
// key for a submission; only one writer should use it at a time.
type Store struct {
	dir  string
	file string
	now  func() time.Time
}

func NewStore(dir, file string) *Store {
	return &Store{dir: dir, file: file, now: time.Now}
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) Path() string { return filepath.Join(s.dir, s.file) }

// Load returns nil without error when no checkpoint exists.
func (s *Store) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", s.Path(), err)
	}
	return &cp, nil
}

// Save stamps SavedAt and writes the checkpoint atomically.
func (s *Store) Save(cp *Checkpoint) error {
	if cp.ContentIDs == nil {
		cp.ContentIDs = []string{}
	}
	cp.SavedAt = s.now().UTC()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := utils.WriteFileAtomic(s.Path(), data); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	logger.Debug("Checkpoint saved",
		zap.String("path", s.Path()),
		zap.String("batch_id", cp.BatchID),
		zap.String("status", cp.Status),
	)
	return nil
}

// Update applies fn to the stored checkpoint and saves it. The covered id
// list is never altered by fn.
func (s *Store) Update(fn func(cp *Checkpoint)) error {
	cp, err := s.Load()
	if err != nil {
		return err
	}
	if cp == nil {
		return fmt.Errorf("no checkpoint at %s", s.Path())
	}

	ids := cp.ContentIDs
	fn(cp)
	cp.ContentIDs = ids
	return s.Save(cp)
}

// Entry locates a checkpoint discovered on disk.
type Entry struct {
	Path       string      `json:"path"`
	Checkpoint *Checkpoint `json:"checkpoint"`
}

// Scan walks root and returns every readable checkpoint file whose name is in names.
func Scan(root string, names ...string) ([]Entry, error) {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}

	var entries []Entry
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := want[d.Name()]; !ok {
			return nil
		}

		store := NewStore(filepath.Dir(path), d.Name())
		cp, err := store.Load()
		if err != nil {
			logger.Warn("Skipping unreadable checkpoint", zap.String("path", path), zap.Error(err))
			return nil
		}
		entries = append(entries, Entry{Path: path, Checkpoint: cp})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan checkpoints under %s: %w", root, err)
	}
	return entries, nil
}

// Package condition persists the set of trading conditions evaluated by
// the strategy engine.
package condition

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yciu/futures-pipeline/internal/types"
)

// Params are the operator-configured fields of a new condition.
type Params struct {
	Action          types.Operation
	TriggerPrice    decimal.Decimal
	TurningPoint    int64
	Quantity        int64
	TakeProfitPoint int64
	StopLossPoint   int64
	IsFollowing     bool
}

// Store manages the condition file. The controlling process creates and
// deletes conditions; the strategy reads snapshots and writes back updated
// conditions serially in its own loop.
type Store struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// NewStore creates a condition store backed by the given file path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Create derives prices, validates, assigns a fresh ID and persists the
// new condition.
func (s *Store) Create(p Params) (*types.Condition, error) {
	cond := &types.Condition{
		ID:              uuid.NewString(),
		Action:          p.Action,
		TriggerPrice:    p.TriggerPrice,
		TurningPoint:    p.TurningPoint,
		Quantity:        p.Quantity,
		TakeProfitPoint: p.TakeProfitPoint,
		StopLossPoint:   p.StopLossPoint,
		IsFollowing:     p.IsFollowing,
		State:           types.StateWaiting,
	}
	cond.DerivePrices()

	if err := cond.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conds := s.load()
	conds = append(conds, *cond)
	if err := s.save(conds); err != nil {
		return nil, err
	}

	s.logger.Info("condition created",
		"condition_id", cond.ID,
		"action", cond.Action,
		"trigger", cond.TriggerPrice,
		"order", cond.OrderPrice,
		"take_profit", cond.TakeProfitPrice,
		"stop_loss", cond.StopLossPrice,
		"following", cond.IsFollowing,
	)
	return cond, nil
}

// Get returns the condition with the given ID.
func (s *Store) Get(id string) (*types.Condition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.load() {
		if c.ID == id {
			cond := c
			return &cond, nil
		}
	}
	return nil, types.ErrConditionNotFound
}

// GetAll returns a snapshot of all conditions.
func (s *Store) GetAll() ([]types.Condition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

// SearchByTriggerPrice returns conditions whose trigger price equals p.
func (s *Store) SearchByTriggerPrice(p decimal.Decimal) ([]types.Condition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.Condition
	for _, c := range s.load() {
		if c.TriggerPrice.Equal(p) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Update replaces the stored condition with the same ID.
func (s *Store) Update(cond types.Condition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conds := s.load()
	for i := range conds {
		if conds[i].ID == cond.ID {
			conds[i] = cond
			return s.save(conds)
		}
	}
	return types.ErrConditionNotFound
}

// Delete removes the condition with the given ID.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conds := s.load()
	for i := range conds {
		if conds[i].ID == id {
			conds = append(conds[:i], conds[i+1:]...)
			return s.save(conds)
		}
	}
	return types.ErrConditionNotFound
}

// DeleteAll removes every condition.
func (s *Store) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(nil)
}

// load reads the condition file. Malformed records are skipped one by one
// so a single bad entry cannot take the strategy down.
func (s *Store) load() []types.Condition {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read condition file", "path", s.path, "err", err)
		}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("malformed condition file", "path", s.path, "err", err)
		return nil
	}

	conds := make([]types.Condition, 0, len(raw))
	for i, rec := range raw {
		var c types.Condition
		if err := json.Unmarshal(rec, &c); err != nil {
			s.logger.Warn("skipping malformed condition record", "index", i, "err", err)
			continue
		}
		conds = append(conds, c)
	}
	return conds
}

// save rewrites the whole condition file atomically.
func (s *Store) save(conds []types.Condition) error {
	if conds == nil {
		conds = []types.Condition{}
	}

	data, err := json.MarshalIndent(conds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create condition dir: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp condition file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write temp condition file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync temp condition file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp condition file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace condition file: %w", err)
	}
	return nil
}

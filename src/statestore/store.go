package statestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	logger "github.com/sirupsen/logrus"

	"reboundtrader/src/model"
)

var (
	// ErrNoSnapshot is returned when no snapshot file exists.
	ErrNoSnapshot = errors.New("no snapshot file")

	// ErrStaleSnapshot is returned when the snapshot on disk is older than
	// the store's maximum age and must not be used for recovery.
	ErrStaleSnapshot = errors.New("snapshot too old to restore")
)

// State is everything a restarted trader needs to resume: the open positions
// per side and the realized balance they were opened against.
type State struct {
	Market      string                   `json:"market"`
	SavedAt     time.Time                `json:"saved_at"`
	RealizedPnL float64                  `json:"realized_pnl"`
	Positions   []model.PositionSnapshot `json:"positions"`
}

// Store persists the trader state as a single JSON file, replaced atomically
// on every save. The file is written only when a position opens or closes,
// never per tick.
type Store struct {
	path   string
	maxAge time.Duration
}

// NewStore creates a store at path. maxAge zero disables the staleness check.
func NewStore(path string, maxAge time.Duration) *Store {
	return &Store{path: path, maxAge: maxAge}
}

// Save writes the state to a temporary file in the same directory and
// renames it over the target, so a crash mid-write never leaves a torn file.
func (s *Store) Save(state State) error {
	state.SavedAt = time.Now().UTC()

	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	logger.WithFields(logger.Fields{
		"path":      s.path,
		"positions": len(state.Positions),
	}).Debug("snapshot saved")
	return nil
}

// Load reads the snapshot and validates it belongs to market and is fresh
// enough to restore from.
func (s *Store) Load(market string) (*State, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}

	if state.Market != market {
		return nil, fmt.Errorf("snapshot is for market %q, not %q", state.Market, market)
	}
	if s.maxAge > 0 && time.Since(state.SavedAt) > s.maxAge {
		return nil, fmt.Errorf("%w: saved %s", ErrStaleSnapshot, state.SavedAt.Format(time.RFC3339))
	}

	return &state, nil
}

// Clear removes the snapshot file. Missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

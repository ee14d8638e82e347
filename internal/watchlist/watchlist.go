// Package watchlist holds the ordered set of watched instruments and
// persists it to disk so the dashboard survives restarts.
package watchlist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ai-market-dashboard/internal/types"
)

// Store is an ordered, symbol-deduplicated instrument list persisted as a
// JSON array. Every mutation writes through to disk with a temp file plus
// rename so a crash mid-write never corrupts the list. Safe for concurrent
// use.
type Store struct {
	mu       sync.Mutex
	filePath string
	items    []types.Instrument
}

// New creates a store backed by the given file and loads any existing list.
// A missing or corrupt file degrades to an empty list, never an error.
func New(filePath string) *Store {
	s := &Store{filePath: filePath}
	s.load()
	return s
}

func (s *Store) load() {
	// stale temp file from a crashed write
	if _, err := os.Stat(s.filePath + ".tmp"); err == nil {
		_ = os.Remove(s.filePath + ".tmp")
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return
	}

	var items []types.Instrument
	if err := json.Unmarshal(data, &items); err != nil {
		return
	}

	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.Symbol == "" || seen[it.Symbol] {
			continue
		}
		seen[it.Symbol] = true
		s.items = append(s.items, it)
	}
}

// save writes the list to disk. Caller holds the lock.
func (s *Store) save() error {
	jsonData, err := json.MarshalIndent(s.items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal watchlist: %w", err)
	}

	if dir := filepath.Dir(s.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create watchlist dir: %w", err)
		}
	}

	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write watchlist: %w", err)
	}
	if err := os.Rename(tempPath, s.filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename watchlist file: %w", err)
	}
	return nil
}

// Add appends an instrument unless its symbol is already present. It reports
// whether the instrument was added.
func (s *Store) Add(inst types.Instrument) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range s.items {
		if it.Symbol == inst.Symbol {
			return false, nil
		}
	}
	s.items = append(s.items, inst)
	return true, s.save()
}

// AddBatch appends every new instrument in order, skipping symbols already
// present, with a single write at the end. It returns the count added.
func (s *Store) AddBatch(insts []types.Instrument) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, inst := range insts {
		dup := false
		for _, it := range s.items {
			if it.Symbol == inst.Symbol {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		s.items = append(s.items, inst)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, s.save()
}

// Remove deletes the instrument with the given symbol, preserving order of
// the rest. It reports whether anything was removed.
func (s *Store) Remove(symbol string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, it := range s.items {
		if it.Symbol == symbol {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true, s.save()
		}
	}
	return false, nil
}

// Contains reports whether a symbol is watched.
func (s *Store) Contains(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.Symbol == symbol {
			return true
		}
	}
	return false
}

// All returns a copy of the list in watch order.
func (s *Store) All() []types.Instrument {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Instrument, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of watched instruments.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"divtracker/internal/portfolio"
)

// ErrNotFound is returned when a symbol is not in the store.
var ErrNotFound = errors.New("store: symbol not found")

// Store keeps holdings in memory, mirrored to one flat JSON file.
// Every mutation rewrites the file through a temp file and rename so a
// crash mid-write never leaves a truncated store behind.
type Store struct {
	path string

	mu    sync.RWMutex
	items map[string]decimal.Decimal // key: upper-cased symbol
}

// Open loads holdings from path. A missing file is an empty store; a
// file that exists but does not parse is an error.
func Open(path string) (*Store, error) {
	s := &Store{path: path, items: make(map[string]decimal.Decimal)}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read holdings: %w", err)
	}
	var list []portfolio.Holding
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("parse holdings %s: %w", path, err)
	}
	for _, h := range list {
		sym := normalize(h.Symbol)
		if sym == "" {
			continue
		}
		s.items[sym] = h.Quantity
	}
	return s, nil
}

// List returns all holdings sorted by symbol.
func (s *Store) List() []portfolio.Holding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]portfolio.Holding, 0, len(s.items))
	for sym, qty := range s.items {
		out = append(out, portfolio.Holding{Symbol: sym, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Upsert sets a holding's quantity. A non-positive quantity removes
// the holding instead of storing a dead position.
func (s *Store) Upsert(symbol string, quantity decimal.Decimal) error {
	sym := normalize(symbol)
	if sym == "" {
		return errors.New("store: symbol is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if quantity.LessThanOrEqual(decimal.Zero) {
		delete(s.items, sym)
	} else {
		s.items[sym] = quantity
	}
	return s.saveLocked()
}

// Add increments a holding's quantity, creating it if absent.
func (s *Store) Add(symbol string, quantity decimal.Decimal) error {
	sym := normalize(symbol)
	if sym == "" {
		return errors.New("store: symbol is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[sym] = s.items[sym].Add(quantity)
	return s.saveLocked()
}

func (s *Store) Remove(symbol string) error {
	sym := normalize(symbol)
	if sym == "" {
		return errors.New("store: symbol is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[sym]; !ok {
		return ErrNotFound
	}
	delete(s.items, sym)
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	list := make([]portfolio.Holding, 0, len(s.items))
	for sym, qty := range s.items {
		list = append(list, portfolio.Holding{Symbol: sym, Quantity: qty})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Symbol < list[j].Symbol })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".assets-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

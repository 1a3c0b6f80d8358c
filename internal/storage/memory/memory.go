// Package memory is an in-process charge store seeded from a YAML file.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"subtrack/internal/core"
	"subtrack/internal/ports"
)

type Store struct {
	mu     sync.Mutex
	items  []core.RawCharge
	nextID int64
	now    func() time.Time
}

// seedFile is the on-disk seed shape:
//
//	charges:
//	  - name: Netflix
//	    amount: 15.99
//	    billing_cycle: monthly
//	    status: active
//	    currency: USD
//	    created_at: 2024-01-15
type seedFile struct {
	Charges []core.RawCharge `yaml:"charges"`
}

// New builds a store from charges. Explicit ids are kept; rows without an
// id, or repeating one already taken, are numbered after the highest
// explicit id.
func New(charges []core.RawCharge) *Store {
	s := &Store{now: time.Now}
	taken := make(map[int64]bool, len(charges))
	for _, c := range charges {
		if c.ID > s.nextID {
			s.nextID = c.ID
		}
	}
	for _, c := range charges {
		if c.ID <= 0 || taken[c.ID] {
			s.nextID++
			c.ID = s.nextID
		}
		taken[c.ID] = true
		s.items = append(s.items, c)
	}
	return s
}

// NewFromFile seeds the store from path. A missing file yields an empty
// store; a malformed one is an error.
func NewFromFile(path string) (*Store, error) {
	charges, err := LoadSeed(path)
	if err != nil {
		return nil, err
	}
	return New(charges), nil
}

// LoadSeed reads seed charges from a YAML file.
func LoadSeed(path string) ([]core.RawCharge, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Warn("Seed file not found, starting empty", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return seed.Charges, nil
}

// ListCharges implements ports.ChargeLister
func (s *Store) ListCharges(_ context.Context, f ports.ChargeFilter) ([]core.RawCharge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RawCharge, 0, len(s.items))
	for _, c := range s.items {
		created, _ := core.ParseTimestamp(c.CreatedAt)
		if f.Matches(created, c.Status) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) GetCharge(_ context.Context, id int64) (core.RawCharge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i], nil
	}
	return core.RawCharge{}, ports.ErrNotFound
}

func (s *Store) CreateCharge(_ context.Context, in core.ChargeInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c := fromInput(s.nextID, in)
	c.CreatedAt = s.now().UTC().Format(time.RFC3339)
	s.items = append(s.items, c)
	return c.ID, nil
}

func (s *Store) UpdateCharge(_ context.Context, id int64, in core.ChargeInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return ports.ErrNotFound
	}
	c := fromInput(id, in)
	c.CreatedAt = s.items[i].CreatedAt
	s.items[i] = c
	return nil
}

func (s *Store) DeleteCharge(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return ports.ErrNotFound
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

func (s *Store) CountCharges(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.items)), nil
}

func (s *Store) indexOf(id int64) int {
	for i, c := range s.items {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func fromInput(id int64, in core.ChargeInput) core.RawCharge {
	n := in.Normalized()
	amount, _ := core.ParseAmountString(n.Amount)
	return core.RawCharge{
		ID:           id,
		Name:         n.Name,
		Amount:       amount.String(),
		BillingCycle: n.BillingCycle,
		Status:       n.Status,
		Currency:     n.Currency,
	}
}

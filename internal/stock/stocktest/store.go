// Package stocktest provides an in-memory stock store for service tests.
package stocktest

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oceangate/oceangate/internal/shared"
	"github.com/oceangate/oceangate/internal/stock"
)

// Store keeps lots and categories in memory. Transactions are serialised.
type Store struct {
	mu         sync.Mutex
	lots       map[uuid.UUID]stock.Stock
	categories map[uuid.UUID]stock.CategorySummary
	clock      time.Time
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		lots:       map[uuid.UUID]stock.Stock{},
		categories: map[uuid.UUID]stock.CategorySummary{},
		clock:      time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

// AddCategory registers a category.
func (s *Store) AddCategory(name string) stock.CategorySummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := stock.CategorySummary{ID: uuid.New(), Name: name, Species: "Mud crab", WeightRange: "200-300g"}
	s.categories[c.ID] = c
	return c
}

// HasCategory reports whether the category exists.
func (s *Store) HasCategory(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.categories[id]
	return ok
}

// AddLot inserts an Available lot.
func (s *Store) AddLot(category stock.CategorySummary, quantity int, weight, unitPrice string) stock.Stock {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = s.clock.Add(time.Minute)
	cat := category
	lot := stock.Stock{
		ID:         uuid.New(),
		CategoryID: category.ID,
		Category:   &cat,
		Quantity:   quantity,
		Weight:     decimal.RequireFromString(weight),
		UnitPrice:  decimal.RequireFromString(unitPrice),
		Status:     stock.StatusAvailable,
		Version:    1,
		CreatedAt:  s.clock,
		UpdatedAt:  s.clock,
	}
	s.lots[lot.ID] = lot
	return lot
}

// Put stores lot as-is.
func (s *Store) Put(lot stock.Stock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lots[lot.ID] = lot
}

// Lot returns the committed state of a lot.
func (s *Store) Lot(id uuid.UUID) (stock.Stock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lot, ok := s.lots[id]
	return lot, ok
}

// Lots returns every committed lot, newest first.
func (s *Store) Lots() []stock.Stock {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]stock.Stock, 0, len(s.lots))
	for _, lot := range s.lots {
		out = append(out, lot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Delete removes a lot.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lots, id)
}

// Tx is a staged view over the store.
type Tx struct {
	store   *Store
	staged  map[uuid.UUID]stock.Stock
	deleted map[uuid.UUID]bool
}

// WithTx runs fn against a staged copy and commits it when fn succeeds.
func (s *Store) WithTx(fn func(*Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &Tx{store: s, staged: map[uuid.UUID]stock.Stock{}, deleted: map[uuid.UUID]bool{}}
	if err := fn(tx); err != nil {
		return err
	}
	for id, lot := range tx.staged {
		s.lots[id] = lot
	}
	for id := range tx.deleted {
		delete(s.lots, id)
	}
	return nil
}

// Lock returns the staged or committed state of a lot.
func (tx *Tx) Lock(id uuid.UUID) (stock.Stock, error) {
	if tx.deleted[id] {
		return stock.Stock{}, shared.NotFound("Stock")
	}
	if lot, ok := tx.staged[id]; ok {
		return lot, nil
	}
	lot, ok := tx.store.lots[id]
	if !ok {
		return stock.Stock{}, shared.NotFound("Stock")
	}
	return lot, nil
}

// LockMany returns the lots that exist among ids.
func (tx *Tx) LockMany(ids []uuid.UUID) map[uuid.UUID]stock.Stock {
	out := make(map[uuid.UUID]stock.Stock, len(ids))
	for _, id := range stock.SortedIDs(ids) {
		if lot, err := tx.Lock(id); err == nil {
			out[id] = lot
		}
	}
	return out
}

// Save stages lot if its version matches and bumps the version.
func (tx *Tx) Save(lot stock.Stock) (stock.Stock, error) {
	if err := lot.CheckInvariants(); err != nil {
		return stock.Stock{}, err
	}
	current, err := tx.Lock(lot.ID)
	if err != nil {
		return stock.Stock{}, err
	}
	if current.Version != lot.Version {
		return stock.Stock{}, stock.ErrStaleVersion
	}
	lot.Version++
	if cat, ok := tx.store.categories[lot.CategoryID]; ok {
		lot.Category = &cat
	}
	tx.staged[lot.ID] = lot
	return lot, nil
}

// Delete stages the removal of a lot.
func (tx *Tx) Delete(id uuid.UUID) {
	delete(tx.staged, id)
	tx.deleted[id] = true
}

// HasCategory reports whether the category exists.
func (tx *Tx) HasCategory(id uuid.UUID) bool {
	_, ok := tx.store.categories[id]
	return ok
}

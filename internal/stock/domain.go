// Package stock keeps the per-lot quantity, weight and price ledger and the
// deduction rule shared by every mutator of a lot.
package stock

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oceangate/oceangate/internal/shared"
)

// Status tags the lifecycle of a lot.
type Status string

const (
	// StatusAvailable lots can be invoiced.
	StatusAvailable Status = "Available"
	// StatusSold lots were emptied by invoice finalization.
	StatusSold Status = "Sold"
	// StatusDOA lots were emptied by dead-on-arrival records.
	StatusDOA Status = "DOA"
)

// ParseStatus validates a status name.
func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusAvailable, StatusSold, StatusDOA:
		return Status(raw), true
	}
	return "", false
}

// Precision of persisted decimals.
const (
	WeightPlaces = 3
	MoneyPlaces  = 2
)

var (
	// ErrInsufficientQuantity indicates a deduction larger than the lot.
	ErrInsufficientQuantity = fmt.Errorf("%w: insufficient quantity", shared.ErrValidation)
	// ErrInvalidQuantity indicates a deduction below one unit.
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be at least 1", shared.ErrValidation)
	// ErrNotAvailable indicates the lot is Sold or DOA.
	ErrNotAvailable = fmt.Errorf("%w: stock not available", shared.ErrValidation)
	// ErrInUse indicates DOA records or invoice lines reference the lot.
	ErrInUse = fmt.Errorf("%w: stock in use", shared.ErrValidation)
	// ErrStaleVersion indicates the row changed after it was read.
	ErrStaleVersion = fmt.Errorf("%w: stock row changed concurrently", shared.ErrConflict)
)

// CategorySummary is the category projection joined onto stock reads.
type CategorySummary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Species     string    `json:"species"`
	WeightRange string    `json:"weightRange"`
}

// Stock is one lot of live seafood.
type Stock struct {
	ID         uuid.UUID        `json:"id"`
	CategoryID uuid.UUID        `json:"categoryId"`
	Category   *CategorySummary `json:"category,omitempty"`
	Quantity   int              `json:"quantity"`
	Weight     decimal.Decimal  `json:"weight"`
	UnitPrice  decimal.Decimal  `json:"unitPrice"`
	Location   string           `json:"location"`
	Status     Status           `json:"status"`
	Notes      string           `json:"notes"`
	Version    int64            `json:"version"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// Label names the lot in user-facing messages.
func (s Stock) Label() string {
	if s.Category != nil && s.Category.Name != "" {
		return fmt.Sprintf("%s (%s)", s.Category.Name, s.ID)
	}
	return s.ID.String()
}

// CheckInvariants verifies the quantity, weight and status rules of a lot.
func (s Stock) CheckInvariants() error {
	if s.Quantity < 0 {
		return shared.Validation("Quantity cannot be negative")
	}
	if s.Weight.IsNegative() {
		return shared.Validation("Weight cannot be negative")
	}
	if s.UnitPrice.IsNegative() {
		return shared.Validation("Unit price cannot be negative")
	}
	if _, ok := ParseStatus(string(s.Status)); !ok {
		return shared.Validation("Invalid stock status %q", s.Status)
	}
	if (s.Quantity == 0) != (s.Status != StatusAvailable) {
		return shared.Validation("Stock with quantity %d cannot have status %s", s.Quantity, s.Status)
	}
	return nil
}

// Deduct removes qty units and their prorated weight from the lot. The lot
// takes zeroStatus when emptied. It returns the weight removed.
func (s *Stock) Deduct(qty int, zeroStatus Status) (decimal.Decimal, error) {
	if qty < 1 {
		return decimal.Zero, ErrInvalidQuantity
	}
	if qty > s.Quantity {
		return decimal.Zero, shared.Public(
			fmt.Sprintf("Insufficient quantity for %s. Available: %d, Requested: %d", s.Label(), s.Quantity, qty),
			ErrInsufficientQuantity,
		)
	}
	removed := s.Weight
	if qty < s.Quantity {
		removed = s.Weight.Mul(decimal.NewFromInt(int64(qty))).
			Div(decimal.NewFromInt(int64(s.Quantity))).
			Round(WeightPlaces)
		if removed.GreaterThan(s.Weight) {
			removed = s.Weight
		}
	}
	s.Quantity -= qty
	s.Weight = s.Weight.Sub(removed)
	if s.Quantity == 0 {
		s.Status = zeroStatus
	}
	return removed, nil
}

// Filter enumerates the recognised list predicates; they are AND-ed.
type Filter struct {
	Search     string
	CategoryID *uuid.UUID
	Status     *Status
}

// Input carries the writable fields for create and update.
type Input struct {
	CategoryID string           `json:"category" validate:"required,uuid"`
	Quantity   *int             `json:"quantity" validate:"required"`
	Weight     *decimal.Decimal `json:"weight" validate:"required"`
	UnitPrice  *decimal.Decimal `json:"unitPrice" validate:"required"`
	Location   string           `json:"location" validate:"max=200"`
	Notes      string           `json:"notes" validate:"max=2000"`
}

func (in Input) normalize() Input {
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	in.Location = strings.TrimSpace(in.Location)
	in.Notes = strings.TrimSpace(in.Notes)
	return in
}

// checkAmounts rejects negative amounts; it runs after struct validation.
func (in Input) checkAmounts() error {
	var problems []string
	if *in.Quantity < 0 {
		problems = append(problems, "Quantity cannot be negative")
	}
	if in.Weight.IsNegative() {
		problems = append(problems, "Weight cannot be negative")
	}
	if in.UnitPrice.IsNegative() {
		problems = append(problems, "Unit price cannot be negative")
	}
	if len(problems) > 0 {
		return shared.Validation("%s", strings.Join(problems, "; "))
	}
	return nil
}

func inUseError(doaRecords, invoiceLines int) error {
	return shared.Public(fmt.Sprintf(
		"Cannot delete stock. %d DOA record(s) and %d invoice line(s) reference this stock item.",
		doaRecords, invoiceLines), ErrInUse)
}

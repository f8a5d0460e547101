// Package doa records dead-on-arrival losses against stock lots.
package doa

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oceangate/oceangate/internal/stock"
)

// StockSummary is the lot projection joined onto DOA reads.
type StockSummary struct {
	ID       uuid.UUID              `json:"id"`
	Quantity int                    `json:"quantity"`
	Weight   decimal.Decimal        `json:"weight"`
	Status   stock.Status           `json:"status"`
	Location string                 `json:"location"`
	Category *stock.CategorySummary `json:"category,omitempty"`
}

// Record is one immutable loss entry.
type Record struct {
	ID         uuid.UUID       `json:"id"`
	StockID    uuid.UUID       `json:"stockId"`
	Stock      *StockSummary   `json:"stock,omitempty"`
	Quantity   int             `json:"quantity"`
	Weight     decimal.Decimal `json:"weight"`
	Notes      string          `json:"notes"`
	RecordedAt time.Time       `json:"recordedAt"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Input carries a DOA recording request.
type Input struct {
	StockID    string     `json:"stockId" validate:"required,uuid"`
	Quantity   int        `json:"quantity" validate:"min=1"`
	Notes      string     `json:"notes" validate:"max=2000"`
	RecordedAt *time.Time `json:"recordedAt"`
}

func (in Input) normalize() Input {
	in.StockID = strings.TrimSpace(in.StockID)
	in.Notes = strings.TrimSpace(in.Notes)
	return in
}

// Package invoices drafts customer invoices against stock lots and deducts
// the lots atomically on finalization.
package invoices

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oceangate/oceangate/internal/shared"
	"github.com/oceangate/oceangate/internal/stock"
)

// Status tracks the invoice lifecycle.
type Status string

const (
	// StatusDraft invoices have no stock impact.
	StatusDraft Status = "Draft"
	// StatusFinalized invoices have deducted their lots and are permanent.
	StatusFinalized Status = "Finalized"
	// StatusDeleted is accepted by the schema; drafts are hard deleted.
	StatusDeleted Status = "Deleted"
)

// Defaults applied to shipping details.
const (
	DefaultShippingCode  = "100"
	DefaultParkingCenter = "Isabela Sea Foods"
)

var (
	// ErrAlreadyFinalized rejects a second finalization.
	ErrAlreadyFinalized = shared.Public("Invoice is already finalized", shared.ErrValidation)
	// ErrFinalizedImmutable rejects deleting a finalized invoice.
	ErrFinalizedImmutable = shared.Public("Cannot delete finalized invoice", shared.ErrValidation)
	// ErrNumberTaken reports an invoice number collision on insert.
	ErrNumberTaken = fmt.Errorf("%w: invoice number already used", shared.ErrConflict)
)

// Customer identifies the buyer.
type Customer struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Shipping carries air freight details.
type Shipping struct {
	AWBNumber     string `json:"awbNumber"`
	FlightNumber  string `json:"flightNumber"`
	Code          string `json:"code"`
	HCNumber      string `json:"hcNumber,omitempty"`
	ParkingCenter string `json:"parkingCenter"`
}

// LineItem bills part of one lot.
type LineItem struct {
	ID          uuid.UUID              `json:"id"`
	StockID     uuid.UUID              `json:"stockId"`
	Category    *stock.CategorySummary `json:"category,omitempty"`
	Description string                 `json:"description"`
	Quantity    int                    `json:"quantity"`
	UnitPrice   decimal.Decimal        `json:"unitPrice"`
	Subtotal    decimal.Decimal        `json:"subtotal"`
	Weight      *decimal.Decimal       `json:"weight,omitempty"`
}

// Invoice is a customer invoice.
type Invoice struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceNumber string          `json:"invoiceNumber"`
	Date          time.Time       `json:"date"`
	Customer      Customer        `json:"customer"`
	Shipping      Shipping        `json:"shipping"`
	LineItems     []LineItem      `json:"lineItems"`
	Status        Status          `json:"status"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	TotalWeight   decimal.Decimal `json:"totalWeight"`
	TotalBoxes    int             `json:"totalBoxes"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	FinalizedAt   *time.Time      `json:"finalizedAt,omitempty"`
}

// StockIDs returns the distinct lots referenced by the invoice in lock order.
func (inv Invoice) StockIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(inv.LineItems))
	for _, line := range inv.LineItems {
		ids = append(ids, line.StockID)
	}
	return stock.SortedIDs(ids)
}

// QuantityByStock sums requested units per lot.
func QuantityByStock(lines []LineItem) map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		out[line.StockID] += line.Quantity
	}
	return out
}

// computeTotals fills line subtotals and the invoice money and weight totals.
// requestedWeight is used when no line carries a weight; boxes overrides the
// line count when supplied.
func computeTotals(inv *Invoice, requestedWeight decimal.Decimal, boxes *int) {
	subtotal := decimal.Zero
	lineWeight := decimal.Zero
	weighed := false
	for i := range inv.LineItems {
		line := &inv.LineItems[i]
		line.UnitPrice = line.UnitPrice.Round(stock.MoneyPlaces)
		line.Subtotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(stock.MoneyPlaces)
		subtotal = subtotal.Add(line.Subtotal)
		if line.Weight != nil {
			w := line.Weight.Round(stock.WeightPlaces)
			line.Weight = &w
			lineWeight = lineWeight.Add(w)
			weighed = true
		}
	}
	inv.Subtotal = subtotal
	inv.Tax = decimal.Zero
	inv.Total = subtotal
	if weighed {
		inv.TotalWeight = lineWeight
	} else {
		inv.TotalWeight = requestedWeight.Round(stock.WeightPlaces)
	}
	inv.TotalBoxes = len(inv.LineItems)
	if boxes != nil {
		inv.TotalBoxes = *boxes
	}
}

// Package dashboard summarises stock, DOA and invoice activity for the home
// screen. Results are cached in Redis under a versioned key.
package dashboard

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oceangate/oceangate/internal/stock"
)

const (
	recentLimit  = 10
	movementDays = 7
	dayLayout    = "2006-01-02"
)

// StockTotals aggregates Available lots.
type StockTotals struct {
	Quantity int             `json:"quantity"`
	Weight   decimal.Decimal `json:"weight"`
}

// Summary holds the headline figures.
type Summary struct {
	TotalStock     StockTotals     `json:"totalStock"`
	ThisWeekIncome decimal.Decimal `json:"thisWeekIncome"`
	TotalDOAWeight decimal.Decimal `json:"totalDOAWeight"`
	AvailableBoxes int             `json:"availableBoxes"`
}

// RecentInvoice is the dashboard row for an invoice.
type RecentInvoice struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceNumber string          `json:"invoiceNumber"`
	Date          time.Time       `json:"date"`
	Customer      InvoiceCustomer `json:"customer"`
	Status        string          `json:"status"`
	Total         decimal.Decimal `json:"total"`
	TotalWeight   decimal.Decimal `json:"totalWeight"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// InvoiceCustomer names the buyer of a RecentInvoice.
type InvoiceCustomer struct {
	Name string `json:"name"`
}

// MovementPoint is the cumulative stock weight created up to the end of Date.
type MovementPoint struct {
	Date   string          `json:"date"`
	Weight decimal.Decimal `json:"weight"`
}

// CategoryShare is the Available weight and quantity of one category.
type CategoryShare struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Weight   decimal.Decimal `json:"weight"`
	Quantity int             `json:"quantity"`
}

// Metrics is the full dashboard payload.
type Metrics struct {
	Metrics              Summary         `json:"metrics"`
	RecentStock          []stock.Stock   `json:"recentStock"`
	RecentInvoices       []RecentInvoice `json:"recentInvoices"`
	WeeklyMovement       []MovementPoint `json:"weeklyMovement"`
	CategoryDistribution []CategoryShare `json:"categoryDistribution"`
}

// WeekStart returns the most recent Sunday 00:00 in now's location.
func WeekStart(now time.Time) time.Time {
	day := startOfDay(now)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// MovementWindow returns the trailing days ending today, oldest first.
// Each entry is the start of that day in now's location.
func MovementWindow(now time.Time) []time.Time {
	today := startOfDay(now)
	out := make([]time.Time, 0, movementDays)
	for i := movementDays - 1; i >= 0; i-- {
		out = append(out, today.AddDate(0, 0, -i))
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

package invoices

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CreateInvoiceRequest is the payload for drafting an invoice. Client side
// totals are accepted for compatibility and recomputed.
type CreateInvoiceRequest struct {
	Date        *DateInput       `json:"date"`
	Customer    CustomerInput    `json:"customer"`
	Shipping    ShippingInput    `json:"shipping"`
	LineItems   []LineItemInput  `json:"lineItems" validate:"required,min=1,dive"`
	Subtotal    *decimal.Decimal `json:"subtotal"`
	Tax         *decimal.Decimal `json:"tax"`
	Total       *decimal.Decimal `json:"total"`
	TotalWeight *decimal.Decimal `json:"totalWeight"`
	TotalBoxes  *int             `json:"totalBoxes" validate:"omitempty,min=0"`
}

// CustomerInput is the buyer block of CreateInvoiceRequest.
type CustomerInput struct {
	Name    string `json:"name" validate:"required,max=200"`
	Address string `json:"address" validate:"required,max=500"`
	Phone   string `json:"phone" validate:"max=40"`
	Email   string `json:"email" validate:"omitempty,email"`
}

// ShippingInput is the freight block of CreateInvoiceRequest.
type ShippingInput struct {
	AWBNumber     string `json:"awbNumber" validate:"required,max=100"`
	FlightNumber  string `json:"flightNumber" validate:"required,max=100"`
	Code          string `json:"code" validate:"max=50"`
	HCNumber      string `json:"hcNumber" validate:"max=100"`
	ParkingCenter string `json:"parkingCenter" validate:"max=200"`
}

// LineItemInput bills part of one lot.
type LineItemInput struct {
	StockID     string           `json:"stockId" validate:"required,uuid"`
	Description string           `json:"description" validate:"max=500"`
	Quantity    int              `json:"quantity" validate:"min=1"`
	UnitPrice   *decimal.Decimal `json:"unitPrice" validate:"required"`
	Weight      *decimal.Decimal `json:"weight"`
}

func (r CreateInvoiceRequest) normalize() CreateInvoiceRequest {
	r.Customer.Name = strings.TrimSpace(r.Customer.Name)
	r.Customer.Address = strings.TrimSpace(r.Customer.Address)
	r.Customer.Phone = strings.TrimSpace(r.Customer.Phone)
	r.Customer.Email = strings.ToLower(strings.TrimSpace(r.Customer.Email))
	r.Shipping.AWBNumber = strings.TrimSpace(r.Shipping.AWBNumber)
	r.Shipping.FlightNumber = strings.TrimSpace(r.Shipping.FlightNumber)
	r.Shipping.Code = strings.TrimSpace(r.Shipping.Code)
	if r.Shipping.Code == "" {
		r.Shipping.Code = DefaultShippingCode
	}
	r.Shipping.HCNumber = strings.TrimSpace(r.Shipping.HCNumber)
	r.Shipping.ParkingCenter = strings.TrimSpace(r.Shipping.ParkingCenter)
	if r.Shipping.ParkingCenter == "" {
		r.Shipping.ParkingCenter = DefaultParkingCenter
	}
	items := make([]LineItemInput, len(r.LineItems))
	for i, item := range r.LineItems {
		item.StockID = strings.TrimSpace(item.StockID)
		item.Description = strings.TrimSpace(item.Description)
		items[i] = item
	}
	r.LineItems = items
	return r
}

// DateInput accepts either a calendar date or an RFC 3339 timestamp.
type DateInput struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DateInput) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t
			return nil
		}
	}
	return &time.ParseError{Layout: "2006-01-02", Value: raw, Message: ": invalid invoice date"}
}

package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oceangate/oceangate/internal/shared"
	"github.com/oceangate/oceangate/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context) ([]Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (Invoice, error)
	GetStocks(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]stock.Stock, error)
	Insert(ctx context.Context, inv Invoice) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// PhoneRegion is the default region for customer phone numbers.
	PhoneRegion string
	// Location is the business time zone used for invoice numbers.
	Location *time.Location
}

// Service coordinates invoice operations.
type Service struct {
	repo     RepositoryPort
	locker   *shared.Locker
	validate *validator.Validate
	cache    shared.Invalidator
	logger   *slog.Logger
	region   string
	loc      *time.Location
	now      func() time.Time
	number   NumberFunc
}

// NewService builds Service. locker and cache may be nil.
func NewService(repo RepositoryPort, locker *shared.Locker, cache shared.Invalidator, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.PhoneRegion == "" {
		cfg.PhoneRegion = "US"
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		validate: shared.NewValidator(),
		cache:    cache,
		logger:   logger,
		region:   strings.ToUpper(cfg.PhoneRegion),
		loc:      cfg.Location,
		now:      time.Now,
		number:   RandomNumber,
	}
}

// List returns every invoice, newest first.
func (s *Service) List(ctx context.Context) ([]Invoice, error) {
	return s.repo.List(ctx)
}

// Get returns one invoice.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return s.repo.Get(ctx, id)
}

// Create validates the request against current stock and stores a draft.
// Stock is not reserved.
func (s *Service) Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error) {
	req = req.normalize()
	if err := s.validate.Struct(req); err != nil {
		return Invoice{}, shared.FromValidator(err)
	}
	if req.Tax != nil && !req.Tax.IsZero() {
		return Invoice{}, shared.Validation("Tax must be 0")
	}
	phone, err := normalizePhone(req.Customer.Phone, s.region)
	if err != nil {
		return Invoice{}, err
	}

	now := s.now()
	inv := Invoice{
		ID:   uuid.New(),
		Date: now.UTC(),
		Customer: Customer{
			Name:    req.Customer.Name,
			Address: req.Customer.Address,
			Phone:   phone,
			Email:   req.Customer.Email,
		},
		Shipping: Shipping{
			AWBNumber:     req.Shipping.AWBNumber,
			FlightNumber:  req.Shipping.FlightNumber,
			Code:          req.Shipping.Code,
			HCNumber:      req.Shipping.HCNumber,
			ParkingCenter: req.Shipping.ParkingCenter,
		},
		Status:    StatusDraft,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if req.Date != nil && !req.Date.IsZero() {
		inv.Date = req.Date.UTC()
	}
	for _, item := range req.LineItems {
		stockID, err := uuid.Parse(item.StockID)
		if err != nil {
			return Invoice{}, shared.Validation("Invalid stock id %q", item.StockID)
		}
		line := LineItem{
			ID:          uuid.New(),
			StockID:     stockID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   *item.UnitPrice,
			Weight:      item.Weight,
		}
		if line.UnitPrice.IsNegative() {
			return Invoice{}, shared.Validation("Unit price cannot be negative for stock item %s", stockID)
		}
		if line.Weight != nil && line.Weight.IsNegative() {
			return Invoice{}, shared.Validation("Weight cannot be negative for stock item %s", stockID)
		}
		inv.LineItems = append(inv.LineItems, line)
	}

	lots, err := s.repo.GetStocks(ctx, inv.StockIDs())
	if err != nil {
		return Invoice{}, err
	}
	if err := checkAvailability(inv.LineItems, lots, true); err != nil {
		return Invoice{}, err
	}
	for i := range inv.LineItems {
		line := &inv.LineItems[i]
		if line.Description == "" {
			line.Description = lots[line.StockID].Label()
		}
		if lot := lots[line.StockID]; lot.Category != nil {
			line.Category = lot.Category
		}
	}

	requestedWeight := decimal.Zero
	if req.TotalWeight != nil && !req.TotalWeight.IsNegative() {
		requestedWeight = *req.TotalWeight
	}
	computeTotals(&inv, requestedWeight, req.TotalBoxes)

	if err := s.insertWithNumber(ctx, &inv, now); err != nil {
		return Invoice{}, err
	}
	s.logger.Info("invoice drafted",
		slog.String("invoice_id", inv.ID.String()),
		slog.String("invoice_number", inv.InvoiceNumber),
		slog.Int("lines", len(inv.LineItems)),
		slog.String("total", inv.Total.String()))
	shared.Invalidate(ctx, s.cache, s.logger)
	return s.repo.Get(ctx, inv.ID)
}

// insertWithNumber assigns an invoice number and retries collisions with fresh numbers.
func (s *Service) insertWithNumber(ctx context.Context, inv *Invoice, now time.Time) error {
	local := now.In(s.loc)
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		inv.InvoiceNumber = s.number(local)
		err := s.repo.Insert(ctx, *inv)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNumberTaken) {
			return err
		}
		s.logger.Warn("invoice number collision",
			slog.String("invoice_number", inv.InvoiceNumber),
			slog.Int("attempt", attempt))
	}
	return shared.Public(
		fmt.Sprintf("Could not allocate a unique invoice number after %d attempts, try again", maxNumberAttempts),
		ErrNumberTaken)
}

// checkAvailability verifies each referenced lot exists and holds the units
// requested across all lines. requireAvailable also rejects Sold and DOA lots.
func checkAvailability(lines []LineItem, lots map[uuid.UUID]stock.Stock, requireAvailable bool) error {
	requested := QuantityByStock(lines)
	var (
		problems []string
		seen     = make(map[uuid.UUID]bool, len(requested))
	)
	for _, line := range lines {
		if seen[line.StockID] {
			continue
		}
		seen[line.StockID] = true
		lot, ok := lots[line.StockID]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("Stock item %s not found", line.StockID))
		case requireAvailable && lot.Status != stock.StatusAvailable:
			problems = append(problems, fmt.Sprintf("Stock item %s is not available", lot.Label()))
		case lot.Quantity < requested[line.StockID]:
			problems = append(problems, fmt.Sprintf("Insufficient quantity for %s. Available: %d, Requested: %d",
				lot.Label(), lot.Quantity, requested[line.StockID]))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return shared.Public(strings.Join(problems, "; "), stock.ErrInsufficientQuantity)
}

// Finalize deducts every referenced lot and marks the invoice Finalized in
// one transaction. Either every lot is deducted or none is.
func (s *Service) Finalize(ctx context.Context, id uuid.UUID) (Invoice, error) {
	draft, err := s.repo.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if draft.Status == StatusFinalized {
		return Invoice{}, ErrAlreadyFinalized
	}
	keys := shared.StockLockKeys(draft.StockIDs())
	err = s.locker.WithLocks(ctx, keys, func(ctx context.Context) error {
		return shared.RetryOnConflict(ctx, shared.DefaultConflictAttempts, func(ctx context.Context) error {
			return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
				return s.finalizeTx(ctx, tx, id)
			})
		})
	})
	if err != nil {
		return Invoice{}, err
	}
	s.logger.Info("invoice finalized",
		slog.String("invoice_id", id.String()),
		slog.String("invoice_number", draft.InvoiceNumber))
	shared.Invalidate(ctx, s.cache, s.logger)
	return s.repo.Get(ctx, id)
}

func (s *Service) finalizeTx(ctx context.Context, tx TxRepository, id uuid.UUID) error {
	inv, err := tx.GetForUpdate(ctx, id)
	if err != nil {
		return err
	}
	if inv.Status == StatusFinalized {
		return ErrAlreadyFinalized
	}
	lots, err := tx.LockStocks(ctx, inv.StockIDs())
	if err != nil {
		return err
	}
	if err := checkAvailability(inv.LineItems, lots, false); err != nil {
		return err
	}
	requested := QuantityByStock(inv.LineItems)
	for _, stockID := range inv.StockIDs() {
		lot := lots[stockID]
		if _, err := lot.Deduct(requested[stockID], stock.StatusSold); err != nil {
			return err
		}
		if _, err := tx.SaveStock(ctx, lot); err != nil {
			return err
		}
	}
	return tx.MarkFinalized(ctx, id, s.now().UTC())
}

// Delete hard deletes a draft. Finalized invoices are permanent.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status == StatusFinalized {
			return ErrFinalizedImmutable
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("invoice deleted", slog.String("invoice_id", id.String()))
	shared.Invalidate(ctx, s.cache, s.logger)
	return nil
}

package stock

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/oceangate/oceangate/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Insert(ctx context.Context, s Stock) (Stock, error)
	Get(ctx context.Context, id uuid.UUID) (Stock, error)
	CategoryExists(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, filter Filter, page shared.PageRequest) ([]Stock, int, error)
	ListAvailable(ctx context.Context) ([]Stock, error)
}

// Service coordinates stock ledger operations.
type Service struct {
	repo     RepositoryPort
	locker   *shared.Locker
	validate *validator.Validate
	cache    shared.Invalidator
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service. locker and cache may be nil.
func NewService(repo RepositoryPort, locker *shared.Locker, cache shared.Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		validate: shared.NewValidator(),
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) parseInput(input Input) (Input, uuid.UUID, error) {
	input = input.normalize()
	if err := s.validate.Struct(input); err != nil {
		return Input{}, uuid.Nil, shared.FromValidator(err)
	}
	if err := input.checkAmounts(); err != nil {
		return Input{}, uuid.Nil, err
	}
	categoryID, err := uuid.Parse(input.CategoryID)
	if err != nil {
		return Input{}, uuid.Nil, shared.Validation("Invalid category id")
	}
	return input, categoryID, nil
}

// Create stores a new Available lot.
func (s *Service) Create(ctx context.Context, input Input) (Stock, error) {
	input, categoryID, err := s.parseInput(input)
	if err != nil {
		return Stock{}, err
	}
	if *input.Quantity == 0 {
		return Stock{}, shared.Validation("Quantity must be at least 1 for a new stock item")
	}
	exists, err := s.repo.CategoryExists(ctx, categoryID)
	if err != nil {
		return Stock{}, err
	}
	if !exists {
		return Stock{}, shared.Validation("Category not found")
	}
	created, err := s.repo.Insert(ctx, Stock{
		ID:         uuid.New(),
		CategoryID: categoryID,
		Quantity:   *input.Quantity,
		Weight:     input.Weight.Round(WeightPlaces),
		UnitPrice:  input.UnitPrice.Round(MoneyPlaces),
		Location:   input.Location,
		Status:     StatusAvailable,
		Notes:      input.Notes,
		Version:    1,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return Stock{}, err
	}
	s.logger.Info("stock created", slog.String("stock_id", created.ID.String()), slog.Int("quantity", created.Quantity))
	shared.Invalidate(ctx, s.cache, s.logger)
	return created, nil
}

// Get returns a lot joined with its category.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Stock, error) {
	return s.repo.Get(ctx, id)
}

// List returns one page of lots matching filter.
func (s *Service) List(ctx context.Context, filter Filter, page shared.PageRequest) ([]Stock, shared.Pagination, error) {
	page = page.Normalize()
	items, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page, total), nil
}

// Available returns the lots that can be invoiced.
func (s *Service) Available(ctx context.Context) ([]Stock, error) {
	return s.repo.ListAvailable(ctx)
}

// Update replaces every writable field of a lot under its row lock.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input Input) (Stock, error) {
	input, categoryID, err := s.parseInput(input)
	if err != nil {
		return Stock{}, err
	}
	var updated Stock
	err = s.locker.WithLocks(ctx, []string{shared.StockLockKey(id)}, func(ctx context.Context) error {
		return shared.RetryOnConflict(ctx, shared.DefaultConflictAttempts, func(ctx context.Context) error {
			return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
				current, err := tx.GetForUpdate(ctx, id)
				if err != nil {
					return err
				}
				if categoryID != current.CategoryID {
					exists, err := tx.CategoryExists(ctx, categoryID)
					if err != nil {
						return err
					}
					if !exists {
						return shared.Validation("Category not found")
					}
				}
				next, err := applyUpdate(current, categoryID, input)
				if err != nil {
					return err
				}
				updated, err = tx.Save(ctx, next)
				return err
			})
		})
	})
	if err != nil {
		return Stock{}, err
	}
	shared.Invalidate(ctx, s.cache, s.logger)
	return s.repo.Get(ctx, updated.ID)
}

// applyUpdate replaces the writable fields and re-derives the status.
func applyUpdate(current Stock, categoryID uuid.UUID, input Input) (Stock, error) {
	next := current
	next.CategoryID = categoryID
	next.Quantity = *input.Quantity
	next.Weight = input.Weight.Round(WeightPlaces)
	next.UnitPrice = input.UnitPrice.Round(MoneyPlaces)
	next.Location = input.Location
	next.Notes = input.Notes
	switch {
	case next.Quantity > 0:
		next.Status = StatusAvailable
	case current.Status == StatusAvailable:
		return Stock{}, shared.Validation("Quantity cannot be 0 for an Available stock item")
	}
	return next, nil
}

// Delete removes a lot no DOA record or invoice line references.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.locker.WithLocks(ctx, []string{shared.StockLockKey(id)}, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if _, err := tx.GetForUpdate(ctx, id); err != nil {
				return err
			}
			doaRecords, invoiceLines, err := tx.CountReferences(ctx, id)
			if err != nil {
				return err
			}
			if doaRecords+invoiceLines > 0 {
				return inUseError(doaRecords, invoiceLines)
			}
			return tx.Delete(ctx, id)
		})
	})
	if err != nil {
		return err
	}
	s.logger.Info("stock deleted", slog.String("stock_id", id.String()))
	shared.Invalidate(ctx, s.cache, s.logger)
	return nil
}

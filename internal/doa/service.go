package doa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/oceangate/oceangate/internal/shared"
	"github.com/oceangate/oceangate/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context) ([]Record, error)
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service coordinates DOA operations.
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
	return &Service{repo: repo, locker: locker, validate: shared.NewValidator(), cache: cache, logger: logger, now: time.Now}
}

// Record books a loss against a lot and removes the dead units and their
// prorated weight from it in one transaction.
func (s *Service) Record(ctx context.Context, input Input) (Record, error) {
	input = input.normalize()
	if err := s.validate.Struct(input); err != nil {
		return Record{}, shared.FromValidator(err)
	}
	stockID, err := uuid.Parse(input.StockID)
	if err != nil {
		return Record{}, shared.Validation("Invalid stock id")
	}
	now := s.now().UTC()
	rec := Record{
		ID:         uuid.New(),
		StockID:    stockID,
		Quantity:   input.Quantity,
		Notes:      input.Notes,
		RecordedAt: now,
		CreatedAt:  now,
	}
	if input.RecordedAt != nil && !input.RecordedAt.IsZero() {
		rec.RecordedAt = input.RecordedAt.UTC()
	}

	err = s.locker.WithLocks(ctx, []string{shared.StockLockKey(stockID)}, func(ctx context.Context) error {
		return shared.RetryOnConflict(ctx, shared.DefaultConflictAttempts, func(ctx context.Context) error {
			return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
				lot, err := tx.GetStockForUpdate(ctx, stockID)
				if err != nil {
					return err
				}
				weight, err := lot.Deduct(input.Quantity, stock.StatusDOA)
				if errors.Is(err, stock.ErrInsufficientQuantity) {
					return shared.Public(fmt.Sprintf(
						"DOA quantity (%d) cannot exceed available stock quantity (%d)", input.Quantity, lot.Quantity,
					), err)
				}
				if err != nil {
					return err
				}
				rec.Weight = weight
				if err := tx.Insert(ctx, rec); err != nil {
					return err
				}
				_, err = tx.SaveStock(ctx, lot)
				return err
			})
		})
	})
	if err != nil {
		return Record{}, err
	}
	s.logger.Info("doa recorded",
		slog.String("doa_id", rec.ID.String()),
		slog.String("stock_id", stockID.String()),
		slog.Int("quantity", rec.Quantity),
		slog.String("weight", rec.Weight.String()))
	shared.Invalidate(ctx, s.cache, s.logger)
	return s.repo.Get(ctx, rec.ID)
}

// List returns every record, newest first.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	return s.repo.List(ctx)
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	return s.repo.Get(ctx, id)
}

// Delete removes a record. The lot keeps its reduced quantity.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	shared.Invalidate(ctx, s.cache, s.logger)
	return nil
}

package categories

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
	List(ctx context.Context) ([]Category, error)
	Get(ctx context.Context, id uuid.UUID) (Category, error)
	Insert(ctx context.Context, c Category) (Category, error)
	Update(ctx context.Context, c Category) (Category, error)
	DeleteUnused(ctx context.Context, id uuid.UUID) (int, error)
}

// Service coordinates category operations.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
	cache    shared.Invalidator
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache shared.Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, validate: shared.NewValidator(), cache: cache, logger: logger, now: time.Now}
}

// List returns every category, newest first.
func (s *Service) List(ctx context.Context) ([]Category, error) {
	return s.repo.List(ctx)
}

// Get returns a category by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Category, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores a category.
func (s *Service) Create(ctx context.Context, input Input) (Category, error) {
	input = input.normalize()
	if err := s.validate.Struct(input); err != nil {
		return Category{}, shared.FromValidator(err)
	}
	created, err := s.repo.Insert(ctx, Category{
		ID:          uuid.New(),
		Name:        input.Name,
		Species:     input.Species,
		WeightRange: input.WeightRange,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return Category{}, err
	}
	shared.Invalidate(ctx, s.cache, s.logger)
	return created, nil
}

// Update replaces every writable field of a category.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input Input) (Category, error) {
	input = input.normalize()
	if err := s.validate.Struct(input); err != nil {
		return Category{}, shared.FromValidator(err)
	}
	updated, err := s.repo.Update(ctx, Category{ID: id, Name: input.Name, Species: input.Species, WeightRange: input.WeightRange})
	if err != nil {
		return Category{}, err
	}
	shared.Invalidate(ctx, s.cache, s.logger)
	return updated, nil
}

// Delete removes a category no stock row references.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	blocking, err := s.repo.DeleteUnused(ctx, id)
	if err != nil {
		return err
	}
	if blocking > 0 {
		return inUseError(blocking)
	}
	shared.Invalidate(ctx, s.cache, s.logger)
	return nil
}

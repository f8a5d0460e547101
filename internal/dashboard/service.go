package dashboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/oceangate/oceangate/internal/stock"
)

// RepositoryPort abstracts the aggregate queries.
type RepositoryPort interface {
	AvailableTotals(ctx context.Context) (StockTotals, int, error)
	FinalizedIncomeSince(ctx context.Context, since time.Time) (decimal.Decimal, error)
	DOAWeight(ctx context.Context) (decimal.Decimal, error)
	RecentStock(ctx context.Context, limit int) ([]stock.Stock, error)
	RecentInvoices(ctx context.Context, limit int) ([]RecentInvoice, error)
	CumulativeWeight(ctx context.Context, bounds []time.Time) ([]decimal.Decimal, error)
	CategoryDistribution(ctx context.Context) ([]CategoryShare, error)
}

// Service computes dashboard metrics with cache-aware lookups.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
	group  singleflight.Group
}

// NewService wires the repository with the cache. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, loc: loc, logger: logger, now: time.Now}
}

// Metrics returns the dashboard for the current moment.
func (s *Service) Metrics(ctx context.Context) (Metrics, error) {
	now := s.now().In(s.loc)
	key, err := s.cache.BuildKey(ctx, "dashboard", "metrics", now.Format(dayLayout))
	if err != nil {
		s.logger.Warn("dashboard cache unavailable", slog.Any("error", err))
		return s.Compute(ctx, now)
	}

	resultChan := s.group.DoChan(key, func() (any, error) {
		var out Metrics
		err := s.cache.FetchJSON(context.WithoutCancel(ctx), key, &out, func(ctx context.Context) (any, error) {
			return s.Compute(ctx, now)
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return Metrics{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Metrics{}, res.Err
		}
		return res.Val.(Metrics), nil
	}
}

// Warm recomputes the current dashboard into the cache.
func (s *Service) Warm(ctx context.Context) error {
	_, err := s.Metrics(ctx)
	return err
}

// Compute runs every aggregate concurrently against the repository.
func (s *Service) Compute(ctx context.Context, now time.Time) (Metrics, error) {
	now = now.In(s.loc)
	days := MovementWindow(now)
	bounds := make([]time.Time, len(days))
	for i, day := range days {
		bounds[i] = day.AddDate(0, 0, 1)
	}

	var (
		out     Metrics
		weights []decimal.Decimal
	)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		totals, boxes, err := s.repo.AvailableTotals(ctx)
		if err != nil {
			return err
		}
		out.Metrics.TotalStock = totals
		out.Metrics.AvailableBoxes = boxes
		return nil
	})

	g.Go(func() error {
		income, err := s.repo.FinalizedIncomeSince(ctx, WeekStart(now))
		if err != nil {
			return err
		}
		out.Metrics.ThisWeekIncome = income
		return nil
	})

	g.Go(func() error {
		weight, err := s.repo.DOAWeight(ctx)
		if err != nil {
			return err
		}
		out.Metrics.TotalDOAWeight = weight
		return nil
	})

	g.Go(func() error {
		items, err := s.repo.RecentStock(ctx, recentLimit)
		if err != nil {
			return err
		}
		out.RecentStock = items
		return nil
	})

	g.Go(func() error {
		items, err := s.repo.RecentInvoices(ctx, recentLimit)
		if err != nil {
			return err
		}
		out.RecentInvoices = items
		return nil
	})

	g.Go(func() error {
		values, err := s.repo.CumulativeWeight(ctx, bounds)
		if err != nil {
			return err
		}
		weights = values
		return nil
	})

	g.Go(func() error {
		shares, err := s.repo.CategoryDistribution(ctx)
		if err != nil {
			return err
		}
		out.CategoryDistribution = shares
		return nil
	})

	if err := g.Wait(); err != nil {
		return Metrics{}, err
	}

	out.WeeklyMovement = make([]MovementPoint, len(days))
	for i, day := range days {
		point := MovementPoint{Date: day.Format(dayLayout), Weight: decimal.Zero}
		if i < len(weights) {
			point.Weight = weights[i]
		}
		out.WeeklyMovement[i] = point
	}
	if out.RecentStock == nil {
		out.RecentStock = []stock.Stock{}
	}
	if out.RecentInvoices == nil {
		out.RecentInvoices = []RecentInvoice{}
	}
	if out.CategoryDistribution == nil {
		out.CategoryDistribution = []CategoryShare{}
	}
	return out, nil
}

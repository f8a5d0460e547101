package dashboard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceangate/oceangate/internal/stock"
)

type lotRow struct {
	weight    decimal.Decimal
	createdAt time.Time
}

type fakeRepo struct {
	computes atomic.Int32
	gate     chan struct{}

	mu     sync.Mutex
	since  time.Time
	lots   []lotRow
	income decimal.Decimal
}

func (f *fakeRepo) AvailableTotals(ctx context.Context) (StockTotals, int, error) {
	f.computes.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return StockTotals{Quantity: 12, Weight: decimal.RequireFromString("4.2")}, 3, nil
}

func (f *fakeRepo) FinalizedIncomeSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = since
	return f.income, nil
}

func (f *fakeRepo) DOAWeight(ctx context.Context) (decimal.Decimal, error) {
	return decimal.RequireFromString("0.9"), nil
}

func (f *fakeRepo) RecentStock(ctx context.Context, limit int) ([]stock.Stock, error) {
	return []stock.Stock{{ID: uuid.New(), Quantity: 4, Status: stock.StatusAvailable}}, nil
}

func (f *fakeRepo) RecentInvoices(ctx context.Context, limit int) ([]RecentInvoice, error) {
	return nil, nil
}

func (f *fakeRepo) CumulativeWeight(ctx context.Context, bounds []time.Time) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(bounds))
	for i, bound := range bounds {
		sum := decimal.Zero
		for _, lot := range f.lots {
			if lot.createdAt.Before(bound) {
				sum = sum.Add(lot.weight)
			}
		}
		out[i] = sum
	}
	return out, nil
}

func (f *fakeRepo) CategoryDistribution(ctx context.Context) ([]CategoryShare, error) {
	return []CategoryShare{{ID: uuid.New(), Name: "Lot1", Weight: decimal.RequireFromString("4.2"), Quantity: 12}}, nil
}

func newCachedService(t *testing.T, repo RepositoryPort) (*Service, *Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)
	return NewService(repo, cache, time.UTC, nil), cache
}

func TestWeekStart(t *testing.T) {
	wednesday := time.Date(2024, 3, 6, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), WeekStart(wednesday))

	sunday := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, sunday, WeekStart(sunday.Add(9*time.Hour)))

	saturday := time.Date(2024, 3, 9, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, sunday, WeekStart(saturday))

	est := time.FixedZone("EST", -5*60*60)
	instant := time.Date(2024, 3, 3, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 25, 0, 0, 0, 0, est), WeekStart(instant.In(est)))
}

func TestMovementWindow(t *testing.T) {
	days := MovementWindow(time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC))
	require.Len(t, days, movementDays)
	assert.Equal(t, "2024-02-24", days[0].Format(dayLayout))
	assert.Equal(t, "2024-03-01", days[6].Format(dayLayout))
}

func TestComputeAggregates(t *testing.T) {
	now := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		income: decimal.RequireFromString("150.75"),
		lots: []lotRow{
			{weight: decimal.RequireFromString("1.5"), createdAt: time.Date(2024, 2, 20, 9, 0, 0, 0, time.UTC)},
			{weight: decimal.RequireFromString("2.0"), createdAt: time.Date(2024, 3, 2, 23, 59, 0, 0, time.UTC)},
			{weight: decimal.RequireFromString("0.5"), createdAt: time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC)},
		},
	}
	svc := NewService(repo, nil, time.UTC, nil)

	m, err := svc.Compute(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 12, m.Metrics.TotalStock.Quantity)
	assert.Equal(t, "4.2", m.Metrics.TotalStock.Weight.String())
	assert.Equal(t, 3, m.Metrics.AvailableBoxes)
	assert.Equal(t, "150.75", m.Metrics.ThisWeekIncome.String())
	assert.Equal(t, "0.9", m.Metrics.TotalDOAWeight.String())
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), repo.since)
	assert.NotNil(t, m.RecentInvoices)
	assert.Len(t, m.RecentStock, 1)
	assert.Len(t, m.CategoryDistribution, 1)

	require.Len(t, m.WeeklyMovement, 7)
	got := map[string]string{}
	for _, p := range m.WeeklyMovement {
		got[p.Date] = p.Weight.String()
	}
	assert.Equal(t, "2024-02-29", m.WeeklyMovement[0].Date)
	assert.Equal(t, "1.5", got["2024-02-29"])
	assert.Equal(t, "1.5", got["2024-03-01"])
	assert.Equal(t, "3.5", got["2024-03-02"])
	assert.Equal(t, "3.5", got["2024-03-05"])
	assert.Equal(t, "4", got["2024-03-06"])
}

func TestMetricsCachedUntilBump(t *testing.T) {
	repo := &fakeRepo{}
	svc, cache := newCachedService(t, repo)
	ctx := context.Background()

	first, err := svc.Metrics(ctx)
	require.NoError(t, err)
	second, err := svc.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), repo.computes.Load())
	assert.Equal(t, first.Metrics.TotalStock.Quantity, second.Metrics.TotalStock.Quantity)
	assert.True(t, first.Metrics.TotalStock.Weight.Equal(second.Metrics.TotalStock.Weight))

	require.NoError(t, cache.Bump(ctx))
	_, err = svc.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), repo.computes.Load())
}

func TestMetricsWithoutCacheAlwaysComputes(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, nil, time.UTC, nil)

	for i := 0; i < 3; i++ {
		_, err := svc.Metrics(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), repo.computes.Load())
}

func TestMetricsCoalescesConcurrentMisses(t *testing.T) {
	repo := &fakeRepo{gate: make(chan struct{})}
	svc, _ := newCachedService(t, repo)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Metrics(context.Background())
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(repo.gate)
	wg.Wait()

	assert.Equal(t, int32(1), repo.computes.Load())
}

func TestCacheVersionStartsAtOne(t *testing.T) {
	_, cache := newCachedService(t, &fakeRepo{})
	ctx := context.Background()

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ver)

	key, err := cache.BuildKey(ctx, "dashboard", "metrics")
	require.NoError(t, err)
	assert.Equal(t, "dashboard:metrics:1", key)

	require.NoError(t, cache.Bump(ctx))
	key, err = cache.BuildKey(ctx, "dashboard", "metrics")
	require.NoError(t, err)
	assert.Equal(t, "dashboard:metrics:2", key)
}

func TestNilCacheIsPassThrough(t *testing.T) {
	var cache *Cache
	require.NoError(t, cache.Bump(context.Background()))
	key, err := cache.BuildKey(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "a:b", key)
}

package doa

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/oceangate/oceangate/internal/shared"
	"github.com/oceangate/oceangate/internal/stock"
	"github.com/oceangate/oceangate/internal/stock/stocktest"
)

type memoryRepo struct {
	store *stocktest.Store

	mu      sync.Mutex
	records map[uuid.UUID]Record
}

type memoryTx struct {
	repo   *memoryRepo
	tx     *stocktest.Tx
	staged []Record
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{store: stocktest.New(), records: map[uuid.UUID]Record{}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.WithTx(func(tx *stocktest.Tx) error {
		mtx := &memoryTx{repo: r, tx: tx}
		if err := fn(ctx, mtx); err != nil {
			return err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, rec := range mtx.staged {
			r.records[rec.ID] = rec
		}
		return nil
	})
}

func (r *memoryRepo) List(ctx context.Context) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return Record{}, shared.NotFound("DOA record")
	}
	return rec, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return shared.NotFound("DOA record")
	}
	delete(r.records, id)
	return nil
}

func (t *memoryTx) GetStockForUpdate(ctx context.Context, id uuid.UUID) (stock.Stock, error) {
	return t.tx.Lock(id)
}

func (t *memoryTx) SaveStock(ctx context.Context, s stock.Stock) (stock.Stock, error) {
	return t.tx.Save(s)
}

func (t *memoryTx) Insert(ctx context.Context, rec Record) error {
	t.staged = append(t.staged, rec)
	return nil
}

type failingTx struct {
	TxRepository
}

func (failingTx) SaveStock(context.Context, stock.Stock) (stock.Stock, error) {
	return stock.Stock{}, stock.ErrStaleVersion
}

func TestRecordProratesWeight(t *testing.T) {
	repo := newMemoryRepo()
	lot := repo.store.AddLot(repo.store.AddCategory("Lot1"), 10, "3.0", "5")
	svc := NewService(repo, nil, nil, nil)

	rec, err := svc.Record(context.Background(), Input{StockID: lot.ID.String(), Quantity: 2})
	require.NoError(t, err)
	require.Equal(t, "0.6", rec.Weight.String())

	after, _ := repo.store.Lot(lot.ID)
	require.Equal(t, 8, after.Quantity)
	require.Equal(t, "2.4", after.Weight.String())
	require.Equal(t, stock.StatusAvailable, after.Status)
	require.Equal(t, int64(2), after.Version)
}

func TestRecordWholeLotMarksDOA(t *testing.T) {
	repo := newMemoryRepo()
	lot := repo.store.AddLot(repo.store.AddCategory("Lot1"), 4, "1.2", "5")
	svc := NewService(repo, nil, nil, nil)

	rec, err := svc.Record(context.Background(), Input{StockID: lot.ID.String(), Quantity: 4, Notes: " all lost "})
	require.NoError(t, err)
	require.Equal(t, "1.2", rec.Weight.String())
	require.Equal(t, "all lost", rec.Notes)

	after, _ := repo.store.Lot(lot.ID)
	require.Zero(t, after.Quantity)
	require.True(t, after.Weight.IsZero())
	require.Equal(t, stock.StatusDOA, after.Status)
}

func TestRecordExceedingQuantityChangesNothing(t *testing.T) {
	repo := newMemoryRepo()
	lot := repo.store.AddLot(repo.store.AddCategory("Lot1"), 3, "0.9", "5")
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.Record(context.Background(), Input{StockID: lot.ID.String(), Quantity: 4})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.ErrorIs(t, err, stock.ErrInsufficientQuantity)
	require.Equal(t, "DOA quantity (4) cannot exceed available stock quantity (3)", shared.UserSafeMessage(err))

	after, _ := repo.store.Lot(lot.ID)
	require.Equal(t, lot, after)
	records, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestRecordValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)

	_, err := svc.Record(context.Background(), Input{StockID: uuid.NewString(), Quantity: 0})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Record(context.Background(), Input{StockID: "nope", Quantity: 1})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Record(context.Background(), Input{StockID: uuid.NewString(), Quantity: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRecordRollsBackWhenStockWriteFails(t *testing.T) {
	repo := newMemoryRepo()
	lot := repo.store.AddLot(repo.store.AddCategory("Lot1"), 10, "3.0", "5")
	failing := &txOverride{memoryRepo: repo}
	svc := NewService(failing, nil, nil, nil)

	_, err := svc.Record(context.Background(), Input{StockID: lot.ID.String(), Quantity: 2})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, shared.DefaultConflictAttempts, failing.attempts)

	after, _ := repo.store.Lot(lot.ID)
	require.Equal(t, lot, after)
	require.Empty(t, repo.records)
}

type txOverride struct {
	*memoryRepo
	attempts int
}

func (r *txOverride) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.attempts++
	return r.memoryRepo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return fn(ctx, failingTx{TxRepository: tx})
	})
}

func TestDeleteDoesNotRestoreStock(t *testing.T) {
	repo := newMemoryRepo()
	lot := repo.store.AddLot(repo.store.AddCategory("Lot1"), 10, "3.0", "5")
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	rec, err := svc.Record(ctx, Input{StockID: lot.ID.String(), Quantity: 2})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, rec.ID))
	require.ErrorIs(t, svc.Delete(ctx, rec.ID), shared.ErrNotFound)

	after, _ := repo.store.Lot(lot.ID)
	require.Equal(t, 8, after.Quantity)
}

func TestConcurrentRecordsNeverOverdraw(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemoryRepo()
	lot := repo.store.AddLot(repo.store.AddCategory("Lot1"), 10, "5.0", "5")
	svc := NewService(repo, shared.NewLocker(client, shared.LockerConfig{}, nil), nil, nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Record(context.Background(), Input{StockID: lot.ID.String(), Quantity: 1}); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	after, _ := repo.store.Lot(lot.ID)
	require.Equal(t, 10, successes)
	require.Zero(t, after.Quantity)
	require.True(t, after.Weight.IsZero())
	require.Equal(t, stock.StatusDOA, after.Status)
	require.NoError(t, after.CheckInvariants())
}

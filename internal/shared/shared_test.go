package shared

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserSafeMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "public", err: NotFound("stock item"), want: "Stock item not found"},
		{name: "wrapped public", err: fmt.Errorf("finalize: %w", Validation("invoice is already finalized")), want: "Invoice is already finalized"},
		{name: "sentinel prefix", err: fmt.Errorf("%w: quantity must be positive", ErrValidation), want: "Quantity must be positive"},
		{name: "credentials", err: ErrInvalidCredentials, want: "Invalid credentials"},
		{name: "unknown", err: errors.New("pq: connection refused"), want: "Internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UserSafeMessage(tc.err))
		})
	}
}

func TestPublicMatchesEveryKind(t *testing.T) {
	err := Public("Stock item is being updated", ErrConflict, ErrValidation)
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestPagination(t *testing.T) {
	assert.Equal(t, PageRequest{Page: 1, Limit: DefaultLimit}, PageRequest{}.Normalize())
	assert.Equal(t, MaxLimit, PageRequest{Page: 2, Limit: 1000}.Normalize().Limit)
	assert.Equal(t, 20, PageRequest{Page: 3, Limit: 10}.Offset())

	huge := PageRequest{Page: math.MaxInt, Limit: 20}.Normalize()
	assert.Equal(t, MaxPage, huge.Page)
	assert.GreaterOrEqual(t, huge.Offset(), 0)
	assert.GreaterOrEqual(t, PageRequest{Page: math.MaxInt, Limit: MaxLimit}.Offset(), 0)

	assert.Equal(t, Pagination{Page: 2, Limit: 10, Total: 25, Pages: 3}, NewPagination(PageRequest{Page: 2, Limit: 10}, 25))
	assert.Equal(t, 0, NewPagination(PageRequest{}, 0).Pages)
}

func TestRetryOnConflict(t *testing.T) {
	calls := 0
	err := RetryOnConflict(context.Background(), 3, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return ErrConflict
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = RetryOnConflict(context.Background(), 2, func(ctx context.Context) error {
		calls++
		return Conflict("row changed")
	})
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 2, calls)

	calls = 0
	err = RetryOnConflict(context.Background(), 3, func(ctx context.Context) error {
		calls++
		return ErrValidation
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 1, calls)
}

func TestFromValidatorUsesJSONNames(t *testing.T) {
	type input struct {
		Name  string `json:"name" validate:"required"`
		Email string `json:"email" validate:"omitempty,email"`
	}
	err := FromValidator(NewValidator().Struct(input{Email: "nope"}))
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Name is required; email must be a valid email address", UserSafeMessage(err))
}

func TestLockerSerialisesSameStock(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := NewLocker(client, LockerConfig{TTL: time.Second, Attempts: 100, Backoff: 5 * time.Millisecond}, nil)

	keys := StockLockKeys([]uuid.UUID{uuid.New(), uuid.New()})
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLocks(context.Background(), keys, func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.False(t, srv.Exists(keys[0]))
}

func TestLockerBusyIsConflict(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := NewLocker(client, LockerConfig{TTL: time.Second, Attempts: 1, Backoff: time.Millisecond}, nil)

	key := StockLockKey(uuid.New())
	require.NoError(t, srv.Set(key, "someone-else"))

	ran := false
	err := locker.WithLocks(context.Background(), []string{key}, func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, ErrConflict)
	assert.False(t, ran)
}

func TestNilLockerRunsCallback(t *testing.T) {
	var locker *Locker
	ran := false
	require.NoError(t, locker.WithLocks(context.Background(), []string{"k"}, func(ctx context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

package stock

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oceangate/oceangate/internal/shared"
)

// Querier is implemented by pgx.Tx and *pgxpool.Pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const joinedColumns = `s.id, s.category_id, s.quantity, s.weight, s.unit_price, s.location, s.status, s.notes,
s.version, s.created_at, s.updated_at, c.id, c.name, c.species, c.weight_range`

const joinedFrom = ` FROM stock s JOIN categories c ON c.id = s.category_id`

func scanJoined(row pgx.Row) (Stock, error) {
	var (
		s   Stock
		cat CategorySummary
	)
	err := row.Scan(&s.ID, &s.CategoryID, &s.Quantity, &s.Weight, &s.UnitPrice, &s.Location, &s.Status, &s.Notes,
		&s.Version, &s.CreatedAt, &s.UpdatedAt, &cat.ID, &cat.Name, &cat.Species, &cat.WeightRange)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stock{}, shared.NotFound("Stock")
	}
	if err != nil {
		return Stock{}, err
	}
	s.Category = &cat
	return s, nil
}

func collectJoined(rows pgx.Rows) ([]Stock, error) {
	defer rows.Close()
	out := []Stock{}
	for rows.Next() {
		s, err := scanJoined(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LockForUpdate loads the lots with row locks taken in id order. Missing
// ids are absent from the result.
func LockForUpdate(ctx context.Context, q Querier, ids []uuid.UUID) (map[uuid.UUID]Stock, error) {
	return loadMany(ctx, q, ids, ` FOR UPDATE OF s`)
}

// Load reads the lots without locking them. Missing ids are absent from the result.
func Load(ctx context.Context, q Querier, ids []uuid.UUID) (map[uuid.UUID]Stock, error) {
	return loadMany(ctx, q, ids, "")
}

func loadMany(ctx context.Context, q Querier, ids []uuid.UUID, lockClause string) (map[uuid.UUID]Stock, error) {
	ordered := SortedIDs(ids)
	keys := make([]string, 0, len(ordered))
	for _, id := range ordered {
		keys = append(keys, id.String())
	}
	rows, err := q.Query(ctx, `SELECT `+joinedColumns+joinedFrom+`
WHERE s.id = ANY($1::uuid[]) ORDER BY s.id`+lockClause, keys)
	if err != nil {
		return nil, err
	}
	list, err := collectJoined(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]Stock, len(list))
	for _, s := range list {
		out[s.ID] = s
	}
	return out, nil
}

// Recent returns the newest lots joined with their category.
func Recent(ctx context.Context, q Querier, limit int) ([]Stock, error) {
	rows, err := q.Query(ctx, `SELECT `+joinedColumns+joinedFrom+` ORDER BY s.created_at DESC, s.id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectJoined(rows)
}

// LockOne loads a single lot under a row lock.
func LockOne(ctx context.Context, q Querier, id uuid.UUID) (Stock, error) {
	return scanJoined(q.QueryRow(ctx, `SELECT `+joinedColumns+joinedFrom+` WHERE s.id=$1 FOR UPDATE OF s`, id))
}

// SaveLocked writes a lot back if its version is unchanged and bumps the version.
func SaveLocked(ctx context.Context, q Querier, s Stock) (Stock, error) {
	if err := s.CheckInvariants(); err != nil {
		return Stock{}, err
	}
	err := q.QueryRow(ctx, `UPDATE stock SET category_id=$3, quantity=$4, weight=$5, unit_price=$6, location=$7,
status=$8, notes=$9, version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$2 RETURNING version, updated_at`,
		s.ID, s.Version, s.CategoryID, s.Quantity, s.Weight.Round(WeightPlaces), s.UnitPrice.Round(MoneyPlaces),
		s.Location, string(s.Status), s.Notes).Scan(&s.Version, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stock{}, ErrStaleVersion
	}
	if err != nil {
		return Stock{}, err
	}
	return s, nil
}

// SortedIDs returns the distinct ids in lock order.
func SortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

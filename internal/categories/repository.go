package categories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oceangate/oceangate/internal/platform/db"
	"github.com/oceangate/oceangate/internal/shared"
)

// Repository persists categories in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const categoryColumns = `id, name, species, weight_range, created_at, updated_at`

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Species, &c.WeightRange, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, shared.NotFound("Category")
	}
	return c, err
}

// List returns categories, newest first.
func (r *Repository) List(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get loads one category.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Category, error) {
	return scanCategory(r.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id=$1`, id))
}

// Insert stores a new category.
func (r *Repository) Insert(ctx context.Context, c Category) (Category, error) {
	return scanCategory(r.pool.QueryRow(ctx, `INSERT INTO categories (id, name, species, weight_range, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$5) RETURNING `+categoryColumns, c.ID, c.Name, c.Species, c.WeightRange, c.CreatedAt))
}

// Update replaces the writable fields of a category.
func (r *Repository) Update(ctx context.Context, c Category) (Category, error) {
	return scanCategory(r.pool.QueryRow(ctx, `UPDATE categories SET name=$2, species=$3, weight_range=$4, updated_at=NOW()
WHERE id=$1 RETURNING `+categoryColumns, c.ID, c.Name, c.Species, c.WeightRange))
}

// DeleteUnused removes a category when no stock row references it and
// returns the number of blocking stock rows otherwise.
func (r *Repository) DeleteUnused(ctx context.Context, id uuid.UUID) (int, error) {
	var blocking int
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM categories WHERE id=$1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.NotFound("Category")
		}
		if err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM stock WHERE category_id=$1`, id).Scan(&blocking); err != nil {
			return err
		}
		if blocking > 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
		return err
	})
	return blocking, err
}

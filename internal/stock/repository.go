package stock

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oceangate/oceangate/internal/platform/db"
	"github.com/oceangate/oceangate/internal/shared"
)

// Repository persists stock lots in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id uuid.UUID) (Stock, error)
	CategoryExists(ctx context.Context, id uuid.UUID) (bool, error)
	Save(ctx context.Context, s Stock) (Stock, error)
	CountReferences(ctx context.Context, id uuid.UUID) (doaRecords, invoiceLines int, err error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// Insert stores a new lot and returns it joined with its category.
func (r *Repository) Insert(ctx context.Context, s Stock) (Stock, error) {
	_, err := r.pool.Exec(ctx, `INSERT INTO stock (id, category_id, quantity, weight, unit_price, location, status, notes, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1,$9,$9)`,
		s.ID, s.CategoryID, s.Quantity, s.Weight, s.UnitPrice, s.Location, string(s.Status), s.Notes, s.CreatedAt)
	if err != nil {
		return Stock{}, db.MapError(err)
	}
	return r.Get(ctx, s.ID)
}

// Get loads one lot joined with its category.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Stock, error) {
	return scanJoined(r.pool.QueryRow(ctx, `SELECT `+joinedColumns+joinedFrom+` WHERE s.id=$1`, id))
}

// CategoryExists reports whether the category id is known.
func (r *Repository) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return categoryExists(ctx, r.pool, id)
}

// List returns one page of lots matching filter, newest first, plus the total match count.
func (r *Repository) List(ctx context.Context, filter Filter, page shared.PageRequest) ([]Stock, int, error) {
	where, args := filterClause(filter)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+joinedFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page = page.Normalize()
	args = append(args, page.Limit, page.Offset())
	rows, err := r.pool.Query(ctx, `SELECT `+joinedColumns+joinedFrom+where+
		fmt.Sprintf(` ORDER BY s.created_at DESC, s.id LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectJoined(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListAvailable returns every Available lot with units left, newest first.
func (r *Repository) ListAvailable(ctx context.Context) ([]Stock, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+joinedColumns+joinedFrom+`
WHERE s.status='Available' AND s.quantity > 0 ORDER BY s.created_at DESC, s.id`)
	if err != nil {
		return nil, err
	}
	return collectJoined(rows)
}

// filterClause renders the fixed predicate set of Filter.
func filterClause(filter Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		conds = append(conds, fmt.Sprintf(`c.name ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		conds = append(conds, fmt.Sprintf(`s.category_id = $%d`, len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf(`s.status = $%d`, len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func categoryExists(ctx context.Context, q Querier, id uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (Stock, error) {
	return LockOne(ctx, r.tx, id)
}

func (r *txRepository) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return categoryExists(ctx, r.tx, id)
}

func (r *txRepository) Save(ctx context.Context, s Stock) (Stock, error) {
	return SaveLocked(ctx, r.tx, s)
}

func (r *txRepository) CountReferences(ctx context.Context, id uuid.UUID) (int, int, error) {
	var doaRecords, invoiceLines int
	err := r.tx.QueryRow(ctx, `SELECT
(SELECT COUNT(*) FROM doa_records WHERE stock_id=$1),
(SELECT COUNT(*) FROM invoice_lines WHERE stock_id=$1)`, id).Scan(&doaRecords, &invoiceLines)
	return doaRecords, invoiceLines, err
}

func (r *txRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM stock WHERE id=$1`, id)
	return err
}

package doa

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oceangate/oceangate/internal/platform/db"
	"github.com/oceangate/oceangate/internal/shared"
	"github.com/oceangate/oceangate/internal/stock"
)

// Repository persists DOA records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetStockForUpdate(ctx context.Context, id uuid.UUID) (stock.Stock, error)
	SaveStock(ctx context.Context, s stock.Stock) (stock.Stock, error)
	Insert(ctx context.Context, rec Record) error
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

const recordSelect = `SELECT d.id, d.stock_id, d.quantity, d.weight, d.notes, d.recorded_at, d.created_at,
s.id, s.quantity, s.weight, s.status, s.location, c.id, c.name, c.species, c.weight_range
FROM doa_records d
JOIN stock s ON s.id = d.stock_id
JOIN categories c ON c.id = s.category_id`

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec Record
		lot StockSummary
		cat stock.CategorySummary
	)
	err := row.Scan(&rec.ID, &rec.StockID, &rec.Quantity, &rec.Weight, &rec.Notes, &rec.RecordedAt, &rec.CreatedAt,
		&lot.ID, &lot.Quantity, &lot.Weight, &lot.Status, &lot.Location, &cat.ID, &cat.Name, &cat.Species, &cat.WeightRange)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, shared.NotFound("DOA record")
	}
	if err != nil {
		return Record{}, err
	}
	lot.Category = &cat
	rec.Stock = &lot
	return rec, nil
}

// List returns records, newest recordedAt first.
func (r *Repository) List(ctx context.Context) ([]Record, error) {
	rows, err := r.pool.Query(ctx, recordSelect+` ORDER BY d.recorded_at DESC, d.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get loads one record.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	return scanRecord(r.pool.QueryRow(ctx, recordSelect+` WHERE d.id=$1`, id))
}

// Delete removes a record without touching the lot.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM doa_records WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("DOA record")
	}
	return nil
}

func (r *txRepository) GetStockForUpdate(ctx context.Context, id uuid.UUID) (stock.Stock, error) {
	return stock.LockOne(ctx, r.tx, id)
}

func (r *txRepository) SaveStock(ctx context.Context, s stock.Stock) (stock.Stock, error) {
	return stock.SaveLocked(ctx, r.tx, s)
}

func (r *txRepository) Insert(ctx context.Context, rec Record) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO doa_records (id, stock_id, quantity, weight, notes, recorded_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, rec.ID, rec.StockID, rec.Quantity, rec.Weight, rec.Notes, rec.RecordedAt, rec.CreatedAt)
	return err
}

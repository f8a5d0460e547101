package dashboard

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/oceangate/oceangate/internal/stock"
)

// Repository runs the dashboard aggregates against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AvailableTotals sums Available lots and counts them as boxes.
func (r *Repository) AvailableTotals(ctx context.Context) (StockTotals, int, error) {
	var (
		totals StockTotals
		boxes  int
	)
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0), COALESCE(SUM(weight), 0), COUNT(*)
FROM stock WHERE status='Available'`).Scan(&totals.Quantity, &totals.Weight, &boxes)
	return totals, boxes, err
}

// FinalizedIncomeSince sums the totals of Finalized invoices created at or after since.
func (r *Repository) FinalizedIncomeSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total), 0) FROM invoices
WHERE status='Finalized' AND created_at >= $1`, since).Scan(&total)
	return total, err
}

// DOAWeight sums the weight of every DOA record.
func (r *Repository) DOAWeight(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(weight), 0) FROM doa_records`).Scan(&total)
	return total, err
}

// RecentStock returns the newest lots.
func (r *Repository) RecentStock(ctx context.Context, limit int) ([]stock.Stock, error) {
	return stock.Recent(ctx, r.pool, limit)
}

// RecentInvoices returns the newest invoices.
func (r *Repository) RecentInvoices(ctx context.Context, limit int) ([]RecentInvoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_number, invoice_date, customer_name, status, total,
total_weight, created_at FROM invoices ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (RecentInvoice, error) {
		var inv RecentInvoice
		err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.Date, &inv.Customer.Name, &inv.Status, &inv.Total,
			&inv.TotalWeight, &inv.CreatedAt)
		return inv, err
	})
}

// CumulativeWeight returns, for each bound, the weight of every lot created
// before it.
func (r *Repository) CumulativeWeight(ctx context.Context, bounds []time.Time) ([]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT COALESCE((SELECT SUM(s.weight) FROM stock s WHERE s.created_at < b.bound), 0)
FROM unnest($1::timestamptz[]) WITH ORDINALITY AS b(bound, ord) ORDER BY b.ord`, bounds)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[decimal.Decimal])
}

// CategoryDistribution groups Available lots by category.
func (r *Repository) CategoryDistribution(ctx context.Context) ([]CategoryShare, error) {
	rows, err := r.pool.Query(ctx, `SELECT c.id, c.name, COALESCE(SUM(s.weight), 0), COALESCE(SUM(s.quantity), 0)
FROM stock s JOIN categories c ON c.id = s.category_id
WHERE s.status='Available'
GROUP BY c.id, c.name ORDER BY c.name, c.id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (CategoryShare, error) {
		var share CategoryShare
		err := row.Scan(&share.ID, &share.Name, &share.Weight, &share.Quantity)
		return share, err
	})
}

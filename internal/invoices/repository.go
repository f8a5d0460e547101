package invoices

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/oceangate/oceangate/internal/platform/db"
	"github.com/oceangate/oceangate/internal/shared"
	"github.com/oceangate/oceangate/internal/stock"
)

const invoiceNumberConstraint = "invoices_invoice_number_key"

// Repository persists invoices in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id uuid.UUID) (Invoice, error)
	LockStocks(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]stock.Stock, error)
	SaveStock(ctx context.Context, s stock.Stock) (stock.Stock, error)
	MarkFinalized(ctx context.Context, id uuid.UUID, at time.Time) error
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

const invoiceColumns = `id, invoice_number, invoice_date, customer_name, customer_address, customer_phone, customer_email,
awb_number, flight_number, shipping_code, hc_number, parking_center, status, subtotal, tax, total, total_weight,
total_boxes, created_at, updated_at, finalized_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.Date, &inv.Customer.Name, &inv.Customer.Address,
		&inv.Customer.Phone, &inv.Customer.Email, &inv.Shipping.AWBNumber, &inv.Shipping.FlightNumber,
		&inv.Shipping.Code, &inv.Shipping.HCNumber, &inv.Shipping.ParkingCenter, &inv.Status, &inv.Subtotal,
		&inv.Tax, &inv.Total, &inv.TotalWeight, &inv.TotalBoxes, &inv.CreatedAt, &inv.UpdatedAt, &inv.FinalizedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.NotFound("Invoice")
	}
	return inv, err
}

// loadLines attaches line items to invs in line order.
func loadLines(ctx context.Context, q stock.Querier, invs []Invoice) error {
	if len(invs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(invs))
	index := make(map[uuid.UUID]int, len(invs))
	for i := range invs {
		ids = append(ids, invs[i].ID.String())
		index[invs[i].ID] = i
		invs[i].LineItems = []LineItem{}
	}
	rows, err := q.Query(ctx, `SELECT l.invoice_id, l.id, l.stock_id, l.description, l.quantity, l.unit_price, l.subtotal, l.weight,
c.id, c.name, c.species, c.weight_range
FROM invoice_lines l
JOIN stock s ON s.id = l.stock_id
JOIN categories c ON c.id = s.category_id
WHERE l.invoice_id = ANY($1::uuid[])
ORDER BY l.invoice_id, l.line_no`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			invoiceID uuid.UUID
			line      LineItem
			weight    decimal.NullDecimal
			cat       stock.CategorySummary
		)
		if err := rows.Scan(&invoiceID, &line.ID, &line.StockID, &line.Description, &line.Quantity, &line.UnitPrice,
			&line.Subtotal, &weight, &cat.ID, &cat.Name, &cat.Species, &cat.WeightRange); err != nil {
			return err
		}
		if weight.Valid {
			w := weight.Decimal
			line.Weight = &w
		}
		line.Category = &cat
		i := index[invoiceID]
		invs[i].LineItems = append(invs[i].LineItems, line)
	}
	return rows.Err()
}

// List returns invoices with their lines, newest first.
func (r *Repository) List(ctx context.Context) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	invs := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		invs = append(invs, inv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadLines(ctx, r.pool, invs); err != nil {
		return nil, err
	}
	return invs, nil
}

// Get loads one invoice with its lines.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id))
	if err != nil {
		return Invoice{}, err
	}
	invs := []Invoice{inv}
	if err := loadLines(ctx, r.pool, invs); err != nil {
		return Invoice{}, err
	}
	return invs[0], nil
}

// GetStocks reads the referenced lots without locking them.
func (r *Repository) GetStocks(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]stock.Stock, error) {
	return stock.Load(ctx, r.pool, ids)
}

// Insert stores a draft and its lines. A taken invoice number yields ErrNumberTaken.
func (r *Repository) Insert(ctx context.Context, inv Invoice) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO invoices (id, invoice_number, invoice_date, customer_name, customer_address,
customer_phone, customer_email, awb_number, flight_number, shipping_code, hc_number, parking_center, status,
subtotal, tax, total, total_weight, total_boxes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$19)`,
			inv.ID, inv.InvoiceNumber, inv.Date, inv.Customer.Name, inv.Customer.Address, inv.Customer.Phone,
			inv.Customer.Email, inv.Shipping.AWBNumber, inv.Shipping.FlightNumber, inv.Shipping.Code,
			inv.Shipping.HCNumber, inv.Shipping.ParkingCenter, string(inv.Status), inv.Subtotal, inv.Tax, inv.Total,
			inv.TotalWeight, inv.TotalBoxes, inv.CreatedAt)
		if err != nil {
			if db.IsUniqueViolation(err) && db.ConstraintName(err) == invoiceNumberConstraint {
				return ErrNumberTaken
			}
			return err
		}
		for i, line := range inv.LineItems {
			var weight decimal.NullDecimal
			if line.Weight != nil {
				weight = decimal.NewNullDecimal(*line.Weight)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO invoice_lines (id, invoice_id, line_no, stock_id, description, quantity, unit_price, subtotal, weight)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, line.ID, inv.ID, i+1, line.StockID, line.Description, line.Quantity,
				line.UnitPrice, line.Subtotal, weight); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *txRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (Invoice, error) {
	inv, err := scanInvoice(r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Invoice{}, err
	}
	invs := []Invoice{inv}
	if err := loadLines(ctx, r.tx, invs); err != nil {
		return Invoice{}, err
	}
	return invs[0], nil
}

func (r *txRepository) LockStocks(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]stock.Stock, error) {
	return stock.LockForUpdate(ctx, r.tx, ids)
}

func (r *txRepository) SaveStock(ctx context.Context, s stock.Stock) (stock.Stock, error) {
	return stock.SaveLocked(ctx, r.tx, s)
}

func (r *txRepository) MarkFinalized(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE invoices SET status='Finalized', finalized_at=$2, updated_at=$2
WHERE id=$1 AND status='Draft'`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyFinalized
	}
	return nil
}

func (r *txRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id=$1`, id); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx, `DELETE FROM invoices WHERE id=$1`, id)
	return err
}

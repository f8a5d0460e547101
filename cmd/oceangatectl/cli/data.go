package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oceangate/oceangate/internal/auth"
)

// domainTables lists every business table, children first.
var domainTables = []string{"invoice_lines", "invoices", "doa_records", "stock", "categories"}

// Execer runs a statement.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// UserAdmin manages accounts.
type UserAdmin interface {
	CreateUser(ctx context.Context, in auth.NewUser) (auth.User, error)
	RemoveUser(ctx context.Context, email string) error
	ResetAdmin(ctx context.Context, password string) error
}

// Invalidator drops cached dashboard data.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// DataCLI wipes business data.
type DataCLI struct {
	db    Execer
	users UserAdmin
	cache Invalidator
}

// NewDataCLI wires the helpers. cache may be nil.
func NewDataCLI(db Execer, users UserAdmin, cache Invalidator) *DataCLI {
	return &DataCLI{db: db, users: users, cache: cache}
}

// Clear truncates every business table. Users are kept.
func (c *DataCLI) Clear(ctx context.Context) error {
	if c == nil || c.db == nil {
		return errors.New("data cli: database not configured")
	}
	stmt := "TRUNCATE TABLE"
	for i, table := range domainTables {
		if i > 0 {
			stmt += ","
		}
		stmt += " " + table
	}
	if _, err := c.db.Exec(ctx, stmt); err != nil {
		return err
	}
	if c.cache != nil {
		return c.cache.Bump(ctx)
	}
	return nil
}

// ResetProduction clears business data and resets the admin password.
func (c *DataCLI) ResetProduction(ctx context.Context, adminPassword string) error {
	if c == nil || c.users == nil {
		return errors.New("data cli: user admin not configured")
	}
	if len(adminPassword) < auth.MinPasswordLength {
		return fmt.Errorf("admin password must be at least %d characters long", auth.MinPasswordLength)
	}
	if err := c.Clear(ctx); err != nil {
		return err
	}
	return c.users.ResetAdmin(ctx, adminPassword)
}

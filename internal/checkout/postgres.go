package checkout

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"

	"github.com/vhpx/pleasebuyus-sub000/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type PostgresBillWriter struct {
	db *sql.DB
}

func NewPostgresBillWriter(db *sql.DB) *PostgresBillWriter {
	return &PostgresBillWriter{db: db}
}

func (w *PostgresBillWriter) RunMigrations() error {
	driver, err := postgres.WithInstance(w.db, &postgres.Config{
		MigrationsTable: "bill_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (w *PostgresBillWriter) WriteBill(ctx context.Context, bill *domain.Bill) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	billQuery := `INSERT INTO bills (id, user_id, session_id, subtotal, shipping, tax, total, currency, status, created_at)
	              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = tx.ExecContext(ctx, billQuery,
		bill.ID,
		bill.UserID,
		bill.SessionID,
		bill.Subtotal,
		bill.Shipping,
		bill.Tax,
		bill.Total,
		bill.Currency,
		bill.Status,
		bill.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateBill
		}
		return fmt.Errorf("insert bill: %w", err)
	}

	lineQuery := `INSERT INTO bill_products (bill_id, position, product_id, product_name, outlet_id, quantity, unit_price, subtotal)
	              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for i, line := range bill.Lines {
		_, err := tx.ExecContext(ctx, lineQuery,
			bill.ID,
			i,
			line.ProductID,
			line.ProductName,
			line.OutletID,
			line.Quantity,
			line.UnitPrice,
			line.Subtotal,
		)
		if err != nil {
			return fmt.Errorf("insert bill line %s: %w", line.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bill: %w", err)
	}
	return nil
}

func (w *PostgresBillWriter) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	query := `SELECT id, user_id, session_id, subtotal, shipping, tax, total, currency, status, created_at
	          FROM bills WHERE id = $1`

	var bill domain.Bill
	err := w.db.QueryRowContext(ctx, query, id).Scan(
		&bill.ID,
		&bill.UserID,
		&bill.SessionID,
		&bill.Subtotal,
		&bill.Shipping,
		&bill.Tax,
		&bill.Total,
		&bill.Currency,
		&bill.Status,
		&bill.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBillNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query bill by id: %w", err)
	}

	rows, err := w.db.QueryContext(ctx,
		`SELECT product_id, product_name, outlet_id, quantity, unit_price, subtotal
		 FROM bill_products WHERE bill_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query bill lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.BillLine
		if err := rows.Scan(
			&line.ProductID,
			&line.ProductName,
			&line.OutletID,
			&line.Quantity,
			&line.UnitPrice,
			&line.Subtotal,
		); err != nil {
			return nil, fmt.Errorf("scan bill line: %w", err)
		}
		bill.Lines = append(bill.Lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return &bill, nil
}

func (w *PostgresBillWriter) Close() error {
	return w.db.Close()
}

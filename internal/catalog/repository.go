package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/vhpx/pleasebuyus-sub000/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Catalog supplies product snapshots. The cart only asks for them at add
// time and never refreshes stored prices.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListByOutlet(ctx context.Context, outletID string) ([]domain.Product, error)
}

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations() error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{MigrationsTable: "catalog_schema_migrations"})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

const selectProducts = `
		SELECT id, outlet_id, name, description, price, avatar_url, created_at
		FROM products
	`

func (r *Repository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return r.query(ctx, selectProducts+` ORDER BY id`)
}

func (r *Repository) ListByOutlet(ctx context.Context, outletID string) ([]domain.Product, error) {
	return r.query(ctx, selectProducts+` WHERE outlet_id = ? ORDER BY id`, outletID)
}

func (r *Repository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	products, err := r.query(ctx, selectProducts+` WHERE id = ?`, id)
	if err != nil {
		return domain.Product{}, err
	}
	if len(products) == 0 {
		return domain.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return products[0], nil
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var (
			p     domain.Product
			price string
		)
		err := rows.Scan(
			&p.ID,
			&p.OutletID,
			&p.Name,
			&p.Description,
			&price,
			&p.AvatarURL,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("product %s has invalid price %q: %w", p.ID, price, err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

// Upsert is used by admin tooling and tests to maintain the catalog.
func (r *Repository) Upsert(ctx context.Context, p domain.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	const query = `
		INSERT INTO products (id, outlet_id, name, description, price, avatar_url)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			outlet_id = excluded.outlet_id,
			name = excluded.name,
			description = excluded.description,
			price = excluded.price,
			avatar_url = excluded.avatar_url
	`
	_, err := r.db.ExecContext(ctx, query, p.ID, p.OutletID, p.Name, p.Description, p.Price.String(), p.AvatarURL)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

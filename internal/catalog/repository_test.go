package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhpx/pleasebuyus-sub000/internal/catalog"
	"github.com/vhpx/pleasebuyus-sub000/internal/domain"
)

func setupTestDB(t *testing.T) *catalog.Repository {
	// Use in-memory database for tests
	repo, err := catalog.NewRepository(":memory:")
	require.NoError(t, err)

	require.NoError(t, repo.RunMigrations())
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestListProducts_ReturnsSeededProducts(t *testing.T) {
	repo := setupTestDB(t)

	products, err := repo.ListProducts(context.Background())

	require.NoError(t, err)
	assert.Len(t, products, 5) // seed migration inserts 5 products
	assert.Equal(t, "sku1", products[0].ID)
	assert.False(t, products[0].CreatedAt.IsZero())
}

func TestListProducts_WithContext(t *testing.T) {
	repo := setupTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*1)
	defer cancel()

	products, err := repo.ListProducts(ctx)

	require.NoError(t, err)
	assert.Len(t, products, 5)
}

func TestGetProduct_Found(t *testing.T) {
	repo := setupTestDB(t)

	p, err := repo.GetProduct(context.Background(), "sku2")

	require.NoError(t, err)
	assert.Equal(t, "Keyboard", p.Name)
	assert.Equal(t, "outlet-tech", p.OutletID)
	assert.True(t, decimal.RequireFromString("49.99").Equal(p.Price))
}

func TestGetProduct_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetProduct(context.Background(), "nope")

	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestListByOutlet(t *testing.T) {
	repo := setupTestDB(t)

	home, err := repo.ListByOutlet(context.Background(), "outlet-home")
	require.NoError(t, err)
	assert.Len(t, home, 2)

	none, err := repo.ListByOutlet(context.Background(), "outlet-none")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpsert(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, domain.Product{
		ID: "sku9", Name: "Monitor", Price: decimal.RequireFromString("199.00"), OutletID: "outlet-tech",
	}))
	require.NoError(t, repo.Upsert(ctx, domain.Product{
		ID: "sku9", Name: "Monitor 27in", Price: decimal.RequireFromString("219.00"), OutletID: "outlet-tech",
	}))

	p, err := repo.GetProduct(ctx, "sku9")
	require.NoError(t, err)
	assert.Equal(t, "Monitor 27in", p.Name)
	assert.Equal(t, "219", p.Price.String())

	err = repo.Upsert(ctx, domain.Product{ID: "bad", Name: "Bad", Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidProduct)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	repo := setupTestDB(t)
	assert.NoError(t, repo.RunMigrations())
}

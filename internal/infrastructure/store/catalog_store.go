package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/marketplace/internal/domain/catalog"
)

// CatalogStore reads products from PostgreSQL. The core only consumes
// the catalog; product management happens elsewhere.
type CatalogStore struct {
	db *sql.DB
}

func NewCatalogStore(db *sql.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

func (s *CatalogStore) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	var p catalog.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price, stock_quantity, is_available, unit
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Available, &p.Unit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Product{}, catalog.ErrProductNotFound
		}
		return catalog.Product{}, err
	}
	return p, nil
}

var _ catalog.Catalog = (*CatalogStore)(nil)

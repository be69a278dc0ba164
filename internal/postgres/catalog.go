package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vardenhq/varden/internal/domain"
)

// CatalogService implements domain.CatalogService using PostgreSQL.
type CatalogService struct {
	pool *pgxpool.Pool
}

// Compile-time check that CatalogService implements domain.CatalogService.
var _ domain.CatalogService = (*CatalogService)(nil)

// NewCatalogService creates a new PostgreSQL-backed catalog service.
func NewCatalogService(pool *pgxpool.Pool) *CatalogService {
	return &CatalogService{pool: pool}
}

// ResolveProducts returns the catalog rows for the given ids. Missing ids
// are absent from the result rather than errors; checkout decides how to
// treat them.
func (s *CatalogService) ResolveProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}

	const query = `
		SELECT id, name, price_cents, archived, stock_quantity, max_per_order,
		       shipping_mode, shipping_per_unit_cents, shipping_per_unit_legacy
		FROM products
		WHERE id = ANY($1)`

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, domain.Internal(err, "catalog.resolve", "failed to query products")
	}
	defer rows.Close()

	products := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		var (
			p             domain.Product
			stockQuantity pgtype.Int8
			maxPerOrder   pgtype.Int8
			mode          string
			perUnitCents  pgtype.Int8
			legacyPerUnit pgtype.Float8
		)
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.PriceCents,
			&p.Archived,
			&stockQuantity,
			&maxPerOrder,
			&mode,
			&perUnitCents,
			&legacyPerUnit,
		); err != nil {
			return nil, domain.Internal(err, "catalog.resolve", "failed to scan product")
		}

		if stockQuantity.Valid {
			p.StockQuantity = &stockQuantity.Int64
		}
		if maxPerOrder.Valid {
			p.MaxPerOrder = &maxPerOrder.Int64
		}

		p.Shipping = domain.ShippingDescriptor{
			Mode:          domain.ShippingMode(mode),
			PerUnitCents:  perUnitCents.Int64,
			LegacyPerUnit: legacyPerUnit.Float64,
		}

		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "catalog.resolve", "failed to read products")
	}

	return products, nil
}

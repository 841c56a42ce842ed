package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/nikolayk812/storefront/internal/db"
	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/nikolayk812/storefront/internal/spec"
)

type productRepository struct {
	*repository[domain.Product]
}

func (r *productRepository) DecrementStock(productID int64, n int) {
	r.uow.stage(stagedOp{
		name: "decrement stock",
		apply: func(ctx context.Context, q *db.Queries) error {
			rowsAffected, err := q.DecrementStock(ctx, db.StockParams{ProductID: productID, Quantity: int32(n)})
			if err != nil {
				return fmt.Errorf("q.DecrementStock: %w", err)
			}

			return affectedOne(rowsAffected, port.EntityProduct, productID)
		},
	})
}

func (r *productRepository) IncrementStock(productID int64, n int) {
	r.uow.stage(stagedOp{
		name: "increment stock",
		apply: func(ctx context.Context, q *db.Queries) error {
			rowsAffected, err := q.IncrementStock(ctx, db.StockParams{ProductID: productID, Quantity: int32(n)})
			if err != nil {
				return fmt.Errorf("q.IncrementStock: %w", err)
			}

			return affectedOne(rowsAffected, port.EntityProduct, productID)
		},
	})
}

type productMapper struct{}

func (productMapper) entity() string    { return port.EntityProduct }
func (productMapper) table() string     { return "products" }
func (productMapper) columns() []string { return db.ProductColumns }

func (productMapper) mapping() spec.Mapping {
	return spec.Mapping{
		Columns: map[string]string{
			spec.FieldID:    "id",
			spec.FieldName:  "name",
			spec.FieldPrice: "price",
			spec.FieldBrand: "brand",
			spec.FieldType:  "type",
		},
		PrimaryKey: "id",
	}
}

func (productMapper) id(p *domain.Product) int64         { return p.ID }

func (productMapper) collect(rows pgx.Rows) ([]domain.Product, error) {
	dbProducts, err := db.CollectProducts(rows)
	if err != nil {
		return nil, fmt.Errorf("db.CollectProducts: %w", err)
	}

	products := make([]domain.Product, 0, len(dbProducts))
	for _, row := range dbProducts {
		products = append(products, mapProductRowToDomain(row))
	}

	return products, nil
}

func (productMapper) insert(ctx context.Context, q *db.Queries, p *domain.Product) error {
	if p.QuantityInStock < 0 {
		return fmt.Errorf("quantityInStock is negative")
	}

	id, err := q.InsertProduct(ctx, mapProductDomainToRow(*p))
	if err != nil {
		return fmt.Errorf("q.InsertProduct: %w", mapPgError(err))
	}

	p.ID = id

	return nil
}

func (productMapper) update(ctx context.Context, q *db.Queries, p *domain.Product) error {
	if p.QuantityInStock < 0 {
		return fmt.Errorf("quantityInStock is negative")
	}

	rowsAffected, err := q.UpdateProduct(ctx, mapProductDomainToRow(*p))
	if err != nil {
		return fmt.Errorf("q.UpdateProduct: %w", err)
	}

	return affectedOne(rowsAffected, port.EntityProduct, p.ID)
}

func (productMapper) remove(ctx context.Context, q *db.Queries, p *domain.Product) error {
	rowsAffected, err := q.DeleteProduct(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("q.DeleteProduct: %w", err)
	}

	return affectedOne(rowsAffected, port.EntityProduct, p.ID)
}

func (productMapper) include(_ context.Context, _ *db.Queries, relation string, _ []domain.Product) error {
	return fmt.Errorf("relation[%s] is not supported", relation)
}

func mapProductRowToDomain(row db.Product) domain.Product {
	return domain.Product{
		ID:              row.ID,
		Name:            row.Name,
		Description:     row.Description,
		Price:           row.Price,
		PictureURL:      row.PictureUrl,
		Type:            row.Type,
		Brand:           row.Brand,
		QuantityInStock: int(row.QuantityInStock),
	}
}

func mapProductDomainToRow(p domain.Product) db.Product {
	return db.Product{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Price:           p.Price,
		PictureUrl:      p.PictureURL,
		Type:            p.Type,
		Brand:           p.Brand,
		QuantityInStock: int32(p.QuantityInStock),
	}
}

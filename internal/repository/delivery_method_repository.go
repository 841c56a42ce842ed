package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/nikolayk812/storefront/internal/db"
	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/spec"
)

const entityDeliveryMethod = "delivery method"

type deliveryMethodMapper struct{}

func (deliveryMethodMapper) entity() string    { return entityDeliveryMethod }
func (deliveryMethodMapper) table() string     { return "delivery_methods" }
func (deliveryMethodMapper) columns() []string { return db.DeliveryMethodColumns }

func (deliveryMethodMapper) mapping() spec.Mapping {
	return spec.Mapping{
		Columns: map[string]string{
			spec.FieldID:    "id",
			spec.FieldName:  "short_name",
			spec.FieldPrice: "price",
		},
		PrimaryKey: "id",
	}
}

func (deliveryMethodMapper) id(d *domain.DeliveryMethod) int64         { return d.ID }

func (deliveryMethodMapper) collect(rows pgx.Rows) ([]domain.DeliveryMethod, error) {
	dbMethods, err := db.CollectDeliveryMethods(rows)
	if err != nil {
		return nil, fmt.Errorf("db.CollectDeliveryMethods: %w", err)
	}

	return mapDeliveryMethodRowsToDomain(dbMethods), nil
}

func (deliveryMethodMapper) insert(ctx context.Context, q *db.Queries, d *domain.DeliveryMethod) error {
	id, err := q.InsertDeliveryMethod(ctx, mapDeliveryMethodDomainToRow(*d))
	if err != nil {
		return fmt.Errorf("q.InsertDeliveryMethod: %w", mapPgError(err))
	}

	d.ID = id

	return nil
}

func (deliveryMethodMapper) update(ctx context.Context, q *db.Queries, d *domain.DeliveryMethod) error {
	rowsAffected, err := q.UpdateDeliveryMethod(ctx, mapDeliveryMethodDomainToRow(*d))
	if err != nil {
		return fmt.Errorf("q.UpdateDeliveryMethod: %w", err)
	}

	return affectedOne(rowsAffected, entityDeliveryMethod, d.ID)
}

func (deliveryMethodMapper) remove(ctx context.Context, q *db.Queries, d *domain.DeliveryMethod) error {
	rowsAffected, err := q.DeleteDeliveryMethod(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("q.DeleteDeliveryMethod: %w", mapPgError(err))
	}

	return affectedOne(rowsAffected, entityDeliveryMethod, d.ID)
}

func (deliveryMethodMapper) include(_ context.Context, _ *db.Queries, relation string, _ []domain.DeliveryMethod) error {
	return fmt.Errorf("relation[%s] is not supported", relation)
}

func mapDeliveryMethodRowsToDomain(rows []db.DeliveryMethod) []domain.DeliveryMethod {
	methods := make([]domain.DeliveryMethod, 0, len(rows))
	for _, row := range rows {
		methods = append(methods, domain.DeliveryMethod{
			ID:           row.ID,
			ShortName:    row.ShortName,
			DeliveryTime: row.DeliveryTime,
			Description:  row.Description,
			Price:        row.Price,
		})
	}

	return methods
}

func mapDeliveryMethodDomainToRow(d domain.DeliveryMethod) db.DeliveryMethod {
	return db.DeliveryMethod{
		ID:           d.ID,
		ShortName:    d.ShortName,
		DeliveryTime: d.DeliveryTime,
		Description:  d.Description,
		Price:        d.Price,
	}
}

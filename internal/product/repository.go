package product

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

type Repository interface {
	GetProduct(ctx context.Context, productID string) (*Product, error)
	GetVariant(ctx context.Context, variantID string) (*Variant, error)
	ListVariants(ctx context.Context, productID string) ([]*Variant, error)
	CreateVariant(ctx context.Context, v *Variant, fn func(ctx context.Context, tx db.Executor, v *Variant) error) error
	SetActive(ctx context.Context, variantID string, active bool) error
	DeleteVariant(ctx context.Context, variantID string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const variantColumns = `id, product_id, sku, name, price_override, stock, attributes, images, is_active, created_at, updated_at`

func scanVariant(row interface{ Scan(...any) error }) (*Variant, error) {
	var (
		v        Variant
		override decimal.NullDecimal
		attrs    []byte
	)
	err := row.Scan(
		&v.ID, &v.ProductID, &v.SKU, &v.Name, &override, &v.Stock,
		&attrs, pq.Array(&v.Images), &v.IsActive, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if override.Valid {
		price := override.Decimal
		v.PriceOverride = &price
	}
	v.Attributes = map[string]string{}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &v.Attributes); err != nil {
			return nil, err
		}
	}
	if v.Images == nil {
		v.Images = []string{}
	}
	return &v, nil
}

func (r *repository) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var p Product
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, price, stock, is_active FROM products WHERE id = $1`, productID,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) GetVariant(ctx context.Context, variantID string) (*Variant, error) {
	v, err := scanVariant(r.db.QueryRowContext(ctx,
		`SELECT `+variantColumns+` FROM variants WHERE id = $1`, variantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVariantNotFound
	}
	return v, err
}

func (r *repository) ListVariants(ctx context.Context, productID string) ([]*Variant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+variantColumns+` FROM variants WHERE product_id = $1 ORDER BY created_at, id`, productID)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to list variants", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	variants := []*Variant{}
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// CreateVariant inserts v with zero stock and runs fn in the same transaction.
func (r *repository) CreateVariant(ctx context.Context, v *Variant, fn func(ctx context.Context, tx db.Executor, v *Variant) error) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateVariant"),
		zap.String("sku", v.SKU),
	)

	if v.ID == "" {
		v.ID = uuid.NewString()
	}

	attrs, err := json.Marshal(v.Attributes)
	if err != nil {
		return err
	}

	var override any
	if v.PriceOverride != nil {
		override = *v.PriceOverride
	}

	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO variants (id, product_id, sku, name, price_override, stock, attributes, images, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9, $10)
		`, v.ID, v.ProductID, v.SKU, v.Name, override, attrs, pq.Array(v.Images), v.IsActive, v.CreatedAt, v.UpdatedAt)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) {
				switch pqErr.Code {
				case pqUniqueViolation:
					return ErrDuplicateSKU
				case pqForeignKeyViolation:
					return ErrProductNotFound
				}
			}
			return err
		}

		if fn != nil {
			return fn(ctx, tx, v)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to create variant", zap.Error(err))
		return err
	}

	return nil
}

func (r *repository) SetActive(ctx context.Context, variantID string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE variants SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, variantID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVariantNotFound
	}
	return nil
}

// DeleteVariant relies on the order_items foreign key to refuse deleting a
// variant that any order still references.
func (r *repository) DeleteVariant(ctx context.Context, variantID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM variants WHERE id = $1`, variantID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return ErrVariantInUse
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVariantNotFound
	}
	return nil
}

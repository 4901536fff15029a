package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	// LockStock reads the maintained counter and holds a row lock on it
	// until the surrounding transaction ends.
	LockStock(ctx context.Context, ex db.Executor, key StockKey) (int, error)
	SetStock(ctx context.Context, ex db.Executor, key StockKey, stock int) error
	InsertEntry(ctx context.Context, ex db.Executor, e *LedgerEntry) error

	CurrentStock(ctx context.Context, key StockKey) (int, error)
	SumChanges(ctx context.Context, key StockKey) (int, error)
	ListEntries(ctx context.Context, key StockKey, limit, offset int32) ([]*LedgerEntry, error)
	CountEntries(ctx context.Context, key StockKey) (int, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// stockTarget picks the table holding the counter for key.
func stockTarget(key StockKey) (query string, args []any) {
	if key.VariantID != nil {
		return `SELECT stock FROM variants WHERE id = $1 AND product_id = $2`,
			[]any{*key.VariantID, key.ProductID}
	}
	return `SELECT stock FROM products WHERE id = $1`, []any{key.ProductID}
}

// entryFilter builds the WHERE clause selecting a key's ledger entries,
// starting placeholders at argIndex.
func entryFilter(key StockKey, argIndex int) (string, []any) {
	if key.VariantID != nil {
		return fmt.Sprintf("product_id = $%d AND variant_id = $%d", argIndex, argIndex+1),
			[]any{key.ProductID, *key.VariantID}
	}
	return fmt.Sprintf("product_id = $%d AND variant_id IS NULL", argIndex), []any{key.ProductID}
}

func (r *repository) LockStock(ctx context.Context, ex db.Executor, key StockKey) (int, error) {
	query, args := stockTarget(key)

	var stock int
	err := ex.QueryRowContext(ctx, query+" FOR UPDATE", args...).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrStockNotFound, key)
	}
	if err != nil {
		return 0, err
	}
	return stock, nil
}

func (r *repository) SetStock(ctx context.Context, ex db.Executor, key StockKey, stock int) error {
	var (
		res sql.Result
		err error
	)
	if key.VariantID != nil {
		res, err = ex.ExecContext(ctx,
			`UPDATE variants SET stock = $1, updated_at = NOW() WHERE id = $2 AND product_id = $3`,
			stock, *key.VariantID, key.ProductID)
	} else {
		res, err = ex.ExecContext(ctx,
			`UPDATE products SET stock = $1, updated_at = NOW() WHERE id = $2`,
			stock, key.ProductID)
	}
	if err != nil {
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrStockNotFound, key)
	}
	return nil
}

func (r *repository) InsertEntry(ctx context.Context, ex db.Executor, e *LedgerEntry) error {
	return ex.QueryRowContext(ctx, `
		INSERT INTO inventory_logs (
			product_id, variant_id, reason, change_amount,
			new_stock, notes, actor, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`,
		e.ProductID,
		e.VariantID,
		e.Reason,
		e.ChangeAmount,
		e.NewStock,
		e.Notes,
		e.Actor,
		e.CreatedAt,
	).Scan(&e.ID)
}

func (r *repository) CurrentStock(ctx context.Context, key StockKey) (int, error) {
	query, args := stockTarget(key)

	var stock int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrStockNotFound, key)
	}
	return stock, err
}

func (r *repository) SumChanges(ctx context.Context, key StockKey) (int, error) {
	where, args := entryFilter(key, 1)

	var sum int
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(change_amount), 0) FROM inventory_logs WHERE "+where,
		args...,
	).Scan(&sum)
	return sum, err
}

func (r *repository) ListEntries(
	ctx context.Context,
	key StockKey,
	limit, offset int32,
) ([]*LedgerEntry, error) {

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListEntries"),
		zap.String("stock_key", key.String()),
	)

	where, args := entryFilter(key, 1)
	argIndex := len(args) + 1

	query := `
		SELECT id, product_id, variant_id, reason, change_amount,
			new_stock, notes, actor, created_at
		FROM inventory_logs
		WHERE ` + where + fmt.Sprintf(`
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query ledger entries", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(
			&e.ID,
			&e.ProductID,
			&e.VariantID,
			&e.Reason,
			&e.ChangeAmount,
			&e.NewStock,
			&e.Notes,
			&e.Actor,
			&e.CreatedAt,
		); err != nil {
			log.Error("failed to scan ledger entry", zap.Error(err))
			return nil, err
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *repository) CountEntries(ctx context.Context, key StockKey) (int, error) {
	where, args := entryFilter(key, 1)

	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM inventory_logs WHERE "+where, args...).Scan(&count)
	return count, err
}

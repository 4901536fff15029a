package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// listScanLimit caps how many rows a dashboard listing reads before the
// in-memory filters run.
const listScanLimit = 1000

const orderColumns = `
	o.id, o.order_number, o.status, o.payment_status,
	o.customer_name, o.customer_email, o.coupon_code, o.priority, o.source, o.rating,
	o.subtotal, o.tax, o.shipping, o.discount, o.total,
	o.tracking_number, o.carrier, o.version,
	o.created_at, o.updated_at, o.shipped_at, o.delivered_at`

// MutateFunc runs inside the transaction that holds the order row lock.
type MutateFunc func(ctx context.Context, tx db.Executor, o *Order) error

// ListQuery holds the filters the database can apply itself.
type ListQuery struct {
	Status   string
	Priority string
	Source   string
	Search   string
}

type Repository interface {
	GetOrderDetail(ctx context.Context, orderID uint) (*Order, error)
	GetOrdersByIDs(ctx context.Context, ids []uint) ([]*Order, error)
	ListOrders(ctx context.Context, q ListQuery) ([]*Order, error)
	UpdateWithLock(ctx context.Context, orderID uint, fn MutateFunc) (*Order, error)
	AppendNote(ctx context.Context, note *Note) error
	CreateOrder(ctx context.Context, o *Order, fn MutateFunc) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.Status, &o.PaymentStatus,
		&o.CustomerName, &o.CustomerEmail, &o.CouponCode, &o.Priority, &o.Source, &o.Rating,
		&o.Subtotal, &o.Tax, &o.Shipping, &o.Discount, &o.Total,
		&o.TrackingNumber, &o.Carrier, &o.Version,
		&o.CreatedAt, &o.UpdatedAt, &o.ShippedAt, &o.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) GetOrderDetail(ctx context.Context, orderID uint) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetOrderDetail"),
		zap.Uint("order_id", orderID),
	)

	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		log.Error("failed to fetch order", zap.Error(err))
		return nil, err
	}

	if err := loadChildren(ctx, r.db, o); err != nil {
		log.Error("failed to fetch order children", zap.Error(err))
		return nil, err
	}

	return o, nil
}

func (r *repository) GetOrdersByIDs(ctx context.Context, ids []uint) ([]*Order, error) {
	if len(ids) == 0 {
		return []*Order{}, nil
	}

	keys := make([]int64, len(ids))
	for i, id := range ids {
		keys[i] = int64(id)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.id = ANY($1) ORDER BY o.id`,
		pq.Array(keys),
	)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to batch fetch orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	return orders, rows.Err()
}

func (r *repository) ListOrders(ctx context.Context, q ListQuery) ([]*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListOrders"),
	)

	query := `SELECT ` + orderColumns + ` FROM orders o WHERE 1=1`
	args := []any{}
	argIndex := 1

	if s := strings.TrimSpace(q.Search); s != "" {
		query += fmt.Sprintf(
			" AND (o.order_number ILIKE $%d OR o.customer_name ILIKE $%d OR o.customer_email ILIKE $%d OR o.coupon_code ILIKE $%d)",
			argIndex, argIndex, argIndex, argIndex,
		)
		args = append(args, "%"+s+"%")
		argIndex++
	}

	if active(q.Status) {
		query += fmt.Sprintf(" AND o.status = $%d", argIndex)
		args = append(args, strings.ToUpper(q.Status))
		argIndex++
	}

	if active(q.Priority) {
		query += fmt.Sprintf(" AND o.priority = $%d", argIndex)
		args = append(args, strings.ToLower(q.Priority))
		argIndex++
	}

	if active(q.Source) {
		query += fmt.Sprintf(" AND o.source = $%d", argIndex)
		args = append(args, strings.ToLower(q.Source))
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY o.created_at DESC, o.id DESC LIMIT $%d", argIndex)
	args = append(args, listScanLimit)

	log.Debug("executing list orders query", zap.String("query", query), zap.Any("args", args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			log.Error("failed to scan order row", zap.Error(err))
			return nil, err
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		log.Error("rows iteration error", zap.Error(err))
		return nil, err
	}

	return orders, nil
}

// UpdateWithLock loads the order under SELECT ... FOR UPDATE, runs fn and
// saves the result in the same transaction. The save is guarded by the
// version column; new history rows and notes are inserted alongside.
func (r *repository) UpdateWithLock(ctx context.Context, orderID uint, fn MutateFunc) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "UpdateWithLock"),
		zap.Uint("order_id", orderID),
	)

	var updated *Order

	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		o, err := scanOrder(tx.QueryRowContext(ctx,
			`SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, orderID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}

		if err := loadChildren(ctx, tx, o); err != nil {
			return err
		}

		if err := fn(ctx, tx, o); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET status = $1, payment_status = $2, tracking_number = $3, carrier = $4,
				shipped_at = $5, delivered_at = $6, updated_at = $7, version = version + 1
			WHERE id = $8 AND version = $9
		`,
			o.Status, o.PaymentStatus, o.TrackingNumber, o.Carrier,
			o.ShippedAt, o.DeliveredAt, o.UpdatedAt, o.ID, o.Version,
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrConcurrentUpdate
		}
		o.Version++

		if err := insertHistory(ctx, tx, o); err != nil {
			return err
		}
		if err := insertNotes(ctx, tx, o); err != nil {
			return err
		}

		updated = o
		return nil
	})
	if err != nil {
		log.Warn("locked update failed", zap.Error(err))
		return nil, err
	}

	return updated, nil
}

func (r *repository) AppendNote(ctx context.Context, note *Note) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO order_notes (order_id, content, author, is_internal, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, note.OrderID, note.Content, note.Author, note.IsInternal, note.CreatedAt).Scan(&note.ID)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		return ErrOrderNotFound
	}
	return err
}

// CreateOrder inserts the order and its items, then runs fn in the same transaction.
func (r *repository) CreateOrder(ctx context.Context, o *Order, fn MutateFunc) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateOrder"),
		zap.String("order_number", o.OrderNumber),
	)

	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO orders (
				order_number, status, payment_status, customer_name, customer_email,
				coupon_code, priority, source, subtotal, tax, shipping, discount, total,
				version, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			RETURNING id
		`,
			o.OrderNumber, o.Status, o.PaymentStatus, o.CustomerName, o.CustomerEmail,
			o.CouponCode, o.Priority, o.Source, o.Subtotal, o.Tax, o.Shipping, o.Discount, o.Total,
			o.Version, o.CreatedAt, o.UpdatedAt,
		).Scan(&o.ID)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return ErrDuplicateOrderCode
			}
			return err
		}

		for i := range o.Items {
			item := &o.Items[i]
			item.OrderID = o.ID
			err := tx.QueryRowContext(ctx, `
				INSERT INTO order_items (order_id, product_id, variant_id, product_name, quantity, unit_price)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id
			`, o.ID, item.ProductID, item.VariantID, item.ProductName, item.Quantity, item.UnitPrice).Scan(&item.ID)
			if err != nil {
				return err
			}
		}

		if fn != nil {
			return fn(ctx, tx, o)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to create order", zap.Error(err))
		return err
	}

	log.Info("order created", zap.Uint("order_id", o.ID))
	return nil
}

func loadChildren(ctx context.Context, ex db.Executor, o *Order) error {
	items, err := loadItems(ctx, ex, o.ID)
	if err != nil {
		return err
	}
	o.Items = items

	notes, err := loadNotes(ctx, ex, o.ID)
	if err != nil {
		return err
	}
	o.Notes = notes

	history, err := loadHistory(ctx, ex, o.ID)
	if err != nil {
		return err
	}
	o.History = history

	return nil
}

func loadItems(ctx context.Context, ex db.Executor, orderID uint) ([]OrderItem, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, order_id, product_id, variant_id, product_name, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []OrderItem{}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.VariantID,
			&it.ProductName, &it.Quantity, &it.UnitPrice,
		); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func loadNotes(ctx context.Context, ex db.Executor, orderID uint) ([]Note, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, order_id, content, author, is_internal, created_at
		FROM order_notes
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []Note{}
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.OrderID, &n.Content, &n.Author, &n.IsInternal, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func loadHistory(ctx context.Context, ex db.Executor, orderID uint) ([]StatusChange, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, order_id, from_status, to_status, actor, reason, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []StatusChange{}
	for rows.Next() {
		var c StatusChange
		if err := rows.Scan(&c.ID, &c.OrderID, &c.From, &c.To, &c.Actor, &c.Reason, &c.At); err != nil {
			return nil, err
		}
		history = append(history, c)
	}
	return history, rows.Err()
}

func insertHistory(ctx context.Context, ex db.Executor, o *Order) error {
	for i := range o.History {
		c := &o.History[i]
		if c.ID != 0 {
			continue
		}
		if c.At.IsZero() {
			c.At = time.Now().UTC()
		}
		err := ex.QueryRowContext(ctx, `
			INSERT INTO order_status_history (order_id, from_status, to_status, actor, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, o.ID, c.From, c.To, c.Actor, c.Reason, c.At).Scan(&c.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func insertNotes(ctx context.Context, ex db.Executor, o *Order) error {
	for i := range o.Notes {
		n := &o.Notes[i]
		if n.ID != 0 {
			continue
		}
		err := ex.QueryRowContext(ctx, `
			INSERT INTO order_notes (order_id, content, author, is_internal, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, o.ID, n.Content, n.Author, n.IsInternal, n.CreatedAt).Scan(&n.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

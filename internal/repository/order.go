package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/storefront-api/internal/model"
)

type OrderRepository interface {
	// Place decrements stock for every item and inserts the order in one
	// transaction. A short product aborts everything with ErrStockConflict.
	Place(ctx context.Context, order *model.Order) error
	// Create inserts the order without touching stock.
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
	Update(ctx context.Context, order *model.Order, replaceItems bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

func (r *pgOrderRepo) Place(ctx context.Context, order *model.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range order.Items {
		if err := decrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	if err := insertOrder(ctx, tx, order); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *pgOrderRepo) Create(ctx context.Context, order *model.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertOrder(ctx, tx, order); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	order.ID = uuid.New()
	err := tx.QueryRow(ctx,
		`INSERT INTO orders (id, user_id, order_date, delivery_address, receiver_phone, total_amount, order_status, payment_status, updated_at)
		 VALUES ($1, $2, NOW(), $3, $4, $5, $6, $7, NOW()) RETURNING order_date, updated_at`,
		order.ID, order.UserID, order.DeliveryAddress, order.ReceiverPhone, order.TotalAmount,
		string(order.OrderStatus), string(order.PaymentStatus),
	).Scan(&order.OrderDate, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return insertItems(ctx, tx, order.ID, order.Items)
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []model.OrderItem) error {
	for i, item := range items {
		_, err := tx.Exec(ctx,
			`INSERT INTO order_items (order_id, position, product_id, quantity, price_at_purchase)
			 VALUES ($1, $2, $3, $4, $5)`,
			orderID, i, item.ProductID, item.Quantity, item.PriceAtPurchase,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

const orderColumns = `id, user_id, order_date, delivery_address, receiver_phone, total_amount, order_status, payment_status, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	var orderStatus, paymentStatus string
	err := row.Scan(&o.ID, &o.UserID, &o.OrderDate, &o.DeliveryAddress, &o.ReceiverPhone,
		&o.TotalAmount, &orderStatus, &paymentStatus, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.OrderStatus = model.OrderStatus(orderStatus)
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	return o, nil
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := r.loadItems(ctx, []*model.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *pgOrderRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	return r.List(ctx, model.OrderFilter{UserID: &userID})
}

func (r *pgOrderRepo) List(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		conds = append(conds, "order_status = ANY("+arg(statuses)+")")
	}
	if f.UserID != nil {
		conds = append(conds, "user_id = "+arg(*f.UserID))
	}
	if f.From != nil {
		conds = append(conds, "order_date >= "+arg(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "order_date < "+arg(*f.To))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if f.Ascending {
		query += " ORDER BY order_date ASC"
	} else {
		query += " ORDER BY order_date DESC"
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}

	result := make([]model.Order, len(orders))
	for i, o := range orders {
		result[i] = *o
	}
	return result, nil
}

func (r *pgOrderRepo) loadItems(ctx context.Context, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*model.Order, len(orders))
	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		byID[o.ID] = o
		ids[i] = o.ID
	}

	rows, err := r.pool.Query(ctx,
		`SELECT order_id, product_id, quantity, price_at_purchase FROM order_items
		 WHERE order_id = ANY($1) ORDER BY order_id, position`, ids,
	)
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID uuid.UUID
			item    model.OrderItem
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.Quantity, &item.PriceAtPurchase); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

func (r *pgOrderRepo) Update(ctx context.Context, order *model.Order, replaceItems bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`UPDATE orders SET delivery_address=$2, receiver_phone=$3, total_amount=$4,
		 order_status=$5, payment_status=$6, updated_at=NOW()
		 WHERE id=$1 RETURNING updated_at`,
		order.ID, order.DeliveryAddress, order.ReceiverPhone, order.TotalAmount,
		string(order.OrderStatus), string(order.PaymentStatus),
	).Scan(&order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		return fmt.Errorf("update order: %w", err)
	}

	if replaceItems {
		if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.ID); err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		if err := insertItems(ctx, tx, order.ID, order.Items); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *pgOrderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

package orders

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/acme/storefront/internal/authz"
	"github.com/acme/storefront/internal/domain"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// NewOrderItem is a line of a direct order-creation request. The unit price
// is always read from the catalog server-side, never taken from the caller.
type NewOrderItem struct {
	ProductID string
	Quantity  int
}

func (r *OrderRepository) Create(ctx context.Context, principal domain.Principal, items []NewOrderItem) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	order, err := insertOrder(ctx, tx, principal.ID)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		var priceCents int64
		err := tx.QueryRowContext(ctx, `
			SELECT price_cents FROM products WHERE id = $1
		`, item.ProductID).Scan(&priceCents)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, err
		}

		orderItem := domain.OrderItem{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: priceCents,
		}
		if err := insertOrderItem(ctx, tx, order.ID, orderItem); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, orderItem)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return order, nil
}

// Checkout converts the customer's entire cart into one order inside a
// single transaction: fetch cart lines with current catalog prices, create
// the order and its items, delete exactly the fetched cart rows, commit.
// Deleting by id rather than by customer keeps a concurrently added cart
// entry out of this checkout entirely: it is neither ordered nor deleted.
// Any failure rolls the whole thing back, so there is never a partial
// order or a half-emptied cart.
func (r *OrderRepository) Checkout(ctx context.Context, principal domain.Principal) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT c.id, c.product_id, c.quantity, p.price_cents
		FROM cart_entries c
		JOIN products p ON p.id = c.product_id
		WHERE c.customer_id = $1
	`, principal.ID)
	if err != nil {
		return nil, err
	}

	var entryIDs []string
	var items []domain.OrderItem
	for rows.Next() {
		var entryID string
		var item domain.OrderItem
		if err := rows.Scan(&entryID, &item.ProductID, &item.Quantity, &item.UnitPriceCents); err != nil {
			_ = rows.Close()
			return nil, err
		}
		entryIDs = append(entryIDs, entryID)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	order, err := insertOrder(ctx, tx, principal.ID)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if err := insertOrderItem(ctx, tx, order.ID, item); err != nil {
			return nil, err
		}
	}
	order.Items = items

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM cart_entries WHERE id = ANY($1)
	`, pq.Array(entryIDs)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return order, nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, customerID string) (*domain.Order, error) {
	order := &domain.Order{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Status:     domain.OrderStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	order.UpdatedAt = order.CreatedAt

	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, order.ID, order.CustomerID, order.Status, order.CreatedAt)
	if err != nil {
		return nil, err
	}

	return order, nil
}

func insertOrderItem(ctx context.Context, tx *sql.Tx, orderID string, item domain.OrderItem) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_id, quantity, unit_price_cents)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New().String(), orderID, item.ProductID, item.Quantity, item.UnitPriceCents)
	return err
}

func (r *OrderRepository) GetByID(ctx context.Context, principal domain.Principal, id string) (*domain.Order, error) {
	scope := authz.OrderScope(principal, 2)
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, status, created_at, updated_at
		FROM orders
		WHERE id = $1 AND `+scope.Where,
		append([]any{id}, scope.Args...)...,
	).Scan(&order.ID, &order.CustomerID, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price_cents
		FROM order_items
		WHERE order_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	order.Items = []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPriceCents); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) List(ctx context.Context, principal domain.Principal) ([]domain.Order, error) {
	scope := authz.OrderScope(principal, 1)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, status, created_at, updated_at
		FROM orders
		WHERE `+scope.Where+`
		ORDER BY created_at DESC
	`, scope.Args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.CustomerID, &order.Status, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, quantity, unit_price_cents
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Quantity, &item.UnitPriceCents); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

// UpdateStatus is scoped to the owning customer; a seller's read visibility
// of an order does not grant write access.
func (r *OrderRepository) UpdateStatus(ctx context.Context, principal domain.Principal, id string, status domain.OrderStatus) (*domain.Order, error) {
	scope := authz.OrderWriteScope(principal, 3)

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND `+scope.Where,
		append([]any{status, id}, scope.Args...)...,
	)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, domain.ErrNotFound
	}

	return r.GetByID(ctx, principal, id)
}

func (r *OrderRepository) Delete(ctx context.Context, principal domain.Principal, id string) error {
	scope := authz.OrderWriteScope(principal, 2)

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM orders
		WHERE id = $1 AND `+scope.Where,
		append([]any{id}, scope.Args...)...,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

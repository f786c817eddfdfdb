package cart

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/acme/storefront/internal/authz"
	"github.com/acme/storefront/internal/domain"
)

const foreignKeyViolation = "23503"

// Repository stores cart and wishlist entries. Every statement carries the
// tenant scope predicate, so rows of other customers are invisible to both
// reads and writes.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListEntries(ctx context.Context, principal domain.Principal) ([]domain.CartEntry, error) {
	scope := authz.TenantScope(principal, 1)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, product_id, quantity
		FROM cart_entries
		WHERE `+scope.Where+`
		ORDER BY product_id
	`, scope.Args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := []domain.CartEntry{}
	for rows.Next() {
		var e domain.CartEntry
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.ProductID, &e.Quantity); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Upsert adds a product to the cart, or overwrites the stored quantity when
// the (customer, product) row already exists. The unique index makes raced
// adds collapse into one row instead of duplicating.
func (r *Repository) Upsert(ctx context.Context, principal domain.Principal, productID string, quantity int) (*domain.CartEntry, error) {
	entry := &domain.CartEntry{
		CustomerID: principal.ID,
		ProductID:  productID,
		Quantity:   quantity,
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO cart_entries (id, customer_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (customer_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity
		RETURNING id
	`, uuid.New().String(), principal.ID, productID, quantity).Scan(&entry.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return entry, nil
}

func (r *Repository) Get(ctx context.Context, principal domain.Principal, id string) (*domain.CartEntry, error) {
	scope := authz.TenantScope(principal, 2)
	entry := &domain.CartEntry{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, product_id, quantity
		FROM cart_entries
		WHERE id = $1 AND `+scope.Where,
		append([]any{id}, scope.Args...)...,
	).Scan(&entry.ID, &entry.CustomerID, &entry.ProductID, &entry.Quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return entry, nil
}

func (r *Repository) UpdateQuantity(ctx context.Context, principal domain.Principal, id string, quantity int) (*domain.CartEntry, error) {
	scope := authz.TenantScope(principal, 3)

	result, err := r.db.ExecContext(ctx, `
		UPDATE cart_entries SET quantity = $1
		WHERE id = $2 AND `+scope.Where,
		append([]any{quantity, id}, scope.Args...)...,
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

	return r.Get(ctx, principal, id)
}

func (r *Repository) Delete(ctx context.Context, principal domain.Principal, id string) error {
	scope := authz.TenantScope(principal, 2)

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_entries
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

func (r *Repository) ListWishlist(ctx context.Context, principal domain.Principal) ([]domain.WishlistEntry, error) {
	scope := authz.TenantScope(principal, 1)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, product_id
		FROM wishlist_entries
		WHERE `+scope.Where+`
		ORDER BY product_id
	`, scope.Args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := []domain.WishlistEntry{}
	for rows.Next() {
		var e domain.WishlistEntry
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.ProductID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// AddToWishlist is idempotent: saving an already-saved product returns the
// existing row.
func (r *Repository) AddToWishlist(ctx context.Context, principal domain.Principal, productID string) (*domain.WishlistEntry, error) {
	entry := &domain.WishlistEntry{
		CustomerID: principal.ID,
		ProductID:  productID,
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO wishlist_entries (id, customer_id, product_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (customer_id, product_id) DO NOTHING
		RETURNING id
	`, uuid.New().String(), principal.ID, productID).Scan(&entry.ID)
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict path: the row already exists, fetch it.
		err = r.db.QueryRowContext(ctx, `
			SELECT id FROM wishlist_entries
			WHERE customer_id = $1 AND product_id = $2
		`, principal.ID, productID).Scan(&entry.ID)
		if errors.Is(err, sql.ErrNoRows) {
			// The conflicting row was deleted between the two statements.
			return nil, domain.ErrNotFound
		}
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return entry, nil
}

func (r *Repository) GetWishlistEntry(ctx context.Context, principal domain.Principal, id string) (*domain.WishlistEntry, error) {
	scope := authz.TenantScope(principal, 2)
	entry := &domain.WishlistEntry{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, product_id
		FROM wishlist_entries
		WHERE id = $1 AND `+scope.Where,
		append([]any{id}, scope.Args...)...,
	).Scan(&entry.ID, &entry.CustomerID, &entry.ProductID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return entry, nil
}

func (r *Repository) DeleteWishlistEntry(ctx context.Context, principal domain.Principal, id string) error {
	scope := authz.TenantScope(principal, 2)

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM wishlist_entries
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

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/acme/storefront/internal/authz"
	"github.com/acme/storefront/internal/domain"
)

const foreignKeyViolation = "23503"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name
		FROM categories
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return categories, nil
}

func (r *Repository) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	category := &domain.Category{
		ID:   uuid.New().String(),
		Name: name,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name)
		VALUES ($1, $2)
	`, category.ID, category.Name)
	if err != nil {
		return nil, err
	}

	return category, nil
}

func (r *Repository) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	category := &domain.Category{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name
		FROM categories
		WHERE id = $1
	`, id).Scan(&category.ID, &category.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return category, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, id, name string) (*domain.Category, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE categories SET name = $1
		WHERE id = $2
	`, name, id)
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

	return &domain.Category{ID: id, Name: name}, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
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

// ProductFilter is the query-engine input for product listings: a category
// id filter, a name/description search term, and an ordering key.
type ProductFilter struct {
	CategoryID string
	Search     string
	Ordering   string
}

var productOrderings = map[string]string{
	"":            "created_at DESC",
	"price":       "price_cents ASC",
	"-price":      "price_cents DESC",
	"created_at":  "created_at ASC",
	"-created_at": "created_at DESC",
}

func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error) {
	orderBy, ok := productOrderings[filter.Ordering]
	if !ok {
		return nil, domain.Invalid("ordering", "unknown ordering key")
	}

	query := `
		SELECT id, name, description, price_cents, category_id, seller_id, created_at
		FROM products
	`
	var conds []string
	var args []any

	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		conds = append(conds, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY " + orderBy

	return r.queryProducts(ctx, query, args...)
}

// ListSellerProducts is the seller's own management view: only products the
// requesting seller owns.
func (r *Repository) ListSellerProducts(ctx context.Context, principal domain.Principal) ([]domain.Product, error) {
	scope := authz.SellerProductScope(principal, 1)

	query := `
		SELECT id, name, description, price_cents, category_id, seller_id, created_at
		FROM products
		WHERE ` + scope.Where + `
		ORDER BY created_at DESC
	`

	return r.queryProducts(ctx, query, scope.Args...)
}

func (r *Repository) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *Repository) CreateProduct(ctx context.Context, product *domain.Product) error {
	product.ID = uuid.New().String()
	product.CreatedAt = time.Now().UTC()

	var categoryID any
	if product.CategoryID != "" {
		categoryID = product.CategoryID
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price_cents, category_id, seller_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, product.ID, product.Name, product.Description, product.PriceCents, categoryID, product.SellerID, product.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return domain.Invalid("category_id", "category does not exist")
		}
		return err
	}

	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, price_cents, category_id, seller_id, created_at
		FROM products
		WHERE id = $1
	`, id)

	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return product, nil
}

// UpdateProduct rewrites the mutable fields. The seller column is immutable
// after creation and is deliberately absent from the statement.
func (r *Repository) UpdateProduct(ctx context.Context, product *domain.Product) error {
	var categoryID any
	if product.CategoryID != "" {
		categoryID = product.CategoryID
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, price_cents = $3, category_id = $4
		WHERE id = $5
	`, product.Name, product.Description, product.PriceCents, categoryID, product.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return domain.Invalid("category_id", "category does not exist")
		}
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

// DeleteProduct removes the product; dependent cart, wishlist and order item
// rows go with it via the FK cascades.
func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var categoryID sql.NullString

	err := row.Scan(&product.ID, &product.Name, &product.Description,
		&product.PriceCents, &categoryID, &product.SellerID, &product.CreatedAt)
	if err != nil {
		return nil, err
	}

	product.CategoryID = categoryID.String
	return product, nil
}

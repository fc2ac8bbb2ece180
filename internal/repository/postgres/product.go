package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/internal/repository"
	"github.com/utafrali/catalogue/pkg/database"
	apperrors "github.com/utafrali/catalogue/pkg/errors"
)

const productColumns = `id, title, description, short_description, is_active, created_at, updated_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

var _ repository.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	const query = `
		INSERT INTO products (title, description, short_description, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	ctx, end := database.TraceQuery(ctx, "CreateProduct", query)
	defer func() { end(err) }()

	err = r.pool.QueryRow(ctx, query, p.Title, p.Description, p.ShortDescription, p.IsActive).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (p *domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetProduct", query)
	defer func() { end(err) }()

	p = &domain.Product{}
	err = scanProduct(r.pool.QueryRow(ctx, query, id), p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("product", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// List returns one page of products and the total count.
func (r *ProductRepository) List(ctx context.Context, offset, limit int) (products []domain.Product, total int, err error) {
	query := `SELECT ` + productColumns + `, count(*) OVER() AS total_count
		FROM products
		ORDER BY id
		LIMIT $1 OFFSET $2`

	ctx, end := database.TraceQuery(ctx, "ListProducts", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products = []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.ShortDescription,
			&p.IsActive, &p.CreatedAt, &p.UpdatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, total, nil
}

// ListAll returns every product ordered by ID.
func (r *ProductRepository) ListAll(ctx context.Context) (products []domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY id`

	ctx, end := database.TraceQuery(ctx, "ListAllProducts", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all products: %w", err)
	}
	defer rows.Close()

	products = []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

// Update overwrites the writable fields of a product.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) (err error) {
	const query = `
		UPDATE products
		SET title = $1, description = $2, short_description = $3, is_active = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING created_at, updated_at`

	ctx, end := database.TraceQuery(ctx, "UpdateProduct", query)
	defer func() { end(err) }()

	err = r.pool.QueryRow(ctx, query, p.Title, p.Description, p.ShortDescription, p.IsActive, p.ID).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("product", strconv.FormatInt(p.ID, 10))
	}
	if err != nil {
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}
	return nil
}

// Delete removes a product by its ID.
func (r *ProductRepository) Delete(ctx context.Context, id int64) (err error) {
	const query = `DELETE FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteProduct", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", strconv.FormatInt(id, 10))
	}
	return nil
}

func scanProduct(row pgx.Row, p *domain.Product) error {
	return row.Scan(&p.ID, &p.Title, &p.Description, &p.ShortDescription,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
}

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

const categoryColumns = `id, title, description, image, is_active, parent_id, created_at, updated_at`

// CategoryRepository implements repository.CategoryRepository using PostgreSQL.
type CategoryRepository struct {
	pool database.DBTX
}

var _ repository.CategoryRepository = (*CategoryRepository)(nil)

// NewCategoryRepository creates a new PostgreSQL-backed category repository.
func NewCategoryRepository(pool database.DBTX) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// Create inserts a new category. An unknown parent is rejected as invalid input.
func (r *CategoryRepository) Create(ctx context.Context, c *domain.Category) (err error) {
	const query = `
		INSERT INTO categories (title, description, image, is_active, parent_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	ctx, end := database.TraceQuery(ctx, "CreateCategory", query)
	defer func() { end(err) }()

	err = r.pool.QueryRow(ctx, query, c.Title, c.Description, c.Image, c.IsActive, c.ParentID).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if database.IsForeignKeyViolation(err) {
		return unknownParent(c.ParentID)
	}
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// GetByID retrieves a category by its ID.
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (c *domain.Category, err error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetCategory", query)
	defer func() { end(err) }()

	c = &domain.Category{}
	err = scanCategory(r.pool.QueryRow(ctx, query, id), c)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("category", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

// List returns one page of categories and the total count.
func (r *CategoryRepository) List(ctx context.Context, offset, limit int) (categories []domain.Category, total int, err error) {
	query := `SELECT ` + categoryColumns + `, count(*) OVER() AS total_count
		FROM categories
		ORDER BY id
		LIMIT $1 OFFSET $2`

	ctx, end := database.TraceQuery(ctx, "ListCategories", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories = []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Image, &c.IsActive,
			&c.ParentID, &c.CreatedAt, &c.UpdatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate category rows: %w", err)
	}
	return categories, total, nil
}

// ListAll returns every category ordered by ID.
func (r *CategoryRepository) ListAll(ctx context.Context) (categories []domain.Category, err error) {
	query := `SELECT ` + categoryColumns + ` FROM categories ORDER BY id`

	ctx, end := database.TraceQuery(ctx, "ListAllCategories", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all categories: %w", err)
	}
	defer rows.Close()

	categories = []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := scanCategory(rows, &c); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}
	return categories, nil
}

// Update overwrites the writable fields of a category.
func (r *CategoryRepository) Update(ctx context.Context, c *domain.Category) (err error) {
	const query = `
		UPDATE categories
		SET title = $1, description = $2, image = $3, is_active = $4, parent_id = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING created_at, updated_at`

	ctx, end := database.TraceQuery(ctx, "UpdateCategory", query)
	defer func() { end(err) }()

	err = r.pool.QueryRow(ctx, query, c.Title, c.Description, c.Image, c.IsActive, c.ParentID, c.ID).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NotFound("category", strconv.FormatInt(c.ID, 10))
	case database.IsForeignKeyViolation(err):
		return unknownParent(c.ParentID)
	case err != nil:
		return fmt.Errorf("update category %d: %w", c.ID, err)
	}
	return nil
}

// Delete removes a category. Children are detached by the parent_id
// foreign key (ON DELETE SET NULL).
func (r *CategoryRepository) Delete(ctx context.Context, id int64) (err error) {
	const query = `DELETE FROM categories WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteCategory", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("category", strconv.FormatInt(id, 10))
	}
	return nil
}

func unknownParent(parentID *int64) error {
	if parentID == nil {
		return apperrors.InvalidInput("parent category does not exist")
	}
	return apperrors.InvalidInput(fmt.Sprintf("parent category %d does not exist", *parentID))
}

func scanCategory(row pgx.Row, c *domain.Category) error {
	return row.Scan(&c.ID, &c.Title, &c.Description, &c.Image, &c.IsActive,
		&c.ParentID, &c.CreatedAt, &c.UpdatedAt)
}

package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/internal/event"
	"github.com/utafrali/catalogue/internal/repository"
	apperrors "github.com/utafrali/catalogue/pkg/errors"
	"github.com/utafrali/catalogue/pkg/pagination"
	"github.com/utafrali/catalogue/pkg/validator"
)

// ChangePublisher announces catalogue writes. *event.Producer implements it.
type ChangePublisher interface {
	PublishChanged(ctx context.Context, t domain.EntityType, action string, entity domain.Indexable) error
	PublishDeleted(ctx context.Context, t domain.EntityType, id int64) error
}

// changeNotifier publishes change events and logs failures without failing
// the write that caused them. A nil publisher disables events.
type changeNotifier struct {
	entityType domain.EntityType
	events     ChangePublisher
	logger     *slog.Logger
}

func (n changeNotifier) changed(ctx context.Context, action string, entity domain.Indexable) {
	if n.events == nil {
		return
	}
	if err := n.events.PublishChanged(ctx, n.entityType, action, entity); err != nil {
		n.logger.ErrorContext(ctx, "failed to publish change event",
			slog.String("entity_type", string(n.entityType)),
			slog.String("action", action),
			slog.String("id", entity.DocumentID()),
			slog.String("error", err.Error()),
		)
	}
}

func (n changeNotifier) deleted(ctx context.Context, id int64) {
	if n.events == nil {
		return
	}
	if err := n.events.PublishDeleted(ctx, n.entityType, id); err != nil {
		n.logger.ErrorContext(ctx, "failed to publish change event",
			slog.String("entity_type", string(n.entityType)),
			slog.String("action", event.ActionDeleted),
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
	}
}

// ProductService implements the business logic for product operations.
type ProductService struct {
	repo   repository.ProductRepository
	notify changeNotifier
	logger *slog.Logger
}

// NewProductService creates a new product service. events may be nil.
func NewProductService(repo repository.ProductRepository, events ChangePublisher, logger *slog.Logger) *ProductService {
	return &ProductService{
		repo:   repo,
		notify: changeNotifier{entityType: domain.EntityProduct, events: events, logger: logger},
		logger: logger,
	}
}

// ListProducts returns one page of products and the total count.
func (s *ProductService) ListProducts(ctx context.Context, page pagination.Params) ([]domain.Product, int, error) {
	products, total, err := s.repo.List(ctx, page.Offset, page.PerPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// GetProduct retrieves a product by its ID.
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return product, nil
}

// CreateProduct validates input and stores a new product.
func (s *ProductService) CreateProduct(ctx context.Context, input domain.ProductInput) (*domain.Product, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	product := &domain.Product{}
	input.Apply(product)
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.notify.changed(ctx, event.ActionCreated, *product)
	s.logger.InfoContext(ctx, "product created", slog.Int64("product_id", product.ID))
	return product, nil
}

// UpdateProduct replaces the writable fields of product id.
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, input domain.ProductInput) (*domain.Product, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	product := &domain.Product{ID: id}
	input.Apply(product)
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.notify.changed(ctx, event.ActionUpdated, *product)
	s.logger.InfoContext(ctx, "product updated", slog.Int64("product_id", id))
	return product, nil
}

// DeleteProduct removes product id.
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.notify.deleted(ctx, id)
	s.logger.InfoContext(ctx, "product deleted", slog.Int64("product_id", id))
	return nil
}

// CategoryService implements the business logic for category operations.
type CategoryService struct {
	repo   repository.CategoryRepository
	notify changeNotifier
	logger *slog.Logger
}

// NewCategoryService creates a new category service. events may be nil.
func NewCategoryService(repo repository.CategoryRepository, events ChangePublisher, logger *slog.Logger) *CategoryService {
	return &CategoryService{
		repo:   repo,
		notify: changeNotifier{entityType: domain.EntityCategory, events: events, logger: logger},
		logger: logger,
	}
}

// ListCategories returns one page of categories and the total count.
func (s *CategoryService) ListCategories(ctx context.Context, page pagination.Params) ([]domain.Category, int, error) {
	categories, total, err := s.repo.List(ctx, page.Offset, page.PerPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}
	return categories, total, nil
}

// GetCategory retrieves a category by its ID.
func (s *CategoryService) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get category by id: %w", err)
	}
	return category, nil
}

// CreateCategory validates input and stores a new category.
func (s *CategoryService) CreateCategory(ctx context.Context, input domain.CategoryInput) (*domain.Category, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	category := &domain.Category{}
	input.Apply(category)
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.notify.changed(ctx, event.ActionCreated, *category)
	s.logger.InfoContext(ctx, "category created", slog.Int64("category_id", category.ID))
	return category, nil
}

// UpdateCategory replaces the writable fields of category id.
func (s *CategoryService) UpdateCategory(ctx context.Context, id int64, input domain.CategoryInput) (*domain.Category, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	if input.ParentID != nil && *input.ParentID == id {
		return nil, apperrors.InvalidInput("category cannot be its own parent")
	}

	category := &domain.Category{ID: id}
	input.Apply(category)
	if err := s.repo.Update(ctx, category); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}

	s.notify.changed(ctx, event.ActionUpdated, *category)
	s.logger.InfoContext(ctx, "category updated", slog.Int64("category_id", id))
	return category, nil
}

// DeleteCategory removes category id. Its children become top-level.
func (s *CategoryService) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	s.notify.deleted(ctx, id)
	s.logger.InfoContext(ctx, "category deleted", slog.Int64("category_id", id))
	return nil
}

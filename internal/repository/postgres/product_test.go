package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/pkg/database"
	apperrors "github.com/utafrali/catalogue/pkg/errors"
)

var fixedTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func setupProductRepo(t *testing.T) (*ProductRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewProductRepository(mock), mock
}

func productRow() []string {
	return []string{"id", "title", "description", "short_description", "is_active", "created_at", "updated_at"}
}

func TestProductRepository_Create(t *testing.T) {
	repo, mock := setupProductRepo(t)
	p := &domain.Product{Title: "Socks", Description: strPtr("Wool"), IsActive: true}

	mock.ExpectQuery("INSERT INTO products").
		WithArgs("Socks", p.Description, (*string)(nil), true).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(11), fixedTime, fixedTime))

	require.NoError(t, repo.Create(context.Background(), p))
	assert.Equal(t, int64(11), p.ID)
	assert.Equal(t, fixedTime, p.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetByID(t *testing.T) {
	repo, mock := setupProductRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM products WHERE id = \\$1").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(productRow()).
			AddRow(int64(3), "Hat", strPtr("Felt hat"), (*string)(nil), true, fixedTime, fixedTime))

	p, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Hat", p.Title)
	require.NotNil(t, p.Description)
	assert.Equal(t, "Felt hat", *p.Description)
	assert.Nil(t, p.ShortDescription)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := setupProductRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM products WHERE id = \\$1").
		WithArgs(int64(404)).
		WillReturnRows(pgxmock.NewRows(productRow()))

	_, err := repo.GetByID(context.Background(), 404)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "product with id 404 not found")
}

func TestProductRepository_List(t *testing.T) {
	repo, mock := setupProductRepo(t)

	mock.ExpectQuery("SELECT (.+) count\\(\\*\\) OVER\\(\\) AS total_count").
		WithArgs(2, 4).
		WillReturnRows(pgxmock.NewRows(append(productRow(), "total_count")).
			AddRow(int64(5), "A", (*string)(nil), (*string)(nil), true, fixedTime, fixedTime, 7).
			AddRow(int64(6), "B", (*string)(nil), (*string)(nil), false, fixedTime, fixedTime, 7))

	products, total, err := repo.List(context.Background(), 4, 2)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, products, 2)
	assert.Equal(t, int64(6), products[1].ID)
	assert.False(t, products[1].IsActive)
}

func TestProductRepository_ListAll_Empty(t *testing.T) {
	repo, mock := setupProductRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM products ORDER BY id").
		WillReturnRows(pgxmock.NewRows(productRow()))

	products, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestProductRepository_ListAll_QueryError(t *testing.T) {
	repo, mock := setupProductRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM products ORDER BY id").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.ListAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list all products")
}

func TestProductRepository_Update(t *testing.T) {
	repo, mock := setupProductRepo(t)
	later := fixedTime.Add(time.Hour)
	p := &domain.Product{ID: 9, Title: "Cap", IsActive: false}

	mock.ExpectQuery("UPDATE products").
		WithArgs("Cap", (*string)(nil), (*string)(nil), false, int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(fixedTime, later))

	require.NoError(t, repo.Update(context.Background(), p))
	assert.Equal(t, later, p.UpdatedAt)
}

func TestProductRepository_Update_NotFound(t *testing.T) {
	repo, mock := setupProductRepo(t)

	mock.ExpectQuery("UPDATE products").
		WithArgs("Cap", (*string)(nil), (*string)(nil), true, int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}))

	err := repo.Update(context.Background(), &domain.Product{ID: 9, Title: "Cap", IsActive: true})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductRepository_Delete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"deleted", 1, nil},
		{"missing", 0, apperrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := setupProductRepo(t)
			mock.ExpectExec("DELETE FROM products WHERE id = \\$1").
				WithArgs(int64(2)).
				WillReturnResult(pgxmock.NewResult("DELETE", tt.affected))

			err := repo.Delete(context.Background(), 2)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/internal/engine"
	enginememory "github.com/utafrali/catalogue/internal/engine/memory"
	"github.com/utafrali/catalogue/internal/repository/memory"
	"github.com/utafrali/catalogue/internal/service"
	"github.com/utafrali/catalogue/internal/worker"
	apperrors "github.com/utafrali/catalogue/pkg/errors"
	"github.com/utafrali/catalogue/pkg/health"
)

const testAPIKey = "s3cret"

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

type inlineSubmitter struct{}

func (inlineSubmitter) Submit(job worker.Job) error {
	job(context.Background())
	return nil
}

type rejectingSubmitter struct{}

func (rejectingSubmitter) Submit(worker.Job) error { return worker.ErrQueueFull }

// downIndex fails every search as an unreachable engine would.
type downIndex struct{ *enginememory.Index }

func (downIndex) Search(context.Context, string) ([]domain.SearchHit, error) {
	return nil, errIndexDown
}

type testEnv struct {
	router   http.Handler
	products *enginememory.Index
}

type envOptions struct {
	submitter   service.Submitter
	productsIdx engine.IndexManager
	ratePerMin  int
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	productRepo := memory.NewProductRepository()
	categoryRepo := memory.NewCategoryRepository()
	productIdx := enginememory.New(engine.ProductIndex("products_index"), 0)
	categoryIdx := enginememory.New(engine.CategoryIndex("categories_index"), 0)

	var searchProducts engine.IndexManager = productIdx
	if opts.productsIdx != nil {
		searchProducts = opts.productsIdx
	}
	submitter := opts.submitter
	if submitter == nil {
		submitter = inlineSubmitter{}
	}

	ledger := service.NewLedger(memory.NewTaskStatusStore(), "", logger)
	orch := service.NewOrchestrator(ledger, submitter, nil, logger)
	orch.Register(domain.EntityProduct, service.SourceOf[domain.Product](productRepo), productIdx)
	orch.Register(domain.EntityCategory, service.SourceOf[domain.Category](categoryRepo), categoryIdx)

	svc := Services{
		Products:   service.NewProductService(productRepo, nil, logger),
		Categories: service.NewCategoryService(categoryRepo, nil, logger),
		Search: service.NewSearchService(map[domain.EntityType]engine.IndexManager{
			domain.EntityProduct:  searchProducts,
			domain.EntityCategory: categoryIdx,
		}, logger),
		Reindex: orch,
		Ledger:  ledger,
	}
	cfg := RouterConfig{
		ServiceName:          "catalogue-test",
		APIKey:               testAPIKey,
		ReindexRatePerMinute: opts.ratePerMin,
		ReindexRateBurst:     1,
		SearchCacheSeconds:   60,
	}
	return &testEnv{
		router:   NewRouter(svc, cfg, health.NewHandler(), logger),
		products: productIdx,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func TestProductCRUD(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w, resp := env.do(t, http.MethodPost, "/api/v1/products", `{"title":"Desk lamp","description":"LED"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created domain.Product
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, int64(1), created.ID)
	assert.True(t, created.IsActive)

	w, resp = env.do(t, http.MethodGet, "/api/v1/products/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.Product
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, "Desk lamp", got.Title)

	w, _ = env.do(t, http.MethodPut, "/api/v1/products/1", `{"title":"Floor lamp"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(t, http.MethodGet, "/api/v1/products?page=1&per_page=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data       []domain.Product `json:"data"`
		TotalCount int              `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.TotalCount)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Floor lamp", page.Data[0].Title)

	w, _ = env.do(t, http.MethodDelete, "/api/v1/products/1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, resp = env.do(t, http.MethodGet, "/api/v1/products/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestProductRequestErrors(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"non numeric id", http.MethodGet, "/api/v1/products/abc", "", http.StatusBadRequest, "INVALID_PARAMETER"},
		{"zero id", http.MethodDelete, "/api/v1/products/0", "", http.StatusBadRequest, "INVALID_PARAMETER"},
		{"missing title", http.MethodPost, "/api/v1/products", `{"description":"x"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown field", http.MethodPost, "/api/v1/products", `{"title":"x","price":3}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"malformed json", http.MethodPost, "/api/v1/products", `{"title":`, http.StatusBadRequest, "INVALID_INPUT"},
		{"update missing", http.MethodPut, "/api/v1/products/99", `{"title":"x"}`, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestUnsupportedContentType(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/categories", strings.NewReader(`title=x`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestCategoryValidation(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w, resp := env.do(t, http.MethodPost, "/api/v1/categories", `{"title":"Garden","image":"not-a-url","parent_id":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "image")
	assert.Contains(t, resp.Error.Fields, "parent_id")
}

func TestReindexThenSearch(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	for _, body := range []string{
		`{"title":"Steel water bottle"}`,
		`{"title":"Glass bottle","description":"water tight"}`,
		`{"title":"Coffee mug"}`,
	} {
		w, _ := env.do(t, http.MethodPost, "/api/v1/products", body)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, _ := env.do(t, http.MethodPost, "/api/v1/products/update-index", "", "X-API-Key", testAPIKey)
	require.Equal(t, http.StatusAccepted, w.Code)
	var task domain.TaskStatusRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	assert.Equal(t, domain.TaskInProgress, task.Status)
	assert.Nil(t, task.DoneAt)
	assert.Equal(t, "/api/v1/task-status/"+task.UUID, w.Header().Get("Location"))

	w, _ = env.do(t, http.MethodGet, "/api/v1/task-status/"+task.UUID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	var polled domain.TaskStatusRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &polled))
	assert.Equal(t, domain.TaskDone, polled.Status)
	assert.NotNil(t, polled.DoneAt)
	assert.Equal(t, 3, env.products.Len())

	w, _ = env.do(t, http.MethodGet, "/api/v1/products/search?keyword=water+bottle", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))
	var hits []domain.SearchHit
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hits))
	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].EntityID)
	assert.Equal(t, "Steel water bottle", hits[0].Title)
	assert.Equal(t, int64(2), hits[1].EntityID)

	w, _ = env.do(t, http.MethodGet, "/api/v1/products/search?keyword=teapot", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestTaskEndpointBodies(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w, _ := env.do(t, http.MethodPost, "/api/v1/products", `{"title":"Desk lamp"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/v1/products/update-index", "", "X-API-Key", testAPIKey)
	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	assert.Len(t, accepted, 3, w.Body.String())
	assert.Equal(t, "In progress", accepted["status"])
	assert.NotEmpty(t, accepted["uuid"])
	assert.NotEmpty(t, accepted["created_at"])

	w, _ = env.do(t, http.MethodGet, "/api/v1/task-status/"+accepted["uuid"].(string), "")
	require.Equal(t, http.StatusOK, w.Code)
	var polled map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &polled))
	assert.Equal(t, accepted["uuid"], polled["uuid"])
	assert.Equal(t, "Done", polled["status"])
	assert.Contains(t, polled, "done_at")
	assert.Contains(t, polled, "details")
	assert.NotContains(t, polled, "data")

	w, _ = env.do(t, http.MethodGet, "/api/v1/products/search?keyword=lamp", "")
	require.Equal(t, http.StatusOK, w.Code)
	var hits []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hits), w.Body.String())
	require.Len(t, hits, 1)
	assert.Equal(t, float64(1), hits[0]["entity_id"])
	assert.Equal(t, "Desk lamp", hits[0]["title"])
	assert.Contains(t, hits[0], "score")
}

func TestReindexRequiresAPIKey(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w, resp := env.do(t, http.MethodPost, "/api/v1/categories/update-index", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)

	w, _ = env.do(t, http.MethodPost, "/api/v1/categories/update-index", "", "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReindexRateLimited(t *testing.T) {
	env := newTestEnv(t, envOptions{ratePerMin: 1})

	w, _ := env.do(t, http.MethodPost, "/api/v1/products/update-index", "", "X-API-Key", testAPIKey)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w, resp := env.do(t, http.MethodPost, "/api/v1/categories/update-index", "", "X-API-Key", testAPIKey)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "RATE_LIMITED", resp.Error.Code)
}

func TestReindexQueueFull(t *testing.T) {
	env := newTestEnv(t, envOptions{submitter: rejectingSubmitter{}})

	w, resp := env.do(t, http.MethodPost, "/api/v1/products/update-index", "", "X-API-Key", testAPIKey)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)
}

func TestTaskStatusErrors(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w, resp := env.do(t, http.MethodGet, "/api/v1/task-status/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)

	id := "6f9619ff-8b86-4d11-b42d-00c04fc964ff"
	w, _ = env.do(t, http.MethodGet, "/api/v1/task-status/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Task with UUID `+id+` does not exist."}`, w.Body.String())
}

func TestSearchErrors(t *testing.T) {
	down := downIndex{enginememory.New(engine.ProductIndex("products_index"), 0)}
	env := newTestEnv(t, envOptions{productsIdx: down})

	w, resp := env.do(t, http.MethodGet, "/api/v1/products/search?keyword=lamp", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INDEX_UNAVAILABLE", resp.Error.Code)

	w, resp = env.do(t, http.MethodGet, "/api/v1/categories/search?keyword="+strings.Repeat("x", 300), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "MALFORMED_QUERY", resp.Error.Code)

	w, _ = env.do(t, http.MethodGet, "/api/v1/categories/search", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w, _ := env.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

var errIndexDown = apperrors.IndexUnavailable(errors.New("dial tcp 127.0.0.1:9200: connect: connection refused"))

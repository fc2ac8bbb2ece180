package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/internal/service"
	"github.com/utafrali/catalogue/pkg/health"
	"github.com/utafrali/catalogue/pkg/middleware"
)

// Services bundles the application services served over HTTP.
type Services struct {
	Products   *service.ProductService
	Categories *service.CategoryService
	Search     *service.SearchService
	Reindex    *service.Orchestrator
	Ledger     *service.Ledger
}

// RouterConfig holds the HTTP-level settings of the router.
type RouterConfig struct {
	ServiceName string
	// APIKey guards reindex triggers. Empty disables the check.
	APIKey string
	// ReindexRatePerMinute and ReindexRateBurst limit reindex triggers per
	// client IP. A zero rate disables the limit.
	ReindexRatePerMinute int
	ReindexRateBurst     int
	// SearchCacheSeconds is the Cache-Control max-age of search responses.
	SearchCacheSeconds int
	PprofAllowedCIDRs  []string
	CORS               middleware.CORSConfig
}

// NewRouter creates a chi router with all catalogue routes registered.
func NewRouter(svc Services, cfg RouterConfig, healthHandler *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	products := NewProductHandler(svc.Products, logger)
	categories := NewCategoryHandler(svc.Categories, logger)
	search := NewSearchHandler(svc.Search, logger)
	tasks := NewTaskHandler(svc.Reindex, svc.Ledger, logger)

	trigger := []func(http.Handler) http.Handler{
		middleware.RateLimit(cfg.ReindexRatePerMinute, cfg.ReindexRateBurst, logger),
		middleware.APIKey(cfg.APIKey, logger),
	}

	entityRoutes := func(t domain.EntityType, list, get, create, update, remove http.HandlerFunc) func(chi.Router) {
		return func(r chi.Router) {
			r.Get("/", list)
			r.With(middleware.CacheControl(cfg.SearchCacheSeconds)).Get("/search", search.Search(t))
			r.With(trigger...).Post("/update-index", tasks.StartReindex(t))
			r.Get("/{id}", get)
			r.Delete("/{id}", remove)

			r.Group(func(r chi.Router) {
				r.Use(ContentTypeJSON)
				r.Post("/", create)
				r.Put("/{id}", update)
			})
		}
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", entityRoutes(domain.EntityProduct,
			products.ListProducts, products.GetProduct, products.CreateProduct,
			products.UpdateProduct, products.DeleteProduct))
		r.Route("/categories", entityRoutes(domain.EntityCategory,
			categories.ListCategories, categories.GetCategory, categories.CreateCategory,
			categories.UpdateCategory, categories.DeleteCategory))

		r.With(middleware.CacheControl(0)).Get("/task-status/{uuid}", tasks.TaskStatus)
	})

	return r
}

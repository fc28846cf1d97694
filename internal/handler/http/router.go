package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neargud/catalog/internal/service"
	"github.com/neargud/catalog/pkg/health"
	"github.com/neargud/catalog/pkg/middleware"
)

const serviceName = "catalog"

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	CORSOrigins     []string
	RateLimitPerMin int
	Production      bool
	PprofCIDRs      []string
}

// NewRouter creates a chi router with all catalog routes registered.
func NewRouter(
	categoryService *service.CategoryService,
	productService *service.ProductService,
	storefrontService *service.StorefrontService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.SecurityHeaders(cfg.Production))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Metrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	categoryHandler := NewCategoryHandler(categoryService, logger)
	productHandler := NewProductHandler(productService, logger)
	storefrontHandler := NewStorefrontHandler(storefrontService, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMin))

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categoryHandler.ListCategories)
			r.Get("/{idOrSlug}", categoryHandler.GetCategory)
			r.Post("/", categoryHandler.CreateCategory)
			r.Put("/{id}", categoryHandler.UpdateCategory)
			r.Delete("/{id}", categoryHandler.DeleteCategory)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Get("/{idOrSlug}", productHandler.GetProduct)
			r.Post("/", productHandler.CreateProduct)
			r.Put("/{id}", productHandler.UpdateProduct)
			r.Delete("/{id}", productHandler.DeleteProduct)
		})

		r.Get("/storefront/products", storefrontHandler.BrowseProducts)
	})

	return r
}

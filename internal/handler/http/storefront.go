package http

import (
	"log/slog"
	"net/http"

	"github.com/neargud/catalog/internal/service"
	"github.com/neargud/catalog/pkg/httputil"
	"github.com/neargud/catalog/pkg/pagination"
)

// StorefrontHandler serves the shopper-facing product listing.
type StorefrontHandler struct {
	service *service.StorefrontService
	logger  *slog.Logger
}

// NewStorefrontHandler creates a new storefront HTTP handler.
func NewStorefrontHandler(svc *service.StorefrontService, logger *slog.Logger) *StorefrontHandler {
	return &StorefrontHandler{
		service: svc,
		logger:  logger,
	}
}

// BrowseProducts handles GET /api/v1/storefront/products
// category_id takes a category id or slug and matches products filed at that
// category's level or below.
func (h *StorefrontHandler) BrowseProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lq, ok := parseListQuery(w, q)
	if !ok {
		return
	}

	category := q.Get("category_id")
	if category == "" {
		category = q.Get("category")
	}

	page, err := h.service.Browse(r.Context(), service.StorefrontQuery{
		Category: category,
		BrandID:  lq.BrandID,
		Search:   lq.Search,
		MinPrice: lq.MinPrice,
		MaxPrice: lq.MaxPrice,
		SortBy:   lq.SortBy,
		Page:     pagination.FromRequest(r),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, page)
}

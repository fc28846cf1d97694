package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/neargud/catalog/internal/domain"
	"github.com/neargud/catalog/internal/repository"
	"github.com/neargud/catalog/internal/service"
	"github.com/neargud/catalog/pkg/httputil"
	"github.com/neargud/catalog/pkg/pagination"
	"github.com/neargud/catalog/pkg/validator"
)

// ProductHandler handles HTTP requests for the admin product endpoints.
type ProductHandler struct {
	service *service.ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		logger:  logger,
	}
}

// ListProducts handles GET /api/v1/products
// Lists products in every status. Filters: vendor_id, brand_id, status,
// search, min_price, max_price, sort_by, page, per_page.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lq, ok := parseListQuery(w, q)
	if !ok {
		return
	}
	page := pagination.FromRequest(r)

	filter := repository.ProductFilter{
		BrandID:  lq.BrandID,
		VendorID: optionalString(q, "vendor_id"),
		Search:   lq.Search,
		MinPrice: lq.MinPrice,
		MaxPrice: lq.MaxPrice,
		SortBy:   lq.SortBy,
		Page:     page.Page,
		PerPage:  page.PerPage,
	}
	if status := optionalString(q, "status"); status != nil {
		if !domain.IsValidStatus(*status) {
			writeInvalidParameter(w, "status must be one of: draft, published, archived")
			return
		}
		filter.Status = status
	}

	products, total, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(products, total, page))
}

// GetProduct handles GET /api/v1/products/{idOrSlug}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "idOrSlug"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// CreateProduct handles POST /api/v1/products
// Numeric fields may be sent as numbers or numeric strings.
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input domain.CreateProductInput
	if err := validator.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), &input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /api/v1/products/{id}
// All fields are optional. "variants": null removes the variants; a variant
// document replaces them as a whole.
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var input domain.UpdateProductInput
	if err := validator.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), id, &input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/v1/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

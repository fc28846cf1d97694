package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/neargud/catalog/internal/domain"
	"github.com/neargud/catalog/internal/event"
	"github.com/neargud/catalog/internal/repository"
	"github.com/neargud/catalog/internal/sku"
	"github.com/neargud/catalog/internal/variant"
	apperrors "github.com/neargud/catalog/pkg/errors"
	"github.com/neargud/catalog/pkg/pagination"
	"github.com/neargud/catalog/pkg/slug"
)

// CategoryReader resolves category references.
type CategoryReader interface {
	GetByID(ctx context.Context, id string) (*domain.Category, error)
}

// VendorVerifier confirms that a vendor exists.
type VendorVerifier interface {
	Verify(ctx context.Context, vendorID string) error
}

// ProductService implements the business logic for product operations.
type ProductService struct {
	repo       repository.ProductRepository
	categories CategoryReader
	skus       *sku.Allocator
	vendors    VendorVerifier
	producer   *event.Producer
	logger     *slog.Logger
}

// NewProductService creates a new product service. vendors may be nil, in
// which case vendor ids are not verified.
func NewProductService(
	repo repository.ProductRepository,
	categories CategoryReader,
	skus *sku.Allocator,
	vendors VendorVerifier,
	producer *event.Producer,
	logger *slog.Logger,
) *ProductService {
	return &ProductService{
		repo:       repo,
		categories: categories,
		skus:       skus,
		vendors:    vendors,
		producer:   producer,
		logger:     logger,
	}
}

// CreateProduct validates the input, allocates a SKU and stores the product.
func (s *ProductService) CreateProduct(ctx context.Context, input *domain.CreateProductInput) (*domain.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.InvalidInput("product name is required")
	}
	vendorID := strings.TrimSpace(input.VendorID)
	if vendorID == "" {
		return nil, apperrors.InvalidInput("vendor_id is required")
	}
	if input.Status != "" && !domain.IsValidStatus(input.Status) {
		return nil, invalidStatus(input.Status)
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:               uuid.New().String(),
		VendorID:         vendorID,
		Name:             name,
		Description:      input.Description,
		BrandID:          input.BrandID.Ptr(),
		CategoryID:       input.CategoryID.Ptr(),
		SubcategoryID:    input.SubcategoryID.Ptr(),
		SubSubCategoryID: input.SubSubCategoryID.Ptr(),
		Status:           domain.ProductStatusDraft,
		Images:           cleanImages(input.Images),
		Metadata:         input.Metadata,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if input.Status != "" {
		product.Status = input.Status
	}
	if slug.Generate(name) == "" {
		return nil, apperrors.InvalidInput("product name must contain a letter or digit")
	}

	if err := s.applyPricing(product, input.Price, input.OriginalPrice, input.StockQuantity, input.Variants); err != nil {
		recordRejection(err)
		return nil, err
	}

	if s.vendors != nil {
		if err := s.vendors.Verify(ctx, vendorID); err != nil {
			return nil, fmt.Errorf("verify vendor: %w", err)
		}
	}
	if err := s.checkCategoryRefs(ctx, product); err != nil {
		return nil, err
	}

	_, err := s.skus.Allocate(ctx, name, vendorID, func(ctx context.Context, candidate string) error {
		product.SKU = candidate
		product.Slug = productSlug(name, candidate)
		return s.repo.Create(ctx, product)
	})
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	if err := s.producer.PublishProductCreated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.created event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("sku", product.SKU),
		slog.Int("stock_quantity", product.StockQuantity),
	)

	return product, nil
}

// applyPricing sets price, quantity, stock status and variants for a new
// product. The product price defaults to the cheapest size price.
func (s *ProductService) applyPricing(p *domain.Product, price, originalPrice, quantity domain.Number, raw *domain.RawVariants) error {
	pr, err := variant.Price("price", price)
	if err != nil {
		return err
	}
	op, err := variant.Price("original_price", originalPrice)
	if err != nil {
		return err
	}

	if raw != nil && len(raw.ColorVariants) > 0 {
		res, err := variant.Validate(raw.ColorVariants, quantity)
		if err != nil {
			return err
		}
		p.Variants = res.Variants
		p.StockQuantity = res.StockQuantity
		p.Stock = res.Stock
		if pr == nil {
			pr = res.LowestPrice
		}
	} else {
		q := 0
		if quantity.IsSet() {
			if q, err = variant.Quantity(quantity); err != nil {
				return err
			}
		}
		p.StockQuantity = q
		p.Stock = domain.DeriveStockStatus(q)
	}

	if pr == nil {
		zero := decimal.Zero
		pr = &zero
	}
	if err := variant.CheckPrices("", "", pr, op); err != nil {
		return err
	}
	p.Price = *pr
	p.OriginalPrice = op
	return nil
}

// GetProduct retrieves a product by ID or slug.
func (s *ProductService) GetProduct(ctx context.Context, idOrSlug string) (*domain.Product, error) {
	var (
		product *domain.Product
		err     error
	)
	if _, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		product, err = s.repo.GetByID(ctx, idOrSlug)
	} else {
		product, err = s.repo.GetBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// ListProducts returns a filtered, paginated list of products in any status.
func (s *ProductService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = pagination.DefaultPerPage
	}
	if filter.PerPage > pagination.MaxPerPage {
		filter.PerPage = pagination.MaxPerPage
	}
	if !domain.IsValidSortBy(filter.SortBy) {
		return nil, 0, invalidSort(filter.SortBy)
	}

	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// UpdateProduct applies partial updates to an existing product. Variants are
// revalidated in full whenever the update touches them.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, input *domain.UpdateProductInput) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product for update: %w", err)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" || slug.Generate(name) == "" {
			return nil, apperrors.InvalidInput("product name must not be empty")
		}
		product.Name = name
		product.Slug = productSlug(name, product.SKU)
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.Status != nil {
		if !domain.IsValidStatus(*input.Status) {
			return nil, invalidStatus(*input.Status)
		}
		product.Status = *input.Status
	}
	if input.Images != nil {
		product.Images = cleanImages(input.Images)
	}
	if input.Metadata != nil {
		product.Metadata = input.Metadata
	}

	if input.BrandID.IsSet() {
		product.BrandID = input.BrandID.Ptr()
	}
	refsChanged := false
	for _, ref := range []struct {
		in  domain.Ref
		dst **string
	}{
		{input.CategoryID, &product.CategoryID},
		{input.SubcategoryID, &product.SubcategoryID},
		{input.SubSubCategoryID, &product.SubSubCategoryID},
	} {
		if ref.in.IsSet() {
			*ref.dst = ref.in.Ptr()
			refsChanged = true
		}
	}

	if err := s.applyStockUpdate(product, input); err != nil {
		recordRejection(err)
		return nil, err
	}

	if refsChanged {
		if err := s.checkCategoryRefs(ctx, product); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	if err := s.producer.PublishProductUpdated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.updated event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product updated",
		slog.String("product_id", product.ID),
		slog.String("sku", product.SKU),
	)

	return product, nil
}

// applyStockUpdate applies price, quantity, variant and stock status changes.
// A supplied stock status is honored only when neither the quantity nor the
// variants change; otherwise the status is derived from the new quantity.
func (s *ProductService) applyStockUpdate(p *domain.Product, input *domain.UpdateProductInput) error {
	if input.Price.IsSet() {
		pr, err := variant.Price("price", input.Price)
		if err != nil {
			return err
		}
		p.Price = *pr
	}
	if input.OriginalPrice.IsSet() {
		op, err := variant.Price("original_price", input.OriginalPrice)
		if err != nil {
			return err
		}
		p.OriginalPrice = op
	}

	quantityChanged := false
	switch {
	case input.Variants.Set && input.Variants.Value != nil && len(input.Variants.Value.ColorVariants) > 0:
		res, err := variant.Validate(input.Variants.Value.ColorVariants, input.StockQuantity)
		if err != nil {
			return err
		}
		p.Variants = res.Variants
		p.StockQuantity = res.StockQuantity
		quantityChanged = true
	case input.Variants.Set:
		p.Variants = domain.Variants{}
		if input.StockQuantity.IsSet() {
			q, err := variant.Quantity(input.StockQuantity)
			if err != nil {
				return err
			}
			p.StockQuantity = q
		}
		quantityChanged = true
	case input.StockQuantity.IsSet():
		q, err := variant.Quantity(input.StockQuantity)
		if err != nil {
			return err
		}
		p.StockQuantity = q
		quantityChanged = true
	}

	switch {
	case quantityChanged:
		p.Stock = domain.DeriveStockStatus(p.StockQuantity)
	case input.Stock != nil:
		if !domain.IsValidStockStatus(*input.Stock) {
			return apperrors.InvalidInput(fmt.Sprintf("invalid stock status %q", *input.Stock)).
				WithField("field", "stock")
		}
		p.Stock = *input.Stock
	}

	return variant.CheckPrices("", "", &p.Price, p.OriginalPrice)
}

// DeleteProduct removes a product by its ID.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	if err := s.producer.PublishProductDeleted(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.deleted event",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product deleted",
		slog.String("product_id", id),
	)

	return nil
}

// checkCategoryRefs verifies that each populated category reference exists.
// The three references are not checked against each other.
func (s *ProductService) checkCategoryRefs(ctx context.Context, p *domain.Product) error {
	fields := [domain.MaxDepth]string{"category_id", "subcategory_id", "sub_sub_category_id"}
	for i, ref := range p.CategoryRefs() {
		if ref == nil {
			continue
		}
		if _, err := s.categories.GetByID(ctx, *ref); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.NotFound("category", *ref).WithField("field", fields[i])
			}
			return fmt.Errorf("check %s: %w", fields[i], err)
		}
	}
	return nil
}

// productSlug derives a product slug from its name and SKU. Product names
// repeat across vendors; the SKU keeps each slug unique.
func productSlug(name, skuCode string) string {
	return slug.Generate(name + " " + skuCode)
}

func cleanImages(images []string) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		if img = strings.TrimSpace(img); img != "" {
			out = append(out, img)
		}
	}
	return out
}

func invalidStatus(status string) error {
	return apperrors.InvalidInput(fmt.Sprintf("invalid status %q, must be one of: %s",
		status, strings.Join(domain.ValidStatuses(), ", "))).
		WithField("field", "status")
}

func invalidSort(sortBy string) error {
	return apperrors.InvalidInput(fmt.Sprintf("invalid sort_by %q, must be one of: %s",
		sortBy, strings.Join(domain.ValidSortByValues(), ", "))).
		WithField("field", "sort_by")
}

package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices are rendered as JSON numbers rather than strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product status constants.
const (
	ProductStatusDraft     = "draft"
	ProductStatusPublished = "published"
	ProductStatusArchived  = "archived"
)

// Storefront sort options.
const (
	SortByNewest    = "newest"
	SortByPriceAsc  = "price_asc"
	SortByPriceDesc = "price_desc"
	SortByNameAsc   = "name_asc"
	SortByNameDesc  = "name_desc"
)

// Product is a vendor's catalog entry. The three category references are
// independent and may be inconsistent with each other.
type Product struct {
	ID               string           `json:"id"`
	VendorID         string           `json:"vendor_id"`
	Name             string           `json:"name"`
	Slug             string           `json:"slug"`
	Description      string           `json:"description"`
	BrandID          *string          `json:"brand_id,omitempty"`
	CategoryID       *string          `json:"category_id,omitempty"`
	SubcategoryID    *string          `json:"subcategory_id,omitempty"`
	SubSubCategoryID *string          `json:"sub_sub_category_id,omitempty"`
	Price            decimal.Decimal  `json:"price"`
	OriginalPrice    *decimal.Decimal `json:"original_price,omitempty"`
	StockQuantity    int              `json:"stock_quantity"`
	Stock            StockStatus      `json:"stock"`
	SKU              string           `json:"sku"`
	Status           string           `json:"status"`
	Images           []string         `json:"images"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
	Variants         Variants         `json:"variants"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// CategoryRefs returns the product's category references in level order.
func (p *Product) CategoryRefs() [MaxDepth]*string {
	return [MaxDepth]*string{p.CategoryID, p.SubcategoryID, p.SubSubCategoryID}
}

// CreateProductInput is an untrusted product create request. Numeric fields
// accept numbers or numeric strings; references accept an id or {"id": ...}.
type CreateProductInput struct {
	VendorID         string         `json:"vendor_id" validate:"required,max=64"`
	Name             string         `json:"name" validate:"required,min=1,max=255"`
	Description      string         `json:"description"`
	BrandID          Ref            `json:"brand_id"`
	CategoryID       Ref            `json:"category_id"`
	SubcategoryID    Ref            `json:"subcategory_id"`
	SubSubCategoryID Ref            `json:"sub_sub_category_id"`
	Price            Number         `json:"price"`
	OriginalPrice    Number         `json:"original_price"`
	StockQuantity    Number         `json:"stock_quantity"`
	Status           string         `json:"status" validate:"omitempty,oneof=draft published archived"`
	Images           []string       `json:"images" validate:"omitempty,dive,required"`
	Metadata         map[string]any `json:"metadata"`
	Variants         *RawVariants   `json:"variants"`
}

// UpdateProductInput is a partial product update. Stock is honored only when
// neither the quantity nor the variants change.
type UpdateProductInput struct {
	Name             *string        `json:"name" validate:"omitempty,min=1,max=255"`
	Description      *string        `json:"description"`
	BrandID          Ref            `json:"brand_id"`
	CategoryID       Ref            `json:"category_id"`
	SubcategoryID    Ref            `json:"subcategory_id"`
	SubSubCategoryID Ref            `json:"sub_sub_category_id"`
	Price            Number         `json:"price"`
	OriginalPrice    Number         `json:"original_price"`
	StockQuantity    Number         `json:"stock_quantity"`
	Stock            *StockStatus   `json:"stock"`
	Status           *string        `json:"status" validate:"omitempty,oneof=draft published archived"`
	Images           []string       `json:"images" validate:"omitempty,dive,required"`
	Metadata         map[string]any `json:"metadata"`
	Variants         VariantsPatch  `json:"variants"`
}

// ValidStatuses returns the set of valid product statuses.
func ValidStatuses() []string {
	return []string{ProductStatusDraft, ProductStatusPublished, ProductStatusArchived}
}

// IsValidStatus checks whether the given status string is a valid product status.
func IsValidStatus(status string) bool {
	return slices.Contains(ValidStatuses(), status)
}

// ValidSortByValues returns the accepted storefront sort options.
func ValidSortByValues() []string {
	return []string{SortByNewest, SortByPriceAsc, SortByPriceDesc, SortByNameAsc, SortByNameDesc}
}

// IsValidSortBy checks a sort option. Empty means the default ordering.
func IsValidSortBy(v string) bool {
	return v == "" || slices.Contains(ValidSortByValues(), v)
}

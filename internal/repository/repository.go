package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/neargud/catalog/internal/domain"
	"github.com/neargud/catalog/internal/matcher"
)

// CategoryStore defines category persistence operations.
type CategoryStore interface {
	// Create inserts a new category. A duplicate slug returns AlreadyExists.
	Create(ctx context.Context, c *domain.Category) error

	// GetByID retrieves a category by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Category, error)

	// GetBySlug retrieves a category by its URL-friendly slug.
	GetBySlug(ctx context.Context, slug string) (*domain.Category, error)

	// ListAll returns every category, optionally only the active ones.
	ListAll(ctx context.Context, activeOnly bool) ([]domain.Category, error)

	// ListChildren returns the direct children of a category.
	ListChildren(ctx context.Context, parentID string) ([]domain.Category, error)

	// CountChildren returns the number of direct children of a category.
	CountChildren(ctx context.Context, parentID string) (int, error)

	// Update modifies an existing category.
	Update(ctx context.Context, c *domain.Category) error

	// Delete removes a category by its identifier.
	Delete(ctx context.Context, id string) error
}

// CategoryRepository is a CategoryStore that can serialize tree mutations.
type CategoryRepository interface {
	CategoryStore

	// WithTreeLock runs fn in a transaction holding the category tree lock.
	// Every read and write fn makes through store sees and changes state
	// under that lock.
	WithTreeLock(ctx context.Context, fn func(store CategoryStore) error) error
}

// ProductFilter defines filter criteria for listing products.
type ProductFilter struct {
	// Category restricts results to products matching the criteria. A
	// NoMatch criteria returns nothing.
	Category *matcher.Criteria
	BrandID  *string
	VendorID *string
	Status   *string
	Search   *string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	SortBy   string
	Page     int
	PerPage  int
}

// ProductRepository defines the interface for product persistence operations.
type ProductRepository interface {
	// Create inserts a new product. A taken SKU returns domain.ErrSKUTaken.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// GetBySlug retrieves a product by its URL-friendly slug.
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)

	// List returns products matching the given filter along with the total count.
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)

	// Update modifies an existing product.
	Update(ctx context.Context, product *domain.Product) error

	// Delete removes a product by its identifier.
	Delete(ctx context.Context, id string) error

	// SKUExists reports whether any product already uses sku.
	SKUExists(ctx context.Context, sku string) (bool, error)
}

// TreeCache caches the rendered category tree between mutations. It is never
// consulted for depth or integrity checks.
type TreeCache interface {
	Get(ctx context.Context, key string) ([]*domain.Category, bool, error)
	Set(ctx context.Context, key string, tree []*domain.Category, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

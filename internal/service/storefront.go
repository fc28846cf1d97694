package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/neargud/catalog/internal/domain"
	"github.com/neargud/catalog/internal/matcher"
	"github.com/neargud/catalog/internal/repository"
	apperrors "github.com/neargud/catalog/pkg/errors"
	"github.com/neargud/catalog/pkg/pagination"
)

// StorefrontQuery is a shopper's product listing request. Only published
// products are ever returned.
type StorefrontQuery struct {
	// Category is a category id or slug. Empty means no category filter.
	Category string
	BrandID  *string
	Search   *string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	SortBy   string
	Page     pagination.Params
}

// StorefrontPage is one page of storefront results with the navigation tree.
type StorefrontPage struct {
	Products   pagination.Result[domain.Product] `json:"products"`
	Category   *domain.Category                  `json:"category,omitempty"`
	Categories []*domain.Category                `json:"categories"`
}

// StorefrontService serves depth-aware product listings to shoppers.
type StorefrontService struct {
	products   repository.ProductRepository
	categories *CategoryService
	matcher    *matcher.Matcher
	logger     *slog.Logger
}

// NewStorefrontService creates a new storefront service.
func NewStorefrontService(
	products repository.ProductRepository,
	categories *CategoryService,
	m *matcher.Matcher,
	logger *slog.Logger,
) *StorefrontService {
	return &StorefrontService{
		products:   products,
		categories: categories,
		matcher:    m,
		logger:     logger,
	}
}

// Browse lists published products. The category filter matches products at
// the depth-appropriate reference fields; an unknown category yields an empty
// page. The active category tree is loaded alongside the products.
func (s *StorefrontService) Browse(ctx context.Context, q StorefrontQuery) (*StorefrontPage, error) {
	if !domain.IsValidSortBy(q.SortBy) {
		return nil, invalidSort(q.SortBy)
	}
	if q.MinPrice != nil && q.MaxPrice != nil && q.MaxPrice.LessThan(*q.MinPrice) {
		return nil, apperrors.InvalidInput("max_price must not be below min_price").
			WithField("field", "max_price")
	}
	if q.Page.Page <= 0 {
		q.Page.Page = 1
	}
	if q.Page.PerPage <= 0 {
		q.Page.PerPage = pagination.DefaultPerPage
	}

	var (
		page     StorefrontPage
		products []domain.Product
		total    int
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		published := domain.ProductStatusPublished
		filter := repository.ProductFilter{
			BrandID:  q.BrandID,
			Status:   &published,
			Search:   q.Search,
			MinPrice: q.MinPrice,
			MaxPrice: q.MaxPrice,
			SortBy:   q.SortBy,
			Page:     q.Page.Page,
			PerPage:  q.Page.PerPage,
		}

		if q.Category != "" {
			category, criteria, err := s.resolveCategory(gctx, q.Category)
			if err != nil {
				return err
			}
			page.Category = category
			filter.Category = &criteria
		}

		var err error
		products, total, err = s.products.List(gctx, filter)
		if err != nil {
			return fmt.Errorf("list storefront products: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		tree, err := s.categories.CategoryTree(gctx, true)
		if err != nil {
			return fmt.Errorf("load category tree: %w", err)
		}
		page.Categories = tree
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	page.Products = pagination.NewResult(products, total, q.Page)
	return &page, nil
}

// resolveCategory maps an id or slug onto matcher criteria. Unknown
// categories produce NoMatch criteria and a nil category.
func (s *StorefrontService) resolveCategory(ctx context.Context, idOrSlug string) (*domain.Category, matcher.Criteria, error) {
	id := idOrSlug
	if _, err := uuid.Parse(idOrSlug); err != nil {
		c, err := s.categories.repo.GetBySlug(ctx, idOrSlug)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, matcher.Criteria{CategoryID: idOrSlug, NoMatch: true}, nil
			}
			return nil, matcher.Criteria{}, fmt.Errorf("resolve category slug: %w", err)
		}
		id = c.ID
	}

	criteria, err := s.matcher.Build(ctx, id)
	if err != nil {
		return nil, matcher.Criteria{}, err
	}
	if criteria.NoMatch {
		s.logger.DebugContext(ctx, "storefront category not found",
			slog.String("category", idOrSlug),
		)
		return nil, criteria, nil
	}

	category, err := s.categories.repo.GetByID(ctx, id)
	if err != nil {
		return nil, matcher.Criteria{}, fmt.Errorf("load storefront category: %w", err)
	}
	category.Depth = criteria.Depth
	return category, criteria, nil
}

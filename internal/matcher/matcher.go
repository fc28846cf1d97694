// Package matcher turns a storefront category filter into the set of product
// reference fields that should match it, based on the category's depth.
package matcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/neargud/catalog/internal/domain"
	apperrors "github.com/neargud/catalog/pkg/errors"
)

// Product reference columns a criteria can match on.
const (
	FieldCategory       = "category_id"
	FieldSubcategory    = "subcategory_id"
	FieldSubSubCategory = "sub_sub_category_id"
)

// fieldsByDepth lists the eligible fields per category depth (index 0 is depth 1).
var fieldsByDepth = [domain.MaxDepth][]string{
	{FieldCategory, FieldSubcategory, FieldSubSubCategory},
	{FieldSubcategory, FieldSubSubCategory},
	{FieldSubSubCategory},
}

// DepthResolver computes a category's depth from persisted state.
type DepthResolver interface {
	ComputeDepth(ctx context.Context, id string) (int, error)
}

// Criteria selects products whose listed fields reference CategoryID. A
// NoMatch criteria selects nothing.
type Criteria struct {
	CategoryID string
	Depth      int
	Fields     []string
	NoMatch    bool
}

// Matches reports whether p satisfies the criteria.
func (c Criteria) Matches(p *domain.Product) bool {
	if c.NoMatch {
		return false
	}
	for _, f := range c.Fields {
		if ref := fieldValue(p, f); ref != nil && *ref == c.CategoryID {
			return true
		}
	}
	return false
}

func fieldValue(p *domain.Product, field string) *string {
	switch field {
	case FieldCategory:
		return p.CategoryID
	case FieldSubcategory:
		return p.SubcategoryID
	case FieldSubSubCategory:
		return p.SubSubCategoryID
	}
	return nil
}

// Matcher builds criteria for storefront category filters.
type Matcher struct {
	depths DepthResolver
}

// New creates a Matcher.
func New(depths DepthResolver) *Matcher {
	return &Matcher{depths: depths}
}

// Build returns the criteria for categoryID. An unknown category yields a
// NoMatch criteria rather than an unfiltered one.
func (m *Matcher) Build(ctx context.Context, categoryID string) (Criteria, error) {
	if categoryID == "" {
		return Criteria{NoMatch: true}, nil
	}

	depth, err := m.depths.ComputeDepth(ctx, categoryID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return Criteria{CategoryID: categoryID, NoMatch: true}, nil
		}
		return Criteria{}, fmt.Errorf("resolve category depth: %w", err)
	}

	return Criteria{
		CategoryID: categoryID,
		Depth:      depth,
		Fields:     FieldsForDepth(depth),
	}, nil
}

// FieldsForDepth returns the reference fields eligible at depth. Depths past
// MaxDepth use the deepest level's fields.
func FieldsForDepth(depth int) []string {
	depth = min(max(depth, 1), domain.MaxDepth)
	return append([]string(nil), fieldsByDepth[depth-1]...)
}

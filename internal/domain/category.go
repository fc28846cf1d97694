package domain

import (
	"cmp"
	"slices"
	"time"
)

// MaxDepth is the deepest level a category may sit at: root, subcategory,
// sub-subcategory.
const MaxDepth = 3

// Category is a node of the catalog tree. Depth is computed on read and never
// stored.
type Category struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Slug        string      `json:"slug"`
	ParentID    *string     `json:"parent_id"`
	SortOrder   int         `json:"sort_order"`
	IsActive    bool        `json:"is_active"`
	ImageURL    *string     `json:"image_url,omitempty"`
	IconURL     *string     `json:"icon_url,omitempty"`
	Description *string     `json:"description,omitempty"`
	Depth       int         `json:"depth,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Children    []*Category `json:"children,omitempty"`
}

// IsRoot reports whether the category has no parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil || *c.ParentID == ""
}

// CreateCategoryInput holds the parameters for creating a category.
type CreateCategoryInput struct {
	Name        string  `json:"name" validate:"required,min=1,max=255"`
	ParentID    Ref     `json:"parent_id"`
	SortOrder   int     `json:"sort_order" validate:"gte=0"`
	IsActive    *bool   `json:"is_active"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
	IconURL     *string `json:"icon_url" validate:"omitempty,url"`
	Description *string `json:"description"`
}

// UpdateCategoryInput holds a partial update. An absent parent_id keeps the
// current parent; an explicit null moves the category to the root level.
type UpdateCategoryInput struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	ParentID    Ref     `json:"parent_id"`
	SortOrder   *int    `json:"sort_order" validate:"omitempty,gte=0"`
	IsActive    *bool   `json:"is_active"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
	IconURL     *string `json:"icon_url" validate:"omitempty,url"`
	Description *string `json:"description"`
}

// SortSiblings orders categories by sort order, breaking ties by creation time.
func SortSiblings(cats []*Category) {
	slices.SortStableFunc(cats, func(a, b *Category) int {
		if c := cmp.Compare(a.SortOrder, b.SortOrder); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

// BuildTree nests a flat category list under its parents and fills in each
// node's depth. Categories whose parent is missing from the list are returned
// as roots. Nodes caught in a cycle are unreachable from any root and are
// omitted.
func BuildTree(flat []Category) []*Category {
	nodes := make(map[string]*Category, len(flat))
	for i := range flat {
		c := flat[i]
		c.Children = nil
		nodes[c.ID] = &c
	}

	var roots []*Category
	for i := range flat {
		node := nodes[flat[i].ID]
		if node.IsRoot() {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*node.ParentID]
		if !ok {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	var walk func(level []*Category, depth int)
	walk = func(level []*Category, depth int) {
		SortSiblings(level)
		for _, c := range level {
			c.Depth = depth
			walk(c.Children, depth+1)
		}
	}
	walk(roots, 1)
	return roots
}

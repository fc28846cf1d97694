// Package hierarchy keeps the category tree well formed: bounded depth and no
// cycles. Every check reads current persisted state and nothing is cached
// between calls.
package hierarchy

import (
	"context"
	"errors"
	"fmt"

	"github.com/neargud/catalog/internal/domain"
	apperrors "github.com/neargud/catalog/pkg/errors"
)

// Store is the category persistence the manager reads from.
type Store interface {
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	ListChildren(ctx context.Context, parentID string) ([]domain.Category, error)
	CountChildren(ctx context.Context, parentID string) (int, error)
}

// Manager validates category tree mutations.
type Manager struct {
	store Store
}

// NewManager creates a Manager over store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// lookup returns the category, or nil when it does not exist.
func (m *Manager) lookup(ctx context.Context, id string) (*domain.Category, error) {
	c, err := m.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load category %s: %w", id, err)
	}
	return c, nil
}

// ComputeDepth returns the 1-based depth of a category. A parent reference
// that no longer resolves ends the walk. If the walk revisits a node the
// chain is cyclic and MaxDepth is returned.
func (m *Manager) ComputeDepth(ctx context.Context, id string) (int, error) {
	node, err := m.lookup(ctx, id)
	if err != nil {
		return 0, err
	}
	if node == nil {
		return 0, apperrors.NotFound("category", id)
	}

	depth := 1
	visited := map[string]bool{id: true}
	for !node.IsRoot() {
		parentID := *node.ParentID
		if visited[parentID] {
			return domain.MaxDepth, nil
		}
		parent, err := m.lookup(ctx, parentID)
		if err != nil {
			return 0, err
		}
		if parent == nil {
			break
		}
		visited[parentID] = true
		depth++
		node = parent
	}
	return depth, nil
}

// ValidateReparent checks that nodeID may be placed under newParentID. A nil
// or empty parent makes the node a root and always passes. An empty nodeID
// validates the parent of a category that does not exist yet.
func (m *Manager) ValidateReparent(ctx context.Context, nodeID string, newParentID *string) error {
	if newParentID == nil || *newParentID == "" {
		return nil
	}
	parentID := *newParentID
	if nodeID != "" && parentID == nodeID {
		return domain.CircularReference(nodeID, parentID)
	}

	parent, err := m.lookup(ctx, parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return domain.ParentNotFound(parentID)
	}

	// Walk up from the new parent. Reaching nodeID means the node would
	// become its own ancestor; revisiting any node means the chain above the
	// parent is already cyclic.
	parentDepth := 1
	visited := map[string]bool{parentID: true}
	for cur := parent; !cur.IsRoot(); {
		next := *cur.ParentID
		if next == nodeID || visited[next] {
			return domain.CircularReference(nodeID, parentID)
		}
		ancestor, err := m.lookup(ctx, next)
		if err != nil {
			return err
		}
		if ancestor == nil {
			break
		}
		visited[next] = true
		parentDepth++
		cur = ancestor
	}

	if parentDepth >= domain.MaxDepth {
		return domain.DepthExceeded(parentID, parentDepth+1)
	}
	if nodeID == "" {
		return nil
	}

	height, err := m.subtreeHeight(ctx, nodeID)
	if err != nil {
		return err
	}
	if parentDepth+height > domain.MaxDepth {
		return domain.DepthExceeded(parentID, parentDepth+height)
	}
	return nil
}

// subtreeHeight counts the levels of the subtree rooted at id, including id
// itself. It stops descending once the height exceeds MaxDepth.
func (m *Manager) subtreeHeight(ctx context.Context, id string) (int, error) {
	height := 1
	frontier := []string{id}
	seen := map[string]bool{id: true}

	for height <= domain.MaxDepth {
		var next []string
		for _, parentID := range frontier {
			children, err := m.store.ListChildren(ctx, parentID)
			if err != nil {
				return 0, fmt.Errorf("list children of %s: %w", parentID, err)
			}
			for _, c := range children {
				if !seen[c.ID] {
					seen[c.ID] = true
					next = append(next, c.ID)
				}
			}
		}
		if len(next) == 0 {
			break
		}
		height++
		frontier = next
	}
	return height, nil
}

// CanDelete reports whether no category names id as its parent.
func (m *Manager) CanDelete(ctx context.Context, id string) (bool, error) {
	n, err := m.store.CountChildren(ctx, id)
	if err != nil {
		return false, fmt.Errorf("count children of %s: %w", id, err)
	}
	return n == 0, nil
}

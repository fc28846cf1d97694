package hierarchy

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/neargud/catalog/internal/domain"
)

// FaultKind classifies an integrity problem found by Audit.
type FaultKind string

const (
	FaultCycle          FaultKind = "cycle"
	FaultDepth          FaultKind = "depth_exceeded"
	FaultDanglingParent FaultKind = "dangling_parent"
)

// Fault is one integrity problem in a stored category tree.
type Fault struct {
	Kind       FaultKind `json:"kind"`
	CategoryID string    `json:"category_id"`
	Detail     string    `json:"detail"`
}

// Audit scans a full category list for cycles, categories deeper than
// MaxDepth and parent references that do not resolve. Faults are ordered by
// category ID then kind.
func Audit(categories []domain.Category) []Fault {
	byID := make(map[string]*domain.Category, len(categories))
	for i := range categories {
		byID[categories[i].ID] = &categories[i]
	}

	var faults []Fault
	for i := range categories {
		node := &categories[i]
		if !node.IsRoot() {
			if _, ok := byID[*node.ParentID]; !ok {
				faults = append(faults, Fault{
					Kind:       FaultDanglingParent,
					CategoryID: node.ID,
					Detail:     fmt.Sprintf("parent %s does not exist", *node.ParentID),
				})
			}
		}

		depth := 1
		cyclic := false
		visited := map[string]bool{node.ID: true}
		for cur := node; !cur.IsRoot(); {
			parent, ok := byID[*cur.ParentID]
			if !ok {
				break
			}
			if visited[parent.ID] {
				cyclic = parent.ID == node.ID
				depth = -1
				break
			}
			visited[parent.ID] = true
			depth++
			cur = parent
		}

		switch {
		case cyclic:
			faults = append(faults, Fault{
				Kind:       FaultCycle,
				CategoryID: node.ID,
				Detail:     "category is its own ancestor",
			})
		case depth > domain.MaxDepth:
			faults = append(faults, Fault{
				Kind:       FaultDepth,
				CategoryID: node.ID,
				Detail:     fmt.Sprintf("depth %d exceeds %d", depth, domain.MaxDepth),
			})
		}
	}

	slices.SortFunc(faults, func(a, b Fault) int {
		if c := cmp.Compare(a.CategoryID, b.CategoryID); c != 0 {
			return c
		}
		return cmp.Compare(a.Kind, b.Kind)
	})
	return faults
}

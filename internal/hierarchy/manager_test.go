package hierarchy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neargud/catalog/internal/domain"
	apperrors "github.com/neargud/catalog/pkg/errors"
)

// memStore is an in-memory Store keyed by category ID.
type memStore struct {
	nodes map[string]*domain.Category
	reads int
	err   error
}

func newMemStore(parents map[string]string) *memStore {
	s := &memStore{nodes: map[string]*domain.Category{}}
	for id, parent := range parents {
		c := &domain.Category{ID: id}
		if parent != "" {
			p := parent
			c.ParentID = &p
		}
		s.nodes[id] = c
	}
	return s
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.Category, error) {
	s.reads++
	if s.err != nil {
		return nil, s.err
	}
	c, ok := s.nodes[id]
	if !ok {
		return nil, apperrors.NotFound("category", id)
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) ListChildren(_ context.Context, parentID string) ([]domain.Category, error) {
	var out []domain.Category
	for _, c := range s.nodes {
		if c.ParentID != nil && *c.ParentID == parentID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *memStore) CountChildren(ctx context.Context, parentID string) (int, error) {
	children, err := s.ListChildren(ctx, parentID)
	return len(children), err
}

func (s *memStore) setParent(id, parent string) {
	if parent == "" {
		s.nodes[id].ParentID = nil
		return
	}
	s.nodes[id].ParentID = &parent
}

func ptr(s string) *string { return &s }

// Fashion → Shoes → Sneakers, Home → Kitchen.
func sampleTree() *memStore {
	return newMemStore(map[string]string{
		"fashion":  "",
		"shoes":    "fashion",
		"sneakers": "shoes",
		"boots":    "shoes",
		"home":     "",
		"kitchen":  "home",
	})
}

func TestComputeDepth(t *testing.T) {
	m := NewManager(sampleTree())
	ctx := context.Background()

	for id, want := range map[string]int{"fashion": 1, "shoes": 2, "sneakers": 3, "home": 1, "kitchen": 2} {
		got, err := m.ComputeDepth(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got, id)
	}
}

func TestComputeDepth_NotFound(t *testing.T) {
	_, err := NewManager(sampleTree()).ComputeDepth(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestComputeDepth_CycleIsCapped(t *testing.T) {
	s := newMemStore(map[string]string{"a": "b", "b": "c", "c": "a"})
	depth, err := NewManager(s).ComputeDepth(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, domain.MaxDepth, depth)
}

func TestComputeDepth_DanglingParentEndsWalk(t *testing.T) {
	s := newMemStore(map[string]string{"child": "deleted"})
	depth, err := NewManager(s).ComputeDepth(context.Background(), "child")
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestComputeDepth_StoreError(t *testing.T) {
	s := sampleTree()
	s.err = errors.New("connection reset")
	_, err := NewManager(s).ComputeDepth(context.Background(), "shoes")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
}

func TestComputeDepth_RereadsEveryCall(t *testing.T) {
	s := sampleTree()
	m := NewManager(s)
	ctx := context.Background()

	d, err := m.ComputeDepth(ctx, "kitchen")
	require.NoError(t, err)
	assert.Equal(t, 2, d)

	s.setParent("home", "shoes")
	d, err = m.ComputeDepth(ctx, "kitchen")
	require.NoError(t, err)
	assert.Equal(t, 4, d)
}

func TestValidateReparent(t *testing.T) {
	tests := []struct {
		name      string
		node      string
		parent    *string
		wantErr   error
		wantField map[string]string
	}{
		{"to root", "sneakers", nil, nil, nil},
		{"empty parent is root", "sneakers", ptr(""), nil, nil},
		{"under depth-1 parent", "kitchen", ptr("fashion"), nil, nil},
		{"new node under depth-2 parent", "", ptr("shoes"), nil, nil},
		{"self", "shoes", ptr("shoes"), domain.ErrCircularReference, nil},
		{"under own child", "fashion", ptr("shoes"), domain.ErrCircularReference, nil},
		{"under own grandchild", "fashion", ptr("sneakers"), domain.ErrCircularReference, nil},
		{"missing parent", "kitchen", ptr("nope"), domain.ErrParentNotFound, map[string]string{"parent_id": "nope"}},
		{"under depth-3 parent", "kitchen", ptr("sneakers"), domain.ErrDepthExceeded, map[string]string{"resulting_depth": "4"}},
		{"new node under depth-3 parent", "", ptr("sneakers"), domain.ErrDepthExceeded, nil},
		{"subtree too tall", "home", ptr("shoes"), domain.ErrDepthExceeded, map[string]string{"resulting_depth": "4"}},
		{"two-level subtree under root", "shoes", ptr("home"), nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewManager(sampleTree()).ValidateReparent(context.Background(), tt.node, tt.parent)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			for k, v := range tt.wantField {
				assert.Equal(t, v, appErr.Fields[k])
			}
		})
	}
}

func TestValidateReparent_ExistingCycleAboveParent(t *testing.T) {
	s := newMemStore(map[string]string{"x": "y", "y": "x", "n": ""})
	err := NewManager(s).ValidateReparent(context.Background(), "n", ptr("x"))
	assert.ErrorIs(t, err, domain.ErrCircularReference)
}

// Any node reparented under any of its descendants is rejected.
func TestValidateReparent_AnyDescendantIsCircular(t *testing.T) {
	s := sampleTree()
	m := NewManager(s)
	ctx := context.Background()

	descendants := map[string][]string{
		"fashion": {"shoes", "sneakers", "boots"},
		"shoes":   {"sneakers", "boots"},
		"home":    {"kitchen"},
	}
	for ancestor, ds := range descendants {
		for _, d := range ds {
			err := m.ValidateReparent(ctx, ancestor, ptr(d))
			assert.ErrorIs(t, err, domain.ErrCircularReference, "%s under %s", ancestor, d)
		}
	}
}

// Accepted moves never produce a node deeper than MaxDepth.
func TestValidateReparent_DepthBound(t *testing.T) {
	ctx := context.Background()
	ids := []string{"fashion", "shoes", "sneakers", "boots", "home", "kitchen"}

	for _, node := range ids {
		for _, parent := range append([]string{""}, ids...) {
			s := sampleTree()
			m := NewManager(s)
			var p *string
			if parent != "" {
				p = ptr(parent)
			}
			if err := m.ValidateReparent(ctx, node, p); err != nil {
				continue
			}
			s.setParent(node, parent)
			for _, id := range ids {
				d, err := m.ComputeDepth(ctx, id)
				require.NoError(t, err)
				assert.LessOrEqual(t, d, domain.MaxDepth, "moving %s under %q left %s at depth %d", node, parent, id, d)
			}
			assert.Empty(t, Audit(snapshot(s)))
		}
	}
}

func snapshot(s *memStore) []domain.Category {
	out := make([]domain.Category, 0, len(s.nodes))
	for _, c := range s.nodes {
		out = append(out, *c)
	}
	return out
}

func TestCanDelete(t *testing.T) {
	m := NewManager(sampleTree())
	ctx := context.Background()

	ok, err := m.CanDelete(ctx, "shoes")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.CanDelete(ctx, "sneakers")
	require.NoError(t, err)
	assert.True(t, ok)
}

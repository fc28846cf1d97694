package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/neargud/catalog/internal/domain"
	"github.com/neargud/catalog/internal/repository/postgres"
	apperrors "github.com/neargud/catalog/pkg/errors"
	"github.com/neargud/catalog/pkg/logger"
)

func newCategoryService(t *testing.T, repo *memCategories, cache *mockTreeCache) (*CategoryService, *recordingPublisher) {
	t.Helper()
	producer, pub := newTestProducer()
	if cache == nil {
		return NewCategoryService(repo, nil, time.Minute, producer, logger.Discard()), pub
	}
	return NewCategoryService(repo, cache, time.Minute, producer, logger.Discard()), pub
}

func TestCategoryService_CreateCategory_Root(t *testing.T) {
	repo := newMemCategories()
	svc, pub := newCategoryService(t, repo, nil)

	c, err := svc.CreateCategory(context.Background(), &domain.CreateCategoryInput{Name: "  Men's Shoes "})
	require.NoError(t, err)

	assert.Equal(t, "Men's Shoes", c.Name)
	assert.Equal(t, "men-s-shoes", c.Slug)
	assert.Nil(t, c.ParentID)
	assert.True(t, c.IsActive)
	assert.Equal(t, 1, c.Depth)
	assert.Equal(t, []string{"catalog.category.created"}, pub.topics)
}

func TestCategoryService_CreateCategory_UnderParent(t *testing.T) {
	repo := newMemCategories()
	repo.add("root", "Root", "")
	repo.add("mid", "Mid", "root")
	svc, _ := newCategoryService(t, repo, nil)

	c, err := svc.CreateCategory(context.Background(), &domain.CreateCategoryInput{
		Name:     "Leaf",
		ParentID: domain.RefTo("mid"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, c.Depth)
	require.NotNil(t, c.ParentID)
	assert.Equal(t, "mid", *c.ParentID)
}

func TestCategoryService_CreateCategory_Rejected(t *testing.T) {
	repo := newMemCategories()
	repo.add("root", "Root", "")
	repo.add("mid", "Mid", "root")
	repo.add("leaf", "Leaf", "mid")

	tests := []struct {
		name     string
		input    domain.CreateCategoryInput
		sentinel error
	}{
		{"blank name", domain.CreateCategoryInput{Name: "   "}, apperrors.ErrInvalidInput},
		{"name without letters", domain.CreateCategoryInput{Name: "!!!"}, apperrors.ErrInvalidInput},
		{"missing parent", domain.CreateCategoryInput{Name: "X", ParentID: domain.RefTo("ghost")}, domain.ErrParentNotFound},
		{"fourth level", domain.CreateCategoryInput{Name: "X", ParentID: domain.RefTo("leaf")}, domain.ErrDepthExceeded},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, pub := newCategoryService(t, repo, nil)
			_, err := svc.CreateCategory(context.Background(), &tc.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.sentinel)
			assert.Empty(t, pub.topics)
		})
	}

	all, err := repo.ListAll(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCategoryService_CreateCategory_DepthExceededFields(t *testing.T) {
	repo := newMemCategories()
	repo.add("root", "Root", "")
	repo.add("mid", "Mid", "root")
	repo.add("leaf", "Leaf", "mid")
	svc, _ := newCategoryService(t, repo, nil)

	_, err := svc.CreateCategory(context.Background(), &domain.CreateCategoryInput{
		Name:     "Too Deep",
		ParentID: domain.RefTo("leaf"),
	})

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "DEPTH_EXCEEDED", appErr.Code)
	assert.Equal(t, "leaf", appErr.Fields["parent_id"])
	assert.Equal(t, "4", appErr.Fields["resulting_depth"])
}

func TestCategoryService_CreateCategory_DuplicateSlug(t *testing.T) {
	repo := newMemCategories()
	svc, _ := newCategoryService(t, repo, nil)

	_, err := svc.CreateCategory(context.Background(), &domain.CreateCategoryInput{Name: "Shoes"})
	require.NoError(t, err)
	_, err = svc.CreateCategory(context.Background(), &domain.CreateCategoryInput{Name: "shoes"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestCategoryService_CreateCategory_NonUUIDParentOnPostgres(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	pool.ExpectBegin()
	pool.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	pool.ExpectRollback()

	producer, pub := newTestProducer()
	svc := NewCategoryService(postgres.NewCategoryRepository(pool), nil, time.Minute, producer, logger.Discard())

	_, err = svc.CreateCategory(context.Background(), &domain.CreateCategoryInput{
		Name:     "Dresses",
		ParentID: domain.RefTo("64f0c0ffee"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrParentNotFound)
	assert.Equal(t, "PARENT_NOT_FOUND", appCode(t, err))
	assert.Empty(t, pub.topics)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestCategoryService_GetCategory(t *testing.T) {
	repo := newMemCategories()
	svc, _ := newCategoryService(t, repo, nil)

	root, err := svc.CreateCategory(context.Background(), &domain.CreateCategoryInput{Name: "Apparel"})
	require.NoError(t, err)
	child, err := svc.CreateCategory(context.Background(), &domain.CreateCategoryInput{
		Name:     "Shirts",
		ParentID: domain.RefTo(root.ID),
	})
	require.NoError(t, err)

	byID, err := svc.GetCategory(context.Background(), child.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, byID.Depth)

	bySlug, err := svc.GetCategory(context.Background(), "shirts")
	require.NoError(t, err)
	assert.Equal(t, child.ID, bySlug.ID)
	assert.Equal(t, 2, bySlug.Depth)

	_, err = svc.GetCategory(context.Background(), "no-such-slug")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCategoryService_UpdateCategory_Reparent(t *testing.T) {
	repo := newMemCategories()
	repo.add("a", "A", "")
	repo.add("b", "B", "")
	repo.add("b1", "B1", "b")
	svc, pub := newCategoryService(t, repo, nil)

	c, err := svc.UpdateCategory(context.Background(), "b", &domain.UpdateCategoryInput{
		ParentID: domain.RefTo("a"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Depth)
	assert.Equal(t, []string{"catalog.category.updated"}, pub.topics)

	b1, err := svc.GetCategory(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 3, b1.Depth)
}

func TestCategoryService_UpdateCategory_MoveToRoot(t *testing.T) {
	repo := newMemCategories()
	repo.add("a", "A", "")
	repo.add("a1", "A1", "a")
	svc, _ := newCategoryService(t, repo, nil)

	c, err := svc.UpdateCategory(context.Background(), "a1", &domain.UpdateCategoryInput{
		ParentID: domain.NullRef(),
	})
	require.NoError(t, err)
	assert.Nil(t, c.ParentID)
	assert.Equal(t, 1, c.Depth)
}

func TestCategoryService_UpdateCategory_AbsentParentKeepsParent(t *testing.T) {
	repo := newMemCategories()
	repo.add("a", "A", "")
	repo.add("a1", "A1", "a")
	svc, _ := newCategoryService(t, repo, nil)

	name := "Renamed Child"
	c, err := svc.UpdateCategory(context.Background(), "a1", &domain.UpdateCategoryInput{Name: &name})
	require.NoError(t, err)
	require.NotNil(t, c.ParentID)
	assert.Equal(t, "a", *c.ParentID)
	assert.Equal(t, "renamed-child", c.Slug)
	assert.Equal(t, 2, c.Depth)
}

func TestCategoryService_UpdateCategory_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		parent   string
		sentinel error
	}{
		{"self parent", "a", "a", domain.ErrCircularReference},
		{"under own descendant", "a", "a2", domain.ErrCircularReference},
		{"subtree too tall", "b", "a1", domain.ErrDepthExceeded},
		{"missing parent", "b", "ghost", domain.ErrParentNotFound},
		{"missing category", "ghost", "a", apperrors.ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemCategories()
			repo.add("a", "A", "")
			repo.add("a1", "A1", "a")
			repo.add("a2", "A2", "a1")
			repo.add("b", "B", "")
			repo.add("b1", "B1", "b")
			svc, pub := newCategoryService(t, repo, nil)

			_, err := svc.UpdateCategory(context.Background(), tc.id, &domain.UpdateCategoryInput{
				ParentID: domain.RefTo(tc.parent),
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.sentinel)
			assert.Empty(t, pub.topics)
			assert.Nil(t, repo.parentOf("b"))
		})
	}
}

func TestCategoryService_UpdateCategory_ConcurrentSwapKeepsTreeAcyclic(t *testing.T) {
	for i := 0; i < 20; i++ {
		repo := newMemCategories()
		repo.add("x", "X", "")
		repo.add("y", "Y", "")
		svc, _ := newCategoryService(t, repo, nil)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, move := range [][2]string{{"x", "y"}, {"y", "x"}} {
			wg.Add(1)
			go func(j int, id, parent string) {
				defer wg.Done()
				_, errs[j] = svc.UpdateCategory(context.Background(), id, &domain.UpdateCategoryInput{
					ParentID: domain.RefTo(parent),
				})
			}(j, move[0], move[1])
		}
		wg.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrCircularReference)
				failed++
			}
		}
		assert.Equal(t, 1, failed)
		assert.False(t, repo.parentOf("x") != nil && repo.parentOf("y") != nil, "both categories reparented")
	}
}

func TestCategoryService_DeleteCategory(t *testing.T) {
	repo := newMemCategories()
	repo.add("a", "A", "")
	repo.add("a1", "A1", "a")
	svc, pub := newCategoryService(t, repo, nil)

	err := svc.DeleteCategory(context.Background(), "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrHasChildren)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	require.NoError(t, svc.DeleteCategory(context.Background(), "a1"))
	require.NoError(t, svc.DeleteCategory(context.Background(), "a"))
	assert.Equal(t, []string{"catalog.category.deleted", "catalog.category.deleted"}, pub.topics)

	err = svc.DeleteCategory(context.Background(), "a")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCategoryService_CategoryTree_CachesRenderedTree(t *testing.T) {
	repo := newMemCategories()
	repo.add("a", "A", "")
	repo.add("a1", "A1", "a")
	cache := new(mockTreeCache)
	svc, _ := newCategoryService(t, repo, cache)

	cache.On("Get", mock.Anything, "active").Return(nil, false, nil).Once()
	cache.On("Set", mock.Anything, "active", mock.MatchedBy(func(tree []*domain.Category) bool {
		return len(tree) == 1 && len(tree[0].Children) == 1
	}), time.Minute).Return(nil).Once()

	tree, err := svc.CategoryTree(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, 1, tree[0].Depth)
	assert.Equal(t, 2, tree[0].Children[0].Depth)

	cached := []*domain.Category{{ID: "cached"}}
	cache.On("Get", mock.Anything, "active").Return(cached, true, nil).Once()

	tree, err = svc.CategoryTree(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, cached, tree)
	cache.AssertExpectations(t)
}

func TestCategoryService_CategoryTree_CacheErrorsFallBack(t *testing.T) {
	repo := newMemCategories()
	repo.add("a", "A", "")
	cache := new(mockTreeCache)
	svc, _ := newCategoryService(t, repo, cache)

	cache.On("Get", mock.Anything, "all").Return(nil, false, errors.New("redis down"))
	cache.On("Set", mock.Anything, "all", mock.Anything, time.Minute).Return(errors.New("redis down"))

	tree, err := svc.CategoryTree(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, tree, 1)
}

func TestCategoryService_CategoryTree_Empty(t *testing.T) {
	svc, _ := newCategoryService(t, newMemCategories(), nil)

	tree, err := svc.CategoryTree(context.Background(), false)
	require.NoError(t, err)
	assert.NotNil(t, tree)
	assert.Empty(t, tree)
}

func TestCategoryService_MutationsInvalidateCache(t *testing.T) {
	repo := newMemCategories()
	repo.add("a", "A", "")
	cache := new(mockTreeCache)
	svc, _ := newCategoryService(t, repo, cache)

	cache.On("Invalidate", mock.Anything).Return(nil).Times(3)

	c, err := svc.CreateCategory(context.Background(), &domain.CreateCategoryInput{
		Name:     "Child",
		ParentID: domain.RefTo("a"),
	})
	require.NoError(t, err)

	order := 5
	_, err = svc.UpdateCategory(context.Background(), c.ID, &domain.UpdateCategoryInput{SortOrder: &order})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCategory(context.Background(), c.ID))
	cache.AssertExpectations(t)
}

func TestCategoryService_FailedMutationKeepsCache(t *testing.T) {
	repo := newMemCategories()
	repo.add("a", "A", "")
	repo.add("a1", "A1", "a")
	cache := new(mockTreeCache)
	svc, _ := newCategoryService(t, repo, cache)

	err := svc.DeleteCategory(context.Background(), "a")
	require.Error(t, err)
	cache.AssertNotCalled(t, "Invalidate", mock.Anything)
}

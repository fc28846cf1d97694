package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/neargud/catalog/internal/domain"
	"github.com/neargud/catalog/internal/event"
	"github.com/neargud/catalog/internal/hierarchy"
	"github.com/neargud/catalog/internal/repository"
	apperrors "github.com/neargud/catalog/pkg/errors"
	"github.com/neargud/catalog/pkg/slug"
)

// Tree cache fields.
const (
	treeActive = "active"
	treeAll    = "all"
)

// CategoryService implements category management on top of the hierarchy
// rules. Every mutation runs under the category tree lock.
type CategoryService struct {
	repo     repository.CategoryRepository
	cache    repository.TreeCache
	cacheTTL time.Duration
	producer *event.Producer
	logger   *slog.Logger
}

// NewCategoryService creates a new category service. cache may be nil.
func NewCategoryService(
	repo repository.CategoryRepository,
	cache repository.TreeCache,
	cacheTTL time.Duration,
	producer *event.Producer,
	logger *slog.Logger,
) *CategoryService {
	return &CategoryService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		producer: producer,
		logger:   logger,
	}
}

// CreateCategory validates the parent and inserts a new category.
func (s *CategoryService) CreateCategory(ctx context.Context, input *domain.CreateCategoryInput) (*domain.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.InvalidInput("category name is required")
	}

	now := time.Now().UTC()
	category := &domain.Category{
		ID:          uuid.New().String(),
		Name:        name,
		Slug:        slug.Generate(name),
		ParentID:    input.ParentID.Ptr(),
		SortOrder:   input.SortOrder,
		IsActive:    true,
		ImageURL:    input.ImageURL,
		IconURL:     input.IconURL,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if input.IsActive != nil {
		category.IsActive = *input.IsActive
	}
	if category.Slug == "" {
		return nil, apperrors.InvalidInput("category name must contain a letter or digit")
	}

	err := s.repo.WithTreeLock(ctx, func(store repository.CategoryStore) error {
		manager := hierarchy.NewManager(store)
		if err := manager.ValidateReparent(ctx, "", category.ParentID); err != nil {
			return err
		}
		if err := store.Create(ctx, category); err != nil {
			return err
		}
		depth, err := manager.ComputeDepth(ctx, category.ID)
		if err != nil {
			return err
		}
		category.Depth = depth
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.afterMutation(ctx)
	if err := s.producer.PublishCategoryCreated(ctx, category); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish category.created event",
			slog.String("category_id", category.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "category created",
		slog.String("category_id", category.ID),
		slog.String("slug", category.Slug),
		slog.Int("depth", category.Depth),
	)

	return category, nil
}

// GetCategory retrieves a category by ID or slug with its computed depth.
func (s *CategoryService) GetCategory(ctx context.Context, idOrSlug string) (*domain.Category, error) {
	var (
		category *domain.Category
		err      error
	)
	if _, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		category, err = s.repo.GetByID(ctx, idOrSlug)
	} else {
		category, err = s.repo.GetBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}

	depth, err := hierarchy.NewManager(s.repo).ComputeDepth(ctx, category.ID)
	if err != nil {
		return nil, fmt.Errorf("compute category depth: %w", err)
	}
	category.Depth = depth

	return category, nil
}

// ListCategories returns the categories as a flat list.
func (s *CategoryService) ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	categories, err := s.repo.ListAll(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// CategoryTree returns the categories nested under their parents, with
// depths filled in. The rendered tree is served from the cache when present.
func (s *CategoryService) CategoryTree(ctx context.Context, activeOnly bool) ([]*domain.Category, error) {
	field := treeAll
	if activeOnly {
		field = treeActive
	}

	if s.cache != nil {
		tree, ok, err := s.cache.Get(ctx, field)
		if err != nil {
			s.logger.WarnContext(ctx, "category tree cache read failed",
				slog.String("error", err.Error()),
			)
		} else if ok {
			return tree, nil
		}
	}

	categories, err := s.repo.ListAll(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list categories for tree: %w", err)
	}
	tree := domain.BuildTree(categories)
	if tree == nil {
		tree = []*domain.Category{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, field, tree, s.cacheTTL); err != nil {
			s.logger.WarnContext(ctx, "category tree cache write failed",
				slog.String("error", err.Error()),
			)
		}
	}

	return tree, nil
}

// UpdateCategory applies a partial update. A parent change is validated
// against the tree as it stands once the lock is held.
func (s *CategoryService) UpdateCategory(ctx context.Context, id string, input *domain.UpdateCategoryInput) (*domain.Category, error) {
	var category *domain.Category

	err := s.repo.WithTreeLock(ctx, func(store repository.CategoryStore) error {
		current, err := store.GetByID(ctx, id)
		if err != nil {
			return err
		}

		manager := hierarchy.NewManager(store)
		if input.ParentID.IsSet() {
			newParent := input.ParentID.Ptr()
			if err := manager.ValidateReparent(ctx, id, newParent); err != nil {
				return err
			}
			current.ParentID = newParent
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" || slug.Generate(name) == "" {
				return apperrors.InvalidInput("category name must not be empty")
			}
			current.Name = name
			current.Slug = slug.Generate(name)
		}
		if input.SortOrder != nil {
			current.SortOrder = *input.SortOrder
		}
		if input.IsActive != nil {
			current.IsActive = *input.IsActive
		}
		if input.ImageURL != nil {
			current.ImageURL = input.ImageURL
		}
		if input.IconURL != nil {
			current.IconURL = input.IconURL
		}
		if input.Description != nil {
			current.Description = input.Description
		}

		if err := store.Update(ctx, current); err != nil {
			return err
		}

		depth, err := manager.ComputeDepth(ctx, id)
		if err != nil {
			return err
		}
		current.Depth = depth
		category = current
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}

	s.afterMutation(ctx)
	if err := s.producer.PublishCategoryUpdated(ctx, category); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish category.updated event",
			slog.String("category_id", category.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "category updated",
		slog.String("category_id", category.ID),
		slog.Int("depth", category.Depth),
	)

	return category, nil
}

// DeleteCategory removes a category that has no children.
func (s *CategoryService) DeleteCategory(ctx context.Context, id string) error {
	err := s.repo.WithTreeLock(ctx, func(store repository.CategoryStore) error {
		if _, err := store.GetByID(ctx, id); err != nil {
			return err
		}
		ok, err := hierarchy.NewManager(store).CanDelete(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.HasChildren(id)
		}
		return store.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	s.afterMutation(ctx)
	if err := s.producer.PublishCategoryDeleted(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish category.deleted event",
			slog.String("category_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "category deleted",
		slog.String("category_id", id),
	)

	return nil
}

// afterMutation drops cached trees once a mutation has committed.
func (s *CategoryService) afterMutation(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to invalidate category tree cache",
			slog.String("error", err.Error()),
		)
	}
}

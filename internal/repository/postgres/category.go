package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/neargud/catalog/internal/domain"
	"github.com/neargud/catalog/internal/repository"
	"github.com/neargud/catalog/pkg/database"
	apperrors "github.com/neargud/catalog/pkg/errors"
)

// categoryColumns is the standard SELECT column list for categories.
const categoryColumns = `id, name, slug, parent_id, sort_order, is_active,
	image_url, icon_url, description, created_at, updated_at`

const categorySlugConstraint = "categories_slug_key"

// treeLockKey guards every mutation of the category tree.
var treeLockKey = database.AdvisoryLockKey("catalog.category_tree")

// CategoryRepository implements repository.CategoryRepository using PostgreSQL.
type CategoryRepository struct {
	db database.DB
}

// NewCategoryRepository creates a new PostgreSQL-backed category repository.
func NewCategoryRepository(db database.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// WithTreeLock runs fn in a transaction that first takes the category tree
// advisory lock. Concurrent mutations queue on the lock, so fn always
// validates against the latest committed tree.
func (r *CategoryRepository) WithTreeLock(ctx context.Context, fn func(store repository.CategoryStore) error) error {
	return database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := database.LockAdvisory(ctx, tx, treeLockKey); err != nil {
			return err
		}
		return fn(&CategoryRepository{db: tx})
	})
}

// Create inserts a new category into the database.
func (r *CategoryRepository) Create(ctx context.Context, c *domain.Category) (err error) {
	query := `
		INSERT INTO categories (id, name, slug, parent_id, sort_order, is_active,
			image_url, icon_url, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	ctx, end := database.TraceQuery(ctx, "CreateCategory", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		c.ID,
		c.Name,
		c.Slug,
		c.ParentID,
		c.SortOrder,
		c.IsActive,
		c.ImageURL,
		c.IconURL,
		c.Description,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, categorySlugConstraint) {
			return apperrors.AlreadyExists("category", "slug", c.Slug)
		}
		if isForeignKeyViolation(err) && c.ParentID != nil {
			return domain.ParentNotFound(*c.ParentID)
		}
		return fmt.Errorf("insert category: %w", err)
	}

	return nil
}

// GetByID retrieves a category by its unique identifier. An id that is not a
// UUID cannot exist and is reported as NotFound without querying, so a bad
// reference never aborts the surrounding tree transaction.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (c *domain.Category, err error) {
	if _, parseErr := uuid.Parse(id); parseErr != nil {
		return nil, apperrors.NotFound("category", id)
	}

	query := fmt.Sprintf(`SELECT %s FROM categories WHERE id = $1`, categoryColumns)

	ctx, end := database.TraceQuery(ctx, "GetCategory", query)
	defer func() { end(err) }()

	return r.scanCategory(ctx, query, "id", id)
}

// GetBySlug retrieves a category by its URL-friendly slug.
func (r *CategoryRepository) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories WHERE slug = $1`, categoryColumns)
	return r.scanCategory(ctx, query, "slug", slug)
}

// ListAll returns the categories ordered by sort order and insertion time.
func (r *CategoryRepository) ListAll(ctx context.Context, activeOnly bool) (cats []domain.Category, err error) {
	query := fmt.Sprintf(`SELECT %s FROM categories`, categoryColumns)
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY sort_order, created_at`

	ctx, end := database.TraceQuery(ctx, "ListCategories", query)
	defer func() { end(err) }()

	return r.queryCategories(ctx, "list categories", query)
}

// ListChildren returns the direct children of parentID.
func (r *CategoryRepository) ListChildren(ctx context.Context, parentID string) ([]domain.Category, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM categories
		WHERE parent_id = $1
		ORDER BY sort_order, created_at`, categoryColumns)

	return r.queryCategories(ctx, "list child categories", query, parentID)
}

// CountChildren returns how many categories reference parentID as parent.
func (r *CategoryRepository) CountChildren(ctx context.Context, parentID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM categories WHERE parent_id = $1`, parentID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count child categories: %w", err)
	}
	return n, nil
}

// Update modifies an existing category in the database.
func (r *CategoryRepository) Update(ctx context.Context, c *domain.Category) (err error) {
	c.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE categories
		SET name = $1, slug = $2, parent_id = $3, sort_order = $4, is_active = $5,
		    image_url = $6, icon_url = $7, description = $8, updated_at = $9
		WHERE id = $10`

	ctx, end := database.TraceQuery(ctx, "UpdateCategory", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query,
		c.Name,
		c.Slug,
		c.ParentID,
		c.SortOrder,
		c.IsActive,
		c.ImageURL,
		c.IconURL,
		c.Description,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		if database.IsUniqueViolation(err, categorySlugConstraint) {
			return apperrors.AlreadyExists("category", "slug", c.Slug)
		}
		if isForeignKeyViolation(err) && c.ParentID != nil {
			return domain.ParentNotFound(*c.ParentID)
		}
		return fmt.Errorf("update category: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("category", c.ID)
	}

	return nil
}

// Delete removes a category. Children are never re-parented; the parent_id
// foreign key refuses the delete while any child exists.
func (r *CategoryRepository) Delete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM categories WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteCategory", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.HasChildren(id)
		}
		return fmt.Errorf("delete category: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("category", id)
	}

	return nil
}

// scanCategory executes a query expected to return a single category row.
func (r *CategoryRepository) scanCategory(ctx context.Context, query, key, value string) (*domain.Category, error) {
	var c domain.Category

	err := scanCategoryRow(r.db.QueryRow(ctx, query, value), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			notFound := apperrors.NotFound("category", value)
			if key != "id" {
				delete(notFound.Fields, "id")
				notFound.WithField(key, value)
			}
			return nil, notFound
		}
		return nil, fmt.Errorf("scan category: %w", err)
	}

	return &c, nil
}

func (r *CategoryRepository) queryCategories(ctx context.Context, what, query string, args ...any) ([]domain.Category, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := scanCategoryRow(rows, &c); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}

	return categories, nil
}

// scanCategoryRow scans a single row into a Category struct.
func scanCategoryRow(row pgx.Row, c *domain.Category) error {
	return row.Scan(
		&c.ID,
		&c.Name,
		&c.Slug,
		&c.ParentID,
		&c.SortOrder,
		&c.IsActive,
		&c.ImageURL,
		&c.IconURL,
		&c.Description,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
}

// isForeignKeyViolation reports SQLSTATE 23503.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

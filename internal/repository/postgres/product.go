package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/neargud/catalog/internal/domain"
	"github.com/neargud/catalog/internal/matcher"
	"github.com/neargud/catalog/internal/repository"
	"github.com/neargud/catalog/pkg/database"
	apperrors "github.com/neargud/catalog/pkg/errors"
	"github.com/neargud/catalog/pkg/pagination"
)

// productColumns is the standard SELECT column list for products. Prices are
// read as text so they round-trip through decimal.Decimal without loss.
const productColumns = `id, vendor_id, name, slug, description, brand_id,
	category_id, subcategory_id, sub_sub_category_id,
	price::text, original_price::text, stock_quantity, stock, sku, status,
	images, metadata, variants, created_at, updated_at`

const (
	productSlugConstraint = "products_slug_key"
	productSKUConstraint  = "products_sku_key"
)

// criteriaColumns whitelists the columns a matcher criteria may reference.
var criteriaColumns = map[string]bool{
	matcher.FieldCategory:       true,
	matcher.FieldSubcategory:    true,
	matcher.FieldSubSubCategory: true,
}

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts a new product into the database.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	docs, err := encodeDocuments(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (id, vendor_id, name, slug, description, brand_id,
			category_id, subcategory_id, sub_sub_category_id,
			price, original_price, stock_quantity, stock, sku, status,
			images, metadata, variants, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	ctx, end := database.TraceQuery(ctx, "CreateProduct", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		p.ID,
		p.VendorID,
		p.Name,
		p.Slug,
		p.Description,
		p.BrandID,
		p.CategoryID,
		p.SubcategoryID,
		p.SubSubCategoryID,
		p.Price.String(),
		decimalText(p.OriginalPrice),
		p.StockQuantity,
		string(p.Stock),
		p.SKU,
		p.Status,
		docs.images,
		docs.metadata,
		docs.variants,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return mapProductWriteError(err, p)
	}

	return nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (p *domain.Product, err error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)

	ctx, end := database.TraceQuery(ctx, "GetProduct", query)
	defer func() { end(err) }()

	return r.scanProduct(ctx, query, id)
}

// GetBySlug retrieves a product by its slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE slug = $1`, productColumns)
	return r.scanProduct(ctx, query, slug)
}

// SKUExists reports whether a product already uses sku.
func (r *ProductRepository) SKUExists(ctx context.Context, sku string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM products WHERE sku = $1)`, sku,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check sku: %w", err)
	}
	return exists, nil
}

// List returns products matching the given filter with the total count.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) (products []domain.Product, total int, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if c := filter.Category; c != nil {
		cond, err := criteriaCondition(*c, argIndex)
		if err != nil {
			return nil, 0, err
		}
		conditions = append(conditions, cond)
		if !c.NoMatch {
			args = append(args, c.CategoryID)
			argIndex++
		}
	}

	if filter.BrandID != nil {
		conditions = append(conditions, fmt.Sprintf("brand_id = $%d", argIndex))
		args = append(args, *filter.BrandID)
		argIndex++
	}

	if filter.VendorID != nil {
		conditions = append(conditions, fmt.Sprintf("vendor_id = $%d", argIndex))
		args = append(args, *filter.VendorID)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+*filter.Search+"%")
		argIndex++
	}

	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price >= $%d::numeric", argIndex))
		args = append(args, filter.MinPrice.String())
		argIndex++
	}

	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price <= $%d::numeric", argIndex))
		args = append(args, filter.MaxPrice.String())
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// count(*) OVER() returns the total alongside the page in one query.
	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, orderBy(filter.SortBy), argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = pagination.DefaultPerPage
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	ctx, end := database.TraceQuery(ctx, "ListProducts", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products = []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := scanProductRow(rows, &p, &total); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, total, nil
}

// Update modifies an existing product. The SKU and vendor never change.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) (err error) {
	p.UpdatedAt = time.Now().UTC()

	docs, err := encodeDocuments(p)
	if err != nil {
		return err
	}

	query := `
		UPDATE products
		SET name = $1, slug = $2, description = $3, brand_id = $4,
		    category_id = $5, subcategory_id = $6, sub_sub_category_id = $7,
		    price = $8, original_price = $9, stock_quantity = $10, stock = $11,
		    status = $12, images = $13, metadata = $14, variants = $15, updated_at = $16
		WHERE id = $17`

	ctx, end := database.TraceQuery(ctx, "UpdateProduct", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query,
		p.Name,
		p.Slug,
		p.Description,
		p.BrandID,
		p.CategoryID,
		p.SubcategoryID,
		p.SubSubCategoryID,
		p.Price.String(),
		decimalText(p.OriginalPrice),
		p.StockQuantity,
		string(p.Stock),
		p.Status,
		docs.images,
		docs.metadata,
		docs.variants,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return mapProductWriteError(err, p)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", p.ID)
	}

	return nil
}

// Delete removes a product from the database by its ID.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}

	return nil
}

// criteriaCondition renders a matcher criteria as an OR group over the
// eligible reference columns, all bound to the same parameter.
func criteriaCondition(c matcher.Criteria, argIndex int) (string, error) {
	if c.NoMatch || len(c.Fields) == 0 {
		return "FALSE", nil
	}
	parts := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		if !criteriaColumns[f] {
			return "", fmt.Errorf("unknown category field %q", f)
		}
		parts = append(parts, fmt.Sprintf("%s = $%d", f, argIndex))
	}
	return "(" + strings.Join(parts, " OR ") + ")", nil
}

func orderBy(sortBy string) string {
	switch sortBy {
	case domain.SortByPriceAsc:
		return "price ASC, created_at DESC, id"
	case domain.SortByPriceDesc:
		return "price DESC, created_at DESC, id"
	case domain.SortByNameAsc:
		return "name ASC, id"
	case domain.SortByNameDesc:
		return "name DESC, id"
	default:
		return "created_at DESC, id"
	}
}

type productDocuments struct {
	images   []byte
	metadata []byte
	variants []byte
}

func encodeDocuments(p *domain.Product) (productDocuments, error) {
	var (
		docs productDocuments
		err  error
	)
	images := p.Images
	if images == nil {
		images = []string{}
	}
	if docs.images, err = json.Marshal(images); err != nil {
		return docs, fmt.Errorf("marshal images: %w", err)
	}
	if p.Metadata != nil {
		if docs.metadata, err = json.Marshal(p.Metadata); err != nil {
			return docs, fmt.Errorf("marshal metadata: %w", err)
		}
	}
	if !p.Variants.IsEmpty() {
		if docs.variants, err = json.Marshal(p.Variants); err != nil {
			return docs, fmt.Errorf("marshal variants: %w", err)
		}
	}
	return docs, nil
}

func mapProductWriteError(err error, p *domain.Product) error {
	switch {
	case database.IsUniqueViolation(err, productSKUConstraint):
		return domain.SKUTaken(p.SKU)
	case database.IsUniqueViolation(err, productSlugConstraint):
		return apperrors.AlreadyExists("product", "slug", p.Slug)
	}
	return fmt.Errorf("write product: %w", err)
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

// scanProduct executes a query expected to return a single product row.
func (r *ProductRepository) scanProduct(ctx context.Context, query string, args ...any) (*domain.Product, error) {
	var p domain.Product
	if err := scanProductRow(r.db.QueryRow(ctx, query, args...), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", fmt.Sprint(args...))
		}
		return nil, err
	}
	return &p, nil
}

// scanProductRow scans productColumns, plus any trailing destinations, into p.
func scanProductRow(row pgx.Row, p *domain.Product, extra ...any) error {
	var (
		price         string
		originalPrice *string
		stock         string
		images        []byte
		metadata      []byte
		variants      []byte
	)

	dest := []any{
		&p.ID,
		&p.VendorID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.BrandID,
		&p.CategoryID,
		&p.SubcategoryID,
		&p.SubSubCategoryID,
		&price,
		&originalPrice,
		&p.StockQuantity,
		&stock,
		&p.SKU,
		&p.Status,
		&images,
		&metadata,
		&variants,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		return fmt.Errorf("scan product: %w", err)
	}

	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return fmt.Errorf("parse price: %w", err)
	}
	if originalPrice != nil {
		op, err := decimal.NewFromString(*originalPrice)
		if err != nil {
			return fmt.Errorf("parse original price: %w", err)
		}
		p.OriginalPrice = &op
	}
	p.Stock = domain.StockStatus(stock)

	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return fmt.Errorf("unmarshal images: %w", err)
		}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &p.Variants); err != nil {
			return fmt.Errorf("unmarshal variants: %w", err)
		}
	}
	return nil
}

package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/neargud/catalog/internal/domain"
	pkgkafka "github.com/neargud/catalog/pkg/kafka"
	"github.com/neargud/catalog/pkg/logger"
)

// Kafka topic constants for catalog domain events.
const (
	TopicCategoryCreated = "catalog.category.created"
	TopicCategoryUpdated = "catalog.category.updated"
	TopicCategoryDeleted = "catalog.category.deleted"
	TopicProductCreated  = "catalog.product.created"
	TopicProductUpdated  = "catalog.product.updated"
	TopicProductDeleted  = "catalog.product.deleted"
)

// Aggregate type constants.
const (
	AggregateTypeCategory = "category"
	AggregateTypeProduct  = "product"
)

// SourceCatalogService identifies events originating from this service.
const SourceCatalogService = "catalog-service"

// CategoryData is the payload for category.created and category.updated.
type CategoryData struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Slug     string  `json:"slug"`
	ParentID *string `json:"parent_id"`
	Depth    int     `json:"depth"`
	IsActive bool    `json:"is_active"`
}

// ProductData is the payload for product.created and product.updated.
type ProductData struct {
	ID               string             `json:"id"`
	VendorID         string             `json:"vendor_id"`
	Name             string             `json:"name"`
	Slug             string             `json:"slug"`
	SKU              string             `json:"sku"`
	BrandID          *string            `json:"brand_id,omitempty"`
	CategoryID       *string            `json:"category_id,omitempty"`
	SubcategoryID    *string            `json:"subcategory_id,omitempty"`
	SubSubCategoryID *string            `json:"sub_sub_category_id,omitempty"`
	Status           string             `json:"status"`
	Price            decimal.Decimal    `json:"price"`
	StockQuantity    int                `json:"stock_quantity"`
	Stock            domain.StockStatus `json:"stock"`
	HasVariants      bool               `json:"has_variants"`
}

// DeletedData is the payload for every *.deleted event.
type DeletedData struct {
	ID string `json:"id"`
}

// Producer publishes catalog domain events to Kafka.
type Producer struct {
	kafka  pkgkafka.Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the catalog service.
func NewProducer(kafka pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCategoryCreated publishes a category.created event.
func (p *Producer) PublishCategoryCreated(ctx context.Context, c *domain.Category) error {
	return p.publish(ctx, TopicCategoryCreated, AggregateTypeCategory, c.ID, categoryData(c))
}

// PublishCategoryUpdated publishes a category.updated event.
func (p *Producer) PublishCategoryUpdated(ctx context.Context, c *domain.Category) error {
	return p.publish(ctx, TopicCategoryUpdated, AggregateTypeCategory, c.ID, categoryData(c))
}

// PublishCategoryDeleted publishes a category.deleted event.
func (p *Producer) PublishCategoryDeleted(ctx context.Context, id string) error {
	return p.publish(ctx, TopicCategoryDeleted, AggregateTypeCategory, id, DeletedData{ID: id})
}

// PublishProductCreated publishes a product.created event.
func (p *Producer) PublishProductCreated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductCreated, AggregateTypeProduct, product.ID, productData(product))
}

// PublishProductUpdated publishes a product.updated event.
func (p *Producer) PublishProductUpdated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductUpdated, AggregateTypeProduct, product.ID, productData(product))
}

// PublishProductDeleted publishes a product.deleted event.
func (p *Producer) PublishProductDeleted(ctx context.Context, id string) error {
	return p.publish(ctx, TopicProductDeleted, AggregateTypeProduct, id, DeletedData{ID: id})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateType, aggregateID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceCatalogService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String(aggregateType+"_id", aggregateID),
	)

	return nil
}

func categoryData(c *domain.Category) CategoryData {
	return CategoryData{
		ID:       c.ID,
		Name:     c.Name,
		Slug:     c.Slug,
		ParentID: c.ParentID,
		Depth:    c.Depth,
		IsActive: c.IsActive,
	}
}

func productData(p *domain.Product) ProductData {
	return ProductData{
		ID:               p.ID,
		VendorID:         p.VendorID,
		Name:             p.Name,
		Slug:             p.Slug,
		SKU:              p.SKU,
		BrandID:          p.BrandID,
		CategoryID:       p.CategoryID,
		SubcategoryID:    p.SubcategoryID,
		SubSubCategoryID: p.SubSubCategoryID,
		Status:           p.Status,
		Price:            p.Price,
		StockQuantity:    p.StockQuantity,
		Stock:            p.Stock,
		HasVariants:      !p.Variants.IsEmpty(),
	}
}

package service

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/neargud/catalog/internal/domain"
	"github.com/neargud/catalog/internal/event"
	"github.com/neargud/catalog/internal/repository"
	apperrors "github.com/neargud/catalog/pkg/errors"
	pkgkafka "github.com/neargud/catalog/pkg/kafka"
	"github.com/neargud/catalog/pkg/logger"
	"github.com/neargud/catalog/pkg/slug"
)

// --- Category store fake ---

// memCategories is an in-memory CategoryRepository. WithTreeLock serializes
// callers and rolls back every change made by a failing fn.
type memCategories struct {
	treeLock sync.Mutex
	mu       sync.Mutex
	nodes    map[string]domain.Category
	seq      int
}

func newMemCategories() *memCategories {
	return &memCategories{nodes: map[string]domain.Category{}}
}

// add inserts a category directly; parent "" makes a root.
func (m *memCategories) add(id, name, parent string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	c := domain.Category{
		ID:        id,
		Name:      name,
		Slug:      slug.Generate(name),
		IsActive:  true,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, m.seq, 0, time.UTC),
	}
	if parent != "" {
		p := parent
		c.ParentID = &p
	}
	m.nodes[id] = c
}

func (m *memCategories) parentOf(id string) *string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nodes[id].ParentID
}

func (m *memCategories) WithTreeLock(ctx context.Context, fn func(repository.CategoryStore) error) error {
	m.treeLock.Lock()
	defer m.treeLock.Unlock()

	m.mu.Lock()
	snapshot := maps.Clone(m.nodes)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.nodes = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memCategories) Create(_ context.Context, c *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.nodes {
		if existing.Slug == c.Slug {
			return apperrors.AlreadyExists("category", "slug", c.Slug)
		}
	}
	m.nodes[c.ID] = *c
	return nil
}

func (m *memCategories) GetByID(_ context.Context, id string) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.nodes[id]
	if !ok {
		return nil, apperrors.NotFound("category", id)
	}
	return &c, nil
}

func (m *memCategories) GetBySlug(_ context.Context, slug string) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.nodes {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, apperrors.NotFound("category", slug)
}

func (m *memCategories) ListAll(_ context.Context, activeOnly bool) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Category{}
	for _, c := range m.nodes {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memCategories) ListChildren(_ context.Context, parentID string) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Category
	for _, c := range m.nodes {
		if c.ParentID != nil && *c.ParentID == parentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCategories) CountChildren(ctx context.Context, parentID string) (int, error) {
	children, err := m.ListChildren(ctx, parentID)
	return len(children), err
}

func (m *memCategories) Update(_ context.Context, c *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[c.ID]; !ok {
		return apperrors.NotFound("category", c.ID)
	}
	m.nodes[c.ID] = *c
	return nil
}

func (m *memCategories) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[id]; !ok {
		return apperrors.NotFound("category", id)
	}
	delete(m.nodes, id)
	return nil
}

// --- Mock tree cache ---

type mockTreeCache struct {
	mock.Mock
}

func (m *mockTreeCache) Get(ctx context.Context, key string) ([]*domain.Category, bool, error) {
	args := m.Called(ctx, key)
	tree, _ := args.Get(0).([]*domain.Category)
	return tree, args.Bool(1), args.Error(2)
}

func (m *mockTreeCache) Set(ctx context.Context, key string, tree []*domain.Category, ttl time.Duration) error {
	args := m.Called(ctx, key, tree, ttl)
	return args.Error(0)
}

func (m *mockTreeCache) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- Mock product repository ---

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockProductRepository) SKUExists(ctx context.Context, sku string) (bool, error) {
	args := m.Called(ctx, sku)
	return args.Bool(0), args.Error(1)
}

// --- Mock vendor verifier ---

type mockVendors struct {
	mock.Mock
}

func (m *mockVendors) Verify(ctx context.Context, vendorID string) error {
	return m.Called(ctx, vendorID).Error(0)
}

// --- Events ---

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func newTestProducer() (*event.Producer, *recordingPublisher) {
	pub := &recordingPublisher{}
	return event.NewProducer(pub, logger.Discard()), pub
}

func strPtr(s string) *string { return &s }

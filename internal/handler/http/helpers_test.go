package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/neargud/catalog/internal/domain"
	"github.com/neargud/catalog/internal/event"
	"github.com/neargud/catalog/internal/hierarchy"
	"github.com/neargud/catalog/internal/matcher"
	"github.com/neargud/catalog/internal/repository"
	"github.com/neargud/catalog/internal/service"
	"github.com/neargud/catalog/internal/sku"
	"github.com/neargud/catalog/pkg/health"
	"github.com/neargud/catalog/pkg/httputil"
	pkgkafka "github.com/neargud/catalog/pkg/kafka"
	"github.com/neargud/catalog/pkg/logger"
)

// =============================================================================
// Mock CategoryRepository
// =============================================================================

type mockCategoryRepo struct {
	mock.Mock
}

// WithTreeLock runs fn against the mock itself.
func (m *mockCategoryRepo) WithTreeLock(_ context.Context, fn func(repository.CategoryStore) error) error {
	return fn(m)
}

func (m *mockCategoryRepo) Create(ctx context.Context, c *domain.Category) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCategoryRepo) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	args := m.Called(ctx, id)
	switch v := args.Get(0).(type) {
	case nil:
		return nil, args.Error(1)
	case func(string) *domain.Category:
		return v(id), args.Error(1)
	default:
		return v.(*domain.Category), args.Error(1)
	}
}

func (m *mockCategoryRepo) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategoryRepo) ListAll(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	args := m.Called(ctx, activeOnly)
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCategoryRepo) ListChildren(ctx context.Context, parentID string) ([]domain.Category, error) {
	args := m.Called(ctx, parentID)
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCategoryRepo) CountChildren(ctx context.Context, parentID string) (int, error) {
	args := m.Called(ctx, parentID)
	return args.Int(0), args.Error(1)
}

func (m *mockCategoryRepo) Update(ctx context.Context, c *domain.Category) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCategoryRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// =============================================================================
// Mock ProductRepository
// =============================================================================

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) Create(ctx context.Context, product *domain.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepo) Update(ctx context.Context, product *domain.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockProductRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockProductRepo) SKUExists(ctx context.Context, sku string) (bool, error) {
	args := m.Called(ctx, sku)
	return args.Bool(0), args.Error(1)
}

// =============================================================================
// Test helpers
// =============================================================================

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, *pkgkafka.Event) error { return nil }

type testServer struct {
	categories *mockCategoryRepo
	products   *mockProductRepo
	router     http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.Discard()
	producer := event.NewProducer(nopPublisher{}, log)

	ts := &testServer{
		categories: new(mockCategoryRepo),
		products:   new(mockProductRepo),
	}
	clock := sku.ClockFunc(func() time.Time { return time.UnixMilli(1_700_000_123_456) })

	categorySvc := service.NewCategoryService(ts.categories, nil, time.Minute, producer, log)
	productSvc := service.NewProductService(ts.products, ts.categories, sku.NewAllocator(ts.products, clock), nil, producer, log)
	storefrontSvc := service.NewStorefrontService(ts.products, categorySvc, matcher.New(hierarchy.NewManager(ts.categories)), log)

	ts.router = NewRouter(categorySvc, productSvc, storefrontSvc, health.NewHandler(), RouterConfig{
		CORSOrigins: []string{"*"},
	}, log)
	return ts
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *httputil.ErrorResponse {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error, "expected an error envelope")
	return resp.Error
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Data
}

func category(id, name, parent string) *domain.Category {
	c := &domain.Category{ID: id, Name: name, Slug: name, IsActive: true}
	if parent != "" {
		c.ParentID = &parent
	}
	return c
}

func decodeJSON(rec *httptest.ResponseRecorder, v any) error {
	return json.NewDecoder(rec.Body).Decode(v)
}

package storefront

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Sternrassler/storefront-client/internal/testutil"
	"github.com/Sternrassler/storefront-client/pkg/cache"
	"github.com/Sternrassler/storefront-client/pkg/cart"
	"github.com/Sternrassler/storefront-client/pkg/catalog"
	"github.com/Sternrassler/storefront-client/pkg/client"
	"github.com/Sternrassler/storefront-client/pkg/filter"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

type redirects struct {
	mu   sync.Mutex
	urls []string
}

func (r *redirects) record(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, url)
}

func (r *redirects) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.urls...)
}

func newStorefront(t *testing.T, baseURL string, seen *redirects) *Storefront {
	t.Helper()

	logger := zerolog.Nop()
	cfg := DefaultConfig(baseURL)
	cfg.Retry.MaxAttempts = 1
	cfg.Logger = &logger
	if seen != nil {
		cfg.OnLoginRedirect = seen.record
	}

	sf, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sf.Close() })
	return sf
}

func seedCatalog(mock *testutil.MockAPI) {
	mock.SetCategories(catalog.Category{ID: 1, Name: "Электроника"})
	mock.SetFilters(1,
		catalog.FilterRecord{ID: 1, Name: "Цена", Type: intPtr(int(filter.KindRange)), Value: "0-1000"},
		catalog.FilterRecord{ID: 2, Name: "В наличии", Type: intPtr(int(filter.KindCheckbox))},
		catalog.FilterRecord{ID: 3, Name: ""},
	)
	mock.SetProducts(1,
		catalog.Product{ID: 1, Name: "Phone", Price: 150, Count: 3},
		catalog.Product{ID: 2, Name: "Cable", Price: 90, Count: 0},
	)
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New(DefaultConfig(""))
	require.Error(t, err)
}

func TestStorefront_PriceFilterScenario(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	seedCatalog(mock)

	sf := newStorefront(t, mock.URL(), nil)
	ctx := context.Background()

	result, err := sf.GetFilterSpecs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, result.Specs, 2)
	require.Len(t, result.Diagnostics, 1)

	view, err := sf.OpenCategory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, view.Visible(), 2)

	visible := view.SetRange(1, "100", "999")
	require.Len(t, visible, 1)
	require.Equal(t, 1, visible[0].ID)

	sel := filter.Selection{1: filter.RangeBound{Min: "100", Max: "999"}}
	filtered := sf.ApplyFilters(view.Products(), sel)
	require.Len(t, filtered, 1)
	require.Equal(t, 1, filtered[0].ID)

	require.Len(t, view.Labels(), 1)

	require.Len(t, view.Clear(), 2)
	require.Empty(t, view.Labels())
}

func TestStorefront_MistypedFilterRecordDoesNotBlockCategory(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	seedCatalog(mock)
	mock.SetResponse("GET", "/categories/1/filters", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body: `[{"id":1,"name":"Цена","type":2,"value":"1000-50000"},` +
			`{"id":"2","name":"Бренд","type":"1","value":"Apple,Samsung"},` +
			`{"id":{},"name":"Цвет","type":1,"value":"red,blue"},` +
			`"garbage"]`,
	})

	sf := newStorefront(t, mock.URL(), nil)

	view, err := sf.OpenCategory(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, view.Products(), 2)

	specs := view.Specs()
	require.Len(t, specs, 2)
	require.Equal(t, filter.KindRange, specs[0].Kind)
	require.Equal(t, 2, specs[1].ID)
	require.Equal(t, filter.KindOptions, specs[1].Kind)
	require.Len(t, view.Diagnostics(), 2)
}

func TestStorefront_OpenCategoryReplacesView(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	seedCatalog(mock)
	mock.SetProducts(2, catalog.Product{ID: 7, Name: "Book", Price: 12})

	sf := newStorefront(t, mock.URL(), nil)
	ctx := context.Background()

	first, err := sf.OpenCategory(ctx, 1)
	require.NoError(t, err)
	first.Set(2, filter.Bool(true))

	second, err := sf.OpenCategory(ctx, 2)
	require.NoError(t, err)
	require.Same(t, second, sf.CurrentView())
	require.Empty(t, second.Specs())
	require.Empty(t, second.Selection())
	require.Len(t, second.Visible(), 1)
}

func TestStorefront_WarmServesOpenFromMemory(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	seedCatalog(mock)

	sf := newStorefront(t, mock.URL(), nil)
	ctx := context.Background()

	require.NoError(t, sf.Warm(ctx, []int{1}))
	mock.Reset()

	view, err := sf.OpenCategory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, view.Products(), 2)
	require.Equal(t, 0, mock.RequestCount("GET", "/categories/1/filters"))
	require.Equal(t, 0, mock.RequestCount("GET", "/categories/1/products"))
}

func TestStorefront_CategoriesFallBackToDemo(t *testing.T) {
	server := httptest.NewServer(nil)
	baseURL := server.URL + "/api"
	server.Close()

	sf := newStorefront(t, baseURL, nil)

	categories, err := sf.Categories(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, categories)
	for _, c := range categories {
		require.True(t, c.Demo)
	}
}

func TestStorefront_CategoriesServerErrorSurfaces(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("GET", "/categories/", testutil.NewServerErrorResponse())

	sf := newStorefront(t, mock.URL(), nil)

	_, err := sf.Categories(context.Background())
	require.Error(t, err)
}

func TestStorefront_AnonymousCartRedirects(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	seedCatalog(mock)

	seen := &redirects{}
	sf := newStorefront(t, mock.URL(), seen)

	require.Empty(t, sf.GetCart().Value.Lines)

	err := sf.Cart().Add(context.Background(), 1, 1)
	require.True(t, errors.Is(err, cart.ErrLoginRequired))
	require.Contains(t, seen.all(), sf.LoginURL())
}

func TestStorefront_CartAndLogout(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	seedCatalog(mock)
	mock.Login(catalog.Profile{ID: "u1", Username: "anna", Role: "customer"})

	sf := newStorefront(t, mock.URL(), nil)
	ctx := context.Background()

	profile, err := sf.Auth().Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, "anna", profile.Username)
	require.Equal(t, "anna", sf.GetAuth().Value.Username)

	require.NoError(t, sf.Cart().Add(ctx, 1, 2))

	snap := sf.GetCart()
	require.Len(t, snap.Value.Lines, 1)
	require.Equal(t, 2, snap.Value.Lines[0].Quantity)

	require.NoError(t, sf.Logout(ctx))
	require.Nil(t, sf.GetAuth().Value)
	require.Equal(t, cache.StateEmpty, sf.cartData.Peek().State)
}

func TestStorefront_StartAndClose(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	sf := newStorefront(t, mock.URL(), nil)
	sf.Start()
	sf.Start()
	require.NoError(t, sf.Close())
}

func TestStorefront_Orders(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	seen := &redirects{}
	sf := newStorefront(t, mock.URL(), seen)
	ctx := context.Background()

	_, err := sf.Orders(ctx)
	require.Equal(t, client.ClassUnauthorized, client.ClassOf(err))
	require.Contains(t, seen.all(), sf.LoginURL())

	mock.Login(catalog.Profile{ID: "u1", Username: "anna"})
	mock.SetOrders(catalog.Order{ID: 9, Date: "2024-05-02"})
	orders, err := sf.Orders(ctx)
	require.NoError(t, err)
	require.Equal(t, []catalog.Order{{ID: 9, Date: "2024-05-02"}}, orders)
}

func TestStorefront_Product(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	seedCatalog(mock)

	sf := newStorefront(t, mock.URL(), nil)

	p, err := sf.Product(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, "Cable", p.Name)

	_, err = sf.Product(context.Background(), 404)
	require.Equal(t, client.ClassNotFound, client.ClassOf(err))
}

package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/storefront-client/internal/testutil"
	"github.com/Sternrassler/storefront-client/pkg/catalog"
	"github.com/Sternrassler/storefront-client/pkg/filter"
	"github.com/Sternrassler/storefront-client/pkg/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func newTestClient(t *testing.T, mock *testutil.MockAPI) *Client {
	t.Helper()

	logger := zerolog.Nop()
	cfg := DefaultConfig(mock.URL())
	cfg.Logger = &logger
	cfg.Retry = RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("http://localhost:5000/api"),
			expectError: false,
		},
		{
			name:        "empty base url",
			config:      DefaultConfig(""),
			expectError: true,
			errorMsg:    "base url is required",
		},
		{
			name:        "unsupported scheme",
			config:      DefaultConfig("ftp://localhost/api"),
			expectError: true,
			errorMsg:    `base url must be http or https (got "ftp://localhost/api")`,
		},
		{
			name: "empty user agent",
			config: Config{
				BaseURL: "http://localhost:5000/api",
			},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error, got nil")
				} else if err.Error() != tt.errorMsg {
					t.Errorf("expected error %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.config.Timeout != DefaultTimeout {
				t.Errorf("Timeout = %v, want %v", c.config.Timeout, DefaultTimeout)
			}
		})
	}
}

func TestClient_LoadCategories(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetCategories(catalog.Category{ID: 7, Name: "Ноутбуки"}, catalog.Category{ID: 8, Name: "Телефоны"})

	c := newTestClient(t, mock)
	got, err := c.LoadCategories(context.Background())
	if err != nil {
		t.Fatalf("LoadCategories() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != 7 || got[1].Name != "Телефоны" {
		t.Errorf("LoadCategories() = %+v", got)
	}

	header := mock.LastRequestHeader
	if header.Get("User-Agent") != "storefront-client/0.1.0" {
		t.Errorf("User-Agent = %q", header.Get("User-Agent"))
	}
	if _, err := uuid.Parse(header.Get("X-Request-ID")); err != nil {
		t.Errorf("X-Request-ID %q is not a uuid: %v", header.Get("X-Request-ID"), err)
	}
}

func TestClient_LoadProducts_ExtraAttributes(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(http.MethodGet, "/categories/3/products", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `[{"id":1,"name":"Phone","price":500,"count":2,"Color":"Red"}]`,
	})

	c := newTestClient(t, mock)
	got, err := c.LoadProducts(context.Background(), 3, "")
	if err != nil {
		t.Fatalf("LoadProducts() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("LoadProducts() returned %d products, want 1", len(got))
	}
	if v, ok := got[0].Field("color"); !ok || v != "Red" {
		t.Errorf("Field(color) = %q, %v; want Red, true", v, ok)
	}
}

func TestClient_LoadFilters_MixedRecords(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(http.MethodGet, "/categories/5/filters", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body: `[{"id":1,"name":"Цена","type":2,"value":"1000-50000"},` +
			`{"id":"2","name":"Бренд","type":"1","value":"Apple,Samsung"},` +
			`42,` +
			`{"id":"x","name":"Цвет","type":1,"value":"red"}]`,
	})

	c := newTestClient(t, mock)
	records, err := c.LoadFilters(context.Background(), 5)
	if err != nil {
		t.Fatalf("LoadFilters() error = %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("LoadFilters() returned %d records, want 4", len(records))
	}
	if records[1].ID != 2 || records[1].Type == nil || *records[1].Type != 1 {
		t.Errorf("coerced record = %+v", records[1])
	}
	if records[2].Raw != "42" {
		t.Errorf("undecodable record Raw = %q, want 42", records[2].Raw)
	}

	res := filter.Normalize(records)
	if len(res.Specs) != 2 || res.Specs[0].ID != 1 || res.Specs[1].ID != 2 {
		t.Errorf("Specs = %+v, want ids 1 and 2", res.Specs)
	}
	if len(res.Diagnostics) != 2 {
		t.Errorf("Diagnostics = %v, want two rejections", res.Diagnostics)
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		response      testutil.MockResponse
		expectedClass ErrorClass
		expectedCalls int
	}{
		{
			name:          "404 is not retried",
			response:      testutil.NewNotFoundResponse(),
			expectedClass: ClassNotFound,
			expectedCalls: 1,
		},
		{
			name:          "401 is not retried",
			response:      testutil.NewUnauthorizedResponse(),
			expectedClass: ClassUnauthorized,
			expectedCalls: 1,
		},
		{
			name:          "login redirect is unauthorized",
			response:      testutil.NewLoginRedirectResponse(),
			expectedClass: ClassUnauthorized,
			expectedCalls: 1,
		},
		{
			name:          "500 is retried until exhausted",
			response:      testutil.NewServerErrorResponse(),
			expectedClass: ClassServer,
			expectedCalls: 3,
		},
		{
			name:          "400 is unknown",
			response:      testutil.MockResponse{StatusCode: http.StatusBadRequest, Body: "bad"},
			expectedClass: ClassUnknown,
			expectedCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockAPI()
			defer mock.Close()
			mock.SetResponse(http.MethodGet, "/categories/", tt.response)

			c := newTestClient(t, mock)
			_, err := c.LoadCategories(context.Background())
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if got := ClassOf(err); got != tt.expectedClass {
				t.Errorf("ClassOf() = %q, want %q (err: %v)", got, tt.expectedClass, err)
			}
			if got := mock.RequestCount(http.MethodGet, "/categories/"); got != tt.expectedCalls {
				t.Errorf("request count = %d, want %d", got, tt.expectedCalls)
			}
		})
	}
}

func TestClient_RetryRecovers(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetCategories(catalog.Category{ID: 1, Name: "A"})

	calls := 0
	mock.SetResponse(http.MethodGet, "/categories/", testutil.NewServerErrorResponse())

	c := newTestClient(t, mock)
	c.config.Retry.MaxAttempts = 1
	if _, err := c.LoadCategories(context.Background()); ClassOf(err) != ClassServer {
		t.Fatalf("expected server error, got %v", err)
	}
	calls++

	mock.ClearResponse(http.MethodGet, "/categories/")
	got, err := c.LoadCategories(context.Background())
	if err != nil {
		t.Fatalf("LoadCategories() after recovery error = %v", err)
	}
	calls++
	if len(got) != 1 {
		t.Errorf("LoadCategories() = %+v", got)
	}
	if n := mock.RequestCount(http.MethodGet, "/categories/"); n != calls {
		t.Errorf("request count = %d, want %d", n, calls)
	}
}

func TestClient_MutationsAreNotRetried(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.Login(catalog.Profile{ID: "u1", Username: "anna"})
	mock.SetResponse(http.MethodPost, "/cart/", testutil.NewServerErrorResponse())

	c := newTestClient(t, mock)
	err := c.AddToCart(context.Background(), 1, 1)
	if ClassOf(err) != ClassServer {
		t.Fatalf("AddToCart() error = %v, want server class", err)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("mutation error must not report retry exhaustion")
	}
	if n := mock.RequestCount(http.MethodPost, "/cart/"); n != 1 {
		t.Errorf("POST /cart/ count = %d, want 1", n)
	}
}

func TestClient_CartRoundTrip(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.Login(catalog.Profile{ID: "u1", Username: "anna"})
	mock.SetProducts(1, catalog.Product{ID: 10, Name: "Phone", Price: 250, Count: 3})

	c := newTestClient(t, mock)
	ctx := context.Background()

	if err := c.AddToCart(ctx, 10, 2); err != nil {
		t.Fatalf("AddToCart() error = %v", err)
	}
	cart, err := c.LoadCart(ctx)
	if err != nil {
		t.Fatalf("LoadCart() error = %v", err)
	}
	if cart.ItemCount() != 2 || cart.Total() != 500 {
		t.Fatalf("cart = %+v, want 2 items totalling 500", cart)
	}

	lineID := cart.Lines[0].ID
	if err := c.UpdateCartItem(ctx, lineID, 5); err != nil {
		t.Fatalf("UpdateCartItem() error = %v", err)
	}
	if err := c.RemoveFromCart(ctx, lineID); err != nil {
		t.Fatalf("RemoveFromCart() error = %v", err)
	}
	cart, err = c.LoadCart(ctx)
	if err != nil {
		t.Fatalf("LoadCart() error = %v", err)
	}
	if len(cart.Lines) != 0 {
		t.Errorf("cart lines = %d, want 0", len(cart.Lines))
	}
}

func TestClient_AnonymousCartIsUnauthorized(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	c := newTestClient(t, mock)
	_, err := c.LoadCart(context.Background())
	if ClassOf(err) != ClassUnauthorized {
		t.Fatalf("LoadCart() error = %v, want unauthorized", err)
	}
	if n := mock.RequestCount(http.MethodGet, "/cart/"); n != 1 {
		t.Errorf("GET /cart/ count = %d, want 1", n)
	}
}

func TestClient_Unreachable(t *testing.T) {
	mock := testutil.NewMockAPI()
	url := mock.URL()
	mock.Close()

	logger := zerolog.Nop()
	cfg := DefaultConfig(url)
	cfg.Logger = &logger
	cfg.Retry.MaxAttempts = 1

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = c.LoadCategories(context.Background())
	if ClassOf(err) != ClassUnreachable {
		t.Errorf("ClassOf() = %q, want unreachable (err: %v)", ClassOf(err), err)
	}
}

func TestClient_APIErrorMessage(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(http.MethodGet, "/products/5", testutil.NewNotFoundResponse())

	c := newTestClient(t, mock)
	_, err := c.LoadProduct(context.Background(), 5)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
	if apiErr.Message != "Not found" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "Not found")
	}
}

func TestClient_LoginURL(t *testing.T) {
	c, err := New(DefaultConfig("http://localhost:5000/api/"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got, want := c.LoginURL(), "http://localhost:5000/api/user/login"; got != want {
		t.Errorf("LoginURL() = %q, want %q", got, want)
	}
}

func TestClient_Logout(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.Login(catalog.Profile{ID: "u1"})

	c := newTestClient(t, mock)
	ctx := context.Background()
	if _, err := c.LoadProfile(ctx); err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := c.LoadProfile(ctx); ClassOf(err) != ClassUnauthorized {
		t.Errorf("LoadProfile() after logout error = %v, want unauthorized", err)
	}
}

func TestClient_LoadOrders(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	c := newTestClient(t, mock)

	_, err := c.LoadOrders(context.Background())
	if ClassOf(err) != ClassUnauthorized {
		t.Fatalf("anonymous LoadOrders() class = %v, want unauthorized (err %v)", ClassOf(err), err)
	}

	mock.Login(catalog.Profile{ID: "u1", Username: "anna"})
	mock.SetOrders(catalog.Order{ID: 3, Date: "2024-01-05"}, catalog.Order{ID: 4, Date: "2024-02-11"})
	orders, err := c.LoadOrders(context.Background())
	if err != nil {
		t.Fatalf("LoadOrders() error = %v", err)
	}
	if len(orders) != 2 || orders[1].ID != 4 || orders[1].Date != "2024-02-11" {
		t.Errorf("LoadOrders() = %+v", orders)
	}
}

func TestClient_DefaultLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(http.MethodGet, "/categories/1/filters", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `["not a record"]`,
	})

	c, err := New(DefaultConfig(mock.URL()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	if _, err := c.LoadFilters(context.Background(), 1); err != nil {
		t.Fatalf("LoadFilters() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"component":"`+logging.ComponentClient+`"`) {
		t.Errorf("log output %q lacks the client component", buf.String())
	}
}

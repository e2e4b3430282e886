// Package testutil provides an in-memory storefront API for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/storefront-client/pkg/catalog"
)

// MockResponse defines a canned response for a mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock of the storefront REST API. It keeps a
// small catalog, a profile and a cart in memory and serves them under
// the /api prefix the way the real backend does.
type MockAPI struct {
	server *httptest.Server

	mu         sync.Mutex
	overrides  map[string]MockResponse
	categories []catalog.Category
	filters    map[int][]catalog.FilterRecord
	products   map[int][]catalog.Product
	profile    *catalog.Profile
	orders     []catalog.Order
	cart       []catalog.CartLine
	nextLineID int
	requests   map[string]int

	// LastRequestHeader holds the headers of the most recent request.
	LastRequestHeader http.Header
}

// NewMockAPI starts a mock storefront API with an empty catalog and an
// anonymous session.
func NewMockAPI() *MockAPI {
	m := &MockAPI{
		overrides:  make(map[string]MockResponse),
		filters:    make(map[int][]catalog.FilterRecord),
		products:   make(map[int][]catalog.Product),
		requests:   make(map[string]int),
		nextLineID: 1,
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the API base URL including the /api prefix.
func (m *MockAPI) URL() string {
	return m.server.URL + "/api"
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// SetResponse makes every request for method and path (relative to /api)
// return resp until ClearResponse is called. An empty method matches any.
func (m *MockAPI) SetResponse(method, path string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[method+" "+path] = resp
}

// ClearResponse removes an override set with SetResponse.
func (m *MockAPI) ClearResponse(method, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overrides, method+" "+path)
}

// SetCategories replaces the category list.
func (m *MockAPI) SetCategories(categories ...catalog.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = categories
}

// SetFilters replaces the filter metadata of a category.
func (m *MockAPI) SetFilters(categoryID int, records ...catalog.FilterRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters[categoryID] = records
}

// SetProducts replaces the products of a category.
func (m *MockAPI) SetProducts(categoryID int, products ...catalog.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[categoryID] = products
}

// Login makes the session authenticated as profile.
func (m *MockAPI) Login(profile catalog.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = &profile
}

// Logout makes the session anonymous.
func (m *MockAPI) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = nil
}

// SetOrders replaces the order history served to a logged in user.
func (m *MockAPI) SetOrders(orders ...catalog.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = orders
}

// CartLines returns a copy of the server-side cart.
func (m *MockAPI) CartLines() []catalog.CartLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]catalog.CartLine(nil), m.cart...)
}

// RequestCount returns how many requests hit method and path. An empty
// method counts every method.
func (m *MockAPI) RequestCount(method, path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if method != "" {
		return m.requests[method+" "+path]
	}
	total := 0
	for key, n := range m.requests {
		if strings.HasSuffix(key, " "+path) {
			total += n
		}
	}
	return total
}

// Reset clears the request counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]int)
	m.LastRequestHeader = nil
}

func (m *MockAPI) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")

	m.mu.Lock()
	m.requests[r.Method+" "+path]++
	m.LastRequestHeader = r.Header.Clone()
	override, ok := m.overrides[r.Method+" "+path]
	if !ok {
		override, ok = m.overrides[" "+path]
	}
	m.mu.Unlock()

	if ok {
		writeOverride(w, override)
		return
	}

	switch {
	case path == "/categories/":
		m.mu.Lock()
		body := m.categories
		m.mu.Unlock()
		writeJSON(w, http.StatusOK, nonNil(body))
	case strings.HasPrefix(path, "/categories/"):
		m.serveCategory(w, path)
	case strings.HasPrefix(path, "/products/"):
		m.serveProduct(w, path)
	case path == "/profile":
		m.mu.Lock()
		profile := m.profile
		m.mu.Unlock()
		if profile == nil {
			redirectToLogin(w)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	case path == "/user/orders":
		m.mu.Lock()
		profile, orders := m.profile, m.orders
		m.mu.Unlock()
		if profile == nil {
			redirectToLogin(w)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(orders))
	case path == "/cart/":
		m.serveCart(w, r)
	case path == "/user/logout":
		m.Logout()
		w.WriteHeader(http.StatusOK)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
	}
}

func (m *MockAPI) serveCategory(w http.ResponseWriter, path string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
		return
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad category id"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch parts[2] {
	case "filters":
		writeJSON(w, http.StatusOK, nonNil(m.filters[id]))
	case "products":
		writeJSON(w, http.StatusOK, nonNil(m.products[id]))
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
	}
}

func (m *MockAPI) serveProduct(w http.ResponseWriter, path string) {
	id, err := strconv.Atoi(strings.TrimPrefix(path, "/products/"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad product id"})
		return
	}
	if p, ok := m.findProduct(id); ok {
		writeJSON(w, http.StatusOK, p)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "product not found"})
}

func (m *MockAPI) findProduct(id int) (catalog.Product, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, list := range m.products {
		for _, p := range list {
			if p.ID == id {
				return p, true
			}
		}
	}
	return catalog.Product{}, false
}

func (m *MockAPI) serveCart(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	anonymous := m.profile == nil
	m.mu.Unlock()
	if anonymous {
		redirectToLogin(w)
		return
	}

	var body struct {
		ProductID int `json:"productId"`
		ItemID    int `json:"itemId"`
		Quantity  int `json:"quantity"`
	}
	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed body"})
			return
		}
	}

	switch r.Method {
	case http.MethodGet:
		m.mu.Lock()
		lines := append([]catalog.CartLine{}, m.cart...)
		m.mu.Unlock()
		writeJSON(w, http.StatusOK, lines)

	case http.MethodPost:
		product, ok := m.findProduct(body.ProductID)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "product not found"})
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		for i := range m.cart {
			if m.cart[i].ProductID == body.ProductID {
				m.cart[i].Quantity += body.Quantity
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		m.cart = append(m.cart, catalog.CartLine{
			ID:        m.nextLineID,
			ProductID: product.ID,
			Quantity:  body.Quantity,
			Price:     product.Price,
			Product:   &product,
		})
		m.nextLineID++
		w.WriteHeader(http.StatusCreated)

	case http.MethodPut:
		m.mu.Lock()
		defer m.mu.Unlock()
		for i := range m.cart {
			if m.cart[i].ID == body.ItemID {
				m.cart[i].Quantity = body.Quantity
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "cart item not found"})

	case http.MethodDelete:
		id, err := strconv.Atoi(r.URL.Query().Get("itemId"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad item id"})
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		for i := range m.cart {
			if m.cart[i].ID == id {
				m.cart = append(m.cart[:i], m.cart[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "cart item not found"})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func redirectToLogin(w http.ResponseWriter) {
	w.Header().Set("Location", "/api/user/login")
	w.WriteHeader(http.StatusFound)
}

func writeOverride(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		fmt.Fprint(w, resp.Body)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"message": "Not found"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewUnauthorizedResponse creates a 401 Unauthorized response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"message": "Unauthorized"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewLoginRedirectResponse creates a 302 redirect to the login endpoint.
func NewLoginRedirectResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusFound,
		Headers:    map[string]string{"Location": "/api/user/login"},
	}
}

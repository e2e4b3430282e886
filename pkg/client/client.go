// Package client provides the storefront HTTP API client with request
// classification, retry of idempotent reads and Prometheus metrics.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/storefront-client/pkg/catalog"
	"github.com/Sternrassler/storefront-client/pkg/logging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for storefront API operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_requests_total",
		Help: "Total storefront API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_request_duration_seconds",
		Help:    "Storefront API request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_errors_total",
		Help: "Total storefront API errors by class",
	}, []string{"class"})
)

// DefaultTimeout is the one request timeout applied to every API call.
const DefaultTimeout = 10 * time.Second

// maxErrorBody bounds how much of an error response is read for its message.
const maxErrorBody = 4 << 10

// Client talks to the storefront REST API.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:5000/api".
	BaseURL string

	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds each HTTP round trip.
	Timeout time.Duration

	// Retry applies to GET requests only. Mutations are sent once.
	Retry RetryConfig

	// HTTPClient overrides the transport (tests, custom TLS). Its
	// redirect policy is replaced so login redirects stay observable.
	HTTPClient *http.Client

	// Logger defaults to the global logger with component=storefront-client.
	Logger *zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "storefront-client/0.1.0",
		Timeout:   DefaultTimeout,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new storefront client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	logger := log.With().Str("component", logging.ComponentClient).Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	httpClient := &http.Client{}
	if cfg.HTTPClient != nil {
		clone := *cfg.HTTPClient
		httpClient = &clone
	}
	httpClient.Timeout = cfg.Timeout
	httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Do performs an HTTP request, classifying failures into *APIError.
// GET requests are retried on unreachable and server classes.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.do(req, req.URL.Path)
}

func (c *Client) do(req *http.Request, endpoint string) (*http.Response, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}

	retryCfg := noRetry
	if req.Method == http.MethodGet {
		retryCfg = c.config.Retry
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing storefront request")

	var resp *http.Response
	err := retryWithBackoff(req.Context(), retryCfg, c.logger, func() (ErrorClass, error) {
		r, reqErr := c.httpClient.Do(req)
		outcome := OutcomeOf(r, reqErr)
		class := Classify(outcome)

		if class == "" {
			requestsTotal.WithLabelValues(endpoint, strconv.Itoa(r.StatusCode)).Inc()
			resp = r
			return "", nil
		}

		errorsTotal.WithLabelValues(string(class)).Inc()
		apiErr := newAPIError(outcome, class, r)

		if reqErr != nil {
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			c.logger.Warn().Err(reqErr).Str("endpoint", endpoint).Str("error_class", string(class)).Msg("HTTP request failed")
		} else {
			requestsTotal.WithLabelValues(endpoint, strconv.Itoa(r.StatusCode)).Inc()
			c.logger.Debug().
				Str("endpoint", endpoint).
				Int("status", r.StatusCode).
				Str("error_class", string(class)).
				Msg("Storefront request error")
		}
		return class, apiErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// newAPIError builds the classified error and drains the response body.
func newAPIError(o Outcome, class ErrorClass, resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: o.StatusCode,
		Class:      class,
		Err:        o.Err,
	}
	if resp == nil {
		apiErr.Message = "request failed"
		return apiErr
	}
	defer resp.Body.Close()

	apiErr.Message = resp.Status
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if msg := errorMessage(body); msg != "" {
		apiErr.Message = msg
	}
	return apiErr
}

// errorMessage extracts a message from a JSON error envelope or plain text.
func errorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Title   string `json:"title"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		for _, m := range []string{envelope.Message, envelope.Error, envelope.Title} {
			if m != "" {
				return m
			}
		}
		return ""
	}
	return string(body)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// call sends a request and decodes a JSON response into out when out is non-nil.
func (c *Client) call(ctx context.Context, method, path, endpoint string, query url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	resp, err := c.do(req, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Class:      ClassUnknown,
			Message:    "malformed response body",
			Err:        err,
		}
	}
	return nil
}

// LoadCategories fetches the category list.
func (c *Client) LoadCategories(ctx context.Context) ([]catalog.Category, error) {
	var out []catalog.Category
	if err := c.call(ctx, http.MethodGet, "/categories/", "/categories/", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	return out, nil
}

// LoadFilters fetches the raw filter metadata of a category.
func (c *Client) LoadFilters(ctx context.Context, categoryID int) ([]catalog.FilterRecord, error) {
	var raw []json.RawMessage
	path := fmt.Sprintf("/categories/%d/filters", categoryID)
	if err := c.call(ctx, http.MethodGet, path, "/categories/{id}/filters", nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("load filters for category %d: %w", categoryID, err)
	}

	out := make([]catalog.FilterRecord, 0, len(raw))
	for i, elem := range raw {
		var rec catalog.FilterRecord
		if err := json.Unmarshal(elem, &rec); err != nil {
			// Kept so normalization reports it alongside the other rejects.
			c.logger.Warn().Err(err).Int("category_id", categoryID).Int("index", i).Msg("Undecodable filter record")
			rec = catalog.FilterRecord{Raw: string(elem)}
		}
		out = append(out, rec)
	}
	return out, nil
}

// LoadProducts fetches the products of a category, optionally narrowed by
// a server-side search term.
func (c *Client) LoadProducts(ctx context.Context, categoryID int, search string) ([]catalog.Product, error) {
	var query url.Values
	if search != "" {
		query = url.Values{"search": []string{search}}
	}
	var out []catalog.Product
	path := fmt.Sprintf("/categories/%d/products", categoryID)
	if err := c.call(ctx, http.MethodGet, path, "/categories/{id}/products", query, nil, &out); err != nil {
		return nil, fmt.Errorf("load products for category %d: %w", categoryID, err)
	}
	return out, nil
}

// LoadProduct fetches a single product.
func (c *Client) LoadProduct(ctx context.Context, productID int) (*catalog.Product, error) {
	var out catalog.Product
	path := fmt.Sprintf("/products/%d", productID)
	if err := c.call(ctx, http.MethodGet, path, "/products/{id}", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("load product %d: %w", productID, err)
	}
	return &out, nil
}

// LoadProfile fetches the authenticated user's profile.
func (c *Client) LoadProfile(ctx context.Context) (*catalog.Profile, error) {
	var out catalog.Profile
	if err := c.call(ctx, http.MethodGet, "/profile", "/profile", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &out, nil
}

// LoadOrders fetches the authenticated user's order history.
func (c *Client) LoadOrders(ctx context.Context) ([]catalog.Order, error) {
	var out []catalog.Order
	if err := c.call(ctx, http.MethodGet, "/user/orders", "/user/orders", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	if out == nil {
		out = []catalog.Order{}
	}
	return out, nil
}

// LoadCart fetches the current cart lines.
func (c *Client) LoadCart(ctx context.Context) (*catalog.Cart, error) {
	var lines []catalog.CartLine
	if err := c.call(ctx, http.MethodGet, "/cart/", "/cart/", nil, nil, &lines); err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if lines == nil {
		lines = []catalog.CartLine{}
	}
	return &catalog.Cart{Lines: lines}, nil
}

// AddToCart adds quantity units of a product.
func (c *Client) AddToCart(ctx context.Context, productID, quantity int) error {
	body := map[string]int{"productId": productID, "quantity": quantity}
	if err := c.call(ctx, http.MethodPost, "/cart/", "/cart/", nil, body, nil); err != nil {
		return fmt.Errorf("add product %d to cart: %w", productID, err)
	}
	return nil
}

// UpdateCartItem sets the quantity of a cart line.
func (c *Client) UpdateCartItem(ctx context.Context, lineID, quantity int) error {
	body := map[string]int{"itemId": lineID, "quantity": quantity}
	if err := c.call(ctx, http.MethodPut, "/cart/", "/cart/", nil, body, nil); err != nil {
		return fmt.Errorf("update cart line %d: %w", lineID, err)
	}
	return nil
}

// RemoveFromCart deletes a cart line.
func (c *Client) RemoveFromCart(ctx context.Context, lineID int) error {
	query := url.Values{"itemId": []string{strconv.Itoa(lineID)}}
	if err := c.call(ctx, http.MethodDelete, "/cart/", "/cart/", query, nil, nil); err != nil {
		return fmt.Errorf("remove cart line %d: %w", lineID, err)
	}
	return nil
}

// Logout ends the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.call(ctx, http.MethodGet, "/user/logout", "/user/logout", nil, nil, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// LoginURL is the interactive login entry point callers navigate to on
// ClassUnauthorized.
func (c *Client) LoginURL() string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + LoginPath
	u.RawQuery = ""
	return u.String()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}


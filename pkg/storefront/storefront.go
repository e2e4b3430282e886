// Package storefront wires the API client, the session caches, the cart
// synchronizer and the filter engine into the surface UI consumers use.
package storefront

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Sternrassler/storefront-client/pkg/auth"
	"github.com/Sternrassler/storefront-client/pkg/cache"
	"github.com/Sternrassler/storefront-client/pkg/cart"
	"github.com/Sternrassler/storefront-client/pkg/catalog"
	"github.com/Sternrassler/storefront-client/pkg/client"
	"github.com/Sternrassler/storefront-client/pkg/filter"
	"github.com/Sternrassler/storefront-client/pkg/logging"
	"github.com/Sternrassler/storefront-client/pkg/prefetch"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the storefront configuration.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:5000/api".
	BaseURL   string
	UserAgent string

	// Timeout is the single request timeout (default client.DefaultTimeout).
	Timeout time.Duration

	// Retry applies to reads only.
	Retry client.RetryConfig

	// Store persists the auth and cart sessions. Defaults to memory.
	Store cache.Store

	Prefetch prefetch.Config

	// OnLoginRedirect receives the login URL whenever an operation
	// classifies as unauthorized. The storefront never navigates itself.
	OnLoginRedirect func(loginURL string)

	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// DefaultConfig returns a default configuration for baseURL.
func DefaultConfig(baseURL string) Config {
	clientCfg := client.DefaultConfig(baseURL)
	return Config{
		BaseURL:   baseURL,
		UserAgent: clientCfg.UserAgent,
		Timeout:   clientCfg.Timeout,
		Retry:     clientCfg.Retry,
		Prefetch:  prefetch.DefaultConfig(),
	}
}

// Storefront is the application service. Construct one at startup, call
// Start when consumers mount and Close at shutdown.
type Storefront struct {
	api      *client.Client
	auth     *auth.Service
	cartData *cache.Session[catalog.Cart]
	cart     *cart.Synchronizer
	loader   *prefetch.Loader
	logger   zerolog.Logger
	onLogin  func(string)

	mu       sync.Mutex
	view     *CategoryView
	warmed   map[int]prefetch.Category
	unmounts []func()
}

// New creates a storefront service.
func New(cfg Config) (*Storefront, error) {
	logger := log.With().Str("component", logging.ComponentStorefront).Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	clientCfg := client.DefaultConfig(cfg.BaseURL)
	if cfg.UserAgent != "" {
		clientCfg.UserAgent = cfg.UserAgent
	}
	if cfg.Timeout > 0 {
		clientCfg.Timeout = cfg.Timeout
	}
	if cfg.Retry.MaxAttempts > 0 {
		clientCfg.Retry = cfg.Retry
	}
	clientCfg.HTTPClient = cfg.HTTPClient
	clientCfg.Logger = &logger

	api, err := client.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	s := &Storefront{
		api:     api,
		logger:  logger,
		onLogin: cfg.OnLoginRedirect,
		warmed:  make(map[int]prefetch.Category),
	}

	scope := ""
	if u, err := url.Parse(cfg.BaseURL); err == nil {
		scope = u.Host
	}

	s.cartData, err = cart.NewCache(cart.CacheConfig{
		Load:       api.LoadCart,
		Store:      cfg.Store,
		Scope:      scope,
		OnRedirect: s.redirectToLogin,
		Logger:     &logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create cart cache: %w", err)
	}

	s.cart, err = cart.New(cart.Config{
		API:             api,
		Cache:           s.cartData,
		OnLoginRequired: s.redirectToLogin,
		Logger:          &logger,
	})
	if err != nil {
		s.cartData.Close()
		return nil, fmt.Errorf("create cart synchronizer: %w", err)
	}

	s.auth, err = auth.New(auth.Config{
		API:        api,
		Store:      cfg.Store,
		Scope:      scope,
		Dependents: []auth.Invalidator{s.cartData},
		Logger:     &logger,
	})
	if err != nil {
		s.cartData.Close()
		return nil, fmt.Errorf("create auth service: %w", err)
	}

	s.loader = prefetch.NewLoader(api, cfg.Prefetch).WithLogger(logger)
	return s, nil
}

// Start mounts the auth and cart caches so they refresh periodically and
// starts their first load in the background.
func (s *Storefront) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.unmounts) > 0 {
		return
	}

	s.unmounts = append(s.unmounts, s.auth.Session().Mount(), s.cartData.Mount())
	s.auth.Current()
	s.cartData.Read()
}

// Close stops background refreshes and releases connections.
func (s *Storefront) Close() error {
	s.mu.Lock()
	unmounts := s.unmounts
	s.unmounts = nil
	s.mu.Unlock()

	for _, unmount := range unmounts {
		unmount()
	}

	authErr := s.auth.Close()
	cartErr := s.cartData.Close()
	apiErr := s.api.Close()

	for _, err := range []error{authErr, cartErr, apiErr} {
		if err != nil {
			return err
		}
	}
	return nil
}

// API exposes the underlying client.
func (s *Storefront) API() *client.Client {
	return s.api
}

// Auth exposes the identity service.
func (s *Storefront) Auth() *auth.Service {
	return s.auth
}

// Cart returns the cart mutation API.
func (s *Storefront) Cart() *cart.Synchronizer {
	return s.cart
}

// GetAuth returns the cached identity without blocking.
func (s *Storefront) GetAuth() cache.Snapshot[catalog.Profile] {
	return s.auth.Current()
}

// GetCart returns the cached cart without blocking. The value is never
// nil: an unknown or absent cart reads as empty.
func (s *Storefront) GetCart() cache.Snapshot[catalog.Cart] {
	snap := s.cartData.Read()
	if snap.Value == nil {
		snap.Value = &catalog.Cart{Lines: []catalog.CartLine{}}
	}
	return snap
}

// LoadCart returns the cart, waiting for a load when the cached copy is
// not fresh.
func (s *Storefront) LoadCart(ctx context.Context) (cache.Snapshot[catalog.Cart], error) {
	snap, err := s.cartData.Get(ctx)
	if snap.Value == nil {
		snap.Value = &catalog.Cart{Lines: []catalog.CartLine{}}
	}
	return snap, err
}

// LoginURL is where callers navigate on a login redirect.
func (s *Storefront) LoginURL() string {
	return s.api.LoginURL()
}

// Logout ends the session and clears the auth and cart caches.
func (s *Storefront) Logout(ctx context.Context) error {
	return s.auth.Logout(ctx)
}

// Orders returns the user's order history. An anonymous session runs
// the login redirect and returns the unauthorized error.
func (s *Storefront) Orders(ctx context.Context) ([]catalog.Order, error) {
	orders, err := s.api.LoadOrders(ctx)
	if err != nil {
		if client.ClassOf(err) == client.ClassUnauthorized {
			s.redirectToLogin()
		}
		return nil, err
	}
	return orders, nil
}

// Product loads a single product.
func (s *Storefront) Product(ctx context.Context, productID int) (*catalog.Product, error) {
	return s.api.LoadProduct(ctx, productID)
}

// Categories returns the category list. When the API is unreachable the
// demo categories are returned instead of an error.
func (s *Storefront) Categories(ctx context.Context) ([]catalog.Category, error) {
	categories, err := s.api.LoadCategories(ctx)
	if err == nil {
		return categories, nil
	}

	if client.ClassOf(err) == client.ClassUnreachable {
		s.logger.Warn().Err(err).Msg("API unreachable, serving demo categories")
		return catalog.DemoCategories(), nil
	}
	return nil, err
}

// GetFilterSpecs loads and normalizes the filters of a category.
func (s *Storefront) GetFilterSpecs(ctx context.Context, categoryID int) (filter.Result, error) {
	records, err := s.api.LoadFilters(ctx, categoryID)
	if err != nil {
		return filter.Result{}, err
	}

	result := filter.Normalize(records)
	for _, diag := range result.Diagnostics {
		s.logger.Debug().Int("category_id", categoryID).Str("diagnostic", diag).Msg("Filter record rejected")
	}
	return result, nil
}

// ApplyFilters filters products against the open category's specs.
// Without an open category every selection is evaluated heuristically.
func (s *Storefront) ApplyFilters(products []catalog.Product, sel filter.Selection) []catalog.Product {
	var specs []filter.Spec
	if view := s.CurrentView(); view != nil {
		specs = view.Specs()
	}
	return filter.ApplyAll(products, specs, sel)
}

// OpenCategory loads a category's filters and products and makes it the
// current view. The previous view's specs and selection are discarded.
func (s *Storefront) OpenCategory(ctx context.Context, categoryID int) (*CategoryView, error) {
	s.mu.Lock()
	data, ok := s.warmed[categoryID]
	delete(s.warmed, categoryID)
	s.mu.Unlock()

	if !ok {
		var err error
		data, err = s.loader.LoadCategory(ctx, categoryID)
		if err != nil {
			return nil, fmt.Errorf("open category %d: %w", categoryID, err)
		}
	}

	view := newCategoryView(data)

	s.mu.Lock()
	s.view = view
	s.mu.Unlock()

	s.logger.Debug().
		Int("category_id", categoryID).
		Int("specs", len(data.Specs)).
		Int("products", len(data.Products)).
		Msg("Category opened")
	return view, nil
}

// CurrentView returns the open category, or nil.
func (s *Storefront) CurrentView() *CategoryView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Warm prefetches several categories in parallel so a later OpenCategory
// does not hit the network. It returns the first error; categories that
// loaded are kept.
func (s *Storefront) Warm(ctx context.Context, categoryIDs []int) error {
	loaded, err := s.loader.Warm(ctx, categoryIDs)

	s.mu.Lock()
	for id, data := range loaded {
		s.warmed[id] = data
	}
	s.mu.Unlock()

	return err
}

func (s *Storefront) redirectToLogin() {
	if s.onLogin != nil {
		s.onLogin(s.api.LoginURL())
	}
}

package cart

import (
	"context"

	"github.com/Sternrassler/storefront-client/pkg/cache"
	"github.com/Sternrassler/storefront-client/pkg/catalog"
	"github.com/Sternrassler/storefront-client/pkg/client"
	"github.com/rs/zerolog"
)

// Policy is the failure policy of the cart cache. A missing cart is an
// empty cart; an anonymous session asks for login without dropping what
// is shown.
func Policy() cache.Policy {
	return cache.Policy{
		client.ClassNotFound:     cache.ClearToAbsent,
		client.ClassUnauthorized: cache.RedirectToLogin,
	}
}

// CacheConfig configures the cart session cache.
type CacheConfig struct {
	Load       func(ctx context.Context) (*catalog.Cart, error)
	Store      cache.Store
	Scope      string
	OnRedirect func()
	Logger     *zerolog.Logger
}

// NewCache creates the cart session cache. Reads before the first load
// see an empty cart.
func NewCache(cfg CacheConfig) (*cache.Session[catalog.Cart], error) {
	return cache.New(cache.Config[catalog.Cart]{
		Name:       "cart",
		Key:        cache.CartKey.WithScope(cfg.Scope),
		Load:       cfg.Load,
		Store:      cfg.Store,
		Policy:     Policy(),
		OnRedirect: cfg.OnRedirect,
		Default:    &catalog.Cart{Lines: []catalog.CartLine{}},
		Logger:     cfg.Logger,
	})
}

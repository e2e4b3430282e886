// Package cart sequences cart mutations through the cart session cache so
// the visible cart never lags behind the last successful write.
package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sternrassler/storefront-client/pkg/cache"
	"github.com/Sternrassler/storefront-client/pkg/catalog"
	"github.com/Sternrassler/storefront-client/pkg/client"
	"github.com/Sternrassler/storefront-client/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// API is the remote cart write surface.
type API interface {
	AddToCart(ctx context.Context, productID, quantity int) error
	UpdateCartItem(ctx context.Context, lineID, quantity int) error
	RemoveFromCart(ctx context.Context, lineID int) error
}

// Cache is the cart session cache the synchronizer refreshes.
type Cache interface {
	Refresh(ctx context.Context) (*catalog.Cart, error)
	Peek() cache.Snapshot[catalog.Cart]
	Invalidate(ctx context.Context) error
}

// Config holds the synchronizer configuration.
type Config struct {
	API   API
	Cache Cache

	// OnLoginRequired runs when a mutation is rejected as unauthorized.
	OnLoginRequired func()

	Logger *zerolog.Logger
}

// Synchronizer serializes cart mutations. Each successful write is
// followed by a cache refresh before the next mutation is accepted.
type Synchronizer struct {
	mu     sync.Mutex
	api    API
	cache  Cache
	onAuth func()
	logger zerolog.Logger
}

// New creates a cart synchronizer.
func New(cfg Config) (*Synchronizer, error) {
	if cfg.API == nil {
		return nil, fmt.Errorf("cart api is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cart cache is required")
	}

	logger := log.With().Str("component", logging.ComponentCart).Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Synchronizer{
		api:    cfg.API,
		cache:  cfg.Cache,
		onAuth: cfg.OnLoginRequired,
		logger: logger,
	}, nil
}

// Add puts quantity units of a product into the cart.
func (s *Synchronizer) Add(ctx context.Context, productID, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("add product %d: %w", productID, ErrInvalidQuantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate(ctx, "add", productID, func() error {
		return s.api.AddToCart(ctx, productID, quantity)
	})
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less
// removes the line.
func (s *Synchronizer) UpdateQuantity(ctx context.Context, lineID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		return s.mutate(ctx, "remove", lineID, func() error {
			return s.api.RemoveFromCart(ctx, lineID)
		})
	}
	return s.mutate(ctx, "update", lineID, func() error {
		return s.api.UpdateCartItem(ctx, lineID, quantity)
	})
}

// Remove deletes a line from the cart.
func (s *Synchronizer) Remove(ctx context.Context, lineID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate(ctx, "remove", lineID, func() error {
		return s.api.RemoveFromCart(ctx, lineID)
	})
}

// Clear removes every current line one by one. It is not atomic: on a
// failure the lines removed so far stay removed and a *ClearError lists
// the lines that remain.
func (s *Synchronizer) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.currentCart(ctx)
	if err != nil {
		mutationsTotal.WithLabelValues("clear", "error").Inc()
		return fmt.Errorf("clear cart: %w", err)
	}

	ids := current.LineIDs()
	removed := make([]int, 0, len(ids))

	for i, id := range ids {
		err := s.api.RemoveFromCart(ctx, id)
		if err != nil && client.ClassOf(err) != client.ClassNotFound {
			mutErr := s.fail("clear", id, err)
			s.refresh(ctx)
			return &ClearError{
				Removed:   removed,
				Remaining: append([]int(nil), ids[i:]...),
				Err:       mutErr,
			}
		}
		// A line that is already gone counts as removed.
		removed = append(removed, id)
	}

	mutationsTotal.WithLabelValues("clear", "ok").Inc()
	s.logger.Info().Int("lines", len(removed)).Msg("Cart cleared")

	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to invalidate cart cache")
	}
	s.refresh(ctx)
	return nil
}

// currentCart returns the cached cart. Unknown and stale carts are
// reloaded first; a stale cart is used as-is only when the reload fails.
func (s *Synchronizer) currentCart(ctx context.Context) (catalog.Cart, error) {
	snap := s.cache.Peek()
	switch snap.State {
	case cache.StateEmpty, cache.StateLoading, cache.StateStale:
		value, err := s.cache.Refresh(ctx)
		if err != nil {
			if snap.State == cache.StateStale && snap.Value != nil {
				s.logger.Warn().Err(err).Msg("Cart reload failed, clearing stale lines")
				return *snap.Value, nil
			}
			return catalog.Cart{}, err
		}
		if value == nil {
			return catalog.Cart{}, nil
		}
		return *value, nil
	}
	if snap.Value == nil {
		return catalog.Cart{}, nil
	}
	return *snap.Value, nil
}

func (s *Synchronizer) mutate(ctx context.Context, op string, id int, write func() error) error {
	if err := write(); err != nil {
		return s.fail(op, id, err)
	}

	mutationsTotal.WithLabelValues(op, "ok").Inc()
	s.logger.Info().Str("op", op).Int("id", id).Msg("Cart mutation applied")

	s.refresh(ctx)
	return nil
}

// fail classifies a rejected write and runs the login hook when needed.
func (s *Synchronizer) fail(op string, id int, err error) error {
	class := client.ClassOf(err)
	mutErr := &MutationError{Op: op, ID: id, Class: class, Err: err}

	if class == client.ClassUnauthorized {
		mutationsTotal.WithLabelValues(op, "login_required").Inc()
		s.logger.Info().Str("op", op).Int("id", id).Msg("Cart mutation requires login")
		if s.onAuth != nil {
			s.onAuth()
		}
		return mutErr
	}

	mutationsTotal.WithLabelValues(op, "error").Inc()
	s.logger.Warn().
		Err(err).
		Str("op", op).
		Int("id", id).
		Str("error_class", string(class)).
		Msg("Cart mutation failed")
	return mutErr
}

// refresh reloads the cart after a write. A failed refresh leaves the
// cache stale; the write itself already succeeded.
func (s *Synchronizer) refresh(ctx context.Context) {
	if _, err := s.cache.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Cart refresh after mutation failed")
	}
}

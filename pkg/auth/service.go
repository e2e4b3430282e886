// Package auth owns the identity session: the cached profile of the
// logged in user, logout, and route guard decisions.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/storefront-client/pkg/cache"
	"github.com/Sternrassler/storefront-client/pkg/catalog"
	"github.com/Sternrassler/storefront-client/pkg/client"
	"github.com/Sternrassler/storefront-client/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// API is the identity surface of the storefront API.
type API interface {
	LoadProfile(ctx context.Context) (*catalog.Profile, error)
	Logout(ctx context.Context) error
}

// Invalidator is a cache that logout must clear, e.g. the cart.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Policy is the failure policy of the identity cache: 401 and 404 from
// the profile endpoint confirm that nobody is logged in.
func Policy() cache.Policy {
	return cache.Policy{
		client.ClassUnauthorized: cache.ClearToAbsent,
		client.ClassNotFound:     cache.ClearToAbsent,
	}
}

// Config holds the auth service configuration.
type Config struct {
	API   API
	Store cache.Store

	// Scope partitions the durable record, e.g. by API host.
	Scope string

	// Dependents are invalidated on logout.
	Dependents []Invalidator

	Logger *zerolog.Logger
}

// Service is the process-wide identity session.
type Service struct {
	api        API
	profile    *cache.Session[catalog.Profile]
	dependents []Invalidator
	logger     zerolog.Logger
}

// New creates the auth service. Nothing is loaded until the first read.
func New(cfg Config) (*Service, error) {
	if cfg.API == nil {
		return nil, fmt.Errorf("auth api is required")
	}

	logger := log.With().Str("component", logging.ComponentAuth).Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	profile, err := cache.New(cache.Config[catalog.Profile]{
		Name:   "auth",
		Key:    cache.AuthKey.WithScope(cfg.Scope),
		Load:   cfg.API.LoadProfile,
		Store:  cfg.Store,
		Policy: Policy(),
		Logger: &logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create auth cache: %w", err)
	}

	return &Service{
		api:        cfg.API,
		profile:    profile,
		dependents: cfg.Dependents,
		logger:     logger,
	}, nil
}

// Session exposes the underlying profile cache.
func (s *Service) Session() *cache.Session[catalog.Profile] {
	return s.profile
}

// Current returns the cached identity without blocking.
func (s *Service) Current() cache.Snapshot[catalog.Profile] {
	return s.profile.Read()
}

// Profile returns the logged in user, refreshing when the cached identity
// is not fresh. A nil profile with a nil error means nobody is logged in.
func (s *Service) Profile(ctx context.Context) (*catalog.Profile, error) {
	snap, err := s.profile.Get(ctx)
	return snap.Value, err
}

// Authorize runs the route guard against the cached identity.
func (s *Service) Authorize(requireAuth bool, roles ...string) Decision {
	return Guard(s.profile.Read(), requireAuth, roles...)
}

// Logout ends the server session and clears the identity and every
// dependent cache. Local state is cleared even when the remote call
// fails; that failure is still returned.
func (s *Service) Logout(ctx context.Context) error {
	remoteErr := s.api.Logout(ctx)
	switch client.ClassOf(remoteErr) {
	case "", client.ClassUnauthorized, client.ClassNotFound:
		// Already logged out counts as success.
		remoteErr = nil
		s.profile.Set(nil)
	default:
		s.logger.Warn().Err(remoteErr).Msg("Remote logout failed, clearing local session")
		if err := s.profile.Invalidate(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Failed to invalidate auth cache")
		}
	}

	var errs []error
	if remoteErr != nil {
		errs = append(errs, remoteErr)
	}
	for _, dep := range s.dependents {
		if err := dep.Invalidate(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.Info().Msg("Logged out")
	return errors.Join(errs...)
}

// Close stops the identity cache.
func (s *Service) Close() error {
	return s.profile.Close()
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/storefront-client/pkg/client"
	"github.com/Sternrassler/storefront-client/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a fetched value counts as fresh.
const DefaultTTL = 10 * time.Minute

// storeTimeout bounds durable store writes that outlive the caller.
const storeTimeout = 5 * time.Second

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session cache closed")

	// ErrDiscarded is returned when a refresh completed after Invalidate
	// and its result was dropped.
	ErrDiscarded = errors.New("refresh result discarded")
)

// Loader fetches the current value. A nil value with a nil error means
// the server confirmed the object does not exist.
type Loader[T any] func(ctx context.Context) (*T, error)

// Reaction is how a session responds to a failed refresh.
type Reaction int

const (
	// KeepStale leaves the cached value untouched and returns the error.
	KeepStale Reaction = iota

	// ClearToAbsent replaces the value with a confirmed absence.
	ClearToAbsent

	// RedirectToLogin calls the redirect hook without touching the value.
	RedirectToLogin
)

// String returns the metric label of the reaction.
func (r Reaction) String() string {
	switch r {
	case ClearToAbsent:
		return "cleared"
	case RedirectToLogin:
		return "redirect"
	default:
		return "kept_stale"
	}
}

// Policy maps failure classes to reactions. Classes not present keep
// the stale value.
type Policy map[client.ErrorClass]Reaction

// State is the observable state of a session entry.
type State string

const (
	StateEmpty   State = "empty"
	StateLoading State = "loading"
	StateFresh   State = "fresh"
	StateStale   State = "stale"
	StateAbsent  State = "absent"
)

// Snapshot is the result of a non-blocking read.
type Snapshot[T any] struct {
	// Value is the last known value, the configured default when nothing
	// was ever confirmed, or nil for a confirmed absence. Callers must not
	// modify it.
	Value *T

	// IsFresh is true when the value was confirmed within the TTL.
	IsFresh bool

	State     State
	FetchedAt time.Time

	// LastErr is the error of the last failed refresh that kept stale data.
	LastErr error
}

// Config holds the session cache configuration.
type Config[T any] struct {
	// Name labels logs and metrics, e.g. "auth" or "cart".
	Name string

	// Key of the durable record. Defaults to Key{Name: Name}.
	Key Key

	// Load fetches the value. Required.
	Load Loader[T]

	// Store persists entries. Defaults to a MemoryStore.
	Store Store

	// TTL defaults to DefaultTTL.
	TTL time.Duration

	// RefreshInterval is the period of the mounted refresher. Defaults to TTL.
	RefreshInterval time.Duration

	// Policy decides what a failed refresh does to the cached value.
	Policy Policy

	// OnRedirect runs when a refresh fails with a RedirectToLogin reaction.
	OnRedirect func()

	// Default is returned by reads while nothing was ever confirmed.
	Default *T

	// Now defaults to time.Now.
	Now func() time.Time

	Logger *zerolog.Logger
}

// Session is a TTL-backed cache of one remote object. It serves the last
// known value immediately, refreshes in the background once the TTL has
// elapsed and runs at most one load at a time.
type Session[T any] struct {
	cfg    Config[T]
	key    Key
	logger zerolog.Logger
	group  singleflight.Group

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	hydrateOnce sync.Once
	persistMu   sync.Mutex

	mu         sync.Mutex
	value      *T
	fetchedAt  time.Time
	lastErr    error
	generation uint64
	inflight   int
	scheduled  bool
	closed     bool
	mounts     int
	stopTicker func()
}

// New creates a session cache. Nothing is loaded until the first read.
func New[T any](cfg Config[T]) (*Session[T], error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("session name is required")
	}
	if cfg.Load == nil {
		return nil, fmt.Errorf("session loader is required")
	}
	if cfg.Key == (Key{}) {
		cfg.Key = Key{Name: cfg.Name}
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = cfg.TTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	logger := log.With().Str("component", logging.ComponentSession).Str("cache", cfg.Name).Logger()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("cache", cfg.Name).Logger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session[T]{
		cfg:    cfg,
		key:    cfg.Key,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Name returns the cache name.
func (s *Session[T]) Name() string {
	return s.cfg.Name
}

// Read returns the cached value without blocking on the network. When the
// value is not fresh a background refresh is started unless one is
// already running.
func (s *Session[T]) Read() Snapshot[T] {
	s.hydrate()

	s.mu.Lock()
	snap := s.snapshotLocked()
	if !snap.IsFresh && !s.closed && s.inflight == 0 && !s.scheduled {
		s.scheduled = true
		s.wg.Add(1)
		go s.backgroundRefresh()
		if snap.State == StateEmpty {
			snap.State = StateLoading
		}
	}
	s.mu.Unlock()

	SessionReads.WithLabelValues(s.cfg.Name, string(snap.State)).Inc()
	return snap
}

// Peek returns the cached value without starting a refresh.
func (s *Session[T]) Peek() Snapshot[T] {
	s.hydrate()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Get returns a fresh snapshot, blocking on a refresh when the cached
// value is not fresh. On a failed refresh the returned snapshot still
// carries whatever value the failure policy left in place.
func (s *Session[T]) Get(ctx context.Context) (Snapshot[T], error) {
	if snap := s.Peek(); snap.IsFresh {
		SessionReads.WithLabelValues(s.cfg.Name, string(snap.State)).Inc()
		return snap, nil
	}

	_, err := s.Refresh(ctx)
	snap := s.Peek()
	SessionReads.WithLabelValues(s.cfg.Name, string(snap.State)).Inc()
	return snap, err
}

// Refresh loads the value now. Concurrent refreshes share one load.
// Failures are handled according to the configured Policy; only
// KeepStale reactions return an error.
func (s *Session[T]) Refresh(ctx context.Context) (*T, error) {
	s.hydrate()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.wg.Add(1)
	s.mu.Unlock()

	ch := s.group.DoChan(s.key.String(), func() (any, error) {
		return s.load()
	})

	select {
	case <-ctx.Done():
		// The shared load keeps running for other callers.
		go func() {
			<-ch
			s.wg.Done()
		}()
		return nil, ctx.Err()
	case res := <-ch:
		s.wg.Done()
		if res.Err != nil {
			return nil, res.Err
		}
		value, _ := res.Val.(*T)
		return value, nil
	}
}

// Invalidate clears the cached value and its durable record. A refresh
// in flight is allowed to finish but its result is dropped.
func (s *Session[T]) Invalidate(ctx context.Context) error {
	// Hydration after this point would resurrect the deleted record.
	s.hydrateOnce.Do(func() {})

	s.mu.Lock()
	s.generation++
	s.value = nil
	s.fetchedAt = time.Time{}
	s.lastErr = nil
	s.mu.Unlock()

	s.group.Forget(s.key.String())

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if err := s.cfg.Store.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("invalidate %s session: %w", s.cfg.Name, err)
	}

	s.logger.Debug().Msg("Session invalidated")
	return nil
}

// Set records value as confirmed now, replacing the cached value and
// dropping any refresh in flight. A nil value records a confirmed absence.
func (s *Session[T]) Set(value *T) {
	s.hydrateOnce.Do(func() {})
	now := s.cfg.Now()

	s.mu.Lock()
	s.generation++
	s.value = value
	s.fetchedAt = now
	s.lastErr = nil
	s.mu.Unlock()

	s.group.Forget(s.key.String())
	s.persist(value, now)
}

// Mount registers a consumer. While at least one consumer is mounted the
// session refreshes itself every RefreshInterval. The returned function
// unmounts the consumer; calling it more than once has no effect.
func (s *Session[T]) Mount() (unmount func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return func() {}
	}

	s.mounts++
	if s.mounts == 1 {
		s.startRefresherLocked()
	}

	var once sync.Once
	return func() {
		once.Do(s.unmount)
	}
}

// Close stops the refresher and waits for background work. Loads that
// complete after Close are discarded.
func (s *Session[T]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mounts = 0
	stop := s.stopTicker
	s.stopTicker = nil
	s.mu.Unlock()

	s.cancel()
	if stop != nil {
		stop()
	}
	s.wg.Wait()
	return nil
}

func (s *Session[T]) unmount() {
	s.mu.Lock()
	var stop func()
	if s.mounts > 0 {
		s.mounts--
		if s.mounts == 0 {
			stop, s.stopTicker = s.stopTicker, nil
		}
	}
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (s *Session[T]) startRefresherLocked() {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		s.refreshLoop(ctx)
	}()

	s.stopTicker = func() {
		cancel()
		<-done
	}
}

func (s *Session[T]) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Debug().Err(err).Msg("Periodic refresh failed")
			}
		}
	}
}

func (s *Session[T]) backgroundRefresh() {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.scheduled = false
		s.mu.Unlock()
	}()

	if _, err := s.Refresh(s.ctx); err != nil && !errors.Is(err, ErrClosed) && s.ctx.Err() == nil {
		s.logger.Debug().Err(err).Msg("Background refresh failed")
	}
}

// load runs one loader call and applies its outcome.
func (s *Session[T]) load() (any, error) {
	s.mu.Lock()
	gen := s.generation
	s.inflight++
	s.mu.Unlock()

	value, err := s.cfg.Load(s.ctx)
	now := s.cfg.Now()

	s.mu.Lock()
	s.inflight--
	if s.closed {
		s.mu.Unlock()
		SessionRefreshes.WithLabelValues(s.cfg.Name, "discarded").Inc()
		return nil, ErrClosed
	}
	if gen != s.generation {
		s.mu.Unlock()
		SessionRefreshes.WithLabelValues(s.cfg.Name, "discarded").Inc()
		s.logger.Debug().Msg("Dropping refresh result after invalidation")
		return nil, ErrDiscarded
	}

	if err == nil {
		s.value, s.fetchedAt, s.lastErr = value, now, nil
		s.mu.Unlock()

		result := "ok"
		if value == nil {
			result = "absent"
		}
		SessionRefreshes.WithLabelValues(s.cfg.Name, result).Inc()
		s.logger.Debug().Str("result", result).Msg("Session refreshed")

		s.persist(value, now)
		return value, nil
	}

	class := client.ClassOf(err)
	reaction := s.cfg.Policy[class]
	SessionRefreshes.WithLabelValues(s.cfg.Name, reaction.String()).Inc()

	switch reaction {
	case ClearToAbsent:
		s.value, s.fetchedAt, s.lastErr = nil, now, nil
		s.mu.Unlock()

		s.logger.Info().Str("error_class", string(class)).Msg("Session confirmed absent")
		s.persist(nil, now)
		return nil, nil

	case RedirectToLogin:
		current := s.value
		s.mu.Unlock()

		s.logger.Info().Str("error_class", string(class)).Msg("Session requires login")
		if s.cfg.OnRedirect != nil {
			s.cfg.OnRedirect()
		}
		return current, nil

	default:
		s.lastErr = err
		stale := s.value != nil
		s.mu.Unlock()

		s.logger.Warn().
			Err(err).
			Str("error_class", string(class)).
			Bool("serving_stale", stale).
			Msg("Session refresh failed")
		return nil, fmt.Errorf("refresh %s session: %w", s.cfg.Name, err)
	}
}

// persist writes the entry unless a newer state replaced it meanwhile.
func (s *Session[T]) persist(value *T, fetchedAt time.Time) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	current := s.fetchedAt.Equal(fetchedAt)
	s.mu.Unlock()
	if !current {
		return
	}

	entry, err := NewEntry(value, fetchedAt)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode session entry")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), storeTimeout)
	defer cancel()
	if err := s.cfg.Store.Save(ctx, s.key, entry); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist session entry")
	}
}

// hydrate loads the durable record once.
func (s *Session[T]) hydrate() {
	s.hydrateOnce.Do(func() {
		ctx, cancel := context.WithTimeout(s.ctx, storeTimeout)
		defer cancel()

		entry, err := s.cfg.Store.Load(ctx, s.key)
		if err != nil {
			if !errors.Is(err, ErrCacheMiss) {
				s.logger.Warn().Err(err).Msg("Ignoring unreadable session entry")
				if errors.Is(err, ErrInvalidEntry) {
					_ = s.cfg.Store.Delete(ctx, s.key)
				}
			}
			return
		}
		if entry.IsEmpty() {
			return
		}

		value, err := decodeValue[T](entry.Value)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Ignoring undecodable session entry")
			_ = s.cfg.Store.Delete(ctx, s.key)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.fetchedAt.IsZero() {
			s.value = value
			s.fetchedAt = entry.FetchedTime()
		}
	})
}

func (s *Session[T]) snapshotLocked() Snapshot[T] {
	snap := Snapshot[T]{
		Value:     s.value,
		FetchedAt: s.fetchedAt,
		LastErr:   s.lastErr,
	}

	switch {
	case s.fetchedAt.IsZero():
		snap.Value = s.cfg.Default
		snap.State = StateEmpty
		if s.inflight > 0 || s.scheduled {
			snap.State = StateLoading
		}
	case s.cfg.Now().Sub(s.fetchedAt) >= s.cfg.TTL:
		snap.State = StateStale
	case s.value == nil:
		snap.State = StateAbsent
		snap.IsFresh = true
	default:
		snap.State = StateFresh
		snap.IsFresh = true
	}
	return snap
}

func decodeValue[T any](data json.RawMessage) (*T, error) {
	if isNull(data) {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &v, nil
}

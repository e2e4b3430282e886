package prefetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/storefront-client/pkg/catalog"
	"github.com/Sternrassler/storefront-client/pkg/filter"
	"github.com/Sternrassler/storefront-client/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds prefetch configuration
type Config struct {
	// MaxConcurrency is the maximum number of categories loaded at once
	MaxConcurrency int
	// Timeout per category load
	Timeout time.Duration
}

// DefaultConfig returns safe default configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// CategoryFetcher is the part of the API client a category load needs
type CategoryFetcher interface {
	LoadFilters(ctx context.Context, categoryID int) ([]catalog.FilterRecord, error)
	LoadProducts(ctx context.Context, categoryID int, search string) ([]catalog.Product, error)
}

// Category is one fully loaded category: normalized filter specs,
// normalization diagnostics and the product list.
type Category struct {
	CategoryID  int
	Specs       []filter.Spec
	Diagnostics []string
	Products    []catalog.Product
}

// Loader loads categories in parallel
type Loader struct {
	fetcher CategoryFetcher
	config  Config
	logger  zerolog.Logger
}

// NewLoader creates a new category loader
func NewLoader(fetcher CategoryFetcher, config Config) *Loader {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Loader{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", logging.ComponentPrefetch).Logger(),
	}
}

// WithLogger returns a copy of the loader that logs to logger
func (l *Loader) WithLogger(logger zerolog.Logger) *Loader {
	clone := *l
	clone.logger = logger
	return &clone
}

// LoadCategory fetches filters and products of one category concurrently
// and normalizes the filters.
func (l *Loader) LoadCategory(ctx context.Context, categoryID int) (Category, error) {
	ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	var (
		records  []catalog.FilterRecord
		products []catalog.Product
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = l.fetcher.LoadFilters(gCtx, categoryID)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = l.fetcher.LoadProducts(gCtx, categoryID, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return Category{}, err
	}

	result := filter.Normalize(records)
	for _, diag := range result.Diagnostics {
		l.logger.Debug().
			Int("category_id", categoryID).
			Str("diagnostic", diag).
			Msg("Filter record rejected")
	}

	return Category{
		CategoryID:  categoryID,
		Specs:       result.Specs,
		Diagnostics: result.Diagnostics,
		Products:    products,
	}, nil
}

// Warm loads every category in ids using the worker pool. It returns the
// categories that loaded, keyed by id, and the first error encountered.
func (l *Loader) Warm(ctx context.Context, ids []int) (map[int]Category, error) {
	start := time.Now()

	results := make(map[int]Category, len(ids))
	var resultsMu sync.Mutex

	var g errgroup.Group
	g.SetLimit(l.config.MaxConcurrency)

	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			category, err := l.LoadCategory(ctx, id)
			if err != nil {
				l.logger.Warn().
					Err(err).
					Int("category_id", id).
					Msg("Category prefetch failed")
				return fmt.Errorf("category %d: %w", id, err)
			}

			resultsMu.Lock()
			results[id] = category
			resultsMu.Unlock()
			return nil
		})
	}

	err := g.Wait()

	l.logger.Info().
		Int("requested", len(seen)).
		Int("loaded", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Prefetch complete")

	if err != nil {
		return results, fmt.Errorf("prefetch (partial data: %d/%d categories): %w", len(results), len(seen), err)
	}
	return results, nil
}

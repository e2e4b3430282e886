// Package cache provides the TTL-backed session cache used for the
// authenticated user profile and the shopping cart, and the durable
// stores its entries survive restarts in.
//
// A Session serves the last known value immediately and refreshes it in
// the background once the TTL (10 minutes by default) has elapsed:
//
// - Stale-but-valid data is preferred over emptying on transient failures
// - Failure reactions are chosen per instance by a Policy keyed on client.ErrorClass
// - Concurrent refreshes share one load (singleflight)
// - Results completing after Invalidate or Close are dropped
// - A periodic refresher runs only while consumers are mounted
//
// # Basic Usage
//
//	profiles, err := cache.New(cache.Config[catalog.Profile]{
//		Name:  "auth",
//		Key:   cache.AuthKey,
//		Load:  api.LoadProfile,
//		Store: cache.NewRedisStore(redisClient, 0),
//		Policy: cache.Policy{
//			client.ClassUnauthorized: cache.ClearToAbsent,
//			client.ClassNotFound:     cache.ClearToAbsent,
//		},
//	})
//
//	snap := profiles.Read() // never blocks on the network
//	if snap.State == cache.StateAbsent {
//		// confirmed logged out
//	}
//
// # Durable Stores
//
// Each entry is persisted as one record {value, fetchedAt} so value and
// timestamp cannot be written apart. Available stores:
//
//   - MemoryStore - process memory (default)
//   - SQLiteStore - local file via modernc.org/sqlite
//   - RedisStore  - shared Redis instance
//
// # Metrics
//
//   - storefront_session_reads_total{cache,state}
//   - storefront_session_refreshes_total{cache,result}
//   - storefront_session_store_errors_total{operation}
package cache

// Package prefetch loads filter metadata and products for several
// categories in parallel with a bounded worker pool.
//
// Each category is loaded as a unit: its filter records are normalized
// into filter specs and its product list is fetched alongside. Failed
// categories do not stop the others; Warm returns everything that loaded
// together with the first error.
//
// Usage:
//
//	loader := prefetch.NewLoader(apiClient, prefetch.DefaultConfig())
//	views, err := loader.Warm(ctx, []int{1, 2, 3})
//	if err != nil {
//		// views still holds the categories that loaded
//	}
package prefetch

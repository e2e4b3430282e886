// Package catalog holds the wire models exchanged with the storefront API:
// products with their tags and specs, categories, raw filter metadata,
// cart lines and the authenticated user profile.
//
// The types mirror the JSON shapes returned by the API and carry no
// behaviour beyond lookup helpers used by the filter engine.
package catalog

package cache

import "strings"

// keyPrefix namespaces every durable session record.
const keyPrefix = "storefront:session"

// Key identifies a durable session record.
type Key struct {
	// Name is the fixed record name, e.g. "auth" or "cart".
	Name string

	// Scope optionally partitions records, e.g. by API host, so two
	// backends sharing one store do not read each other's sessions.
	Scope string
}

// Fixed keys of the two process-wide session caches.
var (
	AuthKey = Key{Name: "auth"}
	CartKey = Key{Name: "cart"}
)

// WithScope returns a copy of k partitioned by scope.
func (k Key) WithScope(scope string) Key {
	k.Scope = scope
	return k
}

// String generates a deterministic key string.
// Format: storefront:session:name[:scope]
//
// Example:
//
//	storefront:session:cart:localhost:5000
func (k Key) String() string {
	parts := []string{keyPrefix}

	if name := strings.ToLower(strings.TrimSpace(k.Name)); name != "" {
		parts = append(parts, name)
	}
	if scope := strings.ToLower(strings.TrimSpace(k.Scope)); scope != "" {
		parts = append(parts, scope)
	}

	return strings.Join(parts, ":")
}

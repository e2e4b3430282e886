// Package filter implements the storefront's faceted product filtering:
// normalization of raw filter metadata into typed specs, the user's
// selection, and predicate evaluation over an already-loaded product list.
//
// Nothing in this package performs I/O or returns errors. Malformed input
// degrades to an omitted filter or an unset bound.
package filter

import "fmt"

// Kind identifies the widget and predicate family of a filter.
type Kind int

// Filter kinds. The numeric values match the API's integer type codes.
const (
	KindCheckbox Kind = 0
	KindOptions  Kind = 1
	KindRange    Kind = 2
	KindText     Kind = 3
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindCheckbox:
		return "checkbox"
	case KindOptions:
		return "options"
	case KindRange:
		return "range"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the four known kinds.
func (k Kind) Valid() bool {
	return k >= KindCheckbox && k <= KindText
}

package filter

import (
	"math"
	"strconv"
	"strings"

	"github.com/Sternrassler/storefront-client/pkg/catalog"
)

var inf = math.Inf(1)

// ApplyAll returns the products passing every active selection, in input
// order. Selections without a matching spec are evaluated with generic
// heuristics rather than ignored. An empty selection returns products
// unchanged.
func ApplyAll(products []catalog.Product, specs []Spec, sel Selection) []catalog.Product {
	if len(sel) == 0 {
		return products
	}

	byID := make(map[int]Spec, len(specs))
	for _, s := range specs {
		byID[s.ID] = s
	}

	out := make([]catalog.Product, 0, len(products))
	for i := range products {
		if matchesAll(&products[i], byID, sel) {
			out = append(out, products[i])
		}
	}
	return out
}

func matchesAll(p *catalog.Product, specs map[int]Spec, sel Selection) bool {
	for id, v := range sel {
		spec, ok := specs[id]
		if ok && !Matches(p, spec, v) {
			return false
		}
		if !ok && !MatchesOrphan(p, v) {
			return false
		}
	}
	return true
}

// Matches evaluates one spec against p. A value whose shape does not fit
// the spec kind is evaluated like an orphaned selection.
func Matches(p *catalog.Product, spec Spec, v Value) bool {
	if isEmpty(v) {
		return true
	}

	switch spec.Kind {
	case KindCheckbox:
		if _, ok := v.(Bool); ok {
			if spec.IsAvailability() {
				return p.InStock()
			}
			return hasTagNamed(p, spec.Name)
		}
	case KindOptions:
		switch t := v.(type) {
		case FreeText:
			return matchOption(p, spec, string(t))
		case TextSet:
			return matchAnyOption(p, spec, t)
		}
	case KindRange:
		if r, ok := v.(RangeBound); ok {
			x, known := rangeSubject(p, spec)
			if !known {
				return true
			}
			return r.Contains(x)
		}
	case KindText:
		if t, ok := v.(FreeText); ok {
			return containsText(p, string(t))
		}
	}
	return MatchesOrphan(p, v)
}

// MatchesOrphan evaluates a selection whose spec is unknown: substring
// search for text, overlap for option sets, price range for bounds and
// stock availability for booleans.
func MatchesOrphan(p *catalog.Product, v Value) bool {
	switch t := v.(type) {
	case Bool:
		return !bool(t) || p.InStock()
	case TextSet:
		return len(t) == 0 || overlaps(p, t)
	case RangeBound:
		return t.Contains(p.Price)
	case FreeText:
		return containsText(p, string(t))
	default:
		return true
	}
}

func hasTagNamed(p *catalog.Product, name string) bool {
	for _, tag := range p.Tags {
		if strings.EqualFold(strings.TrimSpace(tag.Name), strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

func sameText(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func matchOption(p *catalog.Product, spec Spec, want string) bool {
	for _, tag := range p.Tags {
		if sameText(tag.Value, want) {
			return true
		}
	}
	for _, s := range p.Specs {
		if sameText(s.Value, want) {
			return true
		}
	}
	return fieldEquals(p, spec, want)
}

func matchAnyOption(p *catalog.Product, spec Spec, want TextSet) bool {
	for _, w := range want {
		if fieldEquals(p, spec, w) {
			return true
		}
	}
	return overlaps(p, want)
}

// overlaps reports whether any wanted string equals a tag or spec name or
// value of p.
func overlaps(p *catalog.Product, want TextSet) bool {
	for _, w := range want {
		for _, tag := range p.Tags {
			if sameText(tag.Value, w) || sameText(tag.Name, w) {
				return true
			}
		}
		for _, s := range p.Specs {
			if sameText(s.Value, w) || sameText(s.Name, w) {
				return true
			}
		}
	}
	return false
}

func fieldEquals(p *catalog.Product, spec Spec, want string) bool {
	for _, key := range spec.fieldKeys() {
		if v, ok := p.Field(key); ok && sameText(v, want) {
			return true
		}
	}
	return false
}

// rangeSubject picks the number a range filter compares: the price for
// price filters, otherwise the attribute named after the filter, then a
// spec or tag with the same name.
func rangeSubject(p *catalog.Product, spec Spec) (float64, bool) {
	if spec.IsPrice() {
		return p.Price, true
	}
	for _, key := range spec.fieldKeys() {
		if x, ok := p.NumericField(key); ok {
			return x, true
		}
	}
	for _, s := range p.Specs {
		if sameText(s.Name, spec.Name) {
			if x, err := strconv.ParseFloat(strings.TrimSpace(s.Value), 64); err == nil {
				return x, true
			}
		}
	}
	for _, tag := range p.Tags {
		if sameText(tag.Name, spec.Name) {
			if x, err := strconv.ParseFloat(strings.TrimSpace(tag.Value), 64); err == nil {
				return x, true
			}
		}
	}
	return 0, false
}

func containsText(p *catalog.Product, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	has := func(s string) bool { return strings.Contains(strings.ToLower(s), q) }

	if has(p.Name) || has(p.Description) {
		return true
	}
	for _, tag := range p.Tags {
		if has(tag.Name) || has(tag.Value) {
			return true
		}
	}
	for _, s := range p.Specs {
		if has(s.Name) || has(s.Value) {
			return true
		}
	}
	return false
}

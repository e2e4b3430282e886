package filter

import (
	"strconv"
	"strings"
)

// Spec is a validated filter definition. Specs are produced by Normalize
// and are not modified afterwards.
type Spec struct {
	ID           int
	Name         string
	Kind         Kind
	RawValue     string
	DefaultValue string
}

// Options splits RawValue on commas, trimming blanks and dropping empty
// entries.
func (s Spec) Options() []string {
	return splitOptions(s.RawValue)
}

// Bounds parses a "lo-hi" RawValue. A value that cannot be parsed yields
// the widget default of [0, 100] with ok=false.
func (s Spec) Bounds() (lo, hi float64, ok bool) {
	if m := rangePattern.FindStringSubmatch(s.RawValue); m != nil {
		lo, errLo := strconv.ParseFloat(m[1], 64)
		hi, errHi := strconv.ParseFloat(m[2], 64)
		if errLo == nil && errHi == nil {
			return lo, hi, true
		}
	}
	return 0, 100, false
}

// IsAvailability reports whether the filter name denotes stock
// availability.
func (s Spec) IsAvailability() bool {
	return nameHasAny(s.Name, availabilityWords)
}

// IsPrice reports whether the filter name denotes price.
func (s Spec) IsPrice() bool {
	return nameHasAny(s.Name, priceWords)
}

// fieldKeys are the product attributes a filter is matched against: the
// lower-cased name, and the same with whitespace removed.
func (s Spec) fieldKeys() []string {
	lower := strings.ToLower(strings.TrimSpace(s.Name))
	stripped := strings.Join(strings.Fields(lower), "")
	if stripped == lower {
		return []string{lower}
	}
	return []string{lower, stripped}
}

func splitOptions(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nameHasAny(name string, words []string) bool {
	lower := strings.ToLower(name)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Sternrassler/storefront-client/pkg/catalog"
)

// rangePattern matches a single numeric interval such as "1000-50000" or
// "0.5 - 2.5".
var rangePattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*-\s*(\d+(?:\.\d+)?)\s*$`)

// Keyword sets used to re-derive a filter's kind from its name. Russian
// stems match the upstream catalogue; English equivalents cover the rest.
var (
	optionsWords      = []string{"бренд", "цвет", "размер", "модель", "brand", "color", "colour", "size", "model"}
	rangeWords        = []string{"цена", "вес", "размер экрана", "price", "weight", "screen size"}
	textWords         = []string{"поиск", "название", "описание", "search", "title", "description"}
	checkboxWords     = []string{"наличи", "скидк", "новинк", "availab", "in stock", "discount", "on sale", "new arrival"}
	availabilityWords = []string{"наличи", "availab", "in stock"}
	priceWords        = []string{"цен", "price"}
)

// Result is the outcome of normalizing a batch of filter records.
type Result struct {
	Specs       []Spec
	Diagnostics []string
}

// Normalize validates raw records, re-derives each kind from the record's
// name and value shape, and drops records that cannot back a working
// widget. Rejected records produce one diagnostic each. Output order
// follows input order.
func Normalize(records []catalog.FilterRecord) Result {
	res := Result{Specs: make([]Spec, 0, len(records))}
	for _, rec := range records {
		spec, diag, ok := NormalizeRecord(rec)
		if !ok {
			res.Diagnostics = append(res.Diagnostics, diag)
			continue
		}
		res.Specs = append(res.Specs, spec)
	}
	return res
}

// NormalizeRecord normalizes a single record. When ok is false, diag
// explains the rejection.
func NormalizeRecord(rec catalog.FilterRecord) (spec Spec, diag string, ok bool) {
	if rec.ID == 0 || rec.Type == nil || strings.TrimSpace(rec.Name) == "" {
		return Spec{}, fmt.Sprintf("invalid filter: %s", rec), false
	}

	kind := deriveKind(rec.Name, rec.Value, Kind(*rec.Type))

	if (kind == KindOptions || kind == KindRange) && strings.TrimSpace(rec.Value) == "" {
		return Spec{}, fmt.Sprintf("%s filter %q requires a value", kind, rec.Name), false
	}

	return Spec{
		ID:           rec.ID,
		Name:         strings.TrimSpace(rec.Name),
		Kind:         kind,
		RawValue:     rec.Value,
		DefaultValue: rec.DefaultValue,
	}, "", true
}

// deriveKind applies the correction heuristics in fixed priority order:
// Options, Range, Text, Checkbox. The declared kind is used only when no
// heuristic fires; an unknown declared code falls back to Text.
func deriveKind(name, value string, declared Kind) Kind {
	switch {
	case nameHasAny(name, optionsWords) || strings.Contains(value, ","):
		return KindOptions
	case nameHasAny(name, rangeWords) || rangePattern.MatchString(value):
		return KindRange
	case nameHasAny(name, textWords):
		return KindText
	case nameHasAny(name, checkboxWords):
		return KindCheckbox
	case declared.Valid():
		return declared
	default:
		return KindText
	}
}

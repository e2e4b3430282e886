package filter

import (
	"sort"
	"strings"
)

// Describe renders an active selection as a short label for the
// active-filters bar.
func Describe(spec Spec, v Value) string {
	switch t := v.(type) {
	case Bool:
		return spec.Name
	case TextSet:
		return strings.Join(t, ", ")
	case RangeBound:
		min, max := strings.TrimSpace(t.Min), strings.TrimSpace(t.Max)
		switch {
		case min != "" && max != "":
			return min + " - " + max
		case min != "":
			return "from " + min
		case max != "":
			return "to " + max
		}
		return ""
	case FreeText:
		return string(t)
	default:
		return ""
	}
}

// Active lists the selections that belong to a known spec, ordered by
// spec ID, with their labels.
func Active(specs []Spec, sel Selection) []Label {
	var out []Label
	for _, spec := range specs {
		v, ok := sel[spec.ID]
		if !ok || isEmpty(v) {
			continue
		}
		out = append(out, Label{SpecID: spec.ID, Name: spec.Name, Text: Describe(spec, v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SpecID < out[j].SpecID })
	return out
}

// Label is one entry of the active-filters bar.
type Label struct {
	SpecID int
	Name   string
	Text   string
}

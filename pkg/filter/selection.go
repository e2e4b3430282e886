package filter

import "slices"

// Selection maps a filter ID to the user's choice. A missing key means
// the filter is inactive.
type Selection map[int]Value

// SeedDefaults builds the initial selection from each spec's default
// value.
func SeedDefaults(specs []Spec) Selection {
	sel := make(Selection)
	for _, spec := range specs {
		if v := ValueFromString(spec.Kind, spec.DefaultValue); v != nil {
			sel[spec.ID] = v
		}
	}
	return sel
}

// Set stores v for id. An empty value removes the key.
func (s Selection) Set(id int, v Value) {
	if isEmpty(v) {
		delete(s, id)
		return
	}
	s[id] = v
}

// Remove deactivates a single filter.
func (s Selection) Remove(id int) {
	delete(s, id)
}

// Clear deactivates every filter.
func (s Selection) Clear() {
	for id := range s {
		delete(s, id)
	}
}

// Clone returns an independent copy.
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for id, v := range s {
		if ts, ok := v.(TextSet); ok {
			v = slices.Clone(ts)
		}
		out[id] = v
	}
	return out
}

// Range returns the current bound for id, or an empty bound.
func (s Selection) Range(id int) RangeBound {
	if r, ok := s[id].(RangeBound); ok {
		return r
	}
	return RangeBound{}
}

// SetMin updates the lower bound. A minimum above the current maximum
// clears the maximum.
func (s Selection) SetMin(id int, min string) {
	cur := s.Range(id)
	cur.Min = min
	if lo, okLo := parseBound(min); okLo {
		if hi, okHi := parseBound(cur.Max); okHi && lo > hi {
			cur.Max = ""
		}
	}
	s.Set(id, cur)
}

// SetMax updates the upper bound. A maximum below the current minimum
// clears the minimum.
func (s Selection) SetMax(id int, max string) {
	cur := s.Range(id)
	cur.Max = max
	if hi, okHi := parseBound(max); okHi {
		if lo, okLo := parseBound(cur.Min); okLo && hi < lo {
			cur.Min = ""
		}
	}
	s.Set(id, cur)
}

// ToggleOption adds or removes a single option for id.
func (s Selection) ToggleOption(id int, option string, on bool) {
	cur, _ := s[id].(TextSet)
	next := make(TextSet, 0, len(cur)+1)
	for _, o := range cur {
		if o != option {
			next = append(next, o)
		}
	}
	if on {
		next = append(next, option)
	}
	s.Set(id, next)
}

// ToggleAll selects every option of spec, or clears the filter when all
// options are already selected.
func (s Selection) ToggleAll(spec Spec) {
	options := spec.Options()
	cur, _ := s[spec.ID].(TextSet)
	if len(options) > 0 && len(cur) == len(options) {
		delete(s, spec.ID)
		return
	}
	s.Set(spec.ID, TextSet(options))
}

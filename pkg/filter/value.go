package filter

import (
	"math"
	"strconv"
	"strings"
)

// Value is the user's choice for one filter. It is a closed union of
// Bool, TextSet, RangeBound and FreeText.
type Value interface {
	isValue()
}

// Bool is a checkbox state. Only true is an active selection.
type Bool bool

// TextSet is the set of chosen option strings.
type TextSet []string

// RangeBound holds the raw bound inputs. Either side may be empty,
// unparsable or non-finite, in which case it is treated as unset.
type RangeBound struct {
	Min string
	Max string
}

// FreeText is a typed search string.
type FreeText string

func (Bool) isValue()       {}
func (TextSet) isValue()    {}
func (RangeBound) isValue() {}
func (FreeText) isValue()   {}

// Lo returns the lower bound, or 0 when unset.
func (r RangeBound) Lo() float64 {
	if v, ok := parseBound(r.Min); ok {
		return v
	}
	return 0
}

// Hi returns the upper bound, or +Inf when unset.
func (r RangeBound) Hi() float64 {
	if v, ok := parseBound(r.Max); ok {
		return v
	}
	return inf
}

// Contains reports whether x lies within [Lo, Hi].
func (r RangeBound) Contains(x float64) bool {
	return x >= r.Lo() && x <= r.Hi()
}

func parseBound(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// isEmpty reports whether v carries no active choice.
func isEmpty(v Value) bool {
	switch t := v.(type) {
	case nil:
		return true
	case Bool:
		return !bool(t)
	case TextSet:
		return len(t) == 0
	case RangeBound:
		return strings.TrimSpace(t.Min) == "" && strings.TrimSpace(t.Max) == ""
	case FreeText:
		return strings.TrimSpace(string(t)) == ""
	default:
		return true
	}
}

// ValueFromString interprets raw input according to kind. It returns nil
// when raw carries no active choice.
func ValueFromString(kind Kind, raw string) Value {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var v Value
	switch kind {
	case KindCheckbox:
		b, err := strconv.ParseBool(raw)
		v = Bool(err == nil && b)
	case KindOptions:
		v = TextSet(splitOptions(raw))
	case KindRange:
		if m := rangePattern.FindStringSubmatch(raw); m != nil {
			v = RangeBound{Min: m[1], Max: m[2]}
		} else {
			v = RangeBound{Min: raw}
		}
	default:
		v = FreeText(raw)
	}
	if isEmpty(v) {
		return nil
	}
	return v
}

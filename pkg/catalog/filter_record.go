package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FilterRecord is raw filter metadata as served by
// GET /categories/{id}/filters. Any field may be missing or wrong.
type FilterRecord struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Type         *int   `json:"type"`
	Value        string `json:"value,omitempty"`
	DefaultValue string `json:"defaultValue,omitempty"`

	// Raw keeps the served JSON when decoding had to coerce or drop a
	// field, so diagnostics show what the server actually sent.
	Raw string `json:"-"`
}

// UnmarshalJSON decodes a record leniently. Numeric strings are accepted
// for id and type, scalar values are rendered as text, and fields of any
// other shape are left zero. It fails only when data is not an object.
func (r *FilterRecord) UnmarshalJSON(data []byte) error {
	var fields struct {
		ID           json.RawMessage `json:"id"`
		Name         json.RawMessage `json:"name"`
		Type         json.RawMessage `json:"type"`
		Value        json.RawMessage `json:"value"`
		DefaultValue json.RawMessage `json:"defaultValue"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("filter record: %w", err)
	}

	var rec FilterRecord
	lossy := false
	note := func(clean bool) { lossy = lossy || !clean }

	id, ok, clean := lenientInt(fields.ID)
	note(clean)
	if ok {
		rec.ID = id
	}
	typ, ok, clean := lenientInt(fields.Type)
	note(clean)
	if ok {
		rec.Type = &typ
	}
	rec.Name, clean = lenientString(fields.Name)
	note(clean)
	rec.Value, clean = lenientString(fields.Value)
	note(clean)
	rec.DefaultValue, clean = lenientString(fields.DefaultValue)
	note(clean)

	if lossy {
		rec.Raw = string(bytes.TrimSpace(data))
	}
	*r = rec
	return nil
}

// String renders the record for diagnostics.
func (r FilterRecord) String() string {
	if r.Raw != "" {
		return r.Raw
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("{id:%d name:%q}", r.ID, r.Name)
	}
	return string(data)
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// lenientInt accepts a JSON integer or a string holding one. clean is
// false when a value was present but had to be converted or discarded.
func lenientInt(raw json.RawMessage) (v int, ok, clean bool) {
	if isNull(raw) {
		return 0, false, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if i, ok := integral(strings.TrimSpace(s)); ok {
			return i, true, false
		}
		return 0, false, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, ok := integral(string(n)); ok {
			return i, true, true
		}
	}
	return 0, false, false
}

func integral(s string) (int, bool) {
	if i, err := strconv.Atoi(s); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

// lenientString accepts a JSON string, or renders a number or boolean as
// its literal text. Objects and arrays yield "".
func lenientString(raw json.RawMessage) (s string, clean bool) {
	if isNull(raw) {
		return "", true
	}
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return string(n), false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), false
	}
	return "", false
}

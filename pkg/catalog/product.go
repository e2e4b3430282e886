package catalog

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Tag is a free-form name/value pair attached to a product.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Spec is a technical characteristic of a product.
type Spec struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Product is a catalog item as returned by the storefront API.
type Product struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	CategoryID  int     `json:"categoryId"`
	Count       int     `json:"count"`
	Popularity  int     `json:"popularity,omitempty"`
	Image       string  `json:"image,omitempty"`
	IsActive    bool    `json:"isActive,omitempty"`
	Tags        []Tag   `json:"tags"`
	Specs       []Spec  `json:"specs"`

	// Extra keeps scalar JSON attributes the struct does not declare,
	// keyed by lower-cased attribute name. Filters named after such an
	// attribute (e.g. "color") resolve against it.
	Extra map[string]string `json:"-"`
}

// knownProductKeys are the JSON keys decoded into struct fields.
var knownProductKeys = map[string]bool{
	"id": true, "name": true, "description": true, "price": true,
	"categoryid": true, "count": true, "popularity": true, "image": true,
	"isactive": true, "tags": true, "specs": true,
}

// UnmarshalJSON decodes the declared fields and collects remaining scalar
// attributes into Extra.
func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for key, value := range raw {
		lower := strings.ToLower(key)
		if knownProductKeys[lower] {
			continue
		}
		if s, ok := scalarString(value); ok {
			if decoded.Extra == nil {
				decoded.Extra = make(map[string]string)
			}
			decoded.Extra[lower] = s
		}
	}

	*p = Product(decoded)
	return nil
}

// scalarString renders a JSON string, number or bool as text.
func scalarString(raw json.RawMessage) (string, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// Field returns the textual value of the product attribute named key.
// Lookup is case-insensitive and covers the declared scalar fields before
// falling back to Extra.
func (p *Product) Field(key string) (string, bool) {
	switch strings.ToLower(key) {
	case "id":
		return strconv.Itoa(p.ID), true
	case "name":
		return p.Name, true
	case "description":
		return p.Description, true
	case "price":
		return strconv.FormatFloat(p.Price, 'f', -1, 64), true
	case "categoryid":
		return strconv.Itoa(p.CategoryID), true
	case "count":
		return strconv.Itoa(p.Count), true
	case "popularity":
		return strconv.Itoa(p.Popularity), true
	case "image":
		return p.Image, p.Image != ""
	}
	v, ok := p.Extra[strings.ToLower(key)]
	return v, ok
}

// NumericField returns the attribute named key parsed as a number.
func (p *Product) NumericField(key string) (float64, bool) {
	s, ok := p.Field(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// InStock reports whether at least one unit is available.
func (p *Product) InStock() bool {
	return p.Count > 0
}

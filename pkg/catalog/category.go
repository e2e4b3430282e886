package catalog

// Category groups products and owns a set of filter definitions.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`

	// Demo marks placeholder categories served while the API is unreachable.
	Demo bool `json:"-"`
}

// DemoCategories returns the placeholder category list shown when the
// category endpoint cannot be reached.
func DemoCategories() []Category {
	return []Category{
		{ID: 1, Name: "Электроника", Slug: "electronics", Demo: true},
		{ID: 2, Name: "Одежда", Slug: "clothing", Demo: true},
		{ID: 3, Name: "Книги", Slug: "books", Demo: true},
		{ID: 4, Name: "Спорт", Slug: "sports", Demo: true},
	}
}

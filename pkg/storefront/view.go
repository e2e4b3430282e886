package storefront

import (
	"sync"

	"github.com/Sternrassler/storefront-client/pkg/catalog"
	"github.com/Sternrassler/storefront-client/pkg/filter"
	"github.com/Sternrassler/storefront-client/pkg/prefetch"
)

// CategoryView is one opened category: its filter specs, its products and
// the user's selection. Selection changes re-filter locally.
type CategoryView struct {
	categoryID  int
	specs       []filter.Spec
	diagnostics []string
	products    []catalog.Product

	mu        sync.Mutex
	selection filter.Selection
}

func newCategoryView(data prefetch.Category) *CategoryView {
	return &CategoryView{
		categoryID:  data.CategoryID,
		specs:       data.Specs,
		diagnostics: data.Diagnostics,
		products:    data.Products,
		selection:   filter.SeedDefaults(data.Specs),
	}
}

// CategoryID returns the category of the view.
func (v *CategoryView) CategoryID() int { return v.categoryID }

// Specs returns the normalized filter specs.
func (v *CategoryView) Specs() []filter.Spec { return v.specs }

// Diagnostics lists the filter records that were rejected.
func (v *CategoryView) Diagnostics() []string { return v.diagnostics }

// Products returns every loaded product, unfiltered.
func (v *CategoryView) Products() []catalog.Product { return v.products }

// Spec looks up a spec by ID.
func (v *CategoryView) Spec(id int) (filter.Spec, bool) {
	for _, s := range v.specs {
		if s.ID == id {
			return s, true
		}
	}
	return filter.Spec{}, false
}

// Selection returns a copy of the current selection.
func (v *CategoryView) Selection() filter.Selection {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selection.Clone()
}

// Visible returns the products passing the current selection.
func (v *CategoryView) Visible() []catalog.Product {
	v.mu.Lock()
	defer v.mu.Unlock()
	return filter.ApplyAll(v.products, v.specs, v.selection)
}

// Labels describes the active selections.
func (v *CategoryView) Labels() []filter.Label {
	v.mu.Lock()
	defer v.mu.Unlock()
	return filter.Active(v.specs, v.selection)
}

// Update applies edit to the selection and returns the re-filtered products.
func (v *CategoryView) Update(edit func(filter.Selection)) []catalog.Product {
	v.mu.Lock()
	defer v.mu.Unlock()
	edit(v.selection)
	return filter.ApplyAll(v.products, v.specs, v.selection)
}

// Set stores a value for a filter. An empty value deactivates it.
func (v *CategoryView) Set(id int, value filter.Value) []catalog.Product {
	return v.Update(func(s filter.Selection) { s.Set(id, value) })
}

// SetRange updates both bounds of a range filter.
func (v *CategoryView) SetRange(id int, lo, hi string) []catalog.Product {
	return v.Update(func(s filter.Selection) {
		s.SetMin(id, lo)
		s.SetMax(id, hi)
	})
}

// Clear deactivates every filter.
func (v *CategoryView) Clear() []catalog.Product {
	return v.Update(func(s filter.Selection) { s.Clear() })
}

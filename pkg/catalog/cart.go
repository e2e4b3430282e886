package catalog

// CartLine is one product position in the user's cart.
type CartLine struct {
	ID        int      `json:"id"`
	ProductID int      `json:"productId"`
	Quantity  int      `json:"quantity"`
	Price     float64  `json:"price"`
	Product   *Product `json:"product,omitempty"`
}

// Subtotal is the line price multiplied by quantity.
func (l CartLine) Subtotal() float64 {
	return l.Price * float64(l.Quantity)
}

// Cart is the server-side cart content.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

// Total sums all line subtotals.
func (c Cart) Total() float64 {
	var total float64
	for _, l := range c.Lines {
		total += l.Subtotal()
	}
	return total
}

// ItemCount sums all line quantities.
func (c Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Line looks up a line by its identifier.
func (c Cart) Line(id int) (CartLine, bool) {
	for _, l := range c.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return CartLine{}, false
}

// LineIDs returns line identifiers in cart order.
func (c Cart) LineIDs() []int {
	ids := make([]int, 0, len(c.Lines))
	for _, l := range c.Lines {
		ids = append(ids, l.ID)
	}
	return ids
}

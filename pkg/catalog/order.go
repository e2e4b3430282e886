package catalog

// Order is a past order of the authenticated user as served by
// GET /user/orders. Date is passed through as the server formats it.
type Order struct {
	ID     int     `json:"id"`
	Date   string  `json:"date"`
	Total  float64 `json:"total,omitempty"`
	Status string  `json:"status,omitempty"`
}

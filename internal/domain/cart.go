package domain

// CartEntry is unique per (customer, product); a repeat add overwrites
// the stored quantity instead of creating a second row.
type CartEntry struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
}

type WishlistEntry struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	ProductID  string `json:"product_id"`
}

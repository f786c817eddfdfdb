package domain

import "time"

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Product prices are integer cents to avoid floating-point money.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	CategoryID  string    `json:"category_id,omitempty"`
	SellerID    string    `json:"seller_id"`
	CreatedAt   time.Time `json:"created_at"`
}

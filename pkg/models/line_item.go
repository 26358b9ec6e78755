package models

// SelectedLineItem is one priced product attached to a record draft
type SelectedLineItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"price_per_unit"`
	Notes       string  `json:"notes,omitempty"`
}

// Subtotal is quantity times unit price
func (li SelectedLineItem) Subtotal() float64 {
	return float64(li.Quantity) * li.UnitPrice
}

// LineItemView is a line item with its computed subtotal, for rendering
type LineItemView struct {
	SelectedLineItem
	Subtotal float64 `json:"subtotal"`
}

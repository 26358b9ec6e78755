package services

import (
	"fmt"
	"strings"

	"github.com/nexuscrm/formengine/pkg/constants"
	"github.com/nexuscrm/formengine/pkg/errors"
	"github.com/nexuscrm/formengine/pkg/models"
)

// LineItemUpdate edits one selected product. Nil members are left unchanged.
type LineItemUpdate struct {
	Quantity  *int     `json:"quantity,omitempty"`
	UnitPrice *float64 `json:"price_per_unit,omitempty"`
	Notes     *string  `json:"notes,omitempty"`
}

// LineItemsView is the rendered multi-line item sub-form
type LineItemsView struct {
	Key         string                `json:"key"`
	Label       string                `json:"label"`
	Required    bool                  `json:"required"`
	Items       []models.LineItemView `json:"items"`
	GrandTotal  float64               `json:"grand_total"`
	Candidates  []Option              `json:"candidates"`
	Loading     bool                  `json:"loading"`
	LookupError string                `json:"lookup_error,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// LineItemList is the ordered list of products attached to a draft
type LineItemList struct {
	items []models.SelectedLineItem
}

// NewLineItemList creates a list from existing items, dropping invalid quantities to 1
func NewLineItemList(items []models.SelectedLineItem) *LineItemList {
	l := &LineItemList{}
	for _, it := range items {
		if it.Quantity < 1 {
			it.Quantity = 1
		}
		if it.UnitPrice < 0 {
			it.UnitPrice = 0
		}
		l.items = append(l.items, it)
	}
	return l
}

// Len returns the number of items
func (l *LineItemList) Len() int { return len(l.items) }

// Contains reports whether productID is selected
func (l *LineItemList) Contains(productID string) bool {
	return l.index(productID) >= 0
}

// Toggle adds the product with quantity 1 and its list price, or removes it when already present.
// Returns true when the product was added.
func (l *LineItemList) Toggle(product models.Entity, name string) bool {
	id := product.ID()
	if i := l.index(id); i >= 0 {
		l.items = append(l.items[:i], l.items[i+1:]...)
		return false
	}
	l.items = append(l.items, models.SelectedLineItem{
		ProductID:   id,
		ProductName: name,
		Quantity:    1,
		UnitPrice:   listPrice(product),
	})
	return true
}

// listPrice follows price, base price, cost price and defaults to 0
func listPrice(product models.Entity) float64 {
	for _, key := range []string{constants.AttrPrice, constants.AttrBasePrice, constants.AttrCostPrice} {
		if _, ok := product[key]; ok {
			if p := product.Float(key); p > 0 {
				return p
			}
		}
	}
	return 0
}

// Update edits quantity, unit price or notes of one item
func (l *LineItemList) Update(productID string, upd LineItemUpdate) error {
	i := l.index(productID)
	if i < 0 {
		return errors.NewNotFoundError("Line item", productID)
	}
	if upd.Quantity != nil && *upd.Quantity < 1 {
		return errors.NewValidationError("quantity", "quantity must be at least 1")
	}
	if upd.UnitPrice != nil && *upd.UnitPrice < 0 {
		return errors.NewValidationError("price_per_unit", "unit price must not be negative")
	}

	it := &l.items[i]
	if upd.Quantity != nil {
		it.Quantity = *upd.Quantity
	}
	if upd.UnitPrice != nil {
		it.UnitPrice = *upd.UnitPrice
	}
	if upd.Notes != nil {
		it.Notes = strings.TrimSpace(*upd.Notes)
	}
	return nil
}

// Items returns a copy of the selected items
func (l *LineItemList) Items() []models.SelectedLineItem {
	return append([]models.SelectedLineItem(nil), l.items...)
}

// Views returns every item with its subtotal, computed on each call
func (l *LineItemList) Views() []models.LineItemView {
	out := make([]models.LineItemView, 0, len(l.items))
	for _, it := range l.items {
		out = append(out, models.LineItemView{SelectedLineItem: it, Subtotal: it.Subtotal()})
	}
	return out
}

// GrandTotal sums the item subtotals
func (l *LineItemList) GrandTotal() float64 {
	total := 0.0
	for _, it := range l.items {
		total += it.Subtotal()
	}
	return total
}

// Problem returns the first composite violation, or "" when the list is acceptable
func (l *LineItemList) Problem(mandatory bool) string {
	if mandatory && len(l.items) == 0 {
		return "At least one product is required"
	}
	for i, it := range l.items {
		if strings.TrimSpace(it.ProductID) == "" {
			return fmt.Sprintf("Product #%d must have a product selected", i+1)
		}
	}
	return ""
}

// Clear removes every item
func (l *LineItemList) Clear() {
	l.items = nil
}

func (l *LineItemList) index(productID string) int {
	for i, it := range l.items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

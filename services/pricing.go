package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"checkout-service/models"
)

// ProductCatalog resolves catalog records by id. Ids that do not resolve are
// simply absent from the returned map.
type ProductCatalog interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error)
}

// PricedLineItem is one product's aggregated, server-priced cart line.
type PricedLineItem struct {
	ProductID  string
	UnitPrice  int64
	Quantities int
	Colors     []models.OrderItemColor
}

// LineTotal is UnitPrice × Quantities.
func (l *PricedLineItem) LineTotal() int64 {
	return l.UnitPrice * int64(l.Quantities)
}

// PricedCart is the validator's output.
type PricedCart struct {
	Items    []PricedLineItem
	SubTotal int64
}

// PricingValidator validates cart lines against the catalog and prices them
// with current catalog prices.
type PricingValidator struct {
	catalog ProductCatalog
}

func NewPricingValidator(catalog ProductCatalog) *PricingValidator {
	return &PricingValidator{catalog: catalog}
}

// ValidateAndPrice checks products, colors and stock and aggregates lines of
// the same product. Client-submitted prices are ignored.
func (v *PricingValidator) ValidateAndPrice(ctx context.Context, items []models.CartLineItem) (*PricedCart, error) {
	if len(items) == 0 {
		return nil, ErrValidation.with("products must contain at least 1 item(s)", nil)
	}
	for i := range items {
		if err := validateStruct(&items[i]); err != nil {
			return nil, err
		}
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}

	products, err := v.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, ErrInternal.with("Product catalog unavailable", err)
	}
	for _, id := range ids {
		p, ok := products[id]
		if !ok || p == nil || p.IsDeleted() {
			return nil, ErrProductNotFound.with(fmt.Sprintf("Product %s not found", id), nil)
		}
	}

	lines := make([]PricedLineItem, 0, len(ids))
	index := make(map[string]int, len(ids))
	for _, it := range items {
		p := products[it.ProductID]
		color := strings.ToLower(it.Color)
		if !p.HasColor(color) {
			return nil, ErrInvalidColorVariant.with(fmt.Sprintf("Color %s is not available for product %s", it.Color, it.ProductID), nil)
		}

		pos, ok := index[it.ProductID]
		if !ok {
			pos = len(lines)
			index[it.ProductID] = pos
			lines = append(lines, PricedLineItem{ProductID: it.ProductID, UnitPrice: p.Price})
		}
		// Quantities is bounded per line, so the running sum cannot wrap
		// before it is compared with stock.
		line := &lines[pos]
		if line.Quantities+it.Quantities > p.Quantity {
			return nil, ErrInsufficientStock.with(fmt.Sprintf("Only %d left of product %s", p.Quantity, it.ProductID), nil)
		}
		line.Quantities += it.Quantities
		line.Colors = mergeColor(line.Colors, color, it.Quantities)
	}

	cart := &PricedCart{Items: lines}
	for i := range cart.Items {
		line := &cart.Items[i]
		if line.UnitPrice < 0 || (line.UnitPrice > 0 && int64(line.Quantities) > math.MaxInt64/line.UnitPrice) {
			return nil, ErrValidation.with(fmt.Sprintf("Order amount for product %s is out of range", line.ProductID), nil)
		}
		total := line.LineTotal()
		if cart.SubTotal > math.MaxInt64-total {
			return nil, ErrValidation.with("Order amount is out of range", nil)
		}
		cart.SubTotal += total
	}
	return cart, nil
}

func mergeColor(colors []models.OrderItemColor, color string, qty int) []models.OrderItemColor {
	for i := range colors {
		if colors[i].Color == color {
			colors[i].Quantity += qty
			return colors
		}
	}
	return append(colors, models.OrderItemColor{Color: color, Quantity: qty})
}

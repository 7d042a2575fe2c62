package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ShippingPolicy decides the shipping fee for a priced cart.
type ShippingPolicy interface {
	Fee(subTotal int64) int64
}

// FlatRate charges the same fee on every order.
type FlatRate int64

func (f FlatRate) Fee(int64) int64 { return int64(f) }

// RateTier applies Fee to sub-totals of at least MinSubTotal.
type RateTier struct {
	MinSubTotal int64
	Fee         int64
}

// RateTable picks the tier with the highest MinSubTotal not above the
// sub-total. Sub-totals below every tier pay Default.
type RateTable struct {
	Tiers   []RateTier
	Default int64
}

func NewRateTable(defaultFee int64, tiers []RateTier) *RateTable {
	sorted := append([]RateTier(nil), tiers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinSubTotal < sorted[j].MinSubTotal })
	return &RateTable{Tiers: sorted, Default: defaultFee}
}

func (t *RateTable) Fee(subTotal int64) int64 {
	fee := t.Default
	for _, tier := range t.Tiers {
		if subTotal < tier.MinSubTotal {
			break
		}
		fee = tier.Fee
	}
	return fee
}

// ParseRateTiers parses "min:fee,min:fee", e.g. "0:20000,500000:0".
func ParseRateTiers(raw string) ([]RateTier, error) {
	var tiers []RateTier
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		min, fee, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid shipping tier %q: expected min:fee", part)
		}
		minVal, err := strconv.ParseInt(strings.TrimSpace(min), 10, 64)
		if err != nil || minVal < 0 {
			return nil, fmt.Errorf("invalid shipping tier minimum %q", min)
		}
		feeVal, err := strconv.ParseInt(strings.TrimSpace(fee), 10, 64)
		if err != nil || feeVal < 0 {
			return nil, fmt.Errorf("invalid shipping tier fee %q", fee)
		}
		tiers = append(tiers, RateTier{MinSubTotal: minVal, Fee: feeVal})
	}
	return tiers, nil
}

// NewShippingPolicy returns a RateTable when a table is configured and a
// FlatRate otherwise.
func NewShippingPolicy(flatFee int64, table string) (ShippingPolicy, error) {
	if strings.TrimSpace(table) == "" {
		return FlatRate(flatFee), nil
	}
	tiers, err := ParseRateTiers(table)
	if err != nil {
		return nil, err
	}
	return NewRateTable(flatFee, tiers), nil
}

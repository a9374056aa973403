package handlers

import (
	"fmt"

	"autoparts/internal/models"

	"github.com/shopspring/decimal"
)

var (
	freeShippingThreshold = decimal.NewFromInt(10000)
	flatShippingFee       = decimal.NewFromInt(350)
)

type saleInput struct {
	Price       *float64
	SaleEnabled *bool
	SalePrice   *float64
}

type saleState struct {
	Price       float64
	SaleEnabled bool
	SalePrice   float64
}

func isProductOnSale(price float64, saleEnabled bool, salePrice float64) bool {
	return saleEnabled && salePrice > 0 && salePrice < price
}

func effectiveProductPrice(p models.Product) float64 {
	if isProductOnSale(p.Price, p.SaleEnabled, p.SalePrice) {
		return p.SalePrice
	}
	return p.Price
}

// decorateProduct fills the response-only fields.
func decorateProduct(p *models.Product) {
	p.IsOnSale = isProductOnSale(p.Price, p.SaleEnabled, p.SalePrice)
	p.InStock = p.Stock > 0
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Compatibility == nil {
		p.Compatibility = models.StringList{}
	}
}

func validateSaleFields(s saleState, salePriceSet bool) error {
	if s.Price <= 0 {
		return fmt.Errorf("price must be greater than 0")
	}
	if !s.SaleEnabled {
		return nil
	}
	if !salePriceSet {
		return fmt.Errorf("salePrice is required when saleEnabled is true")
	}
	if s.SalePrice <= 0 {
		return fmt.Errorf("salePrice must be greater than 0")
	}
	if s.SalePrice >= s.Price {
		return fmt.Errorf("salePrice must be less than price")
	}
	return nil
}

// resolveSale merges a partial update with the stored values and validates
// the result. Disabling a sale clears its price.
func resolveSale(current saleState, in saleInput) (saleState, error) {
	next := current
	salePriceSet := current.SalePrice > 0

	if in.Price != nil {
		next.Price = *in.Price
	}
	if in.SaleEnabled != nil {
		next.SaleEnabled = *in.SaleEnabled
		if !next.SaleEnabled {
			next.SalePrice = 0
			salePriceSet = false
		}
	}
	if in.SalePrice != nil {
		next.SalePrice = *in.SalePrice
		salePriceSet = true
	}

	if err := validateSaleFields(next, salePriceSet); err != nil {
		return saleState{}, err
	}
	return next, nil
}

func lineTotal(unitPrice float64, quantity int) float64 {
	return decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(quantity))).Round(2).InexactFloat64()
}

// orderTotals sums line totals and applies the flat shipping fee below the
// free shipping threshold.
func orderTotals(items []models.OrderItem) (subtotal, shipping, total float64) {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(decimal.NewFromFloat(item.LineTotal))
	}

	fee := decimal.Zero
	if sum.IsPositive() && sum.LessThan(freeShippingThreshold) {
		fee = flatShippingFee
	}

	return sum.Round(2).InexactFloat64(), fee.InexactFloat64(), sum.Add(fee).Round(2).InexactFloat64()
}

package handlers

import (
	"encoding/json"
	"strings"
	"testing"

	"autoparts/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestValidateSaleFieldsMissingSalePrice(t *testing.T) {
	err := validateSaleFields(saleState{Price: 100, SaleEnabled: true}, false)
	if err == nil {
		t.Fatal("expected validation error when saleEnabled=true and salePrice is missing")
	}
}

func TestValidateSaleFieldsSalePriceGreaterOrEqualPrice(t *testing.T) {
	for _, salePrice := range []float64{100, 120} {
		err := validateSaleFields(saleState{Price: 100, SaleEnabled: true, SalePrice: salePrice}, true)
		if err == nil {
			t.Fatalf("expected validation error for salePrice=%v", salePrice)
		}
	}
}

func TestResolveSaleKeepsStoredSalePriceWhenRaisingPrice(t *testing.T) {
	got, err := resolveSale(saleState{Price: 100, SaleEnabled: true, SalePrice: 80}, saleInput{Price: ptr(150.0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Price != 150 || got.SalePrice != 80 || !got.SaleEnabled {
		t.Fatalf("unexpected state %+v", got)
	}
}

func TestResolveSaleRejectsPriceBelowStoredSalePrice(t *testing.T) {
	_, err := resolveSale(saleState{Price: 100, SaleEnabled: true, SalePrice: 80}, saleInput{Price: ptr(70.0)})
	if err == nil {
		t.Fatal("expected error when price drops below the sale price")
	}
}

func TestResolveSaleDisablingClearsSalePrice(t *testing.T) {
	got, err := resolveSale(saleState{Price: 100, SaleEnabled: true, SalePrice: 80}, saleInput{SaleEnabled: ptr(false)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SaleEnabled || got.SalePrice != 0 {
		t.Fatalf("expected sale cleared, got %+v", got)
	}
}

func TestDecoratedProductJSONIncludesSaleFields(t *testing.T) {
	product := models.Product{Name: "Brake pad", Price: 120, SaleEnabled: true, SalePrice: 99, Stock: 10}
	decorateProduct(&product)

	body, err := json.Marshal(product)
	if err != nil {
		t.Fatalf("json marshal failed: %v", err)
	}

	jsonBody := string(body)
	for _, want := range []string{`"salePrice":99`, `"isOnSale":true`, `"inStock":true`, `"images":[]`, `"compatibility":[]`} {
		if !strings.Contains(jsonBody, want) {
			t.Fatalf("expected %s in response json, got %s", want, jsonBody)
		}
	}
}

func TestEffectiveProductPriceUsesSalePriceWhenOnSale(t *testing.T) {
	if got := effectiveProductPrice(models.Product{Price: 100, SaleEnabled: true, SalePrice: 75}); got != 75 {
		t.Fatalf("expected sale price 75, got %v", got)
	}
	if got := effectiveProductPrice(models.Product{Price: 100, SalePrice: 75}); got != 100 {
		t.Fatalf("expected regular price 100 when sale disabled, got %v", got)
	}
}

func TestOrderTotals(t *testing.T) {
	items := []models.OrderItem{
		{UnitPrice: 0.1, Quantity: 3, LineTotal: lineTotal(0.1, 3)},
		{UnitPrice: 1999.99, Quantity: 2, LineTotal: lineTotal(1999.99, 2)},
	}
	if items[0].LineTotal != 0.3 {
		t.Fatalf("expected exact line total 0.3, got %v", items[0].LineTotal)
	}

	subtotal, shipping, total := orderTotals(items)
	if subtotal != 4000.28 || shipping != 350 || total != 4350.28 {
		t.Fatalf("unexpected totals %v %v %v", subtotal, shipping, total)
	}

	subtotal, shipping, total = orderTotals([]models.OrderItem{{LineTotal: 10000}})
	if subtotal != 10000 || shipping != 0 || total != 10000 {
		t.Fatalf("expected free shipping at threshold, got %v %v %v", subtotal, shipping, total)
	}
}

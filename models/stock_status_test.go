package models_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/mmdatafocus/mkitchen_backend/models"
	"github.com/shopspring/decimal"
)

func TestStockStatus_Thresholds(t *testing.T) {
	cases := []struct {
		current string
		min     string
		want    models.StockStatus
	}{
		{"0", "0", models.StockStatusOutOfStock},
		{"-3", "10", models.StockStatusOutOfStock},
		{"5", "10", models.StockStatusLowStock},
		{"10", "10", models.StockStatusLowStock},
		{"10.0001", "10", models.StockStatusInStock},
		{"500", "0", models.StockStatusInStock},
	}
	for _, c := range cases {
		p := models.Product{
			CurrentStock: decimal.RequireFromString(c.current),
			MinStock:     decimal.RequireFromString(c.min),
		}
		if got := p.StockStatus(); got != c.want {
			t.Fatalf("current=%s min=%s: expected %q got %q", c.current, c.min, c.want, got)
		}
	}
}

func TestProductTypeUnmarshalJSON(t *testing.T) {
	var p models.ProductType
	if err := json.Unmarshal([]byte(`"S"`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p != models.ProductTypeSemiFinished {
		t.Fatalf("expected semi-finished, got %q", p)
	}
	if err := json.Unmarshal([]byte(`"X"`), &p); err == nil {
		t.Fatal("expected error for unknown product type")
	}
	if err := json.Unmarshal([]byte(`5`), &p); err == nil {
		t.Fatal("expected error for non-string product type")
	}
}

func TestStockTransactionTypeUnmarshalJSON(t *testing.T) {
	valid := []string{"IN", "OUT", "Add", "Deduct", "Production_IN", "Production_OUT", "Adjustment"}
	for _, v := range valid {
		var tt models.StockTransactionType
		if err := json.Unmarshal([]byte(`"`+v+`"`), &tt); err != nil {
			t.Fatalf("unmarshal %q: %v", v, err)
		}
		if string(tt) != v {
			t.Fatalf("expected %q got %q", v, tt)
		}
	}
	var tt models.StockTransactionType
	if err := json.Unmarshal([]byte(`"Sale"`), &tt); err == nil {
		t.Fatal("expected error for unknown transaction type")
	}
}

func TestInsufficientStockErrorMessage(t *testing.T) {
	err := &models.InsufficientStockError{
		BomId: 7,
		Shortages: []models.ShortageDetail{
			{ProductId: 1, ProductName: "Flour", Shortage: decimal.NewFromInt(2000)},
			{ProductId: 2, ProductName: "Water", Shortage: decimal.RequireFromString("1.5")},
		},
	}
	msg := err.Error()
	if !strings.Contains(msg, "Flour (short 2000)") || !strings.Contains(msg, "Water (short 1.5)") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestCircularBomDependencyErrorMessage(t *testing.T) {
	err := &models.CircularBomDependencyError{Path: []int{3, 8, 3}}
	if got := err.Error(); got != "circular recipe dependency: 3 -> 8 -> 3" {
		t.Fatalf("unexpected message %q", got)
	}
}

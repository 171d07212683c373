package models_test

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/mkitchen_backend/models"
	"github.com/shopspring/decimal"
)

func TestConvertQuantity_NilFromIsIdentity(t *testing.T) {
	kg := &models.ProductUnit{ID: 1, Name: "Kilogram", ConversionFactor: decimal.NewFromInt(1)}

	got, err := models.ConvertQuantity(decimal.RequireFromString("2.5"), nil, kg)
	if err != nil {
		t.Fatalf("ConvertQuantity: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("expected 2.5, got %s", got)
	}
}

func TestConvertQuantity_SameUnitIsIdentity(t *testing.T) {
	kg := &models.ProductUnit{ID: 1, Name: "Kilogram", ConversionFactor: decimal.NewFromInt(1000)}

	got, err := models.ConvertQuantity(decimal.RequireFromString("0.25"), kg, kg)
	if err != nil {
		t.Fatalf("ConvertQuantity: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("0.25")) {
		t.Fatalf("expected 0.25, got %s", got)
	}
}

func TestConvertQuantity_FactorRatio(t *testing.T) {
	// 500 g into a kg-based product: 500 * 0.001 / 1 = 0.5
	kg := &models.ProductUnit{ID: 1, Name: "Kilogram", ConversionFactor: decimal.NewFromInt(1)}
	g := &models.ProductUnit{ID: 2, Name: "Gram", ConversionFactor: decimal.RequireFromString("0.001")}

	got, err := models.ConvertQuantity(decimal.NewFromInt(500), g, kg)
	if err != nil {
		t.Fatalf("ConvertQuantity: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("expected 0.5, got %s", got)
	}

	// and the other direction: 0.5 kg = 500 g
	back, err := models.ConvertQuantity(decimal.RequireFromString("0.5"), kg, g)
	if err != nil {
		t.Fatalf("ConvertQuantity: %v", err)
	}
	if !back.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected 500, got %s", back)
	}
}

func TestConvertQuantity_NonTerminatingRatioRounds(t *testing.T) {
	three := &models.ProductUnit{ID: 1, Name: "Third", ConversionFactor: decimal.NewFromInt(1)}
	base := &models.ProductUnit{ID: 2, Name: "Base", ConversionFactor: decimal.NewFromInt(3)}

	got, err := models.ConvertQuantity(decimal.NewFromInt(1), three, base)
	if err != nil {
		t.Fatalf("ConvertQuantity: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("0.33333333")) {
		t.Fatalf("expected 0.33333333, got %s", got)
	}
}

func TestConvertQuantity_RejectsNonPositiveFactor(t *testing.T) {
	bad := &models.ProductUnit{ID: 1, Name: "Broken", ConversionFactor: decimal.Zero}
	kg := &models.ProductUnit{ID: 2, Name: "Kilogram", ConversionFactor: decimal.NewFromInt(1)}

	if _, err := models.ConvertQuantity(decimal.NewFromInt(1), bad, kg); !errors.Is(err, models.ErrInvalidUnitConfiguration) {
		t.Fatalf("expected ErrInvalidUnitConfiguration for zero from factor, got %v", err)
	}
	neg := &models.ProductUnit{ID: 3, Name: "Negative", ConversionFactor: decimal.NewFromInt(-2)}
	if _, err := models.ConvertQuantity(decimal.NewFromInt(1), kg, neg); !errors.Is(err, models.ErrInvalidUnitConfiguration) {
		t.Fatalf("expected ErrInvalidUnitConfiguration for negative to factor, got %v", err)
	}
}

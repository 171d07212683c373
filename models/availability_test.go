package models_test

import (
	"testing"

	"github.com/mmdatafocus/mkitchen_backend/models"
	"github.com/shopspring/decimal"
)

// dough recipe: 600 g flour + 400 g water -> 1 kg dough
func doughSnapshot() *models.BomSnapshot {
	gram := &models.ProductUnit{ID: 1, Name: "Gram", ConversionFactor: decimal.NewFromInt(1)}
	kg := &models.ProductUnit{ID: 2, Name: "Kilogram", ConversionFactor: decimal.NewFromInt(1000)}

	flour := &models.Product{ID: 10, Name: "Flour", UnitId: gram.ID, CurrentStock: decimal.NewFromInt(10000)}
	water := &models.Product{ID: 11, Name: "Water", UnitId: gram.ID, CurrentStock: decimal.NewFromInt(50000)}
	dough := &models.Product{ID: 12, Name: "Dough", UnitId: kg.ID, CurrentStock: decimal.Zero}

	bom := &models.Bom{
		ID:                1,
		Name:              "Dough Batch",
		BomType:           models.BomTypeProduction,
		OutputQuantity:    decimal.NewFromInt(1),
		FinishedProductId: dough.ID,
		Components: []*models.BomComponent{
			{BomId: 1, ProductId: flour.ID, Quantity: decimal.NewFromInt(600), ItemType: models.BomItemTypeInput},
			{BomId: 1, ProductId: water.ID, Quantity: decimal.NewFromInt(400), ItemType: models.BomItemTypeInput},
		},
	}

	return &models.BomSnapshot{
		Bom:      bom,
		Products: map[int]*models.Product{flour.ID: flour, water.ID: water, dough.ID: dough},
		Units:    map[int]*models.ProductUnit{gram.ID: gram, kg.ID: kg},
	}
}

func TestEvaluateAvailability_Feasible(t *testing.T) {
	snap := doughSnapshot()

	result, err := models.EvaluateAvailability(snap, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("EvaluateAvailability: %v", err)
	}
	if !result.CanProduce {
		t.Fatalf("expected feasible, got shortages %+v", result.Shortages)
	}
	if len(result.Inputs) != 2 {
		t.Fatalf("expected 2 inputs, got %d", len(result.Inputs))
	}
	if !result.Inputs[0].RequiredBase.Equal(decimal.NewFromInt(6000)) {
		t.Fatalf("flour required expected 6000, got %s", result.Inputs[0].RequiredBase)
	}
	if len(result.Outputs) != 1 {
		t.Fatalf("expected legacy single output, got %d", len(result.Outputs))
	}
	if result.Outputs[0].ProductId != 12 {
		t.Fatalf("expected dough output, got product %d", result.Outputs[0].ProductId)
	}
	if !result.Outputs[0].ProducedBase.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("dough produced expected 10, got %s", result.Outputs[0].ProducedBase)
	}
}

func TestEvaluateAvailability_ReportsShortages(t *testing.T) {
	snap := doughSnapshot()

	// 20 batches need 12000 g flour but only 10000 g on hand.
	result, err := models.EvaluateAvailability(snap, decimal.NewFromInt(20))
	if err != nil {
		t.Fatalf("EvaluateAvailability: %v", err)
	}
	if result.CanProduce {
		t.Fatal("expected infeasible")
	}
	if len(result.Shortages) != 1 {
		t.Fatalf("expected 1 shortage, got %d", len(result.Shortages))
	}
	s := result.Shortages[0]
	if s.ProductId != 10 {
		t.Fatalf("expected flour shortage, got product %d", s.ProductId)
	}
	if !s.Shortage.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("shortage expected 2000, got %s", s.Shortage)
	}
	if !s.Available.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("available expected 10000, got %s", s.Available)
	}
}

func TestEvaluateAvailabilityWithStock_OverlayTakesPrecedence(t *testing.T) {
	snap := doughSnapshot()

	overlay := map[int]decimal.Decimal{
		10: decimal.NewFromInt(500), // flour nearly gone in the plan
	}
	result, err := models.EvaluateAvailabilityWithStock(snap, decimal.NewFromInt(1), overlay)
	if err != nil {
		t.Fatalf("EvaluateAvailabilityWithStock: %v", err)
	}
	if result.CanProduce {
		t.Fatal("expected infeasible with overlay")
	}
	if !result.Shortages[0].Shortage.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("shortage expected 100, got %s", result.Shortages[0].Shortage)
	}

	// water is untouched by the overlay and still reads snapshot stock
	for _, in := range result.Inputs {
		if in.ProductId == 11 && !in.Available.Equal(decimal.NewFromInt(50000)) {
			t.Fatalf("water available expected 50000, got %s", in.Available)
		}
	}
}

func TestEvaluateAvailability_RejectsNonPositiveQuantity(t *testing.T) {
	snap := doughSnapshot()

	if _, err := models.EvaluateAvailability(snap, decimal.Zero); err == nil {
		t.Fatal("expected error for zero quantity")
	}
	if _, err := models.EvaluateAvailability(snap, decimal.NewFromInt(-1)); err == nil {
		t.Fatal("expected error for negative quantity")
	}
}

func TestEvaluateAvailability_ComponentUnitConversion(t *testing.T) {
	gram := &models.ProductUnit{ID: 1, Name: "Gram", ConversionFactor: decimal.NewFromInt(1)}
	kg := &models.ProductUnit{ID: 2, Name: "Kilogram", ConversionFactor: decimal.NewFromInt(1000)}

	// dough stocked in kg, recipe declares 250 g per batch
	dough := &models.Product{ID: 12, Name: "Dough", UnitId: kg.ID, CurrentStock: decimal.NewFromInt(1)}
	pizza := &models.Product{ID: 13, Name: "Pizza", UnitId: gram.ID, CurrentStock: decimal.Zero}

	bom := &models.Bom{
		ID:                2,
		Name:              "Pizza",
		BomType:           models.BomTypeProduction,
		OutputQuantity:    decimal.NewFromInt(1),
		FinishedProductId: pizza.ID,
		Components: []*models.BomComponent{
			{BomId: 2, ProductId: dough.ID, UnitId: gram.ID, Quantity: decimal.NewFromInt(250), ItemType: models.BomItemTypeInput},
		},
	}
	snap := &models.BomSnapshot{
		Bom:      bom,
		Products: map[int]*models.Product{dough.ID: dough, pizza.ID: pizza},
		Units:    map[int]*models.ProductUnit{gram.ID: gram, kg.ID: kg},
	}

	result, err := models.EvaluateAvailability(snap, decimal.NewFromInt(4))
	if err != nil {
		t.Fatalf("EvaluateAvailability: %v", err)
	}
	// 4 * 250 g = 1000 g = 1 kg, exactly the stock on hand
	if !result.Inputs[0].RequiredBase.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("required base expected 1 kg, got %s", result.Inputs[0].RequiredBase)
	}
	if !result.CanProduce {
		t.Fatalf("expected feasible at exact stock, got shortages %+v", result.Shortages)
	}

	// one more batch tips it over
	over, err := models.EvaluateAvailability(snap, decimal.NewFromInt(5))
	if err != nil {
		t.Fatalf("EvaluateAvailability: %v", err)
	}
	if over.CanProduce {
		t.Fatal("expected infeasible at 5 batches")
	}
}

func TestOutputComponents_ExplicitRowsSuppressLegacyFallback(t *testing.T) {
	bom := &models.Bom{
		ID:                3,
		FinishedProductId: 99,
		OutputQuantity:    decimal.NewFromInt(1),
		Components: []*models.BomComponent{
			{ProductId: 1, Quantity: decimal.NewFromInt(2), ItemType: models.BomItemTypeInput},
			{ProductId: 2, Quantity: decimal.NewFromInt(3), ItemType: models.BomItemTypeOutput},
			{ProductId: 3, Quantity: decimal.NewFromInt(1), ItemType: models.BomItemTypeOutput},
		},
	}

	outputs := bom.OutputComponents()
	if len(outputs) != 2 {
		t.Fatalf("expected 2 declared outputs, got %d", len(outputs))
	}
	for _, o := range outputs {
		if o.ProductId == 99 {
			t.Fatal("legacy fallback output must not appear when rows are declared")
		}
	}
	if len(bom.InputComponents()) != 1 {
		t.Fatalf("expected 1 input, got %d", len(bom.InputComponents()))
	}
}

func TestOutputComponents_LegacySynthesis(t *testing.T) {
	bom := &models.Bom{
		ID:                4,
		FinishedProductId: 42,
		OutputQuantity:    decimal.NewFromInt(2),
		Components: []*models.BomComponent{
			{ProductId: 1, Quantity: decimal.NewFromInt(5), ItemType: models.BomItemTypeInput},
		},
	}

	outputs := bom.OutputComponents()
	if len(outputs) != 1 {
		t.Fatalf("expected synthesized output, got %d", len(outputs))
	}
	if outputs[0].ProductId != 42 || !outputs[0].Quantity.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected synthesized output %+v", outputs[0])
	}
	if outputs[0].ItemType != models.BomItemTypeOutput {
		t.Fatalf("synthesized output item type %q", outputs[0].ItemType)
	}
}

package models_test

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/mkitchen_backend/models"
	"github.com/shopspring/decimal"
)

func TestProductUnit_FrozenOnceReferenced(t *testing.T) {
	ctx, _ := setupIntegrationEnv(t)
	fx, _, _ := seedKitchen(t, ctx)

	// kg backs the dough product and the pizza recipe component
	if _, err := models.DeleteProductUnit(ctx, fx.kg.ID); !errors.Is(err, models.ErrReferencedByHistory) {
		t.Fatalf("expected ErrReferencedByHistory on delete, got %v", err)
	}

	if _, err := models.UpdateProductUnit(ctx, fx.kg.ID, &models.NewProductUnit{
		Name: "Kilogram", Abbreviation: "kg", Precision: models.PrecisionThree,
		ConversionFactor: decimal.NewFromInt(500),
	}); !errors.Is(err, models.ErrReferencedByHistory) {
		t.Fatalf("expected ErrReferencedByHistory on factor change, got %v", err)
	}

	// renaming without touching the factor stays allowed
	updated, err := models.UpdateProductUnit(ctx, fx.kg.ID, &models.NewProductUnit{
		Name: "Kilogramme", Abbreviation: "kg", Precision: models.PrecisionThree,
		ConversionFactor: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("rename referenced unit: %v", err)
	}
	if updated.Name != "Kilogramme" {
		t.Fatalf("rename not applied, got %q", updated.Name)
	}

	// an unreferenced unit deletes cleanly
	spare, err := models.CreateProductUnit(ctx, &models.NewProductUnit{
		Name: "Crate", Abbreviation: "crt", Precision: models.PrecisionZero,
		ConversionFactor: decimal.NewFromInt(24),
	})
	if err != nil {
		t.Fatalf("CreateProductUnit spare: %v", err)
	}
	if _, err := models.DeleteProductUnit(ctx, spare.ID); err != nil {
		t.Fatalf("delete unreferenced unit: %v", err)
	}
}

func TestProduct_UnitFrozenAfterMovements(t *testing.T) {
	ctx, _ := setupIntegrationEnv(t)
	fx, _, _ := seedKitchen(t, ctx)

	// flour has an opening stock row, so its unit is frozen
	if _, err := models.UpdateProduct(ctx, fx.flour.ID, &models.NewProduct{
		Name: "Flour", UnitId: fx.kg.ID, ProductType: models.ProductTypeRaw,
		MinStock: decimal.NewFromInt(2000),
	}); !errors.Is(err, models.ErrReferencedByHistory) {
		t.Fatalf("expected ErrReferencedByHistory on unit change, got %v", err)
	}

	// other fields stay editable
	updated, err := models.UpdateProduct(ctx, fx.flour.ID, &models.NewProduct{
		Name: "Bread Flour", UnitId: fx.gram.ID, ProductType: models.ProductTypeRaw,
		MinStock: decimal.NewFromInt(3000),
	})
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if updated.Name != "Bread Flour" || !updated.MinStock.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("update not applied: %+v", updated)
	}
	if !updated.CurrentStock.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("update must not touch stock, got %s", updated.CurrentStock)
	}

	// products with ledger rows or recipe references cannot be deleted
	if _, err := models.DeleteProduct(ctx, fx.flour.ID); !errors.Is(err, models.ErrReferencedByHistory) {
		t.Fatalf("expected ErrReferencedByHistory on product delete, got %v", err)
	}
}

func TestBom_ValidationAndDeleteGuard(t *testing.T) {
	ctx, _ := setupIntegrationEnv(t)
	fx, _, pizzaBom := seedKitchen(t, ctx)

	// duplicate (product, item_type) rows are rejected
	if _, err := models.CreateBom(ctx, &models.NewBom{
		Name: "Broken", BomType: models.BomTypeProduction,
		OutputQuantity: decimal.NewFromInt(1), FinishedProductId: fx.dough.ID,
		Components: []models.NewBomComponent{
			{ProductId: fx.flour.ID, Quantity: decimal.NewFromInt(100), ItemType: models.BomItemTypeInput},
			{ProductId: fx.flour.ID, Quantity: decimal.NewFromInt(200), ItemType: models.BomItemTypeInput},
		},
	}); err == nil {
		t.Fatal("expected error for duplicate component")
	}

	// menu recipes need at least one menu link
	if _, err := models.CreateBom(ctx, &models.NewBom{
		Name: "Orphan Menu", BomType: models.BomTypeMenu,
		Components: []models.NewBomComponent{
			{ProductId: fx.pizza.ID, Quantity: decimal.NewFromInt(1), ItemType: models.BomItemTypeInput},
		},
	}); err == nil {
		t.Fatal("expected error for menu recipe without links")
	}

	// zero quantity components are rejected
	if _, err := models.CreateBom(ctx, &models.NewBom{
		Name: "Zero", BomType: models.BomTypeProduction,
		OutputQuantity: decimal.NewFromInt(1), FinishedProductId: fx.dough.ID,
		Components: []models.NewBomComponent{
			{ProductId: fx.flour.ID, Quantity: decimal.Zero, ItemType: models.BomItemTypeInput},
		},
	}); err == nil {
		t.Fatal("expected error for zero quantity component")
	}

	// once a recipe has runs it cannot be deleted
	if _, err := models.CreateProduction(ctx, &models.NewProduction{
		BomId:    pizzaBom.ID,
		Quantity: decimal.NewFromInt(1),
	}); err != nil {
		t.Fatalf("CreateProduction: %v", err)
	}
	if _, err := models.DeleteBom(ctx, pizzaBom.ID); !errors.Is(err, models.ErrReferencedByHistory) {
		t.Fatalf("expected ErrReferencedByHistory on bom delete, got %v", err)
	}

	// deactivating instead works, and an inactive recipe cannot be produced
	if _, err := models.ToggleActiveBom(ctx, pizzaBom.ID, false); err != nil {
		t.Fatalf("ToggleActiveBom: %v", err)
	}
	if _, err := models.CreateProduction(ctx, &models.NewProduction{
		BomId:    pizzaBom.ID,
		Quantity: decimal.NewFromInt(1),
	}); err == nil {
		t.Fatal("expected error producing an inactive recipe")
	}
	if _, err := models.PreviewAvailability(ctx, pizzaBom.ID, decimal.NewFromInt(1)); err == nil {
		t.Fatal("expected error previewing an inactive recipe")
	}
}

func TestUpdateBom_WritesHistory(t *testing.T) {
	ctx, _ := setupIntegrationEnv(t)
	fx, doughBom, _ := seedKitchen(t, ctx)

	if _, err := models.UpdateBom(ctx, doughBom.ID, &models.NewBom{
		Name:              "Dough Batch v2",
		BomType:           models.BomTypeProduction,
		ProductionMode:    models.ProductionModeAutomatic,
		OutputQuantity:    decimal.NewFromInt(1),
		FinishedProductId: fx.dough.ID,
		Components: []models.NewBomComponent{
			{ProductId: fx.flour.ID, Quantity: decimal.NewFromInt(650), ItemType: models.BomItemTypeInput},
			{ProductId: fx.water.ID, Quantity: decimal.NewFromInt(350), ItemType: models.BomItemTypeInput},
		},
	}); err != nil {
		t.Fatalf("UpdateBom: %v", err)
	}

	histories, err := models.GetHistories(ctx, &doughBom.ID, nil, nil)
	if err != nil {
		t.Fatalf("GetHistories: %v", err)
	}
	updates := 0
	for _, h := range histories {
		if h.ActionType == "UPDATE" && h.Description == "Recipe updated" {
			updates++
		}
	}
	if updates != 1 {
		t.Fatalf("expected one update history row, got %d", updates)
	}
}

func TestGetBomByMenuItem(t *testing.T) {
	ctx, _ := setupIntegrationEnv(t)
	fx, _, _ := seedKitchen(t, ctx)

	created, err := models.CreateBom(ctx, &models.NewBom{
		Name:        "Menu: Pizza",
		BomType:     models.BomTypeMenu,
		MenuItemIds: []int{2002},
		Components: []models.NewBomComponent{
			{ProductId: fx.pizza.ID, Quantity: decimal.NewFromInt(1), ItemType: models.BomItemTypeInput},
		},
	})
	if err != nil {
		t.Fatalf("CreateBom: %v", err)
	}

	found, err := models.GetBomByMenuItem(ctx, 2002)
	if err != nil {
		t.Fatalf("GetBomByMenuItem: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("expected bom %d, got %d", created.ID, found.ID)
	}

	if _, err := models.GetBomByMenuItem(ctx, 9999); err == nil {
		t.Fatal("expected error for unlinked menu item")
	}

	// a stale link to a deactivated recipe must not shadow the active one
	if _, err := models.ToggleActiveBom(ctx, created.ID, false); err != nil {
		t.Fatalf("ToggleActiveBom: %v", err)
	}
	replacement, err := models.CreateBom(ctx, &models.NewBom{
		Name:        "Menu: Pizza v2",
		BomType:     models.BomTypeMenu,
		MenuItemIds: []int{2002},
		Components: []models.NewBomComponent{
			{ProductId: fx.pizza.ID, Quantity: decimal.NewFromInt(1), ItemType: models.BomItemTypeInput},
		},
	})
	if err != nil {
		t.Fatalf("CreateBom replacement: %v", err)
	}
	found, err = models.GetBomByMenuItem(ctx, 2002)
	if err != nil {
		t.Fatalf("GetBomByMenuItem after replacement: %v", err)
	}
	if found.ID != replacement.ID {
		t.Fatalf("expected active bom %d, got %d", replacement.ID, found.ID)
	}
}

// seed-dev creates a demo business with units, products, and recipes so the
// production and ledger flows can be exercised locally.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-dev
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mmdatafocus/mkitchen_backend/config"
	"github.com/mmdatafocus/mkitchen_backend/models"
	"github.com/mmdatafocus/mkitchen_backend/utils"
	"github.com/shopspring/decimal"
)

func main() {
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx := context.Background()
	business, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:        "Demo Kitchen",
		ContactName: "Demo Owner",
		Email:       "demo@mkitchen.local",
		Phone:       "09000000000",
		Timezone:    "Asia/Yangon",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create business: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created business: id=%s name=%q\n", business.ID, business.Name)

	ctx = utils.SetBusinessIdInContext(ctx, business.ID.String())
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Seed")

	kg, err := models.CreateProductUnit(ctx, &models.NewProductUnit{
		Name:             "Kilogram",
		Abbreviation:     "kg",
		Precision:        models.PrecisionThree,
		ConversionFactor: decimal.NewFromInt(1000),
	})
	if err != nil {
		fatal("unit Kilogram", err)
	}
	gram, err := models.CreateProductUnit(ctx, &models.NewProductUnit{
		Name:             "Gram",
		Abbreviation:     "g",
		Precision:        models.PrecisionZero,
		ConversionFactor: decimal.NewFromInt(1),
	})
	if err != nil {
		fatal("unit Gram", err)
	}

	rawCategory, err := models.CreateProductCategory(ctx, &models.NewProductCategory{Name: "Raw Ingredients"})
	if err != nil {
		fatal("category Raw Ingredients", err)
	}
	finishedCategory, err := models.CreateProductCategory(ctx, &models.NewProductCategory{Name: "Kitchen Output"})
	if err != nil {
		fatal("category Kitchen Output", err)
	}

	flour, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:         "Flour",
		Sku:          "RAW-FLOUR",
		CategoryId:   rawCategory.ID,
		UnitId:       gram.ID,
		ProductType:  models.ProductTypeRaw,
		MinStock:     decimal.NewFromInt(2000),
		OpeningStock: decimal.NewFromInt(10000),
	})
	if err != nil {
		fatal("product Flour", err)
	}
	water, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:         "Water",
		Sku:          "RAW-WATER",
		CategoryId:   rawCategory.ID,
		UnitId:       gram.ID,
		ProductType:  models.ProductTypeRaw,
		OpeningStock: decimal.NewFromInt(50000),
	})
	if err != nil {
		fatal("product Water", err)
	}
	dough, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:        "Pizza Dough",
		Sku:         "SEMI-DOUGH",
		CategoryId:  finishedCategory.ID,
		UnitId:      kg.ID,
		ProductType: models.ProductTypeSemiFinished,
		MinStock:    decimal.NewFromInt(2),
	})
	if err != nil {
		fatal("product Pizza Dough", err)
	}
	pizza, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:        "Margherita Pizza",
		Sku:         "FIN-PIZZA",
		CategoryId:  finishedCategory.ID,
		UnitId:      gram.ID,
		ProductType: models.ProductTypeFinished,
	})
	if err != nil {
		fatal("product Margherita Pizza", err)
	}

	// Dough is produced automatically when a downstream recipe runs short.
	doughBom, err := models.CreateBom(ctx, &models.NewBom{
		Name:              "Pizza Dough Batch",
		BomType:           models.BomTypeProduction,
		ProductionMode:    models.ProductionModeAutomatic,
		OutputQuantity:    decimal.NewFromInt(1),
		FinishedProductId: dough.ID,
		Components: []models.NewBomComponent{
			{ProductId: flour.ID, Quantity: decimal.NewFromInt(600), ItemType: models.BomItemTypeInput},
			{ProductId: water.ID, Quantity: decimal.NewFromInt(400), ItemType: models.BomItemTypeInput},
		},
	})
	if err != nil {
		fatal("bom Pizza Dough Batch", err)
	}
	pizzaBom, err := models.CreateBom(ctx, &models.NewBom{
		Name:              "Margherita Pizza",
		BomType:           models.BomTypeProduction,
		ProductionMode:    models.ProductionModeManual,
		OutputQuantity:    decimal.NewFromInt(1),
		FinishedProductId: pizza.ID,
		Components: []models.NewBomComponent{
			{ProductId: dough.ID, UnitId: kg.ID, Quantity: decimal.RequireFromString("0.25"), ItemType: models.BomItemTypeInput},
		},
	})
	if err != nil {
		fatal("bom Margherita Pizza", err)
	}

	// POS menu item 1001 consumes one pizza per sale.
	menuBom, err := models.CreateBom(ctx, &models.NewBom{
		Name:        "Menu: Margherita Pizza",
		BomType:     models.BomTypeMenu,
		MenuItemIds: []int{1001},
		Components: []models.NewBomComponent{
			{ProductId: pizza.ID, Quantity: decimal.NewFromInt(1), ItemType: models.BomItemTypeInput},
		},
	})
	if err != nil {
		fatal("bom Menu: Margherita Pizza", err)
	}

	fmt.Printf("Seeded units=%d,%d products=%d,%d,%d,%d boms=%d,%d,%d\n",
		kg.ID, gram.ID, flour.ID, water.ID, dough.ID, pizza.ID, doughBom.ID, pizzaBom.ID, menuBom.ID)
	fmt.Printf("Try: X-Business-Id: %s  POST /api/productions {\"bom_id\": %d, \"quantity\": \"4\"}\n", business.ID, pizzaBom.ID)
}

func fatal(what string, err error) {
	fmt.Fprintf(os.Stderr, "failed to seed %s: %v\n", what, err)
	os.Exit(1)
}

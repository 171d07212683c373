package models_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/mmdatafocus/mkitchen_backend/models"
	"github.com/mmdatafocus/mkitchen_backend/utils"
	"github.com/shopspring/decimal"
)

func TestPaginateCatalog_CursorWalk(t *testing.T) {
	ctx, _ := setupIntegrationEnv(t)
	_, _, pizzaBom := seedKitchen(t, ctx)

	// products: 4 seeded, page size 3
	limit := 3
	first, err := models.PaginateProduct(ctx, &limit, nil, nil)
	if err != nil {
		t.Fatalf("PaginateProduct: %v", err)
	}
	if len(first.Edges) != 3 {
		t.Fatalf("expected 3 product edges, got %d", len(first.Edges))
	}
	if !utils.DereferencePtr(first.PageInfo.HasNextPage) {
		t.Fatal("expected a next product page")
	}
	second, err := models.PaginateProduct(ctx, &limit, &first.PageInfo.EndCursor, nil)
	if err != nil {
		t.Fatalf("PaginateProduct second page: %v", err)
	}
	if len(second.Edges) != 1 {
		t.Fatalf("expected 1 product edge on the last page, got %d", len(second.Edges))
	}
	if utils.DereferencePtr(second.PageInfo.HasNextPage) {
		t.Fatal("expected no page after the last product page")
	}
	seen := map[int]bool{}
	for _, edge := range append(first.Edges, second.Edges...) {
		if seen[edge.Node.ID] {
			t.Fatalf("product %d returned twice across pages", edge.Node.ID)
		}
		seen[edge.Node.ID] = true
	}

	// units: gram + kg + the default unit created with the business
	unitLimit := 2
	unitsPage, err := models.PaginateProductUnit(ctx, &unitLimit, nil, nil)
	if err != nil {
		t.Fatalf("PaginateProductUnit: %v", err)
	}
	if len(unitsPage.Edges) != 2 {
		t.Fatalf("expected 2 unit edges, got %d", len(unitsPage.Edges))
	}
	if !utils.DereferencePtr(unitsPage.PageInfo.HasNextPage) {
		t.Fatal("expected a next unit page")
	}

	// recipes
	bomLimit := 1
	bomsPage, err := models.PaginateBom(ctx, &bomLimit, nil, nil)
	if err != nil {
		t.Fatalf("PaginateBom: %v", err)
	}
	if len(bomsPage.Edges) != 1 || !utils.DereferencePtr(bomsPage.PageInfo.HasNextPage) {
		t.Fatalf("expected a full first recipe page with more to come, got %d edges", len(bomsPage.Edges))
	}

	// runs: producing one pizza cascades a dough batch, so two runs exist
	if _, err := models.CreateProduction(ctx, &models.NewProduction{
		BomId:    pizzaBom.ID,
		Quantity: decimal.NewFromInt(1),
	}); err != nil {
		t.Fatalf("CreateProduction: %v", err)
	}
	runLimit := 1
	runsFirst, err := models.PaginateProductionRun(ctx, &runLimit, nil, nil)
	if err != nil {
		t.Fatalf("PaginateProductionRun: %v", err)
	}
	if len(runsFirst.Edges) != 1 || !utils.DereferencePtr(runsFirst.PageInfo.HasNextPage) {
		t.Fatalf("expected a full first run page with more to come, got %d edges", len(runsFirst.Edges))
	}
	runsSecond, err := models.PaginateProductionRun(ctx, &runLimit, &runsFirst.PageInfo.EndCursor, nil)
	if err != nil {
		t.Fatalf("PaginateProductionRun second page: %v", err)
	}
	if len(runsSecond.Edges) != 1 {
		t.Fatalf("expected 1 run edge on the second page, got %d", len(runsSecond.Edges))
	}
	if runsFirst.Edges[0].Node.ID == runsSecond.Edges[0].Node.ID {
		t.Fatal("same run returned on both pages")
	}

	// histories accumulate from all the seeding above
	historyLimit := 5
	actionType := "CREATE"
	historiesPage, err := models.PaginateHistory(ctx, &historyLimit, nil, nil, nil, nil, &actionType)
	if err != nil {
		t.Fatalf("PaginateHistory: %v", err)
	}
	if len(historiesPage.Edges) == 0 {
		t.Fatal("expected create history edges")
	}
	for _, edge := range historiesPage.Edges {
		if edge.Node.ActionType != "CREATE" {
			t.Fatalf("expected only CREATE rows, got %s", edge.Node.ActionType)
		}
	}
}

func TestGetProductUnits_CachedListStaysFresh(t *testing.T) {
	ctx, _ := setupIntegrationEnv(t)

	before, err := models.GetProductUnits(ctx, nil)
	if err != nil {
		t.Fatalf("GetProductUnits: %v", err)
	}

	if _, err := models.CreateProductUnit(ctx, &models.NewProductUnit{
		Name: "Litre", Abbreviation: "l", Precision: models.PrecisionTwo,
		ConversionFactor: decimal.NewFromInt(1000),
	}); err != nil {
		t.Fatalf("CreateProductUnit: %v", err)
	}

	after, err := models.GetProductUnits(ctx, nil)
	if err != nil {
		t.Fatalf("GetProductUnits after create: %v", err)
	}
	if len(after) != len(before)+1 {
		t.Fatalf("expected %d units after create, got %d", len(before)+1, len(after))
	}
}

func TestBusiness_ProfileLifecycle(t *testing.T) {
	ctx, businessID := setupIntegrationEnv(t)

	biz, err := models.GetBusiness(ctx)
	if err != nil {
		t.Fatalf("GetBusiness: %v", err)
	}
	if biz.ID.String() != businessID {
		t.Fatalf("expected business %s, got %s", businessID, biz.ID)
	}

	renamed := fmt.Sprintf("Renamed Kitchen %d", time.Now().UnixNano())
	updated, err := models.UpdateBusiness(ctx, &models.NewBusiness{
		Name:  renamed,
		Email: biz.Email,
		Phone: biz.Phone,
	})
	if err != nil {
		t.Fatalf("UpdateBusiness: %v", err)
	}
	if updated.Name != renamed {
		t.Fatalf("expected name %q, got %q", renamed, updated.Name)
	}

	fresh, err := models.GetBusiness(ctx)
	if err != nil {
		t.Fatalf("GetBusiness after update: %v", err)
	}
	if fresh.Name != renamed {
		t.Fatalf("stale business read after update: %q", fresh.Name)
	}

	all, err := models.GetBusinesses(ctx, &renamed)
	if err != nil {
		t.Fatalf("GetBusinesses: %v", err)
	}
	found := false
	for _, b := range all {
		if b.ID == biz.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("renamed business missing from listing")
	}

	toggled, err := models.ToggleActiveBusiness(ctx, biz.ID, false)
	if err != nil {
		t.Fatalf("ToggleActiveBusiness: %v", err)
	}
	if utils.DereferencePtr(toggled.IsActive) {
		t.Fatal("expected business to be inactive")
	}
	if _, err := models.ToggleActiveBusiness(ctx, biz.ID, true); err != nil {
		t.Fatalf("ToggleActiveBusiness reactivate: %v", err)
	}
}

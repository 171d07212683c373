package models

import (
	"context"
	"errors"

	"github.com/mmdatafocus/mkitchen_backend/config"
	"github.com/mmdatafocus/mkitchen_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BomSnapshot is a recipe plus every product and unit it touches,
// loaded once so feasibility can be computed without further queries.
type BomSnapshot struct {
	Bom      *Bom
	Products map[int]*Product
	Units    map[int]*ProductUnit
}

type InputRequirement struct {
	ProductId    int             `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Required     decimal.Decimal `json:"required"`      // in the component's unit
	RequiredBase decimal.Decimal `json:"required_base"` // in the product's base unit
	Available    decimal.Decimal `json:"available"`
	Shortage     decimal.Decimal `json:"shortage"`
}

type OutputYield struct {
	ProductId    int             `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Produced     decimal.Decimal `json:"produced"`      // in the component's unit
	ProducedBase decimal.Decimal `json:"produced_base"` // in the product's base unit
}

type AvailabilityResult struct {
	BomId      int                `json:"bom_id"`
	Quantity   decimal.Decimal    `json:"quantity"`
	CanProduce bool               `json:"can_produce"`
	Inputs     []InputRequirement `json:"inputs"`
	Outputs    []OutputYield      `json:"outputs"`
	Shortages  []ShortageDetail   `json:"shortages"`
}

// converts a component quantity for qty batches into the owning
// product's base unit
func (snap *BomSnapshot) componentBaseQuantity(c *BomComponent, qty decimal.Decimal) (decimal.Decimal, error) {
	product, ok := snap.Products[c.ProductId]
	if !ok {
		return decimal.Zero, utils.ErrorRecordNotFound
	}
	var from *ProductUnit
	if c.UnitId > 0 {
		from, ok = snap.Units[c.UnitId]
		if !ok {
			return decimal.Zero, utils.ErrorRecordNotFound
		}
	}
	to := snap.Units[product.UnitId]
	return ConvertQuantity(c.Quantity.Mul(qty), from, to)
}

// EvaluateAvailability computes feasibility of producing qty batches against
// the snapshot's stock levels. Pure function, mutates nothing.
func EvaluateAvailability(snap *BomSnapshot, qty decimal.Decimal) (*AvailabilityResult, error) {
	return EvaluateAvailabilityWithStock(snap, qty, nil)
}

// EvaluateAvailabilityWithStock is EvaluateAvailability with a stock overlay,
// entries in stock take precedence over the snapshot's current_stock values.
// The production engine uses the overlay to track planned movements across a
// recursive chain before anything is committed.
func EvaluateAvailabilityWithStock(snap *BomSnapshot, qty decimal.Decimal, stock map[int]decimal.Decimal) (*AvailabilityResult, error) {

	if !qty.IsPositive() {
		return nil, errors.New("quantity must be greater than zero")
	}

	result := AvailabilityResult{
		BomId:      snap.Bom.ID,
		Quantity:   qty,
		CanProduce: true,
		Inputs:     make([]InputRequirement, 0),
		Outputs:    make([]OutputYield, 0),
		Shortages:  make([]ShortageDetail, 0),
	}

	for _, c := range snap.Bom.InputComponents() {
		product, ok := snap.Products[c.ProductId]
		if !ok {
			return nil, utils.ErrorRecordNotFound
		}
		requiredBase, err := snap.componentBaseQuantity(c, qty)
		if err != nil {
			return nil, err
		}

		available := product.CurrentStock
		if stock != nil {
			if overlay, ok := stock[c.ProductId]; ok {
				available = overlay
			}
		}

		input := InputRequirement{
			ProductId:    c.ProductId,
			ProductName:  product.Name,
			Required:     c.Quantity.Mul(qty),
			RequiredBase: requiredBase,
			Available:    available,
			Shortage:     decimal.Zero,
		}
		if available.LessThan(requiredBase) {
			input.Shortage = requiredBase.Sub(available)
			result.CanProduce = false
			result.Shortages = append(result.Shortages, ShortageDetail{
				ProductId:   c.ProductId,
				ProductName: product.Name,
				Required:    requiredBase,
				Available:   available,
				Shortage:    input.Shortage,
			})
		}
		result.Inputs = append(result.Inputs, input)
	}

	for _, c := range snap.Bom.OutputComponents() {
		product, ok := snap.Products[c.ProductId]
		if !ok {
			return nil, utils.ErrorRecordNotFound
		}
		producedBase, err := snap.componentBaseQuantity(c, qty)
		if err != nil {
			return nil, err
		}
		result.Outputs = append(result.Outputs, OutputYield{
			ProductId:    c.ProductId,
			ProductName:  product.Name,
			Produced:     c.Quantity.Mul(qty),
			ProducedBase: producedBase,
		})
	}

	return &result, nil
}

// outputPerBatch returns how much of productId one batch yields, in the
// product's base unit. Zero when the recipe does not produce it.
func (snap *BomSnapshot) outputPerBatch(productId int) (decimal.Decimal, error) {
	for _, c := range snap.Bom.OutputComponents() {
		if c.ProductId == productId {
			return snap.componentBaseQuantity(c, decimal.NewFromInt(1))
		}
	}
	return decimal.Zero, nil
}

// loadBomSnapshot loads a recipe and every product/unit it references.
// Pass a transaction handle to read rows already locked by the caller.
func loadBomSnapshot(tx *gorm.DB, businessId string, bomId int) (*BomSnapshot, error) {

	var bom Bom
	err := tx.Where("business_id = ?", businessId).
		Preload("Components").
		Preload("MenuItems").
		First(&bom, bomId).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	snap := BomSnapshot{
		Bom:      &bom,
		Products: make(map[int]*Product),
		Units:    make(map[int]*ProductUnit),
	}

	productIds := make([]int, 0, len(bom.Components)+1)
	for _, c := range bom.Components {
		productIds = append(productIds, c.ProductId)
	}
	if bom.FinishedProductId > 0 {
		productIds = append(productIds, bom.FinishedProductId)
	}
	productIds = utils.UniqueSlice(productIds)

	var products []*Product
	err = tx.Where("business_id = ? AND id IN ?", businessId, productIds).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	if len(products) != len(productIds) {
		return nil, utils.ErrorRecordNotFound
	}

	unitIds := make([]int, 0, len(products)+len(bom.Components))
	for _, p := range products {
		snap.Products[p.ID] = p
		unitIds = append(unitIds, p.UnitId)
	}
	for _, c := range bom.Components {
		if c.UnitId > 0 {
			unitIds = append(unitIds, c.UnitId)
		}
	}
	unitIds = utils.UniqueSlice(unitIds)

	var units []*ProductUnit
	err = tx.Where("business_id = ? AND id IN ?", businessId, unitIds).
		Find(&units).Error
	if err != nil {
		return nil, err
	}
	if len(units) != len(unitIds) {
		return nil, utils.ErrorRecordNotFound
	}
	for _, u := range units {
		snap.Units[u.ID] = u
	}

	return &snap, nil
}

// PreviewAvailability answers "can I produce qty batches right now" without
// locking or mutating anything.
func PreviewAvailability(ctx context.Context, bomId int, qty decimal.Decimal) (*AvailabilityResult, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	snap, err := loadBomSnapshot(db.WithContext(ctx), businessId, bomId)
	if err != nil {
		return nil, err
	}
	if !utils.DereferencePtr(snap.Bom.IsActive) {
		return nil, errors.New("recipe is inactive")
	}
	return EvaluateAvailability(snap, qty)
}

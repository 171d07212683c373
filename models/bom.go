package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/mkitchen_backend/config"
	"github.com/mmdatafocus/mkitchen_backend/utils"
	"github.com/shopspring/decimal"
)

type Bom struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BusinessId        string          `gorm:"index;not null" json:"business_id"`
	Name              string          `gorm:"size:100;not null" json:"name"`
	BomType           BomType         `gorm:"type:enum('P','M');default:'P';not null" json:"bom_type" binding:"required"`
	ProductionMode    ProductionMode  `gorm:"type:enum('manual','automatic');default:'manual';not null" json:"production_mode"`
	OutputQuantity    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:1" json:"output_quantity"`
	FinishedProductId int             `gorm:"index;default:0" json:"finished_product_id"`
	Version           int             `gorm:"not null;default:1" json:"version"`
	IsActive          *bool           `gorm:"not null;default:true" json:"is_active"`
	Components        []*BomComponent `gorm:"foreignKey:BomId" json:"components"`
	MenuItems         []*BomMenuItem  `gorm:"foreignKey:BomId" json:"menu_items"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type BomComponent struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"index;not null" json:"business_id"`
	BomId      int             `gorm:"index;not null" json:"bom_id"`
	ProductId  int             `gorm:"index;not null" json:"product_id"`
	UnitId     int             `gorm:"index;default:0" json:"unit_id"` // 0 = product's base unit
	Quantity   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	ItemType   BomItemType     `gorm:"type:enum('input','output');default:'input';not null" json:"item_type"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type BomMenuItem struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id"`
	BomId      int       `gorm:"index;not null" json:"bom_id"`
	MenuItemId int       `gorm:"index;not null" json:"menu_item_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewBomComponent struct {
	ProductId int             `json:"product_id" binding:"required"`
	UnitId    int             `json:"unit_id"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
	ItemType  BomItemType     `json:"item_type" binding:"required"`
}

type NewBom struct {
	Name              string            `json:"name"`
	BomType           BomType           `json:"bom_type" binding:"required"`
	ProductionMode    ProductionMode    `json:"production_mode"`
	OutputQuantity    decimal.Decimal   `json:"output_quantity"`
	FinishedProductId int               `json:"finished_product_id"`
	MenuItemIds       []int             `json:"menu_item_ids"`
	Components        []NewBomComponent `json:"components" binding:"required"`
}

type BomsEdge Edge[Bom]
type BomsConnection struct {
	PageInfo *PageInfo   `json:"pageInfo"`
	Edges    []*BomsEdge `json:"edges"`
}

func (b Bom) GetId() int {
	return b.ID
}

func (b Bom) GetBusinessId() string {
	return b.BusinessId
}

// node
// returns decoded curosr string
func (b Bom) GetCursor() string {
	return b.Name
}

// OutputComponents returns the declared outputs, falling back to the legacy
// single-output representation (finished_product_id + output_quantity) when
// no output rows exist.
func (b *Bom) OutputComponents() []*BomComponent {
	outputs := make([]*BomComponent, 0)
	for _, c := range b.Components {
		if c.ItemType == BomItemTypeOutput {
			outputs = append(outputs, c)
		}
	}
	if len(outputs) == 0 && b.FinishedProductId > 0 {
		outputs = append(outputs, &BomComponent{
			BusinessId: b.BusinessId,
			BomId:      b.ID,
			ProductId:  b.FinishedProductId,
			Quantity:   b.OutputQuantity,
			ItemType:   BomItemTypeOutput,
		})
	}
	return outputs
}

func (b *Bom) InputComponents() []*BomComponent {
	inputs := make([]*BomComponent, 0)
	for _, c := range b.Components {
		if c.ItemType == BomItemTypeInput {
			inputs = append(inputs, c)
		}
	}
	return inputs
}

func (input *NewBom) validate(ctx context.Context, businessId string, id int) error {

	switch input.BomType {
	case BomTypeProduction:
		if input.Name == "" {
			return errors.New("name is required for production recipes")
		}
	case BomTypeMenu:
		if len(input.MenuItemIds) == 0 {
			return errors.New("at least one menu item link is required for menu recipes")
		}
	default:
		return errors.New("invalid bom type")
	}

	if input.Name != "" {
		if err := utils.ValidateUnique[Bom](ctx, businessId, "name", input.Name, id); err != nil {
			return err
		}
	}

	if !input.OutputQuantity.IsZero() && !input.OutputQuantity.IsPositive() {
		return errors.New("output quantity must be greater than zero")
	}
	if input.FinishedProductId > 0 {
		if err := utils.ValidateResourceId[Product](ctx, businessId, input.FinishedProductId); err != nil {
			return errors.New("finished product not found")
		}
	}

	if len(input.Components) == 0 {
		return errors.New("at least one component is required")
	}

	// summing vs overwriting duplicate rows is ambiguous, reject them outright
	seen := make(map[string]bool, len(input.Components))
	for _, c := range input.Components {
		if !c.Quantity.IsPositive() {
			return errors.New("component quantity must be greater than zero")
		}
		if c.ItemType != BomItemTypeInput && c.ItemType != BomItemTypeOutput {
			return errors.New("invalid component item type")
		}
		key := fmt.Sprintf("%d|%s", c.ProductId, c.ItemType)
		if seen[key] {
			return fmt.Errorf("duplicate component for product %d (%s)", c.ProductId, c.ItemType)
		}
		seen[key] = true

		if err := utils.ValidateResourceId[Product](ctx, businessId, c.ProductId); err != nil {
			return fmt.Errorf("component product %d not found", c.ProductId)
		}
		if c.UnitId > 0 {
			if err := utils.ValidateResourceId[ProductUnit](ctx, businessId, c.UnitId); err != nil {
				return fmt.Errorf("component unit %d not found", c.UnitId)
			}
		}
	}

	return nil
}

func CreateBom(ctx context.Context, input *NewBom) (*Bom, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	outputQuantity := input.OutputQuantity
	if outputQuantity.IsZero() {
		outputQuantity = decimal.NewFromInt(1)
	}
	productionMode := input.ProductionMode
	if productionMode == "" {
		productionMode = ProductionModeManual
	}

	bom := Bom{
		BusinessId:        businessId,
		Name:              input.Name,
		BomType:           input.BomType,
		ProductionMode:    productionMode,
		OutputQuantity:    outputQuantity,
		FinishedProductId: input.FinishedProductId,
		IsActive:          utils.NewTrue(),
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&bom).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	for _, c := range input.Components {
		component := BomComponent{
			BusinessId: businessId,
			BomId:      bom.ID,
			ProductId:  c.ProductId,
			UnitId:     c.UnitId,
			Quantity:   c.Quantity,
			ItemType:   c.ItemType,
		}
		if err := tx.WithContext(ctx).Create(&component).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		bom.Components = append(bom.Components, &component)
	}

	for _, menuItemId := range utils.UniqueSlice(input.MenuItemIds) {
		menuItem := BomMenuItem{
			BusinessId: businessId,
			BomId:      bom.ID,
			MenuItemId: menuItemId,
		}
		if err := tx.WithContext(ctx).Create(&menuItem).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		bom.MenuItems = append(bom.MenuItems, &menuItem)
	}

	if err := SaveHistoryCreate(tx.WithContext(ctx), bom.ID, &bom, "Recipe created"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &bom, nil
}

func UpdateBom(ctx context.Context, id int, input *NewBom) (*Bom, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	bom, err := utils.FetchModel[Bom](ctx, businessId, id, "Components", "MenuItems")
	if err != nil {
		return nil, err
	}

	outputQuantity := input.OutputQuantity
	if outputQuantity.IsZero() {
		outputQuantity = decimal.NewFromInt(1)
	}
	productionMode := input.ProductionMode
	if productionMode == "" {
		productionMode = ProductionModeManual
	}

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(&bom).Updates(map[string]interface{}{
		"Name":              input.Name,
		"BomType":           input.BomType,
		"ProductionMode":    productionMode,
		"OutputQuantity":    outputQuantity,
		"FinishedProductId": input.FinishedProductId,
		"Version":           bom.Version + 1,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// replace component and menu item rows
	if err := tx.WithContext(ctx).Where("bom_id = ?", id).Delete(&BomComponent{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("bom_id = ?", id).Delete(&BomMenuItem{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	bom.Components = nil
	bom.MenuItems = nil
	for _, c := range input.Components {
		component := BomComponent{
			BusinessId: businessId,
			BomId:      bom.ID,
			ProductId:  c.ProductId,
			UnitId:     c.UnitId,
			Quantity:   c.Quantity,
			ItemType:   c.ItemType,
		}
		if err := tx.WithContext(ctx).Create(&component).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		bom.Components = append(bom.Components, &component)
	}
	for _, menuItemId := range utils.UniqueSlice(input.MenuItemIds) {
		menuItem := BomMenuItem{
			BusinessId: businessId,
			BomId:      bom.ID,
			MenuItemId: menuItemId,
		}
		if err := tx.WithContext(ctx).Create(&menuItem).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		bom.MenuItems = append(bom.MenuItems, &menuItem)
	}

	if err := SaveHistoryUpdate(tx.WithContext(ctx), bom.ID, bom, "Recipe updated"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	// caching
	if err := RemoveRedisBoth(*bom); err != nil {
		return nil, err
	}
	return bom, nil
}

func DeleteBom(ctx context.Context, id int) (*Bom, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	result, err := utils.FetchModel[Bom](ctx, businessId, id, "Components", "MenuItems")
	if err != nil {
		return nil, err
	}

	// recipes with production history can only be deactivated
	count, err := utils.ResourceCountWhere[ProductionRun](ctx, businessId, "bom_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrReferencedByHistory
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Where("bom_id = ?", id).Delete(&BomComponent{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("bom_id = ?", id).Delete(&BomMenuItem{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(&result).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := SaveHistoryDelete(tx.WithContext(ctx), id, &result, "Recipe deleted"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	// caching
	if err := RemoveRedisBoth(*result); err != nil {
		return nil, err
	}
	return result, nil
}

func GetBom(ctx context.Context, id int) (*Bom, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Bom](ctx, businessId, id, "Components", "MenuItems")
}

func GetBoms(ctx context.Context, name *string, bomType *BomType) ([]*Bom, error) {

	db := config.GetDB()
	var results []*Bom

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if bomType != nil && *bomType != "" {
		dbCtx = dbCtx.Where("bom_type = ?", bomType)
	}
	err := dbCtx.Preload("Components").Preload("MenuItems").Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetBomByMenuItem resolves the active menu recipe linked to a POS menu item.
func GetBomByMenuItem(ctx context.Context, menuItemId int) (*Bom, error) {

	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	// joined so a stale link to a deactivated recipe cannot shadow the
	// active one sharing the menu item id
	var bom Bom
	err := db.WithContext(ctx).
		Joins("JOIN bom_menu_items ON bom_menu_items.bom_id = boms.id").
		Where("bom_menu_items.business_id = ? AND bom_menu_items.menu_item_id = ?", businessId, menuItemId).
		Where("boms.business_id = ? AND boms.is_active = true", businessId).
		Preload("Components").
		Preload("MenuItems").
		First(&bom).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &bom, nil
}

func ToggleActiveBom(ctx context.Context, id int, isActive bool) (*Bom, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return ToggleActiveModel[Bom](ctx, businessId, id, isActive)
}

func PaginateBom(ctx context.Context, limit *int, after *string, name *string) (*BomsConnection, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId).
		Preload("Components").Preload("MenuItems")
	if name != nil && *name != "" {
		dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	edges, pageInfo, err := FetchPagePureCursor[Bom](dbCtx, *limit, after, "name", ">")
	if err != nil {
		return nil, err
	}
	var bomsConnection BomsConnection
	bomsConnection.PageInfo = pageInfo
	for _, edge := range edges {
		bomEdge := BomsEdge(edge)
		bomsConnection.Edges = append(bomsConnection.Edges, &bomEdge)
	}
	return &bomsConnection, err
}

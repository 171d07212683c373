package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/mkitchen_backend/config"
	"github.com/mmdatafocus/mkitchen_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"index;not null" json:"business_id"`
	Name         string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Sku          string          `gorm:"size:100" json:"sku"`
	Barcode      string          `gorm:"size:100" json:"barcode"`
	CategoryId   int             `gorm:"index" json:"category_id"`
	UnitId       int             `gorm:"index;not null" json:"unit_id" binding:"required"`
	Unit         *ProductUnit    `gorm:"foreignKey:UnitId" json:"unit,omitempty"`
	ProductType  ProductType     `gorm:"type:enum('R','S','F');default:'R';not null" json:"product_type" binding:"required"`
	CurrentStock decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"current_stock"`
	MinStock     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"min_stock"`
	Status       StockStatus     `gorm:"-" json:"status"`
	IsActive     *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name         string          `json:"name" binding:"required"`
	Sku          string          `json:"sku"`
	Barcode      string          `json:"barcode"`
	CategoryId   int             `json:"category_id"`
	UnitId       int             `json:"unit_id" binding:"required"`
	ProductType  ProductType     `json:"product_type" binding:"required"`
	MinStock     decimal.Decimal `json:"min_stock"`
	OpeningStock decimal.Decimal `json:"opening_stock"`
}

type ProductsEdge Edge[Product]
type ProductsConnection struct {
	PageInfo *PageInfo       `json:"pageInfo"`
	Edges    []*ProductsEdge `json:"edges"`
}

func (p Product) GetId() int {
	return p.ID
}

func (p Product) GetBusinessId() string {
	return p.BusinessId
}

// node
// returns decoded curosr string
func (p Product) GetCursor() string {
	return p.Name
}

// StockStatus derives the label from the stored balance, never persisted
func (p *Product) StockStatus() StockStatus {
	if p.CurrentStock.LessThanOrEqual(decimal.Zero) {
		return StockStatusOutOfStock
	}
	if p.CurrentStock.LessThanOrEqual(p.MinStock) {
		return StockStatusLowStock
	}
	return StockStatusInStock
}

func (p *Product) AfterFind(tx *gorm.DB) error {
	p.Status = p.StockStatus()
	return nil
}

func (input *NewProduct) validate(ctx context.Context, businessId string, id int) error {
	if err := utils.ValidateUnique[Product](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	if input.Sku != "" {
		if err := utils.ValidateUnique[Product](ctx, businessId, "sku", input.Sku, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateResourceId[ProductUnit](ctx, businessId, input.UnitId); err != nil {
		return errors.New("product unit not found")
	}
	if input.CategoryId != 0 {
		if err := utils.ValidateResourceId[ProductCategory](ctx, businessId, input.CategoryId); err != nil {
			return errors.New("product category not found")
		}
	}
	if input.MinStock.IsNegative() {
		return errors.New("min stock must not be negative")
	}
	if input.OpeningStock.IsNegative() {
		return errors.New("opening stock must not be negative")
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	product := Product{
		BusinessId:   businessId,
		Name:         input.Name,
		Sku:          input.Sku,
		Barcode:      input.Barcode,
		CategoryId:   input.CategoryId,
		UnitId:       input.UnitId,
		ProductType:  input.ProductType,
		CurrentStock: input.OpeningStock,
		MinStock:     input.MinStock,
		IsActive:     utils.NewTrue(),
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&product).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// the opening balance enters through the ledger like every other movement,
	// keeping sum(transactions) == current_stock from day one
	if input.OpeningStock.IsPositive() {
		opening := StockTransaction{
			BusinessId:      businessId,
			ProductId:       product.ID,
			TransactionType: StockTransactionTypeIn,
			Quantity:        input.OpeningStock,
			BalanceAfter:    input.OpeningStock,
			Notes:           "opening stock",
		}
		if userId, ok := utils.GetUserIdFromContext(ctx); ok {
			opening.UserId = userId
		}
		if err := tx.WithContext(ctx).Create(&opening).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	product.Status = product.StockStatus()
	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	// unit is frozen once ledger rows exist, the base unit gives
	// every recorded quantity its meaning
	if product.UnitId != input.UnitId {
		count, err := utils.ResourceCountWhere[StockTransaction](ctx, businessId, "product_id = ?", id)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrReferencedByHistory
		}
	}

	db := config.GetDB()
	// current_stock is never written here, only the ledger moves it
	err = db.WithContext(ctx).Model(&product).Updates(map[string]interface{}{
		"Name":        input.Name,
		"Sku":         input.Sku,
		"Barcode":     input.Barcode,
		"CategoryId":  input.CategoryId,
		"UnitId":      input.UnitId,
		"ProductType": input.ProductType,
		"MinStock":    input.MinStock,
	}).Error
	if err != nil {
		return nil, err
	}

	// caching
	if err := RemoveRedisBoth(*product); err != nil {
		return nil, err
	}
	product.Status = product.StockStatus()
	return product, nil
}

func DeleteProduct(ctx context.Context, id int) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	result, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	// products with ledger history or recipe references can only be deactivated
	count, err := utils.ResourceCountWhere[StockTransaction](ctx, businessId, "product_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrReferencedByHistory
	}
	count, err = utils.ResourceCountWhere[BomComponent](ctx, businessId, "product_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrReferencedByHistory
	}

	db := config.GetDB()
	// db action
	err = db.WithContext(ctx).Delete(&result).Error
	if err != nil {
		return nil, err
	}

	// caching
	if err := RemoveRedisBoth(*result); err != nil {
		return nil, err
	}
	return result, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {

	product, err := GetResource[Product](ctx, id, "Unit")
	if err != nil {
		return nil, err
	}
	product.Status = product.StockStatus()
	return product, nil
}

func GetProducts(ctx context.Context, name *string, categoryId *int, productType *ProductType) ([]*Product, error) {

	db := config.GetDB()
	var results []*Product

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if categoryId != nil && *categoryId > 0 {
		dbCtx = dbCtx.Where("category_id = ?", categoryId)
	}
	if productType != nil && *productType != "" {
		dbCtx = dbCtx.Where("product_type = ?", productType)
	}
	err := dbCtx.Preload("Unit").Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// products at or below their minimum threshold
func GetLowStockProducts(ctx context.Context) ([]*Product, error) {

	db := config.GetDB()
	var results []*Product

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Where("current_stock <= min_stock").
		Preload("Unit").
		Order("name").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveProduct(ctx context.Context, id int, isActive bool) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return ToggleActiveModel[Product](ctx, businessId, id, isActive)
}

func PaginateProduct(ctx context.Context, limit *int, after *string, name *string) (*ProductsConnection, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && *name != "" {
		dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	edges, pageInfo, err := FetchPagePureCursor[Product](dbCtx, *limit, after, "name", ">")
	if err != nil {
		return nil, err
	}
	var productsConnection ProductsConnection
	productsConnection.PageInfo = pageInfo
	for _, edge := range edges {
		productEdge := ProductsEdge(edge)
		productsConnection.Edges = append(productsConnection.Edges, &productEdge)
	}
	return &productsConnection, err
}

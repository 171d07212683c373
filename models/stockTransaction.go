package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/mkitchen_backend/config"
	"github.com/mmdatafocus/mkitchen_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockTransaction is the append-only ledger. current_stock is never written
// except alongside a row here, so the signed sum of a product's rows always
// equals its balance.
type StockTransaction struct {
	ID              int                  `gorm:"primary_key" json:"id"`
	BusinessId      string               `gorm:"index;not null" json:"business_id"`
	ProductId       int                  `gorm:"index;not null" json:"product_id"`
	TransactionType StockTransactionType `gorm:"type:enum('IN','OUT','Add','Deduct','Production_IN','Production_OUT','Adjustment');not null" json:"transaction_type"`
	Quantity        decimal.Decimal      `gorm:"type:decimal(20,4);not null" json:"quantity"` // signed, base units
	BalanceAfter    decimal.Decimal      `gorm:"type:decimal(20,4);not null" json:"balance_after"`
	ReferenceType   string               `gorm:"size:30" json:"reference_type"`
	ReferenceId     int                  `gorm:"index" json:"reference_id"`
	Notes           string               `gorm:"type:text" json:"notes"`
	UserId          int                  `gorm:"index" json:"user_id"`
	CreatedAt       time.Time            `gorm:"autoCreateTime;index" json:"created_at"`
}

// LowStockEvent is a transactional outbox row. It is written in the same
// transaction as the stock movement that crossed the threshold and dispatched
// to Redis pub/sub after commit.
type LowStockEvent struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"index;not null" json:"business_id"`
	ProductId    int             `gorm:"index;not null" json:"product_id"`
	ProductName  string          `gorm:"size:100" json:"product_name"`
	CurrentStock decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"current_stock"`
	MinStock     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"min_stock"`
	Processed    *bool           `gorm:"not null;default:false;index" json:"processed"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	ProcessedAt  *time.Time      `json:"processed_at"`
}

// NewAdjustment carries a signed quantity: positive lands as Add,
// negative as Deduct.
type NewAdjustment struct {
	ProductId int             `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
	Notes     string          `json:"notes" binding:"required"`
}

type StockTransactionsEdge Edge[StockTransaction]
type StockTransactionsConnection struct {
	PageInfo *PageInfo                `json:"pageInfo"`
	Edges    []*StockTransactionsEdge `json:"edges"`
}

func (st StockTransaction) GetId() int {
	return st.ID
}

func (st StockTransaction) GetBusinessId() string {
	return st.BusinessId
}

func (st StockTransaction) GetCursor() string {
	return st.CreatedAt.Format("2006-01-02 15:04:05.000000")
}

// lockStockCommit serializes stock commits per business. A nil locker means
// single-instance deployment without Redis; row locks alone are enough there.
// Returns ErrResourceBusy when the lock stays contended past STOCK_LOCK_WAIT_MS.
func lockStockCommit(ctx context.Context, businessId string) (*redislock.Lock, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, nil
	}

	waitMs := config.StockLockWaitMs()
	retries := waitMs / 100
	if retries < 1 {
		retries = 1
	}
	lock, err := locker.Obtain(ctx, "stock:"+businessId, 30*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), retries),
	})
	if err == redislock.ErrNotObtained {
		return nil, ErrResourceBusy
	} else if err != nil {
		return nil, err
	}
	return lock, nil
}

func releaseStockCommit(ctx context.Context, lock *redislock.Lock) {
	if lock == nil {
		return
	}
	_ = lock.Release(ctx)
}

// fetchProductForUpdate loads and row-locks a product inside tx.
func fetchProductForUpdate(tx *gorm.DB, businessId string, productId int) (*Product, error) {
	var product Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ?", businessId).
		First(&product, productId).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &product, nil
}

// applyStockDelta moves a locked product's balance and appends the matching
// ledger row. delta is signed and already in the product's base unit.
// The caller owns the transaction; nothing here commits or rolls back.
func applyStockDelta(tx *gorm.DB,
	product *Product,
	delta decimal.Decimal,
	transactionType StockTransactionType,
	referenceType string,
	referenceId int,
	notes string) (*StockTransaction, error) {

	newBalance := product.CurrentStock.Add(delta)
	if newBalance.IsNegative() && !config.AllowNegativeStock() {
		return nil, ErrNegativeStockRejected
	}

	wasAbove := product.CurrentStock.GreaterThan(product.MinStock)

	if err := tx.Model(product).UpdateColumn("current_stock", newBalance).Error; err != nil {
		return nil, err
	}

	ledger := StockTransaction{
		BusinessId:      product.BusinessId,
		ProductId:       product.ID,
		TransactionType: transactionType,
		Quantity:        delta,
		BalanceAfter:    newBalance,
		ReferenceType:   referenceType,
		ReferenceId:     referenceId,
		Notes:           notes,
	}
	if userId, ok := utils.GetUserIdFromContext(tx.Statement.Context); ok {
		ledger.UserId = userId
	}
	if err := tx.Create(&ledger).Error; err != nil {
		return nil, err
	}

	product.CurrentStock = newBalance

	// outbox row only on a downward threshold crossing, not on every
	// movement while already low
	if wasAbove && newBalance.LessThanOrEqual(product.MinStock) {
		event := LowStockEvent{
			BusinessId:   product.BusinessId,
			ProductId:    product.ID,
			ProductName:  product.Name,
			CurrentStock: newBalance,
			MinStock:     product.MinStock,
			Processed:    utils.NewFalse(),
		}
		if err := tx.Create(&event).Error; err != nil {
			return nil, err
		}
	}

	return &ledger, nil
}

func (input *NewAdjustment) validate(ctx context.Context, businessId string) error {
	if input.Quantity.IsZero() {
		return errors.New("quantity must not be zero")
	}
	if input.Notes == "" {
		return errors.New("notes are required for manual adjustments")
	}
	if err := utils.ValidateResourceId[Product](ctx, businessId, input.ProductId); err != nil {
		return errors.New("product not found")
	}
	return nil
}

// CreateAdjustment applies a manual Add/Deduct movement through the ledger.
func CreateAdjustment(ctx context.Context, input *NewAdjustment) (*StockTransaction, error) {
	moduleName := "StockTransaction"
	functionName := "CreateAdjustment"
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	lock, err := lockStockCommit(ctx, businessId)
	if err != nil {
		return nil, err
	}
	defer releaseStockCommit(ctx, lock)

	db := config.GetDB()
	tx := db.Begin().WithContext(ctx)

	product, err := fetchProductForUpdate(tx, businessId, input.ProductId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	transactionType := StockTransactionTypeAdd
	if input.Quantity.IsNegative() {
		transactionType = StockTransactionTypeDeduct
	}

	ledger, err := applyStockDelta(tx, product, input.Quantity, transactionType, "Adjustment", 0, input.Notes)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, moduleName, functionName, "commit", input, err)
		return nil, err
	}

	// caching
	if err := RemoveRedisBoth(*product); err != nil {
		return nil, err
	}
	return ledger, nil
}

func GetStockTransactions(ctx context.Context, productId *int, transactionType *StockTransactionType) ([]*StockTransaction, error) {

	db := config.GetDB()
	var results []*StockTransaction

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if productId != nil && *productId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", productId)
	}
	if transactionType != nil && *transactionType != "" {
		dbCtx = dbCtx.Where("transaction_type = ?", transactionType)
	}
	err := dbCtx.Order("created_at DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func PaginateStockTransaction(ctx context.Context, limit *int, after *string, productId *int) (*StockTransactionsConnection, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if productId != nil && *productId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", *productId)
	}
	edges, pageInfo, err := FetchPageCompositeCursor[StockTransaction](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}
	var connection StockTransactionsConnection
	connection.PageInfo = pageInfo
	for _, edge := range edges {
		transactionEdge := StockTransactionsEdge(edge)
		connection.Edges = append(connection.Edges, &transactionEdge)
	}
	return &connection, err
}

// LedgerDrift reports a product whose ledger sum disagrees with its balance.
type LedgerDrift struct {
	ProductId    int             `json:"product_id"`
	ProductName  string          `json:"product_name"`
	LedgerSum    decimal.Decimal `json:"ledger_sum"`
	CurrentStock decimal.Decimal `json:"current_stock"`
}

// CheckLedgerConsistency recomputes every product's ledger sum and returns
// the ones that drifted. An empty slice means the invariant holds.
func CheckLedgerConsistency(ctx context.Context, businessId string) ([]LedgerDrift, error) {

	db := config.GetDB()

	var drifts []LedgerDrift
	err := db.WithContext(ctx).Raw(`
		SELECT p.id AS product_id, p.name AS product_name,
		       COALESCE(SUM(t.quantity), 0) AS ledger_sum,
		       p.current_stock AS current_stock
		FROM products p
		LEFT JOIN stock_transactions t
		       ON t.product_id = p.id AND t.business_id = p.business_id
		WHERE p.business_id = ?
		GROUP BY p.id, p.name, p.current_stock
		HAVING COALESCE(SUM(t.quantity), 0) <> p.current_stock`,
		businessId).Scan(&drifts).Error
	if err != nil {
		return nil, err
	}
	return drifts, nil
}

// ProcessLowStockEvents dispatches unprocessed outbox rows to the
// lowstock:<businessId> pub/sub channel and marks them processed.
func ProcessLowStockEvents(ctx context.Context) (int, error) {
	moduleName := "StockTransaction"
	functionName := "ProcessLowStockEvents"
	logger := config.GetLogger()

	db := config.GetDB()
	var events []*LowStockEvent
	err := db.WithContext(ctx).
		Where("processed = false").
		Order("id").
		Limit(100).
		Find(&events).Error
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, event := range events {
		channel := fmt.Sprintf("lowstock:%s", event.BusinessId)
		if err := config.PublishRedisMessage(ctx, channel, event); err != nil {
			config.LogError(logger, moduleName, functionName, "publish", event, err)
			continue
		}
		now := time.Now()
		err := db.WithContext(ctx).Model(event).Updates(map[string]interface{}{
			"Processed":   true,
			"ProcessedAt": &now,
		}).Error
		if err != nil {
			config.LogError(logger, moduleName, functionName, "mark processed", event, err)
			continue
		}
		processed++
	}
	return processed, nil
}

// RunLowStockDispatcher drains the outbox on an interval until ctx is done.
func RunLowStockDispatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := ProcessLowStockEvents(ctx); err != nil {
				config.LogError(config.GetLogger(), "StockTransaction", "RunLowStockDispatcher", "drain", nil, err)
			}
		}
	}
}

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

// ProductionRun is append-only audit of one engine commit attempt,
// successful or failed. Never mutated after creation.
type ProductionRun struct {
	ID               int                 `gorm:"primary_key" json:"id"`
	BusinessId       string              `gorm:"index;not null" json:"business_id"`
	ProductionNumber string              `gorm:"size:20;index;not null" json:"production_number"`
	BomId            int                 `gorm:"index;not null" json:"bom_id"`
	ParentRunId      int                 `gorm:"index;default:0" json:"parent_run_id"` // 0 = top-level
	Quantity         decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"quantity"`
	TotalProduced    decimal.Decimal     `gorm:"type:decimal(20,4);not null;default:0" json:"total_produced"`
	Status           ProductionRunStatus `gorm:"type:enum('Completed','Failed');not null" json:"status"`
	FailureReason    string              `gorm:"type:text" json:"failure_reason"`
	Notes            string              `gorm:"type:text" json:"notes"`
	UserId           int                 `gorm:"index" json:"user_id"`
	CreatedAt        time.Time           `gorm:"autoCreateTime;index" json:"created_at"`
}

type NewProduction struct {
	BomId    int             `json:"bom_id" binding:"required"`
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
	Notes    string          `json:"notes"`
}

type NewMenuConsumption struct {
	MenuItemId int             `json:"menu_item_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
	Notes      string          `json:"notes"`
}

// ProductionResult reports one committed chain: the requested run, any
// automatically triggered runs, and every ledger row written.
type ProductionResult struct {
	Run          *ProductionRun      `json:"run,omitempty"`
	ChainRuns    []*ProductionRun    `json:"chain_runs"`
	Transactions []*StockTransaction `json:"transactions"`
}

type ProductionRunsEdge Edge[ProductionRun]
type ProductionRunsConnection struct {
	PageInfo *PageInfo             `json:"pageInfo"`
	Edges    []*ProductionRunsEdge `json:"edges"`
}

func (pr ProductionRun) GetId() int {
	return pr.ID
}

func (pr ProductionRun) GetBusinessId() string {
	return pr.BusinessId
}

func (pr ProductionRun) GetCursor() string {
	return pr.CreatedAt.Format("2006-01-02 15:04:05.000000")
}

// plannedRun is one node of a resolved production chain. Children are the
// automatic runs triggered to cover this node's input shortages.
type plannedRun struct {
	snap     *BomSnapshot
	quantity decimal.Decimal
	children []*plannedRun
	run      *ProductionRun
}

// applyToOverlay records this node's planned stock movements in the overlay
// so later planning steps see the post-run balances.
func (node *plannedRun) applyToOverlay(stock map[int]decimal.Decimal) error {
	for _, c := range node.snap.Bom.InputComponents() {
		base, err := node.snap.componentBaseQuantity(c, node.quantity)
		if err != nil {
			return err
		}
		stock[c.ProductId] = overlayBalance(node.snap, stock, c.ProductId).Sub(base)
	}
	for _, c := range node.snap.Bom.OutputComponents() {
		base, err := node.snap.componentBaseQuantity(c, node.quantity)
		if err != nil {
			return err
		}
		stock[c.ProductId] = overlayBalance(node.snap, stock, c.ProductId).Add(base)
	}
	return nil
}

func overlayBalance(snap *BomSnapshot, stock map[int]decimal.Decimal, productId int) decimal.Decimal {
	if balance, ok := stock[productId]; ok {
		return balance
	}
	if product, ok := snap.Products[productId]; ok {
		return product.CurrentStock
	}
	return decimal.Zero
}

// findAutomaticBom resolves the active automatic production recipe that
// outputs productId, either via a declared output component or the legacy
// finished_product_id column.
func findAutomaticBom(tx *gorm.DB, businessId string, productId int) (int, error) {
	var bom Bom
	err := tx.
		Where("business_id = ? AND bom_type = ? AND production_mode = ? AND is_active = true", businessId, BomTypeProduction, ProductionModeAutomatic).
		Where("finished_product_id = ? OR id IN (?)", productId,
			tx.Session(&gorm.Session{NewDB: true}).Model(&BomComponent{}).Select("bom_id").
				Where("business_id = ? AND product_id = ? AND item_type = ?", businessId, productId, BomItemTypeOutput)).
		Order("id").
		First(&bom).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return bom.ID, nil
}

// resolveProductionChain plans a recipe run and, recursively, the automatic
// runs needed to cover its shortages. Planning is done against the stock
// overlay; nothing is written. path carries the recipe ids of the current
// recursion branch for cycle detection.
func resolveProductionChain(tx *gorm.DB,
	businessId string,
	bomId int,
	qty decimal.Decimal,
	depth int,
	path []int,
	stock map[int]decimal.Decimal) (*plannedRun, error) {

	if depth > config.AutoProductionMaxDepth() {
		return nil, ErrProductionChainTooDeep
	}
	for _, id := range path {
		if id == bomId {
			return nil, &CircularBomDependencyError{Path: append(append([]int{}, path...), bomId)}
		}
	}
	path = append(path, bomId)

	snap, err := loadBomSnapshot(tx, businessId, bomId)
	if err != nil {
		return nil, err
	}
	if !utils.DereferencePtr(snap.Bom.IsActive) {
		return nil, errors.New("recipe is inactive")
	}

	node := plannedRun{snap: snap, quantity: qty}

	result, err := EvaluateAvailabilityWithStock(snap, qty, stock)
	if err != nil {
		return nil, err
	}

	for _, shortage := range result.Shortages {
		childBomId, err := findAutomaticBom(tx, businessId, shortage.ProductId)
		if err != nil {
			return nil, err
		}
		if childBomId == 0 {
			continue
		}

		childSnap, err := loadBomSnapshot(tx, businessId, childBomId)
		if err != nil {
			return nil, err
		}
		perBatch, err := childSnap.outputPerBatch(shortage.ProductId)
		if err != nil {
			return nil, err
		}
		if !perBatch.IsPositive() {
			continue
		}
		batches := shortage.Shortage.DivRound(perBatch, 8).Ceil()

		child, err := resolveProductionChain(tx, businessId, childBomId, batches, depth+1, path, stock)
		if err != nil {
			return nil, err
		}
		if err := child.applyToOverlay(stock); err != nil {
			return nil, err
		}
		node.children = append(node.children, child)
	}

	// re-check after the planned top-ups land in the overlay
	result, err = EvaluateAvailabilityWithStock(snap, qty, stock)
	if err != nil {
		return nil, err
	}
	if !result.CanProduce {
		return nil, &InsufficientStockError{BomId: bomId, Shortages: result.Shortages}
	}

	return &node, nil
}

// totalProduced sums the run's output quantities in the primary product's
// base unit, the whole declared output set when no primary is set.
func (node *plannedRun) totalProduced() (decimal.Decimal, error) {
	total := decimal.Zero
	primary := node.snap.Bom.FinishedProductId
	for _, c := range node.snap.Bom.OutputComponents() {
		if primary > 0 && c.ProductId != primary {
			continue
		}
		base, err := node.snap.componentBaseQuantity(c, node.quantity)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(base)
	}
	return total, nil
}

// createRunRows walks the chain parent-first so child rows can carry their
// parent's id.
func createRunRows(tx *gorm.DB, businessId string, node *plannedRun, parentRunId int, notes string, runs *[]*ProductionRun) error {

	number, err := nextProductionNumber(tx, businessId)
	if err != nil {
		return err
	}
	total, err := node.totalProduced()
	if err != nil {
		return err
	}

	run := ProductionRun{
		BusinessId:       businessId,
		ProductionNumber: number,
		BomId:            node.snap.Bom.ID,
		ParentRunId:      parentRunId,
		Quantity:         node.quantity,
		TotalProduced:    total,
		Status:           ProductionRunStatusCompleted,
		Notes:            notes,
	}
	if userId, ok := utils.GetUserIdFromContext(tx.Statement.Context); ok {
		run.UserId = userId
	}
	if err := tx.Create(&run).Error; err != nil {
		return err
	}
	node.run = &run
	*runs = append(*runs, &run)

	for _, child := range node.children {
		// nested runs carry no caller notes
		if err := createRunRows(tx, businessId, child, run.ID, "", runs); err != nil {
			return err
		}
	}
	return nil
}

// applyRunMovements walks the chain deepest-first: a child's outputs must be
// on the books before its parent's inputs are deducted.
func applyRunMovements(tx *gorm.DB, businessId string, node *plannedRun, ledger *[]*StockTransaction) error {

	for _, child := range node.children {
		if err := applyRunMovements(tx, businessId, child, ledger); err != nil {
			return err
		}
	}

	for _, c := range node.snap.Bom.InputComponents() {
		base, err := node.snap.componentBaseQuantity(c, node.quantity)
		if err != nil {
			return err
		}
		product, err := fetchProductForUpdate(tx, businessId, c.ProductId)
		if err != nil {
			return err
		}
		row, err := applyStockDelta(tx, product, base.Neg(), StockTransactionTypeProductionIn, "ProductionRun", node.run.ID, "")
		if err != nil {
			return err
		}
		*ledger = append(*ledger, row)
	}

	for _, c := range node.snap.Bom.OutputComponents() {
		base, err := node.snap.componentBaseQuantity(c, node.quantity)
		if err != nil {
			return err
		}
		product, err := fetchProductForUpdate(tx, businessId, c.ProductId)
		if err != nil {
			return err
		}
		row, err := applyStockDelta(tx, product, base, StockTransactionTypeProductionOut, "ProductionRun", node.run.ID, "")
		if err != nil {
			return err
		}
		*ledger = append(*ledger, row)
	}

	return nil
}

// recordFailedRun audits a rejected or rolled-back attempt in its own
// transaction so the audit survives the rollback of the main one.
func recordFailedRun(ctx context.Context, businessId string, bomId int, qty decimal.Decimal, notes string, cause error) {
	if !config.FailedRunAudit() {
		return
	}
	moduleName := "Production"
	functionName := "recordFailedRun"
	logger := config.GetLogger()

	db := config.GetDB()
	tx := db.Begin().WithContext(ctx)

	number, err := nextProductionNumber(tx, businessId)
	if err != nil {
		tx.Rollback()
		config.LogError(logger, moduleName, functionName, "number", bomId, err)
		return
	}

	run := ProductionRun{
		BusinessId:       businessId,
		ProductionNumber: number,
		BomId:            bomId,
		Quantity:         qty,
		Status:           ProductionRunStatusFailed,
		FailureReason:    cause.Error(),
		Notes:            notes,
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		run.UserId = userId
	}
	if err := tx.Create(&run).Error; err != nil {
		tx.Rollback()
		config.LogError(logger, moduleName, functionName, "create", run, err)
		return
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, moduleName, functionName, "commit", run, err)
	}
}

// CreateProduction commits qty batches of a production recipe, recursively
// producing automatic sub-recipes to cover input shortages. All stock
// movements and run rows commit atomically or not at all; a failed attempt
// still leaves a Failed audit row behind.
func CreateProduction(ctx context.Context, input *NewProduction) (*ProductionResult, error) {
	moduleName := "Production"
	functionName := "CreateProduction"
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if !input.Quantity.IsPositive() {
		return nil, errors.New("quantity must be greater than zero")
	}

	lock, err := lockStockCommit(ctx, businessId)
	if err != nil {
		return nil, err
	}
	defer releaseStockCommit(ctx, lock)

	db := config.GetDB()
	tx := db.Begin().WithContext(ctx)

	var bom Bom
	if err := tx.Where("business_id = ?", businessId).First(&bom, input.BomId).Error; err != nil {
		tx.Rollback()
		return nil, utils.ErrorRecordNotFound
	}
	if bom.BomType != BomTypeProduction {
		tx.Rollback()
		return nil, errors.New("only production recipes can be produced directly")
	}

	stock := make(map[int]decimal.Decimal)
	root, err := resolveProductionChain(tx, businessId, input.BomId, input.Quantity, 0, nil, stock)
	if err != nil {
		tx.Rollback()
		recordFailedRun(ctx, businessId, input.BomId, input.Quantity, input.Notes, err)
		return nil, err
	}

	result := ProductionResult{
		ChainRuns:    make([]*ProductionRun, 0),
		Transactions: make([]*StockTransaction, 0),
	}
	if err := createRunRows(tx, businessId, root, 0, input.Notes, &result.ChainRuns); err != nil {
		tx.Rollback()
		recordFailedRun(ctx, businessId, input.BomId, input.Quantity, input.Notes, err)
		return nil, err
	}
	if err := applyRunMovements(tx, businessId, root, &result.Transactions); err != nil {
		tx.Rollback()
		recordFailedRun(ctx, businessId, input.BomId, input.Quantity, input.Notes, err)
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, moduleName, functionName, "commit", input, err)
		recordFailedRun(ctx, businessId, input.BomId, input.Quantity, input.Notes, err)
		return nil, err
	}
	result.Run = root.run

	// caching, affected products have moved
	for _, row := range result.Transactions {
		_ = utils.RemoveRedisItem[Product](row.ProductId)
	}
	return &result, nil
}

// ConsumeMenuItem applies the inventory consumption of selling qty of a menu
// item. Shortfalls recurse into automatic production under the same bounds
// as CreateProduction; the consumption itself is a plain OUT movement.
func ConsumeMenuItem(ctx context.Context, input *NewMenuConsumption) (*ProductionResult, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if !input.Quantity.IsPositive() {
		return nil, errors.New("quantity must be greater than zero")
	}

	bom, err := GetBomByMenuItem(ctx, input.MenuItemId)
	if err != nil {
		return nil, err
	}

	lock, err := lockStockCommit(ctx, businessId)
	if err != nil {
		return nil, err
	}
	defer releaseStockCommit(ctx, lock)

	db := config.GetDB()
	tx := db.Begin().WithContext(ctx)

	stock := make(map[int]decimal.Decimal)
	root, err := resolveProductionChain(tx, businessId, bom.ID, input.Quantity, 0, nil, stock)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	result := ProductionResult{
		ChainRuns:    make([]*ProductionRun, 0),
		Transactions: make([]*StockTransaction, 0),
	}

	// nested automatic runs are real production, the menu consumption is not
	for _, child := range root.children {
		if err := createRunRows(tx, businessId, child, 0, "", &result.ChainRuns); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	for _, child := range root.children {
		if err := applyRunMovements(tx, businessId, child, &result.Transactions); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	for _, c := range root.snap.Bom.InputComponents() {
		base, err := root.snap.componentBaseQuantity(c, input.Quantity)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		product, err := fetchProductForUpdate(tx, businessId, c.ProductId)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		row, err := applyStockDelta(tx, product, base.Neg(), StockTransactionTypeOut, "MenuSale", input.MenuItemId, input.Notes)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		result.Transactions = append(result.Transactions, row)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	// caching
	for _, row := range result.Transactions {
		_ = utils.RemoveRedisItem[Product](row.ProductId)
	}
	return &result, nil
}

func GetProductionRun(ctx context.Context, id int) (*ProductionRun, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[ProductionRun](ctx, businessId, id)
}

func GetProductionRuns(ctx context.Context, bomId *int, status *ProductionRunStatus) ([]*ProductionRun, error) {

	db := config.GetDB()
	var results []*ProductionRun

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if bomId != nil && *bomId > 0 {
		dbCtx = dbCtx.Where("bom_id = ?", bomId)
	}
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", status)
	}
	err := dbCtx.Order("created_at DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func PaginateProductionRun(ctx context.Context, limit *int, after *string, bomId *int) (*ProductionRunsConnection, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if bomId != nil && *bomId > 0 {
		dbCtx = dbCtx.Where("bom_id = ?", *bomId)
	}
	edges, pageInfo, err := FetchPageCompositeCursor[ProductionRun](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}
	var connection ProductionRunsConnection
	connection.PageInfo = pageInfo
	for _, edge := range edges {
		runEdge := ProductionRunsEdge(edge)
		connection.Edges = append(connection.Edges, &runEdge)
	}
	return &connection, err
}

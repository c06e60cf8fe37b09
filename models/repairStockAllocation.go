package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/rma_backend/config"
	"bitbucket.org/mmdatafocus/rma_backend/utils"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
)

// RepairStockAllocation earmarks a quantity of a stock item as repair
// material for one return order line. Consumed rows are kept as a record of
// what the repair actually used; unconsumed rows are reservations that still
// count against the item's availability.
type RepairStockAllocation struct {
	ID                int              `gorm:"primary_key" json:"id"`
	ReturnOrderLineId int              `gorm:"index;not null" json:"return_order_line_id" binding:"required"`
	ReturnOrderLine   *ReturnOrderLine `json:"return_order_line,omitempty"`
	StockItemId       int              `gorm:"index;not null" json:"stock_item_id" binding:"required"`
	StockItem         *StockItem       `json:"stock_item,omitempty"`
	Quantity          decimal.Decimal  `gorm:"type:decimal(20,5);not null;default:1" json:"quantity"`
	Consumed          *bool            `gorm:"not null;default:false" json:"consumed"`
	Notes             string           `gorm:"size:500" json:"notes"`
	Created           time.Time        `gorm:"autoCreateTime;<-:create" json:"created"`
}

type NewRepairStockAllocation struct {
	ReturnOrderLineId int             `json:"return_order_line_id" binding:"required"`
	StockItemId       int             `json:"stock_item_id" binding:"required"`
	Quantity          decimal.Decimal `json:"quantity"`
	Notes             string          `json:"notes"`
}

// AllocationFilter narrows ListAllocations. Nil fields match everything.
type AllocationFilter struct {
	ReturnOrderId     *int
	ReturnOrderLineId *int
	Consumed          *bool
}

// AllocationQuantityError reports a rejected allocation: the requested
// quantity does not fit into what the stock item still has free.
type AllocationQuantityError struct {
	Available decimal.Decimal
	Allocated decimal.Decimal
}

func (e *AllocationQuantityError) Error() string {
	return fmt.Sprintf("insufficient stock: available %s, already allocated %s",
		e.Available.String(), e.Allocated.String())
}

// AvailableForAllocation returns how much of a stock item is still free to
// allocate: its quantity minus everything reserved by other unconsumed
// allocations. Consumed allocations have already been debited from the item
// quantity, so they never count twice.
func AvailableForAllocation(itemQuantity decimal.Decimal, otherUnconsumed []decimal.Decimal) decimal.Decimal {

	allocated := decimal.Zero
	for _, q := range otherUnconsumed {
		allocated = allocated.Add(q)
	}
	return itemQuantity.Sub(allocated)
}

// allocatedElsewhere sums the unconsumed allocation quantities against a
// stock item, excluding one allocation id (0 excludes nothing).
func allocatedElsewhere(ctx context.Context, stockItemId int, excludeId int) (decimal.Decimal, error) {

	var rows []RepairStockAllocation
	db := config.GetDB()
	query := db.WithContext(ctx).
		Where("stock_item_id = ? AND consumed = ?", stockItemId, false)
	if excludeId > 0 {
		query = query.Where("id <> ?", excludeId)
	}
	if err := query.Find(&rows).Error; err != nil {
		return decimal.Zero, err
	}

	allocated := decimal.Zero
	for _, row := range rows {
		allocated = allocated.Add(row.Quantity)
	}
	return allocated, nil
}

func validateAllocationQuantity(ctx context.Context, stockItemId int, quantity decimal.Decimal, excludeId int) error {

	item, err := utils.FetchModel[StockItem](ctx, stockItemId)
	if err != nil {
		return errors.New("stock item not found")
	}

	allocated, err := allocatedElsewhere(ctx, stockItemId, excludeId)
	if err != nil {
		return err
	}

	available := item.Quantity.Sub(allocated)
	if quantity.GreaterThan(available) {
		return &AllocationQuantityError{Available: available, Allocated: allocated}
	}
	return nil
}

// lockStockItem grabs a short redis lock keyed on the stock item so two
// concurrent allocations cannot both pass the availability check. Best
// effort: when redis is down or the lock is contended we proceed anyway
// rather than fail the request.
func lockStockItem(ctx context.Context, stockItemId int) *redislock.Lock {

	locker := config.GetRedisLock()
	if locker == nil {
		return nil
	}

	key := fmt.Sprintf("AllocationLock:%d", stockItemId)
	lock, err := locker.Obtain(ctx, key, 5*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 10),
	})
	if err != nil {
		config.GetLogger().WithField("stock_item_id", stockItemId).
			Warn("could not obtain allocation lock, proceeding without it")
		return nil
	}
	return lock
}

func releaseStockItemLock(ctx context.Context, lock *redislock.Lock) {
	if lock == nil {
		return
	}
	if err := lock.Release(ctx); err != nil && err != redislock.ErrLockNotHeld {
		config.LogError(config.GetLogger(), "models", "releaseStockItemLock",
			"failed to release allocation lock", nil, err)
	}
}

func CreateAllocation(ctx context.Context, input *NewRepairStockAllocation) (*RepairStockAllocation, error) {

	if err := utils.ValidateResourceId[ReturnOrderLine](ctx, input.ReturnOrderLineId); err != nil {
		return nil, errors.New("return order line not found")
	}

	quantity := input.Quantity
	if quantity.IsZero() {
		quantity = decimal.NewFromInt(1)
	}
	if quantity.IsNegative() {
		return nil, errors.New("quantity must be positive")
	}

	lock := lockStockItem(ctx, input.StockItemId)
	defer releaseStockItemLock(ctx, lock)

	if err := validateAllocationQuantity(ctx, input.StockItemId, quantity, 0); err != nil {
		return nil, err
	}

	allocation := RepairStockAllocation{
		ReturnOrderLineId: input.ReturnOrderLineId,
		StockItemId:       input.StockItemId,
		Quantity:          quantity,
		Consumed:          utils.NewFalse(),
		Notes:             input.Notes,
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&allocation).Error
	if err != nil {
		return nil, err
	}
	return &allocation, nil
}

func UpdateAllocation(ctx context.Context, id int, input *NewRepairStockAllocation) (*RepairStockAllocation, error) {

	allocation, err := utils.FetchModel[RepairStockAllocation](ctx, id)
	if err != nil {
		return nil, err
	}
	if allocation.Consumed != nil && *allocation.Consumed {
		return nil, errors.New("allocation is already consumed")
	}

	if err := utils.ValidateResourceId[ReturnOrderLine](ctx, input.ReturnOrderLineId); err != nil {
		return nil, errors.New("return order line not found")
	}

	quantity := input.Quantity
	if quantity.IsZero() {
		quantity = decimal.NewFromInt(1)
	}
	if quantity.IsNegative() {
		return nil, errors.New("quantity must be positive")
	}

	lock := lockStockItem(ctx, input.StockItemId)
	defer releaseStockItemLock(ctx, lock)

	// the row's own reservation must not count against itself
	if err := validateAllocationQuantity(ctx, input.StockItemId, quantity, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(allocation).Updates(map[string]interface{}{
		"ReturnOrderLineId": input.ReturnOrderLineId,
		"StockItemId":       input.StockItemId,
		"Quantity":          quantity,
		"Notes":             input.Notes,
	}).Error
	if err != nil {
		return nil, err
	}

	return allocation, nil
}

// DeleteAllocation removes the row regardless of consumed state. Deleting a
// consumed allocation only drops the record; the stock debit stays.
func DeleteAllocation(ctx context.Context, id int) (*RepairStockAllocation, error) {

	allocation, err := utils.FetchModel[RepairStockAllocation](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(allocation).Error; err != nil {
		return nil, err
	}
	return allocation, nil
}

func GetAllocation(ctx context.Context, id int, associations ...string) (*RepairStockAllocation, error) {
	return utils.FetchModel[RepairStockAllocation](ctx, id, associations...)
}

func ListAllocations(ctx context.Context, filter *AllocationFilter) ([]*RepairStockAllocation, error) {

	var allocations []*RepairStockAllocation
	db := config.GetDB()
	query := db.WithContext(ctx).
		Preload("ReturnOrderLine").
		Preload("ReturnOrderLine.Order").
		Preload("ReturnOrderLine.Item").
		Preload("ReturnOrderLine.Item.Part").
		Preload("StockItem").
		Preload("StockItem.Part").
		Preload("StockItem.Location")

	if filter != nil {
		if filter.ReturnOrderLineId != nil {
			query = query.Where("return_order_line_id = ?", *filter.ReturnOrderLineId)
		}
		if filter.ReturnOrderId != nil {
			query = query.Where(
				"return_order_line_id IN (?)",
				db.Model(&ReturnOrderLine{}).Select("id").Where("order_id = ?", *filter.ReturnOrderId),
			)
		}
		if filter.Consumed != nil {
			query = query.Where("consumed = ?", *filter.Consumed)
		}
	}

	err := query.Order("id ASC").Find(&allocations).Error
	if err != nil {
		return nil, err
	}
	return allocations, nil
}

// ListUnconsumedAllocationsForOrder returns every unconsumed allocation
// attached to the order's lines, oldest first. The completion workflow
// consumes them in this order.
func ListUnconsumedAllocationsForOrder(ctx context.Context, orderId int) ([]*RepairStockAllocation, error) {

	consumed := false
	return ListAllocations(ctx, &AllocationFilter{
		ReturnOrderId: &orderId,
		Consumed:      &consumed,
	})
}

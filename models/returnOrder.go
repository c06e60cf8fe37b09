package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/rma_backend/config"
	"bitbucket.org/mmdatafocus/rma_backend/utils"
	"gorm.io/gorm"
)

// ReturnOrder tracks items a customer sends back. Each line names one
// returned item and the outcome decided for it; completing the order is
// what triggers the downstream automation.
type ReturnOrder struct {
	ID          int               `gorm:"primary_key" json:"id"`
	Reference   string            `gorm:"size:100;uniqueIndex;not null" json:"reference" binding:"required"`
	CustomerId  *int              `gorm:"index" json:"customer_id"`
	Customer    *Customer         `json:"customer,omitempty"`
	Status      ReturnOrderStatus `gorm:"size:20;not null;default:'Pending'" json:"status"`
	Description string            `gorm:"type:text" json:"description"`
	Lines       []ReturnOrderLine `gorm:"foreignKey:OrderId" json:"lines,omitempty"`
	CompletedAt *time.Time        `json:"completed_at"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewReturnOrder struct {
	Reference   string `json:"reference" binding:"required"`
	CustomerId  *int   `json:"customer_id"`
	Description string `json:"description"`
}

// ReturnOrderLine links one returned stock item to the order, together with
// the outcome decided for it and any notes recorded during inspection.
type ReturnOrderLine struct {
	ID        int          `gorm:"primary_key" json:"id"`
	OrderId   int          `gorm:"index;not null" json:"order_id"`
	Order     *ReturnOrder `json:"order,omitempty"`
	ItemId    *int         `gorm:"index" json:"item_id"`
	Item      *StockItem   `json:"item,omitempty"`
	Outcome   LineOutcome  `gorm:"not null;default:10" json:"outcome"`
	Notes     string       `gorm:"size:500" json:"notes"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewReturnOrderLine struct {
	OrderId int         `json:"order_id" binding:"required"`
	ItemId  *int        `json:"item_id"`
	Outcome LineOutcome `json:"outcome"`
	Notes   string      `json:"notes"`
}

func CreateReturnOrder(ctx context.Context, input *NewReturnOrder) (*ReturnOrder, error) {

	if input.CustomerId != nil {
		if err := utils.ValidateResourceId[Customer](ctx, *input.CustomerId); err != nil {
			return nil, errors.New("customer not found")
		}
	}

	order := ReturnOrder{
		Reference:   input.Reference,
		CustomerId:  input.CustomerId,
		Status:      ReturnOrderStatusPending,
		Description: input.Description,
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func UpdateReturnOrder(ctx context.Context, id int, input *NewReturnOrder) (*ReturnOrder, error) {

	order, err := utils.FetchModel[ReturnOrder](ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == ReturnOrderStatusComplete {
		return nil, errors.New("return order is already complete")
	}

	if input.CustomerId != nil {
		if err := utils.ValidateResourceId[Customer](ctx, *input.CustomerId); err != nil {
			return nil, errors.New("customer not found")
		}
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(order).Updates(map[string]interface{}{
		"Reference":   input.Reference,
		"CustomerId":  input.CustomerId,
		"Description": input.Description,
	}).Error
	if err != nil {
		return nil, err
	}

	return order, nil
}

func DeleteReturnOrder(ctx context.Context, id int) (*ReturnOrder, error) {

	order, err := utils.FetchModel[ReturnOrder](ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == ReturnOrderStatusComplete {
		return nil, errors.New("return order is already complete")
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&ReturnOrderLine{}).Error; err != nil {
			return err
		}
		return tx.Delete(order).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func GetReturnOrder(ctx context.Context, id int, associations ...string) (*ReturnOrder, error) {
	return utils.FetchModel[ReturnOrder](ctx, id, associations...)
}

func ListReturnOrders(ctx context.Context) ([]*ReturnOrder, error) {
	return utils.FetchAllModels[ReturnOrder](ctx, "Customer")
}

// CompleteReturnOrder marks the order Complete and stamps the completion
// time. The caller is responsible for emitting the completion event; this
// keeps persistence and event transport separate.
func CompleteReturnOrder(ctx context.Context, id int) (*ReturnOrder, error) {

	order, err := utils.FetchModel[ReturnOrder](ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == ReturnOrderStatusComplete {
		return nil, errors.New("return order is already complete")
	}
	if order.Status == ReturnOrderStatusCancelled {
		return nil, errors.New("return order is cancelled")
	}

	now := time.Now()
	db := config.GetDB()
	err = db.WithContext(ctx).Model(order).Updates(map[string]interface{}{
		"Status":      ReturnOrderStatusComplete,
		"CompletedAt": &now,
	}).Error
	if err != nil {
		return nil, err
	}

	return order, nil
}

func CreateReturnOrderLine(ctx context.Context, input *NewReturnOrderLine) (*ReturnOrderLine, error) {

	order, err := utils.FetchModel[ReturnOrder](ctx, input.OrderId)
	if err != nil {
		return nil, errors.New("return order not found")
	}
	if order.Status == ReturnOrderStatusComplete {
		return nil, errors.New("return order is already complete")
	}

	if input.ItemId != nil {
		if err := utils.ValidateResourceId[StockItem](ctx, *input.ItemId); err != nil {
			return nil, errors.New("stock item not found")
		}
	}

	outcome := input.Outcome
	if outcome == 0 {
		outcome = OutcomePending
	}
	if _, ok := outcomeNames[outcome]; !ok {
		return nil, errors.New("invalid outcome")
	}

	line := ReturnOrderLine{
		OrderId: input.OrderId,
		ItemId:  input.ItemId,
		Outcome: outcome,
		Notes:   input.Notes,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Create(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func UpdateReturnOrderLine(ctx context.Context, id int, input *NewReturnOrderLine) (*ReturnOrderLine, error) {

	line, err := utils.FetchModel[ReturnOrderLine](ctx, id, "Order")
	if err != nil {
		return nil, err
	}
	if line.Order != nil && line.Order.Status == ReturnOrderStatusComplete {
		return nil, errors.New("return order is already complete")
	}

	if input.ItemId != nil {
		if err := utils.ValidateResourceId[StockItem](ctx, *input.ItemId); err != nil {
			return nil, errors.New("stock item not found")
		}
	}

	// a body that omits the outcome keeps the current one
	outcome := input.Outcome
	if outcome == 0 {
		outcome = line.Outcome
	}
	if _, ok := outcomeNames[outcome]; !ok {
		return nil, errors.New("invalid outcome")
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(line).Updates(map[string]interface{}{
		"ItemId":  input.ItemId,
		"Outcome": outcome,
		"Notes":   input.Notes,
	}).Error
	if err != nil {
		return nil, err
	}

	return line, nil
}

func DeleteReturnOrderLine(ctx context.Context, id int) (*ReturnOrderLine, error) {

	line, err := utils.FetchModel[ReturnOrderLine](ctx, id, "Order")
	if err != nil {
		return nil, err
	}
	if line.Order != nil && line.Order.Status == ReturnOrderStatusComplete {
		return nil, errors.New("return order is already complete")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(line).Error; err != nil {
		return nil, err
	}
	return line, nil
}

func GetReturnOrderLine(ctx context.Context, id int, associations ...string) (*ReturnOrderLine, error) {
	return utils.FetchModel[ReturnOrderLine](ctx, id, associations...)
}

// ListReturnOrderLines returns the lines of one order, oldest first.
func ListReturnOrderLines(ctx context.Context, orderId int) ([]*ReturnOrderLine, error) {

	var lines []*ReturnOrderLine
	db := config.GetDB()
	err := db.WithContext(ctx).
		Preload("Item").
		Where("order_id = ?", orderId).
		Order("id ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

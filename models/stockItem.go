package models

import (
	"context"
	"errors"

	"time"

	"bitbucket.org/mmdatafocus/rma_backend/config"
	"bitbucket.org/mmdatafocus/rma_backend/utils"
	"github.com/shopspring/decimal"
)

// StockItem is a trackable unit or batch of inventory. Status changes and
// quantity movements are recorded as immutable StockItemTracking entries.
type StockItem struct {
	ID           int             `gorm:"primary_key" json:"id"`
	PartId       int             `gorm:"index;not null" json:"part_id" binding:"required"`
	Part         *Part           `json:"part,omitempty"`
	SerialNumber string          `gorm:"size:100;index" json:"serial_number"`
	BatchCode    string          `gorm:"size:100;index" json:"batch_code"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,5);not null" json:"quantity"`
	Status       StockStatus     `gorm:"not null;default:10" json:"status"`
	CustomerId   *int            `gorm:"index" json:"customer_id"`
	Customer     *Customer       `json:"customer,omitempty"`
	LocationId   *int            `gorm:"index" json:"location_id"`
	Location     *StockLocation  `json:"location,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewStockItem struct {
	PartId       int             `json:"part_id" binding:"required"`
	SerialNumber string          `json:"serial_number"`
	BatchCode    string          `json:"batch_code"`
	Quantity     decimal.Decimal `json:"quantity"`
	Status       StockStatus     `json:"status"`
	CustomerId   *int            `json:"customer_id"`
	LocationId   *int            `json:"location_id"`
}

func (input *NewStockItem) validate(ctx context.Context) error {
	if err := utils.ValidateResourceId[Part](ctx, input.PartId); err != nil {
		return errors.New("part not found")
	}
	if input.Quantity.IsNegative() {
		return errors.New("quantity cannot be negative")
	}
	if input.Status != 0 && !input.Status.IsValid() {
		return errors.New("invalid stock status")
	}
	if input.CustomerId != nil {
		if err := utils.ValidateResourceId[Customer](ctx, *input.CustomerId); err != nil {
			return errors.New("customer not found")
		}
	}
	if input.LocationId != nil {
		if err := utils.ValidateResourceId[StockLocation](ctx, *input.LocationId); err != nil {
			return errors.New("location not found")
		}
	}
	return nil
}

func CreateStockItem(ctx context.Context, input *NewStockItem) (*StockItem, error) {

	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	status := input.Status
	if status == 0 {
		status = StockStatusOK
	}

	item := StockItem{
		PartId:       input.PartId,
		SerialNumber: input.SerialNumber,
		BatchCode:    input.BatchCode,
		Quantity:     input.Quantity,
		Status:       status,
		CustomerId:   input.CustomerId,
		LocationId:   input.LocationId,
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func UpdateStockItem(ctx context.Context, id int, input *NewStockItem) (*StockItem, error) {

	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	item, err := utils.FetchModel[StockItem](ctx, id)
	if err != nil {
		return nil, err
	}

	// a body that omits the status keeps the current one
	status := input.Status
	if status == 0 {
		status = item.Status
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(item).Updates(map[string]interface{}{
		"PartId":       input.PartId,
		"SerialNumber": input.SerialNumber,
		"BatchCode":    input.BatchCode,
		"Quantity":     input.Quantity,
		"Status":       status,
		"CustomerId":   input.CustomerId,
		"LocationId":   input.LocationId,
	}).Error
	if err != nil {
		return nil, err
	}

	return item, nil
}

func GetStockItem(ctx context.Context, id int, associations ...string) (*StockItem, error) {
	return utils.FetchModel[StockItem](ctx, id, associations...)
}

func ListStockItems(ctx context.Context) ([]*StockItem, error) {
	return utils.FetchAllModels[StockItem](ctx, "Part", "Location")
}

// ApplyStatus mutates the in-memory status only when it differs.
// Returns true when a change was applied; persisting is the caller's job
// (the status transition itself is recorded as a tracking entry there).
func (s *StockItem) ApplyStatus(newStatus StockStatus) bool {
	if s.Status == newStatus {
		return false
	}
	s.Status = newStatus
	return true
}

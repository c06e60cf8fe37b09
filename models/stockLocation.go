package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/rma_backend/config"
	"bitbucket.org/mmdatafocus/rma_backend/utils"
)

type StockLocation struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewStockLocation struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func CreateStockLocation(ctx context.Context, input *NewStockLocation) (*StockLocation, error) {

	location := StockLocation{
		Name:        input.Name,
		Description: input.Description,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&location).Error
	if err != nil {
		return nil, err
	}
	return &location, nil
}

func UpdateStockLocation(ctx context.Context, id int, input *NewStockLocation) (*StockLocation, error) {

	location, err := utils.FetchModel[StockLocation](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(location).Updates(map[string]interface{}{
		"Name":        input.Name,
		"Description": input.Description,
	}).Error
	if err != nil {
		return nil, err
	}

	return location, nil
}

func DeleteStockLocation(ctx context.Context, id int) (*StockLocation, error) {

	location, err := utils.FetchModel[StockLocation](ctx, id)
	if err != nil {
		return nil, err
	}

	// check if location is used
	count, err := utils.ResourceCountWhere[StockItem](ctx, "location_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("location has stock")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(location).Error; err != nil {
		return nil, err
	}
	return location, nil
}

func ListStockLocations(ctx context.Context) ([]*StockLocation, error) {
	return utils.FetchAllModels[StockLocation](ctx)
}

package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/rma_backend/config"
	"bitbucket.org/mmdatafocus/rma_backend/utils"
)

type Part struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name" binding:"required"`
	IPN         string    `gorm:"size:100;index" json:"ipn"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPart struct {
	Name        string `json:"name" binding:"required"`
	IPN         string `json:"ipn"`
	Description string `json:"description"`
}

func CreatePart(ctx context.Context, input *NewPart) (*Part, error) {

	part := Part{
		Name:        input.Name,
		IPN:         input.IPN,
		Description: input.Description,
		IsActive:    utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&part).Error
	if err != nil {
		return nil, err
	}
	return &part, nil
}

func UpdatePart(ctx context.Context, id int, input *NewPart) (*Part, error) {

	part, err := utils.FetchModel[Part](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(part).Updates(map[string]interface{}{
		"Name":        input.Name,
		"IPN":         input.IPN,
		"Description": input.Description,
	}).Error
	if err != nil {
		return nil, err
	}

	return part, nil
}

func DeletePart(ctx context.Context, id int) (*Part, error) {

	part, err := utils.FetchModel[Part](ctx, id)
	if err != nil {
		return nil, err
	}

	// check if part has stock
	count, err := utils.ResourceCountWhere[StockItem](ctx, "part_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("part has stock")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(part).Error; err != nil {
		return nil, err
	}
	return part, nil
}

func GetPart(ctx context.Context, id int) (*Part, error) {
	return utils.FetchModel[Part](ctx, id)
}

func ListParts(ctx context.Context) ([]*Part, error) {
	return utils.FetchAllModels[Part](ctx)
}

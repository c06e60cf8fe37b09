package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/rma_backend/config"
	"gorm.io/gorm"
)

// StockItemTracking is an immutable audit entry appended to a stock item.
// Rows are append-only; there is no update or delete API.
type StockItemTracking struct {
	ID           int          `gorm:"primary_key" json:"id"`
	ItemId       int          `gorm:"index;not null" json:"item_id"`
	TrackingType TrackingCode `gorm:"not null" json:"tracking_type"`
	Notes        string       `gorm:"size:500" json:"notes"`
	Deltas       string       `gorm:"type:text" json:"deltas"`
	UserId       *int         `gorm:"index" json:"user_id"`
	Date         time.Time    `gorm:"autoCreateTime" json:"date"`
}

// AddTrackingEntry appends an audit entry for a stock item.
// userId is nil for automated actions.
func AddTrackingEntry(ctx context.Context, itemId int, code TrackingCode, notes string, deltas map[string]interface{}, userId *int) error {
	db := config.GetDB()
	return addTrackingEntry(db.WithContext(ctx), itemId, code, notes, deltas, userId)
}

func addTrackingEntry(tx *gorm.DB, itemId int, code TrackingCode, notes string, deltas map[string]interface{}, userId *int) error {

	var deltasJSON string
	if len(deltas) > 0 {
		b, err := json.Marshal(deltas)
		if err != nil {
			return err
		}
		deltasJSON = string(b)
	}

	entry := StockItemTracking{
		ItemId:       itemId,
		TrackingType: code,
		Notes:        notes,
		Deltas:       deltasJSON,
		UserId:       userId,
	}
	return tx.Create(&entry).Error
}

// ListTrackingEntries returns a stock item's audit trail, oldest first.
func ListTrackingEntries(ctx context.Context, itemId int) ([]*StockItemTracking, error) {
	db := config.GetDB()
	var entries []*StockItemTracking
	err := db.WithContext(ctx).
		Where("item_id = ?", itemId).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

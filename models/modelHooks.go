package models

import (
	"bitbucket.org/mmdatafocus/rma_backend/utils"
	"gorm.io/gorm"
)

func (s *StockItem) AfterCreate(tx *gorm.DB) (err error) {

	return addTrackingEntry(tx, s.ID, TrackingCreated, "Stock item created", map[string]interface{}{
		"status":   int(s.Status),
		"quantity": s.Quantity,
	}, trackingUserId(tx))
}

// AfterUpdate records a generic edit entry. Callers that append their own,
// more specific entry (the completion workflow) set SkipAutoTracking in the
// context to avoid a duplicate row.
func (s *StockItem) AfterUpdate(tx *gorm.DB) (err error) {

	ctx := tx.Statement.Context
	if skip, _ := utils.GetSkipAutoTrackingFromContext(ctx); skip {
		return nil
	}

	return addTrackingEntry(tx, s.ID, TrackingEdited, "Stock item updated", nil, trackingUserId(tx))
}

func trackingUserId(tx *gorm.DB) *int {
	if userId, ok := utils.GetUserIdFromContext(tx.Statement.Context); ok && userId > 0 {
		return &userId
	}
	// automated / unauthenticated actions carry no user
	return nil
}

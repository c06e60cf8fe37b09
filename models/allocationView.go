package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AllocationView is the denormalized shape the API serves for an
// allocation: enough about the line's target item and the allocated stock
// item that a client can render the row without extra lookups.
type AllocationView struct {
	ID       int             `json:"id"`
	Quantity decimal.Decimal `json:"quantity"`
	Consumed bool            `json:"consumed"`
	Created  time.Time       `json:"created"`
	Notes    string          `json:"notes"`

	Line      AllocationLineView  `json:"line"`
	StockItem AllocationStockView `json:"stock_item"`
}

// AllocationLineView describes the return order line the allocation serves,
// including the item being repaired (when the line names one).
type AllocationLineView struct {
	ID             int    `json:"id"`
	OrderId        int    `json:"order_id"`
	OrderReference string `json:"order_reference"`
	Outcome        int    `json:"outcome"`
	OutcomeName    string `json:"outcome_name"`
	TargetItemId   *int   `json:"target_item_id"`
	TargetPartName string `json:"target_part_name"`
	TargetSerial   string `json:"target_serial"`
	TargetBatch    string `json:"target_batch"`
}

// AllocationStockView describes the stock item the allocation draws from.
type AllocationStockView struct {
	ID           int             `json:"id"`
	PartId       int             `json:"part_id"`
	PartName     string          `json:"part_name"`
	Quantity     decimal.Decimal `json:"quantity"`
	SerialNumber string          `json:"serial_number"`
	BatchCode    string          `json:"batch_code"`
	LocationId   *int            `json:"location_id"`
	LocationName string          `json:"location_name"`
}

// NewAllocationView projects an allocation with preloaded associations into
// its API shape. Pure: missing associations just leave fields zero.
func NewAllocationView(a *RepairStockAllocation) AllocationView {

	view := AllocationView{
		ID:       a.ID,
		Quantity: a.Quantity,
		Created:  a.Created,
		Notes:    a.Notes,
	}
	if a.Consumed != nil {
		view.Consumed = *a.Consumed
	}

	if line := a.ReturnOrderLine; line != nil {
		view.Line = AllocationLineView{
			ID:           line.ID,
			OrderId:      line.OrderId,
			Outcome:      int(line.Outcome),
			OutcomeName:  line.Outcome.Name(),
			TargetItemId: line.ItemId,
		}
		if line.Order != nil {
			view.Line.OrderReference = line.Order.Reference
		}
		if item := line.Item; item != nil {
			view.Line.TargetSerial = item.SerialNumber
			view.Line.TargetBatch = item.BatchCode
			if item.Part != nil {
				view.Line.TargetPartName = item.Part.Name
			}
		}
	}

	if item := a.StockItem; item != nil {
		view.StockItem = AllocationStockView{
			ID:           item.ID,
			PartId:       item.PartId,
			Quantity:     item.Quantity,
			SerialNumber: item.SerialNumber,
			BatchCode:    item.BatchCode,
			LocationId:   item.LocationId,
		}
		if item.Part != nil {
			view.StockItem.PartName = item.Part.Name
		}
		if item.Location != nil {
			view.StockItem.LocationName = item.Location.Name
		}
	}

	return view
}

// NewAllocationViews maps a list, preserving order.
func NewAllocationViews(allocations []*RepairStockAllocation) []AllocationView {

	views := make([]AllocationView, 0, len(allocations))
	for _, a := range allocations {
		views = append(views, NewAllocationView(a))
	}
	return views
}

package models

import "fmt"

// LineOutcome is the resolution chosen for a return order line item.
// Codes are wire-stable; do not renumber.
type LineOutcome int

const (
	OutcomePending LineOutcome = 10
	OutcomeReturn  LineOutcome = 20
	OutcomeRepair  LineOutcome = 30
	OutcomeReplace LineOutcome = 40
	OutcomeRefund  LineOutcome = 50
	OutcomeReject  LineOutcome = 60
)

var outcomeNames = map[LineOutcome]string{
	OutcomePending: "Pending",
	OutcomeReturn:  "Return",
	OutcomeRepair:  "Repair",
	OutcomeReplace: "Replace",
	OutcomeRefund:  "Refund",
	OutcomeReject:  "Reject",
}

// Name returns the display name, or "#<code>" for unrecognized codes.
func (o LineOutcome) Name() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("#%d", int(o))
}

// StockStatus is the state of a stock item. Codes are wire-stable.
type StockStatus int

const (
	StockStatusOK          StockStatus = 10
	StockStatusAttention   StockStatus = 50
	StockStatusDamaged     StockStatus = 55
	StockStatusDestroyed   StockStatus = 60
	StockStatusRejected    StockStatus = 65
	StockStatusLost        StockStatus = 70
	StockStatusQuarantined StockStatus = 75
	StockStatusReturned    StockStatus = 85
)

var stockStatusNames = map[StockStatus]string{
	StockStatusOK:          "OK",
	StockStatusAttention:   "Attention",
	StockStatusDamaged:     "Damaged",
	StockStatusDestroyed:   "Destroyed",
	StockStatusRejected:    "Rejected",
	StockStatusLost:        "Lost",
	StockStatusQuarantined: "Quarantined",
	StockStatusReturned:    "Returned",
}

// Name returns the display name, or "#<code>" for unrecognized codes.
func (s StockStatus) Name() string {
	if name, ok := stockStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("#%d", int(s))
}

func (s StockStatus) IsValid() bool {
	_, ok := stockStatusNames[s]
	return ok
}

// ReturnOrderStatus tracks the lifecycle of a return order.
type ReturnOrderStatus string

const (
	ReturnOrderStatusPending    ReturnOrderStatus = "Pending"
	ReturnOrderStatusInProgress ReturnOrderStatus = "InProgress"
	ReturnOrderStatusComplete   ReturnOrderStatus = "Complete"
	ReturnOrderStatusCancelled  ReturnOrderStatus = "Cancelled"
)

// TrackingCode classifies stock item tracking entries.
type TrackingCode int

const (
	TrackingCreated        TrackingCode = 1
	TrackingEdited         TrackingCode = 5
	TrackingStockAdd       TrackingCode = 11
	TrackingStockRemove    TrackingCode = 12
	TrackingSentToCustomer TrackingCode = 40
)

package models

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAvailableForAllocation(t *testing.T) {
	d := decimal.NewFromInt

	cases := []struct {
		name     string
		quantity decimal.Decimal
		others   []decimal.Decimal
		want     decimal.Decimal
	}{
		{"no reservations", d(10), nil, d(10)},
		{"one reservation", d(10), []decimal.Decimal{d(4)}, d(6)},
		{"several reservations", d(10), []decimal.Decimal{d(4), d(3)}, d(3)},
		{"fully reserved", d(5), []decimal.Decimal{d(5)}, d(0)},
		{"over-reserved", d(5), []decimal.Decimal{d(7)}, d(-2)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AvailableForAllocation(tc.quantity, tc.others)
			if !got.Equal(tc.want) {
				t.Errorf("AvailableForAllocation = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestAvailableForAllocationFractionalQuantities(t *testing.T) {
	got := AvailableForAllocation(decimal.RequireFromString("2.5"),
		[]decimal.Decimal{decimal.RequireFromString("0.75")})
	if !got.Equal(decimal.RequireFromString("1.75")) {
		t.Errorf("AvailableForAllocation = %s, want 1.75", got)
	}
}

func TestAllocationQuantityErrorMessage(t *testing.T) {
	err := &AllocationQuantityError{
		Available: decimal.NewFromInt(6),
		Allocated: decimal.NewFromInt(4),
	}

	msg := err.Error()
	if !strings.Contains(msg, "6") || !strings.Contains(msg, "4") {
		t.Errorf("error should cite available and allocated quantities: %q", msg)
	}
}

func TestOutcomeNames(t *testing.T) {
	cases := []struct {
		outcome LineOutcome
		want    string
	}{
		{OutcomePending, "Pending"},
		{OutcomeReturn, "Return"},
		{OutcomeRepair, "Repair"},
		{OutcomeReplace, "Replace"},
		{OutcomeRefund, "Refund"},
		{OutcomeReject, "Reject"},
		{LineOutcome(999), "#999"},
	}
	for _, tc := range cases {
		if got := tc.outcome.Name(); got != tc.want {
			t.Errorf("LineOutcome(%d).Name() = %q, want %q", tc.outcome, got, tc.want)
		}
	}
}

func TestStockStatusNames(t *testing.T) {
	if got := StockStatusOK.Name(); got != "OK" {
		t.Errorf("StockStatusOK.Name() = %q, want OK", got)
	}
	if got := StockStatusQuarantined.Name(); got != "Quarantined" {
		t.Errorf("StockStatusQuarantined.Name() = %q, want Quarantined", got)
	}
	if got := StockStatus(999).Name(); got != "#999" {
		t.Errorf("StockStatus(999).Name() = %q, want #999", got)
	}
}

func TestStockStatusIsValid(t *testing.T) {
	for _, code := range []StockStatus{10, 50, 55, 60, 65, 70, 75, 85} {
		if !code.IsValid() {
			t.Errorf("StockStatus(%d) should be valid", code)
		}
	}
	if StockStatus(11).IsValid() {
		t.Error("StockStatus(11) should be invalid")
	}
}

func TestApplyStatus(t *testing.T) {
	item := &StockItem{Status: StockStatusOK}

	if item.ApplyStatus(StockStatusOK) {
		t.Error("same status should report no change")
	}
	if !item.ApplyStatus(StockStatusDamaged) {
		t.Error("different status should report a change")
	}
	if item.Status != StockStatusDamaged {
		t.Errorf("Status = %d, want %d", item.Status, StockStatusDamaged)
	}
}

func TestNewAllocationViewProjection(t *testing.T) {
	locationId := 3
	itemId := 9
	consumed := false
	created := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	allocation := &RepairStockAllocation{
		ID:       1,
		Quantity: decimal.NewFromInt(2),
		Consumed: &consumed,
		Created:  created,
		Notes:    "spare panel",
		ReturnOrderLine: &ReturnOrderLine{
			ID:      5,
			OrderId: 2,
			Order:   &ReturnOrder{ID: 2, Reference: "RMA-001"},
			ItemId:  &itemId,
			Outcome: OutcomeRepair,
			Item: &StockItem{
				ID:           itemId,
				SerialNumber: "SN-1001",
				Part:         &Part{ID: 4, Name: "Display Panel"},
			},
		},
		StockItem: &StockItem{
			ID:         7,
			PartId:     4,
			Part:       &Part{ID: 4, Name: "Display Panel"},
			Quantity:   decimal.NewFromInt(10),
			BatchCode:  "BATCH-1",
			LocationId: &locationId,
			Location:   &StockLocation{ID: locationId, Name: "Repair Bench"},
		},
	}

	view := NewAllocationView(allocation)

	if view.ID != 1 || view.Consumed || view.Notes != "spare panel" {
		t.Errorf("unexpected view header: %+v", view)
	}
	if !view.Created.Equal(created) {
		t.Errorf("Created = %s, want %s", view.Created, created)
	}
	if view.Line.OrderReference != "RMA-001" {
		t.Errorf("OrderReference = %q, want RMA-001", view.Line.OrderReference)
	}
	if view.Line.OutcomeName != "Repair" {
		t.Errorf("OutcomeName = %q, want Repair", view.Line.OutcomeName)
	}
	if view.Line.TargetPartName != "Display Panel" || view.Line.TargetSerial != "SN-1001" {
		t.Errorf("unexpected target item projection: %+v", view.Line)
	}
	if view.StockItem.PartName != "Display Panel" || view.StockItem.LocationName != "Repair Bench" {
		t.Errorf("unexpected stock item projection: %+v", view.StockItem)
	}
	if !view.StockItem.Quantity.Equal(decimal.NewFromInt(10)) {
		t.Errorf("stock quantity = %s, want 10", view.StockItem.Quantity)
	}
}

func TestNewAllocationViewMissingAssociations(t *testing.T) {
	view := NewAllocationView(&RepairStockAllocation{ID: 2, Quantity: decimal.NewFromInt(1)})

	if view.ID != 2 || view.Line.ID != 0 || view.StockItem.ID != 0 {
		t.Errorf("missing associations should leave nested views zero: %+v", view)
	}
}

package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/rma_backend/config"
	"bitbucket.org/mmdatafocus/rma_backend/models"
	"bitbucket.org/mmdatafocus/rma_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RMAAutomation reacts to return order completion: it syncs each returned
// item's stock status to the line outcome, optionally reassigns the item to
// the order's customer, records tracking notes, and consumes allocated
// repair stock. Behaviour is driven entirely by the settings it was built
// with; reload settings by building a new instance.
type RMAAutomation struct {
	settings config.AutomationSettings
	logger   *logrus.Logger
	tracer   trace.Tracer
}

func NewRMAAutomation(settings config.AutomationSettings) *RMAAutomation {
	return &RMAAutomation{
		settings: settings,
		logger:   config.GetLogger(),
		tracer:   otel.Tracer("workflow"),
	}
}

// WantsEvent reports whether the automation reacts to the given event kind.
func (a *RMAAutomation) WantsEvent(kind EventKind) bool {
	return kind == EventReturnOrderCompleted
}

// ProcessEvent runs the completion workflow for one event. It never returns
// an error to the caller: the event transport must not retry or crash on a
// workflow failure, so every problem is logged and swallowed here.
func (a *RMAAutomation) ProcessEvent(ctx context.Context, event Event) {

	defer func() {
		if r := recover(); r != nil {
			a.logger.WithFields(logrus.Fields{
				"event":    string(event.Kind),
				"order_id": event.OrderId,
				"panic":    fmt.Sprintf("%v", r),
			}).Error("return order automation panicked")
		}
	}()

	if !a.WantsEvent(event.Kind) {
		return
	}
	if event.OrderId <= 0 {
		a.logger.WithField("event", string(event.Kind)).
			Warn("completion event without an order id, ignoring")
		return
	}

	if event.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, event.CorrelationId)
	}

	ctx, span := a.tracer.Start(ctx, "ProcessReturnOrderCompleted",
		trace.WithAttributes(attribute.Int("order.id", event.OrderId)))
	defer span.End()

	if err := a.processReturnOrder(ctx, event.OrderId); err != nil {
		config.LogError(a.logger, "rmaAutomation.go", "ProcessEvent",
			"processReturnOrder", event.OrderId, err)
	}
}

// processReturnOrder applies the automation to every line of the order. A
// failure on one line is logged and does not abort the others.
func (a *RMAAutomation) processReturnOrder(ctx context.Context, orderId int) error {

	order, err := models.GetReturnOrder(ctx, orderId, "Customer")
	if err != nil {
		return err
	}

	lines, err := models.ListReturnOrderLines(ctx, orderId)
	if err != nil {
		return err
	}

	if a.settings.EnableAutoStatus {
		for _, line := range lines {
			if err := a.processLine(ctx, order, line); err != nil {
				config.LogError(a.logger, "rmaAutomation.go", "processReturnOrder",
					"processLine", line.ID, err)
			}
		}
	}

	if a.settings.ConsumeRepairParts {
		if err := a.consumeRepairParts(ctx, order); err != nil {
			config.LogError(a.logger, "rmaAutomation.go", "processReturnOrder",
				"consumeRepairParts", orderId, err)
		}
	}

	return nil
}

// processLine syncs one line's stock item to the decided outcome.
func (a *RMAAutomation) processLine(ctx context.Context, order *models.ReturnOrder, line *models.ReturnOrderLine) error {

	if line.ItemId == nil {
		a.logger.WithField("line_id", line.ID).Debug("line has no stock item, skipping")
		return nil
	}

	newStatus, ok := a.statusForOutcome(line.Outcome)
	if !ok {
		// pending or unrecognized outcomes leave the item untouched
		a.logger.WithFields(logrus.Fields{
			"line_id": line.ID,
			"outcome": int(line.Outcome),
		}).Debug("outcome does not map to a stock status, skipping")
		return nil
	}

	item, err := models.GetStockItem(ctx, *line.ItemId)
	if err != nil {
		return err
	}

	statusChanged := item.ApplyStatus(newStatus)
	reassigned := false
	if shouldReassign(a.settings.EnableCustomerReassign, line.Outcome, order.CustomerId) {
		if item.CustomerId == nil || *item.CustomerId != *order.CustomerId {
			item.CustomerId = order.CustomerId
			reassigned = true
		}
	}

	if !statusChanged && !reassigned {
		return nil
	}

	// the workflow writes its own tracking entry below
	saveCtx := utils.SetSkipAutoTrackingInContext(ctx, true)
	db := config.GetDB()
	if err := db.WithContext(saveCtx).Save(item).Error; err != nil {
		return err
	}

	if statusChanged && a.settings.AddTrackingNotes {
		note := buildTrackingNote(order.Reference, line.Outcome, newStatus, line.Notes)
		err = models.AddTrackingEntry(ctx, item.ID, models.TrackingEdited, note,
			map[string]interface{}{"status": int(newStatus)}, nil)
		if err != nil {
			return err
		}
	}
	if reassigned && a.settings.AddTrackingNotes {
		note := fmt.Sprintf("%s: assigned to customer", order.Reference)
		err = models.AddTrackingEntry(ctx, item.ID, models.TrackingSentToCustomer, note,
			map[string]interface{}{"customer": *order.CustomerId}, nil)
		if err != nil {
			return err
		}
	}

	return nil
}

// statusForOutcome maps a line outcome to the configured stock status.
// Pending and unknown outcomes map to nothing: the item keeps its status.
func (a *RMAAutomation) statusForOutcome(outcome models.LineOutcome) (models.StockStatus, bool) {

	switch outcome {
	case models.OutcomeReturn:
		return models.StockStatus(a.settings.StatusForReturn), true
	case models.OutcomeRepair:
		return models.StockStatus(a.settings.StatusForRepair), true
	case models.OutcomeReplace:
		return models.StockStatus(a.settings.StatusForReplace), true
	case models.OutcomeRefund:
		return models.StockStatus(a.settings.StatusForRefund), true
	case models.OutcomeReject:
		return models.StockStatus(a.settings.StatusForReject), true
	}
	return 0, false
}

// shouldReassign decides whether the item goes back to the order's
// customer. Only outcomes where the item physically leaves again qualify.
func shouldReassign(enabled bool, outcome models.LineOutcome, customerId *int) bool {

	if !enabled || customerId == nil {
		return false
	}
	return outcome == models.OutcomeReturn || outcome == models.OutcomeRepair
}

// buildTrackingNote renders the audit line for a status sync, e.g.
// "RMA-001: Repair → OK". Line notes follow on their own line.
func buildTrackingNote(reference string, outcome models.LineOutcome, status models.StockStatus, lineNotes string) string {

	note := fmt.Sprintf("%s: %s → %s", reference, outcome.Name(), status.Name())
	if lineNotes != "" {
		note = note + "\n" + lineNotes
	}
	return note
}

// consumeRepairParts debits every unconsumed allocation of the order from
// its stock item and marks it consumed. Allocations whose item no longer
// has enough stock are skipped with a warning; the rest still go through.
func (a *RMAAutomation) consumeRepairParts(ctx context.Context, order *models.ReturnOrder) error {

	allocations, err := models.ListUnconsumedAllocationsForOrder(ctx, order.ID)
	if err != nil {
		return err
	}

	db := config.GetDB()
	for _, allocation := range allocations {
		item, err := models.GetStockItem(ctx, allocation.StockItemId)
		if err != nil {
			config.LogError(a.logger, "rmaAutomation.go", "consumeRepairParts",
				"GetStockItem", allocation.StockItemId, err)
			continue
		}

		if item.Quantity.LessThan(allocation.Quantity) {
			a.logger.WithFields(logrus.Fields{
				"allocation_id": allocation.ID,
				"stock_item_id": item.ID,
				"available":     item.Quantity.String(),
				"requested":     allocation.Quantity.String(),
			}).Warn("not enough stock to consume allocation, skipping")
			continue
		}

		item.Quantity = item.Quantity.Sub(allocation.Quantity)

		saveCtx := utils.SetSkipAutoTrackingInContext(ctx, true)
		if err := db.WithContext(saveCtx).Save(item).Error; err != nil {
			config.LogError(a.logger, "rmaAutomation.go", "consumeRepairParts",
				"SaveStockItem", item.ID, err)
			continue
		}

		if a.settings.AddTrackingNotes {
			note := fmt.Sprintf("Consumed for repair: %s", order.Reference)
			err = models.AddTrackingEntry(ctx, item.ID, models.TrackingEdited, note,
				map[string]interface{}{
					"removed":  allocation.Quantity,
					"quantity": item.Quantity,
				}, nil)
			if err != nil {
				config.LogError(a.logger, "rmaAutomation.go", "consumeRepairParts",
					"AddTrackingEntry", item.ID, err)
			}
		}

		err = db.WithContext(ctx).Model(allocation).Update("Consumed", true).Error
		if err != nil {
			config.LogError(a.logger, "rmaAutomation.go", "consumeRepairParts",
				"MarkConsumed", allocation.ID, err)
		}
	}

	return nil
}

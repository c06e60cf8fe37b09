package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/rma_backend/config"
	"bitbucket.org/mmdatafocus/rma_backend/models"
	"bitbucket.org/mmdatafocus/rma_backend/utils"
	"bitbucket.org/mmdatafocus/rma_backend/workflow"
	"github.com/shopspring/decimal"
)

// Regression: the allocation ledger must reject reservations that exceed
// what a stock item still has free, counting other unconsumed allocations
// but never the row being updated.
func TestAllocationLedgerQuantityValidation(t *testing.T) {
	ctx := startTestEnv(t)

	fixture := seedRepairFixture(t, ctx, decimal.NewFromInt(10))

	// Reserve 4 of the 10 first.
	first, err := models.CreateAllocation(ctx, &models.NewRepairStockAllocation{
		ReturnOrderLineId: fixture.line.ID,
		StockItemId:       fixture.spares.ID,
		Quantity:          decimal.NewFromInt(4),
	})
	if err != nil {
		t.Fatalf("CreateAllocation(4): %v", err)
	}

	// 7 more does not fit: only 6 are free.
	_, err = models.CreateAllocation(ctx, &models.NewRepairStockAllocation{
		ReturnOrderLineId: fixture.line.ID,
		StockItemId:       fixture.spares.ID,
		Quantity:          decimal.NewFromInt(7),
	})
	var qtyErr *models.AllocationQuantityError
	if !errors.As(err, &qtyErr) {
		t.Fatalf("expected AllocationQuantityError, got %v", err)
	}
	if !qtyErr.Available.Equal(decimal.NewFromInt(6)) || !qtyErr.Allocated.Equal(decimal.NewFromInt(4)) {
		t.Errorf("quantity error = available %s allocated %s, want 6/4", qtyErr.Available, qtyErr.Allocated)
	}

	// 6 exactly fits.
	second, err := models.CreateAllocation(ctx, &models.NewRepairStockAllocation{
		ReturnOrderLineId: fixture.line.ID,
		StockItemId:       fixture.spares.ID,
		Quantity:          decimal.NewFromInt(6),
	})
	if err != nil {
		t.Fatalf("CreateAllocation(6): %v", err)
	}

	// Updating the first row to 4 again must not count itself as taken.
	if _, err := models.UpdateAllocation(ctx, first.ID, &models.NewRepairStockAllocation{
		ReturnOrderLineId: fixture.line.ID,
		StockItemId:       fixture.spares.ID,
		Quantity:          decimal.NewFromInt(4),
	}); err != nil {
		t.Fatalf("UpdateAllocation(same quantity): %v", err)
	}

	// Growing it past the remainder must fail.
	if _, err := models.UpdateAllocation(ctx, first.ID, &models.NewRepairStockAllocation{
		ReturnOrderLineId: fixture.line.ID,
		StockItemId:       fixture.spares.ID,
		Quantity:          decimal.NewFromInt(5),
	}); !errors.As(err, &qtyErr) {
		t.Fatalf("expected AllocationQuantityError on oversize update, got %v", err)
	}

	// List filters.
	lineId := fixture.line.ID
	byLine, err := models.ListAllocations(ctx, &models.AllocationFilter{ReturnOrderLineId: &lineId})
	if err != nil {
		t.Fatalf("ListAllocations(line): %v", err)
	}
	if len(byLine) != 2 {
		t.Fatalf("ListAllocations(line) = %d rows, want 2", len(byLine))
	}
	if byLine[0].ID != first.ID || byLine[1].ID != second.ID {
		t.Errorf("allocations not ordered by id: %d, %d", byLine[0].ID, byLine[1].ID)
	}

	orderId := fixture.order.ID
	byOrder, err := models.ListAllocations(ctx, &models.AllocationFilter{ReturnOrderId: &orderId})
	if err != nil {
		t.Fatalf("ListAllocations(order): %v", err)
	}
	if len(byOrder) != 2 {
		t.Fatalf("ListAllocations(order) = %d rows, want 2", len(byOrder))
	}

	consumed := true
	none, err := models.ListAllocations(ctx, &models.AllocationFilter{Consumed: &consumed})
	if err != nil {
		t.Fatalf("ListAllocations(consumed): %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("ListAllocations(consumed=true) = %d rows, want 0", len(none))
	}

	// Delete is unconditional, consumed or not.
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(second).Update("Consumed", true).Error; err != nil {
		t.Fatalf("mark consumed: %v", err)
	}
	if _, err := models.DeleteAllocation(ctx, second.ID); err != nil {
		t.Fatalf("DeleteAllocation(consumed): %v", err)
	}
	if _, err := models.GetAllocation(ctx, second.ID); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected record not found after delete, got %v", err)
	}
}

// End-to-end: completing a return order syncs the returned item's status,
// writes the audit note, and consumes the allocated repair stock exactly
// once even when the event is replayed.
func TestReturnOrderCompletionWorkflow(t *testing.T) {
	ctx := startTestEnv(t)

	fixture := seedRepairFixture(t, ctx, decimal.NewFromInt(10))

	allocation, err := models.CreateAllocation(ctx, &models.NewRepairStockAllocation{
		ReturnOrderLineId: fixture.line.ID,
		StockItemId:       fixture.spares.ID,
		Quantity:          decimal.NewFromInt(2),
	})
	if err != nil {
		t.Fatalf("CreateAllocation: %v", err)
	}

	if _, err := models.CompleteReturnOrder(ctx, fixture.order.ID); err != nil {
		t.Fatalf("CompleteReturnOrder: %v", err)
	}

	automation := workflow.NewRMAAutomation(config.DefaultAutomationSettings())
	event := workflow.Event{Kind: workflow.EventReturnOrderCompleted, OrderId: fixture.order.ID}
	automation.ProcessEvent(ctx, event)

	// Returned item: Repair maps to OK by default.
	returned, err := models.GetStockItem(ctx, fixture.returned.ID)
	if err != nil {
		t.Fatalf("GetStockItem(returned): %v", err)
	}
	if returned.Status != models.StockStatusOK {
		t.Errorf("returned item status = %d, want %d", returned.Status, models.StockStatusOK)
	}

	entries, err := models.ListTrackingEntries(ctx, fixture.returned.ID)
	if err != nil {
		t.Fatalf("ListTrackingEntries: %v", err)
	}
	found := false
	for _, entry := range entries {
		if strings.HasPrefix(entry.Notes, fixture.order.Reference+": Repair → ") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a status sync note for %s, got %+v", fixture.order.Reference, entries)
	}

	// Spare stock: debited once, allocation marked consumed.
	spares, err := models.GetStockItem(ctx, fixture.spares.ID)
	if err != nil {
		t.Fatalf("GetStockItem(spares): %v", err)
	}
	if !spares.Quantity.Equal(decimal.NewFromInt(8)) {
		t.Errorf("spare quantity = %s, want 8", spares.Quantity)
	}
	got, err := models.GetAllocation(ctx, allocation.ID)
	if err != nil {
		t.Fatalf("GetAllocation: %v", err)
	}
	if got.Consumed == nil || !*got.Consumed {
		t.Error("allocation should be marked consumed")
	}

	// Replay the event: consumed allocations must not be debited again.
	automation.ProcessEvent(ctx, event)
	spares, err = models.GetStockItem(ctx, fixture.spares.ID)
	if err != nil {
		t.Fatalf("GetStockItem(spares) after replay: %v", err)
	}
	if !spares.Quantity.Equal(decimal.NewFromInt(8)) {
		t.Errorf("spare quantity after replay = %s, want 8", spares.Quantity)
	}

	// Consumption note exists exactly once.
	spareEntries, err := models.ListTrackingEntries(ctx, fixture.spares.ID)
	if err != nil {
		t.Fatalf("ListTrackingEntries(spares): %v", err)
	}
	consumedNotes := 0
	for _, entry := range spareEntries {
		if entry.Notes == "Consumed for repair: "+fixture.order.Reference {
			consumedNotes++
			if entry.TrackingType != models.TrackingEdited {
				t.Errorf("consumption entry tracking type = %d, want %d",
					entry.TrackingType, models.TrackingEdited)
			}
		}
	}
	if consumedNotes != 1 {
		t.Errorf("consumption notes = %d, want 1", consumedNotes)
	}
}

// An allocation whose stock item no longer covers the reserved quantity is
// skipped with its consumed flag intact; the order's other allocations
// still go through.
func TestConsumeRepairPartsInsufficientStock(t *testing.T) {
	ctx := startTestEnv(t)

	fixture := seedRepairFixture(t, ctx, decimal.NewFromInt(10))

	short, err := models.CreateStockItem(ctx, &models.NewStockItem{
		PartId:   fixture.part.ID,
		Quantity: decimal.NewFromInt(5),
	})
	if err != nil {
		t.Fatalf("CreateStockItem(short): %v", err)
	}

	shortAlloc, err := models.CreateAllocation(ctx, &models.NewRepairStockAllocation{
		ReturnOrderLineId: fixture.line.ID,
		StockItemId:       short.ID,
		Quantity:          decimal.NewFromInt(5),
	})
	if err != nil {
		t.Fatalf("CreateAllocation(short): %v", err)
	}
	okAlloc, err := models.CreateAllocation(ctx, &models.NewRepairStockAllocation{
		ReturnOrderLineId: fixture.line.ID,
		StockItemId:       fixture.spares.ID,
		Quantity:          decimal.NewFromInt(3),
	})
	if err != nil {
		t.Fatalf("CreateAllocation(ok): %v", err)
	}

	// Stock shrinks below the reservation after the allocation was made.
	db := config.GetDB()
	saveCtx := utils.SetSkipAutoTrackingInContext(ctx, true)
	if err := db.WithContext(saveCtx).Model(&models.StockItem{}).
		Where("id = ?", short.ID).
		Update("Quantity", decimal.NewFromInt(2)).Error; err != nil {
		t.Fatalf("shrink stock: %v", err)
	}

	if _, err := models.CompleteReturnOrder(ctx, fixture.order.ID); err != nil {
		t.Fatalf("CompleteReturnOrder: %v", err)
	}
	automation := workflow.NewRMAAutomation(config.DefaultAutomationSettings())
	automation.ProcessEvent(ctx, workflow.Event{
		Kind:    workflow.EventReturnOrderCompleted,
		OrderId: fixture.order.ID,
	})

	// The short allocation is untouched.
	gotShort, err := models.GetAllocation(ctx, shortAlloc.ID)
	if err != nil {
		t.Fatalf("GetAllocation(short): %v", err)
	}
	if gotShort.Consumed != nil && *gotShort.Consumed {
		t.Error("short allocation should not be consumed")
	}
	shortItem, err := models.GetStockItem(ctx, short.ID)
	if err != nil {
		t.Fatalf("GetStockItem(short): %v", err)
	}
	if !shortItem.Quantity.Equal(decimal.NewFromInt(2)) {
		t.Errorf("short item quantity = %s, want 2 (unchanged)", shortItem.Quantity)
	}

	// The healthy allocation still went through.
	gotOk, err := models.GetAllocation(ctx, okAlloc.ID)
	if err != nil {
		t.Fatalf("GetAllocation(ok): %v", err)
	}
	if gotOk.Consumed == nil || !*gotOk.Consumed {
		t.Error("healthy allocation should be consumed")
	}
	spares, err := models.GetStockItem(ctx, fixture.spares.ID)
	if err != nil {
		t.Fatalf("GetStockItem(spares): %v", err)
	}
	if !spares.Quantity.Equal(decimal.NewFromInt(7)) {
		t.Errorf("spare quantity = %s, want 7", spares.Quantity)
	}
}

// Customer reassignment is off by default; with the flag on, Return and
// Repair outcomes hand the item back to the order's customer.
func TestCompletionReassignsCustomerWhenEnabled(t *testing.T) {
	ctx := startTestEnv(t)

	fixture := seedRepairFixture(t, ctx, decimal.NewFromInt(10))

	if _, err := models.CompleteReturnOrder(ctx, fixture.order.ID); err != nil {
		t.Fatalf("CompleteReturnOrder: %v", err)
	}

	settings := config.DefaultAutomationSettings()
	settings.EnableCustomerReassign = true
	automation := workflow.NewRMAAutomation(settings)
	automation.ProcessEvent(ctx, workflow.Event{
		Kind:    workflow.EventReturnOrderCompleted,
		OrderId: fixture.order.ID,
	})

	returned, err := models.GetStockItem(ctx, fixture.returned.ID)
	if err != nil {
		t.Fatalf("GetStockItem: %v", err)
	}
	if returned.CustomerId == nil || *returned.CustomerId != fixture.customer.ID {
		t.Errorf("returned item customer = %v, want %d", returned.CustomerId, fixture.customer.ID)
	}
}

// Update bodies that omit the status or outcome must keep the stored
// value instead of writing the zero code.
func TestUpdatePathsPreserveEnumFields(t *testing.T) {
	ctx := startTestEnv(t)

	fixture := seedRepairFixture(t, ctx, decimal.NewFromInt(10))

	if _, err := models.UpdateStockItem(ctx, fixture.returned.ID, &models.NewStockItem{
		PartId:       fixture.part.ID,
		SerialNumber: "SN-1001-B",
		Quantity:     decimal.NewFromInt(1),
	}); err != nil {
		t.Fatalf("UpdateStockItem: %v", err)
	}
	item, err := models.GetStockItem(ctx, fixture.returned.ID)
	if err != nil {
		t.Fatalf("GetStockItem: %v", err)
	}
	if item.Status != models.StockStatusDamaged {
		t.Errorf("status after update = %d, want %d (unchanged)", item.Status, models.StockStatusDamaged)
	}
	if item.SerialNumber != "SN-1001-B" {
		t.Errorf("serial after update = %q, want SN-1001-B", item.SerialNumber)
	}

	if _, err := models.UpdateReturnOrderLine(ctx, fixture.line.ID, &models.NewReturnOrderLine{
		OrderId: fixture.order.ID,
		ItemId:  &fixture.returned.ID,
		Notes:   "still flickering",
	}); err != nil {
		t.Fatalf("UpdateReturnOrderLine: %v", err)
	}
	line, err := models.GetReturnOrderLine(ctx, fixture.line.ID)
	if err != nil {
		t.Fatalf("GetReturnOrderLine: %v", err)
	}
	if line.Outcome != models.OutcomeRepair {
		t.Errorf("outcome after update = %d, want %d (unchanged)", line.Outcome, models.OutcomeRepair)
	}
	if line.Notes != "still flickering" {
		t.Errorf("notes after update = %q, want %q", line.Notes, "still flickering")
	}
}

type repairFixture struct {
	part     *models.Part
	customer *models.Customer
	returned *models.StockItem
	spares   *models.StockItem
	order    *models.ReturnOrder
	line     *models.ReturnOrderLine
}

// seedRepairFixture creates a part, a customer, a returned item in Damaged
// state, a pool of spare stock, and a return order with one Repair line.
func seedRepairFixture(t *testing.T, ctx context.Context, spareQty decimal.Decimal) repairFixture {
	t.Helper()

	part, err := models.CreatePart(ctx, &models.NewPart{Name: "Display Panel", IPN: "DP-0007"})
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Acme Field Services"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	returned, err := models.CreateStockItem(ctx, &models.NewStockItem{
		PartId:       part.ID,
		SerialNumber: "SN-1001",
		Quantity:     decimal.NewFromInt(1),
		Status:       models.StockStatusDamaged,
	})
	if err != nil {
		t.Fatalf("CreateStockItem(returned): %v", err)
	}
	spares, err := models.CreateStockItem(ctx, &models.NewStockItem{
		PartId:    part.ID,
		BatchCode: "BATCH-SPARES",
		Quantity:  spareQty,
	})
	if err != nil {
		t.Fatalf("CreateStockItem(spares): %v", err)
	}
	order, err := models.CreateReturnOrder(ctx, &models.NewReturnOrder{
		Reference:  fmt.Sprintf("RMA-%d", time.Now().UnixNano()%100000),
		CustomerId: &customer.ID,
	})
	if err != nil {
		t.Fatalf("CreateReturnOrder: %v", err)
	}
	line, err := models.CreateReturnOrderLine(ctx, &models.NewReturnOrderLine{
		OrderId: order.ID,
		ItemId:  &returned.ID,
		Outcome: models.OutcomeRepair,
		Notes:   "Customer reported screen flickering",
	})
	if err != nil {
		t.Fatalf("CreateReturnOrderLine: %v", err)
	}

	return repairFixture{
		part:     part,
		customer: customer,
		returned: returned,
		spares:   spares,
		order:    order,
		line:     line,
	}
}

// startTestEnv boots MySQL and Redis containers and wires the config
// package to them. Skipped unless INTEGRATION_TESTS is set.
func startTestEnv(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "rma_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test@local")
	return ctx
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("rma-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("rma-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=rma_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}

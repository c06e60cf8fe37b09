// seed-demo loads a small demo dataset: a part with stock, a customer, and
// a return order with one repair line and one allocation. Handy for
// exercising the completion flow against a fresh database.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-demo
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/rma_backend/config"
	"bitbucket.org/mmdatafocus/rma_backend/models"
	"bitbucket.org/mmdatafocus/rma_backend/utils"
	"github.com/shopspring/decimal"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx = utils.SetUserNameInContext(ctx, "Seed")

	part, err := models.CreatePart(ctx, &models.NewPart{
		Name: "Display Panel 7in",
		IPN:  "DP-0007",
	})
	must(err, "create part")

	location, err := models.CreateStockLocation(ctx, &models.NewStockLocation{
		Name: "Repair Bench",
	})
	must(err, "create location")

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{
		Name:  "Acme Field Services",
		Email: "returns@acme.example",
	})
	must(err, "create customer")

	returned, err := models.CreateStockItem(ctx, &models.NewStockItem{
		PartId:       part.ID,
		SerialNumber: "SN-1001",
		Quantity:     decimal.NewFromInt(1),
		CustomerId:   &customer.ID,
	})
	must(err, "create returned item")

	spares, err := models.CreateStockItem(ctx, &models.NewStockItem{
		PartId:     part.ID,
		BatchCode:  "BATCH-SPARES",
		Quantity:   decimal.NewFromInt(10),
		LocationId: &location.ID,
	})
	must(err, "create spare stock")

	order, err := models.CreateReturnOrder(ctx, &models.NewReturnOrder{
		Reference:  "RMA-0001",
		CustomerId: &customer.ID,
	})
	must(err, "create return order")

	line, err := models.CreateReturnOrderLine(ctx, &models.NewReturnOrderLine{
		OrderId: order.ID,
		ItemId:  &returned.ID,
		Outcome: models.OutcomeRepair,
		Notes:   "Customer reported screen flickering",
	})
	must(err, "create return order line")

	allocation, err := models.CreateAllocation(ctx, &models.NewRepairStockAllocation{
		ReturnOrderLineId: line.ID,
		StockItemId:       spares.ID,
		Quantity:          decimal.NewFromInt(2),
		Notes:             "replacement panel plus one spare",
	})
	must(err, "create allocation")

	fmt.Printf("Seeded demo data: order=%s (id=%d) line=%d allocation=%d\n",
		order.Reference, order.ID, line.ID, allocation.ID)
}

func must(err error, what string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to %s: %v\n", what, err)
		os.Exit(1)
	}
}

package models

import (
	"log"

	"bitbucket.org/mmdatafocus/rma_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Part{}, &StockLocation{}, &Customer{},
		&StockItem{}, &StockItemTracking{},
		&ReturnOrder{}, &ReturnOrderLine{},
		&RepairStockAllocation{},
	)
	if err != nil {
		log.Fatal(err)
	}
}

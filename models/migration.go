package models

import (
	"log"

	"github.com/mmdatafocus/mkitchen_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{},
		&History{},
		&ProductUnit{}, &ProductCategory{}, &Product{},
		&Bom{}, &BomComponent{}, &BomMenuItem{},
		&ProductionRun{}, &ProductionNumberSeries{},
		&StockTransaction{}, &LowStockEvent{},
	)
	if err != nil {
		log.Fatal(err)
	}
}

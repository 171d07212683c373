// ledger-verify recomputes every product's stock transaction sum and compares it
// against products.current_stock. Any drift means a write path bypassed the ledger.
//
// Example:
//
//	go run ./cmd/ledger-verify/ -business-id=a195a02a-ee0c-4047-a6f4-443633d0aca4
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/mkitchen_backend/config"
	"github.com/mmdatafocus/mkitchen_backend/models"
	"github.com/mmdatafocus/mkitchen_backend/utils"
)

func main() {
	businessID := flag.String("business-id", "", "Business id (empty = check every business)")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	ctx := context.Background()

	businessIDs := []string{strings.TrimSpace(*businessID)}
	if businessIDs[0] == "" {
		if err := db.Model(&models.Business{}).Pluck("id", &businessIDs).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to list businesses: %v\n", err)
			os.Exit(1)
		}
		if len(businessIDs) == 0 {
			fmt.Println("no businesses found")
			return
		}
	}

	exitCode := 0
	for _, id := range businessIDs {
		bizCtx := utils.SetBusinessIdInContext(ctx, id)
		drifts, err := models.CheckLedgerConsistency(bizCtx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "business_id=%s check failed: %v\n", id, err)
			os.Exit(1)
		}
		if len(drifts) == 0 {
			fmt.Printf("business_id=%s OK: ledger matches current_stock for all products\n", id)
			continue
		}
		exitCode = 2
		fmt.Printf("business_id=%s DRIFT: %d product(s) out of sync\n", id, len(drifts))
		for _, d := range drifts {
			fmt.Printf("  product_id=%d name=%q ledger_sum=%s current_stock=%s diff=%s\n",
				d.ProductId, d.ProductName, d.LedgerSum.String(), d.CurrentStock.String(),
				d.CurrentStock.Sub(d.LedgerSum).String())
		}
	}
	os.Exit(exitCode)
}

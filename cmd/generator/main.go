// Command generator seeds the database with ticket tiers for load tests
// and local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lark/internal/config"
	"lark/internal/database"
	"lark/internal/models"
	"lark/internal/repository"
)

var (
	clearExisting = flag.Bool("clear", false, "Clear existing tiers before generating new ones")
	tierCount     = flag.Int("tiers", 4, "Number of tiers to generate")
	capacity      = flag.Int("capacity", 1000, "Total quantity per generated tier")
	dryRun        = flag.Bool("dry-run", false, "Show what would be generated without making changes")
)

var tierNames = []string{"General Admission", "Early Bird", "Front Standing", "Balcony", "VIP Lounge", "Accessible"}

func main() {
	flag.Parse()

	slog.Info("Starting tier generator...")

	cfg := config.Load()
	db, err := database.Connect(cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if *clearExisting {
		if *dryRun {
			slog.Info("[dry-run] Would clear existing tiers, orders and tickets")
		} else {
			for _, table := range []string{"listings", "transfers", "tickets", "orders", "tiers"} {
				if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
					slog.Error("Failed to clear table", "table", table, "error", err)
					os.Exit(1)
				}
			}
			slog.Info("Cleared existing data")
		}
	}

	repos := repository.NewRepositories(db)

	for i := 0; i < *tierCount; i++ {
		name := tierNames[i%len(tierNames)]
		if i >= len(tierNames) {
			name = fmt.Sprintf("%s %d", name, i/len(tierNames)+1)
		}

		// Pricing steps up by tier so resale cap math has variety.
		unitPrice := decimal.NewFromInt(int64(40 + 25*i))
		serviceFee := unitPrice.Mul(decimal.RequireFromString("0.12")).Round(2)

		tier := &models.TicketTier{
			ID:                uuid.New().String(),
			Name:              name,
			UnitPrice:         unitPrice,
			ServiceFee:        serviceFee,
			TotalQuantity:     *capacity,
			AvailableQuantity: *capacity,
		}

		if *dryRun {
			slog.Info("[dry-run] Would create tier",
				"name", tier.Name, "unit_price", unitPrice.StringFixed(2),
				"service_fee", serviceFee.StringFixed(2), "capacity", *capacity)
			continue
		}

		if err := repos.CreateTier(ctx, tier); err != nil {
			slog.Error("Failed to create tier", "name", tier.Name, "error", err)
			os.Exit(1)
		}
		slog.Info("Created tier", "id", tier.ID, "name", tier.Name)
	}

	slog.Info("Tier generation complete", "tiers", *tierCount)
}

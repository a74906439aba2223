// Package devseed inserts a small fixture set for local development: a few
// partner accounts across the access bands and a handful of open jobs to
// claim. Seeding is idempotent; existing rows are left alone.
package devseed

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchworks/fieldserve/internal/domain/model"
	"github.com/dispatchworks/fieldserve/internal/domain/reputation"
)

type seedPartner struct {
	id      string
	ratings []float64
}

type seedJob struct {
	shift model.Shift
	items []model.LineItem
}

// Run seeds development fixtures. Safe to call on every startup.
func Run(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if logger != nil {
		logger = logger.With("component", "devseed")
	}

	if err := seedPartners(ctx, db); err != nil {
		return fmt.Errorf("seed partners: %w", err)
	}
	if err := seedJobs(ctx, db); err != nil {
		return fmt.Errorf("seed jobs: %w", err)
	}

	if logger != nil {
		logger.InfoContext(ctx, "development fixtures seeded")
	}
	return nil
}

func seedPartners(ctx context.Context, db *sql.DB) error {
	partners := []seedPartner{
		{id: "dev-partner-elite", ratings: repeat(9.0, 25)},
		{id: "dev-partner-standard", ratings: repeat(5.0, 25)},
		{id: "dev-partner-restricted", ratings: repeat(3.5, 25)},
		{id: "dev-partner-fresh", ratings: repeat(8.0, 5)},
	}

	for _, p := range partners {
		// Derive the stored scores with the real engine so seeded rows
		// match what a recalculation would produce.
		result := reputation.Recalculate(model.PartnerAccount{
			ID:                 p.id,
			QualityHistory:     p.ratings,
			ReliabilityHistory: p.ratings,
			WarrantyHistory:    p.ratings,
		}, reputation.Delta{}, time.Now().UTC())
		account := result.Account

		history, err := json.Marshal(account.QualityHistory)
		if err != nil {
			return err
		}

		_, err = db.ExecContext(ctx, `
			INSERT INTO partners (
				id, quality_history, reliability_history, warranty_history,
				quality_score, reliability_score, warranty_score, unified_score
			) VALUES ($1, $2, $2, $2, $3, $3, $3, $4)
			ON CONFLICT (id) DO NOTHING`,
			p.id, history, account.QualityScore, account.UnifiedScore,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedJobs(ctx context.Context, db *sql.DB) error {
	jobs := []seedJob{
		{shift: model.ShiftMorning, items: []model.LineItem{
			{ID: "sofa", PriceCents: 12_000},
			{ID: "armchair", PriceCents: 4_500},
		}},
		{shift: model.ShiftAfternoon, items: []model.LineItem{
			{ID: "wardrobe", PriceCents: 22_000},
		}},
		{shift: model.ShiftEvening, items: []model.LineItem{
			{ID: "dining-table", PriceCents: 9_000},
			{ID: "chairs", PriceCents: 6_000},
		}},
	}

	var existing int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE id LIKE 'dev-job-%'`,
	).Scan(&existing); err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	for _, j := range jobs {
		items, err := json.Marshal(j.items)
		if err != nil {
			return err
		}
		var total int64
		for _, it := range j.items {
			total += it.PriceCents
		}

		_, err = db.ExecContext(ctx, `
			INSERT INTO jobs (id, status, scheduled_date, shift, items, contracted_value_cents)
			VALUES ($1, 'available', $2, $3, $4, $5)`,
			"dev-job-"+uuid.NewString(), tomorrow, string(j.shift), items, total,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func repeat(value float64, n int) []float64 {
	history := make([]float64, n)
	for i := range history {
		history[i] = value
	}
	return history
}

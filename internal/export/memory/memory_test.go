package memory

import (
	"context"
	"testing"
	"time"

	"moneyplan/internal/core"
)

func TestExportPlan(t *testing.T) {
	plan, err := core.StartPlan(core.StartPlanParams{
		InitialBalance: core.MustMoney("1000"),
		PlanDate:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:      time.Now(),
		DefaultAllocations: []core.AccountAllocationConfig{
			{
				AccountID:   "acc1",
				DisplayName: "Checking",
				Buckets: []core.BucketConfig{
					{Name: "Rent", Category: "housing", Allocated: core.MustMoney("600")},
					{Name: "Food", Category: "groceries", Allocated: core.MustMoney("400")},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("StartPlan: %v", err)
	}

	exporter := NewExporter()
	if err := exporter.ExportPlan(context.Background(), "tenant1", plan.Snapshot()); err != nil {
		t.Fatalf("ExportPlan: %v", err)
	}

	rows := exporter.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].BucketName != "Rent" || rows[0].Allocated != "600.00" || rows[0].PlanDate != "2026-08-01" {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].TenantID != "tenant1" || rows[1].DisplayName != "Checking" {
		t.Errorf("unexpected second row: %+v", rows[1])
	}
}

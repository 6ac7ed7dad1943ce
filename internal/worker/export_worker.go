// Package worker moves committed plans from local storage into the export
// backend, driven by AMQP events with a periodic backstop for missed messages.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"moneyplan/internal/amqp"
	"moneyplan/internal/export"
	"moneyplan/internal/storage"
)

// PlanSource is the storage surface the worker needs.
type PlanSource interface {
	GetPlanByID(ctx context.Context, planID uuid.UUID) (*storage.StoredPlan, error)
	MarkExported(ctx context.Context, planID uuid.UUID) error
	ListPendingExports(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// ExportWorker exports committed plans to the configured backend.
type ExportWorker struct {
	source    PlanSource
	exporter  export.PlanExporter
	batchSize int
}

func NewExportWorker(source PlanSource, exporter export.PlanExporter, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ExportWorker{
		source:    source,
		exporter:  exporter,
		batchSize: batchSize,
	}
}

// HandlePlanEvent processes a single plan lifecycle event from AMQP.
// Returning an error makes the consumer requeue the message.
func (w *ExportWorker) HandlePlanEvent(ctx context.Context, msg *amqp.PlanEventMessage) error {
	slog.InfoContext(ctx, "Processing plan event",
		"plan_id", msg.PlanID,
		"event", msg.Event)

	switch msg.Event {
	case amqp.EventPlanCommitted:
		planID, err := uuid.Parse(msg.PlanID)
		if err != nil {
			// Malformed id will never parse on retry; drop it.
			slog.ErrorContext(ctx, "Invalid plan id in event, dropping",
				"plan_id", msg.PlanID, "error", err)
			return nil
		}
		return w.exportPlan(ctx, planID)
	case amqp.EventPlanArchived:
		// Archived plans need no export work; the snapshot was exported at
		// commit time.
		slog.DebugContext(ctx, "Plan archived, nothing to export", "plan_id", msg.PlanID)
		return nil
	default:
		slog.WarnContext(ctx, "Unknown plan event, dropping",
			"plan_id", msg.PlanID, "event", msg.Event)
		return nil
	}
}

// ProcessPendingExports exports any committed plans that haven't been
// exported yet. This is a backup mechanism in case AMQP messages are lost.
func (w *ExportWorker) ProcessPendingExports(ctx context.Context) error {
	pending, err := w.source.ListPendingExports(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending exports: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	for _, planID := range pending {
		if err := w.exportPlan(ctx, planID); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending plan",
				"plan_id", planID, "error", err)
			continue
		}
	}

	return nil
}

// StartupExportCheck runs a larger pending-export sweep at worker startup to
// recover from downtime.
func (w *ExportWorker) StartupExportCheck(ctx context.Context) error {
	pending, err := w.source.ListPendingExports(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending exports for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending exports found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending exports on startup, processing...",
		"count", len(pending))

	exported := 0
	failed := 0
	for _, planID := range pending {
		if err := w.exportPlan(ctx, planID); err != nil {
			slog.ErrorContext(ctx, "Failed to export plan during startup",
				"plan_id", planID, "error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Startup export check completed",
		"total", len(pending),
		"exported", exported,
		"errors", failed)

	return nil
}

func (w *ExportWorker) exportPlan(ctx context.Context, planID uuid.UUID) error {
	stored, err := w.source.GetPlanByID(ctx, planID)
	if err != nil {
		return fmt.Errorf("get plan from storage: %w", err)
	}

	if !stored.Snapshot.Committed {
		slog.WarnContext(ctx, "Plan is not committed, skipping export", "plan_id", planID)
		return nil
	}
	if stored.Exported {
		slog.DebugContext(ctx, "Plan already exported, skipping", "plan_id", planID)
		return nil
	}

	if err := w.exporter.ExportPlan(ctx, stored.TenantID, stored.Snapshot); err != nil {
		return fmt.Errorf("export plan: %w", err)
	}

	if err := w.source.MarkExported(ctx, planID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark plan as exported",
			"plan_id", planID, "error", err)
		// Don't return error here - the export actually worked
	}

	slog.InfoContext(ctx, "Successfully exported plan",
		"plan_id", planID,
		"tenant_id", stored.TenantID,
		"accounts", len(stored.Snapshot.Accounts))

	return nil
}

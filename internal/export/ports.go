// Package export defines where committed plans are published for reporting.
package export

import (
	"context"

	"moneyplan/internal/core"
)

// PlanExporter appends a committed plan to an external report. Implementations
// must be idempotent per plan where possible; the worker may retry.
type PlanExporter interface {
	ExportPlan(ctx context.Context, tenantID string, snapshot core.PlanSnapshot) error
}

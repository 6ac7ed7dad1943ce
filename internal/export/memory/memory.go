// Package memory is an in-memory PlanExporter used in tests and as the
// default export backend.
package memory

import (
	"context"
	"sync"

	"moneyplan/internal/core"
)

// Row is one exported line: a single bucket of a committed plan.
type Row struct {
	TenantID    string
	PlanID      string
	PlanDate    string
	AccountID   string
	DisplayName string
	BucketName  string
	Category    string
	Allocated   string
}

type Exporter struct {
	mu   sync.Mutex
	rows []Row
}

func NewExporter() *Exporter {
	return &Exporter{}
}

// ExportPlan implements export.PlanExporter.
func (e *Exporter) ExportPlan(_ context.Context, tenantID string, snapshot core.PlanSnapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, acc := range snapshot.Accounts {
		for _, b := range acc.Buckets {
			e.rows = append(e.rows, Row{
				TenantID:    tenantID,
				PlanID:      snapshot.ID.String(),
				PlanDate:    snapshot.PlanDate.Format("2006-01-02"),
				AccountID:   acc.AccountID,
				DisplayName: acc.DisplayName,
				BucketName:  b.Name,
				Category:    b.Category,
				Allocated:   b.Allocated.String(),
			})
		}
	}
	return nil
}

// Rows returns a copy of everything exported so far.
func (e *Exporter) Rows() []Row {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Row, len(e.rows))
	copy(out, e.rows)
	return out
}

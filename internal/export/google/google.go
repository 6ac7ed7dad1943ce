// Package google exports committed plans to a Google Sheet, one row per
// bucket, using a service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"moneyplan/internal/core"
	"moneyplan/internal/export"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var _ export.PlanExporter = (*Exporter)(nil)

// Config carries the settings needed to talk to one spreadsheet.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

// New creates a Sheets exporter from explicit configuration.
func New(ctx context.Context, cfg Config) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Plans"
	}

	var credentialsJSON []byte
	switch {
	case cfg.CredentialsJSON != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Exporter{
		svc:           service,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// ExportPlan implements export.PlanExporter. Rows are appended below any
// existing content; re-exporting a plan appends duplicate rows, which the
// worker avoids by marking plans exported.
func (e *Exporter) ExportPlan(ctx context.Context, tenantID string, snapshot core.PlanSnapshot) error {
	var values [][]any
	for _, acc := range snapshot.Accounts {
		for _, b := range acc.Buckets {
			values = append(values, []any{
				tenantID,
				snapshot.ID.String(),
				snapshot.PlanDate.Format("2006-01-02"),
				acc.DisplayName,
				acc.AccountID,
				b.Name,
				b.Category,
				b.Allocated.String(),
			})
		}
	}
	if len(values) == 0 {
		return nil
	}

	rng := fmt.Sprintf("%s!A:H", e.sheetName)
	vr := &gsheet.ValueRange{Values: values}
	_, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append plan rows: %w", err)
	}

	slog.InfoContext(ctx, "Plan exported to Google Sheets",
		"plan_id", snapshot.ID,
		"tenant_id", tenantID,
		"rows", len(values),
		"sheet", e.sheetName)
	return nil
}

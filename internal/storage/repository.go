package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"moneyplan/internal/core"

	_ "modernc.org/sqlite"
)

var (
	ErrPlanNotFound    = errors.New("plan not found")
	ErrAccountNotFound = errors.New("account not found")
)

const timeLayout = time.RFC3339Nano

// StoredPlan is a plan snapshot together with the persistence-level fields
// the aggregate does not own: tenant scoping, share token, export state.
type StoredPlan struct {
	TenantID   string
	ShareToken string
	Exported   bool
	Snapshot   core.PlanSnapshot
}

// DirectoryAccount is one entry of the account directory.
type DirectoryAccount struct {
	ID          string
	DisplayName string
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SavePlan upserts a full plan snapshot in one transaction. Accounts and
// buckets are replaced wholesale; share token and export state survive
// updates.
func (r *SQLiteRepository) SavePlan(ctx context.Context, tenantID string, snap core.PlanSnapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var archivedAt sql.NullString
	if snap.Archived {
		archivedAt = sql.NullString{String: snap.ArchivedAt.UTC().Format(timeLayout), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO plans (id, tenant_id, initial_balance_cents, remaining_balance_cents,
			plan_date, created_at, notes, committed, archived, archived_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			initial_balance_cents = excluded.initial_balance_cents,
			remaining_balance_cents = excluded.remaining_balance_cents,
			plan_date = excluded.plan_date,
			notes = excluded.notes,
			committed = excluded.committed,
			archived = excluded.archived,
			archived_at = excluded.archived_at,
			updated_at = excluded.updated_at`,
		snap.ID.String(), tenantID,
		snap.InitialBalance.Cents(), snap.RemainingBalance.Cents(),
		snap.PlanDate.UTC().Format(timeLayout), snap.CreatedAt.UTC().Format(timeLayout),
		snap.Notes, boolToInt(snap.Committed), boolToInt(snap.Archived), archivedAt,
		time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM plan_buckets WHERE plan_id = ?`, snap.ID.String()); err != nil {
		return fmt.Errorf("clear plan buckets: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM plan_accounts WHERE plan_id = ?`, snap.ID.String()); err != nil {
		return fmt.Errorf("clear plan accounts: %w", err)
	}

	for pos, acc := range snap.Accounts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO plan_accounts (plan_id, position, account_id, display_name, is_checked, notes)
			VALUES (?, ?, ?, ?, ?, ?)`,
			snap.ID.String(), pos, acc.AccountID, acc.DisplayName, boolToInt(acc.IsChecked), acc.Notes)
		if err != nil {
			return fmt.Errorf("insert plan account %q: %w", acc.AccountID, err)
		}

		for bpos, b := range acc.Buckets {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO plan_buckets (plan_id, account_id, position, name, category, allocated_cents)
				VALUES (?, ?, ?, ?, ?, ?)`,
				snap.ID.String(), acc.AccountID, bpos, b.Name, b.Category, b.Allocated.Cents())
			if err != nil {
				return fmt.Errorf("insert bucket %q: %w", b.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.DebugContext(ctx, "Plan snapshot saved",
		"plan_id", snap.ID, "tenant_id", tenantID, "accounts", len(snap.Accounts))
	return nil
}

// GetPlan loads a plan scoped to its tenant.
func (r *SQLiteRepository) GetPlan(ctx context.Context, tenantID string, planID uuid.UUID) (*StoredPlan, error) {
	return r.loadPlan(ctx, `WHERE id = ? AND tenant_id = ?`, planID.String(), tenantID)
}

// GetPlanByID loads a plan without tenant scoping. Used by the export worker,
// which acts on events rather than user requests.
func (r *SQLiteRepository) GetPlanByID(ctx context.Context, planID uuid.UUID) (*StoredPlan, error) {
	return r.loadPlan(ctx, `WHERE id = ?`, planID.String())
}

// GetPlanByShareToken resolves a share link to its plan.
func (r *SQLiteRepository) GetPlanByShareToken(ctx context.Context, token string) (*StoredPlan, error) {
	return r.loadPlan(ctx, `WHERE share_token = ?`, token)
}

// FindDraftPlan returns the tenant's uncommitted, unarchived plan, or
// ErrPlanNotFound when there is none.
func (r *SQLiteRepository) FindDraftPlan(ctx context.Context, tenantID string) (*StoredPlan, error) {
	return r.loadPlan(ctx, `WHERE tenant_id = ? AND committed = 0 AND archived = 0 ORDER BY created_at DESC LIMIT 1`, tenantID)
}

func (r *SQLiteRepository) loadPlan(ctx context.Context, where string, args ...any) (*StoredPlan, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, initial_balance_cents, remaining_balance_cents,
			plan_date, created_at, notes, committed, archived, archived_at,
			share_token, exported
		FROM plans `+where, args...)

	stored, err := scanPlanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("load plan: %w", err)
	}

	if err := r.loadPlanAccounts(ctx, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlanRow(row rowScanner) (*StoredPlan, error) {
	var (
		id, planDate, createdAt   string
		initialCents, remainCents int64
		committed, archived       int
		exported                  int
		archivedAt, shareToken    sql.NullString
		stored                    StoredPlan
	)
	err := row.Scan(&id, &stored.TenantID, &initialCents, &remainCents,
		&planDate, &createdAt, &stored.Snapshot.Notes, &committed, &archived,
		&archivedAt, &shareToken, &exported)
	if err != nil {
		return nil, err
	}

	planID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse plan id %q: %w", id, err)
	}
	stored.Snapshot.ID = planID
	stored.Snapshot.InitialBalance = core.MoneyFromCents(initialCents)
	stored.Snapshot.RemainingBalance = core.MoneyFromCents(remainCents)
	stored.Snapshot.Committed = committed != 0
	stored.Snapshot.Archived = archived != 0
	stored.Exported = exported != 0
	stored.ShareToken = shareToken.String

	if stored.Snapshot.PlanDate, err = time.Parse(timeLayout, planDate); err != nil {
		return nil, fmt.Errorf("parse plan date %q: %w", planDate, err)
	}
	if stored.Snapshot.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created at %q: %w", createdAt, err)
	}
	if archivedAt.Valid {
		if stored.Snapshot.ArchivedAt, err = time.Parse(timeLayout, archivedAt.String); err != nil {
			return nil, fmt.Errorf("parse archived at %q: %w", archivedAt.String, err)
		}
	}
	return &stored, nil
}

func (r *SQLiteRepository) loadPlanAccounts(ctx context.Context, stored *StoredPlan) error {
	planID := stored.Snapshot.ID.String()

	rows, err := r.db.QueryContext(ctx, `
		SELECT account_id, display_name, is_checked, notes
		FROM plan_accounts WHERE plan_id = ? ORDER BY position`, planID)
	if err != nil {
		return fmt.Errorf("load plan accounts: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int)
	for rows.Next() {
		var (
			acc     core.AccountSnapshot
			checked int
		)
		if err := rows.Scan(&acc.AccountID, &acc.DisplayName, &checked, &acc.Notes); err != nil {
			return fmt.Errorf("scan plan account: %w", err)
		}
		acc.IsChecked = checked != 0
		index[acc.AccountID] = len(stored.Snapshot.Accounts)
		stored.Snapshot.Accounts = append(stored.Snapshot.Accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate plan accounts: %w", err)
	}

	bucketRows, err := r.db.QueryContext(ctx, `
		SELECT account_id, name, category, allocated_cents
		FROM plan_buckets WHERE plan_id = ? ORDER BY account_id, position`, planID)
	if err != nil {
		return fmt.Errorf("load plan buckets: %w", err)
	}
	defer bucketRows.Close()

	for bucketRows.Next() {
		var (
			accountID, name, category string
			cents                     int64
		)
		if err := bucketRows.Scan(&accountID, &name, &category, &cents); err != nil {
			return fmt.Errorf("scan bucket: %w", err)
		}
		i, ok := index[accountID]
		if !ok {
			return fmt.Errorf("bucket %q references unknown account %q", name, accountID)
		}
		stored.Snapshot.Accounts[i].Buckets = append(stored.Snapshot.Accounts[i].Buckets, core.BucketSnapshot{
			Name:      name,
			Category:  category,
			Allocated: core.MoneyFromCents(cents),
		})
	}
	if err := bucketRows.Err(); err != nil {
		return fmt.Errorf("iterate buckets: %w", err)
	}
	return nil
}

// ListPlans returns the tenant's plans, newest first. Archived plans are
// included only when requested.
func (r *SQLiteRepository) ListPlans(ctx context.Context, tenantID string, includeArchived bool, limit, offset int) ([]StoredPlan, error) {
	query := `
		SELECT id, tenant_id, initial_balance_cents, remaining_balance_cents,
			plan_date, created_at, notes, committed, archived, archived_at,
			share_token, exported
		FROM plans WHERE tenant_id = ?`
	if !includeArchived {
		query += ` AND archived = 0`
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []StoredPlan
	for rows.Next() {
		stored, err := scanPlanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, *stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}

	for i := range plans {
		if err := r.loadPlanAccounts(ctx, &plans[i]); err != nil {
			return nil, err
		}
	}
	return plans, nil
}

// SetShareToken attaches a share token to a tenant's plan.
func (r *SQLiteRepository) SetShareToken(ctx context.Context, tenantID string, planID uuid.UUID, token string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE plans SET share_token = ? WHERE id = ? AND tenant_id = ?`,
		token, planID.String(), tenantID)
	if err != nil {
		return fmt.Errorf("set share token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set share token rows affected: %w", err)
	}
	if affected == 0 {
		return ErrPlanNotFound
	}
	return nil
}

// MarkExported records that a committed plan has been exported.
func (r *SQLiteRepository) MarkExported(ctx context.Context, planID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE plans SET exported = 1 WHERE id = ?`, planID.String()); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	slog.InfoContext(ctx, "Plan marked as exported", "plan_id", planID)
	return nil
}

// ListPendingExports returns committed plans that have not been exported yet.
// Backstop for the worker in case event messages are lost.
func (r *SQLiteRepository) ListPendingExports(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM plans WHERE committed = 1 AND exported = 0
		ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending exports: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan pending export: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse plan id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending exports: %w", err)
	}
	return ids, nil
}

// UpsertAccount adds or renames an entry in the account directory.
func (r *SQLiteRepository) UpsertAccount(ctx context.Context, id, displayName string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, display_name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name`,
		id, displayName, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

// GetAccountName resolves an account id to its display name.
func (r *SQLiteRepository) GetAccountName(ctx context.Context, id string) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT display_name FROM accounts WHERE id = ?`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrAccountNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get account name: %w", err)
	}
	return name, nil
}

// ListAccounts returns the whole account directory.
func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]DirectoryAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, display_name FROM accounts ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []DirectoryAccount
	for rows.Next() {
		var a DirectoryAccount
		if err := rows.Scan(&a.ID, &a.DisplayName); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"moneyplan/internal/accounts"
	"moneyplan/internal/amqp"
	"moneyplan/internal/core"
	"moneyplan/internal/storage"
)

var (
	// ErrDraftPlanExists enforces the one-uncommitted-plan-per-tenant rule.
	ErrDraftPlanExists = errors.New("tenant already has an uncommitted plan")

	ErrPlanNotFound = errors.New("plan not found")

	// ErrPlanNotCommitted is returned when sharing a plan that has not been
	// committed yet.
	ErrPlanNotCommitted = errors.New("plan is not committed")
)

// PlanStore is the persistence surface the service needs.
type PlanStore interface {
	SavePlan(ctx context.Context, tenantID string, snap core.PlanSnapshot) error
	GetPlan(ctx context.Context, tenantID string, planID uuid.UUID) (*storage.StoredPlan, error)
	GetPlanByShareToken(ctx context.Context, token string) (*storage.StoredPlan, error)
	FindDraftPlan(ctx context.Context, tenantID string) (*storage.StoredPlan, error)
	ListPlans(ctx context.Context, tenantID string, includeArchived bool, limit, offset int) ([]storage.StoredPlan, error)
	SetShareToken(ctx context.Context, tenantID string, planID uuid.UUID, token string) error
}

// EventPublisher announces plan lifecycle transitions.
type EventPublisher interface {
	PublishPlanEvent(ctx context.Context, planID, tenantID, event string) error
}

// PlanService is the application layer around the MoneyPlan aggregate. It
// validates account identifiers, enforces cross-aggregate rules, persists
// snapshots and publishes lifecycle events. All domain decisions stay inside
// the aggregate.
type PlanService struct {
	store     PlanStore
	lookup    accounts.Lookup
	publisher EventPublisher
}

// NewPlanService wires the service. publisher may be nil; lifecycle events
// are then skipped.
func NewPlanService(store PlanStore, lookup accounts.Lookup, publisher EventPublisher) *PlanService {
	return &PlanService{
		store:     store,
		lookup:    lookup,
		publisher: publisher,
	}
}

// AllocationInput is one account with its buckets in a StartPlan request.
// Display names are resolved from the account directory, never supplied by
// the caller.
type AllocationInput struct {
	AccountID string
	Buckets   []core.BucketConfig
	Notes     string
}

// StartPlanInput carries everything needed to start a fresh plan.
type StartPlanInput struct {
	InitialBalance     core.Money
	PlanDate           time.Time
	Notes              string
	DefaultAllocations []AllocationInput
}

// StartPlan creates a plan for the tenant. A tenant can hold at most one
// uncommitted plan at a time; that rule lives here, not in the aggregate.
func (s *PlanService) StartPlan(ctx context.Context, tenantID string, input StartPlanInput) (core.PlanSnapshot, error) {
	if err := s.ensureNoDraft(ctx, tenantID); err != nil {
		return core.PlanSnapshot{}, err
	}

	allocations := make([]core.AccountAllocationConfig, 0, len(input.DefaultAllocations))
	for _, alloc := range input.DefaultAllocations {
		displayName, err := s.lookup.Lookup(ctx, alloc.AccountID)
		if err != nil {
			return core.PlanSnapshot{}, err
		}
		allocations = append(allocations, core.AccountAllocationConfig{
			AccountID:   alloc.AccountID,
			DisplayName: displayName,
			Buckets:     alloc.Buckets,
			Notes:       alloc.Notes,
		})
	}

	plan, err := core.StartPlan(core.StartPlanParams{
		InitialBalance:     input.InitialBalance,
		PlanDate:           input.PlanDate,
		CreatedAt:          time.Now().UTC(),
		DefaultAllocations: allocations,
		Notes:              input.Notes,
	})
	if err != nil {
		return core.PlanSnapshot{}, err
	}

	snap := plan.Snapshot()
	if err := s.store.SavePlan(ctx, tenantID, snap); err != nil {
		return core.PlanSnapshot{}, fmt.Errorf("save plan: %w", err)
	}

	slog.InfoContext(ctx, "Plan started",
		"plan_id", snap.ID, "tenant_id", tenantID, "initial_balance", snap.InitialBalance)
	return snap, nil
}

// CopyStructure starts a new plan mirroring the source plan's account and
// bucket structure with zeroed amounts.
func (s *PlanService) CopyStructure(ctx context.Context, tenantID string, sourcePlanID uuid.UUID, initialBalance core.Money, planDate time.Time, notes string) (core.PlanSnapshot, error) {
	if err := s.ensureNoDraft(ctx, tenantID); err != nil {
		return core.PlanSnapshot{}, err
	}

	source, err := s.loadPlan(ctx, tenantID, sourcePlanID)
	if err != nil {
		return core.PlanSnapshot{}, err
	}

	plan, err := core.CopyStructure(source, core.CopyStructureParams{
		InitialBalance: initialBalance,
		PlanDate:       planDate,
		CreatedAt:      time.Now().UTC(),
		Notes:          notes,
	})
	if err != nil {
		return core.PlanSnapshot{}, err
	}

	snap := plan.Snapshot()
	if err := s.store.SavePlan(ctx, tenantID, snap); err != nil {
		return core.PlanSnapshot{}, fmt.Errorf("save plan: %w", err)
	}

	slog.InfoContext(ctx, "Plan structure copied",
		"plan_id", snap.ID, "source_plan_id", sourcePlanID, "tenant_id", tenantID)
	return snap, nil
}

// AddAccount validates the account against the directory, then adds it to
// the plan with the resolved display name.
func (s *PlanService) AddAccount(ctx context.Context, tenantID string, planID uuid.UUID, accountID string, buckets []core.BucketConfig, notes string) (core.PlanSnapshot, error) {
	displayName, err := s.lookup.Lookup(ctx, accountID)
	if err != nil {
		return core.PlanSnapshot{}, err
	}
	return s.apply(ctx, tenantID, planID, func(plan *core.MoneyPlan) error {
		return plan.AddAccount(accountID, displayName, buckets, notes)
	})
}

func (s *PlanService) RemoveAccount(ctx context.Context, tenantID string, planID uuid.UUID, accountID string) (core.PlanSnapshot, error) {
	return s.apply(ctx, tenantID, planID, func(plan *core.MoneyPlan) error {
		return plan.RemoveAccount(accountID)
	})
}

func (s *PlanService) AllocateFunds(ctx context.Context, tenantID string, planID uuid.UUID, accountID, bucketName string, amount core.Money) (core.PlanSnapshot, error) {
	return s.apply(ctx, tenantID, planID, func(plan *core.MoneyPlan) error {
		return plan.AllocateFunds(accountID, bucketName, amount)
	})
}

func (s *PlanService) AdjustPlanBalance(ctx context.Context, tenantID string, planID uuid.UUID, delta core.Money) (core.PlanSnapshot, error) {
	return s.apply(ctx, tenantID, planID, func(plan *core.MoneyPlan) error {
		return plan.AdjustPlanBalance(delta)
	})
}

func (s *PlanService) ChangeAccountConfiguration(ctx context.Context, tenantID string, planID uuid.UUID, accountID string, buckets []core.BucketConfig) (core.PlanSnapshot, error) {
	return s.apply(ctx, tenantID, planID, func(plan *core.MoneyPlan) error {
		return plan.ChangeAccountConfiguration(accountID, buckets)
	})
}

func (s *PlanService) SetAccountCheckedState(ctx context.Context, tenantID string, planID uuid.UUID, accountID string, isChecked bool) (core.PlanSnapshot, error) {
	return s.apply(ctx, tenantID, planID, func(plan *core.MoneyPlan) error {
		return plan.SetAccountCheckedState(accountID, isChecked)
	})
}

func (s *PlanService) EditNotes(ctx context.Context, tenantID string, planID uuid.UUID, notes string) (core.PlanSnapshot, error) {
	return s.apply(ctx, tenantID, planID, func(plan *core.MoneyPlan) error {
		return plan.EditNotes(notes)
	})
}

func (s *PlanService) EditAccountNotes(ctx context.Context, tenantID string, planID uuid.UUID, accountID, notes string) (core.PlanSnapshot, error) {
	return s.apply(ctx, tenantID, planID, func(plan *core.MoneyPlan) error {
		return plan.EditAccountNotes(accountID, notes)
	})
}

// Commit finalizes the plan and publishes a committed event. Publishing is
// best-effort: the local save already succeeded and the worker has a
// backstop for missed events.
func (s *PlanService) Commit(ctx context.Context, tenantID string, planID uuid.UUID) (core.PlanSnapshot, error) {
	snap, err := s.apply(ctx, tenantID, planID, func(plan *core.MoneyPlan) error {
		return plan.Commit()
	})
	if err != nil {
		return core.PlanSnapshot{}, err
	}
	s.publishEvent(ctx, tenantID, planID, amqp.EventPlanCommitted)
	return snap, nil
}

// Archive freezes the plan and publishes an archived event.
func (s *PlanService) Archive(ctx context.Context, tenantID string, planID uuid.UUID) (core.PlanSnapshot, error) {
	snap, err := s.apply(ctx, tenantID, planID, func(plan *core.MoneyPlan) error {
		return plan.Archive(time.Now().UTC())
	})
	if err != nil {
		return core.PlanSnapshot{}, err
	}
	s.publishEvent(ctx, tenantID, planID, amqp.EventPlanArchived)
	return snap, nil
}

// SharePlan attaches a share token to a committed plan, generating one if
// the plan has none yet.
func (s *PlanService) SharePlan(ctx context.Context, tenantID string, planID uuid.UUID) (string, error) {
	stored, err := s.loadStored(ctx, tenantID, planID)
	if err != nil {
		return "", err
	}
	if !stored.Snapshot.Committed {
		return "", ErrPlanNotCommitted
	}
	if stored.ShareToken != "" {
		return stored.ShareToken, nil
	}

	token := uuid.NewString()
	if err := s.store.SetShareToken(ctx, tenantID, planID, token); err != nil {
		if errors.Is(err, storage.ErrPlanNotFound) {
			return "", ErrPlanNotFound
		}
		return "", fmt.Errorf("set share token: %w", err)
	}

	slog.InfoContext(ctx, "Plan shared", "plan_id", planID, "tenant_id", tenantID)
	return token, nil
}

// GetSharedPlan resolves a share token to a read-only snapshot.
func (s *PlanService) GetSharedPlan(ctx context.Context, token string) (core.PlanSnapshot, error) {
	stored, err := s.store.GetPlanByShareToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrPlanNotFound) {
			return core.PlanSnapshot{}, ErrPlanNotFound
		}
		return core.PlanSnapshot{}, fmt.Errorf("get shared plan: %w", err)
	}
	return stored.Snapshot, nil
}

// GetPlan returns a tenant's plan snapshot.
func (s *PlanService) GetPlan(ctx context.Context, tenantID string, planID uuid.UUID) (core.PlanSnapshot, error) {
	stored, err := s.loadStored(ctx, tenantID, planID)
	if err != nil {
		return core.PlanSnapshot{}, err
	}
	return stored.Snapshot, nil
}

// ListPlans returns the tenant's plan snapshots, newest first.
func (s *PlanService) ListPlans(ctx context.Context, tenantID string, includeArchived bool, limit, offset int) ([]core.PlanSnapshot, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	stored, err := s.store.ListPlans(ctx, tenantID, includeArchived, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	snapshots := make([]core.PlanSnapshot, len(stored))
	for i := range stored {
		snapshots[i] = stored[i].Snapshot
	}
	return snapshots, nil
}

// apply loads the aggregate, runs exactly one command against it and saves
// the resulting snapshot.
func (s *PlanService) apply(ctx context.Context, tenantID string, planID uuid.UUID, command func(*core.MoneyPlan) error) (core.PlanSnapshot, error) {
	plan, err := s.loadPlan(ctx, tenantID, planID)
	if err != nil {
		return core.PlanSnapshot{}, err
	}
	if err := command(plan); err != nil {
		return core.PlanSnapshot{}, err
	}
	snap := plan.Snapshot()
	if err := s.store.SavePlan(ctx, tenantID, snap); err != nil {
		return core.PlanSnapshot{}, fmt.Errorf("save plan: %w", err)
	}
	return snap, nil
}

func (s *PlanService) loadPlan(ctx context.Context, tenantID string, planID uuid.UUID) (*core.MoneyPlan, error) {
	stored, err := s.loadStored(ctx, tenantID, planID)
	if err != nil {
		return nil, err
	}
	return core.PlanFromSnapshot(stored.Snapshot), nil
}

func (s *PlanService) loadStored(ctx context.Context, tenantID string, planID uuid.UUID) (*storage.StoredPlan, error) {
	stored, err := s.store.GetPlan(ctx, tenantID, planID)
	if err != nil {
		if errors.Is(err, storage.ErrPlanNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return stored, nil
}

func (s *PlanService) ensureNoDraft(ctx context.Context, tenantID string) error {
	_, err := s.store.FindDraftPlan(ctx, tenantID)
	if err == nil {
		return ErrDraftPlanExists
	}
	if errors.Is(err, storage.ErrPlanNotFound) {
		return nil
	}
	return fmt.Errorf("find draft plan: %w", err)
}

func (s *PlanService) publishEvent(ctx context.Context, tenantID string, planID uuid.UUID, event string) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping plan event",
			"plan_id", planID, "event", event)
		return
	}
	if err := s.publisher.PublishPlanEvent(ctx, planID.String(), tenantID, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish plan event",
			"plan_id", planID, "event", event, "error", err)
		// Don't fail the request - the plan state is already saved
	}
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"moneyplan/internal/accounts"
	"moneyplan/internal/core"
	"moneyplan/internal/storage"
)

type fakeStore struct {
	plans  map[uuid.UUID]*storage.StoredPlan
	tokens map[string]uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		plans:  make(map[uuid.UUID]*storage.StoredPlan),
		tokens: make(map[string]uuid.UUID),
	}
}

func (f *fakeStore) SavePlan(_ context.Context, tenantID string, snap core.PlanSnapshot) error {
	existing, ok := f.plans[snap.ID]
	stored := &storage.StoredPlan{TenantID: tenantID, Snapshot: snap}
	if ok {
		stored.ShareToken = existing.ShareToken
		stored.Exported = existing.Exported
	}
	f.plans[snap.ID] = stored
	return nil
}

func (f *fakeStore) GetPlan(_ context.Context, tenantID string, planID uuid.UUID) (*storage.StoredPlan, error) {
	stored, ok := f.plans[planID]
	if !ok || stored.TenantID != tenantID {
		return nil, storage.ErrPlanNotFound
	}
	return stored, nil
}

func (f *fakeStore) GetPlanByShareToken(_ context.Context, token string) (*storage.StoredPlan, error) {
	planID, ok := f.tokens[token]
	if !ok {
		return nil, storage.ErrPlanNotFound
	}
	return f.plans[planID], nil
}

func (f *fakeStore) FindDraftPlan(_ context.Context, tenantID string) (*storage.StoredPlan, error) {
	for _, stored := range f.plans {
		if stored.TenantID == tenantID && !stored.Snapshot.Committed && !stored.Snapshot.Archived {
			return stored, nil
		}
	}
	return nil, storage.ErrPlanNotFound
}

func (f *fakeStore) ListPlans(_ context.Context, tenantID string, includeArchived bool, limit, offset int) ([]storage.StoredPlan, error) {
	var out []storage.StoredPlan
	for _, stored := range f.plans {
		if stored.TenantID != tenantID {
			continue
		}
		if stored.Snapshot.Archived && !includeArchived {
			continue
		}
		out = append(out, *stored)
	}
	return out, nil
}

func (f *fakeStore) SetShareToken(_ context.Context, tenantID string, planID uuid.UUID, token string) error {
	stored, ok := f.plans[planID]
	if !ok || stored.TenantID != tenantID {
		return storage.ErrPlanNotFound
	}
	stored.ShareToken = token
	f.tokens[token] = planID
	return nil
}

type fakeLookup struct {
	names map[string]string
}

func (f *fakeLookup) Lookup(_ context.Context, accountID string) (string, error) {
	name, ok := f.names[accountID]
	if !ok {
		return "", accounts.ErrAccountNotFound
	}
	return name, nil
}

type fakePublisher struct {
	events []string
	err    error
}

func (f *fakePublisher) PublishPlanEvent(_ context.Context, _, _, event string) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func newTestService() (*PlanService, *fakeStore, *fakePublisher) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	lookup := &fakeLookup{names: map[string]string{
		"acc-checking": "Checking",
		"acc-savings":  "Savings",
	}}
	return NewPlanService(store, lookup, publisher), store, publisher
}

func startTestPlan(t *testing.T, svc *PlanService, tenantID string) core.PlanSnapshot {
	t.Helper()
	snap, err := svc.StartPlan(context.Background(), tenantID, StartPlanInput{
		InitialBalance: core.MustMoney("1000"),
		PlanDate:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		DefaultAllocations: []AllocationInput{
			{AccountID: "acc-checking", Buckets: []core.BucketConfig{
				{Name: "Bills", Category: "fixed", Allocated: core.MustMoney("600")},
			}},
			{AccountID: "acc-savings", Buckets: []core.BucketConfig{
				{Name: "Emergency", Category: "savings", Allocated: core.MustMoney("400")},
			}},
		},
	})
	if err != nil {
		t.Fatalf("StartPlan: %v", err)
	}
	return snap
}

func TestStartPlanResolvesDisplayNames(t *testing.T) {
	svc, store, _ := newTestService()
	snap := startTestPlan(t, svc, "tenant1")

	if len(snap.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(snap.Accounts))
	}
	if snap.Accounts[0].DisplayName != "Checking" || snap.Accounts[1].DisplayName != "Savings" {
		t.Errorf("display names not resolved: %q, %q",
			snap.Accounts[0].DisplayName, snap.Accounts[1].DisplayName)
	}
	if _, ok := store.plans[snap.ID]; !ok {
		t.Error("plan was not persisted")
	}
}

func TestStartPlanRejectsUnknownAccount(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.StartPlan(context.Background(), "tenant1", StartPlanInput{
		InitialBalance: core.MustMoney("1000"),
		PlanDate:       time.Now(),
		DefaultAllocations: []AllocationInput{
			{AccountID: "acc-missing"},
		},
	})
	if !errors.Is(err, accounts.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestStartPlanRejectsSecondDraft(t *testing.T) {
	svc, _, _ := newTestService()
	startTestPlan(t, svc, "tenant1")

	_, err := svc.StartPlan(context.Background(), "tenant1", StartPlanInput{
		InitialBalance: core.MustMoney("500"),
		PlanDate:       time.Now(),
	})
	if !errors.Is(err, ErrDraftPlanExists) {
		t.Errorf("expected ErrDraftPlanExists, got %v", err)
	}

	// A different tenant is unaffected.
	if _, err := svc.StartPlan(context.Background(), "tenant2", StartPlanInput{
		InitialBalance: core.MustMoney("500"),
		PlanDate:       time.Now(),
	}); err != nil {
		t.Errorf("second tenant should be able to start a plan: %v", err)
	}
}

func TestCommitPublishesEvent(t *testing.T) {
	svc, _, publisher := newTestService()
	snap := startTestPlan(t, svc, "tenant1")

	committed, err := svc.Commit(context.Background(), "tenant1", snap.ID)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !committed.Committed {
		t.Error("snapshot should be committed")
	}
	if len(publisher.events) != 1 || publisher.events[0] != "plan.committed" {
		t.Errorf("expected one plan.committed event, got %v", publisher.events)
	}
}

func TestCommitSurvivesPublishFailure(t *testing.T) {
	svc, store, publisher := newTestService()
	publisher.err = errors.New("broker down")
	snap := startTestPlan(t, svc, "tenant1")

	if _, err := svc.Commit(context.Background(), "tenant1", snap.ID); err != nil {
		t.Fatalf("Commit should not fail on publish error: %v", err)
	}
	if !store.plans[snap.ID].Snapshot.Committed {
		t.Error("plan should be committed locally despite publish failure")
	}
}

func TestArchivePublishesEvent(t *testing.T) {
	svc, _, publisher := newTestService()
	snap := startTestPlan(t, svc, "tenant1")

	if _, err := svc.Commit(context.Background(), "tenant1", snap.ID); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	archived, err := svc.Archive(context.Background(), "tenant1", snap.ID)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if !archived.Archived || archived.ArchivedAt.IsZero() {
		t.Error("snapshot should be archived with a timestamp")
	}
	if len(publisher.events) != 2 || publisher.events[1] != "plan.archived" {
		t.Errorf("expected plan.archived event, got %v", publisher.events)
	}
}

func TestSharePlanRequiresCommit(t *testing.T) {
	svc, _, _ := newTestService()
	snap := startTestPlan(t, svc, "tenant1")

	if _, err := svc.SharePlan(context.Background(), "tenant1", snap.ID); !errors.Is(err, ErrPlanNotCommitted) {
		t.Errorf("expected ErrPlanNotCommitted, got %v", err)
	}

	if _, err := svc.Commit(context.Background(), "tenant1", snap.ID); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	token, err := svc.SharePlan(context.Background(), "tenant1", snap.ID)
	if err != nil {
		t.Fatalf("SharePlan: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty share token")
	}

	// Sharing again returns the same token.
	again, err := svc.SharePlan(context.Background(), "tenant1", snap.ID)
	if err != nil {
		t.Fatalf("SharePlan again: %v", err)
	}
	if again != token {
		t.Errorf("expected stable token %q, got %q", token, again)
	}

	shared, err := svc.GetSharedPlan(context.Background(), token)
	if err != nil {
		t.Fatalf("GetSharedPlan: %v", err)
	}
	if shared.ID != snap.ID {
		t.Errorf("shared plan mismatch: %s != %s", shared.ID, snap.ID)
	}
}

func TestAddAccountResolvesName(t *testing.T) {
	svc, _, _ := newTestService()
	snap, err := svc.StartPlan(context.Background(), "tenant1", StartPlanInput{
		InitialBalance: core.MustMoney("1000"),
		PlanDate:       time.Now(),
		DefaultAllocations: []AllocationInput{
			{AccountID: "acc-checking", Buckets: []core.BucketConfig{
				{Name: "Bills", Allocated: core.MustMoney("600")},
			}},
		},
	})
	if err != nil {
		t.Fatalf("StartPlan: %v", err)
	}

	updated, err := svc.AddAccount(context.Background(), "tenant1", snap.ID, "acc-savings",
		[]core.BucketConfig{{Name: "Emergency", Allocated: core.MustMoney("400")}}, "")
	if err != nil {
		t.Fatalf("AddAccount: %v", err)
	}
	if len(updated.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(updated.Accounts))
	}
	if updated.Accounts[1].DisplayName != "Savings" {
		t.Errorf("expected resolved display name, got %q", updated.Accounts[1].DisplayName)
	}

	_, err = svc.AddAccount(context.Background(), "tenant1", snap.ID, "acc-unknown", nil, "")
	if !errors.Is(err, accounts.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestCommandsOnMissingPlan(t *testing.T) {
	svc, _, _ := newTestService()
	missing := uuid.New()

	if _, err := svc.AllocateFunds(context.Background(), "tenant1", missing, "acc", "Bills", core.MustMoney("10")); !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("AllocateFunds: expected ErrPlanNotFound, got %v", err)
	}
	if _, err := svc.Commit(context.Background(), "tenant1", missing); !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("Commit: expected ErrPlanNotFound, got %v", err)
	}
}

func TestTenantIsolation(t *testing.T) {
	svc, _, _ := newTestService()
	snap := startTestPlan(t, svc, "tenant1")

	if _, err := svc.GetPlan(context.Background(), "tenant2", snap.ID); !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("expected ErrPlanNotFound for other tenant, got %v", err)
	}
}

func TestCopyStructureZeroesAllocations(t *testing.T) {
	svc, _, _ := newTestService()
	snap := startTestPlan(t, svc, "tenant1")
	if _, err := svc.Commit(context.Background(), "tenant1", snap.ID); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	copied, err := svc.CopyStructure(context.Background(), "tenant1", snap.ID,
		core.MustMoney("2000"), time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), "")
	if err != nil {
		t.Fatalf("CopyStructure: %v", err)
	}
	if copied.ID == snap.ID {
		t.Error("copied plan should have a fresh id")
	}
	if len(copied.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(copied.Accounts))
	}
	for _, acc := range copied.Accounts {
		for _, b := range acc.Buckets {
			if !b.Allocated.IsZero() {
				t.Errorf("bucket %s should start at zero, got %s", b.Name, b.Allocated)
			}
		}
	}
	if !copied.RemainingBalance.Equal(core.MustMoney("2000")) {
		t.Errorf("remaining should equal new initial balance, got %s", copied.RemainingBalance)
	}
}

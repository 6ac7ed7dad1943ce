package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newDraftPlan(t *testing.T, initial string) *MoneyPlan {
	t.Helper()
	p, err := StartPlan(StartPlanParams{
		InitialBalance: MustMoney(initial),
		PlanDate:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:      time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("StartPlan: %v", err)
	}
	return p
}

// newCommittedPlan builds the fully-allocated single-account plan used by the
// post-commit tests.
func newCommittedPlan(t *testing.T) *MoneyPlan {
	t.Helper()
	p := newDraftPlan(t, "1000")
	if err := p.AddAccount("acc1", "Checking", []BucketConfig{
		{Name: "Default", Category: "default", Allocated: MustMoney("1000")},
	}, ""); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return p
}

// checkBalanceInvariant asserts remaining == initial - total allocated.
func checkBalanceInvariant(t *testing.T, p *MoneyPlan) {
	t.Helper()
	want := p.InitialBalance().Sub(p.TotalAllocated())
	if !p.RemainingBalance().Equal(want) {
		t.Fatalf("balance invariant broken: remaining %s, initial %s, allocated %s",
			p.RemainingBalance(), p.InitialBalance(), p.TotalAllocated())
	}
}

func TestStartPlanWithDefaultAllocations(t *testing.T) {
	p, err := StartPlan(StartPlanParams{
		InitialBalance: MustMoney("1000"),
		PlanDate:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:      time.Now(),
		DefaultAllocations: []AccountAllocationConfig{
			{
				AccountID:   "acc1",
				DisplayName: "Checking",
				Buckets: []BucketConfig{
					{Name: "Rent", Category: "housing", Allocated: MustMoney("600")},
				},
			},
			{AccountID: "acc2", DisplayName: "Savings"},
		},
		Notes: "august",
	})
	if err != nil {
		t.Fatalf("StartPlan: %v", err)
	}

	if got := p.RemainingBalance().String(); got != "400.00" {
		t.Errorf("remaining: expected 400.00, got %s", got)
	}
	if p.Notes() != "august" {
		t.Errorf("notes not set")
	}
	if p.Status() != StatusDraft {
		t.Errorf("expected draft status, got %s", p.Status())
	}

	// acc2 had no buckets configured, so it gets the synthesized default.
	account, display, ok := p.Account("acc2")
	if !ok {
		t.Fatal("acc2 missing")
	}
	if display != "Savings" {
		t.Errorf("display name: got %q", display)
	}
	b, ok := account.Bucket(DefaultBucketName)
	if !ok || b.Category != DefaultBucketCategory || !b.Allocated.IsZero() {
		t.Errorf("expected zero default bucket, got %+v", b)
	}
	checkBalanceInvariant(t, p)
}

func TestStartPlanRejectsDuplicateAccounts(t *testing.T) {
	_, err := StartPlan(StartPlanParams{
		InitialBalance: MustMoney("100"),
		DefaultAllocations: []AccountAllocationConfig{
			{AccountID: "acc1", DisplayName: "A"},
			{AccountID: "acc1", DisplayName: "B"},
		},
	})
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
}

func TestPartialAllocationCommitFails(t *testing.T) {
	// Scenario: 700 of 1000 allocated leaves 300 remaining and an
	// uncommittable plan.
	p := newDraftPlan(t, "1000")
	err := p.AddAccount("acc1", "Checking", []BucketConfig{
		{Name: "Savings", Category: "savings", Allocated: MustMoney("400")},
		{Name: "Bills", Category: "expenses", Allocated: MustMoney("300")},
	}, "")
	if err != nil {
		t.Fatalf("AddAccount: %v", err)
	}

	if got := p.RemainingBalance().String(); got != "300.00" {
		t.Fatalf("remaining: expected 300.00, got %s", got)
	}
	checkBalanceInvariant(t, p)

	err = p.Commit()
	if !errors.Is(err, ErrInvalidPlanState) {
		t.Fatalf("expected ErrInvalidPlanState, got %v", err)
	}
	if !strings.Contains(err.Error(), "must equal initial balance") {
		t.Errorf("error should name the balance mismatch, got %q", err)
	}
	if p.Committed() {
		t.Error("failed commit must not mark the plan committed")
	}
}

func TestFullAllocationCommitSucceeds(t *testing.T) {
	p := newCommittedPlan(t)

	if !p.Committed() {
		t.Fatal("plan should be committed")
	}
	if !p.RemainingBalance().IsZero() {
		t.Errorf("remaining: expected 0.00, got %s", p.RemainingBalance())
	}
	if p.Status() != StatusCommitted {
		t.Errorf("expected committed status, got %s", p.Status())
	}
}

func TestCommittedPlanRejectsStructuralCommands(t *testing.T) {
	p := newCommittedPlan(t)

	structural := map[string]func() error{
		"AddAccount":    func() error { return p.AddAccount("acc2", "Other", nil, "") },
		"RemoveAccount": func() error { return p.RemoveAccount("acc1") },
		"AllocateFunds": func() error { return p.AllocateFunds("acc1", "Default", MustMoney("1")) },
		"AdjustPlanBalance": func() error {
			return p.AdjustPlanBalance(MustMoney("10"))
		},
		"ChangeAccountConfiguration": func() error {
			return p.ChangeAccountConfiguration("acc1", []BucketConfig{{Name: "X"}})
		},
		"Commit": p.Commit,
	}
	for name, cmd := range structural {
		t.Run(name, func(t *testing.T) {
			if err := cmd(); !errors.Is(err, ErrPlanAlreadyCommitted) {
				t.Fatalf("expected ErrPlanAlreadyCommitted, got %v", err)
			}
		})
	}

	// Checked-state toggling and notes stay legal after commit.
	if err := p.SetAccountCheckedState("acc1", true); err != nil {
		t.Fatalf("SetAccountCheckedState after commit: %v", err)
	}
	if err := p.EditNotes("reviewed"); err != nil {
		t.Fatalf("EditNotes after commit: %v", err)
	}
	if err := p.EditAccountNotes("acc1", "done"); err != nil {
		t.Fatalf("EditAccountNotes after commit: %v", err)
	}
}

func TestArchivedPlanRejectsAllMutation(t *testing.T) {
	p := newCommittedPlan(t)
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if err := p.Archive(now); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if p.Status() != StatusArchived || !p.ArchivedAt().Equal(now) {
		t.Fatalf("archive state not recorded")
	}

	commands := map[string]func() error{
		"EditNotes":        func() error { return p.EditNotes("x") },
		"EditAccountNotes": func() error { return p.EditAccountNotes("acc1", "x") },
		"SetAccountCheckedState": func() error {
			return p.SetAccountCheckedState("acc1", true)
		},
		"AddAccount": func() error { return p.AddAccount("acc2", "Other", nil, "") },
		"Commit":     p.Commit,
		"Archive":    func() error { return p.Archive(now) },
	}
	for name, cmd := range commands {
		t.Run(name, func(t *testing.T) {
			if err := cmd(); !errors.Is(err, ErrPlanArchived) {
				t.Fatalf("expected ErrPlanArchived, got %v", err)
			}
		})
	}
}

func TestArchiveDraftPlan(t *testing.T) {
	p := newDraftPlan(t, "100")
	if err := p.Archive(time.Now()); err != nil {
		t.Fatalf("Archive on draft: %v", err)
	}
	if p.Committed() {
		t.Error("archiving must not commit")
	}
}

func TestAllocateFunds(t *testing.T) {
	p := newDraftPlan(t, "1000")
	if err := p.AddAccount("acc1", "Checking", nil, ""); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}

	t.Run("allocate", func(t *testing.T) {
		if err := p.AllocateFunds("acc1", DefaultBucketName, MustMoney("250")); err != nil {
			t.Fatalf("AllocateFunds: %v", err)
		}
		account, _, _ := p.Account("acc1")
		b, _ := account.Bucket(DefaultBucketName)
		if b.Allocated.String() != "250.00" {
			t.Errorf("bucket: expected 250.00, got %s", b.Allocated)
		}
		if p.RemainingBalance().String() != "750.00" {
			t.Errorf("remaining: expected 750.00, got %s", p.RemainingBalance())
		}
		checkBalanceInvariant(t, p)
	})

	t.Run("deallocate", func(t *testing.T) {
		if err := p.AllocateFunds("acc1", DefaultBucketName, MustMoney("-100")); err != nil {
			t.Fatalf("AllocateFunds: %v", err)
		}
		if p.RemainingBalance().String() != "850.00" {
			t.Errorf("remaining: expected 850.00, got %s", p.RemainingBalance())
		}
		checkBalanceInvariant(t, p)
	})

	t.Run("over-allocate", func(t *testing.T) {
		err := p.AllocateFunds("acc1", DefaultBucketName, MustMoney("850.01"))
		if !errors.Is(err, ErrInsufficientFunds) {
			t.Fatalf("expected ErrInsufficientFunds, got %v", err)
		}
		checkBalanceInvariant(t, p)
	})

	t.Run("missing account", func(t *testing.T) {
		err := p.AllocateFunds("nope", DefaultBucketName, MustMoney("1"))
		if !errors.Is(err, ErrAccountNotFound) {
			t.Fatalf("expected ErrAccountNotFound, got %v", err)
		}
	})

	t.Run("missing bucket", func(t *testing.T) {
		err := p.AllocateFunds("acc1", "nope", MustMoney("1"))
		if !errors.Is(err, ErrBucketNotFound) {
			t.Fatalf("expected ErrBucketNotFound, got %v", err)
		}
	})
}

func TestDeallocateBeyondBucketFails(t *testing.T) {
	// Scenario: bucket holds 1000; pulling 1001 out must fail.
	p := newCommittedPlan(t)
	// Rebuild the same shape as a draft since committed plans reject allocation.
	draft := newDraftPlan(t, "1000")
	if err := draft.AddAccount("acc1", "Checking", []BucketConfig{
		{Name: "Default", Category: "default", Allocated: MustMoney("1000")},
	}, ""); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}

	err := draft.AllocateFunds("acc1", "Default", MustMoney("-1001"))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The committed variant fails earlier, on the structural guard.
	err = p.AllocateFunds("acc1", "Default", MustMoney("-1001"))
	if !errors.Is(err, ErrPlanAlreadyCommitted) {
		t.Fatalf("expected ErrPlanAlreadyCommitted, got %v", err)
	}
}

func TestRemoveAccountReturnsAllocation(t *testing.T) {
	p := newDraftPlan(t, "1000")
	if err := p.AddAccount("acc1", "Checking", []BucketConfig{
		{Name: "Rent", Category: "housing", Allocated: MustMoney("600")},
	}, ""); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}
	if p.RemainingBalance().String() != "400.00" {
		t.Fatalf("remaining: expected 400.00, got %s", p.RemainingBalance())
	}

	if err := p.RemoveAccount("acc1"); err != nil {
		t.Fatalf("RemoveAccount: %v", err)
	}
	if p.RemainingBalance().String() != "1000.00" {
		t.Errorf("remaining: expected 1000.00, got %s", p.RemainingBalance())
	}
	if err := p.RemoveAccount("acc1"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}

	// Removal deletes the entry, so re-adding the same id is legal.
	if err := p.AddAccount("acc1", "Checking", nil, ""); err != nil {
		t.Errorf("re-add after removal: %v", err)
	}
	checkBalanceInvariant(t, p)
}

func TestAddAccountDuplicate(t *testing.T) {
	p := newDraftPlan(t, "100")
	if err := p.AddAccount("acc1", "Checking", nil, ""); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}
	if err := p.AddAccount("acc1", "Checking again", nil, ""); !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
}

func TestAdjustPlanBalance(t *testing.T) {
	p := newDraftPlan(t, "1000")
	if err := p.AddAccount("acc1", "Checking", []BucketConfig{
		{Name: "Rent", Allocated: MustMoney("600")},
	}, ""); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}

	if err := p.AdjustPlanBalance(MustMoney("-50.50")); err != nil {
		t.Fatalf("AdjustPlanBalance: %v", err)
	}
	if p.InitialBalance().String() != "949.50" {
		t.Errorf("initial: expected 949.50, got %s", p.InitialBalance())
	}
	if p.RemainingBalance().String() != "349.50" {
		t.Errorf("remaining: expected 349.50, got %s", p.RemainingBalance())
	}
	checkBalanceInvariant(t, p)
}

func TestChangeAccountConfiguration(t *testing.T) {
	p := newDraftPlan(t, "1000")
	if err := p.AddAccount("acc1", "Checking", []BucketConfig{
		{Name: "Rent", Category: "housing", Allocated: MustMoney("600")},
		{Name: "Food", Category: "groceries", Allocated: MustMoney("200")},
	}, ""); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}

	err := p.ChangeAccountConfiguration("acc1", []BucketConfig{
		{Name: "Everything", Category: "general", Allocated: MustMoney("500")},
	})
	if err != nil {
		t.Fatalf("ChangeAccountConfiguration: %v", err)
	}

	account, _, _ := p.Account("acc1")
	if account.BucketCount() != 1 {
		t.Errorf("expected 1 bucket after reconfiguration, got %d", account.BucketCount())
	}
	if _, ok := account.Bucket("Rent"); ok {
		t.Error("old bucket should be gone")
	}
	// Remaining gains the 300 difference between old (800) and new (500).
	if p.RemainingBalance().String() != "500.00" {
		t.Errorf("remaining: expected 500.00, got %s", p.RemainingBalance())
	}
	checkBalanceInvariant(t, p)

	if err := p.ChangeAccountConfiguration("nope", nil); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestSetAccountCheckedStateIdempotenceError(t *testing.T) {
	p := newDraftPlan(t, "100")
	if err := p.AddAccount("acc1", "Checking", nil, ""); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}

	if err := p.SetAccountCheckedState("acc1", true); err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	err := p.SetAccountCheckedState("acc1", true)
	if !errors.Is(err, ErrAccountStateMatch) {
		t.Fatalf("expected ErrAccountStateMatch, got %v", err)
	}
	account, _, _ := p.Account("acc1")
	if !account.IsChecked() {
		t.Error("redundant toggle must not mutate state")
	}

	if err := p.SetAccountCheckedState("acc1", false); err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if err := p.SetAccountCheckedState("nope", true); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestCommitEmptyPlanFails(t *testing.T) {
	p := newDraftPlan(t, "0")
	err := p.Commit()
	if !errors.Is(err, ErrInvalidPlanState) {
		t.Fatalf("expected ErrInvalidPlanState, got %v", err)
	}
	if !strings.Contains(err.Error(), "at least one account") {
		t.Errorf("error should name the empty-accounts violation, got %q", err)
	}
}

func TestCommitToleranceBoundary(t *testing.T) {
	cases := []struct {
		name      string
		allocated string
		ok        bool
	}{
		{"exact", "1000.00", true},
		{"under by exactly one cent", "999.99", false},
		{"over by one cent", "1000.01", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newDraftPlan(t, "1000")
			if err := p.AddAccount("acc1", "Checking", []BucketConfig{
				{Name: "Default", Allocated: MustMoney(tc.allocated)},
			}, ""); err != nil {
				t.Fatalf("AddAccount: %v", err)
			}
			err := p.Commit()
			if tc.ok && err != nil {
				t.Fatalf("expected commit to succeed, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidPlanState) {
				t.Fatalf("expected ErrInvalidPlanState, got %v", err)
			}
		})
	}
}

func TestCopyStructure(t *testing.T) {
	source := newDraftPlan(t, "1000")
	if err := source.AddAccount("acc1", "Checking", []BucketConfig{
		{Name: "Rent", Category: "housing", Allocated: MustMoney("600")},
		{Name: "Food", Category: "groceries", Allocated: MustMoney("200")},
	}, "account notes"); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}
	if err := source.AddAccount("acc2", "Savings", nil, ""); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}

	copied, err := CopyStructure(source, CopyStructureParams{
		InitialBalance: MustMoney("1200"),
		PlanDate:       time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:      time.Now(),
		Notes:          "september",
	})
	if err != nil {
		t.Fatalf("CopyStructure: %v", err)
	}

	if copied.ID() == source.ID() {
		t.Error("copy must get its own id")
	}
	if copied.RemainingBalance().String() != "1200.00" {
		t.Errorf("remaining: expected 1200.00, got %s", copied.RemainingBalance())
	}
	if got, want := copied.AccountIDs(), source.AccountIDs(); len(got) != len(want) {
		t.Fatalf("account ids: got %v, want %v", got, want)
	}

	for _, accountID := range source.AccountIDs() {
		srcAccount, srcName, _ := source.Account(accountID)
		cpAccount, cpName, ok := copied.Account(accountID)
		if !ok {
			t.Fatalf("account %q missing from copy", accountID)
		}
		if cpName != srcName {
			t.Errorf("display name: got %q, want %q", cpName, srcName)
		}
		srcBuckets := srcAccount.Buckets()
		cpBuckets := cpAccount.Buckets()
		if len(cpBuckets) != len(srcBuckets) {
			t.Fatalf("bucket count: got %d, want %d", len(cpBuckets), len(srcBuckets))
		}
		for i := range srcBuckets {
			if cpBuckets[i].Name != srcBuckets[i].Name || cpBuckets[i].Category != srcBuckets[i].Category {
				t.Errorf("bucket %d: got %+v, want name/category of %+v", i, cpBuckets[i], srcBuckets[i])
			}
			if !cpBuckets[i].Allocated.IsZero() {
				t.Errorf("bucket %q: allocated must be zero, got %s", cpBuckets[i].Name, cpBuckets[i].Allocated)
			}
		}
	}
	checkBalanceInvariant(t, copied)
}

func TestSnapshotRoundTrip(t *testing.T) {
	p := newDraftPlan(t, "1000")
	if err := p.AddAccount("acc1", "Checking", []BucketConfig{
		{Name: "Rent", Category: "housing", Allocated: MustMoney("600")},
	}, "notes"); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}
	if err := p.SetAccountCheckedState("acc1", true); err != nil {
		t.Fatalf("SetAccountCheckedState: %v", err)
	}

	restored := PlanFromSnapshot(p.Snapshot())

	if restored.ID() != p.ID() {
		t.Error("id not preserved")
	}
	if !restored.RemainingBalance().Equal(p.RemainingBalance()) {
		t.Error("remaining balance not preserved")
	}
	account, display, ok := restored.Account("acc1")
	if !ok || display != "Checking" || !account.IsChecked() || account.Notes() != "notes" {
		t.Fatalf("account state not preserved: ok=%v display=%q", ok, display)
	}
	b, ok := account.Bucket("Rent")
	if !ok || b.Category != "housing" || b.Allocated.String() != "600.00" {
		t.Fatalf("bucket not preserved: %+v", b)
	}

	// The restored aggregate keeps working.
	if err := restored.AllocateFunds("acc1", "Rent", MustMoney("100")); err != nil {
		t.Fatalf("AllocateFunds on restored plan: %v", err)
	}
	checkBalanceInvariant(t, restored)
}

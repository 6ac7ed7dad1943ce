package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PlanStatus is the derived lifecycle state of a plan.
type PlanStatus string

const (
	StatusDraft     PlanStatus = "draft"
	StatusCommitted PlanStatus = "committed"
	StatusArchived  PlanStatus = "archived"
)

// commitTolerance is the strict upper bound on the absolute difference
// between the allocated total and the initial balance at commit time.
// A difference of exactly one cent fails.
var commitTolerance = MustMoney("0.01")

// MoneyPlan is the aggregate root governing how a fixed sum is distributed
// across accounts and buckets within one planning period.
//
// Structural mutation (accounts, buckets, balances) is legal only while the
// plan is a draft. Committing freezes the structure; archiving freezes
// everything. Every command validates before writing any field, so a failed
// command never leaves the plan partially mutated.
type MoneyPlan struct {
	id               uuid.UUID
	initialBalance   Money
	remainingBalance Money
	createdAt        time.Time
	planDate         time.Time
	accounts         map[string]*planEntry
	accountOrder     []string
	notes            string
	committed        bool
	archived         bool
	archivedAt       time.Time
}

// planEntry pairs a plan account with the display name resolved for it when
// it was added. The aggregate never resolves names itself.
type planEntry struct {
	account     *PlanAccount
	displayName string
}

// StartPlanParams carries the inputs for StartPlan.
type StartPlanParams struct {
	InitialBalance     Money
	PlanDate           time.Time
	CreatedAt          time.Time
	DefaultAllocations []AccountAllocationConfig
	Notes              string
}

// StartPlan creates a fresh plan. When default allocations are given, each
// entry creates a plan account with its buckets and the sum of their amounts
// is subtracted from the remaining balance.
func StartPlan(params StartPlanParams) (*MoneyPlan, error) {
	p := &MoneyPlan{
		id:               uuid.New(),
		initialBalance:   params.InitialBalance,
		remainingBalance: params.InitialBalance,
		createdAt:        params.CreatedAt,
		planDate:         params.PlanDate,
		accounts:         make(map[string]*planEntry),
		notes:            params.Notes,
	}
	for _, alloc := range params.DefaultAllocations {
		if err := alloc.Validate(); err != nil {
			return nil, err
		}
		if _, exists := p.accounts[alloc.AccountID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateAccount, alloc.AccountID)
		}
		buckets := alloc.Buckets
		if len(buckets) == 0 {
			buckets = defaultBucketConfigs()
		}
		p.insertAccount(alloc.AccountID, alloc.DisplayName, buckets, alloc.Notes)
	}
	return p, nil
}

// CopyStructureParams carries the inputs for CopyStructure.
type CopyStructureParams struct {
	InitialBalance Money
	PlanDate       time.Time
	CreatedAt      time.Time
	Notes          string
}

// CopyStructure creates a new plan whose accounts and buckets mirror the
// source plan's names and categories, with every allocated amount reset to
// zero. The remaining balance equals the new initial balance.
func CopyStructure(source *MoneyPlan, params CopyStructureParams) (*MoneyPlan, error) {
	p := &MoneyPlan{
		id:               uuid.New(),
		initialBalance:   params.InitialBalance,
		remainingBalance: params.InitialBalance,
		createdAt:        params.CreatedAt,
		planDate:         params.PlanDate,
		accounts:         make(map[string]*planEntry, len(source.accounts)),
		notes:            params.Notes,
	}
	for _, accountID := range source.accountOrder {
		entry := source.accounts[accountID]
		configs := make([]BucketConfig, 0, entry.account.BucketCount())
		for _, b := range entry.account.Buckets() {
			configs = append(configs, BucketConfig{
				Name:      b.Name,
				Category:  b.Category,
				Allocated: ZeroMoney(),
			})
		}
		p.insertAccount(accountID, entry.displayName, configs, "")
	}
	return p, nil
}

// insertAccount adds a validated account and subtracts its allocated total
// from the remaining balance.
func (p *MoneyPlan) insertAccount(accountID, displayName string, configs []BucketConfig, notes string) {
	account := newPlanAccount(accountID, configs, notes)
	p.accounts[accountID] = &planEntry{account: account, displayName: displayName}
	p.accountOrder = append(p.accountOrder, accountID)
	p.remainingBalance = p.remainingBalance.Sub(account.TotalAllocated())
}

// guardStructural rejects structural commands on archived or committed plans.
func (p *MoneyPlan) guardStructural() error {
	if p.archived {
		return ErrPlanArchived
	}
	if p.committed {
		return ErrPlanAlreadyCommitted
	}
	return nil
}

// AddAccount adds an account to a draft plan. When no buckets are given a
// single zero-amount "Default" bucket is synthesized; otherwise the given
// list is used verbatim. The display name is resolved by the caller.
func (p *MoneyPlan) AddAccount(accountID, displayName string, buckets []BucketConfig, notes string) error {
	if err := p.guardStructural(); err != nil {
		return err
	}
	if _, exists := p.accounts[accountID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateAccount, accountID)
	}
	if len(buckets) == 0 {
		buckets = defaultBucketConfigs()
	}
	if err := validateBucketConfigs(buckets); err != nil {
		return err
	}
	p.insertAccount(accountID, displayName, buckets, notes)
	return nil
}

// RemoveAccount removes an account from a draft plan, returning its total
// allocation to the remaining balance. The account may be re-added later.
func (p *MoneyPlan) RemoveAccount(accountID string) error {
	if err := p.guardStructural(); err != nil {
		return err
	}
	entry, ok := p.accounts[accountID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrAccountNotFound, accountID)
	}
	p.remainingBalance = p.remainingBalance.Add(entry.account.TotalAllocated())
	delete(p.accounts, accountID)
	for i, id := range p.accountOrder {
		if id == accountID {
			p.accountOrder = append(p.accountOrder[:i], p.accountOrder[i+1:]...)
			break
		}
	}
	return nil
}

// AllocateFunds moves amount into (positive) or out of (negative) the named
// bucket; the remaining balance moves by the same amount in the opposite
// direction.
func (p *MoneyPlan) AllocateFunds(accountID, bucketName string, amount Money) error {
	if err := p.guardStructural(); err != nil {
		return err
	}
	entry, ok := p.accounts[accountID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrAccountNotFound, accountID)
	}
	bucket, ok := entry.account.Bucket(bucketName)
	if !ok {
		return fmt.Errorf("%w: %q in account %q", ErrBucketNotFound, bucketName, accountID)
	}
	if amount.IsPositive() && amount.GreaterThan(p.remainingBalance) {
		return fmt.Errorf("%w: cannot allocate %s with %s remaining",
			ErrInsufficientFunds, amount, p.remainingBalance)
	}
	if amount.IsNegative() && amount.Abs().GreaterThan(bucket.Allocated) {
		return fmt.Errorf("%w: cannot deallocate %s from bucket %q holding %s",
			ErrInsufficientFunds, amount.Abs(), bucketName, bucket.Allocated)
	}
	entry.account.addToBucket(bucketName, amount)
	p.remainingBalance = p.remainingBalance.Sub(amount)
	return nil
}

// AdjustPlanBalance applies a balance correction: delta is added to both the
// initial and the remaining balance, leaving allocations untouched.
func (p *MoneyPlan) AdjustPlanBalance(delta Money) error {
	if err := p.guardStructural(); err != nil {
		return err
	}
	p.initialBalance = p.initialBalance.Add(delta)
	p.remainingBalance = p.remainingBalance.Add(delta)
	return nil
}

// ChangeAccountConfiguration replaces the account's entire bucket map. The
// difference between the old and new allocated totals is returned to the
// remaining balance.
func (p *MoneyPlan) ChangeAccountConfiguration(accountID string, buckets []BucketConfig) error {
	if err := p.guardStructural(); err != nil {
		return err
	}
	entry, ok := p.accounts[accountID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrAccountNotFound, accountID)
	}
	if err := validateBucketConfigs(buckets); err != nil {
		return err
	}
	oldTotal := entry.account.TotalAllocated()
	entry.account.replaceBuckets(buckets)
	newTotal := entry.account.TotalAllocated()
	p.remainingBalance = p.remainingBalance.Add(oldTotal.Sub(newTotal))
	return nil
}

// SetAccountCheckedState toggles an account's checked flag. Requesting the
// state the account is already in fails with ErrAccountStateMatch. Legal on
// committed plans but not on archived ones.
func (p *MoneyPlan) SetAccountCheckedState(accountID string, isChecked bool) error {
	if p.archived {
		return ErrPlanArchived
	}
	entry, ok := p.accounts[accountID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrAccountNotFound, accountID)
	}
	if entry.account.isChecked == isChecked {
		return fmt.Errorf("%w: %q", ErrAccountStateMatch, accountID)
	}
	entry.account.isChecked = isChecked
	return nil
}

// EditNotes replaces the plan's notes. Legal until the plan is archived.
func (p *MoneyPlan) EditNotes(text string) error {
	if p.archived {
		return ErrPlanArchived
	}
	p.notes = text
	return nil
}

// EditAccountNotes replaces an account's notes. Legal until the plan is
// archived.
func (p *MoneyPlan) EditAccountNotes(accountID, text string) error {
	if p.archived {
		return ErrPlanArchived
	}
	entry, ok := p.accounts[accountID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrAccountNotFound, accountID)
	}
	entry.account.notes = text
	return nil
}

// Commit finalizes the plan's allocations. The plan must have at least one
// account, every account must have at least one bucket, and the allocated
// total must equal the initial balance to within one cent.
func (p *MoneyPlan) Commit() error {
	if p.archived {
		return ErrPlanArchived
	}
	if p.committed {
		return ErrPlanAlreadyCommitted
	}
	if len(p.accounts) == 0 {
		return fmt.Errorf("%w: plan must have at least one account", ErrInvalidPlanState)
	}
	for _, accountID := range p.accountOrder {
		if p.accounts[accountID].account.BucketCount() == 0 {
			return fmt.Errorf("%w: account %q has no buckets", ErrInvalidPlanState, accountID)
		}
	}
	allocated := p.TotalAllocated()
	diff := allocated.Sub(p.initialBalance)
	if !diff.Abs().LessThan(commitTolerance) {
		return fmt.Errorf("%w: allocated total %s must equal initial balance %s (difference %s)",
			ErrInvalidPlanState, allocated, p.initialBalance, diff)
	}
	p.committed = true
	return nil
}

// Archive freezes the plan terminally. Legal for drafts and committed plans
// alike; archiving twice fails.
func (p *MoneyPlan) Archive(now time.Time) error {
	if p.archived {
		return fmt.Errorf("%w: already archived", ErrPlanArchived)
	}
	p.archived = true
	p.archivedAt = now
	return nil
}

// ID returns the plan's identifier.
func (p *MoneyPlan) ID() uuid.UUID { return p.id }

// InitialBalance returns the plan's initial balance.
func (p *MoneyPlan) InitialBalance() Money { return p.initialBalance }

// RemainingBalance returns the unallocated portion of the initial balance.
func (p *MoneyPlan) RemainingBalance() Money { return p.remainingBalance }

// Notes returns the plan's free-text notes.
func (p *MoneyPlan) Notes() string { return p.notes }

// PlanDate returns the planning period's date.
func (p *MoneyPlan) PlanDate() time.Time { return p.planDate }

// CreatedAt returns the plan's creation time.
func (p *MoneyPlan) CreatedAt() time.Time { return p.createdAt }

// Committed reports whether the plan has been committed.
func (p *MoneyPlan) Committed() bool { return p.committed }

// Archived reports whether the plan has been archived.
func (p *MoneyPlan) Archived() bool { return p.archived }

// ArchivedAt returns when the plan was archived; zero if it was not.
func (p *MoneyPlan) ArchivedAt() time.Time { return p.archivedAt }

// Status derives the lifecycle state from the committed/archived flags.
func (p *MoneyPlan) Status() PlanStatus {
	switch {
	case p.archived:
		return StatusArchived
	case p.committed:
		return StatusCommitted
	default:
		return StatusDraft
	}
}

// AccountIDs returns the account identifiers in insertion order.
func (p *MoneyPlan) AccountIDs() []string {
	out := make([]string, len(p.accountOrder))
	copy(out, p.accountOrder)
	return out
}

// Account returns the plan account and its display name, if present.
func (p *MoneyPlan) Account(accountID string) (*PlanAccount, string, bool) {
	entry, ok := p.accounts[accountID]
	if !ok {
		return nil, "", false
	}
	return entry.account, entry.displayName, true
}

// TotalAllocated sums the allocated amounts across all buckets in all
// accounts.
func (p *MoneyPlan) TotalAllocated() Money {
	total := ZeroMoney()
	for _, entry := range p.accounts {
		total = total.Add(entry.account.TotalAllocated())
	}
	return total
}

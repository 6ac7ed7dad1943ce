package core

import (
	"time"

	"github.com/google/uuid"
)

// PlanSnapshot is the plain-data view of a plan, used by the persistence and
// transport layers. Snapshots are detached copies; mutating one never affects
// the aggregate it came from.
type PlanSnapshot struct {
	ID               uuid.UUID
	InitialBalance   Money
	RemainingBalance Money
	CreatedAt        time.Time
	PlanDate         time.Time
	Notes            string
	Committed        bool
	Archived         bool
	ArchivedAt       time.Time
	Accounts         []AccountSnapshot
}

// AccountSnapshot is the plain-data view of one plan account.
type AccountSnapshot struct {
	AccountID   string
	DisplayName string
	IsChecked   bool
	Notes       string
	Buckets     []BucketSnapshot
}

// BucketSnapshot is the plain-data view of one bucket.
type BucketSnapshot struct {
	Name      string
	Category  string
	Allocated Money
}

// Snapshot exposes the plan's state as plain data.
func (p *MoneyPlan) Snapshot() PlanSnapshot {
	s := PlanSnapshot{
		ID:               p.id,
		InitialBalance:   p.initialBalance,
		RemainingBalance: p.remainingBalance,
		CreatedAt:        p.createdAt,
		PlanDate:         p.planDate,
		Notes:            p.notes,
		Committed:        p.committed,
		Archived:         p.archived,
		ArchivedAt:       p.archivedAt,
		Accounts:         make([]AccountSnapshot, 0, len(p.accountOrder)),
	}
	for _, accountID := range p.accountOrder {
		entry := p.accounts[accountID]
		acc := AccountSnapshot{
			AccountID:   accountID,
			DisplayName: entry.displayName,
			IsChecked:   entry.account.isChecked,
			Notes:       entry.account.notes,
			Buckets:     make([]BucketSnapshot, 0, entry.account.BucketCount()),
		}
		for _, b := range entry.account.Buckets() {
			acc.Buckets = append(acc.Buckets, BucketSnapshot{
				Name:      b.Name,
				Category:  b.Category,
				Allocated: b.Allocated,
			})
		}
		s.Accounts = append(s.Accounts, acc)
	}
	return s
}

// PlanFromSnapshot rehydrates an aggregate from persisted state. The snapshot
// is trusted: balances and flags are restored verbatim, not recomputed.
func PlanFromSnapshot(s PlanSnapshot) *MoneyPlan {
	p := &MoneyPlan{
		id:               s.ID,
		initialBalance:   s.InitialBalance,
		remainingBalance: s.RemainingBalance,
		createdAt:        s.CreatedAt,
		planDate:         s.PlanDate,
		notes:            s.Notes,
		committed:        s.Committed,
		archived:         s.Archived,
		archivedAt:       s.ArchivedAt,
		accounts:         make(map[string]*planEntry, len(s.Accounts)),
	}
	for _, acc := range s.Accounts {
		account := &PlanAccount{
			accountID: acc.AccountID,
			buckets:   make(map[string]Bucket, len(acc.Buckets)),
			isChecked: acc.IsChecked,
			notes:     acc.Notes,
		}
		for _, b := range acc.Buckets {
			account.buckets[b.Name] = Bucket{Name: b.Name, Category: b.Category, Allocated: b.Allocated}
			account.order = append(account.order, b.Name)
		}
		p.accounts[acc.AccountID] = &planEntry{account: account, displayName: acc.DisplayName}
		p.accountOrder = append(p.accountOrder, acc.AccountID)
	}
	return p
}

package core

// PlanAccount is an account's presence inside a plan: its buckets, checked
// flag and notes. The bucket map is keyed by bucket name; insertion order is
// kept for display only.
type PlanAccount struct {
	accountID string
	buckets   map[string]Bucket
	order     []string
	isChecked bool
	notes     string
}

func newPlanAccount(accountID string, configs []BucketConfig, notes string) *PlanAccount {
	a := &PlanAccount{
		accountID: accountID,
		buckets:   make(map[string]Bucket, len(configs)),
		notes:     notes,
	}
	a.replaceBuckets(configs)
	return a
}

// replaceBuckets swaps the entire bucket map for the given configuration.
// Configs must already be validated.
func (a *PlanAccount) replaceBuckets(configs []BucketConfig) {
	a.buckets = make(map[string]Bucket, len(configs))
	a.order = a.order[:0]
	for _, cfg := range configs {
		b := cfg.bucket()
		a.buckets[b.Name] = b
		a.order = append(a.order, b.Name)
	}
}

// AccountID returns the opaque account identifier.
func (a *PlanAccount) AccountID() string { return a.accountID }

// IsChecked reports whether the account has been checked off.
func (a *PlanAccount) IsChecked() bool { return a.isChecked }

// Notes returns the account's free-text notes.
func (a *PlanAccount) Notes() string { return a.notes }

// Bucket returns the named bucket, if present.
func (a *PlanAccount) Bucket(name string) (Bucket, bool) {
	b, ok := a.buckets[name]
	return b, ok
}

// Buckets returns the account's buckets in insertion order.
func (a *PlanAccount) Buckets() []Bucket {
	out := make([]Bucket, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.buckets[name])
	}
	return out
}

// BucketCount returns the number of buckets in the account.
func (a *PlanAccount) BucketCount() int { return len(a.buckets) }

// TotalAllocated sums the allocated amounts across all buckets.
func (a *PlanAccount) TotalAllocated() Money {
	total := ZeroMoney()
	for _, b := range a.buckets {
		total = total.Add(b.Allocated)
	}
	return total
}

// addToBucket moves the named bucket's amount by delta. The bucket must
// exist; the aggregate checks before calling.
func (a *PlanAccount) addToBucket(name string, delta Money) {
	b := a.buckets[name]
	b.Allocated = b.Allocated.Add(delta)
	a.buckets[name] = b
}

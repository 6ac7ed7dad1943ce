package core

import (
	"fmt"
	"strings"
)

// Names used when an account is added without an explicit bucket list.
const (
	DefaultBucketName     = "Default"
	DefaultBucketCategory = "default"
)

// Bucket is a named sub-allocation of funds within a plan account, tagged
// with a category. Buckets are replaced wholesale on reconfiguration and
// destroyed with their account.
type Bucket struct {
	Name      string
	Category  string
	Allocated Money
}

// BucketConfig is the typed input used to construct or reconfigure a bucket.
type BucketConfig struct {
	Name      string
	Category  string
	Allocated Money
}

// Validate checks the configuration before it is applied to a plan.
func (c BucketConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyBucketName
	}
	return nil
}

func (c BucketConfig) bucket() Bucket {
	category := strings.TrimSpace(c.Category)
	if category == "" {
		category = DefaultBucketCategory
	}
	return Bucket{
		Name:      c.Name,
		Category:  category,
		Allocated: c.Allocated,
	}
}

// defaultBucketConfigs synthesizes the single zero-amount bucket used when an
// account is added without an explicit bucket list.
func defaultBucketConfigs() []BucketConfig {
	return []BucketConfig{{
		Name:      DefaultBucketName,
		Category:  DefaultBucketCategory,
		Allocated: ZeroMoney(),
	}}
}

// AccountAllocationConfig describes one account and its buckets when starting
// a plan with default allocations.
type AccountAllocationConfig struct {
	AccountID   string
	DisplayName string
	Buckets     []BucketConfig
	Notes       string
}

// Validate checks the configuration and every bucket in it.
func (c AccountAllocationConfig) Validate() error {
	if strings.TrimSpace(c.AccountID) == "" {
		return ErrAccountNotFound
	}
	return validateBucketConfigs(c.Buckets)
}

// Total sums the allocated amounts across the configured buckets.
func (c AccountAllocationConfig) Total() Money {
	total := ZeroMoney()
	for _, b := range c.Buckets {
		total = total.Add(b.Allocated)
	}
	return total
}

func validateBucketConfigs(configs []BucketConfig) error {
	seen := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if seen[cfg.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateBucket, cfg.Name)
		}
		seen[cfg.Name] = true
	}
	return nil
}

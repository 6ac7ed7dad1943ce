package core

import "errors"

var (
	// ErrPlanArchived is returned by any mutating command on an archived plan.
	ErrPlanArchived = errors.New("plan is archived")

	// ErrPlanAlreadyCommitted is returned by structural commands on a
	// committed plan, and by a second Commit.
	ErrPlanAlreadyCommitted = errors.New("plan is already committed")

	// ErrInvalidPlanState is returned when a commit-time invariant is
	// violated. Commands wrap it with the specific violation.
	ErrInvalidPlanState = errors.New("invalid plan state")

	ErrAccountNotFound  = errors.New("account not found")
	ErrBucketNotFound   = errors.New("bucket not found")
	ErrDuplicateAccount = errors.New("account already present in plan")

	// ErrInsufficientFunds is returned when an allocation exceeds the
	// remaining balance, or a deallocation exceeds a bucket's amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountStateMatch signals a redundant checked-state toggle. It is
	// deliberately an error rather than a no-op so clients can detect
	// redundant calls.
	ErrAccountStateMatch = errors.New("account already in requested checked state")

	ErrInvalidAmount = errors.New("invalid amount")

	ErrEmptyBucketName = errors.New("empty bucket name")
	ErrDuplicateBucket = errors.New("duplicate bucket name")
)

package domain

import "errors"

var (
	// ErrNotFound means the message, draft or record is already absent.
	// Delete-style operations treat it as success; reads treat it as a skip.
	ErrNotFound = errors.New("not found")

	// ErrTransientProvider covers network failures, rate limits and 5xx
	// responses. The next natural trigger retries; there is no local retry loop.
	ErrTransientProvider = errors.New("transient provider error")

	// ErrClassification means the status classifier was unavailable or
	// returned a malformed verdict.
	ErrClassification = errors.New("classification failed")

	// ErrOptimisticConflict means tracker state changed between the read
	// that informed a decision and the conditional write.
	ErrOptimisticConflict = errors.New("tracker changed concurrently")
)

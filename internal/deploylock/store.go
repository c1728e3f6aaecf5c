package deploylock

import "context"

// Store is a key-value backend with an atomic conditional write.
type Store interface {
	// SetIfAbsent stores value under key only when key is missing and reports whether it did.
	SetIfAbsent(executionContext context.Context, key string, value string) (bool, error)
	// Get returns the value under key and whether it exists.
	Get(executionContext context.Context, key string) (string, bool, error)
	// Delete removes key. Missing keys are not an error.
	Delete(executionContext context.Context, key string) error
}

package deploylock

import (
	"context"
	"errors"
	"fmt"

	"github.com/temirov/deployutils/internal/task"
)

const (
	lockHeldMessageConstant       = "deploy lock is set"
	lockHeldNamedTemplateConstant = "deploy lock %q is set"
	lockHeldByTemplateConstant    = "deploy lock %q is set by %s"
	lockFunctionsMissingMessage   = "lock acquire, release, and body must be provided"
	acquireFailedTemplateConstant = "acquire deploy lock: %w"
	releaseFailedTemplateConstant = "release deploy lock: %w"
)

// ErrLockFunctionsNotConfigured indicates a nil acquire, release, or body.
var ErrLockFunctionsNotConfigured = errors.New(lockFunctionsMissingMessage)

// Acquirer atomically takes the lock. It returns false when someone else holds it.
type Acquirer func(executionContext context.Context) (bool, error)

// Releaser drops the lock.
type Releaser func(executionContext context.Context) error

// LockHeldError reports that the lock was already taken. It is fatal; callers must not retry.
type LockHeldError struct {
	Name   string
	Holder string
}

// Error describes the held lock.
func (heldError *LockHeldError) Error() string {
	switch {
	case len(heldError.Name) == 0:
		return lockHeldMessageConstant
	case len(heldError.Holder) == 0:
		return fmt.Sprintf(lockHeldNamedTemplateConstant, heldError.Name)
	default:
		return fmt.Sprintf(lockHeldByTemplateConstant, heldError.Name, heldError.Holder)
	}
}

// WithLock runs body while holding the lock.
//
// When acquire reports the lock as held, WithLock returns *LockHeldError and
// neither body nor release runs. Otherwise release runs exactly once after
// body returns or panics. Body and release errors are joined.
func WithLock(executionContext context.Context, acquire Acquirer, release Releaser, body func(context.Context) error) (resultError error) {
	if acquire == nil || release == nil || body == nil {
		return ErrLockFunctionsNotConfigured
	}

	acquired, acquireError := acquire(executionContext)
	if acquireError != nil {
		return fmt.Errorf(acquireFailedTemplateConstant, acquireError)
	}
	if !acquired {
		return &LockHeldError{}
	}

	defer func() {
		if releaseError := release(context.WithoutCancel(executionContext)); releaseError != nil {
			resultError = errors.Join(resultError, fmt.Errorf(releaseFailedTemplateConstant, releaseError))
		}
	}()

	return body(executionContext)
}

// Guard returns middleware that runs the wrapped operation under the lock.
func Guard(acquire Acquirer, release Releaser) task.Middleware {
	return func(next task.Operation) task.Operation {
		return func(executionContext context.Context, request task.Request) error {
			return WithLock(executionContext, acquire, release, func(lockedContext context.Context) error {
				return next(lockedContext, request)
			})
		}
	}
}

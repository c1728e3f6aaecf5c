package deploylock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/task"
)

const (
	DefaultLockNameConstant = "deploy_lock"

	storeMissingMessageConstant    = "lock coordinator requires a store"
	lockNameMissingMessageConstant = "lock name must not be empty"
	unknownHolderConstant          = "unknown"
	holderTemplateConstant         = "%s@%s"
	lockAcquiredLogMessageConstant = "deploy lock acquired"
	lockBusyLogMessageConstant     = "deploy lock is held elsewhere"
	lockReleasedLogMessageConstant = "deploy lock released"
	holderLookupFailedLogMessage   = "could not read deploy lock holder"
	logFieldLockConstant           = "lock"
	logFieldHolderConstant         = "holder"
)

// ErrStoreNotConfigured indicates a Coordinator without a Store.
var ErrStoreNotConfigured = errors.New(storeMissingMessageConstant)

// ErrLockNameNotConfigured indicates a blank lock name.
var ErrLockNameNotConfigured = errors.New(lockNameMissingMessageConstant)

// Coordinator binds lock operations to a named key.
type Coordinator struct {
	store  Store
	name   string
	holder string
	logger *zap.Logger
}

// NewCoordinator constructs a Coordinator. A blank holder defaults to DefaultHolder().
func NewCoordinator(store Store, name string, holder string, logger *zap.Logger) (*Coordinator, error) {
	if store == nil {
		return nil, ErrStoreNotConfigured
	}
	trimmedName := strings.TrimSpace(name)
	if len(trimmedName) == 0 {
		return nil, ErrLockNameNotConfigured
	}
	trimmedHolder := strings.TrimSpace(holder)
	if len(trimmedHolder) == 0 {
		trimmedHolder = DefaultHolder()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{store: store, name: trimmedName, holder: trimmedHolder, logger: logger}, nil
}

// Name returns the lock key.
func (coordinator *Coordinator) Name() string {
	return coordinator.name
}

// Acquire sets the lock key to the holder when it is absent.
func (coordinator *Coordinator) Acquire(executionContext context.Context) (bool, error) {
	acquired, setError := coordinator.store.SetIfAbsent(executionContext, coordinator.name, coordinator.holder)
	if setError != nil {
		return false, setError
	}
	if acquired {
		coordinator.logger.Info(lockAcquiredLogMessageConstant, zap.String(logFieldLockConstant, coordinator.name), zap.String(logFieldHolderConstant, coordinator.holder))
	} else {
		coordinator.logger.Warn(lockBusyLogMessageConstant, zap.String(logFieldLockConstant, coordinator.name))
	}
	return acquired, nil
}

// Release deletes the lock key without checking who holds it.
func (coordinator *Coordinator) Release(executionContext context.Context) error {
	if deleteError := coordinator.store.Delete(executionContext, coordinator.name); deleteError != nil {
		return deleteError
	}
	coordinator.logger.Info(lockReleasedLogMessageConstant, zap.String(logFieldLockConstant, coordinator.name))
	return nil
}

// Holder returns the current holder and whether the lock is set.
func (coordinator *Coordinator) Holder(executionContext context.Context) (string, bool, error) {
	return coordinator.store.Get(executionContext, coordinator.name)
}

// EnsureFree returns *LockHeldError when the lock is currently set.
func (coordinator *Coordinator) EnsureFree(executionContext context.Context) error {
	holder, held, holderError := coordinator.Holder(executionContext)
	if holderError != nil {
		return holderError
	}
	if held {
		return &LockHeldError{Name: coordinator.name, Holder: holder}
	}
	return nil
}

// WithLock runs body under this coordinator's lock.
// A held lock is reported with its name and current holder.
func (coordinator *Coordinator) WithLock(executionContext context.Context, body func(context.Context) error) error {
	lockError := WithLock(executionContext, coordinator.Acquire, coordinator.Release, body)
	var heldError *LockHeldError
	if errors.As(lockError, &heldError) && len(heldError.Name) == 0 {
		return coordinator.describeHeldLock(executionContext)
	}
	return lockError
}

// Guard returns middleware that runs the wrapped operation under this coordinator's lock.
func (coordinator *Coordinator) Guard() task.Middleware {
	return func(next task.Operation) task.Operation {
		return func(executionContext context.Context, request task.Request) error {
			return coordinator.WithLock(executionContext, func(lockedContext context.Context) error {
				return next(lockedContext, request)
			})
		}
	}
}

func (coordinator *Coordinator) describeHeldLock(executionContext context.Context) error {
	heldError := &LockHeldError{Name: coordinator.name}
	holder, held, holderError := coordinator.Holder(executionContext)
	if holderError != nil {
		coordinator.logger.Warn(holderLookupFailedLogMessage, zap.String(logFieldLockConstant, coordinator.name), zap.Error(holderError))
		return heldError
	}
	if held {
		heldError.Holder = holder
	}
	return heldError
}

// DefaultHolder identifies the current process as user@hostname.
func DefaultHolder() string {
	userName := unknownHolderConstant
	if currentUser, userError := user.Current(); userError == nil && len(currentUser.Username) > 0 {
		userName = currentUser.Username
	}
	hostName, hostError := os.Hostname()
	if hostError != nil || len(hostName) == 0 {
		hostName = unknownHolderConstant
	}
	return fmt.Sprintf(holderTemplateConstant, userName, hostName)
}

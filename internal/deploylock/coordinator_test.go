package deploylock_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/deploylock"
	"github.com/temirov/deployutils/internal/task"
)

type memoryStore struct {
	mutex       sync.Mutex
	values      map[string]string
	deleteCalls int
	getError    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (store *memoryStore) SetIfAbsent(_ context.Context, key string, value string) (bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if _, exists := store.values[key]; exists {
		return false, nil
	}
	store.values[key] = value
	return true, nil
}

func (store *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.getError != nil {
		return "", false, store.getError
	}
	value, exists := store.values[key]
	return value, exists, nil
}

func (store *memoryStore) Delete(_ context.Context, key string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.deleteCalls++
	delete(store.values, key)
	return nil
}

func TestNewCoordinatorValidation(testInstance *testing.T) {
	_, storeError := deploylock.NewCoordinator(nil, "deploy_lock", "ci", zap.NewNop())
	require.ErrorIs(testInstance, storeError, deploylock.ErrStoreNotConfigured)

	_, nameError := deploylock.NewCoordinator(newMemoryStore(), "  ", "ci", zap.NewNop())
	require.ErrorIs(testInstance, nameError, deploylock.ErrLockNameNotConfigured)

	coordinator, creationError := deploylock.NewCoordinator(newMemoryStore(), "deploy_lock", "", nil)
	require.NoError(testInstance, creationError)
	require.Equal(testInstance, "deploy_lock", coordinator.Name())
}

func TestCoordinatorAcquireReleaseCycle(testInstance *testing.T) {
	store := newMemoryStore()
	first, _ := deploylock.NewCoordinator(store, "deploy_lock", "alice@ci-1", zap.NewNop())
	second, _ := deploylock.NewCoordinator(store, "deploy_lock", "bob@ci-2", zap.NewNop())

	acquired, acquireError := first.Acquire(context.Background())
	require.NoError(testInstance, acquireError)
	require.True(testInstance, acquired)

	acquiredAgain, _ := second.Acquire(context.Background())
	require.False(testInstance, acquiredAgain)

	holder, held, holderError := second.Holder(context.Background())
	require.NoError(testInstance, holderError)
	require.True(testInstance, held)
	require.Equal(testInstance, "alice@ci-1", holder)

	var heldError *deploylock.LockHeldError
	require.ErrorAs(testInstance, second.EnsureFree(context.Background()), &heldError)
	require.Equal(testInstance, "alice@ci-1", heldError.Holder)
	require.Equal(testInstance, `deploy lock "deploy_lock" is set by alice@ci-1`, heldError.Error())

	require.NoError(testInstance, second.Release(context.Background()))
	require.NoError(testInstance, first.EnsureFree(context.Background()))
}

func TestCoordinatorWithLockReportsHolder(testInstance *testing.T) {
	store := newMemoryStore()
	store.values["deploy_lock"] = "alice@ci-1"
	coordinator, _ := deploylock.NewCoordinator(store, "deploy_lock", "bob@ci-2", zap.NewNop())

	bodyCalls := 0
	lockError := coordinator.WithLock(context.Background(), func(context.Context) error {
		bodyCalls++
		return nil
	})

	var heldError *deploylock.LockHeldError
	require.ErrorAs(testInstance, lockError, &heldError)
	require.Equal(testInstance, "deploy_lock", heldError.Name)
	require.Equal(testInstance, "alice@ci-1", heldError.Holder)
	require.Zero(testInstance, bodyCalls)
	require.Zero(testInstance, store.deleteCalls)
	require.Equal(testInstance, "alice@ci-1", store.values["deploy_lock"])
}

func TestCoordinatorWithLockHolderLookupFailure(testInstance *testing.T) {
	store := newMemoryStore()
	store.values["deploy_lock"] = "alice@ci-1"
	store.getError = errors.New("timeout")
	coordinator, _ := deploylock.NewCoordinator(store, "deploy_lock", "bob@ci-2", zap.NewNop())

	lockError := coordinator.WithLock(context.Background(), func(context.Context) error { return nil })

	var heldError *deploylock.LockHeldError
	require.ErrorAs(testInstance, lockError, &heldError)
	require.Equal(testInstance, `deploy lock "deploy_lock" is set`, heldError.Error())
}

func TestCoordinatorGuardReleasesExactlyOnce(testInstance *testing.T) {
	store := newMemoryStore()
	coordinator, _ := deploylock.NewCoordinator(store, "deploy_lock", "ci", zap.NewNop())
	operationFailure := errors.New("migration failed")

	operation := task.Chain(func(context.Context, task.Request) error {
		_, held := store.values["deploy_lock"]
		require.True(testInstance, held)
		return operationFailure
	}, coordinator.Guard())

	require.ErrorIs(testInstance, operation(context.Background(), task.Request{}), operationFailure)
	require.Equal(testInstance, 1, store.deleteCalls)
	require.Empty(testInstance, store.values)
}

func TestDefaultHolderHasUserAndHost(testInstance *testing.T) {
	require.Regexp(testInstance, `^.+@.+$`, deploylock.DefaultHolder())
}

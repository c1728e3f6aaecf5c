package deploylock_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/temirov/deployutils/internal/deploylock"
)

func newRedisStore(testInstance *testing.T, ttl time.Duration) (*deploylock.RedisStore, *miniredis.Miniredis) {
	testInstance.Helper()
	server := miniredis.RunT(testInstance)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	testInstance.Cleanup(func() { _ = client.Close() })
	store, storeError := deploylock.NewRedisStore(client, ttl)
	require.NoError(testInstance, storeError)
	return store, server
}

func TestRedisStoreSetIfAbsent(testInstance *testing.T) {
	store, server := newRedisStore(testInstance, 0)

	created, setError := store.SetIfAbsent(context.Background(), "deploy_lock", "alice@ci-1")
	require.NoError(testInstance, setError)
	require.True(testInstance, created)

	createdAgain, setAgainError := store.SetIfAbsent(context.Background(), "deploy_lock", "bob@ci-2")
	require.NoError(testInstance, setAgainError)
	require.False(testInstance, createdAgain)

	storedValue, getError := server.Get("deploy_lock")
	require.NoError(testInstance, getError)
	require.Equal(testInstance, "alice@ci-1", storedValue)
}

func TestRedisStoreGetAndDelete(testInstance *testing.T) {
	store, server := newRedisStore(testInstance, 0)

	_, held, getError := store.Get(context.Background(), "deploy_lock")
	require.NoError(testInstance, getError)
	require.False(testInstance, held)

	require.NoError(testInstance, server.Set("deploy_lock", "alice@ci-1"))
	value, held, getError := store.Get(context.Background(), "deploy_lock")
	require.NoError(testInstance, getError)
	require.True(testInstance, held)
	require.Equal(testInstance, "alice@ci-1", value)

	require.NoError(testInstance, store.Delete(context.Background(), "deploy_lock"))
	require.False(testInstance, server.Exists("deploy_lock"))
	require.NoError(testInstance, store.Delete(context.Background(), "deploy_lock"))
}

func TestRedisStoreAppliesTTL(testInstance *testing.T) {
	store, server := newRedisStore(testInstance, time.Minute)

	created, setError := store.SetIfAbsent(context.Background(), "deploy_lock", "ci")
	require.NoError(testInstance, setError)
	require.True(testInstance, created)
	require.Equal(testInstance, time.Minute, server.TTL("deploy_lock"))

	server.FastForward(2 * time.Minute)
	require.False(testInstance, server.Exists("deploy_lock"))
}

func TestRedisStoreRequiresClient(testInstance *testing.T) {
	_, storeError := deploylock.NewRedisStore(nil, 0)
	require.ErrorIs(testInstance, storeError, deploylock.ErrRedisClientNotConfigured)
}

func TestOpenCoordinatorWithRedisURL(testInstance *testing.T) {
	server := miniredis.RunT(testInstance)
	configuration := deploylock.DefaultCommandConfiguration()
	configuration.RedisURL = "redis://" + server.Addr() + "/0"
	configuration.Holder = "ci"

	coordinator, closeStore, openError := deploylock.OpenCoordinator(configuration, deploylock.Dependencies{})
	require.NoError(testInstance, openError)
	defer func() { require.NoError(testInstance, closeStore()) }()

	acquired, acquireError := coordinator.Acquire(context.Background())
	require.NoError(testInstance, acquireError)
	require.True(testInstance, acquired)
	storedValue, _ := server.Get(deploylock.DefaultLockNameConstant)
	require.Equal(testInstance, "ci", storedValue)
}

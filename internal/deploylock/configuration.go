package deploylock

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/remote"
	flagutils "github.com/temirov/deployutils/internal/utils/flags"
)

const (
	BackendRedisConstant = "redis"
	BackendCLIConstant   = "cli"

	defaultRedisURLConstant        = "redis://localhost:6379/0"
	unsupportedBackendTemplate     = "lock backend: %w"
	nameConfigurationKeySuffix     = ".name"
	backendConfigurationKeySuffix  = ".backend"
	redisURLConfigurationKeySuffix = ".redis_url"
	ttlConfigurationKeySuffix      = ".ttl"
)

// SupportedBackends lists accepted lock backend names.
var SupportedBackends = []string{BackendRedisConstant, BackendCLIConstant}

// CommandConfiguration describes where the deploy lock lives.
type CommandConfiguration struct {
	Name    string `mapstructure:"name"`
	Holder  string `mapstructure:"holder"`
	Backend string `mapstructure:"backend"`
	// RedisURL addresses the server for the redis backend.
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
	// Host runs redis-cli for the cli backend. Role supplies it when blank.
	Host         string   `mapstructure:"host"`
	Role         string   `mapstructure:"role"`
	CLIArguments []string `mapstructure:"cli_arguments"`
	User         string   `mapstructure:"user"`
}

// DefaultCommandConfiguration returns the baseline lock configuration.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Name:     DefaultLockNameConstant,
		Backend:  BackendRedisConstant,
		RedisURL: defaultRedisURLConstant,
	}
}

// DefaultConfigurationValues returns viper defaults rooted at the provided key.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		rootKey + nameConfigurationKeySuffix:     defaults.Name,
		rootKey + backendConfigurationKeySuffix:  defaults.Backend,
		rootKey + redisURLConfigurationKeySuffix: defaults.RedisURL,
		rootKey + ttlConfigurationKeySuffix:      defaults.TTL.String(),
	}
}

// Dependencies carries optional collaborators used when opening a coordinator.
type Dependencies struct {
	Logger              *zap.Logger
	RemoteConfiguration remote.Configuration
	// Runner is required by the cli backend.
	Runner remote.CommandRunner
	// Store bypasses backend selection when set.
	Store Store
}

// OpenCoordinator builds a Coordinator for the configured backend.
// The returned close function releases backend connections, not the lock.
func OpenCoordinator(configuration CommandConfiguration, dependencies Dependencies) (*Coordinator, func() error, error) {
	store, closeStore, storeError := openStore(configuration, dependencies)
	if storeError != nil {
		return nil, nil, storeError
	}
	name := configuration.Name
	if len(strings.TrimSpace(name)) == 0 {
		name = DefaultLockNameConstant
	}
	coordinator, coordinatorError := NewCoordinator(store, name, configuration.Holder, dependencies.Logger)
	if coordinatorError != nil {
		return nil, nil, errors.Join(coordinatorError, closeStore())
	}
	return coordinator, closeStore, nil
}

func openStore(configuration CommandConfiguration, dependencies Dependencies) (Store, func() error, error) {
	noClose := func() error { return nil }
	if dependencies.Store != nil {
		return dependencies.Store, noClose, nil
	}

	backend, backendError := flagutils.MatchChoice(configuration.Backend, BackendRedisConstant, SupportedBackends)
	if backendError != nil {
		return nil, nil, fmt.Errorf(unsupportedBackendTemplate, backendError)
	}

	switch backend {
	case BackendRedisConstant:
		redisURL := strings.TrimSpace(configuration.RedisURL)
		if len(redisURL) == 0 {
			redisURL = defaultRedisURLConstant
		}
		store, client, storeError := NewRedisStoreFromURL(redisURL, configuration.TTL)
		if storeError != nil {
			return nil, nil, storeError
		}
		return store, client.Close, nil
	case BackendCLIConstant:
		if dependencies.Runner == nil {
			return nil, nil, ErrCLIRunnerNotConfigured
		}
		host := strings.TrimSpace(configuration.Host)
		if len(host) == 0 {
			roleHosts, hostsError := dependencies.RemoteConfiguration.ResolveHosts(configuration.Role, nil)
			if hostsError != nil {
				return nil, nil, fmt.Errorf("%w: %w", ErrCLIHostNotConfigured, hostsError)
			}
			host = roleHosts[0]
		}
		return CLIStore{Runner: dependencies.Runner, Host: host, Arguments: configuration.CLIArguments, User: configuration.User}, noClose, nil
	default:
		return nil, nil, fmt.Errorf(unsupportedBackendTemplate, flagutils.ErrUnsupportedChoice)
	}
}

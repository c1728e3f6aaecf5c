package deploylock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/execshell"
	"github.com/temirov/deployutils/internal/remote"
	flagutils "github.com/temirov/deployutils/internal/utils/flags"
)

const (
	lockCommandUseConstant          = "lock"
	lockCommandShortDescription     = "Inspect and manage the deploy lock"
	lockCommandLongDescription      = "lock acquires, releases, or reports the deploy lock shared by every deployment of a project."
	acquireCommandUseConstant       = "acquire"
	acquireCommandShortDescription  = "Take the deploy lock or fail when it is held"
	releaseCommandUseConstant       = "release"
	releaseCommandShortDescription  = "Drop the deploy lock regardless of its holder"
	statusCommandUseConstant        = "status"
	statusCommandShortDescription   = "Report who holds the deploy lock"
	unexpectedArgumentsMessage      = "lock commands do not accept positional arguments"
	nameFlagNameConstant            = "name"
	nameFlagDescriptionConstant     = "Lock key"
	holderFlagNameConstant          = "holder"
	holderFlagDescriptionConstant   = "Value stored while the lock is held (default user@hostname)"
	backendFlagNameConstant         = "backend"
	backendFlagDescriptionConstant  = "Lock backend"
	redisURLFlagNameConstant        = "redis-url"
	redisURLFlagDescriptionConstant = "Redis URL for the redis backend"
	hostFlagNameConstant            = "host"
	hostFlagDescriptionConstant     = "Host running redis-cli for the cli backend"
	roleFlagNameConstant            = "role"
	roleFlagDescriptionConstant     = "Role whose first host runs redis-cli for the cli backend"
	acquiredOutputTemplateConstant  = "acquired %s as %s\n"
	releasedOutputTemplateConstant  = "released %s\n"
	heldOutputTemplateConstant      = "%s is held by %s\n"
	freeOutputTemplateConstant      = "%s is free\n"
	closeFailedLogMessageConstant   = "could not close lock store"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current lock configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the lock command group.
type CommandBuilder struct {
	LoggerProvider              LoggerProvider
	ConfigurationProvider       ConfigurationProvider
	RemoteConfigurationProvider remote.ConfigurationProvider
	CommandRunner               remote.CommandRunner
	CommandEventsObserver       execshell.CommandEventObserver
	Store                       Store
}

// Build constructs the lock command with its subcommands.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	lockCommand := &cobra.Command{
		Use:   lockCommandUseConstant,
		Short: lockCommandShortDescription,
		Long:  lockCommandLongDescription,
	}
	BindFlags(lockCommand, "")

	lockCommand.AddCommand(
		&cobra.Command{Use: acquireCommandUseConstant, Short: acquireCommandShortDescription, RunE: builder.runAcquire},
		&cobra.Command{Use: releaseCommandUseConstant, Short: releaseCommandShortDescription, RunE: builder.runRelease},
		&cobra.Command{Use: statusCommandUseConstant, Short: statusCommandShortDescription, RunE: builder.runStatus},
	)
	return lockCommand, nil
}

// BindFlags registers the lock location flags as persistent flags of command.
// The prefix keeps them apart from flags of commands that embed the lock.
func BindFlags(command *cobra.Command, prefix string) {
	command.PersistentFlags().String(prefix+nameFlagNameConstant, "", nameFlagDescriptionConstant)
	command.PersistentFlags().String(prefix+holderFlagNameConstant, "", holderFlagDescriptionConstant)
	command.PersistentFlags().String(prefix+backendFlagNameConstant, "", flagutils.FormatChoiceUsage(BackendRedisConstant, SupportedBackends, backendFlagDescriptionConstant))
	command.PersistentFlags().String(prefix+redisURLFlagNameConstant, "", redisURLFlagDescriptionConstant)
	command.PersistentFlags().String(prefix+hostFlagNameConstant, "", hostFlagDescriptionConstant)
	command.PersistentFlags().String(prefix+roleFlagNameConstant, "", roleFlagDescriptionConstant)
}

// ApplyFlags overrides configuration with prefixed lock flags that were set on command.
func ApplyFlags(command *cobra.Command, prefix string, configuration CommandConfiguration) CommandConfiguration {
	flags := command.Flags()
	overrides := []struct {
		flagName string
		target   *string
	}{
		{flagName: nameFlagNameConstant, target: &configuration.Name},
		{flagName: holderFlagNameConstant, target: &configuration.Holder},
		{flagName: backendFlagNameConstant, target: &configuration.Backend},
		{flagName: redisURLFlagNameConstant, target: &configuration.RedisURL},
		{flagName: hostFlagNameConstant, target: &configuration.Host},
		{flagName: roleFlagNameConstant, target: &configuration.Role},
	}
	for _, override := range overrides {
		prefixedName := prefix + override.flagName
		if flags.Lookup(prefixedName) == nil || !flags.Changed(prefixedName) {
			continue
		}
		flagValue, flagError := flags.GetString(prefixedName)
		if flagError == nil {
			*override.target = flagValue
		}
	}
	return configuration
}

func (builder *CommandBuilder) runAcquire(command *cobra.Command, arguments []string) error {
	return builder.withCoordinator(command, arguments, func(executionContext context.Context, coordinator *Coordinator) error {
		acquired, acquireError := coordinator.Acquire(executionContext)
		if acquireError != nil {
			return acquireError
		}
		if !acquired {
			return coordinator.describeHeldLock(executionContext)
		}
		_, writeError := fmt.Fprintf(command.OutOrStdout(), acquiredOutputTemplateConstant, coordinator.Name(), coordinator.holder)
		return writeError
	})
}

func (builder *CommandBuilder) runRelease(command *cobra.Command, arguments []string) error {
	return builder.withCoordinator(command, arguments, func(executionContext context.Context, coordinator *Coordinator) error {
		if releaseError := coordinator.Release(executionContext); releaseError != nil {
			return releaseError
		}
		_, writeError := fmt.Fprintf(command.OutOrStdout(), releasedOutputTemplateConstant, coordinator.Name())
		return writeError
	})
}

func (builder *CommandBuilder) runStatus(command *cobra.Command, arguments []string) error {
	return builder.withCoordinator(command, arguments, func(executionContext context.Context, coordinator *Coordinator) error {
		holder, held, holderError := coordinator.Holder(executionContext)
		if holderError != nil {
			return holderError
		}
		if held {
			_, writeError := fmt.Fprintf(command.OutOrStdout(), heldOutputTemplateConstant, coordinator.Name(), holder)
			return writeError
		}
		_, writeError := fmt.Fprintf(command.OutOrStdout(), freeOutputTemplateConstant, coordinator.Name())
		return writeError
	})
}

func (builder *CommandBuilder) withCoordinator(command *cobra.Command, arguments []string, action func(context.Context, *Coordinator) error) error {
	if len(arguments) > 0 {
		return errors.New(unexpectedArgumentsMessage)
	}

	logger := builder.resolveLogger()
	configuration := ApplyFlags(command, "", builder.resolveConfiguration())
	dependencies, dependenciesError := ResolveDependencies(configuration, logger, remote.ResolveConfiguration(builder.RemoteConfigurationProvider), builder.CommandRunner, builder.CommandEventsObserver)
	if dependenciesError != nil {
		return dependenciesError
	}
	dependencies.Store = builder.Store

	coordinator, closeStore, openError := OpenCoordinator(configuration, dependencies)
	if openError != nil {
		return openError
	}
	defer func() {
		if closeError := closeStore(); closeError != nil {
			logger.Warn(closeFailedLogMessageConstant, zap.Error(closeError))
		}
	}()

	return action(command.Context(), coordinator)
}

// ResolveDependencies prepares the collaborators needed by the configured backend.
// A command runner is only constructed for the cli backend.
func ResolveDependencies(configuration CommandConfiguration, logger *zap.Logger, remoteConfiguration remote.Configuration, runner remote.CommandRunner, observer execshell.CommandEventObserver) (Dependencies, error) {
	dependencies := Dependencies{Logger: logger, RemoteConfiguration: remoteConfiguration, Runner: runner}
	if !strings.EqualFold(strings.TrimSpace(configuration.Backend), BackendCLIConstant) || runner != nil {
		return dependencies, nil
	}
	resolvedRunner, runnerError := remote.ResolveCommandRunner(nil, logger, remoteConfiguration, observer)
	if runnerError != nil {
		return Dependencies{}, runnerError
	}
	dependencies.Runner = resolvedRunner
	return dependencies, nil
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

package cleanup

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/deploylock"
	"github.com/temirov/deployutils/internal/execshell"
	"github.com/temirov/deployutils/internal/remote"
	"github.com/temirov/deployutils/internal/teamcity"
)

const (
	commandUseConstant                = "prune"
	commandShortDescriptionConstant   = "Destroy branch deployments that went stale"
	commandLongDescriptionConstant    = "prune lists branch containers of a project on every host and destroys the branches deployed at least --days ago, skipping protected branches."
	unexpectedArgumentsMessage        = "prune does not accept positional arguments"
	daysFlagNameConstant              = "days"
	daysFlagDescriptionConstant       = "Destroy branches deployed this many days ago or earlier"
	dryRunFlagNameConstant            = "dry-run"
	dryRunFlagDescriptionConstant     = "Report stale branches without destroying them"
	protectedFlagNameConstant         = "protected"
	protectedFlagDescriptionConstant  = "Branch slugs that are never destroyed"
	roleFlagNameConstant              = "role"
	roleFlagDescriptionConstant       = "Configured role whose hosts run the branch containers"
	hostsFlagNameConstant             = "hosts"
	hostsFlagDescriptionConstant      = "Explicit hosts (overrides --role)"
	projectLabelFlagNameConstant      = "project-label"
	projectLabelFlagDescription       = "Container label holding the project name"
	projectNameFlagNameConstant       = "project-name"
	projectNameFlagDescription        = "Project whose branch containers are inspected"
	branchLabelFlagNameConstant       = "branch-label"
	branchLabelFlagDescription        = "Container label holding the branch slug"
	destroyCommandFlagNameConstant    = "destroy-command"
	destroyCommandFlagDescription     = "Shell command destroying a branch; {slug} is replaced with the branch slug"
	destroyUserFlagNameConstant       = "destroy-user"
	destroyUserFlagDescription        = "Run the destroy command through sudo as this user"
	teamCityFlagNameConstant          = "teamcity"
	teamCityFlagDescriptionConstant   = "Emit TeamCity service messages even outside TeamCity"
	respectLockFlagNameConstant       = "respect-lock"
	respectLockFlagDescription        = "Abort when the deploy lock is held"
	summaryOutputTemplateConstant     = "attempted: %d, failures: %d\n"
	lockCloseFailedLogMessageConstant = "could not close lock store"
	lockFlagPrefixConstant            = "lock-"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current prune configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the prune command.
type CommandBuilder struct {
	LoggerProvider              LoggerProvider
	ConfigurationProvider       ConfigurationProvider
	RemoteConfigurationProvider remote.ConfigurationProvider
	LockConfigurationProvider   deploylock.ConfigurationProvider
	CommandRunner               remote.CommandRunner
	CommandEventsObserver       execshell.CommandEventObserver
	LockStore                   deploylock.Store
	Clock                       func() time.Time
	EnvironmentLookup           teamcity.EnvironmentLookup
}

// Build constructs the cobra command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	defaults := DefaultCommandConfiguration()
	command.Flags().Int(daysFlagNameConstant, defaults.Days, daysFlagDescriptionConstant)
	command.Flags().Bool(dryRunFlagNameConstant, false, dryRunFlagDescriptionConstant)
	command.Flags().StringSlice(protectedFlagNameConstant, defaults.Protected, protectedFlagDescriptionConstant)
	command.Flags().String(roleFlagNameConstant, "", roleFlagDescriptionConstant)
	command.Flags().StringSlice(hostsFlagNameConstant, nil, hostsFlagDescriptionConstant)
	command.Flags().String(projectLabelFlagNameConstant, defaults.ProjectLabel, projectLabelFlagDescription)
	command.Flags().String(projectNameFlagNameConstant, "", projectNameFlagDescription)
	command.Flags().String(branchLabelFlagNameConstant, defaults.BranchLabel, branchLabelFlagDescription)
	command.Flags().String(destroyCommandFlagNameConstant, "", destroyCommandFlagDescription)
	command.Flags().String(destroyUserFlagNameConstant, "", destroyUserFlagDescription)
	command.Flags().Bool(teamCityFlagNameConstant, false, teamCityFlagDescriptionConstant)
	command.Flags().Bool(respectLockFlagNameConstant, false, respectLockFlagDescription)
	deploylock.BindFlags(command, lockFlagPrefixConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(unexpectedArgumentsMessage)
	}

	configuration := builder.parseConfiguration(command)
	logger := builder.resolveLogger()
	remoteConfiguration := remote.ResolveConfiguration(builder.RemoteConfigurationProvider)

	hosts, hostsError := remoteConfiguration.ResolveHosts(configuration.Role, configuration.Hosts)
	if hostsError != nil {
		return hostsError
	}

	runner, runnerError := remote.ResolveCommandRunner(builder.CommandRunner, logger, remoteConfiguration, builder.CommandEventsObserver)
	if runnerError != nil {
		return runnerError
	}

	if configuration.RespectLock {
		if lockError := builder.ensureLockFree(command, logger, remoteConfiguration, runner); lockError != nil {
			return lockError
		}
	}

	lister := DockerBranchLister{
		Runner:       runner,
		Hosts:        hosts,
		ProjectLabel: configuration.ProjectLabel,
		ProjectName:  configuration.ProjectName,
		BranchLabel:  configuration.BranchLabel,
		Clock:        builder.Clock,
		Logger:       logger,
	}
	if _, listerError := lister.Command(); listerError != nil {
		return listerError
	}

	var destroyer Destroyer
	if !configuration.DryRun {
		commandDestroyer := CommandDestroyer{Runner: runner, Hosts: hosts, CommandTemplate: configuration.DestroyCommand, User: configuration.DestroyUser}
		if _, renderError := commandDestroyer.Render(""); renderError != nil {
			return renderError
		}
		destroyer = commandDestroyer
	}

	reporter := teamcity.NewReporter(command.OutOrStdout(), logger, teamcity.Options{Force: configuration.TeamCity, LookupEnvironment: builder.EnvironmentLookup})
	reaper := NewReaper(logger, reporter)
	summary, pruneError := reaper.Prune(command.Context(), lister, destroyer, Options{
		Days:                 configuration.Days,
		DryRun:               configuration.DryRun,
		ProtectedIdentifiers: configuration.Protected,
	})
	if pruneError != nil {
		return pruneError
	}

	if !reporter.Enabled() {
		_, writeError := fmt.Fprintf(command.OutOrStdout(), summaryOutputTemplateConstant, summary.Attempted, summary.Failures)
		return writeError
	}
	return nil
}

func (builder *CommandBuilder) ensureLockFree(command *cobra.Command, logger *zap.Logger, remoteConfiguration remote.Configuration, runner remote.CommandRunner) error {
	lockConfiguration := deploylock.DefaultCommandConfiguration()
	if builder.LockConfigurationProvider != nil {
		lockConfiguration = builder.LockConfigurationProvider()
	}
	lockConfiguration = deploylock.ApplyFlags(command, lockFlagPrefixConstant, lockConfiguration)

	coordinator, closeStore, openError := deploylock.OpenCoordinator(lockConfiguration, deploylock.Dependencies{
		Logger:              logger,
		RemoteConfiguration: remoteConfiguration,
		Runner:              runner,
		Store:               builder.LockStore,
	})
	if openError != nil {
		return openError
	}
	defer func() {
		if closeError := closeStore(); closeError != nil {
			logger.Warn(lockCloseFailedLogMessageConstant, zap.Error(closeError))
		}
	}()
	return coordinator.EnsureFree(command.Context())
}

func (builder *CommandBuilder) parseConfiguration(command *cobra.Command) CommandConfiguration {
	configuration := DefaultCommandConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}
	flags := command.Flags()

	if flags.Changed(daysFlagNameConstant) {
		configuration.Days, _ = flags.GetInt(daysFlagNameConstant)
	}
	if flags.Changed(dryRunFlagNameConstant) {
		configuration.DryRun, _ = flags.GetBool(dryRunFlagNameConstant)
	}
	if flags.Changed(protectedFlagNameConstant) {
		configuration.Protected, _ = flags.GetStringSlice(protectedFlagNameConstant)
	}
	if flags.Changed(roleFlagNameConstant) {
		configuration.Role, _ = flags.GetString(roleFlagNameConstant)
	}
	if flags.Changed(hostsFlagNameConstant) {
		configuration.Hosts, _ = flags.GetStringSlice(hostsFlagNameConstant)
	}
	if flags.Changed(projectLabelFlagNameConstant) {
		configuration.ProjectLabel, _ = flags.GetString(projectLabelFlagNameConstant)
	}
	if flags.Changed(projectNameFlagNameConstant) {
		configuration.ProjectName, _ = flags.GetString(projectNameFlagNameConstant)
	}
	if flags.Changed(branchLabelFlagNameConstant) {
		configuration.BranchLabel, _ = flags.GetString(branchLabelFlagNameConstant)
	}
	if flags.Changed(destroyCommandFlagNameConstant) {
		configuration.DestroyCommand, _ = flags.GetString(destroyCommandFlagNameConstant)
	}
	if flags.Changed(destroyUserFlagNameConstant) {
		configuration.DestroyUser, _ = flags.GetString(destroyUserFlagNameConstant)
	}
	if flags.Changed(teamCityFlagNameConstant) {
		configuration.TeamCity, _ = flags.GetBool(teamCityFlagNameConstant)
	}
	if flags.Changed(respectLockFlagNameConstant) {
		configuration.RespectLock, _ = flags.GetBool(respectLockFlagNameConstant)
	}
	return configuration
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

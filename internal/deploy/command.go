package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/branchname"
	"github.com/temirov/deployutils/internal/deploylock"
	"github.com/temirov/deployutils/internal/execshell"
	"github.com/temirov/deployutils/internal/health"
	"github.com/temirov/deployutils/internal/remote"
	"github.com/temirov/deployutils/internal/swarm"
	"github.com/temirov/deployutils/internal/task"
	"github.com/temirov/deployutils/internal/teamcity"
)

const (
	commandUseConstant              = "deploy [branch]"
	commandShortDescriptionConstant = "Deploy a branch to its hosts"
	commandLongDescriptionConstant  = "deploy resolves the branch, takes the deploy lock, runs the configured command on every host, and waits for the hosts to report healthy. Progress is reported to TeamCity when running under it."
	tooManyArgumentsMessage         = "deploy accepts at most one branch"
	roleFlagNameConstant            = "role"
	roleFlagDescription             = "Role whose hosts receive the deployment"
	hostsFlagNameConstant           = "hosts"
	hostsFlagDescription            = "Explicit hosts (overrides --role)"
	commandFlagNameConstant         = "command"
	commandFlagDescription          = "Command run on each host; {branch}, {slug}, and {node} are substituted"
	userFlagNameConstant            = "user"
	userFlagDescription             = "Run the command through sudo as this user"
	requireBranchFlagNameConstant   = "require-branch"
	requireBranchFlagDescription    = "Only deploy these branches"
	forceFlagNameConstant           = "force"
	forceFlagDescription            = "Deploy regardless of --require-branch"
	repositoryFlagNameConstant      = "repository"
	repositoryFlagDescription       = "Local git checkout used to detect the branch"
	teamCityFlagNameConstant        = "teamcity"
	teamCityFlagDescription         = "Emit TeamCity service messages outside TeamCity"
	noLockFlagNameConstant          = "no-lock"
	noLockFlagDescription           = "Deploy without holding the deploy lock"
	noWaitFlagNameConstant          = "no-wait"
	noWaitFlagDescription           = "Skip the health wait"
	swarmFlagNameConstant           = "swarm"
	swarmFlagDescription            = "Run the command once on a healthy swarm manager"
	dryRunFlagNameConstant          = "dry-run"
	dryRunFlagDescription           = "Resolve everything but skip the deploy command"
	urlFlagNameConstant             = "url"
	urlFlagDescription              = "URL probed on every host after the deployment"
	lockFlagPrefixConstant          = "lock-"
	teamCityTestNameConstant        = "deploy"
	teamCitySuiteNameConstant       = "deploy"
	deployedParameterNameConstant   = "env.DEPLOYED_SLUG"
	lockCloseFailedLogMessage       = "could not close lock store"
	waitTargetTemplateConstant      = "%s on %s"
	hostsSeparatorConstant          = ", "
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current deploy configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the deploy command.
type CommandBuilder struct {
	LoggerProvider              LoggerProvider
	ConfigurationProvider       ConfigurationProvider
	RemoteConfigurationProvider remote.ConfigurationProvider
	BranchConfigurationProvider func() branchname.Configuration
	HealthConfigurationProvider func() health.CommandConfiguration
	LockConfigurationProvider   func() deploylock.CommandConfiguration
	SwarmConfigurationProvider  func() swarm.CommandConfiguration
	CommandRunner               remote.CommandRunner
	CommandEventsObserver       execshell.CommandEventObserver
	GitExecutor                 branchname.GitExecutor
	LockStore                   deploylock.Store
	Sleeper                     health.Sleeper
	Chooser                     swarm.Chooser
	EnvironmentLookup           func(name string) (string, bool)
}

// Build constructs the cobra command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	command.Flags().String(roleFlagNameConstant, "", roleFlagDescription)
	command.Flags().StringSlice(hostsFlagNameConstant, nil, hostsFlagDescription)
	command.Flags().String(commandFlagNameConstant, "", commandFlagDescription)
	command.Flags().String(userFlagNameConstant, "", userFlagDescription)
	command.Flags().StringSlice(requireBranchFlagNameConstant, nil, requireBranchFlagDescription)
	command.Flags().Bool(forceFlagNameConstant, false, forceFlagDescription)
	command.Flags().String(repositoryFlagNameConstant, "", repositoryFlagDescription)
	command.Flags().Bool(teamCityFlagNameConstant, false, teamCityFlagDescription)
	command.Flags().Bool(noLockFlagNameConstant, false, noLockFlagDescription)
	command.Flags().Bool(noWaitFlagNameConstant, false, noWaitFlagDescription)
	command.Flags().Bool(swarmFlagNameConstant, false, swarmFlagDescription)
	command.Flags().Bool(dryRunFlagNameConstant, false, dryRunFlagDescription)
	command.Flags().String(urlFlagNameConstant, "", urlFlagDescription)
	deploylock.BindFlags(command, lockFlagPrefixConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 1 {
		return errors.New(tooManyArgumentsMessage)
	}
	explicitBranch := ""
	if len(arguments) == 1 {
		explicitBranch = arguments[0]
	}

	configuration := builder.parseConfiguration(command)
	dryRun, _ := command.Flags().GetBool(dryRunFlagNameConstant)
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
	if _, renderError := RenderCommand(configuration.Command, task.Request{}); renderError != nil {
		return renderError
	}

	branchMiddleware, branchError := builder.branchMiddleware(configuration, logger)
	if branchError != nil {
		return branchError
	}

	reporter := teamcity.NewReporter(command.OutOrStdout(), logger, teamcity.Options{Force: configuration.TeamCity, LookupEnvironment: builder.EnvironmentLookup})
	middlewares := []task.Middleware{branchMiddleware, teamcity.Report(reporter, teamCityTestNameConstant)}

	if configuration.Lock {
		coordinator, closeStore, lockError := builder.openCoordinator(command, logger, remoteConfiguration, runner)
		if lockError != nil {
			return lockError
		}
		defer func() {
			if closeError := closeStore(); closeError != nil {
				logger.Warn(lockCloseFailedLogMessage, zap.Error(closeError))
			}
		}()
		middlewares = append(middlewares, coordinator.Guard())
	}

	if configuration.Swarm {
		managerHosts, managerError := builder.swarmManagers(remoteConfiguration)
		if managerError != nil {
			return managerError
		}
		middlewares = append(middlewares, swarm.WithManager(swarm.Manager{Runner: runner, Choose: builder.Chooser, Logger: logger}, managerHosts))
	}

	workflow := Workflow{Runner: runner, CommandTemplate: configuration.Command, User: configuration.User, Logger: logger}
	if configuration.Wait {
		healthWait, waitError := builder.healthWait(command, logger, hosts)
		if waitError != nil {
			return waitError
		}
		workflow.Wait = healthWait
	}

	operation := task.Chain(func(executionContext context.Context, request task.Request) error {
		if operationError := workflow.Operation()(executionContext, request); operationError != nil {
			return operationError
		}
		reporter.SetParameter(deployedParameterNameConstant, request.Slug)
		return nil
	}, middlewares...)

	reporter.TestSuiteStarted(teamCitySuiteNameConstant)
	defer reporter.TestSuiteFinished(teamCitySuiteNameConstant)
	return operation(command.Context(), task.Request{Branch: explicitBranch, Hosts: hosts, DryRun: dryRun})
}

func (builder *CommandBuilder) branchMiddleware(configuration CommandConfiguration, logger *zap.Logger) (task.Middleware, error) {
	branchConfiguration := branchname.Configuration{}
	if builder.BranchConfigurationProvider != nil {
		branchConfiguration = builder.BranchConfigurationProvider()
	}
	pattern, patternError := branchConfiguration.CompilePattern()
	if patternError != nil {
		return nil, patternError
	}

	gitExecutor := builder.GitExecutor
	if gitExecutor == nil {
		resolvedExecutor, executorError := branchname.ResolveGitExecutor(logger, builder.CommandEventsObserver)
		if executorError != nil {
			return nil, executorError
		}
		gitExecutor = resolvedExecutor
	}

	resolver := branchname.Resolver{Git: gitExecutor, WorkingDirectory: configuration.Repository, LookupEnvironment: builder.EnvironmentLookup}
	return branchname.Require(resolver, branchname.RequireOptions{
		RequiredBranches: configuration.RequiredBranches,
		Force:            configuration.Force,
		Pattern:          pattern,
		Logger:           logger,
	}), nil
}

func (builder *CommandBuilder) openCoordinator(command *cobra.Command, logger *zap.Logger, remoteConfiguration remote.Configuration, runner remote.CommandRunner) (*deploylock.Coordinator, func() error, error) {
	lockConfiguration := deploylock.DefaultCommandConfiguration()
	if builder.LockConfigurationProvider != nil {
		lockConfiguration = builder.LockConfigurationProvider()
	}
	lockConfiguration = deploylock.ApplyFlags(command, lockFlagPrefixConstant, lockConfiguration)
	return deploylock.OpenCoordinator(lockConfiguration, deploylock.Dependencies{
		Logger:              logger,
		RemoteConfiguration: remoteConfiguration,
		Runner:              runner,
		Store:               builder.LockStore,
	})
}

func (builder *CommandBuilder) swarmManagers(remoteConfiguration remote.Configuration) ([]string, error) {
	swarmConfiguration := swarm.DefaultCommandConfiguration()
	if builder.SwarmConfigurationProvider != nil {
		swarmConfiguration = builder.SwarmConfigurationProvider()
	}
	return remoteConfiguration.ResolveHosts(swarmConfiguration.Role, swarmConfiguration.Hosts)
}

// healthWait returns nil when no probe target is configured.
func (builder *CommandBuilder) healthWait(command *cobra.Command, logger *zap.Logger, hosts []string) (*HealthWait, error) {
	healthConfiguration := health.DefaultCommandConfiguration()
	if builder.HealthConfigurationProvider != nil {
		healthConfiguration = builder.HealthConfigurationProvider()
	}
	if command.Flags().Changed(urlFlagNameConstant) {
		healthConfiguration.URL, _ = command.Flags().GetString(urlFlagNameConstant)
	}
	if len(strings.TrimSpace(healthConfiguration.URL)) == 0 {
		return nil, nil
	}

	probe := health.BuildProbe(healthConfiguration)
	if _, probeError := probe.Command(); probeError != nil {
		return nil, probeError
	}
	quorum, quorumError := health.ParseQuorum(healthConfiguration.Quorum)
	if quorumError != nil {
		return nil, quorumError
	}
	pollInterval := healthConfiguration.PollInterval
	if pollInterval <= 0 {
		pollInterval = health.DefaultCommandConfiguration().PollInterval
	}

	return &HealthWait{
		Poller: health.NewPoller(logger, builder.Sleeper),
		Probe:  probe,
		Options: health.Options{
			Target:       fmt.Sprintf(waitTargetTemplateConstant, strings.TrimSpace(healthConfiguration.URL), strings.Join(hosts, hostsSeparatorConstant)),
			PollInterval: pollInterval,
			MaxWait:      healthConfiguration.MaxWait,
			Quorum:       quorum,
			WarnOnly:     healthConfiguration.WarnOnly,
		},
	}, nil
}

func (builder *CommandBuilder) parseConfiguration(command *cobra.Command) CommandConfiguration {
	configuration := DefaultCommandConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}
	flags := command.Flags()

	if flags.Changed(roleFlagNameConstant) {
		configuration.Role, _ = flags.GetString(roleFlagNameConstant)
	}
	if flags.Changed(hostsFlagNameConstant) {
		configuration.Hosts, _ = flags.GetStringSlice(hostsFlagNameConstant)
	}
	if flags.Changed(commandFlagNameConstant) {
		configuration.Command, _ = flags.GetString(commandFlagNameConstant)
	}
	if flags.Changed(userFlagNameConstant) {
		configuration.User, _ = flags.GetString(userFlagNameConstant)
	}
	if flags.Changed(requireBranchFlagNameConstant) {
		configuration.RequiredBranches, _ = flags.GetStringSlice(requireBranchFlagNameConstant)
	}
	if flags.Changed(forceFlagNameConstant) {
		configuration.Force, _ = flags.GetBool(forceFlagNameConstant)
	}
	if flags.Changed(repositoryFlagNameConstant) {
		configuration.Repository, _ = flags.GetString(repositoryFlagNameConstant)
	}
	if flags.Changed(teamCityFlagNameConstant) {
		configuration.TeamCity, _ = flags.GetBool(teamCityFlagNameConstant)
	}
	if flags.Changed(noLockFlagNameConstant) {
		noLock, _ := flags.GetBool(noLockFlagNameConstant)
		configuration.Lock = !noLock
	}
	if flags.Changed(noWaitFlagNameConstant) {
		noWait, _ := flags.GetBool(noWaitFlagNameConstant)
		configuration.Wait = !noWait
	}
	if flags.Changed(swarmFlagNameConstant) {
		configuration.Swarm, _ = flags.GetBool(swarmFlagNameConstant)
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

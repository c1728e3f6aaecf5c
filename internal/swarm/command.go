package swarm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/execshell"
	"github.com/temirov/deployutils/internal/remote"
)

const (
	swarmCommandUseConstant         = "swarm"
	swarmCommandShortDescription    = "Operate a Docker swarm through its managers"
	managerCommandUseConstant       = "manager"
	managerCommandShortDescription  = "Print a healthy swarm manager"
	restartCommandUseConstant       = "restart <value>"
	restartCommandShortDescription  = "Force-restart stack services carrying a label value"
	managerArgumentsMessage         = "manager does not accept positional arguments"
	restartArgumentsMessage         = "restart requires exactly one label value"
	roleFlagNameConstant            = "role"
	roleFlagDescriptionConstant     = "Role listing the swarm managers"
	hostsFlagNameConstant           = "hosts"
	hostsFlagDescriptionConstant    = "Explicit manager hosts (overrides --role)"
	stackFlagNameConstant           = "stack"
	stackFlagDescriptionConstant    = "Stack whose services are restarted"
	labelFlagNameConstant           = "label"
	labelFlagDescriptionConstant    = "Service label matched against the value"
	noSerialFlagNameConstant        = "no-serial"
	noSerialFlagDescription         = "Update every replica at once"
	noWaitFlagNameConstant          = "no-wait"
	noWaitFlagDescription           = "Stop old tasks after one second"
	restartedOutputTemplateConstant = "restarted %s\n"
	managerOutputTemplateConstant   = "%s\n"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current swarm configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the swarm command group.
type CommandBuilder struct {
	LoggerProvider              LoggerProvider
	ConfigurationProvider       ConfigurationProvider
	RemoteConfigurationProvider remote.ConfigurationProvider
	CommandRunner               remote.CommandRunner
	CommandEventsObserver       execshell.CommandEventObserver
	Chooser                     Chooser
}

// Build constructs the swarm command with its subcommands.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	swarmCommand := &cobra.Command{
		Use:   swarmCommandUseConstant,
		Short: swarmCommandShortDescription,
	}
	swarmCommand.PersistentFlags().String(roleFlagNameConstant, "", roleFlagDescriptionConstant)
	swarmCommand.PersistentFlags().StringSlice(hostsFlagNameConstant, nil, hostsFlagDescriptionConstant)

	restartCommand := &cobra.Command{
		Use:   restartCommandUseConstant,
		Short: restartCommandShortDescription,
		RunE:  builder.runRestart,
	}
	restartCommand.Flags().String(stackFlagNameConstant, "", stackFlagDescriptionConstant)
	restartCommand.Flags().String(labelFlagNameConstant, "", labelFlagDescriptionConstant)
	restartCommand.Flags().Bool(noSerialFlagNameConstant, false, noSerialFlagDescription)
	restartCommand.Flags().Bool(noWaitFlagNameConstant, false, noWaitFlagDescription)

	swarmCommand.AddCommand(
		&cobra.Command{Use: managerCommandUseConstant, Short: managerCommandShortDescription, RunE: builder.runManager},
		restartCommand,
	)
	return swarmCommand, nil
}

func (builder *CommandBuilder) runManager(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(managerArgumentsMessage)
	}
	manager, hosts, prepareError := builder.prepare(command, builder.parseConfiguration(command))
	if prepareError != nil {
		return prepareError
	}
	selectedHost, selectError := manager.SelectManager(command.Context(), hosts)
	if selectError != nil {
		return selectError
	}
	_, _ = fmt.Fprintf(command.OutOrStdout(), managerOutputTemplateConstant, selectedHost)
	return nil
}

func (builder *CommandBuilder) runRestart(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return errors.New(restartArgumentsMessage)
	}
	configuration := builder.parseConfiguration(command)
	manager, hosts, prepareError := builder.prepare(command, configuration)
	if prepareError != nil {
		return prepareError
	}

	selectedHost, selectError := manager.SelectManager(command.Context(), hosts)
	if selectError != nil {
		return selectError
	}
	restartedServices, restartError := manager.RestartServices(command.Context(), selectedHost, RestartOptions{
		Label:    configuration.Label,
		Value:    arguments[0],
		Stack:    configuration.Stack,
		NoSerial: configuration.NoSerial,
		NoWait:   configuration.NoWait,
	})
	if restartError != nil {
		return restartError
	}
	for _, serviceName := range restartedServices {
		_, _ = fmt.Fprintf(command.OutOrStdout(), restartedOutputTemplateConstant, serviceName)
	}
	return nil
}

func (builder *CommandBuilder) parseConfiguration(command *cobra.Command) CommandConfiguration {
	configuration := builder.resolveConfiguration()
	flags := command.Flags()
	if flags.Changed(roleFlagNameConstant) {
		configuration.Role, _ = flags.GetString(roleFlagNameConstant)
	}
	if flags.Changed(hostsFlagNameConstant) {
		configuration.Hosts, _ = flags.GetStringSlice(hostsFlagNameConstant)
	}
	if flags.Lookup(stackFlagNameConstant) != nil && flags.Changed(stackFlagNameConstant) {
		configuration.Stack, _ = flags.GetString(stackFlagNameConstant)
	}
	if flags.Lookup(labelFlagNameConstant) != nil && flags.Changed(labelFlagNameConstant) {
		configuration.Label, _ = flags.GetString(labelFlagNameConstant)
	}
	if flags.Lookup(noSerialFlagNameConstant) != nil && flags.Changed(noSerialFlagNameConstant) {
		configuration.NoSerial, _ = flags.GetBool(noSerialFlagNameConstant)
	}
	if flags.Lookup(noWaitFlagNameConstant) != nil && flags.Changed(noWaitFlagNameConstant) {
		configuration.NoWait, _ = flags.GetBool(noWaitFlagNameConstant)
	}
	return configuration
}

func (builder *CommandBuilder) prepare(command *cobra.Command, configuration CommandConfiguration) (Manager, []string, error) {
	remoteConfiguration := remote.ResolveConfiguration(builder.RemoteConfigurationProvider)
	hosts, hostsError := remoteConfiguration.ResolveHosts(configuration.Role, configuration.Hosts)
	if hostsError != nil {
		return Manager{}, nil, hostsError
	}
	logger := builder.resolveLogger()
	runner, runnerError := remote.ResolveCommandRunner(builder.CommandRunner, logger, remoteConfiguration, builder.CommandEventsObserver)
	if runnerError != nil {
		return Manager{}, nil, runnerError
	}
	return Manager{Runner: runner, Choose: builder.Chooser, Logger: logger}, hosts, nil
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	configuration := builder.ConfigurationProvider()
	if len(strings.TrimSpace(configuration.Role)) == 0 && len(configuration.Hosts) == 0 {
		configuration.Role = defaultManagerRoleConstant
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

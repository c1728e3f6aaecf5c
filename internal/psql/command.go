package psql

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/execshell"
	"github.com/temirov/deployutils/internal/remote"
)

const (
	psqlCommandUseConstant          = "psql"
	psqlCommandShortDescription     = "Run SQL on the database host as the postgres user"
	execCommandUseConstant          = "exec <sql>"
	execCommandShortDescription     = "Run one SQL statement"
	createCommandUseConstant        = "createdb <name>"
	createCommandShortDescription   = "Create a database"
	dropCommandUseConstant          = "dropdb <name>"
	dropCommandShortDescription     = "Drop a database"
	singleArgumentTemplateConstant  = "%s requires exactly one argument"
	hostFlagNameConstant            = "host"
	hostFlagDescriptionConstant     = "Database host"
	roleFlagNameConstant            = "role"
	roleFlagDescriptionConstant     = "Role whose first host runs postgres"
	databaseFlagNameConstant        = "database"
	databaseFlagDescriptionConstant = "Database psql connects to"
	userFlagNameConstant            = "user"
	userFlagDescriptionConstant     = "Operating system user running psql"
	ownerFlagNameConstant           = "owner"
	ownerFlagDescriptionConstant    = "Owner of the created database"
	optionFlagNameConstant          = "option"
	optionFlagDescriptionConstant   = "Extra CREATE DATABASE option as KEY=value (repeatable)"
	createdOutputTemplateConstant   = "created %s\n"
	droppedOutputTemplateConstant   = "dropped %s\n"
	optionSeparatorRuneConstant     = "="
	invalidOptionTemplateConstant   = "invalid option %q: expected KEY=value"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current psql configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the psql command group.
type CommandBuilder struct {
	LoggerProvider              LoggerProvider
	ConfigurationProvider       ConfigurationProvider
	RemoteConfigurationProvider remote.ConfigurationProvider
	CommandRunner               remote.CommandRunner
	CommandEventsObserver       execshell.CommandEventObserver
}

// Build constructs the psql command with its subcommands.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	psqlCommand := &cobra.Command{
		Use:   psqlCommandUseConstant,
		Short: psqlCommandShortDescription,
	}
	psqlCommand.PersistentFlags().String(hostFlagNameConstant, "", hostFlagDescriptionConstant)
	psqlCommand.PersistentFlags().String(roleFlagNameConstant, "", roleFlagDescriptionConstant)
	psqlCommand.PersistentFlags().String(databaseFlagNameConstant, "", databaseFlagDescriptionConstant)
	psqlCommand.PersistentFlags().String(userFlagNameConstant, "", userFlagDescriptionConstant)

	createCommand := &cobra.Command{Use: createCommandUseConstant, Short: createCommandShortDescription, RunE: builder.runCreate}
	createCommand.Flags().String(ownerFlagNameConstant, "", ownerFlagDescriptionConstant)
	createCommand.Flags().StringArray(optionFlagNameConstant, nil, optionFlagDescriptionConstant)

	psqlCommand.AddCommand(
		&cobra.Command{Use: execCommandUseConstant, Short: execCommandShortDescription, RunE: builder.runExec},
		createCommand,
		&cobra.Command{Use: dropCommandUseConstant, Short: dropCommandShortDescription, RunE: builder.runDrop},
	)
	return psqlCommand, nil
}

func (builder *CommandBuilder) runExec(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return fmt.Errorf(singleArgumentTemplateConstant, command.Name())
	}
	client, clientError := builder.buildClient(command)
	if clientError != nil {
		return clientError
	}
	output, execError := client.Exec(command.Context(), arguments[0])
	if execError != nil {
		return execError
	}
	_, _ = fmt.Fprint(command.OutOrStdout(), output)
	return nil
}

func (builder *CommandBuilder) runCreate(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return fmt.Errorf(singleArgumentTemplateConstant, command.Name())
	}
	owner, _ := command.Flags().GetString(ownerFlagNameConstant)
	rawOptions, _ := command.Flags().GetStringArray(optionFlagNameConstant)
	options, optionsError := parseOptions(rawOptions)
	if optionsError != nil {
		return optionsError
	}

	client, clientError := builder.buildClient(command)
	if clientError != nil {
		return clientError
	}
	if createError := client.CreateDatabase(command.Context(), arguments[0], owner, options); createError != nil {
		return createError
	}
	_, _ = fmt.Fprintf(command.OutOrStdout(), createdOutputTemplateConstant, arguments[0])
	return nil
}

func (builder *CommandBuilder) runDrop(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return fmt.Errorf(singleArgumentTemplateConstant, command.Name())
	}
	client, clientError := builder.buildClient(command)
	if clientError != nil {
		return clientError
	}
	if dropError := client.DropDatabase(command.Context(), arguments[0]); dropError != nil {
		return dropError
	}
	_, _ = fmt.Fprintf(command.OutOrStdout(), droppedOutputTemplateConstant, arguments[0])
	return nil
}

func (builder *CommandBuilder) buildClient(command *cobra.Command) (Client, error) {
	configuration := builder.resolveConfiguration()
	flags := command.Flags()
	if flags.Changed(hostFlagNameConstant) {
		configuration.Host, _ = flags.GetString(hostFlagNameConstant)
	}
	if flags.Changed(roleFlagNameConstant) {
		configuration.Role, _ = flags.GetString(roleFlagNameConstant)
	}
	if flags.Changed(databaseFlagNameConstant) {
		configuration.Database, _ = flags.GetString(databaseFlagNameConstant)
	}
	if flags.Changed(userFlagNameConstant) {
		configuration.User, _ = flags.GetString(userFlagNameConstant)
	}

	remoteConfiguration := remote.ResolveConfiguration(builder.RemoteConfigurationProvider)
	host := strings.TrimSpace(configuration.Host)
	if len(host) == 0 {
		roleHosts, hostsError := remoteConfiguration.ResolveHosts(configuration.Role, nil)
		if hostsError != nil {
			return Client{}, hostsError
		}
		host = roleHosts[0]
	}

	runner, runnerError := remote.ResolveCommandRunner(builder.CommandRunner, builder.resolveLogger(), remoteConfiguration, builder.CommandEventsObserver)
	if runnerError != nil {
		return Client{}, runnerError
	}
	return Client{Runner: runner, Host: host, Database: configuration.Database, User: configuration.User}, nil
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	if builder.ConfigurationProvider == nil {
		return defaults
	}
	configuration := builder.ConfigurationProvider()
	if len(strings.TrimSpace(configuration.Database)) == 0 {
		configuration.Database = defaults.Database
	}
	if len(strings.TrimSpace(configuration.Host)) == 0 && len(strings.TrimSpace(configuration.Role)) == 0 {
		configuration.Role = defaults.Role
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

func parseOptions(rawOptions []string) (map[string]string, error) {
	options := make(map[string]string, len(rawOptions))
	for _, rawOption := range rawOptions {
		optionName, optionValue, found := strings.Cut(rawOption, optionSeparatorRuneConstant)
		if !found || len(strings.TrimSpace(optionName)) == 0 {
			return nil, fmt.Errorf(invalidOptionTemplateConstant, rawOption)
		}
		options[strings.ToUpper(strings.TrimSpace(optionName))] = optionValue
	}
	return options, nil
}

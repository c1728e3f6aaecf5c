package release

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/temirov/deployutils/internal/execshell"
	"github.com/temirov/deployutils/internal/remote"
)

const (
	commandUseConstant              = "release [target]"
	commandShortDescriptionConstant = "Show the commits a deployment releases"
	commandLongDescriptionConstant  = "release reads the git log between the deployed revision and the target on a host and prints the base, release, and changelog commits as YAML."
	tooManyArgumentsMessage         = "release accepts at most one target"
	hostFlagNameConstant            = "host"
	hostFlagDescription             = "Host holding the git checkout"
	roleFlagNameConstant            = "role"
	roleFlagDescription             = "Role whose first host holds the git checkout"
	userFlagNameConstant            = "user"
	userFlagDescription             = "Run git through sudo as this user"
	repositoryFlagNameConstant      = "repository"
	repositoryFlagDescription       = "Path of the git checkout on the host"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current release configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the release command.
type CommandBuilder struct {
	LoggerProvider              LoggerProvider
	ConfigurationProvider       ConfigurationProvider
	RemoteConfigurationProvider remote.ConfigurationProvider
	CommandRunner               remote.CommandRunner
	CommandEventsObserver       execshell.CommandEventObserver
	Prompter                    Prompter
	LookupEnvironment           func(name string) (string, bool)
}

// Build constructs the cobra command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}
	command.Flags().String(hostFlagNameConstant, "", hostFlagDescription)
	command.Flags().String(roleFlagNameConstant, "", roleFlagDescription)
	command.Flags().String(userFlagNameConstant, "", userFlagDescription)
	command.Flags().String(repositoryFlagNameConstant, "", repositoryFlagDescription)
	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 1 {
		return errors.New(tooManyArgumentsMessage)
	}

	configuration := builder.resolveConfiguration()
	if len(arguments) == 1 {
		configuration.Target = arguments[0]
	}
	flags := command.Flags()
	if flags.Changed(hostFlagNameConstant) {
		configuration.Host, _ = flags.GetString(hostFlagNameConstant)
	}
	if flags.Changed(roleFlagNameConstant) {
		configuration.Role, _ = flags.GetString(roleFlagNameConstant)
	}
	if flags.Changed(userFlagNameConstant) {
		configuration.User, _ = flags.GetString(userFlagNameConstant)
	}
	if flags.Changed(repositoryFlagNameConstant) {
		configuration.RepositoryPath, _ = flags.GetString(repositoryFlagNameConstant)
	}

	remoteConfiguration := remote.ResolveConfiguration(builder.RemoteConfigurationProvider)
	host := strings.TrimSpace(configuration.Host)
	if len(host) == 0 {
		roleHosts, hostsError := remoteConfiguration.ResolveHosts(configuration.Role, nil)
		if hostsError != nil {
			return hostsError
		}
		host = roleHosts[0]
	}

	logger := builder.resolveLogger()
	runner, runnerError := remote.ResolveCommandRunner(builder.CommandRunner, logger, remoteConfiguration, builder.CommandEventsObserver)
	if runnerError != nil {
		return runnerError
	}

	prompter := builder.Prompter
	if prompter == nil {
		prompter = NewIOPrompter(command.InOrStdin(), command.ErrOrStderr())
	}

	extractor := Extractor{
		Runner:            runner,
		Host:              host,
		User:              configuration.User,
		RepositoryPath:    configuration.RepositoryPath,
		LookupEnvironment: builder.LookupEnvironment,
		Prompter:          prompter,
		Output:            command.ErrOrStderr(),
		Logger:            logger,
	}
	releaseInfo, extractError := extractor.Extract(command.Context(), configuration.Target)
	if extractError != nil {
		return extractError
	}

	encoder := yaml.NewEncoder(command.OutOrStdout())
	encoder.SetIndent(2)
	if encodeError := encoder.Encode(releaseInfo); encodeError != nil {
		return encodeError
	}
	return encoder.Close()
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	configuration := builder.ConfigurationProvider()
	if len(strings.TrimSpace(configuration.Target)) == 0 {
		configuration.Target = defaultTargetConstant
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

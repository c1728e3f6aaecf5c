package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/branchname"
	"github.com/temirov/deployutils/internal/cleanup"
	"github.com/temirov/deployutils/internal/deploy"
	"github.com/temirov/deployutils/internal/deploylock"
	"github.com/temirov/deployutils/internal/execshell"
	"github.com/temirov/deployutils/internal/health"
	"github.com/temirov/deployutils/internal/psql"
	"github.com/temirov/deployutils/internal/release"
	"github.com/temirov/deployutils/internal/remote"
	"github.com/temirov/deployutils/internal/swarm"
	"github.com/temirov/deployutils/internal/ui"
	"github.com/temirov/deployutils/internal/utils"
	flagutils "github.com/temirov/deployutils/internal/utils/flags"
	pathutils "github.com/temirov/deployutils/internal/utils/path"
)

const (
	applicationNameConstant                 = "deployutils"
	applicationShortDescriptionConstant     = "Deployment helpers for branch environments"
	applicationLongDescriptionConstant      = "deployutils waits for hosts to come up, reaps stale branch environments, guards deployments with a shared lock, and reports progress to TeamCity."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	environmentFileFlagNameConstant         = "env-file"
	environmentFileFlagUsageConstant        = "Dotenv file loaded before configuration (defaults to .env when present)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	remoteConfigurationKeyConstant          = "remote"
	environmentPrefixConstant               = "DEPLOYUTILS"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	defaultEnvironmentFileConstant          = ".env"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	environmentFilesFieldConstant           = "environment_files"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	commandBuildErrorTemplateConstant       = "unable to build %s command: %w"
	defaultConfigurationSearchPathConstant  = "."
	userConfigurationDirectoryNameConstant  = "deployutils"
	toolsConfigurationKeyConstant           = "tools"
	waitConfigurationKeyConstant            = toolsConfigurationKeyConstant + ".wait"
	pruneConfigurationKeyConstant           = toolsConfigurationKeyConstant + ".prune"
	lockConfigurationKeyConstant            = toolsConfigurationKeyConstant + ".lock"
	releaseConfigurationKeyConstant         = toolsConfigurationKeyConstant + ".release"
	swarmConfigurationKeyConstant           = toolsConfigurationKeyConstant + ".swarm"
	psqlConfigurationKeyConstant            = toolsConfigurationKeyConstant + ".psql"
	deployConfigurationKeyConstant          = toolsConfigurationKeyConstant + ".deploy"
	versionTemplateConstant                 = "{{.Name}} version: {{.Version}}\n"
	unknownVersionConstant                  = "unknown"
	develVersionConstant                    = "(devel)"
)

// Version is stamped at build time with -ldflags "-X github.com/temirov/deployutils/cmd/cli.Version=...".
var Version string

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Remote remote.Configuration           `mapstructure:"remote"`
	Branch branchname.Configuration       `mapstructure:"branch"`
	Tools  ApplicationToolsConfiguration  `mapstructure:"tools"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationToolsConfiguration holds configuration for each subcommand.
type ApplicationToolsConfiguration struct {
	Wait    health.CommandConfiguration     `mapstructure:"wait"`
	Prune   cleanup.CommandConfiguration    `mapstructure:"prune"`
	Lock    deploylock.CommandConfiguration `mapstructure:"lock"`
	Release release.CommandConfiguration    `mapstructure:"release"`
	Swarm   swarm.CommandConfiguration      `mapstructure:"swarm"`
	Psql    psql.CommandConfiguration       `mapstructure:"psql"`
	Deploy  deploy.CommandConfiguration     `mapstructure:"deploy"`
}

type commandBuilder interface {
	Build() (*cobra.Command, error)
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	homeExpander           *pathutils.HomeExpander
	outputWriter           *utils.FlushingWriter
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	environmentFilePath    string
	logLevelFlagValue      string
	logFormatFlagValue     string
	commandContextAccessor utils.CommandContextAccessor
	versionResolver        func(context.Context) string
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() (*Application, error) {
	searchPaths := []string{defaultConfigurationSearchPathConstant}
	if userConfigurationDirectory, directoryError := os.UserConfigDir(); directoryError == nil {
		searchPaths = append(searchPaths, filepath.Join(userConfigurationDirectory, userConfigurationDirectoryNameConstant))
	}
	configurationLoader := utils.NewConfigurationLoader(configurationNameConstant, configurationTypeConstant, environmentPrefixConstant, searchPaths)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		homeExpander:           pathutils.NewHomeExpander(),
		outputWriter:           utils.NewFlushingWriter(os.Stdout),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		versionResolver:        resolveApplicationVersion,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.SetVersionTemplate(versionTemplateConstant)
	cobraCommand.SetOut(application.outputWriter)
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.environmentFilePath, environmentFileFlagNameConstant, "", environmentFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", flagutils.FormatChoiceUsage(string(utils.LogLevelInfo), utils.SupportedLogLevels, logLevelFlagUsageConstant))
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", flagutils.FormatChoiceUsage(string(utils.LogFormatStructured), utils.SupportedLogFormats, logFormatFlagUsageConstant))

	for _, builder := range application.commandBuilders() {
		subcommand, buildError := builder.Build()
		if buildError != nil {
			return nil, fmt.Errorf(commandBuildErrorTemplateConstant, fmt.Sprintf("%T", builder), buildError)
		}
		cobraCommand.AddCommand(subcommand)
	}

	application.rootCommand = cobraCommand
	return application, nil
}

func (application *Application) commandBuilders() []commandBuilder {
	loggerProvider := func() *zap.Logger { return application.logger }
	remoteConfigurationProvider := func() remote.Configuration { return application.configuration.Remote }
	observer := applicationCommandEventsObserver{application: application}

	return []commandBuilder{
		&health.CommandBuilder{
			LoggerProvider:              loggerProvider,
			ConfigurationProvider:       func() health.CommandConfiguration { return application.configuration.Tools.Wait },
			RemoteConfigurationProvider: remoteConfigurationProvider,
			CommandEventsObserver:       observer,
		},
		&cleanup.CommandBuilder{
			LoggerProvider:              loggerProvider,
			ConfigurationProvider:       func() cleanup.CommandConfiguration { return application.configuration.Tools.Prune },
			RemoteConfigurationProvider: remoteConfigurationProvider,
			LockConfigurationProvider:   func() deploylock.CommandConfiguration { return application.configuration.Tools.Lock },
			CommandEventsObserver:       observer,
		},
		&deploylock.CommandBuilder{
			LoggerProvider:              loggerProvider,
			ConfigurationProvider:       func() deploylock.CommandConfiguration { return application.configuration.Tools.Lock },
			RemoteConfigurationProvider: remoteConfigurationProvider,
			CommandEventsObserver:       observer,
		},
		&branchname.CommandBuilder{
			LoggerProvider:        loggerProvider,
			ConfigurationProvider: func() branchname.Configuration { return application.configuration.Branch },
			CommandEventsObserver: observer,
		},
		&release.CommandBuilder{
			LoggerProvider:              loggerProvider,
			ConfigurationProvider:       func() release.CommandConfiguration { return application.configuration.Tools.Release },
			RemoteConfigurationProvider: remoteConfigurationProvider,
			CommandEventsObserver:       observer,
		},
		&swarm.CommandBuilder{
			LoggerProvider:              loggerProvider,
			ConfigurationProvider:       func() swarm.CommandConfiguration { return application.configuration.Tools.Swarm },
			RemoteConfigurationProvider: remoteConfigurationProvider,
			CommandEventsObserver:       observer,
		},
		&psql.CommandBuilder{
			LoggerProvider:              loggerProvider,
			ConfigurationProvider:       func() psql.CommandConfiguration { return application.configuration.Tools.Psql },
			RemoteConfigurationProvider: remoteConfigurationProvider,
			CommandEventsObserver:       observer,
		},
		&deploy.CommandBuilder{
			LoggerProvider:              loggerProvider,
			ConfigurationProvider:       func() deploy.CommandConfiguration { return application.configuration.Tools.Deploy },
			RemoteConfigurationProvider: remoteConfigurationProvider,
			BranchConfigurationProvider: func() branchname.Configuration { return application.configuration.Branch },
			HealthConfigurationProvider: func() health.CommandConfiguration { return application.configuration.Tools.Wait },
			LockConfigurationProvider:   func() deploylock.CommandConfiguration { return application.configuration.Tools.Lock },
			SwarmConfigurationProvider:  func() swarm.CommandConfiguration { return application.configuration.Tools.Swarm },
			CommandEventsObserver:       observer,
		},
	}
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	application.rootCommand.Version = application.versionResolver(application.rootCommand.Context())
	executionError := application.rootCommand.Execute()
	if flushError := application.outputWriter.Flush(); flushError != nil {
		executionError = errors.Join(executionError, flushError)
	}
	if syncError := application.flushLogger(); syncError != nil {
		return errors.Join(executionError, fmt.Errorf(loggerSyncErrorTemplateConstant, syncError))
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	application, applicationError := NewApplication()
	if applicationError != nil {
		return applicationError
	}
	return application.Execute()
}

// DefaultConfigurationValues returns every viper default of the CLI.
func DefaultConfigurationValues() map[string]any {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
	}
	defaultSources := []map[string]any{
		remote.DefaultConfigurationValues(remoteConfigurationKeyConstant),
		health.DefaultConfigurationValues(waitConfigurationKeyConstant),
		cleanup.DefaultConfigurationValues(pruneConfigurationKeyConstant),
		deploylock.DefaultConfigurationValues(lockConfigurationKeyConstant),
		release.DefaultConfigurationValues(releaseConfigurationKeyConstant),
		swarm.DefaultConfigurationValues(swarmConfigurationKeyConstant),
		psql.DefaultConfigurationValues(psqlConfigurationKeyConstant),
		deploy.DefaultConfigurationValues(deployConfigurationKeyConstant),
	}
	for _, defaultSource := range defaultSources {
		for configurationKey, configurationValue := range defaultSource {
			defaultValues[configurationKey] = configurationValue
		}
	}
	return defaultValues
}

func resolveApplicationVersion(context.Context) string {
	if len(Version) > 0 {
		return Version
	}
	buildInformation, available := debug.ReadBuildInfo()
	if !available || len(buildInformation.Main.Version) == 0 || buildInformation.Main.Version == develVersionConstant {
		return unknownVersionConstant
	}
	return buildInformation.Main.Version
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	environmentFile := utils.EnvironmentFile{Path: defaultEnvironmentFileConstant, Optional: true}
	if len(application.environmentFilePath) > 0 {
		environmentFile = utils.EnvironmentFile{Path: application.homeExpander.Expand(application.environmentFilePath)}
	}
	application.configurationLoader.SetEnvironmentFiles(environmentFile)

	configurationFilePath := application.homeExpander.Expand(application.configurationFilePath)
	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(configurationFilePath, DefaultConfigurationValues(), &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}
	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	logLevel, levelError := utils.ParseLogLevel(application.configuration.Common.LogLevel)
	if levelError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, levelError)
	}
	logFormat, formatError := utils.ParseLogFormat(application.configuration.Common.LogFormat)
	if formatError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, formatError)
	}
	logger, loggerCreationError := application.loggerFactory.CreateLogger(logLevel, logFormat)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}
	application.logger = logger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, string(logLevel)),
		zap.String(configurationLogFormatFieldConstant, string(logFormat)),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
		zap.Strings(environmentFilesFieldConstant, application.configurationMetadata.EnvironmentFilesUsed),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithLoadedConfiguration(command.Context(), application.configurationMetadata)
		command.SetContext(updatedContext)
	}
	return nil
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormat, formatError := utils.ParseLogFormat(application.configuration.Common.LogFormat)
	return formatError == nil && logFormat == utils.LogFormatConsole
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	syncError := application.logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}
	if rootCommand := command.Root(); rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet != nil && flagSet.Changed(flagName) {
			return true
		}
	}
	return false
}

// applicationCommandEventsObserver renders shell command events on the console
// when console logging is active. It resolves the logger per event because
// builders are wired before configuration is loaded.
type applicationCommandEventsObserver struct {
	application *Application
}

func (observer applicationCommandEventsObserver) delegate() execshell.CommandEventObserver {
	if observer.application == nil || !observer.application.humanReadableLoggingEnabled() {
		return nil
	}
	return ui.NewConsoleCommandEventLogger(observer.application.logger)
}

func (observer applicationCommandEventsObserver) CommandStarted(command execshell.ShellCommand) {
	if delegate := observer.delegate(); delegate != nil {
		delegate.CommandStarted(command)
	}
}

func (observer applicationCommandEventsObserver) CommandCompleted(command execshell.ShellCommand, result execshell.ExecutionResult) {
	if delegate := observer.delegate(); delegate != nil {
		delegate.CommandCompleted(command, result)
	}
}

func (observer applicationCommandEventsObserver) CommandExecutionFailed(command execshell.ShellCommand, failure error) {
	if delegate := observer.delegate(); delegate != nil {
		delegate.CommandExecutionFailed(command, failure)
	}
}

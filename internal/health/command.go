package health

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
	commandUseConstant              = "wait"
	commandShortDescriptionConstant = "Wait until hosts report healthy"
	commandLongDescriptionConstant  = "wait probes every host of a role over ssh until the quorum reports the expected HTTP status or the maximum wait elapses."
	unexpectedArgumentsMessage      = "wait does not accept positional arguments"
	roleFlagNameConstant            = "role"
	roleFlagDescriptionConstant     = "Configured role whose hosts are probed"
	hostsFlagNameConstant           = "hosts"
	hostsFlagDescriptionConstant    = "Explicit hosts to probe (overrides --role)"
	urlFlagNameConstant             = "url"
	urlFlagDescriptionConstant      = "URL requested on every host"
	statusFlagNameConstant          = "status"
	statusFlagDescriptionConstant   = "Substring expected in the response status line"
	uwsgiPortFlagNameConstant       = "uwsgi-port"
	uwsgiPortFlagDescription        = "Probe uWSGI directly on this local port"
	uwsgiSocketFlagNameConstant     = "uwsgi-socket"
	uwsgiSocketFlagDescription      = "Probe uWSGI directly through this socket"
	intervalFlagNameConstant        = "interval"
	intervalFlagDescription         = "Delay between probes"
	maxWaitFlagNameConstant         = "max-wait"
	maxWaitFlagDescription          = "Maximum time to wait"
	quorumFlagNameConstant          = "quorum"
	quorumFlagDescription           = "Hosts required healthy: all, any, or majority"
	warnOnlyFlagNameConstant        = "warn-only"
	warnOnlyFlagDescription         = "Log a warning instead of failing on timeout"
	targetTemplateConstant          = "%s on %s"
	waitFailedTemplateConstant      = "wait failed: %w"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current wait configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the wait command.
type CommandBuilder struct {
	LoggerProvider              LoggerProvider
	ConfigurationProvider       ConfigurationProvider
	RemoteConfigurationProvider remote.ConfigurationProvider
	CommandRunner               remote.CommandRunner
	CommandEventsObserver       execshell.CommandEventObserver
	Sleeper                     Sleeper
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
	command.Flags().String(roleFlagNameConstant, "", roleFlagDescriptionConstant)
	command.Flags().StringSlice(hostsFlagNameConstant, nil, hostsFlagDescriptionConstant)
	command.Flags().String(urlFlagNameConstant, "", urlFlagDescriptionConstant)
	command.Flags().String(statusFlagNameConstant, defaults.ExpectedStatus, statusFlagDescriptionConstant)
	command.Flags().Int(uwsgiPortFlagNameConstant, 0, uwsgiPortFlagDescription)
	command.Flags().String(uwsgiSocketFlagNameConstant, "", uwsgiSocketFlagDescription)
	command.Flags().Duration(intervalFlagNameConstant, defaults.PollInterval, intervalFlagDescription)
	command.Flags().Duration(maxWaitFlagNameConstant, defaults.MaxWait, maxWaitFlagDescription)
	command.Flags().String(quorumFlagNameConstant, defaults.Quorum, quorumFlagDescription)
	command.Flags().Bool(warnOnlyFlagNameConstant, false, warnOnlyFlagDescription)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(unexpectedArgumentsMessage)
	}

	configuration, configurationError := builder.parseConfiguration(command)
	if configurationError != nil {
		return configurationError
	}

	quorum, quorumError := ParseQuorum(configuration.Quorum)
	if quorumError != nil {
		return quorumError
	}

	remoteConfiguration := remote.ResolveConfiguration(builder.RemoteConfigurationProvider)
	hosts, hostsError := remoteConfiguration.ResolveHosts(configuration.Role, configuration.Hosts)
	if hostsError != nil {
		return hostsError
	}

	logger := builder.resolveLogger()
	runner, runnerError := remote.ResolveCommandRunner(builder.CommandRunner, logger, remoteConfiguration, builder.CommandEventsObserver)
	if runnerError != nil {
		return runnerError
	}

	probe := BuildProbe(configuration)
	if _, probeError := probe.Command(); probeError != nil {
		return probeError
	}

	poller := NewPoller(logger, builder.Sleeper)
	_, waitError := poller.WaitUntilHealthy(command.Context(), RoleCheck(runner, hosts, probe), Options{
		Target:       describeTarget(configuration, hosts),
		PollInterval: configuration.PollInterval,
		MaxWait:      configuration.MaxWait,
		Quorum:       quorum,
		WarnOnly:     configuration.WarnOnly,
	})
	if waitError != nil {
		return fmt.Errorf(waitFailedTemplateConstant, waitError)
	}
	return nil
}

func (builder *CommandBuilder) parseConfiguration(command *cobra.Command) (CommandConfiguration, error) {
	configuration := builder.resolveConfiguration()
	flags := command.Flags()

	if flags.Changed(roleFlagNameConstant) {
		configuration.Role, _ = flags.GetString(roleFlagNameConstant)
	}
	if flags.Changed(hostsFlagNameConstant) {
		configuration.Hosts, _ = flags.GetStringSlice(hostsFlagNameConstant)
	}
	if flags.Changed(urlFlagNameConstant) {
		configuration.URL, _ = flags.GetString(urlFlagNameConstant)
	}
	if flags.Changed(statusFlagNameConstant) {
		configuration.ExpectedStatus, _ = flags.GetString(statusFlagNameConstant)
	}
	if flags.Changed(uwsgiPortFlagNameConstant) {
		configuration.UWSGIPort, _ = flags.GetInt(uwsgiPortFlagNameConstant)
	}
	if flags.Changed(uwsgiSocketFlagNameConstant) {
		configuration.UWSGISocket, _ = flags.GetString(uwsgiSocketFlagNameConstant)
	}
	if flags.Changed(intervalFlagNameConstant) {
		configuration.PollInterval, _ = flags.GetDuration(intervalFlagNameConstant)
	}
	if flags.Changed(maxWaitFlagNameConstant) {
		configuration.MaxWait, _ = flags.GetDuration(maxWaitFlagNameConstant)
	}
	if flags.Changed(quorumFlagNameConstant) {
		configuration.Quorum, _ = flags.GetString(quorumFlagNameConstant)
	}
	if flags.Changed(warnOnlyFlagNameConstant) {
		configuration.WarnOnly, _ = flags.GetBool(warnOnlyFlagNameConstant)
	}

	if configuration.PollInterval <= 0 {
		return CommandConfiguration{}, ErrInvalidPollInterval
	}
	return configuration, nil
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	configuration := builder.ConfigurationProvider()
	defaults := DefaultCommandConfiguration()
	if configuration.PollInterval <= 0 {
		configuration.PollInterval = defaults.PollInterval
	}
	if len(strings.TrimSpace(configuration.ExpectedStatus)) == 0 {
		configuration.ExpectedStatus = defaults.ExpectedStatus
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

// BuildProbe selects the uWSGI probe when a port or socket is configured and the HTTP probe otherwise.
func BuildProbe(configuration CommandConfiguration) Probe {
	if configuration.UWSGIPort > 0 || len(strings.TrimSpace(configuration.UWSGISocket)) > 0 {
		return UWSGIStatusProbe{
			URL:            configuration.URL,
			Port:           configuration.UWSGIPort,
			Socket:         configuration.UWSGISocket,
			ExpectedStatus: configuration.ExpectedStatus,
		}
	}
	return HTTPStatusProbe{URL: configuration.URL, ExpectedStatus: configuration.ExpectedStatus}
}

func describeTarget(configuration CommandConfiguration, hosts []string) string {
	hostDescription := strings.Join(hosts, ", ")
	if len(strings.TrimSpace(configuration.Role)) > 0 && len(configuration.Hosts) == 0 {
		hostDescription = strings.TrimSpace(configuration.Role)
	}
	return fmt.Sprintf(targetTemplateConstant, strings.TrimSpace(configuration.URL), hostDescription)
}

package swarm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/remote"
)

const (
	listServicesTemplateConstant   = "docker stack services --format %s --filter %s %s"
	serviceNameFormatConstant      = "{{.Name}}"
	labelFilterTemplateConstant    = "label=%s=%s"
	nothingFoundMarkerConstant     = "Nothing found"
	updateCommandConstant          = "docker service update --quiet --force --no-healthcheck"
	noSerialFlagConstant           = " --update-parallelism=0"
	noWaitFlagConstant             = " --stop-grace-period=1s"
	updateCommandTemplateConstant  = "%s %s"
	missingNodeMessageConstant     = "swarm node must be provided"
	missingSelectorMessageConstant = "label, value, and stack must be provided"
	noServicesTemplateConstant     = "%w matching label %q"
	noServicesMessageConstant      = "no services found"
	restartingLogMessageConstant   = "restarting service"
	logFieldServiceConstant        = "service"
	logFieldNodeConstant           = "node"
	labelValueTemplateConstant     = "%s=%s"
	restartFailedTemplateConstant  = "restart service %s: %w"
)

// ErrNodeRequired indicates a restart without a swarm node.
var ErrNodeRequired = errors.New(missingNodeMessageConstant)

// ErrServiceSelectorRequired indicates a restart without label, value, or stack.
var ErrServiceSelectorRequired = errors.New(missingSelectorMessageConstant)

// ErrNoServicesFound indicates that no stack service carries the label.
var ErrNoServicesFound = errors.New(noServicesMessageConstant)

// RestartOptions selects and tunes the services to restart.
type RestartOptions struct {
	// Label and Value select services by a deploy label from the compose file.
	Label string
	Value string
	Stack string
	// NoSerial updates every replica at once.
	NoSerial bool
	// NoWait stops old tasks after one second instead of their grace period.
	NoWait bool
}

// UpdateCommand renders the docker service update prefix for the options.
func (options RestartOptions) UpdateCommand() string {
	command := updateCommandConstant
	if options.NoSerial {
		command += noSerialFlagConstant
	}
	if options.NoWait {
		command += noWaitFlagConstant
	}
	return command
}

// RestartServices force-updates every service of the stack carrying the label and returns their names.
func (manager Manager) RestartServices(executionContext context.Context, node string, options RestartOptions) ([]string, error) {
	if manager.Runner == nil {
		return nil, ErrRunnerNotConfigured
	}
	trimmedNode := strings.TrimSpace(node)
	if len(trimmedNode) == 0 {
		return nil, ErrNodeRequired
	}
	if len(strings.TrimSpace(options.Label)) == 0 || len(strings.TrimSpace(options.Value)) == 0 || len(strings.TrimSpace(options.Stack)) == 0 {
		return nil, ErrServiceSelectorRequired
	}

	listCommand := fmt.Sprintf(
		listServicesTemplateConstant,
		remote.QuoteShellArgument(serviceNameFormatConstant),
		remote.QuoteShellArgument(fmt.Sprintf(labelFilterTemplateConstant, options.Label, options.Value)),
		remote.QuoteShellArgument(options.Stack),
	)
	serviceOutput, listError := remote.RunOnHost(executionContext, manager.Runner, trimmedNode, listCommand, remote.RunOptions{})
	if listError != nil {
		return nil, listError
	}

	serviceNames := make([]string, 0)
	for _, serviceLine := range strings.Split(serviceOutput, "\n") {
		if serviceName := strings.TrimSpace(serviceLine); len(serviceName) > 0 {
			serviceNames = append(serviceNames, serviceName)
		}
	}
	if strings.Contains(serviceOutput, nothingFoundMarkerConstant) || len(serviceNames) == 0 {
		return nil, fmt.Errorf(noServicesTemplateConstant, ErrNoServicesFound, fmt.Sprintf(labelValueTemplateConstant, options.Label, options.Value))
	}

	updateCommand := options.UpdateCommand()
	for _, serviceName := range serviceNames {
		manager.logger().Info(restartingLogMessageConstant, zap.String(logFieldServiceConstant, serviceName), zap.String(logFieldNodeConstant, trimmedNode))
		restartCommand := fmt.Sprintf(updateCommandTemplateConstant, updateCommand, remote.QuoteShellArgument(serviceName))
		if _, restartError := remote.RunOnHost(executionContext, manager.Runner, trimmedNode, restartCommand, remote.RunOptions{}); restartError != nil {
			return nil, fmt.Errorf(restartFailedTemplateConstant, serviceName, restartError)
		}
	}
	return serviceNames, nil
}

package deploy

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/health"
	"github.com/temirov/deployutils/internal/remote"
	"github.com/temirov/deployutils/internal/task"
)

const (
	branchPlaceholderConstant         = "{branch}"
	slugPlaceholderConstant           = "{slug}"
	nodePlaceholderConstant           = "{node}"
	missingCommandMessageConstant     = "deploy command must be configured"
	missingRunnerMessageConstant      = "deploy workflow requires a command runner"
	missingHostsMessageConstant       = "deploy workflow has no target hosts"
	missingPollerMessageConstant      = "health wait requires a poller and a probe"
	dryRunLogMessageConstant          = "dry run, deploy command skipped"
	deployStartedLogMessageConstant   = "running deploy command"
	deploySucceededLogMessageConstant = "deploy command succeeded"
	logFieldBranchConstant            = "branch"
	logFieldSlugConstant              = "slug"
	logFieldHostsConstant             = "hosts"
	logFieldCommandConstant           = "command"
)

var (
	// ErrCommandNotConfigured indicates a workflow without a deploy command.
	ErrCommandNotConfigured = errors.New(missingCommandMessageConstant)
	// ErrRunnerNotConfigured indicates a workflow without a command runner.
	ErrRunnerNotConfigured = errors.New(missingRunnerMessageConstant)
	// ErrNoTargetHosts indicates a request with neither hosts nor a swarm node.
	ErrNoTargetHosts = errors.New(missingHostsMessageConstant)
	// ErrHealthWaitNotConfigured indicates a HealthWait missing its poller or probe.
	ErrHealthWaitNotConfigured = errors.New(missingPollerMessageConstant)
)

// HealthWait polls the deployed hosts after the deploy command.
type HealthWait struct {
	Poller  *health.Poller
	Probe   health.Probe
	Options health.Options
}

// Workflow runs the deploy command and the optional health wait.
type Workflow struct {
	Runner remote.CommandRunner
	// CommandTemplate may reference {branch}, {slug}, and {node}.
	CommandTemplate string
	User            string
	Wait            *HealthWait
	Logger          *zap.Logger
}

// RenderCommand substitutes request values into template.
func RenderCommand(template string, request task.Request) (string, error) {
	trimmedTemplate := strings.TrimSpace(template)
	if len(trimmedTemplate) == 0 {
		return "", ErrCommandNotConfigured
	}
	replacer := strings.NewReplacer(
		branchPlaceholderConstant, remote.QuoteShellArgument(request.Branch),
		slugPlaceholderConstant, remote.QuoteShellArgument(request.Slug),
		nodePlaceholderConstant, remote.QuoteShellArgument(request.SwarmNode),
	)
	return replacer.Replace(trimmedTemplate), nil
}

// Operation returns the deploy step. The command runs on the swarm node when one
// was selected and on every request host otherwise. The health wait always targets
// the request hosts.
func (workflow Workflow) Operation() task.Operation {
	return func(executionContext context.Context, request task.Request) error {
		if workflow.Runner == nil {
			return ErrRunnerNotConfigured
		}
		command, renderError := RenderCommand(workflow.CommandTemplate, request)
		if renderError != nil {
			return renderError
		}

		targetHosts := remote.SanitizeHosts(request.Hosts)
		if swarmNode := strings.TrimSpace(request.SwarmNode); len(swarmNode) > 0 {
			targetHosts = []string{swarmNode}
		}
		if len(targetHosts) == 0 {
			return ErrNoTargetHosts
		}

		logger := workflow.logger().With(zap.String(logFieldBranchConstant, request.Branch), zap.String(logFieldSlugConstant, request.Slug))
		if request.DryRun {
			logger.Info(dryRunLogMessageConstant, zap.Strings(logFieldHostsConstant, targetHosts), zap.String(logFieldCommandConstant, command))
			return nil
		}

		logger.Info(deployStartedLogMessageConstant, zap.Strings(logFieldHostsConstant, targetHosts))
		results, runError := workflow.Runner.Run(executionContext, targetHosts, command, remote.RunOptions{User: workflow.User})
		if runError != nil {
			return runError
		}
		if failureError := hostFailures(results); failureError != nil {
			return failureError
		}
		logger.Info(deploySucceededLogMessageConstant, zap.Strings(logFieldHostsConstant, targetHosts))

		if workflow.Wait == nil {
			return nil
		}
		return workflow.Wait.run(executionContext, workflow.Runner, request.Hosts)
	}
}

func (wait *HealthWait) run(executionContext context.Context, runner remote.CommandRunner, hosts []string) error {
	if wait.Poller == nil || wait.Probe == nil {
		return ErrHealthWaitNotConfigured
	}
	_, waitError := wait.Poller.WaitUntilHealthy(executionContext, health.RoleCheck(runner, remote.SanitizeHosts(hosts), wait.Probe), wait.Options)
	return waitError
}

func (workflow Workflow) logger() *zap.Logger {
	if workflow.Logger == nil {
		return zap.NewNop()
	}
	return workflow.Logger
}

func hostFailures(results remote.Results) error {
	var failures []error
	for _, hostResult := range results {
		if !hostResult.Succeeded {
			failures = append(failures, remote.HostCommandError{Result: hostResult})
		}
	}
	return errors.Join(failures...)
}

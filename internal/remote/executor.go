package remote

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/deployutils/internal/execshell"
)

const (
	noHostsMessageConstant                  = "no hosts provided"
	emptyCommandMessageConstant             = "command must not be empty"
	shellExecutorMissingMessageConstant     = "remote executor requires a shell executor"
	hostCommandFailedTemplateConstant       = "command failed on %s: %v"
	localHostNameConstant                   = "local"
	localhostHostNameConstant               = "localhost"
	shellCommandFlagConstant                = "-c"
	sshOptionFlagConstant                   = "-o"
	sshBatchModeOptionConstant              = "BatchMode=yes"
	sshPortFlagConstant                     = "-p"
	sshLoginFlagConstant                    = "-l"
	sshArgumentTerminatorConstant           = "--"
	sudoCommandTemplateConstant             = "sudo -u %s -H sh -c %s"
	hostUserSeparatorConstant               = "@"
	singleQuoteConstant                     = "'"
	escapedSingleQuoteConstant              = `'"'"'`
	unknownExitCodeConstant                 = -1
	hostCommandFailedLogMessageConstant     = "remote command failed"
	hostCommandSucceededLogMessageConstant  = "remote command succeeded"
	remoteDispatchStartedLogMessageConstant = "dispatching remote command"
	logFieldHostConstant                    = "host"
	logFieldHostsConstant                   = "hosts"
	logFieldCommandConstant                 = "command"
	logFieldExitCodeConstant                = "exit_code"
)

// ErrNoHosts indicates a command was dispatched without target hosts.
var ErrNoHosts = errors.New(noHostsMessageConstant)

// ErrEmptyCommand indicates a blank command string.
var ErrEmptyCommand = errors.New(emptyCommandMessageConstant)

// ErrShellExecutorNotConfigured indicates the executor was built without a shell executor.
var ErrShellExecutorNotConfigured = errors.New(shellExecutorMissingMessageConstant)

// ShellCommandExecutor is the subset of execshell.ShellExecutor used for dispatch.
type ShellCommandExecutor interface {
	ExecuteSSH(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteShell(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// CommandRunner runs a shell command across hosts. Executor implements it.
type CommandRunner interface {
	Run(executionContext context.Context, hosts []string, command string, options RunOptions) (Results, error)
}

// RunOptions modifies how a command runs on each host.
type RunOptions struct {
	// User runs the command through sudo as the named user when set.
	User string
}

// HostCommandError reports a failed command on a single host.
type HostCommandError struct {
	Result HostResult
}

// Error describes the failed host command.
func (hostError HostCommandError) Error() string {
	return fmt.Sprintf(hostCommandFailedTemplateConstant, hostError.Result.Host, hostError.Result.Err)
}

// Unwrap exposes the underlying execution error.
func (hostError HostCommandError) Unwrap() error {
	return hostError.Result.Err
}

// Executor dispatches shell commands to hosts concurrently.
type Executor struct {
	logger        *zap.Logger
	shell         ShellCommandExecutor
	configuration Configuration
}

// NewExecutor constructs an Executor.
func NewExecutor(logger *zap.Logger, shell ShellCommandExecutor, configuration Configuration) (*Executor, error) {
	if shell == nil {
		return nil, ErrShellExecutorNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{logger: logger, shell: shell, configuration: configuration}, nil
}

// Run executes command on every host and blocks until all hosts finish.
func (executor *Executor) Run(executionContext context.Context, hosts []string, command string, options RunOptions) (Results, error) {
	sanitizedHosts := SanitizeHosts(hosts)
	if len(sanitizedHosts) == 0 {
		return nil, ErrNoHosts
	}
	trimmedCommand := strings.TrimSpace(command)
	if len(trimmedCommand) == 0 {
		return nil, ErrEmptyCommand
	}
	if len(strings.TrimSpace(options.User)) > 0 {
		trimmedCommand = fmt.Sprintf(sudoCommandTemplateConstant, strings.TrimSpace(options.User), QuoteShellArgument(trimmedCommand))
	}

	executor.logger.Debug(
		remoteDispatchStartedLogMessageConstant,
		zap.Strings(logFieldHostsConstant, sanitizedHosts),
		zap.String(logFieldCommandConstant, trimmedCommand),
	)

	results := make(Results, len(sanitizedHosts))
	var resultsMutex sync.Mutex

	dispatchGroup, groupContext := errgroup.WithContext(executionContext)
	dispatchGroup.SetLimit(executor.configuration.parallelism())
	for hostIndex, host := range sanitizedHosts {
		hostIndex, host := hostIndex, host
		dispatchGroup.Go(func() error {
			hostResult := executor.runOnHost(groupContext, host, trimmedCommand)
			resultsMutex.Lock()
			results[hostIndex] = hostResult
			resultsMutex.Unlock()
			return nil
		})
	}
	if waitError := dispatchGroup.Wait(); waitError != nil {
		return nil, waitError
	}

	return results, nil
}

// RunOnHost executes command on a single host and returns its standard output.
// A failed command surfaces as HostCommandError.
func (executor *Executor) RunOnHost(executionContext context.Context, host string, command string, options RunOptions) (string, error) {
	return RunOnHost(executionContext, executor, host, command, options)
}

// RunOnHost executes command on a single host through runner and returns its standard output.
// A failed command surfaces as HostCommandError.
func RunOnHost(executionContext context.Context, runner CommandRunner, host string, command string, options RunOptions) (string, error) {
	results, runError := runner.Run(executionContext, []string{host}, command, options)
	if runError != nil {
		return "", runError
	}
	hostResult, found := results.Host(strings.TrimSpace(host))
	if !found {
		return "", ErrNoHosts
	}
	if !hostResult.Succeeded {
		return hostResult.StandardOutput, HostCommandError{Result: hostResult}
	}
	return hostResult.StandardOutput, nil
}

func (executor *Executor) runOnHost(executionContext context.Context, host string, command string) HostResult {
	var executionResult execshell.ExecutionResult
	var executionError error
	if isLocalHost(host) {
		executionResult, executionError = executor.shell.ExecuteShell(executionContext, execshell.CommandDetails{
			Arguments: []string{shellCommandFlagConstant, command},
		})
	} else {
		executionResult, executionError = executor.shell.ExecuteSSH(executionContext, execshell.CommandDetails{
			Arguments: executor.buildSSHArguments(host, command),
		})
	}

	hostResult := HostResult{Host: host}
	if executionError == nil {
		hostResult.Succeeded = true
		hostResult.StandardOutput = executionResult.StandardOutput
		hostResult.StandardError = executionResult.StandardError
		executor.logger.Debug(hostCommandSucceededLogMessageConstant, zap.String(logFieldHostConstant, host))
		return hostResult
	}

	hostResult.Err = executionError
	hostResult.ExitCode = unknownExitCodeConstant
	var failedError execshell.CommandFailedError
	if errors.As(executionError, &failedError) {
		hostResult.ExitCode = failedError.Result.ExitCode
		hostResult.StandardOutput = failedError.Result.StandardOutput
		hostResult.StandardError = failedError.Result.StandardError
	}

	executor.logger.Debug(
		hostCommandFailedLogMessageConstant,
		zap.String(logFieldHostConstant, host),
		zap.Int(logFieldExitCodeConstant, hostResult.ExitCode),
		zap.Error(executionError),
	)
	return hostResult
}

func (executor *Executor) buildSSHArguments(host string, command string) []string {
	sshArguments := []string{sshOptionFlagConstant, sshBatchModeOptionConstant}
	for _, sshOption := range executor.configuration.SSHOptions {
		trimmedOption := strings.TrimSpace(sshOption)
		if len(trimmedOption) == 0 {
			continue
		}
		sshArguments = append(sshArguments, sshOptionFlagConstant, trimmedOption)
	}
	if executor.configuration.SSHPort > 0 {
		sshArguments = append(sshArguments, sshPortFlagConstant, strconv.Itoa(executor.configuration.SSHPort))
	}
	sshUser := strings.TrimSpace(executor.configuration.SSHUser)
	if len(sshUser) > 0 && !strings.Contains(host, hostUserSeparatorConstant) {
		sshArguments = append(sshArguments, sshLoginFlagConstant, sshUser)
	}
	return append(sshArguments, host, sshArgumentTerminatorConstant, command)
}

func isLocalHost(host string) bool {
	return host == localHostNameConstant || host == localhostHostNameConstant
}

// QuoteShellArgument wraps value in single quotes for POSIX shells.
func QuoteShellArgument(value string) string {
	return singleQuoteConstant + strings.ReplaceAll(value, singleQuoteConstant, escapedSingleQuoteConstant) + singleQuoteConstant
}

package deploylock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/deployutils/internal/remote"
)

const (
	redisCLICommandConstant         = "redis-cli"
	redisCLIRawFlagConstant         = "--raw"
	redisSetIfAbsentCommandConstant = "SETNX"
	redisGetCommandConstant         = "GET"
	redisDeleteCommandConstant      = "DEL"
	redisIntegerPrefixConstant      = "(integer)"
	redisSetReplyConstant           = "1"
	redisUnsetReplyConstant         = "0"
	cliRunnerMissingMessageConstant = "redis-cli store requires a command runner"
	cliHostMissingMessageConstant   = "redis-cli store requires a host"
	unexpectedReplyTemplateConstant = "unexpected redis-cli reply %q"
	argumentSeparatorConstant       = " "
)

// ErrCLIRunnerNotConfigured indicates a CLIStore without a command runner.
var ErrCLIRunnerNotConfigured = errors.New(cliRunnerMissingMessageConstant)

// ErrCLIHostNotConfigured indicates a CLIStore without a host.
var ErrCLIHostNotConfigured = errors.New(cliHostMissingMessageConstant)

// CLIStore keeps locks in a Redis server by running redis-cli on a remote host.
type CLIStore struct {
	Runner remote.CommandRunner
	Host   string
	// Arguments are passed to redis-cli before the command, for example -h, -p, or -n.
	Arguments []string
	// User runs redis-cli through sudo when set.
	User string
}

// SetIfAbsent issues SETNX through redis-cli.
func (store CLIStore) SetIfAbsent(executionContext context.Context, key string, value string) (bool, error) {
	reply, runError := store.run(executionContext, redisSetIfAbsentCommandConstant, key, value)
	if runError != nil {
		return false, runError
	}
	switch parseIntegerReply(reply) {
	case redisSetReplyConstant:
		return true, nil
	case redisUnsetReplyConstant:
		return false, nil
	default:
		return false, fmt.Errorf(unexpectedReplyTemplateConstant, reply)
	}
}

// Get issues GET through redis-cli. An empty reply means the key is missing.
func (store CLIStore) Get(executionContext context.Context, key string) (string, bool, error) {
	reply, runError := store.run(executionContext, redisGetCommandConstant, key)
	if runError != nil {
		return "", false, runError
	}
	value := strings.TrimSpace(reply)
	if len(value) == 0 {
		return "", false, nil
	}
	return value, true, nil
}

// Delete issues DEL through redis-cli.
func (store CLIStore) Delete(executionContext context.Context, key string) error {
	_, runError := store.run(executionContext, redisDeleteCommandConstant, key)
	return runError
}

// Command renders the redis-cli invocation for the given command and arguments.
func (store CLIStore) Command(redisArguments ...string) string {
	commandParts := []string{redisCLICommandConstant}
	for _, cliArgument := range store.Arguments {
		trimmedArgument := strings.TrimSpace(cliArgument)
		if len(trimmedArgument) > 0 {
			commandParts = append(commandParts, remote.QuoteShellArgument(trimmedArgument))
		}
	}
	commandParts = append(commandParts, redisCLIRawFlagConstant)
	for _, redisArgument := range redisArguments {
		commandParts = append(commandParts, remote.QuoteShellArgument(redisArgument))
	}
	return strings.Join(commandParts, argumentSeparatorConstant)
}

func (store CLIStore) run(executionContext context.Context, redisArguments ...string) (string, error) {
	if store.Runner == nil {
		return "", ErrCLIRunnerNotConfigured
	}
	host := strings.TrimSpace(store.Host)
	if len(host) == 0 {
		return "", ErrCLIHostNotConfigured
	}
	return remote.RunOnHost(executionContext, store.Runner, host, store.Command(redisArguments...), remote.RunOptions{User: store.User})
}

func parseIntegerReply(reply string) string {
	trimmedReply := strings.TrimSpace(reply)
	trimmedReply = strings.TrimPrefix(trimmedReply, redisIntegerPrefixConstant)
	return strings.TrimSpace(trimmedReply)
}

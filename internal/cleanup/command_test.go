package cleanup_test

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/deployutils/internal/cleanup"
	"github.com/temirov/deployutils/internal/deploylock"
	"github.com/temirov/deployutils/internal/remote"
)

type routingRunner struct {
	mutex        sync.Mutex
	listOutput   string
	commands     []string
	destroyCalls int
}

func (runner *routingRunner) Run(_ context.Context, hosts []string, command string, _ remote.RunOptions) (remote.Results, error) {
	runner.mutex.Lock()
	defer runner.mutex.Unlock()
	runner.commands = append(runner.commands, command)
	results := make(remote.Results, 0, len(hosts))
	for _, host := range hosts {
		hostResult := remote.HostResult{Host: host, Succeeded: true}
		if len(runner.commands) == 1 {
			hostResult.StandardOutput = runner.listOutput
		} else {
			runner.destroyCalls++
		}
		results = append(results, hostResult)
	}
	return results, nil
}

type staticLockStore struct {
	holder string
}

func (store staticLockStore) SetIfAbsent(context.Context, string, string) (bool, error) {
	return len(store.holder) == 0, nil
}

func (store staticLockStore) Get(context.Context, string) (string, bool, error) {
	return store.holder, len(store.holder) > 0, nil
}

func (store staticLockStore) Delete(context.Context, string) error {
	return nil
}

func noTeamCity(string) (string, bool) {
	return "", false
}

func buildPruneCommand(testInstance *testing.T, builder *cleanup.CommandBuilder, arguments ...string) (*bytes.Buffer, error) {
	testInstance.Helper()
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(&bytes.Buffer{})
	command.SilenceUsage = true
	command.SilenceErrors = true
	command.SetArgs(arguments)
	return outputBuffer, command.ExecuteContext(context.Background())
}

func TestPruneCommandDestroysStaleBranches(testInstance *testing.T) {
	runner := &routingRunner{listOutput: "feat-a:2024-03-01 10:00:00 +0000 UTC\nmaster:2024-01-01 10:00:00 +0000 UTC\n"}
	builder := &cleanup.CommandBuilder{
		CommandRunner:     runner,
		Clock:             fixedClock,
		EnvironmentLookup: noTeamCity,
	}

	output, executionError := buildPruneCommand(testInstance, builder,
		"--hosts", "web-1",
		"--project-name", "shop",
		"--destroy-command", "docker compose -p {slug} down",
	)

	require.NoError(testInstance, executionError)
	require.Equal(testInstance, "attempted: 1, failures: 0\n", output.String())
	require.Equal(testInstance, "docker compose -p 'feat-a' down", runner.commands[1])
	require.Equal(testInstance, 1, runner.destroyCalls)
}

func TestPruneCommandDryRunEmitsTeamCityMessages(testInstance *testing.T) {
	runner := &routingRunner{listOutput: "feat-a:2024-03-01 10:00:00 +0000 UTC\n"}
	builder := &cleanup.CommandBuilder{CommandRunner: runner, Clock: fixedClock, EnvironmentLookup: noTeamCity}

	output, executionError := buildPruneCommand(testInstance, builder,
		"--hosts", "web-1",
		"--project-name", "shop",
		"--dry-run",
		"--teamcity",
	)

	require.NoError(testInstance, executionError)
	require.Zero(testInstance, runner.destroyCalls)
	require.Contains(testInstance, output.String(), "##teamcity[buildStatus text='Branches destroyed: 1, failures: 0']")
}

func TestPruneCommandRespectsDeployLock(testInstance *testing.T) {
	runner := &routingRunner{listOutput: "feat-a:2024-03-01 10:00:00 +0000 UTC\n"}
	builder := &cleanup.CommandBuilder{
		CommandRunner:     runner,
		Clock:             fixedClock,
		EnvironmentLookup: noTeamCity,
		LockStore:         staticLockStore{holder: "alice@ci-1"},
	}

	_, executionError := buildPruneCommand(testInstance, builder,
		"--hosts", "web-1",
		"--project-name", "shop",
		"--destroy-command", "destroy {slug}",
		"--respect-lock",
	)

	var heldError *deploylock.LockHeldError
	require.ErrorAs(testInstance, executionError, &heldError)
	require.Empty(testInstance, runner.commands)
}

func TestPruneCommandRequiresDestroyCommand(testInstance *testing.T) {
	builder := &cleanup.CommandBuilder{CommandRunner: &routingRunner{}, Clock: fixedClock, EnvironmentLookup: noTeamCity}

	_, executionError := buildPruneCommand(testInstance, builder, "--hosts", "web-1", "--project-name", "shop")
	require.ErrorIs(testInstance, executionError, cleanup.ErrDestroyCommandNotConfigured)
}

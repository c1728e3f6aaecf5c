package health_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/deployutils/internal/health"
	"github.com/temirov/deployutils/internal/remote"
)

func TestWaitCommandUsesRoleHosts(testInstance *testing.T) {
	runner := &fakeCommandRunner{results: remote.Results{{Host: "web-1", Succeeded: true}}}
	builder := health.CommandBuilder{
		ConfigurationProvider: health.DefaultCommandConfiguration,
		RemoteConfigurationProvider: func() remote.Configuration {
			return remote.Configuration{Roles: map[string][]string{"web": {"web-1"}}}
		},
		CommandRunner: runner,
		Sleeper:       func(time.Duration) {},
	}

	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	command.SetContext(context.Background())
	command.SetArgs([]string{"--role", "web", "--url", "http://localhost/health"})

	require.NoError(testInstance, command.Execute())
	require.Equal(testInstance, [][]string{{"web-1"}}, runner.hosts)
	require.Equal(testInstance, []string{"curl -sSL -D - 'http://localhost/health' -o /dev/null | head -n 1 | grep '200 OK'"}, runner.commands)
}

func TestWaitCommandFailures(testInstance *testing.T) {
	testCases := []struct {
		name      string
		arguments []string
		results   remote.Results
		expectOK  bool
	}{
		{
			name:      "timeout",
			arguments: []string{"--hosts", "web-1", "--url", "http://x/", "--interval", "1s", "--max-wait", "2s"},
			results:   remote.Results{{Host: "web-1"}},
		},
		{
			name:      "timeout_warn_only",
			arguments: []string{"--hosts", "web-1", "--url", "http://x/", "--interval", "1s", "--max-wait", "2s", "--warn-only"},
			results:   remote.Results{{Host: "web-1"}},
			expectOK:  true,
		},
		{
			name:      "unknown_quorum",
			arguments: []string{"--hosts", "web-1", "--url", "http://x/", "--quorum", "most"},
		},
		{
			name:      "missing_url",
			arguments: []string{"--hosts", "web-1"},
		},
		{
			name:      "unknown_role",
			arguments: []string{"--role", "db", "--url", "http://x/"},
		},
		{
			name:      "positional_arguments",
			arguments: []string{"extra"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			builder := health.CommandBuilder{
				CommandRunner: &fakeCommandRunner{results: testCase.results},
				Sleeper:       func(time.Duration) {},
			}
			command, buildError := builder.Build()
			require.NoError(subTest, buildError)
			command.SetContext(context.Background())
			command.SilenceUsage = true
			command.SilenceErrors = true
			command.SetArgs(testCase.arguments)

			executionError := command.Execute()
			if testCase.expectOK {
				require.NoError(subTest, executionError)
				return
			}
			require.Error(subTest, executionError)
		})
	}
}

package psql_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/deployutils/internal/psql"
	"github.com/temirov/deployutils/internal/remote"
)

type recordingRunner struct {
	commands []string
	users    []string
	output   string
	failed   bool
}

func (runner *recordingRunner) Run(_ context.Context, hosts []string, command string, options remote.RunOptions) (remote.Results, error) {
	runner.commands = append(runner.commands, command)
	runner.users = append(runner.users, options.User)
	results := make(remote.Results, 0, len(hosts))
	for _, host := range hosts {
		hostResult := remote.HostResult{Host: host, Succeeded: !runner.failed, StandardOutput: runner.output}
		if runner.failed {
			hostResult.ExitCode = 1
			hostResult.StandardError = "ERROR:  database exists"
		}
		results = append(results, hostResult)
	}
	return results, nil
}

func TestCreateDatabaseStatement(testInstance *testing.T) {
	testCases := []struct {
		name              string
		databaseName      string
		owner             string
		options           map[string]string
		expectedStatement string
		expectedError     error
	}{
		{
			name:              "plain",
			databaseName:      "feature_x",
			expectedStatement: `CREATE DATABASE "feature_x"`,
		},
		{
			name:              "owner",
			databaseName:      "feature_x",
			owner:             "app",
			expectedStatement: `CREATE DATABASE "feature_x" OWNER="app"`,
		},
		{
			name:              "sorted_options",
			databaseName:      "feature_x",
			owner:             "app",
			options:           map[string]string{"TEMPLATE": "template0", "ENCODING": "UTF8"},
			expectedStatement: `CREATE DATABASE "feature_x" ENCODING="UTF8" OWNER="app" TEMPLATE="template0"`,
		},
		{
			name:              "quoted_identifier",
			databaseName:      `odd"name`,
			expectedStatement: `CREATE DATABASE "odd""name"`,
		},
		{
			name:          "empty_name",
			databaseName:  " ",
			expectedError: psql.ErrEmptyDatabaseName,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			statement, statementError := psql.CreateDatabaseStatement(testCase.databaseName, testCase.owner, testCase.options)
			if testCase.expectedError != nil {
				require.ErrorIs(subTest, statementError, testCase.expectedError)
				return
			}
			require.NoError(subTest, statementError)
			require.Equal(subTest, testCase.expectedStatement, statement)
		})
	}
}

func TestClientRunsStatementsAsPostgres(testInstance *testing.T) {
	runner := &recordingRunner{}
	client := psql.Client{Runner: runner, Host: "db1", Database: "postgres"}

	require.NoError(testInstance, client.CreateDatabase(context.Background(), "feature_x", "app", nil))
	require.NoError(testInstance, client.DropDatabase(context.Background(), "feature_x"))

	require.Equal(testInstance, []string{
		`psql 'postgres' -c 'CREATE DATABASE "feature_x" OWNER="app";'`,
		`psql 'postgres' -c 'DROP DATABASE "feature_x";'`,
	}, runner.commands)
	require.Equal(testInstance, []string{"postgres", "postgres"}, runner.users)
}

func TestClientExec(testInstance *testing.T) {
	testCases := []struct {
		name          string
		client        psql.Client
		statement     string
		runner        *recordingRunner
		expectedUser  string
		expectedError error
	}{
		{
			name:         "custom_user",
			client:       psql.Client{Host: "db1", Database: "app", User: "dba"},
			statement:    "SELECT 1",
			runner:       &recordingRunner{output: "1\n"},
			expectedUser: "dba",
		},
		{
			name:          "empty_statement",
			client:        psql.Client{Host: "db1", Database: "app"},
			statement:     "  ",
			runner:        &recordingRunner{},
			expectedError: psql.ErrEmptyStatement,
		},
		{
			name:          "missing_host",
			client:        psql.Client{Database: "app"},
			statement:     "SELECT 1",
			runner:        &recordingRunner{},
			expectedError: psql.ErrHostNotConfigured,
		},
		{
			name:          "missing_database",
			client:        psql.Client{Host: "db1"},
			statement:     "SELECT 1",
			runner:        &recordingRunner{},
			expectedError: psql.ErrDatabaseNotConfigured,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			client := testCase.client
			client.Runner = testCase.runner
			output, execError := client.Exec(context.Background(), testCase.statement)
			if testCase.expectedError != nil {
				require.ErrorIs(subTest, execError, testCase.expectedError)
				require.Empty(subTest, testCase.runner.commands)
				return
			}
			require.NoError(subTest, execError)
			require.Equal(subTest, testCase.runner.output, output)
			require.Equal(subTest, []string{testCase.expectedUser}, testCase.runner.users)
		})
	}
}

func TestClientSurfacesFailedStatement(testInstance *testing.T) {
	client := psql.Client{Runner: &recordingRunner{failed: true}, Host: "db1", Database: "postgres"}
	createError := client.CreateDatabase(context.Background(), "feature_x", "", nil)

	var hostError remote.HostCommandError
	require.ErrorAs(testInstance, createError, &hostError)
	require.Equal(testInstance, 1, hostError.Result.ExitCode)
}

func TestClientRequiresRunner(testInstance *testing.T) {
	_, execError := psql.Client{Host: "db1", Database: "postgres"}.Exec(context.Background(), "SELECT 1")
	require.ErrorIs(testInstance, execError, psql.ErrRunnerNotConfigured)
}

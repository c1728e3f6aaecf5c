package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/deployutils/internal/execshell"
	"github.com/temirov/deployutils/internal/utils"
)

const (
	testConfigurationFileNameConstant   = "config.yaml"
	testEnvironmentFileNameConstant     = "deploy.env"
	testLockNameEnvironmentKeyConstant  = "DEPLOYUTILS_TOOLS_LOCK_NAME"
	testConfigurationContentConstant    = "common:\n  log_level: warn\ntools:\n  wait:\n    max_wait: 45s\n  deploy:\n    required_branches: [master, demo]\nremote:\n  roles:\n    web: [web1, web2]\n"
	testEnvironmentFileContentConstant  = testLockNameEnvironmentKeyConstant + "=staging_lock\n"
	testVersionConstant                 = "v1.4.2"
	testExpectedVersionOutputConstant   = "deployutils version: v1.4.2\n"
	testRegisteredCommandsCountConstant = 8
)

func writeTestFile(testInstance *testing.T, directory string, name string, content string) string {
	testInstance.Helper()
	filePath := filepath.Join(directory, name)
	require.NoError(testInstance, os.WriteFile(filePath, []byte(content), 0o600))
	return filePath
}

// unsetEnvironmentForTest removes a variable for the duration of the test and restores it afterwards.
func unsetEnvironmentForTest(testInstance *testing.T, key string) {
	testInstance.Helper()
	testInstance.Setenv(key, "")
	require.NoError(testInstance, os.Unsetenv(key))
}

func TestNewApplicationRegistersCommands(testInstance *testing.T) {
	application, applicationError := NewApplication()
	require.NoError(testInstance, applicationError)

	registeredNames := make([]string, 0, len(application.rootCommand.Commands()))
	for _, subcommand := range application.rootCommand.Commands() {
		registeredNames = append(registeredNames, subcommand.Name())
	}

	require.Len(testInstance, registeredNames, testRegisteredCommandsCountConstant)
	require.Subset(testInstance, registeredNames, []string{"wait", "prune", "lock", "slug", "release", "swarm", "psql", "deploy"})
}

func TestDefaultConfigurationValuesCoverEveryCommand(testInstance *testing.T) {
	defaultValues := DefaultConfigurationValues()

	expectedKeys := []string{
		commonLogLevelConfigKeyConstant,
		commonLogFormatConfigKeyConstant,
		"remote.parallelism",
		"tools.wait.poll_interval",
		"tools.wait.max_wait",
		"tools.prune.days",
		"tools.lock.name",
		"tools.release.target",
		"tools.swarm.role",
		"tools.psql.database",
		"tools.deploy.lock",
	}
	for _, expectedKey := range expectedKeys {
		require.Contains(testInstance, defaultValues, expectedKey)
	}
	require.Equal(testInstance, "deploy_lock", defaultValues["tools.lock.name"])
}

func TestInitializeConfigurationLoadsFilesAndEnvironment(testInstance *testing.T) {
	unsetEnvironmentForTest(testInstance, testLockNameEnvironmentKeyConstant)

	temporaryDirectory := testInstance.TempDir()
	configurationPath := writeTestFile(testInstance, temporaryDirectory, testConfigurationFileNameConstant, testConfigurationContentConstant)
	environmentPath := writeTestFile(testInstance, temporaryDirectory, testEnvironmentFileNameConstant, testEnvironmentFileContentConstant)

	application, applicationError := NewApplication()
	require.NoError(testInstance, applicationError)

	rootCommand := application.rootCommand
	rootCommand.SetContext(context.Background())
	require.NoError(testInstance, rootCommand.PersistentFlags().Set(configFileFlagNameConstant, configurationPath))
	require.NoError(testInstance, rootCommand.PersistentFlags().Set(environmentFileFlagNameConstant, environmentPath))

	require.NoError(testInstance, application.initializeConfiguration(rootCommand))

	configuration := application.configuration
	require.Equal(testInstance, "warn", configuration.Common.LogLevel)
	require.Equal(testInstance, 45*time.Second, configuration.Tools.Wait.MaxWait)
	require.Equal(testInstance, 3*time.Second, configuration.Tools.Wait.PollInterval)
	require.Equal(testInstance, []string{"master", "demo"}, configuration.Tools.Deploy.RequiredBranches)
	require.Equal(testInstance, []string{"web1", "web2"}, configuration.Remote.Roles["web"])
	require.Equal(testInstance, "staging_lock", configuration.Tools.Lock.Name)
	require.True(testInstance, configuration.Tools.Deploy.Lock)

	loadedConfiguration, available := application.commandContextAccessor.LoadedConfiguration(rootCommand.Context())
	require.True(testInstance, available)
	require.Equal(testInstance, configurationPath, loadedConfiguration.ConfigFileUsed)
	require.Equal(testInstance, []string{environmentPath}, loadedConfiguration.EnvironmentFilesUsed)
}

func TestInitializeConfigurationFlagOverridesLogSettings(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()
	configurationPath := writeTestFile(testInstance, temporaryDirectory, testConfigurationFileNameConstant, testConfigurationContentConstant)

	application, applicationError := NewApplication()
	require.NoError(testInstance, applicationError)

	rootCommand := application.rootCommand
	require.NoError(testInstance, rootCommand.PersistentFlags().Set(configFileFlagNameConstant, configurationPath))
	require.NoError(testInstance, rootCommand.PersistentFlags().Set(logLevelFlagNameConstant, "debug"))
	require.NoError(testInstance, rootCommand.PersistentFlags().Set(logFormatFlagNameConstant, "console"))

	require.NoError(testInstance, application.initializeConfiguration(rootCommand))
	require.Equal(testInstance, "debug", application.configuration.Common.LogLevel)
	require.Equal(testInstance, string(utils.LogFormatConsole), application.configuration.Common.LogFormat)
	require.True(testInstance, application.humanReadableLoggingEnabled())
}

func TestInitializeConfigurationRejectsInvalidLogLevel(testInstance *testing.T) {
	application, applicationError := NewApplication()
	require.NoError(testInstance, applicationError)

	rootCommand := application.rootCommand
	require.NoError(testInstance, rootCommand.PersistentFlags().Set(logLevelFlagNameConstant, "loud"))

	require.Error(testInstance, application.initializeConfiguration(rootCommand))
}

func TestInitializeConfigurationRequiresExplicitEnvironmentFile(testInstance *testing.T) {
	application, applicationError := NewApplication()
	require.NoError(testInstance, applicationError)

	rootCommand := application.rootCommand
	missingPath := filepath.Join(testInstance.TempDir(), "missing.env")
	require.NoError(testInstance, rootCommand.PersistentFlags().Set(environmentFileFlagNameConstant, missingPath))

	require.Error(testInstance, application.initializeConfiguration(rootCommand))
}

func TestApplicationCommandEventsObserverFollowsLogFormat(testInstance *testing.T) {
	testCases := []struct {
		name             string
		logFormat        string
		expectedDelegate bool
	}{
		{name: "structured", logFormat: string(utils.LogFormatStructured), expectedDelegate: false},
		{name: "console", logFormat: string(utils.LogFormatConsole), expectedDelegate: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			application, applicationError := NewApplication()
			require.NoError(subTest, applicationError)
			application.configuration.Common.LogFormat = testCase.logFormat

			observer := applicationCommandEventsObserver{application: application}
			require.Equal(subTest, testCase.expectedDelegate, observer.delegate() != nil)

			require.NotPanics(subTest, func() {
				command := execshell.ShellCommand{}
				observer.CommandStarted(command)
				observer.CommandCompleted(command, execshell.ExecutionResult{})
			})
		})
	}
}

func TestApplicationVersionFlagPrintsVersion(testInstance *testing.T) {
	application, applicationError := NewApplication()
	require.NoError(testInstance, applicationError)
	application.versionResolver = func(context.Context) string {
		return testVersionConstant
	}

	outputBuffer := &bytes.Buffer{}
	application.rootCommand.SetOut(outputBuffer)
	application.rootCommand.SetArgs([]string{"--version"})

	require.NoError(testInstance, application.Execute())
	require.Equal(testInstance, testExpectedVersionOutputConstant, outputBuffer.String())
}

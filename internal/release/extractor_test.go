package release_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/deployutils/internal/release"
	"github.com/temirov/deployutils/internal/remote"
)

const (
	testReleaseSHA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testMiddleSHA  = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	testFeatureSHA = "cccccccccccccccccccccccccccccccccccccccc"
	testBaseSHA    = "dddddddddddddddddddddddddddddddddddddddd"
)

type scriptedRunner struct {
	responses map[string]remote.HostResult
	commands  []string
}

func (runner *scriptedRunner) Run(_ context.Context, hosts []string, command string, _ remote.RunOptions) (remote.Results, error) {
	runner.commands = append(runner.commands, command)
	hostResult := remote.HostResult{Succeeded: true}
	for commandFragment, response := range runner.responses {
		if strings.Contains(command, commandFragment) {
			hostResult = response
		}
	}
	hostResult.Host = hosts[0]
	return remote.Results{hostResult}, nil
}

type scriptedPrompter struct {
	answers []string
	prompts int
}

func (prompter *scriptedPrompter) Ask(string) (string, error) {
	if prompter.prompts >= len(prompter.answers) {
		return "", release.ErrPromptClosed
	}
	answer := prompter.answers[prompter.prompts]
	prompter.prompts++
	return answer, nil
}

func noEnvironment(string) (string, bool) {
	return "", false
}

func fourCommitLog() string {
	return "Last login: Mon Mar  4 10:00:00 2024\n" +
		"\n" +
		testReleaseSHA + " Merge feature-x\n" +
		testMiddleSHA + " Fix typo\n" +
		testFeatureSHA + " Add feature x\n" +
		testBaseSHA + " Previous release\n"
}

func TestParseLogDropsLeadingNoise(testInstance *testing.T) {
	commits := release.ParseLog(fourCommitLog())

	require.Len(testInstance, commits, 4)
	require.Equal(testInstance, release.Commit{SHA: testReleaseSHA, ShortSHA: "aaaaaaa", Message: "Merge feature-x"}, commits[0])
	require.Equal(testInstance, testBaseSHA, commits[3].SHA)
	require.Empty(testInstance, release.ParseLog("FreeBSD tip: use ls -G\n"))
}

func TestExtractInCIModeSkipsPrompt(testInstance *testing.T) {
	runner := &scriptedRunner{responses: map[string]remote.HostResult{
		"HEAD~1.." + testReleaseSHA: {Succeeded: true, StandardOutput: fourCommitLog()},
	}}
	prompter := &scriptedPrompter{}
	extractor := release.Extractor{
		Runner:         runner,
		Host:           "web-1",
		RepositoryPath: "/srv/app",
		Prompter:       prompter,
		LookupEnvironment: func(name string) (string, bool) {
			return testReleaseSHA, name == "BUILD_VCS_NUMBER"
		},
	}

	releaseInfo, extractError := extractor.Extract(context.Background(), "origin/master")
	require.NoError(testInstance, extractError)
	require.Zero(testInstance, prompter.prompts)
	require.Equal(testInstance, testBaseSHA, releaseInfo.Base.SHA)
	require.Equal(testInstance, testReleaseSHA, releaseInfo.Release.SHA)
	require.Len(testInstance, releaseInfo.Changelog, 3)
	require.Equal(testInstance, "cd '/srv/app' && git fetch origin", runner.commands[0])
	require.Equal(testInstance, "cd '/srv/app' && git --no-pager log --pretty=oneline --no-color --no-decorate HEAD~1.."+testReleaseSHA, runner.commands[1])
}

func TestExtractFallsBackToTargetParent(testInstance *testing.T) {
	runner := &scriptedRunner{responses: map[string]remote.HostResult{
		"HEAD~1..origin/master":          {Succeeded: true, StandardOutput: "\n"},
		"origin/master~1..origin/master": {Succeeded: true, StandardOutput: testReleaseSHA + " Hotfix\n" + testBaseSHA + " Previous\n"},
	}}
	extractor := release.Extractor{Runner: runner, Host: "web-1", LookupEnvironment: noEnvironment}

	releaseInfo, extractError := extractor.Extract(context.Background(), "origin/master")
	require.NoError(testInstance, extractError)
	require.Equal(testInstance, testReleaseSHA, releaseInfo.Release.SHA)
	require.Equal(testInstance, []release.Commit{{SHA: testReleaseSHA, ShortSHA: "aaaaaaa", Message: "Hotfix"}}, releaseInfo.Changelog)
	require.Len(testInstance, runner.commands, 3)
}

func TestExtractPromptsForReleasedCommit(testInstance *testing.T) {
	runner := &scriptedRunner{responses: map[string]remote.HostResult{
		"HEAD~1..origin/master": {Succeeded: true, StandardOutput: fourCommitLog()},
	}}
	prompter := &scriptedPrompter{answers: []string{"short", strings.Repeat("e", 40), testMiddleSHA}}
	outputBuffer := &bytes.Buffer{}
	extractor := release.Extractor{Runner: runner, Host: "web-1", LookupEnvironment: noEnvironment, Prompter: prompter, Output: outputBuffer}

	releaseInfo, extractError := extractor.Extract(context.Background(), "origin/master")
	require.NoError(testInstance, extractError)
	require.Equal(testInstance, 3, prompter.prompts)
	require.Equal(testInstance, []string{testMiddleSHA, testFeatureSHA}, []string{releaseInfo.Changelog[0].SHA, releaseInfo.Changelog[1].SHA})
	require.Contains(testInstance, outputBuffer.String(), "There should be 40 characters in commit hash")
	require.Contains(testInstance, outputBuffer.String(), "does not match any commit hash")
}

func TestExtractErrors(testInstance *testing.T) {
	_, runnerError := release.Extractor{Host: "web-1"}.Extract(context.Background(), "origin/master")
	require.ErrorIs(testInstance, runnerError, release.ErrRunnerNotConfigured)

	_, hostError := release.Extractor{Runner: &scriptedRunner{}}.Extract(context.Background(), "origin/master")
	require.ErrorIs(testInstance, hostError, release.ErrHostNotConfigured)

	_, targetError := release.Extractor{Runner: &scriptedRunner{}, Host: "web-1", LookupEnvironment: noEnvironment}.Extract(context.Background(), " ")
	require.ErrorIs(testInstance, targetError, release.ErrTargetRequired)

	logFailure := errors.New("fatal: bad revision")
	failingRunner := &scriptedRunner{responses: map[string]remote.HostResult{
		"git --no-pager log": {Err: logFailure, ExitCode: 128},
	}}
	_, logError := release.Extractor{Runner: failingRunner, Host: "web-1", LookupEnvironment: noEnvironment}.Extract(context.Background(), "origin/master")
	require.ErrorIs(testInstance, logError, logFailure)

	promptRunner := &scriptedRunner{responses: map[string]remote.HostResult{
		"HEAD~1..origin/master": {Succeeded: true, StandardOutput: fourCommitLog()},
	}}
	_, prompterError := release.Extractor{Runner: promptRunner, Host: "web-1", LookupEnvironment: noEnvironment}.Extract(context.Background(), "origin/master")
	require.ErrorIs(testInstance, prompterError, release.ErrPrompterNotConfigured)
}

func TestExtractWithEmptyHistory(testInstance *testing.T) {
	extractor := release.Extractor{Runner: &scriptedRunner{}, Host: "web-1", LookupEnvironment: noEnvironment}

	releaseInfo, extractError := extractor.Extract(context.Background(), "origin/master")
	require.NoError(testInstance, extractError)
	require.Nil(testInstance, releaseInfo.Base)
	require.Nil(testInstance, releaseInfo.Release)
	require.Empty(testInstance, releaseInfo.Changelog)
}

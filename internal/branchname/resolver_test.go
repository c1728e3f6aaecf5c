package branchname_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/branchname"
	"github.com/temirov/deployutils/internal/execshell"
	"github.com/temirov/deployutils/internal/task"
)

type fakeGitExecutor struct {
	output  string
	err     error
	details []execshell.CommandDetails
}

func (executor *fakeGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.details = append(executor.details, details)
	if executor.err != nil {
		return execshell.ExecutionResult{}, executor.err
	}
	return execshell.ExecutionResult{StandardOutput: executor.output}, nil
}

func environmentWith(values map[string]string) branchname.EnvironmentLookup {
	return func(name string) (string, bool) {
		value, found := values[name]
		return value, found
	}
}

func TestResolverPrecedence(testInstance *testing.T) {
	testCases := []struct {
		name           string
		explicitBranch string
		environment    map[string]string
		gitExecutor    *fakeGitExecutor
		expectedBranch string
		expectedError  error
	}{
		{
			name:           "explicit_wins",
			explicitBranch: " feature/a ",
			environment:    map[string]string{"BUILD_BRANCH": "feature/ci"},
			gitExecutor:    &fakeGitExecutor{output: "feature/git\n"},
			expectedBranch: "feature/a",
		},
		{
			name:           "ci_branch",
			environment:    map[string]string{"BUILD_BRANCH": "feature/ci"},
			gitExecutor:    &fakeGitExecutor{output: "feature/git\n"},
			expectedBranch: "feature/ci",
		},
		{
			name:           "git_branch",
			gitExecutor:    &fakeGitExecutor{output: "feature/git\n"},
			expectedBranch: "feature/git",
		},
		{
			name:          "detached_head",
			gitExecutor:   &fakeGitExecutor{output: "HEAD\n"},
			expectedError: branchname.ErrBranchRequired,
		},
		{
			name:          "not_a_repository",
			gitExecutor:   &fakeGitExecutor{err: errors.New("fatal: not a git repository")},
			expectedError: branchname.ErrBranchRequired,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			resolver := branchname.Resolver{
				Git:               testCase.gitExecutor,
				WorkingDirectory:  "/srv/app",
				LookupEnvironment: environmentWith(testCase.environment),
			}

			branch, resolveError := resolver.Resolve(context.Background(), testCase.explicitBranch)
			if testCase.expectedError != nil {
				require.ErrorIs(subTest, resolveError, testCase.expectedError)
				return
			}
			require.NoError(subTest, resolveError)
			require.Equal(subTest, testCase.expectedBranch, branch)
		})
	}
}

func TestResolverRunsRevParse(testInstance *testing.T) {
	gitExecutor := &fakeGitExecutor{output: "develop\n"}
	resolver := branchname.Resolver{Git: gitExecutor, WorkingDirectory: "/srv/app", LookupEnvironment: environmentWith(nil)}

	_, resolveError := resolver.Resolve(context.Background(), "")
	require.NoError(testInstance, resolveError)
	require.Equal(testInstance, []execshell.CommandDetails{{
		Arguments:        []string{"rev-parse", "--abbrev-ref", "HEAD"},
		WorkingDirectory: "/srv/app",
	}}, gitExecutor.details)
}

func TestResolverWithoutGit(testInstance *testing.T) {
	_, resolveError := branchname.Resolver{LookupEnvironment: environmentWith(nil)}.Resolve(context.Background(), "")
	require.ErrorIs(testInstance, resolveError, branchname.ErrBranchRequired)
}

func TestRequireMiddleware(testInstance *testing.T) {
	testCases := []struct {
		name             string
		requestBranch    string
		requiredBranches []string
		force            bool
		expectedCalled   bool
		expectedSlug     string
	}{
		{name: "any_branch", requestBranch: "feature/x-1", expectedCalled: true, expectedSlug: "x-1"},
		{name: "required_match", requestBranch: "master", requiredBranches: []string{"master"}, expectedCalled: true, expectedSlug: "master"},
		{name: "required_mismatch_skips", requestBranch: "feature/x-1", requiredBranches: []string{"master"}},
		{name: "forced", requestBranch: "feature/x-1", requiredBranches: []string{"master"}, force: true, expectedCalled: true, expectedSlug: "x-1"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			called := false
			var receivedRequest task.Request
			operation := task.Chain(func(_ context.Context, request task.Request) error {
				called = true
				receivedRequest = request
				return nil
			}, branchname.Require(branchname.Resolver{LookupEnvironment: environmentWith(nil)}, branchname.RequireOptions{
				RequiredBranches: testCase.requiredBranches,
				Force:            testCase.force,
				Logger:           zap.NewNop(),
			}))

			require.NoError(subTest, operation(context.Background(), task.Request{Branch: testCase.requestBranch}))
			require.Equal(subTest, testCase.expectedCalled, called)
			if testCase.expectedCalled {
				require.Equal(subTest, testCase.requestBranch, receivedRequest.Branch)
				require.Equal(subTest, testCase.expectedSlug, receivedRequest.Slug)
			}
		})
	}
}

func TestRequireMiddlewarePropagatesResolveError(testInstance *testing.T) {
	called := false
	operation := task.Chain(func(context.Context, task.Request) error {
		called = true
		return nil
	}, branchname.Require(branchname.Resolver{LookupEnvironment: environmentWith(nil)}, branchname.RequireOptions{}))

	require.ErrorIs(testInstance, operation(context.Background(), task.Request{}), branchname.ErrBranchRequired)
	require.False(testInstance, called)
}

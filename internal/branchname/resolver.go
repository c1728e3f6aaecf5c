package branchname

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/temirov/deployutils/internal/execshell"
)

const (
	BuildBranchEnvironmentNameConstant = "BUILD_BRANCH"

	branchRequiredMessageConstant = "not in a git repository, provide a branch name"
	detachedHeadNameConstant      = "HEAD"
	gitRevParseSubcommandConstant = "rev-parse"
	gitAbbrevRefFlagConstant      = "--abbrev-ref"
	gitLookupFailedTemplate       = "%w: %w"
)

// ErrBranchRequired indicates that no branch could be determined.
var ErrBranchRequired = errors.New(branchRequiredMessageConstant)

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// EnvironmentLookup reads an environment variable.
type EnvironmentLookup func(name string) (string, bool)

// Resolver determines the branch an operation targets.
type Resolver struct {
	// Git reads the checked out branch. Without it only explicit and CI branches resolve.
	Git GitExecutor
	// WorkingDirectory is the repository inspected by git.
	WorkingDirectory string
	// LookupEnvironment defaults to os.LookupEnv.
	LookupEnvironment EnvironmentLookup
}

// Resolve returns the explicit branch, then BUILD_BRANCH, then the checked out git branch.
// A detached HEAD does not count as a branch.
func (resolver Resolver) Resolve(executionContext context.Context, explicitBranch string) (string, error) {
	if trimmedBranch := strings.TrimSpace(explicitBranch); len(trimmedBranch) > 0 {
		return trimmedBranch, nil
	}

	lookupEnvironment := resolver.LookupEnvironment
	if lookupEnvironment == nil {
		lookupEnvironment = os.LookupEnv
	}
	if ciBranch, found := lookupEnvironment(BuildBranchEnvironmentNameConstant); found && len(strings.TrimSpace(ciBranch)) > 0 {
		return strings.TrimSpace(ciBranch), nil
	}

	if resolver.Git == nil {
		return "", ErrBranchRequired
	}
	executionResult, gitError := resolver.Git.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, gitAbbrevRefFlagConstant, detachedHeadNameConstant},
		WorkingDirectory: resolver.WorkingDirectory,
	})
	if gitError != nil {
		return "", fmt.Errorf(gitLookupFailedTemplate, ErrBranchRequired, gitError)
	}
	activeBranch := strings.TrimSpace(executionResult.StandardOutput)
	if len(activeBranch) == 0 || activeBranch == detachedHeadNameConstant {
		return "", ErrBranchRequired
	}
	return activeBranch, nil
}

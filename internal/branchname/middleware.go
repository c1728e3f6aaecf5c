package branchname

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/task"
)

const (
	branchSkippedLogMessageConstant = "branch does not match the required branches"
	logFieldBranchConstant          = "branch"
	logFieldRequiredConstant        = "required"
)

// BranchResolver determines the branch an operation targets.
type BranchResolver interface {
	Resolve(executionContext context.Context, explicitBranch string) (string, error)
}

// RequireOptions configures Require.
type RequireOptions struct {
	// RequiredBranches limits the operation to these branches when non-empty.
	RequiredBranches []string
	// Force runs the operation on any branch.
	Force bool
	// Pattern shapes the slug derived for Request.Slug.
	Pattern *Pattern
	Logger  *zap.Logger
}

// Require returns middleware that resolves Request.Branch before the operation runs.
// Request.Slug is derived from the branch when empty. When RequiredBranches is set and
// the branch is not listed, the operation is skipped without an error unless forced.
func Require(resolver BranchResolver, options RequireOptions) task.Middleware {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next task.Operation) task.Operation {
		return func(executionContext context.Context, request task.Request) error {
			branch, resolveError := resolver.Resolve(executionContext, request.Branch)
			if resolveError != nil {
				return resolveError
			}
			if !options.Force && len(options.RequiredBranches) > 0 && !slices.Contains(options.RequiredBranches, branch) {
				logger.Info(branchSkippedLogMessageConstant, zap.String(logFieldBranchConstant, branch), zap.Strings(logFieldRequiredConstant, options.RequiredBranches))
				return nil
			}
			request.Branch = branch
			if len(request.Slug) == 0 {
				request.Slug = ToSlug(branch, options.Pattern)
			}
			return next(executionContext, request)
		}
	}
}

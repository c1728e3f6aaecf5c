package cleanup

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/teamcity"
)

const (
	DefaultSuiteNameConstant = "cleanup"

	listerMissingMessageConstant       = "cleanup requires a lister"
	destroyerMissingMessageConstant    = "cleanup requires a destroyer"
	negativeDaysMessageConstant        = "days must not be negative"
	listFailedTemplateConstant         = "list stale resources: %w"
	destroyTestNameTemplateConstant    = "Destroy %s"
	destroyFailureMessagePrefix        = "Error: "
	buildStatusTemplateConstant        = "Branches destroyed: %d, failures: %d"
	dryRunPlanLogMessageConstant       = "dry run, nothing will be destroyed"
	livePlanLogMessageConstant         = "stale resources will be destroyed"
	protectedSkipLogMessageConstant    = "skipping protected resource"
	destroyStartedLogMessageConstant   = "destroying resource"
	destroySucceededLogMessageConstant = "destroyed resource"
	dryRunDestroyLogMessageConstant    = "would destroy resource"
	destroyFailedLogMessageConstant    = "failed to destroy resource"
	pruneFinishedLogMessageConstant    = "cleanup finished"
	logFieldResourceConstant           = "resource"
	logFieldCountConstant              = "count"
	logFieldDaysConstant               = "days"
	logFieldAttemptedConstant          = "attempted"
	logFieldFailuresConstant           = "failures"
)

// ErrListerNotConfigured indicates Prune was called without a Lister.
var ErrListerNotConfigured = errors.New(listerMissingMessageConstant)

// ErrDestroyerNotConfigured indicates a live Prune without a Destroyer.
var ErrDestroyerNotConfigured = errors.New(destroyerMissingMessageConstant)

// ErrNegativeDays indicates a negative age threshold.
var ErrNegativeDays = errors.New(negativeDaysMessageConstant)

// Lister returns identifiers of resources created at least days ago.
type Lister interface {
	ListStale(executionContext context.Context, days int) ([]string, error)
}

// ListerFunc adapts a function to Lister.
type ListerFunc func(executionContext context.Context, days int) ([]string, error)

// ListStale calls the function.
func (lister ListerFunc) ListStale(executionContext context.Context, days int) ([]string, error) {
	return lister(executionContext, days)
}

// Destroyer tears down a single resource.
type Destroyer interface {
	Destroy(executionContext context.Context, identifier string) error
}

// DestroyerFunc adapts a function to Destroyer.
type DestroyerFunc func(executionContext context.Context, identifier string) error

// Destroy calls the function.
func (destroyer DestroyerFunc) Destroy(executionContext context.Context, identifier string) error {
	return destroyer(executionContext, identifier)
}

// Options configures a Prune run.
type Options struct {
	Days                 int
	DryRun               bool
	ProtectedIdentifiers []string
	// SuiteName labels the TeamCity suite. Defaults to "cleanup".
	SuiteName string
}

// Summary aggregates the outcome of a Prune run.
type Summary struct {
	Attempted int
	Failures  int
}

// Reaper destroys stale resources.
type Reaper struct {
	logger   *zap.Logger
	reporter *teamcity.Reporter
}

// NewReaper constructs a Reaper. A nil reporter disables TeamCity messages.
func NewReaper(logger *zap.Logger, reporter *teamcity.Reporter) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{logger: logger, reporter: reporter}
}

// Prune destroys every stale, unprotected resource. Destroy failures are logged
// and counted without stopping the run. A lister failure aborts before anything
// is destroyed. Dry runs count resources without destroying them.
func (reaper *Reaper) Prune(executionContext context.Context, lister Lister, destroyer Destroyer, options Options) (Summary, error) {
	if lister == nil {
		return Summary{}, ErrListerNotConfigured
	}
	if destroyer == nil && !options.DryRun {
		return Summary{}, ErrDestroyerNotConfigured
	}
	if options.Days < 0 {
		return Summary{}, ErrNegativeDays
	}

	staleIdentifiers, listError := lister.ListStale(executionContext, options.Days)
	if listError != nil {
		return Summary{}, fmt.Errorf(listFailedTemplateConstant, listError)
	}

	if options.DryRun {
		reaper.logger.Info(dryRunPlanLogMessageConstant, zap.Int(logFieldCountConstant, len(staleIdentifiers)), zap.Int(logFieldDaysConstant, options.Days))
	} else {
		reaper.logger.Info(livePlanLogMessageConstant, zap.Int(logFieldCountConstant, len(staleIdentifiers)), zap.Int(logFieldDaysConstant, options.Days))
	}

	suiteName := options.SuiteName
	if len(suiteName) == 0 {
		suiteName = DefaultSuiteNameConstant
	}
	protectedIdentifiers := make(map[string]struct{}, len(options.ProtectedIdentifiers))
	for _, protectedIdentifier := range options.ProtectedIdentifiers {
		protectedIdentifiers[protectedIdentifier] = struct{}{}
	}

	summary := Summary{}
	reaper.reporter.TestSuiteStarted(suiteName)
	for _, identifier := range staleIdentifiers {
		if _, protected := protectedIdentifiers[identifier]; protected {
			reaper.logger.Info(protectedSkipLogMessageConstant, zap.String(logFieldResourceConstant, identifier))
			continue
		}
		summary.Attempted++
		if destroyError := reaper.destroy(executionContext, destroyer, identifier, options.DryRun); destroyError != nil {
			summary.Failures++
		}
	}
	reaper.reporter.TestSuiteFinished(suiteName)
	reaper.reporter.BuildStatus(fmt.Sprintf(buildStatusTemplateConstant, summary.Attempted, summary.Failures))

	reaper.logger.Info(
		pruneFinishedLogMessageConstant,
		zap.Int(logFieldAttemptedConstant, summary.Attempted),
		zap.Int(logFieldFailuresConstant, summary.Failures),
	)
	return summary, nil
}

func (reaper *Reaper) destroy(executionContext context.Context, destroyer Destroyer, identifier string, dryRun bool) error {
	testName := fmt.Sprintf(destroyTestNameTemplateConstant, identifier)
	reaper.reporter.TestStarted(testName)
	defer reaper.reporter.TestFinished(testName)

	if dryRun {
		reaper.logger.Info(dryRunDestroyLogMessageConstant, zap.String(logFieldResourceConstant, identifier))
		return nil
	}

	reaper.logger.Info(destroyStartedLogMessageConstant, zap.String(logFieldResourceConstant, identifier))
	if destroyError := destroyer.Destroy(executionContext, identifier); destroyError != nil {
		reaper.logger.Warn(destroyFailedLogMessageConstant, zap.String(logFieldResourceConstant, identifier), zap.Error(destroyError))
		reaper.reporter.TestFailed(testName, destroyFailureMessagePrefix+destroyError.Error())
		return destroyError
	}
	reaper.logger.Info(destroySucceededLogMessageConstant, zap.String(logFieldResourceConstant, identifier))
	return nil
}

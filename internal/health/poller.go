package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	invalidPollIntervalMessageConstant = "poll interval must be positive"
	missingCheckMessageConstant        = "health check must be provided"
	timeoutErrorTemplateConstant       = "waited for %s, %s is not up: failed hosts: %s. Aborting\n%s"
	noDiagnosticsPlaceholderConstant   = "-"
	noFailedHostsPlaceholderConstant   = "none reported"
	failedHostsSeparatorConstant       = ", "
	defaultTargetNameConstant          = "hosts"
	waitStartedLogMessageConstant      = "waiting for hosts to be up"
	waitSucceededLogMessageConstant    = "hosts are up"
	waitPendingLogMessageConstant      = "hosts are not up yet"
	noHostsReportedLogMessageConstant  = "health check reported no hosts"
	checkFailedLogMessageConstant      = "health check could not run"
	waitTimedOutLogMessageConstant     = "hosts did not come up in time"
	logFieldTargetConstant             = "target"
	logFieldElapsedConstant            = "elapsed"
	logFieldMaxWaitConstant            = "max_wait"
	logFieldFailedHostsConstant        = "failed_hosts"
	logFieldDiagnosticsConstant        = "diagnostics"
)

// ErrInvalidPollInterval indicates a non-positive poll interval.
var ErrInvalidPollInterval = errors.New(invalidPollIntervalMessageConstant)

// ErrCheckNotConfigured indicates a nil HostCheck.
var ErrCheckNotConfigured = errors.New(missingCheckMessageConstant)

// Status is the outcome of a single check across hosts.
type Status struct {
	// Hosts maps each host to whether it is healthy.
	Hosts map[string]bool
	// Diagnostics is free-form text captured from the probe.
	Diagnostics string
}

// HostCheck probes every host once.
type HostCheck func(executionContext context.Context) (Status, error)

// Sleeper blocks for the given duration.
type Sleeper func(duration time.Duration)

// Options configures WaitUntilHealthy.
type Options struct {
	// Target names what is being waited for in logs and errors.
	Target       string
	PollInterval time.Duration
	MaxWait      time.Duration
	// Quorum defaults to AllHealthy.
	Quorum Quorum
	// WarnOnly turns a timeout into a false result instead of an error.
	WarnOnly bool
}

// TimeoutError reports hosts that did not become healthy within the maximum wait.
type TimeoutError struct {
	Target      string
	Elapsed     time.Duration
	FailedHosts []string
	Diagnostics string
}

// Error describes the timeout including the last diagnostics.
func (timeoutError *TimeoutError) Error() string {
	failedHosts := noFailedHostsPlaceholderConstant
	if len(timeoutError.FailedHosts) > 0 {
		failedHosts = strings.Join(timeoutError.FailedHosts, failedHostsSeparatorConstant)
	}
	return fmt.Sprintf(timeoutErrorTemplateConstant, timeoutError.Elapsed, timeoutError.Target, failedHosts, timeoutError.Diagnostics)
}

// Poller waits for hosts to become healthy.
type Poller struct {
	logger *zap.Logger
	sleep  Sleeper
}

// NewPoller constructs a Poller. A nil sleeper uses time.Sleep.
func NewPoller(logger *zap.Logger, sleeper Sleeper) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sleeper == nil {
		sleeper = time.Sleep
	}
	return &Poller{logger: logger, sleep: sleeper}
}

// WaitUntilHealthy runs check immediately and then every PollInterval until the
// quorum is met or MaxWait elapses. At least one check always runs. An empty
// host set never satisfies the quorum. On timeout it returns *TimeoutError, or
// false without an error in warn-only mode.
func (poller *Poller) WaitUntilHealthy(executionContext context.Context, check HostCheck, options Options) (bool, error) {
	if check == nil {
		return false, ErrCheckNotConfigured
	}
	if options.PollInterval <= 0 {
		return false, ErrInvalidPollInterval
	}
	quorum := options.Quorum
	if quorum == nil {
		quorum = AllHealthy
	}
	target := strings.TrimSpace(options.Target)
	if len(target) == 0 {
		target = defaultTargetNameConstant
	}

	poller.logger.Info(waitStartedLogMessageConstant, zap.String(logFieldTargetConstant, target), zap.Duration(logFieldMaxWaitConstant, options.MaxWait))

	var elapsed time.Duration
	diagnostics := noDiagnosticsPlaceholderConstant
	var failedHosts []string

	for {
		status, checkError := check(executionContext)
		switch {
		case checkError != nil:
			diagnostics = checkError.Error()
			failedHosts = nil
			poller.logger.Warn(checkFailedLogMessageConstant, zap.String(logFieldTargetConstant, target), zap.Duration(logFieldElapsedConstant, elapsed), zap.Error(checkError))
		case len(status.Hosts) == 0:
			diagnostics = status.Diagnostics
			failedHosts = nil
			poller.logger.Warn(noHostsReportedLogMessageConstant, zap.String(logFieldTargetConstant, target), zap.Duration(logFieldElapsedConstant, elapsed))
		case quorum(status.Hosts):
			poller.logger.Info(waitSucceededLogMessageConstant, zap.String(logFieldTargetConstant, target), zap.Duration(logFieldElapsedConstant, elapsed))
			return true, nil
		default:
			diagnostics = status.Diagnostics
			failedHosts = unhealthyHosts(status.Hosts)
			poller.logger.Info(
				waitPendingLogMessageConstant,
				zap.String(logFieldTargetConstant, target),
				zap.Duration(logFieldElapsedConstant, elapsed),
				zap.Strings(logFieldFailedHostsConstant, failedHosts),
			)
		}

		poller.sleep(options.PollInterval)
		elapsed += options.PollInterval
		if elapsed >= options.MaxWait {
			break
		}
	}

	if len(strings.TrimSpace(diagnostics)) == 0 {
		diagnostics = noDiagnosticsPlaceholderConstant
	}
	timeoutError := &TimeoutError{Target: target, Elapsed: elapsed, FailedHosts: failedHosts, Diagnostics: diagnostics}
	if options.WarnOnly {
		poller.logger.Warn(
			waitTimedOutLogMessageConstant,
			zap.String(logFieldTargetConstant, target),
			zap.Duration(logFieldElapsedConstant, elapsed),
			zap.Strings(logFieldFailedHostsConstant, failedHosts),
			zap.String(logFieldDiagnosticsConstant, diagnostics),
		)
		return false, nil
	}
	return false, timeoutError
}

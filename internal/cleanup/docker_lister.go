package cleanup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/remote"
)

const (
	DefaultProjectLabelConstant = "com.docker.compose.project"
	DefaultBranchLabelConstant  = "branch"

	dockerFormatTemplateConstant    = `{{ .Label "%s" }}:{{ .CreatedAt }}`
	dockerFilterTemplateConstant    = "label=%s=%s"
	dockerListCommandTemplate       = "docker ps --format %s --filter %s"
	recordSeparatorConstant         = ":"
	dateLayoutConstant              = "2006-01-02"
	dateLengthConstant              = len(dateLayoutConstant)
	lineSeparatorConstant           = "\n"
	missingProjectMessageConstant   = "project label and project name must be provided"
	missingBranchLabelMessage       = "branch label must be provided"
	malformedRecordTemplateConstant = "malformed record %q"
	unparsableDateTemplateConstant  = "unparsable creation date in %q: %w"
	allHostsFailedTemplateConstant  = "listing failed on every host: %w"
	hostListingFailedLogMessage     = "could not list containers on host"
	recordSkippedLogMessageConstant = "skipping unparsable container record"
	logFieldHostConstant            = "host"
	logFieldRecordConstant          = "record"
)

// ErrProjectNotConfigured indicates a lister without a project label filter.
var ErrProjectNotConfigured = errors.New(missingProjectMessageConstant)

// ErrBranchLabelNotConfigured indicates a lister without a branch label.
var ErrBranchLabelNotConfigured = errors.New(missingBranchLabelMessage)

// ResourceRecord is a deployed resource and its creation time.
type ResourceRecord struct {
	Identifier string
	CreatedAt  time.Time
}

// StaleAt reports whether the record was created at least days calendar days before now.
// Only dates are compared so a record exactly days old is stale.
func (record ResourceRecord) StaleAt(now time.Time, days int) bool {
	createdDate := calendarDate(record.CreatedAt)
	thresholdDate := calendarDate(now).AddDate(0, 0, -days)
	return !createdDate.After(thresholdDate)
}

// ParseResourceRecord parses a "slug:YYYY-MM-DD ..." line emitted by docker ps.
// An empty identifier yields ok=false without an error.
func ParseResourceRecord(line string) (ResourceRecord, bool, error) {
	identifier, timestamp, found := strings.Cut(strings.TrimSpace(line), recordSeparatorConstant)
	if !found {
		return ResourceRecord{}, false, fmt.Errorf(malformedRecordTemplateConstant, line)
	}
	identifier = strings.TrimSpace(identifier)
	if len(identifier) == 0 {
		return ResourceRecord{}, false, nil
	}
	timestamp = strings.TrimSpace(timestamp)
	if len(timestamp) < dateLengthConstant {
		return ResourceRecord{}, false, fmt.Errorf(malformedRecordTemplateConstant, line)
	}
	createdAt, parseError := time.Parse(dateLayoutConstant, timestamp[:dateLengthConstant])
	if parseError != nil {
		return ResourceRecord{}, false, fmt.Errorf(unparsableDateTemplateConstant, line, parseError)
	}
	return ResourceRecord{Identifier: identifier, CreatedAt: createdAt}, true, nil
}

// DockerBranchLister finds branch containers of a compose project through docker ps on remote hosts.
type DockerBranchLister struct {
	Runner       remote.CommandRunner
	Hosts        []string
	ProjectLabel string
	ProjectName  string
	BranchLabel  string
	// Clock defaults to time.Now.
	Clock  func() time.Time
	Logger *zap.Logger
}

// Command renders the docker ps invocation used for listing.
func (lister DockerBranchLister) Command() (string, error) {
	projectLabel := strings.TrimSpace(lister.ProjectLabel)
	projectName := strings.TrimSpace(lister.ProjectName)
	if len(projectLabel) == 0 || len(projectName) == 0 {
		return "", ErrProjectNotConfigured
	}
	branchLabel := strings.TrimSpace(lister.BranchLabel)
	if len(branchLabel) == 0 {
		return "", ErrBranchLabelNotConfigured
	}
	return fmt.Sprintf(
		dockerListCommandTemplate,
		remote.QuoteShellArgument(fmt.Sprintf(dockerFormatTemplateConstant, branchLabel)),
		remote.QuoteShellArgument(fmt.Sprintf(dockerFilterTemplateConstant, projectLabel, projectName)),
	), nil
}

// ListStale returns identifiers of branches deployed at least days ago, deduplicated across hosts.
func (lister DockerBranchLister) ListStale(executionContext context.Context, days int) ([]string, error) {
	listCommand, commandError := lister.Command()
	if commandError != nil {
		return nil, commandError
	}
	if lister.Runner == nil {
		return nil, remote.ErrShellExecutorNotConfigured
	}

	results, runError := lister.Runner.Run(executionContext, lister.Hosts, listCommand, remote.RunOptions{})
	if runError != nil {
		return nil, runError
	}

	logger := lister.logger()
	now := lister.now()
	seenIdentifiers := make(map[string]struct{})
	staleIdentifiers := make([]string, 0)
	hostErrors := make([]error, 0)

	for _, hostResult := range results {
		if !hostResult.Succeeded {
			logger.Warn(hostListingFailedLogMessage, zap.String(logFieldHostConstant, hostResult.Host), zap.Error(hostResult.Err))
			hostErrors = append(hostErrors, remote.HostCommandError{Result: hostResult})
			continue
		}
		for _, line := range strings.Split(hostResult.StandardOutput, lineSeparatorConstant) {
			if len(strings.TrimSpace(line)) == 0 {
				continue
			}
			record, recordFound, parseError := ParseResourceRecord(line)
			if parseError != nil {
				logger.Warn(recordSkippedLogMessageConstant, zap.String(logFieldHostConstant, hostResult.Host), zap.String(logFieldRecordConstant, line), zap.Error(parseError))
				continue
			}
			if !recordFound || !record.StaleAt(now, days) {
				continue
			}
			if _, seen := seenIdentifiers[record.Identifier]; seen {
				continue
			}
			seenIdentifiers[record.Identifier] = struct{}{}
			staleIdentifiers = append(staleIdentifiers, record.Identifier)
		}
	}

	if len(results) > 0 && len(hostErrors) == len(results) {
		return nil, fmt.Errorf(allHostsFailedTemplateConstant, errors.Join(hostErrors...))
	}
	return staleIdentifiers, nil
}

func (lister DockerBranchLister) now() time.Time {
	if lister.Clock == nil {
		return time.Now()
	}
	return lister.Clock()
}

func (lister DockerBranchLister) logger() *zap.Logger {
	if lister.Logger == nil {
		return zap.NewNop()
	}
	return lister.Logger
}

func calendarDate(moment time.Time) time.Time {
	year, month, day := moment.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

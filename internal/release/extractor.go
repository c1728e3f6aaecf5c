package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/remote"
)

const (
	VCSNumberEnvironmentNameConstant = "BUILD_VCS_NUMBER"

	fullShaLengthConstant           = 40
	shortShaLengthConstant          = 7
	fetchCommandConstant            = "git fetch origin"
	logCommandTemplateConstant      = "git --no-pager log --pretty=oneline --no-color --no-decorate %s..%s"
	changeDirectoryTemplateConstant = "cd %s && %s"
	previousRevisionTemplate        = "%s~1"
	deployedRevisionConstant        = "HEAD~1"
	lineSeparatorConstant           = "\n"
	missingRunnerMessageConstant    = "release extraction requires a command runner"
	missingHostMessageConstant      = "release extraction requires a host"
	missingTargetMessageConstant    = "release target must be provided"
	missingPrompterMessageConstant  = "release has several candidate commits and no prompter"
	logFailedTemplateConstant       = "read git log: %w"
	commitsIntroTemplateConstant    = "You are about to release commits (not tip of the branch):\n%s\n"
	promptTextConstant              = "Type full commit hash you are releasing > "
	shortAnswerWarningConstant      = "There should be 40 characters in commit hash\n"
	unknownAnswerWarningTemplate    = "Your input %q does not match any commit hash:\n%s\n"
	fetchFailedLogMessageConstant   = "git fetch failed, using local history"
	firstLogFailedLogMessage        = "git log from HEAD~1 failed, retrying from the target parent"
	logFieldHostConstant            = "host"
	logFieldTargetConstant          = "target"
)

var commitLineExpression = regexp.MustCompile(`^[a-f0-9]{7,}\s`)

// ErrRunnerNotConfigured indicates an Extractor without a command runner.
var ErrRunnerNotConfigured = errors.New(missingRunnerMessageConstant)

// ErrHostNotConfigured indicates an Extractor without a host.
var ErrHostNotConfigured = errors.New(missingHostMessageConstant)

// ErrTargetRequired indicates a blank release target with no CI revision.
var ErrTargetRequired = errors.New(missingTargetMessageConstant)

// ErrPrompterNotConfigured indicates an interactive choice without a prompter.
var ErrPrompterNotConfigured = errors.New(missingPrompterMessageConstant)

// Commit is a single git log entry.
type Commit struct {
	SHA      string `yaml:"sha"`
	ShortSHA string `yaml:"sha_short"`
	Message  string `yaml:"message"`
}

// Release describes the commits a deployment ships, newest first.
type Release struct {
	// Base is the oldest commit of the range, already deployed.
	Base *Commit `yaml:"base"`
	// Release is the newest commit of the range.
	Release   *Commit  `yaml:"release"`
	Changelog []Commit `yaml:"changelog"`
}

// ParseLog converts one-line git log output into commits, newest first.
// Lines before the first commit line are dropped.
func ParseLog(logOutput string) []Commit {
	commits := make([]Commit, 0)
	acceptLines := false
	for _, rawLine := range strings.Split(strings.TrimSpace(logOutput), lineSeparatorConstant) {
		logLine := strings.TrimSpace(rawLine)
		if len(logLine) == 0 {
			continue
		}
		if commitLineExpression.MatchString(logLine) {
			acceptLines = true
		}
		if !acceptLines {
			continue
		}
		fields := strings.Fields(logLine)
		sha := fields[0]
		message := strings.TrimSpace(strings.TrimPrefix(logLine, sha))
		shortSHA := sha
		if len(shortSHA) > shortShaLengthConstant {
			shortSHA = shortSHA[:shortShaLengthConstant]
		}
		commits = append(commits, Commit{SHA: sha, ShortSHA: shortSHA, Message: message})
	}
	return commits
}

// Extractor reads release information from a git checkout on a host.
type Extractor struct {
	Runner remote.CommandRunner
	Host   string
	// User runs git through sudo when set.
	User string
	// RepositoryPath is the checkout directory on the host.
	RepositoryPath string
	// LookupEnvironment defaults to os.LookupEnv.
	LookupEnvironment func(name string) (string, bool)
	Prompter          Prompter
	// Output receives the candidate commit listing shown before prompting.
	Output io.Writer
	Logger *zap.Logger
}

// Extract returns the release for target. BUILD_VCS_NUMBER overrides target and
// disables prompting. Otherwise, when the changelog has more than one commit,
// the operator picks the released commit and newer commits are dropped.
func (extractor Extractor) Extract(executionContext context.Context, target string) (Release, error) {
	if extractor.Runner == nil {
		return Release{}, ErrRunnerNotConfigured
	}
	if len(strings.TrimSpace(extractor.Host)) == 0 {
		return Release{}, ErrHostNotConfigured
	}

	lookupEnvironment := extractor.LookupEnvironment
	if lookupEnvironment == nil {
		lookupEnvironment = os.LookupEnv
	}
	ciRevision, _ := lookupEnvironment(VCSNumberEnvironmentNameConstant)
	ciRevision = strings.TrimSpace(ciRevision)
	automatic := len(ciRevision) > 0

	toRevision := strings.TrimSpace(target)
	if automatic {
		toRevision = ciRevision
	}
	if len(toRevision) == 0 {
		return Release{}, ErrTargetRequired
	}

	logger := extractor.logger()
	if _, fetchError := extractor.run(executionContext, fetchCommandConstant); fetchError != nil {
		logger.Warn(fetchFailedLogMessageConstant, zap.String(logFieldHostConstant, extractor.Host), zap.Error(fetchError))
	}

	logOutput, logError := extractor.run(executionContext, fmt.Sprintf(logCommandTemplateConstant, deployedRevisionConstant, toRevision))
	if logError != nil {
		logger.Warn(firstLogFailedLogMessage, zap.String(logFieldTargetConstant, toRevision), zap.Error(logError))
		logOutput = ""
	}
	if len(strings.TrimSpace(logOutput)) == 0 {
		logOutput, logError = extractor.run(executionContext, fmt.Sprintf(logCommandTemplateConstant, fmt.Sprintf(previousRevisionTemplate, toRevision), toRevision))
		if logError != nil {
			return Release{}, fmt.Errorf(logFailedTemplateConstant, logError)
		}
	}

	commits := ParseLog(logOutput)
	if len(commits) == 0 {
		return Release{Changelog: []Commit{}}, nil
	}

	changelog, selectionError := extractor.selectChangelog(commits[:len(commits)-1], automatic)
	if selectionError != nil {
		return Release{}, selectionError
	}
	return Release{Base: &commits[len(commits)-1], Release: &commits[0], Changelog: changelog}, nil
}

func (extractor Extractor) selectChangelog(candidates []Commit, automatic bool) ([]Commit, error) {
	if automatic || len(candidates) <= 1 {
		return append([]Commit{}, candidates...), nil
	}
	if extractor.Prompter == nil {
		return nil, ErrPrompterNotConfigured
	}

	listingLines := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		listingLines = append(listingLines, candidate.SHA+" "+candidate.Message)
	}
	listing := strings.Join(listingLines, lineSeparatorConstant)
	output := extractor.Output
	if output == nil {
		output = io.Discard
	}
	fmt.Fprintf(output, commitsIntroTemplateConstant, listing)

	for {
		answer, askError := extractor.Prompter.Ask(promptTextConstant)
		if askError != nil {
			return nil, askError
		}
		if len(answer) != fullShaLengthConstant {
			fmt.Fprint(output, shortAnswerWarningConstant)
			continue
		}
		for candidateIndex, candidate := range candidates {
			if candidate.SHA == answer {
				return append([]Commit{}, candidates[candidateIndex:]...), nil
			}
		}
		fmt.Fprintf(output, unknownAnswerWarningTemplate, answer, listing)
	}
}

func (extractor Extractor) run(executionContext context.Context, command string) (string, error) {
	if repositoryPath := strings.TrimSpace(extractor.RepositoryPath); len(repositoryPath) > 0 {
		command = fmt.Sprintf(changeDirectoryTemplateConstant, remote.QuoteShellArgument(repositoryPath), command)
	}
	return remote.RunOnHost(executionContext, extractor.Runner, extractor.Host, command, remote.RunOptions{User: extractor.User})
}

func (extractor Extractor) logger() *zap.Logger {
	if extractor.Logger == nil {
		return zap.NewNop()
	}
	return extractor.Logger
}

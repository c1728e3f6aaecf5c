// Package teamcity emits TeamCity service messages for CI status reporting.
//
// Messages are written only when the TEAMCITY_VERSION environment variable is
// present or reporting is forced, so the same commands run quietly outside CI.
package teamcity

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/task"
)

const (
	teamCityVersionEnvironmentNameConstant = "TEAMCITY_VERSION"
	serviceMessageTemplateConstant         = "##teamcity[%s]\n"
	attributeTemplateConstant              = " %s='%s'"
	unsupportedMessageLogMessageConstant   = "teamcity message not supported"
	argumentCountLogMessageConstant        = "teamcity message argument count mismatch"
	writeFailedLogMessageConstant          = "teamcity message could not be written"
	logFieldMessageNameConstant            = "message_name"
	logFieldExpectedConstant               = "expected_arguments"
	logFieldReceivedConstant               = "received_arguments"
	attributeNameConstant                  = "name"
	attributeTextConstant                  = "text"
	attributeMessageConstant               = "message"
	attributeValueConstant                 = "value"
	failureMessagePrefixConstant           = "Error: "
)

// MessageName identifies a TeamCity service message.
type MessageName string

// Supported service messages.
const (
	MessageTestSuiteStarted  MessageName = MessageName("testSuiteStarted")
	MessageTestSuiteFinished MessageName = MessageName("testSuiteFinished")
	MessageBuildStatus       MessageName = MessageName("buildStatus")
	MessageTestStarted       MessageName = MessageName("testStarted")
	MessageTestFailed        MessageName = MessageName("testFailed")
	MessageTestFinished      MessageName = MessageName("testFinished")
	MessageSetParameter      MessageName = MessageName("setParameter")
)

var messageAttributes = map[MessageName][]string{
	MessageTestSuiteStarted:  {attributeNameConstant},
	MessageTestSuiteFinished: {attributeNameConstant},
	MessageBuildStatus:       {attributeTextConstant},
	MessageTestStarted:       {attributeNameConstant},
	MessageTestFailed:        {attributeNameConstant, attributeMessageConstant},
	MessageTestFinished:      {attributeNameConstant},
	MessageSetParameter:      {attributeNameConstant, attributeValueConstant},
}

var valueEscaper = strings.NewReplacer(
	"|", "||",
	"'", "|'",
	"\n", "|n",
	"\r", "|r",
	"[", "|[",
	"]", "|]",
)

// EnvironmentLookup resolves environment variables.
type EnvironmentLookup func(name string) (string, bool)

// Options configures a Reporter.
type Options struct {
	// Force enables reporting regardless of the environment.
	Force bool
	// LookupEnvironment defaults to os.LookupEnv.
	LookupEnvironment EnvironmentLookup
}

// Reporter writes TeamCity service messages. A nil Reporter discards everything.
type Reporter struct {
	writer  io.Writer
	logger  *zap.Logger
	enabled bool
}

// NewReporter builds a Reporter writing to writer.
func NewReporter(writer io.Writer, logger *zap.Logger, options Options) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	lookupEnvironment := options.LookupEnvironment
	if lookupEnvironment == nil {
		lookupEnvironment = os.LookupEnv
	}
	teamCityVersion, _ := lookupEnvironment(teamCityVersionEnvironmentNameConstant)
	enabled := options.Force || len(strings.TrimSpace(teamCityVersion)) > 0
	return &Reporter{writer: writer, logger: logger, enabled: enabled}
}

// Enabled reports whether messages are written.
func (reporter *Reporter) Enabled() bool {
	return reporter != nil && reporter.enabled
}

// Emit writes the named message with positional attribute values.
func (reporter *Reporter) Emit(messageName MessageName, values ...string) {
	if !reporter.Enabled() {
		return
	}

	attributeNames, supported := messageAttributes[messageName]
	if !supported {
		reporter.logger.Warn(unsupportedMessageLogMessageConstant, zap.String(logFieldMessageNameConstant, string(messageName)))
		return
	}
	if len(values) != len(attributeNames) {
		reporter.logger.Warn(
			argumentCountLogMessageConstant,
			zap.String(logFieldMessageNameConstant, string(messageName)),
			zap.Int(logFieldExpectedConstant, len(attributeNames)),
			zap.Int(logFieldReceivedConstant, len(values)),
		)
		return
	}

	var messageBuilder strings.Builder
	messageBuilder.WriteString(string(messageName))
	for attributeIndex, attributeName := range attributeNames {
		fmt.Fprintf(&messageBuilder, attributeTemplateConstant, attributeName, valueEscaper.Replace(values[attributeIndex]))
	}

	if _, writeError := fmt.Fprintf(reporter.writer, serviceMessageTemplateConstant, messageBuilder.String()); writeError != nil {
		reporter.logger.Warn(writeFailedLogMessageConstant, zap.Error(writeError))
	}
}

// TestSuiteStarted opens a named suite.
func (reporter *Reporter) TestSuiteStarted(name string) {
	reporter.Emit(MessageTestSuiteStarted, name)
}

// TestSuiteFinished closes a named suite.
func (reporter *Reporter) TestSuiteFinished(name string) {
	reporter.Emit(MessageTestSuiteFinished, name)
}

// BuildStatus replaces the build status text.
func (reporter *Reporter) BuildStatus(text string) {
	reporter.Emit(MessageBuildStatus, text)
}

// TestStarted opens a named test.
func (reporter *Reporter) TestStarted(name string) {
	reporter.Emit(MessageTestStarted, name)
}

// TestFailed marks a named test as failed.
func (reporter *Reporter) TestFailed(name string, message string) {
	reporter.Emit(MessageTestFailed, name, message)
}

// TestFinished closes a named test.
func (reporter *Reporter) TestFinished(name string) {
	reporter.Emit(MessageTestFinished, name)
}

// SetParameter sets a build parameter.
func (reporter *Reporter) SetParameter(name string, value string) {
	reporter.Emit(MessageSetParameter, name, value)
}

// Report wraps an operation in testStarted / testFailed / testFinished messages.
func Report(reporter *Reporter, testName string) task.Middleware {
	return func(next task.Operation) task.Operation {
		return func(executionContext context.Context, request task.Request) error {
			reporter.TestStarted(testName)
			defer reporter.TestFinished(testName)

			operationError := next(executionContext, request)
			if operationError != nil {
				reporter.TestFailed(testName, failureMessagePrefixConstant+operationError.Error())
			}
			return operationError
		}
	}
}

package utils

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	flagutils "github.com/temirov/deployutils/internal/utils/flags"
)

const (
	logLevelDebugStringConstant          = "debug"
	logLevelInfoStringConstant           = "info"
	logLevelWarnStringConstant           = "warn"
	logLevelErrorStringConstant          = "error"
	logFormatStructuredStringConstant    = "structured"
	logFormatConsoleStringConstant       = "console"
	unsupportedLogLevelTemplateConstant  = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant = "unsupported log format: %s"
	invalidLogLevelTemplateConstant      = "log level: %w"
	invalidLogFormatTemplateConstant     = "log format: %w"
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Exported log level constants for reuse across packages.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Exported log format constants for reuse across packages.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

// SupportedLogLevels lists accepted --log-level values.
var SupportedLogLevels = []string{logLevelDebugStringConstant, logLevelInfoStringConstant, logLevelWarnStringConstant, logLevelErrorStringConstant}

// SupportedLogFormats lists accepted --log-format values.
var SupportedLogFormats = []string{logFormatStructuredStringConstant, logFormatConsoleStringConstant}

var logLevelMapping = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

// LoggerFactory builds zap.Logger instances with consistent configuration.
// Logs go to standard error so command output stays parseable.
type LoggerFactory struct {
	writer io.Writer
}

// NewLoggerFactory constructs a logger factory writing to standard error.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// NewLoggerFactoryWithWriter constructs a logger factory writing to writer.
func NewLoggerFactoryWithWriter(writer io.Writer) *LoggerFactory {
	return &LoggerFactory{writer: writer}
}

// ParseLogLevel normalizes a log level name.
func ParseLogLevel(rawLevel string) (LogLevel, error) {
	matchedLevel, matchError := flagutils.MatchChoice(rawLevel, logLevelInfoStringConstant, SupportedLogLevels)
	if matchError != nil {
		return "", fmt.Errorf(invalidLogLevelTemplateConstant, matchError)
	}
	return LogLevel(matchedLevel), nil
}

// ParseLogFormat normalizes a log format name.
func ParseLogFormat(rawFormat string) (LogFormat, error) {
	matchedFormat, matchError := flagutils.MatchChoice(rawFormat, logFormatStructuredStringConstant, SupportedLogFormats)
	if matchError != nil {
		return "", fmt.Errorf(invalidLogFormatTemplateConstant, matchError)
	}
	return LogFormat(matchedFormat), nil
}

// CreateLogger produces a zap.Logger honoring the requested log level and format.
func (factory *LoggerFactory) CreateLogger(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (*zap.Logger, error) {
	zapLogLevel, levelExists := logLevelMapping[requestedLogLevel]
	if !levelExists {
		return nil, fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLogLevel)
	}

	var encoder zapcore.Encoder
	switch requestedLogFormat {
	case LogFormatStructured:
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case LogFormatConsole:
		encoderConfiguration := zap.NewDevelopmentEncoderConfig()
		encoderConfiguration.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfiguration)
	default:
		return nil, fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedLogFormat)
	}

	writer := factory.writer
	if writer == nil {
		writer = os.Stderr
	}
	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(writer)), zap.NewAtomicLevelAt(zapLogLevel))
	return zap.New(core, zap.AddCaller()), nil
}

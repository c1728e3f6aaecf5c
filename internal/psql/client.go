package psql

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/temirov/deployutils/internal/remote"
)

const (
	// DefaultUserConstant is the operating system user that owns the postgres cluster.
	DefaultUserConstant = "postgres"

	psqlCommandTemplateConstant     = "psql %s -c %s"
	statementTerminatorConstant     = ";"
	createDatabaseTemplateConstant  = "CREATE DATABASE %s"
	dropDatabaseTemplateConstant    = "DROP DATABASE %s"
	optionTemplateConstant          = "%s=%s"
	ownerOptionConstant             = "OWNER"
	identifierQuoteConstant         = `"`
	escapedIdentifierQuoteConstant  = `""`
	optionSeparatorConstant         = " "
	missingRunnerMessageConstant    = "psql client requires a command runner"
	missingHostMessageConstant      = "psql client requires a host"
	missingDatabaseMessageConstant  = "psql client requires a database"
	missingStatementMessageConstant = "sql statement must not be empty"
	missingNameMessageConstant      = "database name must not be empty"
)

var (
	// ErrRunnerNotConfigured indicates a client without a command runner.
	ErrRunnerNotConfigured = errors.New(missingRunnerMessageConstant)
	// ErrHostNotConfigured indicates a client without a host.
	ErrHostNotConfigured = errors.New(missingHostMessageConstant)
	// ErrDatabaseNotConfigured indicates a client without a database to connect to.
	ErrDatabaseNotConfigured = errors.New(missingDatabaseMessageConstant)
	// ErrEmptyStatement indicates an empty SQL statement.
	ErrEmptyStatement = errors.New(missingStatementMessageConstant)
	// ErrEmptyDatabaseName indicates a create or drop without a name.
	ErrEmptyDatabaseName = errors.New(missingNameMessageConstant)
)

// Client runs statements against one database on one host.
type Client struct {
	Runner   remote.CommandRunner
	Host     string
	Database string
	// User defaults to DefaultUserConstant.
	User string
}

// Command renders the psql invocation for a statement.
func (client Client) Command(statement string) (string, error) {
	trimmedStatement := strings.TrimSpace(statement)
	if len(trimmedStatement) == 0 {
		return "", ErrEmptyStatement
	}
	database := strings.TrimSpace(client.Database)
	if len(database) == 0 {
		return "", ErrDatabaseNotConfigured
	}
	return fmt.Sprintf(
		psqlCommandTemplateConstant,
		remote.QuoteShellArgument(database),
		remote.QuoteShellArgument(trimmedStatement+statementTerminatorConstant),
	), nil
}

// Exec runs statement and returns the psql output.
func (client Client) Exec(executionContext context.Context, statement string) (string, error) {
	if client.Runner == nil {
		return "", ErrRunnerNotConfigured
	}
	host := strings.TrimSpace(client.Host)
	if len(host) == 0 {
		return "", ErrHostNotConfigured
	}
	command, commandError := client.Command(statement)
	if commandError != nil {
		return "", commandError
	}
	return remote.RunOnHost(executionContext, client.Runner, host, command, remote.RunOptions{User: client.user()})
}

// CreateDatabase creates name, owned by owner when set, with extra options such as ENCODING or TEMPLATE.
func (client Client) CreateDatabase(executionContext context.Context, name string, owner string, options map[string]string) error {
	statement, statementError := CreateDatabaseStatement(name, owner, options)
	if statementError != nil {
		return statementError
	}
	_, execError := client.Exec(executionContext, statement)
	return execError
}

// DropDatabase drops name.
func (client Client) DropDatabase(executionContext context.Context, name string) error {
	statement, statementError := DropDatabaseStatement(name)
	if statementError != nil {
		return statementError
	}
	_, execError := client.Exec(executionContext, statement)
	return execError
}

// CreateDatabaseStatement renders CREATE DATABASE with options sorted by key.
func CreateDatabaseStatement(name string, owner string, options map[string]string) (string, error) {
	trimmedName := strings.TrimSpace(name)
	if len(trimmedName) == 0 {
		return "", ErrEmptyDatabaseName
	}

	mergedOptions := make(map[string]string, len(options)+1)
	for optionName, optionValue := range options {
		mergedOptions[optionName] = optionValue
	}
	if trimmedOwner := strings.TrimSpace(owner); len(trimmedOwner) > 0 {
		mergedOptions[ownerOptionConstant] = trimmedOwner
	}

	optionNames := make([]string, 0, len(mergedOptions))
	for optionName := range mergedOptions {
		optionNames = append(optionNames, optionName)
	}
	sort.Strings(optionNames)

	statementParts := []string{fmt.Sprintf(createDatabaseTemplateConstant, QuoteIdentifier(trimmedName))}
	for _, optionName := range optionNames {
		statementParts = append(statementParts, fmt.Sprintf(optionTemplateConstant, optionName, QuoteIdentifier(mergedOptions[optionName])))
	}
	return strings.Join(statementParts, optionSeparatorConstant), nil
}

// DropDatabaseStatement renders DROP DATABASE for name.
func DropDatabaseStatement(name string) (string, error) {
	trimmedName := strings.TrimSpace(name)
	if len(trimmedName) == 0 {
		return "", ErrEmptyDatabaseName
	}
	return fmt.Sprintf(dropDatabaseTemplateConstant, QuoteIdentifier(trimmedName)), nil
}

// QuoteIdentifier wraps value in double quotes, doubling embedded quotes.
func QuoteIdentifier(value string) string {
	return identifierQuoteConstant + strings.ReplaceAll(value, identifierQuoteConstant, escapedIdentifierQuoteConstant) + identifierQuoteConstant
}

func (client Client) user() string {
	if trimmedUser := strings.TrimSpace(client.User); len(trimmedUser) > 0 {
		return trimmedUser
	}
	return DefaultUserConstant
}

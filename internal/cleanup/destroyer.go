package cleanup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/deployutils/internal/remote"
)

const (
	SlugPlaceholderConstant = "{slug}"

	missingTemplateMessageConstant = "destroy command template must be provided"
	emptyIdentifierMessageConstant = "identifier must not be empty"
	destroyFailedTemplateConstant  = "destroy %s failed on %s: %w"
	failedHostsSeparatorConstant   = ", "
)

// ErrDestroyCommandNotConfigured indicates a CommandDestroyer without a template.
var ErrDestroyCommandNotConfigured = errors.New(missingTemplateMessageConstant)

// ErrEmptyIdentifier indicates a blank resource identifier.
var ErrEmptyIdentifier = errors.New(emptyIdentifierMessageConstant)

// CommandDestroyer runs a shell command template on hosts to tear down a resource.
// Every occurrence of {slug} in CommandTemplate is replaced with the identifier.
type CommandDestroyer struct {
	Runner          remote.CommandRunner
	Hosts           []string
	CommandTemplate string
	// User runs the command through sudo when set.
	User string
}

// Destroy runs the rendered command. A failure on any host is an error.
func (destroyer CommandDestroyer) Destroy(executionContext context.Context, identifier string) error {
	trimmedIdentifier := strings.TrimSpace(identifier)
	if len(trimmedIdentifier) == 0 {
		return ErrEmptyIdentifier
	}
	destroyCommand, renderError := destroyer.Render(trimmedIdentifier)
	if renderError != nil {
		return renderError
	}
	if destroyer.Runner == nil {
		return remote.ErrShellExecutorNotConfigured
	}

	results, runError := destroyer.Runner.Run(executionContext, destroyer.Hosts, destroyCommand, remote.RunOptions{User: destroyer.User})
	if runError != nil {
		return runError
	}
	if results.AllSucceeded() {
		return nil
	}

	hostErrors := make([]error, 0)
	for _, hostResult := range results {
		if !hostResult.Succeeded {
			hostErrors = append(hostErrors, remote.HostCommandError{Result: hostResult})
		}
	}
	return fmt.Errorf(destroyFailedTemplateConstant, trimmedIdentifier, strings.Join(results.FailedHosts(), failedHostsSeparatorConstant), errors.Join(hostErrors...))
}

// Render substitutes the shell-quoted identifier into the command template.
func (destroyer CommandDestroyer) Render(identifier string) (string, error) {
	if len(strings.TrimSpace(destroyer.CommandTemplate)) == 0 {
		return "", ErrDestroyCommandNotConfigured
	}
	return strings.ReplaceAll(destroyer.CommandTemplate, SlugPlaceholderConstant, remote.QuoteShellArgument(identifier)), nil
}

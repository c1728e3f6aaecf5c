package health

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/temirov/deployutils/internal/remote"
)

const (
	DefaultExpectedStatusConstant = "200 OK"

	httpProbeCommandTemplateConstant  = "curl -sSL -D - %s -o /dev/null | head -n 1 | grep %s"
	uwsgiProbeCommandTemplateConstant = "uwsgi_curl %s %s | head -n 1 | grep %s"
	uwsgiLoopbackAddressTemplate      = "127.0.0.1:%s"
	missingURLMessageConstant         = "probe URL must be provided"
	missingUWSGIAddressMessage        = "uwsgi probe requires a port or a socket"
	missingRunnerMessageConstant      = "health check requires a remote command runner"
	diagnosticLineTemplateConstant    = "%s: %s"
	diagnosticsSeparatorConstant      = "\n"
)

// ErrMissingProbeURL indicates a probe without a URL.
var ErrMissingProbeURL = errors.New(missingURLMessageConstant)

// ErrMissingUWSGIAddress indicates a uWSGI probe without a port or socket.
var ErrMissingUWSGIAddress = errors.New(missingUWSGIAddressMessage)

// ErrRunnerNotConfigured indicates a RoleCheck without a command runner.
var ErrRunnerNotConfigured = errors.New(missingRunnerMessageConstant)

// Probe renders the shell command that succeeds only when a host is healthy.
type Probe interface {
	Command() (string, error)
}

// HTTPStatusProbe checks the first response line of an HTTP request.
type HTTPStatusProbe struct {
	URL string
	// ExpectedStatus is matched as a substring of the status line.
	ExpectedStatus string
}

// Command renders a curl pipeline for the probe.
func (probe HTTPStatusProbe) Command() (string, error) {
	trimmedURL := strings.TrimSpace(probe.URL)
	if len(trimmedURL) == 0 {
		return "", ErrMissingProbeURL
	}
	return fmt.Sprintf(
		httpProbeCommandTemplateConstant,
		remote.QuoteShellArgument(trimmedURL),
		remote.QuoteShellArgument(expectedStatusOrDefault(probe.ExpectedStatus)),
	), nil
}

// UWSGIStatusProbe checks a uWSGI application directly through uwsgi_curl.
type UWSGIStatusProbe struct {
	URL            string
	Port           int
	Socket         string
	ExpectedStatus string
}

// Command renders a uwsgi_curl pipeline for the probe. The loopback port takes precedence over the socket.
func (probe UWSGIStatusProbe) Command() (string, error) {
	trimmedURL := strings.TrimSpace(probe.URL)
	if len(trimmedURL) == 0 {
		return "", ErrMissingProbeURL
	}

	address := strings.TrimSpace(probe.Socket)
	if probe.Port > 0 {
		address = fmt.Sprintf(uwsgiLoopbackAddressTemplate, strconv.Itoa(probe.Port))
	}
	if len(address) == 0 {
		return "", ErrMissingUWSGIAddress
	}

	return fmt.Sprintf(
		uwsgiProbeCommandTemplateConstant,
		remote.QuoteShellArgument(address),
		remote.QuoteShellArgument(trimmedURL),
		remote.QuoteShellArgument(expectedStatusOrDefault(probe.ExpectedStatus)),
	), nil
}

// RoleCheck builds a HostCheck that runs the probe on every host.
// A host is healthy when the probe command exits cleanly there.
func RoleCheck(runner remote.CommandRunner, hosts []string, probe Probe) HostCheck {
	return func(executionContext context.Context) (Status, error) {
		if runner == nil {
			return Status{}, ErrRunnerNotConfigured
		}
		probeCommand, commandError := probe.Command()
		if commandError != nil {
			return Status{}, commandError
		}
		results, runError := runner.Run(executionContext, hosts, probeCommand, remote.RunOptions{})
		if runError != nil {
			return Status{}, runError
		}
		return Status{Hosts: results.Succeeded(), Diagnostics: describeResults(results)}, nil
	}
}

func describeResults(results remote.Results) string {
	lines := make([]string, 0, len(results))
	for _, hostResult := range results {
		output := strings.TrimSpace(hostResult.StandardOutput)
		if !hostResult.Succeeded {
			if errorOutput := strings.TrimSpace(hostResult.StandardError); len(errorOutput) > 0 {
				output = strings.TrimSpace(output + " " + errorOutput)
			}
			if len(output) == 0 && hostResult.Err != nil {
				output = hostResult.Err.Error()
			}
		}
		if len(output) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf(diagnosticLineTemplateConstant, hostResult.Host, output))
	}
	return strings.Join(lines, diagnosticsSeparatorConstant)
}

func expectedStatusOrDefault(expectedStatus string) string {
	trimmedStatus := strings.TrimSpace(expectedStatus)
	if len(trimmedStatus) == 0 {
		return DefaultExpectedStatusConstant
	}
	return trimmedStatus
}

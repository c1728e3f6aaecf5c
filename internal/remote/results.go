package remote

import "strings"

const joinedOutputSeparatorConstant = "\n"

// HostResult captures the outcome of a command on a single host.
type HostResult struct {
	Host           string
	Succeeded      bool
	ExitCode       int
	StandardOutput string
	StandardError  string
	Err            error
}

// Results holds per-host outcomes in the order hosts were requested.
type Results []HostResult

// Succeeded maps each host to whether its command exited cleanly.
func (results Results) Succeeded() map[string]bool {
	succeededByHost := make(map[string]bool, len(results))
	for _, hostResult := range results {
		succeededByHost[hostResult.Host] = hostResult.Succeeded
	}
	return succeededByHost
}

// AllSucceeded reports whether every host succeeded. An empty result set never succeeds.
func (results Results) AllSucceeded() bool {
	if len(results) == 0 {
		return false
	}
	for _, hostResult := range results {
		if !hostResult.Succeeded {
			return false
		}
	}
	return true
}

// FailedHosts lists hosts whose command failed.
func (results Results) FailedHosts() []string {
	failedHosts := make([]string, 0)
	for _, hostResult := range results {
		if !hostResult.Succeeded {
			failedHosts = append(failedHosts, hostResult.Host)
		}
	}
	return failedHosts
}

// SucceededHosts lists hosts whose command exited cleanly.
func (results Results) SucceededHosts() []string {
	succeededHosts := make([]string, 0, len(results))
	for _, hostResult := range results {
		if hostResult.Succeeded {
			succeededHosts = append(succeededHosts, hostResult.Host)
		}
	}
	return succeededHosts
}

// JoinedOutput concatenates the standard output of every host.
func (results Results) JoinedOutput() string {
	outputs := make([]string, 0, len(results))
	for _, hostResult := range results {
		outputs = append(outputs, hostResult.StandardOutput)
	}
	return strings.Join(outputs, joinedOutputSeparatorConstant)
}

// Host returns the result for the named host.
func (results Results) Host(host string) (HostResult, bool) {
	for _, hostResult := range results {
		if hostResult.Host == host {
			return hostResult, true
		}
	}
	return HostResult{}, false
}

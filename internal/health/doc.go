// Package health waits for hosts to report healthy.
//
// Poller repeatedly evaluates a HostCheck until a Quorum is satisfied or the
// maximum wait elapses. Probes translate HTTP and uWSGI status checks into
// shell commands executed on every host through the remote executor, and
// CommandBuilder exposes the behavior as the `wait` command.
package health

// Package ui formats human-readable console output for command execution.
//
// Remote commands are rendered by host and remote command line rather than by
// the raw ssh invocation, so console users see what ran where.
package ui

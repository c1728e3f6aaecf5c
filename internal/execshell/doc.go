// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with zap logging via ShellExecutor, exposes OSCommandRunner
// for default process execution, and defines the abstractions used throughout
// deployutils to run git, ssh, curl, and shell commands in a testable manner.
package execshell

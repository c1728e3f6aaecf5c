// Package remote runs shell commands on one or more hosts from the control machine.
//
// Executor fans a command out over ssh (or sh for the local host), waits for
// every host to finish, and returns per-host results. Individual host
// failures never fail the call; callers decide what partial success means.
package remote
